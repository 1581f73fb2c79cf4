package store

import (
	"context"
	"sort"
	"sync"
)

// MemStore keeps the journal and checkpoints in process memory. Data is lost
// when the process exits.
type MemStore[S any] struct {
	mu          sync.RWMutex
	steps       map[string]map[int]StepRecord[S] // runID -> step -> record
	checkpoints map[string]Checkpoint[S]
}

// NewMemStore returns an empty MemStore.
func NewMemStore[S any]() *MemStore[S] {
	return &MemStore[S]{
		steps:       make(map[string]map[int]StepRecord[S]),
		checkpoints: make(map[string]Checkpoint[S]),
	}
}

// SaveStep implements Store.
func (m *MemStore[S]) SaveStep(_ context.Context, runID string, step int, graph string, state S) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.steps[runID]
	if !ok {
		run = make(map[int]StepRecord[S])
		m.steps[runID] = run
	}
	run[step] = StepRecord[S]{Step: step, Graph: graph, State: state}
	return nil
}

// LoadLatest implements Store.
func (m *MemStore[S]) LoadLatest(_ context.Context, runID string) (state S, step int, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run := m.steps[runID]
	if len(run) == 0 {
		return state, 0, ErrNotFound
	}
	latest := -1
	for s := range run {
		if s > latest {
			latest = s
		}
	}
	return run[latest].State, latest, nil
}

// LoadSteps implements Store.
func (m *MemStore[S]) LoadSteps(_ context.Context, runID string) ([]StepRecord[S], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]StepRecord[S], 0, len(m.steps[runID]))
	for _, r := range m.steps[runID] {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Step < out[j].Step })
	return out, nil
}

// SaveCheckpoint implements Store.
func (m *MemStore[S]) SaveCheckpoint(_ context.Context, cpID string, state S, step int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.checkpoints[cpID] = Checkpoint[S]{ID: cpID, State: state, Step: step}
	return nil
}

// LoadCheckpoint implements Store.
func (m *MemStore[S]) LoadCheckpoint(_ context.Context, cpID string) (state S, step int, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cp, ok := m.checkpoints[cpID]
	if !ok {
		return state, 0, ErrNotFound
	}
	return cp.State, cp.Step, nil
}
