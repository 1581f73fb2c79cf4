package emit

import "sync"

// BufferedEmitter keeps every event in memory, grouped by run ID. It is meant
// for tests, the CLI's event summary and short-lived tools; nothing is ever
// evicted unless Clear is called.
//
//	buf := emit.NewBufferedEmitter()
//	engine, _ := graph.New(g, graph.WithEmitter(buf), graph.WithRunID("run-001"))
//	...
//	moves := buf.GetHistoryWithFilter("run-001", emit.HistoryFilter{Msg: "relocation_completed"})
type BufferedEmitter struct {
	mu     sync.RWMutex
	events map[string][]Event // runID -> events
}

// HistoryFilter selects events. Empty fields match everything; set fields
// are combined with AND.
type HistoryFilter struct {
	NodeID  string // graph or node name
	Msg     string // event name
	MinStep *int   // inclusive lower bound on Step
	MaxStep *int   // inclusive upper bound on Step
}

// NewBufferedEmitter returns an empty BufferedEmitter.
func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{
		events: make(map[string][]Event),
	}
}

// Emit appends event to its run's history.
func (b *BufferedEmitter) Emit(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events[event.RunID] = append(b.events[event.RunID], event)
}

// GetHistory returns a copy of every event of runID in emission order. The
// result is never nil.
func (b *BufferedEmitter) GetHistory(runID string) []Event {
	return b.GetHistoryWithFilter(runID, HistoryFilter{})
}

// GetHistoryWithFilter returns a copy of the events of runID matching filter,
// in emission order. The result is never nil.
func (b *BufferedEmitter) GetHistoryWithFilter(runID string, filter HistoryFilter) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := []Event{}
	for _, event := range b.events[runID] {
		if filter.matches(event) {
			result = append(result, event)
		}
	}
	return result
}

// Messages returns the Msg of every event of runID in emission order.
func (b *BufferedEmitter) Messages(runID string) []string {
	events := b.GetHistory(runID)
	msgs := make([]string, len(events))
	for i, e := range events {
		msgs[i] = e.Msg
	}
	return msgs
}

func (f HistoryFilter) matches(event Event) bool {
	if f.NodeID != "" && event.NodeID != f.NodeID {
		return false
	}
	if f.Msg != "" && event.Msg != f.Msg {
		return false
	}
	if f.MinStep != nil && event.Step < *f.MinStep {
		return false
	}
	if f.MaxStep != nil && event.Step > *f.MaxStep {
		return false
	}
	return true
}

// Clear drops the history of runID, or of every run when runID is empty.
func (b *BufferedEmitter) Clear(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if runID == "" {
		b.events = make(map[string][]Event)
		return
	}
	delete(b.events, runID)
}
