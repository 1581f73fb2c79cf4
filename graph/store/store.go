// Package store persists the iteration journal and named checkpoints of a
// dispatcher run.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a run ID or checkpoint ID does not exist.
var ErrNotFound = errors.New("not found")

// ErrClosed is returned by database-backed stores after Close.
var ErrClosed = errors.New("store is closed")

// Store records one state per dispatched iteration of a run and named
// checkpoints. Implementations must be safe for concurrent use.
//
// Type parameter S is the recorded state; database-backed stores require it
// to be JSON-serializable.
type Store[S any] interface {
	// SaveStep records state for iteration step of runID. graph names the
	// graph that ran. Saving the same (runID, step) twice replaces the record.
	SaveStep(ctx context.Context, runID string, step int, graph string, state S) error

	// LoadLatest returns the record with the highest step for runID, or
	// ErrNotFound.
	LoadLatest(ctx context.Context, runID string) (state S, step int, err error)

	// LoadSteps returns every record of runID ordered by step. A run without
	// records yields an empty slice.
	LoadSteps(ctx context.Context, runID string) ([]StepRecord[S], error)

	// SaveCheckpoint stores state under cpID, replacing any previous value.
	SaveCheckpoint(ctx context.Context, cpID string, state S, step int) error

	// LoadCheckpoint returns the state stored under cpID, or ErrNotFound.
	LoadCheckpoint(ctx context.Context, cpID string) (state S, step int, err error)
}

// StepRecord is one journaled iteration.
type StepRecord[S any] struct {
	Step  int
	Graph string
	State S
}

// Checkpoint is a named snapshot.
type Checkpoint[S any] struct {
	ID    string
	State S
	Step  int
}
