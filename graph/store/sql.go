package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// dialect holds the statements that differ between SQL backends.
type dialect struct {
	schema           []string
	upsertStep       string
	upsertCheckpoint string
}

// sqlStore implements Store over database/sql. States are stored as JSON.
type sqlStore[S any] struct {
	db      *sql.DB
	dialect dialect
	mu      sync.RWMutex
	closed  bool
}

func newSQLStore[S any](ctx context.Context, db *sql.DB, d dialect) (*sqlStore[S], error) {
	for _, stmt := range d.schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to create tables: %w", err)
		}
	}
	return &sqlStore[S]{db: db, dialect: d}, nil
}

func (s *sqlStore[S]) open() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// SaveStep implements Store.
func (s *sqlStore[S]) SaveStep(ctx context.Context, runID string, step int, graph string, state S) error {
	if err := s.open(); err != nil {
		return err
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, s.dialect.upsertStep, runID, step, graph, string(data)); err != nil {
		return fmt.Errorf("failed to save step: %w", err)
	}
	return nil
}

// LoadLatest implements Store.
func (s *sqlStore[S]) LoadLatest(ctx context.Context, runID string) (state S, step int, err error) {
	if err := s.open(); err != nil {
		return state, 0, err
	}
	const query = `
		SELECT step, state
		FROM iteration_journal
		WHERE run_id = ?
		ORDER BY step DESC
		LIMIT 1
	`
	var data string
	err = s.db.QueryRowContext(ctx, query, runID).Scan(&step, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return state, 0, ErrNotFound
	}
	if err != nil {
		return state, 0, fmt.Errorf("failed to load latest step: %w", err)
	}
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		var zero S
		return zero, 0, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return state, step, nil
}

// LoadSteps implements Store.
func (s *sqlStore[S]) LoadSteps(ctx context.Context, runID string) ([]StepRecord[S], error) {
	if err := s.open(); err != nil {
		return nil, err
	}
	const query = `
		SELECT step, graph, state
		FROM iteration_journal
		WHERE run_id = ?
		ORDER BY step ASC
	`
	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load steps: %w", err)
	}
	defer rows.Close()

	out := []StepRecord[S]{}
	for rows.Next() {
		var rec StepRecord[S]
		var data string
		if err := rows.Scan(&rec.Step, &rec.Graph, &data); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &rec.State); err != nil {
			return nil, fmt.Errorf("failed to unmarshal state: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SaveCheckpoint implements Store.
func (s *sqlStore[S]) SaveCheckpoint(ctx context.Context, cpID string, state S, step int) error {
	if err := s.open(); err != nil {
		return err
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, s.dialect.upsertCheckpoint, cpID, string(data), step); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint implements Store.
func (s *sqlStore[S]) LoadCheckpoint(ctx context.Context, cpID string) (state S, step int, err error) {
	if err := s.open(); err != nil {
		return state, 0, err
	}
	const query = `
		SELECT state, step
		FROM engine_checkpoints
		WHERE checkpoint_id = ?
	`
	var data string
	err = s.db.QueryRowContext(ctx, query, cpID).Scan(&data, &step)
	if errors.Is(err, sql.ErrNoRows) {
		return state, 0, ErrNotFound
	}
	if err != nil {
		return state, 0, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		var zero S
		return zero, 0, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return state, step, nil
}

// Ping verifies the database connection is alive.
func (s *sqlStore[S]) Ping(ctx context.Context) error {
	if err := s.open(); err != nil {
		return err
	}
	return s.db.PingContext(ctx)
}

// Close closes the database. Later calls return ErrClosed; closing twice is
// a no-op.
func (s *sqlStore[S]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
