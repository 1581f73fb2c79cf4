package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a single-file SQLite implementation of Store. It suits local
// runs of the CLI and tests; the pure-Go driver needs no cgo.
//
// Schema:
//   - iteration_journal: one row per (run_id, step)
//   - engine_checkpoints: named snapshots
//
//	st, err := store.NewSQLiteStore[graph.Snapshot]("./runs.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer st.Close()
type SQLiteStore[S any] struct {
	*sqlStore[S]
	path string
}

var sqliteDialect = dialect{
	schema: []string{
		`CREATE TABLE IF NOT EXISTS iteration_journal (
			run_id TEXT NOT NULL,
			step INTEGER NOT NULL,
			graph TEXT NOT NULL,
			state TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (run_id, step)
		)`,
		`CREATE TABLE IF NOT EXISTS engine_checkpoints (
			checkpoint_id TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			step INTEGER NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
	},
	upsertStep: `
		INSERT INTO iteration_journal (run_id, step, graph, state)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id, step) DO UPDATE SET graph = excluded.graph, state = excluded.state
	`,
	upsertCheckpoint: `
		INSERT INTO engine_checkpoints (checkpoint_id, state, step)
		VALUES (?, ?, ?)
		ON CONFLICT(checkpoint_id) DO UPDATE SET state = excluded.state, step = excluded.step
	`,
}

// NewSQLiteStore opens (creating if needed) the database at path. ":memory:"
// gives a throwaway database.
func NewSQLiteStore[S any](path string) (*SQLiteStore[S], error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	inner, err := newSQLStore[S](ctx, db, sqliteDialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore[S]{sqlStore: inner, path: path}, nil
}

// Path returns the database file path.
func (s *SQLiteStore[S]) Path() string {
	return s.path
}
