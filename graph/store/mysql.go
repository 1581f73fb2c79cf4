package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a MySQL/MariaDB implementation of Store for journals shared
// between processes.
//
// The DSN format is the go-sql-driver one:
//
//	user:password@tcp(localhost:3306)/itergraph?parseTime=true
//
// Read credentials from the environment, never from source.
type MySQLStore[S any] struct {
	*sqlStore[S]
}

var mysqlDialect = dialect{
	schema: []string{
		`CREATE TABLE IF NOT EXISTS iteration_journal (
			run_id VARCHAR(255) NOT NULL,
			step INT NOT NULL,
			graph VARCHAR(32) NOT NULL,
			state JSON NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (run_id, step)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
		`CREATE TABLE IF NOT EXISTS engine_checkpoints (
			checkpoint_id VARCHAR(255) PRIMARY KEY,
			state JSON NOT NULL,
			step INT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	},
	upsertStep: `
		INSERT INTO iteration_journal (run_id, step, graph, state)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE graph = VALUES(graph), state = VALUES(state)
	`,
	upsertCheckpoint: `
		INSERT INTO engine_checkpoints (checkpoint_id, state, step)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE state = VALUES(state), step = VALUES(step)
	`,
}

// NewMySQLStore connects to dsn, verifies the connection and creates the
// tables if they do not exist.
func NewMySQLStore[S any](dsn string) (*MySQLStore[S], error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	inner, err := newSQLStore[S](ctx, db, mysqlDialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &MySQLStore[S]{sqlStore: inner}, nil
}

// Stats returns connection pool statistics.
func (m *MySQLStore[S]) Stats() sql.DBStats {
	return m.db.Stats()
}
