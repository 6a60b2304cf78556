// Trackvault - Media Library Track Lifecycle and Streaming Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trackvault

// Package database provides the DuckDB-backed document store for tracks and
// the transactional outbox.
//
// The store has one hard correctness property: a track's transition into the
// deleted state and the insertion of the corresponding outbox row happen in
// a single transaction. Either both are visible after commit or neither is.
//
// Optimistic concurrency is enforced with predicate-guarded writes: every
// state-changing statement repeats its precondition in the WHERE clause and
// the affected-row count decides whether the caller lost a race (see
// ErrConflict). This is what keeps the restore path and the reaper from
// stepping on each other without any shared in-process locking.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/trackvault/internal/config"
	"github.com/tomtom215/trackvault/internal/logging"
)

var (
	// ErrNotFound is returned when a track does not exist.
	ErrNotFound = errors.New("track not found")

	// ErrConflict is returned when a predicate-guarded write matched no
	// rows: the record changed underneath the caller (concurrent delete,
	// restore, or purge) and the operation must be re-evaluated.
	ErrConflict = errors.New("track state changed concurrently")
)

// DB wraps the DuckDB connection and provides track and outbox access.
type DB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig
}

// New opens the DuckDB database and initializes the schema.
// An empty cfg.Path opens an in-memory database (used by tests).
func New(cfg *config.DatabaseConfig) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	connStr := ""
	if cfg.Path != "" {
		// Ensure the parent directory exists before DuckDB opens the file.
		dbDir := filepath.Dir(cfg.Path)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("create database directory %s: %w", dbDir, err)
			}
		}

		maxMemory := cfg.MaxMemory
		if maxMemory == "" {
			maxMemory = "1GB"
		}
		connStr = fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s",
			cfg.Path, numThreads, maxMemory)
	}

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db := &DB{conn: conn, cfg: cfg}
	if err := db.initSchema(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Msg("Database opened")
	return db, nil
}

// initSchema creates the tracks and outbox tables if they do not exist.
func (db *DB) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS tracks (
			id                     VARCHAR PRIMARY KEY,
			user_id                VARCHAR NOT NULL,
			status                 VARCHAR NOT NULL,
			status_before_deletion VARCHAR,
			deleted_at             TIMESTAMP,
			scheduled_deletion_at  TIMESTAMP,
			object_key             VARCHAR NOT NULL,
			waveform_object_key    VARCHAR,
			file_size_bytes        BIGINT NOT NULL,
			mime_type              VARCHAR NOT NULL,
			created_at             TIMESTAMP NOT NULL,
			updated_at             TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tracks_user ON tracks (user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tracks_purge ON tracks (status, scheduled_deletion_at)`,
		`CREATE SEQUENCE IF NOT EXISTS outbox_seq`,
		// seq breaks created_at ties: two rows for one partition key can
		// land in the same microsecond, and drain order must still match
		// commit order.
		`CREATE TABLE IF NOT EXISTS outbox (
			id             VARCHAR PRIMARY KEY,
			seq            BIGINT NOT NULL DEFAULT nextval('outbox_seq'),
			message_type   VARCHAR NOT NULL,
			topic          VARCHAR NOT NULL,
			partition_key  VARCHAR NOT NULL,
			payload        BLOB NOT NULL,
			correlation_id VARCHAR NOT NULL,
			created_at     TIMESTAMP NOT NULL,
			attempts       INTEGER NOT NULL DEFAULT 0,
			last_error     VARCHAR
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outbox_created ON outbox (created_at, seq)`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:32], err)
		}
	}
	return nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping verifies the connection is alive; used by health checks.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// nullTime converts a nullable column into *time.Time in UTC.
func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	utc := t.Time.UTC()
	return &utc
}
