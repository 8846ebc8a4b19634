package database

import (
	"context"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// DB wraps the SQLite connection backing the item store
type DB struct {
	*sqlx.DB
	path string
	mu   sync.RWMutex
}

// New opens the database at path and brings its schema to SchemaVersion.
// A file written with any other schema version is wiped and rebuilt empty.
func New(path string) (*DB, error) {
	// WAL lets live queries read while the writer commits
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)

	conn, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)

	db := &DB{
		DB:   conn,
		path: path,
	}

	if err := db.ensureSchema(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	log.Debug().Str("path", path).Msg("Database connection established")

	return db, nil
}

// Path returns the database file path
func (db *DB) Path() string {
	return db.path
}

// Transaction wraps a function in a database transaction.
// Writers are serialized so a commit is never interleaved with another commit.
func (db *DB) Transaction(ctx context.Context, fn func(*sqlx.Tx) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error().Err(rbErr).Msg("Failed to rollback transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
