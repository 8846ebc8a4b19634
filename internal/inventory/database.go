package inventory

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/saltyorg/inventory/internal/database"
	"github.com/saltyorg/inventory/internal/livequery"
)

// DatabaseName is the file name of the item store inside the data directory
const DatabaseName = "item_database"

// AppContext supplies the application's private storage area
type AppContext interface {
	DataDir() string
}

// DataDir is an AppContext rooted at a fixed directory
type DataDir string

// DataDir returns the directory itself
func (d DataDir) DataDir() string {
	return string(d)
}

// Database is the process-wide handle to the item store
type Database struct {
	db     *database.DB
	hub    *livequery.Hub
	writer *writer
	dao    *itemDao
}

var (
	// instance is read without the lock once set; instanceMu serializes the
	// first open so only one goroutine ever touches the file.
	instance   atomic.Pointer[Database]
	instanceMu sync.Mutex

	// openDatabase is swapped out by tests to observe how often the store opens
	openDatabase = open
)

// GetDatabase returns the process-wide item database, opening it on first use.
//
// Concurrent first calls open the store exactly once and all receive the same
// handle. The data directory of the first successful call wins; later calls
// get the existing handle whatever they pass. A failed open leaves the
// provider uninitialized so a later call can retry.
func GetDatabase(app AppContext) (*Database, error) {
	if db := instance.Load(); db != nil {
		return db, nil
	}

	instanceMu.Lock()
	defer instanceMu.Unlock()

	if db := instance.Load(); db != nil {
		return db, nil
	}

	db, err := openDatabase(filepath.Join(app.DataDir(), DatabaseName))
	if err != nil {
		return nil, err
	}
	instance.Store(db)

	return db, nil
}

// Open opens a private handle on the database in app's data directory. It is
// not shared through GetDatabase and the caller must Close it.
func Open(app AppContext) (*Database, error) {
	return open(filepath.Join(app.DataDir(), DatabaseName))
}

// open builds a Database on the file at path
func open(path string) (*Database, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := database.New(path)
	if err != nil {
		return nil, err
	}

	hub := livequery.NewHub()
	w := newWriter()

	log.Info().Str("path", path).Msg("Item database opened")

	return &Database{
		db:     db,
		hub:    hub,
		writer: w,
		dao:    newItemDao(db, hub, w),
	}, nil
}

// ItemDao returns the item gateway bound to this database
func (d *Database) ItemDao() ItemDao {
	return d.dao
}

// DB returns the underlying SQLite handle
func (d *Database) DB() *database.DB {
	return d.db
}

// Hub returns the live query hub, used to push external changes to subscribers
func (d *Database) Hub() *livequery.Hub {
	return d.hub
}

// Path returns the database file path
func (d *Database) Path() string {
	return d.db.Path()
}

// Close drains pending mutations, ends every live query and closes the file.
// The handle stays registered; the provider never reopens within a process.
func (d *Database) Close() error {
	d.writer.Stop()
	d.hub.Stop()
	if err := d.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	log.Debug().Str("path", d.Path()).Msg("Item database closed")
	return nil
}
