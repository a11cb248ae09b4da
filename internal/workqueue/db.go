package workqueue

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"
)

// DB owns the on-disk badgerhold database backing a Store, the same
// open/reset/close lifecycle as the teacher's storage/badger.BadgerDB,
// narrowed to the two fields this module's queue actually needs.
type DB struct {
	store  *badgerhold.Store
	logger arbor.ILogger
}

// OpenStore opens (or creates) the badgerhold database at path. When reset
// is true an existing database at path is deleted first, the same
// reset_on_startup behavior as the teacher's connection.go, useful for
// local development and tests.
func OpenStore(path string, reset bool, logger arbor.ILogger) (*DB, error) {
	if reset {
		if _, err := os.Stat(path); err == nil {
			logger.Debug().Str("path", path).Msg("workqueue: deleting existing database (reset_on_startup=true)")
			if err := os.RemoveAll(path); err != nil {
				logger.Warn().Err(err).Str("path", path).Msg("workqueue: failed to delete database directory")
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create queue database directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = path
	options.ValueDir = path
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("open queue database: %w", err)
	}

	logger.Debug().Str("path", path).Msg("workqueue: database initialized")
	return &DB{store: store, logger: logger}, nil
}

// Store returns the underlying badgerhold store.
func (d *DB) Store() *badgerhold.Store { return d.store }

// BadgerDB returns the raw badger handle, used only by Maintenance for
// value-log GC.
func (d *DB) BadgerDB() *badger.DB { return d.store.Badger() }

// Close closes the database connection.
func (d *DB) Close() error {
	if d.store == nil {
		return nil
	}
	return d.store.Close()
}
