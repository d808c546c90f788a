// Package badger implements internal/discdb.Store on top of BadgerDB, as
// an alternative to the GORM-backed implementation — grounded on
// pkg/metadata/store/badger's key-prefix-namespace pattern for mapping a
// relational-shaped domain onto a key/value engine.
package badger

import (
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/hreinecke/nvme-discd-go/internal/discdb"
)

var _ discdb.Store = (*Store)(nil)

// Config configures the BadgerDB-backed discovery store.
type Config struct {
	// Dir is the on-disk directory for the database files.
	Dir string
	// InMemory runs Badger with no persistence, for tests.
	InMemory bool
}

// Store implements discdb.Store on top of BadgerDB.
type Store struct {
	db *badgerdb.DB
}

// New opens (creating if absent) the BadgerDB-backed discovery store.
func New(cfg Config) (*Store, error) {
	opts := badgerdb.DefaultOptions(cfg.Dir).WithLogger(nil)
	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("discdb/badger: open: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
