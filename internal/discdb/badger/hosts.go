package badger

import (
	"context"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/hreinecke/nvme-discd-go/internal/discdb"
)

// CreateHost inserts a host row with genctr=0. A pre-existing host is
// ignored (spec §8 invariant 5).
func (s *Store) CreateHost(ctx context.Context, nqn string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badgerdb.Txn) error {
		if _, err := txn.Get(keyHost(nqn)); err == nil {
			return nil
		} else if err != badgerdb.ErrKeyNotFound {
			return err
		}
		rec, err := encodeHostRecord(hostRecord{NQN: nqn, CreatedAt: time.Now()})
		if err != nil {
			return err
		}
		if err := txn.Set(keyHost(nqn), rec); err != nil {
			return err
		}
		return txn.Set(keyHostGenctr(nqn), encodeGenctr(0))
	})
}

// DeleteHost removes a host row and its host_subsys forward links.
func (s *Store) DeleteHost(ctx context.Context, nqn string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badgerdb.Txn) error {
		if _, err := txn.Get(keyHost(nqn)); err == badgerdb.ErrKeyNotFound {
			return discdb.ErrHostNotFound
		} else if err != nil {
			return err
		}

		it := txn.NewIterator(badgerdb.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(prefixHostSub + nqn + ":")
		var toDelete [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			toDelete = append(toDelete, append([]byte{}, it.Item().Key()...))
		}
		for _, k := range toDelete {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}

		if err := txn.Delete(keyHostGenctr(nqn)); err != nil {
			return err
		}
		return txn.Delete(keyHost(nqn))
	})
}

// HostGenctr returns the host's current generation counter. A host need
// not have a pre-existing row to page for discovery (spec §4.A Scenario
// S1): an unregistered hostNQN reads as genctr=0 rather than failing.
func (s *Store) HostGenctr(ctx context.Context, nqn string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var v uint64
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(keyHostGenctr(nqn))
		if err == badgerdb.ErrKeyNotFound {
			v = 0
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			v = decodeGenctr(val)
			return nil
		})
	})
	return v, err
}

// HostExists reports whether a host row exists for nqn.
func (s *Store) HostExists(ctx context.Context, nqn string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	exists := false
	err := s.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get(keyHost(nqn))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	})
	return exists, err
}

// bumpHostGenctr increments a single host's counter by one within txn.
func bumpHostGenctr(txn *badgerdb.Txn, nqn string) error {
	item, err := txn.Get(keyHostGenctr(nqn))
	var cur uint64
	if err == nil {
		if verr := item.Value(func(val []byte) error {
			cur = decodeGenctr(val)
			return nil
		}); verr != nil {
			return verr
		}
	} else if err != badgerdb.ErrKeyNotFound {
		return err
	}
	return txn.Set(keyHostGenctr(nqn), encodeGenctr(cur+1))
}

// allHostNQNs returns every known host NQN within txn.
func allHostNQNs(txn *badgerdb.Txn) ([]string, error) {
	it := txn.NewIterator(badgerdb.DefaultIteratorOptions)
	defer it.Close()
	var nqns []string
	prefix := []byte(prefixHost)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		nqns = append(nqns, string(it.Item().Key()[len(prefixHost):]))
	}
	return nqns, nil
}
