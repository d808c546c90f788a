package badger

import (
	"context"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/hreinecke/nvme-discd-go/internal/discdb"
)

// CreateSubsys inserts a subsystem row, wiring the synthetic
// WellKnownDiscoveryNQN link if allowAnyHost (spec §4.B).
func (s *Store) CreateSubsys(ctx context.Context, nqn string, allowAnyHost bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badgerdb.Txn) error {
		if _, err := txn.Get(keySubsys(nqn)); err == nil {
			return nil
		} else if err != badgerdb.ErrKeyNotFound {
			return err
		}
		rec, err := encodeSubsysRecord(subsysRecord{NQN: nqn, AllowAnyHost: allowAnyHost})
		if err != nil {
			return err
		}
		if err := txn.Set(keySubsys(nqn), rec); err != nil {
			return err
		}
		if allowAnyHost {
			if err := txn.Set(keyHostSub(discdb.WellKnownDiscoveryNQN, nqn), nil); err != nil {
				return err
			}
			if err := txn.Set(keySubHost(nqn, discdb.WellKnownDiscoveryNQN), nil); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteSubsys removes a subsystem row and any remaining link rows.
func (s *Store) DeleteSubsys(ctx context.Context, nqn string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badgerdb.Txn) error {
		if _, err := txn.Get(keySubsys(nqn)); err == badgerdb.ErrKeyNotFound {
			return discdb.ErrSubsysNotFound
		} else if err != nil {
			return err
		}

		if err := deletePrefix(txn, prefixSubHostOf(nqn)); err != nil {
			return err
		}
		if err := deletePrefix(txn, prefixSubPortOf(nqn)); err != nil {
			return err
		}
		return txn.Delete(keySubsys(nqn))
	})
}

// SubsysExists reports whether a subsystem row exists for nqn.
func (s *Store) SubsysExists(ctx context.Context, nqn string) (bool, error) {
	exists := false
	err := s.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get(keySubsys(nqn))
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

// GetSubsys returns the subsystem row for nqn.
func (s *Store) GetSubsys(ctx context.Context, nqn string) (*discdb.Subsystem, error) {
	var result *discdb.Subsystem
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(keySubsys(nqn))
		if err == badgerdb.ErrKeyNotFound {
			return discdb.ErrSubsysNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			rec, err := decodeSubsysRecord(val)
			if err != nil {
				return err
			}
			result = &discdb.Subsystem{NQN: rec.NQN, AllowAnyHost: rec.AllowAnyHost}
			return nil
		})
	})
	return result, err
}

// SetAllowAnyHost updates allow_any_host, toggles the synthetic link, and
// bumps genctr for every host (spec §4.B).
func (s *Store) SetAllowAnyHost(ctx context.Context, nqn string, allow bool) error {
	return s.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(keySubsys(nqn))
		if err == badgerdb.ErrKeyNotFound {
			return discdb.ErrSubsysNotFound
		}
		if err != nil {
			return err
		}
		rec, err := decodeSubsysRecord(mustValue(item))
		if err != nil {
			return err
		}
		rec.AllowAnyHost = allow
		out, err := encodeSubsysRecord(rec)
		if err != nil {
			return err
		}
		if err := txn.Set(keySubsys(nqn), out); err != nil {
			return err
		}

		if allow {
			if err := txn.Set(keyHostSub(discdb.WellKnownDiscoveryNQN, nqn), nil); err != nil {
				return err
			}
			if err := txn.Set(keySubHost(nqn, discdb.WellKnownDiscoveryNQN), nil); err != nil {
				return err
			}
		} else {
			_ = txn.Delete(keyHostSub(discdb.WellKnownDiscoveryNQN, nqn))
			_ = txn.Delete(keySubHost(nqn, discdb.WellKnownDiscoveryNQN))
		}

		nqns, err := allHostNQNs(txn)
		if err != nil {
			return err
		}
		for _, h := range nqns {
			if err := bumpHostGenctr(txn, h); err != nil {
				return err
			}
		}
		return nil
	})
}

// mustValue reads an item's value copy; the caller already holds it within
// an active transaction.
func mustValue(item *badgerdb.Item) []byte {
	var out []byte
	_ = item.Value(func(val []byte) error {
		out = append([]byte{}, val...)
		return nil
	})
	return out
}

// deletePrefix removes every key under prefix within txn.
func deletePrefix(txn *badgerdb.Txn, prefix []byte) error {
	it := txn.NewIterator(badgerdb.DefaultIteratorOptions)
	defer it.Close()
	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, append([]byte{}, it.Item().Key()...))
	}
	for _, k := range keys {
		if err := txn.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
