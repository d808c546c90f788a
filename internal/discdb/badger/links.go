package badger

import (
	"context"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/hreinecke/nvme-discd-go/internal/discdb"
)

// LinkHostSubsys inserts a host_subsys row and bumps the host's genctr.
func (s *Store) LinkHostSubsys(ctx context.Context, hostNQN, subsysNQN string) error {
	return s.db.Update(func(txn *badgerdb.Txn) error {
		if _, err := txn.Get(keyHostSub(hostNQN, subsysNQN)); err == nil {
			return nil
		} else if err != badgerdb.ErrKeyNotFound {
			return err
		}

		if _, err := txn.Get(keyHost(hostNQN)); err == badgerdb.ErrKeyNotFound {
			return discdb.ErrFKViolation
		} else if err != nil {
			return err
		}
		if _, err := txn.Get(keySubsys(subsysNQN)); err == badgerdb.ErrKeyNotFound {
			return discdb.ErrFKViolation
		} else if err != nil {
			return err
		}

		if err := txn.Set(keyHostSub(hostNQN, subsysNQN), nil); err != nil {
			return err
		}
		if err := txn.Set(keySubHost(subsysNQN, hostNQN), nil); err != nil {
			return err
		}
		return bumpHostGenctr(txn, hostNQN)
	})
}

// UnlinkHostSubsys removes a host_subsys row and bumps the host's genctr.
func (s *Store) UnlinkHostSubsys(ctx context.Context, hostNQN, subsysNQN string) error {
	return s.db.Update(func(txn *badgerdb.Txn) error {
		if _, err := txn.Get(keyHostSub(hostNQN, subsysNQN)); err == badgerdb.ErrKeyNotFound {
			return discdb.ErrHostSubsysNotFound
		} else if err != nil {
			return err
		}
		if err := txn.Delete(keyHostSub(hostNQN, subsysNQN)); err != nil {
			return err
		}
		if err := txn.Delete(keySubHost(subsysNQN, hostNQN)); err != nil {
			return err
		}
		return bumpHostGenctr(txn, hostNQN)
	})
}

// LinkSubsysPort inserts a subsys_port row and bumps genctr for every
// host currently associated with the subsystem.
func (s *Store) LinkSubsysPort(ctx context.Context, subsysNQN string, portID uint16) error {
	return s.db.Update(func(txn *badgerdb.Txn) error {
		if _, err := txn.Get(keySubPort(subsysNQN, portID)); err == nil {
			return nil
		} else if err != badgerdb.ErrKeyNotFound {
			return err
		}

		if _, err := txn.Get(keySubsys(subsysNQN)); err == badgerdb.ErrKeyNotFound {
			// spec §4.B: "if subsys unknown, drop silently"
			return nil
		} else if err != nil {
			return err
		}
		if _, err := txn.Get(keyPort(portID)); err == badgerdb.ErrKeyNotFound {
			return discdb.ErrFKViolation
		} else if err != nil {
			return err
		}

		if err := txn.Set(keySubPort(subsysNQN, portID), nil); err != nil {
			return err
		}
		if err := txn.Set(keyPortSub(portID, subsysNQN), nil); err != nil {
			return err
		}
		return bumpGenctrForSubsys(txn, subsysNQN)
	})
}

// UnlinkSubsysPort removes a subsys_port row and bumps genctr for every
// affected host.
func (s *Store) UnlinkSubsysPort(ctx context.Context, subsysNQN string, portID uint16) error {
	return s.db.Update(func(txn *badgerdb.Txn) error {
		if _, err := txn.Get(keySubPort(subsysNQN, portID)); err == badgerdb.ErrKeyNotFound {
			return discdb.ErrSubsysPortNotFound
		} else if err != nil {
			return err
		}
		if err := bumpGenctrForSubsys(txn, subsysNQN); err != nil {
			return err
		}
		if err := txn.Delete(keySubPort(subsysNQN, portID)); err != nil {
			return err
		}
		return txn.Delete(keyPortSub(portID, subsysNQN))
	})
}
