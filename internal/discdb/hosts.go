package discdb

import (
	"context"

	"gorm.io/gorm"
)

// CreateHost inserts a host row with genctr=0. A pre-existing host is
// treated as a concurrent replay and ignored (spec §4.A, §8 invariant 5).
func (s *GORMStore) CreateHost(ctx context.Context, nqn string) error {
	exists, err := s.HostExists(ctx, nqn)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	err = s.db.WithContext(ctx).Create(&Host{NQN: nqn}).Error
	if isUniqueConstraintError(err) {
		return nil
	}
	return err
}

// DeleteHost removes a host row. RESTRICT semantics are enforced by the
// caller (the reflector never deletes a host still linked, per the
// kernel's own delete ordering); here we simply remove the row and its
// host_subsys rows within one transaction.
func (s *GORMStore) DeleteHost(ctx context.Context, nqn string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("host_nqn = ?", nqn).Delete(&HostSubsys{}).Error; err != nil {
			return err
		}
		return deleteByField[Host](tx, ctx, "nqn", nqn, ErrHostNotFound)
	})
}

// HostGenctr returns the host's current generation counter. A host need
// not have a pre-existing row to page for discovery (spec §4.A Scenario
// S1): an unregistered hostNQN reads as genctr=0 rather than failing,
// matching the C source's "unknown host starts at generation zero"
// behavior.
func (s *GORMStore) HostGenctr(ctx context.Context, nqn string) (uint64, error) {
	h, err := getByField[Host](s.db, ctx, "nqn", nqn, ErrHostNotFound)
	if err == ErrHostNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return h.Genctr, nil
}

// HostExists reports whether a host row exists for nqn.
func (s *GORMStore) HostExists(ctx context.Context, nqn string) (bool, error) {
	return existsByField(s.db, ctx, "host", "nqn", nqn)
}
