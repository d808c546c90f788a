package discdb

import (
	"context"

	"gorm.io/gorm"
)

// CreateSubsys inserts a subsystem row. If allowAnyHost is set, also
// inserts the synthetic host_subsys link to WellKnownDiscoveryNQN (spec
// §4.B, CREATE in SUBSYS_DIR). A pre-existing subsystem is ignored.
func (s *GORMStore) CreateSubsys(ctx context.Context, nqn string, allowAnyHost bool) error {
	exists, err := s.SubsysExists(ctx, nqn)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Create(&Subsystem{NQN: nqn, AllowAnyHost: allowAnyHost}).Error
		if isUniqueConstraintError(err) {
			return nil
		}
		if err != nil {
			return err
		}
		if allowAnyHost {
			if err := tx.Clauses().Create(&HostSubsys{HostNQN: WellKnownDiscoveryNQN, SubsysNQN: nqn}).Error; err != nil && !isUniqueConstraintError(err) {
				return err
			}
		}
		return nil
	})
}

// DeleteSubsys removes a subsystem row. Per spec §4.B the kernel deletes
// links before the subsystem directory, so in practice subsys_port and
// host_subsys rows are already gone; we defensively remove any remainder
// within the same transaction to avoid an FK violation.
func (s *GORMStore) DeleteSubsys(ctx context.Context, nqn string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("subsys_nqn = ?", nqn).Delete(&HostSubsys{}).Error; err != nil {
			return err
		}
		if err := tx.Where("subsys_nqn = ?", nqn).Delete(&SubsysPort{}).Error; err != nil {
			return err
		}
		return deleteByField[Subsystem](tx, ctx, "nqn", nqn, ErrSubsysNotFound)
	})
}

// SubsysExists reports whether a subsystem row exists for nqn.
func (s *GORMStore) SubsysExists(ctx context.Context, nqn string) (bool, error) {
	return existsByField(s.db, ctx, "subsys", "nqn", nqn)
}

// GetSubsys returns the subsystem row for nqn.
func (s *GORMStore) GetSubsys(ctx context.Context, nqn string) (*Subsystem, error) {
	return getByField[Subsystem](s.db, ctx, "nqn", nqn, ErrSubsysNotFound)
}

// SetAllowAnyHost updates the allow_any_host attribute, toggles the
// synthetic discovery-host link, and bumps genctr for every host (spec
// §4.B, MODIFY on SUBSYS/attr_allow_any_host).
func (s *GORMStore) SetAllowAnyHost(ctx context.Context, nqn string, allow bool) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Subsystem{}).Where("nqn = ?", nqn).Update("allow_any_host", allow)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrSubsysNotFound
		}

		if allow {
			if err := tx.Create(&HostSubsys{HostNQN: WellKnownDiscoveryNQN, SubsysNQN: nqn}).Error; err != nil && !isUniqueConstraintError(err) {
				return err
			}
		} else {
			if err := tx.Where("host_nqn = ? AND subsys_nqn = ?", WellKnownDiscoveryNQN, nqn).Delete(&HostSubsys{}).Error; err != nil {
				return err
			}
		}

		return bumpGenctrForAllHosts(tx)
	})
}
