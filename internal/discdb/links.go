package discdb

import (
	"context"

	"gorm.io/gorm"
)

// LinkHostSubsys inserts a host_subsys row and bumps the host's genctr by
// exactly one. A pre-existing link is a no-op: no duplicate row, no bump
// (spec §8 invariant 5).
func (s *GORMStore) LinkHostSubsys(ctx context.Context, hostNQN, subsysNQN string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&HostSubsys{}).Where("host_nqn = ? AND subsys_nqn = ?", hostNQN, subsysNQN).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		var hostCount, subsysCount int64
		if err := tx.Model(&Host{}).Where("nqn = ?", hostNQN).Count(&hostCount).Error; err != nil {
			return err
		}
		if err := tx.Model(&Subsystem{}).Where("nqn = ?", subsysNQN).Count(&subsysCount).Error; err != nil {
			return err
		}
		if hostCount == 0 || subsysCount == 0 {
			return ErrFKViolation
		}

		if err := tx.Create(&HostSubsys{HostNQN: hostNQN, SubsysNQN: subsysNQN}).Error; err != nil {
			if isUniqueConstraintError(err) {
				return nil
			}
			return err
		}
		return bumpHostGenctr(tx, hostNQN)
	})
}

// UnlinkHostSubsys removes a host_subsys row and bumps the host's genctr.
func (s *GORMStore) UnlinkHostSubsys(ctx context.Context, hostNQN, subsysNQN string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("host_nqn = ? AND subsys_nqn = ?", hostNQN, subsysNQN).Delete(&HostSubsys{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrHostSubsysNotFound
		}
		return bumpHostGenctr(tx, hostNQN)
	})
}

// LinkSubsysPort inserts a subsys_port row and bumps genctr for every
// host currently associated with the subsystem (spec §3).
func (s *GORMStore) LinkSubsysPort(ctx context.Context, subsysNQN string, portID uint16) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&SubsysPort{}).Where("subsys_nqn = ? AND port_id = ?", subsysNQN, portID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		var subsysCount, portCount int64
		if err := tx.Model(&Subsystem{}).Where("nqn = ?", subsysNQN).Count(&subsysCount).Error; err != nil {
			return err
		}
		if err := tx.Model(&Port{}).Where("port_id = ?", portID).Count(&portCount).Error; err != nil {
			return err
		}
		if subsysCount == 0 {
			// spec §4.B: "if subsys unknown, drop silently"
			return nil
		}
		if portCount == 0 {
			return ErrFKViolation
		}

		if err := tx.Create(&SubsysPort{SubsysNQN: subsysNQN, PortID: portID}).Error; err != nil {
			if isUniqueConstraintError(err) {
				return nil
			}
			return err
		}
		return bumpGenctrForSubsys(tx, subsysNQN)
	})
}

// UnlinkSubsysPort removes a subsys_port row and bumps genctr for every
// affected host.
func (s *GORMStore) UnlinkSubsysPort(ctx context.Context, subsysNQN string, portID uint16) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := bumpGenctrForSubsys(tx, subsysNQN); err != nil {
			return err
		}
		result := tx.Where("subsys_nqn = ? AND port_id = ?", subsysNQN, portID).Delete(&SubsysPort{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrSubsysPortNotFound
		}
		return nil
	})
}
