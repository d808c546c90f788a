package discdb

import "gorm.io/gorm"

// Centralizing every genctr bump here, rather than sprinkling it through
// the reflector, is the explicit redesign called out in spec §9
// ("Implicit genctr-bump coupling"): the transactional mutator owns the
// coupling, callers never bump genctr directly.

// bumpHostGenctr increments a single host's counter by exactly one.
func bumpHostGenctr(tx *gorm.DB, hostNQN string) error {
	return tx.Model(&Host{}).Where("nqn = ?", hostNQN).
		UpdateColumn("genctr", gorm.Expr("genctr + 1")).Error
}

// affectedHostsForSubsys returns every host whose visibility of subsysNQN
// is governed directly: those explicitly linked via host_subsys, plus —
// if the subsystem is allow_any_host — every known host (spec §4.A join:
// "(h,s)∈host_subsys ∨ s.allow_any_host").
func affectedHostsForSubsys(tx *gorm.DB, subsysNQN string) ([]string, error) {
	var subsys Subsystem
	if err := tx.Where("nqn = ?", subsysNQN).First(&subsys).Error; err != nil {
		return nil, err
	}

	if subsys.AllowAnyHost {
		var nqns []string
		if err := tx.Model(&Host{}).Pluck("nqn", &nqns).Error; err != nil {
			return nil, err
		}
		return nqns, nil
	}

	var nqns []string
	if err := tx.Model(&HostSubsys{}).Where("subsys_nqn = ?", subsysNQN).Pluck("host_nqn", &nqns).Error; err != nil {
		return nil, err
	}
	return nqns, nil
}

// bumpGenctrForSubsys bumps every host currently associated with a
// subsystem — used whenever a subsys_port link changes or the
// subsystem's allow_any_host attribute flips (spec §4.A, §4.B).
func bumpGenctrForSubsys(tx *gorm.DB, subsysNQN string) error {
	hosts, err := affectedHostsForSubsys(tx, subsysNQN)
	if err != nil {
		return err
	}
	for _, h := range hosts {
		if err := bumpHostGenctr(tx, h); err != nil {
			return err
		}
	}
	return nil
}

// bumpGenctrForAllHosts bumps every known host's counter — used when a
// subsystem's allow_any_host is toggled, since that can change visibility
// for hosts with no explicit host_subsys row (spec §4.B).
func bumpGenctrForAllHosts(tx *gorm.DB) error {
	var nqns []string
	if err := tx.Model(&Host{}).Pluck("nqn", &nqns).Error; err != nil {
		return err
	}
	for _, h := range nqns {
		if err := bumpHostGenctr(tx, h); err != nil {
			return err
		}
	}
	return nil
}

// bumpGenctrForPort bumps every host affected by a change to a port's
// attributes: every subsystem mapped to the port, and every host that
// subsystem affects (spec §4.B: "Port attribute modifications count as a
// modification to every subsystem mapped to that port").
func bumpGenctrForPort(tx *gorm.DB, portID uint16) error {
	var subsysNQNs []string
	if err := tx.Model(&SubsysPort{}).Where("port_id = ?", portID).Pluck("subsys_nqn", &subsysNQNs).Error; err != nil {
		return err
	}
	for _, s := range subsysNQNs {
		if err := bumpGenctrForSubsys(tx, s); err != nil {
			return err
		}
	}
	return nil
}
