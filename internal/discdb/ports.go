package discdb

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// CreatePort inserts a port row. A pre-existing port id is ignored (spec
// §8 invariant 5); callers are responsible for binding/not binding the
// TCP listener (internal/iface) based on p.TrType.
func (s *GORMStore) CreatePort(ctx context.Context, p *Port) error {
	exists, err := existsByField(s.db, ctx, "port", "port_id", p.PortID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	err = s.db.WithContext(ctx).Create(p).Error
	if isUniqueConstraintError(err) {
		return nil
	}
	return err
}

// DeletePort removes a port row along with its subsys_port rows, bumping
// genctr for every host affected by the loss of reachability, all within
// one transaction (spec §4.B, DELETE_SELF on PORT).
func (s *GORMStore) DeletePort(ctx context.Context, portID uint16) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := bumpGenctrForPort(tx, portID); err != nil {
			return err
		}
		if err := tx.Where("port_id = ?", portID).Delete(&SubsysPort{}).Error; err != nil {
			return err
		}
		return deleteByField[Port](tx, ctx, "port_id", portID, ErrPortNotFound)
	})
}

// GetPort returns the port row for portID.
func (s *GORMStore) GetPort(ctx context.Context, portID uint16) (*Port, error) {
	return getByField[Port](s.db, ctx, "port_id", portID, ErrPortNotFound)
}

// ListPorts returns every port row, used by the interface manager at
// startup to rebuild listener state after a full rescan.
func (s *GORMStore) ListPorts(ctx context.Context) ([]*Port, error) {
	return listAll[Port](s.db, ctx)
}

// UpdatePortAttr re-writes a single port attribute and bumps genctr for
// every host reachable through any subsystem mapped to this port (spec
// §4.B, MODIFY on PORT/addr_<attr>).
func (s *GORMStore) UpdatePortAttr(ctx context.Context, portID uint16, attr string, value string) error {
	column, err := portAttrColumn(attr)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Port{}).Where("port_id = ?", portID).Update(column, value)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrPortNotFound
		}
		return bumpGenctrForPort(tx, portID)
	})
}

// portAttrColumn maps a configfs addr_<attr> file name to its GORM column.
func portAttrColumn(attr string) (string, error) {
	switch attr {
	case "addr_trtype", "trtype":
		return "tr_type", nil
	case "addr_adrfam", "adrfam":
		return "adr_fam", nil
	case "addr_traddr", "traddr":
		return "tr_addr", nil
	case "addr_trsvcid", "trsvcid":
		return "tr_svc_id", nil
	case "addr_treq", "treq":
		return "t_req", nil
	case "addr_tsas", "tsas":
		return "tsas", nil
	default:
		return "", fmt.Errorf("discdb: unknown port attribute %q", attr)
	}
}
