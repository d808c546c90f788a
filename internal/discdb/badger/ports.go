package badger

import (
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"
	"context"

	"github.com/hreinecke/nvme-discd-go/internal/discdb"
)

// CreatePort inserts a port row. A pre-existing port id is ignored.
func (s *Store) CreatePort(ctx context.Context, p *discdb.Port) error {
	return s.db.Update(func(txn *badgerdb.Txn) error {
		if _, err := txn.Get(keyPort(p.PortID)); err == nil {
			return nil
		} else if err != badgerdb.ErrKeyNotFound {
			return err
		}
		data, err := encodePort(p)
		if err != nil {
			return err
		}
		return txn.Set(keyPort(p.PortID), data)
	})
}

// DeletePort removes a port row and its subsys_port rows, bumping genctr
// for every affected host first.
func (s *Store) DeletePort(ctx context.Context, portID uint16) error {
	return s.db.Update(func(txn *badgerdb.Txn) error {
		if _, err := txn.Get(keyPort(portID)); err == badgerdb.ErrKeyNotFound {
			return discdb.ErrPortNotFound
		} else if err != nil {
			return err
		}
		if err := bumpGenctrForPort(txn, portID); err != nil {
			return err
		}

		subsysNQNs, err := subsysForPort(txn, portID)
		if err != nil {
			return err
		}
		for _, snqn := range subsysNQNs {
			if err := txn.Delete(keySubPort(snqn, portID)); err != nil {
				return err
			}
			if err := txn.Delete(keyPortSub(portID, snqn)); err != nil {
				return err
			}
		}

		return txn.Delete(keyPort(portID))
	})
}

// GetPort returns the port row for portID.
func (s *Store) GetPort(ctx context.Context, portID uint16) (*discdb.Port, error) {
	var result *discdb.Port
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(keyPort(portID))
		if err == badgerdb.ErrKeyNotFound {
			return discdb.ErrPortNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			p, err := decodePort(val)
			if err != nil {
				return err
			}
			result = p
			return nil
		})
	})
	return result, err
}

// ListPorts returns every port row.
func (s *Store) ListPorts(ctx context.Context) ([]*discdb.Port, error) {
	var ports []*discdb.Port
	err := s.db.View(func(txn *badgerdb.Txn) error {
		it := txn.NewIterator(badgerdb.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(prefixPort)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				p, err := decodePort(val)
				if err != nil {
					return err
				}
				ports = append(ports, p)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return ports, err
}

// UpdatePortAttr re-writes a single port attribute and bumps genctr for
// every affected host.
func (s *Store) UpdatePortAttr(ctx context.Context, portID uint16, attr string, value string) error {
	return s.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(keyPort(portID))
		if err == badgerdb.ErrKeyNotFound {
			return discdb.ErrPortNotFound
		}
		if err != nil {
			return err
		}
		p, err := decodePort(mustValue(item))
		if err != nil {
			return err
		}
		if err := applyPortAttr(p, attr, value); err != nil {
			return err
		}
		data, err := encodePort(p)
		if err != nil {
			return err
		}
		if err := txn.Set(keyPort(portID), data); err != nil {
			return err
		}
		return bumpGenctrForPort(txn, portID)
	})
}

func applyPortAttr(p *discdb.Port, attr, value string) error {
	switch attr {
	case "addr_trtype", "trtype":
		p.TrType = discdb.TrType(value)
	case "addr_adrfam", "adrfam":
		p.AdrFam = discdb.AdrFam(value)
	case "addr_traddr", "traddr":
		p.TrAddr = value
	case "addr_trsvcid", "trsvcid":
		p.TrSvcID = value
	case "addr_treq", "treq":
		p.TReq = discdb.TReq(value)
	case "addr_tsas", "tsas":
		p.Tsas = value
	default:
		return fmt.Errorf("discdb/badger: unknown port attribute %q", attr)
	}
	return nil
}

// subsysForPort returns every subsystem NQN mapped to portID within txn.
func subsysForPort(txn *badgerdb.Txn, portID uint16) ([]string, error) {
	it := txn.NewIterator(badgerdb.DefaultIteratorOptions)
	defer it.Close()
	prefix := prefixPortSubOf(portID)
	var nqns []string
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		nqns = append(nqns, string(it.Item().Key()[len(prefix):]))
	}
	return nqns, nil
}
