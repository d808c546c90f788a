package badger

import badgerdb "github.com/dgraph-io/badger/v4"

// affectedHostsForSubsys returns every host whose visibility of subsysNQN
// is governed directly: those explicitly linked, plus — if allow_any_host
// — every known host (mirrors discdb's GORM implementation).
func affectedHostsForSubsys(txn *badgerdb.Txn, subsysNQN string) ([]string, error) {
	item, err := txn.Get(keySubsys(subsysNQN))
	if err != nil {
		return nil, err
	}
	rec, err := decodeSubsysRecord(mustValue(item))
	if err != nil {
		return nil, err
	}
	if rec.AllowAnyHost {
		return allHostNQNs(txn)
	}

	it := txn.NewIterator(badgerdb.DefaultIteratorOptions)
	defer it.Close()
	prefix := prefixSubHostOf(subsysNQN)
	var hosts []string
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		hosts = append(hosts, string(it.Item().Key()[len(prefix):]))
	}
	return hosts, nil
}

// bumpGenctrForSubsys bumps every host currently associated with subsysNQN.
func bumpGenctrForSubsys(txn *badgerdb.Txn, subsysNQN string) error {
	hosts, err := affectedHostsForSubsys(txn, subsysNQN)
	if err != nil {
		return err
	}
	for _, h := range hosts {
		if err := bumpHostGenctr(txn, h); err != nil {
			return err
		}
	}
	return nil
}

// bumpGenctrForPort bumps every host affected by a change to portID.
func bumpGenctrForPort(txn *badgerdb.Txn, portID uint16) error {
	nqns, err := subsysForPort(txn, portID)
	if err != nil {
		return err
	}
	for _, s := range nqns {
		if err := bumpGenctrForSubsys(txn, s); err != nil {
			return err
		}
	}
	return nil
}
