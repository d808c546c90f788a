package badger

import (
	"context"
	"sort"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/hreinecke/nvme-discd-go/internal/discdb"
)

// HostDiscEntries enumerates every (subsystem,port) visible to hostNQN
// (spec §4.A). Results are sorted by subsystem NQN then port id to give
// callers a stable sequence for offset/max_len paging.
func (s *Store) HostDiscEntries(ctx context.Context, hostNQN string) ([]discdb.DiscEntry, error) {
	var entries []discdb.DiscEntry

	err := s.db.View(func(txn *badgerdb.Txn) error {
		visible := make(map[string]bool)

		// Explicit host_subsys links.
		it := txn.NewIterator(badgerdb.DefaultIteratorOptions)
		prefix := []byte(prefixHostSub + hostNQN + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			visible[string(it.Item().Key()[len(prefix):])] = true
		}
		it.Close()

		// allow_any_host subsystems.
		sit := txn.NewIterator(badgerdb.DefaultIteratorOptions)
		sprefix := []byte(prefixSubsys)
		for sit.Seek(sprefix); sit.ValidForPrefix(sprefix); sit.Next() {
			item := sit.Item()
			err := item.Value(func(val []byte) error {
				rec, err := decodeSubsysRecord(val)
				if err != nil {
					return err
				}
				if rec.AllowAnyHost {
					visible[rec.NQN] = true
				}
				return nil
			})
			if err != nil {
				sit.Close()
				return err
			}
		}
		sit.Close()

		for subsysNQN := range visible {
			pit := txn.NewIterator(badgerdb.DefaultIteratorOptions)
			pprefix := prefixSubPortOf(subsysNQN)
			for pit.Seek(pprefix); pit.ValidForPrefix(pprefix); pit.Next() {
				portBytes := pit.Item().Key()[len(pprefix):]
				if len(portBytes) != 2 {
					continue
				}
				portID := uint16(portBytes[0])<<8 | uint16(portBytes[1])
				portItem, err := txn.Get(keyPort(portID))
				if err != nil {
					continue
				}
				p, err := decodePort(mustValue(portItem))
				if err != nil {
					pit.Close()
					return err
				}
				entries = append(entries, discdb.DiscEntry{
					TrType:  p.TrType,
					AdrFam:  p.AdrFam,
					TReq:    p.TReq,
					PortID:  p.PortID,
					TrSvcID: p.TrSvcID,
					SubNQN:  subsysNQN,
					TrAddr:  p.TrAddr,
					Tsas:    p.Tsas,
				})
			}
			pit.Close()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].SubNQN != entries[j].SubNQN {
			return entries[i].SubNQN < entries[j].SubNQN
		}
		return entries[i].PortID < entries[j].PortID
	})

	return entries, nil
}
