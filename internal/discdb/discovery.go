package discdb

import "context"

// discEntryRow is the scan target for the discovery join.
type discEntryRow struct {
	TrType    TrType
	AdrFam    AdrFam
	TReq      TReq
	PortID    uint16
	TrSvcID   string
	SubNQN    string
	TrAddr    string
	Tsas      string
}

// HostDiscEntries enumerates every (subsystem,port) visible to hostNQN:
// subsystems explicitly linked to the host via host_subsys, unioned with
// every allow_any_host subsystem, joined against subsys_port and port
// (spec §4.A, §6). Ordering is deterministic (subsys NQN, then port id)
// so that a caller paging by offset/max_len sees a stable sequence.
func (s *GORMStore) HostDiscEntries(ctx context.Context, hostNQN string) ([]DiscEntry, error) {
	var rows []discEntryRow

	query := `
		SELECT p.tr_type AS tr_type, p.adr_fam AS adr_fam, p.t_req AS t_req,
		       p.port_id AS port_id, p.tr_svc_id AS tr_svc_id,
		       sp.subsys_nqn AS sub_nqn, p.tr_addr AS tr_addr, p.tsas AS tsas
		FROM subsys_port sp
		JOIN port p ON p.port_id = sp.port_id
		JOIN subsys s ON s.nqn = sp.subsys_nqn
		WHERE s.allow_any_host = ?
		   OR EXISTS (
		        SELECT 1 FROM host_subsys hs
		        WHERE hs.subsys_nqn = sp.subsys_nqn AND hs.host_nqn = ?
		   )
		ORDER BY sp.subsys_nqn, p.port_id
	`

	if err := s.db.WithContext(ctx).Raw(query, true, hostNQN).Scan(&rows).Error; err != nil {
		return nil, err
	}

	entries := make([]DiscEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, DiscEntry{
			TrType:  r.TrType,
			AdrFam:  r.AdrFam,
			TReq:    r.TReq,
			PortID:  r.PortID,
			TrSvcID: r.TrSvcID,
			SubNQN:  r.SubNQN,
			TrAddr:  r.TrAddr,
			Tsas:    r.Tsas,
		})
	}
	return entries, nil
}
