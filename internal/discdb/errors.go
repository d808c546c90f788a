package discdb

import "errors"

// Store error kinds (spec §4.A, §7 "Store" error class). The store never
// panics on a conflicting write: a duplicate insert is treated as a
// replay and the Create*/Link* methods return nil for it.
var (
	ErrNotFound     = errors.New("discdb: not found")
	ErrDuplicate    = errors.New("discdb: duplicate")
	ErrFKViolation  = errors.New("discdb: foreign key violation")

	ErrHostNotFound      = errors.New("discdb: host not found")
	ErrSubsysNotFound    = errors.New("discdb: subsystem not found")
	ErrPortNotFound      = errors.New("discdb: port not found")
	ErrHostSubsysNotFound   = errors.New("discdb: host_subsys link not found")
	ErrSubsysPortNotFound   = errors.New("discdb: subsys_port link not found")

	ErrDuplicateHost    = errors.New("discdb: host already exists")
	ErrDuplicateSubsys  = errors.New("discdb: subsystem already exists")
	ErrDuplicatePort    = errors.New("discdb: port already exists")
)
