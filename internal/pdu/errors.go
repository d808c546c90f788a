package pdu

import (
	"errors"
	"fmt"
)

// ErrMalformedHeader is returned for a PDU whose common header is
// self-inconsistent (spec §4.D: "a malformed header is fatal").
var ErrMalformedHeader = errors.New("pdu: malformed header")

func errShort(what string, want, got int) error {
	return fmt.Errorf("pdu: short %s: want %d bytes, got %d: %w", what, want, got, ErrMalformedHeader)
}

func errWrongType(want, got Type) error {
	return fmt.Errorf("pdu: expected %s, got %s: %w", want, got, ErrMalformedHeader)
}
