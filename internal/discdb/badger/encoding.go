package badger

import (
	"encoding/binary"
	"encoding/json"
	"time"

	"github.com/hreinecke/nvme-discd-go/internal/discdb"
)

// hostRecord is the JSON-encoded value stored at keyHost; genctr is not
// part of it but lives under its own key as an 8-byte big-endian value,
// so it can be bumped without re-marshalling the record.
type hostRecord struct {
	NQN       string    `json:"nqn"`
	CreatedAt time.Time `json:"created_at"`
}

func encodeHostRecord(r hostRecord) ([]byte, error) {
	return json.Marshal(r)
}

func decodeHostRecord(b []byte) (hostRecord, error) {
	var r hostRecord
	err := json.Unmarshal(b, &r)
	return r, err
}

func encodeGenctr(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func decodeGenctr(b []byte) uint64 {
	if len(b) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func keyHostGenctr(nqn string) []byte {
	return []byte("hg:" + nqn)
}

type subsysRecord struct {
	NQN          string `json:"nqn"`
	AllowAnyHost bool   `json:"allow_any_host"`
}

func encodeSubsysRecord(r subsysRecord) ([]byte, error) { return json.Marshal(r) }

func decodeSubsysRecord(b []byte) (subsysRecord, error) {
	var r subsysRecord
	err := json.Unmarshal(b, &r)
	return r, err
}

func encodePort(p *discdb.Port) ([]byte, error) { return json.Marshal(p) }

func decodePort(b []byte) (*discdb.Port, error) {
	var p discdb.Port
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
