package uses

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("uses: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// LogEntry is the serialized form of a Record, consumed by tools that do
// their own reachability analysis.
type LogEntry struct {
	Context string `cbor:"1,keyasint,omitempty"`
	Offset  int    `cbor:"2,keyasint"`
	Access  string `cbor:"3,keyasint"`
	Kind    string `cbor:"4,keyasint"`
	Symbol  string `cbor:"5,keyasint"`
}

// MarshalLog serializes the sealed use log to canonical CBOR.
func MarshalLog(records []Record) ([]byte, error) {
	entries := make([]LogEntry, len(records))
	for i, r := range records {
		e := LogEntry{Offset: r.Offset, Access: r.Kind.String(), Kind: r.Item.Kind().String(), Symbol: r.Item.String()}
		if r.Context != nil {
			e.Context = r.Context.String()
		}
		entries[i] = e
	}
	return cborEncMode.Marshal(entries)
}

// UnmarshalLog deserializes a use log.
func UnmarshalLog(data []byte) ([]LogEntry, error) {
	var entries []LogEntry
	if err := cbor.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("uses: unmarshal log: %w", err)
	}
	return entries, nil
}
