package pool

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/xxh3"

	"github.com/Londek/r8-mirror/graph"
	"github.com/Londek/r8-mirror/graph/structkey"
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("pool: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Entry is one pool slot: the structural key of the symbol and its printed
// form.
type Entry struct {
	Key  []byte `cbor:"1,keyasint"`
	Name string `cbor:"2,keyasint"`
}

// Snapshot is a factory-independent copy of a Mapping. Two compilations of
// the same input produce byte-identical snapshots.
type Snapshot struct {
	Classes       []Entry `cbor:"1,keyasint"`
	Protos        []Entry `cbor:"2,keyasint"`
	Types         []Entry `cbor:"3,keyasint"`
	Methods       []Entry `cbor:"4,keyasint"`
	Fields        []Entry `cbor:"5,keyasint"`
	Strings       []Entry `cbor:"6,keyasint"`
	CallSites     []Entry `cbor:"7,keyasint"`
	MethodHandles []Entry `cbor:"8,keyasint"`
	// JumboFrom is the index of the first jumbo string, 0 when there is none.
	JumboFrom int `cbor:"9,keyasint,omitempty"`
}

func entries[T graph.Item](items []T) []Entry {
	out := make([]Entry, len(items))
	for i, item := range items {
		out[i] = Entry{Key: structkey.Of(item), Name: item.String()}
	}
	return out
}

// Snapshot copies the pools in index order.
func (m *Mapping) Snapshot() *Snapshot {
	s := &Snapshot{
		Classes:       entries(m.classes),
		Protos:        entries(m.Protos()),
		Types:         entries(m.Types()),
		Methods:       entries(m.Methods()),
		Fields:        entries(m.Fields()),
		Strings:       entries(m.Strings()),
		CallSites:     entries(m.CallSites()),
		MethodHandles: entries(m.MethodHandles()),
	}
	if m.HasJumboStrings() {
		s.JumboFrom = IndexLimit
	}
	return s
}

// Marshal serializes the snapshot to canonical CBOR.
func (s *Snapshot) Marshal() ([]byte, error) {
	return cborEncMode.Marshal(s)
}

// UnmarshalSnapshot deserializes a snapshot.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("pool: unmarshal snapshot: %w", err)
	}
	return &s, nil
}

// Digest fingerprints the snapshot's canonical encoding.
func (s *Snapshot) Digest() (uint64, error) {
	data, err := s.Marshal()
	if err != nil {
		return 0, err
	}
	return xxh3.Hash(data), nil
}
