// Package structkey serializes a symbol's structure to a deterministic byte
// key. Keys identify symbols across compilations independently of pointer
// identity; pool snapshots are built from them.
package structkey

// ---------------------------------------------------------------------------
// Frozen tag bytes for the structural key format.
//
// These tags are FROZEN. Adding new tags is fine; changing an existing one
// changes every snapshot digest computed so far.
// ---------------------------------------------------------------------------

// KeyVersion is the first byte of every key.
const KeyVersion byte = 1

const (
	TagReservedZero byte = 0x00

	TagString       byte = 0x01
	TagType         byte = 0x02
	TagProto        byte = 0x03
	TagField        byte = 0x04
	TagMethod       byte = 0x05
	TagMethodHandle byte = 0x06
	TagCallSite     byte = 0x07
	TagClass        byte = 0x08

	// Reserved 0x09-0x0F

	// Type lists (proto parameters, interfaces)
	TagTypeList byte = 0x10
	TagNoType   byte = 0x11
)

// allTags lists every defined tag for uniqueness verification in tests.
var allTags = []byte{
	TagReservedZero,
	TagString, TagType, TagProto, TagField, TagMethod,
	TagMethodHandle, TagCallSite, TagClass,
	TagTypeList, TagNoType,
}
