package structkey

import (
	"encoding/binary"

	"github.com/Londek/r8-mirror/graph"
	"github.com/Londek/r8-mirror/invariant"
)

// ---------------------------------------------------------------------------
// Encoding conventions:
//   - First byte: KeyVersion
//   - Strings: uint32 big-endian length + UTF-8 bytes
//   - Lists: TagTypeList or element count (uint16), then elements inline
//   - Nested symbols: serialized inline with their own tag
// ---------------------------------------------------------------------------

// Of returns the structural key of a symbol. Distinct interned symbols have
// distinct keys.
func Of(item graph.Item) []byte {
	s := &serializer{buf: make([]byte, 0, 64)}
	s.writeByte(KeyVersion)
	s.serializeItem(item)
	return s.buf
}

type serializer struct {
	buf []byte
}

func (s *serializer) writeByte(b byte) {
	s.buf = append(s.buf, b)
}

func (s *serializer) writeUint16(v uint16) {
	s.buf = binary.BigEndian.AppendUint16(s.buf, v)
}

func (s *serializer) writeUint32(v uint32) {
	s.buf = binary.BigEndian.AppendUint32(s.buf, v)
}

func (s *serializer) writeString(v string) {
	s.writeUint32(uint32(len(v)))
	s.buf = append(s.buf, v...)
}

func (s *serializer) writeTypes(types []*graph.Type) {
	s.writeByte(TagTypeList)
	s.writeUint16(uint16(len(types)))
	for _, t := range types {
		s.serializeItem(t)
	}
}

func (s *serializer) serializeItem(item graph.Item) {
	switch n := item.(type) {
	case *graph.String:
		s.writeByte(TagString)
		s.writeString(n.Value)

	case *graph.Type:
		s.writeByte(TagType)
		s.writeString(n.Descriptor.Value)

	case *graph.Proto:
		s.writeByte(TagProto)
		s.serializeItem(n.Return)
		s.writeTypes(n.Params)

	case *graph.Field:
		s.writeByte(TagField)
		s.serializeItem(n.Holder)
		s.writeString(n.Name.Value)
		s.serializeItem(n.Type)

	case *graph.Method:
		s.writeByte(TagMethod)
		s.serializeItem(n.Holder)
		s.writeString(n.Name.Value)
		s.serializeItem(n.Proto)

	case *graph.MethodHandle:
		s.writeByte(TagMethodHandle)
		s.writeByte(byte(n.HandleType))
		s.serializeItem(n.Member())

	case *graph.CallSite:
		s.writeByte(TagCallSite)
		s.writeString(n.MethodName.Value)
		s.serializeItem(n.MethodProto)
		s.serializeItem(n.Bootstrap)
		s.writeUint16(uint16(len(n.BootstrapArgs)))
		for _, arg := range n.BootstrapArgs {
			s.serializeItem(arg)
		}

	case *graph.ProgramClass:
		s.writeByte(TagClass)
		s.serializeItem(n.Type)
		if n.Super == nil {
			s.writeByte(TagNoType)
		} else {
			s.serializeItem(n.Super)
		}
		s.writeTypes(n.Interfaces)

	default:
		panic(invariant.Unreachable("structural key of %T", item))
	}
}
