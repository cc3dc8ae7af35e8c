package pool

import (
	"github.com/Londek/r8-mirror/graph"
	"github.com/Londek/r8-mirror/invariant"
	"github.com/Londek/r8-mirror/naming"
)

// Mapping is the result of pool assignment. It is read-only and safe for
// concurrent use by emission workers.
//
// Index lookups of a symbol that was never registered as used, or of a
// symbol in a pool that is absent because nothing of its kind was used, are
// invariant violations.
type Mapping struct {
	lenses Lenses

	classes   []*graph.ProgramClass
	protos    *indexMap[*graph.Proto]
	types     *indexMap[*graph.Type]
	methods   *indexMap[*graph.Method]
	fields    *indexMap[*graph.Field]
	strings   *indexMap[*graph.String]
	callSites *indexMap[*graph.CallSite]
	handles   *indexMap[*graph.MethodHandle]

	firstJumboString *graph.String
}

func lookup[T comparable](m *indexMap[T], item T, kind graph.Kind) int {
	if m == nil {
		panic(invariant.Newf("lookup of %v in the absent %s pool", item, kind))
	}
	i, ok := m.index[item]
	if !ok {
		panic(invariant.Newf("missing dependency: %s %v has no index", kind, item))
	}
	return i
}

// The Index methods return a symbol's index in its pool. They panic when
// the pool is absent or the symbol was never registered as used.

// ProtoIndex returns the proto_ids index of p.
func (m *Mapping) ProtoIndex(p *graph.Proto) int { return lookup(m.protos, p, graph.KindProto) }

// TypeIndex returns the type_ids index of t.
func (m *Mapping) TypeIndex(t *graph.Type) int { return lookup(m.types, t, graph.KindType) }

// FieldIndex returns the field_ids index of f.
func (m *Mapping) FieldIndex(f *graph.Field) int { return lookup(m.fields, f, graph.KindField) }

// StringIndex returns the string_ids index of s.
func (m *Mapping) StringIndex(s *graph.String) int {
	return lookup(m.strings, s, graph.KindString)
}

// MethodIndex returns the method_ids index of x.
func (m *Mapping) MethodIndex(x *graph.Method) int {
	return lookup(m.methods, x, graph.KindMethod)
}

// CallSiteIndex returns the call_site_ids index of cs.
func (m *Mapping) CallSiteIndex(cs *graph.CallSite) int {
	return lookup(m.callSites, cs, graph.KindCallSite)
}

// MethodHandleIndex returns the method_handles index of h.
func (m *Mapping) MethodHandleIndex(h *graph.MethodHandle) int {
	return lookup(m.handles, h, graph.KindMethodHandle)
}

// Classes returns the class definitions in output order.
func (m *Mapping) Classes() []*graph.ProgramClass {
	return append([]*graph.ProgramClass{}, m.classes...)
}

// The pool views below return the symbols in index order, or an empty
// slice when the pool is absent.

// Protos returns the proto pool.
func (m *Mapping) Protos() []*graph.Proto { return m.protos.keysOrEmpty() }

// Types returns the type pool.
func (m *Mapping) Types() []*graph.Type { return m.types.keysOrEmpty() }

// Methods returns the method pool.
func (m *Mapping) Methods() []*graph.Method { return m.methods.keysOrEmpty() }

// Fields returns the field pool.
func (m *Mapping) Fields() []*graph.Field { return m.fields.keysOrEmpty() }

// Strings returns the string pool, jumbo strings included.
func (m *Mapping) Strings() []*graph.String { return m.strings.keysOrEmpty() }

// CallSites returns the call site pool.
func (m *Mapping) CallSites() []*graph.CallSite { return m.callSites.keysOrEmpty() }

// MethodHandles returns the method handle pool.
func (m *Mapping) MethodHandles() []*graph.MethodHandle { return m.handles.keysOrEmpty() }

// Count returns the number of entries in the pool of kind.
func (m *Mapping) Count(kind graph.Kind) int {
	switch kind {
	case graph.KindClass:
		return len(m.classes)
	case graph.KindProto:
		return m.protos.len()
	case graph.KindType:
		return m.types.len()
	case graph.KindMethod:
		return m.methods.len()
	case graph.KindField:
		return m.fields.len()
	case graph.KindString:
		return m.strings.len()
	case graph.KindCallSite:
		return m.callSites.len()
	case graph.KindMethodHandle:
		return m.handles.len()
	}
	panic(invariant.Unreachable("kind %s", kind))
}

// FirstString returns the string at index 0, or nil when no strings are
// used.
func (m *Mapping) FirstString() *graph.String {
	if m.strings == nil {
		return nil
	}
	return m.strings.keys[0]
}

// HasJumboStrings reports whether some string index does not fit in 16 bits.
func (m *Mapping) HasJumboStrings() bool { return m.firstJumboString != nil }

// FirstJumboString returns the string at index IndexLimit, or nil.
func (m *Mapping) FirstJumboString() *graph.String { return m.firstJumboString }

func (m *Mapping) GraphLens() graph.Lens { return m.lenses.Graph }

func (m *Mapping) NamingLens() naming.Lens { return m.lenses.Naming }

// ClinitField returns the field an init-class of t reads.
func (m *Mapping) ClinitField(t *graph.Type) *graph.Field {
	if m.lenses.InitClass == nil {
		panic(invariant.Newf("init-class of %s without an init-class lens", t))
	}
	return m.lenses.InitClass.InitClassField(t)
}
