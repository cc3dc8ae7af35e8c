package graph

import "github.com/Londek/r8-mirror/invariant"

// Lens maps a symbol to the symbol earlier passes rewrote it to. Emission
// consults the lens once per instruction so that instructions can keep the
// references they were built with.
type Lens interface {
	LookupType(t *Type) *Type
	LookupField(f *Field) *Field
	LookupMethod(m *Method) *Method
	IsIdentity() bool
}

type identityLens struct{}

func (identityLens) LookupType(t *Type) *Type       { return t }
func (identityLens) LookupField(f *Field) *Field    { return f }
func (identityLens) LookupMethod(m *Method) *Method { return m }
func (identityLens) IsIdentity() bool               { return true }

// IdentityLens returns the lens that maps every symbol to itself.
func IdentityLens() Lens { return identityLens{} }

// RewriteLens is a table-backed lens. Symbols absent from the table map to
// themselves. A RewriteLens is populated before compilation and read
// concurrently afterwards.
type RewriteLens struct {
	types   map[*Type]*Type
	fields  map[*Field]*Field
	methods map[*Method]*Method
}

func NewRewriteLens() *RewriteLens {
	return &RewriteLens{
		types:   make(map[*Type]*Type),
		fields:  make(map[*Field]*Field),
		methods: make(map[*Method]*Method),
	}
}

func (l *RewriteLens) MapType(from, to *Type)     { l.types[from] = to }
func (l *RewriteLens) MapField(from, to *Field)   { l.fields[from] = to }
func (l *RewriteLens) MapMethod(from, to *Method) { l.methods[from] = to }

func (l *RewriteLens) LookupType(t *Type) *Type {
	if to, ok := l.types[t]; ok {
		return to
	}
	return t
}

func (l *RewriteLens) LookupField(f *Field) *Field {
	if to, ok := l.fields[f]; ok {
		return to
	}
	return f
}

func (l *RewriteLens) LookupMethod(m *Method) *Method {
	if to, ok := l.methods[m]; ok {
		return to
	}
	return m
}

func (l *RewriteLens) IsIdentity() bool {
	return len(l.types) == 0 && len(l.fields) == 0 && len(l.methods) == 0
}

// InitClassLens names the static field whose read triggers initialization
// of a class. An init-class instruction lowers to a read of that field.
type InitClassLens interface {
	InitClassField(t *Type) *Field
}

// InitClassFields is a map-backed InitClassLens.
type InitClassFields map[*Type]*Field

func (m InitClassFields) InitClassField(t *Type) *Field {
	f, ok := m[t]
	if !ok {
		panic(invariant.Newf("no init-class field for %s", t))
	}
	return f
}
