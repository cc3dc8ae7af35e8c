// Package naming holds the rename table applied to symbols at emission and
// the symbol order derived from it.
package naming

import (
	"strings"

	"github.com/Londek/r8-mirror/graph"
)

// Lens maps symbols to their final names. Symbols without an entry keep
// their own names.
type Lens interface {
	LookupDescriptor(t *graph.Type) string
	LookupFieldName(f *graph.Field) string
	LookupMethodName(m *graph.Method) string
	IsIdentity() bool
}

type identity struct{}

func (identity) LookupDescriptor(t *graph.Type) string   { return t.Descriptor.Value }
func (identity) LookupFieldName(f *graph.Field) string   { return f.Name.Value }
func (identity) LookupMethodName(m *graph.Method) string { return m.Name.Value }
func (identity) IsIdentity() bool                        { return true }

// Identity returns the lens that renames nothing.
func Identity() Lens { return identity{} }

// MapLens is a table-backed Lens. It is populated before compilation and
// read concurrently afterwards.
type MapLens struct {
	classes map[string]string
	fields  map[*graph.Field]string
	methods map[*graph.Method]string
}

func NewMapLens() *MapLens {
	return &MapLens{
		classes: make(map[string]string),
		fields:  make(map[*graph.Field]string),
		methods: make(map[*graph.Method]string),
	}
}

// RenameClass maps a class descriptor to a new descriptor. Array types of
// the class follow the rename.
func (l *MapLens) RenameClass(t *graph.Type, descriptor string) {
	l.classes[t.Descriptor.Value] = descriptor
}

func (l *MapLens) RenameField(f *graph.Field, name string) { l.fields[f] = name }

func (l *MapLens) RenameMethod(m *graph.Method, name string) { l.methods[m] = name }

func (l *MapLens) LookupDescriptor(t *graph.Type) string {
	d := t.Descriptor.Value
	elem := strings.TrimLeft(d, "[")
	if renamed, ok := l.classes[elem]; ok {
		return d[:len(d)-len(elem)] + renamed
	}
	return d
}

func (l *MapLens) LookupFieldName(f *graph.Field) string {
	if name, ok := l.fields[f]; ok {
		return name
	}
	return f.Name.Value
}

func (l *MapLens) LookupMethodName(m *graph.Method) string {
	if name, ok := l.methods[m]; ok {
		return name
	}
	return m.Name.Value
}

func (l *MapLens) IsIdentity() bool {
	return len(l.classes) == 0 && len(l.fields) == 0 && len(l.methods) == 0
}

func (l *MapLens) Len() int {
	return len(l.classes) + len(l.fields) + len(l.methods)
}

// ProtoDescriptor returns the method descriptor of p with every type renamed.
func ProtoDescriptor(p *graph.Proto, lens Lens) string {
	var sb strings.Builder
	sb.WriteByte('(')
	for _, param := range p.Params {
		sb.WriteString(lens.LookupDescriptor(param))
	}
	sb.WriteByte(')')
	sb.WriteString(lens.LookupDescriptor(p.Return))
	return sb.String()
}
