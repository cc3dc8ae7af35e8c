// Package graph holds the symbol model shared by the lowering passes and the
// pool assignment: strings, types, prototypes, field and method references,
// method handles, call sites, and the program classes being compiled.
//
// Symbols are interned by a Factory. Two symbols are the same symbol exactly
// when they are the same pointer, so symbols can be used directly as map keys.
package graph

import (
	"strings"
)

// Kind identifies the pool a symbol belongs to.
type Kind uint8

const (
	KindString Kind = iota
	KindType
	KindProto
	KindField
	KindMethod
	KindMethodHandle
	KindCallSite
	KindClass
)

var kindNames = [...]string{
	KindString:       "string",
	KindType:         "type",
	KindProto:        "proto",
	KindField:        "field",
	KindMethod:       "method",
	KindMethodHandle: "method handle",
	KindCallSite:     "call site",
	KindClass:        "class",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Item is a symbol that can receive a pool index. The set of implementations
// is closed.
type Item interface {
	Kind() Kind
	String() string
	item()
}

// String is an interned string constant.
type String struct {
	Value string
}

// Type is an interned type reference named by its descriptor.
type Type struct {
	Descriptor *String
}

// Proto is a method prototype: return type and parameter types, plus the
// shorty string that summarises them.
type Proto struct {
	Shorty *String
	Return *Type
	Params []*Type
}

// Field is a field reference.
type Field struct {
	Holder *Type
	Type   *Type
	Name   *String
}

// Method is a method reference.
type Method struct {
	Holder *Type
	Proto  *Proto
	Name   *String
}

// MethodHandleType is the kind of member access a method handle performs.
// The values match the dex method_handle_item encoding.
type MethodHandleType uint8

const (
	HandleStaticPut MethodHandleType = iota
	HandleStaticGet
	HandleInstancePut
	HandleInstanceGet
	HandleInvokeStatic
	HandleInvokeInstance
	HandleInvokeConstructor
	HandleInvokeDirect
	HandleInvokeInterface
)

var handleTypeNames = [...]string{
	HandleStaticPut:         "static-put",
	HandleStaticGet:         "static-get",
	HandleInstancePut:       "instance-put",
	HandleInstanceGet:       "instance-get",
	HandleInvokeStatic:      "invoke-static",
	HandleInvokeInstance:    "invoke-instance",
	HandleInvokeConstructor: "invoke-constructor",
	HandleInvokeDirect:      "invoke-direct",
	HandleInvokeInterface:   "invoke-interface",
}

func (t MethodHandleType) String() string {
	if int(t) < len(handleTypeNames) {
		return handleTypeNames[t]
	}
	return "unknown"
}

// IsFieldHandle reports whether handles of this type refer to a field.
func (t MethodHandleType) IsFieldHandle() bool {
	return t <= HandleInstanceGet
}

// MethodHandle refers to either a field or a method, never both.
type MethodHandle struct {
	HandleType MethodHandleType
	Field      *Field
	Method     *Method
}

// Member returns the referenced field or method.
func (h *MethodHandle) Member() Item {
	if h.Field != nil {
		return h.Field
	}
	return h.Method
}

// CallSite is an invoke-custom call site.
type CallSite struct {
	MethodName    *String
	MethodProto   *Proto
	Bootstrap     *MethodHandle
	BootstrapArgs []Item
}

// ProgramClass is a class definition being compiled. Super is nil only for
// the root of the hierarchy.
type ProgramClass struct {
	Type       *Type
	Super      *Type
	Interfaces []*Type
}

func (*String) Kind() Kind       { return KindString }
func (*Type) Kind() Kind         { return KindType }
func (*Proto) Kind() Kind        { return KindProto }
func (*Field) Kind() Kind        { return KindField }
func (*Method) Kind() Kind       { return KindMethod }
func (*MethodHandle) Kind() Kind { return KindMethodHandle }
func (*CallSite) Kind() Kind     { return KindCallSite }
func (*ProgramClass) Kind() Kind { return KindClass }

func (*String) item()       {}
func (*Type) item()         {}
func (*Proto) item()        {}
func (*Field) item()        {}
func (*Method) item()       {}
func (*MethodHandle) item() {}
func (*CallSite) item()     {}
func (*ProgramClass) item() {}

func (s *String) String() string { return s.Value }

func (t *Type) String() string { return t.Descriptor.Value }

func (p *Proto) String() string { return p.Descriptor() }

// Descriptor returns the JVM method descriptor, e.g. "(IJ)V".
func (p *Proto) Descriptor() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for _, param := range p.Params {
		sb.WriteString(param.Descriptor.Value)
	}
	sb.WriteByte(')')
	sb.WriteString(p.Return.Descriptor.Value)
	return sb.String()
}

func (f *Field) String() string {
	return f.Holder.String() + "->" + f.Name.Value + ":" + f.Type.String()
}

func (m *Method) String() string {
	return m.Holder.String() + "->" + m.Name.Value + m.Proto.Descriptor()
}

// IsInstanceInitializer reports whether m names a constructor.
func (m *Method) IsInstanceInitializer() bool {
	return m.Name.Value == "<init>"
}

func (h *MethodHandle) String() string {
	return h.HandleType.String() + "@" + h.Member().String()
}

func (c *CallSite) String() string {
	var sb strings.Builder
	sb.WriteString(c.MethodName.Value)
	sb.WriteString(c.MethodProto.Descriptor())
	sb.WriteString(" bsm=")
	sb.WriteString(c.Bootstrap.String())
	for _, arg := range c.BootstrapArgs {
		sb.WriteString(", ")
		sb.WriteString(arg.String())
	}
	return sb.String()
}

func (c *ProgramClass) String() string { return c.Type.String() }

// ShortyChar returns the shorty character for the type: the descriptor's
// first byte for primitives and void, 'L' for references.
func (t *Type) ShortyChar() byte {
	d := t.Descriptor.Value
	if d[0] == '[' {
		return 'L'
	}
	return d[0]
}

// IsPrimitive reports whether t is a primitive value type (not void).
func (t *Type) IsPrimitive() bool {
	switch t.Descriptor.Value {
	case "Z", "B", "S", "C", "I", "J", "F", "D":
		return true
	}
	return false
}

func (t *Type) IsVoid() bool { return t.Descriptor.Value == "V" }

func (t *Type) IsArray() bool { return t.Descriptor.Value[0] == '[' }

func (t *Type) IsClassType() bool { return t.Descriptor.Value[0] == 'L' }

// IsWide reports whether values of t take two registers or local slots.
func (t *Type) IsWide() bool {
	d := t.Descriptor.Value
	return d == "J" || d == "D"
}

// InternalName returns the JVM internal name: "java/lang/Object" for class
// types and the descriptor itself for arrays and primitives.
func (t *Type) InternalName() string {
	return InternalName(t.Descriptor.Value)
}

// InternalName converts a descriptor to a JVM internal name.
func InternalName(descriptor string) string {
	if len(descriptor) > 2 && descriptor[0] == 'L' && descriptor[len(descriptor)-1] == ';' {
		return descriptor[1 : len(descriptor)-1]
	}
	return descriptor
}
