package graph

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Londek/r8-mirror/invariant"
)

// ErrBadDescriptor is returned when a descriptor or member reference cannot
// be parsed.
var ErrBadDescriptor = errors.New("malformed descriptor")

type fieldKey struct {
	holder, typ *Type
	name        *String
}

type methodKey struct {
	holder *Type
	proto  *Proto
	name   *String
}

type handleKey struct {
	kind   MethodHandleType
	member Item
}

// Factory interns symbols. Every symbol handed to the lowering passes and to
// pool assignment must come from the same factory.
//
// The factory is append-only and safe for concurrent use: lookups take the
// read lock and only a miss takes the write lock.
type Factory struct {
	mu        sync.RWMutex
	strings   map[string]*String
	types     map[*String]*Type
	protos    map[string]*Proto
	fields    map[fieldKey]*Field
	methods   map[methodKey]*Method
	handles   map[handleKey]*MethodHandle
	callSites map[string]*CallSite
}

// NewFactory creates an empty factory.
func NewFactory() *Factory {
	return &Factory{
		strings:   make(map[string]*String),
		types:     make(map[*String]*Type),
		protos:    make(map[string]*Proto),
		fields:    make(map[fieldKey]*Field),
		methods:   make(map[methodKey]*Method),
		handles:   make(map[handleKey]*MethodHandle),
		callSites: make(map[string]*CallSite),
	}
}

// intern returns the symbol stored under key, creating it with create on a
// miss. create runs under the write lock and must not call back into f.
func intern[K comparable, V any](f *Factory, m map[K]V, key K, create func() V) V {
	f.mu.RLock()
	if v, ok := m[key]; ok {
		f.mu.RUnlock()
		return v
	}
	f.mu.RUnlock()

	f.mu.Lock()
	defer f.mu.Unlock()

	// Double-check after acquiring write lock
	if v, ok := m[key]; ok {
		return v
	}
	v := create()
	m[key] = v
	return v
}

// String interns a string constant.
func (f *Factory) String(s string) *String {
	return intern(f, f.strings, s, func() *String { return &String{Value: s} })
}

// LookupString returns the interned string without creating it.
func (f *Factory) LookupString(s string) (*String, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.strings[s]
	return v, ok
}

// Type interns a type by descriptor. The descriptor is not validated; use
// ParseType for untrusted input.
func (f *Factory) Type(descriptor string) *Type {
	d := f.String(descriptor)
	return intern(f, f.types, d, func() *Type { return &Type{Descriptor: d} })
}

// ParseType validates a single field descriptor and interns it.
func (f *Factory) ParseType(descriptor string) (*Type, error) {
	n, err := scanType(descriptor, 0)
	if err != nil {
		return nil, err
	}
	if n != len(descriptor) {
		return nil, fmt.Errorf("%w: trailing input in %q", ErrBadDescriptor, descriptor)
	}
	return f.Type(descriptor), nil
}

// Proto interns a prototype.
func (f *Factory) Proto(ret *Type, params ...*Type) *Proto {
	var key strings.Builder
	shorty := make([]byte, 0, len(params)+1)
	shorty = append(shorty, ret.ShortyChar())
	key.WriteByte('(')
	for _, p := range params {
		key.WriteString(p.Descriptor.Value)
		shorty = append(shorty, p.ShortyChar())
	}
	key.WriteByte(')')
	key.WriteString(ret.Descriptor.Value)

	s := f.String(string(shorty))
	ps := append([]*Type(nil), params...)
	return intern(f, f.protos, key.String(), func() *Proto {
		return &Proto{Shorty: s, Return: ret, Params: ps}
	})
}

// ParseProto parses and interns a method descriptor such as "(IJ)V".
func (f *Factory) ParseProto(descriptor string) (*Proto, error) {
	if len(descriptor) < 3 || descriptor[0] != '(' {
		return nil, fmt.Errorf("%w: method descriptor %q", ErrBadDescriptor, descriptor)
	}
	var params []*Type
	i := 1
	for i < len(descriptor) && descriptor[i] != ')' {
		end, err := scanType(descriptor, i)
		if err != nil {
			return nil, err
		}
		if descriptor[i] == 'V' {
			return nil, fmt.Errorf("%w: void parameter in %q", ErrBadDescriptor, descriptor)
		}
		params = append(params, f.Type(descriptor[i:end]))
		i = end
	}
	if i >= len(descriptor) {
		return nil, fmt.Errorf("%w: unterminated parameters in %q", ErrBadDescriptor, descriptor)
	}
	end, err := scanType(descriptor, i+1)
	if err != nil {
		return nil, err
	}
	if end != len(descriptor) {
		return nil, fmt.Errorf("%w: trailing input in %q", ErrBadDescriptor, descriptor)
	}
	return f.Proto(f.Type(descriptor[i+1:]), params...), nil
}

// Field interns a field reference.
func (f *Factory) Field(holder, typ *Type, name string) *Field {
	n := f.String(name)
	return intern(f, f.fields, fieldKey{holder, typ, n}, func() *Field {
		return &Field{Holder: holder, Type: typ, Name: n}
	})
}

// ParseField parses a reference of the form "Lpkg/Holder;->name:Type".
func (f *Factory) ParseField(ref string) (*Field, error) {
	holder, rest, err := f.splitMember(ref)
	if err != nil {
		return nil, err
	}
	name, desc, ok := strings.Cut(rest, ":")
	if !ok || name == "" {
		return nil, fmt.Errorf("%w: field reference %q", ErrBadDescriptor, ref)
	}
	typ, err := f.ParseType(desc)
	if err != nil {
		return nil, err
	}
	return f.Field(holder, typ, name), nil
}

// Method interns a method reference.
func (f *Factory) Method(holder *Type, name string, proto *Proto) *Method {
	n := f.String(name)
	return intern(f, f.methods, methodKey{holder, proto, n}, func() *Method {
		return &Method{Holder: holder, Proto: proto, Name: n}
	})
}

// ParseMethod parses a reference of the form "Lpkg/Holder;->name(I)V".
func (f *Factory) ParseMethod(ref string) (*Method, error) {
	holder, rest, err := f.splitMember(ref)
	if err != nil {
		return nil, err
	}
	paren := strings.IndexByte(rest, '(')
	if paren <= 0 {
		return nil, fmt.Errorf("%w: method reference %q", ErrBadDescriptor, ref)
	}
	proto, err := f.ParseProto(rest[paren:])
	if err != nil {
		return nil, err
	}
	return f.Method(holder, rest[:paren], proto), nil
}

func (f *Factory) splitMember(ref string) (*Type, string, error) {
	holderDesc, rest, ok := strings.Cut(ref, "->")
	if !ok {
		return nil, "", fmt.Errorf("%w: member reference %q", ErrBadDescriptor, ref)
	}
	holder, err := f.ParseType(holderDesc)
	if err != nil {
		return nil, "", err
	}
	return holder, rest, nil
}

// FieldHandle interns a method handle that accesses a field.
func (f *Factory) FieldHandle(kind MethodHandleType, field *Field) *MethodHandle {
	if !kind.IsFieldHandle() {
		panic(invariant.Newf("%s is not a field handle type", kind))
	}
	return intern(f, f.handles, handleKey{kind, field}, func() *MethodHandle {
		return &MethodHandle{HandleType: kind, Field: field}
	})
}

// MethodHandle interns a method handle that invokes a method.
func (f *Factory) MethodHandle(kind MethodHandleType, method *Method) *MethodHandle {
	if kind.IsFieldHandle() {
		panic(invariant.Newf("%s is not a method handle type", kind))
	}
	return intern(f, f.handles, handleKey{kind, method}, func() *MethodHandle {
		return &MethodHandle{HandleType: kind, Method: method}
	})
}

// CallSite interns a call site. Bootstrap arguments are limited to strings,
// types, protos and method handles.
func (f *Factory) CallSite(name string, proto *Proto, bootstrap *MethodHandle, args ...Item) *CallSite {
	n := f.String(name)
	var key strings.Builder
	key.WriteString(name)
	key.WriteString(proto.Descriptor())
	key.WriteByte(0)
	key.WriteString(bootstrap.String())
	for _, arg := range args {
		switch arg.(type) {
		case *String, *Type, *Proto, *MethodHandle:
		default:
			panic(invariant.Newf("unsupported bootstrap argument %T", arg))
		}
		key.WriteByte(0)
		key.WriteByte(byte(arg.Kind()))
		key.WriteString(arg.String())
	}
	as := append([]Item(nil), args...)
	return intern(f, f.callSites, key.String(), func() *CallSite {
		return &CallSite{MethodName: n, MethodProto: proto, Bootstrap: bootstrap, BootstrapArgs: as}
	})
}

// scanType returns the end offset of the field descriptor starting at i.
func scanType(s string, i int) (int, error) {
	start := i
	for i < len(s) && s[i] == '[' {
		i++
	}
	if i >= len(s) {
		return 0, fmt.Errorf("%w: %q", ErrBadDescriptor, s)
	}
	switch s[i] {
	case 'Z', 'B', 'S', 'C', 'I', 'J', 'F', 'D':
		return i + 1, nil
	case 'V':
		if i != start {
			return 0, fmt.Errorf("%w: void array in %q", ErrBadDescriptor, s)
		}
		return i + 1, nil
	case 'L':
		end := strings.IndexByte(s[i:], ';')
		if end <= 1 {
			return 0, fmt.Errorf("%w: unterminated class name in %q", ErrBadDescriptor, s)
		}
		return i + end + 1, nil
	}
	return 0, fmt.Errorf("%w: unexpected %q in %q", ErrBadDescriptor, s[i], s)
}
