// Package ir is the typed intermediate representation both instruction
// forms lower into and out of.
package ir

import (
	"fmt"

	"github.com/Londek/r8-mirror/graph"
	"github.com/Londek/r8-mirror/invariant"
)

// ValueType is the type of a value as the register and stack forms see it.
// The imprecise types come from register-form code, where a 32-bit or 64-bit
// move does not say whether it carries an integer or a float.
type ValueType uint8

const (
	Object ValueType = iota
	Int
	Float
	Long
	Double
	IntOrFloat
	LongOrDouble
)

var valueTypeNames = [...]string{
	Object:       "OBJECT",
	Int:          "INT",
	Float:        "FLOAT",
	Long:         "LONG",
	Double:       "DOUBLE",
	IntOrFloat:   "INT_OR_FLOAT",
	LongOrDouble: "LONG_OR_DOUBLE",
}

func (t ValueType) String() string {
	if int(t) < len(valueTypeNames) {
		return valueTypeNames[t]
	}
	return fmt.Sprintf("ValueType(%d)", uint8(t))
}

func (t ValueType) IsWide() bool {
	return t == Long || t == Double || t == LongOrDouble
}

// IsPrecise reports whether t names exactly one machine type.
func (t ValueType) IsPrecise() bool {
	return t != IntOrFloat && t != LongOrDouble
}

// RequiredRegisters is the number of registers or local slots a value of t
// occupies.
func (t ValueType) RequiredRegisters() int {
	if t.IsWide() {
		return 2
	}
	return 1
}

// MoveType returns the register-form move family carrying t.
func (t ValueType) MoveType() MoveType {
	switch t {
	case Object:
		return MoveObject
	case Long, Double, LongOrDouble:
		return MoveWide
	default:
		return MoveSingle
	}
}

// ValueTypeOf returns the value type of a field, parameter or return type.
// Calling it for void is an invariant violation.
func ValueTypeOf(t *graph.Type) ValueType {
	switch t.Descriptor.Value[0] {
	case 'L', '[':
		return Object
	case 'Z', 'B', 'S', 'C', 'I':
		return Int
	case 'F':
		return Float
	case 'J':
		return Long
	case 'D':
		return Double
	}
	panic(invariant.Unreachable("value type of %s", t))
}

// MemberType is the type of a field or array element: the value types with
// the narrow integer kinds kept apart.
type MemberType uint8

const (
	MemberObject MemberType = iota
	MemberBoolean
	MemberByte
	MemberChar
	MemberShort
	MemberInt
	MemberFloat
	MemberLong
	MemberDouble
	MemberIntOrFloat
	MemberLongOrDouble
)

var memberTypeNames = [...]string{
	MemberObject:       "OBJECT",
	MemberBoolean:      "BOOLEAN",
	MemberByte:         "BYTE",
	MemberChar:         "CHAR",
	MemberShort:        "SHORT",
	MemberInt:          "INT",
	MemberFloat:        "FLOAT",
	MemberLong:         "LONG",
	MemberDouble:       "DOUBLE",
	MemberIntOrFloat:   "INT_OR_FLOAT",
	MemberLongOrDouble: "LONG_OR_DOUBLE",
}

func (t MemberType) String() string {
	if int(t) < len(memberTypeNames) {
		return memberTypeNames[t]
	}
	return fmt.Sprintf("MemberType(%d)", uint8(t))
}

func (t MemberType) IsWide() bool {
	return t == MemberLong || t == MemberDouble || t == MemberLongOrDouble
}

// ValueType widens the member type to the type of the value it produces.
func (t MemberType) ValueType() ValueType {
	switch t {
	case MemberObject:
		return Object
	case MemberBoolean, MemberByte, MemberChar, MemberShort, MemberInt:
		return Int
	case MemberFloat:
		return Float
	case MemberLong:
		return Long
	case MemberDouble:
		return Double
	case MemberIntOrFloat:
		return IntOrFloat
	case MemberLongOrDouble:
		return LongOrDouble
	}
	panic(invariant.Unreachable("member type %d", uint8(t)))
}

// MemberTypeOf returns the member type of a field or array element type.
func MemberTypeOf(t *graph.Type) MemberType {
	switch t.Descriptor.Value[0] {
	case 'L', '[':
		return MemberObject
	case 'Z':
		return MemberBoolean
	case 'B':
		return MemberByte
	case 'C':
		return MemberChar
	case 'S':
		return MemberShort
	case 'I':
		return MemberInt
	case 'F':
		return MemberFloat
	case 'J':
		return MemberLong
	case 'D':
		return MemberDouble
	}
	panic(invariant.Unreachable("member type of %s", t))
}

// MoveType is the register-form move family: single, wide or object.
type MoveType uint8

const (
	MoveSingle MoveType = iota
	MoveWide
	MoveObject
)

func (t MoveType) String() string {
	switch t {
	case MoveSingle:
		return "SINGLE"
	case MoveWide:
		return "WIDE"
	case MoveObject:
		return "OBJECT"
	}
	return fmt.Sprintf("MoveType(%d)", uint8(t))
}

// ValueType returns the (possibly imprecise) value type a move of this
// family carries.
func (t MoveType) ValueType() ValueType {
	switch t {
	case MoveSingle:
		return IntOrFloat
	case MoveWide:
		return LongOrDouble
	case MoveObject:
		return Object
	}
	panic(invariant.Unreachable("move type %d", uint8(t)))
}

// InvokeType is the dispatch kind of a call.
type InvokeType uint8

const (
	InvokeVirtual InvokeType = iota
	InvokeSuper
	InvokeDirect
	InvokeStatic
	InvokeInterface
)

func (t InvokeType) String() string {
	switch t {
	case InvokeVirtual:
		return "virtual"
	case InvokeSuper:
		return "super"
	case InvokeDirect:
		return "direct"
	case InvokeStatic:
		return "static"
	case InvokeInterface:
		return "interface"
	}
	return fmt.Sprintf("InvokeType(%d)", uint8(t))
}
