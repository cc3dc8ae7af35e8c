package dex

import (
	"github.com/Londek/r8-mirror/invariant"
	"github.com/Londek/r8-mirror/ir"
)

// family groups the opcodes of one access that differ only in the member
// type they move.
type family struct {
	single, wide, object, boolean, byte_, char, short Opcode
}

var (
	agetFamily = family{OpAget, OpAgetWide, OpAgetObject, OpAgetBoolean, OpAgetByte, OpAgetChar, OpAgetShort}
	aputFamily = family{OpAput, OpAputWide, OpAputObject, OpAputBoolean, OpAputByte, OpAputChar, OpAputShort}
	igetFamily = family{OpIget, OpIgetWide, OpIgetObject, OpIgetBoolean, OpIgetByte, OpIgetChar, OpIgetShort}
	iputFamily = family{OpIput, OpIputWide, OpIputObject, OpIputBoolean, OpIputByte, OpIputChar, OpIputShort}
	sgetFamily = family{OpSget, OpSgetWide, OpSgetObject, OpSgetBoolean, OpSgetByte, OpSgetChar, OpSgetShort}
	sputFamily = family{OpSput, OpSputWide, OpSputObject, OpSputBoolean, OpSputByte, OpSputChar, OpSputShort}
)

// opcode selects the family member for t. Int and float share the single
// form, long and double the wide form.
func (f family) opcode(t ir.MemberType) Opcode {
	switch t {
	case ir.MemberInt, ir.MemberFloat, ir.MemberIntOrFloat:
		return f.single
	case ir.MemberLong, ir.MemberDouble, ir.MemberLongOrDouble:
		return f.wide
	case ir.MemberObject:
		return f.object
	case ir.MemberBoolean:
		return f.boolean
	case ir.MemberByte:
		return f.byte_
	case ir.MemberChar:
		return f.char
	case ir.MemberShort:
		return f.short
	}
	panic(invariant.Unreachable("%s has no form for member type %s", f.single, t))
}

// memberType is the member type a decoded family opcode carries. The single
// and wide forms do not say which machine type they move.
func (f family) memberType(op Opcode) (ir.MemberType, bool) {
	switch op {
	case f.single:
		return ir.MemberIntOrFloat, true
	case f.wide:
		return ir.MemberLongOrDouble, true
	case f.object:
		return ir.MemberObject, true
	case f.boolean:
		return ir.MemberBoolean, true
	case f.byte_:
		return ir.MemberByte, true
	case f.char:
		return ir.MemberChar, true
	case f.short:
		return ir.MemberShort, true
	}
	return 0, false
}

// moveForms are the 12x, 22x and 32x encodings of each move type.
var moveForms = map[ir.MoveType][3]Opcode{
	ir.MoveSingle: {OpMove, OpMoveFrom16, OpMove16},
	ir.MoveWide:   {OpMoveWide, OpMoveWideFrom16, OpMoveWide16},
	ir.MoveObject: {OpMoveObject, OpMoveObjectFrom16, OpMoveObject16},
}

var moveResultOps = map[ir.MoveType]Opcode{
	ir.MoveSingle: OpMoveResult,
	ir.MoveWide:   OpMoveResultWide,
	ir.MoveObject: OpMoveResultObject,
}

var returnOps = map[ir.MoveType]Opcode{
	ir.MoveSingle: OpReturn,
	ir.MoveWide:   OpReturnWide,
	ir.MoveObject: OpReturnObject,
}

var invokeOps = map[ir.InvokeType][2]Opcode{
	ir.InvokeVirtual:   {OpInvokeVirtual, OpInvokeVirtualRange},
	ir.InvokeSuper:     {OpInvokeSuper, OpInvokeSuperRange},
	ir.InvokeDirect:    {OpInvokeDirect, OpInvokeDirectRange},
	ir.InvokeStatic:    {OpInvokeStatic, OpInvokeStaticRange},
	ir.InvokeInterface: {OpInvokeInterface, OpInvokeInterfaceRange},
}

// reverse looks up the key whose value satisfies match.
func reverse[K comparable, V any](m map[K]V, match func(V) bool) (K, bool) {
	for k, v := range m {
		if match(v) {
			return k, true
		}
	}
	var zero K
	return zero, false
}
