package ir

import (
	"golang.org/x/tools/container/intsets"

	"github.com/Londek/r8-mirror/graph"
	"github.com/Londek/r8-mirror/invariant"
)

// Builder is the capability instructions use to describe their semantics.
// Register operands are register numbers; for wide values the low register
// is given. Argument lists of invokes list both registers of a wide
// argument, as the register form does.
type Builder interface {
	AddMove(t ValueType, dest, src int)
	AddConst(t ValueType, dest int, bits int64)
	AddConstString(dest int, s *graph.String)
	AddConstMethodHandle(dest int, h *graph.MethodHandle)
	AddStaticGet(t MemberType, dest int, f *graph.Field)
	AddStaticPut(t MemberType, src int, f *graph.Field)
	AddInstanceGet(t MemberType, dest, object int, f *graph.Field)
	AddInstancePut(t MemberType, src, object int, f *graph.Field)
	AddArrayGet(t MemberType, dest, array, index int)
	AddArrayPut(t MemberType, src, array, index int)
	AddInvoke(kind InvokeType, m *graph.Method, args []int)
	AddInvokeCustom(cs *graph.CallSite, args []int)
	AddMoveResult(t ValueType, dest int)
	AddNewInstance(dest int, class *graph.Type)
	AddInitClass(dest int, class *graph.Type)
	AddReturn(t ValueType, src int)
	AddReturnVoid()
}

// CodeBuilder builds straight-line Code. Reading a register that has not
// been written defines an Argument for it.
type CodeBuilder struct {
	method    *graph.Method
	args      []Instruction
	body      []Instruction
	current   map[int]*Value
	registers intsets.Sparse
	next      int
}

var _ Builder = (*CodeBuilder)(nil)

func NewCodeBuilder(method *graph.Method) *CodeBuilder {
	return &CodeBuilder{method: method, current: make(map[int]*Value)}
}

// Build returns the code built so far.
func (b *CodeBuilder) Build() *Code {
	insts := make([]Instruction, 0, len(b.args)+len(b.body))
	insts = append(insts, b.args...)
	insts = append(insts, b.body...)
	count := 0
	if !b.registers.IsEmpty() {
		count = b.registers.Max() + 1
	}
	return &Code{Method: b.method, Instructions: insts, RegisterCount: count}
}

func (b *CodeBuilder) newValue(t ValueType, reg int) *Value {
	invariant.Check(reg >= 0, "negative register %d", reg)
	v := &Value{Number: b.next, Type: t, Register: reg}
	b.next++
	b.registers.Insert(reg)
	if t.IsWide() {
		b.registers.Insert(reg + 1)
	}
	return v
}

// Read returns the value currently bound to reg.
func (b *CodeBuilder) Read(reg int, t ValueType) *Value {
	if v, ok := b.current[reg]; ok {
		return v
	}
	v := b.newValue(t, reg)
	b.args = append(b.args, &Argument{Dest: v})
	b.current[reg] = v
	return v
}

// Write binds a new value of type t to reg.
func (b *CodeBuilder) Write(reg int, t ValueType) *Value {
	v := b.newValue(t, reg)
	if prev, ok := b.current[reg-1]; ok && prev.Type.IsWide() {
		delete(b.current, reg-1)
	}
	if t.IsWide() {
		delete(b.current, reg+1)
	}
	b.current[reg] = v
	return v
}

func (b *CodeBuilder) add(inst Instruction) {
	b.body = append(b.body, inst)
}

func (b *CodeBuilder) AddMove(t ValueType, dest, src int) {
	in := b.Read(src, t)
	b.add(&Move{Dest: b.Write(dest, t), Src: in})
}

func (b *CodeBuilder) AddConst(t ValueType, dest int, bits int64) {
	b.add(&ConstNumber{Dest: b.Write(dest, t), Bits: bits})
}

func (b *CodeBuilder) AddConstString(dest int, s *graph.String) {
	b.add(&ConstString{Dest: b.Write(dest, Object), Value: s})
}

func (b *CodeBuilder) AddConstMethodHandle(dest int, h *graph.MethodHandle) {
	b.add(&ConstMethodHandle{Dest: b.Write(dest, Object), Handle: h})
}

func (b *CodeBuilder) AddStaticGet(t MemberType, dest int, f *graph.Field) {
	b.add(&StaticGet{Dest: b.Write(dest, t.ValueType()), Type: t, Field: f})
}

func (b *CodeBuilder) AddStaticPut(t MemberType, src int, f *graph.Field) {
	b.add(&StaticPut{Src: b.Read(src, t.ValueType()), Type: t, Field: f})
}

func (b *CodeBuilder) AddInstanceGet(t MemberType, dest, object int, f *graph.Field) {
	obj := b.Read(object, Object)
	b.add(&InstanceGet{Dest: b.Write(dest, t.ValueType()), Object: obj, Type: t, Field: f})
}

func (b *CodeBuilder) AddInstancePut(t MemberType, src, object int, f *graph.Field) {
	val := b.Read(src, t.ValueType())
	obj := b.Read(object, Object)
	b.add(&InstancePut{Src: val, Object: obj, Type: t, Field: f})
}

func (b *CodeBuilder) AddArrayGet(t MemberType, dest, array, index int) {
	arr := b.Read(array, Object)
	idx := b.Read(index, Int)
	b.add(&ArrayGet{Dest: b.Write(dest, t.ValueType()), Array: arr, Index: idx, Type: t})
}

func (b *CodeBuilder) AddArrayPut(t MemberType, src, array, index int) {
	val := b.Read(src, t.ValueType())
	arr := b.Read(array, Object)
	idx := b.Read(index, Int)
	b.add(&ArrayPut{Src: val, Array: arr, Index: idx, Type: t})
}

// readArgs binds a register-form argument list to values typed by the
// receiver (if any) and the proto's parameters.
func (b *CodeBuilder) readArgs(receiver bool, proto *graph.Proto, regs []int) []*Value {
	var types []ValueType
	if receiver {
		types = append(types, Object)
	}
	for _, p := range proto.Params {
		types = append(types, ValueTypeOf(p))
	}
	values := make([]*Value, 0, len(types))
	i := 0
	for _, t := range types {
		invariant.Check(i < len(regs), "too few argument registers %v for %s", regs, proto)
		if t.IsWide() {
			invariant.Check(i+1 < len(regs) && regs[i+1] == regs[i]+1,
				"wide argument in %v is not a register pair", regs)
		}
		values = append(values, b.Read(regs[i], t))
		i += t.RequiredRegisters()
	}
	invariant.Check(i == len(regs), "too many argument registers %v for %s", regs, proto)
	return values
}

func (b *CodeBuilder) AddInvoke(kind InvokeType, m *graph.Method, args []int) {
	values := b.readArgs(kind != InvokeStatic, m.Proto, args)
	b.add(&Invoke{Kind: kind, Method: m, Args: values})
}

func (b *CodeBuilder) AddInvokeCustom(cs *graph.CallSite, args []int) {
	values := b.readArgs(false, cs.MethodProto, args)
	b.add(&InvokeCustom{CallSite: cs, Args: values})
}

// AddMoveResult binds the result of the immediately preceding invoke.
func (b *CodeBuilder) AddMoveResult(t ValueType, dest int) {
	invariant.Check(len(b.body) > 0, "move-result without a preceding invoke")
	switch inv := b.body[len(b.body)-1].(type) {
	case *Invoke:
		invariant.Check(inv.Dest == nil, "invoke result already moved")
		inv.Dest = b.Write(dest, t)
	case *InvokeCustom:
		invariant.Check(inv.Dest == nil, "invoke result already moved")
		inv.Dest = b.Write(dest, t)
	default:
		panic(invariant.Newf("move-result after %s", inv))
	}
}

func (b *CodeBuilder) AddNewInstance(dest int, class *graph.Type) {
	b.add(&NewInstance{Dest: b.Write(dest, Object), Class: class})
}

func (b *CodeBuilder) AddInitClass(dest int, class *graph.Type) {
	b.add(&InitClass{Dest: b.Write(dest, Int), Class: class})
}

func (b *CodeBuilder) AddReturn(t ValueType, src int) {
	b.add(&Return{Src: b.Read(src, t)})
}

func (b *CodeBuilder) AddReturnVoid() {
	b.add(&Return{})
}
