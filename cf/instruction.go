package cf

import (
	"fmt"
	"math"

	"github.com/Londek/r8-mirror/graph"
	"github.com/Londek/r8-mirror/invariant"
	"github.com/Londek/r8-mirror/ir"
	"github.com/Londek/r8-mirror/naming"
	"github.com/Londek/r8-mirror/pool"
	"github.com/Londek/r8-mirror/uses"
)

// Instruction is a stack-form instruction.
type Instruction interface {
	Opcode() Opcode
	CanThrow() bool
	// RegisterUse reports the symbols the instruction references.
	RegisterUse(r uses.Registry)
	// BuildIR executes the instruction on s, describing its effect to b.
	BuildIR(b ir.Builder, s *State)
	// Write emits the instruction, rewriting symbols through the lenses of
	// m.
	Write(v MethodVisitor, m *pool.Mapping)
	String() string
}

// base supplies defaults for instructions without symbol operands.
type base struct{ op Opcode }

func (i base) Opcode() Opcode                         { return i.op }
func (base) CanThrow() bool                           { return false }
func (base) RegisterUse(uses.Registry)                {}
func (i base) String() string                         { return i.op.String() }
func (i base) Write(v MethodVisitor, _ *pool.Mapping) { v.VisitInsn(i.op) }

func precise(t ir.ValueType) {
	if !t.IsPrecise() {
		panic(invariant.Newf("stack code needs a precise type, have %s", t))
	}
}

// ---------------------------------------------------------------------------
// Locals
// ---------------------------------------------------------------------------

// Load pushes local Var.
type Load struct {
	base
	Type ir.ValueType
	Var  int
}

func NewLoad(t ir.ValueType, v int) *Load {
	var op Opcode
	switch t {
	case ir.Object:
		op = ALOAD
	case ir.Int:
		op = ILOAD
	case ir.Float:
		op = FLOAD
	case ir.Long:
		op = LLOAD
	case ir.Double:
		op = DLOAD
	default:
		panic(invariant.Newf("load has no form for type %s", t))
	}
	return &Load{base: base{op}, Type: t, Var: v}
}

func (i *Load) BuildIR(b ir.Builder, s *State) {
	s.Load(i.Var, i.Type)
	b.AddMove(i.Type, s.Push(i.Type), i.Var)
}

func (i *Load) Write(v MethodVisitor, _ *pool.Mapping) { v.VisitVarInsn(i.op, i.Var) }

func (i *Load) String() string { return fmt.Sprintf("%s %d", i.op, i.Var) }

// Store pops into local Var. Wide values also occupy Var+1.
type Store struct {
	base
	Type ir.ValueType
	Var  int
}

func NewStore(t ir.ValueType, v int) *Store {
	var op Opcode
	switch t {
	case ir.Object:
		op = ASTORE
	case ir.Int:
		op = ISTORE
	case ir.Float:
		op = FSTORE
	case ir.Long:
		op = LSTORE
	case ir.Double:
		op = DSTORE
	default:
		panic(invariant.Newf("store has no form for type %s", t))
	}
	return &Store{base: base{op}, Type: t, Var: v}
}

// Slots is the number of local slots the store defines.
func (i *Store) Slots() int { return i.Type.RequiredRegisters() }

func (i *Store) BuildIR(b ir.Builder, s *State) {
	top := s.Pop()
	invariant.Check(top.Type == i.Type, "%s of a %s stack value in %s", i.op, top.Type, s.Method())
	b.AddMove(i.Type, i.Var, top.Register)
	s.Store(i.Var, i.Type)
}

func (i *Store) Write(v MethodVisitor, _ *pool.Mapping) { v.VisitVarInsn(i.op, i.Var) }

func (i *Store) String() string { return fmt.Sprintf("%s %d", i.op, i.Var) }

// ---------------------------------------------------------------------------
// Arrays
// ---------------------------------------------------------------------------

func arrayOpcode(load bool, t ir.MemberType) Opcode {
	var ops [2]Opcode
	switch t {
	case ir.MemberObject:
		ops = [2]Opcode{AALOAD, AASTORE}
	case ir.MemberBoolean, ir.MemberByte:
		ops = [2]Opcode{BALOAD, BASTORE}
	case ir.MemberChar:
		ops = [2]Opcode{CALOAD, CASTORE}
	case ir.MemberShort:
		ops = [2]Opcode{SALOAD, SASTORE}
	case ir.MemberInt:
		ops = [2]Opcode{IALOAD, IASTORE}
	case ir.MemberFloat:
		ops = [2]Opcode{FALOAD, FASTORE}
	case ir.MemberLong:
		ops = [2]Opcode{LALOAD, LASTORE}
	case ir.MemberDouble:
		ops = [2]Opcode{DALOAD, DASTORE}
	default:
		panic(invariant.Newf("array access has no form for member type %s", t))
	}
	if load {
		return ops[0]
	}
	return ops[1]
}

// ArrayLoad pops an index and an array and pushes the element.
type ArrayLoad struct {
	base
	Type ir.MemberType
}

func NewArrayLoad(t ir.MemberType) *ArrayLoad {
	return &ArrayLoad{base: base{arrayOpcode(true, t)}, Type: t}
}

func (*ArrayLoad) CanThrow() bool { return true }

func (i *ArrayLoad) BuildIR(b ir.Builder, s *State) {
	index := s.Pop()
	array := s.Pop()
	b.AddArrayGet(i.Type, s.Push(i.Type.ValueType()), array.Register, index.Register)
}

// ArrayStore pops a value, an index and an array.
type ArrayStore struct {
	base
	Type ir.MemberType
}

func NewArrayStore(t ir.MemberType) *ArrayStore {
	return &ArrayStore{base: base{arrayOpcode(false, t)}, Type: t}
}

func (*ArrayStore) CanThrow() bool { return true }

func (i *ArrayStore) BuildIR(b ir.Builder, s *State) {
	value := s.Pop()
	index := s.Pop()
	array := s.Pop()
	b.AddArrayPut(i.Type, value.Register, array.Register, index.Register)
}

// ---------------------------------------------------------------------------
// Fields
// ---------------------------------------------------------------------------

// FieldInstruction is GETSTATIC, PUTSTATIC, GETFIELD or PUTFIELD.
type FieldInstruction struct {
	base
	Field *graph.Field
}

func NewFieldInstruction(op Opcode, f *graph.Field) *FieldInstruction {
	switch op {
	case GETSTATIC, PUTSTATIC, GETFIELD, PUTFIELD:
	default:
		panic(invariant.Newf("%s is not a field instruction", op))
	}
	return &FieldInstruction{base: base{op}, Field: f}
}

func (*FieldInstruction) CanThrow() bool { return true }

func (i *FieldInstruction) RegisterUse(r uses.Registry) {
	switch i.op {
	case GETSTATIC:
		r.RegisterStaticFieldRead(i.Field)
	case PUTSTATIC:
		r.RegisterStaticFieldWrite(i.Field)
	case GETFIELD:
		r.RegisterInstanceFieldRead(i.Field)
	case PUTFIELD:
		r.RegisterInstanceFieldWrite(i.Field)
	}
}

func (i *FieldInstruction) BuildIR(b ir.Builder, s *State) {
	mt := ir.MemberTypeOf(i.Field.Type)
	switch i.op {
	case GETSTATIC:
		b.AddStaticGet(mt, s.Push(mt.ValueType()), i.Field)
	case PUTSTATIC:
		b.AddStaticPut(mt, s.Pop().Register, i.Field)
	case GETFIELD:
		object := s.Pop()
		b.AddInstanceGet(mt, s.Push(mt.ValueType()), object.Register, i.Field)
	case PUTFIELD:
		value := s.Pop()
		object := s.Pop()
		b.AddInstancePut(mt, value.Register, object.Register, i.Field)
	}
}

func writeField(v MethodVisitor, op Opcode, f *graph.Field, m *pool.Mapping) {
	f = m.GraphLens().LookupField(f)
	nl := m.NamingLens()
	v.VisitFieldInsn(op, graph.InternalName(nl.LookupDescriptor(f.Holder)), nl.LookupFieldName(f), nl.LookupDescriptor(f.Type))
}

func (i *FieldInstruction) Write(v MethodVisitor, m *pool.Mapping) {
	writeField(v, i.op, i.Field, m)
}

func (i *FieldInstruction) String() string { return fmt.Sprintf("%s %s", i.op, i.Field) }

// InitClass reads the field the init-class lens names for Class, which
// triggers its initialization, and discards the value. It is written as a
// GETSTATIC followed by POP, or POP2 for a wide field.
type InitClass struct {
	base
	Class *graph.Type
}

func NewInitClass(class *graph.Type) *InitClass {
	return &InitClass{base: base{GETSTATIC}, Class: class}
}

func (*InitClass) CanThrow() bool { return true }

func (i *InitClass) RegisterUse(r uses.Registry) { r.RegisterInitClass(i.Class) }

// BuildIR leaves the stack unchanged; the IR result lands in the scratch
// register above the stack and is never read.
func (i *InitClass) BuildIR(b ir.Builder, s *State) {
	b.AddInitClass(s.Scratch(), i.Class)
}

func (i *InitClass) Write(v MethodVisitor, m *pool.Mapping) {
	f := m.ClinitField(m.GraphLens().LookupType(i.Class))
	writeField(v, GETSTATIC, f, m)
	if m.GraphLens().LookupField(f).Type.IsWide() {
		v.VisitInsn(POP2)
	} else {
		v.VisitInsn(POP)
	}
}

func (i *InitClass) String() string { return fmt.Sprintf("INITCLASS %s", i.Class) }

// ---------------------------------------------------------------------------
// Invokes
// ---------------------------------------------------------------------------

// Invoke calls Method. Kind is the dispatch the call performs; for
// INVOKESPECIAL it tells a super call from a direct one.
type Invoke struct {
	base
	Kind        ir.InvokeType
	Method      *graph.Method
	IsInterface bool
}

var invokeOpcodes = map[ir.InvokeType]Opcode{
	ir.InvokeVirtual:   INVOKEVIRTUAL,
	ir.InvokeSuper:     INVOKESPECIAL,
	ir.InvokeDirect:    INVOKESPECIAL,
	ir.InvokeStatic:    INVOKESTATIC,
	ir.InvokeInterface: INVOKEINTERFACE,
}

func NewInvoke(kind ir.InvokeType, m *graph.Method, isInterface bool) *Invoke {
	op, ok := invokeOpcodes[kind]
	if !ok {
		panic(invariant.Unreachable("invoke type %s", kind))
	}
	return &Invoke{base: base{op}, Kind: kind, Method: m, IsInterface: isInterface || kind == ir.InvokeInterface}
}

// SpecialKind is the dispatch of an INVOKESPECIAL of m from context: a
// constructor call or a call within the holder is direct, anything else is
// a super call.
func SpecialKind(m, context *graph.Method) ir.InvokeType {
	if m.IsInstanceInitializer() || (context != nil && m.Holder == context.Holder) {
		return ir.InvokeDirect
	}
	return ir.InvokeSuper
}

// NewInvokeSpecial builds an INVOKESPECIAL of m in the code of context.
func NewInvokeSpecial(m, context *graph.Method, isInterface bool) *Invoke {
	return NewInvoke(SpecialKind(m, context), m, isInterface)
}

func (*Invoke) CanThrow() bool { return true }

func (i *Invoke) RegisterUse(r uses.Registry) { uses.RegisterInvoke(r, i.Kind, i.Method) }

func (i *Invoke) BuildIR(b ir.Builder, s *State) {
	count := len(i.Method.Proto.Params)
	if i.Kind != ir.InvokeStatic {
		count++
	}
	args := make([]Slot, count)
	for k := count - 1; k >= 0; k-- {
		args[k] = s.Pop()
	}
	var regs []int
	for _, a := range args {
		regs = append(regs, a.Register)
		if a.Type.IsWide() {
			regs = append(regs, a.Register+1)
		}
	}
	b.AddInvoke(i.Kind, i.Method, regs)
	if ret := i.Method.Proto.Return; !ret.IsVoid() {
		t := ir.ValueTypeOf(ret)
		b.AddMoveResult(t, s.Push(t))
	}
}

func (i *Invoke) Write(v MethodVisitor, m *pool.Mapping) {
	target := m.GraphLens().LookupMethod(i.Method)
	nl := m.NamingLens()
	v.VisitMethodInsn(i.op,
		graph.InternalName(nl.LookupDescriptor(target.Holder)),
		nl.LookupMethodName(target),
		naming.ProtoDescriptor(target.Proto, nl),
		i.IsInterface)
}

func (i *Invoke) String() string { return fmt.Sprintf("%s %s", i.op, i.Method) }

// ---------------------------------------------------------------------------
// Constants and allocation
// ---------------------------------------------------------------------------

// ConstNumber pushes a numeric constant, or null for Object. Bits holds the
// raw bit pattern of float and double values.
type ConstNumber struct {
	base
	Type ir.ValueType
	Bits int64
}

func NewConstNumber(t ir.ValueType, bits int64) *ConstNumber {
	precise(t)
	return &ConstNumber{base: base{constOpcode(t, bits)}, Type: t, Bits: bits}
}

func constOpcode(t ir.ValueType, bits int64) Opcode {
	switch t {
	case ir.Object:
		invariant.Check(bits == 0, "object constant %d is not null", bits)
		return ACONST_NULL
	case ir.Int:
		switch v := int32(bits); {
		case v >= -1 && v <= 5:
			return ICONST_M1 + Opcode(v+1)
		case v >= math.MinInt8 && v <= math.MaxInt8:
			return BIPUSH
		case v >= math.MinInt16 && v <= math.MaxInt16:
			return SIPUSH
		}
		return LDC
	case ir.Long:
		if bits == 0 || bits == 1 {
			return LCONST_0 + Opcode(bits)
		}
		return LDC2_W
	case ir.Float:
		switch math.Float32frombits(uint32(bits)) {
		case 0:
			if uint32(bits) == 0 {
				return FCONST_0
			}
		case 1:
			return FCONST_1
		case 2:
			return FCONST_2
		}
		return LDC
	case ir.Double:
		switch math.Float64frombits(uint64(bits)) {
		case 0:
			if bits == 0 {
				return DCONST_0
			}
		case 1:
			return DCONST_1
		}
		return LDC2_W
	}
	panic(invariant.Unreachable("constant of type %s", t))
}

func (i *ConstNumber) BuildIR(b ir.Builder, s *State) {
	b.AddConst(i.Type, s.Push(i.Type), i.Bits)
}

func (i *ConstNumber) Write(v MethodVisitor, _ *pool.Mapping) {
	switch i.op {
	case BIPUSH, SIPUSH:
		v.VisitIntInsn(i.op, int(int32(i.Bits)))
	case LDC, LDC2_W:
		v.VisitLdcInsn(i.value())
	default:
		v.VisitInsn(i.op)
	}
}

func (i *ConstNumber) value() any {
	switch i.Type {
	case ir.Int:
		return int32(i.Bits)
	case ir.Long:
		return i.Bits
	case ir.Float:
		return math.Float32frombits(uint32(i.Bits))
	default:
		return math.Float64frombits(uint64(i.Bits))
	}
}

func (i *ConstNumber) String() string {
	switch i.op {
	case BIPUSH, SIPUSH, LDC, LDC2_W:
		return fmt.Sprintf("%s %v", i.op, i.value())
	}
	return i.op.String()
}

// ConstString pushes a string constant with LDC.
type ConstString struct {
	base
	Value *graph.String
}

func NewConstString(s *graph.String) *ConstString {
	return &ConstString{base: base{LDC}, Value: s}
}

func (i *ConstString) RegisterUse(r uses.Registry) { r.RegisterConstString(i.Value) }

func (i *ConstString) BuildIR(b ir.Builder, s *State) {
	b.AddConstString(s.Push(ir.Object), i.Value)
}

func (i *ConstString) Write(v MethodVisitor, _ *pool.Mapping) { v.VisitLdcInsn(i.Value.Value) }

func (i *ConstString) String() string { return fmt.Sprintf("%s %q", i.op, i.Value.Value) }

// New allocates an uninitialized instance of Class.
type New struct {
	base
	Class *graph.Type
}

func NewNew(class *graph.Type) *New { return &New{base: base{NEW}, Class: class} }

func (*New) CanThrow() bool { return true }

func (i *New) RegisterUse(r uses.Registry) { r.RegisterNewInstance(i.Class) }

func (i *New) BuildIR(b ir.Builder, s *State) {
	b.AddNewInstance(s.Push(ir.Object), i.Class)
}

func (i *New) Write(v MethodVisitor, m *pool.Mapping) {
	t := m.GraphLens().LookupType(i.Class)
	v.VisitTypeInsn(i.op, graph.InternalName(m.NamingLens().LookupDescriptor(t)))
}

func (i *New) String() string { return fmt.Sprintf("%s %s", i.op, i.Class.InternalName()) }

// ---------------------------------------------------------------------------
// Returns and stack manipulation
// ---------------------------------------------------------------------------

// Return returns the top of stack, or nothing for RETURN.
type Return struct {
	base
	Type ir.ValueType
	Void bool
}

func NewReturn(t ir.ValueType) *Return {
	var op Opcode
	switch t {
	case ir.Object:
		op = ARETURN
	case ir.Int:
		op = IRETURN
	case ir.Float:
		op = FRETURN
	case ir.Long:
		op = LRETURN
	case ir.Double:
		op = DRETURN
	default:
		panic(invariant.Newf("return has no form for type %s", t))
	}
	return &Return{base: base{op}, Type: t}
}

func NewReturnVoid() *Return { return &Return{base: base{RETURN}, Void: true} }

func (i *Return) BuildIR(b ir.Builder, s *State) {
	if i.Void {
		b.AddReturnVoid()
		return
	}
	b.AddReturn(i.Type, s.Pop().Register)
}

// Stack is POP, POP2 or DUP.
type Stack struct{ base }

func NewStack(op Opcode) *Stack {
	switch op {
	case POP, POP2, DUP:
	default:
		panic(invariant.Newf("%s is not a stack instruction", op))
	}
	return &Stack{base{op}}
}

func (i *Stack) BuildIR(b ir.Builder, s *State) {
	switch i.op {
	case POP:
		invariant.Check(!s.Pop().Type.IsWide(), "POP of a wide value")
	case POP2:
		if !s.Pop().Type.IsWide() {
			invariant.Check(!s.Pop().Type.IsWide(), "POP2 splits a wide value")
		}
	case DUP:
		top := s.Peek()
		invariant.Check(!top.Type.IsWide(), "DUP of a wide value")
		b.AddMove(top.Type, s.Push(top.Type), top.Register)
	}
}

var (
	_ Instruction = (*Load)(nil)
	_ Instruction = (*Store)(nil)
	_ Instruction = (*ArrayLoad)(nil)
	_ Instruction = (*ArrayStore)(nil)
	_ Instruction = (*FieldInstruction)(nil)
	_ Instruction = (*InitClass)(nil)
	_ Instruction = (*Invoke)(nil)
	_ Instruction = (*ConstNumber)(nil)
	_ Instruction = (*ConstString)(nil)
	_ Instruction = (*New)(nil)
	_ Instruction = (*Return)(nil)
	_ Instruction = (*Stack)(nil)
)
