package dex

import (
	"fmt"
	"strings"

	"github.com/Londek/r8-mirror/graph"
	"github.com/Londek/r8-mirror/invariant"
	"github.com/Londek/r8-mirror/ir"
	"github.com/Londek/r8-mirror/pool"
	"github.com/Londek/r8-mirror/uses"
)

// Instruction is a register-form instruction. Instructions are immutable;
// construct them with the New functions, which select the opcode.
type Instruction interface {
	Opcode() Opcode
	// Name is the instruction class name, e.g. "IgetChar".
	Name() string
	// SmaliName is the assembler mnemonic, e.g. "iget-char".
	SmaliName() string
	// Size is the encoded size in 16-bit code units.
	Size() int
	CanThrow() bool
	// RegisterUse reports the symbols the instruction references.
	RegisterUse(r uses.Registry)
	// BuildIR describes the instruction's semantics to b.
	BuildIR(b ir.Builder)
	// Write encodes the instruction, rewriting symbols through the
	// mapping's graph lens and resolving them to pool indices.
	Write(w *CodeWriter, m *pool.Mapping)
	String() string
}

// opcode supplies the metadata accessors of an instruction.
type opcode Opcode

func (o opcode) Opcode() Opcode          { return Opcode(o) }
func (o opcode) Name() string            { return Opcode(o).Name() }
func (o opcode) SmaliName() string       { return Opcode(o).SmaliName() }
func (o opcode) Size() int               { return Opcode(o).Info().Format.Size() }
func (o opcode) CanThrow() bool          { return Opcode(o).Info().CanThrow }
func (opcode) RegisterUse(uses.Registry) {}

func reg4(r int) uint8 {
	if r < 0 || r > 0xF {
		panic(invariant.Newf("register v%d does not fit in 4 bits", r))
	}
	return uint8(r)
}

func reg8(r int) uint8 {
	if r < 0 || r > 0xFF {
		panic(invariant.Newf("register v%d does not fit in 8 bits", r))
	}
	return uint8(r)
}

func reg16(r int) uint16 {
	if r < 0 || r > 0xFFFF {
		panic(invariant.Newf("register v%d does not fit in 16 bits", r))
	}
	return uint16(r)
}

// ---------------------------------------------------------------------------
// Moves and returns
// ---------------------------------------------------------------------------

// Move copies a register. The narrowest encoding that fits the registers is
// chosen.
type Move struct {
	opcode
	Type      ir.MoveType
	Dest, Src uint16
}

func NewMove(t ir.MoveType, dest, src int) *Move {
	forms, ok := moveForms[t]
	if !ok {
		panic(invariant.Unreachable("move type %s", t))
	}
	d, s := reg16(dest), reg16(src)
	op := forms[2]
	switch {
	case d <= 0xF && s <= 0xF:
		op = forms[0]
	case d <= 0xFF:
		op = forms[1]
	}
	return &Move{opcode: opcode(op), Type: t, Dest: d, Src: s}
}

func (i *Move) BuildIR(b ir.Builder) {
	b.AddMove(i.Type.ValueType(), int(i.Dest), int(i.Src))
}

func (i *Move) Write(w *CodeWriter, _ *pool.Mapping) {
	op := i.Opcode()
	switch op.Info().Format {
	case Format12x:
		w.write12x(op, uint8(i.Dest), uint8(i.Src))
	case Format22x:
		w.write22x(op, uint8(i.Dest), i.Src)
	default:
		w.write32x(op, i.Dest, i.Src)
	}
}

func (i *Move) String() string {
	return fmt.Sprintf("%s v%d, v%d", i.SmaliName(), i.Dest, i.Src)
}

// MoveResult binds the result of the preceding invoke.
type MoveResult struct {
	opcode
	Type ir.MoveType
	Dest uint8
}

func NewMoveResult(t ir.MoveType, dest int) *MoveResult {
	op, ok := moveResultOps[t]
	if !ok {
		panic(invariant.Unreachable("move type %s", t))
	}
	return &MoveResult{opcode: opcode(op), Type: t, Dest: reg8(dest)}
}

func (i *MoveResult) BuildIR(b ir.Builder) {
	b.AddMoveResult(i.Type.ValueType(), int(i.Dest))
}

func (i *MoveResult) Write(w *CodeWriter, _ *pool.Mapping) {
	w.write11x(i.Opcode(), i.Dest)
}

func (i *MoveResult) String() string {
	return fmt.Sprintf("%s v%d", i.SmaliName(), i.Dest)
}

type Return struct {
	opcode
	Type ir.MoveType
	Src  uint8
}

func NewReturn(t ir.MoveType, src int) *Return {
	op, ok := returnOps[t]
	if !ok {
		panic(invariant.Unreachable("move type %s", t))
	}
	return &Return{opcode: opcode(op), Type: t, Src: reg8(src)}
}

func (i *Return) BuildIR(b ir.Builder) {
	b.AddReturn(i.Type.ValueType(), int(i.Src))
}

func (i *Return) Write(w *CodeWriter, _ *pool.Mapping) {
	w.write11x(i.Opcode(), i.Src)
}

func (i *Return) String() string {
	return fmt.Sprintf("%s v%d", i.SmaliName(), i.Src)
}

type Nop struct{ opcode }

func NewNop() *Nop { return &Nop{opcode(OpNop)} }

func (*Nop) BuildIR(ir.Builder) {}

func (i *Nop) Write(w *CodeWriter, _ *pool.Mapping) { w.write10x(i.Opcode()) }

func (i *Nop) String() string { return i.SmaliName() }

type ReturnVoid struct{ opcode }

func NewReturnVoid() *ReturnVoid { return &ReturnVoid{opcode(OpReturnVoid)} }

func (*ReturnVoid) BuildIR(b ir.Builder) { b.AddReturnVoid() }

func (i *ReturnVoid) Write(w *CodeWriter, _ *pool.Mapping) { w.write10x(i.Opcode()) }

func (i *ReturnVoid) String() string { return i.SmaliName() }

// ---------------------------------------------------------------------------
// Constants
// ---------------------------------------------------------------------------

// Const loads a 32-bit constant; Value holds the raw bits of a float.
type Const struct {
	opcode
	Dest  uint8
	Value int32
}

func NewConst(dest int, value int32) *Const {
	return &Const{opcode: opcode(OpConst), Dest: reg8(dest), Value: value}
}

func (i *Const) BuildIR(b ir.Builder) {
	b.AddConst(ir.IntOrFloat, int(i.Dest), int64(i.Value))
}

func (i *Const) Write(w *CodeWriter, _ *pool.Mapping) {
	w.write31i(i.Opcode(), i.Dest, uint32(i.Value))
}

func (i *Const) String() string {
	return fmt.Sprintf("%s v%d, %d", i.SmaliName(), i.Dest, i.Value)
}

// ConstWide loads a 64-bit constant into a register pair.
type ConstWide struct {
	opcode
	Dest  uint8
	Value int64
}

func NewConstWide(dest int, value int64) *ConstWide {
	return &ConstWide{opcode: opcode(OpConstWide), Dest: reg8(dest), Value: value}
}

func (i *ConstWide) BuildIR(b ir.Builder) {
	b.AddConst(ir.LongOrDouble, int(i.Dest), i.Value)
}

func (i *ConstWide) Write(w *CodeWriter, _ *pool.Mapping) {
	w.write51l(i.Opcode(), i.Dest, i.Value)
}

func (i *ConstWide) String() string {
	return fmt.Sprintf("%s v%d, %d", i.SmaliName(), i.Dest, i.Value)
}

// ConstString loads a string whose index fits in 16 bits.
type ConstString struct {
	opcode
	Dest  uint8
	Value *graph.String
}

func NewConstString(dest int, s *graph.String) *ConstString {
	return &ConstString{opcode: opcode(OpConstString), Dest: reg8(dest), Value: s}
}

func (i *ConstString) RegisterUse(r uses.Registry) { r.RegisterConstString(i.Value) }

func (i *ConstString) BuildIR(b ir.Builder) { b.AddConstString(int(i.Dest), i.Value) }

func (i *ConstString) Write(w *CodeWriter, m *pool.Mapping) {
	idx := m.StringIndex(i.Value)
	if idx > 0xFFFF {
		panic(invariant.Newf("const-string of %q at index %d requires const-string/jumbo", i.Value.Value, idx))
	}
	w.write21c(i.Opcode(), i.Dest, uint16(idx))
}

func (i *ConstString) String() string {
	return fmt.Sprintf("%s v%d, %q", i.SmaliName(), i.Dest, i.Value.Value)
}

// ConstStringJumbo loads a string with a 32-bit index.
type ConstStringJumbo struct {
	opcode
	Dest  uint8
	Value *graph.String
}

func NewConstStringJumbo(dest int, s *graph.String) *ConstStringJumbo {
	return &ConstStringJumbo{opcode: opcode(OpConstStringJumbo), Dest: reg8(dest), Value: s}
}

func (i *ConstStringJumbo) RegisterUse(r uses.Registry) { r.RegisterConstString(i.Value) }

func (i *ConstStringJumbo) BuildIR(b ir.Builder) { b.AddConstString(int(i.Dest), i.Value) }

func (i *ConstStringJumbo) Write(w *CodeWriter, m *pool.Mapping) {
	w.write31i(i.Opcode(), i.Dest, uint32(m.StringIndex(i.Value)))
}

func (i *ConstStringJumbo) String() string {
	return fmt.Sprintf("%s v%d, %q", i.SmaliName(), i.Dest, i.Value.Value)
}

type ConstMethodHandle struct {
	opcode
	Dest   uint8
	Handle *graph.MethodHandle
}

func NewConstMethodHandle(dest int, h *graph.MethodHandle) *ConstMethodHandle {
	return &ConstMethodHandle{opcode: opcode(OpConstMethodHandle), Dest: reg8(dest), Handle: h}
}

func (i *ConstMethodHandle) RegisterUse(r uses.Registry) { r.RegisterMethodHandle(i.Handle) }

func (i *ConstMethodHandle) BuildIR(b ir.Builder) { b.AddConstMethodHandle(int(i.Dest), i.Handle) }

func (i *ConstMethodHandle) Write(w *CodeWriter, m *pool.Mapping) {
	w.write21c(i.Opcode(), i.Dest, index16(m.MethodHandleIndex(i.Handle), "method handle"))
}

func (i *ConstMethodHandle) String() string {
	return fmt.Sprintf("%s v%d, %s", i.SmaliName(), i.Dest, i.Handle)
}

// ---------------------------------------------------------------------------
// Objects and fields
// ---------------------------------------------------------------------------

type NewInstance struct {
	opcode
	Dest  uint8
	Class *graph.Type
}

func NewNewInstance(dest int, class *graph.Type) *NewInstance {
	return &NewInstance{opcode: opcode(OpNewInstance), Dest: reg8(dest), Class: class}
}

func (i *NewInstance) RegisterUse(r uses.Registry) { r.RegisterNewInstance(i.Class) }

func (i *NewInstance) BuildIR(b ir.Builder) { b.AddNewInstance(int(i.Dest), i.Class) }

func (i *NewInstance) Write(w *CodeWriter, m *pool.Mapping) {
	t := m.GraphLens().LookupType(i.Class)
	w.write21c(i.Opcode(), i.Dest, index16(m.TypeIndex(t), "type"))
}

func (i *NewInstance) String() string {
	return fmt.Sprintf("%s v%d, %s", i.SmaliName(), i.Dest, i.Class)
}

func fieldIndex(m *pool.Mapping, f *graph.Field) uint16 {
	return index16(m.FieldIndex(m.GraphLens().LookupField(f)), "field")
}

// StaticGet reads a static field: sget, sget-wide, sget-object,
// sget-boolean, sget-byte, sget-char or sget-short.
type StaticGet struct {
	opcode
	Type  ir.MemberType
	Dest  uint8
	Field *graph.Field
}

func NewStaticGet(t ir.MemberType, dest int, f *graph.Field) *StaticGet {
	return &StaticGet{opcode: opcode(sgetFamily.opcode(t)), Type: t, Dest: reg8(dest), Field: f}
}

func (i *StaticGet) RegisterUse(r uses.Registry) { r.RegisterStaticFieldRead(i.Field) }

func (i *StaticGet) BuildIR(b ir.Builder) { b.AddStaticGet(i.Type, int(i.Dest), i.Field) }

func (i *StaticGet) Write(w *CodeWriter, m *pool.Mapping) {
	w.write21c(i.Opcode(), i.Dest, fieldIndex(m, i.Field))
}

func (i *StaticGet) String() string {
	return fmt.Sprintf("%s v%d, %s", i.SmaliName(), i.Dest, i.Field)
}

// StaticPut writes a static field.
type StaticPut struct {
	opcode
	Type  ir.MemberType
	Src   uint8
	Field *graph.Field
}

func NewStaticPut(t ir.MemberType, src int, f *graph.Field) *StaticPut {
	return &StaticPut{opcode: opcode(sputFamily.opcode(t)), Type: t, Src: reg8(src), Field: f}
}

func (i *StaticPut) RegisterUse(r uses.Registry) { r.RegisterStaticFieldWrite(i.Field) }

func (i *StaticPut) BuildIR(b ir.Builder) { b.AddStaticPut(i.Type, int(i.Src), i.Field) }

func (i *StaticPut) Write(w *CodeWriter, m *pool.Mapping) {
	w.write21c(i.Opcode(), i.Src, fieldIndex(m, i.Field))
}

func (i *StaticPut) String() string {
	return fmt.Sprintf("%s v%d, %s", i.SmaliName(), i.Src, i.Field)
}

// InstanceGet reads an instance field into A from the object in B.
type InstanceGet struct {
	opcode
	Type         ir.MemberType
	Dest, Object uint8
	Field        *graph.Field
}

func NewInstanceGet(t ir.MemberType, dest, object int, f *graph.Field) *InstanceGet {
	return &InstanceGet{opcode: opcode(igetFamily.opcode(t)), Type: t, Dest: reg4(dest), Object: reg4(object), Field: f}
}

func (i *InstanceGet) RegisterUse(r uses.Registry) { r.RegisterInstanceFieldRead(i.Field) }

func (i *InstanceGet) BuildIR(b ir.Builder) {
	b.AddInstanceGet(i.Type, int(i.Dest), int(i.Object), i.Field)
}

func (i *InstanceGet) Write(w *CodeWriter, m *pool.Mapping) {
	w.write22c(i.Opcode(), i.Dest, i.Object, fieldIndex(m, i.Field))
}

func (i *InstanceGet) String() string {
	return fmt.Sprintf("%s v%d, v%d, %s", i.SmaliName(), i.Dest, i.Object, i.Field)
}

// InstancePut writes A into an instance field of the object in B.
type InstancePut struct {
	opcode
	Type        ir.MemberType
	Src, Object uint8
	Field       *graph.Field
}

func NewInstancePut(t ir.MemberType, src, object int, f *graph.Field) *InstancePut {
	return &InstancePut{opcode: opcode(iputFamily.opcode(t)), Type: t, Src: reg4(src), Object: reg4(object), Field: f}
}

func (i *InstancePut) RegisterUse(r uses.Registry) { r.RegisterInstanceFieldWrite(i.Field) }

func (i *InstancePut) BuildIR(b ir.Builder) {
	b.AddInstancePut(i.Type, int(i.Src), int(i.Object), i.Field)
}

func (i *InstancePut) Write(w *CodeWriter, m *pool.Mapping) {
	w.write22c(i.Opcode(), i.Src, i.Object, fieldIndex(m, i.Field))
}

func (i *InstancePut) String() string {
	return fmt.Sprintf("%s v%d, v%d, %s", i.SmaliName(), i.Src, i.Object, i.Field)
}

// InitClass triggers class initialization by reading the field the
// init-class lens names for Class into Dest. It is written as the sget
// variant matching that field's type. Dest is a single register, so the
// field must not be wide.
type InitClass struct {
	opcode
	Dest  uint8
	Class *graph.Type
}

func NewInitClass(dest int, class *graph.Type) *InitClass {
	return &InitClass{opcode: opcode(OpSget), Dest: reg8(dest), Class: class}
}

func (*InitClass) Name() string      { return "InitClass" }
func (*InitClass) SmaliName() string { return "init-class" }

func (i *InitClass) RegisterUse(r uses.Registry) { r.RegisterInitClass(i.Class) }

func (i *InitClass) BuildIR(b ir.Builder) { b.AddInitClass(int(i.Dest), i.Class) }

func (i *InitClass) Write(w *CodeWriter, m *pool.Mapping) {
	gl := m.GraphLens()
	f := gl.LookupField(m.ClinitField(gl.LookupType(i.Class)))
	invariant.Check(!f.Type.IsWide(), "init-class of %s reads wide field %s into v%d", i.Class, f, i.Dest)
	op := sgetFamily.opcode(ir.MemberTypeOf(f.Type))
	w.write21c(op, i.Dest, index16(m.FieldIndex(f), "field"))
}

func (i *InitClass) String() string {
	return fmt.Sprintf("%s v%d, %s", i.SmaliName(), i.Dest, i.Class)
}

// ---------------------------------------------------------------------------
// Arrays
// ---------------------------------------------------------------------------

// ArrayGet reads element CC of array BB into AA.
type ArrayGet struct {
	opcode
	Type               ir.MemberType
	Dest, Array, Index uint8
}

func NewArrayGet(t ir.MemberType, dest, array, index int) *ArrayGet {
	return &ArrayGet{opcode: opcode(agetFamily.opcode(t)), Type: t, Dest: reg8(dest), Array: reg8(array), Index: reg8(index)}
}

func (i *ArrayGet) BuildIR(b ir.Builder) {
	b.AddArrayGet(i.Type, int(i.Dest), int(i.Array), int(i.Index))
}

func (i *ArrayGet) Write(w *CodeWriter, _ *pool.Mapping) {
	w.write23x(i.Opcode(), i.Dest, i.Array, i.Index)
}

func (i *ArrayGet) String() string {
	return fmt.Sprintf("%s v%d, v%d, v%d", i.SmaliName(), i.Dest, i.Array, i.Index)
}

// ArrayPut stores AA into element CC of array BB.
type ArrayPut struct {
	opcode
	Type              ir.MemberType
	Src, Array, Index uint8
}

func NewArrayPut(t ir.MemberType, src, array, index int) *ArrayPut {
	return &ArrayPut{opcode: opcode(aputFamily.opcode(t)), Type: t, Src: reg8(src), Array: reg8(array), Index: reg8(index)}
}

func (i *ArrayPut) BuildIR(b ir.Builder) {
	b.AddArrayPut(i.Type, int(i.Src), int(i.Array), int(i.Index))
}

func (i *ArrayPut) Write(w *CodeWriter, _ *pool.Mapping) {
	w.write23x(i.Opcode(), i.Src, i.Array, i.Index)
}

func (i *ArrayPut) String() string {
	return fmt.Sprintf("%s v%d, v%d, v%d", i.SmaliName(), i.Src, i.Array, i.Index)
}

// ---------------------------------------------------------------------------
// Invokes
// ---------------------------------------------------------------------------

// argForm picks between the 35c form (at most five 4-bit registers) and the
// 3rc form (a run of consecutive registers). It reports whether the range
// form is needed.
func argForm(args []int) (regs []uint16, isRange bool) {
	regs = make([]uint16, len(args))
	small := len(args) <= 5
	for k, a := range args {
		regs[k] = reg16(a)
		if a > 0xF {
			small = false
		}
	}
	if small {
		return regs, false
	}
	if len(args) > 0xFF {
		panic(invariant.Newf("%d argument registers exceed the range form", len(args)))
	}
	for k := 1; k < len(regs); k++ {
		if regs[k] != regs[0]+uint16(k) {
			panic(invariant.Newf("argument registers %v are neither small nor consecutive", args))
		}
	}
	return regs, true
}

func writeArgs(w *CodeWriter, op Opcode, regs []uint16, index uint16) {
	if op.Info().Format == Format3rc {
		first := uint16(0)
		if len(regs) > 0 {
			first = regs[0]
		}
		w.write3rc(op, uint8(len(regs)), index, first)
		return
	}
	w.write35c(op, regs, index)
}

func formatArgs(op Opcode, regs []uint16) string {
	if op.Info().Format == Format3rc && len(regs) > 0 {
		return fmt.Sprintf("{v%d .. v%d}", regs[0], regs[len(regs)-1])
	}
	parts := make([]string, len(regs))
	for k, r := range regs {
		parts[k] = fmt.Sprintf("v%d", r)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func ints(regs []uint16) []int {
	out := make([]int, len(regs))
	for k, r := range regs {
		out[k] = int(r)
	}
	return out
}

// Invoke calls a method. Args lists both registers of wide arguments.
type Invoke struct {
	opcode
	Kind   ir.InvokeType
	Method *graph.Method
	Args   []uint16
}

func NewInvoke(kind ir.InvokeType, m *graph.Method, args []int) *Invoke {
	ops, ok := invokeOps[kind]
	if !ok {
		panic(invariant.Unreachable("invoke type %s", kind))
	}
	regs, isRange := argForm(args)
	op := ops[0]
	if isRange {
		op = ops[1]
	}
	return &Invoke{opcode: opcode(op), Kind: kind, Method: m, Args: regs}
}

func (i *Invoke) RegisterUse(r uses.Registry) { uses.RegisterInvoke(r, i.Kind, i.Method) }

func (i *Invoke) BuildIR(b ir.Builder) { b.AddInvoke(i.Kind, i.Method, ints(i.Args)) }

func (i *Invoke) Write(w *CodeWriter, m *pool.Mapping) {
	idx := m.MethodIndex(m.GraphLens().LookupMethod(i.Method))
	writeArgs(w, i.Opcode(), i.Args, index16(idx, "method"))
}

func (i *Invoke) String() string {
	return fmt.Sprintf("%s %s, %s", i.SmaliName(), formatArgs(i.Opcode(), i.Args), i.Method)
}

type InvokeCustom struct {
	opcode
	CallSite *graph.CallSite
	Args     []uint16
}

func NewInvokeCustom(cs *graph.CallSite, args []int) *InvokeCustom {
	regs, isRange := argForm(args)
	op := OpInvokeCustom
	if isRange {
		op = OpInvokeCustomRange
	}
	return &InvokeCustom{opcode: opcode(op), CallSite: cs, Args: regs}
}

func (i *InvokeCustom) RegisterUse(r uses.Registry) { r.RegisterCallSite(i.CallSite) }

func (i *InvokeCustom) BuildIR(b ir.Builder) { b.AddInvokeCustom(i.CallSite, ints(i.Args)) }

func (i *InvokeCustom) Write(w *CodeWriter, m *pool.Mapping) {
	writeArgs(w, i.Opcode(), i.Args, index16(m.CallSiteIndex(i.CallSite), "call site"))
}

func (i *InvokeCustom) String() string {
	return fmt.Sprintf("%s %s, %s", i.SmaliName(), formatArgs(i.Opcode(), i.Args), i.CallSite)
}

var (
	_ Instruction = (*Nop)(nil)
	_ Instruction = (*Move)(nil)
	_ Instruction = (*MoveResult)(nil)
	_ Instruction = (*Return)(nil)
	_ Instruction = (*ReturnVoid)(nil)
	_ Instruction = (*Const)(nil)
	_ Instruction = (*ConstWide)(nil)
	_ Instruction = (*ConstString)(nil)
	_ Instruction = (*ConstStringJumbo)(nil)
	_ Instruction = (*ConstMethodHandle)(nil)
	_ Instruction = (*NewInstance)(nil)
	_ Instruction = (*StaticGet)(nil)
	_ Instruction = (*StaticPut)(nil)
	_ Instruction = (*InstanceGet)(nil)
	_ Instruction = (*InstancePut)(nil)
	_ Instruction = (*InitClass)(nil)
	_ Instruction = (*ArrayGet)(nil)
	_ Instruction = (*ArrayPut)(nil)
	_ Instruction = (*Invoke)(nil)
	_ Instruction = (*InvokeCustom)(nil)
)
