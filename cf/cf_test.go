package cf

import (
	"context"
	"math"
	"slices"
	"strings"
	"testing"

	"github.com/Londek/r8-mirror/graph"
	"github.com/Londek/r8-mirror/invariant"
	"github.com/Londek/r8-mirror/ir"
	"github.com/Londek/r8-mirror/naming"
	"github.com/Londek/r8-mirror/pool"
	"github.com/Londek/r8-mirror/uses"
)

func mustField(t *testing.T, f *graph.Factory, ref string) *graph.Field {
	t.Helper()
	fld, err := f.ParseField(ref)
	if err != nil {
		t.Fatal(err)
	}
	return fld
}

func mustMethod(t *testing.T, f *graph.Factory, ref string) *graph.Method {
	t.Helper()
	m, err := f.ParseMethod(ref)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func expectViolation(t *testing.T, want string, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		v, ok := recover().(*invariant.Violation)
		if !ok {
			t.Fatalf("expected a violation mentioning %q", want)
		}
		if !strings.Contains(v.Error(), want) {
			t.Errorf("violation = %v, want mention of %q", v, want)
		}
	}()
	fn()
}

func opcodes(code []Instruction) []Opcode {
	ops := make([]Opcode, len(code))
	for i, inst := range code {
		ops[i] = inst.Opcode()
	}
	return ops
}

func TestLongStoreUsesTwoSlots(t *testing.T) {
	store := NewStore(ir.Long, 3)
	if store.Opcode() != LSTORE || store.Opcode() != 0x37 {
		t.Errorf("opcode = %s", store.Opcode())
	}
	if store.Slots() != 2 {
		t.Errorf("slots = %d, want 2", store.Slots())
	}
	if got := MaxLocals([]Instruction{store}); got != 5 {
		t.Errorf("MaxLocals = %d, want 5", got)
	}
	if got := NewStore(ir.Object, 3).Slots(); got != 1 {
		t.Errorf("object store slots = %d", got)
	}
}

func TestArrayOpcodes(t *testing.T) {
	tests := []struct {
		inst Instruction
		want Opcode
	}{
		{NewArrayStore(ir.MemberChar), CASTORE},
		{NewArrayStore(ir.MemberByte), BASTORE},
		{NewArrayStore(ir.MemberBoolean), BASTORE},
		{NewArrayStore(ir.MemberObject), AASTORE},
		{NewArrayStore(ir.MemberDouble), DASTORE},
		{NewArrayLoad(ir.MemberBoolean), BALOAD},
		{NewArrayLoad(ir.MemberShort), SALOAD},
		{NewArrayLoad(ir.MemberLong), LALOAD},
	}
	for _, tt := range tests {
		if got := tt.inst.Opcode(); got != tt.want {
			t.Errorf("%T: %s, want %s", tt.inst, got, tt.want)
		}
		if !tt.inst.CanThrow() {
			t.Errorf("%s should throw", tt.want)
		}
	}
	if CASTORE != 0x55 || BASTORE != 0x54 {
		t.Error("array store opcode values changed")
	}
}

func TestImpreciseTypesHaveNoForm(t *testing.T) {
	expectViolation(t, "load has no form", func() { NewLoad(ir.IntOrFloat, 0) })
	expectViolation(t, "store has no form", func() { NewStore(ir.LongOrDouble, 0) })
	expectViolation(t, "array access has no form", func() { NewArrayStore(ir.MemberIntOrFloat) })
}

func TestConstSelection(t *testing.T) {
	tests := []struct {
		t    ir.ValueType
		bits int64
		want Opcode
	}{
		{ir.Int, -1, ICONST_M1},
		{ir.Int, 0, ICONST_0},
		{ir.Int, 5, ICONST_5},
		{ir.Int, 100, BIPUSH},
		{ir.Int, -1000, SIPUSH},
		{ir.Int, 100000, LDC},
		{ir.Long, 1, LCONST_1},
		{ir.Long, 2, LDC2_W},
		{ir.Float, int64(math.Float32bits(2)), FCONST_2},
		{ir.Float, int64(math.Float32bits(float32(math.Copysign(0, -1)))), LDC},
		{ir.Double, int64(math.Float64bits(1)), DCONST_1},
		{ir.Double, int64(math.Float64bits(0.5)), LDC2_W},
		{ir.Object, 0, ACONST_NULL},
	}
	for _, tt := range tests {
		if got := NewConstNumber(tt.t, tt.bits).Opcode(); got != tt.want {
			t.Errorf("const %s %d = %s, want %s", tt.t, tt.bits, got, tt.want)
		}
	}
}

func TestSpecialKind(t *testing.T) {
	f := graph.NewFactory()
	ctx := mustMethod(t, f, "LB;->run()V")
	tests := []struct {
		ref  string
		want ir.InvokeType
	}{
		{"LA;-><init>()V", ir.InvokeDirect},
		{"LB;->helper()V", ir.InvokeDirect},
		{"LA;->run()V", ir.InvokeSuper},
	}
	for _, tt := range tests {
		inv := NewInvokeSpecial(mustMethod(t, f, tt.ref), ctx, false)
		if inv.Kind != tt.want || inv.Opcode() != INVOKESPECIAL {
			t.Errorf("%s: kind %s opcode %s", tt.ref, inv.Kind, inv.Opcode())
		}
	}
}

func TestBuildIRInvokeWithWideArgument(t *testing.T) {
	f := graph.NewFactory()
	method := mustMethod(t, f, "LB;->run(J)I")
	callee := mustMethod(t, f, "LB;->m(J)I")
	code := []Instruction{
		NewLoad(ir.Object, 0),
		NewLoad(ir.Long, 1),
		NewInvoke(ir.InvokeVirtual, callee, false),
		NewReturn(ir.Int),
	}
	irCode := BuildIR(method, code, MaxLocals(code))

	var inv *ir.Invoke
	var ret *ir.Return
	for _, node := range irCode.Instructions {
		switch n := node.(type) {
		case *ir.Invoke:
			inv = n
		case *ir.Return:
			ret = n
		}
	}
	if inv == nil || ret == nil {
		t.Fatalf("IR:\n%s", irCode)
	}
	if len(inv.Args) != 2 || inv.Args[0].Register != 3 || inv.Args[1].Register != 4 || inv.Args[1].Type != ir.Long {
		t.Errorf("invoke args = %v", inv.Args)
	}
	if inv.Dest == nil || inv.Dest.Register != 3 || ret.Src != inv.Dest {
		t.Errorf("result = %v, returned %v", inv.Dest, ret.Src)
	}
}

func TestStackUnderflow(t *testing.T) {
	f := graph.NewFactory()
	method := mustMethod(t, f, "LB;->run()V")
	expectViolation(t, "pop of an empty stack", func() {
		BuildIR(method, []Instruction{NewStore(ir.Int, 0)}, 1)
	})
}

// assign registers the uses of code and assigns pools for them.
func assign(t *testing.T, f *graph.Factory, lenses pool.Lenses, code []Instruction) *pool.Mapping {
	t.Helper()
	c := uses.NewCollector(f, lenses.Graph, lenses.Naming, lenses.InitClass)
	rec := c.Recorder(nil)
	RegisterUses(code, rec)
	rec.Close()
	m, err := pool.Assign(context.Background(), c.Seal(), graph.NewProgram(), lenses)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestLowerAndEmit(t *testing.T) {
	f := graph.NewFactory()
	method := mustMethod(t, f, "LMain;->run()V")
	x := mustField(t, f, "LA;->x:J")
	y := mustField(t, f, "LB;->y:J")
	log := mustMethod(t, f, "LA;->log(Ljava/lang/String;)I")

	b := ir.NewCodeBuilder(method)
	b.AddStaticGet(ir.MemberLong, 0, x)
	b.AddStaticPut(ir.MemberLong, 0, y)
	b.AddConstString(2, f.String("hi"))
	b.AddInvoke(ir.InvokeStatic, log, []int{2})
	b.AddReturnVoid()

	code, err := Lower(b.Build())
	if err != nil {
		t.Fatal(err)
	}
	want := []Opcode{GETSTATIC, LSTORE, LLOAD, PUTSTATIC, LDC, ASTORE, ALOAD, INVOKESTATIC, POP, RETURN}
	if got := opcodes(code); !slices.Equal(got, want) {
		t.Fatalf("opcodes = %v, want %v", got, want)
	}
	if got := MaxLocals(code); got != 3 {
		t.Errorf("MaxLocals = %d, want 3", got)
	}

	lens := naming.NewMapLens()
	lens.RenameClass(f.Type("LA;"), "La/a;")
	lens.RenameField(x, "q")
	lenses := pool.Lenses{Graph: graph.IdentityLens(), Naming: lens}
	m := assign(t, f, lenses, code)

	var rec Recorder
	Emit(code, &rec, m)
	wantLines := []string{
		"GETSTATIC a/a.q : J",
		"LSTORE 0",
		"LLOAD 0",
		"PUTSTATIC B.y : J",
		"LDC \"hi\"",
		"ASTORE 2",
		"ALOAD 2",
		"INVOKESTATIC a/a.log (Ljava/lang/String;)I",
		"POP",
		"RETURN",
	}
	if got := rec.Lines(); !slices.Equal(got, wantLines) {
		t.Errorf("emitted:\n%s", rec.String())
	}
	if !strings.HasPrefix(rec.String(), "0000  GETSTATIC a/a.q : J\n0001  LSTORE 0\n") {
		t.Errorf("listing = %q", rec.String())
	}
}

func TestLowerRejectsImpreciseValues(t *testing.T) {
	f := graph.NewFactory()
	method := mustMethod(t, f, "LMain;->run()V")
	b := ir.NewCodeBuilder(method)
	b.AddConst(ir.IntOrFloat, 0, 1)
	b.AddReturnVoid()
	if _, err := Lower(b.Build()); err == nil || !strings.Contains(err.Error(), "imprecise") {
		t.Errorf("err = %v", err)
	}
}

func TestFieldUses(t *testing.T) {
	f := graph.NewFactory()
	ctx := mustMethod(t, f, "LMain;->run()V")
	fld := mustField(t, f, "LA;->count:I")
	code := []Instruction{
		NewFieldInstruction(GETSTATIC, fld),
		NewFieldInstruction(PUTSTATIC, fld),
		NewReturnVoid(),
	}
	c := uses.NewCollector(f, graph.IdentityLens(), naming.Identity(), nil)
	rec := c.Recorder(ctx)
	RegisterUses(code, rec)
	rec.Close()
	c.Seal()
	records := c.Records()
	if len(records) != 2 || records[0].Kind != uses.StaticFieldRead || records[1].Kind != uses.StaticFieldWrite {
		t.Errorf("records = %v", records)
	}
}

func TestInitClassDiscardsFieldValue(t *testing.T) {
	f := graph.NewFactory()
	method := mustMethod(t, f, "LMain;->run()V")
	a, b := f.Type("LA;"), f.Type("LB;")
	lenses := pool.Lenses{
		Graph:  graph.IdentityLens(),
		Naming: naming.Identity(),
		InitClass: graph.InitClassFields{
			a: mustField(t, f, "LA;->big:J"),
			b: mustField(t, f, "LB;->INSTANCE:LB;"),
		},
	}

	irb := ir.NewCodeBuilder(method)
	irb.AddInitClass(0, a)
	irb.AddInitClass(0, b)
	irb.AddReturnVoid()
	code, err := Lower(irb.Build())
	if err != nil {
		t.Fatal(err)
	}
	if got, want := opcodes(code), []Opcode{GETSTATIC, GETSTATIC, RETURN}; !slices.Equal(got, want) {
		t.Fatalf("opcodes = %v, want %v", got, want)
	}

	var rec Recorder
	Emit(code, &rec, assign(t, f, lenses, code))
	want := []string{
		"GETSTATIC A.big : J",
		"POP2",
		"GETSTATIC B.INSTANCE : LB;",
		"POP",
		"RETURN",
	}
	if got := rec.Lines(); !slices.Equal(got, want) {
		t.Errorf("emitted:\n%s", rec.String())
	}
}

func TestInitClassLeavesStackUnchanged(t *testing.T) {
	f := graph.NewFactory()
	method := mustMethod(t, f, "LMain;->get(I)I")
	code := []Instruction{
		NewInitClass(f.Type("LA;")),
		NewLoad(ir.Int, 0),
		NewReturn(ir.Int),
	}
	irCode := BuildIR(method, code, 1)
	var ret *ir.Return
	for _, node := range irCode.Instructions {
		if n, ok := node.(*ir.Return); ok {
			ret = n
		}
	}
	if ret == nil || ret.Src.Register != 1 || ret.Src.Type != ir.Int {
		t.Errorf("IR:\n%s", irCode)
	}
}

func TestStoreChecksStackType(t *testing.T) {
	f := graph.NewFactory()
	method := mustMethod(t, f, "LMain;->run()V")
	expectViolation(t, "LSTORE of a INT stack value", func() {
		BuildIR(method, []Instruction{NewConstNumber(ir.Int, 1), NewStore(ir.Long, 0)}, 2)
	})
}

func TestWideLocals(t *testing.T) {
	f := graph.NewFactory()
	method := mustMethod(t, f, "LMain;->run()V")
	wide := []Instruction{NewConstNumber(ir.Long, 1), NewStore(ir.Long, 0)}

	expectViolation(t, "high half of a wide value", func() {
		BuildIR(method, append(slices.Clone(wide), NewLoad(ir.Int, 1)), 2)
	})
	expectViolation(t, "outside max locals", func() {
		BuildIR(method, []Instruction{NewLoad(ir.Long, 1)}, 2)
	})

	// Overwriting the high half frees the slot.
	code := append(slices.Clone(wide),
		NewConstNumber(ir.Int, 7), NewStore(ir.Int, 1),
		NewLoad(ir.Int, 1), NewStack(POP), NewReturnVoid())
	BuildIR(method, code, 2)
}
