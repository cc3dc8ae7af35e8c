package dex

import (
	"context"
	"errors"
	"fmt"
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

func TestOpcodeNames(t *testing.T) {
	tests := []struct {
		op    Opcode
		value byte
		name  string
		smali string
	}{
		{OpIgetChar, 0x57, "IgetChar", "iget-char"},
		{OpSput, 0x67, "Sput", "sput"},
		{OpMoveResultWide, 0x0b, "MoveResultWide", "move-result-wide"},
		{OpMoveFrom16, 0x02, "MoveFrom16", "move/from16"},
		{OpConstStringJumbo, 0x1b, "ConstStringJumbo", "const-string/jumbo"},
		{OpInvokeStaticRange, 0x77, "InvokeStaticRange", "invoke-static/range"},
	}
	for _, tt := range tests {
		if byte(tt.op) != tt.value {
			t.Errorf("%s = 0x%02x, want 0x%02x", tt.smali, byte(tt.op), tt.value)
		}
		if got := tt.op.Name(); got != tt.name {
			t.Errorf("Name(0x%02x) = %q, want %q", tt.value, got, tt.name)
		}
		if got := tt.op.SmaliName(); got != tt.smali {
			t.Errorf("SmaliName(0x%02x) = %q, want %q", tt.value, got, tt.smali)
		}
	}
	if Opcode(0x3e).Known() {
		t.Error("0x3e should be unknown")
	}
	if got := Opcode(0x3e).Name(); got != "UNKNOWN_3E" {
		t.Errorf("unknown name = %q", got)
	}
}

func TestFamilySelection(t *testing.T) {
	f := graph.NewFactory()
	fld := mustField(t, f, "LA;->c:C")
	tests := []struct {
		inst Instruction
		want Opcode
	}{
		{NewInstanceGet(ir.MemberChar, 0, 1, fld), OpIgetChar},
		{NewInstanceGet(ir.MemberFloat, 0, 1, fld), OpIget},
		{NewInstancePut(ir.MemberDouble, 0, 1, fld), OpIputWide},
		{NewStaticGet(ir.MemberObject, 0, fld), OpSgetObject},
		{NewStaticPut(ir.MemberInt, 0, fld), OpSput},
		{NewArrayGet(ir.MemberBoolean, 0, 1, 2), OpAgetBoolean},
		{NewArrayPut(ir.MemberShort, 0, 1, 2), OpAputShort},
		{NewMoveResult(ir.MoveWide, 0), OpMoveResultWide},
		{NewReturn(ir.MoveObject, 0), OpReturnObject},
	}
	for _, tt := range tests {
		if got := tt.inst.Opcode(); got != tt.want {
			t.Errorf("%s: opcode %s, want %s", tt.inst, got, tt.want)
		}
	}
}

func TestMoveForms(t *testing.T) {
	tests := []struct {
		dest, src int
		want      Opcode
		size      int
	}{
		{1, 2, OpMoveObject, 1},
		{200, 3, OpMoveObjectFrom16, 2},
		{3, 200, OpMoveObjectFrom16, 2},
		{300, 3, OpMoveObject16, 3},
	}
	for _, tt := range tests {
		m := NewMove(ir.MoveObject, tt.dest, tt.src)
		if m.Opcode() != tt.want || m.Size() != tt.size {
			t.Errorf("move v%d, v%d = %s (size %d), want %s (size %d)",
				tt.dest, tt.src, m.Opcode(), m.Size(), tt.want, tt.size)
		}
	}
}

func TestInvokeForms(t *testing.T) {
	f := graph.NewFactory()
	m := mustMethod(t, f, "LA;->f(IIIII)V")
	if got := NewInvoke(ir.InvokeStatic, m, []int{0, 1, 2, 3, 4}).Opcode(); got != OpInvokeStatic {
		t.Errorf("five small registers: %s", got)
	}
	if got := NewInvoke(ir.InvokeStatic, m, []int{16, 17, 18, 19, 20}).Opcode(); got != OpInvokeStaticRange {
		t.Errorf("large consecutive registers: %s", got)
	}
	if got := NewInvoke(ir.InvokeVirtual, m, []int{0, 1, 2, 3, 4, 5}).Opcode(); got != OpInvokeVirtualRange {
		t.Errorf("six registers: %s", got)
	}
	expectViolation(t, "neither small nor consecutive", func() {
		NewInvoke(ir.InvokeStatic, m, []int{1, 20})
	})
}

func TestRoundTrip(t *testing.T) {
	f := graph.NewFactory()
	method := mustMethod(t, f, "LMain;->run()V")
	count := mustField(t, f, "LA;->count:I")
	char := mustField(t, f, "LA;->c:C")
	callee := mustMethod(t, f, "LA;->f(IJ)I")

	code := []Instruction{
		NewConstString(0, f.String("hello")),
		NewStaticGet(ir.MemberInt, 1, count),
		NewInstanceGet(ir.MemberChar, 2, 3, char),
		NewInvoke(ir.InvokeStatic, callee, []int{1, 4, 5}),
		NewMoveResult(ir.MoveSingle, 6),
		NewStaticPut(ir.MemberInt, 6, count),
		NewConstWide(8, -1),
		NewReturnVoid(),
	}
	m := assign(t, f, pool.IdentityLenses(), code)
	units := Encode(code, m)

	decoded, err := Decode(units, TablesFrom(m))
	if err != nil {
		t.Fatal(err)
	}
	if again := Encode(decoded, m); !slices.Equal(again, units) {
		t.Fatalf("decode/encode changed the code:\n got %04x\nwant %04x", again, units)
	}

	lowered := Lower(BuildIR(method, decoded))
	if again := Encode(lowered, m); !slices.Equal(again, units) {
		t.Fatalf("IR round trip changed the code:\n%s\nwant\n%s", Disassemble(lowered), Disassemble(code))
	}
}

func TestDisassemble(t *testing.T) {
	f := graph.NewFactory()
	code := []Instruction{
		NewConstString(0, f.String("hi")),
		NewStaticGet(ir.MemberInt, 1, mustField(t, f, "LA;->count:I")),
		NewReturn(ir.MoveSingle, 1),
	}
	want := "0000  const-string v0, \"hi\"\n" +
		"0002  sget v1, LA;->count:I\n" +
		"0004  return v1\n"
	if got := Disassemble(code); got != want {
		t.Errorf("Disassemble =\n%s\nwant\n%s", got, want)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name  string
		units []uint16
		want  error
	}{
		{"unknown", []uint16{0x003e}, ErrUnknownOpcode},
		{"truncated", []uint16{0x001a}, ErrTruncated},
		{"bad index", []uint16{0x001a, 0x0000}, ErrBadIndex},
		{"too many args", []uint16{0x6071, 0x0000, 0x0000}, ErrMalformed},
	}
	tables := &Tables{Methods: []*graph.Method{mustMethod(t, graph.NewFactory(), "LA;->f()V")}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.units, tables)
			if !errors.Is(err, tt.want) {
				t.Errorf("Decode(%04x) error = %v, want %v", tt.units, err, tt.want)
			}
		})
	}
}

func TestJumboStringRewrite(t *testing.T) {
	f := graph.NewFactory()
	var code []Instruction
	for i := 0; i <= 0xFFFF; i++ {
		code = append(code, NewConstString(0, f.String(fmt.Sprintf("s%05d", i))))
	}
	last := NewConstString(1, f.String("zzz"))
	code = append(code, last, NewReturnVoid())

	m := assign(t, f, pool.IdentityLenses(), code)
	if !m.HasJumboStrings() {
		t.Fatal("expected jumbo strings")
	}
	if got := m.StringIndex(last.Value); got != 0x10000 {
		t.Fatalf("index of zzz = %d", got)
	}

	rewritten := RewriteJumboStrings(code, m)
	if code[len(code)-2] != last {
		t.Fatal("rewrite modified its input")
	}
	jumbo, ok := rewritten[len(rewritten)-2].(*ConstStringJumbo)
	if !ok || jumbo.Value != last.Value || jumbo.Dest != 1 {
		t.Fatalf("rewritten = %v", rewritten[len(rewritten)-2])
	}
	if rewritten[0] != code[0] {
		t.Error("small const-string should be kept")
	}

	units := Encode(rewritten[len(rewritten)-2:], m)
	want := []uint16{uint16(OpConstStringJumbo) | 1<<8, 0x0000, 0x0001, uint16(OpReturnVoid)}
	if !slices.Equal(units, want) {
		t.Errorf("units = %04x, want %04x", units, want)
	}

	expectViolation(t, "const-string/jumbo", func() {
		Encode(code[len(code)-2:], m)
	})
}

func TestRewriteWithoutJumbo(t *testing.T) {
	f := graph.NewFactory()
	code := []Instruction{NewConstString(0, f.String("a")), NewReturnVoid()}
	m := assign(t, f, pool.IdentityLenses(), code)
	if got := RewriteJumboStrings(code, m); &got[0] != &code[0] {
		t.Error("code without jumbo strings should be returned as is")
	}
}

func TestInitClassWritesLensField(t *testing.T) {
	f := graph.NewFactory()
	class := f.Type("LA;")
	clinit := mustField(t, f, "LA;->$r8$clinit:Z")
	lenses := pool.Lenses{
		Graph:     graph.IdentityLens(),
		Naming:    naming.Identity(),
		InitClass: graph.InitClassFields{class: clinit},
	}
	code := []Instruction{NewInitClass(0, class), NewReturnVoid()}
	m := assign(t, f, lenses, code)

	units := Encode(code, m)
	want := []uint16{uint16(OpSgetBoolean), uint16(m.FieldIndex(clinit)), uint16(OpReturnVoid)}
	if !slices.Equal(units, want) {
		t.Errorf("units = %04x, want %04x", units, want)
	}
	if code[0].Name() != "InitClass" || code[0].SmaliName() != "init-class" {
		t.Errorf("names = %s, %s", code[0].Name(), code[0].SmaliName())
	}
}

func TestInitClassFieldTypes(t *testing.T) {
	f := graph.NewFactory()
	a, b := f.Type("LA;"), f.Type("LB;")
	lenses := pool.Lenses{
		Graph:  graph.IdentityLens(),
		Naming: naming.Identity(),
		InitClass: graph.InitClassFields{
			a: mustField(t, f, "LA;->INSTANCE:LA;"),
			b: mustField(t, f, "LB;->big:J"),
		},
	}
	object := []Instruction{NewInitClass(3, a), NewReturnVoid()}
	m := assign(t, f, lenses, object)
	if units := Encode(object, m); units[0] != uint16(OpSgetObject)|3<<8 {
		t.Errorf("first unit = %04x, want sget-object v3", units[0])
	}

	wide := []Instruction{NewInitClass(0, b), NewReturnVoid()}
	m = assign(t, f, lenses, wide)
	expectViolation(t, "reads wide field", func() { Encode(wide, m) })
}

func TestRegisterUsesOffsets(t *testing.T) {
	f := graph.NewFactory()
	ctx := mustMethod(t, f, "LMain;->run()V")
	fld := mustField(t, f, "LA;->count:I")
	code := []Instruction{
		NewStaticGet(ir.MemberInt, 0, fld),
		NewStaticPut(ir.MemberInt, 0, fld),
		NewReturnVoid(),
	}
	c := uses.NewCollector(f, graph.IdentityLens(), naming.Identity(), nil)
	rec := c.Recorder(ctx)
	RegisterUses(code, rec)
	rec.Close()
	used := c.Seal()
	if !used.Has(fld) {
		t.Fatal("field not used")
	}
	records := c.Records()
	if len(records) != 2 {
		t.Fatalf("records = %v", records)
	}
	if records[0].Kind != uses.StaticFieldRead || records[0].Offset != 0 {
		t.Errorf("first record = %v", records[0])
	}
	if records[1].Kind != uses.StaticFieldWrite || records[1].Offset != 2 {
		t.Errorf("second record = %v", records[1])
	}
}
