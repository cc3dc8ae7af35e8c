package ir

import (
	"strings"
	"testing"

	"github.com/Londek/r8-mirror/graph"
	"github.com/Londek/r8-mirror/invariant"
)

func testMethod(t *testing.T, f *graph.Factory, ref string) *graph.Method {
	t.Helper()
	m, err := f.ParseMethod(ref)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestUnboundReadDefinesArgument(t *testing.T) {
	f := graph.NewFactory()
	b := NewCodeBuilder(testMethod(t, f, "LA;->m(I)V"))
	b.AddMove(IntOrFloat, 0, 3)
	b.AddReturnVoid()
	code := b.Build()

	if len(code.Instructions) != 3 {
		t.Fatalf("got %d instructions:\n%s", len(code.Instructions), code)
	}
	arg, ok := code.Instructions[0].(*Argument)
	if !ok || arg.Dest.Register != 3 {
		t.Fatalf("first instruction = %s, want argument in r3", code.Instructions[0])
	}
	mv := code.Instructions[1].(*Move)
	if mv.Src != arg.Dest || mv.Dest.Register != 0 {
		t.Errorf("move = %s", mv)
	}
	if code.RegisterCount != 4 {
		t.Errorf("RegisterCount = %d, want 4", code.RegisterCount)
	}
}

func TestWriteThenReadReusesValue(t *testing.T) {
	f := graph.NewFactory()
	b := NewCodeBuilder(testMethod(t, f, "LA;->m()I"))
	b.AddConst(IntOrFloat, 1, 42)
	b.AddReturn(IntOrFloat, 1)
	code := b.Build()
	c := code.Instructions[0].(*ConstNumber)
	r := code.Instructions[1].(*Return)
	if r.Src != c.Dest {
		t.Errorf("return reads %s, want %s", r.Src, c.Dest)
	}
}

func TestWideWriteClobbersHighHalf(t *testing.T) {
	f := graph.NewFactory()
	b := NewCodeBuilder(testMethod(t, f, "LA;->m()V"))
	b.AddConst(IntOrFloat, 1, 7)
	b.AddConst(LongOrDouble, 0, 9)
	v := b.Read(1, IntOrFloat)
	if v.Number != 2 {
		t.Errorf("r1 should be rebound as an argument after the wide write, got %s", v)
	}
	if code := b.Build(); code.RegisterCount != 2 {
		t.Errorf("RegisterCount = %d, want 2", code.RegisterCount)
	}
}

func TestInvokeArgumentsFollowProto(t *testing.T) {
	f := graph.NewFactory()
	callee := testMethod(t, f, "LA;->callee(JI)Ljava/lang/String;")
	b := NewCodeBuilder(testMethod(t, f, "LA;->m()V"))
	b.AddInvoke(InvokeVirtual, callee, []int{0, 1, 2, 3})
	b.AddMoveResult(Object, 4)
	code := b.Build()

	inv := code.Instructions[len(code.Instructions)-1].(*Invoke)
	if len(inv.Args) != 3 {
		t.Fatalf("args = %v", inv.Args)
	}
	wantTypes := []ValueType{Object, Long, Int}
	wantRegs := []int{0, 1, 3}
	for i, a := range inv.Args {
		if a.Type != wantTypes[i] || a.Register != wantRegs[i] {
			t.Errorf("arg %d = %s", i, a)
		}
	}
	if inv.Dest == nil || inv.Dest.Register != 4 {
		t.Errorf("result = %v", inv.Dest)
	}
}

func expectViolation(t *testing.T, want string, f func()) {
	t.Helper()
	defer func() {
		t.Helper()
		v, ok := recover().(*invariant.Violation)
		if !ok {
			t.Fatalf("expected an invariant violation mentioning %q", want)
		}
		if !strings.Contains(v.Error(), want) {
			t.Errorf("violation = %v, want mention of %q", v, want)
		}
	}()
	f()
}

func TestInvokeArgumentViolations(t *testing.T) {
	f := graph.NewFactory()
	callee := testMethod(t, f, "LA;->callee(J)V")
	expectViolation(t, "register pair", func() {
		NewCodeBuilder(callee).AddInvoke(InvokeStatic, callee, []int{0, 2})
	})
	expectViolation(t, "too many", func() {
		NewCodeBuilder(callee).AddInvoke(InvokeStatic, callee, []int{0, 1, 2})
	})
	expectViolation(t, "too few", func() {
		NewCodeBuilder(callee).AddInvoke(InvokeVirtual, callee, []int{0})
	})
}

func TestMoveResultNeedsInvoke(t *testing.T) {
	f := graph.NewFactory()
	b := NewCodeBuilder(testMethod(t, f, "LA;->m()V"))
	b.AddConst(IntOrFloat, 0, 1)
	expectViolation(t, "move-result after", func() { b.AddMoveResult(IntOrFloat, 1) })
}

func TestValueTypes(t *testing.T) {
	f := graph.NewFactory()
	tests := []struct {
		desc   string
		value  ValueType
		member MemberType
	}{
		{"Z", Int, MemberBoolean},
		{"B", Int, MemberByte},
		{"C", Int, MemberChar},
		{"S", Int, MemberShort},
		{"I", Int, MemberInt},
		{"F", Float, MemberFloat},
		{"J", Long, MemberLong},
		{"D", Double, MemberDouble},
		{"Ljava/lang/Object;", Object, MemberObject},
		{"[I", Object, MemberObject},
	}
	for _, tt := range tests {
		typ := f.Type(tt.desc)
		if got := ValueTypeOf(typ); got != tt.value {
			t.Errorf("ValueTypeOf(%s) = %s, want %s", tt.desc, got, tt.value)
		}
		if got := MemberTypeOf(typ); got != tt.member {
			t.Errorf("MemberTypeOf(%s) = %s, want %s", tt.desc, got, tt.member)
		}
		if got := tt.member.ValueType(); got != tt.value {
			t.Errorf("%s.ValueType() = %s, want %s", tt.member, got, tt.value)
		}
	}
	if Long.RequiredRegisters() != 2 || LongOrDouble.RequiredRegisters() != 2 || Int.RequiredRegisters() != 1 {
		t.Error("RequiredRegisters wrong")
	}
	if MoveWide.ValueType() != LongOrDouble || Double.MoveType() != MoveWide || Object.MoveType() != MoveObject {
		t.Error("move type mapping wrong")
	}
}
