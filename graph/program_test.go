package graph

import (
	"testing"

	"github.com/Londek/r8-mirror/invariant"
)

func TestProgramDefinitionFor(t *testing.T) {
	f := NewFactory()
	a := &ProgramClass{Type: f.Type("LA;"), Super: f.Type("Ljava/lang/Object;")}
	b := &ProgramClass{Type: f.Type("LB;"), Super: a.Type}
	p := NewProgram(a, b)
	if p.DefinitionFor(a.Type) != a || p.DefinitionFor(b.Type) != b {
		t.Error("definition lookup failed")
	}
	if p.DefinitionFor(f.Type("Ljava/lang/Object;")) != nil {
		t.Error("library type resolved to a program class")
	}
	if got := p.Classes(); len(got) != 2 || got[0] != a || got[1] != b {
		t.Errorf("Classes() = %v", got)
	}
}

func TestProgramDuplicatePanics(t *testing.T) {
	f := NewFactory()
	a := &ProgramClass{Type: f.Type("LA;")}
	defer func() {
		if _, ok := recover().(*invariant.Violation); !ok {
			t.Error("duplicate definition did not raise a violation")
		}
	}()
	NewProgram(a, &ProgramClass{Type: f.Type("LA;")})
}

func TestRewriteLens(t *testing.T) {
	f := NewFactory()
	a, b := f.Type("LA;"), f.Type("LB;")
	l := NewRewriteLens()
	if !l.IsIdentity() {
		t.Error("empty lens should be identity")
	}
	l.MapType(a, b)
	if l.LookupType(a) != b || l.LookupType(b) != b {
		t.Error("type mapping wrong")
	}
	if l.IsIdentity() {
		t.Error("populated lens reported identity")
	}
	fld := f.Field(a, f.Type("I"), "x")
	if IdentityLens().LookupField(fld) != fld {
		t.Error("identity lens rewrote a field")
	}
}

func TestInitClassFields(t *testing.T) {
	f := NewFactory()
	a := f.Type("LA;")
	fld := f.Field(a, f.Type("I"), "$r8$clinit")
	lens := InitClassFields{a: fld}
	if lens.InitClassField(a) != fld {
		t.Error("lookup failed")
	}
	defer func() {
		if recover() == nil {
			t.Error("missing init-class field did not panic")
		}
	}()
	lens.InitClassField(f.Type("LB;"))
}
