package uses

import (
	"fmt"
	"math/rand"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/Londek/r8-mirror/graph"
	"github.com/Londek/r8-mirror/invariant"
	"github.com/Londek/r8-mirror/naming"
)

func newCollector(f *graph.Factory) *Collector {
	return NewCollector(f, graph.IdentityLens(), naming.Identity(), nil)
}

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

func TestStaticFieldReadAndWrite(t *testing.T) {
	f := graph.NewFactory()
	c := newCollector(f)
	ctx := mustMethod(t, f, "LMain;->run()V")
	fld := mustField(t, f, "Lcom/example/Counter;->count:I")

	rec := c.Recorder(ctx)
	rec.SetOffset(0)
	rec.RegisterStaticFieldRead(fld)
	rec.SetOffset(2)
	rec.RegisterStaticFieldWrite(fld)
	rec.Close()
	used := c.Seal()

	want := []graph.Item{
		fld,
		f.Type("Lcom/example/Counter;"),
		f.Type("I"),
		f.String("count"),
		f.String("Lcom/example/Counter;"),
		f.String("I"),
	}
	for _, item := range want {
		if !used.Has(item) {
			t.Errorf("used set is missing %s %s", item.Kind(), item)
		}
	}
	records := c.Records()
	if len(records) != 2 {
		t.Fatalf("records = %v", records)
	}
	if records[0].Kind != StaticFieldRead || records[1].Kind != StaticFieldWrite {
		t.Errorf("record kinds = %s, %s", records[0].Kind, records[1].Kind)
	}
	if records[0].Offset != 0 || records[1].Offset != 2 || records[0].Context != ctx {
		t.Errorf("records = %v", records)
	}
}

func TestMethodUseExpandsProto(t *testing.T) {
	f := graph.NewFactory()
	c := newCollector(f)
	m := mustMethod(t, f, "LA;->m(J[Ljava/lang/String;)Z")
	rec := c.Recorder(nil)
	rec.RegisterInvokeStatic(m)
	rec.Close()
	used := c.Seal()

	for _, item := range []graph.Item{
		m, m.Proto, f.String("ZJL"), f.String("m"),
		f.Type("LA;"), f.Type("J"), f.Type("[Ljava/lang/String;"), f.Type("Z"),
	} {
		if !used.Has(item) {
			t.Errorf("missing %s", item)
		}
	}
	if used.Count(graph.KindMethod) != 1 || used.Count(graph.KindProto) != 1 {
		t.Errorf("counts: methods=%d protos=%d", used.Count(graph.KindMethod), used.Count(graph.KindProto))
	}
}

func TestNamingAndGraphLens(t *testing.T) {
	f := graph.NewFactory()
	old := mustField(t, f, "LA;->x:I")
	moved := mustField(t, f, "LB;->x:I")
	gl := graph.NewRewriteLens()
	gl.MapField(old, moved)
	nl := naming.NewMapLens()
	nl.RenameClass(f.Type("LB;"), "Lb;")
	nl.RenameField(moved, "a")

	c := NewCollector(f, gl, nl, nil)
	rec := c.Recorder(nil)
	rec.RegisterInstanceFieldRead(old)
	rec.Close()
	used := c.Seal()

	if used.Has(old) || !used.Has(moved) {
		t.Error("graph lens not applied")
	}
	if !used.Has(f.String("a")) || !used.Has(f.String("Lb;")) {
		t.Errorf("renamed strings missing: %v", used.Strings())
	}
	if s, ok := f.LookupString("x"); ok && used.Has(s) {
		t.Error("original field name should not be used")
	}
}

// The opaque lenses report identity and fail on any lookup.
type opaqueGraphLens struct{ graph.Lens }

func (opaqueGraphLens) IsIdentity() bool { return true }

type opaqueNamingLens struct{ naming.Lens }

func (opaqueNamingLens) IsIdentity() bool { return true }

func TestIdentityLensesAreNotConsulted(t *testing.T) {
	f := graph.NewFactory()
	fld := mustField(t, f, "LA;->x:I")
	m := mustMethod(t, f, "LA;->run()V")
	c := NewCollector(f, opaqueGraphLens{}, opaqueNamingLens{}, nil)
	rec := c.Recorder(nil)
	rec.RegisterStaticFieldRead(fld)
	rec.RegisterInvokeStatic(m)
	rec.Close()
	used := c.Seal()

	for _, item := range []graph.Item{fld, m, fld.Name, m.Name, fld.Holder.Descriptor, fld.Type.Descriptor} {
		if !used.Has(item) {
			t.Errorf("missing %s", item)
		}
	}
}

func TestInitClassUsesField(t *testing.T) {
	f := graph.NewFactory()
	a := f.Type("LA;")
	clinit := f.Field(a, f.Type("I"), "$r8$clinit")
	c := NewCollector(f, graph.IdentityLens(), naming.Identity(), graph.InitClassFields{a: clinit})
	rec := c.Recorder(nil)
	rec.RegisterInitClass(a)
	rec.Close()
	if used := c.Seal(); !used.Has(clinit) || !used.Has(a) {
		t.Error("init-class did not use the class and its init field")
	}
}

func TestCallSiteExpansion(t *testing.T) {
	f := graph.NewFactory()
	bsm := mustMethod(t, f, "LBoot;->bsm()Ljava/lang/Object;")
	target := mustMethod(t, f, "LT;->target()V")
	proto, _ := f.ParseProto("(I)V")
	cs := f.CallSite("apply", proto, f.MethodHandle(graph.HandleInvokeStatic, bsm),
		f.String("arg"), f.Type("LArg;"), f.MethodHandle(graph.HandleInvokeStatic, target))
	c := newCollector(f)
	rec := c.Recorder(nil)
	rec.RegisterCallSite(cs)
	rec.Close()
	used := c.Seal()
	for _, item := range []graph.Item{cs, f.String("apply"), proto, bsm, target, f.String("arg"), f.Type("LArg;")} {
		if !used.Has(item) {
			t.Errorf("missing %s", item)
		}
	}
	if used.Count(graph.KindMethodHandle) != 2 {
		t.Errorf("handles = %d", used.Count(graph.KindMethodHandle))
	}
}

func TestDefineClass(t *testing.T) {
	f := graph.NewFactory()
	class := &graph.ProgramClass{Type: f.Type("LA;"), Super: f.Type("LBase;"), Interfaces: []*graph.Type{f.Type("LI;")}}
	c := newCollector(f)
	c.DefineClass(class)
	used := c.Seal()
	if !used.Has(class) || !used.Has(f.Type("LBase;")) || !used.Has(f.Type("LI;")) {
		t.Error("class definition not expanded")
	}
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

func TestPhaseViolations(t *testing.T) {
	f := graph.NewFactory()

	c := newCollector(f)
	c.Recorder(nil)
	expectViolation(t, "still open", func() { c.Seal() })

	c = newCollector(f)
	c.Seal()
	expectViolation(t, "collector sealed", func() { c.Recorder(nil) })
	expectViolation(t, "collector sealed", func() { c.Seal() })

	c = newCollector(f)
	expectViolation(t, "before the collector was sealed", func() { c.Records() })

	rec := newCollector(f).Recorder(nil)
	rec.Close()
	expectViolation(t, "closed recorder", func() { rec.RegisterConstString(f.String("late")) })
}

func TestConcurrentRegistrationIsDeterministic(t *testing.T) {
	collect := func(seed int64) ([]Record, []string) {
		f := graph.NewFactory()
		c := newCollector(f)
		var methods []*graph.Method
		for i := 0; i < 32; i++ {
			methods = append(methods, mustMethod(t, f, fmt.Sprintf("LM%d;->run()V", i)))
		}
		rng := rand.New(rand.NewSource(seed))
		rng.Shuffle(len(methods), func(i, j int) { methods[i], methods[j] = methods[j], methods[i] })

		var wg sync.WaitGroup
		for _, m := range methods {
			wg.Add(1)
			go func(m *graph.Method) {
				defer wg.Done()
				rec := c.Recorder(m)
				for off := 0; off < 4; off++ {
					rec.SetOffset(off)
					rec.RegisterConstString(f.String(fmt.Sprintf("%s#%d", m.Holder, off)))
					rec.RegisterStaticFieldRead(f.Field(m.Holder, f.Type("I"), "f"))
				}
				rec.Close()
			}(m)
		}
		wg.Wait()
		used := c.Seal()
		var strs []string
		for _, s := range used.Strings() {
			strs = append(strs, s.Value)
		}
		slices.Sort(strs)
		return c.Records(), strs
	}

	r1, s1 := collect(1)
	r2, s2 := collect(2)
	if !slices.Equal(s1, s2) {
		t.Error("used strings differ between runs")
	}
	if len(r1) != len(r2) {
		t.Fatalf("record counts differ: %d vs %d", len(r1), len(r2))
	}
	for i := range r1 {
		if r1[i].String() != r2[i].String() {
			t.Fatalf("record %d differs: %s vs %s", i, r1[i], r2[i])
		}
	}
}

func TestLogRoundTrip(t *testing.T) {
	f := graph.NewFactory()
	c := newCollector(f)
	ctx := mustMethod(t, f, "LA;->m()V")
	rec := c.Recorder(ctx)
	rec.SetOffset(3)
	rec.RegisterNewInstance(f.Type("LB;"))
	rec.Close()
	c.Seal()

	data, err := MarshalLog(c.Records())
	if err != nil {
		t.Fatal(err)
	}
	entries, err := UnmarshalLog(data)
	if err != nil {
		t.Fatal(err)
	}
	want := LogEntry{Context: "LA;->m()V", Offset: 3, Access: "new-instance", Kind: "type", Symbol: "LB;"}
	if len(entries) != 1 || entries[0] != want {
		t.Errorf("entries = %+v, want %+v", entries, want)
	}
	if _, err := UnmarshalLog([]byte{0xff}); err == nil {
		t.Error("garbage log decoded without error")
	}
}
