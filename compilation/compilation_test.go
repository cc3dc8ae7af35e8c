package compilation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/kr/pretty"

	"github.com/Londek/r8-mirror/config"
	"github.com/Londek/r8-mirror/dex"
	"github.com/Londek/r8-mirror/graph"
	"github.com/Londek/r8-mirror/ir"
	"github.com/Londek/r8-mirror/pool"
	"github.com/Londek/r8-mirror/uses"
)

// fixture is a small program: a counter class with a static field and a
// caller that reads it, writes it back and logs a message.
type fixture struct {
	factory *graph.Factory
	program *graph.Program
	methods []Method
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := graph.NewFactory()
	object := f.Type("Ljava/lang/Object;")
	counter := &graph.ProgramClass{Type: f.Type("Lcom/example/Counter;"), Super: object}
	main := &graph.ProgramClass{Type: f.Type("Lcom/example/Main;"), Super: object}

	parseField := func(ref string) *graph.Field {
		fld, err := f.ParseField(ref)
		if err != nil {
			t.Fatal(err)
		}
		return fld
	}
	parseMethod := func(ref string) *graph.Method {
		m, err := f.ParseMethod(ref)
		if err != nil {
			t.Fatal(err)
		}
		return m
	}

	count := parseField("Lcom/example/Counter;->count:I")
	logger := parseMethod("Lcom/example/Main;->log(Ljava/lang/String;)V")

	bump := parseMethod("Lcom/example/Counter;->bump()I")
	b := ir.NewCodeBuilder(bump)
	b.AddStaticGet(ir.MemberInt, 0, count)
	b.AddStaticPut(ir.MemberInt, 0, count)
	b.AddReturn(ir.Int, 0)

	run := parseMethod("Lcom/example/Main;->run()V")
	r := ir.NewCodeBuilder(run)
	r.AddInvoke(ir.InvokeStatic, bump, nil)
	r.AddMoveResult(ir.Int, 1)
	r.AddConstString(0, f.String("bumped"))
	r.AddInvoke(ir.InvokeStatic, logger, []int{0})
	r.AddReturnVoid()

	return &fixture{
		factory: f,
		program: graph.NewProgram(counter, main),
		methods: []Method{{Ref: bump, Code: b.Build()}, {Ref: run, Code: r.Build()}},
	}
}

func options(target config.Target) *config.Options {
	o := config.Default()
	o.Compilation.Target = target
	o.Compilation.Workers = 2
	return o
}

func TestRunDex(t *testing.T) {
	fx := newFixture(t)
	c := New(fx.factory, fx.program, pool.IdentityLenses(), options(config.TargetDex))
	res, err := c.Run(context.Background(), fx.methods)
	if err != nil {
		t.Fatal(err)
	}
	if res.ID != c.ID {
		t.Errorf("result ID %s, compilation ID %s", res.ID, c.ID)
	}
	if len(res.Outputs) != 2 || res.Outputs[0].Method != fx.methods[0].Ref {
		t.Fatalf("outputs = %v", res.Outputs)
	}

	code, err := dex.Decode(res.Outputs[0].Dex, dex.TablesFrom(res.Mapping))
	if err != nil {
		t.Fatal(err)
	}
	want := []dex.Opcode{dex.OpSget, dex.OpSput, dex.OpReturn}
	var got []dex.Opcode
	for _, inst := range code {
		got = append(got, inst.Opcode())
	}
	if !slices.Equal(got, want) {
		t.Errorf("bump =\n%s", dex.Disassemble(code))
	}

	for _, name := range []string{"Lcom/example/Counter;", "Lcom/example/Main;", "bumped", "count"} {
		s, ok := fx.factory.LookupString(name)
		if !ok {
			t.Errorf("string %q was never interned", name)
			continue
		}
		res.Mapping.StringIndex(s)
	}
}

func TestRunCf(t *testing.T) {
	fx := newFixture(t)
	dir := t.TempDir()
	mapping := filepath.Join(dir, "mapping.yaml")
	yaml := "classes:\n  Lcom/example/Counter;: La;\nfields:\n  Lcom/example/Counter;->count:I: c\n"
	if err := os.WriteFile(mapping, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	o := options(config.TargetCf)
	o.Naming.Mapping = mapping

	c, err := NewFromOptions(fx.factory, fx.program, nil, nil, o)
	if err != nil {
		t.Fatal(err)
	}
	res, err := c.Run(context.Background(), fx.methods)
	if err != nil {
		t.Fatal(err)
	}
	bump := res.Outputs[0]
	want := []string{
		"GETSTATIC a.c : I",
		"ISTORE 0",
		"ILOAD 0",
		"PUTSTATIC a.c : I",
		"ILOAD 0",
		"IRETURN",
	}
	if !slices.Equal(bump.Cf.Lines(), want) {
		t.Errorf("bump =\n%s", bump.Cf)
	}
	if bump.MaxLocals != 1 {
		t.Errorf("max locals = %d, want 1", bump.MaxLocals)
	}
	if !strings.Contains(res.Outputs[1].Cf.String(), "INVOKESTATIC a.bump ()I") {
		t.Errorf("run =\n%s", res.Outputs[1].Cf)
	}
}

func TestDeterministicSnapshots(t *testing.T) {
	dir := t.TempDir()
	var digests []uint64
	var snaps []*pool.Snapshot
	for i := 0; i < 3; i++ {
		fx := newFixture(t)
		methods := fx.methods
		if i%2 == 1 {
			methods = slices.Clone(methods)
			slices.Reverse(methods)
		}
		o := options(config.TargetDex)
		o.Output.Snapshot = filepath.Join(dir, "pools.cbor")
		o.Output.UsesLog = filepath.Join(dir, "uses.cbor")
		if _, err := New(fx.factory, fx.program, pool.IdentityLenses(), o).Run(context.Background(), methods); err != nil {
			t.Fatal(err)
		}
		data, err := os.ReadFile(o.Output.Snapshot)
		if err != nil {
			t.Fatal(err)
		}
		snap, err := pool.UnmarshalSnapshot(data)
		if err != nil {
			t.Fatal(err)
		}
		digest, err := snap.Digest()
		if err != nil {
			t.Fatal(err)
		}
		digests = append(digests, digest)
		snaps = append(snaps, snap)

		logData, err := os.ReadFile(o.Output.UsesLog)
		if err != nil {
			t.Fatal(err)
		}
		entries, err := uses.UnmarshalLog(logData)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) == 0 {
			t.Error("empty use log")
		}
	}
	for i := 1; i < len(snaps); i++ {
		if digests[i] != digests[0] {
			t.Errorf("run %d digest %016x, run 0 %016x", i, digests[i], digests[0])
			for _, d := range pretty.Diff(snaps[0], snaps[i]) {
				t.Log(d)
			}
		}
	}
}

func TestRunCancelled(t *testing.T) {
	fx := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(fx.factory, fx.program, pool.IdentityLenses(), options(config.TargetDex)).Run(ctx, fx.methods)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestRunCfRejectsMethodHandles(t *testing.T) {
	f := graph.NewFactory()
	m, _ := f.ParseMethod("LA;->run()V")
	target, _ := f.ParseMethod("LA;->target()V")
	b := ir.NewCodeBuilder(m)
	b.AddConstMethodHandle(0, f.MethodHandle(graph.HandleInvokeStatic, target))
	b.AddReturnVoid()

	_, err := New(f, graph.NewProgram(), pool.IdentityLenses(), options(config.TargetCf)).
		Run(context.Background(), []Method{{Ref: m, Code: b.Build()}})
	if err == nil || !strings.Contains(err.Error(), "method handle") {
		t.Errorf("err = %v", err)
	}
}

func TestMissingMappingFile(t *testing.T) {
	fx := newFixture(t)
	o := options(config.TargetDex)
	o.Naming.Mapping = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := NewFromOptions(fx.factory, fx.program, nil, nil, o); err == nil {
		t.Error("expected an error for a missing mapping file")
	}
}

func TestZeroOptionsTakeDefaults(t *testing.T) {
	fx := newFixture(t)
	opts := &config.Options{}
	c := New(fx.factory, fx.program, pool.IdentityLenses(), opts)
	res, err := c.Run(context.Background(), fx.methods)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Outputs) != 2 || res.Outputs[0].Dex == nil {
		t.Errorf("outputs = %v", res.Outputs)
	}
	if opts.Compilation.Workers != 0 || opts.Compilation.Target != "" {
		t.Errorf("caller options changed: %+v", opts.Compilation)
	}
}
