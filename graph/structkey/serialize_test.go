package structkey

import (
	"bytes"
	"testing"

	"github.com/Londek/r8-mirror/graph"
)

func TestTagsUnique(t *testing.T) {
	seen := make(map[byte]bool)
	for _, tag := range allTags {
		if seen[tag] {
			t.Fatalf("duplicate tag 0x%02X", tag)
		}
		seen[tag] = true
	}
}

// Golden bytes guard the frozen format.
func TestTypeKeyGolden(t *testing.T) {
	f := graph.NewFactory()
	got := Of(f.Type("I"))
	want := []byte{KeyVersion, TagType, 0, 0, 0, 1, 'I'}
	if !bytes.Equal(got, want) {
		t.Errorf("Of(I) = % x, want % x", got, want)
	}
}

func TestKeysDistinguishKinds(t *testing.T) {
	f := graph.NewFactory()
	items := []graph.Item{
		f.String("I"),
		f.Type("I"),
		f.Proto(f.Type("I")),
		f.Field(f.Type("LA;"), f.Type("I"), "I"),
		f.Method(f.Type("LA;"), "I", f.Proto(f.Type("I"))),
		&graph.ProgramClass{Type: f.Type("I")},
	}
	seen := make(map[string]int)
	for i, item := range items {
		k := string(Of(item))
		if j, dup := seen[k]; dup {
			t.Errorf("items %d and %d share key % x", j, i, k)
		}
		seen[k] = i
	}
}

func TestKeyStableAcrossFactories(t *testing.T) {
	build := func() []byte {
		f := graph.NewFactory()
		m, err := f.ParseMethod("LA;->run(IJ)V")
		if err != nil {
			t.Fatal(err)
		}
		h := f.MethodHandle(graph.HandleInvokeStatic, m)
		return Of(f.CallSite("go", m.Proto, h, f.String("arg")))
	}
	if a, b := build(), build(); !bytes.Equal(a, b) {
		t.Errorf("keys differ across factories:\n% x\n% x", a, b)
	}
}
