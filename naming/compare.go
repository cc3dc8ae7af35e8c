package naming

import (
	"cmp"

	"github.com/Londek/r8-mirror/graph"
)

// The Compare functions order symbols by their renamed representation.
// Symbols that rename to the same text fall back to graph's structural
// order, so each function is a strict total order over interned symbols.

func CompareStrings(a, b *graph.String, _ Lens) int {
	return graph.CompareStrings(a, b)
}

func CompareTypes(a, b *graph.Type, lens Lens) int {
	if a == b {
		return 0
	}
	if c := graph.CompareUTF16(lens.LookupDescriptor(a), lens.LookupDescriptor(b)); c != 0 {
		return c
	}
	return graph.CompareTypes(a, b)
}

func CompareProtos(a, b *graph.Proto, lens Lens) int {
	if a == b {
		return 0
	}
	if c := compareRenamedProtos(a, b, lens); c != 0 {
		return c
	}
	return graph.CompareProtos(a, b)
}

func compareRenamedProtos(a, b *graph.Proto, lens Lens) int {
	if c := graph.CompareUTF16(lens.LookupDescriptor(a.Return), lens.LookupDescriptor(b.Return)); c != 0 {
		return c
	}
	for i := 0; i < len(a.Params) && i < len(b.Params); i++ {
		if c := graph.CompareUTF16(lens.LookupDescriptor(a.Params[i]), lens.LookupDescriptor(b.Params[i])); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(a.Params), len(b.Params))
}

// CompareFields orders by renamed holder, renamed name, renamed type.
func CompareFields(a, b *graph.Field, lens Lens) int {
	if a == b {
		return 0
	}
	if c := graph.CompareUTF16(lens.LookupDescriptor(a.Holder), lens.LookupDescriptor(b.Holder)); c != 0 {
		return c
	}
	if c := graph.CompareUTF16(lens.LookupFieldName(a), lens.LookupFieldName(b)); c != 0 {
		return c
	}
	if c := graph.CompareUTF16(lens.LookupDescriptor(a.Type), lens.LookupDescriptor(b.Type)); c != 0 {
		return c
	}
	return graph.CompareFields(a, b)
}

// CompareMethods orders by renamed holder, renamed name, renamed proto.
func CompareMethods(a, b *graph.Method, lens Lens) int {
	if a == b {
		return 0
	}
	if c := graph.CompareUTF16(lens.LookupDescriptor(a.Holder), lens.LookupDescriptor(b.Holder)); c != 0 {
		return c
	}
	if c := graph.CompareUTF16(lens.LookupMethodName(a), lens.LookupMethodName(b)); c != 0 {
		return c
	}
	if c := compareRenamedProtos(a.Proto, b.Proto, lens); c != 0 {
		return c
	}
	return graph.CompareMethods(a, b)
}

func CompareMethodHandles(a, b *graph.MethodHandle, lens Lens) int {
	if a == b {
		return 0
	}
	if c := cmp.Compare(a.HandleType, b.HandleType); c != 0 {
		return c
	}
	var c int
	if a.Field != nil {
		c = CompareFields(a.Field, b.Field, lens)
	} else {
		c = CompareMethods(a.Method, b.Method, lens)
	}
	if c != 0 {
		return c
	}
	return graph.CompareMethodHandles(a, b)
}

// CompareCallSites uses the structural call-site order; call sites are not
// renamed.
func CompareCallSites(a, b *graph.CallSite) int {
	return graph.CompareCallSites(a, b)
}

func CompareClasses(a, b *graph.ProgramClass, lens Lens) int {
	return CompareTypes(a.Type, b.Type, lens)
}

// Order binds a lens to a Compare function, giving a func usable with
// slices.SortFunc.
func Order[T any](compare func(a, b T, lens Lens) int, lens Lens) func(a, b T) int {
	return func(a, b T) int { return compare(a, b, lens) }
}
