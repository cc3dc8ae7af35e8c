package graph

import (
	"cmp"
	"slices"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/Londek/r8-mirror/invariant"
)

// The Compare functions order symbols by structure alone, ignoring any
// renaming. Because symbols are interned, 0 is returned only for the same
// symbol.

// CompareUTF16 orders strings by their UTF-16 code units, the order dex
// string tables are sorted in. Strings that differ only in invalid UTF-8 are
// ordered bytewise.
func CompareUTF16(a, b string) int {
	x, y := a, b
	var ua, ub [2]uint16
	for x != "" && y != "" {
		ra, na := utf8.DecodeRuneInString(x)
		rb, nb := utf8.DecodeRuneInString(y)
		x, y = x[na:], y[nb:]
		if ra == rb {
			continue
		}
		if c := slices.Compare(utf16.AppendRune(ua[:0], ra), utf16.AppendRune(ub[:0], rb)); c != 0 {
			return c
		}
	}
	switch {
	case x == "" && y != "":
		return -1
	case x != "" && y == "":
		return 1
	}
	return strings.Compare(a, b)
}

func CompareStrings(a, b *String) int {
	if a == b {
		return 0
	}
	return CompareUTF16(a.Value, b.Value)
}

func CompareTypes(a, b *Type) int {
	if a == b {
		return 0
	}
	return CompareStrings(a.Descriptor, b.Descriptor)
}

// CompareTypeLists orders lists element-wise, shorter list first on a common
// prefix.
func CompareTypeLists(a, b []*Type) int {
	return slices.CompareFunc(a, b, CompareTypes)
}

// CompareProtos orders by return type, then parameters.
func CompareProtos(a, b *Proto) int {
	if a == b {
		return 0
	}
	if c := CompareTypes(a.Return, b.Return); c != 0 {
		return c
	}
	return CompareTypeLists(a.Params, b.Params)
}

// CompareFields orders by holder, name, type.
func CompareFields(a, b *Field) int {
	if a == b {
		return 0
	}
	if c := CompareTypes(a.Holder, b.Holder); c != 0 {
		return c
	}
	if c := CompareStrings(a.Name, b.Name); c != 0 {
		return c
	}
	return CompareTypes(a.Type, b.Type)
}

// CompareMethods orders by holder, name, proto.
func CompareMethods(a, b *Method) int {
	if a == b {
		return 0
	}
	if c := CompareTypes(a.Holder, b.Holder); c != 0 {
		return c
	}
	if c := CompareStrings(a.Name, b.Name); c != 0 {
		return c
	}
	return CompareProtos(a.Proto, b.Proto)
}

// CompareMethodHandles orders by handle type, then member.
func CompareMethodHandles(a, b *MethodHandle) int {
	if a == b {
		return 0
	}
	if c := cmp.Compare(a.HandleType, b.HandleType); c != 0 {
		return c
	}
	if a.Field != nil {
		return CompareFields(a.Field, b.Field)
	}
	return CompareMethods(a.Method, b.Method)
}

// CompareCallSites orders by name, proto, bootstrap handle, then bootstrap
// arguments.
func CompareCallSites(a, b *CallSite) int {
	if a == b {
		return 0
	}
	if c := CompareStrings(a.MethodName, b.MethodName); c != 0 {
		return c
	}
	if c := CompareProtos(a.MethodProto, b.MethodProto); c != 0 {
		return c
	}
	if c := CompareMethodHandles(a.Bootstrap, b.Bootstrap); c != 0 {
		return c
	}
	return slices.CompareFunc(a.BootstrapArgs, b.BootstrapArgs, CompareItems)
}

// CompareClasses orders class definitions by their type.
func CompareClasses(a, b *ProgramClass) int {
	return CompareTypes(a.Type, b.Type)
}

// CompareItems orders symbols of any kind: by kind first, then structurally.
func CompareItems(a, b Item) int {
	if c := cmp.Compare(a.Kind(), b.Kind()); c != 0 {
		return c
	}
	switch x := a.(type) {
	case *String:
		return CompareStrings(x, b.(*String))
	case *Type:
		return CompareTypes(x, b.(*Type))
	case *Proto:
		return CompareProtos(x, b.(*Proto))
	case *Field:
		return CompareFields(x, b.(*Field))
	case *Method:
		return CompareMethods(x, b.(*Method))
	case *MethodHandle:
		return CompareMethodHandles(x, b.(*MethodHandle))
	case *CallSite:
		return CompareCallSites(x, b.(*CallSite))
	case *ProgramClass:
		return CompareClasses(x, b.(*ProgramClass))
	}
	panic(invariant.Unreachable("comparison of %T", a))
}
