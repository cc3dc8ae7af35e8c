package uses

import (
	"maps"
	"slices"

	"github.com/Londek/r8-mirror/graph"
	"github.com/Londek/r8-mirror/invariant"
	"github.com/Londek/r8-mirror/naming"
)

// UsedSet is the sealed set of symbols that need pool indices. Using a
// member uses its holder, its type or proto, and its final name string;
// using a type uses its final descriptor string.
//
// Accessors return slices in no particular order; pool assignment sorts
// them.
type UsedSet struct {
	factory    *graph.Factory
	graphLens  graph.Lens
	namingLens naming.Lens
	initClass  graph.InitClassLens
	rewrites   bool
	renames    bool

	strings   map[*graph.String]struct{}
	types     map[*graph.Type]struct{}
	protos    map[*graph.Proto]struct{}
	fields    map[*graph.Field]struct{}
	methods   map[*graph.Method]struct{}
	handles   map[*graph.MethodHandle]struct{}
	callSites map[*graph.CallSite]struct{}
	classes   map[*graph.ProgramClass]struct{}
}

func newUsedSet(factory *graph.Factory, graphLens graph.Lens, namingLens naming.Lens, initClass graph.InitClassLens) *UsedSet {
	return &UsedSet{
		factory:    factory,
		graphLens:  graphLens,
		namingLens: namingLens,
		initClass:  initClass,
		rewrites:   !graphLens.IsIdentity(),
		renames:    !namingLens.IsIdentity(),
		strings:    make(map[*graph.String]struct{}),
		types:      make(map[*graph.Type]struct{}),
		protos:     make(map[*graph.Proto]struct{}),
		fields:     make(map[*graph.Field]struct{}),
		methods:    make(map[*graph.Method]struct{}),
		handles:    make(map[*graph.MethodHandle]struct{}),
		callSites:  make(map[*graph.CallSite]struct{}),
		classes:    make(map[*graph.ProgramClass]struct{}),
	}
}

func (u *UsedSet) Strings() []*graph.String             { return slices.Collect(maps.Keys(u.strings)) }
func (u *UsedSet) Types() []*graph.Type                 { return slices.Collect(maps.Keys(u.types)) }
func (u *UsedSet) Protos() []*graph.Proto               { return slices.Collect(maps.Keys(u.protos)) }
func (u *UsedSet) Fields() []*graph.Field               { return slices.Collect(maps.Keys(u.fields)) }
func (u *UsedSet) Methods() []*graph.Method             { return slices.Collect(maps.Keys(u.methods)) }
func (u *UsedSet) MethodHandles() []*graph.MethodHandle { return slices.Collect(maps.Keys(u.handles)) }
func (u *UsedSet) CallSites() []*graph.CallSite         { return slices.Collect(maps.Keys(u.callSites)) }
func (u *UsedSet) Classes() []*graph.ProgramClass       { return slices.Collect(maps.Keys(u.classes)) }

// Has reports whether item is in the set.
func (u *UsedSet) Has(item graph.Item) bool {
	var ok bool
	switch x := item.(type) {
	case *graph.String:
		_, ok = u.strings[x]
	case *graph.Type:
		_, ok = u.types[x]
	case *graph.Proto:
		_, ok = u.protos[x]
	case *graph.Field:
		_, ok = u.fields[x]
	case *graph.Method:
		_, ok = u.methods[x]
	case *graph.MethodHandle:
		_, ok = u.handles[x]
	case *graph.CallSite:
		_, ok = u.callSites[x]
	case *graph.ProgramClass:
		_, ok = u.classes[x]
	}
	return ok
}

// Count returns the number of used symbols of a kind.
func (u *UsedSet) Count(kind graph.Kind) int {
	switch kind {
	case graph.KindString:
		return len(u.strings)
	case graph.KindType:
		return len(u.types)
	case graph.KindProto:
		return len(u.protos)
	case graph.KindField:
		return len(u.fields)
	case graph.KindMethod:
		return len(u.methods)
	case graph.KindMethodHandle:
		return len(u.handles)
	case graph.KindCallSite:
		return len(u.callSites)
	case graph.KindClass:
		return len(u.classes)
	}
	panic(invariant.Unreachable("kind %s", kind))
}

func (u *UsedSet) addString(s *graph.String) {
	u.strings[s] = struct{}{}
}

// Identity lenses are not consulted: the final name of a symbol is then
// the interned string it already holds.

func (u *UsedSet) addType(t *graph.Type) {
	if u.rewrites {
		t = u.graphLens.LookupType(t)
	}
	if _, ok := u.types[t]; ok {
		return
	}
	u.types[t] = struct{}{}
	if u.renames {
		u.addString(u.factory.String(u.namingLens.LookupDescriptor(t)))
	} else {
		u.addString(t.Descriptor)
	}
}

func (u *UsedSet) addProto(p *graph.Proto) {
	if _, ok := u.protos[p]; ok {
		return
	}
	u.protos[p] = struct{}{}
	u.addString(p.Shorty)
	u.addType(p.Return)
	for _, param := range p.Params {
		u.addType(param)
	}
}

func (u *UsedSet) addField(f *graph.Field) {
	if u.rewrites {
		f = u.graphLens.LookupField(f)
	}
	if _, ok := u.fields[f]; ok {
		return
	}
	u.fields[f] = struct{}{}
	u.addType(f.Holder)
	u.addType(f.Type)
	if u.renames {
		u.addString(u.factory.String(u.namingLens.LookupFieldName(f)))
	} else {
		u.addString(f.Name)
	}
}

func (u *UsedSet) addMethod(m *graph.Method) {
	if u.rewrites {
		m = u.graphLens.LookupMethod(m)
	}
	if _, ok := u.methods[m]; ok {
		return
	}
	u.methods[m] = struct{}{}
	u.addType(m.Holder)
	u.addProto(m.Proto)
	if u.renames {
		u.addString(u.factory.String(u.namingLens.LookupMethodName(m)))
	} else {
		u.addString(m.Name)
	}
}

func (u *UsedSet) addMethodHandle(h *graph.MethodHandle) {
	if _, ok := u.handles[h]; ok {
		return
	}
	u.handles[h] = struct{}{}
	if h.Field != nil {
		u.addField(h.Field)
	} else {
		u.addMethod(h.Method)
	}
}

func (u *UsedSet) addCallSite(cs *graph.CallSite) {
	if _, ok := u.callSites[cs]; ok {
		return
	}
	u.callSites[cs] = struct{}{}
	u.addString(cs.MethodName)
	u.addProto(cs.MethodProto)
	u.addMethodHandle(cs.Bootstrap)
	for _, arg := range cs.BootstrapArgs {
		switch a := arg.(type) {
		case *graph.String:
			u.addString(a)
		case *graph.Type:
			u.addType(a)
		case *graph.Proto:
			u.addProto(a)
		case *graph.MethodHandle:
			u.addMethodHandle(a)
		default:
			panic(invariant.Unreachable("bootstrap argument %T", arg))
		}
	}
}

func (u *UsedSet) addClass(c *graph.ProgramClass) {
	u.classes[c] = struct{}{}
	u.addType(c.Type)
	if c.Super != nil {
		u.addType(c.Super)
	}
	for _, itf := range c.Interfaces {
		u.addType(itf)
	}
}

func (u *UsedSet) addRecord(r Record) {
	switch r.Kind {
	case InstanceFieldRead, InstanceFieldWrite, StaticFieldRead, StaticFieldWrite:
		u.addField(r.Item.(*graph.Field))
	case InvokeVirtual, InvokeSuper, InvokeDirect, InvokeStatic, InvokeInterface:
		u.addMethod(r.Item.(*graph.Method))
	case InvokeCustom:
		u.addCallSite(r.Item.(*graph.CallSite))
	case NewInstance:
		u.addType(r.Item.(*graph.Type))
	case InitClass:
		t := r.Item.(*graph.Type)
		if u.initClass == nil {
			panic(invariant.Newf("init-class of %s without an init-class lens", t))
		}
		u.addType(t)
		if u.rewrites {
			t = u.graphLens.LookupType(t)
		}
		u.addField(u.initClass.InitClassField(t))
	case ConstString:
		u.addString(r.Item.(*graph.String))
	case ConstMethodHandle:
		u.addMethodHandle(r.Item.(*graph.MethodHandle))
	default:
		panic(invariant.Unreachable("access kind %s", r.Kind))
	}
}
