// Package pool assigns constant-pool indices to the symbols a compilation
// uses.
//
// Every pool is sorted by the naming-aware symbol order and numbered densely
// from 0. Pools indexed with 16 bits fail with an OverflowError when they
// grow past IndexLimit entries, except the string pool: strings past the
// limit are still numbered, and the first of them becomes the jumbo marker
// so emission can switch to wide string references. Classes are ordered by
// hierarchy depth first, so supertypes precede their subtypes.
package pool

import (
	"context"
	"slices"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"github.com/Londek/r8-mirror/graph"
	"github.com/Londek/r8-mirror/invariant"
	"github.com/Londek/r8-mirror/naming"
	"github.com/Londek/r8-mirror/uses"
)

var log = commonlog.GetLogger("r8.pool")

// Lenses are the rewrites in effect for a compilation. InitClass may be nil
// when no code contains init-class instructions.
type Lenses struct {
	Graph     graph.Lens
	Naming    naming.Lens
	InitClass graph.InitClassLens
}

// IdentityLenses rewrites nothing.
func IdentityLenses() Lenses {
	return Lenses{Graph: graph.IdentityLens(), Naming: naming.Identity()}
}

// Assign builds the pools for a sealed used set. Each pool is sorted on its
// own goroutine; the result does not depend on scheduling. When several
// pools overflow, the error reported is the one of the first in the order
// protos, types, methods, fields, call sites, method handles.
func Assign(ctx context.Context, used *uses.UsedSet, program *graph.Program, lenses Lenses) (*Mapping, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m := &Mapping{lenses: lenses}
	nl := lenses.Naming

	var errs [6]error
	var g errgroup.Group
	g.Go(func() error {
		m.classes = sortClasses(used.Classes(), program, nl)
		return nil
	})
	g.Go(func() error {
		m.protos, errs[0] = buildSortedMap(used.Protos(),
			naming.Order(naming.CompareProtos, nl), failOnOverflow[*graph.Proto](graph.KindProto))
		return nil
	})
	g.Go(func() error {
		m.types, errs[1] = buildSortedMap(used.Types(),
			naming.Order(naming.CompareTypes, nl), failOnOverflow[*graph.Type](graph.KindType))
		return nil
	})
	g.Go(func() error {
		m.methods, errs[2] = buildSortedMap(used.Methods(),
			naming.Order(naming.CompareMethods, nl), failOnOverflow[*graph.Method](graph.KindMethod))
		return nil
	})
	g.Go(func() error {
		m.fields, errs[3] = buildSortedMap(used.Fields(),
			naming.Order(naming.CompareFields, nl), failOnOverflow[*graph.Field](graph.KindField))
		return nil
	})
	g.Go(func() error {
		m.callSites, errs[4] = buildSortedMap(used.CallSites(),
			naming.CompareCallSites, failOnOverflow[*graph.CallSite](graph.KindCallSite))
		return nil
	})
	g.Go(func() error {
		m.handles, errs[5] = buildSortedMap(used.MethodHandles(),
			naming.Order(naming.CompareMethodHandles, nl), failOnOverflow[*graph.MethodHandle](graph.KindMethodHandle))
		return nil
	})
	g.Go(func() error {
		var err error
		m.strings, err = buildSortedMap(used.Strings(),
			naming.Order(naming.CompareStrings, nl), m.setFirstJumboString)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, err := range errs {
		if err != nil {
			log.Errorf("%s", err)
			return nil, err
		}
	}

	log.Debugf("pools: %d classes, %d protos, %d types, %d methods, %d fields, %d strings, %d call sites, %d method handles",
		len(m.classes), m.protos.len(), m.types.len(), m.methods.len(), m.fields.len(),
		m.strings.len(), m.callSites.len(), m.handles.len())
	if m.firstJumboString != nil {
		log.Noticef("%d strings exceed the 16-bit index range; first jumbo string is %q",
			m.strings.len()-IndexLimit, m.firstJumboString.Value)
	}
	return m, nil
}

func (m *Mapping) setFirstJumboString(s *graph.String) error {
	if m.firstJumboString != nil {
		panic(invariant.Newf("first jumbo string already set to %q", m.firstJumboString.Value))
	}
	m.firstJumboString = s
	return nil
}

// sortClasses orders classes by depth, then by the naming-aware order.
// Depths are resolved in that secondary order, which fixes the depths
// assigned inside malformed cyclic hierarchies.
func sortClasses(classes []*graph.ProgramClass, program *graph.Program, lens naming.Lens) []*graph.ProgramClass {
	if len(classes) == 0 {
		return nil
	}
	sorted := slices.Clone(classes)
	slices.SortFunc(sorted, naming.Order(naming.CompareClasses, lens))

	resolver := NewDepthResolver(program)
	depths := make(map[*graph.ProgramClass]int, len(sorted))
	for _, c := range sorted {
		depths[c] = resolver.Depth(c)
	}
	slices.SortStableFunc(sorted, func(a, b *graph.ProgramClass) int {
		return depths[a] - depths[b]
	})
	return sorted
}
