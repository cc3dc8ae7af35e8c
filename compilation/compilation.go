// Package compilation drives a backend run: lowering and use registration
// for every method in parallel, pool assignment once all uses are in, and
// parallel emission against the assigned pools.
package compilation

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	"golang.org/x/sync/errgroup"

	"github.com/Londek/r8-mirror/cf"
	"github.com/Londek/r8-mirror/config"
	"github.com/Londek/r8-mirror/dex"
	"github.com/Londek/r8-mirror/graph"
	"github.com/Londek/r8-mirror/ir"
	"github.com/Londek/r8-mirror/naming"
	"github.com/Londek/r8-mirror/pool"
	"github.com/Londek/r8-mirror/uses"
)

var log = commonlog.GetLogger("r8.compilation")

// Method is one method body to compile.
type Method struct {
	Ref  *graph.Method
	Code *ir.Code
}

// Output is the emitted code of one method. Dex is set for the dex target;
// Cf and MaxLocals for the cf target.
type Output struct {
	Method    *graph.Method
	Dex       []uint16
	Cf        *cf.Recorder
	MaxLocals int
}

// Result is the outcome of a run. Outputs are in input order.
type Result struct {
	ID      uuid.UUID
	Mapping *pool.Mapping
	Outputs []Output
}

// Compilation holds what is fixed for a run.
type Compilation struct {
	ID      uuid.UUID
	factory *graph.Factory
	program *graph.Program
	lenses  pool.Lenses
	options *config.Options
}

// New creates a compilation. A nil options uses config.Default; unset
// fields of a given one take their defaults.
func New(factory *graph.Factory, program *graph.Program, lenses pool.Lenses, options *config.Options) *Compilation {
	if options == nil {
		options = config.Default()
	} else {
		o := *options
		o.ApplyDefaults()
		options = &o
	}
	return &Compilation{
		ID:      uuid.New(),
		factory: factory,
		program: program,
		lenses:  lenses,
		options: options,
	}
}

// NewFromOptions creates a compilation whose naming lens is read from the
// mapping file the options name, and configures logging verbosity.
func NewFromOptions(factory *graph.Factory, program *graph.Program, graphLens graph.Lens, initClass graph.InitClassLens, options *config.Options) (*Compilation, error) {
	commonlog.Configure(options.Compilation.Verbosity, nil)

	lenses := pool.Lenses{Graph: graphLens, Naming: naming.Identity(), InitClass: initClass}
	if lenses.Graph == nil {
		lenses.Graph = graph.IdentityLens()
	}
	if path := options.MappingPath(); path != "" {
		lens, err := naming.LoadMapping(path, factory)
		if err != nil {
			return nil, err
		}
		lenses.Naming = lens
	}
	return New(factory, program, lenses, options), nil
}

// lowered is the target code of one method between lowering and emission.
type lowered struct {
	dex []dex.Instruction
	cf  []cf.Instruction
}

// Run compiles methods. The only user-facing failure besides cancellation
// and unsupported stack-form code is a pool overflow (*pool.OverflowError).
func (c *Compilation) Run(ctx context.Context, methods []Method) (*Result, error) {
	target := c.options.Compilation.Target
	log.Infof("compilation %s: %d methods, target %s", c.ID, len(methods), target)

	collector := c.newCollector(methods)

	code := make([]lowered, len(methods))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.options.Compilation.Workers)
	for i, m := range methods {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec := collector.Recorder(m.Ref)
			defer rec.Close()
			switch target {
			case config.TargetCf:
				insts, err := cf.Lower(m.Code)
				if err != nil {
					return err
				}
				cf.RegisterUses(insts, rec)
				code[i].cf = insts
			default:
				insts := dex.Lower(m.Code)
				dex.RegisterUses(insts, rec)
				code[i].dex = insts
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("compilation %s: %w", c.ID, err)
	}

	mapping, err := c.assign(ctx, collector)
	if err != nil {
		return nil, err
	}

	outputs := make([]Output, len(methods))
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(c.options.Compilation.Workers)
	for i, m := range methods {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out := Output{Method: m.Ref}
			switch target {
			case config.TargetCf:
				out.Cf = &cf.Recorder{}
				cf.Emit(code[i].cf, out.Cf, mapping)
				out.MaxLocals = max(cf.MaxLocals(code[i].cf), m.Code.RegisterCount)
			default:
				out.Dex = dex.Encode(dex.RewriteJumboStrings(code[i].dex, mapping), mapping)
			}
			outputs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("compilation %s: %w", c.ID, err)
	}
	log.Infof("compilation %s: emitted %d methods", c.ID, len(methods))

	if err := c.writeArtifacts(mapping, collector); err != nil {
		return nil, err
	}
	return &Result{ID: c.ID, Mapping: mapping, Outputs: outputs}, nil
}

// AssignUses assigns pools for uses recorded elsewhere, such as a replayed
// use log, instead of for lowered code.
func (c *Compilation) AssignUses(ctx context.Context, records []uses.Record) (*pool.Mapping, error) {
	collector := c.newCollector(nil)
	recorders := make(map[*graph.Method]*uses.Recorder)
	for _, r := range records {
		rec, ok := recorders[r.Context]
		if !ok {
			rec = collector.Recorder(r.Context)
			recorders[r.Context] = rec
		}
		rec.SetOffset(r.Offset)
		uses.Register(rec, r.Kind, r.Item)
	}
	for _, rec := range recorders {
		rec.Close()
	}
	mapping, err := c.assign(ctx, collector)
	if err != nil {
		return nil, err
	}
	if err := c.writeArtifacts(mapping, collector); err != nil {
		return nil, err
	}
	return mapping, nil
}

func (c *Compilation) newCollector(methods []Method) *uses.Collector {
	collector := uses.NewCollector(c.factory, c.lenses.Graph, c.lenses.Naming, c.lenses.InitClass)
	for _, class := range c.program.Classes() {
		collector.DefineClass(class)
	}
	for _, m := range methods {
		collector.DefineMethod(m.Ref)
	}
	return collector
}

// assign seals collector and builds the pools.
func (c *Compilation) assign(ctx context.Context, collector *uses.Collector) (*pool.Mapping, error) {
	used := collector.Seal()
	log.Infof("compilation %s: %d strings, %d types, %d fields, %d methods used",
		c.ID, used.Count(graph.KindString), used.Count(graph.KindType), used.Count(graph.KindField), used.Count(graph.KindMethod))

	mapping, err := pool.Assign(ctx, used, c.program, c.lenses)
	if err != nil {
		log.Errorf("compilation %s: %s", c.ID, err)
		return nil, fmt.Errorf("compilation %s: %w", c.ID, err)
	}
	if mapping.HasJumboStrings() {
		log.Noticef("compilation %s: strings from %q need const-string/jumbo", c.ID, mapping.FirstJumboString().Value)
	}
	return mapping, nil
}

func (c *Compilation) writeArtifacts(mapping *pool.Mapping, collector *uses.Collector) error {
	if path := c.options.SnapshotPath(); path != "" {
		snap := mapping.Snapshot()
		data, err := snap.Marshal()
		if err != nil {
			return fmt.Errorf("compilation %s: %w", c.ID, err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("cannot write %s: %w", path, err)
		}
		digest, err := snap.Digest()
		if err != nil {
			return fmt.Errorf("compilation %s: %w", c.ID, err)
		}
		log.Infof("compilation %s: wrote pool snapshot %s (digest %016x)", c.ID, path, digest)
	}
	if path := c.options.UsesLogPath(); path != "" {
		data, err := uses.MarshalLog(collector.Records())
		if err != nil {
			return fmt.Errorf("compilation %s: %w", c.ID, err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("cannot write %s: %w", path, err)
		}
		log.Debugf("compilation %s: wrote use log %s", c.ID, path)
	}
	return nil
}
