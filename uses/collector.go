package uses

import (
	"cmp"
	"slices"
	"sync"

	"github.com/Londek/r8-mirror/graph"
	"github.com/Londek/r8-mirror/invariant"
	"github.com/Londek/r8-mirror/naming"
)

// Collector gathers uses from concurrent producers until it is sealed.
type Collector struct {
	factory    *graph.Factory
	graphLens  graph.Lens
	namingLens naming.Lens
	initClass  graph.InitClassLens

	mu      sync.Mutex
	sealed  bool
	open    int
	records []Record
	classes []*graph.ProgramClass
	methods []*graph.Method
	used    *UsedSet
}

// NewCollector creates a collector. Symbols are rewritten through graphLens
// before they are added to the used set; the naming lens decides which name
// strings the set needs. initClass may be nil when no code contains
// init-class instructions.
func NewCollector(factory *graph.Factory, graphLens graph.Lens, namingLens naming.Lens, initClass graph.InitClassLens) *Collector {
	return &Collector{
		factory:    factory,
		graphLens:  graphLens,
		namingLens: namingLens,
		initClass:  initClass,
	}
}

// DefineClass adds a program class definition. Its type, supertype and
// interfaces are used.
func (c *Collector) DefineClass(class *graph.ProgramClass) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checkCollecting("define class %s", class)
	c.classes = append(c.classes, class)
}

// DefineMethod adds a method whose code is being compiled.
func (c *Collector) DefineMethod(m *graph.Method) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checkCollecting("define method %s", m)
	c.methods = append(c.methods, m)
}

func (c *Collector) checkCollecting(format string, args ...any) {
	if c.sealed {
		panic(invariant.Newf("collector sealed: cannot "+format, args...))
	}
}

// Recorder opens a producer for the uses of one method. The recorder must be
// closed before the collector is sealed.
func (c *Collector) Recorder(context *graph.Method) *Recorder {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checkCollecting("open recorder for %s", context)
	c.open++
	return &Recorder{c: c, context: context}
}

func (c *Collector) flush(records []Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checkCollecting("record %d uses", len(records))
	c.records = append(c.records, records...)
	c.open--
}

// Seal ends collection and returns the set of used symbols. Sealing twice or
// with recorders still open is an invariant violation.
func (c *Collector) Seal() *UsedSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checkCollecting("seal")
	if c.open != 0 {
		panic(invariant.Newf("seal with %d recorders still open", c.open))
	}
	c.sealed = true

	u := newUsedSet(c.factory, c.graphLens, c.namingLens, c.initClass)
	for _, class := range c.classes {
		u.addClass(class)
	}
	for _, m := range c.methods {
		u.addMethod(m)
	}
	for _, r := range c.records {
		u.addRecord(r)
	}
	c.used = u
	return u
}

// Records returns every registered use ordered by method, offset, access
// kind and symbol. It is only available once the collector is sealed.
func (c *Collector) Records() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.sealed {
		panic(invariant.Newf("records read before the collector was sealed"))
	}
	out := slices.Clone(c.records)
	slices.SortFunc(out, compareRecords)
	return out
}

func compareRecords(a, b Record) int {
	switch {
	case a.Context == nil && b.Context != nil:
		return -1
	case a.Context != nil && b.Context == nil:
		return 1
	case a.Context != nil:
		if c := graph.CompareMethods(a.Context, b.Context); c != 0 {
			return c
		}
	}
	if c := cmp.Compare(a.Offset, b.Offset); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
		return c
	}
	return graph.CompareItems(a.Item, b.Item)
}

// Recorder implements Registry for one method. It is not safe for
// concurrent use; each lowering worker owns its recorders.
type Recorder struct {
	c       *Collector
	context *graph.Method
	offset  int
	records []Record
	closed  bool
}

var _ Registry = (*Recorder)(nil)

// SetOffset sets the instruction offset attached to subsequent uses.
func (r *Recorder) SetOffset(offset int) { r.offset = offset }

// Close hands the recorded uses to the collector.
func (r *Recorder) Close() {
	if r.closed {
		panic(invariant.Newf("recorder for %s closed twice", r.context))
	}
	r.closed = true
	r.c.flush(r.records)
	r.records = nil
}

func (r *Recorder) add(kind AccessKind, item graph.Item) {
	if r.closed {
		panic(invariant.Newf("use of %s registered on a closed recorder", item))
	}
	r.records = append(r.records, Record{Context: r.context, Offset: r.offset, Kind: kind, Item: item})
}

func (r *Recorder) RegisterInstanceFieldRead(f *graph.Field)  { r.add(InstanceFieldRead, f) }
func (r *Recorder) RegisterInstanceFieldWrite(f *graph.Field) { r.add(InstanceFieldWrite, f) }
func (r *Recorder) RegisterStaticFieldRead(f *graph.Field)    { r.add(StaticFieldRead, f) }
func (r *Recorder) RegisterStaticFieldWrite(f *graph.Field)   { r.add(StaticFieldWrite, f) }
func (r *Recorder) RegisterInvokeVirtual(m *graph.Method)     { r.add(InvokeVirtual, m) }
func (r *Recorder) RegisterInvokeSuper(m *graph.Method)       { r.add(InvokeSuper, m) }
func (r *Recorder) RegisterInvokeDirect(m *graph.Method)      { r.add(InvokeDirect, m) }
func (r *Recorder) RegisterInvokeStatic(m *graph.Method)      { r.add(InvokeStatic, m) }
func (r *Recorder) RegisterInvokeInterface(m *graph.Method)   { r.add(InvokeInterface, m) }
func (r *Recorder) RegisterCallSite(cs *graph.CallSite)       { r.add(InvokeCustom, cs) }
func (r *Recorder) RegisterNewInstance(t *graph.Type)         { r.add(NewInstance, t) }
func (r *Recorder) RegisterInitClass(t *graph.Type)           { r.add(InitClass, t) }
func (r *Recorder) RegisterConstString(s *graph.String)       { r.add(ConstString, s) }
func (r *Recorder) RegisterMethodHandle(h *graph.MethodHandle) {
	r.add(ConstMethodHandle, h)
}
