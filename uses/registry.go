// Package uses records which symbols each instruction references and how it
// accesses them.
//
// Registration is two-phase. While collecting, lowering workers register
// uses concurrently through per-method Recorders. Seal ends the phase and
// produces the UsedSet that pool assignment sizes its pools from; the set is
// read-only from then on.
package uses

import (
	"fmt"

	"github.com/Londek/r8-mirror/graph"
	"github.com/Londek/r8-mirror/invariant"
	"github.com/Londek/r8-mirror/ir"
)

// AccessKind is how an instruction uses a symbol.
type AccessKind uint8

const (
	InstanceFieldRead AccessKind = iota
	InstanceFieldWrite
	StaticFieldRead
	StaticFieldWrite
	InvokeVirtual
	InvokeSuper
	InvokeDirect
	InvokeStatic
	InvokeInterface
	InvokeCustom
	NewInstance
	InitClass
	ConstString
	ConstMethodHandle
)

var accessKindNames = [...]string{
	InstanceFieldRead:  "instance-field-read",
	InstanceFieldWrite: "instance-field-write",
	StaticFieldRead:    "static-field-read",
	StaticFieldWrite:   "static-field-write",
	InvokeVirtual:      "invoke-virtual",
	InvokeSuper:        "invoke-super",
	InvokeDirect:       "invoke-direct",
	InvokeStatic:       "invoke-static",
	InvokeInterface:    "invoke-interface",
	InvokeCustom:       "invoke-custom",
	NewInstance:        "new-instance",
	InitClass:          "init-class",
	ConstString:        "const-string",
	ConstMethodHandle:  "const-method-handle",
}

func (k AccessKind) String() string {
	if int(k) < len(accessKindNames) {
		return accessKindNames[k]
	}
	return fmt.Sprintf("AccessKind(%d)", uint8(k))
}

func (k AccessKind) IsFieldAccess() bool { return k <= StaticFieldWrite }

func (k AccessKind) IsInvoke() bool { return k >= InvokeVirtual && k <= InvokeCustom }

// Registry receives the uses of one instruction at a time.
type Registry interface {
	RegisterInstanceFieldRead(f *graph.Field)
	RegisterInstanceFieldWrite(f *graph.Field)
	RegisterStaticFieldRead(f *graph.Field)
	RegisterStaticFieldWrite(f *graph.Field)
	RegisterInvokeVirtual(m *graph.Method)
	RegisterInvokeSuper(m *graph.Method)
	RegisterInvokeDirect(m *graph.Method)
	RegisterInvokeStatic(m *graph.Method)
	RegisterInvokeInterface(m *graph.Method)
	RegisterCallSite(cs *graph.CallSite)
	RegisterNewInstance(t *graph.Type)
	RegisterInitClass(t *graph.Type)
	RegisterConstString(s *graph.String)
	RegisterMethodHandle(h *graph.MethodHandle)
}

// RegisterInvoke dispatches to the Registry method for kind.
func RegisterInvoke(r Registry, kind ir.InvokeType, m *graph.Method) {
	switch kind {
	case ir.InvokeVirtual:
		r.RegisterInvokeVirtual(m)
	case ir.InvokeSuper:
		r.RegisterInvokeSuper(m)
	case ir.InvokeDirect:
		r.RegisterInvokeDirect(m)
	case ir.InvokeStatic:
		r.RegisterInvokeStatic(m)
	case ir.InvokeInterface:
		r.RegisterInvokeInterface(m)
	default:
		panic(invariant.Unreachable("invoke type %s", kind))
	}
}

// Record is one registered use: the method and instruction offset it came
// from, the access kind and the symbol.
type Record struct {
	Context *graph.Method
	Offset  int
	Kind    AccessKind
	Item    graph.Item
}

func (r Record) String() string {
	ctx := "<none>"
	if r.Context != nil {
		ctx = r.Context.String()
	}
	return fmt.Sprintf("%s@%d %s %s", ctx, r.Offset, r.Kind, r.Item)
}

// ParseAccessKind returns the kind printed as name.
func ParseAccessKind(name string) (AccessKind, bool) {
	for k, n := range accessKindNames {
		if n == name {
			return AccessKind(k), true
		}
	}
	return 0, false
}

// Register replays one use of item with the given access kind. The item
// must be of the symbol kind the access takes.
func Register(r Registry, kind AccessKind, item graph.Item) {
	switch kind {
	case InstanceFieldRead:
		r.RegisterInstanceFieldRead(item.(*graph.Field))
	case InstanceFieldWrite:
		r.RegisterInstanceFieldWrite(item.(*graph.Field))
	case StaticFieldRead:
		r.RegisterStaticFieldRead(item.(*graph.Field))
	case StaticFieldWrite:
		r.RegisterStaticFieldWrite(item.(*graph.Field))
	case InvokeVirtual:
		r.RegisterInvokeVirtual(item.(*graph.Method))
	case InvokeSuper:
		r.RegisterInvokeSuper(item.(*graph.Method))
	case InvokeDirect:
		r.RegisterInvokeDirect(item.(*graph.Method))
	case InvokeStatic:
		r.RegisterInvokeStatic(item.(*graph.Method))
	case InvokeInterface:
		r.RegisterInvokeInterface(item.(*graph.Method))
	case InvokeCustom:
		r.RegisterCallSite(item.(*graph.CallSite))
	case NewInstance:
		r.RegisterNewInstance(item.(*graph.Type))
	case InitClass:
		r.RegisterInitClass(item.(*graph.Type))
	case ConstString:
		r.RegisterConstString(item.(*graph.String))
	case ConstMethodHandle:
		r.RegisterMethodHandle(item.(*graph.MethodHandle))
	default:
		panic(invariant.Unreachable("access kind %s", kind))
	}
}
