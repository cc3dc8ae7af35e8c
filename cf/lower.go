package cf

import (
	"errors"
	"fmt"

	"github.com/Londek/r8-mirror/graph"
	"github.com/Londek/r8-mirror/ir"
	"github.com/Londek/r8-mirror/pool"
	"github.com/Londek/r8-mirror/uses"
)

// ErrUnsupported is returned when IR code has no stack-form lowering.
var ErrUnsupported = errors.New("cf: unsupported in stack code")

// Lower selects stack instructions for IR code. Every register becomes the
// local slot of the same number; each node loads its inputs, executes and
// stores its result.
func Lower(code *ir.Code) ([]Instruction, error) {
	var out []Instruction
	load := func(v *ir.Value) error {
		if !v.Type.IsPrecise() {
			return fmt.Errorf("%w: %s has imprecise type %s", ErrUnsupported, v, v.Type)
		}
		out = append(out, NewLoad(v.Type, v.Register))
		return nil
	}
	store := func(v *ir.Value) error {
		if !v.Type.IsPrecise() {
			return fmt.Errorf("%w: %s has imprecise type %s", ErrUnsupported, v, v.Type)
		}
		out = append(out, NewStore(v.Type, v.Register))
		return nil
	}
	member := func(t ir.MemberType) error {
		if !t.ValueType().IsPrecise() {
			return fmt.Errorf("%w: imprecise member type %s", ErrUnsupported, t)
		}
		return nil
	}

	for _, node := range code.Instructions {
		var err error
		switch n := node.(type) {
		case *ir.Argument:
		case *ir.Move:
			if err = load(n.Src); err == nil {
				err = store(n.Dest)
			}
		case *ir.ConstNumber:
			if !n.Dest.Type.IsPrecise() {
				err = fmt.Errorf("%w: constant %s has imprecise type", ErrUnsupported, n.Dest)
				break
			}
			out = append(out, NewConstNumber(n.Dest.Type, n.Bits))
			err = store(n.Dest)
		case *ir.ConstString:
			out = append(out, NewConstString(n.Value))
			err = store(n.Dest)
		case *ir.ConstMethodHandle:
			err = fmt.Errorf("%w: method handle constant %s", ErrUnsupported, n.Handle)
		case *ir.StaticGet:
			out = append(out, NewFieldInstruction(GETSTATIC, n.Field))
			err = store(n.Dest)
		case *ir.StaticPut:
			if err = load(n.Src); err == nil {
				out = append(out, NewFieldInstruction(PUTSTATIC, n.Field))
			}
		case *ir.InstanceGet:
			if err = load(n.Object); err == nil {
				out = append(out, NewFieldInstruction(GETFIELD, n.Field))
				err = store(n.Dest)
			}
		case *ir.InstancePut:
			err = errors.Join(load(n.Object), load(n.Src))
			if err == nil {
				out = append(out, NewFieldInstruction(PUTFIELD, n.Field))
			}
		case *ir.ArrayGet:
			err = errors.Join(member(n.Type), load(n.Array), load(n.Index))
			if err == nil {
				out = append(out, NewArrayLoad(n.Type))
				err = store(n.Dest)
			}
		case *ir.ArrayPut:
			err = errors.Join(member(n.Type), load(n.Array), load(n.Index), load(n.Src))
			if err == nil {
				out = append(out, NewArrayStore(n.Type))
			}
		case *ir.Invoke:
			for _, a := range n.Args {
				if err = load(a); err != nil {
					break
				}
			}
			if err != nil {
				break
			}
			out = append(out, NewInvoke(n.Kind, n.Method, false))
			err = discardOrStore(&out, n.Method.Proto.Return, n.Dest, store)
		case *ir.InvokeCustom:
			err = fmt.Errorf("%w: invoke-custom of %s", ErrUnsupported, n.CallSite)
		case *ir.NewInstance:
			out = append(out, NewNew(n.Class))
			err = store(n.Dest)
		case *ir.InitClass:
			out = append(out, NewInitClass(n.Class))
		case *ir.Return:
			if n.Src == nil {
				out = append(out, NewReturnVoid())
			} else if err = load(n.Src); err == nil {
				out = append(out, NewReturn(n.Src.Type))
			}
		default:
			err = fmt.Errorf("%w: %T", ErrUnsupported, node)
		}
		if err != nil {
			return nil, fmt.Errorf("lowering %s: %w", code.Method, err)
		}
	}
	return out, nil
}

// discardOrStore binds an invoke result, or pops it when nothing uses it.
func discardOrStore(out *[]Instruction, ret *graph.Type, dest *ir.Value, store func(*ir.Value) error) error {
	if dest != nil {
		return store(dest)
	}
	if ret.IsVoid() {
		return nil
	}
	if ret.IsWide() {
		*out = append(*out, NewStack(POP2))
	} else {
		*out = append(*out, NewStack(POP))
	}
	return nil
}

// MaxLocals returns the number of local slots code addresses.
func MaxLocals(code []Instruction) int {
	n := 0
	for _, inst := range code {
		var end int
		switch i := inst.(type) {
		case *Load:
			end = i.Var + i.Type.RequiredRegisters()
		case *Store:
			end = i.Var + i.Slots()
		}
		if end > n {
			n = end
		}
	}
	return n
}

// BuildIR builds the IR of a method body by executing code on a fresh
// frame with maxLocals local slots.
func BuildIR(method *graph.Method, code []Instruction, maxLocals int) *ir.Code {
	b := ir.NewCodeBuilder(method)
	s := NewState(method, maxLocals)
	for _, inst := range code {
		inst.BuildIR(b, s)
	}
	return b.Build()
}

// Emit writes code to v.
func Emit(code []Instruction, v MethodVisitor, m *pool.Mapping) {
	for _, inst := range code {
		inst.Write(v, m)
	}
}

// RegisterUses reports the symbols code references, with the instruction
// number as offset.
func RegisterUses(code []Instruction, r *uses.Recorder) {
	for k, inst := range code {
		r.SetOffset(k)
		inst.RegisterUse(r)
	}
}
