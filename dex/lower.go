package dex

import (
	"fmt"
	"strings"

	"github.com/Londek/r8-mirror/invariant"
	"github.com/Londek/r8-mirror/ir"
	"github.com/Londek/r8-mirror/pool"
	"github.com/Londek/r8-mirror/uses"
)

// Lower selects register-form instructions for IR code. Values keep the
// registers they were built with, and each instruction takes the narrowest
// encoding its registers fit.
func Lower(code *ir.Code) []Instruction {
	out := make([]Instruction, 0, len(code.Instructions))
	for _, node := range code.Instructions {
		switch n := node.(type) {
		case *ir.Argument:
		case *ir.Move:
			out = append(out, NewMove(n.Dest.Type.MoveType(), n.Dest.Register, n.Src.Register))
		case *ir.ConstNumber:
			if n.Dest.Type.IsWide() {
				out = append(out, NewConstWide(n.Dest.Register, n.Bits))
			} else {
				out = append(out, NewConst(n.Dest.Register, int32(n.Bits)))
			}
		case *ir.ConstString:
			out = append(out, NewConstString(n.Dest.Register, n.Value))
		case *ir.ConstMethodHandle:
			out = append(out, NewConstMethodHandle(n.Dest.Register, n.Handle))
		case *ir.StaticGet:
			out = append(out, NewStaticGet(n.Type, n.Dest.Register, n.Field))
		case *ir.StaticPut:
			out = append(out, NewStaticPut(n.Type, n.Src.Register, n.Field))
		case *ir.InstanceGet:
			out = append(out, NewInstanceGet(n.Type, n.Dest.Register, n.Object.Register, n.Field))
		case *ir.InstancePut:
			out = append(out, NewInstancePut(n.Type, n.Src.Register, n.Object.Register, n.Field))
		case *ir.ArrayGet:
			out = append(out, NewArrayGet(n.Type, n.Dest.Register, n.Array.Register, n.Index.Register))
		case *ir.ArrayPut:
			out = append(out, NewArrayPut(n.Type, n.Src.Register, n.Array.Register, n.Index.Register))
		case *ir.Invoke:
			out = append(out, NewInvoke(n.Kind, n.Method, argRegisters(n.Args)))
			out = appendMoveResult(out, n.Dest)
		case *ir.InvokeCustom:
			out = append(out, NewInvokeCustom(n.CallSite, argRegisters(n.Args)))
			out = appendMoveResult(out, n.Dest)
		case *ir.NewInstance:
			out = append(out, NewNewInstance(n.Dest.Register, n.Class))
		case *ir.InitClass:
			out = append(out, NewInitClass(n.Dest.Register, n.Class))
		case *ir.Return:
			if n.Src == nil {
				out = append(out, NewReturnVoid())
			} else {
				out = append(out, NewReturn(n.Src.Type.MoveType(), n.Src.Register))
			}
		default:
			panic(invariant.Unreachable("lowering %T", node))
		}
	}
	return out
}

// argRegisters spells out both registers of each wide argument.
func argRegisters(args []*ir.Value) []int {
	regs := make([]int, 0, len(args))
	for _, a := range args {
		regs = append(regs, a.Register)
		if a.Type.IsWide() {
			regs = append(regs, a.Register+1)
		}
	}
	return regs
}

func appendMoveResult(out []Instruction, dest *ir.Value) []Instruction {
	if dest == nil {
		return out
	}
	return append(out, NewMoveResult(dest.Type.MoveType(), dest.Register))
}

// RewriteJumboStrings returns code with every const-string whose index does
// not fit in 16 bits replaced by const-string/jumbo. The input is not
// modified; when nothing needs rewriting it is returned as is.
func RewriteJumboStrings(code []Instruction, m *pool.Mapping) []Instruction {
	if !m.HasJumboStrings() {
		return code
	}
	var out []Instruction
	for k, inst := range code {
		cs, ok := inst.(*ConstString)
		if !ok || m.StringIndex(cs.Value) <= 0xFFFF {
			if out != nil {
				out = append(out, inst)
			}
			continue
		}
		if out == nil {
			out = make([]Instruction, k, len(code))
			copy(out, code[:k])
		}
		out = append(out, NewConstStringJumbo(int(cs.Dest), cs.Value))
	}
	if out == nil {
		return code
	}
	return out
}

// Encode writes code to 16-bit code units.
func Encode(code []Instruction, m *pool.Mapping) []uint16 {
	w := NewCodeWriter()
	for _, inst := range code {
		start := w.Len()
		inst.Write(w, m)
		invariant.Check(w.Len()-start == inst.Size(),
			"%s wrote %d code units, size is %d", inst.SmaliName(), w.Len()-start, inst.Size())
	}
	return w.Units()
}

// RegisterUses reports the symbols code references, one offset per
// instruction in code units.
func RegisterUses(code []Instruction, r *uses.Recorder) {
	offset := 0
	for _, inst := range code {
		r.SetOffset(offset)
		inst.RegisterUse(r)
		offset += inst.Size()
	}
}

// Disassemble renders code one instruction per line, prefixed by its
// offset in code units.
func Disassemble(code []Instruction) string {
	var sb strings.Builder
	offset := 0
	for _, inst := range code {
		fmt.Fprintf(&sb, "%04d  %s\n", offset, inst)
		offset += inst.Size()
	}
	return sb.String()
}
