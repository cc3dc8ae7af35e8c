package dex

import (
	"fmt"

	"github.com/Londek/r8-mirror/graph"
	"github.com/Londek/r8-mirror/ir"
	"github.com/Londek/r8-mirror/pool"
)

// Tables resolves the pool indices found in encoded code back to symbols.
type Tables struct {
	Strings       []*graph.String
	Types         []*graph.Type
	Fields        []*graph.Field
	Methods       []*graph.Method
	CallSites     []*graph.CallSite
	MethodHandles []*graph.MethodHandle
}

// TablesFrom returns the tables of an assigned mapping.
func TablesFrom(m *pool.Mapping) *Tables {
	return &Tables{
		Strings:       m.Strings(),
		Types:         m.Types(),
		Fields:        m.Fields(),
		Methods:       m.Methods(),
		CallSites:     m.CallSites(),
		MethodHandles: m.MethodHandles(),
	}
}

func entry[T any](table []T, idx uint32, what string, offset int) (T, error) {
	if int64(idx) >= int64(len(table)) {
		var zero T
		return zero, fmt.Errorf("%w: %s@%d at offset %d (table has %d entries)", ErrBadIndex, what, idx, offset, len(table))
	}
	return table[idx], nil
}

// Decode reads a code array into instructions. Each decoded instruction
// keeps the exact opcode it was read with, so writing it back with the same
// mapping reproduces the input.
func Decode(units []uint16, t *Tables) ([]Instruction, error) {
	r := NewCodeReader(units)
	var out []Instruction
	for r.HasMore() {
		inst, err := decodeOne(r, t)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, nil
}

func decodeOne(r *CodeReader, t *Tables) (Instruction, error) {
	offset := r.Position()
	head, err := r.Read(1)
	if err != nil {
		return nil, err
	}
	op := Opcode(head[0] & 0xFF)
	high := uint8(head[0] >> 8)
	if !op.Known() {
		return nil, fmt.Errorf("%w 0x%02x at offset %d", ErrUnknownOpcode, uint8(op), offset)
	}
	size := op.Info().Format.Size()
	rest, err := r.Read(size - 1)
	if err != nil {
		return nil, err
	}
	lo, hi := high&0xF, high>>4

	if mt, ok := reverse(moveForms, func(f [3]Opcode) bool { return f[0] == op || f[1] == op || f[2] == op }); ok {
		switch op.Info().Format {
		case Format12x:
			return &Move{opcode: opcode(op), Type: mt, Dest: uint16(lo), Src: uint16(hi)}, nil
		case Format22x:
			return &Move{opcode: opcode(op), Type: mt, Dest: uint16(high), Src: rest[0]}, nil
		default:
			return &Move{opcode: opcode(op), Type: mt, Dest: rest[0], Src: rest[1]}, nil
		}
	}
	if mt, ok := reverse(moveResultOps, func(o Opcode) bool { return o == op }); ok {
		return &MoveResult{opcode: opcode(op), Type: mt, Dest: high}, nil
	}
	if mt, ok := reverse(returnOps, func(o Opcode) bool { return o == op }); ok {
		return &Return{opcode: opcode(op), Type: mt, Src: high}, nil
	}
	if kind, ok := reverse(invokeOps, func(f [2]Opcode) bool { return f[0] == op || f[1] == op }); ok {
		m, err := entry(t.Methods, uint32(rest[0]), "method", offset)
		if err != nil {
			return nil, err
		}
		args, err := decodeArgs(op, high, rest, offset)
		if err != nil {
			return nil, err
		}
		return &Invoke{opcode: opcode(op), Kind: kind, Method: m, Args: args}, nil
	}
	if mt, ok := agetFamily.memberType(op); ok {
		return &ArrayGet{opcode: opcode(op), Type: mt, Dest: high, Array: uint8(rest[0]), Index: uint8(rest[0] >> 8)}, nil
	}
	if mt, ok := aputFamily.memberType(op); ok {
		return &ArrayPut{opcode: opcode(op), Type: mt, Src: high, Array: uint8(rest[0]), Index: uint8(rest[0] >> 8)}, nil
	}
	if mt, ok := igetFamily.memberType(op); ok {
		f, err := entry(t.Fields, uint32(rest[0]), "field", offset)
		if err != nil {
			return nil, err
		}
		return &InstanceGet{opcode: opcode(op), Type: mt, Dest: lo, Object: hi, Field: f}, nil
	}
	if mt, ok := iputFamily.memberType(op); ok {
		f, err := entry(t.Fields, uint32(rest[0]), "field", offset)
		if err != nil {
			return nil, err
		}
		return &InstancePut{opcode: opcode(op), Type: mt, Src: lo, Object: hi, Field: f}, nil
	}
	if mt, ok := sgetFamily.memberType(op); ok {
		f, err := entry(t.Fields, uint32(rest[0]), "field", offset)
		if err != nil {
			return nil, err
		}
		return &StaticGet{opcode: opcode(op), Type: mt, Dest: high, Field: f}, nil
	}
	if mt, ok := sputFamily.memberType(op); ok {
		f, err := entry(t.Fields, uint32(rest[0]), "field", offset)
		if err != nil {
			return nil, err
		}
		return &StaticPut{opcode: opcode(op), Type: mt, Src: high, Field: f}, nil
	}

	switch op {
	case OpNop:
		return NewNop(), nil
	case OpReturnVoid:
		return NewReturnVoid(), nil
	case OpConst:
		return NewConst(int(high), int32(uint32(rest[0])|uint32(rest[1])<<16)), nil
	case OpConstWide:
		v := uint64(rest[0]) | uint64(rest[1])<<16 | uint64(rest[2])<<32 | uint64(rest[3])<<48
		return NewConstWide(int(high), int64(v)), nil
	case OpConstString:
		s, err := entry(t.Strings, uint32(rest[0]), "string", offset)
		if err != nil {
			return nil, err
		}
		return NewConstString(int(high), s), nil
	case OpConstStringJumbo:
		s, err := entry(t.Strings, uint32(rest[0])|uint32(rest[1])<<16, "string", offset)
		if err != nil {
			return nil, err
		}
		return NewConstStringJumbo(int(high), s), nil
	case OpConstMethodHandle:
		h, err := entry(t.MethodHandles, uint32(rest[0]), "method handle", offset)
		if err != nil {
			return nil, err
		}
		return NewConstMethodHandle(int(high), h), nil
	case OpNewInstance:
		c, err := entry(t.Types, uint32(rest[0]), "type", offset)
		if err != nil {
			return nil, err
		}
		return NewNewInstance(int(high), c), nil
	case OpInvokeCustom, OpInvokeCustomRange:
		cs, err := entry(t.CallSites, uint32(rest[0]), "call site", offset)
		if err != nil {
			return nil, err
		}
		args, err := decodeArgs(op, high, rest, offset)
		if err != nil {
			return nil, err
		}
		return &InvokeCustom{opcode: opcode(op), CallSite: cs, Args: args}, nil
	}
	return nil, fmt.Errorf("%w 0x%02x at offset %d", ErrUnknownOpcode, uint8(op), offset)
}

// decodeArgs reads the argument registers of a 35c or 3rc instruction.
func decodeArgs(op Opcode, high uint8, rest []uint16, offset int) ([]uint16, error) {
	if op.Info().Format == Format3rc {
		count := int(high)
		if int(rest[1])+count > 0x10000 {
			return nil, fmt.Errorf("%w: register range v%d+%d at offset %d", ErrMalformed, rest[1], count, offset)
		}
		regs := make([]uint16, count)
		for k := range regs {
			regs[k] = rest[1] + uint16(k)
		}
		return regs, nil
	}
	count := int(high >> 4)
	if count > 5 {
		return nil, fmt.Errorf("%w: %d argument registers at offset %d", ErrMalformed, count, offset)
	}
	all := [5]uint16{rest[1] & 0xF, rest[1] >> 4 & 0xF, rest[1] >> 8 & 0xF, rest[1] >> 12, uint16(high & 0xF)}
	regs := make([]uint16, count)
	copy(regs, all[:count])
	return regs, nil
}

// BuildIR builds the IR of a method body.
func BuildIR(method *graph.Method, code []Instruction) *ir.Code {
	b := ir.NewCodeBuilder(method)
	for _, inst := range code {
		inst.BuildIR(b)
	}
	return b.Build()
}
