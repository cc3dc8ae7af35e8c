// Package dex is the register form: Dalvik instructions, their encoding in
// 16-bit code units, their uses and IR semantics, and lowering from IR.
package dex

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode is the low byte of an instruction's first code unit.
type Opcode byte

// Moves
const (
	OpNop              Opcode = 0x00
	OpMove             Opcode = 0x01 // move vA, vB (4-bit registers)
	OpMoveFrom16       Opcode = 0x02 // move vAA, vBBBB
	OpMove16           Opcode = 0x03 // move vAAAA, vBBBB
	OpMoveWide         Opcode = 0x04
	OpMoveWideFrom16   Opcode = 0x05
	OpMoveWide16       Opcode = 0x06
	OpMoveObject       Opcode = 0x07
	OpMoveObjectFrom16 Opcode = 0x08
	OpMoveObject16     Opcode = 0x09
	OpMoveResult       Opcode = 0x0a
	OpMoveResultWide   Opcode = 0x0b
	OpMoveResultObject Opcode = 0x0c
)

// Returns
const (
	OpReturnVoid   Opcode = 0x0e
	OpReturn       Opcode = 0x0f
	OpReturnWide   Opcode = 0x10
	OpReturnObject Opcode = 0x11
)

// Constants
const (
	OpConst            Opcode = 0x14 // const vAA, #+BBBBBBBB
	OpConstWide        Opcode = 0x18 // const-wide vAA, #+BBBBBBBBBBBBBBBB
	OpConstString      Opcode = 0x1a // const-string vAA, string@BBBB
	OpConstStringJumbo Opcode = 0x1b // const-string/jumbo vAA, string@BBBBBBBB
	OpNewInstance      Opcode = 0x22 // new-instance vAA, type@BBBB
)

// Array access: aget vAA, vBB, vCC
const (
	OpAget        Opcode = 0x44
	OpAgetWide    Opcode = 0x45
	OpAgetObject  Opcode = 0x46
	OpAgetBoolean Opcode = 0x47
	OpAgetByte    Opcode = 0x48
	OpAgetChar    Opcode = 0x49
	OpAgetShort   Opcode = 0x4a
	OpAput        Opcode = 0x4b
	OpAputWide    Opcode = 0x4c
	OpAputObject  Opcode = 0x4d
	OpAputBoolean Opcode = 0x4e
	OpAputByte    Opcode = 0x4f
	OpAputChar    Opcode = 0x50
	OpAputShort   Opcode = 0x51
)

// Instance field access: iget vA, vB, field@CCCC
const (
	OpIget        Opcode = 0x52
	OpIgetWide    Opcode = 0x53
	OpIgetObject  Opcode = 0x54
	OpIgetBoolean Opcode = 0x55
	OpIgetByte    Opcode = 0x56
	OpIgetChar    Opcode = 0x57
	OpIgetShort   Opcode = 0x58
	OpIput        Opcode = 0x59
	OpIputWide    Opcode = 0x5a
	OpIputObject  Opcode = 0x5b
	OpIputBoolean Opcode = 0x5c
	OpIputByte    Opcode = 0x5d
	OpIputChar    Opcode = 0x5e
	OpIputShort   Opcode = 0x5f
)

// Static field access: sget vAA, field@BBBB
const (
	OpSget        Opcode = 0x60
	OpSgetWide    Opcode = 0x61
	OpSgetObject  Opcode = 0x62
	OpSgetBoolean Opcode = 0x63
	OpSgetByte    Opcode = 0x64
	OpSgetChar    Opcode = 0x65
	OpSgetShort   Opcode = 0x66
	OpSput        Opcode = 0x67
	OpSputWide    Opcode = 0x68
	OpSputObject  Opcode = 0x69
	OpSputBoolean Opcode = 0x6a
	OpSputByte    Opcode = 0x6b
	OpSputChar    Opcode = 0x6c
	OpSputShort   Opcode = 0x6d
)

// Invokes
const (
	OpInvokeVirtual        Opcode = 0x6e // invoke-virtual {vC, vD, vE, vF, vG}, meth@BBBB
	OpInvokeSuper          Opcode = 0x6f
	OpInvokeDirect         Opcode = 0x70
	OpInvokeStatic         Opcode = 0x71
	OpInvokeInterface      Opcode = 0x72
	OpInvokeVirtualRange   Opcode = 0x74 // invoke-virtual/range {vCCCC .. vNNNN}, meth@BBBB
	OpInvokeSuperRange     Opcode = 0x75
	OpInvokeDirectRange    Opcode = 0x76
	OpInvokeStaticRange    Opcode = 0x77
	OpInvokeInterfaceRange Opcode = 0x78
	OpInvokeCustom         Opcode = 0xfc // invoke-custom {vC..vG}, call_site@BBBB
	OpInvokeCustomRange    Opcode = 0xfd
	OpConstMethodHandle    Opcode = 0xfe // const-method-handle vAA, method_handle@BBBB
)

// Format is an instruction encoding layout. The digits of the name are the
// size in code units and the register count; the letter is the kind of the
// extra operand.
type Format uint8

const (
	Format10x Format = iota
	Format11x
	Format12x
	Format22x
	Format32x
	Format21c
	Format22c
	Format23x
	Format31i
	Format31c
	Format35c
	Format3rc
	Format51l
)

var formatNames = [...]string{
	Format10x: "10x", Format11x: "11x", Format12x: "12x", Format22x: "22x",
	Format32x: "32x", Format21c: "21c", Format22c: "22c", Format23x: "23x",
	Format31i: "31i", Format31c: "31c", Format35c: "35c", Format3rc: "3rc",
	Format51l: "51l",
}

func (f Format) String() string { return formatNames[f] }

// Size returns the instruction size in 16-bit code units.
func (f Format) Size() int {
	switch f {
	case Format10x, Format11x, Format12x:
		return 1
	case Format22x, Format21c, Format22c, Format23x:
		return 2
	case Format32x, Format31i, Format31c, Format35c, Format3rc:
		return 3
	case Format51l:
		return 5
	}
	return 0
}

// OpcodeInfo contains metadata about an opcode.
type OpcodeInfo struct {
	SmaliName string // e.g. "iget-char"
	Format    Format
	CanThrow  bool
}

// opcodeTable maps opcodes to their metadata.
var opcodeTable = map[Opcode]OpcodeInfo{
	OpNop:              {"nop", Format10x, false},
	OpMove:             {"move", Format12x, false},
	OpMoveFrom16:       {"move/from16", Format22x, false},
	OpMove16:           {"move/16", Format32x, false},
	OpMoveWide:         {"move-wide", Format12x, false},
	OpMoveWideFrom16:   {"move-wide/from16", Format22x, false},
	OpMoveWide16:       {"move-wide/16", Format32x, false},
	OpMoveObject:       {"move-object", Format12x, false},
	OpMoveObjectFrom16: {"move-object/from16", Format22x, false},
	OpMoveObject16:     {"move-object/16", Format32x, false},
	OpMoveResult:       {"move-result", Format11x, false},
	OpMoveResultWide:   {"move-result-wide", Format11x, false},
	OpMoveResultObject: {"move-result-object", Format11x, false},

	OpReturnVoid:   {"return-void", Format10x, false},
	OpReturn:       {"return", Format11x, false},
	OpReturnWide:   {"return-wide", Format11x, false},
	OpReturnObject: {"return-object", Format11x, false},

	OpConst:            {"const", Format31i, false},
	OpConstWide:        {"const-wide", Format51l, false},
	OpConstString:      {"const-string", Format21c, true},
	OpConstStringJumbo: {"const-string/jumbo", Format31c, true},
	OpNewInstance:      {"new-instance", Format21c, true},

	OpAget:        {"aget", Format23x, true},
	OpAgetWide:    {"aget-wide", Format23x, true},
	OpAgetObject:  {"aget-object", Format23x, true},
	OpAgetBoolean: {"aget-boolean", Format23x, true},
	OpAgetByte:    {"aget-byte", Format23x, true},
	OpAgetChar:    {"aget-char", Format23x, true},
	OpAgetShort:   {"aget-short", Format23x, true},
	OpAput:        {"aput", Format23x, true},
	OpAputWide:    {"aput-wide", Format23x, true},
	OpAputObject:  {"aput-object", Format23x, true},
	OpAputBoolean: {"aput-boolean", Format23x, true},
	OpAputByte:    {"aput-byte", Format23x, true},
	OpAputChar:    {"aput-char", Format23x, true},
	OpAputShort:   {"aput-short", Format23x, true},

	OpIget:        {"iget", Format22c, true},
	OpIgetWide:    {"iget-wide", Format22c, true},
	OpIgetObject:  {"iget-object", Format22c, true},
	OpIgetBoolean: {"iget-boolean", Format22c, true},
	OpIgetByte:    {"iget-byte", Format22c, true},
	OpIgetChar:    {"iget-char", Format22c, true},
	OpIgetShort:   {"iget-short", Format22c, true},
	OpIput:        {"iput", Format22c, true},
	OpIputWide:    {"iput-wide", Format22c, true},
	OpIputObject:  {"iput-object", Format22c, true},
	OpIputBoolean: {"iput-boolean", Format22c, true},
	OpIputByte:    {"iput-byte", Format22c, true},
	OpIputChar:    {"iput-char", Format22c, true},
	OpIputShort:   {"iput-short", Format22c, true},

	OpSget:        {"sget", Format21c, true},
	OpSgetWide:    {"sget-wide", Format21c, true},
	OpSgetObject:  {"sget-object", Format21c, true},
	OpSgetBoolean: {"sget-boolean", Format21c, true},
	OpSgetByte:    {"sget-byte", Format21c, true},
	OpSgetChar:    {"sget-char", Format21c, true},
	OpSgetShort:   {"sget-short", Format21c, true},
	OpSput:        {"sput", Format21c, true},
	OpSputWide:    {"sput-wide", Format21c, true},
	OpSputObject:  {"sput-object", Format21c, true},
	OpSputBoolean: {"sput-boolean", Format21c, true},
	OpSputByte:    {"sput-byte", Format21c, true},
	OpSputChar:    {"sput-char", Format21c, true},
	OpSputShort:   {"sput-short", Format21c, true},

	OpInvokeVirtual:        {"invoke-virtual", Format35c, true},
	OpInvokeSuper:          {"invoke-super", Format35c, true},
	OpInvokeDirect:         {"invoke-direct", Format35c, true},
	OpInvokeStatic:         {"invoke-static", Format35c, true},
	OpInvokeInterface:      {"invoke-interface", Format35c, true},
	OpInvokeVirtualRange:   {"invoke-virtual/range", Format3rc, true},
	OpInvokeSuperRange:     {"invoke-super/range", Format3rc, true},
	OpInvokeDirectRange:    {"invoke-direct/range", Format3rc, true},
	OpInvokeStaticRange:    {"invoke-static/range", Format3rc, true},
	OpInvokeInterfaceRange: {"invoke-interface/range", Format3rc, true},
	OpInvokeCustom:         {"invoke-custom", Format35c, true},
	OpInvokeCustomRange:    {"invoke-custom/range", Format3rc, true},
	OpConstMethodHandle:    {"const-method-handle", Format21c, true},
}

// Info returns metadata for an opcode.
func (op Opcode) Info() OpcodeInfo {
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpcodeInfo{SmaliName: fmt.Sprintf("UNKNOWN_%02X", byte(op))}
}

// Known reports whether op is an opcode this package encodes.
func (op Opcode) Known() bool {
	_, ok := opcodeTable[op]
	return ok
}

// Name returns the instruction class name, e.g. "IgetChar" for iget-char.
func (op Opcode) Name() string {
	smali := op.Info().SmaliName
	if !op.Known() {
		return smali
	}
	var sb strings.Builder
	upper := true
	for i := 0; i < len(smali); i++ {
		c := smali[i]
		if c == '-' || c == '/' {
			upper = true
			continue
		}
		if upper && c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		upper = false
		sb.WriteByte(c)
	}
	return sb.String()
}

func (op Opcode) SmaliName() string { return op.Info().SmaliName }

func (op Opcode) String() string {
	return op.Info().SmaliName
}
