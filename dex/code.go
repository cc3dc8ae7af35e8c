package dex

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/Londek/r8-mirror/invariant"
)

// Decode errors.
var (
	ErrTruncated     = errors.New("dex: truncated instruction")
	ErrUnknownOpcode = errors.New("dex: unknown opcode")
	ErrBadIndex      = errors.New("dex: index out of range")
	ErrMalformed     = errors.New("dex: malformed instruction")
)

// ---------------------------------------------------------------------------
// Code writer
// ---------------------------------------------------------------------------

// CodeWriter accumulates 16-bit code units.
type CodeWriter struct {
	units []uint16
}

func NewCodeWriter() *CodeWriter {
	return &CodeWriter{units: make([]uint16, 0, 64)}
}

// Units returns the code units written so far.
func (w *CodeWriter) Units() []uint16 { return w.units }

// Len returns the current offset in code units.
func (w *CodeWriter) Len() int { return len(w.units) }

// Bytes returns the code units in little-endian byte order.
func (w *CodeWriter) Bytes() []byte {
	out := make([]byte, 0, 2*len(w.units))
	for _, u := range w.units {
		out = binary.LittleEndian.AppendUint16(out, u)
	}
	return out
}

func (w *CodeWriter) first(op Opcode, high uint8) {
	w.units = append(w.units, uint16(op)|uint16(high)<<8)
}

func (w *CodeWriter) write10x(op Opcode) { w.first(op, 0) }

func (w *CodeWriter) write11x(op Opcode, aa uint8) { w.first(op, aa) }

func (w *CodeWriter) write12x(op Opcode, a, b uint8) { w.first(op, b<<4|a&0xf) }

func (w *CodeWriter) write22x(op Opcode, aa uint8, bbbb uint16) {
	w.first(op, aa)
	w.units = append(w.units, bbbb)
}

func (w *CodeWriter) write32x(op Opcode, aaaa, bbbb uint16) {
	w.first(op, 0)
	w.units = append(w.units, aaaa, bbbb)
}

func (w *CodeWriter) write21c(op Opcode, aa uint8, bbbb uint16) { w.write22x(op, aa, bbbb) }

func (w *CodeWriter) write22c(op Opcode, a, b uint8, cccc uint16) {
	w.first(op, b<<4|a&0xf)
	w.units = append(w.units, cccc)
}

func (w *CodeWriter) write23x(op Opcode, aa, bb, cc uint8) {
	w.first(op, aa)
	w.units = append(w.units, uint16(bb)|uint16(cc)<<8)
}

func (w *CodeWriter) write31i(op Opcode, aa uint8, v uint32) {
	w.first(op, aa)
	w.units = append(w.units, uint16(v), uint16(v>>16))
}

// write35c writes up to five 4-bit argument registers.
func (w *CodeWriter) write35c(op Opcode, regs []uint16, bbbb uint16) {
	var r [5]uint16
	copy(r[:], regs)
	w.first(op, uint8(len(regs))<<4|uint8(r[4]))
	w.units = append(w.units, bbbb, r[0]|r[1]<<4|r[2]<<8|r[3]<<12)
}

func (w *CodeWriter) write3rc(op Opcode, count uint8, bbbb, cccc uint16) {
	w.first(op, count)
	w.units = append(w.units, bbbb, cccc)
}

func (w *CodeWriter) write51l(op Opcode, aa uint8, v int64) {
	w.first(op, aa)
	u := uint64(v)
	w.units = append(w.units, uint16(u), uint16(u>>16), uint16(u>>32), uint16(u>>48))
}

// index16 narrows a pool index to a 16-bit operand.
func index16(i int, what string) uint16 {
	if i < 0 || i > 0xFFFF {
		panic(invariant.Newf("%s index %d does not fit in 16 bits", what, i))
	}
	return uint16(i)
}

// ---------------------------------------------------------------------------
// Code reader
// ---------------------------------------------------------------------------

// CodeReader reads code units for decoding.
type CodeReader struct {
	units []uint16
	pos   int
}

func NewCodeReader(units []uint16) *CodeReader {
	return &CodeReader{units: units}
}

// Position returns the current offset in code units.
func (r *CodeReader) Position() int { return r.pos }

// HasMore reports whether there are code units left.
func (r *CodeReader) HasMore() bool { return r.pos < len(r.units) }

// Read returns the next n code units.
func (r *CodeReader) Read(n int) ([]uint16, error) {
	if r.pos+n > len(r.units) {
		return nil, fmt.Errorf("%w at offset %d: need %d units, have %d", ErrTruncated, r.pos, n, len(r.units)-r.pos)
	}
	out := r.units[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}
