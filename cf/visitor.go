package cf

import (
	"fmt"
	"strings"
)

// MethodVisitor receives stack instructions with symbolic operands, in the
// shape of the ASM visitor. Owners and types are internal names.
type MethodVisitor interface {
	VisitInsn(op Opcode)
	VisitIntInsn(op Opcode, operand int)
	VisitVarInsn(op Opcode, local int)
	VisitTypeInsn(op Opcode, typ string)
	VisitFieldInsn(op Opcode, owner, name, descriptor string)
	VisitMethodInsn(op Opcode, owner, name, descriptor string, isInterface bool)
	// VisitLdcInsn pushes a constant: a string, int32, int64, float32 or
	// float64.
	VisitLdcInsn(value any)
}

// Recorder is a MethodVisitor that keeps a textual listing.
type Recorder struct {
	lines []string
}

var _ MethodVisitor = (*Recorder)(nil)

func (r *Recorder) add(format string, args ...any) {
	r.lines = append(r.lines, fmt.Sprintf(format, args...))
}

func (r *Recorder) VisitInsn(op Opcode) { r.add("%s", op) }

func (r *Recorder) VisitIntInsn(op Opcode, operand int) { r.add("%s %d", op, operand) }

func (r *Recorder) VisitVarInsn(op Opcode, local int) { r.add("%s %d", op, local) }

func (r *Recorder) VisitTypeInsn(op Opcode, typ string) { r.add("%s %s", op, typ) }

func (r *Recorder) VisitFieldInsn(op Opcode, owner, name, descriptor string) {
	r.add("%s %s.%s : %s", op, owner, name, descriptor)
}

func (r *Recorder) VisitMethodInsn(op Opcode, owner, name, descriptor string, isInterface bool) {
	if isInterface {
		r.add("%s %s.%s %s (itf)", op, owner, name, descriptor)
		return
	}
	r.add("%s %s.%s %s", op, owner, name, descriptor)
}

func (r *Recorder) VisitLdcInsn(value any) {
	switch v := value.(type) {
	case string:
		r.add("%s %q", LDC, v)
	case int64:
		r.add("%s %dL", LDC2_W, v)
	case float64:
		r.add("%s %vD", LDC2_W, v)
	case float32:
		r.add("%s %vF", LDC, v)
	default:
		r.add("%s %v", LDC, v)
	}
}

// Len returns the number of instructions visited.
func (r *Recorder) Len() int { return len(r.lines) }

// Lines returns the listing, one instruction per entry.
func (r *Recorder) Lines() []string { return r.lines }

// String returns the listing with instruction numbers.
func (r *Recorder) String() string {
	var sb strings.Builder
	for i, line := range r.lines {
		fmt.Fprintf(&sb, "%04d  %s\n", i, line)
	}
	return sb.String()
}
