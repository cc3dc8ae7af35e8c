package cf

import (
	"golang.org/x/tools/container/intsets"

	"github.com/Londek/r8-mirror/graph"
	"github.com/Londek/r8-mirror/invariant"
	"github.com/Londek/r8-mirror/ir"
)

// Slot is an operand stack entry. Register is the IR register the entry is
// bound to: locals take registers [0, maxLocals) and the stack the ones
// above, one per stack word.
type Slot struct {
	Type     ir.ValueType
	Register int
}

// State is the abstract frame used while building IR from stack code. It
// tracks which local slots hold the high half of a wide value, since such
// a slot cannot be loaded on its own.
type State struct {
	method    *graph.Method
	maxLocals int
	stack     []Slot
	height    int
	wideHigh  intsets.Sparse
}

func NewState(method *graph.Method, maxLocals int) *State {
	return &State{method: method, maxLocals: maxLocals}
}

// Method is the method whose code is being built.
func (s *State) Method() *graph.Method { return s.method }

// Push allocates a stack entry of type t and returns its register.
func (s *State) Push(t ir.ValueType) int {
	reg := s.maxLocals + s.height
	s.stack = append(s.stack, Slot{Type: t, Register: reg})
	s.height += t.RequiredRegisters()
	return reg
}

// Pop removes the top stack entry.
func (s *State) Pop() Slot {
	if len(s.stack) == 0 {
		panic(invariant.Newf("pop of an empty stack in %s", s.method))
	}
	top := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	s.height -= top.Type.RequiredRegisters()
	return top
}

// Peek returns the top stack entry.
func (s *State) Peek() Slot {
	if len(s.stack) == 0 {
		panic(invariant.Newf("peek of an empty stack in %s", s.method))
	}
	return s.stack[len(s.stack)-1]
}

// Scratch returns the register just above the stack, for results that are
// not pushed.
func (s *State) Scratch() int { return s.maxLocals + s.height }

// Load checks that local slot v can be read as a value of type t.
func (s *State) Load(v int, t ir.ValueType) {
	s.checkLocal(v, t)
	invariant.Check(!s.wideHigh.Has(v),
		"load of local %d in %s, the high half of a wide value", v, s.method)
}

// Store marks local slot v as holding a value of type t. Wide values take
// slots v and v+1.
func (s *State) Store(v int, t ir.ValueType) {
	s.checkLocal(v, t)
	s.wideHigh.Remove(v)
	if t.IsWide() {
		s.wideHigh.Insert(v + 1)
	}
}

func (s *State) checkLocal(v int, t ir.ValueType) {
	invariant.Check(v >= 0 && v+t.RequiredRegisters() <= s.maxLocals,
		"local %d of %s outside max locals %d", v, t, s.maxLocals)
}
