package ir

import (
	"fmt"
	"strings"

	"github.com/Londek/r8-mirror/graph"
)

// Value is an SSA-style value. Register is the register (or local slot) the
// value was bound to when it was built; lowering passes it through.
type Value struct {
	Number   int
	Type     ValueType
	Register int
}

func (v *Value) String() string {
	return fmt.Sprintf("v%d:%s@r%d", v.Number, v.Type, v.Register)
}

// Instruction is an IR node. The set of node types is closed.
type Instruction interface {
	// Out returns the value defined by the node, or nil.
	Out() *Value
	// Inputs returns the values the node reads, in operand order.
	Inputs() []*Value
	String() string
	irInstruction()
}

// Argument defines a value that was live on entry.
type Argument struct{ Dest *Value }

type Move struct{ Dest, Src *Value }

// ConstNumber defines a numeric constant. Bits holds the raw bit pattern for
// float and double constants.
type ConstNumber struct {
	Dest *Value
	Bits int64
}

type ConstString struct {
	Dest  *Value
	Value *graph.String
}

type ConstMethodHandle struct {
	Dest   *Value
	Handle *graph.MethodHandle
}

type StaticGet struct {
	Dest  *Value
	Type  MemberType
	Field *graph.Field
}

type StaticPut struct {
	Src   *Value
	Type  MemberType
	Field *graph.Field
}

type InstanceGet struct {
	Dest, Object *Value
	Type         MemberType
	Field        *graph.Field
}

type InstancePut struct {
	Src, Object *Value
	Type        MemberType
	Field       *graph.Field
}

type ArrayGet struct {
	Dest, Array, Index *Value
	Type               MemberType
}

type ArrayPut struct {
	Src, Array, Index *Value
	Type              MemberType
}

// Invoke calls Method. Dest is set when a move-result consumed the result.
type Invoke struct {
	Kind   InvokeType
	Method *graph.Method
	Args   []*Value
	Dest   *Value
}

type InvokeCustom struct {
	CallSite *graph.CallSite
	Args     []*Value
	Dest     *Value
}

type NewInstance struct {
	Dest  *Value
	Class *graph.Type
}

// InitClass forces initialization of Class by reading the field the
// init-class lens names for it. Dest is the register the register form
// reads into; the value is never used.
type InitClass struct {
	Dest  *Value
	Class *graph.Type
}

// Return returns Src, or nothing when Src is nil.
type Return struct{ Src *Value }

var (
	_ Instruction = (*Argument)(nil)
	_ Instruction = (*Move)(nil)
	_ Instruction = (*ConstNumber)(nil)
	_ Instruction = (*ConstString)(nil)
	_ Instruction = (*ConstMethodHandle)(nil)
	_ Instruction = (*StaticGet)(nil)
	_ Instruction = (*StaticPut)(nil)
	_ Instruction = (*InstanceGet)(nil)
	_ Instruction = (*InstancePut)(nil)
	_ Instruction = (*ArrayGet)(nil)
	_ Instruction = (*ArrayPut)(nil)
	_ Instruction = (*Invoke)(nil)
	_ Instruction = (*InvokeCustom)(nil)
	_ Instruction = (*NewInstance)(nil)
	_ Instruction = (*InitClass)(nil)
	_ Instruction = (*Return)(nil)
)

func (*Argument) irInstruction()          {}
func (*Move) irInstruction()              {}
func (*ConstNumber) irInstruction()       {}
func (*ConstString) irInstruction()       {}
func (*ConstMethodHandle) irInstruction() {}
func (*StaticGet) irInstruction()         {}
func (*StaticPut) irInstruction()         {}
func (*InstanceGet) irInstruction()       {}
func (*InstancePut) irInstruction()       {}
func (*ArrayGet) irInstruction()          {}
func (*ArrayPut) irInstruction()          {}
func (*Invoke) irInstruction()            {}
func (*InvokeCustom) irInstruction()      {}
func (*NewInstance) irInstruction()       {}
func (*InitClass) irInstruction()         {}
func (*Return) irInstruction()            {}

func (n *Argument) Out() *Value          { return n.Dest }
func (n *Move) Out() *Value              { return n.Dest }
func (n *ConstNumber) Out() *Value       { return n.Dest }
func (n *ConstString) Out() *Value       { return n.Dest }
func (n *ConstMethodHandle) Out() *Value { return n.Dest }
func (n *StaticGet) Out() *Value         { return n.Dest }
func (*StaticPut) Out() *Value           { return nil }
func (n *InstanceGet) Out() *Value       { return n.Dest }
func (*InstancePut) Out() *Value         { return nil }
func (n *ArrayGet) Out() *Value          { return n.Dest }
func (*ArrayPut) Out() *Value            { return nil }
func (n *Invoke) Out() *Value            { return n.Dest }
func (n *InvokeCustom) Out() *Value      { return n.Dest }
func (n *NewInstance) Out() *Value       { return n.Dest }
func (n *InitClass) Out() *Value         { return n.Dest }
func (*Return) Out() *Value              { return nil }

func (*Argument) Inputs() []*Value          { return nil }
func (n *Move) Inputs() []*Value            { return []*Value{n.Src} }
func (*ConstNumber) Inputs() []*Value       { return nil }
func (*ConstString) Inputs() []*Value       { return nil }
func (*ConstMethodHandle) Inputs() []*Value { return nil }
func (*StaticGet) Inputs() []*Value         { return nil }
func (n *StaticPut) Inputs() []*Value       { return []*Value{n.Src} }
func (n *InstanceGet) Inputs() []*Value     { return []*Value{n.Object} }
func (n *InstancePut) Inputs() []*Value     { return []*Value{n.Src, n.Object} }
func (n *ArrayGet) Inputs() []*Value        { return []*Value{n.Array, n.Index} }
func (n *ArrayPut) Inputs() []*Value        { return []*Value{n.Src, n.Array, n.Index} }
func (n *Invoke) Inputs() []*Value          { return n.Args }
func (n *InvokeCustom) Inputs() []*Value    { return n.Args }
func (*NewInstance) Inputs() []*Value       { return nil }
func (*InitClass) Inputs() []*Value         { return nil }

func (n *Return) Inputs() []*Value {
	if n.Src == nil {
		return nil
	}
	return []*Value{n.Src}
}

func (n *Argument) String() string { return fmt.Sprintf("%s = argument", n.Dest) }
func (n *Move) String() string     { return fmt.Sprintf("%s = move %s", n.Dest, n.Src) }
func (n *ConstNumber) String() string {
	return fmt.Sprintf("%s = const %d", n.Dest, n.Bits)
}
func (n *ConstString) String() string {
	return fmt.Sprintf("%s = const-string %q", n.Dest, n.Value.Value)
}
func (n *ConstMethodHandle) String() string {
	return fmt.Sprintf("%s = const-method-handle %s", n.Dest, n.Handle)
}
func (n *StaticGet) String() string {
	return fmt.Sprintf("%s = static-get %s %s", n.Dest, n.Type, n.Field)
}
func (n *StaticPut) String() string {
	return fmt.Sprintf("static-put %s %s, %s", n.Type, n.Field, n.Src)
}
func (n *InstanceGet) String() string {
	return fmt.Sprintf("%s = instance-get %s %s, %s", n.Dest, n.Type, n.Field, n.Object)
}
func (n *InstancePut) String() string {
	return fmt.Sprintf("instance-put %s %s, %s, %s", n.Type, n.Field, n.Object, n.Src)
}
func (n *ArrayGet) String() string {
	return fmt.Sprintf("%s = array-get %s %s[%s]", n.Dest, n.Type, n.Array, n.Index)
}
func (n *ArrayPut) String() string {
	return fmt.Sprintf("array-put %s %s[%s], %s", n.Type, n.Array, n.Index, n.Src)
}
func (n *Invoke) String() string {
	return withDest(n.Dest, fmt.Sprintf("invoke-%s %s(%s)", n.Kind, n.Method, joinValues(n.Args)))
}
func (n *InvokeCustom) String() string {
	return withDest(n.Dest, fmt.Sprintf("invoke-custom %s(%s)", n.CallSite, joinValues(n.Args)))
}
func (n *NewInstance) String() string {
	return fmt.Sprintf("%s = new-instance %s", n.Dest, n.Class)
}
func (n *InitClass) String() string {
	return fmt.Sprintf("%s = init-class %s", n.Dest, n.Class)
}
func (n *Return) String() string {
	if n.Src == nil {
		return "return"
	}
	return fmt.Sprintf("return %s", n.Src)
}

func withDest(dest *Value, s string) string {
	if dest == nil {
		return s
	}
	return dest.String() + " = " + s
}

func joinValues(vs []*Value) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}

// Code is the IR of one method body.
type Code struct {
	Method       *graph.Method
	Instructions []Instruction
	// RegisterCount is one more than the highest register any value used.
	RegisterCount int
}

func (c *Code) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "== %s ==\n", c.Method)
	for i, inst := range c.Instructions {
		fmt.Fprintf(&sb, "%04d  %s\n", i, inst)
	}
	return sb.String()
}
