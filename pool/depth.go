package pool

import "github.com/Londek/r8-mirror/graph"

type visitState uint8

const (
	unvisited visitState = iota
	inProgress
	done
)

// DepthResolver computes class hierarchy depths.
//
// A class without a supertype has depth 1. Otherwise its depth is one more
// than the largest contribution of its direct supertypes (superclass and
// interfaces), where a supertype defined in the program contributes its own
// depth and one that is not (a library or missing type) contributes 1.
//
// Resolution is iterative, so deep hierarchies cannot overflow the stack. A
// supertype that is still being resolved when it is reached again, which
// only happens in a malformed cyclic hierarchy, contributes 1. Results are
// memoized, so the depth of a class in a cycle depends on which class of the
// cycle was resolved first.
type DepthResolver struct {
	program *graph.Program
	index   map[*graph.ProgramClass]int
	classes []*graph.ProgramClass
	state   []visitState
	depth   []int
}

// NewDepthResolver creates a resolver over the program's class definitions.
// A DepthResolver is not safe for concurrent use.
func NewDepthResolver(program *graph.Program) *DepthResolver {
	return &DepthResolver{
		program: program,
		index:   make(map[*graph.ProgramClass]int, program.Len()),
	}
}

func (r *DepthResolver) slot(c *graph.ProgramClass) int {
	if i, ok := r.index[c]; ok {
		return i
	}
	i := len(r.classes)
	r.index[c] = i
	r.classes = append(r.classes, c)
	r.state = append(r.state, unvisited)
	r.depth = append(r.depth, 0)
	return i
}

type frame struct {
	node int
	next int // next supertype to visit: 0 is the superclass, i>0 is interface i-1
	max  int
}

// supertype returns the i-th direct supertype slot of c, or false when
// there are no more. Slot 0 is the superclass and is nil for a root class.
func supertype(c *graph.ProgramClass, i int) (*graph.Type, bool) {
	if i == 0 {
		return c.Super, true
	}
	if i-1 < len(c.Interfaces) {
		return c.Interfaces[i-1], true
	}
	return nil, false
}

// Depth returns the hierarchy depth of c.
func (r *DepthResolver) Depth(c *graph.ProgramClass) int {
	root := r.slot(c)
	switch r.state[root] {
	case done:
		return r.depth[root]
	case inProgress:
		return 1
	}

	r.state[root] = inProgress
	stack := []frame{{node: root}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if t, ok := supertype(r.classes[top.node], top.next); ok {
			top.next++
			if t == nil {
				continue
			}
			def := r.program.DefinitionFor(t)
			if def == nil {
				top.max = max(top.max, 1)
				continue
			}
			i := r.slot(def)
			switch r.state[i] {
			case done:
				top.max = max(top.max, r.depth[i])
			case inProgress:
				top.max = max(top.max, 1)
			case unvisited:
				r.state[i] = inProgress
				stack = append(stack, frame{node: i})
			}
			continue
		}

		// All supertypes visited.
		d := top.max + 1
		r.depth[top.node] = d
		r.state[top.node] = done
		stack = stack[:len(stack)-1]
		if len(stack) > 0 {
			parent := &stack[len(stack)-1]
			parent.max = max(parent.max, d)
		}
	}
	return r.depth[root]
}
