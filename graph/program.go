package graph

import "github.com/Londek/r8-mirror/invariant"

// Program is the set of class definitions being compiled. It is built before
// compilation starts and only read afterwards.
type Program struct {
	classes map[*Type]*ProgramClass
	order   []*ProgramClass
}

// NewProgram creates a program from class definitions.
func NewProgram(classes ...*ProgramClass) *Program {
	p := &Program{classes: make(map[*Type]*ProgramClass, len(classes))}
	for _, c := range classes {
		p.Add(c)
	}
	return p
}

// Add registers a class definition. Defining the same type twice is an
// invariant violation.
func (p *Program) Add(c *ProgramClass) {
	if _, dup := p.classes[c.Type]; dup {
		panic(invariant.Newf("duplicate definition of %s", c.Type))
	}
	p.classes[c.Type] = c
	p.order = append(p.order, c)
}

// DefinitionFor returns the program class defining t, or nil when t is a
// library or missing type.
func (p *Program) DefinitionFor(t *Type) *ProgramClass {
	return p.classes[t]
}

// Classes returns the definitions in the order they were added.
func (p *Program) Classes() []*ProgramClass {
	return append([]*ProgramClass(nil), p.order...)
}

func (p *Program) Len() int { return len(p.order) }
