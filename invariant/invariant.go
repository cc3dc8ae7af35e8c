// Package invariant reports internal invariant violations.
//
// A violation means an upstream component or this module produced a state
// that well-formed input can never reach: an opcode family asked for a type
// it has no form for, an index lookup for a symbol that was never registered,
// a pool queried before assignment. Violations are raised with panic and are
// never recovered inside the module; they are not user diagnostics.
package invariant

import (
	"fmt"

	"github.com/pkg/errors"
)

// Violation is the panic value for a broken internal invariant. It carries
// the stack of the point where the violation was detected.
type Violation struct {
	err error
}

// Newf creates a violation with a formatted message. Callers panic with the
// result so that the panic site stays visible to the compiler as terminating.
func Newf(format string, args ...any) *Violation {
	return &Violation{err: errors.Errorf(format, args...)}
}

// Unreachable creates a violation for a switch arm or branch that must not
// be taken.
func Unreachable(format string, args ...any) *Violation {
	return &Violation{err: errors.Errorf("unreachable: "+format, args...)}
}

// Check panics with a violation when cond is false.
func Check(cond bool, format string, args ...any) {
	if !cond {
		panic(Newf(format, args...))
	}
}

func (v *Violation) Error() string {
	return "invariant violation: " + v.err.Error()
}

func (v *Violation) Unwrap() error {
	return v.err
}

// Format prints the captured stack with %+v.
func (v *Violation) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		fmt.Fprintf(s, "invariant violation: %+v", v.err)
		return
	}
	fmt.Fprint(s, v.Error())
}
