package pool

import (
	"fmt"

	"github.com/Londek/r8-mirror/graph"
)

// OverflowError reports a pool with more entries than a 16-bit index can
// address. Item is the first symbol that did not fit.
type OverflowError struct {
	Kind graph.Kind
	Item graph.Item
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("index overflow for %s pool: %s is entry %d, limit is %d",
		e.Kind, e.Item, IndexLimit+1, IndexLimit)
}

func failOnOverflow[T graph.Item](kind graph.Kind) func(T) error {
	return func(item T) error {
		return &OverflowError{Kind: kind, Item: item}
	}
}
