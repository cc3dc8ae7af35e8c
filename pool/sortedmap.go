package pool

import (
	"slices"

	"github.com/Londek/r8-mirror/invariant"
)

// IndexLimit is the number of entries a 16-bit indexed pool can address.
const IndexLimit = 1 << 16

// indexMap is a dense symbol-to-index map with its keys in index order.
type indexMap[T comparable] struct {
	index map[T]int
	keys  []T
}

// buildSortedMap sorts items with compare and numbers them 0..n-1. onOverflow
// is called exactly once, with the item that lands on index IndexLimit, when
// there are more items than a 16-bit index can address; a nil onOverflow
// means the pool has no limit. An empty input yields a nil (absent) map.
func buildSortedMap[T comparable](items []T, compare func(a, b T) int, onOverflow func(T) error) (*indexMap[T], error) {
	if len(items) == 0 {
		return nil, nil
	}
	sorted := slices.Clone(items)
	slices.SortFunc(sorted, compare)

	m := &indexMap[T]{index: make(map[T]int, len(sorted)), keys: sorted}
	for i, item := range sorted {
		if i > 0 && compare(sorted[i-1], item) == 0 {
			panic(invariant.Newf("symbol order is not strict: %v and %v compare equal", sorted[i-1], item))
		}
		if i == IndexLimit && onOverflow != nil {
			if err := onOverflow(item); err != nil {
				return nil, err
			}
		}
		m.index[item] = i
	}
	return m, nil
}

func (m *indexMap[T]) len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// keysOrEmpty returns the keys in index order, or an empty slice for an
// absent pool.
func (m *indexMap[T]) keysOrEmpty() []T {
	if m == nil {
		return []T{}
	}
	return slices.Clone(m.keys)
}
