package model

import (
	"cmp"
	"slices"
)

// Sorted is an ordered collection that maintains sort order by a key
// function. T is the element type, K is the comparable key type. Once
// constructed, items are guaranteed to be sorted by key.
//
// Grounded on ivoronin-dupedog's internal/types.Sorted; reused by the
// analyser's clustering stage to order each cluster's member ids
// deterministically.
type Sorted[T any, K cmp.Ordered] struct {
	items   []T
	keyFunc func(T) K
}

// NewSorted creates a sorted collection from items using keyFunc for
// ordering. Items are copied and sorted at construction time.
func NewSorted[T any, K cmp.Ordered](items []T, keyFunc func(T) K) Sorted[T, K] {
	sorted := make([]T, len(items))
	copy(sorted, items)
	slices.SortFunc(sorted, func(a, b T) int {
		return cmp.Compare(keyFunc(a), keyFunc(b))
	})
	return Sorted[T, K]{items: sorted, keyFunc: keyFunc}
}

// Items returns the sorted items.
func (s Sorted[T, K]) Items() []T { return s.items }

// First returns the first item (smallest key), or zero value if empty.
func (s Sorted[T, K]) First() T {
	if len(s.items) == 0 {
		var zero T
		return zero
	}
	return s.items[0]
}

// Len returns the number of items.
func (s Sorted[T, K]) Len() int { return len(s.items) }
