// Package growset implements an append-only set whose merge is set union.
//
// A Set is a value type: Add and Merge return new sets and never modify their
// inputs, so a Set can be shared between replicas and goroutines freely. The
// zero Set is empty and ready to use.
package growset

import (
	"cmp"
	"encoding/json"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
)

type Set[T cmp.Ordered] struct {
	items mapset.Set[T]
}

func New[T cmp.Ordered](items ...T) Set[T] {
	return Set[T]{items: mapset.NewThreadUnsafeSet(items...)}
}

func (s Set[T]) inner() mapset.Set[T] {
	if s.items == nil {
		return mapset.NewThreadUnsafeSet[T]()
	}
	return s.items
}

// Add returns a set holding s plus items.
func (s Set[T]) Add(items ...T) Set[T] {
	next := s.inner().Clone()
	for _, item := range items {
		next.Add(item)
	}
	return Set[T]{items: next}
}

func (s Set[T]) Contains(item T) bool {
	return s.items != nil && s.items.Contains(item)
}

func (s Set[T]) Len() int {
	if s.items == nil {
		return 0
	}
	return s.items.Cardinality()
}

// Sorted returns the elements in ascending order.
func (s Set[T]) Sorted() []T {
	out := s.inner().ToSlice()
	slices.Sort(out)
	return out
}

func (s Set[T]) Equal(other Set[T]) bool {
	return s.inner().Equal(other.inner())
}

func (s Set[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *Set[T]) UnmarshalJSON(data []byte) error {
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*s = New(items...)
	return nil
}

// Result is the outcome of merging two replicas of a set.
type Result[T cmp.Ordered] struct {
	Resolved Set[T]
	// LocalOnly holds what the remote side must learn.
	LocalOnly []T
	// RemoteOnly holds what the local side must learn.
	RemoteOnly []T
}

func Merge[T cmp.Ordered](local, remote Set[T]) Result[T] {
	l, r := local.inner(), remote.inner()

	localOnly := l.Difference(r).ToSlice()
	remoteOnly := r.Difference(l).ToSlice()
	slices.Sort(localOnly)
	slices.Sort(remoteOnly)

	return Result[T]{
		Resolved:   Set[T]{items: l.Union(r)},
		LocalOnly:  localOnly,
		RemoteOnly: remoteOnly,
	}
}
