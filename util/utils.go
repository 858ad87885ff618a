package util

import (
	"cmp"
	"slices"
)

// MapN applies fn to every element and stops at the first error.
func MapN[T, V any](ts []T, fn func(T) (V, error)) ([]V, error) {
	result := make([]V, 0, len(ts))
	for _, t := range ts {
		v, err := fn(t)
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}

	return result, nil
}

func Filter[T any](ts []T, fn func(T) bool) []T {
	result := []T{}
	for _, v := range ts {
		if fn(v) {
			result = append(result, v)
		}
	}
	return result
}

func Choose[T any](cond bool, a, b T) T {
	if cond {
		return a
	}
	return b
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
