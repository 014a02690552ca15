// pkg/util/generic.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"maps"
	"slices"

	"golang.org/x/exp/constraints"
)

// Select is a stand-in for the ternary operator.
func Select[T any](sel bool, a, b T) T {
	if sel {
		return a
	}
	return b
}

// SortedMapKeys returns m's keys in increasing order.
func SortedMapKeys[K constraints.Ordered, V any](m map[K]V) []K {
	return slices.Sorted(maps.Keys(m))
}

// MapSlice applies xform to each element of from; the result is nil if
// from is empty.
func MapSlice[F, T any](from []F, xform func(F) T) []T {
	if len(from) == 0 {
		return nil
	}
	to := make([]T, len(from))
	for i, v := range from {
		to[i] = xform(v)
	}
	return to
}

// FilterSlice returns a new slice holding the elements of s for which pred
// returns true; s is not modified.
func FilterSlice[V any](s []V, pred func(V) bool) []V {
	var kept []V
	for _, v := range s {
		if pred(v) {
			kept = append(kept, v)
		}
	}
	return kept
}
