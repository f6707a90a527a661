package util

import (
	"sort"

	"github.com/xtgo/set"
)

// MSet is a shallow wrapper around a map
// use it for small transient sets that get mutated in place
type MSet[A comparable] struct {
	underlying map[A]struct{}
}

func NewEmptySet[A comparable]() MSet[A] {
	return MSet[A]{
		underlying: make(map[A]struct{}),
	}
}

func NewSetOf[A comparable](elems []A) MSet[A] {
	underlying := make(map[A]struct{}, len(elems))
	for _, elem := range elems {
		underlying[elem] = struct{}{}
	}
	return MSet[A]{
		underlying: underlying,
	}
}

func (s MSet[A]) Add(elems ...A) {
	for _, elem := range elems {
		s.underlying[elem] = struct{}{}
	}
}

func (s MSet[A]) Contains(elem A) bool {
	_, ok := s.underlying[elem]
	return ok
}

func (s MSet[A]) Len() int {
	return len(s.underlying)
}

// DiffSorted returns the elements of a not present in b.
// Both slices must already be sorted.
func DiffSorted(a, b []string) []string {
	data := make([]string, 0, len(a)+len(b))
	data = append(data, a...)
	data = append(data, b...)
	n := set.Diff(sort.StringSlice(data), len(a))
	return data[:n]
}

// DupsSorted returns each element appearing more than once in the
// sorted slice, once.
func DupsSorted(a []string) []string {
	var dups []string
	for i := 1; i < len(a); i++ {
		if a[i] == a[i-1] && (len(dups) == 0 || dups[len(dups)-1] != a[i]) {
			dups = append(dups, a[i])
		}
	}
	return dups
}
