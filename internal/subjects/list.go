package subjects

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	// ErrUnsorted reports a list whose entries are not in ascending order.
	ErrUnsorted = errors.New("subject list is not sorted")
	// ErrDuplicate reports a list that repeats an identifier.
	ErrDuplicate = errors.New("subject list contains duplicates")
	// ErrEmptyID reports a blank identifier inside a list.
	ErrEmptyID = errors.New("subject list contains an empty identifier")
)

// List is a sorted, duplicate-free set of subject identifiers.
type List []string

// NewList trims, sorts and dedupes ids. Blank entries are dropped.
func NewList(ids []string) List {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		out = append(out, id)
	}
	slices.Sort(out)
	return List(slices.Compact(out))
}

// Len returns the number of identifiers.
func (l List) Len() int { return len(l) }

// Contains reports whether id is present.
func (l List) Contains(id string) bool {
	_, ok := slices.BinarySearch(l, id)
	return ok
}

// Equal reports whether both lists hold the same identifiers.
func (l List) Equal(other List) bool {
	return slices.Equal(l, other)
}

// Validate checks the sorted and duplicate-free invariant.
func (l List) Validate() error {
	for i, id := range l {
		if id == "" {
			return fmt.Errorf("%w at line %d", ErrEmptyID, i+1)
		}
		if i == 0 {
			continue
		}
		switch prev := l[i-1]; {
		case prev == id:
			return fmt.Errorf("%w: %q at line %d", ErrDuplicate, id, i+1)
		case prev > id:
			return fmt.Errorf("%w: %q follows %q at line %d", ErrUnsorted, id, prev, i+1)
		}
	}
	return nil
}

// Intersect returns the identifiers present in both a and b.
func Intersect(a, b List) List {
	out := make(List, 0, min(len(a), len(b)))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			out = append(out, a[i])
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return out
}

// Complement returns the identifiers of a that are absent from b.
func Complement(a, b List) List {
	out := make(List, 0, len(a))
	i, j := 0, 0
	for i < len(a) {
		switch {
		case j >= len(b) || a[i] < b[j]:
			out = append(out, a[i])
			i++
		case a[i] == b[j]:
			i++
			j++
		default:
			j++
		}
	}
	return out
}

// Union returns the identifiers present in a or b.
func Union(a, b List) List {
	out := make(List, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		switch {
		case j >= len(b):
			out = append(out, a[i])
			i++
		case i >= len(a):
			out = append(out, b[j])
			j++
		case a[i] == b[j]:
			out = append(out, a[i])
			i++
			j++
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		default:
			out = append(out, b[j])
			j++
		}
	}
	return out
}

// IntersectAll folds Intersect over lists from left to right. No lists yields
// an empty result.
func IntersectAll(lists ...List) List {
	if len(lists) == 0 {
		return List{}
	}
	acc := slices.Clone(lists[0])
	for _, next := range lists[1:] {
		acc = Intersect(acc, next)
	}
	if acc == nil {
		return List{}
	}
	return acc
}

// UnionAll folds Union over lists from left to right.
func UnionAll(lists ...List) List {
	acc := List{}
	for _, next := range lists {
		acc = Union(acc, next)
	}
	return acc
}
