package setgraph

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds reported by New and Evaluate.
var (
	ErrInvalidGraph = errors.New("invalid set graph")
	ErrCycleFound   = errors.New("cycle detected")
	ErrMissingField = errors.New("missing field list")
)

// GraphError is a graph failure of one Kind with an optional detail naming
// the offending lists.
type GraphError struct {
	Kind   error
	Detail string
}

func (e *GraphError) Error() string {
	if e.Detail == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Detail
}

func (e *GraphError) Unwrap() error { return e.Kind }

func invalidf(format string, args ...any) error {
	return &GraphError{Kind: ErrInvalidGraph, Detail: fmt.Sprintf(format, args...)}
}

// cycleError reports path, a closed walk along input edges.
func cycleError(path []string) error {
	return &GraphError{Kind: ErrCycleFound, Detail: strings.Join(path, " -> ")}
}
