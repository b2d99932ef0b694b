package setgraph

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"ukbqsm/internal/subjects"
)

var defaultFields = []string{"t1", "swi", "flair", "aseg", "processed"}

func defaultNodes() []Node {
	return []Node{
		{Name: "core", Op: OpIntersect, Inputs: []string{"t1", "swi", "flair", "aseg"}},
		{Name: "todo", Op: OpComplement, Inputs: []string{"core", "processed"}},
		{Name: "stale", Op: OpComplement, Inputs: []string{"processed", "core"}},
		{Name: "t1_swi_aseg", Op: OpIntersect, Inputs: []string{"t1", "swi", "aseg"}},
		{Name: "no_flair", Op: OpComplement, Inputs: []string{"t1_swi_aseg", "flair"}},
	}
}

func TestEvaluateDefaultChain(t *testing.T) {
	g, err := New(defaultFields, defaultNodes())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	fields := map[string]subjects.List{
		"t1":        subjects.NewList([]string{"1", "2", "3", "4", "5"}),
		"swi":       subjects.NewList([]string{"1", "2", "3", "4"}),
		"flair":     subjects.NewList([]string{"1", "2", "5"}),
		"aseg":      subjects.NewList([]string{"1", "2", "3"}),
		"processed": subjects.NewList([]string{"1", "9"}),
	}
	got, err := g.Evaluate(fields)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	want := map[string]subjects.List{
		"core":        {"1", "2"},
		"todo":        {"2"},
		"stale":       {"9"},
		"t1_swi_aseg": {"1", "2", "3"},
		"no_flair":    {"3"},
	}
	for name, list := range want {
		if !got[name].Equal(list) {
			t.Fatalf("%s = %v, want %v", name, got[name], list)
		}
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d derived lists, got %d", len(want), len(got))
	}
}

func TestOrderIsTopologicalAndDeterministic(t *testing.T) {
	nodes := []Node{
		{Name: "no_flair", Op: OpComplement, Inputs: []string{"t1_swi_aseg", "flair"}},
		{Name: "t1_swi_aseg", Op: OpIntersect, Inputs: []string{"t1", "swi", "aseg"}},
		{Name: "core", Op: OpIntersect, Inputs: []string{"t1", "swi", "flair", "aseg"}},
	}
	g, err := New(defaultFields, nodes)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	order := g.Order()
	want := []string{"t1_swi_aseg", "no_flair", "core"}
	if !slices.Equal(order, want) {
		t.Fatalf("Order = %v, want %v", order, want)
	}
	for i := 0; i < 5; i++ {
		again, _ := New(defaultFields, nodes)
		if !slices.Equal(again.Order(), want) {
			t.Fatal("order changed between builds")
		}
	}
}

func TestNewRejectsInvalidGraphs(t *testing.T) {
	cases := []struct {
		name  string
		nodes []Node
		want  error
		frag  string
	}{
		{"empty name", []Node{{Op: OpUnion, Inputs: []string{"t1", "swi"}}}, ErrInvalidGraph, "name is required"},
		{"duplicate", []Node{
			{Name: "a", Op: OpUnion, Inputs: []string{"t1", "swi"}},
			{Name: "a", Op: OpUnion, Inputs: []string{"t1", "swi"}},
		}, ErrInvalidGraph, "duplicate"},
		{"field collision", []Node{{Name: "t1", Op: OpUnion, Inputs: []string{"swi", "aseg"}}}, ErrInvalidGraph, "collides"},
		{"unknown input", []Node{{Name: "a", Op: OpUnion, Inputs: []string{"t1", "dwi"}}}, ErrInvalidGraph, "unknown input"},
		{"unknown op", []Node{{Name: "a", Op: "xor", Inputs: []string{"t1", "swi"}}}, ErrInvalidGraph, "unknown operation"},
		{"complement arity", []Node{{Name: "a", Op: OpComplement, Inputs: []string{"t1", "swi", "aseg"}}}, ErrInvalidGraph, "exactly 2"},
		{"intersect arity", []Node{{Name: "a", Op: OpIntersect, Inputs: []string{"t1"}}}, ErrInvalidGraph, "at least 2"},
		{"self reference", []Node{{Name: "a", Op: OpUnion, Inputs: []string{"a", "t1"}}}, ErrInvalidGraph, "self reference"},
		{"cycle", []Node{
			{Name: "a", Op: OpUnion, Inputs: []string{"t1", "b"}},
			{Name: "b", Op: OpUnion, Inputs: []string{"swi", "c"}},
			{Name: "c", Op: OpComplement, Inputs: []string{"a", "aseg"}},
		}, ErrCycleFound, "a -> c -> b -> a"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(defaultFields, tc.nodes)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if !strings.Contains(err.Error(), tc.frag) {
				t.Fatalf("expected error to mention %q, got %v", tc.frag, err)
			}
		})
	}
}

func TestEvaluateMissingField(t *testing.T) {
	g, err := New(defaultFields, defaultNodes())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = g.Evaluate(map[string]subjects.List{"t1": {"1"}})
	if !errors.Is(err, ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}
}

func TestIntersectAllOrderIndependent(t *testing.T) {
	fields := []string{"a", "b", "c", "d"}
	lists := map[string]subjects.List{
		"a": {"1", "2", "3", "4"},
		"b": {"2", "3", "4"},
		"c": {"1", "3", "4"},
		"d": {"3", "4", "5"},
	}
	var first subjects.List
	for _, perm := range [][]string{{"a", "b", "c", "d"}, {"d", "c", "b", "a"}, {"b", "d", "a", "c"}} {
		g, err := New(fields, []Node{{Name: "all", Op: OpIntersect, Inputs: perm}})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		out, err := g.Evaluate(lists)
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if first == nil {
			first = out["all"]
			continue
		}
		if !out["all"].Equal(first) {
			t.Fatalf("order %v gave %v, want %v", perm, out["all"], first)
		}
	}
	if !first.Equal(subjects.List{"3", "4"}) {
		t.Fatalf("IntersectAll = %v", first)
	}
}

func TestDefinition(t *testing.T) {
	n := Node{Name: "todo", Op: OpComplement, Inputs: []string{"core", "processed"}}
	if got := n.Definition(); got != `core \ processed` {
		t.Fatalf("Definition = %q", got)
	}
}
