package setgraph

import (
	"fmt"
	"slices"
	"strings"

	"ukbqsm/internal/subjects"
)

// Op is a set operation applied to a node's inputs.
type Op string

const (
	OpIntersect  Op = "intersect"
	OpComplement Op = "complement"
	OpUnion      Op = "union"
)

// ParseOp normalizes an operation name.
func ParseOp(value string) (Op, error) {
	switch op := Op(strings.ToLower(strings.TrimSpace(value))); op {
	case OpIntersect, OpComplement, OpUnion:
		return op, nil
	default:
		return "", invalidf("unknown operation %q", value)
	}
}

// Node is one derived set.
type Node struct {
	Name   string
	Op     Op
	Inputs []string
}

// Definition renders the node as a short expression, for reports.
func (n Node) Definition() string {
	switch n.Op {
	case OpIntersect:
		return strings.Join(n.Inputs, " ∩ ")
	case OpUnion:
		return strings.Join(n.Inputs, " ∪ ")
	case OpComplement:
		return strings.Join(n.Inputs, " \\ ")
	default:
		return string(n.Op) + "(" + strings.Join(n.Inputs, ", ") + ")"
	}
}

// Graph is an immutable, validated set of derived nodes over named fields.
type Graph struct {
	fields []string
	nodes  []Node
	byName map[string]int

	outgoing [][]int
	indeg    []int
	order    []int
}

// New builds and validates a Graph.
//
// Validation rejects:
//   - empty or duplicate node names, or names shadowing a field
//   - inputs that name neither a field nor a node
//   - wrong arity (complement takes exactly two inputs, the others two or more)
//   - self references and any cycle
func New(fields []string, nodes []Node) (*Graph, error) {
	fieldSet := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if f == "" {
			return nil, invalidf("field name is required")
		}
		if _, dup := fieldSet[f]; dup {
			return nil, invalidf("duplicate field name: %q", f)
		}
		fieldSet[f] = struct{}{}
	}

	g := &Graph{
		fields: slices.Clone(fields),
		nodes:  make([]Node, 0, len(nodes)),
		byName: make(map[string]int, len(nodes)),
	}
	for _, n := range nodes {
		if n.Name == "" {
			return nil, invalidf("node name is required")
		}
		if _, clash := fieldSet[n.Name]; clash {
			return nil, invalidf("node %q collides with a field name", n.Name)
		}
		if _, dup := g.byName[n.Name]; dup {
			return nil, invalidf("duplicate node name: %q", n.Name)
		}
		op, err := ParseOp(string(n.Op))
		if err != nil {
			return nil, invalidf("node %q: unknown operation %q", n.Name, n.Op)
		}
		if err := checkArity(n.Name, op, len(n.Inputs)); err != nil {
			return nil, err
		}
		g.byName[n.Name] = len(g.nodes)
		g.nodes = append(g.nodes, Node{Name: n.Name, Op: op, Inputs: slices.Clone(n.Inputs)})
	}

	g.outgoing = make([][]int, len(g.nodes))
	g.indeg = make([]int, len(g.nodes))
	for i, n := range g.nodes {
		for _, in := range n.Inputs {
			if in == n.Name {
				return nil, invalidf("self reference: %q", n.Name)
			}
			if _, ok := fieldSet[in]; ok {
				continue
			}
			j, ok := g.byName[in]
			if !ok {
				return nil, invalidf("node %q references unknown input %q", n.Name, in)
			}
			g.outgoing[j] = append(g.outgoing[j], i)
			g.indeg[i]++
		}
	}
	for i := range g.outgoing {
		slices.Sort(g.outgoing[i])
		g.outgoing[i] = slices.Compact(g.outgoing[i])
	}
	// Compacting edges changes in-degrees for nodes that list an input twice.
	for i := range g.indeg {
		g.indeg[i] = 0
	}
	for _, targets := range g.outgoing {
		for _, t := range targets {
			g.indeg[t]++
		}
	}

	if err := g.validateAcyclic(); err != nil {
		return nil, err
	}
	return g, nil
}

func checkArity(name string, op Op, n int) error {
	switch op {
	case OpComplement:
		if n != 2 {
			return invalidf("node %q: complement takes exactly 2 inputs, got %d", name, n)
		}
	default:
		if n < 2 {
			return invalidf("node %q: %s takes at least 2 inputs, got %d", name, op, n)
		}
	}
	return nil
}

// Fields returns the field names the graph was built over.
func (g *Graph) Fields() []string { return slices.Clone(g.fields) }

// Node returns a node by name.
func (g *Graph) Node(name string) (Node, bool) {
	i, ok := g.byName[name]
	if !ok {
		return Node{}, false
	}
	return g.nodes[i], true
}

// Order returns node names in deterministic topological order. Ties resolve
// by declaration order.
func (g *Graph) Order() []string {
	names := make([]string, 0, len(g.order))
	for _, i := range g.order {
		names = append(names, g.nodes[i].Name)
	}
	return names
}

// Nodes returns the nodes in topological order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.order))
	for _, i := range g.order {
		out = append(out, g.nodes[i])
	}
	return out
}

// Evaluate computes every derived node from the field lists. Every field the
// graph was built with must be present in fields.
func (g *Graph) Evaluate(fields map[string]subjects.List) (map[string]subjects.List, error) {
	for _, f := range g.fields {
		if _, ok := fields[f]; !ok {
			return nil, &GraphError{Kind: ErrMissingField, Detail: fmt.Sprintf("%q", f)}
		}
	}

	values := make(map[string]subjects.List, len(g.fields)+len(g.nodes))
	for name, list := range fields {
		values[name] = list
	}
	out := make(map[string]subjects.List, len(g.nodes))
	for _, i := range g.order {
		n := g.nodes[i]
		inputs := make([]subjects.List, 0, len(n.Inputs))
		for _, in := range n.Inputs {
			inputs = append(inputs, values[in])
		}
		result := apply(n.Op, inputs)
		values[n.Name] = result
		out[n.Name] = result
	}
	return out, nil
}

func apply(op Op, inputs []subjects.List) subjects.List {
	switch op {
	case OpComplement:
		return subjects.Complement(inputs[0], inputs[1])
	case OpUnion:
		return subjects.UnionAll(inputs...)
	default:
		return subjects.IntersectAll(inputs...)
	}
}
