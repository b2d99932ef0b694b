// Package setgraph evaluates a declarative graph of derived subject sets.
//
// Leaves are named field lists; every other node combines earlier nodes with
// intersect, complement or union. New validates the whole graph up front
// (names, arity, references and cycles) so Evaluate can run in a fixed
// topological order without further checks. The package performs no I/O.
package setgraph
