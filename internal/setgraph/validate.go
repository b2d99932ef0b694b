package setgraph

import "slices"

// validateAcyclic orders the nodes so every node follows its inputs. Ties
// resolve by declaration order. Nodes left unordered sit on or behind a
// cycle, and one such cycle is reported.
func (g *Graph) validateAcyclic() error {
	order := g.kahnOrder()
	if len(order) == len(g.nodes) {
		g.order = order
		return nil
	}
	ordered := make([]bool, len(g.nodes))
	for _, i := range order {
		ordered[i] = true
	}
	return cycleError(g.cycleAmong(ordered))
}

func (g *Graph) kahnOrder() []int {
	indeg := slices.Clone(g.indeg)
	var ready []int
	for i, d := range indeg {
		if d == 0 {
			ready = append(ready, i)
		}
	}

	out := make([]int, 0, len(indeg))
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		out = append(out, n)
		for _, m := range g.outgoing[n] {
			indeg[m]--
			if indeg[m] == 0 {
				pos, _ := slices.BinarySearch(ready, m)
				ready = slices.Insert(ready, pos, m)
			}
		}
	}
	return out
}

// cycleAmong walks backwards from the first unordered node through its
// unordered inputs. Every unordered node has such an input, so the walk
// revisits a node and the revisited stretch is a cycle.
func (g *Graph) cycleAmong(ordered []bool) []string {
	cur := slices.Index(ordered, false)
	seenAt := make(map[int]int)
	var walk []int
	for cur >= 0 {
		if at, seen := seenAt[cur]; seen {
			loop := append(slices.Clone(walk[at:]), cur)
			slices.Reverse(loop)
			names := make([]string, 0, len(loop))
			for _, i := range loop {
				names = append(names, g.nodes[i].Name)
			}
			return names
		}
		seenAt[cur] = len(walk)
		walk = append(walk, cur)
		cur = g.unorderedInput(cur, ordered)
	}
	return nil
}

func (g *Graph) unorderedInput(node int, ordered []bool) int {
	for _, in := range g.nodes[node].Inputs {
		if j, ok := g.byName[in]; ok && !ordered[j] {
			return j
		}
	}
	return -1
}
