package planner

import "sort"

// Kind distinguishes the two node flavors in a dependency graph.
type Kind string

const (
	KindAgent Kind = "agent"
	KindTool  Kind = "tool"
)

// Node is one component in a dependency graph. Exists reflects the registry
// snapshot at planning time.
type Node struct {
	Kind   Kind   `json:"kind"`
	Name   string `json:"name"`
	Exists bool   `json:"exists"`
}

// Key identifies a node uniquely; agents and tools live in separate
// namespaces so the kind is part of the identity.
func (n Node) Key() string { return string(n.Kind) + "/" + n.Name }

// graph is a small DAG builder with deterministic topological ordering.
// Nodes keep their insertion order, which is the primary tie-break.
type graph struct {
	nodes []Node
	index map[string]int      // key -> position in nodes
	edges map[string][]string // from key -> to keys
}

func newGraph() *graph {
	return &graph{
		index: make(map[string]int),
		edges: make(map[string][]string),
	}
}

// addNode inserts a node once; re-adding the same key is a no-op.
func (g *graph) addNode(n Node) {
	if _, ok := g.index[n.Key()]; ok {
		return
	}
	g.index[n.Key()] = len(g.nodes)
	g.nodes = append(g.nodes, n)
}

// addEdge records a from→to dependency edge. Both endpoints must have been
// added; unknown endpoints are ignored rather than invented.
func (g *graph) addEdge(from, to Node) {
	if _, ok := g.index[from.Key()]; !ok {
		return
	}
	if _, ok := g.index[to.Key()]; !ok {
		return
	}
	for _, existing := range g.edges[from.Key()] {
		if existing == to.Key() {
			return
		}
	}
	g.edges[from.Key()] = append(g.edges[from.Key()], to.Key())
}

// topoSort orders the nodes so every edge points forward. Ties between
// independent nodes resolve by insertion order, which the planner arranges
// to follow capability order then name order. A cycle yields a CycleError
// naming the unordered nodes.
func (g *graph) topoSort() ([]Node, error) {
	inDegree := make(map[string]int, len(g.nodes))
	for _, n := range g.nodes {
		inDegree[n.Key()] = 0
	}
	for _, tos := range g.edges {
		for _, to := range tos {
			inDegree[to]++
		}
	}

	ready := make([]string, 0, len(g.nodes))
	for _, n := range g.nodes {
		if inDegree[n.Key()] == 0 {
			ready = append(ready, n.Key())
		}
	}

	ordered := make([]Node, 0, len(g.nodes))
	for len(ready) > 0 {
		g.sortReady(ready)
		key := ready[0]
		ready = ready[1:]
		ordered = append(ordered, g.nodes[g.index[key]])

		for _, to := range g.edges[key] {
			inDegree[to]--
			if inDegree[to] == 0 {
				ready = append(ready, to)
			}
		}
	}

	if len(ordered) != len(g.nodes) {
		var stuck []string
		for _, n := range g.nodes {
			if inDegree[n.Key()] > 0 {
				stuck = append(stuck, n.Key())
			}
		}
		sort.Strings(stuck)
		return nil, &CycleError{Nodes: stuck}
	}
	return ordered, nil
}

func (g *graph) sortReady(ready []string) {
	sort.SliceStable(ready, func(i, j int) bool {
		return g.index[ready[i]] < g.index[ready[j]]
	})
}
