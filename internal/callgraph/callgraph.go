// Package callgraph builds and queries the inter-procedural call graph,
// generalizing whole-program call graph construction from Go SSA
// call-sites to this system's ir.Instruction call-sites, and from a
// single eager strategy to three construction strategies: Imported,
// Eager, Lazy.
package callgraph

import (
	"sort"
)

// Graph is the query surface every construction strategy implements.
type Graph interface {
	Procedures() []string
	Callers(p string) []string
	Callees(p string) []string
	Calls(p, q string) bool
}

// mutableGraph is the shared adjacency storage used by all three
// strategies; Lazy additionally keeps a per-call-site cache of resolved
// callees next to it.
type mutableGraph struct {
	callees map[string]map[string]struct{}
	callers map[string]map[string]struct{}
	procs   map[string]struct{}
}

func newMutableGraph() *mutableGraph {
	return &mutableGraph{
		callees: map[string]map[string]struct{}{},
		callers: map[string]map[string]struct{}{},
		procs:   map[string]struct{}{},
	}
}

// addEdge adds P->Q, maintaining the invariant that Q also carries a
// reverse caller edge to P, and that both endpoints are registered as
// procedures even if one has no body (a declaration).
func (g *mutableGraph) addEdge(p, q string) {
	g.procs[p] = struct{}{}
	g.procs[q] = struct{}{}
	if g.callees[p] == nil {
		g.callees[p] = map[string]struct{}{}
	}
	g.callees[p][q] = struct{}{}
	if g.callers[q] == nil {
		g.callers[q] = map[string]struct{}{}
	}
	g.callers[q][p] = struct{}{}
}

func (g *mutableGraph) addProc(p string) {
	g.procs[p] = struct{}{}
}

func (g *mutableGraph) Procedures() []string {
	out := make([]string, 0, len(g.procs))
	for p := range g.procs {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (g *mutableGraph) Callers(p string) []string { return sortedKeys(g.callers[p]) }
func (g *mutableGraph) Callees(p string) []string { return sortedKeys(g.callees[p]) }
func (g *mutableGraph) Calls(p, q string) bool {
	_, ok := g.callees[p][q]
	return ok
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
