// Package pdg implements the procedure-dependence-graph data model: one
// typed node per IR value of interest, with control/data (forward and
// reverse) edge sets, call-site parameter linkage, and a per-procedure
// basic-block overlay.
//
// Nodes and edges dedup on id the way a generic node/edge store would,
// generalized from one whole-program untyped graph to one *Graph per
// procedure with a typed ctrl/data/param distinction, and with the
// reverse edge always added in the same call as the forward edge so the
// invariant holds per direction-pair rather than per dedup-key.
package pdg

import (
	"sort"

	"github.com/dgslice/slicer/internal/ir"
)

// NodeID is the identity of one PDG node: the instruction/value it wraps,
// qualified by owning procedure so ids are unique module-wide.
type NodeID struct {
	Proc  string
	Value ir.ValueID
}

// ParamLinkage records the formal/actual parameter nodes wired for one
// call-site's parameter-linkage edges.
type ParamLinkage struct {
	Actuals []NodeID // caller-side call-site node, one entry per linked formal
	Formals []NodeID // callee-side parameter nodes, in declaration order
	Returns []NodeID // callee-side return-value nodes feeding the call result
}

// Node wraps one ir.Value of interest and owns its four dependence edge
// sets. Edge sets are maps so add/remove/membership are O(1); only
// *iteration* needs to be deterministic, not storage, so callers sort
// when order matters.
type Node struct {
	ID NodeID

	Ctrl, RevCtrl map[NodeID]bool
	Data, RevData map[NodeID]bool

	// Interference models loose read/write conflicts for multithreaded
	// dicing; present but never populated by this single-threaded core.
	Interference map[NodeID]bool

	// Subgraphs lists callee PDGs this call-site node transfers control
	// into; Params is non-nil only for call-site nodes.
	Subgraphs []*Graph
	Params    *ParamLinkage
}

func newNode(id NodeID) *Node {
	return &Node{
		ID:           id,
		Ctrl:         map[NodeID]bool{},
		RevCtrl:      map[NodeID]bool{},
		Data:         map[NodeID]bool{},
		RevData:      map[NodeID]bool{},
		Interference: map[NodeID]bool{},
	}
}

// Isolated reports whether every edge set on the node is empty.
func (n *Node) Isolated() bool {
	return len(n.Ctrl) == 0 && len(n.RevCtrl) == 0 && len(n.Data) == 0 && len(n.RevData) == 0 && len(n.Interference) == 0
}

// EdgeKind distinguishes the dependence-edge families a PDG tracks.
type EdgeKind int

const (
	KindCtrl EdgeKind = iota
	KindData
	KindInterference
)

// Graph is a PDG scoped to one procedure: a node-keyed map plus the
// procedure's basic-block overlay.
type Graph struct {
	Proc  string
	nodes map[ir.ValueID]*Node
	// Blocks lists the node ids owned by each basic block, kept in sync
	// as the overlay the sweep's detach step mutates.
	Blocks map[ir.ValueID][]ir.ValueID
	// BlockOf maps a node's value id back to its owning block, the
	// inverse index the sweep needs to re-link after removal.
	BlockOf map[ir.ValueID]ir.ValueID
}

// NewGraph creates an empty PDG for one procedure.
func NewGraph(procName string) *Graph {
	return &Graph{
		Proc:    procName,
		nodes:   map[ir.ValueID]*Node{},
		Blocks:  map[ir.ValueID][]ir.ValueID{},
		BlockOf: map[ir.ValueID]ir.ValueID{},
	}
}

// Node returns the node for v, creating it if absent (nodes are
// created when first referenced during construction).
func (g *Graph) Node(v ir.ValueID) *Node {
	id := NodeID{Proc: g.Proc, Value: v}
	n, ok := g.nodes[v]
	if !ok {
		n = newNode(id)
		g.nodes[v] = n
	}
	return n
}

// Has reports whether v has a node without creating one.
func (g *Graph) Has(v ir.ValueID) bool {
	_, ok := g.nodes[v]
	return ok
}

// Nodes returns every node id in the graph, sorted for deterministic
// iteration.
func (g *Graph) Nodes() []ir.ValueID {
	out := make([]ir.ValueID, 0, len(g.nodes))
	for v := range g.nodes {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// AddEdge adds a dependence edge from -> to of the given kind, mutating
// the reverse set on `to` atomically: every added edge gets its reverse
// counterpart added in the same critical section. An endpoint without a
// node in this graph gets one created; for cross-procedure
// parameter-linkage edges use crossEdge instead.
func (g *Graph) AddEdge(from, to ir.ValueID, kind EdgeKind) {
	fn, tn := g.Node(from), g.Node(to)
	fid, tid := fn.ID, tn.ID
	switch kind {
	case KindCtrl:
		fn.Ctrl[tid] = true
		tn.RevCtrl[fid] = true
	case KindData:
		fn.Data[tid] = true
		tn.RevData[fid] = true
	case KindInterference:
		fn.Interference[tid] = true
		tn.Interference[fid] = true
	}
}

// AddBlockNode registers value v as owned by block b, both directions of
// the overlay index kept in sync.
func (g *Graph) AddBlockNode(b, v ir.ValueID) {
	g.Blocks[b] = append(g.Blocks[b], v)
	g.BlockOf[v] = b
}

// RemoveFromBlock detaches v from its owning block's member list; if the
// block becomes empty it is dropped from the overlay entirely.
func (g *Graph) RemoveFromBlock(v ir.ValueID) {
	b, ok := g.BlockOf[v]
	if !ok {
		return
	}
	delete(g.BlockOf, v)
	members := g.Blocks[b]
	for i, m := range members {
		if m == v {
			g.Blocks[b] = append(members[:i], members[i+1:]...)
			break
		}
	}
	if len(g.Blocks[b]) == 0 {
		delete(g.Blocks, b)
	}
}

// Isolate removes all four edge sets from node v, mutating reverse
// neighbours symmetrically, then detaches v from the block overlay and
// drops the node. Safe to call at most once per node; the slicer's
// state machine enforces that (Marked -> Isolated, never re-entered).
func (g *Graph) Isolate(v ir.ValueID) {
	n, ok := g.nodes[v]
	if !ok {
		return
	}
	for other := range n.Ctrl {
		if g.sameProc(other) {
			delete(g.nodes[other.Value].RevCtrl, n.ID)
		}
	}
	for other := range n.RevCtrl {
		if g.sameProc(other) {
			delete(g.nodes[other.Value].Ctrl, n.ID)
		}
	}
	for other := range n.Data {
		if g.sameProc(other) {
			delete(g.nodes[other.Value].RevData, n.ID)
		}
	}
	for other := range n.RevData {
		if g.sameProc(other) {
			delete(g.nodes[other.Value].Data, n.ID)
		}
	}
	for other := range n.Interference {
		if g.sameProc(other) {
			delete(g.nodes[other.Value].Interference, n.ID)
		}
	}
	g.RemoveFromBlock(v)
	delete(g.nodes, v)
}

func (g *Graph) sameProc(id NodeID) bool { return id.Proc == g.Proc }

// Program is the whole-module collection of per-procedure PDGs the
// driver builds once call-graph and ICD results are available.
type Program struct {
	Graphs map[string]*Graph
}

func NewProgram() *Program { return &Program{Graphs: map[string]*Graph{}} }

func (pr *Program) Graph(proc string) *Graph {
	g, ok := pr.Graphs[proc]
	if !ok {
		g = NewGraph(proc)
		pr.Graphs[proc] = g
	}
	return g
}

// Isolate removes node id's four edge sets, reaching across procedure
// boundaries for the reverse-neighbour deletions so a cross-procedure
// parameter-linkage edge (wired by crossEdge) is unwound symmetrically on
// both sides regardless of which graph id belongs to. Graph.Isolate alone
// only unwinds same-procedure neighbours, which is enough for an
// unbounded walk (a marked node's cross-proc predecessor is always
// marked too) but leaves a dangling NodeID behind under a finite
// walk-depth cap, where a cross-proc predecessor can be pruned while its
// marked successor survives.
func (pr *Program) Isolate(id NodeID) {
	g, ok := pr.Graphs[id.Proc]
	if !ok {
		return
	}
	n, ok := g.nodes[id.Value]
	if !ok {
		return
	}
	drop := func(other NodeID, side func(*Node) map[NodeID]bool) {
		og, ok := pr.Graphs[other.Proc]
		if !ok {
			return
		}
		on, ok := og.nodes[other.Value]
		if !ok {
			return
		}
		delete(side(on), n.ID)
	}
	for other := range n.Ctrl {
		drop(other, func(o *Node) map[NodeID]bool { return o.RevCtrl })
	}
	for other := range n.RevCtrl {
		drop(other, func(o *Node) map[NodeID]bool { return o.Ctrl })
	}
	for other := range n.Data {
		drop(other, func(o *Node) map[NodeID]bool { return o.RevData })
	}
	for other := range n.RevData {
		drop(other, func(o *Node) map[NodeID]bool { return o.Data })
	}
	for other := range n.Interference {
		drop(other, func(o *Node) map[NodeID]bool { return o.Interference })
	}
	g.RemoveFromBlock(id.Value)
	delete(g.nodes, id.Value)
}
