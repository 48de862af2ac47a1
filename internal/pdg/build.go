package pdg

import (
	"github.com/dgslice/slicer/internal/callgraph"
	"github.com/dgslice/slicer/internal/datadep"
	"github.com/dgslice/slicer/internal/icd"
	"github.com/dgslice/slicer/internal/ir"
)

// Build constructs one Graph per defined procedure in module, wiring:
//   - data-dependence edges from each use to its reaching defs (datadep.Provider)
//   - control-dependence edges from icd.Result's per-instruction CD sets
//   - parameter-linkage edges at every resolvable call-site (cg.Callees)
//
// This is the PDG-construction step of the driver pipeline, consuming
// the call graph (cg), control-dependence result (icdRes), and the
// external data-dependence service (dd).
func Build(module *ir.Module, cg callgraph.Graph, icdRes *icd.Result, dd datadep.Provider) *Program {
	prog := NewProgram()

	for _, name := range module.Names() {
		p := module.Proc(name)
		if p.Declaration {
			continue
		}
		g := prog.Graph(name)
		buildBlockOverlay(g, p)
		buildDataEdges(g, p, dd)
		buildCtrlEdges(g, p, icdRes)
	}

	// Parameter linkage is wired in a second pass once every procedure's
	// graph exists, so a call-site's callee graph is guaranteed present:
	// the subgraph set lists exactly those callee PDGs for which
	// parameter linkage has been wired.
	for _, name := range module.Names() {
		p := module.Proc(name)
		if p.Declaration {
			continue
		}
		wireParamLinkage(prog, module, p, cg)
	}

	return prog
}

func buildBlockOverlay(g *Graph, p *ir.Procedure) {
	for _, b := range p.Blocks {
		for _, instr := range b.Instrs {
			g.Node(instr.ID)
			g.AddBlockNode(b.ID, instr.ID)
		}
	}
}

// buildDataEdges wires def -> use: marking follows revData from the
// criterion, so a use's revData must hold its reaching defs; that
// requires the def be the edge's P side, since adding P->Q implies
// Q.revX holds P.
func buildDataEdges(g *Graph, p *ir.Procedure, dd datadep.Provider) {
	if dd == nil {
		return
	}
	for _, instr := range p.AllInstructions() {
		for _, def := range dd.ReachingDefs(instr.ID) {
			if !g.Has(def) {
				continue // def lives in another procedure or is a parameter/global
			}
			g.AddEdge(def, instr.ID, KindData)
		}
	}
}

// buildCtrlEdges wires witness -> instr for the same reason
// buildDataEdges wires def -> use: marking follows revCtrl from the
// criterion, so the controlled instruction's revCtrl must hold its
// controlling witness.
func buildCtrlEdges(g *Graph, p *ir.Procedure, icdRes *icd.Result) {
	if icdRes == nil {
		return
	}
	for _, instr := range p.AllInstructions() {
		for witness := range icdRes.InstrCD(p.Name, instr.ID) {
			g.AddEdge(witness, instr.ID, KindCtrl)
		}
	}
}

// wireParamLinkage wires a call-site node to every callee's formal
// parameters and return nodes, for every direct or already-resolved
// callee . Ambiguity from an indirect call with multiple
// resolved targets is handled by wiring to each target in turn — the
// slice is the union of what any resolved target could contribute.
func wireParamLinkage(prog *Program, module *ir.Module, p *ir.Procedure, cg callgraph.Graph) {
	g := prog.Graphs[p.Name]
	for _, instr := range p.AllInstructions() {
		if !instr.IsCallSite() {
			continue
		}
		for _, calleeName := range resolvedCallees(instr, cg) {
			calleeGraph, ok := prog.Graphs[calleeName]
			if !ok {
				continue // declaration-only callee: no PDG to link into
			}
			calleeProc := module.Proc(calleeName)
			if calleeProc == nil {
				continue
			}
			link := &ParamLinkage{}
			for i, formal := range calleeProc.Params {
				if i >= len(instr.Operands) {
					break // callee expects more args than supplied: nothing to link
				}
				link.Actuals = append(link.Actuals, NodeID{Proc: p.Name, Value: instr.ID})
				link.Formals = append(link.Formals, NodeID{Proc: calleeName, Value: formal})
				crossEdge(g, calleeGraph, instr.ID, formal, KindData)
			}
			for _, b := range calleeProc.Blocks {
				term := b.Terminator()
				if term != nil && term.Op == ir.OpReturn {
					link.Returns = append(link.Returns, NodeID{Proc: calleeName, Value: term.ID})
					crossEdge(calleeGraph, g, term.ID, instr.ID, KindData)
				}
			}
			callNode := g.Node(instr.ID)
			callNode.Subgraphs = append(callNode.Subgraphs, calleeGraph)
			callNode.Params = link
		}
	}
}

// crossEdge wires a dependence edge between nodes owned by two different
// procedure graphs: each node records the edge against the *other*
// graph's qualified NodeID directly, so marking (internal/slicer) can
// still follow it across the procedure boundary while Isolate only
// touches same-graph reverse neighbours (guarded by Graph.sameProc).
func crossEdge(from *Graph, to *Graph, fromV, toV ir.ValueID, kind EdgeKind) {
	fn := from.Node(fromV)
	tn := to.Node(toV)
	switch kind {
	case KindCtrl:
		fn.Ctrl[tn.ID] = true
		tn.RevCtrl[fn.ID] = true
	case KindData:
		fn.Data[tn.ID] = true
		tn.RevData[fn.ID] = true
	case KindInterference:
		fn.Interference[tn.ID] = true
		tn.Interference[fn.ID] = true
	}
}

// resolvedCallees returns the callee names a call-site may target. A
// direct call resolves trivially; an indirect call falls back to every
// callee C1 attributed to the containing procedure as a whole, since
// its {procedures, callers, callees, calls} surface is
// procedure-granular, not call-site-granular — call-graph construction
// (internal/callgraph) already filtered these by points-to/address-taken
// compatibility, so this is not an additional over-approximation, just a
// re-query of what C1 already decided.
func resolvedCallees(instr *ir.Instruction, cg callgraph.Graph) []string {
	if instr.Called.Direct != "" {
		return []string{instr.Called.Direct}
	}
	return cg.Callees(instr.Block.Proc.Name)
}
