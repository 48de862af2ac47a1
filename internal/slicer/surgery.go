package slicer

import (
	"github.com/dgslice/slicer/internal/callgraph"
	"github.com/dgslice/slicer/internal/ir"
)

// exitPrimitive is the freshly declared non-returning procedure CFG
// surgery prepends into irrelevant blocks. A single declaration is
// shared across a whole surgery pass; the module already declares a
// real "exit" in C programs, so this reuses that name rather than
// inventing a colliding symbol.
const exitPrimitiveName = "exit"

// CutoffDivergingBranches is the CFG-surgery pre-pass: compute which
// basic blocks some path in the inter-procedural CFG can still reach a
// criterion from, then prefix every other block's first non-phi
// instruction with a call to a guaranteed non-returning primitive, so
// later dependence propagation cannot import spurious dependencies
// through a branch that can no longer affect any criterion.
func CutoffDivergingBranches(module *ir.Module, cg callgraph.Graph, criteria Criteria) {
	relevant := relevantBlocks(module, cg, criteria)
	ensureExitDeclared(module)

	for _, name := range module.Names() {
		p := module.Proc(name)
		if p.Declaration {
			continue
		}
		for _, b := range p.Blocks {
			if relevant[b] {
				continue
			}
			insertExitStub(b)
		}
	}
}

// relevantBlocks seeds the worklist with every criterion's containing
// block, then grows backward: intra-procedural predecessors, and — when
// the popped block is its procedure's entry — every call-site block that
// calls that procedure, via the call graph's reverse edges.
func relevantBlocks(module *ir.Module, cg callgraph.Graph, criteria Criteria) map[*ir.BasicBlock]bool {
	relevant := map[*ir.BasicBlock]bool{}

	// Block and instruction ids are only unique within one procedure, so
	// instructions are keyed by (procedure, id) and blocks by identity.
	type instrKey struct {
		proc string
		id   ir.ValueID
	}
	instrBlock := map[instrKey]*ir.BasicBlock{}
	callSitesOf := map[string][]*ir.BasicBlock{} // callee proc name -> blocks containing a call to it
	for _, name := range module.Names() {
		p := module.Proc(name)
		for _, b := range p.Blocks {
			for _, instr := range b.Instrs {
				instrBlock[instrKey{proc: name, id: instr.ID}] = b
				if !instr.IsCallSite() {
					continue
				}
				if instr.Called.Direct != "" {
					callSitesOf[instr.Called.Direct] = append(callSitesOf[instr.Called.Direct], b)
					continue
				}
				// Indirect call-site: the call graph only resolves
				// indirect calls at procedure granularity, so every
				// callee it attributes to this caller is a candidate
				// and the block is seeded for each.
				if cg == nil {
					continue
				}
				for _, callee := range cg.Callees(name) {
					callSitesOf[callee] = append(callSitesOf[callee], b)
				}
			}
		}
	}

	var worklist []*ir.BasicBlock
	seed := func(b *ir.BasicBlock) {
		if b != nil && !relevant[b] {
			relevant[b] = true
			worklist = append(worklist, b)
		}
	}
	for _, c := range criteria {
		seed(instrBlock[instrKey{proc: c.Proc, id: c.Value}])
	}

	for len(worklist) > 0 {
		b := worklist[0]
		worklist = worklist[1:]
		for _, pred := range b.Preds {
			seed(pred)
		}
		if b.Proc.Entry == b {
			for _, callerBlock := range callSitesOf[b.Proc.Name] {
				seed(callerBlock)
			}
		}
	}
	return relevant
}

func ensureExitDeclared(module *ir.Module) {
	if _, ok := module.Procedures[exitPrimitiveName]; ok {
		return
	}
	module.Procedures[exitPrimitiveName] = &ir.Procedure{
		Name:        exitPrimitiveName,
		Declaration: true,
	}
}

// insertExitStub prefixes b's first non-phi instruction with a call to
// the exit primitive. Phis must stay first in a block (they are
// positional in the predecessor list), so the stub is inserted just
// after the last leading phi.
func insertExitStub(b *ir.BasicBlock) {
	pos := 0
	for pos < len(b.Instrs) && b.Instrs[pos].Op == ir.OpPhi {
		pos++
	}
	stub := &ir.Instruction{
		ID:       ir.ValueID(string(b.ID) + ".exitstub"),
		Op:       ir.OpCall,
		Called:   &ir.CalledValue{Direct: exitPrimitiveName},
		ArgCount: 1,
		Block:    b,
	}
	instrs := make([]*ir.Instruction, 0, len(b.Instrs)+1)
	instrs = append(instrs, b.Instrs[:pos]...)
	instrs = append(instrs, stub)
	instrs = append(instrs, b.Instrs[pos:]...)
	b.Instrs = instrs
}
