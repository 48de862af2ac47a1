// Package icd computes inter-procedural control dependence: which
// program points may fail to return, and the block- and
// instruction-level control-dependence sets those noret points induce.
//
// This is not classical post-dominance over one function's CFG: the
// analysis is keyed on "may not return" across procedure boundaries, so
// it needs its own inter-procedural fixpoint. The worklist/fixpoint
// style (iterate a map-keyed set to a stable point, no recursion over
// unbounded input) carries over from the usual iterative dominator
// computation idiom.
package icd

import (
	"sort"

	"github.com/dgslice/slicer/internal/callgraph"
	"github.com/dgslice/slicer/internal/ir"
)

// AbnormalTerminators names declaration-only procedures whose call sites
// are noret points by configuration ("exit", "abort" etc.) rather than
// by looking at their (absent) body.
type AbnormalTerminators map[string]bool

// DefaultAbnormalTerminators is the conventional C/C++ noreturn set.
func DefaultAbnormalTerminators() AbnormalTerminators {
	return AbnormalTerminators{
		"exit": true, "_exit": true, "abort": true,
		"longjmp": true, "__assert_fail": true,
	}
}

// ProcInfo holds the per-procedure noret/CD state.
type ProcInfo struct {
	Noret    map[ir.ValueID]bool // call/terminator instructions that may not return
	HasCD    bool
	BlockCD  map[ir.ValueID]map[ir.ValueID]bool // block ID -> set of noret-witness instr IDs
	InstrCD  map[ir.ValueID]map[ir.ValueID]bool // instr ID -> set of noret-witness instr IDs
}

func newProcInfo() *ProcInfo {
	return &ProcInfo{
		Noret:   map[ir.ValueID]bool{},
		BlockCD: map[ir.ValueID]map[ir.ValueID]bool{},
		InstrCD: map[ir.ValueID]map[ir.ValueID]bool{},
	}
}

// Result is the module-wide output of Analyze: one ProcInfo per defined
// procedure, keyed by name.
type Result struct {
	Procs map[string]*ProcInfo
}

func (r *Result) InstrCD(procName string, instr ir.ValueID) map[ir.ValueID]bool {
	pi, ok := r.Procs[procName]
	if !ok {
		return nil
	}
	return pi.InstrCD[instr]
}

// Analyze runs the two-phase algorithm over every defined procedure in
// module (entry does not restrict the set), then computes block- and
// instruction-level CD sets for each.
func Analyze(module *ir.Module, cg callgraph.Graph, entry string, abnormal AbnormalTerminators) *Result {
	res := &Result{Procs: map[string]*ProcInfo{}}
	for _, name := range module.Names() {
		p := module.Proc(name)
		if p.Declaration {
			continue
		}
		res.Procs[name] = newProcInfo()
	}

	// Phase A: local noret marking.
	for _, name := range module.Names() {
		p := module.Proc(name)
		if p.Declaration {
			continue
		}
		pi := res.Procs[name]
		for _, b := range p.Blocks {
			term := b.Terminator()
			if term == nil {
				continue
			}
			if len(b.Succs) == 0 && term.Op != ir.OpReturn {
				pi.Noret[term.ID] = true
			}
		}
		for _, instr := range p.AllInstructions() {
			if !instr.IsCallSite() {
				continue
			}
			for _, callee := range calleesOf(instr, cg, name) {
				if abnormal[callee] {
					pi.Noret[instr.ID] = true
				}
			}
		}
	}

	// Phase B: recursive noret propagation across the call graph, call
	// stack tracked explicitly. Depth is bounded by distinct procedure
	// names, so plain recursion with an on-stack visited set is safe:
	// traverse the call graph depth-first while tracking the call stack.
	computed := map[string]bool{}
	var visit func(name string, stack map[string]bool)
	visit = func(name string, stack map[string]bool) {
		if computed[name] {
			return
		}
		pi, ok := res.Procs[name]
		if !ok {
			computed[name] = true
			return
		}
		stack[name] = true
		for _, instr := range module.Proc(name).AllInstructions() {
			if !instr.IsCallSite() {
				continue
			}
			for _, callee := range calleesOf(instr, cg, name) {
				if stack[callee] {
					// Recursion: conservatively a noret point.
					pi.Noret[instr.ID] = true
					continue
				}
				visit(callee, stack)
				if calleePi, ok := res.Procs[callee]; ok && len(calleePi.Noret) > 0 {
					pi.Noret[instr.ID] = true
				}
			}
		}
		delete(stack, name)
		computed[name] = true
	}
	for _, name := range module.Names() {
		visit(name, map[string]bool{})
	}

	// Block-level CD fixpoint + instruction-level CD, per procedure.
	for _, name := range module.Names() {
		p := module.Proc(name)
		if p.Declaration {
			continue
		}
		computeBlockCD(p, res.Procs[name])
		computeInstrCD(p, res.Procs[name])
		res.Procs[name].HasCD = true
	}

	return res
}

// calleesOf resolves a call-site's callee set: a direct call trivially,
// an indirect call via cg.Callees(proc) — the call graph already folded
// points-to/address-taken resolution in, so this is a re-query of what
// it decided rather than a separate approximation.
func calleesOf(instr *ir.Instruction, cg callgraph.Graph, proc string) []string {
	if instr.Called != nil && instr.Called.Direct != "" {
		return []string{instr.Called.Direct}
	}
	if cg == nil {
		return nil
	}
	return cg.Callees(proc)
}

// computeBlockCD runs the worklist fixpoint: seed with successors of
// every block holding a noret point, then propagate
// blockCD(b) = union over preds(p) of (blockCD(p) ∪ localNoret(p))
// until stable. Deterministic because the final state is the least
// fixpoint, independent of pop order.
func computeBlockCD(p *ir.Procedure, pi *ProcInfo) {
	for _, b := range p.Blocks {
		pi.BlockCD[b.ID] = map[ir.ValueID]bool{}
	}
	localNoret := func(b *ir.BasicBlock) map[ir.ValueID]bool {
		out := map[ir.ValueID]bool{}
		for _, instr := range b.Instrs {
			if pi.Noret[instr.ID] {
				out[instr.ID] = true
			}
		}
		return out
	}

	var worklist []*ir.BasicBlock
	queued := map[ir.ValueID]bool{}
	enqueue := func(b *ir.BasicBlock) {
		if !queued[b.ID] {
			queued[b.ID] = true
			worklist = append(worklist, b)
		}
	}
	for _, b := range p.Blocks {
		if len(localNoret(b)) > 0 {
			for _, s := range b.Succs {
				enqueue(s)
			}
		}
	}

	for len(worklist) > 0 {
		b := worklist[0]
		worklist = worklist[1:]
		queued[b.ID] = false

		next := map[ir.ValueID]bool{}
		for _, pred := range b.Preds {
			for w := range pi.BlockCD[pred.ID] {
				next[w] = true
			}
			for w := range localNoret(pred) {
				next[w] = true
			}
		}
		if setsEqual(pi.BlockCD[b.ID], next) {
			continue
		}
		pi.BlockCD[b.ID] = next
		for _, s := range b.Succs {
			enqueue(s)
		}
	}
}

func computeInstrCD(p *ir.Procedure, pi *ProcInfo) {
	for _, b := range p.Blocks {
		running := map[ir.ValueID]bool{}
		for w := range pi.BlockCD[b.ID] {
			running[w] = true
		}
		for _, instr := range b.Instrs {
			cur := map[ir.ValueID]bool{}
			for w := range running {
				cur[w] = true
			}
			pi.InstrCD[instr.ID] = cur
			if pi.Noret[instr.ID] {
				running[instr.ID] = true
			}
		}
	}
}

func setsEqual(a, b map[ir.ValueID]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

// SortedKeys returns keys of a node-id set in deterministic order, used by
// callers (annotate, tests) that need reproducible iteration.
func SortedKeys(m map[ir.ValueID]bool) []ir.ValueID {
	out := make([]ir.ValueID, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
