package callgraph

import (
	"sort"

	"github.com/dgslice/slicer/internal/ir"
	"github.com/dgslice/slicer/internal/pta"
)

// CompatPolicy is the call-compatibility signature-matching rule used
// to resolve an indirect call against a candidate callee.
type CompatPolicy int

const (
	// Loose is the default: call-site may supply more arguments than the
	// callee takes (extras discarded); integer<->pointer substitution is
	// allowed in argument/return positions.
	Loose CompatPolicy = iota
	// Strict requires an exact argument count match (variadic: fixed
	// portion must fit) and a losslessly bit-castable return type.
	Strict
	// MatchingArgs checks only overlapping argument positions, ignoring
	// counts and return type entirely.
	MatchingArgs
)

// compatible implements the three CompatPolicy rules against the operand
// counts recorded on the call-site and the candidate procedure's
// parameter list. This system's minimal IR has no real type lattice, so
// "integer<->pointer substitution" and "lossless bit-cast" collapse to
// "always allowed" — the policies differ only in how strictly they check
// argument *count*, which is the one signature dimension the IR models.
func compatible(instr *ir.Instruction, callee *ir.Procedure, policy CompatPolicy) bool {
	switch policy {
	case Strict:
		return instr.ArgCount == len(callee.Params)
	case MatchingArgs:
		return true
	default: // Loose
		return instr.ArgCount >= len(callee.Params) || len(callee.Params) == 0
	}
}

// Imported wraps a call graph a pointer-analysis session already built
// during its own fixpoint. edges is the analysis-provided
// procedure->callees relation; Imported only adapts it to the Graph
// query surface and establishes the reverse caller index.
func Imported(edges map[string][]string) Graph {
	g := newMutableGraph()
	for p, callees := range edges {
		g.addProc(p)
		for _, q := range callees {
			g.addEdge(p, q)
		}
	}
	return g
}

// Eager builds the whole call graph up front with a worklist from entry:
// every reachable procedure's call-sites are resolved against oracle,
// direct calls trivially and indirect calls via PointsTo, and each
// resolved callee is enqueued in turn.
func Eager(module *ir.Module, entry string, oracle pta.Oracle, policy CompatPolicy) Graph {
	g := newMutableGraph()
	if module.Proc(entry) == nil {
		return g
	}

	visited := map[string]bool{}
	worklist := []string{entry}
	for len(worklist) > 0 {
		name := worklist[0]
		worklist = worklist[1:]
		if visited[name] {
			continue
		}
		visited[name] = true
		g.addProc(name)

		p := module.Proc(name)
		if p == nil || p.Declaration {
			continue
		}
		for _, instr := range p.AllInstructions() {
			if !instr.IsCallSite() {
				continue
			}
			for _, callee := range resolve(module, instr, oracle, policy) {
				g.addEdge(name, callee)
				if !visited[callee] {
					worklist = append(worklist, callee)
				}
			}
		}
	}
	return g
}

// lazyGraph resolves call-sites on demand: direct calls resolve
// trivially; indirect calls consult oracle, or fall back to the
// address-taken filter when oracle is nil. Each call-site's resolved
// callee vector is cached so repeated queries are O(1).
type lazyGraph struct {
	module *ir.Module
	oracle pta.Oracle
	policy CompatPolicy

	built bool
	// cache maps a call-site instruction id to its resolved callees.
	cache map[ir.ValueID][]string
	g     *mutableGraph
}

// Lazy constructs a call graph that resolves nothing until queried or
// until Build is called explicitly.
func Lazy(module *ir.Module, oracle pta.Oracle, policy CompatPolicy) *lazyGraph {
	return &lazyGraph{
		module: module,
		oracle: oracle,
		policy: policy,
		cache:  map[ir.ValueID][]string{},
		g:      newMutableGraph(),
	}
}

// Build forces resolution of every call-site in the module, same as the
// eager strategy but without requiring an entry point (a lazy graph may
// be queried for any procedure, not just what's reachable from one
// entry).
func (l *lazyGraph) Build() {
	if l.built {
		return
	}
	l.built = true
	for _, name := range l.module.Names() {
		l.g.addProc(name)
		p := l.module.Proc(name)
		if p.Declaration {
			continue
		}
		for _, instr := range p.AllInstructions() {
			if instr.IsCallSite() {
				l.resolveCallSite(name, instr)
			}
		}
	}
}

func (l *lazyGraph) resolveCallSite(caller string, instr *ir.Instruction) []string {
	if cached, ok := l.cache[instr.ID]; ok {
		return cached
	}
	callees := resolve(l.module, instr, l.oracle, l.policy)
	l.cache[instr.ID] = callees
	for _, callee := range callees {
		l.g.addEdge(caller, callee)
	}
	return callees
}

func (l *lazyGraph) Procedures() []string {
	l.Build()
	return l.g.Procedures()
}

func (l *lazyGraph) Callers(p string) []string {
	l.Build()
	return l.g.Callers(p)
}

func (l *lazyGraph) Callees(p string) []string {
	l.Build()
	return l.g.Callees(p)
}

func (l *lazyGraph) Calls(p, q string) bool {
	l.Build()
	return l.g.Calls(p, q)
}

// resolve resolves one call-site's callee set: direct trivially, indirect
// via oracle when supplied, or the address-taken fallback filtered by
// call-compatibility otherwise .
func resolve(module *ir.Module, instr *ir.Instruction, oracle pta.Oracle, policy CompatPolicy) []string {
	if instr.Called.Direct != "" {
		return []string{instr.Called.Direct}
	}
	if instr.Called.Indirect == "" {
		return nil // UnresolvedIndirect: caller treats as no-op 
	}

	o := oracle
	if o == nil {
		o = pta.NewAddressTakenFallback(module)
	}
	var out []string
	seen := map[string]bool{}
	for _, t := range o.PointsTo(instr.Called.Indirect) {
		if t.Proc == "" || seen[t.Proc] {
			continue
		}
		callee := module.Proc(t.Proc)
		if callee == nil || !compatible(instr, callee, policy) {
			continue
		}
		seen[t.Proc] = true
		out = append(out, t.Proc)
	}
	sort.Strings(out)
	return out
}
