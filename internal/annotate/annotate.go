// Package annotate renders the "--annotate" debugging dump: a text form
// of the IR with inline comments naming the edge kind and source of
// each dependence, as a line-oriented text report since this system's
// IR has no print form of its own.
package annotate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dgslice/slicer/internal/ir"
	"github.com/dgslice/slicer/internal/pdg"
	"github.com/dgslice/slicer/internal/pta"
)

// Kind is one of the five supported annotation kinds.
type Kind string

const (
	KindDD    Kind = "dd"    // data dependence
	KindCD    Kind = "cd"    // control dependence
	KindPTA   Kind = "pta"   // points-to
	KindMem   Kind = "memacc" // memory access (load/store)
	KindSlice Kind = "slice" // slice-membership marker
)

// ParseKinds splits a comma-separated --annotate flag value into the
// requested Kinds, e.g. "dd,cd,slice".
func ParseKinds(flag string) map[Kind]bool {
	out := map[Kind]bool{}
	for _, part := range strings.Split(flag, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out[Kind(part)] = true
		}
	}
	return out
}

// Render produces the annotated text dump for one module against one
// Program's PDGs, the slice's retained set, and (optionally) a points-to
// oracle for "pta" annotations.
func Render(module *ir.Module, prog *pdg.Program, retained map[pdg.NodeID]bool, oracle pta.Oracle, kinds map[Kind]bool) string {
	var sb strings.Builder
	for _, name := range module.Names() {
		p := module.Proc(name)
		if p.Declaration {
			continue
		}
		fmt.Fprintf(&sb, "proc %s\n", name)
		for _, b := range p.Blocks {
			fmt.Fprintf(&sb, "  block %s\n", b.ID)
			for _, instr := range b.Instrs {
				renderInstr(&sb, prog, name, instr, retained, oracle, kinds)
			}
		}
	}
	return sb.String()
}

func renderInstr(sb *strings.Builder, prog *pdg.Program, proc string, instr *ir.Instruction, retained map[pdg.NodeID]bool, oracle pta.Oracle, kinds map[Kind]bool) {
	id := pdg.NodeID{Proc: proc, Value: instr.ID}
	fmt.Fprintf(sb, "    %s %s", instr.ID, instr.Op)

	var comments []string
	if kinds[KindSlice] {
		if retained == nil || retained[id] {
			comments = append(comments, "slice: kept")
		} else {
			comments = append(comments, "slice: dropped")
		}
	}
	if kinds[KindMem] && (instr.Op == ir.OpLoad || instr.Op == ir.OpStore) {
		comments = append(comments, fmt.Sprintf("memacc: %s", instr.Op))
	}
	g := prog.Graphs[proc]
	if g != nil && g.Has(instr.ID) {
		n := g.Node(instr.ID)
		if kinds[KindDD] {
			for _, dep := range sortedNodeIDs(n.RevData) {
				comments = append(comments, fmt.Sprintf("dd<-%s:%s", dep.Proc, dep.Value))
			}
		}
		if kinds[KindCD] {
			for _, dep := range sortedNodeIDs(n.RevCtrl) {
				comments = append(comments, fmt.Sprintf("cd<-%s:%s", dep.Proc, dep.Value))
			}
		}
	}
	if kinds[KindPTA] && oracle != nil && instr.IsCallSite() && instr.Called.Indirect != "" {
		for _, t := range oracle.PointsTo(instr.Called.Indirect) {
			comments = append(comments, fmt.Sprintf("pta->%s", t.Proc))
		}
	}

	if len(comments) > 0 {
		fmt.Fprintf(sb, "  // %s", strings.Join(comments, "; "))
	}
	sb.WriteString("\n")
}

func sortedNodeIDs(m map[pdg.NodeID]bool) []pdg.NodeID {
	out := make([]pdg.NodeID, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Proc != out[j].Proc {
			return out[i].Proc < out[j].Proc
		}
		return out[i].Value < out[j].Value
	})
	return out
}
