package slicer

import (
	"testing"

	"github.com/dgslice/slicer/internal/ir"
	"github.com/dgslice/slicer/internal/pdg"
)

// chainGraph wires def -> use edges b->a, c->b, d->c (b is a's reaching
// def, c is b's, d is c's), matching the PDG builder's convention:
// marking follows revData from a criterion, so the def must be the
// edge's P side for the use's revData to hold it.
// Slicing from "a" should therefore walk the whole chain backward to d.
func chainGraph() *pdg.Program {
	prog := pdg.NewProgram()
	g := prog.Graph("p")
	g.AddEdge("b", "a", pdg.KindData)
	g.AddEdge("c", "b", pdg.KindData)
	g.AddEdge("d", "c", pdg.KindData)
	return prog
}

// Slicing from a single criterion retains it and everything reachable
// backward along reverse-data edges.
func TestSlice_RetainsBackwardReachableChain(t *testing.T) {
	prog := chainGraph()
	criteria := Criteria{{Proc: "p", Value: "a"}}

	result, err := Slice(prog, criteria, Unbounded(), false)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	for _, v := range []ir.ValueID{"a", "b", "c", "d"} {
		if !result.Retained[(pdg.NodeID{Proc: "p", Value: v})] {
			t.Fatalf("expected %q retained, got %v", v, result.Retained)
		}
	}
}

// An intra-procedural depth cap of 0 stops propagation after the
// criterion itself.
func TestSlice_IntraDepthCapStopsPropagation(t *testing.T) {
	prog := chainGraph()
	criteria := Criteria{{Proc: "p", Value: "a"}}

	result, err := Slice(prog, criteria, WalkDepth{Intra: 0, Inter: -1}, false)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	if len(result.Retained) != 1 || !result.Retained[(pdg.NodeID{Proc: "p", Value: "a"})] {
		t.Fatalf("expected only the criterion retained, got %v", result.Retained)
	}
}

func TestSlice_EmptyCriteriaIsError(t *testing.T) {
	prog := chainGraph()
	_, err := Slice(prog, nil, Unbounded(), false)
	if err != ErrEmptyCriteria {
		t.Fatalf("expected ErrEmptyCriteria, got %v", err)
	}
}

// After Slice, unmarked nodes are isolated by the sweep: their edges are
// gone and they are dropped from the graph.
func TestSlice_SweepIsolatesUnmarkedNodes(t *testing.T) {
	prog := pdg.NewProgram()
	g := prog.Graph("p")
	g.AddEdge("keep", "drop", pdg.KindData)
	g.Node("lonely")

	criteria := Criteria{{Proc: "p", Value: "keep"}}
	_, err := Slice(prog, criteria, WalkDepth{Intra: 0, Inter: 0}, false)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	if g.Has("lonely") {
		t.Fatal("expected unreferenced node 'lonely' to be swept away")
	}
}
