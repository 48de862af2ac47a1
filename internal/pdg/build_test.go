package pdg

import (
	"strings"
	"testing"

	"github.com/dgslice/slicer/internal/callgraph"
	"github.com/dgslice/slicer/internal/datadep"
	"github.com/dgslice/slicer/internal/icd"
	"github.com/dgslice/slicer/internal/ir"
)

const callSrc = `
proc g entry=bb0
param p0
block bb0
  instr i1 ret
endblock
endproc
proc main entry=bb0
block bb0
  instr i1 call call=g args=1 @f.c:1:1 x
  instr i2 ret
endblock
endproc
`

func TestBuild_WiresParameterLinkageAcrossProcedures(t *testing.T) {
	m, err := ir.ReadText(strings.NewReader(callSrc))
	if err != nil {
		t.Fatalf("ReadText: %v", err)
	}
	cg := callgraph.Eager(m, "main", nil, callgraph.Loose)
	icdRes := icd.Analyze(m, cg, "main", icd.DefaultAbnormalTerminators())
	dd := datadep.NewDefUseFallback(m)

	prog := Build(m, cg, icdRes, dd)

	mainG := prog.Graph("main")
	callNode := mainG.Node("i1")
	if callNode.Params == nil {
		t.Fatal("expected call-site i1 to carry parameter linkage")
	}
	if len(callNode.Params.Formals) != 1 || callNode.Params.Formals[0] != (NodeID{Proc: "g", Value: "p0"}) {
		t.Fatalf("expected formal p0 in g, got %v", callNode.Params.Formals)
	}
	if len(callNode.Subgraphs) != 1 || callNode.Subgraphs[0].Proc != "g" {
		t.Fatalf("expected g's subgraph wired, got %v", callNode.Subgraphs)
	}

	gGraph := prog.Graph("g")
	formal := gGraph.Node("p0")
	if !formal.RevData[(NodeID{Proc: "main", Value: "i1"})] {
		t.Fatalf("expected formal p0 to carry reverse data edge from caller's call-site, got %v", formal.RevData)
	}
}

func TestBuild_BlockOverlayRegistersEveryInstruction(t *testing.T) {
	m, err := ir.ReadText(strings.NewReader(callSrc))
	if err != nil {
		t.Fatalf("ReadText: %v", err)
	}
	cg := callgraph.Eager(m, "main", nil, callgraph.Loose)
	icdRes := icd.Analyze(m, cg, "main", icd.DefaultAbnormalTerminators())
	dd := datadep.NewDefUseFallback(m)
	prog := Build(m, cg, icdRes, dd)

	g := prog.Graph("main")
	members := g.Blocks["bb0"]
	if len(members) != 2 {
		t.Fatalf("expected 2 instructions registered in bb0, got %v", members)
	}
}
