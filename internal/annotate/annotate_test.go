package annotate

import (
	"strings"
	"testing"

	"github.com/dgslice/slicer/internal/ir"
	"github.com/dgslice/slicer/internal/pdg"
)

func TestParseKinds(t *testing.T) {
	kinds := ParseKinds(" dd, cd ,slice")
	if !kinds[KindDD] || !kinds[KindCD] || !kinds[KindSlice] {
		t.Fatalf("expected dd/cd/slice parsed, got %v", kinds)
	}
	if len(ParseKinds("")) != 0 {
		t.Fatal("expected empty flag to parse to no kinds")
	}
}

func TestRender_DataDependenceUsesRevData(t *testing.T) {
	src := `
proc main entry=bb0
block bb0
  instr i1 other a @f.c:1:1
  instr i2 other b i1 @f.c:2:1
endblock
endproc
`
	m, err := ir.ReadText(strings.NewReader(src))
	if err != nil {
		t.Fatalf("ReadText: %v", err)
	}
	prog := pdg.NewProgram()
	g := prog.Graph("main")
	g.Node("i1")
	g.Node("i2")
	g.AddEdge("i1", "i2", pdg.KindData) // i1 is a reaching def for i2

	out := Render(m, prog, nil, nil, map[Kind]bool{KindDD: true})
	if !strings.Contains(out, "i2 other  // dd<-main:i1") {
		t.Fatalf("expected i2 to report i1 as its data dependence, got:\n%s", out)
	}
}

func TestRender_SliceMembership(t *testing.T) {
	src := `
proc main entry=bb0
block bb0
  instr i1 other a @f.c:1:1
endblock
endproc
`
	m, err := ir.ReadText(strings.NewReader(src))
	if err != nil {
		t.Fatalf("ReadText: %v", err)
	}
	prog := pdg.NewProgram()
	prog.Graph("main")
	retained := map[pdg.NodeID]bool{{Proc: "main", Value: "i1"}: true}

	out := Render(m, prog, retained, nil, map[Kind]bool{KindSlice: true})
	if !strings.Contains(out, "slice: kept") {
		t.Fatalf("expected i1 marked kept, got:\n%s", out)
	}
}
