package icd

import (
	"strings"
	"testing"

	"github.com/dgslice/slicer/internal/callgraph"
	"github.com/dgslice/slicer/internal/ir"
	"github.com/dgslice/slicer/internal/pta"
)

func mustModule(t *testing.T, src string) *ir.Module {
	t.Helper()
	m, err := ir.ReadText(strings.NewReader(src))
	if err != nil {
		t.Fatalf("ReadText: %v", err)
	}
	return m
}

// A call to a declaration-only abnormal terminator (exit) makes its call
// site a noret point, and that noret point control-depends everything
// reachable from its block's successors.
func TestAnalyze_AbnormalTerminatorMarksNoret(t *testing.T) {
	src := `
proc exit decl
endproc
proc main entry=bb0
block bb0
  instr i1 br
  succs then join
endblock
block then
  instr i2 call call=exit @f.c:2:1
  instr i3 br
  succs join
endblock
block join
  instr i4 ret
endblock
endproc
`
	m := mustModule(t, src)
	oracle := pta.NewAddressTakenFallback(m)
	cg := callgraph.Eager(m, "main", oracle, callgraph.Loose)
	res := Analyze(m, cg, "main", DefaultAbnormalTerminators())

	pi := res.Procs["main"]
	if pi == nil {
		t.Fatal("expected ProcInfo for main")
	}
	if !pi.Noret["i2"] {
		t.Fatalf("expected i2 (call to exit) to be a noret point, got Noret=%v", pi.Noret)
	}
	if len(pi.BlockCD["join"]) == 0 {
		t.Fatalf("expected join block to be control-dependent on i2's noret, got %v", pi.BlockCD["join"])
	}
}

// A procedure calling itself recursively is conservatively treated as a
// noret point at the recursive call site.
func TestAnalyze_RecursionIsNoret(t *testing.T) {
	src := `
proc f entry=bb0
block bb0
  instr i1 call call=f @f.c:1:1
  instr i2 ret
endblock
endproc
`
	m := mustModule(t, src)
	oracle := pta.NewAddressTakenFallback(m)
	cg := callgraph.Eager(m, "f", oracle, callgraph.Loose)
	res := Analyze(m, cg, "f", DefaultAbnormalTerminators())

	pi := res.Procs["f"]
	if !pi.Noret["i1"] {
		t.Fatalf("expected recursive call i1 to be marked noret, got %v", pi.Noret)
	}
}

// A straight-line procedure with no abnormal terminators or recursion has
// an empty control-dependence relation everywhere.
func TestAnalyze_NoNoretMeansNoCD(t *testing.T) {
	src := `
proc main entry=bb0
block bb0
  instr i1 other a @f.c:1:1
  instr i2 ret
endblock
endproc
`
	m := mustModule(t, src)
	oracle := pta.NewAddressTakenFallback(m)
	cg := callgraph.Eager(m, "main", oracle, callgraph.Loose)
	res := Analyze(m, cg, "main", DefaultAbnormalTerminators())

	pi := res.Procs["main"]
	if len(pi.Noret) != 0 {
		t.Fatalf("expected no noret points, got %v", pi.Noret)
	}
	if len(res.InstrCD("main", "i2")) != 0 {
		t.Fatalf("expected empty instruction CD, got %v", res.InstrCD("main", "i2"))
	}
}
