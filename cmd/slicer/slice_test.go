package main

import (
	"strings"
	"testing"

	"github.com/dgslice/slicer/internal/ir"
	"github.com/dgslice/slicer/internal/pdg"
)

func mustModule(t *testing.T, src string) *ir.Module {
	t.Helper()
	m, err := ir.ReadText(strings.NewReader(src))
	if err != nil {
		t.Fatalf("ReadText: %v", err)
	}
	return m
}

const straightLineSrc = `
proc main entry=bb0
block bb0
  instr i1 other a @f.c:1:1
  instr i2 other b @f.c:2:1
  instr i3 ret
endblock
endproc
`

func TestResolveCriteria_FuncLineGrammar(t *testing.T) {
	m := mustModule(t, straightLineSrc)
	criteria, records, err := resolveCriteria(m, []string{"main:2"}, false)
	if err != nil {
		t.Fatalf("resolveCriteria: %v", err)
	}
	if len(criteria) != 1 || criteria[0].Value != "i2" {
		t.Fatalf("expected i2 resolved, got %v", criteria)
	}
	if len(records) != 1 || records[0].Line != 2 {
		t.Fatalf("expected one record at line 2, got %v", records)
	}
}

func TestResolveCriteria_FileHashGrammar(t *testing.T) {
	m := mustModule(t, straightLineSrc)
	criteria, _, err := resolveCriteria(m, []string{"f.c#1#1"}, false)
	if err != nil {
		t.Fatalf("resolveCriteria: %v", err)
	}
	if len(criteria) != 1 || criteria[0].Value != "i1" {
		t.Fatalf("expected i1 resolved, got %v", criteria)
	}
}

func TestResolveCriteria_CriterionCallGrammar(t *testing.T) {
	src := `
proc printf decl
endproc
proc main entry=bb0
block bb0
  instr i1 call call=printf args=1 @f.c:4:1 x
  instr i2 ret
endblock
endproc
`
	m := mustModule(t, src)
	criteria, _, err := resolveCriteria(m, []string{"criterionCall=printf"}, false)
	if err != nil {
		t.Fatalf("resolveCriteria: %v", err)
	}
	if len(criteria) != 1 || criteria[0].Value != "i1" {
		t.Fatalf("expected call site i1 resolved, got %v", criteria)
	}
}

func TestResolveCriteria_UnknownCallSymbolErrors(t *testing.T) {
	m := mustModule(t, straightLineSrc)
	if _, _, err := resolveCriteria(m, []string{"criterionCall=nosuchfunc"}, false); err == nil {
		t.Fatal("expected error for unresolvable criterionCall symbol")
	}
}

func TestResolveCriteria_MalformedSpecErrors(t *testing.T) {
	m := mustModule(t, straightLineSrc)
	if _, _, err := resolveCriteria(m, []string{"not-a-criterion"}, false); err == nil {
		t.Fatal("expected error for malformed criterion spec")
	}
}

func TestVerifySliced_DetectsMissingTerminator(t *testing.T) {
	m := mustModule(t, straightLineSrc)
	// Drop the block's only instructions to simulate a would-be-malformed slice.
	m.Proc("main").Blocks[0].Instrs = nil
	if err := verifySliced(m, map[pdg.NodeID]bool{}); err == nil {
		t.Fatal("expected verifySliced to reject a block with no terminator")
	}
}

func TestVerifySliced_PassesWellFormedModule(t *testing.T) {
	m := mustModule(t, straightLineSrc)
	if err := verifySliced(m, map[pdg.NodeID]bool{}); err != nil {
		t.Fatalf("expected well-formed module to verify, got %v", err)
	}
}

func TestAfterCounts_TotalsRetainedMembership(t *testing.T) {
	m := mustModule(t, straightLineSrc)
	retained := map[pdg.NodeID]bool{
		{Proc: "main", Value: "i1"}: true,
		{Proc: "main", Value: "i2"}: true,
	}
	c := afterCounts(m, retained)
	if c.Functions != 1 {
		t.Fatalf("expected 1 retained function, got %d", c.Functions)
	}
	if c.Instructions != 2 {
		t.Fatalf("expected 2 retained instructions, got %d", c.Instructions)
	}
	if c.Blocks != 1 {
		t.Fatalf("expected 1 retained block, got %d", c.Blocks)
	}
}

func TestExitCodeOf(t *testing.T) {
	if got := exitCodeOf(configErr("bad config")); got != 1 {
		t.Fatalf("expected configErr to map to exit 1, got %d", got)
	}
	if got := exitCodeOf(analysisErr("bad analysis")); got != 2 {
		t.Fatalf("expected analysisErr to map to exit 2, got %d", got)
	}
}
