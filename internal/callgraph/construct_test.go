package callgraph

import (
	"strings"
	"testing"

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

const directCallSrc = `
proc g entry=bb0
block bb0
  instr i1 ret
endblock
endproc
proc main entry=bb0
block bb0
  instr i1 call call=g @f.c:1:1
  instr i2 ret
endblock
endproc
`

func TestEager_DirectCallEdgeIsSymmetric(t *testing.T) {
	m := mustModule(t, directCallSrc)
	cg := Eager(m, "main", nil, Loose)

	if !cg.Calls("main", "g") {
		t.Fatal("expected main -> g edge")
	}
	callees := cg.Callees("main")
	if len(callees) != 1 || callees[0] != "g" {
		t.Fatalf("expected [g], got %v", callees)
	}
	callers := cg.Callers("g")
	if len(callers) != 1 || callers[0] != "main" {
		t.Fatalf("expected reverse edge g<-main, got %v", callers)
	}
}

func TestLazy_ResolvesOnlyOnQuery(t *testing.T) {
	m := mustModule(t, directCallSrc)
	lg := Lazy(m, nil, Loose)
	if lg.built {
		t.Fatal("expected lazyGraph to start unbuilt")
	}
	if !lg.Calls("main", "g") {
		t.Fatal("expected main -> g edge after query forces Build")
	}
	if !lg.built {
		t.Fatal("expected Calls to force Build")
	}
}

func TestImported_AdaptsEdgesAndReverseIndex(t *testing.T) {
	g := Imported(map[string][]string{
		"main": {"a", "b"},
		"a":    {"b"},
	})
	if !g.Calls("main", "a") || !g.Calls("main", "b") || !g.Calls("a", "b") {
		t.Fatalf("missing expected edges in imported graph")
	}
	callers := g.Callers("b")
	if len(callers) != 2 || callers[0] != "a" || callers[1] != "main" {
		t.Fatalf("expected sorted callers [a main], got %v", callers)
	}
}

// An indirect call resolves via the supplied oracle, filtered by
// call-compatibility under Strict.
func TestEager_IndirectCallResolvesViaOracle(t *testing.T) {
	src := `
proc g entry=bb0
block bb0
  instr i1 ret
endblock
endproc
proc main entry=bb0
block bb0
  instr i1 call call=*fp args=0 @f.c:1:1
  instr i2 ret
endblock
endproc
`
	m := mustModule(t, src)
	oracle := pta.OracleFunc(func(v ir.ValueID) []pta.Target {
		return []pta.Target{{Proc: "g"}}
	})
	cg := Eager(m, "main", oracle, Strict)
	if !cg.Calls("main", "g") {
		t.Fatalf("expected main -> g via indirect resolution, callees=%v", cg.Callees("main"))
	}
}
