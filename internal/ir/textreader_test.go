package ir

import (
	"strings"
	"testing"
)

const straightLineSrc = `
proc main entry=bb0
block bb0
  instr i1 other a @f.c:1:5
  instr i2 other b @f.c:2:5
  instr i3 call printf call=printf args=1 @f.c:3:5 b
endblock
endproc
`

func TestReadText_StraightLine(t *testing.T) {
	m, err := ReadText(strings.NewReader(straightLineSrc))
	if err != nil {
		t.Fatalf("ReadText: %v", err)
	}
	p := m.Proc("main")
	if p == nil {
		t.Fatal("expected procedure main")
	}
	if p.Entry == nil || p.Entry.ID != "bb0" {
		t.Fatalf("expected entry bb0, got %v", p.Entry)
	}
	if len(p.Blocks[0].Instrs) != 3 {
		t.Fatalf("expected 3 instructions, got %d", len(p.Blocks[0].Instrs))
	}
	call := p.Blocks[0].Instrs[2]
	if !call.IsCallSite() || call.Called.Direct != "printf" {
		t.Fatalf("expected direct call to printf, got %+v", call.Called)
	}
	if call.Loc == nil || call.Loc.Line != 3 {
		t.Fatalf("expected debug loc line 3, got %+v", call.Loc)
	}
}

func TestReadText_Successors(t *testing.T) {
	src := `
proc f entry=entry
block entry
  instr i1 br
  succs then else
endblock
block then
  instr i2 br
  succs join
endblock
block else
  instr i3 br
  succs join
endblock
block join
  instr i4 ret
endblock
endproc
`
	m, err := ReadText(strings.NewReader(src))
	if err != nil {
		t.Fatalf("ReadText: %v", err)
	}
	p := m.Proc("f")
	entry := p.Blocks[0]
	if len(entry.Succs) != 2 {
		t.Fatalf("expected 2 successors of entry, got %d", len(entry.Succs))
	}
	join := p.Blocks[3]
	if len(join.Preds) != 2 {
		t.Fatalf("expected 2 predecessors of join, got %d", len(join.Preds))
	}
}

func TestReadText_GlobalDirective(t *testing.T) {
	src := `
global counter
global table
proc main entry=bb0
block bb0
  instr i1 ret
endblock
endproc
`
	m, err := ReadText(strings.NewReader(src))
	if err != nil {
		t.Fatalf("ReadText: %v", err)
	}
	if len(m.Globals) != 2 || m.Globals[0] != "counter" || m.Globals[1] != "table" {
		t.Fatalf("expected globals [counter table], got %v", m.Globals)
	}
	if m.Counts().Globals != 2 {
		t.Fatalf("expected Counts().Globals == 2, got %d", m.Counts().Globals)
	}
}

func TestModule_Counts(t *testing.T) {
	m, err := ReadText(strings.NewReader(straightLineSrc))
	if err != nil {
		t.Fatalf("ReadText: %v", err)
	}
	c := m.Counts()
	if c.Functions != 1 || c.Blocks != 1 || c.Instructions != 3 {
		t.Fatalf("unexpected counts: %+v", c)
	}
}
