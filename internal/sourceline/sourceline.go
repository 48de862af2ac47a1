// Package sourceline implements source-line recovery and brace closure:
// mapping retained IR instructions back to (file, line) pairs, then
// expanding the retained line set so every enclosing block's opening
// and closing brace is included.
//
// Rather than keeping brace-matching/nesting/line-dict state as
// file-scoped globals, a single SourceRecoveryContext value is threaded
// through every call — positions are recovered from source text, so
// both the context-passing shape and the five-flag lexer are built
// around that need directly.
package sourceline

import (
	"bufio"
	"fmt"
	"sort"
	"strings"

	"github.com/dgslice/slicer/internal/ir"
	"github.com/dgslice/slicer/internal/pdg"
)

// BracePair records one matched '{'...'}' pair by line number.
type BracePair struct {
	OpenLine, CloseLine int
}

// SourceRecoveryContext holds everything one recovery run needs for one
// file, explicitly threaded rather than kept in package globals.
type SourceRecoveryContext struct {
	File string
	// MatchingBraces[i] is the i-th brace pair encountered in file order.
	MatchingBraces map[int]BracePair
	// Nesting[line] = i, the innermost enclosing brace-pair index for
	// that source line ("i" keys into MatchingBraces).
	Nesting map[int]int
	Lines   []string // 1-indexed access via Lines[line-1]
}

// Lex tokenises src with a five-flag state machine: inLineComment,
// inBlockComment, inChar, inString, escape.
// Raw strings and trigraphs are out of scope (documented, not handled).
func Lex(file, src string) *SourceRecoveryContext {
	ctx := &SourceRecoveryContext{
		File:           file,
		MatchingBraces: map[int]BracePair{},
		Nesting:        map[int]int{},
		Lines:          splitLines(src),
	}

	var (
		inLineComment  bool
		inBlockComment bool
		inChar         bool
		inString       bool
		escape         bool
	)

	line := 1
	var openStack []int // stack of indices into pairIndex for unmatched '{'
	var pairIndex []struct{ open, close int }

	runes := []rune(src)
	for i := 0; i < len(runes); i++ {
		c := runes[i]

		if c == '\n' {
			if inLineComment {
				inLineComment = false
			}
			line++
			escape = false
			continue
		}

		if inLineComment {
			continue
		}
		if inBlockComment {
			if c == '*' && i+1 < len(runes) && runes[i+1] == '/' {
				inBlockComment = false
				i++
			}
			continue
		}
		if inChar {
			if escape {
				escape = false
			} else if c == '\\' {
				escape = true
			} else if c == '\'' {
				inChar = false
			}
			continue
		}
		if inString {
			if escape {
				escape = false
			} else if c == '\\' {
				escape = true
			} else if c == '"' {
				inString = false
			}
			continue
		}

		switch {
		case c == '/' && i+1 < len(runes) && runes[i+1] == '/':
			inLineComment = true
			i++
		case c == '/' && i+1 < len(runes) && runes[i+1] == '*':
			inBlockComment = true
			i++
		case c == '\'':
			inChar = true
		case c == '"':
			inString = true
		case c == '{':
			idx := len(pairIndex)
			pairIndex = append(pairIndex, struct{ open, close int }{open: line})
			openStack = append(openStack, idx)
		case c == '}':
			if len(openStack) > 0 {
				idx := openStack[len(openStack)-1]
				openStack = openStack[:len(openStack)-1]
				pairIndex[idx].close = line
				ctx.MatchingBraces[idx] = BracePair{OpenLine: pairIndex[idx].open, CloseLine: line}
			}
		}
	}

	// Fill ctx.Nesting: for every line, the innermost pair whose
	// [OpenLine, CloseLine] contains it. Computed from the final
	// MatchingBraces table rather than incrementally, since a line can be
	// revisited by nested opens/closes recorded out of nesting order.
	type span struct {
		idx               int
		openLine, closeLine int
	}
	var spans []span
	for idx, bp := range ctx.MatchingBraces {
		spans = append(spans, span{idx, bp.OpenLine, bp.CloseLine})
	}
	sort.Slice(spans, func(i, j int) bool {
		widthI := spans[i].closeLine - spans[i].openLine
		widthJ := spans[j].closeLine - spans[j].openLine
		return widthI < widthJ // innermost (narrowest) first so it wins ties
	})
	for ln := 1; ln <= len(ctx.Lines); ln++ {
		for _, s := range spans {
			if ln >= s.openLine && ln <= s.closeLine {
				ctx.Nesting[ln] = s.idx
				break
			}
		}
	}

	return ctx
}

func splitLines(src string) []string {
	sc := bufio.NewScanner(strings.NewReader(src))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<22)
	var lines []string
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines
}

// CloseBraces expands a retained line set to fixpoint: for every retained
// line L with an enclosing pair i = Nesting[L], add OpenLine_i and
// CloseLine_i. Terminates because each iteration is monotone and bounded
// by the file's line count.
func (ctx *SourceRecoveryContext) CloseBraces(retained map[int]bool) {
	for {
		added := false
		for ln := range snapshotKeys(retained) {
			idx, ok := ctx.Nesting[ln]
			if !ok {
				continue
			}
			bp := ctx.MatchingBraces[idx]
			if !retained[bp.OpenLine] {
				retained[bp.OpenLine] = true
				added = true
			}
			if !retained[bp.CloseLine] {
				retained[bp.CloseLine] = true
				added = true
			}
		}
		if !added {
			return
		}
	}
}

func snapshotKeys(m map[int]bool) map[int]bool {
	out := make(map[int]bool, len(m))
	for k := range m {
		out[k] = true
	}
	return out
}

// RecoverLines extracts (file, line) for every retained instruction, plus
// each retained procedure's declaration line, dropping instructions with
// no debug location silently. It does not
// yet apply brace closure; call CloseBraces per file afterward.
func RecoverLines(module *ir.Module, retained map[pdg.NodeID]bool) map[string]map[int]bool {
	out := map[string]map[int]bool{}
	add := func(file string, line int) {
		if out[file] == nil {
			out[file] = map[int]bool{}
		}
		out[file][line] = true
	}

	seenProc := map[string]bool{}
	for id := range retained {
		if seenProc[id.Proc] {
			continue
		}
		proc := module.Proc(id.Proc)
		if proc == nil {
			continue
		}
		seenProc[id.Proc] = true
		if proc.DeclLoc != nil {
			add(proc.DeclLoc.File, proc.DeclLoc.Line)
		}
	}

	for id := range retained {
		proc := module.Proc(id.Proc)
		if proc == nil {
			continue
		}
		for _, instr := range proc.AllInstructions() {
			if instr.ID != id.Value {
				continue
			}
			if instr.Loc == nil {
				continue // MissingDebugInfo: dropped silently, not a failure
			}
			add(instr.Loc.File, instr.Loc.Line)
		}
	}
	return out
}

// Manifest is the output of a recovery run: either full source text or
// the compact "file,line,line,..." form, one entry per file.
type Manifest struct {
	Files map[string][]int // file -> sorted retained lines (post brace-closure)
}

// BuildManifest recovers retained lines, then closes braces per file
// using each file's full source text (sources keyed by the same file
// names the IR's debug locations use).
func BuildManifest(module *ir.Module, retained map[pdg.NodeID]bool, sources map[string]string) (*Manifest, error) {
	byFile := RecoverLines(module, retained)
	m := &Manifest{Files: map[string][]int{}}
	for file, lines := range byFile {
		src, ok := sources[file]
		if !ok {
			// No source text available for brace closure; keep the raw
			// retained lines as-is rather than failing the whole run.
			m.Files[file] = sortedInts(lines)
			continue
		}
		ctx := Lex(file, src)
		ctx.CloseBraces(lines)
		m.Files[file] = sortedInts(lines)
	}
	return m, nil
}

func sortedInts(m map[int]bool) []int {
	out := make([]int, 0, len(m))
	for l := range m {
		out = append(out, l)
	}
	sort.Ints(out)
	return out
}

// RenderText renders the manifest as full retained source lines, file by
// file, sorted by file name for reproducible output.
func RenderText(m *Manifest, sources map[string]string) string {
	var sb strings.Builder
	var files []string
	for f := range m.Files {
		files = append(files, f)
	}
	sort.Strings(files)
	for _, f := range files {
		src := sources[f]
		lines := splitLines(src)
		fmt.Fprintf(&sb, "// %s\n", f)
		for _, ln := range m.Files[f] {
			if ln >= 1 && ln <= len(lines) {
				fmt.Fprintf(&sb, "%d: %s\n", ln, lines[ln-1])
			}
		}
	}
	return sb.String()
}

// RenderManifest renders the compact manifest form: one line per file,
// "file,line,line,line,...".
func RenderManifest(m *Manifest) string {
	var sb strings.Builder
	var files []string
	for f := range m.Files {
		files = append(files, f)
	}
	sort.Strings(files)
	for _, f := range files {
		sb.WriteString(f)
		for _, ln := range m.Files[f] {
			fmt.Fprintf(&sb, ",%d", ln)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
