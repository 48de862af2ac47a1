package ir

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ReadText parses the minimal line-oriented textual IR format used by the
// driver and the test suite. It stands in for the real front-end (an
// external collaborator ) that would lower a compiled
// C/C++ program plus its debug metadata into the ir.Module shape; it is
// deliberately small and not part of the slicing core.
//
// Grammar (one directive per line, blank lines and '#' comments ignored):
//
//	global NAME
//	proc NAME [decl] [entry=BLOCK]
//	param VALUEID
//	declloc FILE LINE COL
//	block BLOCK
//	succs BLOCK...
//	instr ID OPCODE [call=CALLEE|call=*VALUE] [args=N] [results=N] [@FILE:LINE:COL] OPERAND...
//	endblock
//	endproc
func ReadText(r io.Reader) (*Module, error) {
	m := NewModule()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var cur *Procedure
	var curBlock *BasicBlock
	blocksByName := map[string]*BasicBlock{}
	succsPending := map[*BasicBlock][]string{}
	lineNo := 0

	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "global":
			if len(fields) < 2 {
				return nil, fmt.Errorf("ir: line %d: global needs a name", lineNo)
			}
			m.Globals = append(m.Globals, fields[1])
		case "proc":
			if len(fields) < 2 {
				return nil, fmt.Errorf("ir: line %d: proc needs a name", lineNo)
			}
			name := fields[1]
			p := &Procedure{Name: name}
			for _, f := range fields[2:] {
				switch {
				case f == "decl":
					p.Declaration = true
				case strings.HasPrefix(f, "entry="):
					// resolved once all blocks are known, see below.
				}
			}
			m.Procedures[name] = p
			cur = p
			curBlock = nil
			blocksByName = map[string]*BasicBlock{}
			succsPending = map[*BasicBlock][]string{}
			cur.entryName = entryNameOf(fields[2:])
		case "param":
			if cur == nil || len(fields) < 2 {
				return nil, fmt.Errorf("ir: line %d: param outside proc", lineNo)
			}
			cur.Params = append(cur.Params, ValueID(fields[1]))
		case "declloc":
			if cur == nil || len(fields) < 4 {
				return nil, fmt.Errorf("ir: line %d: malformed declloc", lineNo)
			}
			line, _ := strconv.Atoi(fields[2])
			col, _ := strconv.Atoi(fields[3])
			cur.DeclLoc = &DebugLoc{File: fields[1], Line: line, Col: col}
		case "block":
			if cur == nil || len(fields) < 2 {
				return nil, fmt.Errorf("ir: line %d: block outside proc", lineNo)
			}
			b := &BasicBlock{ID: ValueID(fields[1]), Proc: cur}
			cur.Blocks = append(cur.Blocks, b)
			blocksByName[fields[1]] = b
			curBlock = b
		case "succs":
			if curBlock == nil {
				return nil, fmt.Errorf("ir: line %d: succs outside block", lineNo)
			}
			succsPending[curBlock] = append(succsPending[curBlock], fields[1:]...)
		case "instr":
			instr, err := parseInstr(fields[1:], lineNo)
			if err != nil {
				return nil, err
			}
			if curBlock == nil {
				return nil, fmt.Errorf("ir: line %d: instr outside block", lineNo)
			}
			instr.Block = curBlock
			curBlock.Instrs = append(curBlock.Instrs, instr)
		case "endblock":
			curBlock = nil
		case "endproc":
			for b, names := range succsPending {
				for _, n := range names {
					succ, ok := blocksByName[n]
					if !ok {
						return nil, fmt.Errorf("ir: proc %s: unknown successor block %q", cur.Name, n)
					}
					b.AddSucc(succ)
				}
			}
			if cur.entryName != "" {
				cur.Entry = blocksByName[cur.entryName]
			} else if len(cur.Blocks) > 0 {
				cur.Entry = cur.Blocks[0]
			}
			cur = nil
			curBlock = nil
		default:
			return nil, fmt.Errorf("ir: line %d: unknown directive %q", lineNo, fields[0])
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("ir: scan: %w", err)
	}
	return m, nil
}

func entryNameOf(rest []string) string {
	for _, f := range rest {
		if strings.HasPrefix(f, "entry=") {
			return strings.TrimPrefix(f, "entry=")
		}
	}
	return ""
}

func parseInstr(fields []string, lineNo int) (*Instruction, error) {
	if len(fields) < 2 {
		return nil, fmt.Errorf("ir: line %d: instr needs id and opcode", lineNo)
	}
	instr := &Instruction{ID: ValueID(fields[0]), Op: parseOpcode(fields[1])}
	for _, f := range fields[2:] {
		switch {
		case strings.HasPrefix(f, "@"):
			loc, err := parseLoc(f[1:])
			if err != nil {
				return nil, fmt.Errorf("ir: line %d: %w", lineNo, err)
			}
			instr.Loc = loc
		case strings.HasPrefix(f, "call="):
			target := strings.TrimPrefix(f, "call=")
			if strings.HasPrefix(target, "*") {
				instr.Called = &CalledValue{Indirect: ValueID(strings.TrimPrefix(target, "*"))}
			} else {
				instr.Called = &CalledValue{Direct: target}
			}
		case strings.HasPrefix(f, "args="):
			n, _ := strconv.Atoi(strings.TrimPrefix(f, "args="))
			instr.ArgCount = n
		case strings.HasPrefix(f, "results="):
			n, _ := strconv.Atoi(strings.TrimPrefix(f, "results="))
			instr.NumResults = n
		default:
			instr.Operands = append(instr.Operands, ValueID(f))
		}
	}
	return instr, nil
}

func parseOpcode(s string) Opcode {
	switch s {
	case "call":
		return OpCall
	case "ret":
		return OpReturn
	case "load":
		return OpLoad
	case "store":
		return OpStore
	case "phi":
		return OpPhi
	case "br":
		return OpBr
	default:
		return OpOther
	}
}

func parseLoc(s string) (*DebugLoc, error) {
	// file:line:col — the file portion may itself contain ':' on some
	// platforms, so split from the right.
	lastColon := strings.LastIndex(s, ":")
	if lastColon < 0 {
		return nil, fmt.Errorf("malformed debug loc %q", s)
	}
	midColon := strings.LastIndex(s[:lastColon], ":")
	if midColon < 0 {
		return nil, fmt.Errorf("malformed debug loc %q", s)
	}
	file := s[:midColon]
	line, err := strconv.Atoi(s[midColon+1 : lastColon])
	if err != nil {
		return nil, fmt.Errorf("malformed debug loc line %q: %w", s, err)
	}
	col, err := strconv.Atoi(s[lastColon+1:])
	if err != nil {
		return nil, fmt.Errorf("malformed debug loc col %q: %w", s, err)
	}
	return &DebugLoc{File: file, Line: line, Col: col}, nil
}
