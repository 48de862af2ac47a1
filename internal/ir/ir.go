// Package ir defines the intermediate-representation data model the
// slicer operates on: procedures, basic blocks, instructions and their
// debug locations. The front-end that produces these values from an
// actual compiled C/C++ program is an external collaborator (see
// textreader.go for a minimal stand-in used by tests and the driver);
// this package only owns the shapes, not how they are parsed.
package ir

import "sort"

// Opcode categorises an instruction enough to recognise the handful of
// shapes the slicer cares about; everything else is OpOther.
type Opcode int

const (
	OpOther Opcode = iota
	OpCall
	OpReturn
	OpLoad
	OpStore
	OpPhi
	OpBr
)

func (o Opcode) String() string {
	switch o {
	case OpCall:
		return "call"
	case OpReturn:
		return "ret"
	case OpLoad:
		return "load"
	case OpStore:
		return "store"
	case OpPhi:
		return "phi"
	case OpBr:
		return "br"
	default:
		return "other"
	}
}

// ValueID identifies any IR value (an instruction result, a parameter, a
// global) that a node in the PDG or a dependence edge can refer to.
type ValueID string

// DebugLoc is a source-level debug location attached to an instruction.
type DebugLoc struct {
	File string
	Line int
	Col  int
}

// CalledValue describes the target of a call-site instruction: either a
// direct procedure reference, or an indirect value whose points-to set
// must be queried to resolve possible callees.
type CalledValue struct {
	Direct   string // procedure name, "" if indirect
	Indirect ValueID
}

// Instruction is one opaque IR-level value of interest to the slicer.
type Instruction struct {
	ID       ValueID
	Op       Opcode
	Operands []ValueID
	Loc      *DebugLoc
	Block    *BasicBlock

	// Call-site-only fields.
	Called     *CalledValue
	ArgCount   int // for signature matching under a CompatPolicy
	NumResults int
}

func (i *Instruction) IsCallSite() bool { return i.Op == OpCall && i.Called != nil }

// BasicBlock is a non-empty ordered sequence of instructions with an
// implicit terminator (the last instruction). Successors/predecessors are
// derived and kept in sync by the builder.
type BasicBlock struct {
	ID     ValueID
	Proc   *Procedure
	Instrs []*Instruction
	Succs  []*BasicBlock
	Preds  []*BasicBlock
}

// Terminator returns the block's last instruction, or nil if empty.
func (b *BasicBlock) Terminator() *Instruction {
	if len(b.Instrs) == 0 {
		return nil
	}
	return b.Instrs[len(b.Instrs)-1]
}

// AddSucc links b -> s, keeping the reverse predecessor edge in sync.
func (b *BasicBlock) AddSucc(s *BasicBlock) {
	for _, existing := range b.Succs {
		if existing == s {
			return
		}
	}
	b.Succs = append(b.Succs, s)
	s.Preds = append(s.Preds, b)
}

// Procedure is a named, possibly-external unit of code.
type Procedure struct {
	Name        string
	Blocks      []*BasicBlock
	Entry       *BasicBlock
	Declaration bool // true if the body is absent (external)
	Params      []ValueID
	DeclLoc     *DebugLoc

	entryName string // used transiently by ReadText before blocks resolve
}

// AllInstructions returns every instruction in the procedure, block order
// then in-block order, for deterministic iteration.
func (p *Procedure) AllInstructions() []*Instruction {
	var out []*Instruction
	for _, b := range p.Blocks {
		out = append(out, b.Instrs...)
	}
	return out
}

// Module is a whole compiled program: every procedure (defined or merely
// declared) that the front-end's debug metadata named, plus the names of
// module-scope global variables (tracked only for the statistics
// block; globals otherwise play no role in the slicer's dependence model
// beyond being referenceable operands).
type Module struct {
	Procedures map[string]*Procedure
	Globals    []string
}

func NewModule() *Module {
	return &Module{Procedures: make(map[string]*Procedure)}
}

// Names returns procedure names in sorted order, so that downstream
// iteration is reproducible across runs regardless of map order.
func (m *Module) Names() []string {
	names := make([]string, 0, len(m.Procedures))
	for n := range m.Procedures {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (m *Module) Proc(name string) *Procedure { return m.Procedures[name] }

// Counts totals globals/functions/blocks/instructions for the
// statistics block the driver prints before and after slicing.
type Counts struct {
	Globals      int
	Functions    int
	Blocks       int
	Instructions int
}

func (m *Module) Counts() Counts {
	var c Counts
	c.Globals = len(m.Globals)
	for _, p := range m.Procedures {
		c.Functions++
		for _, b := range p.Blocks {
			c.Blocks++
			c.Instructions += len(b.Instrs)
		}
	}
	return c
}
