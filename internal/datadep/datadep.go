// Package datadep defines the data-dependence query surface the PDG
// builder consumes. The real analysis (reaching definitions over
// memory/SSA values) is an external collaborator ; this
// package specifies the interface plus a conservative fallback.
package datadep

import "github.com/dgslice/slicer/internal/ir"

// Provider answers "which definitions reach this use" queries.
type Provider interface {
	ReachingDefs(use ir.ValueID) []ir.ValueID
}

// ProviderFunc adapts a plain function to the Provider interface.
type ProviderFunc func(use ir.ValueID) []ir.ValueID

func (f ProviderFunc) ReachingDefs(use ir.ValueID) []ir.ValueID { return f(use) }

// DefUseFallback is a deliberately coarse same-procedure provider used
// when no external data-dependence service is wired: for every operand
// of a use instruction, it returns the instruction whose ID equals the
// operand name; block order and predecessor blocks are not consulted.
// Real pointer/alias-aware reaching
// definitions are out of scope for this fallback; it exists only so the
// engine is runnable without an external analysis attached.
type DefUseFallback struct {
	module *ir.Module
	// defSite maps a value ID to the instruction that produced it.
	defSite map[ir.ValueID]*ir.Instruction
}

func NewDefUseFallback(module *ir.Module) *DefUseFallback {
	f := &DefUseFallback{module: module, defSite: map[ir.ValueID]*ir.Instruction{}}
	for _, name := range module.Names() {
		for _, instr := range module.Proc(name).AllInstructions() {
			f.defSite[instr.ID] = instr
		}
	}
	return f
}

func (f *DefUseFallback) ReachingDefs(use ir.ValueID) []ir.ValueID {
	instr, ok := f.defSite[use]
	if !ok {
		return nil
	}
	var out []ir.ValueID
	for _, operand := range instr.Operands {
		if def, ok := f.defSite[operand]; ok {
			out = append(out, def.ID)
		}
	}
	return out
}
