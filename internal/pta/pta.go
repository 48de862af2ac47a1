// Package pta defines the points-to query surface the slicer consumes.
// The real pointer analysis is an external collaborator ; this
// package only specifies the interface plus the conservative
// address-taken fallback used when no analysis session is available
// .
package pta

import "github.com/dgslice/slicer/internal/ir"

// Target is one element of a points-to set: a possible procedure (or
// other memory location, represented only by name) plus an offset.
type Target struct {
	Proc   string
	Offset int
}

// Oracle answers points-to queries for a single value.
type Oracle interface {
	PointsTo(v ir.ValueID) []Target
}

// OracleFunc adapts a plain function to the Oracle interface.
type OracleFunc func(v ir.ValueID) []Target

func (f OracleFunc) PointsTo(v ir.ValueID) []Target { return f(v) }

// AddressTakenFallback builds an Oracle that over-approximates: every call
// through an indirect value resolves to every defined procedure in the
// module whose address escapes via a non-call use. It implements an
// "address-taken filter": a procedure referenced only as the direct
// target of a call is not address-taken; a use in any other position
// (stored, passed as data, compared, returned) counts, and unknown/opaque
// uses are conservatively counted as well.
type AddressTakenFallback struct {
	module *ir.Module
	taken  map[string]bool
}

// NewAddressTakenFallback scans module once and caches which procedures
// are address-taken; every indirect PointsTo query afterwards returns the
// same conservative set, filtered by call-compatibility by the caller.
func NewAddressTakenFallback(module *ir.Module) *AddressTakenFallback {
	f := &AddressTakenFallback{module: module, taken: map[string]bool{}}
	f.scan()
	return f
}

func (f *AddressTakenFallback) scan() {
	for _, name := range f.module.Names() {
		proc := f.module.Proc(name)
		for _, instr := range proc.AllInstructions() {
			for i, operand := range instr.Operands {
				if !isProcRef(operand, f.module) {
					continue
				}
				// A call's own called-value slot referencing a procedure
				// directly does not count; every other operand position
				// (including a call's argument list) does.
				if instr.IsCallSite() && instr.Called.Direct == string(operand) && i == 0 {
					continue
				}
				f.taken[string(operand)] = true
			}
		}
	}
}

func isProcRef(v ir.ValueID, m *ir.Module) bool {
	_, ok := m.Procedures[string(v)]
	return ok
}

// PointsTo returns every address-taken procedure in the module. Callers
// are expected to additionally filter by call-compatibility (argument
// count / return type) against the call-site in question — this oracle
// is deliberately blind to call-site shape, matching the over-approximate
// nature of the fallback described in 
func (f *AddressTakenFallback) PointsTo(v ir.ValueID) []Target {
	var out []Target
	for _, name := range f.module.Names() {
		if f.taken[name] {
			out = append(out, Target{Proc: name})
		}
	}
	return out
}
