// Package stats renders the before/after statistics block:
// "Globals/Functions/Blocks/Instr.: G F B I", reporting these counts
// before CFG surgery/marking and again after sweep.
package stats

import (
	"fmt"

	"github.com/dgslice/slicer/internal/ir"
)

// Format renders one module's counts in the statistics line format.
func Format(c ir.Counts) string {
	return fmt.Sprintf("Globals/Functions/Blocks/Instr.: %d %d %d %d", c.Globals, c.Functions, c.Blocks, c.Instructions)
}

// Report pairs a before/after count, as printed once per driver run when
// --statistics is set.
type Report struct {
	Before, After ir.Counts
}

func (r Report) String() string {
	return fmt.Sprintf("before: %s\nafter:  %s", Format(r.Before), Format(r.After))
}
