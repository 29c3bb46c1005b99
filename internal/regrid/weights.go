// Package regrid implements conservative (area-weighted) remapping from a
// native Lambert Conformal Conic grid onto a uniform lat/lon grid, with a
// content-addressed cache of computed weight sets.
package regrid

// MethodConservative is the only remap method this package implements:
// each output cell's value is the area-weighted average of the input cells
// overlapping it, which preserves the integral of extensive quantities.
const MethodConservative = "conservative"

// WeightEntry is one input cell's contribution to an output cell.
type WeightEntry struct {
	Index  int     // input cell, row-major over (ny, nx)
	Weight float64 // overlap area / output cell area
}

// Weights is the sparse output-to-input overlap mapping for one grid pair.
// Entries is indexed by output cell (row-major); weights for one output
// cell sum to at most 1, with equality when valid input cells cover it
// completely. A nil entry list means the output cell has no input coverage
// and regrids to NaN.
//
// A weight set is computed once per (input grid, output grid, method) key,
// owned by its WeightStore entry, and shared read-only by every regrid
// application with that key.
type Weights struct {
	InNY, InNX   int
	OutNY, OutNX int
	Method       string
	Entries      [][]WeightEntry
}

// apply computes one output cell row-major slice from one input slice.
// in and out are single spatial slices of length InNY*InNX and OutNY*OutNX.
func (w *Weights) apply(in, out []float64) {
	for o, entries := range w.Entries {
		if len(entries) == 0 {
			out[o] = nan
			continue
		}
		var v float64
		for _, e := range entries {
			v += e.Weight * in[e.Index]
		}
		out[o] = v
	}
}
