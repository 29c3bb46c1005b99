package grid

import (
	"fmt"
	"math"

	"github.com/couchcryptid/emissions-regrid/internal/domain"
)

// LatLonGrid holds cell centers and boundaries for the uniform geographic
// output grid. Boundary arrays are one longer than center arrays and
// bracket the centers symmetrically: each center is the midpoint of its two
// boundaries.
type LatLonGrid struct {
	Spec domain.LatLonGridSpec

	Lat, Lon   []float64 // cell centers
	LatB, LonB []float64 // cell boundaries, len(centers)+1
}

// BuildLatLonGrid constructs the output grid from its spec: centers step
// over the half-open [min, max) range, boundaries over the same range
// widened by half a spacing on each end so both edges are included.
func BuildLatLonGrid(spec domain.LatLonGridSpec) (*LatLonGrid, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	g := &LatLonGrid{
		Spec: spec,
		Lat:  steppedRange(spec.LatMin, spec.LatMax, spec.LatSpacing),
		Lon:  steppedRange(spec.LonMin, spec.LonMax, spec.LonSpacing),
		LatB: steppedRange(spec.LatMin-spec.LatSpacing/2, spec.LatMax+spec.LatSpacing/2, spec.LatSpacing),
		LonB: steppedRange(spec.LonMin-spec.LonSpacing/2, spec.LonMax+spec.LonSpacing/2, spec.LonSpacing),
	}
	// Holds for any range/spacing combination, including truncated ones.
	if len(g.LatB) != len(g.Lat)+1 || len(g.LonB) != len(g.Lon)+1 {
		return nil, fmt.Errorf("output grid boundary construction: %d/%d boundaries for %d/%d centers",
			len(g.LatB), len(g.LonB), len(g.Lat), len(g.Lon))
	}
	return g, nil
}

// steppedRange returns start, start+step, ... over the half-open interval
// [start, stop). When step does not evenly divide the span, the final
// interval is truncated: the last value is the largest start+k*step below
// stop. That truncation mirrors the upstream tooling's half-open range
// construction; choose ranges that divide evenly to avoid it.
func steppedRange(start, stop, step float64) []float64 {
	const tol = 1e-9
	n := int(math.Ceil((stop-start)/step - tol))
	if n < 0 {
		n = 0
	}
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = start + float64(i)*step
	}
	return vals
}
