package grid

import (
	"fmt"

	"github.com/couchcryptid/emissions-regrid/internal/domain"
)

// NativeGrid holds the derived cell geometry of a source LCC grid: the
// (ny+1, nx+1) cell-boundary mesh in both the projected plane and geographic
// coordinates. Cell centers are not derived here; they come straight from
// the source data's XLAT/XLONG variables so projection error is not
// compounded.
type NativeGrid struct {
	Spec domain.NativeGridSpec

	// XB, YB are cell-boundary node coordinates in plane meters,
	// indexed [row][col] with row 0 at the grid's south edge.
	XB, YB [][]float64

	// LonB, LatB are the same boundary nodes in geographic degrees.
	LonB, LatB [][]float64
}

// BuildNativeGrid derives the boundary mesh for a native grid. The plane
// coordinates of the domain center come from the forward transform of
// (CEN_LON, CEN_LAT); the bottom-left cell center is center-(n-1)/2*spacing
// on each axis, and boundary nodes sit half a cell outward from there.
func BuildNativeGrid(spec domain.NativeGridSpec, p *Projection) (*NativeGrid, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	cx, cy, err := p.Forward(spec.CenLon, spec.CenLat)
	if err != nil {
		return nil, fmt.Errorf("transform domain center (%g, %g): %w", spec.CenLon, spec.CenLat, err)
	}

	// Bottom-left cell center in the plane.
	x0 := -float64(spec.NX-1)/2*spec.DX + cx
	y0 := -float64(spec.NY-1)/2*spec.DY + cy

	g := &NativeGrid{
		Spec: spec,
		XB:   make([][]float64, spec.NY+1),
		YB:   make([][]float64, spec.NY+1),
		LonB: make([][]float64, spec.NY+1),
		LatB: make([][]float64, spec.NY+1),
	}
	for j := 0; j <= spec.NY; j++ {
		g.XB[j] = make([]float64, spec.NX+1)
		g.YB[j] = make([]float64, spec.NX+1)
		g.LonB[j] = make([]float64, spec.NX+1)
		g.LatB[j] = make([]float64, spec.NX+1)
		for i := 0; i <= spec.NX; i++ {
			x := x0 + (float64(i)-0.5)*spec.DX
			y := y0 + (float64(j)-0.5)*spec.DY
			g.XB[j][i] = x
			g.YB[j][i] = y
			lon, lat, err := p.Inverse(x, y)
			if err != nil {
				return nil, fmt.Errorf("inverse transform boundary node (%d, %d): %w", j, i, err)
			}
			g.LonB[j][i] = lon
			g.LatB[j][i] = lat
		}
	}
	return g, nil
}

// CenterMeshes derives the (ny, nx) cell-center coordinate meshes in
// geographic degrees. Source files carry these as XLAT/XLONG; this exists
// for generating synthetic files that round-trip through the same math.
func CenterMeshes(spec domain.NativeGridSpec, p *Projection) (lat, lon [][]float64, err error) {
	if err := spec.Validate(); err != nil {
		return nil, nil, err
	}
	cx, cy, err := p.Forward(spec.CenLon, spec.CenLat)
	if err != nil {
		return nil, nil, fmt.Errorf("transform domain center (%g, %g): %w", spec.CenLon, spec.CenLat, err)
	}
	x0 := -float64(spec.NX-1)/2*spec.DX + cx
	y0 := -float64(spec.NY-1)/2*spec.DY + cy

	lat = make([][]float64, spec.NY)
	lon = make([][]float64, spec.NY)
	for j := 0; j < spec.NY; j++ {
		lat[j] = make([]float64, spec.NX)
		lon[j] = make([]float64, spec.NX)
		for i := 0; i < spec.NX; i++ {
			ln, lt, err := p.Inverse(x0+float64(i)*spec.DX, y0+float64(j)*spec.DY)
			if err != nil {
				return nil, nil, fmt.Errorf("inverse transform center (%d, %d): %w", j, i, err)
			}
			lon[j][i] = ln
			lat[j][i] = lt
		}
	}
	return lat, lon, nil
}
