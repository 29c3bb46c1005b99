package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// LambertProjection is the MAP_PROJ_CHAR value the base data must declare.
const LambertProjection = "Lambert Conformal"

// NativeGridSpec is an immutable description of the source LCC grid, read
// from a base file's global attributes. Two base files with equal specs
// share cell geometry and therefore regrid weights.
type NativeGridSpec struct {
	Projection string // MAP_PROJ_CHAR

	TrueLat1   float64 // TRUELAT1, first standard parallel
	TrueLat2   float64 // TRUELAT2, second standard parallel
	MoadCenLat float64 // MOAD_CEN_LAT, reference latitude
	StandLon   float64 // STAND_LON, reference longitude
	CenLat     float64 // CEN_LAT, domain center latitude
	CenLon     float64 // CEN_LON, domain center longitude

	DX, DY float64 // grid spacing, meters
	NX, NY int     // cell counts, west-east and south-north
}

// Validate checks the spec for values the grid math cannot handle.
func (g NativeGridSpec) Validate() error {
	if g.Projection != LambertProjection {
		return &UnsupportedProjectionError{Value: g.Projection}
	}
	if g.NX < 1 || g.NY < 1 {
		return fmt.Errorf("malformed grid spec: nx=%d ny=%d", g.NX, g.NY)
	}
	if g.DX <= 0 || g.DY <= 0 {
		return fmt.Errorf("malformed grid spec: dx=%g dy=%g", g.DX, g.DY)
	}
	return nil
}

// Signature returns a deterministic identifier for the grid geometry.
// Equal signatures mean identical cell polygons, which is what makes cached
// regrid weights reusable across files and process runs.
func (g NativeGridSpec) Signature() string {
	return fmt.Sprintf("lcc|%g|%g|%g|%g|%g|%g|%g|%g|%d|%d",
		g.TrueLat1, g.TrueLat2, g.MoadCenLat, g.StandLon,
		g.CenLat, g.CenLon, g.DX, g.DY, g.NX, g.NY)
}

// LatLonGridSpec is an immutable description of the uniform geographic
// output grid. Ranges are half-open over cell centers: the first center sits
// at the range minimum and centers step by the spacing up to, but not
// including, the maximum.
type LatLonGridSpec struct {
	LatMin, LatMax float64
	LonMin, LonMax float64
	LatSpacing     float64
	LonSpacing     float64
}

// Validate checks the spec for values grid construction cannot handle.
func (g LatLonGridSpec) Validate() error {
	if g.LatSpacing <= 0 || g.LonSpacing <= 0 {
		return fmt.Errorf("malformed output grid spec: lat_spacing=%g lon_spacing=%g", g.LatSpacing, g.LonSpacing)
	}
	if g.LatMax <= g.LatMin || g.LonMax <= g.LonMin {
		return fmt.Errorf("malformed output grid spec: lat range [%g,%g) lon range [%g,%g)",
			g.LatMin, g.LatMax, g.LonMin, g.LonMax)
	}
	return nil
}

// Signature returns a deterministic identifier for the output grid geometry.
func (g LatLonGridSpec) Signature() string {
	return fmt.Sprintf("latlon|%g|%g|%g|%g|%g|%g",
		g.LatMin, g.LatMax, g.LonMin, g.LonMax, g.LatSpacing, g.LonSpacing)
}

// WeightKey identifies one computed weight set: a (input grid, output grid,
// method) triple hashed to a short content address usable as a map key and
// file name. The same construction as any other deterministic ID in this
// codebase: hash the identifying fields, keep a short prefix.
func WeightKey(in NativeGridSpec, out LatLonGridSpec, method string) string {
	input := in.Signature() + "|" + out.Signature() + "|" + method
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:8])
}
