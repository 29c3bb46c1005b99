// Package grid resolves map projections and builds cell geometry for the
// native (Lambert Conformal Conic) input grid and the uniform lat/lon
// output grid.
package grid

import (
	"fmt"

	"github.com/ctessum/geom/proj"

	"github.com/couchcryptid/emissions-regrid/internal/domain"
)

// earthRadiusM is the spherical earth radius the base data assumes (the WRF
// convention: a perfect sphere, no flattening).
const earthRadiusM = 6370000

// longlatProj is the geographic spatial reference the output grid lives in.
const longlatProj = "+proj=longlat"

// Projection pairs the forward and inverse transforms between geographic
// coordinates and a native grid's projected plane.
type Projection struct {
	// Forward maps (lon, lat) degrees to (x, y) plane meters.
	Forward proj.Transformer
	// Inverse maps (x, y) plane meters to (lon, lat) degrees.
	Inverse proj.Transformer
}

// NewProjection builds the coordinate transforms for a native grid. The two
// standard parallels come from TRUELAT1/TRUELAT2 and the cone's reference
// point from (MOAD_CEN_LAT, STAND_LON). Any declared projection family
// other than Lambert Conformal is rejected, not defaulted.
func NewProjection(spec domain.NativeGridSpec) (*Projection, error) {
	if spec.Projection != domain.LambertProjection {
		return nil, &domain.UnsupportedProjectionError{Value: spec.Projection}
	}

	lccSR, err := proj.Parse(lccProj4(spec))
	if err != nil {
		return nil, fmt.Errorf("parse lcc projection: %w", err)
	}
	llSR, err := proj.Parse(longlatProj)
	if err != nil {
		return nil, fmt.Errorf("parse longlat projection: %w", err)
	}

	forward, err := llSR.NewTransform(lccSR)
	if err != nil {
		return nil, fmt.Errorf("create forward transform: %w", err)
	}
	inverse, err := lccSR.NewTransform(llSR)
	if err != nil {
		return nil, fmt.Errorf("create inverse transform: %w", err)
	}

	return &Projection{Forward: forward, Inverse: inverse}, nil
}

// lccProj4 renders the proj4 definition of the native grid's projection.
func lccProj4(spec domain.NativeGridSpec) string {
	return fmt.Sprintf(
		"+proj=lcc +lat_1=%g +lat_2=%g +lat_0=%g +lon_0=%g +x_0=0 +y_0=0 +a=%d +b=%d +units=m +no_defs",
		spec.TrueLat1, spec.TrueLat2, spec.MoadCenLat, spec.StandLon,
		earthRadiusM, earthRadiusM)
}
