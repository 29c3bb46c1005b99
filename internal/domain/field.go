package domain

import (
	"fmt"

	"github.com/ctessum/sparse"
)

// Field is one regriddable variable: a dense array whose trailing two axes
// are spatial (south_north, west_east on input; lat, lon on output) and
// whose leading axes, if any, are non-spatial (utc_hour, zlevel). Regridding
// treats every non-spatial slice independently.
type Field struct {
	Name  string
	Units string
	Dims  []string // dimension names, same order as Data.Shape
	Data  *sparse.DenseArray
}

// SpatialShape returns the trailing (rows, cols) axes of the field.
func (f *Field) SpatialShape() (ny, nx int, err error) {
	if f.Data == nil || len(f.Data.Shape) < 2 {
		return 0, 0, fmt.Errorf("field %s: need at least 2 dimensions, have %v", f.Name, f.Data.Shape)
	}
	n := len(f.Data.Shape)
	return f.Data.Shape[n-2], f.Data.Shape[n-1], nil
}

// SliceCount returns the number of independent non-spatial slices.
func (f *Field) SliceCount() int {
	n := 1
	for _, d := range f.Data.Shape[:len(f.Data.Shape)-2] {
		n *= d
	}
	return n
}

// Dataset is a set of fields sharing coordinates, plus dataset metadata.
// Field order is preserved from the source file so outputs write
// deterministically.
type Dataset struct {
	Fields []*Field
	Attrs  Attrs

	// UTCHours are the integer hour-of-day coordinates present (0..23 for a
	// merged full day, a subset for a half-day file).
	UTCHours []int
	// ZLevels is the vertical dimension length; 0 if the vertical axis has
	// been summed away.
	ZLevels int

	// Lat and Lon are cell-center coordinates: 2-D (ny, nx) meshes on the
	// native grid, 1-D axes on the regridded grid (Lat2D/Lon2D nil then).
	Lat2D, Lon2D [][]float64
	Lat, Lon     []float64

	Grid NativeGridSpec // zero value on regridded datasets
}

// Field returns the named field, or nil if absent.
func (d *Dataset) Field(name string) *Field {
	for _, f := range d.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}
