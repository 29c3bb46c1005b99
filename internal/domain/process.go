package domain

import (
	"fmt"

	"github.com/ctessum/sparse"
)

// SumZLevels collapses the vertical axis of every field that has one,
// summing emissions across levels so the result is a column total. Fields
// without a vertical axis pass through unchanged. The dataset is modified
// in place.
func SumZLevels(ds *Dataset) error {
	for _, f := range ds.Fields {
		axis := -1
		for i, d := range f.Dims {
			if d == "zlevel" {
				axis = i
				break
			}
		}
		if axis < 0 {
			continue
		}
		summed, err := sumAxis(f.Data, axis)
		if err != nil {
			return fmt.Errorf("sum zlevel for %s: %w", f.Name, err)
		}
		f.Data = summed
		f.Dims = append(f.Dims[:axis:axis], f.Dims[axis+1:]...)
	}
	ds.ZLevels = 0
	return nil
}

func sumAxis(a *sparse.DenseArray, axis int) (*sparse.DenseArray, error) {
	if axis < 0 || axis >= len(a.Shape) {
		return nil, fmt.Errorf("axis %d out of range for shape %v", axis, a.Shape)
	}
	outShape := make([]int, 0, len(a.Shape)-1)
	outShape = append(outShape, a.Shape[:axis]...)
	outShape = append(outShape, a.Shape[axis+1:]...)
	out := sparse.ZerosDense(outShape...)

	// Walk the flat input once; inner is the product of the dims after the
	// axis, so flat index i maps to output index by removing the axis digit.
	inner := 1
	for _, n := range a.Shape[axis+1:] {
		inner *= n
	}
	block := inner * a.Shape[axis]
	for i, v := range a.Elements {
		o := (i/block)*inner + i%inner
		out.Elements[o] += v
	}
	return out, nil
}

// Extent is an inclusive geographic bounding box.
type Extent struct {
	LatMin, LatMax float64
	LonMin, LonMax float64
}

// Validate checks the extent is non-degenerate.
func (e Extent) Validate() error {
	if e.LatMax <= e.LatMin || e.LonMax <= e.LonMin {
		return fmt.Errorf("malformed extent: lat [%g,%g] lon [%g,%g]", e.LatMin, e.LatMax, e.LonMin, e.LonMax)
	}
	return nil
}

// SliceExtent trims a regridded dataset to the cells whose centers fall
// inside [latMin, latMax] x [lonMin, lonMax], inclusive. The dataset must
// carry 1-D lat and lon coordinates with fields whose trailing axes are
// (lat, lon).
func SliceExtent(ds *Dataset, latMin, latMax, lonMin, lonMax float64) error {
	li0, li1 := boundsIndices(ds.Lat, latMin, latMax)
	lj0, lj1 := boundsIndices(ds.Lon, lonMin, lonMax)
	if li0 >= li1 || lj0 >= lj1 {
		return fmt.Errorf("extent [%g,%g]x[%g,%g] selects no cells", latMin, latMax, lonMin, lonMax)
	}
	ny, nx := li1-li0, lj1-lj0

	for _, f := range ds.Fields {
		oldNY, oldNX, err := f.SpatialShape()
		if err != nil {
			return err
		}
		if oldNY != len(ds.Lat) || oldNX != len(ds.Lon) {
			return &ShapeMismatchError{Field: f.Name, Want: []int{len(ds.Lat), len(ds.Lon)}, Got: []int{oldNY, oldNX}}
		}
		outShape := append(append([]int{}, f.Data.Shape[:len(f.Data.Shape)-2]...), ny, nx)
		out := sparse.ZerosDense(outShape...)
		for s := 0; s < f.SliceCount(); s++ {
			in := f.Data.Elements[s*oldNY*oldNX : (s+1)*oldNY*oldNX]
			dst := out.Elements[s*ny*nx : (s+1)*ny*nx]
			for i := 0; i < ny; i++ {
				copy(dst[i*nx:(i+1)*nx], in[(li0+i)*oldNX+lj0:(li0+i)*oldNX+lj1])
			}
		}
		f.Data = out
	}
	ds.Lat = append([]float64{}, ds.Lat[li0:li1]...)
	ds.Lon = append([]float64{}, ds.Lon[lj0:lj1]...)
	return nil
}

// boundsIndices returns the half-open index range of coords within
// [lo, hi]. coords must be ascending.
func boundsIndices(coords []float64, lo, hi float64) (int, int) {
	i0, i1 := 0, 0
	for i, c := range coords {
		if c < lo {
			i0 = i + 1
		}
		if c <= hi {
			i1 = i + 1
		}
	}
	return i0, i1
}
