package regrid

import (
	"fmt"
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"

	"github.com/couchcryptid/emissions-regrid/internal/grid"
)

var nan = math.NaN()

// inputCell is an rtree entry: one native cell's polygon in plane meters
// and its row-major index.
type inputCell struct {
	geom.Polygonal
	index int
}

// computeWeights intersects every output cell with the input cells
// overlapping it. The geometry work happens in the native projected plane,
// where input cells are exact dx-by-dy rectangles: each output lat/lon cell
// is transformed into the plane with densified edges (so the curved image
// of the rectangle is represented), intersected against an rtree of input
// cells, and weighted by overlap area over its own area.
func computeWeights(in *grid.NativeGrid, out *grid.LatLonGrid, p *grid.Projection) (*Weights, error) {
	ny, nx := in.Spec.NY, in.Spec.NX
	tree := rtree.NewTree(25, 50)
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			cell := geom.Polygon{{
				{X: in.XB[j][i], Y: in.YB[j][i]},
				{X: in.XB[j][i+1], Y: in.YB[j][i+1]},
				{X: in.XB[j+1][i+1], Y: in.YB[j+1][i+1]},
				{X: in.XB[j+1][i], Y: in.YB[j+1][i]},
			}}
			tree.Insert(&inputCell{Polygonal: cell, index: j*nx + i})
		}
	}

	w := &Weights{
		InNY:    ny,
		InNX:    nx,
		OutNY:   len(out.Lat),
		OutNX:   len(out.Lon),
		Method:  MethodConservative,
		Entries: make([][]WeightEntry, len(out.Lat)*len(out.Lon)),
	}

	for oj := 0; oj < w.OutNY; oj++ {
		for oi := 0; oi < w.OutNX; oi++ {
			b := &geom.Bounds{
				Min: geom.Point{X: out.LonB[oi], Y: out.LatB[oj]},
				Max: geom.Point{X: out.LonB[oi+1], Y: out.LatB[oj+1]},
			}
			gg, err := densePolygonFromBounds(b).Transform(p.Forward)
			if err != nil {
				return nil, fmt.Errorf("transform output cell (%d, %d): %w", oj, oi, err)
			}
			outCell := gg.(geom.Polygonal)
			outArea := outCell.Area()
			if outArea <= 0 {
				continue
			}

			var entries []WeightEntry
			for _, cI := range tree.SearchIntersect(outCell.Bounds()) {
				c := cI.(*inputCell)
				isect := outCell.Intersection(c.Polygonal)
				if isect == nil {
					continue
				}
				a := isect.Area()
				if a == 0 {
					continue
				}
				entries = append(entries, WeightEntry{Index: c.index, Weight: a / outArea})
			}
			w.Entries[oj*w.OutNX+oi] = entries
		}
	}
	return w, nil
}

// densePolygonFromBounds turns a lat/lon bounding box into a polygon with
// intermediate points along each edge, so that transforming it into the
// projected plane follows the curvature of the cell edges instead of
// cutting straight between corners.
func densePolygonFromBounds(b *geom.Bounds) geom.Polygon {
	dx := b.Max.X - b.Min.X
	dy := b.Max.Y - b.Min.Y
	return geom.Polygon{{
		{X: b.Min.X, Y: b.Min.Y},
		{X: b.Min.X + dx/4, Y: b.Min.Y},
		{X: b.Min.X + dx/2, Y: b.Min.Y},
		{X: b.Min.X + dx*3/4, Y: b.Min.Y},
		{X: b.Max.X, Y: b.Min.Y},
		{X: b.Max.X, Y: b.Min.Y + dy/4},
		{X: b.Max.X, Y: b.Min.Y + dy/2},
		{X: b.Max.X, Y: b.Min.Y + dy*3/4},
		{X: b.Max.X, Y: b.Max.Y},
		{X: b.Max.X - dx/4, Y: b.Max.Y},
		{X: b.Max.X - dx/2, Y: b.Max.Y},
		{X: b.Max.X - dx*3/4, Y: b.Max.Y},
		{X: b.Min.X, Y: b.Max.Y},
		{X: b.Min.X, Y: b.Max.Y - dy/4},
		{X: b.Min.X, Y: b.Max.Y - dy/2},
		{X: b.Min.X, Y: b.Max.Y - dy*3/4},
	}}
}
