package regrid

import (
	"log/slog"
	"math"
	"os"
	"testing"
	"time"

	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/emissions-regrid/internal/domain"
	"github.com/couchcryptid/emissions-regrid/internal/grid"
	"github.com/couchcryptid/emissions-regrid/internal/observability"
)

// testInSpec is a small CONUS-centered grid, about 400x300 km.
func testInSpec() domain.NativeGridSpec {
	return domain.NativeGridSpec{
		Projection: domain.LambertProjection,
		TrueLat1:   33, TrueLat2: 45,
		MoadCenLat: 40, StandLon: -97,
		CenLat: 40, CenLon: -97,
		DX: 50000, DY: 50000,
		NX: 8, NY: 6,
	}
}

// testOutSpec covers the input domain with a wide margin, so the whole
// input grid is accounted for by output cells.
func testOutSpec() domain.LatLonGridSpec {
	return domain.LatLonGridSpec{
		LatMin: 36, LatMax: 44,
		LonMin: -102, LonMax: -92,
		LatSpacing: 0.5, LonSpacing: 0.5,
	}
}

func buildTestGeometry(t *testing.T) (*grid.NativeGrid, *grid.LatLonGrid, *grid.Projection) {
	t.Helper()
	p, err := grid.NewProjection(testInSpec())
	require.NoError(t, err)
	in, err := grid.BuildNativeGrid(testInSpec(), p)
	require.NoError(t, err)
	out, err := grid.BuildLatLonGrid(testOutSpec())
	require.NoError(t, err)
	return in, out, p
}

// outCellAreas computes each output cell's area in the projected plane,
// the same measure computeWeights uses.
func outCellAreas(t *testing.T, out *grid.LatLonGrid, p *grid.Projection) []float64 {
	t.Helper()
	areas := make([]float64, len(out.Lat)*len(out.Lon))
	for oj := range out.Lat {
		for oi := range out.Lon {
			b := &geom.Bounds{
				Min: geom.Point{X: out.LonB[oi], Y: out.LatB[oj]},
				Max: geom.Point{X: out.LonB[oi+1], Y: out.LatB[oj+1]},
			}
			gg, err := densePolygonFromBounds(b).Transform(p.Forward)
			require.NoError(t, err)
			areas[oj*len(out.Lon)+oi] = gg.(geom.Polygonal).Area()
		}
	}
	return areas
}

func TestComputeWeights_WeightSums(t *testing.T) {
	in, out, p := buildTestGeometry(t)
	w, err := computeWeights(in, out, p)
	require.NoError(t, err)

	require.Equal(t, in.Spec.NY, w.InNY)
	require.Equal(t, len(out.Lat)*len(out.Lon), len(w.Entries))

	covered := 0
	for _, entries := range w.Entries {
		var sum float64
		for _, e := range entries {
			require.GreaterOrEqual(t, e.Weight, 0.0)
			sum += e.Weight
		}
		assert.LessOrEqual(t, sum, 1+1e-9)
		if sum > 1-1e-9 {
			covered++
		}
	}
	// A margin of output cells falls outside the input domain, but the
	// interior must be fully covered.
	assert.Greater(t, covered, 0)
}

func TestComputeWeights_Conservation(t *testing.T) {
	in, out, p := buildTestGeometry(t)
	w, err := computeWeights(in, out, p)
	require.NoError(t, err)

	// A non-uniform input field.
	inVals := make([]float64, w.InNY*w.InNX)
	for i := range inVals {
		inVals[i] = 1 + float64(i%7)
	}
	outVals := make([]float64, w.OutNY*w.OutNX)
	w.apply(inVals, outVals)

	// Input cell areas in the plane are exact dx*dy rectangles.
	var inTotal float64
	for _, v := range inVals {
		inTotal += v * in.Spec.DX * in.Spec.DY
	}
	areas := outCellAreas(t, out, p)
	var outTotal float64
	for o, v := range outVals {
		if math.IsNaN(v) {
			continue
		}
		outTotal += v * areas[o]
	}
	assert.InEpsilon(t, inTotal, outTotal, 1e-6)
}

func TestComputeWeights_NoCoverageIsNaN(t *testing.T) {
	in, out, p := buildTestGeometry(t)
	w, err := computeWeights(in, out, p)
	require.NoError(t, err)

	inVals := make([]float64, w.InNY*w.InNX)
	outVals := make([]float64, w.OutNY*w.OutNX)
	w.apply(inVals, outVals)

	// The output corner is far outside the 400 km input domain.
	assert.True(t, math.IsNaN(outVals[0]))
	// The output center is inside it.
	center := (w.OutNY/2)*w.OutNX + w.OutNX/2
	assert.False(t, math.IsNaN(outVals[center]))
}

func newTestRegridder(t *testing.T) *Regridder {
	t.Helper()
	store := NewWeightStore(t.TempDir(), slog.Default(), observability.NewMetricsForTesting())
	r, err := New(testOutSpec(), store, slog.Default())
	require.NoError(t, err)
	return r
}

func testDataset(scale float64) *domain.Dataset {
	spec := testInSpec()
	data := sparse.ZerosDense(2, spec.NY, spec.NX)
	for i := range data.Elements {
		data.Elements[i] = scale * float64(1+i%5)
	}
	return &domain.Dataset{
		Fields: []*domain.Field{{
			Name:  "CO2",
			Units: "metric_Ton hr^-1",
			Dims:  []string{"utc_hour", "south_north", "west_east"},
			Data:  data,
		}},
		Attrs: domain.Attrs{
			Sector: "COMM", Year: 2021, Month: time.June, DayType: domain.Weekday,
			Title: "test", GitHash: "deadbeef",
			Extra: map[string]string{"CEN_LAT": "40"},
		},
		UTCHours: []int{0, 1},
		Grid:     spec,
	}
}

func TestRegrid_Linearity(t *testing.T) {
	r := newTestRegridder(t)

	out1, err := r.Regrid(testDataset(1))
	require.NoError(t, err)
	out2, err := r.Regrid(testDataset(2))
	require.NoError(t, err)

	e1 := out1.Fields[0].Data.Elements
	e2 := out2.Fields[0].Data.Elements
	require.Equal(t, len(e1), len(e2))
	for i := range e1 {
		if math.IsNaN(e1[i]) {
			assert.True(t, math.IsNaN(e2[i]))
			continue
		}
		assert.InDelta(t, 2*e1[i], e2[i], 1e-12)
	}
}

func TestRegrid_OutputShapeAndDims(t *testing.T) {
	r := newTestRegridder(t)
	out, err := r.Regrid(testDataset(1))
	require.NoError(t, err)

	f := out.Fields[0]
	assert.Equal(t, []string{"utc_hour", "lat", "lon"}, f.Dims)
	assert.Equal(t, []int{2, len(out.Lat), len(out.Lon)}, f.Data.Shape)
	assert.Equal(t, []int{0, 1}, out.UTCHours)
	assert.NotEmpty(t, out.Lat)
	assert.NotEmpty(t, out.Lon)
}

func TestRegrid_PrunesAttrs(t *testing.T) {
	r := newTestRegridder(t)
	out, err := r.Regrid(testDataset(1))
	require.NoError(t, err)

	assert.Equal(t, "COMM", out.Attrs.Sector)
	assert.Equal(t, MethodConservative, out.Attrs.RegridMethod)
	assert.Nil(t, out.Attrs.Extra)
	assert.Empty(t, out.Attrs.GitHash)
}

func TestRegrid_ShapeMismatch(t *testing.T) {
	r := newTestRegridder(t)
	ds := testDataset(1)
	ds.Fields[0].Data = sparse.ZerosDense(2, 3, 3)

	_, err := r.Regrid(ds)
	require.Error(t, err)
	var sme *domain.ShapeMismatchError
	require.ErrorAs(t, err, &sme)
	assert.Equal(t, "CO2", sme.Field)
}

func TestRegrid_BoundToFirstGrid(t *testing.T) {
	r := newTestRegridder(t)
	_, err := r.Regrid(testDataset(1))
	require.NoError(t, err)

	other := testDataset(1)
	other.Grid.DX = 25000
	other.Grid.DY = 25000
	_, err = r.Regrid(other)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bound to grid")
}

func TestWeightStore_ComputesOnce(t *testing.T) {
	store := NewWeightStore(t.TempDir(), slog.Default(), observability.NewMetricsForTesting())

	calls := 0
	compute := func() (*Weights, error) {
		calls++
		return &Weights{InNY: 1, InNX: 1, OutNY: 1, OutNX: 1,
			Method:  MethodConservative,
			Entries: [][]WeightEntry{{{Index: 0, Weight: 1}}}}, nil
	}

	w1, err := store.LoadOrCompute("k", compute)
	require.NoError(t, err)
	w2, err := store.LoadOrCompute("k", compute)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Same(t, w1, w2)
}

func TestWeightStore_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	metrics := observability.NewMetricsForTesting()

	first := NewWeightStore(dir, slog.Default(), metrics)
	want := &Weights{InNY: 2, InNX: 3, OutNY: 4, OutNX: 5,
		Method:  MethodConservative,
		Entries: [][]WeightEntry{nil, {{Index: 1, Weight: 0.5}, {Index: 2, Weight: 0.25}}}}
	_, err := first.LoadOrCompute("k", func() (*Weights, error) { return want, nil })
	require.NoError(t, err)

	// A fresh store over the same directory must load, not recompute.
	second := NewWeightStore(dir, slog.Default(), metrics)
	got, err := second.LoadOrCompute("k", func() (*Weights, error) {
		t.Fatal("recomputed despite persisted weights")
		return nil, nil
	})
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("weights changed across the persist-load cycle (-want +got):\n%s", diff)
	}
}

func TestWeightStore_CorruptBlobRecomputes(t *testing.T) {
	dir := t.TempDir()
	store := NewWeightStore(dir, slog.Default(), observability.NewMetricsForTesting())
	require.NoError(t, os.WriteFile(store.path("k"), []byte("not gob"), 0o644))

	w, err := store.LoadOrCompute("k", func() (*Weights, error) {
		return &Weights{InNY: 1, InNX: 1, OutNY: 1, OutNX: 1, Method: MethodConservative,
			Entries: [][]WeightEntry{nil}}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, w.InNY)
}
