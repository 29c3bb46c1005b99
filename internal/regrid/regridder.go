package regrid

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/ctessum/sparse"

	"github.com/couchcryptid/emissions-regrid/internal/domain"
	"github.com/couchcryptid/emissions-regrid/internal/grid"
)

// Regridder maps datasets from one native grid onto one lat/lon grid. An
// instance starts uninitialized and becomes ready on the first Regrid call,
// when the weight set for its grid pair is resolved through the store; that
// is the only expensive transition, and once made it is never invalidated.
// A regridder is bound to the grid pair of the first dataset it sees.
type Regridder struct {
	out    *grid.LatLonGrid
	store  *WeightStore
	logger *slog.Logger

	mu      sync.Mutex
	inSpec  domain.NativeGridSpec // grid-pair binding, set on first use
	weights *Weights              // nil until ready
}

// New creates a regridder targeting the given output grid spec. Weights are
// not computed until the first Regrid call supplies an input grid.
func New(outSpec domain.LatLonGridSpec, store *WeightStore, logger *slog.Logger) (*Regridder, error) {
	out, err := grid.BuildLatLonGrid(outSpec)
	if err != nil {
		return nil, err
	}
	return &Regridder{out: out, store: store, logger: logger}, nil
}

// ensureReady resolves the weight set for the dataset's grid, computing it
// on first use and reusing it afterwards. A later dataset on a different
// grid is an error: one regridder serves one grid pair.
func (r *Regridder) ensureReady(spec domain.NativeGridSpec) (*Weights, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.weights != nil {
		if spec.Signature() != r.inSpec.Signature() {
			return nil, fmt.Errorf("regridder is bound to grid %s, got dataset on grid %s",
				r.inSpec.Signature(), spec.Signature())
		}
		return r.weights, nil
	}

	if err := spec.Validate(); err != nil {
		return nil, err
	}
	proj, err := grid.NewProjection(spec)
	if err != nil {
		return nil, err
	}
	in, err := grid.BuildNativeGrid(spec, proj)
	if err != nil {
		return nil, err
	}

	key := domain.WeightKey(spec, r.out.Spec, MethodConservative)
	w, err := r.store.LoadOrCompute(key, func() (*Weights, error) {
		return computeWeights(in, r.out, proj)
	})
	if err != nil {
		return nil, err
	}

	r.inSpec = spec
	r.weights = w
	return w, nil
}

// Regrid maps every field of ds onto the output grid, applying the weight
// set independently to each non-spatial slice. Output cells with no input
// coverage become NaN. The returned dataset carries only the allow-listed
// attributes plus the regrid method; everything else is metadata about the
// old grid and is dropped.
func (r *Regridder) Regrid(ds *domain.Dataset) (*domain.Dataset, error) {
	w, err := r.ensureReady(ds.Grid)
	if err != nil {
		return nil, err
	}

	out := &domain.Dataset{
		Fields:   make([]*domain.Field, 0, len(ds.Fields)),
		UTCHours: ds.UTCHours,
		ZLevels:  ds.ZLevels,
		Lat:      r.out.Lat,
		Lon:      r.out.Lon,
	}
	for _, f := range ds.Fields {
		rf, err := r.regridField(f, w)
		if err != nil {
			return nil, err
		}
		out.Fields = append(out.Fields, rf)
	}

	attrs := ds.Attrs
	attrs.RegridMethod = MethodConservative
	out.Attrs = attrs.Pruned()
	return out, nil
}

// regridField applies w to each non-spatial slice of f. Application is
// linear in the field values: regrid(a*X+b*Y) == a*regrid(X)+b*regrid(Y).
func (r *Regridder) regridField(f *domain.Field, w *Weights) (*domain.Field, error) {
	ny, nx, err := f.SpatialShape()
	if err != nil {
		return nil, err
	}
	if ny != w.InNY || nx != w.InNX {
		want := []int{w.InNY, w.InNX}
		return nil, &domain.ShapeMismatchError{Field: f.Name, Want: want, Got: []int{ny, nx}}
	}

	nd := len(f.Data.Shape)
	outShape := make([]int, nd)
	copy(outShape, f.Data.Shape[:nd-2])
	outShape[nd-2] = w.OutNY
	outShape[nd-1] = w.OutNX

	outDims := make([]string, nd)
	copy(outDims, f.Dims[:nd-2])
	outDims[nd-2] = "lat"
	outDims[nd-1] = "lon"

	data := sparse.ZerosDense(outShape...)
	inSize := w.InNY * w.InNX
	outSize := w.OutNY * w.OutNX
	for s := 0; s < f.SliceCount(); s++ {
		in := f.Data.Elements[s*inSize : (s+1)*inSize]
		dst := data.Elements[s*outSize : (s+1)*outSize]
		w.apply(in, dst)
	}

	return &domain.Field{Name: f.Name, Units: f.Units, Dims: outDims, Data: data}, nil
}
