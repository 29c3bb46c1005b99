package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ctessum/sparse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/emissions-regrid/internal/domain"
	"github.com/couchcryptid/emissions-regrid/internal/observability"
	"github.com/couchcryptid/emissions-regrid/internal/pipeline"
)

// --- mocks ---

type mockLoader struct {
	mu     sync.Mutex
	loads  int
	failOn string // unit string to fail on, "" for never
}

func (m *mockLoader) LoadFullDay(_ context.Context, year int, month time.Month, dayType domain.DayType, sector string) (*domain.Dataset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	u := pipeline.Unit{Year: year, Month: month, DayType: dayType, Sector: sector}
	if m.failOn != "" && u.String() == m.failOn {
		return nil, errors.New("archive file missing")
	}
	data := sparse.ZerosDense(2, 3, 2, 2)
	return &domain.Dataset{
		Fields: []*domain.Field{{
			Name: "CO2",
			Dims: []string{"utc_hour", "zlevel", "south_north", "west_east"},
			Data: data,
		}},
		Attrs:    domain.Attrs{Sector: sector, Year: year, Month: month, DayType: dayType},
		UTCHours: []int{0, 1},
		ZLevels:  3,
	}, nil
}

type mockRegridder struct {
	mu    sync.Mutex
	calls int
}

func (m *mockRegridder) Regrid(ds *domain.Dataset) (*domain.Dataset, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return ds, nil
}

type mockWriter struct {
	mu       sync.Mutex
	paths    []string
	datasets []*domain.Dataset
}

func (m *mockWriter) Write(ds *domain.Dataset) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	path := ds.Attrs.Sector + "_regridded.nc"
	m.paths = append(m.paths, path)
	m.datasets = append(m.datasets, ds)
	return path, nil
}

type mockPublisher struct {
	mu          sync.Mutex
	completions []pipeline.Completion
	err         error
}

func (m *mockPublisher) PublishCompletion(_ context.Context, c pipeline.Completion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.completions = append(m.completions, c)
	return nil
}

func testUnits(sectors ...string) []pipeline.Unit {
	return pipeline.EnumerateUnits(
		[]int{2021}, []time.Month{time.June}, []domain.DayType{domain.Weekday}, sectors)
}

func newPipeline(t *testing.T, loader *mockLoader, pub pipeline.CompletionPublisher, units []pipeline.Unit) (*pipeline.Pipeline, *mockRegridder, *mockWriter) {
	t.Helper()
	rg := &mockRegridder{}
	wr := &mockWriter{}
	p := pipeline.New(loader, rg, wr, pub,
		slog.Default(), observability.NewMetricsForTesting(),
		units, 2, true, nil, t.TempDir(), "1Kb")
	return p, rg, wr
}

func TestEnumerateUnits_Order(t *testing.T) {
	units := pipeline.EnumerateUnits(
		[]int{2021},
		[]time.Month{time.June, time.July},
		[]domain.DayType{domain.Weekday, domain.Saturday},
		[]string{"COMM", "EGU"},
	)
	require.Len(t, units, 8)
	assert.Equal(t, "2021-06/weekdy/COMM", units[0].String())
	assert.Equal(t, "2021-06/weekdy/EGU", units[1].String())
	assert.Equal(t, "2021-06/satdy/COMM", units[2].String())
	assert.Equal(t, "2021-07/weekdy/COMM", units[4].String())
}

func TestUnitsForRange(t *testing.T) {
	// Wed Jun 30 through Mon Jul 5, 2021: June contributes only weekdays;
	// July contributes all three day types.
	start := time.Date(2021, 6, 30, 0, 0, 0, 0, time.UTC)
	end := time.Date(2021, 7, 5, 0, 0, 0, 0, time.UTC)

	units := pipeline.UnitsForRange(start, end, []string{"COMM", "EGU"})
	require.Len(t, units, 8)
	assert.Equal(t, "2021-06/weekdy/COMM", units[0].String())
	assert.Equal(t, "2021-06/weekdy/EGU", units[1].String())
	assert.Equal(t, "2021-07/satdy/COMM", units[2].String())
	assert.Equal(t, "2021-07/sundy/COMM", units[4].String())
	assert.Equal(t, "2021-07/weekdy/EGU", units[7].String())
}

func TestRun_ProcessesAllUnits(t *testing.T) {
	loader := &mockLoader{}
	pub := &mockPublisher{}
	units := testUnits("AG", "COMM", "EGU", "RES")
	p, rg, wr := newPipeline(t, loader, pub, units)

	require.Error(t, p.CheckReadiness(context.Background()))

	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, 4, loader.loads)
	assert.Equal(t, 4, rg.calls)
	assert.Len(t, wr.paths, 4)
	assert.Len(t, pub.completions, 4)
	assert.NoError(t, p.CheckReadiness(context.Background()))

	done, total := p.Progress()
	assert.Equal(t, 4, done)
	assert.Equal(t, 4, total)
}

func TestRun_FirstUnitFailureAborts(t *testing.T) {
	units := testUnits("AG", "COMM")
	loader := &mockLoader{failOn: units[0].String()}
	p, rg, _ := newPipeline(t, loader, nil, units)

	err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), units[0].String())
	// Nothing fanned out after the serial first unit failed.
	assert.Equal(t, 1, loader.loads)
	assert.Equal(t, 0, rg.calls)
	require.Error(t, p.CheckReadiness(context.Background()))
}

func TestRun_LaterFailureCancelsBatch(t *testing.T) {
	sectors := []string{"AG", "COMM", "EGU", "FUG", "OG", "RAIL", "RES", "VCP"}
	units := testUnits(sectors...)
	loader := &mockLoader{failOn: units[2].String()}
	p, _, _ := newPipeline(t, loader, nil, units)

	err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), units[2].String())
	// The first unit succeeded before the failure.
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestRun_PublishFailureIsAdvisory(t *testing.T) {
	loader := &mockLoader{}
	pub := &mockPublisher{err: errors.New("broker down")}
	units := testUnits("AG", "COMM")
	p, _, wr := newPipeline(t, loader, pub, units)

	require.NoError(t, p.Run(context.Background()))
	assert.Len(t, wr.paths, 2)
}

func TestRun_CompletionContents(t *testing.T) {
	loader := &mockLoader{}
	pub := &mockPublisher{}
	units := testUnits("COMM")
	p, _, _ := newPipeline(t, loader, pub, units)

	require.NoError(t, p.Run(context.Background()))
	require.Len(t, pub.completions, 1)
	c := pub.completions[0]
	assert.Equal(t, 2021, c.Year)
	assert.Equal(t, 6, c.Month)
	assert.Equal(t, domain.Weekday, c.DayType)
	assert.Equal(t, "COMM", c.Sector)
	assert.Equal(t, "COMM_regridded.nc", c.Path)
	assert.Equal(t, 1, c.Fields)
	assert.False(t, c.CompletedAt.IsZero())
}

func TestRun_SumZLevels(t *testing.T) {
	loader := &mockLoader{}
	units := testUnits("COMM")
	rg := &mockRegridder{}
	wr := &mockWriter{}

	var gotZ int
	capture := &captureRegridder{inner: rg, onRegrid: func(ds *domain.Dataset) { gotZ = ds.ZLevels }}
	p := pipeline.New(loader, capture, wr, nil,
		slog.Default(), observability.NewMetricsForTesting(),
		units, 1, true, nil, t.TempDir(), "1Kb")

	require.NoError(t, p.Run(context.Background()))
	assert.Equal(t, 0, gotZ)
}

type captureRegridder struct {
	inner    pipeline.Regridder
	onRegrid func(*domain.Dataset)
}

func (c *captureRegridder) Regrid(ds *domain.Dataset) (*domain.Dataset, error) {
	c.onRegrid(ds)
	return c.inner.Regrid(ds)
}

// latlonRegridder returns a fixed dataset on 1-D geographic coordinates,
// standing in for a real regrid so extent clipping has something to trim.
type latlonRegridder struct{}

func (latlonRegridder) Regrid(ds *domain.Dataset) (*domain.Dataset, error) {
	data := sparse.ZerosDense(len(ds.UTCHours), 4, 5)
	for i := range data.Elements {
		data.Elements[i] = float64(i)
	}
	return &domain.Dataset{
		Fields: []*domain.Field{{
			Name: "CO2",
			Dims: []string{"utc_hour", "lat", "lon"},
			Data: data,
		}},
		Attrs:    ds.Attrs,
		UTCHours: ds.UTCHours,
		Lat:      []float64{30, 31, 32, 33},
		Lon:      []float64{-100, -99, -98, -97, -96},
	}, nil
}

func TestRun_ClipExtent(t *testing.T) {
	loader := &mockLoader{}
	wr := &mockWriter{}
	units := testUnits("COMM")
	clip := &domain.Extent{LatMin: 31, LatMax: 32, LonMin: -99, LonMax: -97}
	p := pipeline.New(loader, latlonRegridder{}, wr, nil,
		slog.Default(), observability.NewMetricsForTesting(),
		units, 1, true, clip, t.TempDir(), "1Kb")

	require.NoError(t, p.Run(context.Background()))
	require.Len(t, wr.datasets, 1)
	ds := wr.datasets[0]
	assert.Equal(t, []float64{31, 32}, ds.Lat)
	assert.Equal(t, []float64{-99, -98, -97}, ds.Lon)
	assert.Equal(t, []int{2, 2, 3}, ds.Fields[0].Data.Shape)
}

func TestRun_NoUnits(t *testing.T) {
	p, _, _ := newPipeline(t, &mockLoader{}, nil, nil)
	err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no units")
}

func TestRun_InsufficientSpace(t *testing.T) {
	loader := &mockLoader{}
	units := testUnits("COMM")
	p := pipeline.New(loader, &mockRegridder{}, &mockWriter{}, nil,
		slog.Default(), observability.NewMetricsForTesting(),
		units, 1, true, nil, t.TempDir(), "1000000Pb")

	err := p.Run(context.Background())
	require.Error(t, err)
	var re *domain.ResourceError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 0, loader.loads)
}
