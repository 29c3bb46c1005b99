package netcdf

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/emissions-regrid/internal/domain"
)

func testGridSpec() domain.NativeGridSpec {
	return domain.NativeGridSpec{
		Projection: domain.LambertProjection,
		TrueLat1:   33,
		TrueLat2:   45,
		MoadCenLat: 40,
		StandLon:   -97,
		CenLat:     40,
		CenLon:     -97,
		DX:         100000,
		DY:         100000,
		NX:         4,
		NY:         3,
	}
}

// testMeshes fabricates center coordinates exactly representable in float32
// so the write-read cycle preserves the values bit for bit.
func testMeshes(ny, nx int) (lat, lon [][]float64) {
	lat = make([][]float64, ny)
	lon = make([][]float64, ny)
	for i := 0; i < ny; i++ {
		lat[i] = make([]float64, nx)
		lon[i] = make([]float64, nx)
		for j := 0; j < nx; j++ {
			lat[i][j] = 38 + 0.5*float64(i)
			lon[i][j] = -99 + 0.5*float64(j)
		}
	}
	return lat, lon
}

// halfDay builds one half-day dataset with a single CO2 field whose values
// encode their flat index, so concatenation order is checkable.
func halfDay(hourStart string, fieldNames ...string) *domain.Dataset {
	spec := testGridSpec()
	lat, lon := testMeshes(spec.NY, spec.NX)

	offset := 0
	if hourStart == "12" {
		offset = 12
	}
	hours := make([]int, 12)
	for i := range hours {
		hours[i] = offset + i
	}

	if len(fieldNames) == 0 {
		fieldNames = []string{"CO2"}
	}
	ds := &domain.Dataset{
		Attrs:    domain.Attrs{Title: "synthetic archive"},
		UTCHours: hours,
		ZLevels:  2,
		Lat2D:    lat,
		Lon2D:    lon,
		Grid:     spec,
	}
	for n, name := range fieldNames {
		data := sparse.ZerosDense(12, 2, spec.NY, spec.NX)
		for i := range data.Elements {
			data.Elements[i] = float64((i+n*7)%50) + float64(offset)
		}
		ds.Fields = append(ds.Fields, &domain.Field{
			Name:  name,
			Units: "metric_Ton hr^-1",
			Dims:  []string{"utc_hour", "zlevel", "south_north", "west_east"},
			Data:  data,
		})
	}
	return ds
}

func writeHalves(t *testing.T, baseDir string, fieldNames ...string) {
	t.Helper()
	for _, hs := range []string{"00", "12"} {
		path, err := BasePath(baseDir, "COMM", 2021, time.June, domain.Weekday, hs)
		require.NoError(t, err)
		require.NoError(t, WriteBase(path, halfDay(hs, fieldNames...)))
	}
}

func TestRelPath(t *testing.T) {
	rel, err := relPath("COMM", 2021, time.June, domain.Weekday, "00")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("202106", "weekdy", "GRA2PESv1.0_COMM_202106_weekdy_00to11Z.nc"), rel)

	rel, err = relPath("EGU", 2021, time.December, domain.Sunday, "12")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("202112", "sundy", "GRA2PESv1.0_EGU_202112_sundy_12to23Z.nc"), rel)

	_, err = relPath("COMM", 2021, time.June, domain.Weekday, "06")
	assert.Error(t, err)
}

func TestLoadFullDay_RoundTrip(t *testing.T) {
	baseDir := t.TempDir()
	writeHalves(t, baseDir)

	h := NewHandler(baseDir, []string{"CO2"}, nil, slog.Default())
	ds, err := h.LoadFullDay(context.Background(), 2021, time.June, domain.Weekday, "COMM")
	require.NoError(t, err)

	assert.Equal(t, "COMM", ds.Attrs.Sector)
	assert.Equal(t, 2021, ds.Attrs.Year)
	assert.Equal(t, time.June, ds.Attrs.Month)
	assert.Equal(t, domain.Weekday, ds.Attrs.DayType)
	assert.Equal(t, "synthetic archive", ds.Attrs.Title)

	require.Len(t, ds.UTCHours, 24)
	for i, hr := range ds.UTCHours {
		assert.Equal(t, i, hr)
	}
	assert.Equal(t, 2, ds.ZLevels)
	assert.Equal(t, testGridSpec().Signature(), ds.Grid.Signature())

	require.Len(t, ds.Fields, 1)
	f := ds.Fields[0]
	assert.Equal(t, []string{"utc_hour", "zlevel", "south_north", "west_east"}, f.Dims)
	assert.Equal(t, []int{24, 2, 3, 4}, f.Data.Shape)
	assert.Equal(t, "metric_Ton hr^-1", f.Units)

	// First-half values carry no offset, second-half values carry +12.
	half := len(f.Data.Elements) / 2
	assert.Equal(t, 0.0, f.Data.Elements[0])
	assert.Equal(t, 12.0, f.Data.Elements[half])

	lat, lon := testMeshes(3, 4)
	assert.Equal(t, lat, ds.Lat2D)
	assert.Equal(t, lon, ds.Lon2D)
}

func TestLoadFullDay_MissingSpecies(t *testing.T) {
	baseDir := t.TempDir()
	writeHalves(t, baseDir)

	h := NewHandler(baseDir, []string{"CO2", "CH4"}, nil, slog.Default())
	_, err := h.LoadFullDay(context.Background(), 2021, time.June, domain.Weekday, "COMM")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "species CH4 not present")
}

func TestLoadFullDay_MissingFile(t *testing.T) {
	h := NewHandler(t.TempDir(), nil, nil, slog.Default())
	_, err := h.LoadFullDay(context.Background(), 2021, time.June, domain.Weekday, "COMM")
	assert.Error(t, err)
}

func TestLoadFullDay_MergesExtraVariables(t *testing.T) {
	baseDir := t.TempDir()
	writeHalves(t, baseDir)
	// The auxiliary tree carries CO2 (shared, must only shape-check) and CH4
	// (new, must be merged).
	writeHalves(t, filepath.Join(baseDir, "methane"), "CO2", "CH4")

	h := NewHandler(baseDir, []string{"CO2", "CH4"}, []string{"methane"}, slog.Default())
	ds, err := h.LoadFullDay(context.Background(), 2021, time.June, domain.Weekday, "COMM")
	require.NoError(t, err)

	require.Len(t, ds.Fields, 2)
	assert.Equal(t, "CO2", ds.Fields[0].Name)
	assert.Equal(t, "CH4", ds.Fields[1].Name)
	// The shared variable keeps the main tree's values.
	assert.Equal(t, 0.0, ds.Fields[0].Data.Elements[0])
}

func TestConcatHours_RejectsOverlap(t *testing.T) {
	a := halfDay("00")
	b := halfDay("00")
	_, err := concatHours(a, b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "present in both halves")
}

func regriddedDataset() *domain.Dataset {
	data := sparse.ZerosDense(2, 3, 2)
	for i := range data.Elements {
		data.Elements[i] = float64(i)
	}
	return &domain.Dataset{
		Fields: []*domain.Field{{
			Name:  "CO2",
			Units: "metric_Ton hr^-1",
			Dims:  []string{"utc_hour", "lat", "lon"},
			Data:  data,
		}},
		Attrs: domain.Attrs{
			Sector:       "COMM",
			Year:         2021,
			Month:        time.June,
			DayType:      domain.Weekday,
			Title:        "synthetic archive",
			RegridMethod: "conservative",
		},
		UTCHours: []int{0, 1},
		Lat:      []float64{30, 30.5, 31},
		Lon:      []float64{-100, -99.5},
	}
}

func TestWriter_RoundTrip(t *testing.T) {
	outDir := t.TempDir()
	w := NewWriter(outDir, slog.Default())

	path, err := w.Write(regriddedDataset())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, "2021", "06", "weekdy", "COMM_regridded.nc"), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	nc, err := cdf.Open(f)
	require.NoError(t, err)

	assert.Equal(t, "COMM", attrString(nc, "", "sector"))
	assert.Equal(t, "weekdy", attrString(nc, "", "day_type"))
	assert.Equal(t, "conservative", attrString(nc, "", "regrid_method"))
	assert.Equal(t, "synthetic archive", attrString(nc, "", "title"))
	year, ok := attrFloat(nc, "", "year")
	require.True(t, ok)
	assert.Equal(t, 2021.0, year)
	month, ok := attrFloat(nc, "", "month")
	require.True(t, ok)
	assert.Equal(t, 6.0, month)

	assert.NotEmpty(t, attrString(nc, "", "git_hash"))
	_, err = time.Parse(time.RFC3339, attrString(nc, "", "processed_at"))
	assert.NoError(t, err)

	lat, err := readFloats(nc, "lat")
	require.NoError(t, err)
	assert.Equal(t, []float64{30, 30.5, 31}, lat)
	lon, err := readFloats(nc, "lon")
	require.NoError(t, err)
	assert.Equal(t, []float64{-100, -99.5}, lon)

	co2, err := readFloats(nc, "CO2")
	require.NoError(t, err)
	require.Len(t, co2, 12)
	assert.Equal(t, 0.0, co2[0])
	assert.Equal(t, 11.0, co2[11])
	assert.Equal(t, "metric_Ton hr^-1", attrString(nc, "CO2", "units"))
}

func TestWriter_OverwriteGuard(t *testing.T) {
	w := NewWriter(t.TempDir(), slog.Default())
	_, err := w.Write(regriddedDataset())
	require.NoError(t, err)

	_, err = w.Write(regriddedDataset())
	require.Error(t, err)
	var og *domain.OverwriteGuardError
	assert.ErrorAs(t, err, &og)
}

func TestWriter_ShapeMismatch(t *testing.T) {
	ds := regriddedDataset()
	ds.Fields[0].Data = sparse.ZerosDense(2, 3, 3)

	w := NewWriter(t.TempDir(), slog.Default())
	_, err := w.Write(ds)
	require.Error(t, err)
	var sm *domain.ShapeMismatchError
	assert.ErrorAs(t, err, &sm)
}

func TestWriter_RejectsUngriddedDataset(t *testing.T) {
	ds := regriddedDataset()
	ds.Lat = nil

	w := NewWriter(t.TempDir(), slog.Default())
	_, err := w.Write(ds)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no 1-D coordinates")
}
