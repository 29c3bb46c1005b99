package netcdf

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ctessum/cdf"

	"github.com/couchcryptid/emissions-regrid/internal/domain"
)

// WriteBase writes one half-day base file in the archive's native layout:
// Time/bottom_top/south_north/west_east dimensions, XLAT/XLONG center
// meshes, and the projection attributes readFile expects. It exists for the
// synthetic archive generator and for tests; real base files come from the
// upstream archive.
func WriteBase(path string, ds *domain.Dataset) error {
	if len(ds.Lat2D) == 0 || len(ds.Lat2D[0]) == 0 {
		return fmt.Errorf("dataset has no coordinate meshes")
	}
	ny, nx := len(ds.Lat2D), len(ds.Lat2D[0])

	dimNames := []string{"Time"}
	dimLens := []int{len(ds.UTCHours)}
	if ds.ZLevels > 0 {
		dimNames = append(dimNames, "bottom_top")
		dimLens = append(dimLens, ds.ZLevels)
	}
	dimNames = append(dimNames, "south_north", "west_east")
	dimLens = append(dimLens, ny, nx)

	h := cdf.NewHeader(dimNames, dimLens)

	h.AddVariable("XLAT", []string{"south_north", "west_east"}, []float32{0})
	h.AddAttribute("XLAT", "units", "degrees_north")
	h.AddVariable("XLONG", []string{"south_north", "west_east"}, []float32{0})
	h.AddAttribute("XLONG", "units", "degrees_east")

	for _, f := range ds.Fields {
		dims := make([]string, len(f.Dims))
		for i, d := range f.Dims {
			dims[i] = baseDimName(d)
		}
		h.AddVariable(f.Name, dims, []float32{0})
		if f.Units != "" {
			h.AddAttribute(f.Name, "units", f.Units)
		}
	}

	g := ds.Grid
	h.AddAttribute("", "MAP_PROJ_CHAR", g.Projection)
	h.AddAttribute("", "TRUELAT1", []float32{float32(g.TrueLat1)})
	h.AddAttribute("", "TRUELAT2", []float32{float32(g.TrueLat2)})
	h.AddAttribute("", "MOAD_CEN_LAT", []float32{float32(g.MoadCenLat)})
	h.AddAttribute("", "STAND_LON", []float32{float32(g.StandLon)})
	h.AddAttribute("", "CEN_LAT", []float32{float32(g.CenLat)})
	h.AddAttribute("", "CEN_LON", []float32{float32(g.CenLon)})
	h.AddAttribute("", "DX", []float32{float32(g.DX)})
	h.AddAttribute("", "DY", []float32{float32(g.DY)})
	if ds.Attrs.Title != "" {
		h.AddAttribute("", "TITLE", ds.Attrs.Title)
	}
	for k, v := range ds.Attrs.Extra {
		h.AddAttribute("", k, v)
	}
	h.Define()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	nc, err := cdf.Create(f, h)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	if err := writeSlice(nc, "XLAT", flattenMesh32(ds.Lat2D)); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := writeSlice(nc, "XLONG", flattenMesh32(ds.Lon2D)); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	for _, fld := range ds.Fields {
		data32 := make([]float32, len(fld.Data.Elements))
		for i, v := range fld.Data.Elements {
			data32[i] = float32(v)
		}
		if err := writeSlice(nc, fld.Name, data32); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return cdf.UpdateNumRecs(f)
}

// BasePath returns the absolute path of one half-day base file under
// baseDir, for callers generating an archive.
func BasePath(baseDir, sector string, year int, month time.Month, dayType domain.DayType, hourStart string) (string, error) {
	rel, err := relPath(sector, year, month, dayType, hourStart)
	if err != nil {
		return "", err
	}
	return filepath.Join(baseDir, rel), nil
}

func baseDimName(d string) string {
	switch d {
	case "utc_hour":
		return "Time"
	case "zlevel":
		return "bottom_top"
	}
	return d
}

func flattenMesh32(mesh [][]float64) []float32 {
	if len(mesh) == 0 {
		return nil
	}
	nx := len(mesh[0])
	out := make([]float32, 0, len(mesh)*nx)
	for _, row := range mesh {
		for _, v := range row {
			out = append(out, float32(v))
		}
	}
	return out
}
