package netcdf

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ctessum/cdf"

	"github.com/couchcryptid/emissions-regrid/internal/domain"
)

// Writer persists regridded datasets into the output tree, one file per
// unit at {year}/{month}/{day_type}/{sector}_regridded.nc.
type Writer struct {
	outDir  string
	logger  *slog.Logger
	gitHash string
}

// NewWriter creates a Writer rooted at outDir.
func NewWriter(outDir string, logger *slog.Logger) *Writer {
	return &Writer{outDir: outDir, logger: logger, gitHash: buildGitHash()}
}

// Write saves ds under the output tree and returns the file path. An
// existing target file is an error; outputs are never overwritten.
func (w *Writer) Write(ds *domain.Dataset) (string, error) {
	a := ds.Attrs
	dir := filepath.Join(w.outDir,
		fmt.Sprintf("%04d", a.Year), fmt.Sprintf("%02d", int(a.Month)), string(a.DayType))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, a.Sector+"_regridded.nc")
	if _, err := os.Stat(path); err == nil {
		return "", &domain.OverwriteGuardError{Path: path}
	}

	h, err := w.buildHeader(ds)
	if err != nil {
		return "", err
	}

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	nc, err := cdf.Create(f, h)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}

	hours := make([]int32, len(ds.UTCHours))
	for i, hr := range ds.UTCHours {
		hours[i] = int32(hr)
	}
	if err := writeSlice(nc, "utc_hour", hours); err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	if err := writeSlice(nc, "lat", ds.Lat); err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	if err := writeSlice(nc, "lon", ds.Lon); err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	for _, fld := range ds.Fields {
		data32 := make([]float32, len(fld.Data.Elements))
		for i, v := range fld.Data.Elements {
			data32[i] = float32(v)
		}
		if err := writeSlice(nc, fld.Name, data32); err != nil {
			return "", fmt.Errorf("%s: %w", path, err)
		}
	}

	if err := cdf.UpdateNumRecs(f); err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	w.logger.Debug("wrote regridded file", "path", path, "fields", len(ds.Fields))
	return path, nil
}

// buildHeader declares the output dimensions, coordinate variables, data
// variables, and the allow-listed global attributes plus provenance.
func (w *Writer) buildHeader(ds *domain.Dataset) (*cdf.Header, error) {
	if len(ds.Lat) == 0 || len(ds.Lon) == 0 {
		return nil, fmt.Errorf("dataset has no 1-D coordinates; was it regridded?")
	}
	dimNames := []string{"utc_hour"}
	dimLens := []int{len(ds.UTCHours)}
	if ds.ZLevels > 0 {
		dimNames = append(dimNames, "zlevel")
		dimLens = append(dimLens, ds.ZLevels)
	}
	dimNames = append(dimNames, "lat", "lon")
	dimLens = append(dimLens, len(ds.Lat), len(ds.Lon))

	h := cdf.NewHeader(dimNames, dimLens)

	h.AddVariable("utc_hour", []string{"utc_hour"}, []int32{0})
	h.AddAttribute("utc_hour", "units", "hour of day, UTC")
	h.AddVariable("lat", []string{"lat"}, []float64{0})
	h.AddAttribute("lat", "units", "degrees_north")
	h.AddVariable("lon", []string{"lon"}, []float64{0})
	h.AddAttribute("lon", "units", "degrees_east")

	for _, f := range ds.Fields {
		want := expectedLengths(f.Dims, dimNames, dimLens)
		if want == nil {
			return nil, fmt.Errorf("field %s: dimensions %v not declarable on output grid", f.Name, f.Dims)
		}
		for i, n := range f.Data.Shape {
			if n != want[i] {
				return nil, &domain.ShapeMismatchError{Field: f.Name, Want: want, Got: f.Data.Shape}
			}
		}
		h.AddVariable(f.Name, f.Dims, []float32{0})
		if f.Units != "" {
			h.AddAttribute(f.Name, "units", f.Units)
		}
	}

	a := ds.Attrs
	h.AddAttribute("", "sector", a.Sector)
	h.AddAttribute("", "year", []int32{int32(a.Year)})
	h.AddAttribute("", "month", []int32{int32(a.Month)})
	h.AddAttribute("", "day_type", string(a.DayType))
	if a.Title != "" {
		h.AddAttribute("", "title", a.Title)
	}
	h.AddAttribute("", "regrid_method", a.RegridMethod)
	h.AddAttribute("", "git_hash", w.gitHash)
	h.AddAttribute("", "processed_at", domain.Now().UTC().Format(time.RFC3339))

	h.Define()
	return h, nil
}

// expectedLengths maps a variable's dimension names onto the declared
// dimension lengths, or nil if a name is not declared.
func expectedLengths(dims, dimNames []string, dimLens []int) []int {
	out := make([]int, len(dims))
	for i, d := range dims {
		found := false
		for j, n := range dimNames {
			if n == d {
				out[i] = dimLens[j]
				found = true
				break
			}
		}
		if !found {
			return nil
		}
	}
	return out
}

// writeSlice writes a full variable in one call.
func writeSlice(nc *cdf.File, name string, data interface{}) error {
	end := nc.Header.Lengths(name)
	start := make([]int, len(end))
	wr := nc.Writer(name, start, end)
	if _, err := wr.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
