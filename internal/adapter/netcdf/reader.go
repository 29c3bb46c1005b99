// Package netcdf reads and writes the NetCDF datasets this service moves
// between: formatted "base" files on the native Lambert grid, and regridded
// outputs on the geographic grid. It speaks the classic NetCDF format via
// github.com/ctessum/cdf.
package netcdf

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"

	"github.com/couchcryptid/emissions-regrid/internal/domain"
)

// fileVersion is the archive naming version embedded in base file names.
const fileVersion = "GRA2PESv1.0"

// Handler loads formatted base files from the on-disk archive. A full day
// of data is split across two half-day files (hours 00-11Z and 12-23Z);
// auxiliary datasets such as methane live in a parallel tree keyed by an
// extra id and carry additional variables on identical coordinates.
type Handler struct {
	baseDir  string
	species  []string
	extraIDs []string
	logger   *slog.Logger
}

// NewHandler creates a Handler rooted at baseDir. species is the ordered
// variable subset to load; extraIDs names the auxiliary trees to merge in.
func NewHandler(baseDir string, species, extraIDs []string, logger *slog.Logger) *Handler {
	return &Handler{baseDir: baseDir, species: species, extraIDs: extraIDs, logger: logger}
}

// relPath returns the archive-relative path of one half-day file. The hour
// end is inferred from the hour start; anything but "00" or "12" is
// rejected because no such files exist.
func relPath(sector string, year int, month time.Month, dayType domain.DayType, hourStart string) (string, error) {
	var hourEnd string
	switch hourStart {
	case "00":
		hourEnd = "11"
	case "12":
		hourEnd = "23"
	default:
		return "", fmt.Errorf("hour start must be \"00\" or \"12\", got %q", hourStart)
	}
	ym := fmt.Sprintf("%04d%02d", year, int(month))
	fname := fmt.Sprintf("%s_%s_%s_%s_%sto%sZ.nc", fileVersion, sector, ym, dayType, hourStart, hourEnd)
	return filepath.Join(ym, string(dayType), fname), nil
}

// LoadFullDay reads both half-day files for a unit and concatenates them
// along the utc_hour axis into one 24-hour dataset.
func (h *Handler) LoadFullDay(ctx context.Context, year int, month time.Month, dayType domain.DayType, sector string) (*domain.Dataset, error) {
	var halves []*domain.Dataset
	for _, hourStart := range []string{"00", "12"} {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ds, err := h.loadSingle(year, month, dayType, sector, hourStart)
		if err != nil {
			return nil, err
		}
		halves = append(halves, ds)
	}
	return concatHours(halves[0], halves[1])
}

// loadSingle reads one half-day file plus its extra-id companions, merges
// the companions' additional variables, and applies the species selection.
func (h *Handler) loadSingle(year int, month time.Month, dayType domain.DayType, sector, hourStart string) (*domain.Dataset, error) {
	rel, err := relPath(sector, year, month, dayType, hourStart)
	if err != nil {
		return nil, err
	}

	main, err := h.readFile(filepath.Join(h.baseDir, rel), hourStart)
	if err != nil {
		return nil, err
	}

	for _, id := range h.extraIDs {
		extra, err := h.readFile(filepath.Join(h.baseDir, id, rel), hourStart)
		if err != nil {
			return nil, fmt.Errorf("extra dataset %s: %w", id, err)
		}
		if err := checkExtraAgainstMain(main, extra); err != nil {
			return nil, fmt.Errorf("extra dataset %s: %w", id, err)
		}
		for _, f := range extra.Fields {
			if main.Field(f.Name) == nil {
				main.Fields = append(main.Fields, f)
			}
		}
	}

	if len(h.species) > 0 {
		selected := make([]*domain.Field, 0, len(h.species))
		for _, name := range h.species {
			f := main.Field(name)
			if f == nil {
				return nil, fmt.Errorf("%s: species %s not present", rel, name)
			}
			selected = append(selected, f)
		}
		main.Fields = selected
	}

	main.Attrs.Sector = sector
	main.Attrs.Year = year
	main.Attrs.Month = month
	main.Attrs.DayType = dayType
	return main, nil
}

// readFile parses one base file into a Dataset. hourStart anchors the
// utc_hour coordinate: files starting at 12Z hold hours 12..23.
func (h *Handler) readFile(path, hourStart string) (*domain.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	nc, err := cdf.Open(f)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	spec, extra, err := readGlobalAttrs(nc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	ds := &domain.Dataset{
		Attrs: domain.Attrs{Title: extra["TITLE"], Extra: extra},
	}
	delete(extra, "TITLE")

	hourOffset := 0
	if hourStart == "12" {
		hourOffset = 12
	}

	for _, name := range nc.Header.Variables() {
		dims := nc.Header.Dimensions(name)
		lengths := nc.Header.Lengths(name)

		switch name {
		case "XLAT", "XLONG":
			mesh, ny, nx, err := readMesh(nc, name)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			if name == "XLAT" {
				ds.Lat2D = mesh
			} else {
				ds.Lon2D = mesh
			}
			spec.NY, spec.NX = ny, nx
			continue
		case "Times", "Time", "utc_hour":
			continue
		}

		if len(dims) < 2 || dims[len(dims)-1] != "west_east" || dims[len(dims)-2] != "south_north" {
			continue
		}

		data, err := readVar(nc, name, lengths)
		if err != nil {
			return nil, fmt.Errorf("%s: read %s: %w", path, name, err)
		}
		renamed := make([]string, len(dims))
		for i, d := range dims {
			renamed[i] = renameDim(d)
		}
		for i, d := range renamed {
			if d == "utc_hour" && len(ds.UTCHours) == 0 {
				for hr := 0; hr < lengths[i]; hr++ {
					ds.UTCHours = append(ds.UTCHours, hourOffset+hr)
				}
			}
			if d == "zlevel" {
				ds.ZLevels = lengths[i]
			}
		}
		ds.Fields = append(ds.Fields, &domain.Field{
			Name:  name,
			Units: attrString(nc, name, "units"),
			Dims:  renamed,
			Data:  data,
		})
	}

	if len(ds.Fields) == 0 {
		return nil, fmt.Errorf("%s: no gridded variables found", path)
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	ds.Grid = spec
	return ds, nil
}

// readGlobalAttrs extracts the projection attributes into a grid spec and
// everything else into a string map. NX and NY are filled in later from the
// coordinate meshes.
func readGlobalAttrs(nc *cdf.File) (domain.NativeGridSpec, map[string]string, error) {
	spec := domain.NativeGridSpec{
		Projection: attrString(nc, "", "MAP_PROJ_CHAR"),
	}
	for _, g := range []struct {
		name string
		dst  *float64
	}{
		{"TRUELAT1", &spec.TrueLat1},
		{"TRUELAT2", &spec.TrueLat2},
		{"MOAD_CEN_LAT", &spec.MoadCenLat},
		{"STAND_LON", &spec.StandLon},
		{"CEN_LAT", &spec.CenLat},
		{"CEN_LON", &spec.CenLon},
		{"DX", &spec.DX},
		{"DY", &spec.DY},
	} {
		v, ok := attrFloat(nc, "", g.name)
		if !ok {
			return spec, nil, fmt.Errorf("missing global attribute %s", g.name)
		}
		*g.dst = v
	}

	extra := make(map[string]string)
	for _, name := range nc.Header.Attributes("") {
		switch name {
		case "TRUELAT1", "TRUELAT2", "MOAD_CEN_LAT", "STAND_LON", "CEN_LAT", "CEN_LON", "DX", "DY", "MAP_PROJ_CHAR":
			continue
		}
		extra[name] = attrText(nc, "", name)
	}
	return spec, extra, nil
}

// readMesh reads a 2-D coordinate variable, tolerating a leading
// length-one time axis some archives carry.
func readMesh(nc *cdf.File, name string) ([][]float64, int, int, error) {
	lengths := nc.Header.Lengths(name)
	flat, err := readFloats(nc, name)
	if err != nil {
		return nil, 0, 0, err
	}
	if len(lengths) == 3 && lengths[0] >= 1 {
		lengths = lengths[1:]
		flat = flat[:lengths[0]*lengths[1]]
	}
	if len(lengths) != 2 {
		return nil, 0, 0, fmt.Errorf("%s: want a 2-D coordinate mesh, have %v", name, lengths)
	}
	ny, nx := lengths[0], lengths[1]
	mesh := make([][]float64, ny)
	for i := range mesh {
		mesh[i] = flat[i*nx : (i+1)*nx]
	}
	return mesh, ny, nx, nil
}

// readVar reads one variable in full into a dense array.
func readVar(nc *cdf.File, name string, lengths []int) (*sparse.DenseArray, error) {
	flat, err := readFloats(nc, name)
	if err != nil {
		return nil, err
	}
	data := sparse.ZerosDense(lengths...)
	if len(flat) != len(data.Elements) {
		return nil, fmt.Errorf("read %d values, want %d", len(flat), len(data.Elements))
	}
	copy(data.Elements, flat)
	return data, nil
}

func readFloats(nc *cdf.File, name string) ([]float64, error) {
	r := nc.Reader(name, nil, nil)
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil {
		return nil, err
	}
	switch v := buf.(type) {
	case []float32:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, nil
	case []float64:
		return v, nil
	default:
		return nil, fmt.Errorf("%s: unsupported variable type %T", name, buf)
	}
}

func renameDim(d string) string {
	switch d {
	case "Time":
		return "utc_hour"
	case "bottom_top":
		return "zlevel"
	}
	return d
}

// attrFloat reads a numeric attribute, coercing the scalar types the cdf
// library may return.
func attrFloat(nc *cdf.File, v, name string) (float64, bool) {
	switch a := nc.Header.GetAttribute(v, name).(type) {
	case []float32:
		if len(a) > 0 {
			return float64(a[0]), true
		}
	case []float64:
		if len(a) > 0 {
			return a[0], true
		}
	case []int32:
		if len(a) > 0 {
			return float64(a[0]), true
		}
	}
	return 0, false
}

// attrString reads a string attribute, returning "" when absent or
// non-textual.
func attrString(nc *cdf.File, v, name string) string {
	if s, ok := nc.Header.GetAttribute(v, name).(string); ok {
		return s
	}
	return ""
}

// attrText renders any attribute as text, for carrying unrecognized
// metadata through as strings.
func attrText(nc *cdf.File, v, name string) string {
	a := nc.Header.GetAttribute(v, name)
	if s, ok := a.(string); ok {
		return s
	}
	return fmt.Sprint(a)
}

// checkExtraAgainstMain verifies an auxiliary dataset shares the main
// dataset's grid, hours, and levels, and that variables present in both
// have identical shapes. Mismatches mean the archive trees are out of sync.
func checkExtraAgainstMain(main, extra *domain.Dataset) error {
	if main.Grid.Signature() != extra.Grid.Signature() {
		return fmt.Errorf("grid mismatch: %s vs %s", main.Grid.Signature(), extra.Grid.Signature())
	}
	if len(main.UTCHours) != len(extra.UTCHours) {
		return fmt.Errorf("hour mismatch: %v vs %v", main.UTCHours, extra.UTCHours)
	}
	for i := range main.UTCHours {
		if main.UTCHours[i] != extra.UTCHours[i] {
			return fmt.Errorf("hour mismatch: %v vs %v", main.UTCHours, extra.UTCHours)
		}
	}
	if main.ZLevels != extra.ZLevels {
		return fmt.Errorf("zlevel mismatch: %d vs %d", main.ZLevels, extra.ZLevels)
	}
	for _, mf := range main.Fields {
		ef := extra.Field(mf.Name)
		if ef == nil {
			continue
		}
		if len(mf.Data.Shape) != len(ef.Data.Shape) {
			return &domain.ShapeMismatchError{Field: mf.Name, Want: mf.Data.Shape, Got: ef.Data.Shape}
		}
		for i := range mf.Data.Shape {
			if mf.Data.Shape[i] != ef.Data.Shape[i] {
				return &domain.ShapeMismatchError{Field: mf.Name, Want: mf.Data.Shape, Got: ef.Data.Shape}
			}
		}
	}
	return nil
}

// concatHours joins two half-day datasets along the leading utc_hour axis.
// Both halves must carry the same fields on the same grid, in the same
// order, with disjoint hours.
func concatHours(a, b *domain.Dataset) (*domain.Dataset, error) {
	if a.Grid.Signature() != b.Grid.Signature() {
		return nil, fmt.Errorf("cannot concatenate datasets on different grids")
	}
	if len(a.Fields) != len(b.Fields) {
		return nil, fmt.Errorf("cannot concatenate: %d fields vs %d", len(a.Fields), len(b.Fields))
	}
	seen := make(map[int]bool, len(a.UTCHours))
	for _, hr := range a.UTCHours {
		seen[hr] = true
	}
	for _, hr := range b.UTCHours {
		if seen[hr] {
			return nil, fmt.Errorf("cannot concatenate: hour %d present in both halves", hr)
		}
	}

	out := &domain.Dataset{
		Attrs:    a.Attrs,
		UTCHours: append(append([]int{}, a.UTCHours...), b.UTCHours...),
		ZLevels:  a.ZLevels,
		Lat2D:    a.Lat2D,
		Lon2D:    a.Lon2D,
		Grid:     a.Grid,
	}
	for i, af := range a.Fields {
		bf := b.Fields[i]
		if af.Name != bf.Name {
			return nil, fmt.Errorf("cannot concatenate: field order differs (%s vs %s)", af.Name, bf.Name)
		}
		if len(af.Dims) == 0 || af.Dims[0] != "utc_hour" {
			return nil, fmt.Errorf("field %s: leading axis is not utc_hour", af.Name)
		}
		shape := append([]int{af.Data.Shape[0] + bf.Data.Shape[0]}, af.Data.Shape[1:]...)
		data := sparse.ZerosDense(shape...)
		n := copy(data.Elements, af.Data.Elements)
		copy(data.Elements[n:], bf.Data.Elements)
		out.Fields = append(out.Fields, &domain.Field{
			Name:  af.Name,
			Units: af.Units,
			Dims:  af.Dims,
			Data:  data,
		})
	}
	return out, nil
}
