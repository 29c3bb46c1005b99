// Command validate performs integrity checks on a tree of regridded output
// files: file presence, dimension and coordinate structure, metadata
// attributes, and data sanity. It exits non-zero if any check fails, so it
// can gate a batch run in CI or before archive ingestion.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -out-dir /data/regridded \
//	  -year 2021 -month 6 \
//	  -sectors COMM,EGU \
//	  -day-types weekdy,satdy,sundy
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/ctessum/cdf"

	"github.com/couchcryptid/emissions-regrid/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	outDir := flag.String("out-dir", "", "root of the regridded output tree")
	year := flag.Int("year", 2021, "year to validate")
	month := flag.Int("month", 6, "month to validate")
	sectorsFlag := flag.String("sectors", "", "comma-separated sector codes (required)")
	dayTypesFlag := flag.String("day-types", "weekdy,satdy,sundy", "comma-separated day types")
	flag.Parse()

	if *outDir == "" || *sectorsFlag == "" {
		flag.Usage()
		os.Exit(1)
	}

	sectors := strings.Split(*sectorsFlag, ",")
	var dayTypes []domain.DayType
	for _, s := range strings.Split(*dayTypesFlag, ",") {
		dt, err := domain.ParseDayType(s)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		dayTypes = append(dayTypes, dt)
	}

	if code := run(*outDir, *year, *month, sectors, dayTypes); code != 0 {
		os.Exit(code)
	}
}

func run(outDir string, year, month int, sectors []string, dayTypes []domain.DayType) int {
	var phases []*phase
	for _, dt := range dayTypes {
		for _, sector := range sectors {
			path := filepath.Join(outDir,
				fmt.Sprintf("%04d", year), fmt.Sprintf("%02d", month), string(dt),
				sector+"_regridded.nc")
			p := &phase{name: fmt.Sprintf("%s/%s", dt, sector)}
			validateFile(p, path, year, month, dt, sector)
			phases = append(phases, p)
		}
	}

	failed := 0
	for _, p := range phases {
		if p.passed() {
			fmt.Printf("PASS %s\n", p.name)
			continue
		}
		failed++
		fmt.Printf("FAIL %s\n", p.name)
		for _, e := range p.errors {
			fmt.Printf("  - %s\n", e)
		}
	}
	fmt.Printf("%d/%d units passed\n", len(phases)-failed, len(phases))
	if failed > 0 {
		return 1
	}
	return 0
}

func validateFile(p *phase, path string, year, month int, dayType domain.DayType, sector string) {
	f, err := os.Open(path)
	if err != nil {
		p.errorf("missing output: %v", err)
		return
	}
	defer f.Close()

	nc, err := cdf.Open(f)
	if err != nil {
		p.errorf("unreadable NetCDF: %v", err)
		return
	}

	checkAttrs(p, nc, year, month, dayType, sector)

	lat := checkCoord(p, nc, "lat")
	lon := checkCoord(p, nc, "lon")

	hours := nc.Header.Lengths("utc_hour")
	if len(hours) != 1 || hours[0] != 24 {
		p.errorf("utc_hour: want 24 hours, have %v", hours)
	}

	for _, name := range nc.Header.Variables() {
		switch name {
		case "lat", "lon", "utc_hour":
			continue
		}
		checkField(p, nc, name, len(lat), len(lon))
	}
}

func checkAttrs(p *phase, nc *cdf.File, year, month int, dayType domain.DayType, sector string) {
	if got := attrString(nc, "sector"); got != sector {
		p.errorf("attribute sector: want %q, have %q", sector, got)
	}
	if got := attrString(nc, "day_type"); got != string(dayType) {
		p.errorf("attribute day_type: want %q, have %q", dayType, got)
	}
	if got, ok := attrInt(nc, "year"); !ok || got != year {
		p.errorf("attribute year: want %d, have %v", year, got)
	}
	if got, ok := attrInt(nc, "month"); !ok || got != month {
		p.errorf("attribute month: want %d, have %v", month, got)
	}
	for _, name := range []string{"regrid_method", "git_hash", "processed_at"} {
		if attrString(nc, name) == "" {
			p.errorf("attribute %s: missing or empty", name)
		}
	}
}

// checkCoord verifies a 1-D coordinate is present, ascending, and uniformly
// spaced, returning its values.
func checkCoord(p *phase, nc *cdf.File, name string) []float64 {
	lens := nc.Header.Lengths(name)
	if len(lens) != 1 || lens[0] < 2 {
		p.errorf("coordinate %s: want a 1-D axis with 2+ points, have %v", name, lens)
		return nil
	}
	r := nc.Reader(name, nil, nil)
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil {
		p.errorf("coordinate %s: %v", name, err)
		return nil
	}
	vals, ok := buf.([]float64)
	if !ok {
		p.errorf("coordinate %s: want float64 values, have %T", name, buf)
		return nil
	}
	step := vals[1] - vals[0]
	for i := 1; i < len(vals); i++ {
		d := vals[i] - vals[i-1]
		if d <= 0 || math.Abs(d-step) > 1e-9 {
			p.errorf("coordinate %s: not uniformly ascending at index %d", name, i)
			return vals
		}
	}
	return vals
}

// checkField verifies a data variable's trailing spatial shape matches the
// coordinates and that it holds at least one finite value, with no finite
// negatives.
func checkField(p *phase, nc *cdf.File, name string, nlat, nlon int) {
	lens := nc.Header.Lengths(name)
	if len(lens) < 2 {
		p.errorf("field %s: want 2+ dimensions, have %v", name, lens)
		return
	}
	if nlat > 0 && nlon > 0 && (lens[len(lens)-2] != nlat || lens[len(lens)-1] != nlon) {
		p.errorf("field %s: spatial shape %v does not match coordinates (%d, %d)",
			name, lens[len(lens)-2:], nlat, nlon)
	}

	r := nc.Reader(name, nil, nil)
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil {
		p.errorf("field %s: %v", name, err)
		return
	}
	vals, ok := buf.([]float32)
	if !ok {
		p.errorf("field %s: want float32 values, have %T", name, buf)
		return
	}
	finite := 0
	for _, v := range vals {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		finite++
		if f < 0 {
			p.errorf("field %s: negative value %g", name, f)
			return
		}
	}
	if finite == 0 {
		p.errorf("field %s: no finite values", name)
	}
}

func attrString(nc *cdf.File, name string) string {
	if s, ok := nc.Header.GetAttribute("", name).(string); ok {
		return s
	}
	return ""
}

func attrInt(nc *cdf.File, name string) (int, bool) {
	if v, ok := nc.Header.GetAttribute("", name).([]int32); ok && len(v) > 0 {
		return int(v[0]), true
	}
	return 0, false
}
