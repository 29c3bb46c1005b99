// Command genbase generates a synthetic base-file archive for local
// development and integration testing. It writes half-day NetCDF files in
// the real archive layout, on a small Lambert grid, with smooth synthetic
// emission fields, so the full regrid pipeline can run without the
// multi-terabyte upstream dataset.
//
// Usage:
//
//	go run ./cmd/genbase \
//	  -base-dir /tmp/base \
//	  -year 2021 -month 6 \
//	  -sectors COMM,EGU \
//	  -nx 40 -ny 30
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/ctessum/sparse"

	"github.com/couchcryptid/emissions-regrid/internal/adapter/netcdf"
	"github.com/couchcryptid/emissions-regrid/internal/domain"
	"github.com/couchcryptid/emissions-regrid/internal/grid"
)

var species = []string{"CO2", "CO", "NOX", "SO2"}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	baseDir := flag.String("base-dir", "", "directory to write the synthetic archive into")
	year := flag.Int("year", 2021, "year to generate")
	month := flag.Int("month", 6, "month to generate")
	sectorsFlag := flag.String("sectors", "COMM,EGU", "comma-separated sector codes")
	nx := flag.Int("nx", 40, "west-east cell count")
	ny := flag.Int("ny", 30, "south-north cell count")
	zlevels := flag.Int("zlevels", 2, "vertical level count")
	flag.Parse()

	if *baseDir == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -base-dir")
	}

	sectors := strings.Split(*sectorsFlag, ",")
	for _, s := range sectors {
		if !domain.ValidSector(s) {
			return fmt.Errorf("unknown sector %q", s)
		}
	}

	// A CONUS-like grid, scaled down so generation stays fast.
	spec := domain.NativeGridSpec{
		Projection: domain.LambertProjection,
		TrueLat1:   33, TrueLat2: 45,
		MoadCenLat: 40, StandLon: -97,
		CenLat: 40, CenLon: -97,
		DX: 100000, DY: 100000,
		NX: *nx, NY: *ny,
	}

	p, err := grid.NewProjection(spec)
	if err != nil {
		return err
	}
	lat2d, lon2d, err := grid.CenterMeshes(spec, p)
	if err != nil {
		return err
	}

	files := 0
	for _, sector := range sectors {
		for _, dayType := range domain.DayTypes {
			for _, hourStart := range []string{"00", "12"} {
				ds := buildHalfDay(spec, lat2d, lon2d, sector, dayType, hourStart, *zlevels)
				path, err := netcdf.BasePath(*baseDir, sector, *year, time.Month(*month), dayType, hourStart)
				if err != nil {
					return err
				}
				if err := netcdf.WriteBase(path, ds); err != nil {
					return fmt.Errorf("write %s: %w", path, err)
				}
				files++
			}
		}
		log.Printf("%s: wrote %d day types", sector, len(domain.DayTypes))
	}

	log.Printf("wrote %d files under %s", files, *baseDir)
	return nil
}

// buildHalfDay fills one 12-hour dataset with a Gaussian blob centered on
// the domain, modulated by hour and by a per-species scale so fields are
// distinguishable in downstream checks.
func buildHalfDay(spec domain.NativeGridSpec, lat2d, lon2d [][]float64,
	sector string, dayType domain.DayType, hourStart string, zlevels int) *domain.Dataset {

	hourOffset := 0
	if hourStart == "12" {
		hourOffset = 12
	}
	hours := make([]int, 12)
	for i := range hours {
		hours[i] = hourOffset + i
	}

	ds := &domain.Dataset{
		Attrs: domain.Attrs{
			Title: fmt.Sprintf("Synthetic %s emissions (%s)", sector, dayType),
		},
		UTCHours: hours,
		ZLevels:  zlevels,
		Lat2D:    lat2d,
		Lon2D:    lon2d,
		Grid:     spec,
	}

	for si, name := range species {
		data := sparse.ZerosDense(len(hours), zlevels, spec.NY, spec.NX)
		idx := 0
		for _, hr := range hours {
			// Diurnal cycle peaking mid-afternoon UTC.
			diurnal := 1 + 0.5*math.Sin(2*math.Pi*float64(hr-6)/24)
			for z := 0; z < zlevels; z++ {
				level := 1.0 / float64(z+1)
				for j := 0; j < spec.NY; j++ {
					for i := 0; i < spec.NX; i++ {
						dy := float64(j)/float64(spec.NY-1) - 0.5
						dx := float64(i)/float64(spec.NX-1) - 0.5
						blob := math.Exp(-(dx*dx + dy*dy) / 0.08)
						data.Elements[idx] = float64(si+1) * diurnal * level * blob
						idx++
					}
				}
			}
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
