package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/emissions-regrid/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	BasePath   string
	OutputPath string
	WeightsDir string

	OutGrid domain.LatLonGridSpec

	Years    []int
	Months   []time.Month
	DayTypes []domain.DayType
	Sectors  []string
	Species  []string
	ExtraIDs []string

	// Date-range mode: when set, the unit list is derived from the calendar
	// days in [StartDate, EndDate] instead of the YEARS/MONTHS/DAY_TYPES
	// cross product. Both are zero when unset.
	StartDate time.Time
	EndDate   time.Time

	SumZLevels bool
	Workers    int

	// ClipExtent, when non-nil, trims regridded outputs to this bounding
	// box before writing.
	ClipExtent *domain.Extent

	MinFreeSpace string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Completion event publishing (feature-flagged via KAFKA_BROKERS).
	KafkaBrokers         []string
	KafkaCompletionTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	basePath := os.Getenv("BASE_PATH")
	if basePath == "" {
		return nil, errors.New("BASE_PATH is required")
	}
	outputPath := os.Getenv("OUTPUT_PATH")
	if outputPath == "" {
		return nil, errors.New("OUTPUT_PATH is required")
	}
	weightsDir := envOrDefault("WEIGHTS_DIR", outputPath+"/details")

	outGrid, err := parseOutGrid()
	if err != nil {
		return nil, err
	}

	years, err := parseInts(envOrDefault("YEARS", "2021"))
	if err != nil {
		return nil, fmt.Errorf("invalid YEARS: %w", err)
	}
	monthInts, err := parseInts(envOrDefault("MONTHS", "6"))
	if err != nil {
		return nil, fmt.Errorf("invalid MONTHS: %w", err)
	}
	months := make([]time.Month, len(monthInts))
	for i, m := range monthInts {
		if m < 1 || m > 12 {
			return nil, fmt.Errorf("invalid MONTHS: month %d out of range", m)
		}
		months[i] = time.Month(m)
	}

	dayTypes, err := parseDayTypes(envOrDefault("DAY_TYPES", "weekdy,satdy,sundy"))
	if err != nil {
		return nil, err
	}

	sectors, err := parseSectors(envOrDefault("SECTORS", "all"))
	if err != nil {
		return nil, err
	}

	species := splitList(envOrDefault("SPECIES", "CO2,CO,HC01,HC02,HC14,NH3,NOX,SO2"))
	if len(species) == 0 {
		return nil, errors.New("SPECIES is required")
	}

	workers, err := parsePositiveInt("WORKERS", 4)
	if err != nil {
		return nil, err
	}

	startDate, endDate, err := parseDateRange()
	if err != nil {
		return nil, err
	}

	clipExtent, err := parseClipExtent()
	if err != nil {
		return nil, err
	}

	shutdownTimeout, err := time.ParseDuration(envOrDefault("SHUTDOWN_TIMEOUT", "10s"))
	if err != nil || shutdownTimeout <= 0 {
		return nil, errors.New("invalid SHUTDOWN_TIMEOUT")
	}

	cfg := &Config{
		BasePath:   basePath,
		OutputPath: outputPath,
		WeightsDir: weightsDir,

		OutGrid: outGrid,

		Years:    years,
		Months:   months,
		DayTypes: dayTypes,
		Sectors:  sectors,
		Species:  species,
		ExtraIDs: splitList(os.Getenv("EXTRA_IDS")),

		StartDate: startDate,
		EndDate:   endDate,

		SumZLevels: envOrDefault("SUM_ZLEVEL", "true") == "true",
		Workers:    workers,
		ClipExtent: clipExtent,

		MinFreeSpace: envOrDefault("MIN_FREE_SPACE", "1Tb"),

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		KafkaBrokers:         splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaCompletionTopic: envOrDefault("KAFKA_COMPLETION_TOPIC", "regrid-completions"),
	}

	if len(cfg.Years) == 0 {
		return nil, errors.New("YEARS is required")
	}
	if len(cfg.Months) == 0 {
		return nil, errors.New("MONTHS is required")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaCompletionTopic == "" {
		return nil, errors.New("KAFKA_BROKERS is set but KAFKA_COMPLETION_TOPIC is empty")
	}

	return cfg, nil
}

// parseDateRange reads the optional START_DATE/END_DATE pair. Setting one
// without the other is a configuration mistake.
func parseDateRange() (start, end time.Time, err error) {
	startStr, endStr := os.Getenv("START_DATE"), os.Getenv("END_DATE")
	if startStr == "" && endStr == "" {
		return time.Time{}, time.Time{}, nil
	}
	if startStr == "" || endStr == "" {
		return start, end, errors.New("START_DATE and END_DATE must be set together")
	}
	start, err = time.Parse("2006-01-02", startStr)
	if err != nil {
		return start, end, fmt.Errorf("invalid START_DATE: %w", err)
	}
	end, err = time.Parse("2006-01-02", endStr)
	if err != nil {
		return start, end, fmt.Errorf("invalid END_DATE: %w", err)
	}
	if end.Before(start) {
		return start, end, fmt.Errorf("END_DATE %s is before START_DATE %s", endStr, startStr)
	}
	return start, end, nil
}

// parseClipExtent reads the optional CLIP_EXTENT variable:
// "latMin,latMax,lonMin,lonMax" in degrees.
func parseClipExtent() (*domain.Extent, error) {
	s := os.Getenv("CLIP_EXTENT")
	if s == "" {
		return nil, nil
	}
	parts := splitList(s)
	if len(parts) != 4 {
		return nil, fmt.Errorf("invalid CLIP_EXTENT: want latMin,latMax,lonMin,lonMax, got %q", s)
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid CLIP_EXTENT: %w", err)
		}
		vals[i] = v
	}
	e := &domain.Extent{LatMin: vals[0], LatMax: vals[1], LonMin: vals[2], LonMax: vals[3]}
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("invalid CLIP_EXTENT: %w", err)
	}
	return e, nil
}

func parseOutGrid() (domain.LatLonGridSpec, error) {
	spec := domain.LatLonGridSpec{}
	for _, f := range []struct {
		name string
		def  string
		dst  *float64
	}{
		{"LAT_MIN", "25", &spec.LatMin},
		{"LAT_MAX", "55", &spec.LatMax},
		{"LON_MIN", "-130", &spec.LonMin},
		{"LON_MAX", "-65", &spec.LonMax},
		{"LAT_SPACING", "0.1", &spec.LatSpacing},
		{"LON_SPACING", "0.1", &spec.LonSpacing},
	} {
		v, err := strconv.ParseFloat(envOrDefault(f.name, f.def), 64)
		if err != nil {
			return spec, fmt.Errorf("invalid %s: %w", f.name, err)
		}
		*f.dst = v
	}
	if err := spec.Validate(); err != nil {
		return spec, err
	}
	return spec, nil
}

func parseDayTypes(s string) ([]domain.DayType, error) {
	var out []domain.DayType
	for _, part := range splitList(s) {
		dt, err := domain.ParseDayType(part)
		if err != nil {
			return nil, fmt.Errorf("invalid DAY_TYPES: %w", err)
		}
		out = append(out, dt)
	}
	if len(out) == 0 {
		return nil, errors.New("DAY_TYPES is required")
	}
	return out, nil
}

func parseSectors(s string) ([]string, error) {
	parts := splitList(s)
	if len(parts) == 1 && parts[0] == "all" {
		out := make([]string, 0, len(domain.Sectors))
		for code := range domain.Sectors {
			out = append(out, code)
		}
		sort.Strings(out)
		return out, nil
	}
	for _, p := range parts {
		if !domain.ValidSector(p) {
			return nil, fmt.Errorf("invalid SECTORS: unknown sector %q", p)
		}
	}
	return parts, nil
}

func parsePositiveInt(name string, def int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", name)
	}
	return n, nil
}

func parseInts(s string) ([]int, error) {
	var out []int
	for _, part := range splitList(s) {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envOrDefault(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}
