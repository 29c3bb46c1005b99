// Package temporal reconstructs a continuous calendar timeline from the
// (year, month, day-type, utc-hour) scheme the source data is stored in.
//
// The source shares one diurnal profile per day-type bucket per month.
// Expansion enumerates every calendar date of a month, classifies it into
// its bucket, and attaches the bucket's hourly profile, yielding exactly
// one point per (date, hour) pair.
package temporal

import (
	"fmt"
	"sort"
	"time"

	"github.com/couchcryptid/emissions-regrid/internal/domain"
)

// Point is one reconstructed timestamp together with the bucket and hour it
// draws its data from.
type Point struct {
	Time    time.Time
	DayType domain.DayType
	UTCHour int
}

// Expand produces the continuous timeline for one month: one point per
// (calendar date, hour) pair, sorted ascending. hours is the set of
// utc-hour coordinates present in the source (0..23 for full days).
// Every date of the month lands in exactly one bucket, so the result has
// daysInMonth*len(hours) points.
func Expand(year int, month time.Month, hours []int) ([]Point, error) {
	if len(hours) == 0 {
		return nil, fmt.Errorf("expand %d-%02d: no utc hours given", year, month)
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	points := make([]Point, 0, 31*len(hours))
	for d := first; d.Month() == month; d = d.AddDate(0, 0, 1) {
		dt := domain.DayTypeFor(d)
		for _, h := range hours {
			if h < 0 || h > 23 {
				return nil, fmt.Errorf("expand %d-%02d: utc hour %d out of range", year, month, h)
			}
			points = append(points, Point{
				Time:    time.Date(year, month, d.Day(), h, 0, 0, 0, time.UTC),
				DayType: dt,
				UTCHour: h,
			})
		}
	}
	return sortAndCheck(points)
}

// Concat merges per-month series into one globally sorted timeline. A
// duplicate timestamp means two bucket expansions claimed the same
// (date, hour), which is a classification bug; it fails rather than
// deduplicate.
func Concat(series ...[]Point) ([]Point, error) {
	var all []Point
	for _, s := range series {
		all = append(all, s...)
	}
	return sortAndCheck(all)
}

func sortAndCheck(points []Point) ([]Point, error) {
	sort.Slice(points, func(i, j int) bool { return points[i].Time.Before(points[j].Time) })
	for i := 1; i < len(points); i++ {
		if points[i].Time.Equal(points[i-1].Time) {
			return nil, fmt.Errorf("duplicate timestamp %s in reconstructed series", points[i].Time.Format(time.RFC3339))
		}
	}
	return points, nil
}

// Values maps a reconstructed timeline onto per-bucket hourly profiles,
// producing one value per point. Each profile is indexed by utc hour and
// must cover every hour the points reference.
func Values(points []Point, profiles map[domain.DayType][]float64) ([]float64, error) {
	out := make([]float64, len(points))
	for i, p := range points {
		prof, ok := profiles[p.DayType]
		if !ok {
			return nil, fmt.Errorf("no profile for day type %s", p.DayType)
		}
		if p.UTCHour >= len(prof) {
			return nil, fmt.Errorf("profile for %s has %d hours, need hour %d", p.DayType, len(prof), p.UTCHour)
		}
		out[i] = prof[p.UTCHour]
	}
	return out, nil
}

// YearMonthDayType identifies one stored unit of source data.
type YearMonthDayType struct {
	Year    int
	Month   time.Month
	DayType domain.DayType
}

// UniqueYearMonthDayTypes returns the distinct (year, month, day-type)
// combinations needed to cover every date in [start, end], sorted by year,
// month, then day-type code. This is how a date range maps back onto the
// stored archive.
func UniqueYearMonthDayTypes(start, end time.Time) []YearMonthDayType {
	seen := make(map[YearMonthDayType]bool)
	var combos []YearMonthDayType
	for d := start.UTC().Truncate(24 * time.Hour); !d.After(end.UTC()); d = d.AddDate(0, 0, 1) {
		c := YearMonthDayType{Year: d.Year(), Month: d.Month(), DayType: domain.DayTypeFor(d)}
		if !seen[c] {
			seen[c] = true
			combos = append(combos, c)
		}
	}
	sort.Slice(combos, func(i, j int) bool {
		if combos[i].Year != combos[j].Year {
			return combos[i].Year < combos[j].Year
		}
		if combos[i].Month != combos[j].Month {
			return combos[i].Month < combos[j].Month
		}
		return combos[i].DayType < combos[j].DayType
	})
	return combos
}
