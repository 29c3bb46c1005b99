package pipeline

import (
	"fmt"
	"time"

	"github.com/couchcryptid/emissions-regrid/internal/domain"
	"github.com/couchcryptid/emissions-regrid/internal/temporal"
)

// Unit is one independently processable work item: the emissions of one
// sector for one (year, month, day-type) combination.
type Unit struct {
	Year    int
	Month   time.Month
	DayType domain.DayType
	Sector  string
}

func (u Unit) String() string {
	return fmt.Sprintf("%04d-%02d/%s/%s", u.Year, int(u.Month), u.DayType, u.Sector)
}

// EnumerateUnits expands the configured years, months, day types, and
// sectors into the full unit list, ordered year, month, day-type, sector.
func EnumerateUnits(years []int, months []time.Month, dayTypes []domain.DayType, sectors []string) []Unit {
	units := make([]Unit, 0, len(years)*len(months)*len(dayTypes)*len(sectors))
	for _, y := range years {
		for _, m := range months {
			for _, dt := range dayTypes {
				for _, s := range sectors {
					units = append(units, Unit{Year: y, Month: m, DayType: dt, Sector: s})
				}
			}
		}
	}
	return units
}

// UnitsForRange expands a calendar date range into the units covering it:
// only the (year, month, day-type) combinations that actually occur between
// start and end, crossed with the sectors. A range ending mid-month yields
// only the day types present in the covered days.
func UnitsForRange(start, end time.Time, sectors []string) []Unit {
	combos := temporal.UniqueYearMonthDayTypes(start, end)
	units := make([]Unit, 0, len(combos)*len(sectors))
	for _, c := range combos {
		for _, s := range sectors {
			units = append(units, Unit{Year: c.Year, Month: c.Month, DayType: c.DayType, Sector: s})
		}
	}
	return units
}

// Completion describes one successfully written unit, published to
// downstream consumers.
type Completion struct {
	Year        int            `json:"year"`
	Month       int            `json:"month"`
	DayType     domain.DayType `json:"day_type"`
	Sector      string         `json:"sector"`
	Path        string         `json:"path"`
	Fields      int            `json:"fields"`
	CompletedAt time.Time      `json:"completed_at"`
}
