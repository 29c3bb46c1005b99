package domain

import (
	"fmt"
	"time"
)

// DayType is one of the three weekday classes GRA2PES uses to share a single
// diurnal profile across all days in the class. The string values are the
// codes that appear in base file names and output directory paths.
type DayType string

const (
	Weekday  DayType = "weekdy" // Monday through Friday
	Saturday DayType = "satdy"
	Sunday   DayType = "sundy"
)

// DayTypes lists all day-type buckets in their conventional order.
var DayTypes = []DayType{Weekday, Saturday, Sunday}

// DayTypeFor classifies a calendar date into its day-type bucket. This is
// the single weekday-to-bucket mapping; both temporal reconstruction and
// file naming go through it.
func DayTypeFor(t time.Time) DayType {
	switch t.Weekday() {
	case time.Saturday:
		return Saturday
	case time.Sunday:
		return Sunday
	default:
		return Weekday
	}
}

// ParseDayType validates a day-type code from configuration or a path.
func ParseDayType(s string) (DayType, error) {
	switch DayType(s) {
	case Weekday, Saturday, Sunday:
		return DayType(s), nil
	}
	return "", fmt.Errorf("unknown day type %q (want weekdy, satdy or sundy)", s)
}
