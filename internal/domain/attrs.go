package domain

import "time"

// Attrs carries dataset-level metadata. The named fields are the attributes
// this service reads or writes deliberately; Extra holds whatever else the
// source file carried (geodetic extents, WRF constants, corner coordinates)
// until the regrid boundary drops it.
type Attrs struct {
	Sector  string
	Year    int
	Month   time.Month
	DayType DayType
	Title   string // TITLE from the source file

	// Stamped on outputs, never read from inputs.
	RegridMethod string
	GitHash      string
	ProcessedAt  time.Time

	Extra map[string]string
}

// Pruned returns a copy containing only the attributes allowed to survive a
// regrid: sector, year, month, day_type, title and regrid_method. Extra
// attributes describe the source grid and would be stale on the output grid,
// so they are dropped wholesale. Pure function; the receiver is not
// modified.
func (a Attrs) Pruned() Attrs {
	return Attrs{
		Sector:       a.Sector,
		Year:         a.Year,
		Month:        a.Month,
		DayType:      a.DayType,
		Title:        a.Title,
		RegridMethod: a.RegridMethod,
	}
}
