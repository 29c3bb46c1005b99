// Package domain models GRA2PES gridded emissions data and the rules for
// harmonizing it.
//
// # Data Source
//
// GRA2PES (Greenhouse gas And Air Pollutants Emissions System) publishes
// gridded anthropogenic emissions for the continental US as NetCDF archives,
// one per (sector, year-month), available at
// https://data.nist.gov/od/ds/mds2-3520/. An upstream collector downloads
// and extracts the archives into the "base" directory tree that this
// service reads; download and extraction are outside this service's scope.
//
// # Grid Conventions
//
// Base files are on a Lambert Conformal Conic (LCC) grid with the earth
// modeled as a perfect sphere of radius 6,370,000 m (the WRF convention).
// The projection is described by global attributes:
//
//	MAP_PROJ_CHAR  projection family; must be "Lambert Conformal"
//	TRUELAT1/2     the two standard parallels
//	MOAD_CEN_LAT   latitude of the cone's reference point
//	STAND_LON      longitude of the cone's reference point
//	CEN_LAT/LON    geographic coordinates of the domain center
//	DX, DY         grid spacing in meters
//
// Cell-center coordinates come from the XLAT/XLONG variables in the file
// and are never re-derived from the projection, so projection error is not
// compounded. Cell boundaries are derived: an (ny+1, nx+1) mesh offset half
// a cell from the domain corner.
//
// # Time Conventions
//
// To save storage, GRA2PES does not publish per-date data. Each month is
// split into three day-type buckets sharing one diurnal profile each:
//
//	weekdy  Monday through Friday
//	satdy   Saturday
//	sundy   Sunday
//
// and each (sector, month, day-type) combination is stored as two half-day
// files covering UTC hours 00-11 and 12-23. Reconstructing a real calendar
// timeline means classifying every date of the month into its bucket and
// attaching that bucket's hourly profile; see the temporal package.
//
// # Attribute Pruning
//
// Regridding invalidates most source metadata (geodetic extents, corner
// coordinates, projection constants). After a regrid only an explicit
// allow-list survives: sector, year, month, day_type, title, regrid_method.
// Everything else is dropped rather than carried stale; provenance
// (git_hash, processed_at) is re-stamped at write time.
package domain
