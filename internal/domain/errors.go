package domain

import "fmt"

// UnsupportedProjectionError reports a base file whose declared projection
// family is not Lambert Conformal. The grid math assumes a spherical LCC
// projection, so anything else is a configuration problem, never a silent
// default.
type UnsupportedProjectionError struct {
	Value string // the MAP_PROJ_CHAR attribute as found in the file
}

func (e *UnsupportedProjectionError) Error() string {
	if e.Value == "" {
		return "no map projection declared in dataset"
	}
	return fmt.Sprintf("unsupported map projection %q (only \"Lambert Conformal\" is supported)", e.Value)
}

// OverwriteGuardError reports that a target output file already exists.
// Outputs are never silently overwritten; a re-run must be pointed at a
// fresh output tree or the stale file removed by hand.
type OverwriteGuardError struct {
	Path string
}

func (e *OverwriteGuardError) Error() string {
	return fmt.Sprintf("output %s already exists, refusing to overwrite", e.Path)
}

// ResourceError reports insufficient free space on the output filesystem.
// It is raised before any expensive work begins.
type ResourceError struct {
	Path     string
	Free     uint64 // bytes currently free
	Required uint64 // bytes required by configuration
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("insufficient space on filesystem containing %s: %d bytes free, %d required",
		e.Path, e.Free, e.Required)
}

// ShapeMismatchError reports a field whose array shape does not match the
// grid it is being regridded between.
type ShapeMismatchError struct {
	Field string
	Want  []int
	Got   []int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("field %s: shape %v does not match expected %v", e.Field, e.Got, e.Want)
}
