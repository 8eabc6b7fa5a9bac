// Package rundir reads the instrument-written metadata at the root of a
// sequencing run directory.
//
// It knows the run directory layout (metadata, info, marker, and completion
// status files), the ordered platform table used to identify which
// instrument wrote a run, and how to extract the run identifier. Failures are
// returned as services.Failure values tagged with services.ErrNotFound,
// services.ErrParse, or services.ErrValidation so callers can classify a
// directory as incomplete or in error without string matching.
package rundir
