package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/benoistlaurent/autobackup/internal/errors"
	"github.com/benoistlaurent/autobackup/internal/schedule"
)

// Validation errors for configuration fields.
var (
	// ErrUnsupportedVersion indicates the version field is not 1.
	ErrUnsupportedVersion = errors.New("unsupported config version")

	// ErrInvalidWorkers indicates workers is below 1.
	ErrInvalidWorkers = errors.New("workers must be >= 1")

	// ErrNegative indicates a count that must not be negative.
	ErrNegative = errors.New("must be non-negative")

	// ErrInvalidDateFormat indicates a layout that does not change from one
	// day to the next or produces path separators.
	ErrInvalidDateFormat = errors.New("invalid date format")

	// ErrInvalidBandwidth indicates bandwidth_limit is not a byte size.
	ErrInvalidBandwidth = errors.New("invalid bandwidth limit")

	// ErrInvalidPath indicates a path value is malformed.
	ErrInvalidPath = errors.New("invalid path")
)

// Validate checks a Settings value.
// Returns nil if valid, or a slice of validation errors.
func Validate(cfg *Settings) []error {
	if cfg == nil {
		return []error{errors.New("config is nil")}
	}

	var errs []error

	if cfg.Version != 1 {
		errs = append(errs, &FieldError{Field: "version", Value: cfg.Version, Err: ErrUnsupportedVersion})
	}

	if cfg.Workers < 1 {
		errs = append(errs, &FieldError{Field: "workers", Value: cfg.Workers, Err: ErrInvalidWorkers})
	}

	if cfg.Retention < 0 {
		errs = append(errs, &FieldError{Field: "retention", Value: cfg.Retention, Err: ErrNegative})
	}

	if cfg.History.Keep < 0 {
		errs = append(errs, &FieldError{Field: "history.keep", Value: cfg.History.Keep, Err: ErrNegative})
	}

	if cfg.ModifyWindow < 0 {
		errs = append(errs, &FieldError{Field: "modify_window", Value: cfg.ModifyWindow, Err: ErrNegative})
	}

	if err := schedule.Validate(cfg.Schedule); err != nil {
		errs = append(errs, &FieldError{Field: "schedule", Value: cfg.Schedule, Err: err})
	}

	if err := ValidateDateFormat(cfg.DateFormat); err != nil {
		errs = append(errs, &FieldError{Field: "date_format", Value: cfg.DateFormat, Err: err})
	}

	if _, err := ParseBandwidth(cfg.BandwidthLimit); err != nil {
		errs = append(errs, &FieldError{Field: "bandwidth_limit", Value: cfg.BandwidthLimit, Err: err})
	}

	for _, p := range []struct{ field, path string }{
		{"destination", cfg.Destination},
		{"workstations", cfg.Workstations},
		{"prefix", cfg.Prefix},
		{"history.dir", cfg.History.Dir},
	} {
		if err := validatePath(p.path); err != nil {
			errs = append(errs, &PathError{Field: p.field, Path: p.path, Err: err})
		}
	}

	return errs
}

// ValidateDateFormat checks that a Go time layout names a distinct,
// separator-free directory for every day, and that the names sort in date
// order.
func ValidateDateFormat(layout string) error {
	if layout == "" {
		return errors.Wrap(ErrInvalidDateFormat, "layout is empty")
	}
	day := time.Date(2024, time.March, 9, 2, 0, 0, 0, time.UTC)
	a, b := day.Format(layout), day.AddDate(0, 0, 1).Format(layout)
	if a == b {
		return errors.Wrapf(ErrInvalidDateFormat, "%q does not change between days", layout)
	}
	if strings.ContainsAny(a, `/\`) || a == "." || a == ".." {
		return errors.Wrapf(ErrInvalidDateFormat, "%q produces %q, not a directory name", layout, a)
	}

	// Snapshots are ordered by name, so later days must sort later.
	boundaries := []time.Time{
		day,
		time.Date(2024, time.September, 30, 2, 0, 0, 0, time.UTC),
		time.Date(2024, time.December, 31, 2, 0, 0, 0, time.UTC),
	}
	for _, d := range boundaries {
		if d.Format(layout) >= d.AddDate(0, 0, 1).Format(layout) {
			return errors.Wrapf(ErrInvalidDateFormat, "%q does not sort in date order", layout)
		}
	}
	return nil
}

// validatePath checks if a path string is well-formed.
// It does not check if the path exists, only that it's syntactically valid.
func validatePath(path string) error {
	// Empty paths are valid (they mean "use default")
	if path == "" {
		return nil
	}

	// Check for null bytes which are never valid in paths
	if strings.ContainsRune(path, '\x00') {
		return ErrInvalidPath
	}

	// Clean the path and check it's not empty after cleaning
	cleaned := filepath.Clean(path)
	if cleaned == "" || cleaned == "." {
		return ErrInvalidPath
	}

	return nil
}

// FieldError represents an invalid value for a settings key.
type FieldError struct {
	Field string
	Value any
	Err   error
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// PathError represents an error for a specific path field.
type PathError struct {
	Field string
	Path  string
	Err   error
}

func (e *PathError) Error() string {
	return e.Field + ": " + e.Err.Error() + ": " + e.Path
}

func (e *PathError) Unwrap() error {
	return e.Err
}
