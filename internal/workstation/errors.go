package workstation

import (
	"fmt"

	"github.com/benoistlaurent/autobackup/internal/errors"
)

// Sentinel errors wrapped by ConfigError.
var (
	// ErrConfigNotFound indicates the workstation file does not exist.
	ErrConfigNotFound = errors.New("workstation file not found")

	// ErrMalformed indicates a line that cannot be parsed.
	ErrMalformed = errors.New("malformed workstation file")

	// ErrDuplicateName indicates two workstations share a name.
	ErrDuplicateName = errors.New("duplicate workstation name")

	// ErrInvalidEntry indicates a syntactically valid but unusable entry.
	ErrInvalidEntry = errors.New("invalid workstation entry")
)

// ConfigError reports a problem in a workstation file.
type ConfigError struct {
	Path string // File being loaded, empty when parsing a bare reader
	Line int    // 1-based line number, 0 when unknown
	Err  error
}

func (e *ConfigError) Error() string {
	switch {
	case e.Path == "" && e.Line == 0:
		return e.Err.Error()
	case e.Path == "":
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	case e.Line == 0:
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	default:
		return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
	}
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func lineError(path string, line int, sentinel error, format string, args ...any) *ConfigError {
	return &ConfigError{Path: path, Line: line, Err: errors.Wrapf(sentinel, format, args...)}
}

// withPath fills in the file path of a ConfigError produced without one.
func withPath(err error, path string) error {
	var ce *ConfigError
	if errors.As(err, &ce) && ce.Path == "" {
		ce.Path = path
	}
	return err
}
