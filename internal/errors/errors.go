package errors

import (
	"fmt"

	crdb "github.com/cockroachdb/errors"
)

// Exit codes for the autobackup CLI.
const (
	// ExitSuccess indicates every workstation was backed up without errors.
	ExitSuccess = 0

	// ExitPartial indicates the run completed but at least one workstation
	// or file failed.
	ExitPartial = 1

	// ExitUser indicates the run could not start because of user input
	// (missing or malformed configuration, invalid flags).
	ExitUser = 2

	// ExitSystem indicates a system-related failure (unwritable destination,
	// I/O, interruption).
	ExitSystem = 3
)

// ErrPartialFailure indicates a run finished with failed entries or files.
var ErrPartialFailure = crdb.New("backup completed with failures")

// ExitError carries the process exit code for err and a one-line
// suggestion printed under the error message.
type ExitError struct {
	Err        error
	Code       int
	Suggestion string
}

// NewExitError returns an ExitError without a suggestion. err may be nil.
func NewExitError(err error, code int) *ExitError {
	return &ExitError{Err: err, Code: code}
}

// NewUserError creates an ExitError with ExitUser code and a suggestion.
func NewUserError(err error, suggestion string) *ExitError {
	return &ExitError{
		Err:        err,
		Code:       ExitUser,
		Suggestion: suggestion,
	}
}

// NewSystemError creates an ExitError with ExitSystem code and a suggestion.
func NewSystemError(err error, suggestion string) *ExitError {
	return &ExitError{
		Err:        err,
		Code:       ExitSystem,
		Suggestion: suggestion,
	}
}

// NewConfigError returns an ExitUser error for a settings or workstation
// file problem. A hint attached with [WithHint] becomes the suggestion;
// otherwise the user is pointed at 'autobackup check'.
func NewConfigError(err error) *ExitError {
	suggestion := crdb.FlattenHints(err)
	if suggestion == "" {
		suggestion = "Run: autobackup check"
	}
	return &ExitError{
		Err:        err,
		Code:       ExitUser,
		Suggestion: suggestion,
	}
}

// NewPartialError creates an ExitError with ExitPartial code reporting how
// many workstations failed.
func NewPartialError(failed, total int) *ExitError {
	return &ExitError{
		Err:        crdb.Wrapf(ErrPartialFailure, "%d of %d workstation(s) reported failures", failed, total),
		Code:       ExitPartial,
		Suggestion: "Run: autobackup history --limit 1",
	}
}

// Error returns the error message from the underlying error.
// If the underlying error is nil, it returns a generic message with the exit code.
func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit code %d", e.Code)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error, enabling errors.Is and errors.As
// to examine the error chain.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode returns the process exit code for err. Errors that are not an
// *ExitError map to ExitSystem; nil maps to ExitSuccess.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if crdb.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitSystem
}

// Suggestion returns the suggestion of the first *ExitError in the chain.
// Without one, hints attached with [WithHint] are returned.
func Suggestion(err error) string {
	var exitErr *ExitError
	if crdb.As(err, &exitErr) && exitErr.Suggestion != "" {
		return exitErr.Suggestion
	}
	return crdb.FlattenHints(err)
}
