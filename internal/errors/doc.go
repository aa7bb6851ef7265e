// Package errors maps autobackup failures to process exit codes.
//
// Errors are created and wrapped through thin forwards to
// github.com/cockroachdb/errors, so stack traces and hints survive
// wrapping. [ExitError] carries the exit code and the one-line suggestion
// printed under the message.
//
// # Exit Codes
//
//   - ExitSuccess (0): every workstation was backed up
//   - ExitPartial (1): the run completed but some workstations or files failed
//   - ExitUser (2): the run could not start (configuration, flags)
//   - ExitSystem (3): system failure (unwritable destination, I/O)
//
// A hint attached deeper in the stack becomes the suggestion when the
// ExitError has none:
//
//	err = errors.WithHint(err, "Run: autobackup install --from <file>")
//	return errors.NewConfigError(err)
package errors
