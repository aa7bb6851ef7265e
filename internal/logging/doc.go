// Package logging builds the slog loggers used by autobackup.
//
// A backup usually runs unattended from cron, so output goes to two places:
// a console handler on stderr that cron mails to the operator, and an
// optional JSON log file that keeps a per-file trail of every run.
//
//	logger, err := logging.Setup(logging.Options{
//		Level:   logging.LevelFromVerbosity(2),
//		Format:  logging.FormatText,
//		Console: os.Stderr,
//		File:    f,
//	})
//
// Records carrying a "workstation" attribute are prefixed with the
// workstation name in text output, so the interleaved output of concurrent
// workers stays readable:
//
//	02:00:01 WARN  alice: source failed source=/home/alice/mail error="permission denied"
//
// Loggers travel through context with [NewContext] and [FromContext]. Tests
// use [ForTest] so log lines only show up for failing tests.
package logging
