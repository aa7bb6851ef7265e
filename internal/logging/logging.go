package logging

import (
	"io"
	"log/slog"
	"testing"

	"github.com/benoistlaurent/autobackup/internal/errors"
)

// Format selects the console output format.
type Format string

const (
	// FormatText is the aligned, optionally colored console format.
	FormatText Format = "text"
	// FormatJSON writes one JSON object per record.
	FormatJSON Format = "json"
)

// LevelTrace sits below slog.LevelDebug and is used for per-file decisions.
const LevelTrace = slog.LevelDebug - 4

// FileLevel is the most a log file filters: it always keeps info records,
// even when the console only shows warnings.
const FileLevel = slog.LevelInfo

// ParseFormat validates a --log-format value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatText, FormatJSON:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", errors.Newf("unknown log format %q", s)
	}
}

// LevelFromVerbosity maps the count of -v flags to a log level.
// Zero logs warnings and errors only.
func LevelFromVerbosity(v int) slog.Level {
	switch {
	case v <= 0:
		return slog.LevelWarn
	case v == 1:
		return slog.LevelInfo
	case v == 2:
		return slog.LevelDebug
	default:
		return LevelTrace
	}
}

// VerbosityFromEnv maps an AUTOBACKUP_DEBUG value to a -v count:
// "1" or "true" is debug, "2" is trace. Anything else is zero.
func VerbosityFromEnv(val string) int {
	switch val {
	case "1", "true":
		return 2
	case "2":
		return 3
	default:
		return 0
	}
}

// Options configures [Setup].
type Options struct {
	// Level is the console level.
	Level slog.Level

	// Format is the console format.
	Format Format

	// Console receives human-facing output, usually stderr.
	Console io.Writer

	// File, when set, receives every record at [FileLevel] or below as JSON.
	File io.Writer
}

// Setup builds the logger described by opts.
func Setup(opts Options) (*slog.Logger, error) {
	console := opts.Console
	if console == nil {
		console = io.Discard
	}

	consoleOpts := &slog.HandlerOptions{Level: opts.Level}
	var handler slog.Handler
	switch opts.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(console, consoleOpts)
	case FormatText, "":
		handler = NewHandler(console, consoleOpts)
	default:
		return nil, errors.Newf("unknown log format %q", opts.Format)
	}

	if opts.File != nil {
		handler = tee{handler, slog.NewJSONHandler(opts.File, &slog.HandlerOptions{
			Level: min(opts.Level, FileLevel),
		})}
	}

	return slog.New(handler), nil
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type testWriter struct {
	t *testing.T
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	n := len(p)
	if n > 0 && p[n-1] == '\n' {
		p = p[:n-1]
	}
	w.t.Log(string(p))
	return n, nil
}

// ForTest returns a debug logger that writes through t.Log.
func ForTest(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(NewHandler(testWriter{t: t}, &slog.HandlerOptions{Level: LevelTrace}))
}
