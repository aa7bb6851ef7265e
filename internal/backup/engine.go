package backup

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/time/rate"

	"github.com/benoistlaurent/autobackup/internal/errors"
	"github.com/benoistlaurent/autobackup/internal/workstation"
)

// Version is recorded in manifests. The command layer sets it from the build
// version.
var Version = "dev"

// Engine copies workstations into dated snapshot directories.
type Engine struct {
	root         string
	workers      int
	retention    int
	dateLayout   string
	date         string
	modifyWindow time.Duration
	limiter      *rate.Limiter
	dryRun       bool
	logger       *slog.Logger
	now          func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithDestinationRoot sets the default destination root. Entries with their
// own destination override it.
func WithDestinationRoot(dir string) Option {
	return func(e *Engine) {
		e.root = dir
	}
}

// WithWorkers sets how many workstations are backed up concurrently.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithRetention keeps the newest n snapshots of each workstation after it is
// backed up. Zero keeps everything.
func WithRetention(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.retention = n
		}
	}
}

// WithDateLayout sets the time layout naming snapshot directories.
func WithDateLayout(layout string) Option {
	return func(e *Engine) {
		if layout != "" {
			e.dateLayout = layout
		}
	}
}

// WithDate forces the snapshot directory name instead of deriving it from
// the clock.
func WithDate(date string) Option {
	return func(e *Engine) {
		e.date = date
	}
}

// WithModifyWindow treats modification times that differ by at most d as
// equal. Useful on filesystems with coarse timestamps.
func WithModifyWindow(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.modifyWindow = d
		}
	}
}

// WithBandwidthLimit caps the aggregate copy rate in bytes per second across
// all workers. Zero means unlimited.
func WithBandwidthLimit(bytesPerSecond int64) Option {
	return func(e *Engine) {
		if bytesPerSecond <= 0 {
			e.limiter = nil
			return
		}
		burst := bytesPerSecond
		if burst > maxBurst {
			burst = maxBurst
		}
		e.limiter = rate.NewLimiter(rate.Limit(bytesPerSecond), int(burst))
	}
}

// WithDryRun reports what would be copied without writing anything.
func WithDryRun(dryRun bool) Option {
	return func(e *Engine) {
		e.dryRun = dryRun
	}
}

// WithLogger sets the logger used for progress and per-file failures.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates an Engine with the given options.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		workers:    1,
		dateLayout: DefaultDateLayout,
		logger:     slog.New(slog.DiscardHandler),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run backs up every entry and returns the run summary.
//
// A missing destination root, or one that cannot be created or written,
// fails the whole run before any entry is touched. Any other problem is
// confined to the entry or file it concerns and reported in the summary.
// When ctx is cancelled the remaining entries are marked failed and the
// summary is returned together with the context error.
func (e *Engine) Run(ctx context.Context, entries []workstation.Entry) (*Run, error) {
	started := e.now()
	run := &Run{
		ID:        uuid.NewString(),
		StartedAt: started,
		Date:      e.snapshotDate(started),
		DryRun:    e.dryRun,
		Entries:   make([]EntryOutcome, len(entries)),
	}

	roots := make([]string, len(entries))
	for i, ent := range entries {
		roots[i] = ent.Destination
		if roots[i] == "" {
			roots[i] = e.root
		}
		if roots[i] == "" {
			return nil, errors.Wrapf(ErrNoDestination, "workstation %s", ent.Name)
		}
	}

	prepared := make(map[string]bool, len(roots))
	for _, root := range roots {
		if prepared[root] {
			continue
		}
		if err := e.prepareRoot(root); err != nil {
			return nil, err
		}
		prepared[root] = true
	}

	e.logger.Info("backup started", "run", run.ID, "entries", len(entries), "date", run.Date, "dry_run", e.dryRun)

	// Entry names are unique, so no two workers share a snapshot directory
	if e.workers <= 1 || len(entries) <= 1 {
		for i := range entries {
			run.Entries[i] = e.backupEntry(ctx, entries[i], roots[i], run)
		}
	} else {
		p := pool.New().WithMaxGoroutines(e.workers)
		for i := range entries {
			p.Go(func() {
				run.Entries[i] = e.backupEntry(ctx, entries[i], roots[i], run)
			})
		}
		p.Wait()
	}

	run.FinishedAt = e.now()

	totals := run.Totals()
	e.logger.Info("backup finished",
		"run", run.ID,
		"status", run.Status(),
		"copied", totals.Copied,
		"skipped", totals.Skipped,
		"failed", totals.Failed,
		"duration", run.Duration(),
	)

	if err := ctx.Err(); err != nil {
		return run, errors.Wrap(err, "backup interrupted")
	}
	return run, nil
}

func (e *Engine) snapshotDate(t time.Time) string {
	if e.date != "" {
		return e.date
	}
	return t.Format(e.dateLayout)
}

// prepareRoot creates root if needed and proves it is writable. In dry-run
// mode nothing is created; an existing root must be a directory.
func (e *Engine) prepareRoot(root string) error {
	if e.dryRun {
		info, err := os.Stat(root)
		switch {
		case errors.Is(err, os.ErrNotExist):
			return nil
		case err != nil:
			return errors.Wrapf(ErrDestinationUnwritable, "%s: %v", root, err)
		case !info.IsDir():
			return errors.Wrapf(ErrDestinationUnwritable, "%s is not a directory", root)
		}
		return nil
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return errors.Wrapf(ErrDestinationUnwritable, "creating %s: %v", root, err)
	}

	probe, err := os.CreateTemp(root, ".autobackup-probe-*")
	if err != nil {
		return errors.Wrapf(ErrDestinationUnwritable, "%s: %v", root, err)
	}
	name := probe.Name()
	probe.Close()
	if err := os.Remove(name); err != nil {
		return errors.Wrapf(ErrDestinationUnwritable, "removing probe in %s: %v", root, err)
	}
	return nil
}
