// Package schedule validates cron expressions and runs backups on a schedule.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/benoistlaurent/autobackup/internal/errors"
)

// DefaultSpec runs the backup once a day at 02:00.
const DefaultSpec = "0 2 * * *"

// ErrInvalidSpec indicates a cron expression that cannot be parsed.
var ErrInvalidSpec = errors.New("invalid schedule")

// parser accepts standard five-field expressions and descriptors such as
// @daily or @every 6h.
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validate reports whether spec is a usable cron expression.
func Validate(spec string) error {
	if _, err := parser.Parse(spec); err != nil {
		return errors.Wrapf(ErrInvalidSpec, "%q: %v", spec, err)
	}
	return nil
}

// Next returns the first activation of spec strictly after from.
func Next(spec string, from time.Time) (time.Time, error) {
	s, err := parser.Parse(spec)
	if err != nil {
		return time.Time{}, errors.Wrapf(ErrInvalidSpec, "%q: %v", spec, err)
	}
	return s.Next(from), nil
}

// CrontabLine renders a crontab entry that runs command on spec.
func CrontabLine(spec, command string) string {
	return fmt.Sprintf("%s %s", spec, command)
}

// Job is the work performed on each activation.
type Job func(ctx context.Context) error

// Scheduler runs a Job on a cron schedule until its context is cancelled.
// An activation that fires while the previous one is still running is
// skipped, so two runs never write the same snapshot concurrently.
type Scheduler struct {
	spec   string
	job    Job
	logger *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
	id   cron.EntryID
}

// New creates a Scheduler. The spec is validated immediately.
func New(spec string, job Job, logger *slog.Logger) (*Scheduler, error) {
	if err := Validate(spec); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{spec: spec, job: job, logger: logger}, nil
}

// Run starts the scheduler and blocks until ctx is done. It then waits for a
// running job to finish before returning ctx.Err().
func (s *Scheduler) Run(ctx context.Context) error {
	cl := cronLogger{s.logger}
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	id, err := c.AddFunc(s.spec, func() {
		started := time.Now()
		s.logger.Info("scheduled run starting", "schedule", s.spec)
		if err := s.job(ctx); err != nil {
			s.logger.Error("scheduled run failed", "error", err, "elapsed", time.Since(started))
			return
		}
		s.logger.Info("scheduled run finished", "elapsed", time.Since(started))
	})
	if err != nil {
		return errors.Wrapf(ErrInvalidSpec, "%q: %v", s.spec, err)
	}

	s.mu.Lock()
	s.cron, s.id = c, id
	s.mu.Unlock()

	c.Start()
	s.logger.Info("scheduler started", "schedule", s.spec, "next", c.Entry(id).Next)

	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}

// Next returns the next activation time, or the zero time before Run starts.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil {
		return time.Time{}
	}
	return s.cron.Entry(s.id).Next
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
