package doctor

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/benoistlaurent/autobackup/internal/errors"
)

// DefaultTimeout bounds a single check. A source or destination on a dead
// network mount can block stat calls indefinitely.
const DefaultTimeout = 30 * time.Second

// Check is one diagnostic. Run must not modify the installation.
type Check interface {
	Name() string
	Category() string
	Run() *CheckResult
}

// Runner runs checks concurrently and reports them in registration order.
type Runner struct {
	// Timeout bounds each check; zero means DefaultTimeout.
	Timeout time.Duration

	checks []Check
	now    func() time.Time
}

// NewRunner returns an empty runner.
func NewRunner() *Runner {
	return &Runner{now: time.Now}
}

// AddCheck registers c.
func (r *Runner) AddCheck(c Check) {
	r.checks = append(r.checks, c)
}

// Checks returns the registered checks in report order.
func (r *Runner) Checks() []Check {
	return r.checks
}

// Run executes every check. A check still running when its timeout expires
// or ctx is cancelled is reported as an error and left to finish in the
// background.
func (r *Runner) Run(ctx context.Context) *Report {
	report := &Report{
		Timestamp: r.now().UTC(),
		Results:   make([]*CheckResult, len(r.checks)),
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	p := pool.New()
	for i, c := range r.checks {
		p.Go(func() {
			report.Results[i] = runOne(ctx, c, timeout)
		})
	}
	p.Wait()

	for _, res := range report.Results {
		report.Summary.add(res.Status)
	}
	return report
}

func runOne(ctx context.Context, c Check, timeout time.Duration) *CheckResult {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	done := make(chan *CheckResult, 1)
	go func() { done <- c.Run() }()

	var res *CheckResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res = &CheckResult{
			Status:  SeverityError,
			Message: fmt.Sprintf("did not finish within %s", timeout),
			FixHint: "Check for hung network mounts under the sources and destinations",
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			res.Message = "cancelled"
			res.FixHint = ""
		}
	}

	if res.Name == "" {
		res.Name = c.Name()
	}
	if res.Category == "" {
		res.Category = c.Category()
	}
	res.Elapsed = time.Since(started)
	return res
}

// Report is the outcome of a diagnostic run.
type Report struct {
	// Timestamp is when the run started, in UTC.
	Timestamp time.Time      `json:"timestamp"`
	Results   []*CheckResult `json:"results"`
	Summary   Summary        `json:"summary"`
}

// HasErrors reports whether any check failed.
func (r *Report) HasErrors() bool {
	return r.Summary.Errors > 0
}

// HasWarnings reports whether any check warned.
func (r *Report) HasWarnings() bool {
	return r.Summary.Warnings > 0
}

// Failed returns the results at SeverityError.
func (r *Report) Failed() []*CheckResult {
	var out []*CheckResult
	for _, res := range r.Results {
		if res.Status == SeverityError {
			out = append(out, res)
		}
	}
	return out
}
