package doctor

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/benoistlaurent/autobackup/internal/config"
	"github.com/benoistlaurent/autobackup/internal/errors"
	"github.com/benoistlaurent/autobackup/internal/schedule"
	"github.com/benoistlaurent/autobackup/internal/workstation"
)

// Target is the installation under diagnosis. The workstation file is
// loaded on first use and shared by every check.
type Target struct {
	Settings *config.Settings

	once    sync.Once
	entries []workstation.Entry
	loadErr error
}

// NewTarget returns a Target for settings.
func NewTarget(settings *config.Settings) *Target {
	return &Target{Settings: settings}
}

// WorkstationsFile returns the workstation file being checked.
func (t *Target) WorkstationsFile() string {
	return t.Settings.WorkstationsFile()
}

// Entries loads the workstation file once.
func (t *Target) Entries() ([]workstation.Entry, error) {
	t.once.Do(func() {
		t.entries, t.loadErr = workstation.LoadFile(t.WorkstationsFile())
	})
	return t.entries, t.loadErr
}

// Roots returns every distinct destination root: the configured one first,
// then per-entry overrides in declaration order.
func (t *Target) Roots() []string {
	var roots []string
	seen := make(map[string]bool)
	add := func(r string) {
		if r == "" || seen[r] {
			return
		}
		seen[r] = true
		roots = append(roots, r)
	}
	add(t.Settings.Destination)
	entries, _ := t.Entries()
	for _, e := range entries {
		add(e.Destination)
	}
	return roots
}

// Standard returns a runner with every built-in check registered.
func Standard(t *Target, now time.Time) *Runner {
	r := NewRunner()
	r.now = func() time.Time { return now }
	r.AddCheck(&SettingsCheck{target: t})
	r.AddCheck(&WorkstationFileCheck{target: t})
	r.AddCheck(&SourcesCheck{target: t})
	r.AddCheck(&DestinationCheck{target: t})
	r.AddCheck(&ScheduleCheck{target: t, now: now})
	r.AddCheck(&HistoryCheck{target: t})
	return r
}

// SettingsCheck validates the settings object.
type SettingsCheck struct {
	target *Target
}

var _ Check = (*SettingsCheck)(nil)

func (c *SettingsCheck) Name() string     { return "settings" }
func (c *SettingsCheck) Category() string { return "config" }

func (c *SettingsCheck) Run() *CheckResult {
	result := &CheckResult{Name: c.Name(), Category: c.Category()}

	errs := config.Validate(c.target.Settings)
	if len(errs) > 0 {
		problems := make([]string, 0, len(errs))
		for _, err := range errs {
			problems = append(problems, err.Error())
		}
		result.Status = SeverityError
		result.Message = fmt.Sprintf("%d invalid setting(s)", len(errs))
		result.Details = map[string]any{"errors": problems}
		result.FixHint = "Run: autobackup config edit"
		return result
	}

	file := config.FileUsed()
	if file == "" {
		result.Status = SeverityInfo
		result.Message = "no settings file found, using defaults"
		result.FixHint = "Run: autobackup config init"
		return result
	}

	result.Status = SeverityPass
	result.Message = "settings loaded from " + file
	return result
}

// WorkstationFileCheck loads and validates the workstation file.
type WorkstationFileCheck struct {
	target *Target
}

var _ Check = (*WorkstationFileCheck)(nil)

func (c *WorkstationFileCheck) Name() string     { return "workstation-file" }
func (c *WorkstationFileCheck) Category() string { return "config" }

func (c *WorkstationFileCheck) Run() *CheckResult {
	path := c.target.WorkstationsFile()
	result := &CheckResult{
		Name:     c.Name(),
		Category: c.Category(),
		Details:  map[string]any{"path": path},
	}

	entries, err := c.target.Entries()
	switch {
	case errors.Is(err, workstation.ErrConfigNotFound):
		result.Status = SeverityError
		result.Message = "workstation file not found: " + path
		result.FixHint = "Run: autobackup install, or set workstations in the settings file"
		return result
	case err != nil:
		result.Status = SeverityError
		result.Message = err.Error()
		var ce *workstation.ConfigError
		if errors.As(err, &ce) && ce.Line > 0 {
			result.Details["line"] = ce.Line
			result.FixHint = fmt.Sprintf("Fix line %d of %s", ce.Line, path)
		}
		return result
	}

	if len(entries) == 0 {
		result.Status = SeverityWarning
		result.Message = "no workstations declared; a run will copy nothing"
		return result
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	result.Details["workstations"] = names
	result.Status = SeverityPass
	result.Message = fmt.Sprintf("%d workstation(s) declared", len(entries))
	return result
}

// SourcesCheck verifies that every source path exists and can be read.
// A bad source only fails its own workstation, so problems are warnings.
type SourcesCheck struct {
	target *Target
}

var _ Check = (*SourcesCheck)(nil)

func (c *SourcesCheck) Name() string     { return "sources" }
func (c *SourcesCheck) Category() string { return "filesystem" }

func (c *SourcesCheck) Run() *CheckResult {
	result := &CheckResult{Name: c.Name(), Category: c.Category()}

	entries, err := c.target.Entries()
	if err != nil {
		result.Status = SeverityInfo
		result.Message = "skipped: workstation file did not load"
		return result
	}

	problems := make(map[string]string)
	var checked int
	for _, e := range entries {
		for _, src := range e.Sources {
			checked++
			if err := checkReadable(src); err != nil {
				problems[e.Name+": "+src] = err.Error()
			}
		}
	}

	if len(problems) > 0 {
		result.Status = SeverityWarning
		result.Message = fmt.Sprintf("%d of %d source(s) unreadable", len(problems), checked)
		result.Details = map[string]any{"problems": problems}
		result.FixHint = "Check that the paths exist and that autobackup runs as a user allowed to read them"
		return result
	}

	result.Status = SeverityPass
	result.Message = fmt.Sprintf("%d source(s) readable", checked)
	return result
}

func checkReadable(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return errors.New("does not exist")
	}
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return errors.New("not readable")
	}
	defer f.Close()

	if info.IsDir() {
		if _, err := f.Readdirnames(1); err != nil && !errors.Is(err, io.EOF) {
			return errors.New("directory not listable")
		}
	}
	return nil
}

// DestinationCheck probes every destination root for writability. A root
// that does not exist yet passes when its nearest existing parent is
// writable, since the engine creates it on the next run.
type DestinationCheck struct {
	target *Target
}

var _ Check = (*DestinationCheck)(nil)

func (c *DestinationCheck) Name() string     { return "destinations" }
func (c *DestinationCheck) Category() string { return "filesystem" }

func (c *DestinationCheck) Run() *CheckResult {
	result := &CheckResult{Name: c.Name(), Category: c.Category()}

	roots := c.target.Roots()
	if missing := c.withoutDestination(); len(roots) == 0 || len(missing) > 0 {
		result.Status = SeverityError
		result.Message = "no destination configured"
		if len(missing) > 0 {
			result.Message += " for " + strings.Join(missing, ", ")
		}
		result.FixHint = "Set destination in the settings file or pass --dest"
		return result
	}

	problems := make(map[string]string)
	var pending []string
	for _, root := range roots {
		exists, err := probeDir(root)
		if err != nil {
			problems[root] = err.Error()
			continue
		}
		if !exists {
			pending = append(pending, root)
		}
	}

	details := map[string]any{"roots": roots}
	result.Details = details

	if len(problems) > 0 {
		details["problems"] = problems
		result.Status = SeverityError
		result.Message = fmt.Sprintf("%d of %d destination root(s) not writable", len(problems), len(roots))
		result.FixHint = "Fix ownership or permissions of the destination, or run as a user that can write to it"
		return result
	}

	if len(pending) > 0 {
		sort.Strings(pending)
		details["will_create"] = pending
		result.Status = SeverityInfo
		result.Message = "will create " + strings.Join(pending, ", ")
		return result
	}

	result.Status = SeverityPass
	result.Message = fmt.Sprintf("%d destination root(s) writable", len(roots))
	return result
}

// withoutDestination lists workstations left without any destination root.
func (c *DestinationCheck) withoutDestination() []string {
	if c.target.Settings.Destination != "" {
		return nil
	}
	entries, _ := c.target.Entries()
	var names []string
	for _, e := range entries {
		if e.Destination == "" {
			names = append(names, e.Name)
		}
	}
	return names
}

// probeDir reports whether dir exists and accepts new files. When dir is
// missing, the nearest existing ancestor is probed instead and exists is
// false.
func probeDir(dir string) (exists bool, err error) {
	target := filepath.Clean(dir)
	for {
		info, statErr := os.Stat(target)
		if statErr == nil {
			if !info.IsDir() {
				return false, errors.Newf("%s is not a directory", target)
			}
			break
		}
		if !errors.Is(statErr, fs.ErrNotExist) {
			return false, statErr
		}
		parent := filepath.Dir(target)
		if parent == target {
			return false, statErr
		}
		target = parent
	}

	f, err := os.CreateTemp(target, ".autobackup-probe-*")
	if err != nil {
		return false, errors.Newf("cannot write to %s", target)
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)

	return target == filepath.Clean(dir), nil
}

// ScheduleCheck validates the cron expression and reports the next run.
type ScheduleCheck struct {
	target *Target
	now    time.Time
}

var _ Check = (*ScheduleCheck)(nil)

func (c *ScheduleCheck) Name() string     { return "schedule" }
func (c *ScheduleCheck) Category() string { return "schedule" }

func (c *ScheduleCheck) Run() *CheckResult {
	result := &CheckResult{Name: c.Name(), Category: c.Category()}

	spec := c.target.Settings.Schedule
	next, err := schedule.Next(spec, c.now)
	if err != nil {
		result.Status = SeverityError
		result.Message = err.Error()
		result.FixHint = fmt.Sprintf("Use a five-field cron expression such as %q", schedule.DefaultSpec)
		return result
	}

	result.Status = SeverityPass
	result.Message = fmt.Sprintf("%q, next run %s", spec, next.Format(time.RFC3339))
	result.Details = map[string]any{
		"spec":     spec,
		"next_run": next,
	}
	return result
}

// HistoryCheck verifies that run records can be written. History is
// best-effort, so a failure is a warning.
type HistoryCheck struct {
	target *Target
}

var _ Check = (*HistoryCheck)(nil)

func (c *HistoryCheck) Name() string     { return "history" }
func (c *HistoryCheck) Category() string { return "filesystem" }

func (c *HistoryCheck) Run() *CheckResult {
	dir := c.target.Settings.HistoryDir()
	result := &CheckResult{
		Name:     c.Name(),
		Category: c.Category(),
		Details:  map[string]any{"dir": dir},
	}

	if _, err := probeDir(dir); err != nil {
		result.Status = SeverityWarning
		result.Message = "run history cannot be recorded: " + err.Error()
		result.FixHint = "Set history.dir to a writable directory or pass --no-history"
		return result
	}

	result.Status = SeverityPass
	result.Message = "run history recorded in " + dir
	return result
}
