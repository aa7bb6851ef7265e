// Package install places the workstation file under an installation prefix
// and prints the crontab line that schedules the daily run.
package install

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/benoistlaurent/autobackup/internal/errors"
	"github.com/benoistlaurent/autobackup/internal/paths"
	"github.com/benoistlaurent/autobackup/internal/schedule"
	"github.com/benoistlaurent/autobackup/internal/workstation"
	"github.com/benoistlaurent/autobackup/pkg/fileutil"
)

// SampleName is the name reported when the embedded sample is installed.
const SampleName = "workstations.cfg.sample"

//go:embed workstations.cfg.sample
var sample []byte

// Sample returns the embedded sample workstation file.
func Sample() []byte {
	return bytes.Clone(sample)
}

// ErrExists indicates the target file exists and Force was not set.
var ErrExists = errors.New("workstation file already installed")

const (
	configPerm = 0o644
	etcPerm    = 0o755
	destPerm   = 0o750
)

// Installer copies a workstation file to <Prefix>/etc/autobackup.cfg.
type Installer struct {
	// Prefix is the installation prefix. Empty means paths.DefaultPrefix.
	Prefix string

	// Source is the workstation file to install. Empty installs the
	// embedded sample.
	Source string

	// Force overwrites an existing file.
	Force bool

	// Destination, when set, is created if absent.
	Destination string

	// Schedule is the cron expression of the reminder. Empty means
	// schedule.DefaultSpec.
	Schedule string

	// Command is what cron should run, e.g. "/usr/local/bin/autobackup run".
	Command string

	// Out receives progress lines. Nil discards them.
	Out io.Writer
}

// Result describes a completed installation.
type Result struct {
	ConfigPath  string   `json:"config_path"`
	Source      string   `json:"source"`
	Entries     int      `json:"entries"`
	Relative    []string `json:"relative_sources,omitempty"`
	Created     []string `json:"created,omitempty"`
	CrontabLine string   `json:"crontab_line"`
}

// Install validates the source file, copies it into place, creates missing
// directories and prints the crontab reminder.
func (i *Installer) Install() (*Result, error) {
	out := i.Out
	if out == nil {
		out = io.Discard
	}

	spec := i.Schedule
	if spec == "" {
		spec = schedule.DefaultSpec
	}
	if err := schedule.Validate(spec); err != nil {
		return nil, err
	}

	data, name, err := i.read()
	if err != nil {
		return nil, err
	}

	// The installed file is always read in the native format.
	entries, err := workstation.Parse(bytes.NewReader(data), name)
	if err != nil {
		return nil, errors.Wrap(err, "validating workstation file")
	}

	res := &Result{
		ConfigPath: paths.PrefixConfigFile(i.Prefix),
		Source:     name,
		Entries:    len(entries),
	}
	for _, e := range entries {
		for _, src := range e.Sources {
			if !filepath.IsAbs(src) && !isHomeRelative(src) {
				res.Relative = append(res.Relative, e.Name+": "+src)
			}
		}
	}

	if !i.Force {
		if _, err := os.Stat(res.ConfigPath); err == nil {
			return nil, errors.Wrapf(ErrExists, "%s", res.ConfigPath)
		}
	}

	etc := filepath.Dir(res.ConfigPath)
	created, err := ensureDir(etc, etcPerm)
	if err != nil {
		return nil, errors.Wrapf(err, "creating %s", etc)
	}
	if created {
		res.Created = append(res.Created, etc)
		fmt.Fprintf(out, "created directory %s\n", etc)
	}

	fmt.Fprintf(out, "copying %s -> %s\n", name, res.ConfigPath)
	if err := fileutil.WriteFile(res.ConfigPath, data, configPerm); err != nil {
		return nil, errors.Wrapf(err, "writing %s", res.ConfigPath)
	}

	if i.Destination != "" {
		created, err := ensureDir(i.Destination, destPerm)
		if err != nil {
			return nil, errors.Wrapf(err, "creating destination %s", i.Destination)
		}
		if created {
			res.Created = append(res.Created, i.Destination)
			fmt.Fprintf(out, "created directory %s\n", i.Destination)
		}
	}

	for _, rel := range res.Relative {
		fmt.Fprintf(out, "warning: relative source %s now resolves against %s\n", rel, etc)
	}

	command := i.Command
	if command == "" {
		command = "autobackup run"
	}
	res.CrontabLine = schedule.CrontabLine(spec, command)

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Schedule the backup by adding this line to the crontab (crontab -e):")
	fmt.Fprintf(out, "  %s\n", res.CrontabLine)

	return res, nil
}

func (i *Installer) read() ([]byte, string, error) {
	if i.Source == "" {
		return Sample(), SampleName, nil
	}
	data, err := fileutil.ReadFile(i.Source, fileutil.ConfigLimit)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", &workstation.ConfigError{Path: i.Source, Err: workstation.ErrConfigNotFound}
	}
	if err != nil {
		return nil, "", errors.Wrapf(err, "reading %s", i.Source)
	}
	return data, i.Source, nil
}

func ensureDir(dir string, perm os.FileMode) (bool, error) {
	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return false, errors.Newf("%s is not a directory", dir)
		}
		return false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return false, err
	}
	return true, paths.EnsureDir(dir, perm)
}

func isHomeRelative(p string) bool {
	return p == "~" || len(p) > 1 && p[0] == '~' && p[1] == '/'
}
