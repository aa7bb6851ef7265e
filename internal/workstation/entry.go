package workstation

import (
	"path/filepath"
	"regexp"

	"github.com/benoistlaurent/autobackup/internal/errors"
)

// namePattern restricts names to values that are safe as a single directory
// component.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Entry is one workstation declared in the workstation file.
type Entry struct {
	// Name identifies the workstation and names its snapshot directory.
	Name string `yaml:"name" toml:"name" json:"name"`

	// Sources are the files or directories to copy.
	Sources []string `yaml:"sources" toml:"sources" json:"sources"`

	// Destination overrides the destination root for this workstation.
	Destination string `yaml:"destination,omitempty" toml:"destination,omitempty" json:"destination,omitempty"`

	Include []string `yaml:"include,omitempty" toml:"include,omitempty" json:"include,omitempty"`
	Exclude []string `yaml:"exclude,omitempty" toml:"exclude,omitempty" json:"exclude,omitempty"`

	// Line is where the entry is declared, 0 when unknown.
	Line int `yaml:"-" toml:"-" json:"-"`
}

// Matcher compiles the entry's include and exclude patterns.
func (e Entry) Matcher() (*Matcher, error) {
	return NewMatcher(e.Include, e.Exclude)
}

// SourceDir returns the directory below the snapshot root that receives src.
// A single source is copied into the root itself; with several sources each
// one gets a directory named after its base name.
func (e Entry) SourceDir(src string) string {
	if len(e.Sources) <= 1 {
		return "."
	}
	return filepath.Base(filepath.Clean(src))
}

// Validate checks names, uniqueness, sources and patterns. The first problem
// found is returned as a *ConfigError.
func Validate(entries []Entry) error {
	seen := make(map[string]int, len(entries))
	for _, e := range entries {
		if !namePattern.MatchString(e.Name) {
			return lineError("", e.Line, ErrInvalidEntry, "name %q must match %s", e.Name, namePattern)
		}
		if first, dup := seen[e.Name]; dup {
			if first > 0 {
				return lineError("", e.Line, ErrDuplicateName, "%q already declared on line %d", e.Name, first)
			}
			return lineError("", e.Line, ErrDuplicateName, "%q declared twice", e.Name)
		}
		seen[e.Name] = e.Line

		if err := validateSources(e); err != nil {
			return &ConfigError{Line: e.Line, Err: err}
		}
		if _, err := e.Matcher(); err != nil {
			return lineError("", e.Line, ErrInvalidEntry, "%s: bad pattern: %v", e.Name, err)
		}
	}
	return nil
}

func validateSources(e Entry) error {
	if len(e.Sources) == 0 {
		return errors.Wrapf(ErrInvalidEntry, "%s: no source", e.Name)
	}
	bases := make(map[string]string, len(e.Sources))
	for _, src := range e.Sources {
		if src == "" {
			return errors.Wrapf(ErrInvalidEntry, "%s: empty source", e.Name)
		}
		if len(e.Sources) == 1 {
			break
		}
		base := filepath.Base(filepath.Clean(src))
		if base == string(filepath.Separator) || base == "." {
			return errors.Wrapf(ErrInvalidEntry, "%s: source %q has no base name to copy it under", e.Name, src)
		}
		if other, ok := bases[base]; ok {
			return errors.Wrapf(ErrInvalidEntry, "%s: sources %q and %q would both be copied to %q", e.Name, other, src, base)
		}
		bases[base] = src
	}
	return nil
}
