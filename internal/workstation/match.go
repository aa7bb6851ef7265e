package workstation

import (
	"path/filepath"
	"strings"

	"github.com/moby/patternmatcher"
)

// Matcher decides which paths below a source are backed up. Paths are
// slash-separated and relative to the source root.
//
// A Matcher is not safe for concurrent use.
type Matcher struct {
	include *patternmatcher.PatternMatcher
	exclude *patternmatcher.PatternMatcher
}

// NewMatcher compiles include and exclude patterns. Empty lists are allowed.
func NewMatcher(include, exclude []string) (*Matcher, error) {
	m := &Matcher{}
	var err error
	if m.include, err = compile(include); err != nil {
		return nil, err
	}
	if m.exclude, err = compile(exclude); err != nil {
		return nil, err
	}
	return m, nil
}

func compile(patterns []string) (*patternmatcher.PatternMatcher, error) {
	normalized := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if n := normalizePattern(p); n != "" {
			normalized = append(normalized, n)
		}
	}
	if len(normalized) == 0 {
		return nil, nil
	}
	return patternmatcher.New(normalized)
}

// normalizePattern applies gitignore anchoring on top of dockerignore
// syntax: "*.tmp" matches at any depth, "/build" only at the root.
func normalizePattern(p string) string {
	p = strings.TrimSpace(p)
	negate := strings.HasPrefix(p, "!")
	if negate {
		p = strings.TrimSpace(p[1:])
	}
	p = strings.TrimRight(p, "/")
	if p == "" {
		return ""
	}

	switch {
	case strings.HasPrefix(p, "/"):
		p = strings.TrimLeft(p, "/")
	case !strings.Contains(p, "/") && !strings.HasPrefix(p, "**"):
		p = "**/" + p
	}

	if negate {
		return "!" + p
	}
	return p
}

// Match reports whether the file at rel is backed up.
func (m *Matcher) Match(rel string) (bool, error) {
	rel = filepath.ToSlash(rel)
	if m.exclude != nil {
		excluded, err := m.exclude.MatchesOrParentMatches(rel)
		if err != nil || excluded {
			return false, err
		}
	}
	if m.include == nil {
		return true, nil
	}
	return m.include.MatchesOrParentMatches(rel)
}

// ExcludeDir reports whether the directory at rel and everything below it
// can be skipped. With negated exclude patterns a file below an excluded
// directory may be re-included, so directories are never pruned.
func (m *Matcher) ExcludeDir(rel string) (bool, error) {
	if m.exclude == nil || m.exclude.Exclusions() {
		return false, nil
	}
	return m.exclude.MatchesOrParentMatches(filepath.ToSlash(rel))
}
