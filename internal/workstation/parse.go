package workstation

import (
	"bufio"
	"io"
	"strings"

	"github.com/benoistlaurent/autobackup/internal/errors"
)

// Parse reads the native workstation format from r and validates the
// entries. name is used in error messages only.
func Parse(r io.Reader, name string) ([]Entry, error) {
	entries, err := parseNative(r, name)
	if err != nil {
		return nil, err
	}
	if err := Validate(entries); err != nil {
		return nil, withPath(err, name)
	}
	return entries, nil
}

func parseNative(r io.Reader, name string) ([]Entry, error) {
	var (
		entries []Entry
		cur     = -1
		seen    = make(map[string]int)
		lineNo  int
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if lineNo == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		if line == "" || line[0] == '#' || line[0] == ';' {
			continue
		}

		if line[0] == '[' {
			if !strings.HasSuffix(line, "]") {
				return nil, lineError(name, lineNo, ErrMalformed, "unterminated section header %q", line)
			}
			ws := strings.TrimSpace(line[1 : len(line)-1])
			if ws == "" {
				return nil, lineError(name, lineNo, ErrMalformed, "empty section header")
			}
			if first, dup := seen[ws]; dup {
				return nil, lineError(name, lineNo, ErrDuplicateName, "%q already declared on line %d", ws, first)
			}
			seen[ws] = lineNo
			entries = append(entries, Entry{Name: ws, Line: lineNo})
			cur = len(entries) - 1
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, lineError(name, lineNo, ErrMalformed, "expected key = value, got %q", line)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		if cur < 0 {
			return nil, lineError(name, lineNo, ErrMalformed, "%q outside of a [workstation] section", key)
		}
		if value == "" {
			return nil, lineError(name, lineNo, ErrInvalidEntry, "empty value for %q", key)
		}

		e := &entries[cur]
		switch key {
		case "source":
			e.Sources = append(e.Sources, value)
		case "destination":
			if e.Destination != "" {
				return nil, lineError(name, lineNo, ErrInvalidEntry, "destination set twice for %q", e.Name)
			}
			e.Destination = value
		case "include":
			e.Include = append(e.Include, value)
		case "exclude":
			e.Exclude = append(e.Exclude, value)
		default:
			return nil, lineError(name, lineNo, ErrMalformed, "unknown key %q", key)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, &ConfigError{Path: name, Line: lineNo + 1, Err: errors.Wrapf(ErrMalformed, "reading: %v", err)}
	}

	return entries, nil
}
