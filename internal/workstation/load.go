package workstation

import (
	"bytes"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/benoistlaurent/autobackup/internal/errors"
	"github.com/benoistlaurent/autobackup/internal/paths"
	"github.com/benoistlaurent/autobackup/pkg/fileutil"
)

// entryKeys lists the keys accepted in a YAML workstation item.
var entryKeys = map[string]bool{
	"name":        true,
	"sources":     true,
	"destination": true,
	"include":     true,
	"exclude":     true,
}

// LoadFile reads a workstation file, expands ~ and resolves relative paths
// against the file's directory, then validates the result.
func LoadFile(path string) ([]Entry, error) {
	data, err := fileutil.ReadFile(path, fileutil.ConfigLimit)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &ConfigError{Path: path, Err: ErrConfigNotFound}
		}
		return nil, &ConfigError{Path: path, Err: err}
	}

	var entries []Entry
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		entries, err = decodeYAML(data)
	case ".toml":
		entries, err = decodeTOML(data)
	default:
		entries, err = parseNative(bytes.NewReader(data), path)
	}
	if err != nil {
		return nil, withPath(err, path)
	}

	resolve(entries, filepath.Dir(path))

	if err := Validate(entries); err != nil {
		return nil, withPath(err, path)
	}
	return entries, nil
}

// resolve makes every source and destination absolute.
func resolve(entries []Entry, dir string) {
	abs := func(p string) string {
		p = paths.ExpandHome(p)
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		return filepath.Clean(p)
	}
	for i := range entries {
		for j, src := range entries[i].Sources {
			if src != "" {
				entries[i].Sources[j] = abs(src)
			}
		}
		if entries[i].Destination != "" {
			entries[i].Destination = abs(entries[i].Destination)
		}
	}
}

func decodeYAML(data []byte) ([]Entry, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ConfigError{Err: errors.Wrap(ErrMalformed, err.Error())}
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, lineError("", root.Line, ErrMalformed, "expected a mapping with a workstations key")
	}

	var list *yaml.Node
	for i := 0; i+1 < len(root.Content); i += 2 {
		key := root.Content[i]
		if key.Value != "workstations" {
			return nil, lineError("", key.Line, ErrMalformed, "unknown key %q", key.Value)
		}
		list = root.Content[i+1]
	}
	if list == nil || list.Tag == "!!null" {
		return nil, nil
	}
	if list.Kind != yaml.SequenceNode {
		return nil, lineError("", list.Line, ErrMalformed, "workstations must be a list")
	}

	entries := make([]Entry, 0, len(list.Content))
	for _, item := range list.Content {
		if item.Kind != yaml.MappingNode {
			return nil, lineError("", item.Line, ErrMalformed, "workstation must be a mapping")
		}
		for i := 0; i < len(item.Content); i += 2 {
			if k := item.Content[i]; !entryKeys[k.Value] {
				return nil, lineError("", k.Line, ErrMalformed, "unknown key %q", k.Value)
			}
		}

		var e Entry
		if err := item.Decode(&e); err != nil {
			return nil, lineError("", item.Line, ErrMalformed, "%v", err)
		}
		e.Line = item.Line
		entries = append(entries, e)
	}
	return entries, nil
}

type tomlFile struct {
	Workstations []Entry `toml:"workstations"`
}

func decodeTOML(data []byte) ([]Entry, error) {
	var f tomlFile
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		var decodeErr *toml.DecodeError
		if errors.As(err, &decodeErr) {
			row, _ := decodeErr.Position()
			return nil, lineError("", row, ErrMalformed, "%s", decodeErr.Error())
		}
		var strictErr *toml.StrictMissingError
		if errors.As(err, &strictErr) && len(strictErr.Errors) > 0 {
			first := strictErr.Errors[0]
			row, _ := first.Position()
			return nil, lineError("", row, ErrMalformed, "unknown key %q", strings.Join(first.Key(), "."))
		}
		return nil, &ConfigError{Err: errors.Wrap(ErrMalformed, err.Error())}
	}
	return f.Workstations, nil
}
