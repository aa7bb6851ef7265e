// Package fileutil writes files by temp-and-rename and reads them with size
// limits.
//
// Copied snapshot files go through [WriteAtomic], which does not fsync: a
// crash leaves at worst a stale *.partial file that the next run removes.
// Metadata that must survive a crash once written (manifests, run records,
// installed configuration) goes through [WriteFile], [WriteJSON] and
// [WriteYAML], which fsync the file and its directory.
package fileutil

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/benoistlaurent/autobackup/internal/errors"
)

const (
	tempPrefix = ".autobackup-"

	// TempSuffix ends the name of every in-flight temp file.
	TempSuffix = ".partial"
)

// IsTemp reports whether name is an in-flight temp file left by a write.
func IsTemp(name string) bool {
	base := filepath.Base(name)
	return strings.HasPrefix(base, tempPrefix) && strings.HasSuffix(base, TempSuffix)
}

// TempPath returns a deterministic temp name next to path that IsTemp
// recognizes.
func TempPath(path string) string {
	return filepath.Join(filepath.Dir(path), tempPrefix+filepath.Base(path)+TempSuffix)
}

// WriteAtomic streams fill into a temp file beside path and renames it over
// path once fill succeeds. On error the temp file is removed and path is
// untouched. The parent directory must exist.
func WriteAtomic(path string, perm os.FileMode, fill func(w io.Writer) error) error {
	return write(path, perm, false, fill)
}

// WriteFile atomically and durably replaces path with data.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	return write(path, perm, true, func(w io.Writer) error {
		_, err := w.Write(data)
		return errors.Wrap(err, "writing temp file")
	})
}

// WriteJSON durably writes v as two-space indented JSON with a trailing
// newline.
func WriteJSON(path string, v any, perm os.FileMode) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling JSON")
	}
	return WriteFile(path, append(data, '\n'), perm)
}

// WriteYAML durably writes v as YAML.
func WriteYAML(path string, v any, perm os.FileMode) (err error) {
	// yaml.v3 panics on values it cannot encode, such as funcs and channels
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("marshaling YAML: %v", r)
		}
	}()

	data, err := yaml.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "marshaling YAML")
	}
	return WriteFile(path, data, perm)
}

func write(path string, perm os.FileMode, durable bool, fill func(w io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, tempPrefix+"*"+TempSuffix)
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = fill(tmp); err != nil {
		return err
	}
	if err = tmp.Chmod(perm); err != nil {
		return errors.Wrap(err, "setting file permissions")
	}
	if durable {
		if err = tmp.Sync(); err != nil {
			return errors.Wrap(err, "syncing temp file")
		}
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "closing temp file")
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(err, "renaming temp file")
	}

	if durable {
		syncDir(dir)
	}
	return nil
}

// syncDir flushes a rename to disk. Some filesystems refuse to fsync a
// directory; the file itself is already synced, so that is not an error.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
