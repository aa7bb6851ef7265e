package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/benoistlaurent/autobackup/internal/errors"
	"github.com/benoistlaurent/autobackup/pkg/fileutil"
)

// Store reads and maintains the snapshots below a destination root.
type Store struct {
	root string
}

// NewStore returns a Store for the snapshots under root.
func NewStore(root string) *Store {
	return &Store{root: root}
}

// Root returns the destination root.
func (s *Store) Root() string {
	return s.root
}

// Workstations returns the names of workstations that have a directory under
// the root, sorted.
func (s *Store) Workstations() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "reading destination root")
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}

// List returns the snapshots of a workstation, newest first by date name,
// which the date layout keeps in chronological order. Directories without a
// readable manifest are ignored.
func (s *Store) List(name string) ([]Manifest, error) {
	if name == "" {
		return nil, errors.New("workstation name is required")
	}

	entries, err := os.ReadDir(WorkstationDir(s.root, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errors.Wrapf(ErrNoSnapshots, "workstation %s", name)
		}
		return nil, errors.Wrap(err, "reading workstation directory")
	}

	manifests := make([]Manifest, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		m, err := s.Get(name, entry.Name())
		if err != nil {
			continue
		}
		manifests = append(manifests, *m)
	}

	if len(manifests) == 0 {
		return nil, errors.Wrapf(ErrNoSnapshots, "workstation %s", name)
	}

	slices.SortFunc(manifests, func(a, b Manifest) int {
		if c := strings.Compare(b.Date, a.Date); c != 0 {
			return c
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	return manifests, nil
}

// Get returns the manifest of one snapshot.
func (s *Store) Get(name, date string) (*Manifest, error) {
	if name == "" {
		return nil, errors.New("workstation name is required")
	}
	if date == "" {
		return nil, errors.New("snapshot date is required")
	}

	dir := SnapshotPath(s.root, name, date)
	var m Manifest
	if err := fileutil.ReadJSON(ManifestPath(dir), fileutil.ManifestLimit, &m); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errors.Wrapf(ErrNoSnapshots, "snapshot %s/%s", name, date)
		}
		return nil, errors.Wrap(err, "reading manifest")
	}

	m.Dir = dir
	if m.Date == "" {
		m.Date = date
	}
	return &m, nil
}

// Prune keeps the newest keep complete snapshots of a workstation, plus any
// incomplete ones newer than the oldest kept, and removes the rest. It
// returns the removed ones. keep must be at least 1.
func (s *Store) Prune(name string, keep int) ([]Manifest, error) {
	if keep < 1 {
		return nil, errors.New("keep must be at least 1")
	}

	manifests, err := s.List(name)
	if err != nil {
		if errors.Is(err, ErrNoSnapshots) {
			return nil, nil
		}
		return nil, err
	}

	var removed []Manifest
	complete := 0
	for _, m := range manifests {
		if complete < keep {
			if !m.Incomplete {
				complete++
			}
			continue
		}
		if err := os.RemoveAll(m.Dir); err != nil {
			return removed, errors.Wrapf(err, "removing snapshot %s", m.Date)
		}
		removed = append(removed, m)
	}
	return removed, nil
}

// Verify re-hashes every file of a snapshot. Files that are missing or whose
// content changed are returned and the error wraps ErrSnapshotCorrupted.
func (s *Store) Verify(name, date string) ([]FileFailure, error) {
	m, err := s.Get(name, date)
	if err != nil {
		return nil, err
	}

	var problems []FileFailure
	for _, f := range m.Files {
		path := filepath.Join(m.Dir, filepath.FromSlash(f.Path))
		if f.IsSymlink() {
			target, err := os.Readlink(path)
			if err != nil {
				problems = append(problems, FileFailure{Path: f.Path, Error: err.Error()})
			} else if target != f.Target {
				problems = append(problems, FileFailure{Path: f.Path, Error: "link target changed to " + target})
			}
			continue
		}

		hash, err := hashFile(path)
		switch {
		case err != nil:
			problems = append(problems, FileFailure{Path: f.Path, Error: err.Error()})
		case hash != f.SHA256:
			problems = append(problems, FileFailure{Path: f.Path, Error: "hash mismatch"})
		}
	}

	if len(problems) > 0 {
		return problems, errors.Wrapf(ErrSnapshotCorrupted, "%s/%s: %d of %d file(s) failed verification",
			name, date, len(problems), len(m.Files))
	}
	return nil, nil
}

// Restore copies a snapshot back. With an empty target every file returns to
// the source path it was copied from; otherwise files are written below
// target keeping their snapshot-relative paths. Each file's hash is checked
// while it is copied and a mismatching file is never written. It returns the
// number of files restored.
func (s *Store) Restore(name, date, target string) (int, error) {
	m, err := s.Get(name, date)
	if err != nil {
		return 0, err
	}

	restored := 0
	for _, f := range m.Files {
		src := filepath.Join(m.Dir, filepath.FromSlash(f.Path))
		dst := f.Source
		if target != "" {
			dst = filepath.Join(target, filepath.FromSlash(f.Path))
		}
		if dst == "" {
			return restored, errors.Newf("no restore location recorded for %s", f.Path)
		}

		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return restored, errors.Wrapf(err, "creating directory for %s", dst)
		}

		if f.IsSymlink() {
			if err := copySymlink(f.Target, dst); err != nil {
				return restored, errors.Wrapf(err, "restoring %s", dst)
			}
			restored++
			continue
		}

		if err := restoreFile(src, dst, f); err != nil {
			return restored, errors.Wrapf(err, "restoring %s", dst)
		}
		restored++
	}
	return restored, nil
}

func restoreFile(src, dst string, f ManifestFile) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrap(err, "opening snapshot file")
	}
	defer in.Close()

	err = fileutil.WriteAtomic(dst, f.Mode.Perm(), func(w io.Writer) error {
		h := sha256.New()
		if _, err := io.Copy(io.MultiWriter(w, h), in); err != nil {
			return errors.Wrap(err, "copying file")
		}
		if got := hex.EncodeToString(h.Sum(nil)); got != f.SHA256 {
			return errors.Wrapf(ErrSnapshotCorrupted, "file %s hash mismatch", f.Path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	return os.Chtimes(dst, f.ModTime, f.ModTime)
}
