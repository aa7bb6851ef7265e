// Package history records the outcome of every backup run on disk.
//
// Each run is stored as one JSON file named after its start time so that a
// directory listing is already in chronological order:
//
//	$XDG_STATE_HOME/autobackup/runs/20260314T020000-1f2e3d4c.json
package history

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/benoistlaurent/autobackup/internal/backup"
	"github.com/benoistlaurent/autobackup/internal/errors"
	"github.com/benoistlaurent/autobackup/internal/paths"
	"github.com/benoistlaurent/autobackup/pkg/fileutil"
)

// ErrNoHistory indicates no run has been recorded yet.
var ErrNoHistory = errors.New("no recorded runs")

const timeLayout = "20060102T150405"

// Record is one persisted run.
type Record struct {
	Run    backup.Run    `json:"run"`
	Status backup.Status `json:"status"`

	// Error is set when the run itself failed, for example when it was
	// interrupted.
	Error string `json:"error,omitempty"`

	// File is the record's path. Populated when loading from disk.
	File string `json:"-"`
}

// NewRecord captures run and the error Engine.Run returned with it.
func NewRecord(run *backup.Run, runErr error) *Record {
	rec := &Record{Run: *run, Status: run.Status()}
	if runErr != nil {
		rec.Status = backup.StatusFailed
		rec.Error = runErr.Error()
	}
	return rec
}

// Store reads and writes run records in a directory.
type Store struct {
	dir string
}

// New returns a Store rooted at dir.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the directory holding the records.
func (s *Store) Dir() string {
	return s.dir
}

// FileName returns the record file name for a run.
func FileName(run *backup.Run) string {
	id := run.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return run.StartedAt.UTC().Format(timeLayout) + "-" + id + ".json"
}

// Save writes rec and returns the file path.
func (s *Store) Save(rec *Record) (string, error) {
	if err := paths.EnsureDir(s.dir, 0); err != nil {
		return "", errors.Wrap(err, "creating history directory")
	}
	path := filepath.Join(s.dir, FileName(&rec.Run))
	if err := fileutil.WriteJSON(path, rec, 0o600); err != nil {
		return "", errors.Wrap(err, "writing run record")
	}
	rec.File = path
	return path, nil
}

// files returns record file names, newest first.
func (s *Store) files() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "reading history directory")
	}

	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	slices.Reverse(names)
	return names, nil
}

// List returns up to limit records, newest first. A limit of zero or less
// returns every record. Unreadable records are skipped.
func (s *Store) List(limit int) ([]Record, error) {
	names, err := s.files()
	if err != nil {
		return nil, err
	}

	var records []Record
	for _, name := range names {
		if limit > 0 && len(records) >= limit {
			break
		}
		var rec Record
		path := filepath.Join(s.dir, name)
		if err := fileutil.ReadJSON(path, fileutil.ManifestLimit, &rec); err != nil {
			continue
		}
		rec.File = path
		records = append(records, rec)
	}
	return records, nil
}

// Latest returns the most recent record.
func (s *Store) Latest() (*Record, error) {
	records, err := s.List(1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoHistory
	}
	return &records[0], nil
}

// Prune deletes all but the newest keep records and returns how many were
// removed. A keep of zero or less keeps everything.
func (s *Store) Prune(keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	names, err := s.files()
	if err != nil {
		return 0, err
	}

	removed := 0
	for i := keep; i < len(names); i++ {
		if err := os.Remove(filepath.Join(s.dir, names[i])); err != nil {
			return removed, errors.Wrapf(err, "removing %s", names[i])
		}
		removed++
	}
	return removed, nil
}
