package backup

import (
	"io/fs"
	"time"

	"github.com/benoistlaurent/autobackup/internal/errors"
)

// ManifestVersion is the manifest format version for forward compatibility.
const ManifestVersion = 1

// ManifestName is the manifest file written at the top of every snapshot.
const ManifestName = ".autobackup-manifest.json"

// DefaultDateLayout names snapshot directories by day.
const DefaultDateLayout = "2006-01-02"

// Sentinel errors for backup operations.
var (
	// ErrNoDestination indicates neither the engine nor the entry names a
	// destination root.
	ErrNoDestination = errors.New("no destination root")

	// ErrDestinationUnwritable indicates a destination root cannot be created
	// or written. It aborts the run before any entry is copied.
	ErrDestinationUnwritable = errors.New("destination not writable")

	// ErrNoSnapshots indicates no snapshots exist for the workstation.
	ErrNoSnapshots = errors.New("no snapshots found")

	// ErrSnapshotCorrupted indicates a snapshot file no longer matches the
	// hash recorded in its manifest.
	ErrSnapshotCorrupted = errors.New("snapshot corrupted")
)

// Status summarizes how an entry or a run went.
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// Run is the summary of one engine invocation.
type Run struct {
	ID         string         `json:"id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Date       string         `json:"date"`
	DryRun     bool           `json:"dry_run,omitempty"`
	Entries    []EntryOutcome `json:"entries"`
}

// Status is StatusSuccess when every entry succeeded, StatusPartial otherwise.
// A run with no entries is a success.
func (r *Run) Status() Status {
	if r.FailedEntries() > 0 {
		return StatusPartial
	}
	return StatusSuccess
}

// FailedEntries counts entries that did not fully succeed.
func (r *Run) FailedEntries() int {
	n := 0
	for _, e := range r.Entries {
		if e.Status != StatusSuccess {
			n++
		}
	}
	return n
}

// Totals sums the per-entry counters.
func (r *Run) Totals() Counts {
	var t Counts
	for _, e := range r.Entries {
		t.Copied += e.Copied
		t.Skipped += e.Skipped
		t.Failed += e.Failed
		t.Excluded += e.Excluded
		t.Bytes += e.Bytes
	}
	return t
}

// Duration is the wall time of the run.
func (r *Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Counts are the per-file counters of an entry.
type Counts struct {
	Copied   int   `json:"copied"`
	Skipped  int   `json:"skipped"`
	Failed   int   `json:"failed"`
	Excluded int   `json:"excluded"`
	Bytes    int64 `json:"bytes"`
}

// EntryOutcome is the result of backing up one workstation.
type EntryOutcome struct {
	Name     string        `json:"name"`
	Snapshot string        `json:"snapshot"`
	Status   Status        `json:"status"`
	Error    string        `json:"error,omitempty"`
	Failures []FileFailure `json:"failures,omitempty"`
	Duration time.Duration `json:"duration"`
	Counts
}

// FileFailure records a single file that could not be backed up.
type FileFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Manifest describes a snapshot. It is stored as ManifestName in the
// snapshot directory and rewritten by every run of that day. A successful
// run removes files the manifest no longer lists, so the directory holds
// exactly the listed files.
type Manifest struct {
	Version           int            `json:"version"`
	Workstation       string         `json:"workstation"`
	Date              string         `json:"date"`
	RunID             string         `json:"run_id"`
	CreatedAt         time.Time      `json:"created_at"`
	Sources           []string       `json:"sources"`
	Files             []ManifestFile `json:"files"`
	AutobackupVersion string         `json:"autobackup_version"`

	// Incomplete marks a snapshot whose run failed part way. Its files are
	// valid but it does not count toward retention.
	Incomplete bool `json:"incomplete,omitempty"`

	// Dir is the snapshot directory. Populated when loading from disk.
	Dir string `json:"-"`
}

// TotalSize sums the size of regular files in the snapshot.
func (m *Manifest) TotalSize() int64 {
	var n int64
	for _, f := range m.Files {
		n += f.Size
	}
	return n
}

// ManifestFile is one file or symlink in a snapshot.
type ManifestFile struct {
	// Path is slash-separated and relative to the snapshot directory.
	Path string `json:"path"`

	// Source is the absolute path the file was copied from.
	Source string `json:"source"`

	Size    int64       `json:"size"`
	Mode    fs.FileMode `json:"mode"`
	ModTime time.Time   `json:"mod_time"`

	// SHA256 is the hex-encoded content hash. Empty for symlinks.
	SHA256 string `json:"sha256,omitempty"`

	// Target is the link target of a symlink.
	Target string `json:"target,omitempty"`
}

// IsSymlink reports whether the record describes a symlink.
func (f ManifestFile) IsSymlink() bool {
	return f.Mode&fs.ModeSymlink != 0
}
