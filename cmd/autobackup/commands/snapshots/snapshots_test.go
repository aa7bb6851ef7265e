package snapshots

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benoistlaurent/autobackup/internal/backup"
	"github.com/benoistlaurent/autobackup/internal/config"
	"github.com/benoistlaurent/autobackup/internal/errors"
	"github.com/benoistlaurent/autobackup/internal/logging"
	"github.com/benoistlaurent/autobackup/internal/workstation"
)

// backupOn writes a snapshot of src for name on date below root.
func backupOn(t *testing.T, root, name, date, src string) {
	t.Helper()
	entries := []workstation.Entry{{Name: name, Sources: []string{src}}}
	run, err := backup.NewEngine(
		backup.WithDestinationRoot(root),
		backup.WithDate(date),
		backup.WithLogger(logging.ForTest(t)),
	).Run(context.Background(), entries)
	require.NoError(t, err)
	require.Equal(t, backup.StatusSuccess, run.Status())
}

func sourceTree(t *testing.T) string {
	t.Helper()
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "notes.txt"), []byte("notes"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(src, "docs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "docs", "plan.md"), []byte("# plan"), 0o644))
	return src
}

func resetFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		destFlag = ""
		listJSON = false
		pruneKeep = 0
		pruneAll = false
		restoreTarget = ""
		restoreYes = false
		restorePick = false
	})
}

func TestLocator(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "workstations.cfg")
	body := "[alice]\nsource = /home/alice\n\n[lab]\nsource = /srv/lab\ndestination = /mnt/lab\n"
	require.NoError(t, os.WriteFile(file, []byte(body), 0o644))

	settings := &config.Settings{Destination: "/mnt/backups", Workstations: file}

	loc := locatorFor(settings, logging.ForTest(t))
	assert.Equal(t, "/mnt/backups", loc.store("alice").Root())
	assert.Equal(t, "/mnt/lab", loc.store("lab").Root())
	assert.Equal(t, "/mnt/backups", loc.store("unknown").Root())
}

func TestLocator_WorkstationFileMissing(t *testing.T) {
	settings := &config.Settings{
		Destination:  "/mnt/backups",
		Workstations: filepath.Join(t.TempDir(), "missing.cfg"),
	}

	loc := locatorFor(settings, logging.ForTest(t))
	assert.Equal(t, "/mnt/backups", loc.store("alice").Root())
	assert.Empty(t, loc.overrides)
}

func TestLocator_NamesWithoutDestination(t *testing.T) {
	_, err := (&locator{}).names()
	require.Error(t, err)
	assert.Equal(t, errors.ExitUser, errors.ExitCode(err))
}

func TestList(t *testing.T) {
	resetFlags(t)
	root := t.TempDir()
	src := sourceTree(t)
	backupOn(t, root, "alice", "2026-03-13", src)
	backupOn(t, root, "alice", "2026-03-14", src)
	backupOn(t, root, "bob", "2026-03-14", src)

	var buf bytes.Buffer
	require.NoError(t, runListWithWriter(&buf, &locator{root: root}, nil))

	out := buf.String()
	assert.Contains(t, out, "snapshots for alice (2)")
	assert.Contains(t, out, "snapshots for bob (1)")
	assert.Less(t, strings.Index(out, "2026-03-14"), strings.Index(out, "2026-03-13"))
}

func TestList_JSON(t *testing.T) {
	resetFlags(t)
	listJSON = true
	root := t.TempDir()
	backupOn(t, root, "alice", "2026-03-14", sourceTree(t))

	var buf bytes.Buffer
	require.NoError(t, runListWithWriter(&buf, &locator{root: root}, []string{"alice"}))

	var got []struct {
		Workstation string `json:"workstation"`
		Snapshots   []struct {
			Date  string `json:"date"`
			Files []any  `json:"files"`
		} `json:"snapshots"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "alice", got[0].Workstation)
	require.Len(t, got[0].Snapshots, 1)
	assert.Equal(t, "2026-03-14", got[0].Snapshots[0].Date)
	assert.Len(t, got[0].Snapshots[0].Files, 2)
}

func TestList_Empty(t *testing.T) {
	resetFlags(t)
	var buf bytes.Buffer
	require.NoError(t, runListWithWriter(&buf, &locator{root: t.TempDir()}, nil))
	assert.Equal(t, "No snapshots found.\n", buf.String())
}

func TestList_UnknownWorkstation(t *testing.T) {
	resetFlags(t)
	var buf bytes.Buffer
	err := runListWithWriter(&buf, &locator{root: t.TempDir()}, []string{"nobody"})
	require.Error(t, err)
	assert.Equal(t, errors.ExitUser, errors.ExitCode(err))
	assert.True(t, errors.Is(err, backup.ErrNoSnapshots))
}

func TestPrune(t *testing.T) {
	resetFlags(t)
	root := t.TempDir()
	src := sourceTree(t)
	for _, d := range []string{"2026-03-12", "2026-03-13", "2026-03-14"} {
		backupOn(t, root, "alice", d, src)
	}
	backupOn(t, root, "bob", "2026-03-14", src)

	var buf bytes.Buffer
	require.NoError(t, runPruneWithWriter(&buf, &locator{root: root}, nil, 1))

	out := buf.String()
	assert.Contains(t, out, "removed alice/2026-03-12")
	assert.Contains(t, out, "removed alice/2026-03-13")
	assert.Contains(t, out, "2 snapshot(s) removed")

	assert.DirExists(t, backup.SnapshotPath(root, "alice", "2026-03-14"))
	assert.NoDirExists(t, backup.SnapshotPath(root, "alice", "2026-03-12"))
	assert.DirExists(t, backup.SnapshotPath(root, "bob", "2026-03-14"))
}

func TestPrune_InvalidKeep(t *testing.T) {
	resetFlags(t)
	var buf bytes.Buffer
	err := runPruneWithWriter(&buf, &locator{root: t.TempDir()}, []string{"alice"}, 0)
	require.Error(t, err)
	assert.Equal(t, errors.ExitUser, errors.ExitCode(err))
}

func TestVerify(t *testing.T) {
	resetFlags(t)
	root := t.TempDir()
	src := sourceTree(t)
	backupOn(t, root, "alice", "2026-03-13", src)
	backupOn(t, root, "alice", "2026-03-14", src)
	loc := &locator{root: root}

	t.Run("latest by default", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, runVerifyWithWriter(&buf, loc, "alice", ""))
		assert.Equal(t, "alice/2026-03-14: 2 file(s) verified\n", buf.String())
	})

	t.Run("missing snapshot", func(t *testing.T) {
		var buf bytes.Buffer
		err := runVerifyWithWriter(&buf, loc, "alice", "2020-01-01")
		require.Error(t, err)
		assert.Equal(t, errors.ExitUser, errors.ExitCode(err))
	})

	t.Run("corrupted file", func(t *testing.T) {
		path := filepath.Join(backup.SnapshotPath(root, "alice", "2026-03-13"), "notes.txt")
		require.NoError(t, os.WriteFile(path, []byte("tampered"), 0o644))

		var buf bytes.Buffer
		err := runVerifyWithWriter(&buf, loc, "alice", "2026-03-13")
		require.Error(t, err)
		assert.Equal(t, errors.ExitSystem, errors.ExitCode(err))
		assert.True(t, errors.Is(err, backup.ErrSnapshotCorrupted))
		assert.Contains(t, buf.String(), "notes.txt: hash mismatch")
	})
}

func TestResolveSnapshot_SkipsIncomplete(t *testing.T) {
	root := t.TempDir()
	src := sourceTree(t)
	backupOn(t, root, "alice", "2026-03-13", src)

	// A run on the 14th that lost its second source leaves an incomplete snapshot.
	entries := []workstation.Entry{{Name: "alice", Sources: []string{src, filepath.Join(t.TempDir(), "gone")}}}
	run, err := backup.NewEngine(
		backup.WithDestinationRoot(root),
		backup.WithDate("2026-03-14"),
		backup.WithLogger(logging.ForTest(t)),
	).Run(context.Background(), entries)
	require.NoError(t, err)
	require.Equal(t, backup.StatusFailed, run.Entries[0].Status)

	m, err := resolveSnapshot(backup.NewStore(root), "alice", "")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-13", m.Date)

	m, err = resolveSnapshot(backup.NewStore(root), "alice", "2026-03-14")
	require.NoError(t, err)
	assert.True(t, m.Incomplete, "an explicit date is honoured")
}

func TestRestore_ToTarget(t *testing.T) {
	resetFlags(t)
	root := t.TempDir()
	backupOn(t, root, "alice", "2026-03-14", sourceTree(t))

	target := t.TempDir()
	restoreTarget = target

	var out bytes.Buffer
	r := &restorer{loc: &locator{root: root}, in: strings.NewReader(""), out: &out}
	require.NoError(t, r.restore("alice", ""))

	data, err := os.ReadFile(filepath.Join(target, "docs", "plan.md"))
	require.NoError(t, err)
	assert.Equal(t, "# plan", string(data))
	assert.Contains(t, out.String(), "2 file(s) restored from alice/2026-03-14 to "+target)
}

func TestRestore_InPlaceNeedsConfirmation(t *testing.T) {
	root := t.TempDir()
	src := sourceTree(t)
	backupOn(t, root, "alice", "2026-03-14", src)
	notes := filepath.Join(src, "notes.txt")

	t.Run("refused without a terminal", func(t *testing.T) {
		resetFlags(t)
		require.NoError(t, os.WriteFile(notes, []byte("changed"), 0o644))

		var out bytes.Buffer
		r := &restorer{loc: &locator{root: root}, in: strings.NewReader(""), out: &out}
		err := r.restore("alice", "")
		require.Error(t, err)
		assert.Equal(t, errors.ExitUser, errors.ExitCode(err))

		data, _ := os.ReadFile(notes)
		assert.Equal(t, "changed", string(data))
	})

	t.Run("declined at the prompt", func(t *testing.T) {
		resetFlags(t)
		var out bytes.Buffer
		r := &restorer{loc: &locator{root: root}, in: strings.NewReader("n\n"), out: &out, interactive: true}
		require.NoError(t, r.restore("alice", ""))
		assert.Contains(t, out.String(), "Restore cancelled.")

		data, _ := os.ReadFile(notes)
		assert.Equal(t, "changed", string(data))
	})

	t.Run("confirmed with --yes", func(t *testing.T) {
		resetFlags(t)
		restoreYes = true
		var out bytes.Buffer
		r := &restorer{loc: &locator{root: root}, in: strings.NewReader(""), out: &out}
		require.NoError(t, r.restore("alice", ""))

		data, err := os.ReadFile(notes)
		require.NoError(t, err)
		assert.Equal(t, "notes", string(data))
	})
}

func TestRestore_Pick(t *testing.T) {
	resetFlags(t)
	root := t.TempDir()
	src := sourceTree(t)
	backupOn(t, root, "alice", "2026-03-13", src)
	backupOn(t, root, "alice", "2026-03-14", src)

	restorePick = true
	restoreTarget = t.TempDir()

	var offered []string
	var out bytes.Buffer
	r := &restorer{
		loc: &locator{root: root},
		in:  strings.NewReader(""),
		out: &out,
		pick: func(_ string, snapshots []backup.Manifest) (*backup.Manifest, error) {
			for _, m := range snapshots {
				offered = append(offered, m.Date)
			}
			return &snapshots[1], nil
		},
	}
	require.NoError(t, r.restore("alice", ""))

	assert.Equal(t, []string{"2026-03-14", "2026-03-13"}, offered)
	assert.Contains(t, out.String(), "from alice/2026-03-13")
}

func TestRestore_PickWithNumberedList(t *testing.T) {
	resetFlags(t)
	root := t.TempDir()
	src := sourceTree(t)
	backupOn(t, root, "alice", "2026-03-13", src)
	backupOn(t, root, "alice", "2026-03-14", src)

	restorePick = true
	restoreTarget = t.TempDir()

	in := strings.NewReader("9\n")
	var out bytes.Buffer
	r := &restorer{loc: &locator{root: root}, in: in, out: &out, pick: pickerFor(false, in, &out)}
	err := r.restore("alice", "")
	require.Error(t, err)
	assert.Equal(t, errors.ExitUser, errors.ExitCode(err))
}
