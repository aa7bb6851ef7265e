package backup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benoistlaurent/autobackup/internal/errors"
	"github.com/benoistlaurent/autobackup/internal/logging"
	"github.com/benoistlaurent/autobackup/internal/workstation"
)

var fixedNow = time.Date(2026, time.March, 14, 2, 0, 0, 0, time.UTC)

func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func newTestEngine(t *testing.T, root string, opts ...Option) *Engine {
	t.Helper()
	base := []Option{
		WithDestinationRoot(root),
		WithLogger(logging.ForTest(t)),
		WithClock(func() time.Time { return fixedNow }),
	}
	return NewEngine(append(base, opts...)...)
}

func TestRun_SecondRunCopiesNothing(t *testing.T) {
	src := t.TempDir()
	root := t.TempDir()
	writeTree(t, src, map[string]string{
		"a.txt":          "alpha",
		"docs/b.txt":     "bravo",
		"docs/deep/c.md": "charlie",
	})
	entries := []workstation.Entry{{Name: "laptop", Sources: []string{src}}}

	engine := newTestEngine(t, root)

	first, err := engine.Run(context.Background(), entries)
	require.NoError(t, err)
	require.Len(t, first.Entries, 1)
	assert.Equal(t, StatusSuccess, first.Status())
	assert.Equal(t, 3, first.Entries[0].Copied)
	assert.Equal(t, 0, first.Entries[0].Skipped)
	assert.Equal(t, int64(len("alpha")+len("bravo")+len("charlie")), first.Entries[0].Bytes)

	snapshot := SnapshotPath(root, "laptop", "2026-03-14")
	assert.Equal(t, snapshot, first.Entries[0].Snapshot)
	assert.Equal(t, "charlie", readFile(t, filepath.Join(snapshot, "docs", "deep", "c.md")))

	srcInfo, err := os.Stat(filepath.Join(src, "docs", "b.txt"))
	require.NoError(t, err)
	dstInfo, err := os.Stat(filepath.Join(snapshot, "docs", "b.txt"))
	require.NoError(t, err)
	assert.True(t, srcInfo.ModTime().Equal(dstInfo.ModTime()), "modification time not preserved")
	assert.Equal(t, srcInfo.Mode().Perm(), dstInfo.Mode().Perm())

	second, err := engine.Run(context.Background(), entries)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, second.Status())
	assert.Equal(t, 0, second.Entries[0].Copied)
	assert.Equal(t, 3, second.Entries[0].Skipped)
	assert.NotEqual(t, first.ID, second.ID)

	m, err := NewStore(root).Get("laptop", "2026-03-14")
	require.NoError(t, err)
	assert.Len(t, m.Files, 3)
	for _, f := range m.Files {
		assert.NotEmpty(t, f.SHA256, "skipped file %s lost its hash", f.Path)
	}
}

func TestRun_ChangedFileIsCopiedAgain(t *testing.T) {
	src := t.TempDir()
	root := t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "one", "b.txt": "two"})
	entries := []workstation.Entry{{Name: "ws", Sources: []string{src}}}
	engine := newTestEngine(t, root)

	_, err := engine.Run(context.Background(), entries)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("changed"), 0o644))

	run, err := engine.Run(context.Background(), entries)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Entries[0].Copied)
	assert.Equal(t, 1, run.Entries[0].Skipped)
	assert.Equal(t, "changed", readFile(t, filepath.Join(SnapshotPath(root, "ws", "2026-03-14"), "a.txt")))
}

func TestRun_ModifyWindow(t *testing.T) {
	src := t.TempDir()
	root := t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "same"})
	entries := []workstation.Entry{{Name: "ws", Sources: []string{src}}}

	_, err := newTestEngine(t, root).Run(context.Background(), entries)
	require.NoError(t, err)

	// Simulate a filesystem that rounds timestamps
	dst := filepath.Join(SnapshotPath(root, "ws", "2026-03-14"), "a.txt")
	info, err := os.Stat(dst)
	require.NoError(t, err)
	shifted := info.ModTime().Add(700 * time.Millisecond)
	require.NoError(t, os.Chtimes(dst, shifted, shifted))

	strict, err := newTestEngine(t, root).Run(context.Background(), entries)
	require.NoError(t, err)
	assert.Equal(t, 1, strict.Entries[0].Copied)

	require.NoError(t, os.Chtimes(dst, shifted, shifted))
	lenient, err := newTestEngine(t, root, WithModifyWindow(time.Second)).Run(context.Background(), entries)
	require.NoError(t, err)
	assert.Equal(t, 0, lenient.Entries[0].Copied)
	assert.Equal(t, 1, lenient.Entries[0].Skipped)
}

func TestRun_MissingSourceFailsEntryOnly(t *testing.T) {
	src := t.TempDir()
	root := t.TempDir()
	writeTree(t, src, map[string]string{"keep.txt": "data"})

	entries := []workstation.Entry{
		{Name: "gone", Sources: []string{filepath.Join(src, "does-not-exist")}},
		{Name: "fine", Sources: []string{src}},
	}

	run, err := newTestEngine(t, root).Run(context.Background(), entries)
	require.NoError(t, err)
	require.Len(t, run.Entries, 2)

	assert.Equal(t, StatusPartial, run.Status())
	assert.Equal(t, 1, run.FailedEntries())

	assert.Equal(t, "gone", run.Entries[0].Name)
	assert.Equal(t, StatusFailed, run.Entries[0].Status)
	assert.Contains(t, run.Entries[0].Error, "does-not-exist")

	assert.Equal(t, "fine", run.Entries[1].Name)
	assert.Equal(t, StatusSuccess, run.Entries[1].Status)
	assert.Equal(t, 1, run.Entries[1].Copied)
}

func TestRun_UnreadableFileIsPartial(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("file permissions are not enforced for root")
	}

	src := t.TempDir()
	other := t.TempDir()
	root := t.TempDir()
	writeTree(t, src, map[string]string{"ok.txt": "fine", "secret.txt": "hidden"})
	writeTree(t, other, map[string]string{"x.txt": "x"})

	secret := filepath.Join(src, "secret.txt")
	require.NoError(t, os.Chmod(secret, 0o000))
	t.Cleanup(func() { os.Chmod(secret, 0o644) })

	entries := []workstation.Entry{
		{Name: "first", Sources: []string{src}},
		{Name: "second", Sources: []string{other}},
	}

	run, err := newTestEngine(t, root).Run(context.Background(), entries)
	require.NoError(t, err, "a single unreadable file must not abort the run")

	assert.Equal(t, StatusPartial, run.Status())
	first := run.Entries[0]
	assert.Equal(t, StatusPartial, first.Status)
	assert.Equal(t, 1, first.Copied)
	assert.Equal(t, 1, first.Failed)
	require.Len(t, first.Failures, 1)
	assert.Equal(t, "secret.txt", first.Failures[0].Path)

	assert.Equal(t, StatusSuccess, run.Entries[1].Status)
	assert.Equal(t, 1, run.Entries[1].Copied)

	entries2, err := os.ReadDir(SnapshotPath(root, "first", "2026-03-14"))
	require.NoError(t, err)
	for _, e := range entries2 {
		assert.NotContains(t, e.Name(), ".partial", "temp file left behind")
	}
}

func TestRun_EmptyConfig(t *testing.T) {
	root := filepath.Join(t.TempDir(), "never-created")

	run, err := newTestEngine(t, root).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, run.Entries)
	assert.Equal(t, StatusSuccess, run.Status())
	assert.Equal(t, 0, run.FailedEntries())
}

func TestRun_DestinationNotCreatable(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "a"})

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	root := filepath.Join(blocker, "backups")

	entries := []workstation.Entry{{Name: "ws", Sources: []string{src}}}
	run, err := newTestEngine(t, root).Run(context.Background(), entries)
	require.Error(t, err)
	assert.Nil(t, run)
	assert.True(t, errors.Is(err, ErrDestinationUnwritable))
}

func TestRun_DestinationReadOnlyFailsFast(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("file permissions are not enforced for root")
	}

	srcA := t.TempDir()
	srcB := t.TempDir()
	writeTree(t, srcA, map[string]string{"a.txt": "a"})
	writeTree(t, srcB, map[string]string{"b.txt": "b"})

	writable := t.TempDir()
	readOnly := t.TempDir()
	require.NoError(t, os.Chmod(readOnly, 0o555))
	t.Cleanup(func() { os.Chmod(readOnly, 0o755) })

	entries := []workstation.Entry{
		{Name: "a", Sources: []string{srcA}},
		{Name: "b", Sources: []string{srcB}, Destination: readOnly},
	}
	_, err := newTestEngine(t, writable).Run(context.Background(), entries)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDestinationUnwritable))

	_, statErr := os.Stat(WorkstationDir(writable, "a"))
	assert.True(t, os.IsNotExist(statErr), "no entry may be copied when a destination is unwritable")
}

func TestRun_NoDestination(t *testing.T) {
	entries := []workstation.Entry{{Name: "ws", Sources: []string{t.TempDir()}}}
	_, err := NewEngine().Run(context.Background(), entries)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoDestination))
}

func TestRun_EntryDestinationOverride(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "a"})
	defaultRoot := t.TempDir()
	override := filepath.Join(t.TempDir(), "offsite")

	entries := []workstation.Entry{{Name: "ws", Sources: []string{src}, Destination: override}}
	run, err := newTestEngine(t, defaultRoot).Run(context.Background(), entries)
	require.NoError(t, err)

	assert.Equal(t, SnapshotPath(override, "ws", "2026-03-14"), run.Entries[0].Snapshot)
	assert.FileExists(t, filepath.Join(run.Entries[0].Snapshot, "a.txt"))
}

func TestRun_MultipleSources(t *testing.T) {
	home := filepath.Join(t.TempDir(), "alice")
	etc := t.TempDir()
	writeTree(t, home, map[string]string{"notes.txt": "n"})
	writeTree(t, etc, map[string]string{"hosts": "127.0.0.1 localhost"})
	hosts := filepath.Join(etc, "hosts")

	root := t.TempDir()
	entries := []workstation.Entry{{Name: "ws", Sources: []string{home, hosts}}}
	run, err := newTestEngine(t, root).Run(context.Background(), entries)
	require.NoError(t, err)
	assert.Equal(t, 2, run.Entries[0].Copied)

	snapshot := run.Entries[0].Snapshot
	assert.FileExists(t, filepath.Join(snapshot, "alice", "notes.txt"))
	assert.FileExists(t, filepath.Join(snapshot, "hosts"))
}

func TestRun_PatternsAndSymlinks(t *testing.T) {
	src := t.TempDir()
	root := t.TempDir()
	writeTree(t, src, map[string]string{
		"keep.txt":            "k",
		"scratch.tmp":         "t",
		"node_modules/x/y.js": "y",
		"logs/app.log":        "l",
	})
	require.NoError(t, os.Symlink("keep.txt", filepath.Join(src, "link.txt")))

	entries := []workstation.Entry{{
		Name:    "ws",
		Sources: []string{src},
		Exclude: []string{"*.tmp", "node_modules", "logs"},
	}}
	run, err := newTestEngine(t, root).Run(context.Background(), entries)
	require.NoError(t, err)

	out := run.Entries[0]
	assert.Equal(t, StatusSuccess, out.Status)
	assert.Equal(t, 2, out.Copied, "keep.txt and link.txt")
	assert.Equal(t, 3, out.Excluded, "scratch.tmp and two pruned directories")

	snapshot := out.Snapshot
	assert.NoFileExists(t, filepath.Join(snapshot, "scratch.tmp"))
	assert.NoDirExists(t, filepath.Join(snapshot, "node_modules"))

	target, err := os.Readlink(filepath.Join(snapshot, "link.txt"))
	require.NoError(t, err)
	assert.Equal(t, "keep.txt", target)

	again, err := newTestEngine(t, root).Run(context.Background(), entries)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Entries[0].Copied)
	assert.Equal(t, 2, again.Entries[0].Skipped)
}

func TestRun_RemovesStaleTempFiles(t *testing.T) {
	src := t.TempDir()
	root := t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "a"})

	snapshot := SnapshotPath(root, "ws", "2026-03-14")
	stale := filepath.Join(snapshot, "sub", ".autobackup-123.partial")
	writeTree(t, filepath.Dir(stale), map[string]string{filepath.Base(stale): "half"})

	entries := []workstation.Entry{{Name: "ws", Sources: []string{src}}}
	_, err := newTestEngine(t, root).Run(context.Background(), entries)
	require.NoError(t, err)
	assert.NoFileExists(t, stale)
}

func TestRun_WorkersKeepConfigurationOrder(t *testing.T) {
	root := t.TempDir()
	var entries []workstation.Entry
	for _, name := range []string{"e1", "e2", "e3", "e4", "e5"} {
		src := t.TempDir()
		writeTree(t, src, map[string]string{"f.txt": name})
		entries = append(entries, workstation.Entry{Name: name, Sources: []string{src}})
	}

	run, err := newTestEngine(t, root, WithWorkers(3)).Run(context.Background(), entries)
	require.NoError(t, err)
	require.Len(t, run.Entries, 5)
	for i, out := range run.Entries {
		assert.Equal(t, entries[i].Name, out.Name)
		assert.Equal(t, StatusSuccess, out.Status)
		assert.Equal(t, entries[i].Name, readFile(t, filepath.Join(out.Snapshot, "f.txt")))
	}
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "aaaa", "b/c.txt": "cc"})
	root := filepath.Join(t.TempDir(), "backups")

	entries := []workstation.Entry{{Name: "ws", Sources: []string{src}}}
	run, err := newTestEngine(t, root, WithDryRun(true)).Run(context.Background(), entries)
	require.NoError(t, err)

	assert.True(t, run.DryRun)
	assert.Equal(t, 2, run.Entries[0].Copied)
	assert.Equal(t, int64(6), run.Entries[0].Bytes)
	assert.NoDirExists(t, root)
}

func TestRun_BandwidthLimit(t *testing.T) {
	src := t.TempDir()
	root := t.TempDir()
	content := make([]byte, 64*1024)
	for i := range content {
		content[i] = byte(i)
	}
	require.NoError(t, os.WriteFile(filepath.Join(src, "blob.bin"), content, 0o644))

	entries := []workstation.Entry{{Name: "ws", Sources: []string{src}}}
	run, err := newTestEngine(t, root, WithBandwidthLimit(10*1024*1024)).Run(context.Background(), entries)
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), run.Entries[0].Bytes)

	got, err := os.ReadFile(filepath.Join(run.Entries[0].Snapshot, "blob.bin"))
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestRun_Retention(t *testing.T) {
	src := t.TempDir()
	root := t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "a"})
	entries := []workstation.Entry{{Name: "ws", Sources: []string{src}}}

	for _, date := range []string{"2026-03-12", "2026-03-13", "2026-03-14"} {
		_, err := newTestEngine(t, root, WithDate(date), WithRetention(2)).Run(context.Background(), entries)
		require.NoError(t, err)
	}

	snapshots, err := NewStore(root).List("ws")
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	assert.Equal(t, "2026-03-14", snapshots[0].Date)
	assert.Equal(t, "2026-03-13", snapshots[1].Date)
	assert.NoDirExists(t, SnapshotPath(root, "ws", "2026-03-12"))
}

func TestRun_FailedEntryKeepsLastGoodSnapshot(t *testing.T) {
	src := filepath.Join(t.TempDir(), "home")
	root := t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "alpha"})
	entries := []workstation.Entry{{Name: "laptop", Sources: []string{src}}}

	_, err := newTestEngine(t, root, WithDate("2026-03-13"), WithRetention(1)).Run(context.Background(), entries)
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(src))

	run, err := newTestEngine(t, root, WithDate("2026-03-14"), WithRetention(1)).Run(context.Background(), entries)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, run.Entries[0].Status)

	assert.Equal(t, "alpha", readFile(t, filepath.Join(SnapshotPath(root, "laptop", "2026-03-13"), "a.txt")))
	assert.NoDirExists(t, SnapshotPath(root, "laptop", "2026-03-14"), "nothing was read, no snapshot is left")

	snapshots, err := NewStore(root).List("laptop")
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	assert.Equal(t, "2026-03-13", snapshots[0].Date)
}

func TestRun_FailedRerunKeepsSameDayManifest(t *testing.T) {
	src := filepath.Join(t.TempDir(), "home")
	root := t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "alpha"})
	entries := []workstation.Entry{{Name: "laptop", Sources: []string{src}}}

	_, err := newTestEngine(t, root).Run(context.Background(), entries)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(src))

	run, err := newTestEngine(t, root).Run(context.Background(), entries)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, run.Entries[0].Status)

	m, err := NewStore(root).Get("laptop", "2026-03-14")
	require.NoError(t, err)
	assert.False(t, m.Incomplete)
	require.Len(t, m.Files, 1)
	assert.Equal(t, "a.txt", m.Files[0].Path)
}

func TestRun_IncompleteSnapshotDoesNotCountForRetention(t *testing.T) {
	base := t.TempDir()
	home := filepath.Join(base, "home")
	etc := filepath.Join(base, "etc")
	root := t.TempDir()
	writeTree(t, home, map[string]string{"notes.txt": "n"})
	writeTree(t, etc, map[string]string{"hosts": "h"})
	entries := []workstation.Entry{{Name: "server", Sources: []string{home, etc}}}

	runOn := func(date string) *Run {
		t.Helper()
		run, err := newTestEngine(t, root, WithDate(date), WithRetention(1)).Run(context.Background(), entries)
		require.NoError(t, err)
		return run
	}

	runOn("2026-03-12")

	require.NoError(t, os.RemoveAll(etc))
	run := runOn("2026-03-13")
	assert.Equal(t, StatusFailed, run.Entries[0].Status)
	assert.Equal(t, 1, run.Entries[0].Copied, "the readable source is still copied")

	snapshots, err := NewStore(root).List("server")
	require.NoError(t, err)
	require.Len(t, snapshots, 2, "the last complete snapshot survives a failed day")
	assert.Equal(t, "2026-03-13", snapshots[0].Date)
	assert.True(t, snapshots[0].Incomplete)
	assert.Equal(t, "2026-03-12", snapshots[1].Date)
	assert.False(t, snapshots[1].Incomplete)

	writeTree(t, etc, map[string]string{"hosts": "h"})
	run = runOn("2026-03-14")
	assert.Equal(t, StatusSuccess, run.Entries[0].Status)

	snapshots, err = NewStore(root).List("server")
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	assert.Equal(t, "2026-03-14", snapshots[0].Date)
	assert.NoDirExists(t, SnapshotPath(root, "server", "2026-03-13"))
	assert.NoDirExists(t, SnapshotPath(root, "server", "2026-03-12"))
}

func TestRun_PartialEntryKeepsEarlierCopy(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("file permissions are not enforced for root")
	}

	src := t.TempDir()
	root := t.TempDir()
	writeTree(t, src, map[string]string{"ok.txt": "fine", "secret.txt": "hidden"})
	entries := []workstation.Entry{{Name: "ws", Sources: []string{src}}}

	_, err := newTestEngine(t, root).Run(context.Background(), entries)
	require.NoError(t, err)

	secret := filepath.Join(src, "secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("changed"), 0o644))
	require.NoError(t, os.Chmod(secret, 0o000))
	t.Cleanup(func() { os.Chmod(secret, 0o644) })

	run, err := newTestEngine(t, root, WithRetention(1)).Run(context.Background(), entries)
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, run.Entries[0].Status)

	snapshot := SnapshotPath(root, "ws", "2026-03-14")
	assert.Equal(t, "hidden", readFile(t, filepath.Join(snapshot, "secret.txt")))

	store := NewStore(root)
	m, err := store.Get("ws", "2026-03-14")
	require.NoError(t, err)
	assert.Len(t, m.Files, 2, "the earlier copy stays listed")

	failures, err := store.Verify("ws", "2026-03-14")
	require.NoError(t, err)
	assert.Empty(t, failures)
}

func TestRun_RemovesFilesGoneFromSource(t *testing.T) {
	src := t.TempDir()
	root := t.TempDir()
	writeTree(t, src, map[string]string{
		"a.txt":         "a",
		"old/b.txt":     "b",
		"cache/big.bin": "c",
	})
	entries := []workstation.Entry{{Name: "ws", Sources: []string{src}}}

	_, err := newTestEngine(t, root).Run(context.Background(), entries)
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(filepath.Join(src, "old")))
	entries[0].Exclude = []string{"cache"}

	run, err := newTestEngine(t, root).Run(context.Background(), entries)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, run.Entries[0].Status)

	snapshot := SnapshotPath(root, "ws", "2026-03-14")
	assert.FileExists(t, filepath.Join(snapshot, "a.txt"))
	assert.NoDirExists(t, filepath.Join(snapshot, "old"))
	assert.NoDirExists(t, filepath.Join(snapshot, "cache"))

	m, err := NewStore(root).Get("ws", "2026-03-14")
	require.NoError(t, err)
	require.Len(t, m.Files, 1)
	assert.Equal(t, "a.txt", m.Files[0].Path)
}

func TestRun_SymlinkedSourceRoot(t *testing.T) {
	actual := t.TempDir()
	writeTree(t, actual, map[string]string{"docs/a.txt": "alpha"})
	require.NoError(t, os.Symlink("a.txt", filepath.Join(actual, "docs", "link.txt")))

	src := filepath.Join(t.TempDir(), "home")
	require.NoError(t, os.Symlink(actual, src))
	root := t.TempDir()

	entries := []workstation.Entry{{Name: "laptop", Sources: []string{src}}}
	run, err := newTestEngine(t, root).Run(context.Background(), entries)
	require.NoError(t, err)

	out := run.Entries[0]
	assert.Equal(t, StatusSuccess, out.Status)
	assert.Equal(t, 2, out.Copied)

	snapshot := out.Snapshot
	assert.Equal(t, "alpha", readFile(t, filepath.Join(snapshot, "docs", "a.txt")))
	target, err := os.Readlink(filepath.Join(snapshot, "docs", "link.txt"))
	require.NoError(t, err, "links inside the tree stay links")
	assert.Equal(t, "a.txt", target)

	m, err := NewStore(root).Get("laptop", "2026-03-14")
	require.NoError(t, err)
	sources := make(map[string]string)
	for _, f := range m.Files {
		sources[f.Path] = f.Source
	}
	assert.Equal(t, filepath.Join(src, "docs", "a.txt"), sources["docs/a.txt"], "recorded under the configured path")
}

func TestRun_Cancelled(t *testing.T) {
	src := t.TempDir()
	root := t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "a"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	entries := []workstation.Entry{{Name: "ws", Sources: []string{src}}}
	run, err := newTestEngine(t, root).Run(ctx, entries)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	require.NotNil(t, run)
	assert.Equal(t, StatusFailed, run.Entries[0].Status)
	assert.Equal(t, StatusPartial, run.Status())
}

func TestSameTime(t *testing.T) {
	a := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, sameTime(a, a, 0))
	assert.False(t, sameTime(a, a.Add(time.Nanosecond), 0))
	assert.True(t, sameTime(a, a.Add(-time.Second), time.Second))
	assert.False(t, sameTime(a, a.Add(2*time.Second), time.Second))
}
