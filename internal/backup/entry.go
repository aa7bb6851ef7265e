package backup

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/benoistlaurent/autobackup/internal/errors"
	"github.com/benoistlaurent/autobackup/internal/logging"
	"github.com/benoistlaurent/autobackup/internal/workstation"
	"github.com/benoistlaurent/autobackup/pkg/fileutil"
)

// entryJob carries the state of one workstation while it is copied. It is
// owned by a single worker.
type entryJob struct {
	e        *Engine
	entry    workstation.Entry
	root     string
	dir      string
	matcher  *workstation.Matcher
	previous map[string]ManifestFile
	files    []ManifestFile
	out      *EntryOutcome
	logger   *slog.Logger
	errs     []string

	// failedPaths holds snapshot-relative paths of files and directories
	// that failed this run. Their earlier copies stay in the snapshot.
	failedPaths []string
}

func (e *Engine) backupEntry(ctx context.Context, entry workstation.Entry, root string, run *Run) EntryOutcome {
	started := e.now()
	out := EntryOutcome{
		Name:     entry.Name,
		Snapshot: SnapshotPath(root, entry.Name, run.Date),
	}
	job := &entryJob{
		e:      e,
		entry:  entry,
		root:   root,
		dir:    out.Snapshot,
		out:    &out,
		logger: e.logger.With("workstation", entry.Name),
	}

	job.execute(ctx, run)

	out.Duration = e.now().Sub(started)
	switch {
	case len(job.errs) > 0:
		out.Status = StatusFailed
		out.Error = strings.Join(job.errs, "; ")
	case len(out.Failures) > 0:
		out.Status = StatusPartial
	default:
		out.Status = StatusSuccess
	}

	job.logger.Info("workstation done",
		"status", out.Status,
		"copied", out.Copied,
		"skipped", out.Skipped,
		"failed", out.Failed,
		"excluded", out.Excluded,
	)
	return out
}

func (j *entryJob) execute(ctx context.Context, run *Run) {
	if err := ctx.Err(); err != nil {
		j.fail(errors.Wrap(err, "not started"))
		return
	}

	matcher, err := j.entry.Matcher()
	if err != nil {
		j.fail(errors.Wrap(err, "compiling patterns"))
		return
	}
	j.matcher = matcher

	if !j.e.dryRun {
		if err := os.MkdirAll(j.dir, 0o755); err != nil {
			j.fail(errors.Wrap(err, "creating snapshot directory"))
			return
		}
		j.removeStale()
	}
	j.previous = loadPrevious(j.dir)

	for _, src := range j.entry.Sources {
		err := j.copySource(ctx, src)
		if ctx.Err() != nil {
			j.fail(errors.Wrap(ctx.Err(), "interrupted"))
			break
		}
		if err != nil {
			j.logger.Warn("source failed", "source", src, "error", err)
			j.fail(errors.Wrapf(err, "source %s", src))
		}
	}

	if j.e.dryRun {
		return
	}

	failed := len(j.errs) > 0
	if failed && len(j.files) == 0 {
		// Nothing was read. A manifest from an earlier run today stays as
		// it is; otherwise the empty directory is dropped.
		if j.previous == nil {
			_ = os.Remove(j.dir)
		}
		return
	}

	j.carryForward(failed)
	if !failed {
		j.removeOrphans()
	}

	manifest := &Manifest{
		Version:           ManifestVersion,
		Workstation:       j.entry.Name,
		Date:              run.Date,
		RunID:             run.ID,
		CreatedAt:         j.e.now().UTC(),
		Sources:           j.entry.Sources,
		Files:             j.files,
		Incomplete:        failed,
		AutobackupVersion: Version,
	}
	if err := fileutil.WriteJSON(ManifestPath(j.dir), manifest, 0o644); err != nil {
		j.fileFailed(ManifestName, errors.Wrap(err, "writing manifest"))
	}

	// A failed entry must not push a good snapshot out.
	if failed || j.e.retention == 0 {
		return
	}
	removed, err := NewStore(j.root).Prune(j.entry.Name, j.e.retention)
	if err != nil {
		j.logger.Warn("retention failed", "error", err)
	}
	for _, m := range removed {
		j.logger.Info("snapshot pruned", "date", m.Date)
	}
}

// carryForward keeps manifest records of an earlier run today for files
// this run did not replace. After an entry-level failure every unvisited
// file is kept; otherwise only paths that failed this run are.
func (j *entryJob) carryForward(all bool) {
	if len(j.previous) == 0 {
		return
	}
	seen := make(map[string]bool, len(j.files))
	for _, f := range j.files {
		seen[f.Path] = true
	}
	for path, f := range j.previous {
		if seen[path] || (!all && !j.protected(path)) {
			continue
		}
		if _, err := os.Lstat(filepath.Join(j.dir, filepath.FromSlash(path))); err != nil {
			continue
		}
		j.files = append(j.files, f)
	}
	slices.SortFunc(j.files, func(a, b ManifestFile) int { return strings.Compare(a.Path, b.Path) })
}

// protected reports whether path is, or lies below, a path that failed.
func (j *entryJob) protected(path string) bool {
	for _, p := range j.failedPaths {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// removeOrphans deletes files left in the snapshot by an earlier run today
// whose source is gone or now excluded, so the directory holds exactly
// what the manifest lists.
func (j *entryJob) removeOrphans() {
	keep := make(map[string]bool, len(j.files))
	for _, f := range j.files {
		keep[f.Path] = true
	}

	var dirs []string
	_ = filepath.WalkDir(j.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || path == j.dir {
			return nil
		}
		rel, err := filepath.Rel(j.dir, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			dirs = append(dirs, path)
			return nil
		}
		if rel == ManifestName || keep[rel] || j.protected(rel) {
			return nil
		}
		if err := os.Remove(path); err == nil {
			j.logger.Debug("removed file no longer in source", "path", rel)
		}
		return nil
	})

	// Deepest first; non-empty directories stay.
	for i := len(dirs) - 1; i >= 0; i-- {
		_ = os.Remove(dirs[i])
	}
}

func (j *entryJob) fail(err error) {
	j.errs = append(j.errs, err.Error())
}

func (j *entryJob) fileFailed(rel string, err error) {
	j.logger.Warn("file failed", "path", rel, "error", err)
	j.failedPaths = append(j.failedPaths, rel)
	j.out.Failed++
	j.out.Failures = append(j.out.Failures, FileFailure{Path: rel, Error: err.Error()})
}

// removeStale deletes temp files left by an interrupted run.
func (j *entryJob) removeStale() {
	_ = filepath.WalkDir(j.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && fileutil.IsTemp(d.Name()) {
			if err := os.Remove(path); err == nil {
				j.logger.Debug("removed stale temp file", "path", path)
			}
		}
		return nil
	})
}

// loadPrevious indexes the manifest a previous run left in dir, if any.
func loadPrevious(dir string) map[string]ManifestFile {
	var m Manifest
	if err := fileutil.ReadJSON(ManifestPath(dir), fileutil.ManifestLimit, &m); err != nil {
		return nil
	}
	index := make(map[string]ManifestFile, len(m.Files))
	for _, f := range m.Files {
		index[f.Path] = f
	}
	return index
}

// copySource walks one source. The returned error fails the whole entry;
// problems with individual files are recorded as failures instead.
//
// A configured source that is a symlink is followed. Links found inside the
// tree are recreated as links.
func (j *entryJob) copySource(ctx context.Context, src string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	// A file source lands at the top of the snapshot under its own name
	if !info.IsDir() {
		name := filepath.Base(src)
		return j.visit(ctx, src, name, name, info)
	}

	// WalkDir does not descend into a symlinked root.
	walkRoot, err := filepath.EvalSymlinks(src)
	if err != nil {
		return err
	}

	prefix := j.entry.SourceDir(src)
	return filepath.WalkDir(walkRoot, func(walked string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			if walked == walkRoot {
				return walkErr
			}
			rel, _ := filepath.Rel(walkRoot, walked)
			j.fileFailed(filepath.ToSlash(filepath.Join(prefix, rel)), walkErr)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if walked == walkRoot {
			return nil
		}

		rel, err := filepath.Rel(walkRoot, walked)
		if err != nil {
			return err
		}
		// Recorded and restored under the configured path.
		path := filepath.Join(src, rel)
		target := filepath.Join(prefix, rel)

		if d.IsDir() {
			skip, err := j.matcher.ExcludeDir(rel)
			if err != nil {
				j.fileFailed(filepath.ToSlash(target), err)
				return fs.SkipDir
			}
			if skip {
				j.out.Excluded++
				return fs.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			j.fileFailed(filepath.ToSlash(target), err)
			return nil
		}
		return j.visit(ctx, path, rel, target, info)
	})
}

// visit handles a single non-directory path. rel is relative to the source
// root, target relative to the snapshot directory.
func (j *entryJob) visit(ctx context.Context, path, rel, target string, info fs.FileInfo) error {
	slashTarget := filepath.ToSlash(target)

	ok, err := j.matcher.Match(rel)
	if err != nil {
		j.fileFailed(slashTarget, err)
		return nil
	}
	if !ok {
		j.out.Excluded++
		return nil
	}

	dst := filepath.Join(j.dir, target)
	switch {
	case info.Mode().IsRegular():
		err = j.copyRegular(ctx, path, dst, slashTarget, info)
	case info.Mode()&fs.ModeSymlink != 0:
		err = j.copyLink(path, dst, slashTarget, info)
	default:
		j.logger.Debug("ignoring irregular file", "path", path, "mode", info.Mode().String())
		return nil
	}

	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		j.fileFailed(slashTarget, err)
	}
	return nil
}

func (j *entryJob) copyRegular(ctx context.Context, src, dst, rel string, info fs.FileInfo) error {
	record := ManifestFile{
		Path:    rel,
		Source:  src,
		Size:    info.Size(),
		Mode:    info.Mode(),
		ModTime: info.ModTime().UTC(),
	}

	if existing, err := os.Lstat(dst); err == nil && existing.Mode().IsRegular() &&
		existing.Size() == info.Size() && sameTime(existing.ModTime(), info.ModTime(), j.e.modifyWindow) {
		j.out.Skipped++
		if prev, ok := j.previous[rel]; ok && prev.Size == info.Size() && prev.SHA256 != "" {
			record.SHA256 = prev.SHA256
		} else if !j.e.dryRun {
			hash, err := hashFile(dst)
			if err != nil {
				return errors.Wrap(err, "hashing existing copy")
			}
			record.SHA256 = hash
		}
		j.files = append(j.files, record)
		return nil
	}

	if j.e.dryRun {
		j.logger.Debug("would copy", "path", rel, "size", info.Size())
		j.out.Copied++
		j.out.Bytes += info.Size()
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.Wrap(err, "creating parent directory")
	}

	hash, n, err := j.e.copyFile(ctx, src, dst, info)
	if err != nil {
		return err
	}

	j.logger.Log(ctx, logging.LevelTrace, "copied", "path", rel, "bytes", n)
	record.SHA256 = hash
	record.Size = n
	j.out.Copied++
	j.out.Bytes += n
	j.files = append(j.files, record)
	return nil
}

func (j *entryJob) copyLink(src, dst, rel string, info fs.FileInfo) error {
	target, err := os.Readlink(src)
	if err != nil {
		return errors.Wrap(err, "reading link")
	}
	record := ManifestFile{
		Path:    rel,
		Source:  src,
		Mode:    info.Mode(),
		ModTime: info.ModTime().UTC(),
		Target:  target,
	}

	if existing, err := os.Readlink(dst); err == nil && existing == target {
		j.out.Skipped++
		j.files = append(j.files, record)
		return nil
	}

	if j.e.dryRun {
		j.out.Copied++
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.Wrap(err, "creating parent directory")
	}
	if err := copySymlink(target, dst); err != nil {
		return err
	}
	j.out.Copied++
	j.files = append(j.files, record)
	return nil
}
