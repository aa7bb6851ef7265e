package backup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"time"

	"golang.org/x/time/rate"

	"github.com/benoistlaurent/autobackup/internal/errors"
	"github.com/benoistlaurent/autobackup/pkg/fileutil"
)

// maxBurst bounds a single limiter reservation and therefore a single read.
const maxBurst = 256 * 1024

// copyFile streams src into dst through a temp file, preserving mode and
// modification time. It returns the SHA-256 of the copied content and the
// number of bytes written.
func (e *Engine) copyFile(ctx context.Context, src, dst string, info fs.FileInfo) (string, int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", 0, errors.Wrap(err, "opening source file")
	}
	defer in.Close()

	h := sha256.New()
	var n int64
	err = fileutil.WriteAtomic(dst, info.Mode().Perm(), func(w io.Writer) error {
		var r io.Reader = &ctxReader{ctx: ctx, r: in}
		if e.limiter != nil {
			r = &limitedReader{ctx: ctx, r: r, limiter: e.limiter}
		}
		var copyErr error
		n, copyErr = io.Copy(io.MultiWriter(w, h), r)
		return errors.Wrap(copyErr, "copying file")
	})
	if err != nil {
		return "", n, err
	}

	mtime := info.ModTime()
	if err := os.Chtimes(dst, mtime, mtime); err != nil {
		return "", n, errors.Wrap(err, "setting modification time")
	}

	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// copySymlink creates a link to target at dst, replacing whatever dst was.
func copySymlink(target, dst string) error {
	tmp := fileutil.TempPath(dst)
	_ = os.Remove(tmp)
	if err := os.Symlink(target, tmp); err != nil {
		return errors.Wrap(err, "creating link")
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "renaming link")
	}
	return nil
}

// hashFile computes the SHA256 hash of a file.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(err, "opening file")
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.Wrap(err, "reading file")
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// sameTime reports whether two modification times are equal within window.
func sameTime(a, b time.Time, window time.Duration) bool {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d <= window
}

// ctxReader stops a copy at the next read once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// limitedReader throttles reads through a limiter shared by all workers.
type limitedReader struct {
	ctx     context.Context
	r       io.Reader
	limiter *rate.Limiter
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if burst := l.limiter.Burst(); len(p) > burst {
		p = p[:burst]
	}
	n, err := l.r.Read(p)
	if n > 0 {
		if waitErr := l.limiter.WaitN(l.ctx, n); waitErr != nil {
			return n, waitErr
		}
	}
	return n, err
}
