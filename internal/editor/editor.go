// Package editor launches the user's preferred text editor on autobackup
// files and keeps a broken edit from replacing a working file.
package editor

import (
	"bytes"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/benoistlaurent/autobackup/internal/errors"
	"github.com/benoistlaurent/autobackup/pkg/fileutil"
)

// ErrUnchanged indicates the editor exited without modifying the file.
var ErrUnchanged = errors.New("file not modified")

// Editor runs an external editor with the terminal attached.
type Editor struct {
	// Command overrides editor detection. It may carry arguments, e.g.
	// "code --wait".
	Command string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// New returns an Editor wired to the process's standard streams.
func New() *Editor {
	return &Editor{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Open launches the editor on path and waits for it to exit.
func (e *Editor) Open(path string) error {
	command := e.Command
	if command == "" {
		command = detectEditor()
	}

	args := strings.Fields(command)
	if len(args) == 0 {
		return errors.New("editor command is empty")
	}

	cmd := exec.Command(args[0], append(args[1:], path)...)
	cmd.Stdin = e.Stdin
	cmd.Stdout = e.Stdout
	cmd.Stderr = e.Stderr

	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "running editor %s", args[0])
	}
	return nil
}

// Edit opens a scratch copy of path, runs validate on the result and
// replaces path only when validation passes. The extension is kept so
// validators that dispatch on it see the same format. A missing path starts
// from initial.
//
// On a validation failure the scratch copy is left in place and its path is
// included in the error so the user can recover the edit.
func (e *Editor) Edit(path string, initial []byte, validate func(path string) error) error {
	original, err := os.ReadFile(path)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist):
		original = initial
	default:
		return errors.Wrapf(err, "reading %s", path)
	}

	perm := os.FileMode(0o644)
	if info, statErr := os.Stat(path); statErr == nil {
		perm = info.Mode().Perm()
	}

	scratch, err := os.CreateTemp("", "autobackup-edit-*"+filepath.Ext(path))
	if err != nil {
		return errors.Wrap(err, "creating scratch file")
	}
	scratchPath := scratch.Name()
	_, err = scratch.Write(original)
	if closeErr := scratch.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(scratchPath)
		return errors.Wrap(err, "writing scratch file")
	}

	if err := e.Open(scratchPath); err != nil {
		os.Remove(scratchPath)
		return err
	}

	edited, err := os.ReadFile(scratchPath)
	if err != nil {
		return errors.Wrapf(err, "reading %s", scratchPath)
	}
	if bytes.Equal(edited, original) {
		os.Remove(scratchPath)
		return ErrUnchanged
	}

	if validate != nil {
		if err := validate(scratchPath); err != nil {
			return errors.Wrapf(err, "edit kept in %s", scratchPath)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "creating %s", filepath.Dir(path))
	}
	if err := fileutil.WriteFile(path, edited, perm); err != nil {
		return errors.Wrapf(err, "edit kept in %s", scratchPath)
	}
	os.Remove(scratchPath)
	return nil
}

// detectEditor returns the editor command to use based on environment variables
// and available binaries. Fallback chain: $EDITOR → $VISUAL → nano → vi
func detectEditor() string {
	if editor := os.Getenv("EDITOR"); editor != "" {
		return editor
	}

	if visual := os.Getenv("VISUAL"); visual != "" {
		return visual
	}

	if _, err := exec.LookPath("nano"); err == nil {
		return "nano"
	}

	return "vi"
}
