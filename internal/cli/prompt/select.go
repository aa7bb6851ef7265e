// Package prompt provides interactive CLI prompts for user input.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/benoistlaurent/autobackup/internal/backup"
	"github.com/benoistlaurent/autobackup/internal/errors"
	"github.com/benoistlaurent/autobackup/internal/report"
)

// Sentinel errors for snapshot selection.
var (
	ErrNoSnapshots        = errors.New("no snapshots to select from")
	ErrInvalidSelection   = errors.New("invalid selection")
	ErrSelectionCancelled = errors.New("selection cancelled")
)

// Selector handles interactive prompts on a reader/writer pair.
type Selector struct {
	reader *bufio.Reader
	writer io.Writer
}

// NewSelector creates a new Selector using stdin and stdout.
func NewSelector() *Selector {
	return NewSelectorWithIO(os.Stdin, os.Stdout)
}

// NewSelectorWithIO creates a Selector with custom reader and writer for testing.
func NewSelectorWithIO(r io.Reader, w io.Writer) *Selector {
	return &Selector{
		reader: bufio.NewReader(r),
		writer: w,
	}
}

// SelectSnapshot prompts the user to choose one of the snapshots of a
// workstation, newest first.
//
// Returns:
//   - ErrNoSnapshots if the list is empty
//   - The snapshot if only one exists (auto-selects without prompting)
//   - The selected snapshot based on user input, the newest on empty input
//   - ErrInvalidSelection if the selection is out of range
//   - ErrSelectionCancelled if input is EOF (e.g., Ctrl+D)
func (s *Selector) SelectSnapshot(name string, snapshots []backup.Manifest) (*backup.Manifest, error) {
	if len(snapshots) == 0 {
		return nil, ErrNoSnapshots
	}

	if len(snapshots) == 1 {
		return &snapshots[0], nil
	}

	fmt.Fprintf(s.writer, "Snapshots of %q:\n", name)
	for i, m := range snapshots {
		fmt.Fprintf(s.writer, "  [%d] %s  %d file(s), %s\n", i+1, m.Date, len(m.Files), report.Size(m.TotalSize()))
	}
	fmt.Fprintf(s.writer, "Select [1]: ")

	input, err := s.readLine()
	if err != nil {
		return nil, err
	}

	if input == "" {
		return &snapshots[0], nil
	}

	selection, err := strconv.Atoi(input)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidSelection, "%q is not a number", input)
	}

	if selection < 1 || selection > len(snapshots) {
		return nil, errors.Wrapf(ErrInvalidSelection, "%d is out of range [1-%d]", selection, len(snapshots))
	}

	return &snapshots[selection-1], nil
}

// Confirm asks a yes/no question. Only "y" and "yes" (any case) confirm;
// EOF declines.
func (s *Selector) Confirm(question string) (bool, error) {
	fmt.Fprintf(s.writer, "%s [y/N]: ", strings.TrimSpace(question))

	input, err := s.readLine()
	if errors.Is(err, ErrSelectionCancelled) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	answer := strings.ToLower(input)
	return answer == "y" || answer == "yes", nil
}

func (s *Selector) readLine() (string, error) {
	line, err := s.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line == "" {
			return "", ErrSelectionCancelled
		}
		if !errors.Is(err, io.EOF) {
			return "", errors.Wrap(err, "reading selection")
		}
	}
	return strings.TrimSpace(line), nil
}
