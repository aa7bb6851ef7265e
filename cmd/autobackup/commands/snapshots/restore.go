package snapshots

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/benoistlaurent/autobackup/internal/backup"
	"github.com/benoistlaurent/autobackup/internal/cli/prompt"
	"github.com/benoistlaurent/autobackup/internal/errors"
	"github.com/benoistlaurent/autobackup/internal/logging"
)

var (
	restoreTarget string
	restoreYes    bool
	restorePick   bool
)

func init() {
	restoreCmd.Flags().StringVarP(&restoreTarget, "target", "t", "",
		"directory to restore into (default: the original source paths)")
	restoreCmd.Flags().BoolVarP(&restoreYes, "yes", "y", false,
		"overwrite the original source paths without asking")
	restoreCmd.Flags().BoolVar(&restorePick, "pick", false,
		"choose the snapshot interactively")
	Cmd.AddCommand(restoreCmd)
}

var restoreCmd = &cobra.Command{
	Use:   "restore <workstation> [date]",
	Short: "Copy a snapshot back",
	Long: `Copy the files of a snapshot back, checking each file's hash while it
is copied. Without --target every file returns to the path it was backed up
from, overwriting what is there; this asks for confirmation unless --yes is
given.

Without a date the newest snapshot is restored. With --pick the snapshot is
chosen interactively.`,
	Example: `  # Restore the newest snapshot into a scratch directory
  autobackup snapshots restore alice --target /tmp/alice

  # Put a given day back in place
  autobackup snapshots restore alice 2026-03-14 --yes

  # Choose the snapshot from a list
  autobackup snapshots restore alice --pick --target /tmp/alice`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		loc, err := newLocator(logging.FromContext(cmd.Context()))
		if err != nil {
			return err
		}
		var date string
		if len(args) == 2 {
			date = args[1]
		}
		interactive := logging.IsTTY(os.Stdin)
		r := &restorer{
			loc:         loc,
			in:          cmd.InOrStdin(),
			out:         cmd.OutOrStdout(),
			interactive: interactive,
			pick:        pickerFor(interactive, cmd.InOrStdin(), cmd.OutOrStdout()),
		}
		return r.restore(args[0], date)
	},
}

// picker chooses one snapshot among many.
type picker func(name string, snapshots []backup.Manifest) (*backup.Manifest, error)

// pickerFor returns the fuzzy finder on a terminal and a numbered list
// otherwise.
func pickerFor(interactive bool, in io.Reader, out io.Writer) picker {
	if interactive {
		return func(_ string, snapshots []backup.Manifest) (*backup.Manifest, error) {
			return prompt.FindSnapshot(snapshots)
		}
	}
	return prompt.NewSelectorWithIO(in, out).SelectSnapshot
}

type restorer struct {
	loc         *locator
	in          io.Reader
	out         io.Writer
	interactive bool
	pick        picker
}

func (r *restorer) restore(name, date string) error {
	store := r.loc.store(name)

	m, err := r.choose(store, name, date)
	if err != nil {
		return err
	}

	if restoreTarget == "" && !restoreYes {
		if !r.interactive {
			return errors.NewUserError(
				errors.New("restoring over the original paths needs confirmation"),
				"Pass --yes, or --target to restore elsewhere",
			)
		}
		ok, err := prompt.NewSelectorWithIO(r.in, r.out).Confirm(
			fmt.Sprintf("Overwrite %d file(s) at their original paths with %s/%s?", len(m.Files), name, m.Date))
		if err != nil {
			return errors.Wrap(err, "reading confirmation")
		}
		if !ok {
			fmt.Fprintln(r.out, "Restore cancelled.")
			return nil
		}
	}

	n, err := store.Restore(name, m.Date, restoreTarget)
	if err != nil {
		fmt.Fprintf(r.out, "%d file(s) restored before the failure\n", n)
		return errors.NewSystemError(err, "Run: autobackup snapshots verify "+name+" "+m.Date)
	}

	where := restoreTarget
	if where == "" {
		where = "original paths"
	}
	fmt.Fprintf(r.out, "✓ %d file(s) restored from %s/%s to %s\n", n, name, m.Date, where)
	return nil
}

func (r *restorer) choose(store *backup.Store, name, date string) (*backup.Manifest, error) {
	if !restorePick || date != "" {
		return resolveSnapshot(store, name, date)
	}

	all, err := store.List(name)
	if errors.Is(err, backup.ErrNoSnapshots) {
		return nil, errors.NewUserError(err, "Run: autobackup snapshots list")
	}
	if err != nil {
		return nil, errors.NewSystemError(err, "")
	}

	m, err := r.pick(name, all)
	if errors.Is(err, prompt.ErrSelectionCancelled) {
		return nil, errors.NewUserError(err, "")
	}
	if err != nil {
		return nil, errors.NewUserError(err, "Enter the number of a listed snapshot")
	}
	return m, nil
}
