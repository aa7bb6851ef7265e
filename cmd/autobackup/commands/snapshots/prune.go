package snapshots

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/benoistlaurent/autobackup/internal/errors"
	"github.com/benoistlaurent/autobackup/internal/logging"
)

var (
	pruneKeep int
	pruneAll  bool
)

func init() {
	pruneCmd.Flags().IntVar(&pruneKeep, "keep", 0, "number of newest snapshots to keep (required)")
	pruneCmd.Flags().BoolVar(&pruneAll, "all", false, "prune every workstation under the destination")
	_ = pruneCmd.MarkFlagRequired("keep")
	Cmd.AddCommand(pruneCmd)
}

var pruneCmd = &cobra.Command{
	Use:   "prune [workstation...] --keep N",
	Short: "Remove all but the newest snapshots",
	Long: `Remove old snapshots, keeping the newest N of each workstation. Name
workstations or pass --all.`,
	Example: `  autobackup snapshots prune alice --keep 7
  autobackup snapshots prune --all --keep 30`,
	Args: func(_ *cobra.Command, args []string) error {
		if pruneAll && len(args) > 0 {
			return errors.NewUserError(errors.New("name workstations or pass --all, not both"), "")
		}
		if !pruneAll && len(args) == 0 {
			return errors.NewUserError(errors.New("no workstation named"), "Name a workstation or pass --all")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		loc, err := newLocator(logging.FromContext(cmd.Context()))
		if err != nil {
			return err
		}
		return runPruneWithWriter(cmd.OutOrStdout(), loc, args, pruneKeep)
	},
}

func runPruneWithWriter(w io.Writer, loc *locator, names []string, keep int) error {
	if keep < 1 {
		return errors.NewUserError(errors.Newf("invalid --keep %d", keep), "Keep at least one snapshot")
	}

	if len(names) == 0 {
		var err error
		names, err = loc.names()
		if err != nil {
			return err
		}
	}

	var total int
	for _, name := range names {
		removed, err := loc.store(name).Prune(name, keep)
		for _, m := range removed {
			fmt.Fprintf(w, "removed %s/%s\n", name, m.Date)
		}
		total += len(removed)
		if err != nil {
			return errors.NewSystemError(err, "")
		}
	}

	fmt.Fprintf(w, "%d snapshot(s) removed\n", total)
	return nil
}
