package snapshots

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/benoistlaurent/autobackup/internal/backup"
	"github.com/benoistlaurent/autobackup/internal/errors"
	"github.com/benoistlaurent/autobackup/internal/logging"
	"github.com/benoistlaurent/autobackup/internal/report"
)

var listJSON bool

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "output in JSON format")
	Cmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:     "list [workstation...]",
	Aliases: []string{"ls"},
	Short:   "List snapshots, newest first",
	Long: `List the snapshots of the named workstations, or of every workstation
found under the destination root, newest first.`,
	Example: `  autobackup snapshots list
  autobackup snapshots list alice --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		loc, err := newLocator(logging.FromContext(cmd.Context()))
		if err != nil {
			return err
		}
		return runListWithWriter(cmd.OutOrStdout(), loc, args)
	},
}

// listOutput is the JSON form of one workstation's snapshots.
type listOutput struct {
	Workstation string            `json:"workstation"`
	Snapshots   []backup.Manifest `json:"snapshots"`
}

func runListWithWriter(w io.Writer, loc *locator, names []string) error {
	explicit := len(names) > 0
	if !explicit {
		var err error
		names, err = loc.names()
		if err != nil {
			return err
		}
	}

	out := make([]listOutput, 0, len(names))
	for _, name := range names {
		manifests, err := loc.store(name).List(name)
		if err != nil {
			if errors.Is(err, backup.ErrNoSnapshots) && !explicit {
				continue
			}
			if errors.Is(err, backup.ErrNoSnapshots) {
				return errors.NewUserError(err, "Run: autobackup snapshots list")
			}
			return errors.NewSystemError(err, "")
		}
		out = append(out, listOutput{Workstation: name, Snapshots: manifests})
	}

	if listJSON {
		if err := report.JSON(w, out); err != nil {
			return errors.Wrap(err, "encoding JSON")
		}
		return nil
	}

	if len(out) == 0 {
		_, _ = io.WriteString(w, "No snapshots found.\n")
		return nil
	}
	p := report.New(w)
	for _, o := range out {
		p.Snapshots(o.Workstation, o.Snapshots)
	}
	return nil
}
