package commands

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/benoistlaurent/autobackup/cmd/autobackup/commands/flags"
	"github.com/benoistlaurent/autobackup/internal/errors"
	"github.com/benoistlaurent/autobackup/internal/history"
	"github.com/benoistlaurent/autobackup/internal/report"
)

var (
	historyJSON  bool
	historyLimit int
)

func init() {
	historyCmd.Flags().BoolVar(&historyJSON, "json", false,
		"output records as JSON")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20,
		"number of runs to show, 0 for all")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent backup runs",
	Long: `List recorded runs, newest first. Every 'autobackup run' that is not a
dry run is recorded under $XDG_STATE_HOME/autobackup/runs (or history.dir),
and only the newest history.keep records are kept.`,
	Example: `  # Last 20 runs
  autobackup history

  # Full record of the last run, including failed files
  autobackup history --limit 1 --json

  See Also: autobackup run`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func runHistory(cmd *cobra.Command, _ []string) error {
	settings, err := flags.LoadSettings()
	if err != nil {
		return err
	}
	return runHistoryWithWriter(cmd.OutOrStdout(), history.New(settings.HistoryDir()))
}

func runHistoryWithWriter(w io.Writer, store *history.Store) error {
	if historyLimit < 0 {
		return errors.NewUserError(errors.New("--limit must not be negative"), "")
	}

	records, err := store.List(historyLimit)
	if err != nil {
		return errors.NewSystemError(err, "")
	}

	if historyJSON {
		if records == nil {
			records = []history.Record{}
		}
		return errors.Wrap(report.JSON(w, records), "encoding JSON")
	}

	report.New(w).History(records)
	return nil
}
