package commands

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/benoistlaurent/autobackup/cmd/autobackup/commands/flags"
	"github.com/benoistlaurent/autobackup/internal/config"
	"github.com/benoistlaurent/autobackup/internal/errors"
	"github.com/benoistlaurent/autobackup/internal/logging"
	"github.com/benoistlaurent/autobackup/internal/schedule"
)

var (
	daemonSchedule string
	daemonRunNow   bool
)

func init() {
	daemonCmd.Flags().StringVar(&daemonSchedule, "schedule", "",
		"cron expression (default: the schedule setting)")
	daemonCmd.Flags().BoolVar(&daemonRunNow, "run-now", false,
		"run a backup immediately, then follow the schedule")
	rootCmd.AddCommand(daemonCmd)
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run backups on a schedule without cron",
	Long: `Stay in the foreground and run a backup at every activation of the
schedule. The settings and the workstation file are read again before each
run, so edits take effect without a restart. An activation that comes while
the previous run is still copying is skipped.

Stop with SIGINT or SIGTERM; a run in progress stops at the next chunk and
is recorded as interrupted.`,
	Example: `  # Every day at 02:00 (the default)
  autobackup daemon -v

  # Every six hours, starting now
  autobackup daemon --schedule "@every 6h" --run-now

  See Also: autobackup install, autobackup history`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	settings, err := flags.LoadSettings()
	if err != nil {
		return err
	}

	spec := settings.Schedule
	if daemonSchedule != "" {
		spec = daemonSchedule
	}
	return runDaemonWithWriter(cmd.Context(), cmd.OutOrStdout(), spec, daemonRunNow, flags.LoadSettings)
}

// runDaemonWithWriter blocks until ctx is cancelled. load is called before
// every run. A failed run is logged and never stops the daemon.
func runDaemonWithWriter(ctx context.Context, w io.Writer, spec string, runNow bool, load func() (*config.Settings, error)) error {
	logger := logging.FromContext(ctx)

	job := func(ctx context.Context) error {
		settings, err := load()
		if err != nil {
			return err
		}
		return runBackup(ctx, w, settings, runParams{})
	}

	sched, err := schedule.New(spec, job, logger)
	if err != nil {
		return errors.NewUserError(err, `Use a five-field cron expression such as "0 2 * * *"`)
	}

	if runNow {
		if err := job(ctx); err != nil {
			logger.Error("initial run failed", "error", err)
		}
	}

	err = sched.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Info("daemon stopped")
		return nil
	}
	return err
}
