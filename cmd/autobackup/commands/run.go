package commands

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/benoistlaurent/autobackup/cmd/autobackup/commands/flags"
	"github.com/benoistlaurent/autobackup/internal/backup"
	"github.com/benoistlaurent/autobackup/internal/config"
	"github.com/benoistlaurent/autobackup/internal/errors"
	"github.com/benoistlaurent/autobackup/internal/history"
	"github.com/benoistlaurent/autobackup/internal/logging"
	"github.com/benoistlaurent/autobackup/internal/report"
	"github.com/benoistlaurent/autobackup/internal/workstation"
)

var (
	runDest      string
	runWorkers   int
	runRetention int
	runBwLimit   string
	runDryRun    bool
	runDate      string
	runJSON      bool
	runNoHistory bool
)

func init() {
	runCmd.Flags().StringVarP(&runDest, "dest", "d", "",
		"destination root (overrides the destination setting)")
	runCmd.Flags().IntVarP(&runWorkers, "workers", "j", config.DefaultWorkers,
		"number of workstations backed up concurrently")
	runCmd.Flags().IntVar(&runRetention, "retention", 0,
		"snapshots to keep per workstation, 0 keeps all")
	runCmd.Flags().StringVar(&runBwLimit, "bwlimit", "",
		`aggregate copy bandwidth, e.g. "10MB" (per second), 0 for unlimited`)
	runCmd.Flags().BoolVarP(&runDryRun, "dry-run", "n", false,
		"report what would be copied without writing anything")
	runCmd.Flags().StringVar(&runDate, "date", "",
		"snapshot directory name to use instead of today's date")
	runCmd.Flags().BoolVar(&runJSON, "json", false,
		"print the run summary as JSON")
	runCmd.Flags().BoolVar(&runNoHistory, "no-history", false,
		"do not record the run in the history")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run [workstation...]",
	Short: "Back up the configured workstations",
	Long: `Copy every workstation listed in the workstation file into
<destination>/<workstation>/<date>/. Files whose size and modification time
match the copy already in today's snapshot are skipped.

Name workstations to back up only those. A workstation whose source is
missing or unreadable is reported and the run moves on to the next one.

Exit codes:
  0 - every workstation was backed up
  1 - the run completed but some workstations or files failed
  2 - the run could not start (settings, workstation file, flags)
  3 - system failure (destination not writable, interrupted)`,
	Example: `  # Back up everything
  autobackup run

  # Back up two workstations to a USB disk, four at a time
  autobackup run alice lab --dest /mnt/usb --workers 4

  # See what would be copied
  autobackup run --dry-run -v

  See Also: autobackup check, autobackup history`,
	RunE: runRun,
}

// runParams are the per-invocation choices that are not settings.
type runParams struct {
	names     []string
	dryRun    bool
	date      string
	json      bool
	noHistory bool
}

// runOutput is the JSON form of a run summary.
type runOutput struct {
	*backup.Run
	Status backup.Status `json:"status"`
	Totals backup.Counts `json:"totals"`
}

func runRun(cmd *cobra.Command, args []string) error {
	settings, err := flags.LoadSettings()
	if err != nil {
		return err
	}

	fs := cmd.Flags()
	if fs.Changed("dest") {
		settings.Destination = runDest
	}
	if fs.Changed("workers") {
		settings.Workers = runWorkers
	}
	if fs.Changed("retention") {
		settings.Retention = runRetention
	}
	if fs.Changed("bwlimit") {
		settings.BandwidthLimit = runBwLimit
	}
	if errs := config.Validate(settings); len(errs) > 0 {
		return errors.NewUserError(errs[0], "Run: autobackup run --help")
	}

	return runBackup(cmd.Context(), cmd.OutOrStdout(), settings, runParams{
		names:     args,
		dryRun:    runDryRun,
		date:      runDate,
		json:      runJSON,
		noHistory: runNoHistory,
	})
}

// runBackup loads the workstation file, runs the engine once, prints the
// summary and records the run. The returned error carries the exit code.
func runBackup(ctx context.Context, w io.Writer, settings *config.Settings, p runParams) error {
	logger := logging.FromContext(ctx)

	if err := validateSnapshotName(p.date); err != nil {
		return err
	}

	entries, err := workstation.LoadFile(settings.WorkstationsFile())
	if errors.Is(err, workstation.ErrConfigNotFound) {
		err = errors.WithHint(err, "Run: autobackup install --from <file>")
	}
	if err != nil {
		return errors.NewConfigError(err)
	}

	entries, err = selectEntries(entries, p.names)
	if err != nil {
		return err
	}

	bandwidth, err := settings.BandwidthBytes()
	if err != nil {
		return errors.NewUserError(err, "Use a size such as 512KB or 10MB")
	}

	opts := []backup.Option{
		backup.WithDestinationRoot(settings.Destination),
		backup.WithWorkers(settings.Workers),
		backup.WithRetention(settings.Retention),
		backup.WithDateLayout(settings.DateFormat),
		backup.WithModifyWindow(settings.ModifyWindow),
		backup.WithBandwidthLimit(bandwidth),
		backup.WithDryRun(p.dryRun),
		backup.WithLogger(logger),
	}
	if p.date != "" {
		opts = append(opts, backup.WithDate(p.date))
	}

	run, runErr := backup.NewEngine(opts...).Run(ctx, entries)
	if run == nil {
		return classifyRunError(runErr)
	}

	if p.json {
		out := runOutput{Run: run, Status: run.Status(), Totals: run.Totals()}
		if err := report.JSON(w, out); err != nil {
			return errors.Wrap(err, "encoding run summary")
		}
	} else {
		report.New(w).Run(run)
	}

	if !p.noHistory && !p.dryRun {
		recordRun(logger, settings, run, runErr)
	}

	if runErr != nil {
		return errors.NewSystemError(runErr, "Run it again; leftover partial files are removed on the next run")
	}
	if run.Status() != backup.StatusSuccess {
		return errors.NewPartialError(run.FailedEntries(), len(run.Entries))
	}
	return nil
}

func classifyRunError(err error) error {
	switch {
	case errors.Is(err, backup.ErrNoDestination):
		return errors.NewUserError(err, "Set destination in the settings file or pass --dest")
	case errors.Is(err, backup.ErrDestinationUnwritable):
		return errors.NewSystemError(err, "Run: autobackup check")
	default:
		return errors.NewSystemError(err, "")
	}
}

// recordRun saves the run in the history and prunes old records. History is
// best-effort and never changes the exit code.
func recordRun(logger *slog.Logger, settings *config.Settings, run *backup.Run, runErr error) {
	store := history.New(settings.HistoryDir())
	path, err := store.Save(history.NewRecord(run, runErr))
	if err != nil {
		logger.Warn("could not record run", "dir", store.Dir(), "error", err)
		return
	}
	logger.Debug("run recorded", "file", path)

	if removed, err := store.Prune(settings.History.Keep); err != nil {
		logger.Warn("could not prune history", "error", err)
	} else if removed > 0 {
		logger.Debug("history pruned", "removed", removed)
	}
}

// selectEntries keeps the named entries in file order. No names selects all.
func selectEntries(entries []workstation.Entry, names []string) ([]workstation.Entry, error) {
	if len(names) == 0 {
		return entries, nil
	}

	known := make(map[string]bool, len(entries))
	for _, e := range entries {
		known[e.Name] = true
	}
	var unknown []string
	for _, n := range names {
		if !known[n] {
			unknown = append(unknown, n)
		}
	}
	if len(unknown) > 0 {
		return nil, errors.NewUserError(
			errors.Newf("unknown workstation(s): %s", strings.Join(unknown, ", ")),
			"Run: autobackup check",
		)
	}

	selected := make([]workstation.Entry, 0, len(names))
	for _, e := range entries {
		if slices.Contains(names, e.Name) {
			selected = append(selected, e)
		}
	}
	return selected, nil
}

// validateSnapshotName rejects --date values that are not a single
// directory name.
func validateSnapshotName(date string) error {
	if date == "" {
		return nil
	}
	if strings.ContainsAny(date, `/\`) || date == "." || date == ".." || strings.HasPrefix(date, ".") {
		return errors.NewUserError(errors.Newf("invalid --date %q", date), "Use a plain directory name such as 2026-03-14")
	}
	return nil
}
