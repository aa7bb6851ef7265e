package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/benoistlaurent/autobackup/cmd/autobackup/commands/flags"
	"github.com/benoistlaurent/autobackup/internal/config"
	"github.com/benoistlaurent/autobackup/internal/doctor"
	"github.com/benoistlaurent/autobackup/internal/errors"
	"github.com/benoistlaurent/autobackup/internal/report"
)

var (
	checkJSON    bool
	checkVerbose bool
)

func init() {
	checkCmd.Flags().BoolVar(&checkJSON, "json", false,
		"output results as JSON")
	checkCmd.Flags().BoolVar(&checkVerbose, "all", false,
		"show passed checks too")
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:     "check",
	Aliases: []string{"doctor"},
	Short:   "Diagnose the installation",
	Long: `Run read-only diagnostics before the next scheduled backup:

  settings          the settings file is valid
  workstation-file  the workstation file parses, names are unique
  sources           every source path exists and is readable
  destinations      every destination root exists or can be created, and is writable
  schedule          the cron expression is valid; shows the next run
  history           run records can be written

Exit codes:
  0 - no errors (warnings may be present)
  2 - the settings or workstation file are invalid
  3 - a destination or other system check failed`,
	Example: `  # Check everything
  autobackup check

  # Include passed checks
  autobackup check --all

  # Machine-readable output
  autobackup check --json

  See Also: autobackup install, autobackup run`,
	PreRunE: func(_ *cobra.Command, _ []string) error {
		if checkJSON && checkVerbose {
			return errors.NewUserError(errors.New("flags --json and --all are mutually exclusive"), "")
		}
		return nil
	},
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, _ []string) error {
	settings, err := flags.LoadSettings()
	if err != nil {
		return err
	}
	return runCheckWithWriter(cmd.Context(), cmd.OutOrStdout(), settings, time.Now())
}

func runCheckWithWriter(ctx context.Context, w io.Writer, settings *config.Settings, now time.Time) error {
	result := doctor.Standard(doctor.NewTarget(settings), now).Run(ctx)

	if checkJSON {
		if err := report.JSON(w, result); err != nil {
			return errors.Wrap(err, "encoding JSON")
		}
	} else {
		outputCheckText(w, result)
	}

	return checkExitError(result)
}

func outputCheckText(w io.Writer, result *doctor.Report) {
	for _, r := range result.Results {
		if !checkVerbose && !r.Status.Problem() {
			continue
		}

		fmt.Fprintf(w, "%s [%s] %s: %s\n", statusIcon(r.Status), r.Category, r.Name, r.Message)

		if r.FixHint != "" && r.Status.Problem() {
			fmt.Fprintf(w, "  hint: %s\n", r.FixHint)
		}
	}

	fmt.Fprintf(w, "Summary: %d passed, %d info, %d warnings, %d errors\n",
		result.Summary.Passed, result.Summary.Info, result.Summary.Warnings, result.Summary.Errors)
}

// checkExitError maps failed checks to an exit code: configuration problems
// are user errors, everything else is a system error.
func checkExitError(result *doctor.Report) error {
	if !result.HasErrors() {
		return nil
	}

	var names []string
	configOnly := true
	for _, r := range result.Failed() {
		names = append(names, r.Name)
		if r.Category != "config" && r.Category != "schedule" {
			configOnly = false
		}
	}

	err := errors.Newf("%d check(s) failed: %v", len(names), names)
	if configOnly {
		return errors.NewUserError(err, "Fix the reported lines, then run: autobackup check")
	}
	return errors.NewSystemError(err, "Fix the reported paths, then run: autobackup check")
}

func statusIcon(s doctor.Severity) string {
	switch s {
	case doctor.SeverityPass:
		return "✓"
	case doctor.SeverityInfo:
		return "ℹ"
	case doctor.SeverityWarning:
		return "⚠"
	case doctor.SeverityError:
		return "✗"
	default:
		return "?"
	}
}
