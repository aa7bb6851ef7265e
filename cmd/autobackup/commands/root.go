// Package commands implements the CLI commands for autobackup.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/benoistlaurent/autobackup/cmd"
	"github.com/benoistlaurent/autobackup/cmd/autobackup/commands/flags"
	"github.com/benoistlaurent/autobackup/internal/backup"
	"github.com/benoistlaurent/autobackup/internal/config"
	"github.com/benoistlaurent/autobackup/internal/errors"
	"github.com/benoistlaurent/autobackup/internal/logging"
)

// debugEnv raises verbosity when no -v flag is given: 1/true is debug, 2 is trace.
const debugEnv = "AUTOBACKUP_DEBUG"

// configPath holds the value of the --config flag.
var configPath string

// workstationsPath holds the value of the --workstations flag.
var workstationsPath string

// verbosity holds the count of -v flags.
var verbosity int

// quiet holds the value of the -q/--quiet flag.
var quiet bool

// logFormat holds the value of the --log-format flag.
var logFormat string

// logFile holds the path to the log file.
var logFile string

// logFileHandle is the open --log-file, closed after the command runs.
var logFileHandle *os.File

func init() {
	cobra.OnInitialize(config.Init)

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"settings file (default: search ., $XDG_CONFIG_HOME/autobackup, /etc/autobackup)")
	rootCmd.PersistentFlags().StringVarP(&workstationsPath, "workstations", "w", "",
		"workstation file (default: <prefix>/etc/autobackup.cfg)")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v",
		"increase verbosity level (e.g., -v, -vv, -vvv)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false,
		"only log errors")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text",
		"log format: text, json")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "",
		"also append logs to file as JSON, at info level or more verbose")

	rootCmd.Version = cmd.Version
	rootCmd.SetVersionTemplate("autobackup version {{.Version}}\n")

	// Errors are printed by main with their suggestion
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	backup.Version = cmd.Version
}

var rootCmd = &cobra.Command{
	Use:   "autobackup",
	Short: "Scheduled, incremental backups of local workstations",
	Long: `autobackup copies the directories of every workstation listed in its
workstation file into dated snapshots under a destination root. Files that
did not change since the last run are skipped, so a daily run is cheap.

The workstation file lives at <prefix>/etc/autobackup.cfg by default and is
put there by 'autobackup install'. Schedule 'autobackup run' daily with cron,
or keep 'autobackup daemon' running.`,
	Example: `  # Install the workstation file and print the crontab line
  sudo autobackup install --from ./workstations.cfg

  # Check the installation
  autobackup check

  # Back up every workstation
  autobackup run

  # Back up one workstation without writing anything
  autobackup run alice --dry-run

  See Also: autobackup snapshots, autobackup history`,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		flags.SetConfigPath(configPath)
		flags.SetWorkstationsPath(workstationsPath)
		return setupLogging(cmd)
	},
	PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
		return closeLogFile()
	},
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// setupLogging configures the default logger based on verbosity flags.
func setupLogging(cmd *cobra.Command) error {
	if quiet && verbosity > 0 {
		return errors.NewUserError(errors.New("--quiet and --verbose are mutually exclusive"), "Pass only one of them")
	}

	format, err := logging.ParseFormat(logFormat)
	if err != nil {
		return errors.NewUserError(err, "Use --log-format text or --log-format json")
	}

	level := slog.LevelError
	if !quiet {
		// CLI flags take precedence over the environment
		v := verbosity
		if v == 0 {
			v = logging.VerbosityFromEnv(os.Getenv(debugEnv))
		}
		level = logging.LevelFromVerbosity(v)
	}

	opts := logging.Options{
		Level:   level,
		Format:  format,
		Console: cmd.ErrOrStderr(),
	}

	if err := closeLogFile(); err != nil {
		return err
	}
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return errors.NewUserError(errors.Wrap(err, "opening log file"), "Check the --log-file path")
		}
		logFileHandle = f
		opts.File = f
	}

	logger, err := logging.Setup(opts)
	if err != nil {
		return errors.NewUserError(err, "")
	}
	slog.SetDefault(logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(logging.NewContext(ctx, logger))

	return nil
}

func closeLogFile() error {
	if logFileHandle == nil {
		return nil
	}
	err := logFileHandle.Close()
	logFileHandle = nil
	return errors.Wrap(err, "closing log file")
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command
// context so a running backup stops at the next chunk.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// PrintError writes err and its suggestion, if any, for the user.
func PrintError(w io.Writer, err error) {
	red := color.New(color.FgRed, color.Bold)
	_, _ = red.Fprint(w, "Error: ")
	fmt.Fprintln(w, err)
	if s := errors.Suggestion(err); s != "" {
		fmt.Fprintf(w, "  %s\n", s)
	}
}
