package commands

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/benoistlaurent/autobackup/cmd/autobackup/commands/flags"
	"github.com/benoistlaurent/autobackup/internal/config"
	"github.com/benoistlaurent/autobackup/internal/errors"
	"github.com/benoistlaurent/autobackup/internal/install"
	"github.com/benoistlaurent/autobackup/internal/report"
	"github.com/benoistlaurent/autobackup/internal/schedule"
	"github.com/benoistlaurent/autobackup/internal/workstation"
)

var (
	installPrefix   string
	installFrom     string
	installForce    bool
	installSchedule string
	installDest     string
	installJSON     bool
)

func init() {
	installCmd.Flags().StringVar(&installPrefix, "prefix", "",
		"installation prefix (default: the prefix setting, /usr/local)")
	installCmd.Flags().StringVar(&installFrom, "from", "",
		"workstation file to install (default: a commented sample)")
	installCmd.Flags().BoolVarP(&installForce, "force", "f", false,
		"overwrite an installed workstation file")
	installCmd.Flags().StringVar(&installSchedule, "schedule", "",
		"cron expression for the reminder (default: the schedule setting)")
	installCmd.Flags().StringVarP(&installDest, "dest", "d", "",
		"destination root to create (default: the destination setting)")
	installCmd.Flags().BoolVar(&installJSON, "json", false,
		"print the installation result as JSON")
	rootCmd.AddCommand(installCmd)
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the workstation file and print the crontab line",
	Long: `Copy a workstation file to <prefix>/etc/autobackup.cfg, creating
<prefix>/etc and the destination root when they do not exist, then print the
crontab line that runs the backup every day.

The file is validated first; nothing is written when it does not parse.
An installed file is never replaced unless --force is given.`,
	Example: `  # Install a prepared file under /usr/local
  sudo autobackup install --from ./workstations.cfg

  # Start from the sample in a private prefix
  autobackup install --prefix ~/.local

  See Also: autobackup check, autobackup config edit`,
	Args: cobra.NoArgs,
	RunE: runInstall,
}

func runInstall(cmd *cobra.Command, _ []string) error {
	settings, err := flags.LoadSettings()
	if err != nil {
		return err
	}

	command := "autobackup run"
	if exe, err := os.Executable(); err == nil {
		command = exe + " run"
	}

	inst := newInstaller(settings, command)
	return runInstallWithWriter(cmd.OutOrStdout(), inst)
}

// newInstaller fills an Installer from the flags, falling back to settings.
func newInstaller(settings *config.Settings, command string) *install.Installer {
	inst := &install.Installer{
		Prefix:      settings.Prefix,
		Source:      installFrom,
		Force:       installForce,
		Destination: settings.Destination,
		Schedule:    settings.Schedule,
		Command:     command,
	}
	if installPrefix != "" {
		inst.Prefix = installPrefix
	}
	if installDest != "" {
		inst.Destination = installDest
	}
	if installSchedule != "" {
		inst.Schedule = installSchedule
	}
	return inst
}

func runInstallWithWriter(w io.Writer, inst *install.Installer) error {
	inst.Out = w
	if installJSON {
		inst.Out = nil
	}

	res, err := inst.Install()
	switch {
	case errors.Is(err, install.ErrExists):
		return errors.NewUserError(err, "Pass --force to replace it, or edit it with: autobackup config edit")
	case errors.Is(err, schedule.ErrInvalidSpec):
		return errors.NewUserError(err, `Use a five-field cron expression such as "0 2 * * *"`)
	case errors.Is(err, workstation.ErrConfigNotFound):
		return errors.NewUserError(err, "Check the --from path")
	case err != nil:
		var ce *workstation.ConfigError
		if errors.As(err, &ce) {
			return errors.NewUserError(err, "Fix the workstation file, nothing was installed")
		}
		return errors.NewSystemError(err, "Installing under /usr/local usually needs root; try --prefix")
	}

	if installJSON {
		return errors.Wrap(report.JSON(w, res), "encoding JSON")
	}
	return nil
}
