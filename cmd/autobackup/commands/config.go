package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/benoistlaurent/autobackup/cmd/autobackup/commands/flags"
	"github.com/benoistlaurent/autobackup/internal/config"
	"github.com/benoistlaurent/autobackup/internal/editor"
	"github.com/benoistlaurent/autobackup/internal/errors"
	"github.com/benoistlaurent/autobackup/internal/install"
	"github.com/benoistlaurent/autobackup/internal/paths"
	"github.com/benoistlaurent/autobackup/internal/workstation"
	"github.com/benoistlaurent/autobackup/pkg/fileutil"
)

var (
	configEditWorkstations bool
	configInitForce        bool
)

func init() {
	configEditCmd.Flags().BoolVar(&configEditWorkstations, "workstations", false,
		"edit the workstation file instead of the settings file")
	configInitCmd.Flags().BoolVarP(&configInitForce, "force", "f", false,
		"overwrite an existing settings file")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage autobackup settings",
	Long: `Manage the settings file (autobackup.yaml) and the workstation file.

Settings are searched in ., $XDG_CONFIG_HOME/autobackup and /etc/autobackup,
and every key can be overridden with an AUTOBACKUP_ environment variable
(AUTOBACKUP_DESTINATION, AUTOBACKUP_HISTORY_KEEP, ...).

Without a subcommand, shows the effective settings.`,
	Example: `  # Show effective settings
  autobackup config

  # Write the current settings to ~/.config/autobackup/autobackup.yaml
  autobackup config init

  # Edit the workstation file; it is only saved when it parses
  autobackup config edit --workstations

See Also: autobackup check`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective settings",
	Long:  `Print the effective settings in YAML, after defaults and environment overrides.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open the settings or workstation file in $EDITOR",
	Long: `Open a copy of the settings file (or, with --workstations, the workstation
file) in $EDITOR, $VISUAL, nano or vi. The edit replaces the file only when it
is valid; otherwise the copy is kept and its path printed.`,
	Args: cobra.NoArgs,
	RunE: runConfigEdit,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a settings file",
	Long: `Write the effective settings to the user settings file
($XDG_CONFIG_HOME/autobackup/autobackup.yaml), or to --config when given.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	settings, err := flags.LoadSettings()
	if err != nil {
		return err
	}
	return writeSettings(cmd.OutOrStdout(), settings, config.FileUsed())
}

func writeSettings(w io.Writer, settings *config.Settings, file string) error {
	if file == "" {
		file = "(none, defaults)"
	}
	fmt.Fprintf(w, "# settings file:    %s\n", file)
	fmt.Fprintf(w, "# workstation file: %s\n", settings.WorkstationsFile())
	fmt.Fprintf(w, "# history:          %s\n", settings.HistoryDir())

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(settings); err != nil {
		return errors.Wrap(err, "marshaling settings")
	}
	return errors.Wrap(enc.Close(), "marshaling settings")
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	settings, err := flags.LoadSettings()
	if err != nil {
		return err
	}

	target := flags.GetConfigPath()
	if target == "" {
		target = config.DefaultSettingsPath()
	}
	return initSettingsFile(cmd.OutOrStdout(), settings, target, configInitForce)
}

func initSettingsFile(w io.Writer, settings *config.Settings, target string, force bool) error {
	if _, err := os.Stat(target); err == nil && !force {
		return errors.NewUserError(
			errors.Newf("settings file already exists: %s", target),
			"Pass --force to overwrite it, or run: autobackup config edit",
		)
	}

	if err := paths.EnsureDir(filepath.Dir(target), 0o755); err != nil {
		return errors.NewSystemError(errors.Wrap(err, "creating settings directory"), "")
	}
	if err := fileutil.WriteYAML(target, settings, 0o644); err != nil {
		return errors.NewSystemError(errors.Wrap(err, "writing settings file"), "")
	}

	fmt.Fprintf(w, "Wrote %s\n", target)
	return nil
}

func runConfigEdit(_ *cobra.Command, _ []string) error {
	settings, err := flags.LoadSettings()
	if err != nil {
		return err
	}

	ed := editor.New()
	if configEditWorkstations {
		return editWorkstations(ed, settings.WorkstationsFile())
	}

	target := config.FileUsed()
	if target == "" {
		target = config.DefaultSettingsPath()
	}
	return editSettings(ed, target)
}

func editWorkstations(ed *editor.Editor, target string) error {
	err := ed.Edit(target, install.Sample(), func(p string) error {
		_, err := workstation.LoadFile(p)
		return err
	})
	return editResult(err, target)
}

func editSettings(ed *editor.Editor, target string) error {
	initial, err := yaml.Marshal(map[string]any{"version": 1})
	if err != nil {
		return errors.Wrap(err, "marshaling settings")
	}

	err = ed.Edit(target, initial, func(p string) error {
		config.Init()
		_, err := config.Load(p)
		return err
	})
	return editResult(err, target)
}

func editResult(err error, target string) error {
	switch {
	case err == nil:
		fmt.Printf("Saved %s\n", target)
		return nil
	case errors.Is(err, editor.ErrUnchanged):
		fmt.Println("No changes.")
		return nil
	default:
		return errors.NewUserError(err, "The edited copy was kept; fix it and copy it over the original")
	}
}
