// Package snapshots provides CLI commands for inspecting and restoring
// snapshots written by 'autobackup run'.
package snapshots

import (
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/benoistlaurent/autobackup/cmd/autobackup/commands/flags"
	"github.com/benoistlaurent/autobackup/internal/backup"
	"github.com/benoistlaurent/autobackup/internal/config"
	"github.com/benoistlaurent/autobackup/internal/errors"
	"github.com/benoistlaurent/autobackup/internal/workstation"
)

// destFlag holds the value of the --dest flag shared by every subcommand.
var destFlag string

func init() {
	Cmd.PersistentFlags().StringVarP(&destFlag, "dest", "d", "",
		"destination root (default: the destination setting and per-workstation overrides)")
}

// Cmd is the root snapshots command.
var Cmd = &cobra.Command{
	Use:     "snapshots",
	Aliases: []string{"snapshot", "snap"},
	Short:   "List, verify, prune and restore snapshots",
	Long: `Work with the dated snapshots under the destination root:

  <destination>/<workstation>/<date>/

Every snapshot carries a manifest with the size, mode, modification time and
SHA-256 of each file, so it can be verified and restored without the
original sources.`,
	Example: `  # List the snapshots of every workstation
  autobackup snapshots list

  # Check that yesterday's snapshot of alice is intact
  autobackup snapshots verify alice 2026-03-13

  # Keep the 7 newest snapshots of every workstation
  autobackup snapshots prune --all --keep 7

  # Restore a snapshot into a scratch directory
  autobackup snapshots restore alice --target /tmp/alice

  See Also:
    autobackup snapshots list    - List snapshots
    autobackup snapshots verify  - Re-hash a snapshot
    autobackup snapshots prune   - Remove old snapshots
    autobackup snapshots restore - Copy a snapshot back`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

// locator maps workstation names to the store holding their snapshots.
type locator struct {
	root      string
	overrides map[string]string
}

// newLocator resolves destination roots from --dest, the settings and the
// workstation file. A workstation file that does not load only loses the
// per-workstation overrides.
func newLocator(logger *slog.Logger) (*locator, error) {
	if destFlag != "" {
		return &locator{root: destFlag}, nil
	}

	settings, err := flags.LoadSettings()
	if err != nil {
		return nil, err
	}
	return locatorFor(settings, logger), nil
}

func locatorFor(settings *config.Settings, logger *slog.Logger) *locator {
	l := &locator{root: settings.Destination, overrides: make(map[string]string)}

	entries, err := workstation.LoadFile(settings.WorkstationsFile())
	if err != nil {
		logger.Debug("workstation file not loaded, using the destination setting only", "error", err)
		return l
	}
	for _, e := range entries {
		if e.Destination != "" {
			l.overrides[e.Name] = e.Destination
		}
	}
	return l
}

// store returns the store holding name's snapshots.
func (l *locator) store(name string) *backup.Store {
	if root, ok := l.overrides[name]; ok {
		return backup.NewStore(root)
	}
	return backup.NewStore(l.root)
}

// names returns every workstation with a snapshot directory, sorted.
func (l *locator) names() ([]string, error) {
	if l.root == "" && len(l.overrides) == 0 {
		return nil, errors.NewUserError(backup.ErrNoDestination, "Set destination in the settings file or pass --dest")
	}

	var names []string
	if l.root != "" {
		found, err := backup.NewStore(l.root).Workstations()
		if err != nil {
			return nil, errors.NewSystemError(err, "")
		}
		for _, n := range found {
			if _, moved := l.overrides[n]; !moved {
				names = append(names, n)
			}
		}
	}
	for n, root := range l.overrides {
		found, err := backup.NewStore(root).Workstations()
		if err != nil {
			return nil, errors.NewSystemError(err, "")
		}
		if slices.Contains(found, n) {
			names = append(names, n)
		}
	}

	slices.Sort(names)
	return names, nil
}
