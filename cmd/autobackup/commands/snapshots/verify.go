package snapshots

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/benoistlaurent/autobackup/internal/backup"
	"github.com/benoistlaurent/autobackup/internal/errors"
	"github.com/benoistlaurent/autobackup/internal/logging"
	"github.com/benoistlaurent/autobackup/internal/report"
)

func init() {
	Cmd.AddCommand(verifyCmd)
}

var verifyCmd = &cobra.Command{
	Use:   "verify <workstation> [date]",
	Short: "Re-hash a snapshot against its manifest",
	Long: `Re-hash every file of a snapshot and compare it with the manifest.
Without a date the newest snapshot is verified.

Exit codes:
  0 - every file matches
  2 - no such snapshot
  3 - files are missing or changed`,
	Example: `  autobackup snapshots verify alice
  autobackup snapshots verify alice 2026-03-14`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		loc, err := newLocator(logging.FromContext(cmd.Context()))
		if err != nil {
			return err
		}
		var date string
		if len(args) == 2 {
			date = args[1]
		}
		return runVerifyWithWriter(cmd.OutOrStdout(), loc, args[0], date)
	},
}

func runVerifyWithWriter(w io.Writer, loc *locator, name, date string) error {
	store := loc.store(name)

	m, err := resolveSnapshot(store, name, date)
	if err != nil {
		return err
	}

	failures, err := store.Verify(name, m.Date)
	if err != nil {
		report.New(w).Failures(failures)
		if errors.Is(err, backup.ErrSnapshotCorrupted) {
			return errors.NewSystemError(err, "Run the backup again to write a fresh snapshot")
		}
		return errors.NewSystemError(err, "")
	}

	fmt.Fprintf(w, "%s/%s: %d file(s) verified\n", name, m.Date, len(m.Files))
	return nil
}

// resolveSnapshot returns the named snapshot, or the newest one when date is
// empty.
// newestComplete returns the newest snapshot whose run finished, or the
// newest one when every snapshot is incomplete. manifests is newest first.
func newestComplete(manifests []backup.Manifest) *backup.Manifest {
	for i := range manifests {
		if !manifests[i].Incomplete {
			return &manifests[i]
		}
	}
	return &manifests[0]
}

func resolveSnapshot(store *backup.Store, name, date string) (*backup.Manifest, error) {
	var (
		m   *backup.Manifest
		err error
	)
	if date == "" {
		var all []backup.Manifest
		all, err = store.List(name)
		if err == nil {
			m = newestComplete(all)
		}
	} else {
		m, err = store.Get(name, date)
	}

	if errors.Is(err, backup.ErrNoSnapshots) {
		return nil, errors.NewUserError(err, "Run: autobackup snapshots list "+name)
	}
	if err != nil {
		return nil, errors.NewSystemError(err, "")
	}
	return m, nil
}
