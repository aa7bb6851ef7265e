package prompt

import (
	"fmt"
	"strings"
	"time"

	"github.com/ktr0731/go-fuzzyfinder"

	"github.com/benoistlaurent/autobackup/internal/backup"
	"github.com/benoistlaurent/autobackup/internal/errors"
	"github.com/benoistlaurent/autobackup/internal/report"
)

// maxPreviewFiles bounds the file list shown in the preview window.
const maxPreviewFiles = 20

// FindSnapshot opens a fuzzy finder over snapshots. Aborting the finder
// returns ErrSelectionCancelled.
func FindSnapshot(snapshots []backup.Manifest) (*backup.Manifest, error) {
	if len(snapshots) == 0 {
		return nil, ErrNoSnapshots
	}

	idx, err := fuzzyfinder.Find(
		snapshots,
		func(i int) string {
			return snapshotLabel(snapshots[i])
		},
		fuzzyfinder.WithPromptString("snapshot> "),
		fuzzyfinder.WithPreviewWindow(func(i, _, _ int) string {
			if i == -1 {
				return ""
			}
			return snapshotPreview(snapshots[i])
		}),
	)
	if err != nil {
		if errors.Is(err, fuzzyfinder.ErrAbort) {
			return nil, ErrSelectionCancelled
		}
		return nil, errors.Wrap(err, "snapshot finder failed")
	}

	return &snapshots[idx], nil
}

func snapshotLabel(m backup.Manifest) string {
	return fmt.Sprintf("%s/%s (%d files)", m.Workstation, m.Date, len(m.Files))
}

func snapshotPreview(m backup.Manifest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Workstation: %s\n", m.Workstation)
	fmt.Fprintf(&b, "Date:        %s\n", m.Date)
	fmt.Fprintf(&b, "Created:     %s\n", m.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(&b, "Run:         %s\n", m.RunID)
	fmt.Fprintf(&b, "Size:        %s in %d file(s)\n", report.Size(m.TotalSize()), len(m.Files))
	if len(m.Sources) > 0 {
		fmt.Fprintf(&b, "Sources:     %s\n", strings.Join(m.Sources, ", "))
	}

	b.WriteString("\n")
	for i, f := range m.Files {
		if i == maxPreviewFiles {
			fmt.Fprintf(&b, "... %d more\n", len(m.Files)-maxPreviewFiles)
			break
		}
		b.WriteString(f.Path)
		b.WriteString("\n")
	}
	return b.String()
}
