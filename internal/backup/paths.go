package backup

import (
	"path/filepath"
)

// WorkstationDir returns <root>/<name>, the directory holding every snapshot
// of a workstation.
func WorkstationDir(root, name string) string {
	return filepath.Join(root, name)
}

// SnapshotPath returns <root>/<name>/<date>.
func SnapshotPath(root, name, date string) string {
	return filepath.Join(WorkstationDir(root, name), date)
}

// ManifestPath returns the manifest file of a snapshot directory.
func ManifestPath(snapshotDir string) string {
	return filepath.Join(snapshotDir, ManifestName)
}
