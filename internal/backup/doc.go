// Package backup copies workstations into dated snapshot directories.
//
// # Layout
//
// Each run writes one snapshot per workstation:
//
//	<destination>/
//	└── {workstation}/
//	    └── {date}/
//	        ├── .autobackup-manifest.json
//	        └── {copied files...}
//
// A workstation with a single source is copied relative to that source.
// With several sources each one is placed under its base name.
//
// # Running
//
//	engine := backup.NewEngine(
//	    backup.WithDestinationRoot("/var/backups/autobackup"),
//	    backup.WithWorkers(2),
//	    backup.WithRetention(14),
//	)
//	run, err := engine.Run(ctx, entries)
//
// Files whose destination copy has the same size and modification time are
// skipped, so repeating a run on the same day only copies what changed.
// Copies go through a temp file and a rename; temp files left by a killed
// run are removed when the snapshot is next written.
//
// [Engine.Run] only returns an error when no destination is configured, when
// a destination root cannot be created or written (before anything is
// copied), or when ctx is cancelled. Failures of a single source or file are
// reported in the returned [Run].
//
// # Snapshots
//
// [Store] lists, prunes, verifies and restores snapshots using the SHA-256
// hashes recorded in each manifest. A snapshot whose files no longer match
// is reported with [ErrSnapshotCorrupted].
package backup
