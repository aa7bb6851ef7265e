// Package config loads the autobackup settings file.
//
// Settings are distinct from the workstation file: they describe how the
// engine runs (destination root, workers, retention, schedule), while the
// workstation file lists what to back up.
//
// # Settings File
//
// autobackup.yaml is searched in the current directory, ~/.config/autobackup
// and /etc/autobackup (or only in $AUTOBACKUP_CONFIG_DIR when set):
//
//	version: 1
//	prefix: /usr/local            # workstation file: <prefix>/etc/autobackup.cfg
//	destination: /var/backups/autobackup
//	workers: 2
//	retention: 14                 # snapshots kept per workstation, 0 keeps all
//	schedule: "0 2 * * *"
//	date_format: "2006-01-02"
//	modify_window: 1s
//	bandwidth_limit: 20MB         # per second, 0 for unlimited
//	history:
//	  keep: 90
//
// Every key can be overridden from the environment with the AUTOBACKUP_
// prefix, for example AUTOBACKUP_DESTINATION or AUTOBACKUP_HISTORY_KEEP.
//
// # Loading
//
//	config.Init()
//	settings, err := config.Load("")
//
// [Load] validates the result; [Validate] can be used directly and returns
// every problem found.
package config
