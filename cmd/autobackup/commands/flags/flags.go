// Package flags provides shared flag accessors for CLI commands.
// This package exists to avoid import cycles between the root command
// and noun subpackages (snapshots).
package flags

import (
	"github.com/benoistlaurent/autobackup/internal/config"
	"github.com/benoistlaurent/autobackup/internal/errors"
	"github.com/benoistlaurent/autobackup/internal/paths"
)

var (
	// configPath holds the value of the --config flag.
	configPath string

	// workstationsPath holds the value of the --workstations flag.
	workstationsPath string
)

// GetConfigPath returns the current value of the --config flag.
func GetConfigPath() string {
	return configPath
}

// SetConfigPath sets the --config value. Called by the root command after
// parsing and by tests.
func SetConfigPath(p string) {
	configPath = p
}

// GetWorkstationsPath returns the current value of the --workstations flag.
func GetWorkstationsPath() string {
	return workstationsPath
}

// SetWorkstationsPath sets the --workstations value.
func SetWorkstationsPath(p string) {
	workstationsPath = p
}

// LoadSettings reads the settings file named by --config (or the default
// search path) and applies --workstations. Failures are user errors.
func LoadSettings() (*config.Settings, error) {
	settings, err := config.Load(configPath)
	if err != nil {
		return nil, errors.NewConfigError(err)
	}
	if workstationsPath != "" {
		settings.Workstations = paths.ExpandHome(workstationsPath)
	}
	return settings, nil
}
