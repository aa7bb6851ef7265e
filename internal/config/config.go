// Package config provides configuration management for autobackup using Viper.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	units "github.com/docker/go-units"
	"github.com/spf13/viper"

	"github.com/benoistlaurent/autobackup/internal/errors"
	"github.com/benoistlaurent/autobackup/internal/paths"
	"github.com/benoistlaurent/autobackup/internal/schedule"
)

// SettingsName is the base name of the settings file (autobackup.yaml).
const SettingsName = "autobackup"

// EnvConfigDir overrides the settings search path when set.
const EnvConfigDir = "AUTOBACKUP_CONFIG_DIR"

// Defaults applied by Init.
const (
	DefaultWorkers     = 1
	DefaultDateFormat  = "2006-01-02"
	DefaultHistoryKeep = 90
)

// Settings is the explicit configuration object handed to the backup engine
// and the other collaborators. Nothing below the command layer reads viper.
type Settings struct {
	Version        int             `mapstructure:"version" yaml:"version"`
	Prefix         string          `mapstructure:"prefix" yaml:"prefix"`
	Workstations   string          `mapstructure:"workstations" yaml:"workstations,omitempty"`
	Destination    string          `mapstructure:"destination" yaml:"destination"`
	Workers        int             `mapstructure:"workers" yaml:"workers"`
	Retention      int             `mapstructure:"retention" yaml:"retention"`
	Schedule       string          `mapstructure:"schedule" yaml:"schedule"`
	DateFormat     string          `mapstructure:"date_format" yaml:"date_format"`
	ModifyWindow   time.Duration   `mapstructure:"modify_window" yaml:"modify_window"`
	BandwidthLimit string          `mapstructure:"bandwidth_limit" yaml:"bandwidth_limit"`
	History        HistorySettings `mapstructure:"history" yaml:"history"`
}

// HistorySettings controls where run records are kept and how many.
type HistorySettings struct {
	Dir  string `mapstructure:"dir" yaml:"dir,omitempty"`
	Keep int    `mapstructure:"keep" yaml:"keep"`
}

// WorkstationsFile returns the workstation file path: the explicit setting
// when present, otherwise <prefix>/etc/autobackup.cfg.
func (s *Settings) WorkstationsFile() string {
	if s.Workstations != "" {
		return paths.ExpandHome(s.Workstations)
	}
	return paths.PrefixConfigFile(s.Prefix)
}

// HistoryDir returns the run history directory.
func (s *Settings) HistoryDir() string {
	if s.History.Dir != "" {
		return paths.ExpandHome(s.History.Dir)
	}
	return paths.HistoryDir()
}

// BandwidthBytes parses BandwidthLimit ("10MB", "512k", "0") into bytes per
// second. Zero means unlimited.
func (s *Settings) BandwidthBytes() (int64, error) {
	return ParseBandwidth(s.BandwidthLimit)
}

// ParseBandwidth parses a human-readable byte rate. Empty and "0" mean unlimited.
func ParseBandwidth(v string) (int64, error) {
	if v == "" || v == "0" {
		return 0, nil
	}
	n, err := units.FromHumanSize(v)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidBandwidth, "%q", v)
	}
	if n < 0 {
		return 0, errors.Wrapf(ErrInvalidBandwidth, "%q is negative", v)
	}
	return n, nil
}

// Init resets Viper and installs defaults, search paths and environment binding.
// Call this once at application startup before accessing config values.
func Init() {
	viper.Reset()

	viper.SetConfigName(SettingsName)
	viper.SetConfigType("yaml")

	// Search paths (in order of precedence)
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		viper.AddConfigPath(dir)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath(paths.UserConfigDir())
		viper.AddConfigPath(paths.SystemConfigDir())
	}

	// AUTOBACKUP_DESTINATION, AUTOBACKUP_HISTORY_KEEP, ...
	viper.SetEnvPrefix("AUTOBACKUP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	for key, value := range Defaults() {
		viper.SetDefault(key, value)
	}
}

// Defaults returns the default value of every settings key.
func Defaults() map[string]any {
	return map[string]any{
		"version":         1,
		"prefix":          paths.DefaultPrefix,
		"workstations":    "",
		"destination":     paths.DefaultDestination,
		"workers":         DefaultWorkers,
		"retention":       0,
		"schedule":        schedule.DefaultSpec,
		"date_format":     DefaultDateFormat,
		"modify_window":   "0s",
		"bandwidth_limit": "0",
		"history.dir":     "",
		"history.keep":    DefaultHistoryKeep,
	}
}

// Load reads the settings file.
// If path is provided, it reads from that specific file.
// If path is empty, it searches in the default locations and falls back to
// defaults when no file exists.
func Load(path string) (*Settings, error) {
	if path != "" {
		viper.SetConfigFile(path)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound) && path == "":
			// Implicit load without a file: defaults apply
		case errors.As(err, &notFound), errors.Is(err, os.ErrNotExist):
			return nil, errors.Wrapf(err, "settings file not found at %s", path)
		default:
			return nil, errors.Wrap(err, "reading settings file")
		}
	}

	var cfg Settings
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshaling settings")
	}

	if errs := Validate(&cfg); len(errs) > 0 {
		return nil, errors.Wrap(errs[0], "validating config")
	}

	return &cfg, nil
}

// FileUsed returns the settings file Viper read, or an empty string.
func FileUsed() string {
	if f := viper.ConfigFileUsed(); f != "" {
		if _, err := os.Stat(f); err == nil {
			return f
		}
	}
	return ""
}

// DefaultSettingsPath returns where `config init` writes a settings file.
func DefaultSettingsPath() string {
	return filepath.Join(paths.UserConfigDir(), SettingsName+".yaml")
}
