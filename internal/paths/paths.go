package paths

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/cockroachdb/errors"
)

// AppName is the directory name used under XDG and system locations.
const AppName = "autobackup"

// DefaultPrefix is the installation prefix used when none is configured.
const DefaultPrefix = "/usr/local"

// ConfigFileName is the name of the installed workstation file.
const ConfigFileName = "autobackup.cfg"

// DefaultDestination is the default backup destination root.
const DefaultDestination = "/var/backups/autobackup"

// Sentinel errors for path resolution.
var (
	// ErrHomeDirNotFound indicates the user's home directory could not be determined.
	ErrHomeDirNotFound = errors.New("home directory not found")

	// ErrInvalidPath indicates the provided path is malformed or invalid.
	ErrInvalidPath = errors.New("invalid path")
)

// DefaultDirPerm is the default permission for newly created directories (private).
const DefaultDirPerm = 0o700

// EnsureDir creates the directory and any necessary parents with specified permissions.
// If perm is 0, DefaultDirPerm (0700) is used.
// This function is idempotent; it returns nil if the directory already exists.
func EnsureDir(path string, perm os.FileMode) error {
	if perm == 0 {
		perm = DefaultDirPerm
	}
	return os.MkdirAll(path, perm)
}

// Home returns the user's home directory.
// It returns an empty string on error. Use ResolveHome for proper error handling.
func Home() string {
	h, _ := ResolveHome()
	return h
}

// ResolveHome returns the user's home directory.
// Returns ErrHomeDirNotFound if the directory cannot be determined.
func ResolveHome() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(ErrHomeDirNotFound, err.Error())
	}
	return home, nil
}

// ExpandHome expands a leading ~ to the user's home directory.
// Paths such as ~user are returned unchanged.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	home := Home()
	if home == "" {
		return path
	}

	if path == "~" {
		return home
	}

	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}

	return path
}

// ConfigHome returns the XDG config home directory.
// On Linux: ~/.config
// On macOS: ~/Library/Application Support
// On Windows: %LOCALAPPDATA%
func ConfigHome() string {
	return xdg.ConfigHome
}

// StateHome returns the XDG state home directory.
// On Linux: ~/.local/state
func StateHome() string {
	return xdg.StateHome
}

// UserConfigDir returns <ConfigHome>/autobackup.
func UserConfigDir() string {
	return filepath.Join(ConfigHome(), AppName)
}

// SystemConfigDir returns /etc/autobackup, searched for settings files.
func SystemConfigDir() string {
	return filepath.Join(string(filepath.Separator), "etc", AppName)
}

// PrefixConfigFile returns the workstation file location for an
// installation prefix: <prefix>/etc/autobackup.cfg.
// An empty prefix uses DefaultPrefix.
func PrefixConfigFile(prefix string) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return filepath.Join(prefix, "etc", ConfigFileName)
}

// HistoryDir returns the directory where run records are stored.
// Returns: <StateHome>/autobackup/runs/
func HistoryDir() string {
	return filepath.Join(StateHome(), AppName, "runs")
}
