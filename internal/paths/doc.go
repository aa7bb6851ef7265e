// Package paths resolves the filesystem locations autobackup reads and writes.
//
// User-scoped directories follow the XDG Base Directory Specification through
// github.com/adrg/xdg. System locations mirror the original installer, which
// placed the workstation file under the installation prefix:
//
//	paths.PrefixConfigFile("/usr/local") // /usr/local/etc/autobackup.cfg
//	paths.HistoryDir()                   // ~/.local/state/autobackup/runs
//	paths.UserConfigDir()                // ~/.config/autobackup
package paths
