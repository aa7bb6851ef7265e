// Package workstation loads the list of workstations to back up.
//
// A workstation is a named set of source paths copied into
// <destination>/<name>/<date>/ by the backup engine. The installed file
// lives at <prefix>/etc/autobackup.cfg and uses a line-oriented format:
//
//	# comment
//	; comment
//	[alice-laptop]
//	source      = /home/alice
//	source      = /etc/hosts
//	destination = /mnt/backup
//	exclude     = *.tmp
//	exclude     = .cache
//
// Files ending in .yaml, .yml or .toml are decoded as YAML or TOML with a
// top-level workstations list using the same keys (sources is a list).
//
// # Patterns
//
// Include and exclude patterns use .dockerignore syntax, including ** and
// ! negation. A pattern without a slash matches at any depth, and a leading
// slash anchors it to the source root. A pattern matching a directory applies
// to everything below it. Exclusion wins over inclusion; an empty include
// list includes everything.
//
// # Errors
//
// Every failure is a [*ConfigError] carrying the file and line, wrapping one
// of [ErrConfigNotFound], [ErrMalformed], [ErrDuplicateName] or
// [ErrInvalidEntry].
package workstation
