// Package main is the entry point for the autobackup CLI.
package main

import (
	"os"

	"github.com/benoistlaurent/autobackup/cmd/autobackup/commands"
	"github.com/benoistlaurent/autobackup/internal/errors"
)

func main() {
	if err := commands.Execute(); err != nil {
		commands.PrintError(os.Stderr, err)
		os.Exit(errors.ExitCode(err))
	}
}
