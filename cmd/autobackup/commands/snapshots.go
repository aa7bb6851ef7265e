package commands

import "github.com/benoistlaurent/autobackup/cmd/autobackup/commands/snapshots"

func init() {
	rootCmd.AddCommand(snapshots.Cmd)
}
