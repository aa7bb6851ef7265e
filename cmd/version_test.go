package cmd

import (
	"runtime/debug"
	"testing"
)

func resetBuildVars(t *testing.T, version, commit, date string) {
	t.Helper()
	oldVersion, oldCommit, oldDate := Version, Commit, Date
	Version, Commit, Date = version, commit, date
	t.Cleanup(func() { Version, Commit, Date = oldVersion, oldCommit, oldDate })
}

func installedBuild() *debug.BuildInfo {
	return &debug.BuildInfo{
		Main: debug.Module{Path: "github.com/benoistlaurent/autobackup", Version: "v1.4.0"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "3f9c2ab"},
			{Key: "vcs.time", Value: "2026-03-14T02:00:00Z"},
		},
	}
}

func TestFromBuildInfo_FillsDefaults(t *testing.T) {
	resetBuildVars(t, "dev", "none", "unknown")

	fromBuildInfo(installedBuild())

	if Version != "v1.4.0" || Commit != "3f9c2ab" || Date != "2026-03-14T02:00:00Z" {
		t.Errorf("got %s %s %s", Version, Commit, Date)
	}
}

func TestFromBuildInfo_LdflagsWin(t *testing.T) {
	resetBuildVars(t, "v2.0.0", "abc1234", "2026-01-01")

	fromBuildInfo(installedBuild())

	if Version != "v2.0.0" || Commit != "abc1234" || Date != "2026-01-01" {
		t.Errorf("ldflags values overwritten: %s %s %s", Version, Commit, Date)
	}
}

func TestFromBuildInfo_DevelBuild(t *testing.T) {
	resetBuildVars(t, "dev", "none", "unknown")

	fromBuildInfo(&debug.BuildInfo{Main: debug.Module{Version: "(devel)"}})

	if Version != "dev" || Commit != "none" {
		t.Errorf("got %s %s", Version, Commit)
	}
}
