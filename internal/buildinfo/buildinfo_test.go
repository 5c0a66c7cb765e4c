package buildinfo

import (
	"runtime/debug"
	"testing"
)

func TestCurrentFillsEveryField(t *testing.T) {
	info := Current()
	if info.Version == "" || info.CommitHash == "" || info.BuildDate == "" {
		t.Errorf("unresolved field in %+v", info)
	}
}

func TestApplyBuildSettings(t *testing.T) {
	info := Info{}
	info.applyBuildSettings(&debug.BuildInfo{
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "abc123"},
			{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	})
	if info.CommitHash != "abc123-dirty" {
		t.Errorf("commit = %q, want dirty-suffixed revision", info.CommitHash)
	}
	if info.BuildDate != "2026-01-02T03:04:05Z" {
		t.Errorf("date = %q", info.BuildDate)
	}

	// Link-time values are never overwritten by VCS settings.
	pinned := Info{CommitHash: "pinned", BuildDate: "pinned-date"}
	pinned.applyBuildSettings(&debug.BuildInfo{
		Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "abc123"}},
	})
	if pinned.CommitHash != "pinned" || pinned.BuildDate != "pinned-date" {
		t.Errorf("overrides clobbered: %+v", pinned)
	}
}
