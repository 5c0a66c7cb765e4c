// Package buildinfo reports the version metadata stamped into the binary.
// Link-time overrides win; module builds fall back to the VCS settings the Go
// toolchain embeds.
package buildinfo

import (
	"runtime/debug"
	"strings"
	"time"
)

// Overridden at link time, e.g.
// -ldflags "-X github.com/crewdeck/crewdeck/internal/buildinfo.Version=v1.2.3".
var (
	Version    = "0.1.0"
	CommitHash = ""
	BuildDate  = ""
)

// Info is the resolved metadata shown by `crewdeck version` and logged on
// startup.
type Info struct {
	Version    string
	CommitHash string
	BuildDate  string
}

// Current resolves the build metadata, filling gaps from embedded build
// settings and normalizing the date for display.
func Current() Info {
	info := Info{
		Version:    strings.TrimSpace(Version),
		CommitHash: strings.TrimSpace(CommitHash),
		BuildDate:  strings.TrimSpace(BuildDate),
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		info.applyBuildSettings(bi)
	}

	if parsed, err := time.Parse(time.RFC3339, info.BuildDate); err == nil {
		info.BuildDate = parsed.UTC().Format("2006-01-02 15:04:05 UTC")
	}

	for _, field := range []*string{&info.Version, &info.CommitHash, &info.BuildDate} {
		if *field == "" {
			*field = "unknown"
		}
	}
	return info
}

func (info *Info) applyBuildSettings(bi *debug.BuildInfo) {
	if (info.Version == "" || info.Version == "0.1.0") &&
		bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}

	var revision, stamp string
	dirty := false
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = strings.TrimSpace(s.Value)
		case "vcs.time":
			stamp = strings.TrimSpace(s.Value)
		case "vcs.modified":
			dirty = strings.EqualFold(strings.TrimSpace(s.Value), "true")
		}
	}

	if info.CommitHash == "" && revision != "" {
		info.CommitHash = revision
		if dirty {
			info.CommitHash += "-dirty"
		}
	}
	if info.BuildDate == "" {
		info.BuildDate = stamp
	}
}
