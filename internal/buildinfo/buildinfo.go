// Package buildinfo reports what binary is running.
package buildinfo

import (
	"runtime"
	"runtime/debug"
)

// Release builds set these with -ldflags "-X". Module build info, when
// present, takes precedence.
var (
	Version string
	Commit  string
	Date    string
)

const (
	modulePath = "github.com/aidanlsb/kmd"
	devel      = "devel"
)

// Info describes a build.
type Info struct {
	Version    string `json:"version"`
	ModulePath string `json:"module_path"`
	Commit     string `json:"commit,omitempty"`
	CommitTime string `json:"commit_time,omitempty"`
	Modified   bool   `json:"modified"`
	GoVersion  string `json:"go_version"`
	GOOS       string `json:"goos"`
	GOARCH     string `json:"goarch"`
}

var readBuildInfo = debug.ReadBuildInfo

// Current returns the running binary's Info.
func Current() Info {
	info := Info{
		Version:    devel,
		ModulePath: modulePath,
		GoVersion:  runtime.Version(),
		GOOS:       runtime.GOOS,
		GOARCH:     runtime.GOARCH,
	}
	if bi, ok := readBuildInfo(); ok && bi != nil {
		settings := make(map[string]string, len(bi.Settings))
		for _, s := range bi.Settings {
			settings[s.Key] = s.Value
		}
		info.Version = release(bi.Main.Version)
		info.ModulePath = or(bi.Main.Path, info.ModulePath)
		info.GoVersion = or(bi.GoVersion, info.GoVersion)
		info.GOOS = or(settings["GOOS"], info.GOOS)
		info.GOARCH = or(settings["GOARCH"], info.GOARCH)
		info.Commit = settings["vcs.revision"]
		info.CommitTime = settings["vcs.time"]
		info.Modified = settings["vcs.modified"] == "true"
	}

	if info.Version == devel {
		info.Version = release(Version)
	}
	info.Commit = or(info.Commit, Commit)
	info.CommitTime = or(info.CommitTime, Date)
	return info
}

// Short is the one-line form, e.g. "v0.4.0 (abc1234, modified)".
func (i Info) Short() string {
	s := i.Version
	rev := i.Commit
	if len(rev) > 7 {
		rev = rev[:7]
	}
	switch {
	case rev != "" && i.Modified:
		s += " (" + rev + ", modified)"
	case rev != "":
		s += " (" + rev + ")"
	}
	return s
}

func release(v string) string {
	if v == "" || v == "(devel)" {
		return devel
	}
	return v
}

func or(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
