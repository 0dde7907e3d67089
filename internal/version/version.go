// Package version reports the snaptest build and checks version constraints
// declared by projects.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Build information, overridable with -ldflags "-X snaptest/internal/version.Version=...".
var (
	Version   = "0.3.0"
	GitCommit = ""
	BuildDate = ""
)

// Info describes the running binary.
type Info struct {
	Version   string
	GitCommit string
	BuildDate string
	Modified  bool
	GoVersion string
	Platform  string
}

// GetInfo returns build information. Commit and date fall back to the VCS
// stamp embedded by the go tool when they were not set at link time.
func GetInfo() Info {
	info := Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info.GitCommit == "" {
					info.GitCommit = s.Value
				}
			case "vcs.time":
				if info.BuildDate == "" {
					info.BuildDate = s.Value
				}
			case "vcs.modified":
				info.Modified = s.Value == "true"
			}
		}
	}
	return info
}

// GetFormattedVersion returns "snaptest v1.2.3, commit abcdef1, built <date>".
func GetFormattedVersion() string {
	info := GetInfo()
	parts := []string{"snaptest v" + info.Version}
	if info.GitCommit != "" {
		commit := info.GitCommit
		if len(commit) > 7 {
			commit = commit[:7]
		}
		if info.Modified {
			commit += "-dirty"
		}
		parts = append(parts, "commit "+commit)
	}
	if info.BuildDate != "" {
		parts = append(parts, "built "+info.BuildDate)
	}
	return strings.Join(parts, ", ")
}

// GetDetailedVersion returns one "key: value" line per build attribute.
func GetDetailedVersion() string {
	info := GetInfo()
	lines := []string{"snaptest v" + info.Version}
	if sv, err := semver.NewVersion(info.Version); err == nil {
		if pre := sv.Prerelease(); pre != "" {
			lines = append(lines, "Prerelease: "+pre)
		}
		if meta := sv.Metadata(); meta != "" {
			lines = append(lines, "Build Metadata: "+meta)
		}
	} else {
		lines = append(lines, "Version Error: "+err.Error())
	}
	lines = append(lines,
		"Git Commit: "+orUnknown(info.GitCommit),
		"Build Date: "+orUnknown(info.BuildDate),
		"Go Version: "+info.GoVersion,
		"Platform: "+info.Platform)
	return strings.Join(lines, "\n")
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// Satisfies checks the running version against a constraint such as
// ">= 0.2, < 1". Prerelease builds are compared by their base version so a
// development build of 0.3.0 satisfies ">= 0.3".
func Satisfies(constraint string) error {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return fmt.Errorf("invalid version constraint %q: %w", constraint, err)
	}
	sv, err := semver.NewVersion(Version)
	if err != nil {
		return fmt.Errorf("invalid snaptest version %q: %w", Version, err)
	}
	base := semver.New(sv.Major(), sv.Minor(), sv.Patch(), "", "")
	if !c.Check(base) {
		return fmt.Errorf("snaptest %s does not satisfy %q", Version, constraint)
	}
	return nil
}
