package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withBuild(t *testing.T, version, commit, date string) {
	t.Helper()
	v, c, d := Version, GitCommit, BuildDate
	t.Cleanup(func() { Version, GitCommit, BuildDate = v, c, d })
	Version, GitCommit, BuildDate = version, commit, date
}

func TestGetFormattedVersion(t *testing.T) {
	withBuild(t, "1.2.3", "abcdef1234567", "2026-01-02")
	assert.Equal(t, "snaptest v1.2.3, commit abcdef1, built 2026-01-02", GetFormattedVersion())
}

func TestGetDetailedVersion(t *testing.T) {
	withBuild(t, "1.2.3-rc.1+ci.7", "abc", "2026-01-02")

	out := GetDetailedVersion()
	assert.True(t, strings.HasPrefix(out, "snaptest v1.2.3-rc.1+ci.7\n"), out)
	assert.Contains(t, out, "Prerelease: rc.1")
	assert.Contains(t, out, "Build Metadata: ci.7")
	assert.Contains(t, out, "Git Commit: abc")
	assert.Contains(t, out, "Go Version: go")
}

func TestGetDetailedVersion_InvalidVersion(t *testing.T) {
	withBuild(t, "not-semver", "abc", "2026-01-02")
	assert.Contains(t, GetDetailedVersion(), "Version Error: ")
}

func TestGetInfo_LinkTimeValuesWin(t *testing.T) {
	withBuild(t, "1.0.0", "fromldflags", "today")

	info := GetInfo()
	assert.Equal(t, "fromldflags", info.GitCommit)
	assert.Equal(t, "today", info.BuildDate)
	assert.NotEmpty(t, info.Platform)
}

func TestSatisfies(t *testing.T) {
	tests := []struct {
		name       string
		version    string
		constraint string
		wantErr    string
	}{
		{"exact", "0.3.0", "0.3.0", ""},
		{"range", "0.3.0", ">= 0.2, < 1", ""},
		{"tilde", "0.3.4", "~0.3", ""},
		{"prerelease uses base version", "0.3.0-dev", ">= 0.3", ""},
		{"too old", "0.3.0", ">= 1.0", "does not satisfy"},
		{"too new", "2.0.0", "< 2", "does not satisfy"},
		{"bad constraint", "0.3.0", "not a version", "invalid version constraint"},
		{"bad version", "garbage", ">= 0.1", "invalid snaptest version"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withBuild(t, tt.version, "", "")
			err := Satisfies(tt.constraint)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
