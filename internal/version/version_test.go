package version

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func withBuildVars(t *testing.T, v, commit, built string) {
	t.Helper()
	oldV, oldC, oldB := Version, GitCommit, BuildTime
	Version, GitCommit, BuildTime = v, commit, built
	t.Cleanup(func() { Version, GitCommit, BuildTime = oldV, oldC, oldB })
}

func TestReleaseBuild(t *testing.T) {
	withBuildVars(t, "v1.2.0", "0123456789abcdef", "2026-03-01T10:00:00Z")

	assert.Equal(t, "v1.2.0", GetVersion())
	assert.Equal(t, "v1.2.0 (0123456)", GetShortVersion())
	assert.True(t, IsRelease())
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), GetBuildTime())

	detailed := GetDetailedVersion()
	assert.Contains(t, detailed, "Version: v1.2.0")
	assert.Contains(t, detailed, "Commit: 0123456789abcdef")
	assert.Contains(t, detailed, "Built: 2026-03-01T10:00:00Z")

	info := GetBuildInfo()
	assert.NotEmpty(t, info.GoVersion)
	assert.Contains(t, info.Platform, "/")
}

func TestShortCommitIsNotAbbreviated(t *testing.T) {
	withBuildVars(t, "v1.2.0", "abc", "unknown")
	assert.Equal(t, "v1.2.0", GetShortVersion())
	assert.NotContains(t, GetDetailedVersion(), "Built:")
}
