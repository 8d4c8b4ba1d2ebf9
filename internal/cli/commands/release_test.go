package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReleaseGateProceed(t *testing.T) {
	primeConfig(t, "")
	envFile := filepath.Join(t.TempDir(), "github_env")

	out, _, err := runCommand(NewReleaseCommand(), "gate", "1.4.0", "--env-file", envFile)
	require.NoError(t, err)
	assert.Contains(t, out, "version 1.4.0 cleared for publish")

	data, err := os.ReadFile(envFile)
	require.NoError(t, err)
	assert.Equal(t, "RELEASE_VERSION=1.4.0\n", string(data))
}

func TestReleaseGateSkipsPreRelease(t *testing.T) {
	primeConfig(t, "")
	envFile := filepath.Join(t.TempDir(), "github_env")

	tests := []struct {
		name    string
		version string
	}{
		{"release candidate", "1.4.0rc1"},
		{"dev build", "1.4.0.dev1"},
		{"v prefix", "v1.4.0"},
		{"two part", "1.4"},
		{"garbage", "latest"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := runCommand(NewReleaseCommand(), "gate", tt.version, "--env-file", envFile)
			require.NoError(t, err, "a skipped publish must not fail the workflow")
			assert.Contains(t, out, "skipping publish")
		})
	}

	// No variant may have exported the variable.
	_, err := os.Stat(envFile)
	assert.True(t, os.IsNotExist(err), "env file should not exist after skipped gates")
}

func TestReleaseGateTagMismatch(t *testing.T) {
	primeConfig(t, "")
	envFile := filepath.Join(t.TempDir(), "github_env")

	out, _, err := runCommand(NewReleaseCommand(), "gate", "1.4.0", "--tag", "1.4.1", "--env-file", envFile)
	require.NoError(t, err)
	assert.Contains(t, out, "does not match")

	_, err = os.Stat(envFile)
	assert.True(t, os.IsNotExist(err))
}

func TestReleaseGateExportNameAndStdout(t *testing.T) {
	primeConfig(t, "")
	t.Setenv("GITHUB_ENV", "")

	// Without an env file the export lands on stdout.
	out, _, err := runCommand(NewReleaseCommand(), "gate", "2.0.7", "--export", "PKG_VERSION")
	require.NoError(t, err)
	assert.Contains(t, out, "PKG_VERSION=2.0.7")
}

func TestReleaseGateAppendsToExisting(t *testing.T) {
	primeConfig(t, "")
	envFile := filepath.Join(t.TempDir(), "github_env")
	require.NoError(t, os.WriteFile(envFile, []byte("CI=true\n"), 0o644))

	_, _, err := runCommand(NewReleaseCommand(), "gate", "0.3.11", "--env-file", envFile)
	require.NoError(t, err)

	data, err := os.ReadFile(envFile)
	require.NoError(t, err)
	assert.Equal(t, "CI=true\nRELEASE_VERSION=0.3.11\n", string(data))
}
