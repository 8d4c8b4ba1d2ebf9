// Package commands_test provides tests for CLI command creation.
package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wcap/wcplib/internal/cli/config"
)

// primeConfig isolates the process environment and, when yamlBody is
// non-empty, loads it as the current configuration.
func primeConfig(t *testing.T, yamlBody string) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	config.ResetConfig()
	t.Cleanup(config.ResetConfig)

	if yamlBody == "" {
		return
	}
	path := filepath.Join(t.TempDir(), "wcpctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlBody), 0o600))
	_, err := config.Load(path, nil)
	require.NoError(t, err)
}

// runCommand executes cmd with args and captures stdout and stderr.
func runCommand(cmd *cobra.Command, args ...string) (stdout, stderr string, err error) {
	out := new(bytes.Buffer)
	errOut := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetIn(new(bytes.Buffer))
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func subcommandNames(cmd *cobra.Command) []string {
	names := make([]string, 0, len(cmd.Commands()))
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	return names
}

func TestNewVersionCommand(t *testing.T) {
	primeConfig(t, "")

	out, _, err := runCommand(NewVersionCommand("9.9.9"))
	require.NoError(t, err)
	assert.Contains(t, out, "wcpctl v9.9.9")
}

func TestNewVaultCommand(t *testing.T) {
	cmd := NewVaultCommand()

	assert.Equal(t, "vault", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	names := subcommandNames(cmd)
	for _, want := range []string{"list", "get", "password"} {
		assert.Contains(t, names, want)
	}
}

func TestNewDBCommand(t *testing.T) {
	cmd := NewDBCommand()

	assert.Equal(t, "db", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	names := subcommandNames(cmd)
	for _, want := range []string{"ping", "exec", "shell"} {
		assert.Contains(t, names, want)
	}
}

func TestNewGraphCommand(t *testing.T) {
	cmd := NewGraphCommand()

	assert.Equal(t, "graph", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	names := subcommandNames(cmd)
	for _, want := range []string{"list", "create", "diff", "renew", "reauthorize", "update-url", "delete"} {
		assert.Contains(t, names, want)
	}
}

func TestNewNotifyCommand(t *testing.T) {
	cmd := NewNotifyCommand()

	assert.Equal(t, "notify", cmd.Use)
	names := subcommandNames(cmd)
	for _, want := range []string{"send", "report"} {
		assert.Contains(t, names, want)
	}
}

func TestNewReleaseCommand(t *testing.T) {
	cmd := NewReleaseCommand()

	assert.Equal(t, "release", cmd.Use)
	names := subcommandNames(cmd)
	assert.Contains(t, names, "gate")

	var gate *cobra.Command
	for _, sub := range cmd.Commands() {
		if sub.Name() == "gate" {
			gate = sub
		}
	}
	require.NotNil(t, gate)
	for _, flag := range []string{"env-file", "export", "tag"} {
		assert.NotNil(t, gate.Flags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestNewDoctorCommand(t *testing.T) {
	cmd := NewDoctorCommand()

	assert.Equal(t, "doctor", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotNil(t, cmd.Flags().Lookup("format"), "--format flag should exist")
}
