// Package main provides tests for the wcpctl CLI.
package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/wcap/wcplib/internal/cli"
	"github.com/wcap/wcplib/internal/cli/config"
)

func newTestCmd(t *testing.T, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	config.ResetConfig()

	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	return buf, cmd.Execute()
}

func TestVersionCommand(t *testing.T) {
	buf, err := newTestCmd(t, "version")
	if err != nil {
		t.Errorf("version command error = %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "wcpctl") {
		t.Errorf("version output should contain 'wcpctl', got: %s", output)
	}
}

func TestHelpCommand(t *testing.T) {
	buf, err := newTestCmd(t, "--help")
	if err != nil {
		t.Errorf("help command error = %v", err)
	}

	output := buf.String()
	expectedCommands := []string{"vault", "db", "graph", "notify", "doctor", "release", "init", "version"}
	for _, expected := range expectedCommands {
		if !strings.Contains(output, expected) {
			t.Errorf("help output should contain '%s', got: %s", expected, output)
		}
	}
}

func TestUnknownCommand(t *testing.T) {
	_, err := newTestCmd(t, "frobnicate")
	if err == nil {
		t.Error("expected an error for an unknown command")
	}
}

func TestInvalidOutputFormat(t *testing.T) {
	_, err := newTestCmd(t, "version", "--output", "xml")
	if err == nil {
		t.Error("expected an error for an invalid output format")
	}
	if err != nil && !strings.Contains(err.Error(), "invalid output format") {
		t.Errorf("error should mention the invalid output format, got: %v", err)
	}
}
