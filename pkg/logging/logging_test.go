package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupWritesToFile(t *testing.T) {
	dir := t.TempDir()
	logger, closer, err := Setup(Options{Dir: dir, Name: "job"})
	require.NoError(t, err)

	logger.Info("starting", slog.String("stage", "extract"))
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(filepath.Join(dir, "job.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "starting")
	assert.Contains(t, string(data), "stage=extract")
}

func TestSetupJSONFormat(t *testing.T) {
	dir := t.TempDir()
	logger, closer, err := Setup(Options{Dir: dir, Name: "job", Format: "json"})
	require.NoError(t, err)

	logger.Info("hello")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(filepath.Join(dir, "job.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
}

func TestSetupLevelFilters(t *testing.T) {
	dir := t.TempDir()
	logger, closer, err := Setup(Options{Dir: dir, Name: "job", Level: slog.LevelWarn})
	require.NoError(t, err)

	logger.Info("quiet")
	logger.Warn("loud")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(filepath.Join(dir, "job.log"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "quiet")
	assert.Contains(t, string(data), "loud")
}

func TestSetupRequiresName(t *testing.T) {
	_, _, err := Setup(Options{Dir: t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name required")
}

func TestRotateShiftsGenerations(t *testing.T) {
	dir := t.TempDir()
	write := func(path, content string) {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	write(filepath.Join(dir, "job.log"), "run-current")
	write(filepath.Join(dir, "job_1.log"), "run-older")

	_, closer, err := Setup(Options{Dir: dir, Name: "job", Keep: 3})
	require.NoError(t, err)
	require.NoError(t, closer.Close())

	g1, err := os.ReadFile(filepath.Join(dir, "job_1.log"))
	require.NoError(t, err)
	assert.Equal(t, "run-current", string(g1))

	g2, err := os.ReadFile(filepath.Join(dir, "job_2.log"))
	require.NoError(t, err)
	assert.Equal(t, "run-older", string(g2))

	cur, err := os.ReadFile(filepath.Join(dir, "job.log"))
	require.NoError(t, err)
	assert.Empty(t, cur)
}

func TestRotateDropsOldest(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"job.log", "job_1.log", "job_2.log"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644))
	}

	_, closer, err := Setup(Options{Dir: dir, Name: "job", Keep: 2})
	require.NoError(t, err)
	require.NoError(t, closer.Close())

	// Former job_2.log fell off the end; former job_1.log became job_2.log.
	g2, err := os.ReadFile(filepath.Join(dir, "job_2.log"))
	require.NoError(t, err)
	assert.Equal(t, "job_1.log", string(g2))

	_, err = os.Stat(filepath.Join(dir, "job_3.log"))
	assert.True(t, os.IsNotExist(err))
}

func TestForComponent(t *testing.T) {
	assert.NotNil(t, ForComponent(nil, "vault"))

	logger, closer, err := Setup(Options{Dir: t.TempDir(), Name: "job"})
	require.NoError(t, err)
	defer closer.Close()
	assert.NotNil(t, ForComponent(logger, "vault"))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), "level %q", tt.in)
	}
}
