package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestStat(t *testing.T) {
	t.Run("file", func(t *testing.T) {
		path := writeFile(t, filepath.Join(t.TempDir(), "report.csv"), "uwi,volume\n")

		info, err := Stat(path)
		require.NoError(t, err)
		assert.Equal(t, "report.csv", info.Name)
		assert.Equal(t, ".csv", info.Ext)
		assert.EqualValues(t, 11, info.Size)
		assert.False(t, info.IsDir)
		assert.True(t, filepath.IsAbs(info.Path))
		assert.False(t, info.ModTime.IsZero())
	})

	t.Run("directory", func(t *testing.T) {
		dir := t.TempDir()

		info, err := Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir)
		assert.Empty(t, info.Ext)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := Stat(filepath.Join(t.TempDir(), "absent"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.txt"), "b")
	writeFile(t, filepath.Join(dir, "a.txt"), "a")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	infos, err := List(dir)
	require.NoError(t, err)
	require.Len(t, infos, 3)
	assert.Equal(t, "a.txt", infos[0].Name)
	assert.Equal(t, "b.txt", infos[1].Name)
	assert.Equal(t, "sub", infos[2].Name)
	assert.True(t, infos[2].IsDir)
}

func TestRename(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "old.txt"), "payload")

	info, err := Rename(dir, "old.txt", "new.txt")
	require.NoError(t, err)
	assert.Equal(t, "new.txt", info.Name)
	assert.NoFileExists(t, filepath.Join(dir, "old.txt"))
	assert.FileExists(t, filepath.Join(dir, "new.txt"))

	_, err = Rename(dir, "absent.txt", "x.txt")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFreeTarget(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.csv")

	assert.Equal(t, path, freeTarget(path))

	writeFile(t, path, "taken")
	assert.Equal(t, filepath.Join(dir, "report_copy.csv"), freeTarget(path))

	writeFile(t, filepath.Join(dir, "report_copy.csv"), "also taken")
	assert.Equal(t, filepath.Join(dir, "report_copy_copy.csv"), freeTarget(path))
}

func TestCopy(t *testing.T) {
	t.Run("file", func(t *testing.T) {
		dir := t.TempDir()
		src := writeFile(t, filepath.Join(dir, "report.csv"), "uwi,volume\n")

		info, err := Copy(src, filepath.Join(dir, "backup.csv"))
		require.NoError(t, err)
		assert.Equal(t, "backup.csv", info.Name)

		data, err := os.ReadFile(info.Path)
		require.NoError(t, err)
		assert.Equal(t, "uwi,volume\n", string(data))
	})

	t.Run("file into directory", func(t *testing.T) {
		dir := t.TempDir()
		src := writeFile(t, filepath.Join(dir, "report.csv"), "x")
		dst := filepath.Join(dir, "archive")
		require.NoError(t, os.Mkdir(dst, 0o755))

		info, err := Copy(src, dst)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dst, "report.csv"), info.Path)
	})

	t.Run("collision suffix", func(t *testing.T) {
		dir := t.TempDir()
		src := writeFile(t, filepath.Join(dir, "report.csv"), "new")
		writeFile(t, filepath.Join(dir, "backup.csv"), "already here")

		info, err := Copy(src, filepath.Join(dir, "backup.csv"))
		require.NoError(t, err)
		assert.Equal(t, "backup_copy.csv", info.Name)

		// A second collision stacks another suffix.
		info, err = Copy(src, filepath.Join(dir, "backup.csv"))
		require.NoError(t, err)
		assert.Equal(t, "backup_copy_copy.csv", info.Name)
	})

	t.Run("tree", func(t *testing.T) {
		dir := t.TempDir()
		src := filepath.Join(dir, "wells")
		writeFile(t, filepath.Join(src, "a.txt"), "a")
		writeFile(t, filepath.Join(src, "sub", "b.txt"), "b")

		info, err := Copy(src, filepath.Join(dir, "wells-backup"))
		require.NoError(t, err)
		assert.True(t, info.IsDir)
		assert.FileExists(t, filepath.Join(dir, "wells-backup", "a.txt"))
		assert.FileExists(t, filepath.Join(dir, "wells-backup", "sub", "b.txt"))
	})

	t.Run("tree onto existing directory", func(t *testing.T) {
		dir := t.TempDir()
		src := filepath.Join(dir, "wells")
		writeFile(t, filepath.Join(src, "a.txt"), "a")
		require.NoError(t, os.Mkdir(filepath.Join(dir, "backup"), 0o755))

		info, err := Copy(src, filepath.Join(dir, "backup"))
		require.NoError(t, err)
		assert.Equal(t, "backup_copy", info.Name)
		assert.FileExists(t, filepath.Join(dir, "backup_copy", "a.txt"))
	})

	t.Run("refuses own subtree", func(t *testing.T) {
		dir := t.TempDir()
		src := filepath.Join(dir, "wells")
		writeFile(t, filepath.Join(src, "a.txt"), "a")

		_, err := Copy(src, filepath.Join(src, "nested"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "inside the source tree")

		_, err = Copy(src, src)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "inside the source tree")
	})

	t.Run("missing source", func(t *testing.T) {
		_, err := Copy(filepath.Join(t.TempDir(), "absent"), t.TempDir())
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestMove(t *testing.T) {
	t.Run("file with missing parents", func(t *testing.T) {
		dir := t.TempDir()
		src := writeFile(t, filepath.Join(dir, "report.csv"), "payload")
		dst := filepath.Join(dir, "archive", "2026", "report.csv")

		info, err := Move(src, dst)
		require.NoError(t, err)
		assert.Equal(t, dst, info.Path)
		assert.NoFileExists(t, src)
	})

	t.Run("into directory with collision", func(t *testing.T) {
		dir := t.TempDir()
		src := writeFile(t, filepath.Join(dir, "report.csv"), "new")
		dst := filepath.Join(dir, "archive")
		writeFile(t, filepath.Join(dst, "report.csv"), "already here")

		info, err := Move(src, dst)
		require.NoError(t, err)
		assert.Equal(t, "report_copy.csv", info.Name)
		assert.NoFileExists(t, src)

		data, err := os.ReadFile(filepath.Join(dst, "report.csv"))
		require.NoError(t, err)
		assert.Equal(t, "already here", string(data))
	})

	t.Run("directory", func(t *testing.T) {
		dir := t.TempDir()
		src := filepath.Join(dir, "wells")
		writeFile(t, filepath.Join(src, "a.txt"), "a")

		info, err := Move(src, filepath.Join(dir, "moved"))
		require.NoError(t, err)
		assert.True(t, info.IsDir)
		assert.FileExists(t, filepath.Join(dir, "moved", "a.txt"))
		assert.NoDirExists(t, src)
	})

	t.Run("missing source", func(t *testing.T) {
		_, err := Move(filepath.Join(t.TempDir(), "absent"), t.TempDir())
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestDelete(t *testing.T) {
	t.Run("file", func(t *testing.T) {
		path := writeFile(t, filepath.Join(t.TempDir(), "report.csv"), "x")
		require.NoError(t, Delete(path))
		assert.NoFileExists(t, path)
	})

	t.Run("tree", func(t *testing.T) {
		dir := t.TempDir()
		tree := filepath.Join(dir, "wells")
		writeFile(t, filepath.Join(tree, "sub", "a.txt"), "a")

		require.NoError(t, Delete(tree))
		assert.NoDirExists(t, tree)
	})

	t.Run("missing", func(t *testing.T) {
		err := Delete(filepath.Join(t.TempDir(), "absent"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}
