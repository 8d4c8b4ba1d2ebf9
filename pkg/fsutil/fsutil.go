// Package fsutil covers the filesystem chores shared by the file-drop
// jobs: metadata, collision-safe copy and move, recursive delete, and
// archive pack/unpack.
//
// Destinations that already exist are never overwritten. The incoming
// file lands next to the original with a _copy suffix before the
// extension, repeated until a free name is found, which matches how
// the drop folders have always been curated.
package fsutil

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Info is the metadata callers get back for a file or directory.
// UID, GID and Links are populated on Unix and zero elsewhere.
type Info struct {
	Name    string
	Path    string
	Ext     string
	Size    int64
	Mode    fs.FileMode
	ModTime time.Time
	IsDir   bool
	UID     uint32
	GID     uint32
	Links   uint64
}

// Stat returns metadata for one path.
func Stat(path string) (*Info, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}

	info := &Info{
		Name:    filepath.Base(abs),
		Path:    abs,
		Size:    fi.Size(),
		Mode:    fi.Mode(),
		ModTime: fi.ModTime(),
		IsDir:   fi.IsDir(),
	}
	if !fi.IsDir() {
		info.Ext = filepath.Ext(abs)
	}
	info.UID, info.GID, info.Links = ownership(fi)
	return info, nil
}

// List returns metadata for every entry in a directory, ordered by
// name.
func List(dir string) ([]Info, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	infos := make([]Info, 0, len(entries))
	for _, entry := range entries {
		info, err := Stat(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		infos = append(infos, *info)
	}
	return infos, nil
}

// Rename gives an entry inside dir a new name and returns the renamed
// entry's metadata.
func Rename(dir, oldName, newName string) (*Info, error) {
	oldPath := filepath.Join(dir, oldName)
	if _, err := os.Stat(oldPath); err != nil {
		return nil, fmt.Errorf("rename %s: %w", oldPath, err)
	}

	newPath := filepath.Join(dir, newName)
	if err := os.Rename(oldPath, newPath); err != nil {
		return nil, fmt.Errorf("rename %s to %s: %w", oldPath, newName, err)
	}
	return Stat(newPath)
}

// Copy duplicates a file or directory tree. A file copied into an
// existing directory lands inside it under the source name. When the
// destination already exists the copy takes the next free _copy name
// instead of overwriting. Copying a directory into its own subtree is
// refused.
func Copy(src, dst string) (*Info, error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return nil, fmt.Errorf("copy %s: %w", src, err)
	}

	if srcInfo.IsDir() {
		if err := checkOutsideTree(src, dst); err != nil {
			return nil, fmt.Errorf("copy %s: %w", src, err)
		}
		target := freeTarget(dst)
		if err := copyTree(src, target); err != nil {
			return nil, fmt.Errorf("copy %s to %s: %w", src, target, err)
		}
		return Stat(target)
	}

	if fi, err := os.Stat(dst); err == nil && fi.IsDir() {
		dst = filepath.Join(dst, filepath.Base(src))
	}
	target := freeTarget(dst)
	if err := copyFile(src, target, srcInfo.Mode()); err != nil {
		return nil, fmt.Errorf("copy %s to %s: %w", src, target, err)
	}
	return Stat(target)
}

// Move relocates a file or directory, creating missing parents and
// resolving destination collisions the same way Copy does. When the
// destination sits on another device the move degrades to copy plus
// delete.
func Move(src, dst string) (*Info, error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return nil, fmt.Errorf("move %s: %w", src, err)
	}

	if fi, err := os.Stat(dst); err == nil && fi.IsDir() {
		dst = filepath.Join(dst, filepath.Base(src))
	}
	target := freeTarget(dst)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, fmt.Errorf("move %s: %w", src, err)
	}

	if err := os.Rename(src, target); err != nil {
		var linkErr *os.LinkError
		if !errors.As(err, &linkErr) {
			return nil, fmt.Errorf("move %s to %s: %w", src, target, err)
		}
		// Rename cannot cross devices; fall back to copy and delete.
		if srcInfo.IsDir() {
			err = copyTree(src, target)
		} else {
			err = copyFile(src, target, srcInfo.Mode())
		}
		if err != nil {
			return nil, fmt.Errorf("move %s to %s: %w", src, target, err)
		}
		if err := Delete(src); err != nil {
			return nil, err
		}
	}
	return Stat(target)
}

// Delete removes a file or a directory tree.
func Delete(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}

	if fi.IsDir() {
		err = os.RemoveAll(path)
	} else {
		err = os.Remove(path)
	}
	if err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

// freeTarget returns the first path not already taken, inserting
// _copy before the extension as many times as needed.
func freeTarget(path string) string {
	for {
		if _, err := os.Lstat(path); os.IsNotExist(err) {
			return path
		}
		ext := filepath.Ext(path)
		path = strings.TrimSuffix(path, ext) + "_copy" + ext
	}
}

// checkOutsideTree rejects destinations equal to or inside the source
// directory.
func checkOutsideTree(src, dst string) error {
	absSrc, err := filepath.Abs(src)
	if err != nil {
		return err
	}
	absDst, err := filepath.Abs(dst)
	if err != nil {
		return err
	}

	rel, err := filepath.Rel(absSrc, absDst)
	if err != nil {
		return nil
	}
	if rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("destination %s is inside the source tree", dst)
	}
	return nil
}

func copyFile(src, dst string, mode fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode.Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}
		if d.IsDir() {
			return os.MkdirAll(target, info.Mode().Perm())
		}
		return copyFile(path, target, info.Mode())
	})
}
