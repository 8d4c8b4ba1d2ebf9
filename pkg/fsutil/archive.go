package fsutil

import (
	"archive/tar"
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Supported archive formats.
const (
	FormatZip = "zip"
	FormatTar = "tar"
	FormatTgz = "tgz"
)

// ErrUnsupportedFormat reports a format outside zip, tar and tgz.
var ErrUnsupportedFormat = errors.New("unsupported archive format")

// Archive packs a file or directory tree into dst. Directory contents
// are stored relative to the directory root. An existing destination
// gets the usual _copy suffix rather than being overwritten.
func Archive(src, dst, format string) (*Info, error) {
	if _, err := os.Stat(src); err != nil {
		return nil, fmt.Errorf("archive %s: %w", src, err)
	}
	switch format {
	case FormatZip, FormatTar, FormatTgz:
	default:
		return nil, fmt.Errorf("archive %s as %q: %w", src, format, ErrUnsupportedFormat)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return nil, fmt.Errorf("archive %s: %w", src, err)
	}
	target := freeTarget(dst)

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("archive %s: %w", src, err)
	}

	switch format {
	case FormatZip:
		err = writeZip(out, src)
	case FormatTar:
		err = writeTar(out, src)
	case FormatTgz:
		gz := gzip.NewWriter(out)
		if err = writeTar(gz, src); err == nil {
			err = gz.Close()
		}
	}
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(target)
		return nil, fmt.Errorf("archive %s to %s: %w", src, target, err)
	}
	return Stat(target)
}

// Extract unpacks an archive into dir, picking the codec from the
// file extension. Entries that would land outside dir are refused.
func Extract(archive, dir string) error {
	if _, err := os.Stat(archive); err != nil {
		return fmt.Errorf("extract %s: %w", archive, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("extract into %s: %w", dir, err)
	}

	switch name := strings.ToLower(archive); {
	case strings.HasSuffix(name, ".zip"):
		return extractZip(archive, dir)
	case strings.HasSuffix(name, ".tgz"), strings.HasSuffix(name, ".tar.gz"):
		return extractTgz(archive, dir)
	case strings.HasSuffix(name, ".tar"):
		return extractTar(archive, dir)
	default:
		return fmt.Errorf("extract %s: %w", archive, ErrUnsupportedFormat)
	}
}

// walkSource feeds fn every entry under src with its slash-separated
// archive name. A plain file yields a single entry under its base
// name.
func walkSource(src string, fn func(name string, info fs.FileInfo, path string) error) error {
	root, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !root.IsDir() {
		return fn(root.Name(), root, src)
	}

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return fn(filepath.ToSlash(rel), info, path)
	})
}

func writeZip(w io.Writer, src string) error {
	zw := zip.NewWriter(w)
	err := walkSource(src, func(name string, info fs.FileInfo, path string) error {
		if !info.IsDir() && !info.Mode().IsRegular() {
			return nil
		}
		hdr, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		hdr.Name = name
		if info.IsDir() {
			hdr.Name += "/"
			_, err = zw.CreateHeader(hdr)
			return err
		}

		hdr.Method = zip.Deflate
		entry, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = in.Close() }()
		_, err = io.Copy(entry, in)
		return err
	})
	if err != nil {
		_ = zw.Close()
		return err
	}
	return zw.Close()
}

func writeTar(w io.Writer, src string) error {
	tw := tar.NewWriter(w)
	err := walkSource(src, func(name string, info fs.FileInfo, path string) error {
		if !info.IsDir() && !info.Mode().IsRegular() {
			return nil
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = name
		if info.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = in.Close() }()
		_, err = io.Copy(tw, in)
		return err
	})
	if err != nil {
		_ = tw.Close()
		return err
	}
	return tw.Close()
}

// entryTarget resolves an archive entry name under dir, rejecting
// names that climb out of it.
func entryTarget(dir, name string) (string, error) {
	local := filepath.FromSlash(strings.TrimSuffix(name, "/"))
	if !filepath.IsLocal(local) {
		return "", fmt.Errorf("entry %q escapes the extraction directory", name)
	}
	return filepath.Join(dir, local), nil
}

func extractZip(archive, dir string) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("open %s: %w", archive, err)
	}
	defer func() { _ = zr.Close() }()

	for _, f := range zr.File {
		target, err := entryTarget(dir, f.Name)
		if err != nil {
			return fmt.Errorf("extract %s: %w", archive, err)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, dirPerm(f.Mode())); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		in, err := f.Open()
		if err != nil {
			return fmt.Errorf("extract %s: %w", f.Name, err)
		}
		err = writeEntry(target, f.Mode(), in)
		_ = in.Close()
		if err != nil {
			return fmt.Errorf("extract %s: %w", f.Name, err)
		}
	}
	return nil
}

func extractTar(archive, dir string) error {
	in, err := os.Open(archive)
	if err != nil {
		return fmt.Errorf("open %s: %w", archive, err)
	}
	defer func() { _ = in.Close() }()
	return extractTarStream(in, dir)
}

func extractTgz(archive, dir string) error {
	in, err := os.Open(archive)
	if err != nil {
		return fmt.Errorf("open %s: %w", archive, err)
	}
	defer func() { _ = in.Close() }()

	gz, err := gzip.NewReader(in)
	if err != nil {
		return fmt.Errorf("open %s: %w", archive, err)
	}
	defer func() { _ = gz.Close() }()
	return extractTarStream(gz, dir)
}

func extractTarStream(r io.Reader, dir string) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		target, err := entryTarget(dir, hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, dirPerm(hdr.FileInfo().Mode())); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err := writeEntry(target, hdr.FileInfo().Mode(), tr); err != nil {
				return fmt.Errorf("extract %s: %w", hdr.Name, err)
			}
		}
	}
}

func writeEntry(target string, mode fs.FileMode, r io.Reader) error {
	perm := mode.Perm()
	if perm == 0 {
		perm = 0o644
	}
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func dirPerm(mode fs.FileMode) fs.FileMode {
	if perm := mode.Perm(); perm != 0 {
		return perm
	}
	return 0o755
}
