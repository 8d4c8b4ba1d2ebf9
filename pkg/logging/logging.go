// Package logging configures run-scoped slog loggers backed by
// rotated log files.
//
// Each call to Setup starts a fresh <name>.log, shifting the previous
// run's file to <name>_1.log and so on up to the configured number of
// generations. Long-lived automation jobs get one file per run with a
// bounded history on disk.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// DefaultKeep is the number of rotated generations retained when
// Options.Keep is zero.
const DefaultKeep = 5

// Options controls Setup.
type Options struct {
	Dir     string     // log directory, created if missing; "logs" when empty
	Name    string     // base name; files are <name>.log, <name>_1.log, ...
	Level   slog.Level // minimum level, defaults to info
	Format  string     // "text" (default) or "json"
	Console bool       // mirror entries to stderr
	Keep    int        // rotated generations to keep
}

// Setup rotates earlier log files, opens a fresh <name>.log and
// returns a logger writing to it. The returned closer owns the file
// and should be closed when the run ends.
func Setup(opts Options) (*slog.Logger, io.Closer, error) {
	if opts.Name == "" {
		return nil, nil, fmt.Errorf("logging: name required")
	}
	if opts.Dir == "" {
		opts.Dir = "logs"
	}
	if opts.Keep <= 0 {
		opts.Keep = DefaultKeep
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	if err := rotate(opts.Dir, opts.Name, opts.Keep); err != nil {
		return nil, nil, err
	}

	f, err := os.Create(filepath.Join(opts.Dir, opts.Name+".log"))
	if err != nil {
		return nil, nil, fmt.Errorf("create log file: %w", err)
	}

	var w io.Writer = f
	if opts.Console {
		w = io.MultiWriter(f, os.Stderr)
	}
	return slog.New(newHandler(w, opts)), f, nil
}

func newHandler(w io.Writer, opts Options) slog.Handler {
	ho := &slog.HandlerOptions{Level: opts.Level}
	if strings.EqualFold(opts.Format, "json") {
		return slog.NewJSONHandler(w, ho)
	}
	return slog.NewTextHandler(w, ho)
}

// ForComponent tags a child logger with the component name. A nil
// logger yields a discard logger, so library types can take loggers
// optionally.
func ForComponent(l *slog.Logger, name string) *slog.Logger {
	if l == nil {
		return slog.New(slog.DiscardHandler)
	}
	return l.With(slog.String("component", name))
}

// ParseLevel maps a config string onto a slog level. Unknown values
// fall back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// rotate shifts <name>.log through numbered generations, dropping the
// one past keep.
func rotate(dir, name string, keep int) error {
	gen := func(i int) string {
		if i == 0 {
			return filepath.Join(dir, name+".log")
		}
		return filepath.Join(dir, fmt.Sprintf("%s_%d.log", name, i))
	}

	if err := os.Remove(gen(keep)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("drop oldest log: %w", err)
	}
	for i := keep - 1; i >= 0; i-- {
		src := gen(i)
		if _, err := os.Stat(src); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("stat %s: %w", src, err)
		}
		if err := os.Rename(src, gen(i+1)); err != nil {
			return fmt.Errorf("rotate %s: %w", src, err)
		}
	}
	return nil
}
