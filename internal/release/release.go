// Package release implements the publish gate the release workflow
// runs before building artifacts. Only plain MAJOR.MINOR.PATCH
// versions go out; anything else skips the publish without failing
// the pipeline.
package release

import (
	"fmt"
	"io"
	"os"
	"regexp"
)

// versionPattern accepts three numeric parts and nothing else: no
// leading v, no pre-release or build suffix.
var versionPattern = regexp.MustCompile(`^[0-9]+\.[0-9]+\.[0-9]+$`)

// ValidVersion reports whether s is a publishable version string.
func ValidVersion(s string) bool {
	return versionPattern.MatchString(s)
}

// Decision is the gate outcome. Reason explains a skip and is empty
// when Proceed is set.
type Decision struct {
	Proceed bool
	Version string
	Reason  string
}

// Gate decides whether a release should be published. When tag is
// non-empty the release tag must equal the version exactly, which
// catches tags created off the wrong commit.
func Gate(version, tag string) Decision {
	if !ValidVersion(version) {
		return Decision{
			Version: version,
			Reason:  fmt.Sprintf("version %q is not a plain MAJOR.MINOR.PATCH release, skipping publish", version),
		}
	}
	if tag != "" && tag != version {
		return Decision{
			Version: version,
			Reason:  fmt.Sprintf("release tag %q does not match version %q, skipping publish", tag, version),
		}
	}
	return Decision{Proceed: true, Version: version}
}

// ExportEnv appends name=value to the environment file later workflow
// steps read. With an empty path the assignment is written to w
// instead, so local runs show what would have been exported.
func ExportEnv(path, name, value string, w io.Writer) error {
	line := fmt.Sprintf("%s=%s\n", name, value)
	if path == "" {
		_, err := io.WriteString(w, line)
		return err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open env file %s: %w", path, err)
	}
	if _, err := f.WriteString(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("write env file %s: %w", path, err)
	}
	return f.Close()
}
