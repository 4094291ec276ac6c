package release

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/opendatateam/hydra-release/internal/fsys"
)

// DefaultVersionFile is the default path of the version handoff file,
// relative to the repository root.
const DefaultVersionFile = ".release-version"

// Version file contract violations.
var (
	// ErrVersionFileEmpty indicates the handoff file exists but holds no version.
	ErrVersionFileEmpty = errors.New("version file is empty")

	// ErrVersionFileMalformed indicates the handoff file is not a single line
	// of UTF-8 text.
	ErrVersionFileMalformed = errors.New("version file is not single-line UTF-8")
)

// WriteVersionFile writes the resolved version to its durable handoff
// location. The file contract is deliberately narrow: exactly one line of
// UTF-8 text with a trailing newline. Later pipeline stages running as
// separate processes (the packaging tool, the application itself) read the
// version back from this file.
func WriteVersionFile(fs fsys.Filesystem, path string, v Version) error {
	s := v.String()
	if s == "" {
		return fmt.Errorf("write version file %q: %w", path, ErrVersionFileEmpty)
	}
	if strings.ContainsAny(s, "\r\n") || !utf8.ValidString(s) || strings.HasPrefix(s, "\uFEFF") {
		return fmt.Errorf("write version file %q: %w", path, ErrVersionFileMalformed)
	}

	if dir := filepath.Dir(path); dir != "." && dir != "/" {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("write version file %q: %w", path, err)
		}
	}
	if err := fs.WriteFile(path, []byte(s+"\n"), 0o644); err != nil {
		return fmt.Errorf("write version file %q: %w", path, err)
	}
	return nil
}

// ReadVersionFile reads a version back from its handoff file, enforcing the
// single-line UTF-8 contract. The trailing newline is optional on read so
// hand-written files still work.
func ReadVersionFile(fs fsys.Filesystem, path string) (Version, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read version file %q: %w", path, err)
	}

	s := strings.TrimSuffix(string(data), "\n")
	s = strings.TrimSuffix(s, "\r")
	if s == "" {
		return "", fmt.Errorf("read version file %q: %w", path, ErrVersionFileEmpty)
	}
	if strings.ContainsAny(s, "\r\n") || !utf8.ValidString(s) || strings.HasPrefix(s, "\uFEFF") {
		return "", fmt.Errorf("read version file %q: %w", path, ErrVersionFileMalformed)
	}
	return Version(s), nil
}
