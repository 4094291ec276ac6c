package secrets

import (
	"context"
	"strings"

	"github.com/opendatateam/hydra-release/internal/errors"
	"github.com/opendatateam/hydra-release/internal/fsys"
)

// FileProvider resolves secrets from single-line files, typically mounted
// into the build environment by the CI system.
type FileProvider struct {
	fs fsys.Filesystem
}

var _ Provider = (*FileProvider)(nil)

// NewFileProvider creates a file-backed provider reading through fs.
func NewFileProvider(fs fsys.Filesystem) *FileProvider {
	return &FileProvider{fs: fs}
}

// Name returns the provider scheme.
func (p *FileProvider) Name() string {
	return "file"
}

// Resolve reads the secret file at id. The file must hold a single
// non-empty line and must not be group or world accessible.
func (p *FileProvider) Resolve(ctx context.Context, id string) (string, error) {
	select {
	case <-ctx.Done():
		return "", errors.Wrap(ctx.Err(), errors.CodeSecretResolveFailed, "resolve cancelled")
	default:
	}

	info, err := p.fs.Stat(id)
	if err != nil {
		return "", errors.Newf(errors.CodeNotFound, "secret file %s does not exist", id)
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		return "", errors.Newf(errors.CodeInvalidInput,
			"secret file %s is group or world accessible (%04o)", id, perm)
	}

	data, err := p.fs.ReadFile(id)
	if err != nil {
		return "", errors.WrapWithContext(err, errors.CodeSecretResolveFailed,
			"failed to read secret file", map[string]interface{}{"path": id})
	}

	value := strings.TrimRight(string(data), "\r\n")
	if value == "" {
		return "", errors.Newf(errors.CodeSecretResolveFailed, "secret file %s is empty", id)
	}
	if strings.ContainsAny(value, "\r\n") {
		return "", errors.Newf(errors.CodeSecretResolveFailed,
			"secret file %s holds more than one line", id)
	}

	return value, nil
}
