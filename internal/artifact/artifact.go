// Package artifact stores build outputs produced by a pipeline run, keyed by
// the resolved release version. Two backends are provided: a local directory
// store for development and self-hosted runs, and an S3 store for shared
// environments.
package artifact

import (
	"context"
	"io/fs"
	"path/filepath"

	"github.com/opendatateam/hydra-release/internal/errors"
	"github.com/opendatateam/hydra-release/internal/fsys"
)

// Artifact describes a stored build output.
type Artifact struct {
	// Name is the artifact file name, e.g. "udata_hydra-1.2.1.dev447-py3-none-any.whl".
	Name string `json:"name"`

	// Key is the backend-specific storage key.
	Key string `json:"key"`

	// Size is the artifact size in bytes.
	Size int64 `json:"size"`

	// SHA256 is the hex digest of the artifact content.
	SHA256 string `json:"sha256"`

	// ContentType is the detected media type.
	ContentType string `json:"contentType"`
}

// Store is the storage backend for build artifacts.
type Store interface {
	// Put stores the file at path under the given version and returns its
	// metadata.
	Put(ctx context.Context, version, path string) (*Artifact, error)

	// Get copies the named artifact of a version to destPath.
	Get(ctx context.Context, version, name, destPath string) error

	// List returns the artifacts stored under a version.
	List(ctx context.Context, version string) ([]Artifact, error)
}

// Collect expands the configured artifact paths into the concrete files they
// contain. Directories are walked recursively; paths that do not exist are
// skipped. It returns an error when nothing at all was found, which almost
// always means the build step did not run.
func Collect(filesystem fsys.Filesystem, paths []string) ([]string, error) {
	var files []string

	for _, p := range paths {
		exists, err := filesystem.Exists(p)
		if err != nil {
			return nil, errors.WrapWithContext(err, errors.CodeStorageFailed,
				"failed to probe artifact path", map[string]interface{}{"path": p})
		}
		if !exists {
			continue
		}

		info, err := filesystem.Stat(p)
		if err != nil {
			return nil, errors.WrapWithContext(err, errors.CodeStorageFailed,
				"failed to stat artifact path", map[string]interface{}{"path": p})
		}

		if !info.IsDir() {
			files = append(files, p)
			continue
		}

		err = filesystem.Walk(p, func(path string, info fs.FileInfo, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if !info.IsDir() {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, errors.WrapWithContext(err, errors.CodeStorageFailed,
				"failed to walk artifact directory", map[string]interface{}{"path": p})
		}
	}

	if len(files) == 0 {
		return nil, errors.NewWithContext(errors.CodeNotFound,
			"no artifacts found", map[string]interface{}{"paths": paths})
	}

	return files, nil
}

// baseName returns the file name component of a workspace path.
func baseName(path string) string {
	return filepath.Base(path)
}
