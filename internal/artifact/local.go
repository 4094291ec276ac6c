package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/adrg/xdg"
	"github.com/gabriel-vasile/mimetype"

	"github.com/opendatateam/hydra-release/internal/errors"
	"github.com/opendatateam/hydra-release/internal/fsys"
)

// checksumFile is the per-version digest index maintained alongside the
// artifacts, in the conventional "<hex>  <name>" format.
const checksumFile = "SHA256SUMS"

// DefaultLocalDir returns the default local store location under the user
// data directory.
func DefaultLocalDir() string {
	return filepath.Join(xdg.DataHome, "hydra-release", "artifacts")
}

// LocalStore stores artifacts in a directory tree, one subdirectory per
// version.
type LocalStore struct {
	fs   fsys.Filesystem
	root string
}

var _ Store = (*LocalStore)(nil)

// NewLocalStore creates a local store rooted at the given directory.
// An empty root selects DefaultLocalDir.
func NewLocalStore(filesystem fsys.Filesystem, root string) *LocalStore {
	if root == "" {
		root = DefaultLocalDir()
	}
	return &LocalStore{
		fs:   filesystem,
		root: root,
	}
}

// Put copies the file into the version directory and records its digest in
// the checksum index.
func (s *LocalStore) Put(ctx context.Context, version, path string) (*Artifact, error) {
	if version == "" {
		return nil, errors.New(errors.CodeInvalidInput, "version cannot be empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeStorageFailed, "artifact store cancelled")
	}

	data, err := s.fs.ReadFile(path)
	if err != nil {
		return nil, errors.WrapWithContext(err, errors.CodeStorageFailed,
			"failed to read artifact", map[string]interface{}{"path": path})
	}

	name := baseName(path)
	key := filepath.Join(version, name)
	dest := filepath.Join(s.root, key)

	if err := s.fs.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, errors.WrapWithContext(err, errors.CodeStorageFailed,
			"failed to create version directory", map[string]interface{}{"version": version})
	}
	if err := s.fs.WriteFile(dest, data, 0o644); err != nil {
		return nil, errors.WrapWithContext(err, errors.CodeStorageFailed,
			"failed to store artifact", map[string]interface{}{"key": key})
	}

	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])

	if err := s.recordChecksum(version, name, digest); err != nil {
		return nil, err
	}

	return &Artifact{
		Name:        name,
		Key:         key,
		Size:        int64(len(data)),
		SHA256:      digest,
		ContentType: mimetype.Detect(data).String(),
	}, nil
}

// Get copies the named artifact of a version to destPath.
func (s *LocalStore) Get(ctx context.Context, version, name, destPath string) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, errors.CodeStorageFailed, "artifact fetch cancelled")
	}

	data, err := s.fs.ReadFile(filepath.Join(s.root, version, name))
	if err != nil {
		return errors.WrapWithContext(err, errors.CodeNotFound,
			"artifact not found", map[string]interface{}{"version": version, "name": name})
	}

	if dir := filepath.Dir(destPath); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return errors.WrapWithContext(err, errors.CodeStorageFailed,
				"failed to create destination directory", map[string]interface{}{"path": destPath})
		}
	}

	if err := s.fs.WriteFile(destPath, data, 0o644); err != nil {
		return errors.WrapWithContext(err, errors.CodeStorageFailed,
			"failed to write artifact", map[string]interface{}{"path": destPath})
	}
	return nil
}

// List returns the artifacts stored under a version, with digests read back
// from the checksum index.
func (s *LocalStore) List(ctx context.Context, version string) ([]Artifact, error) {
	dir := filepath.Join(s.root, version)

	exists, err := s.fs.Exists(dir)
	if err != nil {
		return nil, errors.WrapWithContext(err, errors.CodeStorageFailed,
			"failed to probe version directory", map[string]interface{}{"version": version})
	}
	if !exists {
		return nil, nil
	}

	checksums := s.readChecksums(version)

	var artifacts []Artifact
	err = s.fs.Walk(dir, func(path string, info fs.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() || info.Name() == checksumFile {
			return nil
		}

		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return relErr
		}

		artifacts = append(artifacts, Artifact{
			Name:   rel,
			Key:    filepath.Join(version, rel),
			Size:   info.Size(),
			SHA256: checksums[rel],
		})
		return nil
	})
	if err != nil {
		return nil, errors.WrapWithContext(err, errors.CodeStorageFailed,
			"failed to list artifacts", map[string]interface{}{"version": version})
	}

	return artifacts, nil
}

// recordChecksum rewrites the checksum index with the digest for name,
// replacing any previous entry.
func (s *LocalStore) recordChecksum(version, name, digest string) error {
	checksums := s.readChecksums(version)
	checksums[name] = digest

	names := make([]string, 0, len(checksums))
	for n := range checksums {
		names = append(names, n)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, n := range names {
		fmt.Fprintf(&b, "%s  %s\n", checksums[n], n)
	}

	path := filepath.Join(s.root, version, checksumFile)
	if err := s.fs.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return errors.WrapWithContext(err, errors.CodeStorageFailed,
			"failed to write checksum index", map[string]interface{}{"version": version})
	}
	return nil
}

// readChecksums parses the checksum index of a version. A missing or
// malformed index yields an empty map.
func (s *LocalStore) readChecksums(version string) map[string]string {
	checksums := make(map[string]string)

	data, err := s.fs.ReadFile(filepath.Join(s.root, version, checksumFile))
	if err != nil {
		return checksums
	}

	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 2 {
			checksums[fields[1]] = fields[0]
		}
	}
	return checksums
}
