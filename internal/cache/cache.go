// Package cache saves and restores dependency directories between pipeline
// runs, keyed on the content of dependency manifests. A key changes whenever
// a manifest changes, so stale dependencies are never restored over a new
// lockfile.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"

	"github.com/adrg/xdg"

	"github.com/opendatateam/hydra-release/internal/errors"
	"github.com/opendatateam/hydra-release/internal/fsys"
)

// keyChecksumLen is the number of hex characters of the manifest digest
// included in a cache key.
const keyChecksumLen = 12

// DefaultDir returns the default on-disk cache location under the user
// cache directory.
func DefaultDir() string {
	return filepath.Join(xdg.CacheHome, "hydra-release", "deps")
}

// Cache stores dependency directories under a root directory, one
// subdirectory per key.
type Cache struct {
	fs   fsys.Filesystem
	root string
}

// New creates a cache rooted at the given directory.
func New(filesystem fsys.Filesystem, root string) *Cache {
	return &Cache{
		fs:   filesystem,
		root: root,
	}
}

// Key derives a cache key from the prefix and the content of the given
// manifest files. Manifests that do not exist are skipped, so one key scheme
// can cover projects that carry only a subset of the configured manifests.
// At least one manifest must exist.
func (c *Cache) Key(prefix string, manifests ...string) (string, error) {
	if prefix == "" {
		return "", errors.New(errors.CodeInvalidInput, "cache key prefix cannot be empty")
	}

	h := sha256.New()
	found := 0

	for _, manifest := range manifests {
		exists, err := c.fs.Exists(manifest)
		if err != nil {
			return "", errors.WrapWithContext(err, errors.CodeStorageFailed,
				"failed to probe manifest", map[string]interface{}{"path": manifest})
		}
		if !exists {
			continue
		}

		data, err := c.fs.ReadFile(manifest)
		if err != nil {
			return "", errors.WrapWithContext(err, errors.CodeStorageFailed,
				"failed to read manifest", map[string]interface{}{"path": manifest})
		}

		// Frame each manifest with its name and length so file boundaries
		// and renames change the digest.
		h.Write([]byte(manifest))
		h.Write([]byte{0})
		h.Write([]byte(strconv.Itoa(len(data))))
		h.Write([]byte{0})
		h.Write(data)
		found++
	}

	if found == 0 {
		return "", errors.NewWithContext(errors.CodeInvalidConfig,
			"no cache manifest exists", map[string]interface{}{"manifests": manifests})
	}

	digest := hex.EncodeToString(h.Sum(nil))
	return fmt.Sprintf("%s-%s", prefix, digest[:keyChecksumLen]), nil
}

// Save copies the given workspace paths into the cache under the key.
// Paths that do not exist are skipped. Saving over an existing key
// overwrites its content.
func (c *Cache) Save(ctx context.Context, key string, paths []string) error {
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, errors.CodeStorageFailed, "cache save cancelled")
		}

		exists, err := c.fs.Exists(p)
		if err != nil {
			return errors.WrapWithContext(err, errors.CodeStorageFailed,
				"failed to probe cache path", map[string]interface{}{"path": p})
		}
		if !exists {
			continue
		}

		dest := filepath.Join(c.root, key, p)
		if err := c.copyTree(p, dest); err != nil {
			return err
		}
	}
	return nil
}

// Restore copies the cached paths for the key back into the workspace.
// It reports false when the key has never been saved.
func (c *Cache) Restore(ctx context.Context, key string) (bool, error) {
	entry := filepath.Join(c.root, key)

	exists, err := c.fs.Exists(entry)
	if err != nil {
		return false, errors.WrapWithContext(err, errors.CodeStorageFailed,
			"failed to probe cache entry", map[string]interface{}{"key": key})
	}
	if !exists {
		return false, nil
	}

	if err := ctx.Err(); err != nil {
		return false, errors.Wrap(err, errors.CodeStorageFailed, "cache restore cancelled")
	}

	err = c.fs.Walk(entry, func(path string, info fs.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() {
			return nil
		}

		rel, relErr := filepath.Rel(entry, path)
		if relErr != nil {
			return relErr
		}

		return c.copyFile(path, rel)
	})
	if err != nil {
		return false, errors.WrapWithContext(err, errors.CodeStorageFailed,
			"failed to restore cache entry", map[string]interface{}{"key": key})
	}

	return true, nil
}

// Has reports whether the key has a saved entry.
func (c *Cache) Has(key string) (bool, error) {
	exists, err := c.fs.Exists(filepath.Join(c.root, key))
	if err != nil {
		return false, errors.WrapWithContext(err, errors.CodeStorageFailed,
			"failed to probe cache entry", map[string]interface{}{"key": key})
	}
	return exists, nil
}

// copyTree copies a file or directory tree rooted at from into to.
func (c *Cache) copyTree(from, to string) error {
	info, err := c.fs.Stat(from)
	if err != nil {
		return errors.WrapWithContext(err, errors.CodeStorageFailed,
			"failed to stat cache path", map[string]interface{}{"path": from})
	}

	if !info.IsDir() {
		if err := c.copyFile(from, to); err != nil {
			return errors.WrapWithContext(err, errors.CodeStorageFailed,
				"failed to copy file into cache", map[string]interface{}{"path": from})
		}
		return nil
	}

	err = c.fs.Walk(from, func(path string, info fs.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() {
			return nil
		}

		rel, relErr := filepath.Rel(from, path)
		if relErr != nil {
			return relErr
		}

		return c.copyFile(path, filepath.Join(to, rel))
	})
	if err != nil {
		return errors.WrapWithContext(err, errors.CodeStorageFailed,
			"failed to copy tree into cache", map[string]interface{}{"path": from})
	}
	return nil
}

// copyFile copies a single file, creating parent directories as needed.
func (c *Cache) copyFile(from, to string) error {
	data, err := c.fs.ReadFile(from)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(to); dir != "." {
		if err := c.fs.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	return c.fs.WriteFile(to, data, 0o644)
}
