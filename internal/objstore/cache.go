// Package objstore resolves directory-style remote keys to concrete objects
// and mirrors them into a local cache. Remote objects are immutable once
// published, so a cached file is permanently valid: there is no TTL and no
// revalidation.
package objstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrObjectNotFound is returned when a directory key holds no matching object.
var ErrObjectNotFound = errors.New("no object under key")

// EnvCacheDir overrides the cache root when set.
const EnvCacheDir = "CLOUDFRAC_CACHE_DIR"

// DefaultCacheRoot returns the on-disk cache root: EnvCacheDir if set,
// otherwise a cloudfrac directory under the user cache dir.
func DefaultCacheRoot() (string, error) {
	if root := os.Getenv(EnvCacheDir); root != "" {
		return root, nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolve user cache dir: %w", err)
	}
	return filepath.Join(base, "cloudfrac"), nil
}

// Cache mirrors remote objects under root, preserving bucket/key structure.
type Cache struct {
	root   string
	remote Remote
}

// NewCache creates a cache rooted at root.
func NewCache(root string, remote Remote) *Cache {
	return &Cache{root: root, remote: remote}
}

// Resolve maps a directory-style key prefix to one concrete .nc object,
// ensures it is mirrored locally, and returns the local path.
//
// Multiple candidate filenames can exist per directory; the lexicographically
// last one wins. Filenames embed creation timestamps, so lexicographic order
// approximates recency.
//
// The mirror write is atomic (temp file + fsync + rename) and idempotent:
// an existing mirror is returned without remote traffic, and concurrent
// invocations racing on the same entry are harmless — the rename loser finds
// the file already in place.
func (c *Cache) Resolve(ctx context.Context, bucket, keyPrefix string) (string, error) {
	keys, err := c.remote.List(ctx, bucket, keyPrefix)
	if err != nil {
		return "", err
	}

	var candidates []string
	for _, k := range keys {
		if strings.HasSuffix(k, ".nc") {
			candidates = append(candidates, k)
		}
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: s3://%s/%s", ErrObjectNotFound, bucket, keyPrefix)
	}
	sort.Strings(candidates)
	key := candidates[len(candidates)-1]

	dest := filepath.Join(c.root, bucket, filepath.FromSlash(key))
	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}

	// Temp file in the destination directory so the rename stays on one
	// filesystem.
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".cloudfrac-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := c.remote.Fetch(ctx, bucket, key, tmp); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, dest); err != nil {
		return "", fmt.Errorf("publish cache entry: %w", err)
	}
	return dest, nil
}
