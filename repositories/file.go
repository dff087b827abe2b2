package repositories

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kubescape/evalresolver/core/domain"
	"github.com/kubescape/evalresolver/core/ports"
	"github.com/kubescape/go-logger"
	"github.com/kubescape/go-logger/helpers"
	"go.opentelemetry.io/otel"
)

const (
	entrySuffix = ".json"
	tmpPrefix   = ".tmp-"
)

// FileStore implements DigestCache with one JSON file per (image reference, target path).
// Writes go to a temporary file in the same directory and are renamed into place,
// so concurrent readers in other processes never observe a partial entry.
type FileStore struct {
	dir string
}

var _ ports.DigestCache = (*FileStore)(nil)

// NewFileStorage initializes the FileStore, creating dir if needed
func NewFileStorage(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the cache directory
func (f *FileStore) Dir() string {
	return f.dir
}

// EntryName returns the stable file name of a cache key
func EntryName(key domain.CacheKey) string {
	sum := sha256.Sum256([]byte(key.ImageRef + "\x00" + key.TargetPath))
	return hex.EncodeToString(sum[:]) + entrySuffix
}

func (f *FileStore) path(key domain.CacheKey) string {
	return filepath.Join(f.dir, EntryName(key))
}

// Read returns the cached content if the entry was stored for expectedDigest
func (f *FileStore) Read(ctx context.Context, key domain.CacheKey, expectedDigest string) ([]byte, bool) {
	_, span := otel.Tracer("").Start(ctx, "FileStore.Read")
	defer span.End()

	if expectedDigest == "" {
		return nil, false
	}
	entry, err := f.load(key)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, false
	case err != nil:
		logger.L().Debug("ignoring unreadable cache entry",
			helpers.String("imageRef", key.ImageRef),
			helpers.String("path", f.path(key)),
			helpers.Error(err))
		return nil, false
	}
	if entry.ImageDigest != expectedDigest {
		logger.L().Debug("cache entry digest mismatch, image was repushed",
			helpers.String("imageRef", key.ImageRef),
			helpers.String("cached", entry.ImageDigest),
			helpers.String("expected", expectedDigest))
		return nil, false
	}
	return entry.Content, true
}

func (f *FileStore) load(key domain.CacheKey) (domain.DigestCacheEntry, error) {
	var entry domain.DigestCacheEntry
	b, err := os.ReadFile(f.path(key))
	if err != nil {
		return entry, err
	}
	if err := json.Unmarshal(b, &entry); err != nil {
		return entry, fmt.Errorf("%w: %v", domain.ErrCacheInvalid, err)
	}
	if entry.ImageRef != key.ImageRef || entry.TargetPath != key.TargetPath {
		return entry, fmt.Errorf("%w: entry belongs to %s", domain.ErrCacheInvalid, entry.ImageRef)
	}
	return entry, nil
}

// Write stores content for key, validated against digest
func (f *FileStore) Write(ctx context.Context, key domain.CacheKey, content []byte, digest string) error {
	_, span := otel.Tracer("").Start(ctx, "FileStore.Write")
	defer span.End()

	b, err := json.Marshal(domain.DigestCacheEntry{
		ImageRef:    key.ImageRef,
		TargetPath:  key.TargetPath,
		Content:     content,
		ImageDigest: digest,
		StoredAt:    time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	tmp, err := os.CreateTemp(f.dir, tmpPrefix+"*")
	if err != nil {
		return fmt.Errorf("failed to create temporary cache file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op once the rename succeeded
		_ = os.Remove(tmpName)
	}()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close cache entry: %w", err)
	}
	if err := os.Rename(tmpName, f.path(key)); err != nil {
		return fmt.Errorf("failed to move cache entry into place: %w", err)
	}
	return nil
}

// Delete removes the entry of key, a missing entry is not an error
func (f *FileStore) Delete(_ context.Context, key domain.CacheKey) error {
	if err := os.Remove(f.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Purge removes every entry, including stale temporary files
func (f *FileStore) Purge(_ context.Context) error {
	d, err := os.ReadDir(f.dir)
	if err != nil {
		return err
	}
	for _, c := range d {
		if c.IsDir() {
			continue
		}
		if strings.HasSuffix(c.Name(), entrySuffix) || strings.HasPrefix(c.Name(), tmpPrefix) {
			if err := os.Remove(filepath.Join(f.dir, c.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
		}
	}
	return nil
}
