package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/motionlab/backend/internal/config"
)

var (
	// ErrObjectNotFound is returned when a key does not exist in the store.
	ErrObjectNotFound = errors.New("object not found")
	// ErrInvalidKey is returned for empty keys or keys escaping the store root.
	ErrInvalidKey = errors.New("invalid object key")
)

// AssetStorage persists BVH and GLB assets under slash-separated keys.
type AssetStorage interface {
	Save(ctx context.Context, key string, r io.Reader) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	URL(ctx context.Context, key string) (string, error)
}

// New builds the storage backend selected by configuration.
func New(ctx context.Context, cfg config.ObjectStoreConfig) (AssetStorage, error) {
	switch cfg.Backend {
	case config.StorageBackendS3:
		return NewS3Storage(ctx, cfg)
	case config.StorageBackendDisk, "":
		return NewDiskStorage(cfg.LocalDir, cfg.PublicBaseURL)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// CleanKey normalises a key and rejects traversal outside the store.
func CleanKey(key string) (string, error) {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	if key == "" {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean("/" + key)
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." {
		return "", ErrInvalidKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return "", ErrInvalidKey
		}
	}
	return cleaned, nil
}

// DeleteAll removes every key, continuing past failures. Missing objects are ignored.
func DeleteAll(ctx context.Context, store AssetStorage, keys []string) error {
	var errs []error
	for _, key := range keys {
		if err := store.Delete(ctx, key); err != nil && !errors.Is(err, ErrObjectNotFound) {
			errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}
