package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// FilesPrefix is the route under which DiskStorage objects are served.
const FilesPrefix = "/files/"

// DiskStorage keeps assets in a local directory and serves them over HTTP.
type DiskStorage struct {
	root    string
	baseURL string
}

// NewDiskStorage creates the root directory if needed. Returned URLs are
// baseURL + /files/<key>, or relative when baseURL is empty.
func NewDiskStorage(root, baseURL string) (*DiskStorage, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("disk storage: root directory is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("disk storage: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("disk storage: create root: %w", err)
	}
	return &DiskStorage{root: abs, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Save writes r to key atomically via a temp file and rename.
func (d *DiskStorage) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	key, full, err := d.resolve(name)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("disk storage: create dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("disk storage: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("disk storage: write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("disk storage: close %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return "", fmt.Errorf("disk storage: commit %s: %w", key, err)
	}
	return key, nil
}

// Open returns a reader for key.
func (d *DiskStorage) Open(_ context.Context, name string) (io.ReadCloser, error) {
	_, full, err := d.resolve(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("disk storage: open: %w", err)
	}
	return f, nil
}

// Delete removes key from disk.
func (d *DiskStorage) Delete(_ context.Context, name string) error {
	_, full, err := d.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("disk storage: delete: %w", err)
	}
	return nil
}

// URL returns the HTTP location of key.
func (d *DiskStorage) URL(_ context.Context, name string) (string, error) {
	key, err := CleanKey(name)
	if err != nil {
		return "", err
	}
	return d.baseURL + FilesPrefix + key, nil
}

// Handler serves stored files under FilesPrefix. Directory listings are refused.
func (d *DiskStorage) Handler() http.Handler {
	files := http.StripPrefix(FilesPrefix, http.FileServer(http.Dir(d.root)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}

func (d *DiskStorage) resolve(name string) (string, string, error) {
	key, err := CleanKey(name)
	if err != nil {
		return "", "", err
	}
	return key, filepath.Join(d.root, filepath.FromSlash(key)), nil
}

var _ AssetStorage = (*DiskStorage)(nil)
