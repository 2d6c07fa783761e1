package storage

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"
)

// MemoryStorage keeps objects in process memory. It backs tests and local demos.
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string][]byte
	baseURL string
}

// NewMemoryStorage returns an empty store whose URLs are baseURL + "/" + key.
func NewMemoryStorage(baseURL string) *MemoryStorage {
	return &MemoryStorage{objects: make(map[string][]byte), baseURL: baseURL}
}

func (m *MemoryStorage) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	key, err := CleanKey(name)
	if err != nil {
		return "", err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()
	return key, nil
}

func (m *MemoryStorage) Open(_ context.Context, name string) (io.ReadCloser, error) {
	key, err := CleanKey(name)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	data, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *MemoryStorage) Delete(_ context.Context, name string) error {
	key, err := CleanKey(name)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return ErrObjectNotFound
	}
	delete(m.objects, key)
	return nil
}

func (m *MemoryStorage) URL(_ context.Context, name string) (string, error) {
	key, err := CleanKey(name)
	if err != nil {
		return "", err
	}
	return m.baseURL + "/" + key, nil
}

// Keys lists stored keys in sorted order.
func (m *MemoryStorage) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var _ AssetStorage = (*MemoryStorage)(nil)
