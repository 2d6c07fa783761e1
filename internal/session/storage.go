// Package session keeps the signed-in user and cached projects and avatars between CLI runs.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// Keys under which the stores persist their state.
const (
	UserKey    = "user-storage"
	ProjectKey = "project-storage"
	AvatarKey  = "avatar-storage"
)

// Storage is a small key/value blob store.
type Storage interface {
	// GetItem returns nil when key is absent.
	GetItem(key string) ([]byte, error)
	SetItem(key string, value []byte) error
	RemoveItem(key string) error
}

// FileStorage keeps every item in one JSON document. Writes hold an exclusive file lock
// so concurrent CLI invocations do not lose each other's updates.
type FileStorage struct {
	path string
	lock *flock.Flock
}

// NewFileStorage stores items in the JSON document at path, creating its directory.
func NewFileStorage(path string) (*FileStorage, error) {
	if path == "" {
		return nil, errors.New("session: state file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("session: create state dir: %w", err)
	}
	return &FileStorage{path: path, lock: flock.New(path + ".lock")}, nil
}

// Path returns the location of the state document.
func (f *FileStorage) Path() string { return f.path }

// GetItem implements Storage.
func (f *FileStorage) GetItem(key string) ([]byte, error) {
	if err := f.lock.RLock(); err != nil {
		return nil, fmt.Errorf("session: lock state: %w", err)
	}
	defer f.lock.Unlock()

	doc, err := f.read()
	if err != nil {
		return nil, err
	}
	return doc[key], nil
}

// SetItem implements Storage.
func (f *FileStorage) SetItem(key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("session: value for %s is not JSON", key)
	}
	return f.update(func(doc map[string]json.RawMessage) {
		doc[key] = json.RawMessage(value)
	})
}

// RemoveItem implements Storage.
func (f *FileStorage) RemoveItem(key string) error {
	return f.update(func(doc map[string]json.RawMessage) {
		delete(doc, key)
	})
}

func (f *FileStorage) update(mutate func(map[string]json.RawMessage)) error {
	if err := f.lock.Lock(); err != nil {
		return fmt.Errorf("session: lock state: %w", err)
	}
	defer f.lock.Unlock()

	doc, err := f.read()
	if err != nil {
		return err
	}
	mutate(doc)
	return f.write(doc)
}

func (f *FileStorage) read() (map[string]json.RawMessage, error) {
	doc := map[string]json.RawMessage{}
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: read state: %w", err)
	}
	if len(raw) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("session: decode state: %w", err)
	}
	return doc, nil
}

func (f *FileStorage) write(doc map[string]json.RawMessage) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("session: encode state: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".state-*")
	if err != nil {
		return fmt.Errorf("session: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("session: write state: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("session: chmod state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("session: close state: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("session: replace state: %w", err)
	}
	return nil
}

// MemoryStorage is an in-process Storage.
type MemoryStorage struct {
	mu    sync.Mutex
	items map[string][]byte
}

// NewMemoryStorage returns an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: make(map[string][]byte)}
}

// GetItem implements Storage.
func (m *MemoryStorage) GetItem(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

// SetItem implements Storage.
func (m *MemoryStorage) SetItem(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = append([]byte(nil), value...)
	return nil
}

// RemoveItem implements Storage.
func (m *MemoryStorage) RemoveItem(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

// persisted is the on-disk envelope shared by every store.
type persisted[T any] struct {
	State   T   `json:"state"`
	Version int `json:"version"`
}

func load[T any](s Storage, key string, dst *T) error {
	raw, err := s.GetItem(key)
	if err != nil || raw == nil {
		return err
	}
	var env persisted[T]
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("session: decode %s: %w", key, err)
	}
	*dst = env.State
	return nil
}

func save[T any](s Storage, key string, state T) error {
	raw, err := json.Marshal(persisted[T]{State: state})
	if err != nil {
		return fmt.Errorf("session: encode %s: %w", key, err)
	}
	return s.SetItem(key, raw)
}
