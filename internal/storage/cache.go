package storage

import (
	"context"
	"io"
	"sync"
	"time"
)

type urlEntry struct {
	url     string
	expires time.Time
}

// CachingStorage wraps another AssetStorage and memoises URL lookups for a TTL.
// The TTL must stay below the presign lifetime of the underlying store.
type CachingStorage struct {
	AssetStorage
	ttl time.Duration
	now func() time.Time

	mu    sync.RWMutex
	items map[string]urlEntry
}

// NewCachingStorage returns a store that caches URL results for ttl.
func NewCachingStorage(base AssetStorage, ttl time.Duration) *CachingStorage {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachingStorage{
		AssetStorage: base,
		ttl:          ttl,
		now:          time.Now,
		items:        make(map[string]urlEntry),
	}
}

// URL returns a cached location when fresh, otherwise it delegates and stores the result.
func (c *CachingStorage) URL(ctx context.Context, key string) (string, error) {
	now := c.now()

	c.mu.RLock()
	entry, ok := c.items[key]
	c.mu.RUnlock()
	if ok && now.Before(entry.expires) {
		return entry.url, nil
	}

	url, err := c.AssetStorage.URL(ctx, key)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.items[key] = urlEntry{url: url, expires: now.Add(c.ttl)}
	c.mu.Unlock()

	return url, nil
}

// Save overwrites key and drops any cached URL for it.
func (c *CachingStorage) Save(ctx context.Context, key string, r io.Reader) (string, error) {
	c.forget(key)
	return c.AssetStorage.Save(ctx, key, r)
}

// Delete removes key and its cached URL.
func (c *CachingStorage) Delete(ctx context.Context, key string) error {
	c.forget(key)
	return c.AssetStorage.Delete(ctx, key)
}

func (c *CachingStorage) forget(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}
