package bvh

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
)

// MaxFileBytes bounds how much of a BVH file a loader reads.
const MaxFileBytes = 64 << 20

// HTTPLoader fetches clips over HTTP.
type HTTPLoader struct {
	Client *http.Client
}

func (l HTTPLoader) Load(ctx context.Context, location string) (*Clip, error) {
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch bvh: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch bvh: unexpected status %d", resp.StatusCode)
	}
	return Parse(io.LimitReader(resp.Body, MaxFileBytes))
}

// FileLoader reads clips from the local filesystem.
type FileLoader struct{}

func (FileLoader) Load(_ context.Context, location string) (*Clip, error) {
	f, err := os.Open(location)
	if err != nil {
		return nil, fmt.Errorf("open bvh: %w", err)
	}
	defer f.Close()
	return Parse(io.LimitReader(f, MaxFileBytes))
}
