package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/motionlab/backend/internal/logging"
)

// SampleStore retains metric snapshots for the history charts.
type SampleStore interface {
	Append(ctx context.Context, s Snapshot) error
	Since(ctx context.Context, since time.Time) ([]Snapshot, error)
}

// MemorySampleStore keeps the newest snapshots in process.
type MemorySampleStore struct {
	mu    sync.Mutex
	max   int
	items []Snapshot
}

// NewMemorySampleStore retains at most max snapshots.
func NewMemorySampleStore(max int) *MemorySampleStore {
	if max <= 0 {
		max = 24 * 60
	}
	return &MemorySampleStore{max: max}
}

func (m *MemorySampleStore) Append(_ context.Context, s Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, s)
	if over := len(m.items) - m.max; over > 0 {
		m.items = append(m.items[:0:0], m.items[over:]...)
	}
	return nil
}

func (m *MemorySampleStore) Since(_ context.Context, since time.Time) ([]Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Snapshot
	for _, s := range m.items {
		if !s.At.Before(since) {
			out = append(out, s)
		}
	}
	return out, nil
}

const redisSamplesKey = "motionlab:metrics:samples"

// RedisSampleStore keeps snapshots in a capped Redis list so every replica charts the same history.
type RedisSampleStore struct {
	client *redis.Client
	key    string
	max    int64
}

// NewRedisSampleStore retains at most max snapshots under a fixed key.
func NewRedisSampleStore(client *redis.Client, max int) *RedisSampleStore {
	if max <= 0 {
		max = 24 * 60
	}
	return &RedisSampleStore{client: client, key: redisSamplesKey, max: int64(max)}
}

func (r *RedisSampleStore) Append(ctx context.Context, s Snapshot) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode sample: %w", err)
	}
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, r.key, payload)
	pipe.LTrim(ctx, r.key, 0, r.max-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store sample: %w", err)
	}
	return nil
}

// Since returns stored snapshots taken at or after since, oldest first.
func (r *RedisSampleStore) Since(ctx context.Context, since time.Time) ([]Snapshot, error) {
	raw, err := r.client.LRange(ctx, r.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load samples: %w", err)
	}
	out := make([]Snapshot, 0, len(raw))
	for _, item := range raw {
		var s Snapshot
		if err := json.Unmarshal([]byte(item), &s); err != nil {
			return nil, fmt.Errorf("decode sample: %w", err)
		}
		if !s.At.Before(since) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out, nil
}

// Sampler periodically records snapshots from a Source.
type Sampler struct {
	Source Source
	Store  SampleStore
	Logger *slog.Logger
	// MaxAge bounds how old the cached latest snapshot may be before Current samples again.
	MaxAge time.Duration

	mu     sync.RWMutex
	latest Snapshot
}

// Collect takes one sample and stores it.
func (s *Sampler) Collect(ctx context.Context) (Snapshot, error) {
	snap, err := s.Source.Sample(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	s.mu.Lock()
	s.latest = snap
	s.mu.Unlock()

	if s.Store != nil {
		if err := s.Store.Append(ctx, snap); err != nil {
			return snap, err
		}
	}
	return snap, nil
}

// Current returns the latest snapshot, sampling again when it is stale.
func (s *Sampler) Current(ctx context.Context) (Snapshot, error) {
	maxAge := s.MaxAge
	if maxAge <= 0 {
		maxAge = time.Minute
	}
	s.mu.RLock()
	latest := s.latest
	s.mu.RUnlock()
	if !latest.At.IsZero() && time.Since(latest.At) < maxAge {
		return latest, nil
	}
	snap, err := s.Source.Sample(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	s.mu.Lock()
	s.latest = snap
	s.mu.Unlock()
	return snap, nil
}

// History returns stored snapshots since the given time.
func (s *Sampler) History(ctx context.Context, since time.Time) ([]Snapshot, error) {
	if s.Store == nil {
		return nil, nil
	}
	return s.Store.Since(ctx, since)
}

// Schedule registers Collect on the cron scheduler.
func (s *Sampler) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := s.Collect(ctx); err != nil {
			s.logger().Warn("metrics sample failed", slog.Any("error", err))
		}
	})
}

func (s *Sampler) logger() *slog.Logger {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String("service", logging.ServiceSystem))
}
