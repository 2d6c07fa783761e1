package admin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	snap  Snapshot
	err   error
	calls int
}

func (s *staticSource) Sample(context.Context) (Snapshot, error) {
	s.calls++
	if s.err != nil {
		return Snapshot{}, s.err
	}
	snap := s.snap
	if snap.At.IsZero() {
		snap.At = time.Now().UTC()
	}
	return snap, nil
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "512.0 B", FormatBytes(512))
	assert.Equal(t, "1.5 KB", FormatBytes(1536))
	assert.Equal(t, "3.0 MB", FormatBytes(3<<20))
	assert.Equal(t, "2.0 TB", FormatBytes(2<<40))

	assert.Equal(t, "5d 12h 34m", FormatUptime(5*24*time.Hour+12*time.Hour+34*time.Minute+20*time.Second))
	assert.Equal(t, "0d 0h 0m", FormatUptime(-time.Minute))
	assert.Equal(t, "3m 12s", FormatDuration(192*time.Second))
	assert.Equal(t, "0m 0s", FormatDuration(0))
}

func TestQueueProgress(t *testing.T) {
	cases := []struct {
		elapsed  time.Duration
		progress int
		eta      string
	}{
		{0, 0, "10 min"},
		{3 * time.Minute, 30, "7 min"},
		{9*time.Minute + 30*time.Second, 95, "< 1 min"},
		{2 * time.Hour, 95, "< 1 min"},
	}
	for _, tc := range cases {
		progress, eta := QueueProgress(tc.elapsed)
		assert.Equal(t, tc.progress, progress, "elapsed %s", tc.elapsed)
		assert.Equal(t, tc.eta, eta, "elapsed %s", tc.elapsed)
	}
}

func TestSimulatedMetricsStaysInBounds(t *testing.T) {
	sim := NewSimulatedMetrics(42)
	twin := NewSimulatedMetrics(42)

	for i := 0; i < 500; i++ {
		snap, err := sim.Sample(context.Background())
		require.NoError(t, err)
		other, _ := twin.Sample(context.Background())

		assert.Equal(t, SourceSimulated, snap.Source)
		assert.Equal(t, snap.CPU, other.CPU, "same seed must give the same walk")
		assert.True(t, snap.CPU >= 10 && snap.CPU <= 95, "cpu %v", snap.CPU)
		assert.True(t, snap.Memory >= 30 && snap.Memory <= 85, "memory %v", snap.Memory)
		assert.True(t, snap.Disk >= 45 && snap.Disk <= 95, "disk %v", snap.Disk)
		assert.True(t, snap.Uptime >= 3*24*time.Hour)
	}

	history := sim.History(50, 24, 10)
	require.Len(t, history, 24)
	assert.Equal(t, 50.0, history[23])
	for _, v := range history {
		assert.True(t, v >= 0 && v <= 100)
	}
	assert.Empty(t, sim.History(50, 0, 10))
}

func TestEstimateProcessTime(t *testing.T) {
	assert.Equal(t, 2*time.Minute, EstimateProcessTime(0, 0))
	assert.Equal(t, 4*time.Minute, EstimateProcessTime(100, 100))
	assert.Equal(t, 3*time.Minute, EstimateProcessTime(50, 50))
}

func TestMemorySampleStoreCapsAndFilters(t *testing.T) {
	store := NewMemorySampleStore(3)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(ctx, Snapshot{CPU: float64(i), At: base.Add(time.Duration(i) * time.Minute)}))
	}

	all, err := store.Since(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 2.0, all[0].CPU)

	recent, err := store.Since(ctx, base.Add(4*time.Minute))
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, 4.0, recent[0].CPU)
}

func TestRedisSampleStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisSampleStore(client, 2)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Append(ctx, Snapshot{CPU: float64(10 * i), At: base.Add(time.Duration(i) * time.Hour), Source: SourceHost}))
	}

	n, err := client.LLen(ctx, redisSamplesKey).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	got, err := store.Since(ctx, base)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 10.0, got[0].CPU)
	assert.Equal(t, 20.0, got[1].CPU)
	assert.True(t, got[1].At.Equal(base.Add(2*time.Hour)))
}

func TestSamplerCollectAndCurrent(t *testing.T) {
	src := &staticSource{snap: Snapshot{CPU: 40, Memory: 60, Source: SourceHost}}
	store := NewMemorySampleStore(10)
	sampler := &Sampler{Source: src, Store: store, MaxAge: time.Hour}
	ctx := context.Background()

	_, err := sampler.Collect(ctx)
	require.NoError(t, err)
	history, err := sampler.History(ctx, time.Time{})
	require.NoError(t, err)
	assert.Len(t, history, 1)

	snap, err := sampler.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, 40.0, snap.CPU)
	assert.Equal(t, 1, src.calls, "fresh snapshot must be reused")

	failing := &Sampler{Source: &staticSource{err: errors.New("no sensors")}}
	_, err = failing.Current(ctx)
	assert.Error(t, err)
}

func TestSamplerSchedule(t *testing.T) {
	sampler := &Sampler{Source: &staticSource{}, Store: NewMemorySampleStore(1)}
	c := cron.New()

	_, err := sampler.Schedule(c, "@every 1m")
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 1)

	_, err = sampler.Schedule(c, "bogus")
	assert.Error(t, err)
}
