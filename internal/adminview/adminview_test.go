package adminview

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motionlab/backend/internal/admin"
	"github.com/motionlab/backend/internal/client"
	"github.com/motionlab/backend/internal/models"
)

func TestDemoDashboardStats(t *testing.T) {
	demo := NewDemo(7)
	resp := demo.DashboardStats(context.Background())
	require.True(t, resp.Success)

	stats := resp.Data
	assert.Equal(t, 124, stats.TotalUsers)
	assert.Equal(t, 312, stats.TotalProjects)
	assert.Equal(t, admin.SourceSimulated, stats.MetricsSource)
	assert.InDelta(t, 50, stats.ServerLoad, 50)
	assert.Regexp(t, `^\d+d \d+h \d+m$`, stats.Uptime)
	assert.Regexp(t, `^\d+m \d+s$`, stats.AvgProcessingTime)
}

func TestDemoSystemMetricsMatchesRange(t *testing.T) {
	demo := NewDemo(1)
	ctx := context.Background()

	for timeRange, n := range map[string]int{admin.RangeDay: 24, admin.RangeWeek: 7, admin.RangeMonth: 30} {
		resp := demo.SystemMetrics(ctx, timeRange)
		require.True(t, resp.Success, timeRange)
		m := resp.Data
		assert.Len(t, m.Labels, n, timeRange)
		assert.Len(t, m.CPU, n, timeRange)
		assert.Len(t, m.Memory, n, timeRange)
		assert.Len(t, m.ProcessingHistory, n, timeRange)
		assert.Len(t, m.ErrorRate, n, timeRange)
		assert.Equal(t, admin.SourceSimulated, m.Source)
	}

	resp := demo.SystemMetrics(ctx, "year")
	assert.False(t, resp.Success)
	assert.Equal(t, admin.ErrInvalidTimeRange.Error(), resp.Message)
}

func TestDemoLogsHonourFilter(t *testing.T) {
	demo := NewDemo(3)
	resp := demo.Logs(context.Background(), client.LogFilter{Type: "auth", Level: "error", Limit: 5})
	require.True(t, resp.Success)
	require.NotEmpty(t, resp.Data)
	assert.LessOrEqual(t, len(resp.Data), 5)
	for _, e := range resp.Data {
		assert.Equal(t, "auth", e.Service)
		assert.Equal(t, "error", e.Level)
	}

	all := demo.Logs(context.Background(), client.LogFilter{})
	assert.Len(t, all.Data, 50)
	for i := 1; i < len(all.Data); i++ {
		assert.True(t, all.Data[i].Timestamp <= all.Data[i-1].Timestamp, "logs must be newest first")
	}
}

func TestDemoQueueOnlyProcessing(t *testing.T) {
	demo := NewDemo(1)
	resp := demo.ProcessingQueue(context.Background(), 0)
	require.True(t, resp.Success)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "Dancing Sequence", resp.Data[0].Name)
	assert.Greater(t, resp.Data[0].Progress, 0)

	assert.Len(t, demo.RecentActivity(context.Background(), 2).Data, 2)
	assert.Len(t, demo.Users(context.Background()).Data, 4)
	assert.Len(t, demo.Projects(context.Background()).Data, 5)
}

func TestSelectNeverFallsBack(t *testing.T) {
	live := &failingSource{}
	src, demo := Select(false, live, 1)
	assert.False(t, demo)
	assert.Same(t, live, src)

	src, demo = Select(true, live, 1)
	assert.True(t, demo)
	assert.IsType(t, &Demo{}, src)
}

type failingSource struct {
	*Demo
	calls atomic.Int32
}

func (f *failingSource) DashboardStats(context.Context) client.Response[models.DashboardStats] {
	f.calls.Add(1)
	return client.Failed[models.DashboardStats]("network error: connection refused")
}

func TestDashboardRefreshKeepsLastGoodData(t *testing.T) {
	demo := NewDemo(5)
	dash := &Dashboard{Source: demo, Demo: true, Limit: 3, Now: func() time.Time { return time.Unix(100, 0) }}

	ov := dash.Refresh(context.Background())
	require.Equal(t, Ready, ov.Stats.Status)
	assert.True(t, ov.Stats.Demo)
	assert.Equal(t, time.Unix(100, 0), ov.Stats.UpdatedAt)
	assert.Len(t, ov.Activity.Data, 3)
	good := ov.Stats.Data

	failing := &failingSource{Demo: NewDemo(5)}
	dash.Source = failing
	dash.Demo = false
	ov = dash.Refresh(context.Background())
	assert.Equal(t, Failed, ov.Stats.Status)
	assert.Equal(t, "network error: connection refused", ov.Stats.Message)
	assert.Equal(t, good.TotalUsers, ov.Stats.Data.TotalUsers)
	assert.False(t, ov.Stats.Demo)
	assert.Equal(t, Ready, ov.Queue.Status)
	assert.Equal(t, int32(1), failing.calls.Load())
}

func TestLoadFailsWithFallbackMessage(t *testing.T) {
	st := Load(context.Background(), false, func(context.Context) client.Response[[]models.UserSummary] {
		return client.Response[[]models.UserSummary]{}
	})
	assert.Equal(t, Failed, st.Status)
	assert.Equal(t, "request failed", st.Message)
	assert.Equal(t, "error", st.Status.String())
}

func TestPollerRefreshesUntilStopped(t *testing.T) {
	var calls atomic.Int32
	p := &Poller{Interval: 5 * time.Millisecond, Refresh: func(context.Context) { calls.Add(1) }}

	p.Start(context.Background())
	p.Start(context.Background())
	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
	assert.True(t, p.Running())

	p.Stop()
	assert.False(t, p.Running())
	stopped := calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, calls.Load())
}

func TestPollerToggleAndContext(t *testing.T) {
	var calls atomic.Int32
	p := &Poller{Interval: time.Hour, Refresh: func(context.Context) { calls.Add(1) }}

	ctx, cancel := context.WithCancel(context.Background())
	assert.True(t, p.Toggle(ctx))
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	assert.False(t, p.Toggle(ctx))

	p.Start(ctx)
	cancel()
	p.Wait()
	assert.False(t, p.Running())
}
