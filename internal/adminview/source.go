// Package adminview feeds the admin dashboard: it loads every panel from a Source, tracks the
// loading state of each and refreshes them on an interval.
package adminview

import (
	"context"

	"github.com/motionlab/backend/internal/client"
	"github.com/motionlab/backend/internal/models"
)

// Source provides the admin dashboard data. *client.Client talks to the live backend; Demo
// serves generated data for offline demos.
type Source interface {
	DashboardStats(ctx context.Context) client.Response[models.DashboardStats]
	RecentActivity(ctx context.Context, limit int) client.Response[[]models.ActivityEvent]
	ProcessingQueue(ctx context.Context, limit int) client.Response[[]models.QueueItem]
	Users(ctx context.Context) client.Response[[]models.UserSummary]
	Projects(ctx context.Context) client.Response[[]models.AdminProject]
	SystemMetrics(ctx context.Context, timeRange string) client.Response[models.SystemMetrics]
	Logs(ctx context.Context, filter client.LogFilter) client.Response[[]models.LogEntry]
}

var _ Source = (*client.Client)(nil)

// Select picks the source once, at startup. A failing live backend is reported as an error
// by each panel and never swapped for demo data.
func Select(demo bool, live Source, seed uint64) (Source, bool) {
	if demo {
		return NewDemo(seed), true
	}
	return live, false
}
