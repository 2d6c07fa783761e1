package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/motionlab/backend/internal/models"
)

// LogFilter narrows the admin log view. Empty fields match everything.
type LogFilter struct {
	Type  string
	Level string
	Limit int
}

func limitQuery(limit int) url.Values {
	if limit <= 0 {
		return nil
	}
	return url.Values{"limit": {strconv.Itoa(limit)}}
}

// DashboardStats fetches the overview cards.
func (c *Client) DashboardStats(ctx context.Context) Response[models.DashboardStats] {
	return call[models.DashboardStats](ctx, c, http.MethodGet, "/admin/dashboard-stats", nil, nil)
}

// RecentActivity fetches the latest user actions.
func (c *Client) RecentActivity(ctx context.Context, limit int) Response[[]models.ActivityEvent] {
	return call[[]models.ActivityEvent](ctx, c, http.MethodGet, "/admin/activity/recent", limitQuery(limit), nil)
}

// ProcessingQueue fetches projects still being processed.
func (c *Client) ProcessingQueue(ctx context.Context, limit int) Response[[]models.QueueItem] {
	return call[[]models.QueueItem](ctx, c, http.MethodGet, "/admin/processing-queue", limitQuery(limit), nil)
}

// Users lists every account.
func (c *Client) Users(ctx context.Context) Response[[]models.UserSummary] {
	return call[[]models.UserSummary](ctx, c, http.MethodGet, "/admin/users", nil, nil)
}

// UpdateUser changes the admin-editable fields of an account.
func (c *Client) UpdateUser(ctx context.Context, id string, update models.UserUpdate) Response[models.UserSummary] {
	return call[models.UserSummary](ctx, c, http.MethodPut, "/admin/users/"+url.PathEscape(id), nil, update)
}

// DeleteUser removes an account.
func (c *Client) DeleteUser(ctx context.Context, id string) Response[struct{}] {
	return call[struct{}](ctx, c, http.MethodDelete, "/admin/users/"+url.PathEscape(id), nil, nil)
}

// Projects lists every project with its owner.
func (c *Client) Projects(ctx context.Context) Response[[]models.AdminProject] {
	return call[[]models.AdminProject](ctx, c, http.MethodGet, "/admin/projects", nil, nil)
}

// DeleteAdminProject removes any user's project.
func (c *Client) DeleteAdminProject(ctx context.Context, id string) Response[struct{}] {
	return call[struct{}](ctx, c, http.MethodDelete, "/admin/projects/"+url.PathEscape(id), nil, nil)
}

// SystemMetrics fetches the metric series for day, week or month.
func (c *Client) SystemMetrics(ctx context.Context, timeRange string) Response[models.SystemMetrics] {
	var q url.Values
	if timeRange != "" {
		q = url.Values{"timeRange": {timeRange}}
	}
	return call[models.SystemMetrics](ctx, c, http.MethodGet, "/admin/system-metrics", q, nil)
}

// Logs fetches recent server log entries.
func (c *Client) Logs(ctx context.Context, filter LogFilter) Response[[]models.LogEntry] {
	q := limitQuery(filter.Limit)
	if q == nil {
		q = url.Values{}
	}
	if filter.Type != "" {
		q.Set("logType", filter.Type)
	}
	if filter.Level != "" {
		q.Set("logLevel", filter.Level)
	}
	return call[[]models.LogEntry](ctx, c, http.MethodGet, "/admin/logs", q, nil)
}
