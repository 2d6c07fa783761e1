package adminview

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/motionlab/backend/internal/admin"
	"github.com/motionlab/backend/internal/client"
	"github.com/motionlab/backend/internal/models"
)

// Demo serves a fixed set of users and projects plus simulated host metrics. Every response
// it produces is demo data; callers label it as such.
type Demo struct {
	metrics *admin.SimulatedMetrics
	now     func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// NewDemo seeds the generator. The same seed yields the same series.
func NewDemo(seed uint64) *Demo {
	return &Demo{
		metrics: admin.NewSimulatedMetrics(seed),
		now:     time.Now,
		rng:     rand.New(rand.NewPCG(seed, seed>>1|1)),
	}
}

// DashboardStats returns the overview cards with live-looking host metrics.
func (d *Demo) DashboardStats(ctx context.Context) client.Response[models.DashboardStats] {
	snap, _ := d.metrics.Sample(ctx)
	return ok(models.DashboardStats{
		TotalUsers:         124,
		ActiveUsers:        87,
		TotalProjects:      312,
		ProcessingProjects: 8,
		CompletedProjects:  295,
		FailedProjects:     9,
		ServerLoad:         snap.CPU,
		MemoryUsage:        snap.Memory,
		DiskUsage:          snap.Disk,
		Uptime:             admin.FormatUptime(snap.Uptime),
		AvgProcessingTime:  admin.FormatDuration(admin.EstimateProcessTime(snap.CPU, snap.Memory)),
		DailyUploads:       14,
		StorageUsed:        "1.2 TB",
		MetricsSource:      snap.Source,
	})
}

var demoActions = []struct {
	user   string
	action string
	ago    time.Duration
}{
	{"John Doe", "Uploaded video \"Walking Motion\"", 5 * time.Minute},
	{"Sarah Smith", "Created avatar \"Dancer\"", 18 * time.Minute},
	{"Emily Davis", "Retargeted \"Yoga Poses\" onto \"Instructor\"", 42 * time.Minute},
	{"Alex Johnson", "Deleted project \"Jump Test\"", 2 * time.Hour},
	{"John Doe", "Signed up", 26 * time.Hour},
}

// RecentActivity returns up to limit events, newest first.
func (d *Demo) RecentActivity(_ context.Context, limit int) client.Response[[]models.ActivityEvent] {
	now := d.now().UTC()
	events := make([]models.ActivityEvent, 0, len(demoActions))
	for i, a := range demoActions {
		events = append(events, models.ActivityEvent{
			ID:        fmt.Sprintf("act-%d", i+1),
			User:      a.user,
			Action:    a.action,
			Timestamp: now.Add(-a.ago),
		})
	}
	return ok(truncate(events, limit))
}

// ProcessingQueue reports the projects of the fixed set that are still processing.
func (d *Demo) ProcessingQueue(_ context.Context, limit int) client.Response[[]models.QueueItem] {
	now := d.now()
	items := []models.QueueItem{}
	for _, p := range demoProjects(now) {
		if !p.IsProcessing {
			continue
		}
		created, err := time.Parse(time.RFC3339, p.CreationDate)
		if err != nil {
			continue
		}
		progress, eta := admin.QueueProgress(now.Sub(created))
		items = append(items, models.QueueItem{ID: p.ID, Name: p.Name, Status: p.Status, Progress: progress, ETA: eta})
	}
	return ok(truncate(items, limit))
}

// Users returns the fixed accounts.
func (d *Demo) Users(context.Context) client.Response[[]models.UserSummary] {
	return ok(demoUsers(d.now()))
}

// Projects returns the fixed projects.
func (d *Demo) Projects(context.Context) client.Response[[]models.AdminProject] {
	return ok(demoProjects(d.now()))
}

// SystemMetrics returns chart series that end at the current simulated sample.
func (d *Demo) SystemMetrics(ctx context.Context, timeRange string) client.Response[models.SystemMetrics] {
	if timeRange == "" {
		timeRange = admin.RangeDay
	}
	labels, err := admin.RangeLabels(timeRange)
	if err != nil {
		return client.Failed[models.SystemMetrics](err.Error())
	}
	snap, _ := d.metrics.Sample(ctx)
	n := len(labels)
	return ok(models.SystemMetrics{
		TimeRange:         timeRange,
		Labels:            labels,
		CPU:               d.metrics.History(snap.CPU, n, 8),
		Memory:            d.metrics.History(snap.Memory, n, 4),
		ProcessingHistory: d.metrics.History(10, n, 3),
		ErrorRate:         d.metrics.History(2, n, 1),
		DiskUsage:         snap.Disk,
		AvgProcessTime:    admin.FormatDuration(admin.EstimateProcessTime(snap.CPU, snap.Memory)),
		Source:            snap.Source,
	})
}

var (
	demoServices = []string{"auth", "processor", "system", "database"}
	demoLevels   = []string{"debug", "info", "warning", "error"}
	demoMessages = map[string][]string{
		"auth":      {"User logged in", "Token refreshed", "Password reset requested", "Invalid credentials"},
		"processor": {"Pose extraction started", "BVH written", "Retarget finished", "Pose extraction timed out"},
		"system":    {"Janitor sweep finished", "Metrics sampled", "Disk usage above 80%", "Worker restarted"},
		"database":  {"Connection pool resized", "Migration applied", "Slow query", "Transaction retried"},
	}
)

// Logs generates entries spread over the last day, newest first, honouring the filter.
func (d *Demo) Logs(_ context.Context, filter client.LogFilter) client.Response[[]models.LogEntry] {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	now := d.now().UTC()

	d.mu.Lock()
	defer d.mu.Unlock()

	entries := make([]models.LogEntry, 0, limit)
	at := now
	for id := int64(1); len(entries) < limit && id <= int64(limit)*64; id++ {
		at = at.Add(-time.Duration(d.rng.IntN(600)+1) * time.Second)
		service := demoServices[d.rng.IntN(len(demoServices))]
		level := demoLevels[d.rng.IntN(len(demoLevels))]
		if filter.Type != "" && !strings.EqualFold(filter.Type, service) {
			continue
		}
		if filter.Level != "" && !strings.EqualFold(filter.Level, level) {
			continue
		}
		msgs := demoMessages[service]
		entries = append(entries, models.LogEntry{
			ID:        id,
			Timestamp: at.Format(time.RFC3339),
			Level:     level,
			Message:   msgs[d.rng.IntN(len(msgs))],
			Service:   service,
		})
	}
	return ok(entries)
}

func demoUsers(now time.Time) []models.UserSummary {
	day := 24 * time.Hour
	user := func(id, first, last, email string, isAdmin bool, age time.Duration, projects int, status string) models.UserSummary {
		created := now.Add(-age).UTC()
		return models.UserSummary{
			User: models.User{
				ID: id, FirstName: first, LastName: last, Email: email,
				IsAdmin: isAdmin, EmailVerified: true, CreatedAt: created, UpdatedAt: created,
			},
			Projects: projects,
			Status:   status,
		}
	}
	return []models.UserSummary{
		user("1", "John", "Doe", "john@example.com", true, 120*day, 12, "active"),
		user("2", "Sarah", "Smith", "sarah@example.com", false, 90*day, 8, "active"),
		user("3", "Alex", "Johnson", "alex@example.com", false, 60*day, 5, "inactive"),
		user("4", "Emily", "Davis", "emily@example.com", false, 30*day, 3, "active"),
	}
}

func demoProjects(now time.Time) []models.AdminProject {
	project := func(id, name, userID, owner, status string, age time.Duration, reason string) models.AdminProject {
		return models.AdminProject{
			ID:            id,
			Name:          name,
			UserID:        userID,
			Owner:         owner,
			Status:        status,
			IsProcessing:  status == models.ProjectStatusProcessing,
			XSensitivity:  0.5,
			YSensitivity:  0.5,
			CreationDate:  now.Add(-age).UTC().Format(time.RFC3339),
			FailureReason: reason,
		}
	}
	return []models.AdminProject{
		project("p1", "Walking Motion", "1", "john@example.com", models.ProjectStatusCompleted, 72*time.Hour, ""),
		project("p2", "Dancing Sequence", "2", "sarah@example.com", models.ProjectStatusProcessing, 4*time.Minute, ""),
		project("p3", "Running Analysis", "1", "john@example.com", models.ProjectStatusCompleted, 48*time.Hour, ""),
		project("p4", "Boxing Movements", "3", "alex@example.com", models.ProjectStatusFailed, 24*time.Hour, "no person detected in video"),
		project("p5", "Yoga Poses", "4", "emily@example.com", models.ProjectStatusCompleted, 6*time.Hour, ""),
	}
}

func ok[T any](data T) client.Response[T] {
	return client.Response[T]{Success: true, Data: data}
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
