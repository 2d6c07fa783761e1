package admin

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motionlab/backend/internal/logging"
	"github.com/motionlab/backend/internal/models"
	"github.com/motionlab/backend/internal/repositories"
	"github.com/motionlab/backend/internal/storage"
)

type userStoreStub struct {
	users     map[string]models.User
	updateErr error
}

func (s *userStoreStub) FindByID(_ context.Context, id string) (models.User, error) {
	u, ok := s.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return u, nil
}

func (s *userStoreStub) Update(_ context.Context, u models.User) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.users[u.ID] = u
	return nil
}

func (s *userStoreStub) Delete(_ context.Context, id string) error {
	if _, ok := s.users[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *userStoreStub) ListSummaries(context.Context) ([]models.UserSummary, error) {
	return []models.UserSummary{
		{User: models.User{ID: "u1", Email: "ada@example.com"}, Projects: 2},
		{User: models.User{ID: "u2", Email: "bob@example.com"}},
	}, nil
}

func (s *userStoreStub) Counts(context.Context) (int, int, error) { return 4, 2, nil }

type projectStoreStub struct {
	projects []models.Project
	deleted  []string
}

func (s *projectStoreStub) FindByID(_ context.Context, id string) (models.Project, error) {
	for _, p := range s.projects {
		if p.ID == id {
			return p, nil
		}
	}
	return models.Project{}, repositories.ErrNotFound
}

func (s *projectStoreStub) ListByUser(_ context.Context, userID string) ([]models.Project, error) {
	var out []models.Project
	for _, p := range s.projects {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *projectStoreStub) ListSummaries(context.Context) ([]models.ProjectSummary, error) {
	out := make([]models.ProjectSummary, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, models.ProjectSummary{Project: p, OwnerEmail: "ada@example.com"})
	}
	return out, nil
}

func (s *projectStoreStub) ListProcessing(_ context.Context, limit int) ([]models.Project, error) {
	var out []models.Project
	for _, p := range s.projects {
		if p.Status == models.ProjectStatusProcessing && len(out) < limit {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *projectStoreStub) ListCreatedSince(_ context.Context, since time.Time) ([]models.Project, error) {
	var out []models.Project
	for _, p := range s.projects {
		if !p.CreationDate.Before(since) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *projectStoreStub) RecentActivity(_ context.Context, limit int) ([]models.ActivityEvent, error) {
	return []models.ActivityEvent{{ID: "p1", User: "ada@example.com", Action: "Created project Walk"}}[:min(limit, 1)], nil
}

func (s *projectStoreStub) Delete(_ context.Context, id string) error {
	for i, p := range s.projects {
		if p.ID == id {
			s.projects = append(s.projects[:i], s.projects[i+1:]...)
			s.deleted = append(s.deleted, id)
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (s *projectStoreStub) Counts(context.Context) (models.ProjectCounts, error) {
	return models.ProjectCounts{Total: 5, Processing: 1, Completed: 3, Failed: 1}, nil
}

func (s *projectStoreStub) CountCreatedSince(context.Context, time.Time) (int, error) { return 2, nil }

func (s *projectStoreStub) AverageProcessingTime(context.Context) (time.Duration, error) {
	return 192 * time.Second, nil
}

type sizeStub int64

func (s sizeStub) TotalSize(context.Context) (int64, error) { return int64(s), nil }

type keyListerStub map[string][]string

func (k keyListerStub) KeysForProject(_ context.Context, id string) ([]string, error) {
	return k["project:"+id], nil
}

func (k keyListerStub) KeysForUser(_ context.Context, id string) ([]string, error) {
	return k["user:"+id], nil
}

var testNow = time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *projectStoreStub, *storage.MemoryStorage) {
	t.Helper()
	done := testNow.Add(-time.Hour)
	projects := &projectStoreStub{projects: []models.Project{
		{ID: "p1", Name: "Walk", UserID: "u1", Status: models.ProjectStatusProcessing, CreationDate: testNow.Add(-3 * time.Minute)},
		{ID: "p2", Name: "Run", UserID: "u1", Status: models.ProjectStatusCompleted, CreationDate: testNow.Add(-90 * time.Minute), CompletedAt: &done},
		{ID: "p3", Name: "Jump", UserID: "u1", Status: models.ProjectStatusFailed, CreationDate: testNow.Add(-80 * time.Minute)},
	}}
	store := storage.NewMemoryStorage("")
	svc := &Service{
		Users: &userStoreStub{users: map[string]models.User{
			"u1": {ID: "u1", FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"},
			"u2": {ID: "u2", FirstName: "Bob", LastName: "Builder", Email: "bob@example.com"},
		}},
		Projects: projects,
		BVHFiles: sizeStub(1536),
		Keys:     keyListerStub{"project:p2": {"bvh/p2/run.bvh"}, "user:u1": {"bvh/p2/run.bvh", "avatars/u1/a.glb"}},
		Storage:  store,
		Metrics: &Sampler{
			Source: &staticSource{snap: Snapshot{CPU: 42, Memory: 65, Disk: 78, Uptime: 36 * time.Hour, Source: SourceHost}},
			Store:  NewMemorySampleStore(100),
		},
		Now: func() time.Time { return testNow },
	}
	return svc, projects, store
}

func TestDashboardStats(t *testing.T) {
	svc, _, _ := newTestService(t)

	stats, err := svc.DashboardStats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, stats.TotalUsers)
	assert.Equal(t, 2, stats.ActiveUsers)
	assert.Equal(t, 5, stats.TotalProjects)
	assert.Equal(t, 1, stats.ProcessingProjects)
	assert.Equal(t, 3, stats.CompletedProjects)
	assert.Equal(t, 1, stats.FailedProjects)
	assert.Equal(t, 2, stats.DailyUploads)
	assert.Equal(t, "1.5 KB", stats.StorageUsed)
	assert.Equal(t, "3m 12s", stats.AvgProcessingTime)
	assert.Equal(t, 42.0, stats.ServerLoad)
	assert.Equal(t, "1d 12h 0m", stats.Uptime)
	assert.Equal(t, SourceHost, stats.MetricsSource)
}

func TestDashboardStatsWithoutMetrics(t *testing.T) {
	svc, _, _ := newTestService(t)
	svc.Metrics = &Sampler{Source: &staticSource{err: errors.New("unsupported platform")}}

	stats, err := svc.DashboardStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Unknown", stats.Uptime)
	assert.Zero(t, stats.ServerLoad)
}

func TestProcessingQueueAndActivity(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	queue, err := svc.ProcessingQueue(ctx, 0)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, models.QueueItem{ID: "p1", Name: "Walk", Status: "Processing", Progress: 30, ETA: "7 min"}, queue[0])

	activity, err := svc.RecentActivity(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, activity, 1)
}

func TestUsersAndUpdate(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "active", users[0].Status)
	assert.Equal(t, "inactive", users[1].Status)

	user, err := svc.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, user.Projects)

	_, err = svc.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)

	admin := true
	email := " Ada@Example.org "
	updated, err := svc.UpdateUser(ctx, "u1", models.UserUpdate{Email: &email, IsAdmin: &admin})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.org", updated.Email)
	assert.True(t, updated.IsAdmin)
	assert.Equal(t, "Ada", updated.FirstName)

	blank, bad := " ", "nope"
	_, err = svc.UpdateUser(ctx, "u1", models.UserUpdate{FirstName: &blank, Email: &bad})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "First Name is required", verr.Fields["first_name"])
	assert.Equal(t, "Invalid email format", verr.Fields["email"])

	svc.Users.(*userStoreStub).updateErr = repositories.ErrConflict
	taken := "bob@example.com"
	_, err = svc.UpdateUser(ctx, "u1", models.UserUpdate{Email: &taken})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestDeleteUserAndProjectPurgeStorage(t *testing.T) {
	svc, projects, store := newTestService(t)
	ctx := context.Background()
	for _, key := range []string{"bvh/p2/run.bvh", "avatars/u1/a.glb", "bvh/p1/walk.bvh"} {
		_, err := store.Save(ctx, key, strings.NewReader("x"))
		require.NoError(t, err)
	}

	require.NoError(t, svc.DeleteProject(ctx, "p2"))
	assert.Equal(t, []string{"p2"}, projects.deleted)
	assert.Equal(t, []string{"avatars/u1/a.glb", "bvh/p1/walk.bvh"}, store.Keys())
	assert.ErrorIs(t, svc.DeleteProject(ctx, "p2"), ErrProjectNotFound)

	require.NoError(t, svc.DeleteUser(ctx, "u1"))
	assert.Equal(t, []string{"bvh/p1/walk.bvh"}, store.Keys())
	assert.ErrorIs(t, svc.DeleteUser(ctx, "u1"), ErrUserNotFound)
}

func TestProjectsCarryOwnerAndDate(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	list, err := svc.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "ada@example.com", list[0].Owner)
	assert.Equal(t, "2024-05-01", list[0].CreationDate)
	assert.True(t, list[0].IsProcessing)

	p, err := svc.GetProject(ctx, "p3")
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusFailed, p.Status)
	assert.Equal(t, "ada@example.com", p.Owner)

	_, err = svc.GetProject(ctx, "nope")
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestSystemMetricsDay(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	store := svc.Metrics.Store
	require.NoError(t, store.Append(ctx, Snapshot{CPU: 20, Memory: 50, At: testNow.Add(-2 * time.Hour)}))
	require.NoError(t, store.Append(ctx, Snapshot{CPU: 40, Memory: 70, At: testNow.Add(-90 * time.Minute)}))
	require.NoError(t, store.Append(ctx, Snapshot{CPU: 90, Memory: 90, At: testNow.Add(-48 * time.Hour)}))

	m, err := svc.SystemMetrics(ctx, "")
	require.NoError(t, err)

	assert.Equal(t, RangeDay, m.TimeRange)
	require.Len(t, m.Labels, 24)
	assert.Equal(t, "0:00", m.Labels[0])
	assert.Equal(t, "23:00", m.Labels[23])

	// 10:30 and 11:00 land in hours 10 and 11.
	assert.Equal(t, 20.0, m.CPU[10])
	assert.Equal(t, 40.0, m.CPU[11])
	assert.Equal(t, 70.0, m.Memory[11])

	// p1 at 12:27, p2 at 11:00, p3 at 11:10.
	assert.Equal(t, 1.0, m.ProcessingHistory[12])
	assert.Equal(t, 2.0, m.ProcessingHistory[11])
	assert.Equal(t, 50.0, m.ErrorRate[11])
	assert.Equal(t, 78.0, m.DiskUsage)
	assert.Equal(t, "30m 0s", m.AvgProcessTime)
}

func TestSystemMetricsRanges(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	week, err := svc.SystemMetrics(ctx, RangeWeek)
	require.NoError(t, err)
	assert.Equal(t, []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}, week.Labels)
	// 2024-05-01 is a Wednesday.
	assert.Equal(t, 3.0, week.ProcessingHistory[2])

	month, err := svc.SystemMetrics(ctx, RangeMonth)
	require.NoError(t, err)
	require.Len(t, month.Labels, 30)
	assert.Equal(t, "Day 30", month.Labels[29])
	assert.Equal(t, 3.0, month.ProcessingHistory[29])

	_, err = svc.SystemMetrics(ctx, "year")
	assert.ErrorIs(t, err, ErrInvalidTimeRange)
}

func TestLogsFromBuffer(t *testing.T) {
	buf := logging.NewBuffer(10)
	logger := slog.New(buf.Handler(slog.NewTextHandler(io.Discard, nil)))
	logger.Info("server started")
	logger.Warn("bad password", "service", logging.ServiceAuth)
	logger.Error("extractor crashed", "service", logging.ServiceProcessor)

	svc := &Service{LogBuffer: buf}

	all := svc.Logs("all", "all", 0)
	require.Len(t, all, 3)
	assert.Equal(t, "extractor crashed", all[0].Message)
	assert.Len(t, all[0].Timestamp, len("2006-01-02 15:04:05"))

	auth := svc.Logs(logging.ServiceAuth, "all", 10)
	require.Len(t, auth, 1)
	assert.Equal(t, "warning", auth[0].Level)

	errorsOnly := svc.Logs("all", "error", 10)
	require.Len(t, errorsOnly, 1)
	assert.Equal(t, logging.ServiceProcessor, errorsOnly[0].Service)

	assert.Empty(t, (&Service{}).Logs("all", "all", 5))
}

type revokerStub struct{ revoked []string }

func (r *revokerStub) RevokeUser(_ context.Context, userID string) (int64, error) {
	r.revoked = append(r.revoked, userID)
	return 1, nil
}

func TestUserChangesRevokeSessions(t *testing.T) {
	svc, _, _ := newTestService(t)
	revoker := &revokerStub{}
	svc.Sessions = revoker
	ctx := context.Background()

	first := "Augusta"
	_, err := svc.UpdateUser(ctx, "u1", models.UserUpdate{FirstName: &first})
	require.NoError(t, err)
	assert.Empty(t, revoker.revoked, "a name change keeps sessions")

	email := "ada@motionlab.dev"
	_, err = svc.UpdateUser(ctx, "u1", models.UserUpdate{Email: &email})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteUser(ctx, "u2"))
	assert.Equal(t, []string{"u1", "u2"}, revoker.revoked)
}
