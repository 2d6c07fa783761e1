package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/motionlab/backend/internal/logging"
	"github.com/motionlab/backend/internal/models"
	"github.com/motionlab/backend/internal/repositories"
	"github.com/motionlab/backend/internal/storage"
	"github.com/motionlab/backend/internal/validate"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrProjectNotFound  = errors.New("project not found")
	ErrEmailTaken       = errors.New("email already registered")
	ErrInvalidTimeRange = errors.New("time range must be day, week or month")
)

// ValidationError carries field messages for a rejected user update.
type ValidationError struct {
	Fields validate.Errors
}

func (e *ValidationError) Error() string { return "invalid user update" }

// UserStore is the user data the dashboard reads and edits.
type UserStore interface {
	FindByID(ctx context.Context, id string) (models.User, error)
	Update(ctx context.Context, user models.User) error
	Delete(ctx context.Context, id string) error
	ListSummaries(ctx context.Context) ([]models.UserSummary, error)
	Counts(ctx context.Context) (total, active int, err error)
}

// ProjectStore is the project data the dashboard reads and deletes.
type ProjectStore interface {
	FindByID(ctx context.Context, id string) (models.Project, error)
	ListByUser(ctx context.Context, userID string) ([]models.Project, error)
	ListSummaries(ctx context.Context) ([]models.ProjectSummary, error)
	ListProcessing(ctx context.Context, limit int) ([]models.Project, error)
	ListCreatedSince(ctx context.Context, since time.Time) ([]models.Project, error)
	RecentActivity(ctx context.Context, limit int) ([]models.ActivityEvent, error)
	Delete(ctx context.Context, id string) error
	Counts(ctx context.Context) (models.ProjectCounts, error)
	CountCreatedSince(ctx context.Context, since time.Time) (int, error)
	AverageProcessingTime(ctx context.Context) (time.Duration, error)
}

// SizeCounter reports bytes held in storage.
type SizeCounter interface {
	TotalSize(ctx context.Context) (int64, error)
}

// SessionRevoker signs a user out of every device.
type SessionRevoker interface {
	RevokeUser(ctx context.Context, userID string) (int64, error)
}

// Service answers the admin dashboard endpoints.
type Service struct {
	Users     UserStore
	Projects  ProjectStore
	BVHFiles  SizeCounter
	Keys      repositories.StorageKeyLister
	Storage   storage.AssetStorage
	Metrics   *Sampler
	LogBuffer *logging.Buffer
	Sessions  SessionRevoker
	Now       func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// DashboardStats aggregates counts from the database with the current metrics snapshot.
func (s *Service) DashboardStats(ctx context.Context) (models.DashboardStats, error) {
	var stats models.DashboardStats

	total, active, err := s.Users.Counts(ctx)
	if err != nil {
		return stats, fmt.Errorf("count users: %w", err)
	}
	counts, err := s.Projects.Counts(ctx)
	if err != nil {
		return stats, fmt.Errorf("count projects: %w", err)
	}
	daily, err := s.Projects.CountCreatedSince(ctx, s.now().Add(-24*time.Hour))
	if err != nil {
		return stats, fmt.Errorf("count uploads: %w", err)
	}
	avg, err := s.Projects.AverageProcessingTime(ctx)
	if err != nil {
		return stats, fmt.Errorf("average processing time: %w", err)
	}
	size, err := s.BVHFiles.TotalSize(ctx)
	if err != nil {
		return stats, fmt.Errorf("storage used: %w", err)
	}

	stats = models.DashboardStats{
		TotalUsers:         total,
		ActiveUsers:        active,
		TotalProjects:      counts.Total,
		ProcessingProjects: counts.Processing,
		CompletedProjects:  counts.Completed,
		FailedProjects:     counts.Failed,
		Uptime:             "Unknown",
		AvgProcessingTime:  FormatDuration(avg),
		DailyUploads:       daily,
		StorageUsed:        FormatBytes(size),
	}

	if s.Metrics != nil {
		snap, err := s.Metrics.Current(ctx)
		if err != nil {
			logging.FromContext(ctx).Warn("metrics unavailable", slog.Any("error", err))
		} else {
			stats.ServerLoad = snap.CPU
			stats.MemoryUsage = snap.Memory
			stats.DiskUsage = snap.Disk
			stats.Uptime = FormatUptime(snap.Uptime)
			stats.MetricsSource = snap.Source
		}
	}
	return stats, nil
}

// RecentActivity returns the newest activity events.
func (s *Service) RecentActivity(ctx context.Context, limit int) ([]models.ActivityEvent, error) {
	if limit <= 0 {
		limit = 5
	}
	return s.Projects.RecentActivity(ctx, limit)
}

// ProcessingQueue lists projects still in the pipeline with an estimated progress.
func (s *Service) ProcessingQueue(ctx context.Context, limit int) ([]models.QueueItem, error) {
	if limit <= 0 {
		limit = 3
	}
	projects, err := s.Projects.ListProcessing(ctx, limit)
	if err != nil {
		return nil, err
	}
	now := s.now()
	queue := make([]models.QueueItem, 0, len(projects))
	for _, p := range projects {
		progress, eta := QueueProgress(now.Sub(p.CreationDate))
		queue = append(queue, models.QueueItem{
			ID:       p.ID,
			Name:     p.Name,
			Status:   "Processing",
			Progress: progress,
			ETA:      eta,
		})
	}
	return queue, nil
}

// ListUsers lists every account with its project count.
func (s *Service) ListUsers(ctx context.Context) ([]models.UserSummary, error) {
	users, err := s.Users.ListSummaries(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.UserSummary, 0, len(users))
	for _, u := range users {
		u.Status = userStatus(u.Projects)
		out = append(out, u)
	}
	return out, nil
}

// GetUser loads one account with its project count.
func (s *Service) GetUser(ctx context.Context, id string) (models.UserSummary, error) {
	user, err := s.Users.FindByID(ctx, id)
	if err != nil {
		return models.UserSummary{}, mapMissing(err, ErrUserNotFound)
	}
	projects, err := s.Projects.ListByUser(ctx, id)
	if err != nil {
		return models.UserSummary{}, err
	}
	return models.UserSummary{User: user, Projects: len(projects), Status: userStatus(len(projects))}, nil
}

// UpdateUser applies the non-nil fields of update.
func (s *Service) UpdateUser(ctx context.Context, id string, update models.UserUpdate) (models.UserSummary, error) {
	user, err := s.Users.FindByID(ctx, id)
	if err != nil {
		return models.UserSummary{}, mapMissing(err, ErrUserNotFound)
	}

	before := user
	errs := validate.Errors{}
	if update.FirstName != nil {
		user.FirstName = strings.TrimSpace(*update.FirstName)
		if user.FirstName == "" {
			errs["first_name"] = "First Name is required"
		}
	}
	if update.LastName != nil {
		user.LastName = strings.TrimSpace(*update.LastName)
		if user.LastName == "" {
			errs["last_name"] = "Last Name is required"
		}
	}
	if update.Email != nil {
		if msg := validate.Email(*update.Email); msg != "" {
			errs["email"] = msg
		}
		user.Email = strings.ToLower(strings.TrimSpace(*update.Email))
	}
	if !errs.OK() {
		return models.UserSummary{}, &ValidationError{Fields: errs}
	}
	if update.IsAdmin != nil {
		user.IsAdmin = *update.IsAdmin
	}
	if update.EmailVerified != nil {
		user.EmailVerified = *update.EmailVerified
	}
	user.UpdatedAt = s.now()

	if err := s.Users.Update(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return models.UserSummary{}, ErrEmailTaken
		}
		return models.UserSummary{}, mapMissing(err, ErrUserNotFound)
	}

	// A new email or a revoked admin flag must not survive in refresh tokens.
	if user.Email != before.Email || (before.IsAdmin && !user.IsAdmin) {
		s.revokeSessions(ctx, id)
	}
	logging.FromContext(ctx).Info("admin updated user", slog.String("userId", id))
	return s.GetUser(ctx, id)
}

// DeleteUser removes an account and every object its projects and avatars stored.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	var keys []string
	if s.Keys != nil {
		found, err := s.Keys.KeysForUser(ctx, id)
		if err != nil {
			return err
		}
		keys = found
	}
	if err := s.Users.Delete(ctx, id); err != nil {
		return mapMissing(err, ErrUserNotFound)
	}
	s.revokeSessions(ctx, id)
	s.purge(ctx, keys)
	logging.FromContext(ctx).Info("admin deleted user", slog.String("userId", id), slog.Int("objects", len(keys)))
	return nil
}

// ListProjects lists every project with its owner.
func (s *Service) ListProjects(ctx context.Context) ([]models.AdminProject, error) {
	projects, err := s.Projects.ListSummaries(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.AdminProject, 0, len(projects))
	for _, p := range projects {
		out = append(out, adminProject(p.Project, p.OwnerEmail))
	}
	return out, nil
}

// GetProject loads one project with its owner.
func (s *Service) GetProject(ctx context.Context, id string) (models.AdminProject, error) {
	p, err := s.Projects.FindByID(ctx, id)
	if err != nil {
		return models.AdminProject{}, mapMissing(err, ErrProjectNotFound)
	}
	owner := "Unknown"
	if u, err := s.Users.FindByID(ctx, p.UserID); err == nil {
		owner = u.Email
	}
	return adminProject(p, owner), nil
}

// DeleteProject removes a project and its stored BVH and retargeted files.
func (s *Service) DeleteProject(ctx context.Context, id string) error {
	var keys []string
	if s.Keys != nil {
		found, err := s.Keys.KeysForProject(ctx, id)
		if err != nil {
			return err
		}
		keys = found
	}
	if err := s.Projects.Delete(ctx, id); err != nil {
		return mapMissing(err, ErrProjectNotFound)
	}
	s.purge(ctx, keys)
	logging.FromContext(ctx).Info("admin deleted project", slog.String("projectId", id), slog.Int("objects", len(keys)))
	return nil
}

func (s *Service) purge(ctx context.Context, keys []string) {
	if s.Storage == nil || len(keys) == 0 {
		return
	}
	if err := storage.DeleteAll(ctx, s.Storage, keys); err != nil {
		logging.FromContext(ctx).Warn("delete stored objects", slog.Any("error", err))
	}
}

// Logs returns retained log entries, newest first. "all" disables a filter.
func (s *Service) Logs(logType, level string, limit int) []models.LogEntry {
	if limit <= 0 {
		limit = 100
	}
	if s.LogBuffer == nil {
		return []models.LogEntry{}
	}
	q := logging.Query{Limit: limit}
	if logType != "" && logType != "all" {
		q.Service = logType
	}
	if level != "" && level != "all" {
		q.Level = level
	}

	entries := s.LogBuffer.Recent(q)
	out := make([]models.LogEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, models.LogEntry{
			ID:        e.ID,
			Timestamp: e.Time.UTC().Format("2006-01-02 15:04:05"),
			Level:     e.Level,
			Message:   e.Message,
			Service:   e.Service,
			RequestID: e.RequestID,
		})
	}
	return out
}

func userStatus(projects int) string {
	if projects > 0 {
		return "active"
	}
	return "inactive"
}

func adminProject(p models.Project, owner string) models.AdminProject {
	p.Normalize()
	return models.AdminProject{
		ID:            p.ID,
		Name:          p.Name,
		UserID:        p.UserID,
		Owner:         owner,
		Status:        p.Status,
		IsProcessing:  p.IsProcessing,
		XSensitivity:  p.XSensitivity,
		YSensitivity:  p.YSensitivity,
		CreationDate:  p.CreationDate.UTC().Format("2006-01-02"),
		FailureReason: p.FailureReason,
	}
}

func mapMissing(err, missing error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return missing
	}
	return err
}

// revokeSessions logs failures instead of returning them.
func (s *Service) revokeSessions(ctx context.Context, userID string) {
	if s.Sessions == nil {
		return
	}
	n, err := s.Sessions.RevokeUser(ctx, userID)
	if err != nil {
		logging.FromContext(ctx).Warn("revoke sessions failed", slog.String("userId", userID), slog.Any("error", err))
		return
	}
	logging.FromContext(ctx).Info("sessions revoked", slog.String("userId", userID), slog.Int64("sessions", n))
}
