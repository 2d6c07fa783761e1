package handlers

import (
	"context"
	"time"

	"github.com/motionlab/backend/internal/models"
	"github.com/motionlab/backend/internal/pose"
	"github.com/motionlab/backend/internal/retarget"
)

// UserStore captures the persistence operations required by the auth handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
}

// SessionManager issues, refreshes and revokes authentication tokens for users.
type SessionManager interface {
	Issue(ctx context.Context, user models.User) (models.SessionTokens, error)
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error)
	Revoke(ctx context.Context, refreshToken string)
}

// ProjectStore captures the project operations used by the project and upload handlers.
type ProjectStore interface {
	Create(ctx context.Context, project models.Project) error
	FindForUser(ctx context.Context, id, userID string) (models.Project, error)
	ListByUser(ctx context.Context, userID string) ([]models.Project, error)
	MarkFailed(ctx context.Context, id, reason string, at time.Time) error
	Delete(ctx context.Context, id string) error
}

// BVHStore lists the animations generated for a project.
type BVHStore interface {
	ListByProject(ctx context.Context, projectID string) ([]models.BVHFile, error)
}

// KeyLister finds the stored objects that belong to a project.
type KeyLister interface {
	KeysForProject(ctx context.Context, projectID string) ([]string, error)
}

// VideoProcessor queues uploaded videos for motion extraction.
type VideoProcessor interface {
	Submit(ctx context.Context, job pose.Job) (<-chan pose.Result, error)
}

// AvatarService manages a user's avatars.
type AvatarService interface {
	Create(ctx context.Context, userID, name, downloadURL string) (models.Avatar, error)
	List(ctx context.Context, userID string) ([]models.Avatar, error)
	Get(ctx context.Context, userID, id string) (models.Avatar, error)
	Delete(ctx context.Context, userID, id string) error
}

// RetargetService produces and manages retargeted avatars.
type RetargetService interface {
	Create(ctx context.Context, req retarget.Request) (models.RetargetedAvatar, error)
	List(ctx context.Context, userID, projectID string) ([]models.RetargetedAvatar, error)
	Delete(ctx context.Context, userID, id string) error
}

// AdminService answers the admin dashboard.
type AdminService interface {
	DashboardStats(ctx context.Context) (models.DashboardStats, error)
	RecentActivity(ctx context.Context, limit int) ([]models.ActivityEvent, error)
	ProcessingQueue(ctx context.Context, limit int) ([]models.QueueItem, error)
	ListUsers(ctx context.Context) ([]models.UserSummary, error)
	GetUser(ctx context.Context, id string) (models.UserSummary, error)
	UpdateUser(ctx context.Context, id string, update models.UserUpdate) (models.UserSummary, error)
	DeleteUser(ctx context.Context, id string) error
	ListProjects(ctx context.Context) ([]models.AdminProject, error)
	GetProject(ctx context.Context, id string) (models.AdminProject, error)
	DeleteProject(ctx context.Context, id string) error
	SystemMetrics(ctx context.Context, timeRange string) (models.SystemMetrics, error)
	Logs(logType, level string, limit int) []models.LogEntry
}

// AssetURLs resolves storage keys into URLs the client can fetch.
type AssetURLs interface {
	URL(ctx context.Context, key string) (string, error)
}

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}
