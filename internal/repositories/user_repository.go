package repositories

import (
	"context"
	"time"

	"github.com/motionlab/backend/internal/models"
)

// UserRepository defines the data access contract for users.
type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
	Update(ctx context.Context, user models.User) error
	Delete(ctx context.Context, id string) error
	ListSummaries(ctx context.Context) ([]models.UserSummary, error)
	Counts(ctx context.Context) (total, active int, err error)
}

// ProjectRepository defines the data access contract for projects.
type ProjectRepository interface {
	Create(ctx context.Context, project models.Project) error
	FindByID(ctx context.Context, id string) (models.Project, error)
	FindForUser(ctx context.Context, id, userID string) (models.Project, error)
	ListByUser(ctx context.Context, userID string) ([]models.Project, error)
	ListSummaries(ctx context.Context) ([]models.ProjectSummary, error)
	ListProcessing(ctx context.Context, limit int) ([]models.Project, error)
	ListCreatedSince(ctx context.Context, since time.Time) ([]models.Project, error)
	RecentActivity(ctx context.Context, limit int) ([]models.ActivityEvent, error)
	MarkCompleted(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id, reason string, at time.Time) error
	Delete(ctx context.Context, id string) error
	Counts(ctx context.Context) (models.ProjectCounts, error)
	CountCreatedSince(ctx context.Context, since time.Time) (int, error)
	AverageProcessingTime(ctx context.Context) (time.Duration, error)
}

// BVHRepository defines the data access contract for generated BVH files.
type BVHRepository interface {
	Create(ctx context.Context, file models.BVHFile) error
	ListByProject(ctx context.Context, projectID string) ([]models.BVHFile, error)
	FindByFilename(ctx context.Context, projectID, filename string) (models.BVHFile, error)
	TotalSize(ctx context.Context) (int64, error)
}

// AvatarRepository defines the data access contract for avatars.
type AvatarRepository interface {
	Create(ctx context.Context, avatar models.Avatar) error
	FindForUser(ctx context.Context, id, userID string) (models.Avatar, error)
	ListByUser(ctx context.Context, userID string) ([]models.Avatar, error)
	Delete(ctx context.Context, id, userID string) error
}

// RetargetedAvatarRepository defines the data access contract for retargeted avatars.
type RetargetedAvatarRepository interface {
	Create(ctx context.Context, avatar models.RetargetedAvatar) error
	FindByID(ctx context.Context, id string) (models.RetargetedAvatar, error)
	ListByProject(ctx context.Context, projectID string) ([]models.RetargetedAvatar, error)
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) ([]models.RetargetedAvatar, error)
}

// StorageKeyLister finds object keys that must be removed alongside database rows.
type StorageKeyLister interface {
	KeysForProject(ctx context.Context, projectID string) ([]string, error)
	KeysForUser(ctx context.Context, userID string) ([]string, error)
}
