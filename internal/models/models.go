package models

import "time"

// User represents an account within MotionLab.
type User struct {
	ID            string    `json:"id"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	Email         string    `json:"email"`
	Password      string    `json:"-"`
	IsAdmin       bool      `json:"is_admin"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// FullName joins the first and last name for display.
func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

const (
	ProjectStatusProcessing = "processing"
	ProjectStatusCompleted  = "completed"
	ProjectStatusFailed     = "failed"
)

// Project groups the BVH output produced from one uploaded video.
type Project struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	UserID        string     `json:"user_id"`
	Status        string     `json:"status"`
	IsProcessing  bool       `json:"is_processing"`
	XSensitivity  float64    `json:"x_sensitivity"`
	YSensitivity  float64    `json:"y_sensitivity"`
	CreationDate  time.Time  `json:"creation_date"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`
}

// Normalize derives IsProcessing from Status.
func (p *Project) Normalize() {
	if p.Status == "" {
		p.Status = ProjectStatusProcessing
	}
	p.IsProcessing = p.Status == ProjectStatusProcessing
}

// BVHFile references one skeletal animation generated for a project.
type BVHFile struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"project_id"`
	Filename   string    `json:"filename"`
	StorageKey string    `json:"-"`
	Frames     int       `json:"frames"`
	FrameTime  float64   `json:"frame_time"`
	Duration   float64   `json:"duration"`
	SizeBytes  int64     `json:"size_bytes"`
	CreatedAt  time.Time `json:"created_at"`
}

// Avatar is a downloaded GLB model owned by a user.
type Avatar struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	UserID       string    `json:"user_id"`
	Filename     string    `json:"filename"`
	StorageKey   string    `json:"-"`
	SourceURL    string    `json:"source_url"`
	CreationDate time.Time `json:"creation_date"`
}

// RetargetedAvatar is a short-lived GLB combining an avatar with a BVH animation.
type RetargetedAvatar struct {
	ID           string    `json:"id"`
	ProjectID    string    `json:"project_id"`
	AvatarID     string    `json:"avatar_id"`
	BVHFilename  string    `json:"bvh_filename"`
	Filename     string    `json:"filename"`
	StorageKey   string    `json:"-"`
	CreationDate time.Time `json:"creation_date"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string    `json:"token"`
	AccessExpiresAt  time.Time `json:"token_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// ProjectCounts aggregates projects by lifecycle status.
type ProjectCounts struct {
	Total      int
	Processing int
	Completed  int
	Failed     int
}

// ActivityEvent is a user-visible action shown in the admin activity feed.
type ActivityEvent struct {
	ID        string    `json:"id"`
	User      string    `json:"user"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// UserSummary is a user row enriched with admin-facing aggregates.
type UserSummary struct {
	User
	Projects int    `json:"projects"`
	Status   string `json:"status"`
}

// ProjectSummary is a project row enriched with the owner's email.
type ProjectSummary struct {
	Project
	OwnerEmail string `json:"owner_email"`
}

// BucketCount is the number of projects in one time bucket by status.
type BucketCount struct {
	Completed int
	Failed    int
	Total     int
}
