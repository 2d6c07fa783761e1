package handlers

import (
	"net/http"
	"time"

	"github.com/motionlab/backend/internal/storage"
)

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{Database: deps.Database}
	authH := AuthHandler{Users: deps.Users, Sessions: deps.Sessions, Limiter: deps.AuthLimiter, NowFunc: deps.NowFunc}
	projects := ProjectHandler{Projects: deps.Projects, BVHFiles: deps.BVHFiles, Keys: deps.Keys, Storage: deps.Storage}
	poseH := PoseHandler{
		Users:          deps.Users,
		Projects:       deps.Projects,
		Processor:      deps.Processor,
		Limiter:        deps.UploadLimiter,
		MaxUploadBytes: deps.MaxUploadBytes,
		TempDir:        deps.UploadTempDir,
		NowFunc:        deps.NowFunc,
	}
	avatarsH := AvatarHandler{Avatars: deps.Avatars, URLs: deps.Storage, Limiter: deps.AuthLimiter}
	retargetH := RetargetHandler{Retarget: deps.Retarget, URLs: deps.Storage, Limiter: deps.UploadLimiter}
	adminH := AdminHandler{Admin: deps.Admin}

	user := func(h http.HandlerFunc) http.Handler { return deps.Guard.RequireUser(h) }
	admin := func(h http.HandlerFunc) http.Handler { return deps.Guard.RequireAdmin(h) }

	mux.HandleFunc("/healthz", health.Handle)
	mux.HandleFunc("/readyz", health.Ready)

	mux.HandleFunc("/auth/login", authH.Login)
	mux.HandleFunc("/auth/signup", authH.SignUp)
	mux.HandleFunc("/auth/refresh", authH.Refresh)
	mux.HandleFunc("/auth/logout", authH.Logout)
	mux.HandleFunc("/auth/request-password-reset", authH.RequestPasswordReset)
	mux.Handle("/auth/me", user(authH.Me))

	mux.Handle("/project/get-projects", user(projects.List))
	mux.Handle("/project/get-project", user(projects.Get))
	mux.Handle("/project/delete-project", user(projects.Delete))
	mux.Handle("/project/get-bvh-filenames", user(projects.BVHFilenames))
	mux.Handle("/project/create-retargeted-avatar", user(retargetH.Create))
	mux.Handle("/project/retargeted-avatars", user(retargetH.List))
	mux.Handle("/project/retargeted-avatar", user(retargetH.Delete))

	mux.Handle("/avatar/create-avatar", user(avatarsH.Create))
	mux.Handle("/avatar/avatars", user(avatarsH.List))
	mux.Handle("/avatar/{$}", user(avatarsH.Avatar))

	mux.Handle("/pose/process-video", user(poseH.ProcessVideo))

	mux.Handle("/admin/dashboard-stats", admin(adminH.DashboardStats))
	mux.Handle("/admin/activity/recent", admin(adminH.RecentActivity))
	mux.Handle("/admin/processing-queue", admin(adminH.ProcessingQueue))
	mux.Handle("/admin/users", admin(adminH.Users))
	mux.Handle("/admin/users/{id}", admin(adminH.User))
	mux.Handle("/admin/projects", admin(adminH.Projects))
	mux.Handle("/admin/projects/{id}", admin(adminH.Project))
	mux.Handle("/admin/system-metrics", admin(adminH.SystemMetrics))
	mux.Handle("/admin/logs", admin(adminH.Logs))

	if deps.Files != nil {
		mux.Handle(storage.FilesPrefix, deps.Files)
	}
}

// Guard wraps handlers that require an authenticated caller.
type Guard interface {
	RequireUser(next http.Handler) http.Handler
	RequireAdmin(next http.Handler) http.Handler
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Database Pinger
	Guard    Guard
	NowFunc  func() time.Time

	Users    UserStore
	Sessions SessionManager

	Projects ProjectStore
	BVHFiles BVHStore
	Keys     KeyLister
	Storage  storage.AssetStorage
	// Files serves locally stored assets. Nil when assets live in object storage.
	Files http.Handler

	Processor      VideoProcessor
	MaxUploadBytes int64
	UploadTempDir  string

	Avatars  AvatarService
	Retarget RetargetService
	Admin    AdminService

	AuthLimiter   RateLimiter
	UploadLimiter RateLimiter
}
