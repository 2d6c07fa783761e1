package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/motionlab/backend/internal/admin"
	"github.com/motionlab/backend/internal/auth"
	"github.com/motionlab/backend/internal/logging"
	"github.com/motionlab/backend/internal/models"
)

// AdminHandler serves the admin dashboard. Routes are wrapped in RequireAdmin.
type AdminHandler struct {
	Admin AdminService
}

// DashboardStats handles GET /admin/dashboard-stats.
func (h AdminHandler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	ctx := r.Context()
	stats, err := h.Admin.DashboardStats(ctx)
	if err != nil {
		logging.FromContext(ctx).Error("dashboard stats failed", "error", err)
		respondMessage(ctx, w, http.StatusInternalServerError, "Error fetching dashboard stats")
		return
	}
	respondData(ctx, w, http.StatusOK, stats)
}

// RecentActivity handles GET /admin/activity/recent?limit=.
func (h AdminHandler) RecentActivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	ctx := r.Context()
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	events, err := h.Admin.RecentActivity(ctx, limit)
	if err != nil {
		logging.FromContext(ctx).Error("recent activity failed", "error", err)
		respondMessage(ctx, w, http.StatusInternalServerError, "Error fetching recent activity")
		return
	}
	if events == nil {
		events = []models.ActivityEvent{}
	}
	respondData(ctx, w, http.StatusOK, events)
}

// ProcessingQueue handles GET /admin/processing-queue?limit=.
func (h AdminHandler) ProcessingQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	ctx := r.Context()
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	items, err := h.Admin.ProcessingQueue(ctx, limit)
	if err != nil {
		logging.FromContext(ctx).Error("processing queue failed", "error", err)
		respondMessage(ctx, w, http.StatusInternalServerError, "Error fetching processing queue")
		return
	}
	if items == nil {
		items = []models.QueueItem{}
	}
	respondData(ctx, w, http.StatusOK, items)
}

// Users handles GET /admin/users.
func (h AdminHandler) Users(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	ctx := r.Context()
	users, err := h.Admin.ListUsers(ctx)
	if err != nil {
		logging.FromContext(ctx).Error("list users failed", "error", err)
		respondMessage(ctx, w, http.StatusInternalServerError, "Error fetching users")
		return
	}
	if users == nil {
		users = []models.UserSummary{}
	}
	respondData(ctx, w, http.StatusOK, users)
}

// User handles GET, PUT and DELETE /admin/users/{id}.
func (h AdminHandler) User(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)
	id := strings.TrimSpace(r.PathValue("id"))

	switch r.Method {
	case http.MethodGet:
		user, err := h.Admin.GetUser(ctx, id)
		if err != nil {
			h.userError(w, r, err)
			return
		}
		respondData(ctx, w, http.StatusOK, user)

	case http.MethodPut:
		var update models.UserUpdate
		if err := decodeJSON(w, r, &update); err != nil {
			respondMessage(ctx, w, http.StatusBadRequest, "invalid request body")
			return
		}
		if principal, ok := auth.PrincipalFromContext(ctx); ok && principal.UserID == id && update.IsAdmin != nil && !*update.IsAdmin {
			respondMessage(ctx, w, http.StatusBadRequest, "You cannot remove your own admin rights")
			return
		}
		user, err := h.Admin.UpdateUser(ctx, id, update)
		if err != nil {
			h.userError(w, r, err)
			return
		}
		logger.Info("user updated by admin", "userId", id)
		respondData(ctx, w, http.StatusOK, user)

	case http.MethodDelete:
		if principal, ok := auth.PrincipalFromContext(ctx); ok && principal.UserID == id {
			respondMessage(ctx, w, http.StatusBadRequest, "You cannot delete your own account")
			return
		}
		if err := h.Admin.DeleteUser(ctx, id); err != nil {
			h.userError(w, r, err)
			return
		}
		logger.Info("user deleted by admin", "userId", id)
		respondMessage(ctx, w, http.StatusOK, "User deleted successfully")

	default:
		methodNotAllowed(w)
	}
}

func (h AdminHandler) userError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()

	var invalid *admin.ValidationError
	switch {
	case errors.As(err, &invalid):
		respondInvalid(ctx, w, invalid.Fields)
	case errors.Is(err, admin.ErrUserNotFound):
		respondMessage(ctx, w, http.StatusNotFound, "User not found")
	case errors.Is(err, admin.ErrEmailTaken):
		respondJSON(ctx, w, http.StatusConflict, envelope{
			Message: "Email already in use",
			Errors:  map[string]string{"email": "Email already in use"},
		})
	default:
		logging.FromContext(ctx).Error("admin user operation failed", "method", r.Method, "error", err)
		respondMessage(ctx, w, http.StatusInternalServerError, "Error processing user request")
	}
}

// Projects handles GET /admin/projects.
func (h AdminHandler) Projects(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	ctx := r.Context()
	projects, err := h.Admin.ListProjects(ctx)
	if err != nil {
		logging.FromContext(ctx).Error("list projects failed", "error", err)
		respondMessage(ctx, w, http.StatusInternalServerError, "Error fetching projects")
		return
	}
	if projects == nil {
		projects = []models.AdminProject{}
	}
	respondData(ctx, w, http.StatusOK, projects)
}

// Project handles GET and DELETE /admin/projects/{id}.
func (h AdminHandler) Project(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := strings.TrimSpace(r.PathValue("id"))

	var err error
	switch r.Method {
	case http.MethodGet:
		var project models.AdminProject
		if project, err = h.Admin.GetProject(ctx, id); err == nil {
			respondData(ctx, w, http.StatusOK, project)
			return
		}
	case http.MethodDelete:
		if err = h.Admin.DeleteProject(ctx, id); err == nil {
			logging.FromContext(ctx).Info("project deleted by admin", "projectId", id)
			respondMessage(ctx, w, http.StatusOK, "Project deleted successfully")
			return
		}
	default:
		methodNotAllowed(w)
		return
	}

	if errors.Is(err, admin.ErrProjectNotFound) {
		respondMessage(ctx, w, http.StatusNotFound, "Project not found")
		return
	}
	logging.FromContext(ctx).Error("admin project operation failed", "method", r.Method, "projectId", id, "error", err)
	respondMessage(ctx, w, http.StatusInternalServerError, "Error processing project request")
}

// SystemMetrics handles GET /admin/system-metrics?timeRange=day|week|month.
func (h AdminHandler) SystemMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	ctx := r.Context()
	metrics, err := h.Admin.SystemMetrics(ctx, strings.ToLower(strings.TrimSpace(r.URL.Query().Get("timeRange"))))
	if err != nil {
		if errors.Is(err, admin.ErrInvalidTimeRange) {
			respondMessage(ctx, w, http.StatusBadRequest, err.Error())
			return
		}
		logging.FromContext(ctx).Error("system metrics failed", "error", err)
		respondMessage(ctx, w, http.StatusInternalServerError, "Error fetching system metrics")
		return
	}
	respondData(ctx, w, http.StatusOK, metrics)
}

// Logs handles GET /admin/logs?logType=&logLevel=&limit=.
func (h AdminHandler) Logs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	ctx := r.Context()
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	entries := h.Admin.Logs(strings.ToLower(q.Get("logType")), strings.ToLower(q.Get("logLevel")), limit)
	if entries == nil {
		entries = []models.LogEntry{}
	}
	respondData(ctx, w, http.StatusOK, entries)
}

// queryLimit parses an optional positive limit parameter; 0 means the service default.
func queryLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > 1000 {
		respondMessage(r.Context(), w, http.StatusBadRequest, "limit must be between 1 and 1000")
		return 0, false
	}
	return limit, true
}
