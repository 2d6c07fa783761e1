package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/motionlab/backend/internal/auth"
	"github.com/motionlab/backend/internal/logging"
	"github.com/motionlab/backend/internal/models"
	"github.com/motionlab/backend/internal/repositories"
	"github.com/motionlab/backend/internal/storage"
)

// ProjectHandler serves a user's projects and their generated animations.
type ProjectHandler struct {
	Projects ProjectStore
	BVHFiles BVHStore
	Keys     KeyLister
	Storage  storage.AssetStorage
}

type projectDetail struct {
	models.Project
	BVHFilenames []string `json:"bvh_filenames"`
}

type bvhLink struct {
	Filename string  `json:"filename"`
	URL      string  `json:"url"`
	Frames   int     `json:"frames"`
	Duration float64 `json:"duration"`
}

// List handles GET /project/get-projects.
func (h ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	ctx := r.Context()
	principal, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		respondMessage(ctx, w, http.StatusUnauthorized, "Authentication required")
		return
	}

	projects, err := h.Projects.ListByUser(ctx, principal.UserID)
	if err != nil {
		logging.FromContext(ctx).Error("list projects failed", "userId", principal.UserID, "error", err)
		respondMessage(ctx, w, http.StatusInternalServerError, "Error fetching projects")
		return
	}
	if projects == nil {
		projects = []models.Project{}
	}

	respondData(ctx, w, http.StatusOK, projects)
}

// Get handles GET /project/get-project?projectId=.
func (h ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	ctx := r.Context()
	project, ok := h.ownedProject(w, r)
	if !ok {
		return
	}

	files, err := h.BVHFiles.ListByProject(ctx, project.ID)
	if err != nil {
		logging.FromContext(ctx).Error("list bvh files failed", "projectId", project.ID, "error", err)
		respondMessage(ctx, w, http.StatusInternalServerError, "Error fetching project")
		return
	}

	detail := projectDetail{Project: project, BVHFilenames: make([]string, 0, len(files))}
	for _, f := range files {
		detail.BVHFilenames = append(detail.BVHFilenames, f.Filename)
	}

	respondData(ctx, w, http.StatusOK, detail)
}

// BVHFilenames handles GET /project/get-bvh-filenames?projectId=. Each entry carries a
// URL the viewer can load.
func (h ProjectHandler) BVHFilenames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)
	project, ok := h.ownedProject(w, r)
	if !ok {
		return
	}

	files, err := h.BVHFiles.ListByProject(ctx, project.ID)
	if err != nil {
		logger.Error("list bvh files failed", "projectId", project.ID, "error", err)
		respondMessage(ctx, w, http.StatusInternalServerError, "Error fetching BVH files")
		return
	}

	links := make([]bvhLink, 0, len(files))
	for _, f := range files {
		url, err := h.Storage.URL(ctx, f.StorageKey)
		if err != nil {
			logger.Error("resolve bvh url failed", "key", f.StorageKey, "error", err)
			respondMessage(ctx, w, http.StatusInternalServerError, "Error fetching BVH files")
			return
		}
		links = append(links, bvhLink{Filename: f.Filename, URL: url, Frames: f.Frames, Duration: f.Duration})
	}

	respondData(ctx, w, http.StatusOK, links)
}

// Delete handles DELETE /project/delete-project?projectId=. Stored animations and
// retargeted avatars are removed with the project.
func (h ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)
	project, ok := h.ownedProject(w, r)
	if !ok {
		return
	}

	keys, err := h.Keys.KeysForProject(ctx, project.ID)
	if err != nil {
		logger.Error("list project objects failed", "projectId", project.ID, "error", err)
		respondMessage(ctx, w, http.StatusInternalServerError, "Error deleting project")
		return
	}

	if err := h.Projects.Delete(ctx, project.ID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondMessage(ctx, w, http.StatusNotFound, "Project not found")
			return
		}
		logger.Error("delete project failed", "projectId", project.ID, "error", err)
		respondMessage(ctx, w, http.StatusInternalServerError, "Error deleting project")
		return
	}

	if err := storage.DeleteAll(ctx, h.Storage, keys); err != nil {
		logger.Warn("project objects left in storage", "projectId", project.ID, "error", err)
	}

	logger.Info("project deleted", "projectId", project.ID)
	respondMessage(ctx, w, http.StatusOK, "Project deleted successfully")
}

// ownedProject loads the projectId query parameter for the caller, writing the error
// response itself when it returns false.
func (h ProjectHandler) ownedProject(w http.ResponseWriter, r *http.Request) (models.Project, bool) {
	ctx := r.Context()

	principal, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		respondMessage(ctx, w, http.StatusUnauthorized, "Authentication required")
		return models.Project{}, false
	}

	projectID := strings.TrimSpace(r.URL.Query().Get("projectId"))
	if projectID == "" {
		respondMessage(ctx, w, http.StatusBadRequest, "projectId is required")
		return models.Project{}, false
	}

	project, err := h.Projects.FindForUser(ctx, projectID, principal.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondMessage(ctx, w, http.StatusNotFound, "Project not found")
			return models.Project{}, false
		}
		logging.FromContext(ctx).Error("load project failed", "projectId", projectID, "error", err)
		respondMessage(ctx, w, http.StatusInternalServerError, "Error fetching project")
		return models.Project{}, false
	}

	return project, true
}
