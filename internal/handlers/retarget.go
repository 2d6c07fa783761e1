package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/motionlab/backend/internal/auth"
	"github.com/motionlab/backend/internal/logging"
	"github.com/motionlab/backend/internal/models"
	"github.com/motionlab/backend/internal/retarget"
	"github.com/motionlab/backend/internal/validate"
)

// RetargetHandler applies a project's animation to one of the caller's avatars.
type RetargetHandler struct {
	Retarget RetargetService
	URLs     AssetURLs
	Limiter  RateLimiter
}

type createRetargetRequest struct {
	ProjectID   string `json:"projectId"`
	AvatarID    string `json:"avatarId"`
	BVHFilename string `json:"bvhFilename"`
}

type retargetedView struct {
	models.RetargetedAvatar
	URL string `json:"url,omitempty"`
}

// Create handles POST /project/create-retargeted-avatar.
func (h RetargetHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	ctx := logging.WithService(r.Context(), logging.ServiceProcessor)
	logger := logging.FromContext(ctx)
	principal, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		respondMessage(ctx, w, http.StatusUnauthorized, "Authentication required")
		return
	}
	if throttled(w, r, h.Limiter, "retarget", "") {
		return
	}

	var req createRetargetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondMessage(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	errs := validate.Errors{}
	if strings.TrimSpace(req.ProjectID) == "" {
		errs["projectId"] = "Missing projectId parameter"
	}
	if strings.TrimSpace(req.AvatarID) == "" {
		errs["avatarId"] = "Missing avatarId parameter"
	}
	if strings.TrimSpace(req.BVHFilename) == "" {
		errs["bvhFilename"] = "Missing bvhFilename parameter"
	}
	if !errs.OK() {
		respondInvalid(ctx, w, errs)
		return
	}

	ra, err := h.Retarget.Create(ctx, retarget.Request{
		UserID:      principal.UserID,
		ProjectID:   strings.TrimSpace(req.ProjectID),
		AvatarID:    strings.TrimSpace(req.AvatarID),
		BVHFilename: strings.TrimSpace(req.BVHFilename),
	})
	if err != nil {
		switch {
		case errors.Is(err, retarget.ErrProjectNotFound):
			respondMessage(ctx, w, http.StatusNotFound, "Project not found")
		case errors.Is(err, retarget.ErrAvatarNotFound):
			respondMessage(ctx, w, http.StatusNotFound, "Avatar not found")
		case errors.Is(err, retarget.ErrBVHNotFound):
			respondMessage(ctx, w, http.StatusNotFound, "BVH file not found")
		case errors.Is(err, retarget.ErrRetargeterUnavailable):
			logger.Error("retargeter unavailable", "error", err)
			respondMessage(ctx, w, http.StatusServiceUnavailable, "Failed to create retargeted avatar")
		default:
			logger.Error("retarget failed", "projectId", req.ProjectID, "avatarId", req.AvatarID, "error", err)
			respondMessage(ctx, w, http.StatusInternalServerError, "Failed to create retargeted avatar")
		}
		return
	}

	respondData(ctx, w, http.StatusCreated, h.view(r, ra))
}

// List handles GET /project/retargeted-avatars?projectId=. Expired entries are omitted.
func (h RetargetHandler) List(w http.ResponseWriter, r *http.Request) {
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

	projectID := strings.TrimSpace(r.URL.Query().Get("projectId"))
	if projectID == "" {
		respondMessage(ctx, w, http.StatusBadRequest, "projectId is required")
		return
	}

	list, err := h.Retarget.List(ctx, principal.UserID, projectID)
	if err != nil {
		if errors.Is(err, retarget.ErrProjectNotFound) {
			respondMessage(ctx, w, http.StatusNotFound, "Project not found")
			return
		}
		logging.FromContext(ctx).Error("list retargeted avatars failed", "projectId", projectID, "error", err)
		respondMessage(ctx, w, http.StatusInternalServerError, "Error fetching retargeted avatars")
		return
	}

	views := make([]retargetedView, 0, len(list))
	for _, ra := range list {
		views = append(views, h.view(r, ra))
	}
	respondData(ctx, w, http.StatusOK, views)
}

// Delete handles DELETE /project/retargeted-avatar?avatarId=.
func (h RetargetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}

	ctx := r.Context()
	principal, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		respondMessage(ctx, w, http.StatusUnauthorized, "Authentication required")
		return
	}

	id := strings.TrimSpace(r.URL.Query().Get("avatarId"))
	if id == "" {
		respondMessage(ctx, w, http.StatusBadRequest, "Missing avatarId parameter")
		return
	}

	if err := h.Retarget.Delete(ctx, principal.UserID, id); err != nil {
		if errors.Is(err, retarget.ErrNotFound) {
			respondMessage(ctx, w, http.StatusNotFound, "Avatar not found")
			return
		}
		logging.FromContext(ctx).Error("delete retargeted avatar failed", "id", id, "error", err)
		respondMessage(ctx, w, http.StatusInternalServerError, "Error deleting retargeted avatar")
		return
	}

	respondMessage(ctx, w, http.StatusOK, "Retargeted avatar deleted successfully")
}

func (h RetargetHandler) view(r *http.Request, ra models.RetargetedAvatar) retargetedView {
	v := retargetedView{RetargetedAvatar: ra}
	if h.URLs == nil || ra.StorageKey == "" {
		return v
	}
	if url, err := h.URLs.URL(r.Context(), ra.StorageKey); err == nil {
		v.URL = url
	}
	return v
}
