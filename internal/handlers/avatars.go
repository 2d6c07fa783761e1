package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/motionlab/backend/internal/auth"
	"github.com/motionlab/backend/internal/avatars"
	"github.com/motionlab/backend/internal/logging"
	"github.com/motionlab/backend/internal/models"
	"github.com/motionlab/backend/internal/validate"
)

// AvatarHandler manages the caller's avatars.
type AvatarHandler struct {
	Avatars AvatarService
	URLs    AssetURLs
	Limiter RateLimiter
}

type createAvatarRequest struct {
	AvatarName string `json:"avatarName"`
	AvatarURL  string `json:"avatarUrl"`
}

type avatarView struct {
	models.Avatar
	URL string `json:"url,omitempty"`
}

// Create handles POST /avatar/create-avatar.
func (h AvatarHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)
	principal, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		respondMessage(ctx, w, http.StatusUnauthorized, "Authentication required")
		return
	}
	if throttled(w, r, h.Limiter, "avatar", "") {
		return
	}

	var req createAvatarRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondMessage(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	errs := validate.Errors{}
	if msg := validate.AvatarName(req.AvatarName); msg != "" {
		errs["avatarName"] = msg
	}
	if strings.TrimSpace(req.AvatarURL) == "" {
		errs["avatarUrl"] = "Avatar URL is required"
	}
	if !errs.OK() {
		respondInvalid(ctx, w, errs)
		return
	}

	avatar, err := h.Avatars.Create(ctx, principal.UserID, req.AvatarName, strings.TrimSpace(req.AvatarURL))
	if err != nil {
		switch {
		case errors.Is(err, avatars.ErrDuplicateName):
			respondMessage(ctx, w, http.StatusConflict, "Avatar name already exists")
		case errors.Is(err, avatars.ErrInvalidURL), errors.Is(err, avatars.ErrHostNotAllowed):
			respondMessage(ctx, w, http.StatusBadRequest, "Invalid avatar URL")
		case errors.Is(err, avatars.ErrNotGLB):
			respondMessage(ctx, w, http.StatusBadRequest, "Avatar must be a GLB file")
		case errors.Is(err, avatars.ErrTooLarge):
			respondMessage(ctx, w, http.StatusRequestEntityTooLarge, "Avatar file is too large")
		case errors.Is(err, avatars.ErrDownload):
			logger.Warn("avatar download failed", "error", err)
			respondMessage(ctx, w, http.StatusBadGateway, "Unable to download avatar")
		default:
			logger.Error("create avatar failed", "userId", principal.UserID, "error", err)
			respondMessage(ctx, w, http.StatusInternalServerError, "Error creating avatar")
		}
		return
	}

	logger.Info("avatar created", "avatarId", avatar.ID, "userId", principal.UserID)
	respondData(ctx, w, http.StatusCreated, h.view(r, avatar))
}

// List handles GET /avatar/avatars. No avatars is an empty list, not an error.
func (h AvatarHandler) List(w http.ResponseWriter, r *http.Request) {
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

	list, err := h.Avatars.List(ctx, principal.UserID)
	if err != nil {
		logging.FromContext(ctx).Error("list avatars failed", "userId", principal.UserID, "error", err)
		respondMessage(ctx, w, http.StatusInternalServerError, "Error fetching avatars")
		return
	}

	views := make([]avatarView, 0, len(list))
	for _, a := range list {
		views = append(views, h.view(r, a))
	}
	respondData(ctx, w, http.StatusOK, views)
}

// Avatar handles GET and DELETE /avatar/?avatarId=.
func (h AvatarHandler) Avatar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)
	principal, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		respondMessage(ctx, w, http.StatusUnauthorized, "Authentication required")
		return
	}

	avatarID := strings.TrimSpace(r.URL.Query().Get("avatarId"))
	if avatarID == "" {
		respondMessage(ctx, w, http.StatusBadRequest, "avatarId is required")
		return
	}

	if r.Method == http.MethodDelete {
		if err := h.Avatars.Delete(ctx, principal.UserID, avatarID); err != nil {
			if errors.Is(err, avatars.ErrNotFound) {
				respondMessage(ctx, w, http.StatusNotFound, "Avatar not found")
				return
			}
			logger.Error("delete avatar failed", "avatarId", avatarID, "error", err)
			respondMessage(ctx, w, http.StatusInternalServerError, "Error deleting avatar")
			return
		}
		respondMessage(ctx, w, http.StatusOK, "Avatar deleted successfully")
		return
	}

	avatar, err := h.Avatars.Get(ctx, principal.UserID, avatarID)
	if err != nil {
		if errors.Is(err, avatars.ErrNotFound) {
			respondMessage(ctx, w, http.StatusNotFound, "Avatar not found")
			return
		}
		logger.Error("load avatar failed", "avatarId", avatarID, "error", err)
		respondMessage(ctx, w, http.StatusInternalServerError, "Error fetching avatar")
		return
	}

	respondData(ctx, w, http.StatusOK, h.view(r, avatar))
}

func (h AvatarHandler) view(r *http.Request, avatar models.Avatar) avatarView {
	v := avatarView{Avatar: avatar}
	if h.URLs == nil || avatar.StorageKey == "" {
		return v
	}
	url, err := h.URLs.URL(r.Context(), avatar.StorageKey)
	if err != nil {
		logging.FromContext(r.Context()).Warn("resolve avatar url failed", "avatarId", avatar.ID, "error", err)
		return v
	}
	v.URL = url
	return v
}
