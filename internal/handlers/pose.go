package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/motionlab/backend/internal/auth"
	"github.com/motionlab/backend/internal/logging"
	"github.com/motionlab/backend/internal/models"
	"github.com/motionlab/backend/internal/pose"
	"github.com/motionlab/backend/internal/repositories"
	"github.com/motionlab/backend/internal/validate"
)

const defaultMaxUploadBytes = 500 << 20

// PoseHandler accepts video uploads and turns them into BVH animations.
type PoseHandler struct {
	Users          UserStore
	Projects       ProjectStore
	Processor      VideoProcessor
	Limiter        RateLimiter
	MaxUploadBytes int64
	TempDir        string
	NowFunc        func() time.Time
}

type uploadForm struct {
	ProjectName  string
	XSensitivity string
	YSensitivity string
	Stationary   string
	OutputFormat string
	VideoName    string
	VideoPath    string
}

type processVideoResponse struct {
	BVHFilenames []string `json:"bvh_filenames"`
	ProjectID    string   `json:"projectId"`
}

// ProcessVideo handles POST /pose/process-video. The multipart body carries a `video`
// file plus projectName, xSensitivity and ySensitivity (0-1).
func (h PoseHandler) ProcessVideo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	ctx := logging.WithService(r.Context(), logging.ServiceProcessor)
	ctx, span := logging.StartSpan(ctx, "pose.process_video")
	defer span.End()
	logger := logging.FromContext(ctx)

	principal, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		respondMessage(ctx, w, http.StatusUnauthorized, "Authentication required")
		return
	}
	if throttled(w, r, h.Limiter, "upload", "Too many uploads, try again later") {
		return
	}
	if h.Users == nil || h.Projects == nil || h.Processor == nil {
		logger.Error("upload dependencies unavailable")
		respondMessage(ctx, w, http.StatusInternalServerError, "processing services unavailable")
		return
	}

	if r.ContentLength > h.maxUploadBytes() {
		respondMessage(ctx, w, http.StatusRequestEntityTooLarge, "Video exceeds the upload size limit")
		return
	}

	form, err := h.readUpload(w, r)
	// The processor owns the video once Submit succeeds.
	handedOff := false
	defer func() {
		if !handedOff && form.VideoPath != "" {
			_ = os.Remove(form.VideoPath)
		}
	}()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondMessage(ctx, w, http.StatusRequestEntityTooLarge, "Video exceeds the upload size limit")
			return
		}
		logger.Warn("invalid upload body", "error", err)
		respondMessage(ctx, w, http.StatusBadRequest, "Invalid upload")
		return
	}

	if form.ProjectName == "" || form.XSensitivity == "" || form.YSensitivity == "" || form.VideoPath == "" {
		respondMessage(ctx, w, http.StatusBadRequest, "Missing required fields")
		return
	}

	xSens, xErr := strconv.ParseFloat(form.XSensitivity, 64)
	ySens, yErr := strconv.ParseFloat(form.YSensitivity, 64)
	if xErr != nil || yErr != nil {
		respondInvalid(ctx, w, validate.Errors{"sensitivity": "Sensitivities must be numbers"})
		return
	}

	settings := validate.ProjectSettings{
		ProjectName:  form.ProjectName,
		XSensitivity: xSens * 100,
		YSensitivity: ySens * 100,
		Stationary:   form.Stationary == "true",
		OutputFormat: form.OutputFormat,
		VideoPath:    form.VideoName,
	}
	if errs := validate.ValidateProjectSettings(settings, true); !errs.OK() {
		respondInvalid(ctx, w, errs)
		return
	}

	if _, err := h.Users.FindByID(ctx, principal.UserID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondMessage(ctx, w, http.StatusNotFound, "User not found")
			return
		}
		logger.Error("upload user lookup failed", "userId", principal.UserID, "error", err)
		respondMessage(ctx, w, http.StatusInternalServerError, "Error processing video")
		return
	}

	project := models.Project{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(form.ProjectName),
		UserID:       principal.UserID,
		Status:       models.ProjectStatusProcessing,
		XSensitivity: xSens,
		YSensitivity: ySens,
		CreationDate: h.now(),
	}
	project.Normalize()

	if err := h.Projects.Create(ctx, project); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			respondMessage(ctx, w, http.StatusConflict, "Project name already exists")
			return
		}
		logger.Error("create project failed", "userId", principal.UserID, "error", err)
		respondMessage(ctx, w, http.StatusInternalServerError, "Error processing video")
		return
	}

	results, err := h.Processor.Submit(ctx, pose.Job{
		Project:   project,
		VideoPath: form.VideoPath,
		Options: pose.Options{
			XSensitivity: xSens,
			YSensitivity: ySens,
			Stationary:   settings.Stationary,
			OutputFormat: form.OutputFormat,
		},
	})
	if err != nil {
		logger.Error("queue video failed", "projectId", project.ID, "error", err)
		if markErr := h.Projects.MarkFailed(ctx, project.ID, "processing queue unavailable", h.now()); markErr != nil {
			logger.Error("mark project failed", "projectId", project.ID, "error", markErr)
		}
		respondMessage(ctx, w, http.StatusServiceUnavailable, "Processing queue unavailable, try again later")
		return
	}
	handedOff = true
	logger.Info("video queued", "projectId", project.ID, "userId", principal.UserID)

	select {
	case <-ctx.Done():
		logger.Warn("client left before processing finished", "projectId", project.ID)
		return
	case res := <-results:
		if res.Err != nil {
			if errors.Is(res.Err, pose.ErrNoMotion) {
				respondMessage(ctx, w, http.StatusUnprocessableEntity, "No motion detected in video")
				return
			}
			respondMessage(ctx, w, http.StatusInternalServerError, "Error processing video")
			return
		}
		respondData(ctx, w, http.StatusOK, processVideoResponse{BVHFilenames: res.Filenames, ProjectID: project.ID})
	}
}

// readUpload streams the multipart body, writing the video part to a temp file.
func (h PoseHandler) readUpload(w http.ResponseWriter, r *http.Request) (uploadForm, error) {
	var form uploadForm

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes())

	reader, err := r.MultipartReader()
	if err != nil {
		return form, err
	}

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return form, nil
		}
		if err != nil {
			return form, err
		}

		if part.FormName() == "video" {
			if form.VideoPath != "" {
				part.Close()
				return form, errors.New("multiple video parts")
			}
			form.VideoName = part.FileName()
			form.VideoPath, err = h.spool(part)
			part.Close()
			if err != nil {
				return form, err
			}
			continue
		}

		value, err := io.ReadAll(io.LimitReader(part, 1<<10))
		part.Close()
		if err != nil {
			return form, err
		}
		v := strings.TrimSpace(string(value))
		switch part.FormName() {
		case "projectName":
			form.ProjectName = v
		case "xSensitivity":
			form.XSensitivity = v
		case "ySensitivity":
			form.YSensitivity = v
		case "stationary":
			form.Stationary = strings.ToLower(v)
		case "outputFormat":
			form.OutputFormat = strings.ToLower(v)
		}
	}
}

func (h PoseHandler) spool(part *multipart.Part) (string, error) {
	file, err := os.CreateTemp(h.TempDir, "motionlab-upload-*.mp4")
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	path := file.Name()

	_, copyErr := io.Copy(file, part)
	closeErr := file.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}

func (h PoseHandler) maxUploadBytes() int64 {
	if h.MaxUploadBytes <= 0 {
		return defaultMaxUploadBytes
	}
	return h.MaxUploadBytes
}

func (h PoseHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
