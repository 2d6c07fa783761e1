// Package flows drives the multi-step client interactions: uploading a video, signing in and
// saving an avatar exported by the avatar widget.
package flows

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/motionlab/backend/internal/client"
	"github.com/motionlab/backend/internal/session"
	"github.com/motionlab/backend/internal/validate"
)

// Redirect is where the client navigates after a flow succeeds.
type Redirect struct {
	Path  string        `json:"path"`
	State RedirectState `json:"state"`
}

// RedirectState travels with a redirect to the next view.
type RedirectState struct {
	FilenamesList []string `json:"filenames_list,omitempty"`
}

// Outcome is the result of a flow. Redirect is nil on failure.
type Outcome struct {
	Redirect *Redirect
	Message  string
	Errors   validate.Errors
}

// OK reports whether the flow succeeded.
func (o Outcome) OK() bool { return o.Redirect != nil }

// VideoUploader sends videos for processing.
type VideoUploader interface {
	UploadVideo(ctx context.Context, upload client.VideoUpload, progress client.ProgressFunc) client.Response[client.UploadResult]
}

// UploadForm carries the upload page fields. Sensitivities are on the 0-100 slider scale.
type UploadForm struct {
	ProjectName  string
	XSensitivity float64
	YSensitivity float64
	Stationary   bool
	OutputFormat string
	VideoPath    string
}

// UploadFlow validates the form, uploads the video and redirects to the new project.
type UploadFlow struct {
	API VideoUploader
	// Open returns the video and its size. Defaults to reading VideoPath from disk.
	Open func(path string) (io.ReadCloser, int64, error)
}

// Submit runs the upload for userID.
func (f UploadFlow) Submit(ctx context.Context, userID string, form UploadForm, progress client.ProgressFunc) Outcome {
	if strings.TrimSpace(userID) == "" {
		return Outcome{Message: "User ID is not available. Please log in."}
	}
	settings := validate.ProjectSettings{
		ProjectName:  form.ProjectName,
		XSensitivity: form.XSensitivity,
		YSensitivity: form.YSensitivity,
		Stationary:   form.Stationary,
		OutputFormat: form.OutputFormat,
		VideoPath:    form.VideoPath,
	}
	if errs := validate.ValidateProjectSettings(settings, true); !errs.OK() {
		return Outcome{Message: "Please fix the highlighted fields", Errors: errs}
	}

	open := f.Open
	if open == nil {
		open = openFile
	}
	video, size, err := open(form.VideoPath)
	if err != nil {
		return Outcome{Message: fmt.Sprintf("open video: %v", err)}
	}
	defer video.Close()

	resp := f.API.UploadVideo(ctx, client.VideoUpload{
		Video:        video,
		Filename:     form.VideoPath,
		Size:         size,
		ProjectName:  strings.TrimSpace(form.ProjectName),
		UserID:       userID,
		XSensitivity: form.XSensitivity / 100,
		YSensitivity: form.YSensitivity / 100,
		Stationary:   form.Stationary,
		OutputFormat: form.OutputFormat,
	}, progress)
	if !resp.Success {
		return Outcome{Message: resp.Message, Errors: resp.Errors}
	}

	return Outcome{Redirect: &Redirect{
		Path:  "/project/" + url.PathEscape(resp.Data.ProjectID),
		State: RedirectState{FilenamesList: resp.Data.BVHFilenames},
	}}
}

func openFile(path string) (io.ReadCloser, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}

// Authenticator is satisfied by session.UserStore.
type Authenticator interface {
	Login(ctx context.Context, form validate.Login) session.AuthResult
	Signup(ctx context.Context, form validate.Signup) session.AuthResult
}

// Login signs in and returns to the home view.
func Login(ctx context.Context, users Authenticator, form validate.Login) Outcome {
	return authOutcome(users.Login(ctx, form))
}

// Signup registers and returns to the home view.
func Signup(ctx context.Context, users Authenticator, form validate.Signup) Outcome {
	return authOutcome(users.Signup(ctx, form))
}

func authOutcome(res session.AuthResult) Outcome {
	if !res.Success {
		return Outcome{Message: res.Message, Errors: res.Errors}
	}
	return Outcome{Redirect: &Redirect{Path: "/"}}
}

// AvatarCreator records avatars; satisfied by session.AvatarStore.
type AvatarCreator interface {
	CreateAvatar(ctx context.Context, name, exportURL string) client.Response[client.Avatar]
}

// AvatarFlow saves the avatar the widget exported under a user-chosen name.
type AvatarFlow struct {
	Avatars AvatarCreator
}

// Complete validates the name and asks the backend to store the exported GLB.
func (f AvatarFlow) Complete(ctx context.Context, name, exportURL string) Outcome {
	if msg := validate.AvatarName(name); msg != "" {
		return Outcome{Message: msg, Errors: validate.Errors{"avatarName": msg}}
	}
	if strings.TrimSpace(exportURL) == "" {
		return Outcome{Message: "Avatar URL is missing, export the avatar again"}
	}

	resp := f.Avatars.CreateAvatar(ctx, strings.TrimSpace(name), exportURL)
	if !resp.Success {
		msg := resp.Message
		if msg == "" {
			msg = "Unknown error occurred during avatar upload"
		}
		return Outcome{Message: msg, Errors: resp.Errors}
	}
	return Outcome{Redirect: &Redirect{Path: "/profile/avatars"}}
}

// AvatarExportedEvent is the widget event carrying the exported model.
const AvatarExportedEvent = "v1.avatar.exported"

var (
	// ErrNotAvatarExport marks widget messages other than an export.
	ErrNotAvatarExport = errors.New("not an avatar export event")
	// ErrMissingAvatarURL marks an export without a model URL.
	ErrMissingAvatarURL = errors.New("avatar export has no url")
)

type exportMessage struct {
	Source    string `json:"source"`
	EventName string `json:"eventName"`
	Data      struct {
		URL string `json:"url"`
	} `json:"data"`
}

// ParseAvatarExport extracts the GLB URL from a widget postMessage payload or from a bare
// callback payload of the form {"data":{"url":...}}.
func ParseAvatarExport(payload []byte) (string, error) {
	var msg exportMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return "", fmt.Errorf("decode avatar export: %w", err)
	}
	if msg.EventName != "" && msg.EventName != AvatarExportedEvent {
		return "", fmt.Errorf("%w: %s", ErrNotAvatarExport, msg.EventName)
	}

	raw := strings.TrimSpace(msg.Data.URL)
	if raw == "" {
		return "", ErrMissingAvatarURL
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return "", fmt.Errorf("avatar export url %q is not a web address", raw)
	}
	return u.String(), nil
}
