package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/motionlab/backend/internal/models"
)

// ProjectDetail is a project with the names of its BVH files.
type ProjectDetail struct {
	models.Project
	BVHFilenames []string `json:"bvh_filenames"`
}

// BVHLink is one animation with a fetchable URL.
type BVHLink struct {
	Filename string  `json:"filename"`
	URL      string  `json:"url"`
	Frames   int     `json:"frames"`
	Duration float64 `json:"duration"`
}

// RetargetedAvatar is a retargeted GLB with a fetchable URL.
type RetargetedAvatar struct {
	models.RetargetedAvatar
	URL string `json:"url,omitempty"`
}

// RetargetRequest selects the avatar and animation to combine.
type RetargetRequest struct {
	ProjectID   string `json:"projectId"`
	AvatarID    string `json:"avatarId"`
	BVHFilename string `json:"bvhFilename"`
}

func projectQuery(projectID string) url.Values {
	return url.Values{"projectId": {projectID}}
}

// GetProjects lists the caller's projects.
func (c *Client) GetProjects(ctx context.Context) Response[[]models.Project] {
	return call[[]models.Project](ctx, c, http.MethodGet, "/project/get-projects", nil, nil)
}

// GetProject fetches one project.
func (c *Client) GetProject(ctx context.Context, projectID string) Response[ProjectDetail] {
	return call[ProjectDetail](ctx, c, http.MethodGet, "/project/get-project", projectQuery(projectID), nil)
}

// DeleteProject removes a project with its files.
func (c *Client) DeleteProject(ctx context.Context, projectID string) Response[struct{}] {
	return call[struct{}](ctx, c, http.MethodDelete, "/project/delete-project", projectQuery(projectID), nil)
}

// GetBVHFilenames lists the animations of a project.
func (c *Client) GetBVHFilenames(ctx context.Context, projectID string) Response[[]BVHLink] {
	return call[[]BVHLink](ctx, c, http.MethodGet, "/project/get-bvh-filenames", projectQuery(projectID), nil)
}

// CreateRetargetedAvatar applies an animation to an avatar.
func (c *Client) CreateRetargetedAvatar(ctx context.Context, req RetargetRequest) Response[RetargetedAvatar] {
	return call[RetargetedAvatar](ctx, c, http.MethodPost, "/project/create-retargeted-avatar", nil, req)
}

// GetRetargetedAvatars lists the unexpired retargeted avatars of a project.
func (c *Client) GetRetargetedAvatars(ctx context.Context, projectID string) Response[[]RetargetedAvatar] {
	return call[[]RetargetedAvatar](ctx, c, http.MethodGet, "/project/retargeted-avatars", projectQuery(projectID), nil)
}

// DeleteRetargetedAvatar removes a retargeted avatar before it expires.
func (c *Client) DeleteRetargetedAvatar(ctx context.Context, id string) Response[struct{}] {
	return call[struct{}](ctx, c, http.MethodDelete, "/project/retargeted-avatar", url.Values{"avatarId": {id}}, nil)
}
