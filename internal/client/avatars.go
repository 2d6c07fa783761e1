package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/motionlab/backend/internal/models"
)

// Avatar is a stored avatar with a fetchable GLB URL.
type Avatar struct {
	models.Avatar
	URL string `json:"url,omitempty"`
}

// CreateAvatar asks the backend to download the GLB exported by the avatar widget.
func (c *Client) CreateAvatar(ctx context.Context, name, exportURL string) Response[Avatar] {
	body := map[string]string{"avatarName": name, "avatarUrl": exportURL}
	return call[Avatar](ctx, c, http.MethodPost, "/avatar/create-avatar", nil, body)
}

// GetAvatars lists the caller's avatars.
func (c *Client) GetAvatars(ctx context.Context) Response[[]Avatar] {
	return call[[]Avatar](ctx, c, http.MethodGet, "/avatar/avatars", nil, nil)
}

// GetAvatar fetches one avatar.
func (c *Client) GetAvatar(ctx context.Context, avatarID string) Response[Avatar] {
	return call[Avatar](ctx, c, http.MethodGet, "/avatar/", url.Values{"avatarId": {avatarID}}, nil)
}

// DeleteAvatar removes an avatar.
func (c *Client) DeleteAvatar(ctx context.Context, avatarID string) Response[struct{}] {
	return call[struct{}](ctx, c, http.MethodDelete, "/avatar/", url.Values{"avatarId": {avatarID}}, nil)
}
