package client

import (
	"context"
	"net/http"

	"github.com/motionlab/backend/internal/models"
	"github.com/motionlab/backend/internal/validate"
)

// AuthResult is returned by signup and login.
type AuthResult struct {
	User models.User `json:"user"`
	models.SessionTokens
}

// Signup registers a new account.
func (c *Client) Signup(ctx context.Context, form validate.Signup) Response[AuthResult] {
	return call[AuthResult](ctx, c, http.MethodPost, "/auth/signup", nil, form)
}

// Login exchanges credentials for tokens.
func (c *Client) Login(ctx context.Context, form validate.Login) Response[AuthResult] {
	return call[AuthResult](ctx, c, http.MethodPost, "/auth/login", nil, form)
}

// Refresh rotates a refresh token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) Response[models.SessionTokens] {
	return call[models.SessionTokens](ctx, c, http.MethodPost, "/auth/refresh", nil, map[string]string{"refresh_token": refreshToken})
}

// Logout revokes a refresh token.
func (c *Client) Logout(ctx context.Context, refreshToken string) Response[struct{}] {
	return call[struct{}](ctx, c, http.MethodPost, "/auth/logout", nil, map[string]string{"refresh_token": refreshToken})
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) Response[models.User] {
	return call[models.User](ctx, c, http.MethodGet, "/auth/me", nil, nil)
}

// RequestPasswordReset asks the backend to start a password reset for email.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) Response[struct{}] {
	return call[struct{}](ctx, c, http.MethodPost, "/auth/request-password-reset", nil, map[string]string{"email": email})
}
