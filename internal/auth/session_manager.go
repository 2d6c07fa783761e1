package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/motionlab/backend/internal/models"
)

var (
	// ErrSessionNotFound indicates the provided refresh token does not map to an active session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrRefreshTokenExpired indicates the refresh token has expired and cannot be used.
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	// ErrInvalidToken indicates an access token failed signature or claim validation.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired indicates an access token is past its expiry.
	ErrTokenExpired = errors.New("token expired")
)

// SessionStore persists issued refresh tokens.
type SessionStore interface {
	Save(ctx context.Context, session Session) error
	Find(ctx context.Context, refreshToken string) (Session, error)
	Delete(ctx context.Context, refreshToken string) error
	// DeleteForUser signs userID out of every device and reports how many sessions went.
	DeleteForUser(ctx context.Context, userID string) (int64, error)
}

// UserLookup resolves the current state of a user account.
type UserLookup interface {
	FindByID(ctx context.Context, id string) (models.User, error)
}

// Session represents a refresh token issued to a user.
type Session struct {
	RefreshToken string    `json:"refresh_token"`
	UserID       string    `json:"user_id"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Claims are carried by signed access tokens.
type Claims struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email,omitempty"`
	IsAdmin bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// Manager signs access tokens and manages the lifecycle of refresh sessions.
type Manager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration

	store SessionStore
	users UserLookup
	now   func() time.Time
}

// NewManager constructs a Manager signing HS256 access tokens with secret.
func NewManager(secret string, accessTTL, refreshTTL time.Duration, store SessionStore) *Manager {
	if store == nil {
		panic("auth: session store must not be nil")
	}
	if secret == "" {
		panic("auth: signing secret must not be empty")
	}
	return &Manager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		store:      store,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithUsers lets Refresh reload the user so renewed tokens carry current claims.
func (m *Manager) WithUsers(users UserLookup) *Manager {
	m.users = users
	return m
}

// WithNowFunc allows tests to override the time source.
func (m *Manager) WithNowFunc(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Issue creates a signed access token and a stored refresh token for user.
func (m *Manager) Issue(ctx context.Context, user models.User) (models.SessionTokens, error) {
	if user.ID == "" {
		return models.SessionTokens{}, errors.New("user id must be provided")
	}

	now := m.now()
	accessExpires := now.Add(m.accessTTL)

	claims := Claims{
		UserID:  user.ID,
		Email:   user.Email,
		IsAdmin: user.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(accessExpires),
		},
	}
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return models.SessionTokens{}, fmt.Errorf("sign access token: %w", err)
	}

	refreshToken, err := randomToken()
	if err != nil {
		return models.SessionTokens{}, err
	}

	tokens := models.SessionTokens{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpires,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: now.Add(m.refreshTTL),
	}

	if err := m.store.Save(ctx, Session{
		RefreshToken: refreshToken,
		UserID:       user.ID,
		ExpiresAt:    tokens.RefreshExpiresAt,
	}); err != nil {
		return models.SessionTokens{}, err
	}

	return tokens, nil
}

// Verify validates an access token and returns its claims.
func (m *Manager) Verify(token string) (Claims, error) {
	if token == "" {
		return Claims{}, ErrInvalidToken
	}

	var claims Claims
	parser := jwt.Parser{ValidMethods: []string{jwt.SigningMethodHS256.Alg()}}
	parsed, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		var vErr *jwt.ValidationError
		if errors.As(err, &vErr) && vErr.Errors&jwt.ValidationErrorExpired != 0 {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, ErrInvalidToken
	}
	if !parsed.Valid || claims.UserID == "" {
		return Claims{}, ErrInvalidToken
	}
	if claims.ExpiresAt != nil && !m.now().Before(claims.ExpiresAt.Time) {
		return Claims{}, ErrTokenExpired
	}

	return claims, nil
}

// Refresh exchanges a refresh token for a new session token pair.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error) {
	if refreshToken == "" {
		return models.SessionTokens{}, ErrSessionNotFound
	}

	session, err := m.store.Find(ctx, refreshToken)
	if err != nil {
		return models.SessionTokens{}, err
	}

	if m.now().After(session.ExpiresAt) {
		_ = m.store.Delete(ctx, refreshToken)
		return models.SessionTokens{}, ErrRefreshTokenExpired
	}

	if err := m.store.Delete(ctx, refreshToken); err != nil {
		return models.SessionTokens{}, err
	}

	user := models.User{ID: session.UserID}
	if m.users != nil {
		user, err = m.users.FindByID(ctx, session.UserID)
		if err != nil {
			return models.SessionTokens{}, fmt.Errorf("reload session user: %w", err)
		}
	}

	return m.Issue(ctx, user)
}

// Revoke removes the provided refresh token from the active session store.
func (m *Manager) Revoke(ctx context.Context, refreshToken string) {
	if refreshToken == "" {
		return
	}
	_ = m.store.Delete(ctx, refreshToken)
}

// RevokeUser drops every refresh session of userID. Access tokens already issued stay
// valid until they expire, but the middleware re-reads the account on each request.
func (m *Manager) RevokeUser(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, nil
	}
	n, err := m.store.DeleteForUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}
	return n, nil
}

func randomToken() (string, error) {
	const size = 32
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// RandomSecret returns a random signing secret for development runs without one configured.
func RandomSecret() string {
	secret, err := randomToken()
	if err != nil {
		panic(fmt.Sprintf("auth: generate secret: %v", err))
	}
	return secret
}
