package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/motionlab/backend/internal/logging"
	"github.com/motionlab/backend/internal/models"
)

type ctxKey string

const principalKey ctxKey = "principal"

// TokenVerifier validates bearer access tokens.
type TokenVerifier interface {
	Verify(token string) (Claims, error)
}

// Principal is the authenticated caller attached to a request.
type Principal struct {
	UserID  string
	Email   string
	IsAdmin bool
}

// WithPrincipal stores the caller on the context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the caller stored by the middleware.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok && p.UserID != ""
}

// Authenticator guards routes behind a bearer token. Users is consulted on every request
// so deleted accounts and revoked admin rights take effect before tokens expire.
type Authenticator struct {
	Tokens TokenVerifier
	Users  UserLookup
}

// RequireUser rejects requests without a valid token for an existing user.
func (a Authenticator) RequireUser(next http.Handler) http.Handler {
	return a.guard(false, next)
}

// RequireAdmin additionally requires the stored account to be an administrator.
func (a Authenticator) RequireAdmin(next http.Handler) http.Handler {
	return a.guard(true, next)
}

func (a Authenticator) guard(admin bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := logging.FromContext(ctx).With("service", logging.ServiceAuth)

		token := BearerToken(r)
		if token == "" {
			deny(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		if a.Tokens == nil {
			logger.Error("token verifier unavailable")
			deny(w, http.StatusInternalServerError, "authentication services unavailable")
			return
		}

		claims, err := a.Tokens.Verify(token)
		if err != nil {
			logger.Warn("rejected bearer token", "error", err)
			deny(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		principal := Principal{UserID: claims.UserID, Email: claims.Email, IsAdmin: claims.IsAdmin}

		if a.Users != nil {
			user, err := a.Users.FindByID(ctx, claims.UserID)
			if err != nil {
				logger.Warn("token user lookup failed", "userId", claims.UserID, "error", err)
				deny(w, http.StatusUnauthorized, "User not found")
				return
			}
			principal = principalFor(user)
		}

		if admin && !principal.IsAdmin {
			logger.Warn("admin access denied", "userId", principal.UserID)
			deny(w, http.StatusForbidden, "Admin access required")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, principal)))
	})
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// IsAuthError reports whether err came from token or session validation.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrRefreshTokenExpired)
}

func principalFor(user models.User) Principal {
	return Principal{UserID: user.ID, Email: user.Email, IsAdmin: user.IsAdmin}
}

func deny(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": message})
}
