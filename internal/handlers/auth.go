package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/motionlab/backend/internal/auth"
	"github.com/motionlab/backend/internal/logging"
	"github.com/motionlab/backend/internal/models"
	"github.com/motionlab/backend/internal/repositories"
	"github.com/motionlab/backend/internal/validate"
)

// AuthHandler implements user authentication endpoints.
type AuthHandler struct {
	Users    UserStore
	Sessions SessionManager
	Limiter  RateLimiter
	NowFunc  func() time.Time
}

// authPayload is returned by signup, login and refresh.
type authPayload struct {
	User models.User `json:"user"`
	models.SessionTokens
}

// Login handles POST /auth/login requests.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	ctx := logging.WithService(r.Context(), logging.ServiceAuth)
	logger := logging.FromContext(ctx)

	if throttled(w, r, h.Limiter, "login", "Too many login attempts, try again later") {
		return
	}
	if h.Users == nil || h.Sessions == nil {
		logger.Error("authentication dependencies unavailable", "hasUsers", h.Users != nil, "hasSessions", h.Sessions != nil)
		respondMessage(ctx, w, http.StatusInternalServerError, "authentication services unavailable")
		return
	}

	var req validate.Login
	if err := decodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid login payload", "error", err)
		respondMessage(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if errs := validate.ValidateLogin(req); !errs.OK() {
		respondInvalid(ctx, w, errs)
		return
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))
	user, err := h.Users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		logger.Error("login user lookup failed", "email", email, "error", err)
		respondMessage(ctx, w, http.StatusInternalServerError, "unable to verify credentials")
		return
	}
	if err != nil || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		logger.Warn("login rejected", "email", email)
		respondJSON(ctx, w, http.StatusUnauthorized, envelope{
			Message: "Invalid Credentials",
			Errors:  validate.Errors{"password": "Invalid Credentials"},
		})
		return
	}

	tokens, err := h.Sessions.Issue(ctx, user)
	if err != nil {
		logger.Error("failed to issue session", "error", err, "userId", user.ID)
		respondMessage(ctx, w, http.StatusInternalServerError, "failed to create session")
		return
	}

	logger.Info("user logged in", "userId", user.ID)
	respondData(ctx, w, http.StatusOK, authPayload{User: user, SessionTokens: tokens})
}

// SignUp handles POST /auth/signup requests.
func (h AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	ctx := logging.WithService(r.Context(), logging.ServiceAuth)
	logger := logging.FromContext(ctx)

	if throttled(w, r, h.Limiter, "signup", "Too many signup attempts, try again later") {
		return
	}
	if h.Users == nil || h.Sessions == nil {
		logger.Error("authentication dependencies unavailable", "hasUsers", h.Users != nil, "hasSessions", h.Sessions != nil)
		respondMessage(ctx, w, http.StatusInternalServerError, "authentication services unavailable")
		return
	}

	var req validate.Signup
	if err := decodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid signup payload", "error", err)
		respondMessage(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if errs := validate.ValidateSignup(req); !errs.OK() {
		respondInvalid(ctx, w, errs)
		return
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))
	emailTaken := envelope{Message: "Email already in use", Errors: validate.Errors{"email": "Email already in use"}}

	if _, err := h.Users.FindByEmail(ctx, email); err == nil {
		logger.Warn("signup existing account", "email", email)
		respondJSON(ctx, w, http.StatusConflict, emailTaken)
		return
	} else if !errors.Is(err, repositories.ErrNotFound) {
		logger.Error("signup user lookup failed", "error", err, "email", email)
		respondMessage(ctx, w, http.StatusInternalServerError, "unable to verify existing accounts")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("signup failed to hash password", "error", err)
		respondMessage(ctx, w, http.StatusInternalServerError, "failed to secure password")
		return
	}

	now := h.now()
	user := models.User{
		ID:        uuid.NewString(),
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Email:     email,
		Password:  string(hashed),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			logger.Warn("signup conflict", "email", email)
			respondJSON(ctx, w, http.StatusConflict, emailTaken)
			return
		}
		logger.Error("signup failed to create user", "error", err, "email", email)
		respondMessage(ctx, w, http.StatusInternalServerError, "Error creating user")
		return
	}

	tokens, err := h.Sessions.Issue(ctx, user)
	if err != nil {
		logger.Error("signup failed to issue session", "error", err, "userId", user.ID)
		respondMessage(ctx, w, http.StatusInternalServerError, "failed to create session")
		return
	}

	logger.Info("user registered", "userId", user.ID)
	respondData(ctx, w, http.StatusCreated, authPayload{User: user, SessionTokens: tokens})
}

// Refresh exchanges a refresh token for a new session.
func (h AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	ctx := logging.WithService(r.Context(), logging.ServiceAuth)
	logger := logging.FromContext(ctx)

	if h.Sessions == nil {
		logger.Error("session manager unavailable")
		respondMessage(ctx, w, http.StatusInternalServerError, "session service unavailable")
		return
	}

	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid refresh payload", "error", err)
		respondMessage(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if req.RefreshToken == "" {
		respondMessage(ctx, w, http.StatusBadRequest, "refresh token is required")
		return
	}

	tokens, err := h.Sessions.Refresh(ctx, req.RefreshToken)
	if err != nil {
		status := http.StatusInternalServerError
		if auth.IsAuthError(err) || errors.Is(err, repositories.ErrNotFound) {
			status = http.StatusUnauthorized
		}
		logger.Warn("refresh failed", "error", err, "status", status)
		respondMessage(ctx, w, status, "unable to refresh session")
		return
	}

	respondData(ctx, w, http.StatusOK, tokens)
}

// Logout revokes the caller's refresh token. It succeeds even for unknown tokens.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	ctx := logging.WithService(r.Context(), logging.ServiceAuth)

	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondMessage(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if h.Sessions != nil {
		h.Sessions.Revoke(ctx, strings.TrimSpace(req.RefreshToken))
	}

	logging.FromContext(ctx).Info("user logged out")
	respondMessage(ctx, w, http.StatusOK, "Logged out")
}

// Me returns the authenticated user.
func (h AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	ctx := r.Context()
	principal, ok := auth.PrincipalFromContext(ctx)
	if !ok || h.Users == nil {
		respondMessage(ctx, w, http.StatusUnauthorized, "Authentication required")
		return
	}

	user, err := h.Users.FindByID(ctx, principal.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondMessage(ctx, w, http.StatusNotFound, "User not found")
			return
		}
		respondMessage(ctx, w, http.StatusInternalServerError, "unable to load user")
		return
	}

	respondData(ctx, w, http.StatusOK, user)
}

// RequestPasswordReset handles POST /auth/request-password-reset requests. The response
// never reveals whether the account exists.
func (h AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	ctx := logging.WithService(r.Context(), logging.ServiceAuth)
	logger := logging.FromContext(ctx)

	if throttled(w, r, h.Limiter, "password-reset", "") {
		return
	}
	if h.Users == nil {
		logger.Error("user store unavailable")
		respondMessage(ctx, w, http.StatusInternalServerError, "authentication services unavailable")
		return
	}

	var req passwordResetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid password reset payload", "error", err)
		respondMessage(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if errs := validate.ValidatePasswordReset(req.Email); !errs.OK() {
		respondInvalid(ctx, w, errs)
		return
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))
	user, err := h.Users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		logger.Warn("password reset requested", "userId", user.ID)
	case !errors.Is(err, repositories.ErrNotFound):
		logger.Error("password reset lookup failed", "error", err, "email", email)
		respondMessage(ctx, w, http.StatusInternalServerError, "unable to process password reset")
		return
	}

	respondMessage(ctx, w, http.StatusAccepted, "If an account exists for that email, password reset instructions have been sent.")
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type passwordResetRequest struct {
	Email string `json:"email"`
}

func (h AuthHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
