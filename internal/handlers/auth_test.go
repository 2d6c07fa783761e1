package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/motionlab/backend/internal/auth"
	"github.com/motionlab/backend/internal/models"
	"github.com/motionlab/backend/internal/repositories"
	"github.com/motionlab/backend/internal/validate"
)

type inMemoryUserStore struct {
	users map[string]models.User
}

func newInMemoryUserStore() *inMemoryUserStore {
	return &inMemoryUserStore{users: make(map[string]models.User)}
}

func (s *inMemoryUserStore) Create(_ context.Context, user models.User) error {
	if _, exists := s.users[user.Email]; exists {
		return repositories.ErrConflict
	}
	s.users[user.Email] = user
	return nil
}

func (s *inMemoryUserStore) FindByEmail(_ context.Context, email string) (models.User, error) {
	user, ok := s.users[email]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return user, nil
}

func (s *inMemoryUserStore) FindByID(_ context.Context, id string) (models.User, error) {
	for _, user := range s.users {
		if user.ID == id {
			return user, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

type denyLimiter struct{}

func (denyLimiter) Allow(string) bool { return false }

type authResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Errors  validate.Errors `json:"errors"`
	Data    struct {
		User         models.User `json:"user"`
		Token        string      `json:"token"`
		RefreshToken string      `json:"refresh_token"`
	} `json:"data"`
}

func newTestManager() *auth.Manager {
	return auth.NewManager("test-secret", time.Minute, time.Hour, auth.NewInMemorySessionStore())
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, payload any) (*httptest.ResponseRecorder, authResponse) {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler(rec, req)

	var resp authResponse
	if err := json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return rec, resp
}

func validSignup() validate.Signup {
	return validate.Signup{
		FirstName:       "Ada",
		LastName:        "Lovelace",
		Email:           "Ada@Example.com",
		Password:        "supersafe",
		ConfirmPassword: "supersafe",
	}
}

func TestAuthHandlerSignUp(t *testing.T) {
	store := newInMemoryUserStore()
	handler := AuthHandler{Users: store, Sessions: newTestManager()}

	rec, resp := postJSON(t, handler.SignUp, "/auth/signup", validSignup())
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d got %d", http.StatusCreated, rec.Code)
	}
	if !resp.Success {
		t.Fatalf("expected success envelope, got %+v", resp)
	}
	if resp.Data.Token == "" || resp.Data.RefreshToken == "" {
		t.Fatalf("expected tokens to be issued, got %+v", resp.Data)
	}
	if resp.Data.User.Email != "ada@example.com" {
		t.Fatalf("expected normalized email, got %q", resp.Data.User.Email)
	}

	stored, err := store.FindByEmail(context.Background(), "ada@example.com")
	if err != nil {
		t.Fatalf("expected user to be stored: %v", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("supersafe")) != nil {
		t.Fatal("stored password is not hashed")
	}
	if bytes.Contains(rec.Body.Bytes(), []byte(stored.Password)) {
		t.Fatal("password hash leaked into response")
	}
}

func TestAuthHandlerSignUpThenLoginWithPaddedPassword(t *testing.T) {
	handler := AuthHandler{Users: newInMemoryUserStore(), Sessions: newTestManager()}

	form := validSignup()
	form.Password = "  supersafe "
	form.ConfirmPassword = form.Password
	if rec, _ := postJSON(t, handler.SignUp, "/auth/signup", form); rec.Code != http.StatusCreated {
		t.Fatalf("expected signup to succeed, got %d", rec.Code)
	}

	rec, resp := postJSON(t, handler.Login, "/auth/login", validate.Login{Email: form.Email, Password: form.Password})
	if rec.Code != http.StatusOK || !resp.Success {
		t.Fatalf("expected login with the signup password to succeed, got %d %+v", rec.Code, resp)
	}

	rec, _ = postJSON(t, handler.Login, "/auth/login", validate.Login{Email: form.Email, Password: "supersafe"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected trimmed password to be rejected, got %d", rec.Code)
	}
}

func TestAuthHandlerSignUpRejectsOverlongPassword(t *testing.T) {
	handler := AuthHandler{Users: newInMemoryUserStore(), Sessions: newTestManager()}

	form := validSignup()
	form.Password = strings.Repeat("p", 80)
	form.ConfirmPassword = form.Password
	rec, resp := postJSON(t, handler.SignUp, "/auth/signup", form)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected bad request got %d", rec.Code)
	}
	if resp.Errors["password"] != "Password must be at most 72 bytes" {
		t.Fatalf("expected password field error, got %+v", resp.Errors)
	}
}

func TestAuthHandlerSignUpValidation(t *testing.T) {
	handler := AuthHandler{Users: newInMemoryUserStore(), Sessions: newTestManager()}

	form := validSignup()
	form.ConfirmPassword = "different1"
	form.FirstName = ""

	rec, resp := postJSON(t, handler.SignUp, "/auth/signup", form)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected bad request got %d", rec.Code)
	}
	if resp.Success {
		t.Fatal("expected failure envelope")
	}
	if resp.Errors["confirmPassword"] != "Passwords do not match" || resp.Errors["firstName"] == "" {
		t.Fatalf("unexpected field errors %+v", resp.Errors)
	}
}

func TestAuthHandlerSignUpDuplicateEmail(t *testing.T) {
	store := newInMemoryUserStore()
	store.users["ada@example.com"] = models.User{ID: "u1", Email: "ada@example.com"}
	handler := AuthHandler{Users: store, Sessions: newTestManager()}

	rec, resp := postJSON(t, handler.SignUp, "/auth/signup", validSignup())
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected conflict got %d", rec.Code)
	}
	if resp.Errors["email"] != "Email already in use" {
		t.Fatalf("expected email field error, got %+v", resp.Errors)
	}
}

func TestAuthHandlerLogin(t *testing.T) {
	store := newInMemoryUserStore()
	hashed, err := bcrypt.GenerateFromPassword([]byte("supersafe"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	store.users["ada@example.com"] = models.User{ID: "u1", Email: "ada@example.com", Password: string(hashed)}
	handler := AuthHandler{Users: store, Sessions: newTestManager()}

	rec, resp := postJSON(t, handler.Login, "/auth/login", validate.Login{Email: "ADA@example.com", Password: "supersafe"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}
	if resp.Data.Token == "" || resp.Data.User.ID != "u1" {
		t.Fatalf("unexpected login payload %+v", resp.Data)
	}

	rec, resp = postJSON(t, handler.Login, "/auth/login", validate.Login{Email: "ada@example.com", Password: "wrong-password"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized got %d", rec.Code)
	}
	if resp.Errors["password"] != "Invalid Credentials" {
		t.Fatalf("expected password error, got %+v", resp.Errors)
	}

	rec, _ = postJSON(t, handler.Login, "/auth/login", validate.Login{Email: "nobody@example.com", Password: "supersafe"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized for unknown user got %d", rec.Code)
	}
}

func TestAuthHandlerLoginRateLimited(t *testing.T) {
	handler := AuthHandler{Users: newInMemoryUserStore(), Sessions: newTestManager(), Limiter: denyLimiter{}}

	rec, _ := postJSON(t, handler.Login, "/auth/login", validate.Login{Email: "ada@example.com", Password: "x"})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected too many requests got %d", rec.Code)
	}
}

func TestAuthHandlerRefreshAndLogout(t *testing.T) {
	store := newInMemoryUserStore()
	manager := newTestManager()
	handler := AuthHandler{Users: store, Sessions: manager}

	_, signup := postJSON(t, handler.SignUp, "/auth/signup", validSignup())

	rec, resp := postJSON(t, handler.Refresh, "/auth/refresh", refreshRequest{RefreshToken: signup.Data.RefreshToken})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected refresh ok got %d", rec.Code)
	}
	rotated := resp.Data.RefreshToken
	if rotated == "" || rotated == signup.Data.RefreshToken {
		t.Fatalf("expected rotated refresh token, got %q", rotated)
	}

	rec, _ = postJSON(t, handler.Logout, "/auth/logout", refreshRequest{RefreshToken: rotated})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected logout ok got %d", rec.Code)
	}

	rec, _ = postJSON(t, handler.Refresh, "/auth/refresh", refreshRequest{RefreshToken: rotated})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected revoked token to be rejected, got %d", rec.Code)
	}
}

func TestAuthHandlerMe(t *testing.T) {
	store := newInMemoryUserStore()
	store.users["ada@example.com"] = models.User{ID: "u1", Email: "ada@example.com"}
	handler := AuthHandler{Users: store}

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	rec := httptest.NewRecorder()
	handler.Me(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized without principal got %d", rec.Code)
	}

	req = req.WithContext(auth.WithPrincipal(req.Context(), auth.Principal{UserID: "u1"}))
	rec = httptest.NewRecorder()
	handler.Me(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected ok got %d", rec.Code)
	}
}

func TestAuthHandlerRequestPasswordReset(t *testing.T) {
	store := newInMemoryUserStore()
	store.users["ada@example.com"] = models.User{ID: "u1", Email: "ada@example.com"}
	handler := AuthHandler{Users: store}

	for _, email := range []string{"ada@example.com", "ghost@example.com"} {
		rec, resp := postJSON(t, handler.RequestPasswordReset, "/auth/request-password-reset", passwordResetRequest{Email: email})
		if rec.Code != http.StatusAccepted {
			t.Fatalf("%s: expected accepted got %d", email, rec.Code)
		}
		if !resp.Success {
			t.Fatalf("%s: expected success envelope", email)
		}
	}

	rec, _ := postJSON(t, handler.RequestPasswordReset, "/auth/request-password-reset", passwordResetRequest{Email: "not-an-email"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected bad request got %d", rec.Code)
	}
}
