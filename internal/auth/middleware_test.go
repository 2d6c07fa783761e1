package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/motionlab/backend/internal/models"
)

func userFixture() models.User {
	return models.User{ID: "user-1", Email: "user@example.com"}
}

func TestAuthenticatorRequireUser(t *testing.T) {
	manager := NewManager(testSecret, time.Minute, time.Hour, NewInMemorySessionStore())
	users := userLookupStub{users: map[string]models.User{"user-1": userFixture()}}
	authn := Authenticator{Tokens: manager, Users: users}

	var seen Principal
	handler := authn.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tokens, err := manager.Issue(context.Background(), userFixture())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/project/get-projects", nil)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", rec.Code)
	}
	if seen.UserID != "user-1" {
		t.Fatalf("expected principal on context got %+v", seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/project/get-projects", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assertDenied(t, rec, http.StatusUnauthorized, "Authentication required")

	req = httptest.NewRequest(http.MethodGet, "/project/get-projects", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assertDenied(t, rec, http.StatusUnauthorized, "Invalid or expired token")
}

func TestAuthenticatorRequireAdminChecksStoredUser(t *testing.T) {
	manager := NewManager(testSecret, time.Minute, time.Hour, NewInMemorySessionStore())
	users := userLookupStub{users: map[string]models.User{
		"admin-1": {ID: "admin-1", IsAdmin: false},
	}}
	authn := Authenticator{Tokens: manager, Users: users}
	handler := authn.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// token still claims admin, but the account was demoted
	tokens, err := manager.Issue(context.Background(), models.User{ID: "admin-1", IsAdmin: true})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assertDenied(t, rec, http.StatusForbidden, "Admin access required")

	users.users["admin-1"] = models.User{ID: "admin-1", IsAdmin: true}
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin got %d", rec.Code)
	}

	delete(users.users, "admin-1")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assertDenied(t, rec, http.StatusUnauthorized, "User not found")
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer abc")
	if got := BearerToken(req); got != "abc" {
		t.Fatalf("expected abc got %q", got)
	}
	req.Header.Set("Authorization", "Basic abc")
	if got := BearerToken(req); got != "" {
		t.Fatalf("expected empty token got %q", got)
	}
}

func assertDenied(t *testing.T, rec *httptest.ResponseRecorder, status int, message string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("expected status %d got %d", status, rec.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["success"] != false || body["message"] != message {
		t.Fatalf("unexpected body %v", body)
	}
}
