package session

import (
	"context"
	"sync"
	"time"

	"github.com/motionlab/backend/internal/client"
	"github.com/motionlab/backend/internal/models"
	"github.com/motionlab/backend/internal/validate"
)

// Lifetime is how long a sign-in is remembered locally.
const Lifetime = 7 * 24 * time.Hour

// AuthAPI is the subset of the API client used by UserStore.
type AuthAPI interface {
	Login(ctx context.Context, form validate.Login) client.Response[client.AuthResult]
	Signup(ctx context.Context, form validate.Signup) client.Response[client.AuthResult]
	Logout(ctx context.Context, refreshToken string) client.Response[struct{}]
}

// UserState is the persisted sign-in.
type UserState struct {
	User            *models.User `json:"user"`
	IsAuthenticated bool         `json:"isAuthenticated"`
	// Expiry is in Unix milliseconds; zero means unset.
	Expiry       int64  `json:"expiry"`
	Token        string `json:"token,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// AuthResult reports the outcome of a login or signup.
type AuthResult struct {
	Success bool
	Message string
	Errors  validate.Errors
}

// UserStore holds the signed-in user.
type UserStore struct {
	storage Storage
	api     AuthAPI
	now     func() time.Time

	mu    sync.RWMutex
	state UserState
}

// NewUserStore builds a store persisting to storage. Call Hydrate before use.
func NewUserStore(storage Storage, api AuthAPI) *UserStore {
	return &UserStore{storage: storage, api: api, now: time.Now}
}

// WithNowFunc overrides the clock.
func (s *UserStore) WithNowFunc(now func() time.Time) *UserStore {
	s.now = now
	return s
}

// Hydrate loads the persisted sign-in and drops it if it has expired.
func (s *UserStore) Hydrate() error {
	var state UserState
	if err := load(s.storage, UserKey, &state); err != nil {
		return err
	}
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	return s.CheckExpiry()
}

// State returns a copy of the current sign-in.
func (s *UserStore) State() UserState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state := s.state
	if state.User != nil {
		u := *state.User
		state.User = &u
	}
	return state
}

// Token implements client.TokenSource.
func (s *UserStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Token
}

// Login validates the form locally and only calls the API when it passes.
func (s *UserStore) Login(ctx context.Context, form validate.Login) AuthResult {
	if errs := validate.ValidateLogin(form); !errs.OK() {
		return AuthResult{Errors: errs}
	}
	return s.authenticate(s.api.Login(ctx, form))
}

// Signup validates the form locally and only calls the API when it passes.
func (s *UserStore) Signup(ctx context.Context, form validate.Signup) AuthResult {
	if errs := validate.ValidateSignup(form); !errs.OK() {
		return AuthResult{Errors: errs}
	}
	return s.authenticate(s.api.Signup(ctx, form))
}

func (s *UserStore) authenticate(resp client.Response[client.AuthResult]) AuthResult {
	if !resp.Success {
		return AuthResult{Message: resp.Message, Errors: resp.Errors}
	}

	user := resp.Data.User
	next := UserState{
		User:            &user,
		IsAuthenticated: true,
		Expiry:          s.now().Add(Lifetime).UnixMilli(),
		Token:           resp.Data.AccessToken,
		RefreshToken:    resp.Data.RefreshToken,
	}
	if err := s.set(next); err != nil {
		return AuthResult{Message: err.Error()}
	}
	return AuthResult{Success: true}
}

// Logout clears the sign-in. The server-side revoke is best effort.
func (s *UserStore) Logout(ctx context.Context) error {
	s.mu.RLock()
	refresh := s.state.RefreshToken
	s.mu.RUnlock()

	if refresh != "" && s.api != nil {
		_ = s.api.Logout(ctx, refresh)
	}
	return s.set(UserState{})
}

// CheckExpiry clears the sign-in once its expiry has passed.
func (s *UserStore) CheckExpiry() error {
	s.mu.RLock()
	expiry := s.state.Expiry
	s.mu.RUnlock()

	if expiry == 0 || s.now().UnixMilli() <= expiry {
		return nil
	}
	return s.set(UserState{})
}

func (s *UserStore) set(state UserState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := save(s.storage, UserKey, state); err != nil {
		return err
	}
	s.state = state
	return nil
}
