package session

import (
	"context"
	"sync"

	"github.com/motionlab/backend/internal/client"
	"github.com/motionlab/backend/internal/models"
)

// ProjectAPI is the subset of the API client used by ProjectStore.
type ProjectAPI interface {
	GetProjects(ctx context.Context) client.Response[[]models.Project]
	GetProject(ctx context.Context, projectID string) client.Response[client.ProjectDetail]
	DeleteProject(ctx context.Context, projectID string) client.Response[struct{}]
	GetBVHFilenames(ctx context.Context, projectID string) client.Response[[]client.BVHLink]
	CreateRetargetedAvatar(ctx context.Context, req client.RetargetRequest) client.Response[client.RetargetedAvatar]
}

// ProjectState is the persisted project cache.
type ProjectState struct {
	Projects []models.Project `json:"projects"`
	Error    string           `json:"error,omitempty"`
}

// ProjectStore caches the caller's projects. Each method makes exactly one API call and
// only touches the cache after it succeeds.
type ProjectStore struct {
	storage Storage
	api     ProjectAPI

	mu    sync.RWMutex
	state ProjectState
}

// NewProjectStore builds a store and loads its persisted cache.
func NewProjectStore(storage Storage, api ProjectAPI) (*ProjectStore, error) {
	s := &ProjectStore{storage: storage, api: api}
	if err := load(storage, ProjectKey, &s.state); err != nil {
		return nil, err
	}
	return s, nil
}

// State returns a copy of the cache.
func (s *ProjectStore) State() ProjectState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ProjectState{Projects: append([]models.Project(nil), s.state.Projects...), Error: s.state.Error}
}

// FetchProjects replaces the cache with the server's list.
func (s *ProjectStore) FetchProjects(ctx context.Context) bool {
	resp := s.api.GetProjects(ctx)
	if !resp.Success {
		s.fail(resp.Message, "Error fetching projects")
		return false
	}
	s.update(func(st *ProjectState) { st.Projects = resp.Data })
	return true
}

// FetchProject refreshes one cached project.
func (s *ProjectStore) FetchProject(ctx context.Context, projectID string) (client.ProjectDetail, bool) {
	resp := s.api.GetProject(ctx, projectID)
	if !resp.Success {
		s.fail(resp.Message, "Error fetching project")
		return client.ProjectDetail{}, false
	}
	s.update(func(st *ProjectState) {
		for i := range st.Projects {
			if st.Projects[i].ID == projectID {
				st.Projects[i] = resp.Data.Project
				return
			}
		}
		st.Projects = append(st.Projects, resp.Data.Project)
	})
	return resp.Data, true
}

// DeleteProject removes a project on the server, then from the cache.
func (s *ProjectStore) DeleteProject(ctx context.Context, projectID string) bool {
	resp := s.api.DeleteProject(ctx, projectID)
	if !resp.Success {
		s.fail(resp.Message, "Error deleting project")
		return false
	}
	s.update(func(st *ProjectState) {
		kept := st.Projects[:0]
		for _, p := range st.Projects {
			if p.ID != projectID {
				kept = append(kept, p)
			}
		}
		st.Projects = kept
	})
	return true
}

// BVHFilenames passes the animation listing through.
func (s *ProjectStore) BVHFilenames(ctx context.Context, projectID string) client.Response[[]client.BVHLink] {
	resp := s.api.GetBVHFilenames(ctx, projectID)
	if !resp.Success {
		s.fail(resp.Message, "Error fetching animations")
	}
	return resp
}

// CreateRetargetedAvatar passes the retarget request through.
func (s *ProjectStore) CreateRetargetedAvatar(ctx context.Context, req client.RetargetRequest) client.Response[client.RetargetedAvatar] {
	resp := s.api.CreateRetargetedAvatar(ctx, req)
	if !resp.Success {
		s.fail(resp.Message, "Error creating retargeted avatar")
	}
	return resp
}

// ClearError resets the last error.
func (s *ProjectStore) ClearError() {
	s.update(func(st *ProjectState) { st.Error = "" })
}

// Clear drops the cache, for example on logout.
func (s *ProjectStore) Clear() error {
	s.mu.Lock()
	s.state = ProjectState{}
	s.mu.Unlock()
	return s.storage.RemoveItem(ProjectKey)
}

func (s *ProjectStore) fail(message, fallback string) {
	if message == "" {
		message = fallback
	}
	s.update(func(st *ProjectState) { st.Error = message })
}

// update applies mutate and persists. A persistence failure leaves the in-memory state
// updated and is recorded as the error.
func (s *ProjectStore) update(mutate func(*ProjectState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mutate(&s.state)
	if err := save(s.storage, ProjectKey, s.state); err != nil {
		s.state.Error = err.Error()
	}
}

// AvatarAPI is the subset of the API client used by AvatarStore.
type AvatarAPI interface {
	CreateAvatar(ctx context.Context, name, exportURL string) client.Response[client.Avatar]
	GetAvatars(ctx context.Context) client.Response[[]client.Avatar]
	GetAvatar(ctx context.Context, avatarID string) client.Response[client.Avatar]
	DeleteAvatar(ctx context.Context, avatarID string) client.Response[struct{}]
}

// AvatarState is the persisted avatar cache.
type AvatarState struct {
	Avatars []client.Avatar `json:"avatars"`
	Error   string          `json:"error,omitempty"`
}

// AvatarStore caches the caller's avatars.
type AvatarStore struct {
	storage Storage
	api     AvatarAPI

	mu    sync.RWMutex
	state AvatarState
}

// NewAvatarStore builds a store and loads its persisted cache.
func NewAvatarStore(storage Storage, api AvatarAPI) (*AvatarStore, error) {
	s := &AvatarStore{storage: storage, api: api}
	if err := load(storage, AvatarKey, &s.state); err != nil {
		return nil, err
	}
	return s, nil
}

// State returns a copy of the cache.
func (s *AvatarStore) State() AvatarState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return AvatarState{Avatars: append([]client.Avatar(nil), s.state.Avatars...), Error: s.state.Error}
}

// FetchAvatars replaces the cache with the server's list.
func (s *AvatarStore) FetchAvatars(ctx context.Context) bool {
	resp := s.api.GetAvatars(ctx)
	if !resp.Success {
		s.fail(resp.Message, "Error fetching avatars")
		return false
	}
	s.update(func(st *AvatarState) { st.Avatars = resp.Data })
	return true
}

// FetchAvatar fetches one avatar without changing the cache.
func (s *AvatarStore) FetchAvatar(ctx context.Context, avatarID string) (client.Avatar, bool) {
	resp := s.api.GetAvatar(ctx, avatarID)
	if !resp.Success {
		s.fail(resp.Message, "Error fetching avatar")
		return client.Avatar{}, false
	}
	return resp.Data, true
}

// CreateAvatar records a new avatar on the server, then in the cache.
func (s *AvatarStore) CreateAvatar(ctx context.Context, name, exportURL string) client.Response[client.Avatar] {
	resp := s.api.CreateAvatar(ctx, name, exportURL)
	if !resp.Success {
		s.fail(resp.Message, "Error creating avatar")
		return resp
	}
	s.update(func(st *AvatarState) { st.Avatars = append(st.Avatars, resp.Data) })
	return resp
}

// DeleteAvatar removes an avatar on the server, then from the cache.
func (s *AvatarStore) DeleteAvatar(ctx context.Context, avatarID string) bool {
	resp := s.api.DeleteAvatar(ctx, avatarID)
	if !resp.Success {
		s.fail(resp.Message, "Error deleting avatar")
		return false
	}
	s.update(func(st *AvatarState) {
		kept := st.Avatars[:0]
		for _, a := range st.Avatars {
			if a.ID != avatarID {
				kept = append(kept, a)
			}
		}
		st.Avatars = kept
	})
	return true
}

// Clear drops the cache.
func (s *AvatarStore) Clear() error {
	s.mu.Lock()
	s.state = AvatarState{}
	s.mu.Unlock()
	return s.storage.RemoveItem(AvatarKey)
}

func (s *AvatarStore) fail(message, fallback string) {
	if message == "" {
		message = fallback
	}
	s.update(func(st *AvatarState) { st.Error = message })
}

func (s *AvatarStore) update(mutate func(*AvatarState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mutate(&s.state)
	if err := save(s.storage, AvatarKey, s.state); err != nil {
		s.state.Error = err.Error()
	}
}
