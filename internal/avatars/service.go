package avatars

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/motionlab/backend/internal/logging"
	"github.com/motionlab/backend/internal/models"
	"github.com/motionlab/backend/internal/repositories"
	"github.com/motionlab/backend/internal/storage"
)

var (
	ErrDuplicateName = errors.New("avatar name already exists")
	ErrNotFound      = errors.New("avatar not found")
)

// Fetcher downloads an exported avatar into a local file.
type Fetcher interface {
	Download(ctx context.Context, raw string) (*os.File, int64, error)
}

// Store persists avatar records.
type Store interface {
	Create(ctx context.Context, avatar models.Avatar) error
	FindForUser(ctx context.Context, id, userID string) (models.Avatar, error)
	ListByUser(ctx context.Context, userID string) ([]models.Avatar, error)
	Delete(ctx context.Context, id, userID string) error
}

// Service creates and manages user avatars.
type Service struct {
	Fetcher Fetcher
	Storage storage.AssetStorage
	Avatars Store
	Now     func() time.Time
}

// Create downloads the GLB at downloadURL and records it under name.
func (s *Service) Create(ctx context.Context, userID, name, downloadURL string) (models.Avatar, error) {
	name = strings.TrimSpace(name)

	existing, err := s.Avatars.ListByUser(ctx, userID)
	if err != nil {
		return models.Avatar{}, err
	}
	for _, a := range existing {
		if strings.EqualFold(a.Name, name) {
			return models.Avatar{}, ErrDuplicateName
		}
	}

	file, size, err := s.Fetcher.Download(ctx, downloadURL)
	if err != nil {
		return models.Avatar{}, err
	}
	defer func() {
		file.Close()
		os.Remove(file.Name())
	}()

	id := uuid.NewString()
	filename := id + ".glb"
	key, err := s.Storage.Save(ctx, path.Join("avatars", userID, filename), file)
	if err != nil {
		return models.Avatar{}, fmt.Errorf("store avatar: %w", err)
	}

	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now().UTC()
	}
	avatar := models.Avatar{
		ID:           id,
		Name:         name,
		UserID:       userID,
		Filename:     filename,
		StorageKey:   key,
		SourceURL:    downloadURL,
		CreationDate: now,
	}
	if err := s.Avatars.Create(ctx, avatar); err != nil {
		_ = s.Storage.Delete(ctx, key)
		if errors.Is(err, repositories.ErrConflict) {
			return models.Avatar{}, ErrDuplicateName
		}
		return models.Avatar{}, fmt.Errorf("record avatar: %w", err)
	}

	logging.FromContext(ctx).Info("avatar created", "avatar_id", id, "bytes", size)
	return avatar, nil
}

// List returns the user's avatars; an empty slice when there are none.
func (s *Service) List(ctx context.Context, userID string) ([]models.Avatar, error) {
	avatars, err := s.Avatars.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if avatars == nil {
		avatars = []models.Avatar{}
	}
	return avatars, nil
}

// Get loads one of the user's avatars.
func (s *Service) Get(ctx context.Context, userID, id string) (models.Avatar, error) {
	a, err := s.Avatars.FindForUser(ctx, id, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		return models.Avatar{}, ErrNotFound
	}
	return a, err
}

// Delete removes the avatar and its stored GLB.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	a, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.Avatars.Delete(ctx, id, userID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if err := s.Storage.Delete(ctx, a.StorageKey); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		logging.FromContext(ctx).Warn("delete avatar object", "key", a.StorageKey, "error", err)
	}
	return nil
}
