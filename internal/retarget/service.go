package retarget

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/motionlab/backend/internal/logging"
	"github.com/motionlab/backend/internal/models"
	"github.com/motionlab/backend/internal/repositories"
	"github.com/motionlab/backend/internal/storage"
)

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrAvatarNotFound  = errors.New("avatar not found")
	ErrBVHNotFound     = errors.New("bvh file not found")
	ErrNotFound        = errors.New("retargeted avatar not found")
)

// Retargeter produces a GLB from a BVH and an avatar on local disk.
type Retargeter interface {
	Retarget(ctx context.Context, bvhPath, avatarPath, outPath string) error
}

// ProjectFinder loads a project owned by a user.
type ProjectFinder interface {
	FindForUser(ctx context.Context, id, userID string) (models.Project, error)
}

// AvatarFinder loads an avatar owned by a user.
type AvatarFinder interface {
	FindForUser(ctx context.Context, id, userID string) (models.Avatar, error)
}

// BVHFinder loads a project's BVH file by name.
type BVHFinder interface {
	FindByFilename(ctx context.Context, projectID, filename string) (models.BVHFile, error)
}

// Store persists retargeted avatars.
type Store interface {
	Create(ctx context.Context, avatar models.RetargetedAvatar) error
	FindByID(ctx context.Context, id string) (models.RetargetedAvatar, error)
	ListByProject(ctx context.Context, projectID string) ([]models.RetargetedAvatar, error)
	Delete(ctx context.Context, id string) error
}

// Request identifies what to retarget.
type Request struct {
	UserID      string
	ProjectID   string
	AvatarID    string
	BVHFilename string
}

// Service creates, lists and deletes retargeted avatars.
type Service struct {
	Runner     Retargeter
	Storage    storage.AssetStorage
	Projects   ProjectFinder
	Avatars    AvatarFinder
	BVHFiles   BVHFinder
	Retargeted Store
	TTL        time.Duration
	Now        func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) ttl() time.Duration {
	if s.TTL <= 0 {
		return 15 * time.Minute
	}
	return s.TTL
}

// Create retargets BVHFilename of the user's project onto the user's avatar.
func (s *Service) Create(ctx context.Context, req Request) (models.RetargetedAvatar, error) {
	ctx, span := logging.StartSpan(logging.WithService(ctx, logging.ServiceProcessor), "retarget.create")

	if _, err := s.Projects.FindForUser(ctx, req.ProjectID, req.UserID); err != nil {
		return models.RetargetedAvatar{}, mapMissing(err, ErrProjectNotFound)
	}
	avatar, err := s.Avatars.FindForUser(ctx, req.AvatarID, req.UserID)
	if err != nil {
		return models.RetargetedAvatar{}, mapMissing(err, ErrAvatarNotFound)
	}
	file, err := s.BVHFiles.FindByFilename(ctx, req.ProjectID, req.BVHFilename)
	if err != nil {
		return models.RetargetedAvatar{}, mapMissing(err, ErrBVHNotFound)
	}

	work, err := os.MkdirTemp("", "motionlab-retarget-*")
	if err != nil {
		return models.RetargetedAvatar{}, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(work)

	bvhPath := filepath.Join(work, "motion.bvh")
	if err := s.fetch(ctx, file.StorageKey, bvhPath); err != nil {
		span.Fail(err)
		return models.RetargetedAvatar{}, err
	}
	avatarPath := filepath.Join(work, "avatar.glb")
	if err := s.fetch(ctx, avatar.StorageKey, avatarPath); err != nil {
		span.Fail(err)
		return models.RetargetedAvatar{}, err
	}

	filename := ulid.Make().String() + ".glb"
	outPath := filepath.Join(work, filename)
	if err := s.Runner.Retarget(ctx, bvhPath, avatarPath, outPath); err != nil {
		span.Fail(err)
		return models.RetargetedAvatar{}, err
	}

	out, err := os.Open(outPath)
	if err != nil {
		return models.RetargetedAvatar{}, fmt.Errorf("open retarget output: %w", err)
	}
	defer out.Close()

	key, err := s.Storage.Save(ctx, path.Join("retargeted", req.ProjectID, filename), out)
	if err != nil {
		span.Fail(err)
		return models.RetargetedAvatar{}, fmt.Errorf("store retargeted avatar: %w", err)
	}

	now := s.now()
	ra := models.RetargetedAvatar{
		ID:           uuid.NewString(),
		ProjectID:    req.ProjectID,
		AvatarID:     avatar.ID,
		BVHFilename:  file.Filename,
		Filename:     filename,
		StorageKey:   key,
		CreationDate: now,
		ExpiresAt:    now.Add(s.ttl()),
	}
	if err := s.Retargeted.Create(ctx, ra); err != nil {
		_ = s.Storage.Delete(ctx, key)
		span.Fail(err)
		return models.RetargetedAvatar{}, fmt.Errorf("record retargeted avatar: %w", err)
	}

	span.Logger().Info("avatar retargeted", slog.String("project_id", req.ProjectID), slog.String("filename", filename))
	span.End()
	return ra, nil
}

// List returns the unexpired retargeted avatars of the user's project.
func (s *Service) List(ctx context.Context, userID, projectID string) ([]models.RetargetedAvatar, error) {
	if _, err := s.Projects.FindForUser(ctx, projectID, userID); err != nil {
		return nil, mapMissing(err, ErrProjectNotFound)
	}
	all, err := s.Retargeted.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	live := make([]models.RetargetedAvatar, 0, len(all))
	for _, ra := range all {
		if ra.ExpiresAt.After(now) {
			live = append(live, ra)
		}
	}
	return live, nil
}

// Delete removes a retargeted avatar belonging to one of the user's projects.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	ra, err := s.Retargeted.FindByID(ctx, id)
	if err != nil {
		return mapMissing(err, ErrNotFound)
	}
	if _, err := s.Projects.FindForUser(ctx, ra.ProjectID, userID); err != nil {
		return mapMissing(err, ErrNotFound)
	}
	if err := s.Retargeted.Delete(ctx, id); err != nil {
		return mapMissing(err, ErrNotFound)
	}
	if err := s.Storage.Delete(ctx, ra.StorageKey); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		logging.FromContext(ctx).Warn("delete retargeted object", "key", ra.StorageKey, "error", err)
	}
	return nil
}

func (s *Service) fetch(ctx context.Context, key, dest string) error {
	src, err := s.Storage.Open(ctx, key)
	if err != nil {
		return fmt.Errorf("open %s: %w", key, err)
	}
	defer src.Close()

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		return fmt.Errorf("copy %s: %w", key, err)
	}
	return f.Close()
}

func mapMissing(err, missing error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return missing
	}
	return err
}
