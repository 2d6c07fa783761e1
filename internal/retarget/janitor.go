package retarget

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/motionlab/backend/internal/logging"
	"github.com/motionlab/backend/internal/models"
	"github.com/motionlab/backend/internal/storage"
)

// ExpiredDeleter removes expired rows and returns what was removed.
type ExpiredDeleter interface {
	DeleteExpired(ctx context.Context, now time.Time) ([]models.RetargetedAvatar, error)
}

// SessionPurger removes expired refresh sessions.
type SessionPurger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Janitor deletes expired retargeted avatars and their stored objects.
type Janitor struct {
	Retargeted ExpiredDeleter
	Sessions   SessionPurger
	Storage    storage.AssetStorage
	Logger     *slog.Logger
	Now        func() time.Time
}

// SweepResult summarises one sweep.
type SweepResult struct {
	Avatars  int
	Sessions int64
}

// Sweep runs one cleanup pass.
func (j *Janitor) Sweep(ctx context.Context) (SweepResult, error) {
	now := time.Now().UTC()
	if j.Now != nil {
		now = j.Now().UTC()
	}

	var res SweepResult
	expired, err := j.Retargeted.DeleteExpired(ctx, now)
	if err != nil {
		return res, fmt.Errorf("delete expired retargeted avatars: %w", err)
	}
	res.Avatars = len(expired)

	keys := make([]string, 0, len(expired))
	for _, ra := range expired {
		keys = append(keys, ra.StorageKey)
	}
	if err := storage.DeleteAll(ctx, j.Storage, keys); err != nil {
		j.logger().Warn("delete expired objects", slog.Any("error", err))
	}

	if j.Sessions != nil {
		n, err := j.Sessions.DeleteExpired(ctx, now)
		if err != nil {
			return res, fmt.Errorf("delete expired sessions: %w", err)
		}
		res.Sessions = n
	}

	if res.Avatars > 0 || res.Sessions > 0 {
		j.logger().Info("cleanup sweep", slog.Int("retargeted_avatars", res.Avatars), slog.Int64("sessions", res.Sessions))
	}
	return res, nil
}

// Schedule registers the sweep on c with the given cron spec.
func (j *Janitor) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := j.Sweep(ctx); err != nil {
			j.logger().Error("cleanup sweep failed", slog.Any("error", err))
		}
	})
}

func (j *Janitor) logger() *slog.Logger {
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String("service", logging.ServiceSystem))
}
