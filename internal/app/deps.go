package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/motionlab/backend/internal/admin"
	"github.com/motionlab/backend/internal/auth"
	"github.com/motionlab/backend/internal/avatars"
	"github.com/motionlab/backend/internal/config"
	"github.com/motionlab/backend/internal/db"
	"github.com/motionlab/backend/internal/handlers"
	"github.com/motionlab/backend/internal/logging"
	"github.com/motionlab/backend/internal/middleware"
	"github.com/motionlab/backend/internal/pose"
	"github.com/motionlab/backend/internal/repositories"
	"github.com/motionlab/backend/internal/retarget"
	"github.com/motionlab/backend/internal/storage"
)

// poolPinger adapts a db.Pool to the readiness check.
type poolPinger struct {
	pool db.Pool
}

func (p poolPinger) Ping(ctx context.Context) error {
	return db.Ping(ctx, p.pool)
}

// buildStorage returns the configured asset store and, for disk storage, the handler
// serving its files.
func buildStorage(ctx context.Context, cfg config.Config) (storage.AssetStorage, http.Handler, error) {
	base, err := storage.New(ctx, cfg.ObjectStore)
	if err != nil {
		return nil, nil, fmt.Errorf("configure storage: %w", err)
	}

	var files http.Handler
	if disk, ok := base.(*storage.DiskStorage); ok {
		files = disk.Handler()
	}
	return storage.NewCachingStorage(base, cfg.AssetURLCacheTTL), files, nil
}

// newJanitor sweeps expired retargeted avatars, plus expired sessions when sessions can
// be purged. Redis expires its own keys.
func newJanitor(pool db.Pool, sessions auth.SessionStore, store storage.AssetStorage, logger *slog.Logger) *retarget.Janitor {
	janitor := &retarget.Janitor{
		Retargeted: repositories.NewPostgresRetargetedAvatarRepository(pool),
		Storage:    store,
		Logger:     logger,
	}
	if purger, ok := sessions.(retarget.SessionPurger); ok {
		janitor.Sessions = purger
	}
	return janitor
}

func newRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func newSessionStore(pool db.Pool, backend string, client *redis.Client) (auth.SessionStore, error) {
	switch backend {
	case config.SessionBackendPostgres, "":
		return repositories.NewPostgresSessionStore(pool), nil
	case config.SessionBackendRedis:
		if client == nil {
			return nil, errors.New("redis session backend requires MOTIONLAB_REDIS_URL")
		}
		return auth.NewRedisSessionStore(client), nil
	case config.SessionBackendMemory:
		return auth.NewInMemorySessionStore(), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", backend)
	}
}

func newMetricsSource(name string) (admin.Source, error) {
	switch name {
	case config.MetricsSourceHost, "":
		return admin.NewHostMetrics("/"), nil
	case config.MetricsSourceSimulated:
		return admin.NewSimulatedMetrics(uint64(time.Now().UnixNano())), nil
	default:
		return nil, fmt.Errorf("unknown metrics source %q", name)
	}
}

// buildDependencies wires together concrete implementations used by the HTTP handlers.
// The returned cleanup stops background work and must run after the HTTP server drains.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config, logger *slog.Logger, buffer *logging.Buffer) (handlers.Dependencies, func(context.Context) error, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		client, err := newRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return handlers.Dependencies{}, nil, err
		}
		redisClient = client
	}
	closeRedis := func() error {
		if redisClient == nil {
			return nil
		}
		return redisClient.Close()
	}

	fail := func(err error) (handlers.Dependencies, func(context.Context) error, error) {
		_ = closeRedis()
		return handlers.Dependencies{}, nil, err
	}

	users := repositories.NewPostgresUserRepository(pool)
	projects := repositories.NewPostgresProjectRepository(pool)
	bvhFiles := repositories.NewPostgresBVHRepository(pool)
	avatarRepo := repositories.NewPostgresAvatarRepository(pool)
	retargeted := repositories.NewPostgresRetargetedAvatarRepository(pool)

	sessionStore, err := newSessionStore(pool, cfg.SessionBackend, redisClient)
	if err != nil {
		return fail(err)
	}

	secret := cfg.JWTSecret
	if secret == "" {
		secret = auth.RandomSecret()
		logger.Warn("MOTIONLAB_JWT_SECRET not set, using a random secret; tokens will not survive restarts")
	}
	manager := auth.NewManager(secret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, sessionStore).WithUsers(users)

	store, files, err := buildStorage(ctx, cfg)
	if err != nil {
		return fail(err)
	}

	retargetSvc := &retarget.Service{
		Runner:     retarget.NewRunner(cfg.RetargetCommand, cfg.RetargetArgs, cfg.RetargetTimeout),
		Storage:    store,
		Projects:   projects,
		Avatars:    avatarRepo,
		BVHFiles:   bvhFiles,
		Retargeted: retargeted,
		TTL:        cfg.RetargetTTL,
	}

	avatarSvc := &avatars.Service{
		Fetcher: avatars.NewDownloader(cfg.AvatarHosts, cfg.AvatarMaxBytes, cfg.AvatarTimeout),
		Storage: store,
		Avatars: avatarRepo,
	}

	source, err := newMetricsSource(cfg.MetricsSource)
	if err != nil {
		return fail(err)
	}
	var samples admin.SampleStore = admin.NewMemorySampleStore(cfg.MetricsHistory)
	if redisClient != nil {
		samples = admin.NewRedisSampleStore(redisClient, cfg.MetricsHistory)
	}
	sampler := &admin.Sampler{Source: source, Store: samples, Logger: logger, MaxAge: time.Minute}

	scheduler := cron.New()
	if _, err := newJanitor(pool, sessionStore, store, logger).Schedule(scheduler, cfg.CleanupSchedule); err != nil {
		return fail(fmt.Errorf("schedule cleanup: %w", err))
	}
	if _, err := sampler.Schedule(scheduler, cfg.MetricsSchedule); err != nil {
		return fail(fmt.Errorf("schedule metrics sampling: %w", err))
	}
	scheduler.Start()

	// Workers start here; nothing below can fail.
	processor := pose.NewProcessor(
		pose.NewExtractor(cfg.PoseCommand, cfg.PoseArgs, cfg.PoseTimeout),
		store,
		projects,
		bvhFiles,
		pose.ProcessorConfig{QueueSize: cfg.PoseQueueSize, Workers: cfg.PoseWorkers, Timeout: cfg.PoseTimeout},
		logger,
	)

	adminSvc := &admin.Service{
		Users:     users,
		Projects:  projects,
		BVHFiles:  bvhFiles,
		Keys:      bvhFiles,
		Storage:   store,
		Metrics:   sampler,
		LogBuffer: buffer,
		Sessions:  manager,
	}

	deps := handlers.Dependencies{
		Database: poolPinger{pool: pool},
		Guard:    auth.Authenticator{Tokens: manager, Users: users},

		Users:    users,
		Sessions: manager,

		Projects: projects,
		BVHFiles: bvhFiles,
		Keys:     bvhFiles,
		Storage:  store,
		Files:    files,

		Processor:      processor,
		MaxUploadBytes: cfg.MaxUploadBytes,
		UploadTempDir:  cfg.UploadTempDir,

		Avatars:  avatarSvc,
		Retarget: retargetSvc,
		Admin:    adminSvc,

		AuthLimiter:   middleware.NewIPRateLimiter(cfg.AuthRateLimit, time.Minute, cfg.AuthRateLimit, 10*time.Minute),
		UploadLimiter: middleware.NewIPRateLimiter(cfg.UploadRateLimit, time.Minute, cfg.UploadRateLimit, 10*time.Minute),
	}

	cleanup := func(ctx context.Context) error {
		stopped := scheduler.Stop()
		select {
		case <-stopped.Done():
		case <-ctx.Done():
		}
		return errors.Join(processor.Shutdown(ctx), closeRedis())
	}

	return deps, cleanup, nil
}
