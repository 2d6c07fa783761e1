package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/motionlab/backend/internal/auth"
	"github.com/motionlab/backend/internal/config"
	"github.com/motionlab/backend/internal/db"
	"github.com/motionlab/backend/internal/handlers"
	"github.com/motionlab/backend/internal/httpserver"
	"github.com/motionlab/backend/internal/logging"
	"github.com/motionlab/backend/internal/middleware"
	"github.com/motionlab/backend/internal/repositories"
)

// Run bootstraps the MotionLab backend application.
func Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("expected command: serve, migrate, seed, cleanup or promote")
	}

	switch args[0] {
	case "serve":
		return serve(ctx)
	case "migrate":
		return runMigrations(ctx, args[1:])
	case "seed":
		return runSeed(ctx, args[1:])
	case "cleanup":
		return runCleanup(ctx)
	case "promote":
		return runPromote(ctx, args[1:])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// newLogger writes JSON records to w and keeps recent ones in buffer for the admin log view.
func newLogger(level string, buffer *logging.Buffer, w io.Writer) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	var handler slog.Handler = slog.NewJSONHandler(w, &slog.HandlerOptions{AddSource: true, Level: lvl})
	if buffer != nil {
		handler = buffer.Handler(handler)
	}
	return slog.New(handler)
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	buffer := logging.NewBuffer(cfg.LogBuffer)
	logger := newLogger(cfg.LogLevel, buffer, os.Stdout)
	slog.SetDefault(logger)

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	deps, cleanup, err := buildDependencies(ctx, pool, cfg, logger, buffer)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, deps)

	handler := middleware.RequestLogger(logger)(middleware.CORS(cfg.CORSOrigins)(mux))

	// Uploads hold the connection while the video is processed.
	srv := httpserver.New(cfg.AppPort, handler, cfg.PoseTimeout+2*time.Minute)

	logger.Info("starting http server", "port", cfg.AppPort, "storage", cfg.ObjectStore.Backend, "metrics", cfg.MetricsSource)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- srv.Start()
	}()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signalCh)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	case sig := <-signalCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case runErr = <-srvErr:
		if runErr != nil {
			logger.Error("http server stopped", "error", runErr)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpserver.ShutdownTimeout)
	defer cancel()

	return errors.Join(runErr, srv.Shutdown(shutdownCtx), cleanup(shutdownCtx))
}

// runCleanup performs one janitor sweep, for use from an external scheduler.
func runCleanup(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel, nil, os.Stdout)

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	store, _, err := buildStorage(ctx, cfg)
	if err != nil {
		return err
	}

	// Memory sessions die with the server and Redis expires its own keys.
	var sessions auth.SessionStore
	if cfg.SessionBackend == config.SessionBackendPostgres || cfg.SessionBackend == "" {
		sessions = repositories.NewPostgresSessionStore(pool)
	}
	janitor := newJanitor(pool, sessions, store, logger)
	res, err := janitor.Sweep(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("removed %d retargeted avatars and %d sessions\n", res.Avatars, res.Sessions)
	return nil
}

// runPromote grants admin rights to an existing account.
func runPromote(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("expected the email of the account to promote")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	users := repositories.NewPostgresUserRepository(pool)
	user, err := users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(args[0])))
	if err != nil {
		return fmt.Errorf("find user %s: %w", args[0], err)
	}
	if user.IsAdmin {
		fmt.Printf("%s is already an admin\n", user.Email)
		return nil
	}

	user.IsAdmin = true
	user.UpdatedAt = time.Now().UTC()
	if err := users.Update(ctx, user); err != nil {
		return fmt.Errorf("promote %s: %w", user.Email, err)
	}
	fmt.Printf("promoted %s to admin\n", user.Email)
	return nil
}
