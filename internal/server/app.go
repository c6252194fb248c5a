// Package server wires the account service together: storage backend,
// media store, user service and the HTTP server, and runs it until a
// termination signal arrives.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/videotube/internal/filex"
	"github.com/dmitrijs2005/videotube/internal/logging"
	"github.com/dmitrijs2005/videotube/internal/server/config"
	"github.com/dmitrijs2005/videotube/internal/server/httpx"
	"github.com/dmitrijs2005/videotube/internal/server/media"
	"github.com/dmitrijs2005/videotube/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/videotube/internal/server/services"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	repomanager repomanager.RepositoryManager
	server      *httpx.HTTPServer
}

// seams for tests
var (
	newPostgresManager = repomanager.NewPostgresRepositoryManager
	newMediaStore      = func(ctx context.Context, c *config.Config) (services.MediaStore, error) {
		return media.NewS3Store(ctx, c)
	}
)

func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	uploadDir, err := filex.EnsureDir(c.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("upload dir: %w", err)
	}

	var rm repomanager.RepositoryManager
	if c.UseMemoryStore {
		logger.Warn(ctx, "using in-memory user store, data is lost on exit")
		rm = repomanager.NewMemoryRepositoryManager()
	} else {
		rm, err = newPostgresManager(c.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
	}

	if err := rm.RunMigrations(ctx); err != nil {
		_ = rm.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	store, err := newMediaStore(ctx, c)
	if err != nil {
		_ = rm.Close()
		return nil, fmt.Errorf("media store: %w", err)
	}

	us := services.NewUserService(rm, store, c, logger)
	h := httpx.NewHandler(us, httpx.HandlerConfig{
		CookieSecure:  c.CookieSecure,
		AccessTTL:     c.AccessTokenValidityDuration,
		RefreshTTL:    c.RefreshTokenValidityDuration,
		UploadDir:     uploadDir,
		MaxUploadSize: c.MaxUploadSize,
		Health:        rm.Ping,
	}, logger)

	return &App{
		config:      c,
		logger:      logger,
		repomanager: rm,
		server:      httpx.NewHTTPServer(c.EndpointAddrHTTP, httpx.NewRouter(h, httpx.NewMetrics()), logger),
	}, nil
}

// Run serves until ctx is cancelled or SIGINT/SIGTERM/SIGQUIT arrives.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app.logger.Info(ctx, "Starting app...")

	defer func() {
		if err := app.repomanager.Close(); err != nil {
			app.logger.Error(context.Background(), "closing storage", "error", err)
		}
	}()

	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		return err
	}

	app.logger.Info(context.Background(), "App stopped")
	return nil
}

// NewLogger returns the service logger.
func NewLogger() logging.Logger {
	return logging.New("videotube", slog.LevelInfo)
}
