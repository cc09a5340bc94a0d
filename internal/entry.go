// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/pathview/inkscan/internal/annostore"
	"github.com/pathview/inkscan/internal/api"
	"github.com/pathview/inkscan/internal/inventory"
	"github.com/pathview/inkscan/internal/sse"
)

// Run starts the annotation server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	logger := app.logger
	if logger == nil {
		logger = newLogger(cfg)
	}

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("tiles_dir", cfg.Data.TilesDir),
		slog.String("annotations_dir", cfg.Data.AnnotationsDir),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure data directories exist.
	for _, dir := range []string{cfg.Data.TilesDir, cfg.Data.AnnotationsDir, filepath.Dir(cfg.Data.StatusFile)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}

	// Consolidated annotation status file.
	status := annostore.NewStatusStore(cfg.Data.StatusFile)

	// Slide catalog.
	db, err := inventory.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init inventory: %w", err)
	}
	defer db.Close()

	// Run initial sync.
	if err := inventory.Sync(db, cfg.Data.TilesDir, cfg.Data.MappingFile, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	// SSE broker; it also carries session commands to connected viewers.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	// Annotation sessions.
	manager := annostore.NewManager(cfg.Data.AnnotationsDir, status, broker, logger,
		cfg.Tracking.MaxLiveFiles, cfg.Tracking.NavigationGrace())

	// Build API service and router.
	svc := api.NewService(db, manager, status, broker, cfg.Data.TilesDir, cfg.Viewer.StartLevel)
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)
	tiles := api.NewTileHandler(cfg.Data.TilesDir, logger)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Tile pyramid file server (unauthenticated, viewers fetch directly).
	r.Get("/dzi/*", tiles.ServeFile)

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start tiles/mapping watcher with SSE callback.
	g.Go(func() error {
		if err := inventory.Watch(gCtx, db, cfg.Data.TilesDir, cfg.Data.MappingFile, logger, func() {
			broker.PublishInventoryUpdated()
		}); err != nil {
			logger.Warn("watcher exited", slog.String("error", err.Error()))
		}
		return nil
	})

	// Start the autosave ticker.
	g.Go(func() error {
		if err := manager.Run(gCtx, cfg.Tracking.Interval()); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("session manager: %w", err)
		}
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// newLogger initializes the structured JSON logger and installs it as
// the process default.
func newLogger(cfg *Config) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}
