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
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/raido/internal/api"
	"github.com/starford/raido/internal/blobstore"
	"github.com/starford/raido/internal/imagepipe"
	"github.com/starford/raido/internal/itemstore"
	"github.com/starford/raido/internal/mcpserver"
	"github.com/starford/raido/internal/todoservice"
	pkgconfig "github.com/starford/raido/pkg/config"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_path", cfg.Store.Path),
		slog.String("blobs_path", cfg.Blobs.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure blob directory exists.
	if err := os.MkdirAll(cfg.Blobs.Path, 0o755); err != nil {
		return fmt.Errorf("create blobs dir: %w", err)
	}

	// Initialize blob storage.
	blobs, err := blobstore.NewFS(cfg.Blobs.Path)
	if err != nil {
		return fmt.Errorf("init blobstore: %w", err)
	}

	// Initialize SQLite item store.
	items, err := itemstore.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("init itemstore: %w", err)
	}
	defer items.Close()

	// Image pipeline and service.
	pipeline := imagepipe.New(blobs, cfg.Images)
	svc := todoservice.New(items, blobs, pipeline, logger)

	// MCP session manager (one server+transport pair per request).
	sessions := mcpserver.NewManager(svc, logger)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints.
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

	r.Get("/favicon.ico", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// Mount REST routes under /api and the protocol endpoint at /mcp.
	r.Mount("/api", api.NewRouter(svc))
	r.Handle("/mcp", sessions)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Hot-reload the image policy when the config file changes.
	if app.configPath != "" {
		g.Go(func() error {
			load := func() (imagepipe.Policy, error) {
				fresh := NewDefaultConfig()
				if err := pkgconfig.Load(app.configPath, fresh); err != nil {
					return imagepipe.Policy{}, err
				}
				return fresh.Images, nil
			}
			if err := imagepipe.WatchPolicy(gCtx, app.configPath, load, pipeline, logger); err != nil {
				logger.Warn("policy watcher unavailable", slog.String("error", err.Error()))
			}
			return nil
		})
	}

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

		// Close every live protocol session before taking the listener
		// down so no transport handles leak.
		sessions.CloseAll()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
			return fmt.Errorf("shutdown: %w", err)
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
