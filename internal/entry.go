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

	"github.com/starford/ansuz/internal/anki"
	"github.com/starford/ansuz/internal/api"
	"github.com/starford/ansuz/internal/deckstore"
	"github.com/starford/ansuz/internal/exportservice"
	"github.com/starford/ansuz/internal/mcpserver"
	"github.com/starford/ansuz/internal/sse"
	"github.com/starford/ansuz/internal/storage"
)

// bootstrap opens the vault, the deck store and builds the service stack
// shared by the serve, export and mcp entry points.
func bootstrap(cfg *Config, logger *slog.Logger) (*exportservice.Service, storage.Provider, *deckstore.DB, error) {
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, nil, nil, fmt.Errorf("create vault dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := deckstore.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init deck store: %w", err)
	}

	if err := deckstore.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	exporter := anki.NewExporter(logger, cfg.Export.VideoInlineLimit)
	svc := exportservice.NewService(store, db, exporter, logger)
	return svc, store, db, nil
}

func newLogger(cfg *Config) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// Run starts the HTTP server, file watcher and SSE broker.
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
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	svc, store, db, err := bootstrap(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	// SSE broker.
	broker := sse.NewBroker()
	defer broker.Close()

	// Build API router.
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker, cfg.Vault.Path)

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

	// Card media assets (unauthenticated, read-only).
	assets := api.NewAssetHandler(cfg.Vault.Path)
	r.Get("/assets/{filename}", assets.ServeFile)

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Start file watcher with SSE callback.
	g.Go(func() error {
		err := deckstore.Watch(gCtx, db, store, cfg.Vault.Path, logger, func(kind, deck string) {
			broker.PublishDeckEvent(kind, deck)
		})
		if err != nil {
			logger.Warn("watcher stopped", slog.String("error", err.Error()))
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

// RunExport performs a one-shot export of the named decks (all decks when
// empty) and writes the .apkg file to outPath, or next to the vault when
// outPath is empty.
func RunExport(ctx context.Context, cfg *Config, decks []string, outPath string) error {
	logger := newLogger(cfg)

	svc, _, db, err := bootstrap(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	pkg, err := svc.Export(ctx, decks, anki.Options{
		ParentDeckName: cfg.Export.ParentDeckName,
		NoteTypeName:   cfg.Export.NoteTypeName,
	})
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	if outPath == "" {
		outPath = filepath.Join(filepath.Dir(cfg.Vault.Path), pkg.Filename)
	}
	if err := os.WriteFile(outPath, pkg.Data, 0o644); err != nil {
		return fmt.Errorf("write package: %w", err)
	}

	logger.Info("Package written",
		slog.String("path", outPath),
		slog.Int("cards", pkg.CardCount),
		slog.Int("media", pkg.MediaCount))
	return nil
}

// RunMCP starts the MCP stdio server.
func RunMCP(_ context.Context, cfg *Config) error {
	// Logs must go to stderr: stdout carries the MCP protocol.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	svc, store, db, err := bootstrap(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	logger.Info("Starting MCP stdio server")
	return mcpserver.New(svc, store).ServeStdio()
}
