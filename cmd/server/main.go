package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/folio/internal/config"
	"github.com/JonMunkholm/folio/internal/core"
	_ "github.com/JonMunkholm/folio/internal/core/collections" // Register all collections
	"github.com/JonMunkholm/folio/internal/logging"
	"github.com/JonMunkholm/folio/internal/store"
	"github.com/JonMunkholm/folio/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logCloser := logging.Setup(logging.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	defer logCloser.Close()

	slog.Info("configuration loaded", "config", cfg.String())

	ctx := context.Background()
	st, err := store.Open(ctx, cfg.Store.StoreOptions())
	if err != nil {
		slog.Error("failed to open store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	service := core.NewService(st, core.ServiceOptions{PageSize: cfg.Grid.PageSize})
	defer service.Close()

	slog.Info("collections registered", "count", core.CollectionCount())

	// A failed first load is not fatal: collections fall back to their
	// built-in records and the next refresh retries.
	refreshCtx, cancel := context.WithTimeout(ctx, cfg.Server.RequestTimeout)
	if err := service.RefreshAll(refreshCtx); err != nil {
		slog.Warn("initial refresh failed", "error", err)
	}
	cancel()

	if err := service.StartAuditRetention(core.RetentionConfig{
		Schedule:      cfg.Audit.Schedule,
		RetentionDays: cfg.Audit.RetentionDays,
		Timeout:       cfg.Audit.Timeout,
	}); err != nil {
		slog.Error("failed to schedule audit retention", "error", err)
		os.Exit(1)
	}

	server := web.NewServer(service, cfg)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
