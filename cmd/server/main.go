package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/daghondi/ghondiclaude.tech/internal/app"
	"github.com/daghondi/ghondiclaude.tech/internal/config"
	"github.com/daghondi/ghondiclaude.tech/internal/db"
	"github.com/daghondi/ghondiclaude.tech/internal/logger"
	"github.com/daghondi/ghondiclaude.tech/internal/routes"
)

func main() {
	migrateDown := flag.Bool("migrate-down", false, "roll back the most recent migration and exit")
	flag.Parse()

	cfg := config.Load()

	logger.Init(cfg.IsDevelopment(), cfg.SentryDSN)

	if *migrateDown {
		os.Exit(runMigrateDown(cfg))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		os.Exit(1)
	}
	defer func() {
		closeErr := app.Close()
		if closeErr != nil {
			slog.Error("failed to close app", "error", closeErr)
		}
	}()

	handler, err := routes.SetupRoutes(app)
	if err != nil {
		slog.Error("failed to set up routes", "error", err)
		return
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Port, "env", cfg.AppEnv, "url", "http://localhost:"+cfg.Port)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	err = server.Shutdown(shutdownCtx)
	if err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
}

func runMigrateDown(cfg *config.Config) int {
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		slog.Error("failed to initialize database", "error", err)
		return 1
	}
	defer db.Close(database)

	err = db.MigrateDown(database.DB, cfg.DBDriver)
	if err != nil {
		slog.Error("migration rollback failed", "error", err)
		return 1
	}
	return 0
}
