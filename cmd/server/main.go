package main

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

	"authtrail/internal/api/routes"
	"authtrail/internal/config"
	"authtrail/internal/logging"
	"authtrail/internal/models"
	"authtrail/internal/services"

	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := os.Getenv("AUTHTRAIL_CONFIG")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logging.Setup(cfg.Log)
	log := logging.For("main")

	// Initialize database
	db, err := models.Open(cfg)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer func() { _ = models.Close(db) }()

	svc, err := routes.NewServices(db, cfg)
	if err != nil {
		return fmt.Errorf("initialize services: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := svc.Directory.EnsureRoles(ctx, services.DefaultRole, routes.AdminRole); err != nil {
		return fmt.Errorf("seed roles: %w", err)
	}

	// Create default user if database is empty
	if err := svc.Directory.CreateDefaultUser(ctx, cfg.DefaultUser); err != nil {
		log.Warn("failed to create default user", "error", err)
	}

	if cfg.Redis.Addr != "" {
		client, err := services.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Warn("redis unavailable, revocation cache disabled", "addr", cfg.Redis.Addr, "error", err)
		} else {
			defer func() { _ = client.Close() }()
			svc.Sessions.WithRevocationCache(services.NewRedisRevocationCache(client))
			log.Info("revocation cache enabled", "addr", cfg.Redis.Addr)
		}
	}

	// Set Gin mode
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	routes.SetupRoutes(r, cfg, svc)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", "addr", addr, "database", cfg.Database.Type)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "error", err)
	}
	if err := svc.Trail.Close(shutdownCtx); err != nil {
		log.Error("audit drain incomplete", "error", err)
	}
	return nil
}
