package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"studysync/presence-service/config"
	"studysync/presence-service/router"
	"studysync/presence-service/services"
	"studysync/presence-service/utils"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig()

	// Initialize logger
	logger := utils.NewLogger(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize store
	store, err := newStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize presence store", "store", cfg.Store, "error", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close presence store", "error", err)
		}
	}()

	// Initialize presence service
	presenceService := services.NewPresenceService(store, logger)
	presenceService.SetPresenceTTL(cfg.PresenceTTL)
	presenceService.SetStoreTimeout(cfg.StoreTimeout)

	metrics := services.NewMetrics()
	engine, limiter := router.Setup(cfg, presenceService, metrics, logger)
	if limiter != nil {
		go limiter.RunCleanup(ctx.Done())
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Starting Presence Service",
			"port", cfg.Port,
			"store", cfg.Store,
			"ttl", cfg.PresenceTTL.String(),
			"auth", cfg.JWTSecret != "",
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}

func newStore(ctx context.Context, cfg *config.Config, logger *utils.Logger) (services.Store, error) {
	if cfg.Store == config.StoreMemory {
		store := services.NewMemoryStore(time.Now)
		go store.RunCompaction(ctx, cfg.PresenceTTL)
		logger.Warn("Using in-memory presence store; state is lost on restart")
		return store, nil
	}

	client, err := services.NewRedisClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("Connected to Redis successfully")
	return services.NewRedisStore(client), nil
}
