package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/timmy/doclens/internal/api"
	"github.com/timmy/doclens/internal/api/middleware"
	"github.com/timmy/doclens/internal/app"
	"github.com/timmy/doclens/internal/config"
	"github.com/timmy/doclens/internal/logger"
)

func main() {
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.New(app.LoggerConfig(&cfg.Log))
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(appLogger.WithContext(context.Background()))
	defer cancel()

	application, err := app.New(ctx, cfg)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize application")
	}

	if err := application.StartIngestion(ctx, cfg.Ingest.RecoverOnStart); err != nil {
		appLogger.WithError(err).Fatal("Failed to start ingestion")
	}

	router := api.SetupRouter(&api.Services{
		Documents: application.Dispatcher,
		Status:    application.Status,
		Chats:     application.Chats,
		QueueLen:  application.Dispatcher.QueueLen,
	}, &api.RouterConfig{
		Mode:           cfg.Server.Mode,
		UserHeader:     cfg.Auth.UserHeader,
		MaxUploadBytes: cfg.Server.MaxUploadMB << 20,
		StreamPoll:     cfg.Server.StreamPoll,
		CORS: middleware.CORSConfig{
			AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
			AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
		},
		Logger: appLogger,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		appLogger.WithField("port", cfg.Server.Port).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}

	// Stop accepting new jobs only after the HTTP layer has drained.
	if err := application.Close(cfg.Server.ShutdownGrace); err != nil {
		appLogger.WithError(err).Error("Ingestion did not stop cleanly")
	}
	cancel()

	appLogger.Info("Server exited")
}
