package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mypeeps/config"
	"mypeeps/config/database"
	"mypeeps/pkg/logger"
	"mypeeps/router"
)

func main() {
	envLoaded := config.LoadEnvFile()

	cfg, err := config.LoadServer()
	if err != nil {
		logger.Init("info")
		logger.Sugar.Fatalf("Invalid configuration: %v", err)
	}
	logger.Init(cfg.LogLevel)
	defer logger.Sync()
	if !envLoaded {
		logger.Sugar.Info("No .env file found, using environment variables from OS")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, dialect, err := database.Connect(ctx, cfg)
	if err != nil {
		logger.Sugar.Fatalf("Database setup failed: %v", err)
	}
	defer db.Close()

	server, err := router.Setup(cfg, db, dialect)
	if err != nil {
		logger.Sugar.Fatalf("Router setup failed: %v", err)
	}

	// The hub owns every live subscription until shutdown.
	hubCtx, stopHub := context.WithCancel(context.Background())
	go server.Hub.Run(hubCtx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Sugar.Infof("My Peeps backend listening on %s (%s)", cfg.Addr, dialect)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Sugar.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Sugar.Info("Shutting down")

	stopHub()
	<-server.Hub.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Sugar.Errorf("Graceful shutdown failed: %v", err)
	}
}
