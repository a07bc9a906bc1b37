// Package main is the entry point for the truckboard fleet performance server.
// It loads configuration, wires dependencies, warms the ranking cache from
// disk, schedules periodic data refreshes, and serves the HTTP API until a
// shutdown signal arrives.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/truckboard/truckboard/internal/config"
	"github.com/truckboard/truckboard/internal/di"
	"github.com/truckboard/truckboard/internal/modules/refresh"
	"github.com/truckboard/truckboard/internal/scheduler"
	"github.com/truckboard/truckboard/internal/server"
	"github.com/truckboard/truckboard/pkg/logger"
)

func main() {
	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting truckboard")

	// Wire all dependencies: databases, repositories, services.
	container, err := di.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	// Serve the last persisted rankings immediately; the first refresh will
	// replace them with live data.
	container.RefreshService.WarmFromStore()

	// Schedule periodic refreshes and kick off an initial one so a fresh
	// deployment does not wait for the first cron tick.
	sched := scheduler.New(log)
	refreshJob := refresh.NewJob(container.RefreshService, 5*time.Minute)
	if err := sched.AddJob(cfg.RefreshSchedule, refreshJob); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.RefreshSchedule).Msg("Failed to schedule refresh job")
	}
	sched.Start()

	go func() {
		if err := sched.RunNow(refreshJob); err != nil {
			log.Error().Err(err).Msg("Initial refresh failed, serving persisted data until next cycle")
		}
	}()

	srv := server.New(server.Config{
		Log:       log,
		Config:    cfg,
		ConfigDB:  container.ConfigDB,
		RecordsDB: container.RecordsDB,
		Container: container,
	})

	// Start server in goroutine so the main thread can wait on signals.
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	log.Info().Msg("Shutdown complete")
}
