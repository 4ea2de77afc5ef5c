package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rail-service/cctp_bridge/internal/api/routes"
	"github.com/rail-service/cctp_bridge/internal/infrastructure/config"
	"github.com/rail-service/cctp_bridge/internal/infrastructure/di"
	"github.com/rail-service/cctp_bridge/pkg/graceful"
	"github.com/rail-service/cctp_bridge/pkg/logger"
	"github.com/rail-service/cctp_bridge/pkg/tracing"
)

const startupTimeout = 30 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	log := logger.New(cfg.LogLevel, cfg.Environment)
	defer func() { _ = log.Sync() }()

	// Initialize OpenTelemetry tracing
	tracingShutdown, err := tracing.InitTracer(context.Background(), cfg.Tracing, log.Zap())
	if err != nil {
		log.Fatal("Failed to initialize tracing", "error", err)
	}
	if cfg.Tracing.Enabled {
		log.Info("OpenTelemetry tracing initialized", "collector_url", cfg.Tracing.CollectorURL)
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Build dependency injection container
	startCtx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	container, err := di.NewContainer(startCtx, cfg, log)
	cancel()
	if err != nil {
		log.Fatal("Failed to create DI container", "error", err)
	}

	router := routes.SetupRoutes(container)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	shutdown := graceful.NewShutdownManager(server, log).WithTimeout(cfg.Server.ShutdownTimeout)
	shutdown.Register(graceful.ShutdownFunc(tracingShutdown))
	for _, s := range container.Shutdowners() {
		shutdown.Register(s)
	}

	go func() {
		log.Info("Starting CCTP bridge server",
			"addr", server.Addr,
			"environment", cfg.Environment,
			"chains", len(container.Registry.Chains()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", "error", err)
		}
	}()

	shutdown.WaitForShutdown()
	log.Info("Server exited")
}
