package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rail-service/cctp_bridge/internal/api/handlers"
	"github.com/rail-service/cctp_bridge/internal/api/middleware"
	"github.com/rail-service/cctp_bridge/internal/domain/registry"
	"github.com/rail-service/cctp_bridge/internal/infrastructure/di"
	"github.com/rail-service/cctp_bridge/pkg/idempotency"
	"github.com/rail-service/cctp_bridge/pkg/logger"
	"github.com/rail-service/cctp_bridge/pkg/metrics"
	"github.com/rail-service/cctp_bridge/pkg/ratelimit"
	"github.com/rail-service/cctp_bridge/pkg/tracing"
)

// Version is reported by the health endpoints
var Version = "dev"

// Dependencies are the collaborators the router wires into handlers
type Dependencies struct {
	Logger          *logger.Logger
	Metrics         *metrics.Metrics
	MetricsGatherer prometheus.Gatherer
	AllowedOrigins  []string

	Registry     *registry.Registry
	Transfers    handlers.TransferService
	Balances     handlers.BalanceService
	Fees         handlers.FeeQuoter
	HealthChecks []handlers.HealthCheck

	// Optional
	RateLimiter      ratelimit.Limiter
	IdempotencyStore idempotency.Store
}

// SetupRoutes configures all application routes from the container
func SetupRoutes(container *di.Container) *gin.Engine {
	return NewRouter(Dependencies{
		Logger:           container.Logger,
		Metrics:          container.Metrics,
		MetricsGatherer:  container.MetricsRegistry,
		AllowedOrigins:   container.Config.Server.AllowedOrigins,
		Registry:         container.Registry,
		Transfers:        container.TransferService,
		Balances:         container.BalanceService,
		Fees:             container.CCTPClient,
		HealthChecks:     container.HealthChecks(),
		RateLimiter:      container.RateLimiter,
		IdempotencyStore: container.IdempotencyStore,
	})
}

// NewRouter builds the gin engine
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	zapLog := deps.Logger.Zap()

	// Global middleware, order matters
	router.Use(tracing.HTTPMiddleware())
	router.Use(middleware.RequestID())
	router.Use(middleware.Metrics(deps.Metrics))
	router.Use(middleware.RequestSizeLimit())
	router.Use(middleware.InputValidation())
	router.Use(middleware.Logger(deps.Logger))
	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.CORS(deps.AllowedOrigins))
	router.Use(middleware.SecurityHeaders())

	healthHandler := handlers.NewHealthHandler(deps.HealthChecks, zapLog, Version)
	transferHandlers := handlers.NewTransferHandlers(deps.Transfers, zapLog)
	chainHandlers := handlers.NewChainHandlers(deps.Registry, deps.Fees, zapLog)
	balanceHandlers := handlers.NewBalanceHandlers(deps.Balances, zapLog)

	// Health checks and metrics
	router.GET("/health", healthHandler.Health)
	router.GET("/health/live", healthHandler.Liveness)
	router.GET("/health/ready", healthHandler.Health)
	if deps.MetricsGatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.MetricsGatherer, promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/api/v1")
	if deps.RateLimiter != nil {
		v1.Use(ratelimit.Middleware(deps.RateLimiter, zapLog))
	}
	if deps.IdempotencyStore != nil {
		v1.Use(idempotency.Middleware(deps.IdempotencyStore, zapLog))
	}

	transfers := v1.Group("/transfers")
	{
		transfers.POST("", transferHandlers.StartTransfer)
		transfers.GET("", transferHandlers.ListTransfers)
		transfers.GET("/:id", transferHandlers.GetTransfer)
		transfers.POST("/:id/cancel", transferHandlers.CancelTransfer)
		transfers.POST("/:id/resume", transferHandlers.ResumeTransfer)
		transfers.GET("/:id/events", transferHandlers.StreamEvents)
	}

	v1.GET("/chains", chainHandlers.ListChains)
	v1.GET("/chains/:id", chainHandlers.GetChain)
	v1.GET("/fees", chainHandlers.GetFees)

	balances := v1.Group("/balances")
	{
		balances.GET("/:address", balanceHandlers.GetBalances)
		balances.POST("/:address/refresh", balanceHandlers.RefreshBalance)
	}

	return router
}
