package di

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/rail-service/cctp_bridge/internal/api/handlers"
	"github.com/rail-service/cctp_bridge/internal/domain/registry"
	"github.com/rail-service/cctp_bridge/internal/domain/services/balance"
	"github.com/rail-service/cctp_bridge/internal/domain/services/bridge"
	"github.com/rail-service/cctp_bridge/internal/infrastructure/adapters/cctp"
	"github.com/rail-service/cctp_bridge/internal/infrastructure/adapters/wallet"
	"github.com/rail-service/cctp_bridge/internal/infrastructure/cache"
	"github.com/rail-service/cctp_bridge/internal/infrastructure/config"
	"github.com/rail-service/cctp_bridge/pkg/graceful"
	"github.com/rail-service/cctp_bridge/pkg/idempotency"
	"github.com/rail-service/cctp_bridge/pkg/logger"
	"github.com/rail-service/cctp_bridge/pkg/metrics"
	"github.com/rail-service/cctp_bridge/pkg/ratelimit"
	"github.com/rail-service/cctp_bridge/pkg/retry"
	"github.com/rail-service/cctp_bridge/pkg/secrets"
)

// Container holds every long-lived dependency of the service
type Container struct {
	Config *config.Config
	Logger *logger.Logger
	ZapLog *zap.Logger

	// Observability
	MetricsRegistry *prometheus.Registry
	Metrics         *metrics.Metrics

	// Chain access
	Registry    *registry.Registry
	Provider    *wallet.RPCProvider
	ChainClient *wallet.Client
	CCTPClient  *cctp.Client

	// Optional; nil unless redis.enabled
	RedisClient cache.RedisClient

	// HTTP support stores
	IdempotencyStore idempotency.Store
	RateLimiter      ratelimit.Limiter

	// Domain Services
	TransferService *bridge.Service
	BalanceService  *balance.Service
}

// NewContainer builds the dependency graph from configuration
func NewContainer(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Container, error) {
	zapLog := log.Zap()

	reg, err := cfg.Registry()
	if err != nil {
		return nil, fmt.Errorf("chain registry: %w", err)
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(promRegistry)

	if cfg.Secrets.Enabled() {
		store, err := secrets.NewProvider(ctx, cfg.Secrets)
		if err != nil {
			return nil, fmt.Errorf("secrets provider: %w", err)
		}
		if err := cfg.ApplySecrets(ctx, store); err != nil {
			return nil, err
		}
	}

	accounts, err := cfg.Provider.AccountAddresses()
	if err != nil {
		return nil, err
	}
	provider, err := wallet.DialRPCProvider(ctx, cfg.Provider.RPCURLs, accounts, cfg.Provider.InitialChainID,
		zapLog.Named("provider"))
	if err != nil {
		return nil, fmt.Errorf("wallet provider: %w", err)
	}

	policy := retry.DefaultPolicy()
	policy.MaxRetries = cfg.Provider.MaxRetries
	if cfg.Provider.RetryDelay > 0 {
		policy.InitialDelay = cfg.Provider.RetryDelay
		if policy.InitialDelay > policy.MaxDelay {
			policy.MaxDelay = policy.InitialDelay
		}
	}
	if err := policy.Validate(); err != nil {
		provider.Close()
		return nil, fmt.Errorf("provider retry policy: %w", err)
	}
	chainClient := wallet.NewClient(provider, policy, zapLog.Named("chain"))

	cctpClient := cctp.NewClient(cctp.Config{
		BaseURL:      cfg.CCTP.BaseURL,
		Environment:  cfg.CCTP.Environment,
		Timeout:      cfg.CCTP.Timeout,
		RetryBackoff: cfg.CCTP.RetryBackoff,
	}, zapLog.Named("cctp"))

	c := &Container{
		Config:          cfg,
		Logger:          log,
		ZapLog:          zapLog,
		MetricsRegistry: promRegistry,
		Metrics:         m,
		Registry:        reg,
		Provider:        provider,
		ChainClient:     chainClient,
		CCTPClient:      cctpClient,
	}

	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedisClient(ctx, cfg.Redis, zapLog.Named("redis"))
		if err != nil {
			c.closeEarly()
			return nil, err
		}
		c.RedisClient = redisClient
	}

	if err := c.initializeDomainServices(); err != nil {
		c.closeEarly()
		return nil, err
	}
	c.initializeHTTPSupport()

	return c, nil
}

func (c *Container) initializeDomainServices() error {
	cfg := c.Config

	transferCfg := bridge.Config{
		Timings: bridge.Timings{
			ReceiptPollInterval:         cfg.Transfer.ReceiptPollInterval,
			ReceiptTimeout:              cfg.Transfer.ReceiptTimeout,
			FastAttestationInterval:     cfg.Transfer.FastAttestationInterval,
			StandardAttestationInterval: cfg.Transfer.StandardAttestationInterval,
			AttestationTimeout:          cfg.Transfer.AttestationTimeout,
		},
		EventBuffer: cfg.Transfer.EventBuffer,
		Retention:   cfg.Transfer.Retention,
	}
	transferService, err := bridge.NewService(transferCfg, c.Registry, c.ChainClient, c.CCTPClient,
		c.Metrics, c.ZapLog.Named("transfer"))
	if err != nil {
		return fmt.Errorf("transfer service: %w", err)
	}
	c.TransferService = transferService.WithHookReporter(bridge.AttestedHookReporter{})

	var store balance.Store = balance.NewMemoryStore()
	if cfg.Balances.UseRedis && c.RedisClient != nil {
		store = balance.NewRedisStore(c.RedisClient, cfg.Balances.TTL)
	}
	c.BalanceService = balance.NewService(c.Registry, c.ChainClient, store, c.Metrics,
		c.Logger.With("component", "balance"))

	return nil
}

func (c *Container) initializeHTTPSupport() {
	limits := c.Config.Server.RateLimit
	if c.RedisClient != nil {
		c.IdempotencyStore = idempotency.NewRedisStore(c.RedisClient)
		if limits.Enabled() {
			c.RateLimiter = ratelimit.NewRedisLimiter(c.RedisClient.Client(), limits, c.Config.Redis.KeyPrefix)
		}
		return
	}
	c.IdempotencyStore = idempotency.NewMemoryStore()
	if limits.Enabled() {
		c.RateLimiter = ratelimit.NewLocalLimiter(limits)
	}
}

// HealthChecks returns the dependency probes served under /health
func (c *Container) HealthChecks() []handlers.HealthCheck {
	checks := []handlers.HealthCheck{
		{
			Name:     "wallet",
			Critical: true,
			Check: func(ctx context.Context) error {
				_, err := c.ChainClient.ChainID(ctx)
				return err
			},
		},
	}

	for chainID := range c.Config.Provider.RPCURLs {
		chainID := chainID
		cfg, err := c.Registry.ByChainID(chainID)
		if err != nil {
			continue
		}
		checks = append(checks, handlers.HealthCheck{
			Name: "rpc_" + strings.ToLower(cfg.Name),
			Check: func(ctx context.Context) error {
				var head hexutil.Uint64
				return c.Provider.RequestOn(ctx, chainID, &head, "eth_blockNumber")
			},
		})
	}

	if c.RedisClient != nil {
		checks = append(checks, handlers.HealthCheck{
			Name:  "redis",
			Check: c.RedisClient.Ping,
		})
	}
	return checks
}

// Shutdowners returns the components to stop, in registration order.
// The shutdown manager stops them in reverse, so transfers halt before their connections close.
func (c *Container) Shutdowners() []graceful.Shutdowner {
	out := []graceful.Shutdowner{
		c.Provider,
		graceful.ShutdownFunc(func(context.Context) error {
			c.ChainClient.Close()
			return nil
		}),
	}
	if c.RedisClient != nil {
		out = append(out, graceful.ShutdownFunc(func(context.Context) error {
			return c.RedisClient.Close()
		}))
	}
	return append(out, c.TransferService)
}

func (c *Container) closeEarly() {
	if c.ChainClient != nil {
		c.ChainClient.Close()
	}
	if c.Provider != nil {
		c.Provider.Close()
	}
	if c.RedisClient != nil {
		_ = c.RedisClient.Close()
	}
}
