package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/rail-service/cctp_bridge/internal/domain/entities"
	"github.com/rail-service/cctp_bridge/internal/domain/registry"
	"github.com/rail-service/cctp_bridge/internal/infrastructure/cache"
	"github.com/rail-service/cctp_bridge/pkg/ratelimit"
	"github.com/rail-service/cctp_bridge/pkg/secrets"
	"github.com/rail-service/cctp_bridge/pkg/tracing"
)

const rpcURLEnvPrefix = "RPC_URL_"

// Config holds all configuration for the application
type Config struct {
	Environment string          `mapstructure:"environment"`
	LogLevel    string          `mapstructure:"log_level"`
	Server      ServerConfig    `mapstructure:"server"`
	CCTP        CCTPConfig      `mapstructure:"cctp"`
	Transfer    TransferConfig  `mapstructure:"transfer"`
	Provider    ProviderConfig  `mapstructure:"provider"`
	Chains      []ChainOverride `mapstructure:"chains"`
	Balances    BalancesConfig  `mapstructure:"balances"`
	Redis       cache.Config    `mapstructure:"redis"`
	Tracing     tracing.Config  `mapstructure:"tracing"`
	Secrets     secrets.Config  `mapstructure:"secrets"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string           `mapstructure:"host"`
	Port            int              `mapstructure:"port"`
	ReadTimeout     time.Duration    `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration    `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration    `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string         `mapstructure:"allowed_origins"`
	RateLimit       ratelimit.Config `mapstructure:"rate_limit"`
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// CCTPConfig contains Iris attestation API configuration
type CCTPConfig struct {
	Environment  string        `mapstructure:"environment"` // "mainnet" or "sandbox"
	BaseURL      string        `mapstructure:"base_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

// TransferConfig contains orchestrator polling and retention settings
type TransferConfig struct {
	ReceiptPollInterval         time.Duration `mapstructure:"receipt_poll_interval"`
	ReceiptTimeout              time.Duration `mapstructure:"receipt_timeout"`
	FastAttestationInterval     time.Duration `mapstructure:"fast_attestation_interval"`
	StandardAttestationInterval time.Duration `mapstructure:"standard_attestation_interval"`
	AttestationTimeout          time.Duration `mapstructure:"attestation_timeout"`
	EventBuffer                 int           `mapstructure:"event_buffer"`
	Retention                   time.Duration `mapstructure:"retention"`
}

// ProviderConfig contains the JSON-RPC endpoints backing the wallet provider
type ProviderConfig struct {
	RPCURLs        map[uint64]string `mapstructure:"rpc_urls"`
	Accounts       []string          `mapstructure:"accounts"`
	InitialChainID uint64            `mapstructure:"initial_chain_id"`
	MaxRetries     int               `mapstructure:"max_retries"`
	RetryDelay     time.Duration     `mapstructure:"retry_delay"`
}

// AccountAddresses parses the configured wallet accounts
func (p ProviderConfig) AccountAddresses() ([]common.Address, error) {
	out := make([]common.Address, 0, len(p.Accounts))
	for _, a := range p.Accounts {
		if !common.IsHexAddress(a) {
			return nil, fmt.Errorf("invalid wallet account %q", a)
		}
		out = append(out, common.HexToAddress(a))
	}
	return out, nil
}

// ChainOverride replaces the built-in mainnet registry when any are configured
type ChainOverride struct {
	Name               string `mapstructure:"name"`
	ChainID            uint64 `mapstructure:"chain_id"`
	Domain             uint32 `mapstructure:"domain"`
	MessageTransmitter string `mapstructure:"message_transmitter"`
	TokenMessenger     string `mapstructure:"token_messenger"`
	USDC               string `mapstructure:"usdc"`
	ExplorerURL        string `mapstructure:"explorer_url"`
}

// BalancesConfig contains balance snapshot store settings
type BalancesConfig struct {
	UseRedis bool          `mapstructure:"use_redis"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// Registry builds the chain registry from overrides, or the mainnet table when none are set
func (c *Config) Registry() (*registry.Registry, error) {
	if len(c.Chains) == 0 {
		return registry.Mainnet(), nil
	}

	chains := make([]entities.ChainConfig, 0, len(c.Chains))
	for _, o := range c.Chains {
		for field, addr := range map[string]string{
			"message_transmitter": o.MessageTransmitter,
			"token_messenger":     o.TokenMessenger,
			"usdc":                o.USDC,
		} {
			if !common.IsHexAddress(addr) {
				return nil, fmt.Errorf("chain %s: invalid %s %q", o.Name, field, addr)
			}
		}
		chains = append(chains, entities.ChainConfig{
			Name:               o.Name,
			ChainID:            o.ChainID,
			Domain:             o.Domain,
			MessageTransmitter: common.HexToAddress(o.MessageTransmitter),
			TokenMessenger:     common.HexToAddress(o.TokenMessenger),
			USDC:               common.HexToAddress(o.USDC),
			ExplorerURL:        o.ExplorerURL,
		})
	}
	return registry.New(chains)
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors if file doesn't exist)
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	overrideFromEnv(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := rpcURLsFromEnv(&config.Provider, os.Environ()); err != nil {
		return nil, err
	}
	if config.Tracing.Environment == "" {
		config.Tracing.Environment = config.Environment
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")

	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 0) // SSE streams stay open
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.rate_limit.limit", 120)
	v.SetDefault("server.rate_limit.window", time.Minute)

	// CCTP attestation service
	v.SetDefault("cctp.environment", "mainnet")
	v.SetDefault("cctp.base_url", "")
	v.SetDefault("cctp.timeout", 30*time.Second)
	v.SetDefault("cctp.retry_backoff", 500*time.Millisecond)

	// Transfer orchestration
	v.SetDefault("transfer.receipt_poll_interval", 2*time.Second)
	v.SetDefault("transfer.receipt_timeout", 60*time.Second)
	v.SetDefault("transfer.fast_attestation_interval", 2*time.Second)
	v.SetDefault("transfer.standard_attestation_interval", 15*time.Second)
	v.SetDefault("transfer.attestation_timeout", 30*time.Minute)
	v.SetDefault("transfer.event_buffer", 64)
	v.SetDefault("transfer.retention", 24*time.Hour)

	// Wallet provider
	v.SetDefault("provider.max_retries", 3)
	v.SetDefault("provider.retry_delay", 500*time.Millisecond)

	// Balances
	v.SetDefault("balances.use_redis", false)
	v.SetDefault("balances.ttl", 0)

	// Redis
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "cctp_bridge:")

	// Tracing
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.collector_url", "localhost:4317")
	v.SetDefault("tracing.sample_rate", 1.0)

	// Secrets
	v.SetDefault("secrets.provider", "")
	v.SetDefault("secrets.cache_ttl", 5*time.Minute)
	v.SetDefault("secrets.rpc_urls_key", "")
}

func overrideFromEnv(v *viper.Viper) {
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		v.Set("environment", env)
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		v.Set("log_level", level)
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			v.Set("server.port", p)
		}
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		v.Set("server.allowed_origins", splitList(origins))
	}

	// CCTP
	if cctpEnv := os.Getenv("CCTP_ENVIRONMENT"); cctpEnv != "" {
		v.Set("cctp.environment", cctpEnv)
	}
	if cctpBaseURL := os.Getenv("CCTP_BASE_URL"); cctpBaseURL != "" {
		v.Set("cctp.base_url", cctpBaseURL)
	}

	// Wallet provider
	if accounts := os.Getenv("WALLET_ACCOUNT"); accounts != "" {
		v.Set("provider.accounts", splitList(accounts))
	}
	if initial := os.Getenv("WALLET_INITIAL_CHAIN_ID"); initial != "" {
		if id, err := strconv.ParseUint(initial, 10, 64); err == nil {
			v.Set("provider.initial_chain_id", id)
		}
	}

	// Redis
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		v.Set("redis.addr", redisAddr)
		v.Set("redis.enabled", true)
		v.Set("balances.use_redis", true)
	}
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		v.Set("redis.password", redisPassword)
	}

	// Secrets
	if provider := os.Getenv("SECRETS_PROVIDER"); provider != "" {
		v.Set("secrets.provider", provider)
	}
	if region := os.Getenv("AWS_REGION"); region != "" {
		v.Set("secrets.region", region)
	}
	if key := os.Getenv("RPC_URLS_SECRET"); key != "" {
		v.Set("secrets.rpc_urls_key", key)
	}

	// Tracing
	if collector := os.Getenv("OTEL_COLLECTOR_URL"); collector != "" {
		v.Set("tracing.collector_url", collector)
		v.Set("tracing.enabled", true)
	}
}

// rpcURLsFromEnv merges RPC_URL_<CHAINID> variables into the provider endpoints
func rpcURLsFromEnv(p *ProviderConfig, environ []string) error {
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, rpcURLEnvPrefix) || value == "" {
			continue
		}
		chainID, err := strconv.ParseUint(strings.TrimPrefix(key, rpcURLEnvPrefix), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid chain id in %s", key)
		}
		if p.RPCURLs == nil {
			p.RPCURLs = make(map[uint64]string)
		}
		p.RPCURLs[chainID] = value
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func validate(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", config.Server.Port)
	}

	switch config.CCTP.Environment {
	case "mainnet", "sandbox":
	default:
		return fmt.Errorf("cctp environment must be mainnet or sandbox, got %q", config.CCTP.Environment)
	}

	t := config.Transfer
	for name, d := range map[string]time.Duration{
		"receipt_poll_interval":         t.ReceiptPollInterval,
		"receipt_timeout":               t.ReceiptTimeout,
		"fast_attestation_interval":     t.FastAttestationInterval,
		"standard_attestation_interval": t.StandardAttestationInterval,
		"attestation_timeout":           t.AttestationTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("transfer %s must be positive", name)
		}
	}

	switch config.Secrets.Provider {
	case "", "env", "aws":
	default:
		return fmt.Errorf("secrets provider must be env or aws, got %q", config.Secrets.Provider)
	}
	if config.Secrets.RPCURLsKey != "" && !config.Secrets.Enabled() {
		return fmt.Errorf("secrets.rpc_urls_key requires secrets.provider")
	}

	if len(config.Provider.Accounts) == 0 {
		return fmt.Errorf("wallet account is required (set WALLET_ACCOUNT)")
	}
	if _, err := config.Provider.AccountAddresses(); err != nil {
		return err
	}

	if config.Secrets.RPCURLsKey == "" {
		if err := config.validateEndpoints(); err != nil {
			return err
		}
	}

	if config.Balances.UseRedis && !config.Redis.Enabled {
		return fmt.Errorf("balances.use_redis requires redis.enabled")
	}

	return nil
}

// validateEndpoints checks the RPC endpoint table against the chain registry
func (c *Config) validateEndpoints() error {
	if len(c.Provider.RPCURLs) == 0 {
		return fmt.Errorf("at least one RPC endpoint is required (set %s<CHAINID>)", rpcURLEnvPrefix)
	}

	reg, err := c.Registry()
	if err != nil {
		return fmt.Errorf("chain registry: %w", err)
	}
	for chainID := range c.Provider.RPCURLs {
		if !reg.Contains(chainID) {
			return fmt.Errorf("rpc endpoint configured for unregistered chain %d", chainID)
		}
	}
	if id := c.Provider.InitialChainID; id != 0 {
		if _, ok := c.Provider.RPCURLs[id]; !ok {
			return fmt.Errorf("initial chain %d has no rpc endpoint", id)
		}
	}

	return nil
}

// ApplySecrets merges RPC endpoints held in the secret store, then validates the endpoint table.
// Endpoints from the secret take precedence over RPC_URL_<CHAINID> variables.
func (c *Config) ApplySecrets(ctx context.Context, p secrets.Provider) error {
	if key := c.Secrets.RPCURLsKey; key != "" {
		endpoints, err := secrets.RPCEndpoints(ctx, p, key)
		if err != nil {
			return fmt.Errorf("rpc endpoints from secrets: %w", err)
		}
		if c.Provider.RPCURLs == nil {
			c.Provider.RPCURLs = make(map[uint64]string, len(endpoints))
		}
		for chainID, url := range endpoints {
			c.Provider.RPCURLs[chainID] = url
		}
	}
	return c.validateEndpoints()
}
