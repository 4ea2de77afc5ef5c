package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

// ErrNotFound is returned when a secret has no value
var ErrNotFound = errors.New("secret not found")

// Provider resolves named secrets
type Provider interface {
	GetSecret(ctx context.Context, key string) (string, error)
}

// Config selects and tunes the secret backend
type Config struct {
	Provider   string        `mapstructure:"provider"` // "", "env" or "aws"
	Region     string        `mapstructure:"region"`
	Prefix     string        `mapstructure:"prefix"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
	RPCURLsKey string        `mapstructure:"rpc_urls_key"`
}

// Enabled reports whether a backend is configured
func (c Config) Enabled() bool {
	return c.Provider != ""
}

// NewProvider builds the configured backend wrapped in a TTL cache
func NewProvider(ctx context.Context, cfg Config) (Provider, error) {
	var p Provider
	switch cfg.Provider {
	case "env":
		p = NewEnvProvider(cfg.Prefix)
	case "aws":
		awsProvider, err := NewAWSSecretsManagerProvider(ctx, cfg.Region, cfg.Prefix)
		if err != nil {
			return nil, err
		}
		p = awsProvider
	default:
		return nil, fmt.Errorf("unknown secrets provider %q", cfg.Provider)
	}
	if cfg.CacheTTL > 0 {
		p = NewCachedProvider(p, cfg.CacheTTL)
	}
	return p, nil
}

// EnvProvider reads secrets from environment variables
type EnvProvider struct {
	prefix string
}

func NewEnvProvider(prefix string) *EnvProvider {
	return &EnvProvider{prefix: prefix}
}

func (p *EnvProvider) GetSecret(_ context.Context, key string) (string, error) {
	value := os.Getenv(p.prefix + key)
	if value == "" {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return value, nil
}

// CachedProvider memoizes another provider's values for a fixed TTL
type CachedProvider struct {
	provider Provider
	mu       sync.RWMutex
	cache    map[string]cachedSecret
	ttl      time.Duration
}

type cachedSecret struct {
	value     string
	expiresAt time.Time
}

func NewCachedProvider(provider Provider, ttl time.Duration) *CachedProvider {
	return &CachedProvider{
		provider: provider,
		cache:    make(map[string]cachedSecret),
		ttl:      ttl,
	}
}

func (p *CachedProvider) GetSecret(ctx context.Context, key string) (string, error) {
	p.mu.RLock()
	cached, ok := p.cache[key]
	p.mu.RUnlock()
	if ok && time.Now().Before(cached.expiresAt) {
		return cached.value, nil
	}

	value, err := p.provider.GetSecret(ctx, key)
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	p.cache[key] = cachedSecret{value: value, expiresAt: time.Now().Add(p.ttl)}
	p.mu.Unlock()
	return value, nil
}

// ClearCache drops every cached value
func (p *CachedProvider) ClearCache() {
	p.mu.Lock()
	p.cache = make(map[string]cachedSecret)
	p.mu.Unlock()
}

// RPCEndpoints reads a JSON object of chain id to RPC URL, e.g. {"1":"https://...","8453":"https://..."}
func RPCEndpoints(ctx context.Context, p Provider, key string) (map[uint64]string, error) {
	raw, err := p.GetSecret(ctx, key)
	if err != nil {
		return nil, err
	}

	var byName map[string]string
	if err := json.Unmarshal([]byte(raw), &byName); err != nil {
		return nil, fmt.Errorf("secret %s: expected a JSON object of chain id to url: %w", key, err)
	}

	out := make(map[uint64]string, len(byName))
	for id, url := range byName {
		chainID, err := strconv.ParseUint(id, 10, 64)
		if err != nil || chainID == 0 {
			return nil, fmt.Errorf("secret %s: invalid chain id %q", key, id)
		}
		if url == "" {
			return nil, fmt.Errorf("secret %s: empty url for chain %d", key, chainID)
		}
		out[chainID] = url
	}
	return out, nil
}
