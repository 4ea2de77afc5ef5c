package balance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/rail-service/cctp_bridge/internal/domain/entities"
	"github.com/rail-service/cctp_bridge/internal/domain/registry"
	"github.com/rail-service/cctp_bridge/internal/infrastructure/adapters/calldata"
	"github.com/rail-service/cctp_bridge/internal/infrastructure/adapters/wallet"
	"github.com/rail-service/cctp_bridge/pkg/logger"
	"github.com/rail-service/cctp_bridge/pkg/metrics"
)

// Balance read sources
const (
	SourceLive    = "live"
	SourceStored  = "stored"
	SourceRefresh = "refresh"
)

// Service aggregates USDC balances across registered chains.
// Only the wallet's active chain is read live; other chains report the last stored value.
type Service struct {
	registry *registry.Registry
	chain    wallet.ChainClient
	store    Store
	metrics  *metrics.Metrics
	logger   *logger.Logger

	mu       sync.Mutex
	decimals map[uint64]int32
}

// NewService creates a new balance service
func NewService(reg *registry.Registry, chain wallet.ChainClient, store Store, m *metrics.Metrics, log *logger.Logger) *Service {
	if store == nil {
		store = NewMemoryStore()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		registry: reg,
		chain:    chain,
		store:    store,
		metrics:  m,
		logger:   log,
		decimals: make(map[uint64]int32),
	}
}

// GetBalance returns a live balance for the active chain and the last known entry otherwise
func (s *Service) GetBalance(ctx context.Context, account common.Address, chainID uint64) (entities.BalanceEntry, error) {
	cfg, err := s.registry.ByChainID(chainID)
	if err != nil {
		return entities.BalanceEntry{}, err
	}

	active, err := s.chain.ChainID(ctx)
	if err != nil {
		s.logger.Warn("Active chain unknown, using stored balance", "chain_id", chainID, "error", err)
		return s.stored(ctx, account, chainID), nil
	}
	if active != chainID {
		return s.stored(ctx, account, chainID), nil
	}

	entry, err := s.readLive(ctx, account, cfg, s.activeReader(chainID, cfg.USDC))
	if err != nil {
		if ctx.Err() != nil {
			return entities.BalanceEntry{}, ctx.Err()
		}
		s.logger.Warn("Live balance read failed, using stored balance", "chain_id", chainID, "error", err)
		return s.stored(ctx, account, chainID), nil
	}
	s.metrics.RecordBalanceRead(SourceLive)
	return entry, nil
}

// Refresh reads the balance on chainID without switching the wallet's active chain.
// When the provider cannot read a non-active chain the stored entry is returned.
func (s *Service) Refresh(ctx context.Context, account common.Address, chainID uint64) (entities.BalanceEntry, error) {
	cfg, err := s.registry.ByChainID(chainID)
	if err != nil {
		return entities.BalanceEntry{}, err
	}

	entry, err := s.readLive(ctx, account, cfg, func(ctx context.Context, data []byte) ([]byte, error) {
		return s.chain.CallOn(ctx, chainID, cfg.USDC, data)
	})
	if errors.Is(err, wallet.ErrChainScopedUnsupported) {
		return s.GetBalance(ctx, account, chainID)
	}
	if err != nil {
		return entities.BalanceEntry{}, err
	}

	s.metrics.RecordBalanceRead(SourceRefresh)
	s.logger.Debug("Balance refreshed", "chain_id", chainID, "amount", entry.Amount.String())
	return entry, nil
}

// Snapshot returns one entry per registered chain for account
func (s *Service) Snapshot(ctx context.Context, account common.Address) entities.BalanceSnapshot {
	snapshot := make(entities.BalanceSnapshot)
	for _, cfg := range s.registry.Chains() {
		entry, err := s.GetBalance(ctx, account, cfg.ChainID)
		if err != nil {
			s.logger.Warn("Balance unavailable", "chain_id", cfg.ChainID, "error", err)
			entry = entities.BalanceEntry{ChainID: cfg.ChainID, Amount: decimal.Zero}
		}
		snapshot[cfg.ChainID] = entry
	}
	return snapshot
}

func (s *Service) stored(ctx context.Context, account common.Address, chainID uint64) entities.BalanceEntry {
	s.metrics.RecordBalanceRead(SourceStored)

	entry, ok, err := s.store.Get(ctx, account, chainID)
	if err != nil {
		s.logger.Warn("Failed to load stored balance", "chain_id", chainID, "error", err)
	}
	if !ok || err != nil {
		return entities.BalanceEntry{ChainID: chainID, Amount: decimal.Zero}
	}
	entry.Live = false
	return entry
}

type reader func(ctx context.Context, data []byte) ([]byte, error)

// activeReader pins reads to chainID so a concurrent chain switch cannot redirect them.
// Providers without chain-scoped reads fall back to the active chain.
func (s *Service) activeReader(chainID uint64, to common.Address) reader {
	scoped := true
	return func(ctx context.Context, data []byte) ([]byte, error) {
		if scoped {
			ret, err := s.chain.CallOn(ctx, chainID, to, data)
			if !errors.Is(err, wallet.ErrChainScopedUnsupported) {
				return ret, err
			}
			scoped = false
		}
		return s.chain.Call(ctx, to, data)
	}
}

func (s *Service) readLive(ctx context.Context, account common.Address, cfg entities.ChainConfig, read reader) (entities.BalanceEntry, error) {
	data, err := calldata.Encode(calldata.BalanceOf{Account: account})
	if err != nil {
		return entities.BalanceEntry{}, err
	}
	ret, err := read(ctx, data)
	if err != nil {
		return entities.BalanceEntry{}, err
	}
	units, err := calldata.DecodeUint256(ret)
	if err != nil {
		return entities.BalanceEntry{}, fmt.Errorf("decode balanceOf: %w", err)
	}

	entry := entities.BalanceEntry{
		ChainID:   cfg.ChainID,
		Amount:    decimal.NewFromBigInt(units, -s.tokenDecimals(ctx, cfg, read)),
		Live:      true,
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.store.Put(ctx, account, entry); err != nil {
		s.logger.Warn("Failed to store balance", "chain_id", cfg.ChainID, "error", err)
	}
	return entry, nil
}

// tokenDecimals reads decimals() once per chain, falling back to the USDC default without caching
func (s *Service) tokenDecimals(ctx context.Context, cfg entities.ChainConfig, read reader) int32 {
	s.mu.Lock()
	d, ok := s.decimals[cfg.ChainID]
	s.mu.Unlock()
	if ok {
		return d
	}

	data, err := calldata.Encode(calldata.Decimals{})
	if err != nil {
		return entities.USDCDecimals
	}
	ret, err := read(ctx, data)
	if err != nil {
		s.logger.Debug("decimals() read failed, assuming USDC default", "chain_id", cfg.ChainID, "error", err)
		return entities.USDCDecimals
	}
	v, err := calldata.DecodeUint256(ret)
	if err != nil || !v.IsInt64() || v.Int64() > 36 {
		return entities.USDCDecimals
	}

	d = int32(v.Int64())
	s.mu.Lock()
	s.decimals[cfg.ChainID] = d
	s.mu.Unlock()
	return d
}
