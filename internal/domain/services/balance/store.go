package balance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rail-service/cctp_bridge/internal/domain/entities"
	"github.com/rail-service/cctp_bridge/internal/infrastructure/cache"
)

// Store keeps the last known balance per account and chain
type Store interface {
	Put(ctx context.Context, account common.Address, entry entities.BalanceEntry) error
	Get(ctx context.Context, account common.Address, chainID uint64) (entities.BalanceEntry, bool, error)
}

type storeKey struct {
	account common.Address
	chainID uint64
}

// MemoryStore is a process-local Store
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[storeKey]entities.BalanceEntry
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[storeKey]entities.BalanceEntry)}
}

// Put implements Store
func (m *MemoryStore) Put(_ context.Context, account common.Address, entry entities.BalanceEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[storeKey{account, entry.ChainID}] = entry
	return nil
}

// Get implements Store
func (m *MemoryStore) Get(_ context.Context, account common.Address, chainID uint64) (entities.BalanceEntry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[storeKey{account, chainID}]
	return entry, ok, nil
}

// RedisStore keeps balances in Redis so they survive restarts and are shared between replicas
type RedisStore struct {
	client cache.RedisClient
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed store; ttl of zero keeps entries forever
func NewRedisStore(client cache.RedisClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func balanceKey(account common.Address, chainID uint64) string {
	return fmt.Sprintf("balances:%s:%d", strings.ToLower(account.Hex()), chainID)
}

// Put implements Store
func (s *RedisStore) Put(ctx context.Context, account common.Address, entry entities.BalanceEntry) error {
	return s.client.SetJSON(ctx, balanceKey(account, entry.ChainID), entry, s.ttl)
}

// Get implements Store
func (s *RedisStore) Get(ctx context.Context, account common.Address, chainID uint64) (entities.BalanceEntry, bool, error) {
	var entry entities.BalanceEntry
	err := s.client.GetJSON(ctx, balanceKey(account, chainID), &entry)
	if errors.Is(err, cache.ErrCacheMiss) {
		return entities.BalanceEntry{}, false, nil
	}
	if err != nil {
		return entities.BalanceEntry{}, false, err
	}
	return entry, true, nil
}
