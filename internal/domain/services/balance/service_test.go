package balance

import (
	"context"
	"errors"
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rail-service/cctp_bridge/internal/domain/entities"
	domainerrors "github.com/rail-service/cctp_bridge/internal/domain/errors"
	"github.com/rail-service/cctp_bridge/internal/domain/registry"
	"github.com/rail-service/cctp_bridge/internal/infrastructure/adapters/calldata"
	"github.com/rail-service/cctp_bridge/internal/infrastructure/adapters/wallet"
	"github.com/rail-service/cctp_bridge/internal/infrastructure/cache"
	"github.com/rail-service/cctp_bridge/pkg/metrics"
)

var account = common.HexToAddress("0x9999999999999999999999999999999999999999")

type MockChainClient struct {
	mock.Mock
}

func (m *MockChainClient) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]common.Address), args.Error(1)
}

func (m *MockChainClient) ChainID(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockChainClient) SwitchChain(ctx context.Context, chainID uint64) error {
	return m.Called(ctx, chainID).Error(0)
}

func (m *MockChainClient) EnsureChain(ctx context.Context, chainID uint64) error {
	return m.Called(ctx, chainID).Error(0)
}

func (m *MockChainClient) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	args := m.Called(ctx, to, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockChainClient) CallOn(ctx context.Context, chainID uint64, to common.Address, data []byte) ([]byte, error) {
	args := m.Called(ctx, chainID, to, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockChainClient) SendTransaction(ctx context.Context, from, to common.Address, data []byte) (common.Hash, error) {
	args := m.Called(ctx, from, to, data)
	return args.Get(0).(common.Hash), args.Error(1)
}

func (m *MockChainClient) GetReceipt(ctx context.Context, txHash common.Hash) (*wallet.Receipt, error) {
	args := m.Called(ctx, txHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Receipt), args.Error(1)
}

func (m *MockChainClient) GetReceiptOn(ctx context.Context, chainID uint64, txHash common.Hash) (*wallet.Receipt, error) {
	args := m.Called(ctx, chainID, txHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Receipt), args.Error(1)
}

// unscoped makes the mock behave like a provider that can only read the active chain
func unscoped(chain *MockChainClient) {
	chain.On("CallOn", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, wallet.ErrChainScopedUnsupported)
}

func uint256(v int64) []byte {
	return common.LeftPadBytes(big.NewInt(v).Bytes(), 32)
}

func encoded(t *testing.T, call calldata.Call) []byte {
	t.Helper()
	data, err := calldata.Encode(call)
	require.NoError(t, err)
	return data
}

func usdcOn(t *testing.T, chainID uint64) common.Address {
	t.Helper()
	cfg, err := registry.Mainnet().ByChainID(chainID)
	require.NoError(t, err)
	return cfg.USDC
}

func TestGetBalanceLiveOnActiveChain(t *testing.T) {
	chain := new(MockChainClient)
	unscoped(chain)
	usdc := usdcOn(t, 8453)
	chain.On("ChainID", mock.Anything).Return(uint64(8453), nil)
	chain.On("Call", mock.Anything, usdc, encoded(t, calldata.BalanceOf{Account: account})).Return(uint256(12_500_000), nil)
	chain.On("Call", mock.Anything, usdc, encoded(t, calldata.Decimals{})).Return(uint256(6), nil).Once()

	m := metrics.New(prometheus.NewRegistry())
	store := NewMemoryStore()
	svc := NewService(registry.Mainnet(), chain, store, m, nil)

	entry, err := svc.GetBalance(context.Background(), account, 8453)
	require.NoError(t, err)
	assert.True(t, entry.Live)
	assert.True(t, decimal.RequireFromString("12.5").Equal(entry.Amount))

	// decimals is cached per chain
	_, err = svc.GetBalance(context.Background(), account, 8453)
	require.NoError(t, err)
	chain.AssertNumberOfCalls(t, "Call", 3)

	stored, ok, err := store.Get(context.Background(), account, 8453)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, stored.Amount.Equal(entry.Amount))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.BalanceReads.WithLabelValues(SourceLive)))
}

func TestGetBalancePinsReadsToRequestedChain(t *testing.T) {
	chain := new(MockChainClient)
	usdc := usdcOn(t, 8453)
	chain.On("ChainID", mock.Anything).Return(uint64(8453), nil)
	chain.On("CallOn", mock.Anything, uint64(8453), usdc, encoded(t, calldata.BalanceOf{Account: account})).Return(uint256(4_000_000), nil)
	chain.On("CallOn", mock.Anything, uint64(8453), usdc, encoded(t, calldata.Decimals{})).Return(uint256(6), nil)

	store := NewMemoryStore()
	svc := NewService(registry.Mainnet(), chain, store, nil, nil)

	entry, err := svc.GetBalance(context.Background(), account, 8453)
	require.NoError(t, err)
	assert.True(t, entry.Live)
	assert.True(t, decimal.NewFromInt(4).Equal(entry.Amount))
	chain.AssertNotCalled(t, "Call", mock.Anything, mock.Anything, mock.Anything)

	stored, ok, err := store.Get(context.Background(), account, 8453)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(8453), stored.ChainID)
}

func TestGetBalanceStoredOnOtherChains(t *testing.T) {
	chain := new(MockChainClient)
	chain.On("ChainID", mock.Anything).Return(uint64(1), nil)

	store := NewMemoryStore()
	seen := time.Now().Add(-time.Hour).UTC()
	require.NoError(t, store.Put(context.Background(), account, entities.BalanceEntry{
		ChainID: 42161, Amount: decimal.NewFromInt(7), Live: true, UpdatedAt: seen,
	}))
	svc := NewService(registry.Mainnet(), chain, store, nil, nil)

	entry, err := svc.GetBalance(context.Background(), account, 42161)
	require.NoError(t, err)
	assert.False(t, entry.Live)
	assert.True(t, decimal.NewFromInt(7).Equal(entry.Amount))
	assert.Equal(t, seen, entry.UpdatedAt)

	entry, err = svc.GetBalance(context.Background(), account, 10)
	require.NoError(t, err)
	assert.False(t, entry.Live)
	assert.True(t, entry.Amount.IsZero())
	assert.True(t, entry.UpdatedAt.IsZero())

	chain.AssertNotCalled(t, "Call", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetBalanceUnregisteredChain(t *testing.T) {
	svc := NewService(registry.Mainnet(), new(MockChainClient), nil, nil, nil)
	_, err := svc.GetBalance(context.Background(), account, 56)
	assert.ErrorIs(t, err, domainerrors.ErrChainNotRegistered)
}

func TestGetBalanceFallsBackWhenReadFails(t *testing.T) {
	chain := new(MockChainClient)
	unscoped(chain)
	chain.On("ChainID", mock.Anything).Return(uint64(1), nil)
	chain.On("Call", mock.Anything, mock.Anything, mock.Anything).Return(nil, domainerrors.ProviderError(domainerrors.ErrNetwork, nil))

	svc := NewService(registry.Mainnet(), chain, nil, nil, nil)
	entry, err := svc.GetBalance(context.Background(), account, 1)
	require.NoError(t, err)
	assert.False(t, entry.Live)
	assert.True(t, entry.Amount.IsZero())
}

func TestDecimalsDefaultNotCached(t *testing.T) {
	chain := new(MockChainClient)
	unscoped(chain)
	usdc := usdcOn(t, 1)
	chain.On("ChainID", mock.Anything).Return(uint64(1), nil)
	chain.On("Call", mock.Anything, usdc, encoded(t, calldata.BalanceOf{Account: account})).Return(uint256(3_000_000), nil)
	chain.On("Call", mock.Anything, usdc, encoded(t, calldata.Decimals{})).Return(nil, errors.New("execution reverted"))

	svc := NewService(registry.Mainnet(), chain, nil, nil, nil)
	entry, err := svc.GetBalance(context.Background(), account, 1)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(3).Equal(entry.Amount))

	_, err = svc.GetBalance(context.Background(), account, 1)
	require.NoError(t, err)
	chain.AssertNumberOfCalls(t, "Call", 4)
}

func TestRefreshUsesChainScopedRead(t *testing.T) {
	chain := new(MockChainClient)
	usdc := usdcOn(t, 137)
	chain.On("CallOn", mock.Anything, uint64(137), usdc, encoded(t, calldata.BalanceOf{Account: account})).Return(uint256(1), nil)
	chain.On("CallOn", mock.Anything, uint64(137), usdc, encoded(t, calldata.Decimals{})).Return(uint256(6), nil)

	m := metrics.New(prometheus.NewRegistry())
	svc := NewService(registry.Mainnet(), chain, nil, m, nil)
	entry, err := svc.Refresh(context.Background(), account, 137)
	require.NoError(t, err)
	assert.True(t, entry.Live)
	assert.True(t, decimal.RequireFromString("0.000001").Equal(entry.Amount))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.BalanceReads.WithLabelValues(SourceRefresh)))
	chain.AssertNotCalled(t, "ChainID", mock.Anything)

	// a later non-active read reports the refreshed value as stale
	chain.On("ChainID", mock.Anything).Return(uint64(1), nil)
	entry, err = svc.GetBalance(context.Background(), account, 137)
	require.NoError(t, err)
	assert.False(t, entry.Live)
	assert.True(t, decimal.RequireFromString("0.000001").Equal(entry.Amount))
}

func TestRefreshWithoutScopedReads(t *testing.T) {
	chain := new(MockChainClient)
	chain.On("CallOn", mock.Anything, uint64(10), mock.Anything, mock.Anything).Return(nil, wallet.ErrChainScopedUnsupported)
	chain.On("ChainID", mock.Anything).Return(uint64(1), nil)

	svc := NewService(registry.Mainnet(), chain, nil, nil, nil)
	entry, err := svc.Refresh(context.Background(), account, 10)
	require.NoError(t, err)
	assert.False(t, entry.Live)
}

func TestSnapshotCoversRegistry(t *testing.T) {
	chain := new(MockChainClient)
	unscoped(chain)
	chain.On("ChainID", mock.Anything).Return(uint64(43114), nil)
	chain.On("Call", mock.Anything, usdcOn(t, 43114), mock.Anything).Return(uint256(6), nil)

	svc := NewService(registry.Mainnet(), chain, nil, nil, nil)
	snapshot := svc.Snapshot(context.Background(), account)

	require.Len(t, snapshot, len(registry.MainnetChains()))
	live := 0
	for chainID, entry := range snapshot {
		assert.Equal(t, chainID, entry.ChainID)
		if entry.Live {
			live++
			assert.Equal(t, uint64(43114), chainID)
		}
	}
	assert.Equal(t, 1, live)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR is required for Redis store tests")
	}

	client, err := cache.NewRedisClient(context.Background(), cache.Config{Addr: addr, KeyPrefix: "cctp_bridge_test:"}, nil)
	require.NoError(t, err)
	defer client.Close()

	store := NewRedisStore(client, time.Minute)
	other := common.HexToAddress("0x0000000000000000000000000000000000000abc")
	defer client.Del(context.Background(), balanceKey(other, 1))

	_, ok, err := store.Get(context.Background(), other, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Put(context.Background(), other, entities.BalanceEntry{ChainID: 1, Amount: decimal.RequireFromString("4.2")}))
	entry, ok, err := store.Get(context.Background(), other, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, decimal.RequireFromString("4.2").Equal(entry.Amount))
}
