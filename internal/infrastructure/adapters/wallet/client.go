package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	domainerrors "github.com/rail-service/cctp_bridge/internal/domain/errors"
	"github.com/rail-service/cctp_bridge/pkg/retry"
)

// Client implements ChainClient over an injected Provider
type Client struct {
	provider Provider
	retrier  *retry.Retrier
	// sends are only retried when the provider never accepted the request
	sendRetrier *retry.Retrier
	logger      *zap.Logger

	mu          sync.RWMutex
	lastChainID uint64
	chainKnown  bool
	unsubscribe []func()
}

// NewClient creates a new chain client and subscribes to provider notifications
func NewClient(provider Provider, policy retry.Policy, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	sendPolicy := policy
	sendPolicy.RetryableFunc = func(err error) bool {
		return errors.Is(err, domainerrors.ErrProviderUnavailable)
	}

	c := &Client{
		provider:    provider,
		retrier:     retry.NewRetrier(policy, logger),
		sendRetrier: retry.NewRetrier(sendPolicy, logger),
		logger:      logger,
	}

	c.unsubscribe = append(c.unsubscribe,
		provider.On(EventChainChanged, c.onChainChanged),
		provider.On(EventAccountsChanged, func(interface{}) {
			c.logger.Info("Wallet accounts changed")
		}),
	)

	return c
}

// Close removes the provider subscriptions
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, unsub := range c.unsubscribe {
		if unsub != nil {
			unsub()
		}
	}
	c.unsubscribe = nil
}

func (c *Client) onChainChanged(payload interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// invalidate first: a payload we cannot parse must not leave a stale chain cached
	c.chainKnown = false
	if id, ok := parseChainPayload(payload); ok {
		c.lastChainID = id
		c.chainKnown = true
	}
	c.logger.Info("Wallet chain changed",
		zap.Any("payload", payload),
		zap.Bool("parsed", c.chainKnown))
}

// LastKnownChainID returns the chain id cached from the last query or notification
func (c *Client) LastKnownChainID() (uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastChainID, c.chainKnown
}

func (c *Client) request(ctx context.Context, r *retry.Retrier, result interface{}, method string, params ...interface{}) error {
	return r.Do(ctx, func() error {
		return classify(method, c.provider.Request(ctx, result, method, params...))
	})
}

// RequestAccounts asks the wallet for the authorized accounts
func (c *Client) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	if err := c.request(ctx, c.retrier, &accounts, MethodRequestAccounts); err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, domainerrors.ProviderError(domainerrors.ErrUserRejected, errors.New("no accounts authorized"))
	}
	return accounts, nil
}

// ChainID queries the active chain and refreshes the cached value
func (c *Client) ChainID(ctx context.Context) (uint64, error) {
	var id hexutil.Uint64
	if err := c.request(ctx, c.retrier, &id, MethodChainID); err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.lastChainID = uint64(id)
	c.chainKnown = true
	c.mu.Unlock()

	return uint64(id), nil
}

// SwitchChain asks the wallet to make chainID the active chain
func (c *Client) SwitchChain(ctx context.Context, chainID uint64) error {
	params := switchChainParams{ChainID: hexutil.Uint64(chainID)}
	if err := c.request(ctx, c.retrier, nil, MethodSwitchChain, params); err != nil {
		if errors.Is(err, domainerrors.ErrChainNotRegistered) {
			return domainerrors.ChainNotRegisteredError(chainID).WithDetail("cause", err.Error())
		}
		return err
	}

	c.mu.Lock()
	c.chainKnown = false
	c.mu.Unlock()
	return nil
}

// EnsureChain switches to chainID when it is not already active and verifies the result
func (c *Client) EnsureChain(ctx context.Context, chainID uint64) error {
	current, err := c.ChainID(ctx)
	if err != nil {
		return err
	}
	if current == chainID {
		return nil
	}

	c.logger.Info("Switching wallet chain",
		zap.Uint64("from", current),
		zap.Uint64("to", chainID))

	if err := c.SwitchChain(ctx, chainID); err != nil {
		return err
	}

	current, err = c.ChainID(ctx)
	if err != nil {
		return err
	}
	if current != chainID {
		return domainerrors.ProviderError(domainerrors.ErrProviderUnavailable,
			fmt.Errorf("active chain is %d after switching to %d", current, chainID))
	}
	return nil
}

// Call performs a read-only call against the active chain
func (c *Client) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	var out hexutil.Bytes
	args := callArgs{To: to, Data: data}
	if err := c.request(ctx, c.retrier, &out, MethodCall, args, "latest"); err != nil {
		return nil, err
	}
	return out, nil
}

// CallOn performs a read-only call against chainID without changing the active chain
func (c *Client) CallOn(ctx context.Context, chainID uint64, to common.Address, data []byte) ([]byte, error) {
	scoped, ok := c.provider.(ChainScopedProvider)
	if !ok {
		return nil, ErrChainScopedUnsupported
	}

	var out hexutil.Bytes
	args := callArgs{To: to, Data: data}
	err := c.retrier.Do(ctx, func() error {
		return classify(MethodCall, scoped.RequestOn(ctx, chainID, &out, MethodCall, args, "latest"))
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrChainNotRegistered) {
			return nil, domainerrors.ChainNotRegisteredError(chainID)
		}
		return nil, err
	}
	return out, nil
}

// SendTransaction submits a transaction through the wallet and returns its hash
func (c *Client) SendTransaction(ctx context.Context, from, to common.Address, data []byte) (common.Hash, error) {
	var hash common.Hash
	args := callArgs{From: &from, To: to, Data: data}
	if err := c.request(ctx, c.sendRetrier, &hash, MethodSendTransaction, args); err != nil {
		return common.Hash{}, err
	}
	if hash == (common.Hash{}) {
		return common.Hash{}, domainerrors.ProviderError(domainerrors.ErrNetwork, errors.New("empty transaction hash"))
	}

	c.logger.Info("Transaction submitted",
		zap.String("tx_hash", hash.Hex()),
		zap.String("to", to.Hex()))
	return hash, nil
}

// GetReceipt returns the receipt for txHash, or nil when it is not yet mined
func (c *Client) GetReceipt(ctx context.Context, txHash common.Hash) (*Receipt, error) {
	var receipt *Receipt
	if err := c.request(ctx, c.retrier, &receipt, MethodGetTransactionReceipt, txHash); err != nil {
		return nil, err
	}
	return receipt, nil
}

// GetReceiptOn reads a receipt from chainID without changing the active chain
func (c *Client) GetReceiptOn(ctx context.Context, chainID uint64, txHash common.Hash) (*Receipt, error) {
	scoped, ok := c.provider.(ChainScopedProvider)
	if !ok {
		return nil, ErrChainScopedUnsupported
	}

	var receipt *Receipt
	err := c.retrier.Do(ctx, func() error {
		return classify(MethodGetTransactionReceipt, scoped.RequestOn(ctx, chainID, &receipt, MethodGetTransactionReceipt, txHash))
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrChainNotRegistered) {
			return nil, domainerrors.ChainNotRegisteredError(chainID)
		}
		return nil, err
	}
	return receipt, nil
}

func parseChainPayload(payload interface{}) (uint64, bool) {
	switch v := payload.(type) {
	case string:
		if strings.HasPrefix(v, "0x") || strings.HasPrefix(v, "0X") {
			id, err := hexutil.DecodeUint64(strings.ToLower(v))
			return id, err == nil
		}
		var id uint64
		if _, err := fmt.Sscan(v, &id); err != nil {
			return 0, false
		}
		return id, true
	case uint64:
		return v, true
	case hexutil.Uint64:
		return uint64(v), true
	case int:
		return uint64(v), v >= 0
	}
	return 0, false
}
