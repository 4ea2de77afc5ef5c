package wallet

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// Provider is an injected wallet provider: request/response methods plus notifications
type Provider interface {
	// Request invokes method and decodes the response into result (which may be nil)
	Request(ctx context.Context, result interface{}, method string, params ...interface{}) error

	// On registers a handler for a notification and returns a function that removes it
	On(event string, handler func(payload interface{})) (unsubscribe func())
}

// ChainScopedProvider can serve reads for a chain other than the active one
type ChainScopedProvider interface {
	Provider
	RequestOn(ctx context.Context, chainID uint64, result interface{}, method string, params ...interface{}) error
}

// ChainClient is the adapter the transfer and balance services depend on
type ChainClient interface {
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	ChainID(ctx context.Context) (uint64, error)
	SwitchChain(ctx context.Context, chainID uint64) error
	EnsureChain(ctx context.Context, chainID uint64) error
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)
	CallOn(ctx context.Context, chainID uint64, to common.Address, data []byte) ([]byte, error)
	SendTransaction(ctx context.Context, from, to common.Address, data []byte) (common.Hash, error)
	GetReceipt(ctx context.Context, txHash common.Hash) (*Receipt, error)
	GetReceiptOn(ctx context.Context, chainID uint64, txHash common.Hash) (*Receipt, error)
}

// Ensure Client implements ChainClient interface
var _ ChainClient = (*Client)(nil)
