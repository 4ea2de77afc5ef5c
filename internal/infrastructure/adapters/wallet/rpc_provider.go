package wallet

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"github.com/rail-service/cctp_bridge/pkg/security"
)

// RPCProvider serves the Provider contract from one JSON-RPC endpoint per chain.
// Chain switching and account access are handled locally; everything else is
// forwarded to the endpoint of the active chain. Signing is left to the node,
// so eth_sendTransaction only works against endpoints that manage the account.
type RPCProvider struct {
	mu       sync.RWMutex
	clients  map[uint64]*rpc.Client
	active   uint64
	accounts []common.Address

	listenerMu sync.Mutex
	listeners  map[string]map[int]func(interface{})
	nextID     int

	logger *zap.Logger
}

// Ensure RPCProvider implements ChainScopedProvider interface
var _ ChainScopedProvider = (*RPCProvider)(nil)

// DialRPCProvider dials every endpoint and returns a provider whose active chain is initial
func DialRPCProvider(ctx context.Context, endpoints map[uint64]string, accounts []common.Address, initial uint64, logger *zap.Logger) (*RPCProvider, error) {
	clients := make(map[uint64]*rpc.Client, len(endpoints))
	if logger == nil {
		logger = zap.NewNop()
	}
	for chainID, url := range endpoints {
		client, err := rpc.DialContext(ctx, url)
		if err != nil {
			for _, c := range clients {
				c.Close()
			}
			return nil, fmt.Errorf("dial chain %d at %s: %s", chainID, security.MaskURL(url), security.MaskString(err.Error()))
		}
		clients[chainID] = client
		logger.Info("RPC endpoint connected",
			zap.Uint64("chain_id", chainID),
			zap.String("endpoint", security.MaskURL(url)))
	}
	return NewRPCProvider(clients, accounts, initial, logger)
}

// NewRPCProvider creates a provider over already connected clients
func NewRPCProvider(clients map[uint64]*rpc.Client, accounts []common.Address, initial uint64, logger *zap.Logger) (*RPCProvider, error) {
	if len(clients) == 0 {
		return nil, fmt.Errorf("at least one rpc endpoint is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, ok := clients[initial]; !ok {
		ids := make([]uint64, 0, len(clients))
		for id := range clients {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		initial = ids[0]
	}

	return &RPCProvider{
		clients:   clients,
		active:    initial,
		accounts:  append([]common.Address(nil), accounts...),
		listeners: make(map[string]map[int]func(interface{})),
		logger:    logger,
	}, nil
}

// Request implements Provider
func (p *RPCProvider) Request(ctx context.Context, result interface{}, method string, params ...interface{}) error {
	switch method {
	case MethodChainID:
		p.mu.RLock()
		active := p.active
		p.mu.RUnlock()
		return decodeInto(result, hexutil.Uint64(active))

	case MethodRequestAccounts, MethodAccounts:
		p.mu.RLock()
		accounts := p.accounts
		p.mu.RUnlock()
		if len(accounts) > 0 {
			return decodeInto(result, accounts)
		}
		return p.forward(ctx, p.activeChain(), result, MethodAccounts)

	case MethodSwitchChain:
		return p.switchChain(params)
	}

	return p.forward(ctx, p.activeChain(), result, method, params...)
}

// RequestOn implements ChainScopedProvider
func (p *RPCProvider) RequestOn(ctx context.Context, chainID uint64, result interface{}, method string, params ...interface{}) error {
	return p.forward(ctx, chainID, result, method, params...)
}

// On implements Provider
func (p *RPCProvider) On(event string, handler func(payload interface{})) func() {
	p.listenerMu.Lock()
	defer p.listenerMu.Unlock()

	if p.listeners[event] == nil {
		p.listeners[event] = make(map[int]func(interface{}))
	}
	id := p.nextID
	p.nextID++
	p.listeners[event][id] = handler

	return func() {
		p.listenerMu.Lock()
		defer p.listenerMu.Unlock()
		delete(p.listeners[event], id)
	}
}

// Close closes every endpoint connection
func (p *RPCProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.clients {
		c.Close()
	}
}

// Shutdown implements graceful.Shutdowner
func (p *RPCProvider) Shutdown(ctx context.Context) error {
	p.Close()
	return nil
}

func (p *RPCProvider) activeChain() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.active
}

func (p *RPCProvider) forward(ctx context.Context, chainID uint64, result interface{}, method string, params ...interface{}) error {
	p.mu.RLock()
	client, ok := p.clients[chainID]
	p.mu.RUnlock()
	if !ok {
		return &RPCError{Code: CodeUnrecognizedChain, Message: fmt.Sprintf("no endpoint for chain %d", chainID)}
	}
	return client.CallContext(ctx, result, method, params...)
}

func (p *RPCProvider) switchChain(params []interface{}) error {
	if len(params) != 1 {
		return &RPCError{Code: -32602, Message: "expected a single chainId parameter"}
	}
	var args switchChainParams
	if err := decodeInto(&args, params[0]); err != nil {
		return &RPCError{Code: -32602, Message: err.Error()}
	}
	target := uint64(args.ChainID)

	p.mu.Lock()
	if _, ok := p.clients[target]; !ok {
		p.mu.Unlock()
		return &RPCError{Code: CodeUnrecognizedChain, Message: fmt.Sprintf("unrecognized chain %d", target)}
	}
	changed := p.active != target
	p.active = target
	p.mu.Unlock()

	if changed {
		p.logger.Info("Active chain switched", zap.Uint64("chain_id", target))
		p.emit(EventChainChanged, hexutil.EncodeUint64(target))
	}
	return nil
}

func (p *RPCProvider) emit(event string, payload interface{}) {
	p.listenerMu.Lock()
	handlers := make([]func(interface{}), 0, len(p.listeners[event]))
	for _, h := range p.listeners[event] {
		handlers = append(handlers, h)
	}
	p.listenerMu.Unlock()

	for _, h := range handlers {
		h(payload)
	}
}
