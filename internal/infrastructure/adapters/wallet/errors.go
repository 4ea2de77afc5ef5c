package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"

	domainerrors "github.com/rail-service/cctp_bridge/internal/domain/errors"
)

// ErrChainScopedUnsupported is returned when the provider can only serve the active chain
var ErrChainScopedUnsupported = errors.New("provider does not support chain-scoped requests")

// classify maps a raw provider failure onto the transfer error taxonomy
func classify(method string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var domainErr *domainerrors.DomainError
	if errors.As(err, &domainErr) {
		return err
	}

	cause := fmt.Errorf("%s: %w", method, err)

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		switch rpcErr.ErrorCode() {
		case CodeUserRejected, CodeUnauthorized:
			return domainerrors.ProviderError(domainerrors.ErrUserRejected, cause)
		case CodeDisconnected, CodeChainDisconnected:
			return domainerrors.ProviderError(domainerrors.ErrProviderUnavailable, cause)
		case CodeUnrecognizedChain:
			return domainerrors.ProviderError(domainerrors.ErrChainNotRegistered, cause)
		}
		return domainerrors.ProviderError(domainerrors.ErrNetwork, cause)
	}

	if errors.Is(err, rpc.ErrClientQuit) {
		return domainerrors.ProviderError(domainerrors.ErrProviderUnavailable, cause)
	}
	return domainerrors.ProviderError(domainerrors.ErrNetwork, cause)
}
