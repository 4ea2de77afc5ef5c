package bridge

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rail-service/cctp_bridge/internal/domain/entities"
	domainerrors "github.com/rail-service/cctp_bridge/internal/domain/errors"
	"github.com/rail-service/cctp_bridge/internal/domain/registry"
)

// normalizeRequest validates req against the registry and returns it with canonical chain configs
func normalizeRequest(reg *registry.Registry, req entities.TransferRequest) (entities.TransferRequest, error) {
	src, err := reg.ByChainID(req.Source.ChainID)
	if err != nil {
		return req, domainerrors.InvalidRequestError("source_chain",
			fmt.Sprintf("source chain %d is not registered", req.Source.ChainID))
	}
	dst, err := reg.ByChainID(req.Destination.ChainID)
	if err != nil {
		return req, domainerrors.InvalidRequestError("destination_chain",
			fmt.Sprintf("destination chain %d is not registered", req.Destination.ChainID))
	}
	if src.Domain == dst.Domain {
		return req, domainerrors.InvalidRequestError("destination_chain", "source and destination chains must differ")
	}

	if !req.Amount.IsPositive() {
		return req, domainerrors.InvalidRequestError("amount", "amount must be positive")
	}
	if ToBaseUnits(req.Amount).Sign() <= 0 {
		return req, domainerrors.InvalidRequestError("amount", "amount is below the smallest USDC unit")
	}

	if req.Recipient == (common.Address{}) {
		return req, domainerrors.InvalidRequestError("recipient", "recipient address is required")
	}

	if req.Mode == "" {
		req.Mode = entities.TransferModeFast
	}
	if !req.Mode.Valid() {
		return req, domainerrors.InvalidRequestError("mode", fmt.Sprintf("unknown transfer mode %q", req.Mode))
	}

	if err := registry.ValidateHook(req.Hook); err != nil {
		return req, err
	}

	req.Source = src
	req.Destination = dst
	return req, nil
}
