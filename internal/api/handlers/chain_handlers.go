package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rail-service/cctp_bridge/internal/domain/entities"
	"github.com/rail-service/cctp_bridge/internal/domain/registry"
	"github.com/rail-service/cctp_bridge/internal/infrastructure/adapters/cctp"
)

// FeeQuoter reads the attestation service fee schedule
type FeeQuoter interface {
	GetFees(ctx context.Context, sourceDomain, destDomain uint32) (cctp.FeesResponse, error)
}

var basisPoints = decimal.NewFromInt(10000)

// ChainView is the response form of a registered chain
type ChainView struct {
	Name               string `json:"name"`
	ChainID            uint64 `json:"chain_id"`
	Domain             uint32 `json:"domain"`
	TokenMessenger     string `json:"token_messenger"`
	MessageTransmitter string `json:"message_transmitter"`
	USDC               string `json:"usdc"`
	ExplorerURL        string `json:"explorer_url"`
}

// FeeQuote is the fee for one transfer mode
type FeeQuote struct {
	Mode              string `json:"mode"`
	FinalityThreshold uint32 `json:"finality_threshold"`
	MinimumFeeBps     string `json:"minimum_fee_bps"`
	EstimatedFee      string `json:"estimated_fee,omitempty"`
}

// ChainHandlers serves the registry and fee endpoints
type ChainHandlers struct {
	registry *registry.Registry
	fees     FeeQuoter
	logger   *zap.Logger
}

// NewChainHandlers creates a new ChainHandlers instance
func NewChainHandlers(reg *registry.Registry, fees FeeQuoter, logger *zap.Logger) *ChainHandlers {
	return &ChainHandlers{registry: reg, fees: fees, logger: logger}
}

func newChainView(cfg entities.ChainConfig) ChainView {
	return ChainView{
		Name:               cfg.Name,
		ChainID:            cfg.ChainID,
		Domain:             cfg.Domain,
		TokenMessenger:     cfg.TokenMessenger.Hex(),
		MessageTransmitter: cfg.MessageTransmitter.Hex(),
		USDC:               cfg.USDC.Hex(),
		ExplorerURL:        cfg.ExplorerURL,
	}
}

// ListChains handles GET /api/v1/chains
func (h *ChainHandlers) ListChains(c *gin.Context) {
	chains := h.registry.Chains()
	views := make([]ChainView, 0, len(chains))
	for _, cfg := range chains {
		views = append(views, newChainView(cfg))
	}
	SendSuccess(c, gin.H{"chains": views})
}

// GetChain handles GET /api/v1/chains/:id. The id may be a chain id or a chain name.
func (h *ChainHandlers) GetChain(c *gin.Context) {
	cfg, ok := h.resolveChain(c, c.Param("id"))
	if !ok {
		return
	}
	SendSuccess(c, newChainView(cfg))
}

// GetFees handles GET /api/v1/fees?source=&destination=&amount=
func (h *ChainHandlers) GetFees(c *gin.Context) {
	src, ok := h.resolveChain(c, c.Query("source"))
	if !ok {
		return
	}
	dst, ok := h.resolveChain(c, c.Query("destination"))
	if !ok {
		return
	}
	if src.Domain == dst.Domain {
		SendInvalidField(c, "destination", "Source and destination chains must differ")
		return
	}

	var amount decimal.Decimal
	if raw := c.Query("amount"); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil || !parsed.IsPositive() {
			SendInvalidField(c, "amount", "Amount must be a positive decimal number")
			return
		}
		amount = parsed
	}

	schedule, err := h.fees.GetFees(c.Request.Context(), src.Domain, dst.Domain)
	if err != nil {
		h.logger.Warn("Fee lookup failed",
			zap.String("request_id", getRequestID(c)),
			zap.Uint32("source_domain", src.Domain),
			zap.Uint32("destination_domain", dst.Domain),
			zap.Error(err))
		RespondError(c, err)
		return
	}

	quotes := make([]FeeQuote, 0, 2)
	for _, q := range []struct {
		mode      entities.TransferMode
		threshold uint32
	}{
		{entities.TransferModeFast, cctp.FinalityThresholdFast},
		{entities.TransferModeStandard, cctp.FinalityThresholdStandard},
	} {
		fee, err := schedule.For(q.threshold)
		if errors.Is(err, cctp.ErrNoFees) {
			continue
		}
		quote := FeeQuote{
			Mode:              string(q.mode),
			FinalityThreshold: q.threshold,
			MinimumFeeBps:     fee.MinimumFee.String(),
		}
		if amount.IsPositive() {
			quote.EstimatedFee = amount.Mul(fee.MinimumFee).Div(basisPoints).
				Truncate(entities.USDCDecimals).String()
		}
		quotes = append(quotes, quote)
	}

	if len(quotes) == 0 {
		NewError(http.StatusBadGateway, ErrCodeFeesUnavailable).
			Message("No fee schedule for this route").
			Send(c)
		return
	}

	SendSuccess(c, gin.H{
		"source":      ChainRef{Name: src.Name, ChainID: src.ChainID, Domain: src.Domain},
		"destination": ChainRef{Name: dst.Name, ChainID: dst.ChainID, Domain: dst.Domain},
		"fees":        quotes,
	})
}

func (h *ChainHandlers) resolveChain(c *gin.Context, raw string) (entities.ChainConfig, bool) {
	if raw == "" {
		SendInvalidField(c, "chain", "Chain is required")
		return entities.ChainConfig{}, false
	}
	if cfg, found := h.registry.ByName(raw); found {
		return cfg, true
	}
	id, err := parseChainID(raw)
	if err != nil {
		SendBadRequest(c, ErrCodeInvalidChain, err.Error())
		return entities.ChainConfig{}, false
	}
	cfg, err := h.registry.ByChainID(id)
	if err != nil {
		NewError(http.StatusNotFound, ErrCodeNotFound).
			Message("Chain not registered").
			Detail("chain_id", id).
			Send(c)
		return entities.ChainConfig{}, false
	}
	return cfg, true
}
