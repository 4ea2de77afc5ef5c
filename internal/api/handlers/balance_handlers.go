package handlers

import (
	"context"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rail-service/cctp_bridge/internal/domain/entities"
)

// BalanceService reads USDC balances across registered chains
type BalanceService interface {
	GetBalance(ctx context.Context, account common.Address, chainID uint64) (entities.BalanceEntry, error)
	Refresh(ctx context.Context, account common.Address, chainID uint64) (entities.BalanceEntry, error)
	Snapshot(ctx context.Context, account common.Address) entities.BalanceSnapshot
}

// BalanceView is the response form of one balance entry
type BalanceView struct {
	ChainID   uint64     `json:"chain_id"`
	Amount    string     `json:"amount"`
	Live      bool       `json:"live"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func newBalanceView(e entities.BalanceEntry) BalanceView {
	view := BalanceView{ChainID: e.ChainID, Amount: e.Amount.String(), Live: e.Live}
	if !e.UpdatedAt.IsZero() {
		at := e.UpdatedAt
		view.UpdatedAt = &at
	}
	return view
}

// BalanceHandlers serves the balance endpoints
type BalanceHandlers struct {
	service BalanceService
	logger  *zap.Logger
}

// NewBalanceHandlers creates a new BalanceHandlers instance
func NewBalanceHandlers(service BalanceService, logger *zap.Logger) *BalanceHandlers {
	return &BalanceHandlers{service: service, logger: logger}
}

// GetBalances handles GET /api/v1/balances/:address, optionally narrowed by ?chain_id=
func (h *BalanceHandlers) GetBalances(c *gin.Context) {
	account, ok := h.account(c)
	if !ok {
		return
	}

	if raw := c.Query("chain_id"); raw != "" {
		chainID, err := parseChainID(raw)
		if err != nil {
			SendBadRequest(c, ErrCodeInvalidChain, err.Error())
			return
		}
		entry, err := h.service.GetBalance(c.Request.Context(), account, chainID)
		if err != nil {
			RespondError(c, err)
			return
		}
		SendSuccess(c, newBalanceView(entry))
		return
	}

	snapshot := h.service.Snapshot(c.Request.Context(), account)
	views := make([]BalanceView, 0, len(snapshot))
	total := decimal.Zero
	for _, entry := range snapshot {
		views = append(views, newBalanceView(entry))
		total = total.Add(entry.Amount)
	}
	sort.Slice(views, func(i, j int) bool { return views[i].ChainID < views[j].ChainID })

	SendSuccess(c, gin.H{
		"address":  account.Hex(),
		"balances": views,
		"total":    total.String(),
	})
}

// RefreshBalance handles POST /api/v1/balances/:address/refresh?chain_id=
func (h *BalanceHandlers) RefreshBalance(c *gin.Context) {
	account, ok := h.account(c)
	if !ok {
		return
	}
	chainID, err := parseChainID(c.Query("chain_id"))
	if err != nil {
		SendBadRequest(c, ErrCodeInvalidChain, err.Error())
		return
	}

	entry, err := h.service.Refresh(c.Request.Context(), account, chainID)
	if err != nil {
		h.logger.Warn("Balance refresh failed",
			zap.String("request_id", getRequestID(c)),
			zap.Uint64("chain_id", chainID),
			zap.Error(err))
		RespondError(c, err)
		return
	}
	SendSuccess(c, newBalanceView(entry))
}

func (h *BalanceHandlers) account(c *gin.Context) (common.Address, bool) {
	account, err := parseAddress(c.Param("address"))
	if err != nil {
		SendBadRequest(c, ErrCodeInvalidAddress, "Invalid account address")
		return common.Address{}, false
	}
	return account, true
}
