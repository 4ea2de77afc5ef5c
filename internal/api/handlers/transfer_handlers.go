package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rail-service/cctp_bridge/internal/domain/entities"
	"github.com/rail-service/cctp_bridge/internal/domain/registry"
)

// TransferService is the orchestrator surface the HTTP layer drives
type TransferService interface {
	Start(ctx context.Context, req entities.TransferRequest) (entities.TransferExecution, error)
	Get(id uuid.UUID) (entities.TransferExecution, error)
	List() []entities.TransferExecution
	Cancel(ctx context.Context, id uuid.UUID) (entities.TransferExecution, error)
	Resume(ctx context.Context, id uuid.UUID) (entities.TransferExecution, error)
	Subscribe() (<-chan entities.TransferEvent, func())
}

// StartTransferRequest is the body of POST /api/v1/transfers
type StartTransferRequest struct {
	SourceChainID      uint64       `json:"source_chain_id" validate:"required"`
	DestinationChainID uint64       `json:"destination_chain_id" validate:"required,nefield=SourceChainID"`
	Amount             string       `json:"amount" validate:"required"`
	Recipient          string       `json:"recipient" validate:"required,eth_addr"`
	Mode               string       `json:"mode" validate:"omitempty,oneof=FAST STANDARD fast standard"`
	Hook               *HookRequest `json:"hook,omitempty"`
}

// HookRequest names a post-mint hook by name or tag with an optional hex payload
type HookRequest struct {
	Kind    string `json:"kind" validate:"required"`
	Payload string `json:"payload,omitempty"`
}

// ChainRef identifies a chain in responses
type ChainRef struct {
	Name    string `json:"name"`
	ChainID uint64 `json:"chain_id"`
	Domain  uint32 `json:"domain"`
}

// HookView is the response form of a hook
type HookView struct {
	Kind    string `json:"kind"`
	Tag     string `json:"tag"`
	Payload string `json:"payload,omitempty"`
}

// TransferView is the response form of an execution
type TransferView struct {
	ID            string    `json:"id"`
	Phase         string    `json:"phase"`
	Source        ChainRef  `json:"source"`
	Destination   ChainRef  `json:"destination"`
	Amount        string    `json:"amount"`
	BaseUnits     string    `json:"base_units"`
	Recipient     string    `json:"recipient"`
	Mode          string    `json:"mode"`
	Hook          *HookView `json:"hook,omitempty"`
	ApprovalTx    string    `json:"approval_tx,omitempty"`
	ApprovalTxURL string    `json:"approval_tx_url,omitempty"`
	BurnTx        string    `json:"burn_tx,omitempty"`
	BurnTxURL     string    `json:"burn_tx_url,omitempty"`
	Nonce         string    `json:"nonce,omitempty"`
	Message       string    `json:"message,omitempty"`
	Attestation   string    `json:"attestation,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
	LastErrorCode string    `json:"last_error_code,omitempty"`
	FailedPhase   string    `json:"failed_phase,omitempty"`
	Warnings      []string  `json:"warnings,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewTransferView renders an execution with explorer links for its transactions
func NewTransferView(exec entities.TransferExecution) TransferView {
	req := exec.Request
	view := TransferView{
		ID:            exec.ID.String(),
		Phase:         string(exec.Phase),
		Source:        ChainRef{Name: req.Source.Name, ChainID: req.Source.ChainID, Domain: req.Source.Domain},
		Destination:   ChainRef{Name: req.Destination.Name, ChainID: req.Destination.ChainID, Domain: req.Destination.Domain},
		Amount:        req.Amount.String(),
		Recipient:     req.Recipient.Hex(),
		Mode:          string(req.Mode),
		ApprovalTx:    exec.ApprovalTx,
		ApprovalTxURL: req.Source.TxURL(exec.ApprovalTx),
		BurnTx:        exec.BurnTx,
		BurnTxURL:     req.Source.TxURL(exec.BurnTx),
		Nonce:         exec.Nonce,
		Message:       exec.Message,
		Attestation:   exec.Attestation,
		LastError:     exec.LastError,
		LastErrorCode: exec.LastErrorCode,
		FailedPhase:   string(exec.FailedPhase),
		Warnings:      exec.Warnings,
		CreatedAt:     exec.CreatedAt,
		UpdatedAt:     exec.UpdatedAt,
	}
	if exec.BaseUnits != nil {
		view.BaseUnits = exec.BaseUnits.String()
	}
	if req.Hook != nil {
		name, _ := registry.HookName(req.Hook.Kind)
		view.Hook = &HookView{Kind: name, Tag: fmt.Sprintf("0x%02x", byte(req.Hook.Kind))}
		if len(req.Hook.Payload) > 0 {
			view.Hook.Payload = hexutil.Encode(req.Hook.Payload)
		}
	}
	return view
}

// TransferHandlers serves the transfer lifecycle endpoints
type TransferHandlers struct {
	service   TransferService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTransferHandlers creates a new TransferHandlers instance
func NewTransferHandlers(service TransferService, logger *zap.Logger) *TransferHandlers {
	return &TransferHandlers{
		service:   service,
		validator: validator.New(),
		logger:    logger,
	}
}

// StartTransfer handles POST /api/v1/transfers
func (h *TransferHandlers) StartTransfer(c *gin.Context) {
	var body StartTransferRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		SendBadRequest(c, ErrCodeInvalidRequest, MsgInvalidRequest)
		return
	}
	if err := h.validator.Struct(&body); err != nil {
		SendBadRequest(c, ErrCodeValidationError, "Request validation failed",
			map[string]interface{}{"validation_errors": fieldErrors(err)})
		return
	}

	req, ok := h.toTransferRequest(c, body)
	if !ok {
		return
	}

	exec, err := h.service.Start(c.Request.Context(), req)
	if err != nil {
		h.logger.Warn("Transfer rejected",
			zap.String("request_id", getRequestID(c)),
			zap.Error(err))
		RespondError(c, err)
		return
	}

	h.logger.Info("Transfer accepted",
		zap.String("request_id", getRequestID(c)),
		zap.String("execution_id", exec.ID.String()))
	c.Header("Location", "/api/v1/transfers/"+exec.ID.String())
	SendAccepted(c, NewTransferView(exec))
}

// ListTransfers handles GET /api/v1/transfers
func (h *TransferHandlers) ListTransfers(c *gin.Context) {
	phase := strings.ToUpper(c.Query("phase"))

	execs := h.service.List()
	views := make([]TransferView, 0, len(execs))
	for _, exec := range execs {
		if phase != "" && string(exec.Phase) != phase {
			continue
		}
		views = append(views, NewTransferView(exec))
	}
	SendSuccess(c, gin.H{"transfers": views, "count": len(views)})
}

// GetTransfer handles GET /api/v1/transfers/:id
func (h *TransferHandlers) GetTransfer(c *gin.Context) {
	id, ok := h.transferID(c)
	if !ok {
		return
	}
	exec, err := h.service.Get(id)
	if err != nil {
		RespondError(c, err)
		return
	}
	SendSuccess(c, NewTransferView(exec))
}

// CancelTransfer handles POST /api/v1/transfers/:id/cancel
func (h *TransferHandlers) CancelTransfer(c *gin.Context) {
	id, ok := h.transferID(c)
	if !ok {
		return
	}
	exec, err := h.service.Cancel(c.Request.Context(), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	h.logger.Info("Transfer cancelled via API",
		zap.String("request_id", getRequestID(c)),
		zap.String("execution_id", id.String()))
	SendSuccess(c, NewTransferView(exec))
}

// ResumeTransfer handles POST /api/v1/transfers/:id/resume
func (h *TransferHandlers) ResumeTransfer(c *gin.Context) {
	id, ok := h.transferID(c)
	if !ok {
		return
	}
	exec, err := h.service.Resume(c.Request.Context(), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	SendAccepted(c, NewTransferView(exec))
}

// StreamEvents handles GET /api/v1/transfers/:id/events as server-sent events.
// The stream opens with the current state and closes after a terminal phase.
func (h *TransferHandlers) StreamEvents(c *gin.Context) {
	id, ok := h.transferID(c)
	if !ok {
		return
	}

	events, unsubscribe := h.service.Subscribe()
	defer unsubscribe()

	exec, err := h.service.Get(id)
	if err != nil {
		RespondError(c, err)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.SSEvent("transfer", NewTransferView(exec))
	c.Writer.Flush()
	if exec.Phase.IsTerminal() {
		return
	}

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, open := <-events:
			if !open {
				return
			}
			if ev.ExecutionID != id {
				continue
			}
			c.SSEvent("phase", ev)
			c.Writer.Flush()
			if ev.Phase.IsTerminal() {
				return
			}
		}
	}
}

func (h *TransferHandlers) transferID(c *gin.Context) (uuid.UUID, bool) {
	id, err := parseUUID(c.Param("id"))
	if err != nil {
		SendBadRequest(c, ErrCodeInvalidID, "Invalid transfer ID format")
		return uuid.Nil, false
	}
	return id, true
}

func (h *TransferHandlers) toTransferRequest(c *gin.Context, body StartTransferRequest) (entities.TransferRequest, bool) {
	amount, err := decimal.NewFromString(strings.TrimSpace(body.Amount))
	if err != nil {
		SendInvalidField(c, "amount", "Amount must be a decimal number")
		return entities.TransferRequest{}, false
	}

	req := entities.TransferRequest{
		Source:      entities.ChainConfig{ChainID: body.SourceChainID},
		Destination: entities.ChainConfig{ChainID: body.DestinationChainID},
		Amount:      amount,
		Recipient:   common.HexToAddress(body.Recipient),
		Mode:        entities.TransferMode(strings.ToUpper(body.Mode)),
	}

	if body.Hook != nil {
		kind, err := registry.ParseHookKind(body.Hook.Kind)
		if err != nil {
			RespondError(c, err)
			return entities.TransferRequest{}, false
		}
		var payload []byte
		if body.Hook.Payload != "" {
			payload, err = hexutil.Decode(body.Hook.Payload)
			if err != nil {
				SendInvalidField(c, "hook.payload", "Hook payload must be 0x-prefixed hex")
				return entities.TransferRequest{}, false
			}
		}
		req.Hook = &entities.HookSpec{Kind: kind, Payload: payload}
	}
	return req, true
}

func fieldErrors(err error) map[string]string {
	out := make(map[string]string)
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		out["request"] = err.Error()
		return out
	}
	for _, fe := range verrs {
		out[fe.Field()] = fe.Tag()
	}
	return out
}
