package entities

import (
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// USDCDecimals is the fixed decimal count of USDC on every supported chain
const USDCDecimals int32 = 6

// ChainConfig describes one CCTP-enabled chain
type ChainConfig struct {
	Name               string         `json:"name" mapstructure:"name"`
	ChainID            uint64         `json:"chain_id" mapstructure:"chain_id"`
	Domain             uint32         `json:"domain" mapstructure:"domain"`
	MessageTransmitter common.Address `json:"message_transmitter" mapstructure:"message_transmitter"`
	TokenMessenger     common.Address `json:"token_messenger" mapstructure:"token_messenger"`
	USDC               common.Address `json:"usdc" mapstructure:"usdc"`
	ExplorerURL        string         `json:"explorer_url" mapstructure:"explorer_url"` // must contain "{tx}"
}

// TxURL renders the explorer link for a transaction on this chain
func (c ChainConfig) TxURL(txHash string) string {
	if c.ExplorerURL == "" || txHash == "" {
		return ""
	}
	return strings.ReplaceAll(c.ExplorerURL, "{tx}", txHash)
}

// TransferMode selects the CCTP settlement speed
type TransferMode string

const (
	TransferModeFast     TransferMode = "FAST"
	TransferModeStandard TransferMode = "STANDARD"
)

// Valid reports whether the mode is one of the known modes
func (m TransferMode) Valid() bool {
	return m == TransferModeFast || m == TransferModeStandard
}

// HookKind is the single byte tag identifying a post-mint hook
type HookKind byte

const (
	HookSwap              HookKind = 0x01
	HookLendingDeposit    HookKind = 0x02
	HookStake             HookKind = 0x03
	HookTreasuryRebalance HookKind = 0x04
)

// HookSpec is an optional action executed on the destination chain as part of the mint
type HookSpec struct {
	Kind    HookKind `json:"kind"`
	Payload []byte   `json:"payload,omitempty"`
}

// EncodedData returns the hook data passed to depositForBurnWithHook: the tag followed by the payload
func (h HookSpec) EncodedData() []byte {
	out := make([]byte, 0, 1+len(h.Payload))
	out = append(out, byte(h.Kind))
	return append(out, h.Payload...)
}

// TransferRequest is the caller's intent for one cross-chain transfer
type TransferRequest struct {
	Source      ChainConfig     `json:"source"`
	Destination ChainConfig     `json:"destination"`
	Amount      decimal.Decimal `json:"amount"`
	Recipient   common.Address  `json:"recipient"`
	Mode        TransferMode    `json:"mode"`
	Hook        *HookSpec       `json:"hook,omitempty"`
}

// UsesHook reports whether the burn must go through depositForBurnWithHook
func (r TransferRequest) UsesHook() bool {
	return r.Hook != nil && r.Mode == TransferModeFast
}

// TransferPhase is the lifecycle phase of a transfer execution
type TransferPhase string

const (
	PhaseIdle                TransferPhase = "IDLE"
	PhaseApproving           TransferPhase = "APPROVING"
	PhaseApproved            TransferPhase = "APPROVED"
	PhaseBurning             TransferPhase = "BURNING"
	PhaseBurned              TransferPhase = "BURNED"
	PhaseAwaitingAttestation TransferPhase = "AWAITING_ATTESTATION"
	PhaseAttested            TransferPhase = "ATTESTED"
	PhaseComplete            TransferPhase = "COMPLETE"
	PhaseFailed              TransferPhase = "FAILED"
)

// IsTerminal reports whether no further transitions are possible
func (p TransferPhase) IsTerminal() bool {
	return p == PhaseComplete || p == PhaseFailed
}

// TransferExecution is the mutable record of one transfer attempt
type TransferExecution struct {
	ID            uuid.UUID       `json:"id"`
	Request       TransferRequest `json:"request"`
	BaseUnits     *big.Int        `json:"base_units"`
	Phase         TransferPhase   `json:"phase"`
	ApprovalTx    string          `json:"approval_tx,omitempty"`
	BurnTx        string          `json:"burn_tx,omitempty"`
	Nonce         string          `json:"nonce,omitempty"`
	Message       string          `json:"message,omitempty"`
	Attestation   string          `json:"attestation,omitempty"`
	LastError     string          `json:"last_error,omitempty"`
	LastErrorCode string          `json:"last_error_code,omitempty"`
	FailedPhase   TransferPhase   `json:"failed_phase,omitempty"`
	Warnings      []string        `json:"warnings,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// LastTx returns the most recent transaction recorded for the execution
func (e *TransferExecution) LastTx() string {
	if e.BurnTx != "" {
		return e.BurnTx
	}
	return e.ApprovalTx
}

// Clone returns a deep copy safe to hand to other goroutines
func (e *TransferExecution) Clone() TransferExecution {
	out := *e
	if e.BaseUnits != nil {
		out.BaseUnits = new(big.Int).Set(e.BaseUnits)
	}
	if e.Request.Hook != nil {
		hook := *e.Request.Hook
		hook.Payload = append([]byte(nil), e.Request.Hook.Payload...)
		out.Request.Hook = &hook
	}
	out.Warnings = append([]string(nil), e.Warnings...)
	return out
}

// TransferEvent is emitted on every phase transition
type TransferEvent struct {
	ExecutionID uuid.UUID     `json:"execution_id"`
	Phase       TransferPhase `json:"phase"`
	TxHash      string        `json:"tx_hash,omitempty"`
	TxURL       string        `json:"tx_url,omitempty"`
	ErrorCode   string        `json:"error_code,omitempty"`
	Message     string        `json:"message,omitempty"`
	At          time.Time     `json:"at"`
}

// BalanceEntry is the last known USDC balance on one chain
type BalanceEntry struct {
	ChainID   uint64          `json:"chain_id"`
	Amount    decimal.Decimal `json:"amount"`
	Live      bool            `json:"live"`
	UpdatedAt time.Time       `json:"updated_at,omitempty"`
}

// BalanceSnapshot maps chain id to balance, rebuilt on demand
type BalanceSnapshot map[uint64]BalanceEntry

// ErrorResponse represents an error response
type ErrorResponse struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
