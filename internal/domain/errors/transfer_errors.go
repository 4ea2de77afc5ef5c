package errors

import (
	"context"
	"errors"
)

// Transfer error codes
const (
	CodeInvalidRequest          = "INVALID_REQUEST"
	CodeProviderUnavailable     = "PROVIDER_UNAVAILABLE"
	CodeNetworkError            = "NETWORK_ERROR"
	CodeUserRejected            = "USER_REJECTED"
	CodeApprovalSubmissionError = "APPROVAL_SUBMISSION_ERROR"
	CodeBurnSubmissionError     = "BURN_SUBMISSION_ERROR"
	CodeApprovalTimeout         = "APPROVAL_TIMEOUT"
	CodeBurnTimeout             = "BURN_TIMEOUT"
	CodeAttestationTimeout      = "ATTESTATION_TIMEOUT"
	CodeApprovalReverted        = "APPROVAL_REVERTED"
	CodeBurnReverted            = "BURN_REVERTED"
	CodeChainNotRegistered      = "CHAIN_NOT_REGISTERED"
	CodeUnknownFunction         = "UNKNOWN_FUNCTION"
	CodeHookExecutionFailed     = "HOOK_EXECUTION_FAILED"
	CodeNonceNotFound           = "NONCE_NOT_FOUND"
	CodeCancelled               = "TRANSFER_CANCELLED"
)

// Transfer-specific errors
var (
	// Caller and configuration errors
	ErrInvalidRequest     = errors.New("invalid transfer request")
	ErrChainNotRegistered = errors.New("chain not registered")
	ErrUnknownFunction    = errors.New("unknown contract function")

	// Provider errors
	ErrProviderUnavailable = errors.New("wallet provider unavailable")
	ErrNetwork             = errors.New("network error")
	ErrUserRejected        = errors.New("user rejected request")

	// Submission errors
	ErrApprovalSubmission = errors.New("approval submission failed")
	ErrBurnSubmission     = errors.New("burn submission failed")
	ErrApprovalReverted   = errors.New("approval transaction reverted")
	ErrBurnReverted       = errors.New("burn transaction reverted")
	ErrNonceNotFound      = errors.New("message nonce not found in burn receipt")

	// Wait ceilings
	ErrApprovalTimeout    = errors.New("approval receipt timeout")
	ErrBurnTimeout        = errors.New("burn receipt timeout")
	ErrAttestationTimeout = errors.New("attestation timeout")

	// Non-fatal and local bookkeeping
	ErrHookExecutionFailed = errors.New("hook execution failed")
	ErrCancelled           = errors.New("transfer cancelled")
)

var codes = map[error]string{
	ErrInvalidRequest:      CodeInvalidRequest,
	ErrChainNotRegistered:  CodeChainNotRegistered,
	ErrUnknownFunction:     CodeUnknownFunction,
	ErrProviderUnavailable: CodeProviderUnavailable,
	ErrNetwork:             CodeNetworkError,
	ErrUserRejected:        CodeUserRejected,
	ErrApprovalSubmission:  CodeApprovalSubmissionError,
	ErrBurnSubmission:      CodeBurnSubmissionError,
	ErrApprovalReverted:    CodeApprovalReverted,
	ErrBurnReverted:        CodeBurnReverted,
	ErrNonceNotFound:       CodeNonceNotFound,
	ErrApprovalTimeout:     CodeApprovalTimeout,
	ErrBurnTimeout:         CodeBurnTimeout,
	ErrAttestationTimeout:  CodeAttestationTimeout,
	ErrHookExecutionFailed: CodeHookExecutionFailed,
	ErrCancelled:           CodeCancelled,
}

// InvalidRequestError creates an invalid transfer request error
func InvalidRequestError(field, message string) *DomainError {
	return &DomainError{
		Err:     ErrInvalidRequest,
		Code:    CodeInvalidRequest,
		Message: message,
		Details: map[string]interface{}{
			"field": field,
		},
	}
}

// UnknownFunctionError creates an error for an unregistered contract function
func UnknownFunctionError(name string) *DomainError {
	return &DomainError{
		Err:     ErrUnknownFunction,
		Code:    CodeUnknownFunction,
		Message: "unknown contract function: " + name,
		Details: map[string]interface{}{
			"function": name,
		},
	}
}

// ChainNotRegisteredError creates an error for a chain missing from the registry or the provider
func ChainNotRegisteredError(chainID uint64) *DomainError {
	return &DomainError{
		Err:     ErrChainNotRegistered,
		Code:    CodeChainNotRegistered,
		Message: "chain not registered",
		Details: map[string]interface{}{
			"chain_id": chainID,
		},
	}
}

// ProviderError classifies a wallet provider failure into the transfer taxonomy
func ProviderError(kind error, cause error) *DomainError {
	de := NewDomainError(kind, CodeFor(kind), kind.Error()).
		WithRetryable(kind == ErrProviderUnavailable || kind == ErrNetwork)
	if cause != nil {
		de.Message = kind.Error() + ": " + cause.Error()
		de.Details = map[string]interface{}{
			"cause": cause.Error(),
		}
	}
	return de
}

// TransferError creates an error tied to a transfer phase and the last known transaction.
// When cause already carries a terminal provider classification that classification wins.
func TransferError(kind error, phase, txHash string, cause error) *DomainError {
	for _, terminal := range []error{ErrUserRejected, ErrChainNotRegistered} {
		if cause != nil && errors.Is(cause, terminal) {
			kind = terminal
			break
		}
	}

	de := &DomainError{
		Err:     kind,
		Code:    CodeFor(kind),
		Message: kind.Error(),
		Details: map[string]interface{}{
			"phase": phase,
		},
	}
	if txHash != "" {
		de.Details["tx_hash"] = txHash
	}
	if cause != nil {
		de.Message = kind.Error() + ": " + cause.Error()
		de.Details["cause"] = cause.Error()
	}
	return de
}

// CodeFor returns the code registered for a sentinel, falling back to domain error codes
func CodeFor(err error) string {
	if err == nil {
		return ""
	}
	if code, ok := codes[err]; ok {
		return code
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) && domainErr.Code != "" {
		return domainErr.Code
	}
	for sentinel, code := range codes {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	if errors.Is(err, context.Canceled) {
		return CodeCancelled
	}
	return GetErrorCode(err)
}

// IsRetryable reports whether a provider call may be retried with backoff
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) && domainErr.Retryable {
		return true
	}
	return errors.Is(err, ErrProviderUnavailable) || errors.Is(err, ErrNetwork)
}

// IsTimeout reports whether err is one of the bounded-wait ceilings
func IsTimeout(err error) bool {
	return errors.Is(err, ErrApprovalTimeout) ||
		errors.Is(err, ErrBurnTimeout) ||
		errors.Is(err, ErrAttestationTimeout)
}

// IsResumable reports whether a failed transfer may resume polling from its recorded transactions
func IsResumable(err error) bool {
	return IsTimeout(err) || errors.Is(err, ErrCancelled)
}

// IsTerminalProviderError reports errors that must fail a transfer without retry
func IsTerminalProviderError(err error) bool {
	return errors.Is(err, ErrUserRejected) || errors.Is(err, ErrChainNotRegistered)
}
