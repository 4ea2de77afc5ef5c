package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rail-service/cctp_bridge/internal/domain/entities"
	domainerrors "github.com/rail-service/cctp_bridge/internal/domain/errors"
	"github.com/rail-service/cctp_bridge/internal/infrastructure/adapters/cctp"
)

// Standard error codes for consistent API responses
const (
	// Validation errors
	ErrCodeInvalidRequest  = "INVALID_REQUEST"
	ErrCodeValidationError = "VALIDATION_ERROR"
	ErrCodeInvalidID       = "INVALID_ID"
	ErrCodeInvalidChain    = "INVALID_CHAIN"
	ErrCodeInvalidAddress  = "INVALID_ADDRESS"
	ErrCodeInvalidAmount   = "INVALID_AMOUNT"
	ErrCodeInvalidHook     = "INVALID_HOOK"

	// Resource errors
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeTransferNotFound = "TRANSFER_NOT_FOUND"
	ErrCodeConflict         = "CONFLICT"

	// Server errors
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeUpstreamError      = "UPSTREAM_ERROR"
	ErrCodeTimeout            = "TIMEOUT"
	ErrCodeFeesUnavailable    = "FEES_UNAVAILABLE"
)

// Error messages as constants for consistency
const (
	MsgInvalidRequest     = "Invalid request payload"
	MsgInternalError      = "Internal server error"
	MsgServiceUnavailable = "Service temporarily unavailable"
)

// ErrorResponseBuilder provides a fluent interface for building error responses
type ErrorResponseBuilder struct {
	status  int
	code    string
	message string
	details map[string]interface{}
}

// NewError creates a new ErrorResponseBuilder
func NewError(status int, code string) *ErrorResponseBuilder {
	return &ErrorResponseBuilder{
		status: status,
		code:   code,
	}
}

// Message sets the error message
func (e *ErrorResponseBuilder) Message(msg string) *ErrorResponseBuilder {
	e.message = msg
	return e
}

// Detail adds a single detail to the error response
func (e *ErrorResponseBuilder) Detail(key string, value interface{}) *ErrorResponseBuilder {
	if e.details == nil {
		e.details = make(map[string]interface{})
	}
	e.details[key] = value
	return e
}

// Details merges details into the error response
func (e *ErrorResponseBuilder) Details(details map[string]interface{}) *ErrorResponseBuilder {
	for k, v := range details {
		e.Detail(k, v)
	}
	return e
}

// Send sends the error response, stamping the request id when one is known
func (e *ErrorResponseBuilder) Send(c *gin.Context) {
	if requestID := getRequestID(c); requestID != "" {
		e.Detail("request_id", requestID)
	}
	c.JSON(e.status, entities.ErrorResponse{
		Code:    e.code,
		Message: e.message,
		Details: e.details,
	})
}

// SendBadRequest sends a 400 Bad Request error
func SendBadRequest(c *gin.Context, code, message string, details ...map[string]interface{}) {
	b := NewError(http.StatusBadRequest, code).Message(message)
	if len(details) > 0 {
		b.Details(details[0])
	}
	b.Send(c)
}

// SendNotFound sends a 404 Not Found error
func SendNotFound(c *gin.Context, code, message string) {
	NewError(http.StatusNotFound, code).Message(message).Send(c)
}

// SendInternalError sends a 500 Internal Server Error
func SendInternalError(c *gin.Context, code, message string) {
	NewError(http.StatusInternalServerError, code).Message(message).Send(c)
}

// SendServiceUnavailable sends a 503 Service Unavailable error
func SendServiceUnavailable(c *gin.Context, message string) {
	NewError(http.StatusServiceUnavailable, ErrCodeServiceUnavailable).Message(message).Send(c)
}

// SendSuccess sends a 200 OK response with data
func SendSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// SendAccepted sends a 202 Accepted response with data
func SendAccepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, data)
}

// SendInvalidField sends an error for a specific invalid field
func SendInvalidField(c *gin.Context, field, message string) {
	NewError(http.StatusBadRequest, ErrCodeValidationError).
		Message(message).
		Detail("field", field).
		Send(c)
}

// StatusFor maps an error from the domain or an adapter to an HTTP status
func StatusFor(err error) int {
	var apiErr *cctp.ErrorResponse
	switch {
	case errors.Is(err, domainerrors.ErrInvalidRequest),
		domainerrors.IsInvalidInput(err),
		errors.Is(err, domainerrors.ErrUnknownFunction),
		errors.Is(err, domainerrors.ErrChainNotRegistered):
		return http.StatusBadRequest
	case domainerrors.IsNotFound(err):
		return http.StatusNotFound
	case domainerrors.IsConflict(err):
		return http.StatusConflict
	case errors.Is(err, domainerrors.ErrUserRejected):
		return http.StatusForbidden
	case errors.Is(err, domainerrors.ErrProviderUnavailable),
		errors.Is(err, domainerrors.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domainerrors.ErrNetwork), errors.As(err, &apiErr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// RespondError writes err as an ErrorResponse. Domain errors keep their code and details;
// anything unclassified is reported as an internal error without leaking its text.
func RespondError(c *gin.Context, err error) {
	status := StatusFor(err)

	var domainErr *domainerrors.DomainError
	var apiErr *cctp.ErrorResponse
	switch {
	case errors.As(err, &domainErr):
		NewError(status, domainerrors.CodeFor(err)).
			Message(domainErr.Error()).
			Details(domainErr.Details).
			Send(c)
	case errors.As(err, &apiErr):
		NewError(status, ErrCodeUpstreamError).
			Message("Attestation service error").
			Detail("upstream_status", apiErr.StatusCode).
			Send(c)
	case status == http.StatusGatewayTimeout:
		NewError(status, ErrCodeTimeout).Message("Request timed out").Send(c)
	default:
		// the cause reaches the request log, never the client
		internalErr := domainerrors.InternalError(MsgInternalError, err)
		_ = c.Error(internalErr)
		SendInternalError(c, internalErr.Code, internalErr.Message)
	}
}
