package cctp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultRetryBackoff = time.Second
	maxRetries          = 3
)

// Config represents CCTP client configuration
type Config struct {
	BaseURL      string
	Environment  string // "sandbox" or "mainnet"
	Timeout      time.Duration
	RetryBackoff time.Duration // base of the exponential backoff between 5xx retries
}

// Client represents a CCTP Iris API client
type Client struct {
	config         Config
	httpClient     *http.Client
	circuitBreaker *gobreaker.CircuitBreaker
	rateLimiter    *rate.Limiter
	logger         *zap.Logger
}

// NewClient creates a new CCTP Iris API client
func NewClient(config Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	if config.RetryBackoff == 0 {
		config.RetryBackoff = defaultRetryBackoff
	}
	if config.BaseURL == "" {
		if config.Environment == "mainnet" {
			config.BaseURL = IrisMainnetURL
		} else {
			config.BaseURL = IrisSandboxURL
		}
	}

	cbSettings := gobreaker.Settings{
		Name:        "CCTPAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		// a 4xx is an answer from a healthy API, not an outage
		IsSuccessful: func(err error) bool {
			var apiErr *ErrorResponse
			return err == nil || (errors.As(err, &apiErr) && apiErr.StatusCode < 500)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("CCTP circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &Client{
		config:         config,
		httpClient:     &http.Client{Timeout: config.Timeout},
		circuitBreaker: gobreaker.NewCircuitBreaker(cbSettings),
		rateLimiter:    rate.NewLimiter(rate.Limit(MaxRequestsPerSecond), 1),
		logger:         logger,
	}
}

// FetchAttestation looks up the message emitted by a burn transaction on sourceDomain.
// A missing or unsigned message is reported as ErrAttestationPending.
func (c *Client) FetchAttestation(ctx context.Context, sourceDomain uint32, txHash string) (*Attestation, error) {
	endpoint := fmt.Sprintf("/v2/messages/%d?transactionHash=%s", sourceDomain, url.QueryEscape(txHash))

	var resp MessagesResponse
	if err := c.doRequest(ctx, endpoint, &resp); err != nil {
		var apiErr *ErrorResponse
		if errors.As(err, &apiErr) && apiErr.IsNotFound() {
			return nil, ErrAttestationPending
		}
		return nil, fmt.Errorf("fetch attestation failed: %w", err)
	}
	if len(resp.Messages) == 0 {
		return nil, ErrAttestationPending
	}

	msg := resp.Messages[0]
	if msg.Status != MessageStatusComplete || msg.Attestation == "" || msg.Attestation == attestationPlaceholder {
		c.logger.Debug("Attestation not ready",
			zap.String("tx_hash", txHash),
			zap.String("status", msg.Status),
			zap.String("delay_reason", msg.DelayReason))
		return nil, ErrAttestationPending
	}

	att := &Attestation{
		Message:     msg.Message,
		Attestation: msg.Attestation,
		EventNonce:  msg.EventNonce,
		CctpVersion: msg.CctpVersion,
	}
	if msg.DecodedMessage != nil {
		att.FinalityThresholdExecuted = msg.DecodedMessage.FinalityThresholdExecuted
		if msg.DecodedMessage.DecodedMessageBody != nil {
			att.HookData = msg.DecodedMessage.DecodedMessageBody.HookData
		}
	}
	return att, nil
}

// GetFees retrieves current fees for a transfer between domains
func (c *Client) GetFees(ctx context.Context, sourceDomain, destDomain uint32) (FeesResponse, error) {
	endpoint := fmt.Sprintf("/v2/burn/USDC/fees/%d/%d", sourceDomain, destDomain)
	var resp FeesResponse
	if err := c.doRequest(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("get fees failed: %w", err)
	}
	return resp, nil
}

func (c *Client) doRequest(ctx context.Context, endpoint string, response interface{}) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	_, err := c.circuitBreaker.Execute(func() (interface{}, error) {
		return nil, c.doRequestInternal(ctx, endpoint, response)
	})
	return err
}

func (c *Client) doRequestInternal(ctx context.Context, endpoint string, response interface{}) error {
	fullURL := c.config.BaseURL + endpoint

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<(attempt-1)) * c.config.RetryBackoff
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read body: %w", err)
			continue
		}

		// Retry on 5xx
		if resp.StatusCode >= 500 {
			lastErr = &ErrorResponse{StatusCode: resp.StatusCode, Message: "server error"}
			continue
		}

		if resp.StatusCode >= 400 {
			errResp := ErrorResponse{StatusCode: resp.StatusCode}
			if json.Unmarshal(body, &errResp) != nil || errResp.Message == "" {
				errResp.Message = string(body)
			}
			errResp.StatusCode = resp.StatusCode
			return &errResp
		}

		if response != nil && len(body) > 0 {
			if err := json.Unmarshal(body, response); err != nil {
				return fmt.Errorf("unmarshal response: %w", err)
			}
		}
		return nil
	}
	return lastErr
}
