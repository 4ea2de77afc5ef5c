package cctp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const burnTx = "0x912f22a13e9ccb979b621500f6952b2afd6e75be7eadaed93fc2625fe11c52a2"

func TestNewClient(t *testing.T) {
	logger := zap.NewNop()

	t.Run("defaults to sandbox URL", func(t *testing.T) {
		client := NewClient(Config{Environment: "sandbox"}, logger)
		assert.Equal(t, IrisSandboxURL, client.config.BaseURL)
	})

	t.Run("uses mainnet URL", func(t *testing.T) {
		client := NewClient(Config{Environment: "mainnet"}, logger)
		assert.Equal(t, IrisMainnetURL, client.config.BaseURL)
	})

	t.Run("respects custom base URL", func(t *testing.T) {
		client := NewClient(Config{BaseURL: "https://custom.api"}, logger)
		assert.Equal(t, "https://custom.api", client.config.BaseURL)
	})
}

func TestFetchAttestation(t *testing.T) {
	logger := zap.NewNop()

	t.Run("returns attestation on success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v2/messages/0", r.URL.Path)
			assert.Equal(t, burnTx, r.URL.Query().Get("transactionHash"))

			resp := MessagesResponse{
				Messages: []CCTPMessage{{
					Message:     "0xmessage",
					EventNonce:  "0x0000000000000000000000000000000000000000000000000000000000000042",
					Attestation: "0xattestation",
					CctpVersion: 2,
					Status:      MessageStatusComplete,
					DecodedMessage: &DecodedMessage{
						SourceDomain:              "0",
						DestinationDomain:         "3",
						FinalityThresholdExecuted: "1000",
						DecodedMessageBody:        &DecodedMessageBody{HookData: "0x04"},
					},
				}},
			}
			json.NewEncoder(w).Encode(resp)
		}))
		defer server.Close()

		client := NewClient(Config{BaseURL: server.URL}, logger)
		att, err := client.FetchAttestation(context.Background(), 0, burnTx)

		require.NoError(t, err)
		assert.Equal(t, "0xattestation", att.Attestation)
		assert.Equal(t, "0xmessage", att.Message)
		assert.Equal(t, 2, att.CctpVersion)
		assert.Equal(t, "1000", att.FinalityThresholdExecuted)
		assert.Equal(t, "0x04", att.HookData)
	})

	t.Run("not found is pending", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"code":404,"message":"Message not found"}`))
		}))
		defer server.Close()

		client := NewClient(Config{BaseURL: server.URL}, logger)
		_, err := client.FetchAttestation(context.Background(), 0, burnTx)

		assert.ErrorIs(t, err, ErrAttestationPending)
	})

	t.Run("unsigned message is pending", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(MessagesResponse{Messages: []CCTPMessage{{
				Attestation: "PENDING",
				Status:      MessageStatusPending,
			}}})
		}))
		defer server.Close()

		client := NewClient(Config{BaseURL: server.URL}, logger)
		_, err := client.FetchAttestation(context.Background(), 0, burnTx)

		assert.ErrorIs(t, err, ErrAttestationPending)
	})

	t.Run("empty message list is pending", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(MessagesResponse{Messages: []CCTPMessage{}})
		}))
		defer server.Close()

		client := NewClient(Config{BaseURL: server.URL}, logger)
		_, err := client.FetchAttestation(context.Background(), 0, burnTx)

		assert.ErrorIs(t, err, ErrAttestationPending)
	})

	t.Run("client error is surfaced", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"code":"INVALID_DOMAIN","message":"invalid source domain"}`))
		}))
		defer server.Close()

		client := NewClient(Config{BaseURL: server.URL}, logger)
		_, err := client.FetchAttestation(context.Background(), 99, burnTx)

		var apiErr *ErrorResponse
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
		assert.NotErrorIs(t, err, ErrAttestationPending)
	})
}

func TestRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(FeesResponse{{FinalityThreshold: FinalityThresholdFast, MinimumFee: decimal.NewFromInt(1)}})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, RetryBackoff: time.Millisecond}, zap.NewNop())
	fees, err := client.GetFees(context.Background(), 0, 3)

	require.NoError(t, err)
	assert.Len(t, fees, 1)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestServerErrorsAreBounded(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, RetryBackoff: time.Millisecond}, zap.NewNop())
	_, err := client.GetFees(context.Background(), 0, 3)

	require.Error(t, err)
	assert.Equal(t, int32(maxRetries+1), atomic.LoadInt32(&calls))
}

func TestGetFees(t *testing.T) {
	logger := zap.NewNop()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/burn/USDC/fees/0/3", r.URL.Path)
		w.Write([]byte(`[{"finalityThreshold":1000,"minimumFee":1.3},{"finalityThreshold":2000,"minimumFee":0}]`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, logger)
	fees, err := client.GetFees(context.Background(), 0, 3)
	require.NoError(t, err)

	fast, err := fees.For(FinalityThresholdFast)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("1.3").Equal(fast.MinimumFee))

	standard, err := fees.For(FinalityThresholdStandard)
	require.NoError(t, err)
	assert.True(t, standard.MinimumFee.IsZero())

	_, err = fees.For(500)
	assert.ErrorIs(t, err, ErrNoFees)
}
