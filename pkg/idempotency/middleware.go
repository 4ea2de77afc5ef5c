package idempotency

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rail-service/cctp_bridge/internal/infrastructure/cache"
)

const (
	// HeaderIdempotencyKey is the HTTP header for idempotency key
	HeaderIdempotencyKey = "Idempotency-Key"

	// MaxBodySize is the maximum request body size for idempotency (1MB)
	MaxBodySize = 1 << 20

	// DefaultTTL is how long a stored response is replayed
	DefaultTTL = 24 * time.Hour

	maxKeyLength = 255
)

// Record is a stored response for one idempotency key
type Record struct {
	Key            string    `json:"key"`
	RequestPath    string    `json:"request_path"`
	RequestMethod  string    `json:"request_method"`
	RequestHash    string    `json:"request_hash"`
	ResponseStatus int       `json:"response_status"`
	ResponseBody   []byte    `json:"response_body"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// Store persists idempotency records; Get returns nil when the key is unknown
type Store interface {
	Get(ctx context.Context, key string) (*Record, error)
	Save(ctx context.Context, rec *Record) error
}

// MemoryStore keeps records in process memory
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*Record
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

// Get implements Store
func (s *MemoryStore) Get(_ context.Context, key string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	if time.Now().After(rec.ExpiresAt) {
		delete(s.records, key)
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

// Save implements Store
func (s *MemoryStore) Save(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.records[rec.Key] = &cp
	return nil
}

// RedisStore keeps records in Redis with their TTL
type RedisStore struct {
	client cache.RedisClient
}

// NewRedisStore creates a Redis-backed store
func NewRedisStore(client cache.RedisClient) *RedisStore {
	return &RedisStore{client: client}
}

// Get implements Store
func (s *RedisStore) Get(ctx context.Context, key string) (*Record, error) {
	var rec Record
	err := s.client.GetJSON(ctx, "idempotency:"+key, &rec)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Save implements Store
func (s *RedisStore) Save(ctx context.Context, rec *Record) error {
	return s.client.SetJSON(ctx, "idempotency:"+rec.Key, rec, time.Until(rec.ExpiresAt))
}

// ValidateKey checks the shape of a client supplied key
func ValidateKey(key string) error {
	if len(key) > maxKeyLength {
		return fmt.Errorf("idempotency key longer than %d characters", maxKeyLength)
	}
	for _, r := range key {
		if r < 0x21 || r > 0x7e {
			return errors.New("idempotency key must be printable ASCII without spaces")
		}
	}
	return nil
}

// ReadBody reads at most limit bytes of body
func ReadBody(body io.Reader, limit int64) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("request body exceeds %d bytes", limit)
	}
	return data, nil
}

// HashRequest fingerprints a request body
func HashRequest(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// ShouldReturnCached reports whether a stored record may be replayed for a request with requestHash
func ShouldReturnCached(rec *Record, requestHash string) (bool, string) {
	if rec.RequestHash != requestHash {
		return false, "idempotency key reused with a different request body"
	}
	if rec.ResponseStatus >= http.StatusInternalServerError {
		return false, "previous request with this key failed; retry with a new key"
	}
	return true, ""
}

// responseWriter wraps gin.ResponseWriter to capture response
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Middleware replays the stored response for a repeated Idempotency-Key on state-changing requests
func Middleware(store Store, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPut &&
			c.Request.Method != http.MethodDelete && c.Request.Method != http.MethodPatch {
			c.Next()
			return
		}

		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}

		if err := ValidateKey(key); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_IDEMPOTENCY_KEY",
				"message": err.Error(),
				"details": gin.H{"request_id": c.GetString("request_id")},
			})
			return
		}

		bodyBytes, err := ReadBody(c.Request.Body, MaxBodySize)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_REQUEST",
				"message": err.Error(),
				"details": gin.H{"request_id": c.GetString("request_id")},
			})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		requestHash := HashRequest(bodyBytes)
		scoped := c.Request.Method + ":" + c.Request.URL.Path + ":" + key

		existing, err := store.Get(c.Request.Context(), scoped)
		if err != nil {
			logger.Error("Failed to check idempotency key", zap.String("idempotency_key", key), zap.Error(err))
			c.Next()
			return
		}

		if existing != nil {
			if ok, reason := ShouldReturnCached(existing, requestHash); !ok {
				logger.Warn("Idempotency key conflict", zap.String("idempotency_key", key), zap.String("reason", reason))
				c.AbortWithStatusJSON(http.StatusConflict, gin.H{
					"code":    "IDEMPOTENCY_CONFLICT",
					"message": reason,
					"details": gin.H{"request_id": c.GetString("request_id")},
				})
				return
			}

			logger.Info("Returning cached response",
				zap.String("idempotency_key", key),
				zap.Int("status", existing.ResponseStatus))
			c.Header("Idempotent-Replayed", "true")
			c.Data(existing.ResponseStatus, "application/json; charset=utf-8", existing.ResponseBody)
			c.Abort()
			return
		}

		writer := &responseWriter{ResponseWriter: c.Writer, body: bytes.NewBuffer(nil)}
		c.Writer = writer

		c.Next()

		rec := &Record{
			Key:            scoped,
			RequestPath:    c.Request.URL.Path,
			RequestMethod:  c.Request.Method,
			RequestHash:    requestHash,
			ResponseStatus: writer.Status(),
			ResponseBody:   writer.body.Bytes(),
			ExpiresAt:      time.Now().Add(DefaultTTL),
		}
		if err := store.Save(c.Request.Context(), rec); err != nil {
			logger.Error("Failed to store idempotency key", zap.String("idempotency_key", key), zap.Error(err))
		}
	}
}
