package handlers

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Health statuses
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

const checkTimeout = 3 * time.Second

// HealthCheck probes one dependency
type HealthCheck struct {
	Name string
	// Critical checks make the service unhealthy when they fail; others only degrade it
	Critical bool
	Check    func(ctx context.Context) error
}

// CheckResult is the outcome of one HealthCheck
type CheckResult struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
}

// HealthResponse is the body of the health endpoints
type HealthResponse struct {
	Status        string                 `json:"status"`
	Timestamp     time.Time              `json:"timestamp"`
	Version       string                 `json:"version"`
	UptimeSeconds int64                  `json:"uptime_seconds"`
	Checks        map[string]CheckResult `json:"checks,omitempty"`
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	checks    []HealthCheck
	logger    *zap.Logger
	version   string
	startTime time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(checks []HealthCheck, logger *zap.Logger, version string) *HealthHandler {
	sorted := append([]HealthCheck(nil), checks...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	return &HealthHandler{
		checks:    sorted,
		logger:    logger,
		version:   version,
		startTime: time.Now(),
	}
}

// Liveness handles GET /health/live; it never touches dependencies
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:        StatusHealthy,
		Timestamp:     time.Now().UTC(),
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
	})
}

// Health handles GET /health and GET /health/ready by running every registered check
func (h *HealthHandler) Health(c *gin.Context) {
	status, results := h.run(c.Request.Context())

	statusCode := http.StatusOK
	switch status {
	case StatusUnhealthy:
		statusCode = http.StatusServiceUnavailable
		h.logger.Warn("Health check failed", zap.Any("checks", results))
	case StatusDegraded:
		h.logger.Warn("Service degraded", zap.Any("checks", results))
	}

	c.JSON(statusCode, HealthResponse{
		Status:        status,
		Timestamp:     time.Now().UTC(),
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        results,
	})
}

func (h *HealthHandler) run(ctx context.Context) (string, map[string]CheckResult) {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]CheckResult, len(h.checks))
		status  = StatusHealthy
	)
	for _, check := range h.checks {
		wg.Add(1)
		go func(check HealthCheck) {
			defer wg.Done()
			start := time.Now()
			err := check.Check(ctx)
			res := CheckResult{Status: StatusHealthy, LatencyMs: time.Since(start).Milliseconds()}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Error = err.Error()
				if check.Critical {
					res.Status = StatusUnhealthy
					status = StatusUnhealthy
				} else {
					res.Status = StatusDegraded
					if status == StatusHealthy {
						status = StatusDegraded
					}
				}
			}
			results[check.Name] = res
		}(check)
	}
	wg.Wait()
	return status, results
}
