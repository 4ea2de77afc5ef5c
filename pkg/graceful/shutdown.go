package graceful

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rail-service/cctp_bridge/pkg/logger"
)

const defaultTimeout = 30 * time.Second

// Shutdowner is a component stopped before the HTTP server
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

// ShutdownFunc adapts a function to Shutdowner
type ShutdownFunc func(ctx context.Context) error

// Shutdown implements Shutdowner
func (f ShutdownFunc) Shutdown(ctx context.Context) error {
	return f(ctx)
}

type ShutdownManager struct {
	server      *http.Server
	shutdowners []Shutdowner
	timeout     time.Duration
	logger      *logger.Logger
}

func NewShutdownManager(server *http.Server, logger *logger.Logger) *ShutdownManager {
	return &ShutdownManager{
		server:      server,
		shutdowners: make([]Shutdowner, 0),
		timeout:     defaultTimeout,
		logger:      logger,
	}
}

// WithTimeout overrides the overall shutdown deadline
func (sm *ShutdownManager) WithTimeout(timeout time.Duration) *ShutdownManager {
	sm.timeout = timeout
	return sm
}

func (sm *ShutdownManager) Register(s Shutdowner) {
	sm.shutdowners = append(sm.shutdowners, s)
}

// WaitForShutdown blocks until SIGINT or SIGTERM, then shuts everything down
func (sm *ShutdownManager) WaitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), sm.timeout)
	defer cancel()
	sm.Shutdown(ctx)
}

// Shutdown stops registered components in reverse registration order, then the server
func (sm *ShutdownManager) Shutdown(ctx context.Context) {
	sm.logger.Info("Shutting down gracefully...")

	for i := len(sm.shutdowners) - 1; i >= 0; i-- {
		if err := sm.shutdowners[i].Shutdown(ctx); err != nil {
			sm.logger.Warn("Component shutdown error", "error", err)
		}
	}

	if sm.server != nil {
		if err := sm.server.Shutdown(ctx); err != nil {
			sm.logger.Error("Server forced shutdown", "error", err)
		}
	}

	sm.logger.Info("Shutdown complete")
}
