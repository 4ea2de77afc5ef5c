package bridge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/rail-service/cctp_bridge/internal/domain/entities"
	domainerrors "github.com/rail-service/cctp_bridge/internal/domain/errors"
	"github.com/rail-service/cctp_bridge/internal/domain/registry"
	"github.com/rail-service/cctp_bridge/internal/infrastructure/adapters/cctp"
	"github.com/rail-service/cctp_bridge/internal/infrastructure/adapters/wallet"
	"github.com/rail-service/cctp_bridge/pkg/metrics"
	"github.com/rail-service/cctp_bridge/pkg/tracing"
)

const tracerName = "github.com/rail-service/cctp_bridge/internal/domain/services/bridge"

// Service orchestrates USDC transfers through CCTP V2 burn-and-mint
type Service struct {
	cfg          Config
	registry     *registry.Registry
	chain        wallet.ChainClient
	attestations cctp.CCTPClient
	hooks        HookReporter
	metrics      *metrics.Metrics
	logger       *zap.Logger

	events *broadcaster

	mu   sync.RWMutex
	runs map[uuid.UUID]*run

	// the wallet's active chain is shared by every execution
	chainMu sync.Mutex

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

// run owns one execution record and the goroutine advancing it
type run struct {
	mu     sync.RWMutex
	exec   entities.TransferExecution
	err    error
	cancel context.CancelFunc
	done   chan struct{}
}

func (r *run) snapshot() entities.TransferExecution {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.exec.Clone()
}

// NewService creates a new transfer service
func NewService(
	cfg Config,
	reg *registry.Registry,
	chain wallet.ChainClient,
	attestations cctp.CCTPClient,
	m *metrics.Metrics,
	logger *zap.Logger,
) (*Service, error) {
	if reg == nil || chain == nil || attestations == nil {
		return nil, errors.New("registry, chain client and attestation client are required")
	}
	if err := cfg.Timings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transfer timings: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, stop := context.WithCancel(context.Background())
	s := &Service{
		cfg:          cfg,
		registry:     reg,
		chain:        chain,
		attestations: attestations,
		metrics:      m,
		logger:       logger,
		events:       newBroadcaster(cfg.EventBuffer, logger),
		runs:         make(map[uuid.UUID]*run),
		baseCtx:      ctx,
		stop:         stop,
	}

	if cfg.Retention > 0 {
		s.wg.Add(1)
		go s.janitor(cfg.Retention)
	}
	return s, nil
}

// WithHookReporter sets the collaborator consulted for hook outcomes on completion
func (s *Service) WithHookReporter(h HookReporter) *Service {
	s.hooks = h
	return s
}

// Start validates req and launches a transfer. Validation failures happen before any chain interaction.
func (s *Service) Start(ctx context.Context, req entities.TransferRequest) (entities.TransferExecution, error) {
	if s.baseCtx.Err() != nil {
		return entities.TransferExecution{}, domainerrors.ServiceUnavailableError("transfer", nil)
	}

	_, span := tracing.StartSpan(ctx, tracerName, "transfer.start")
	req, err := normalizeRequest(s.registry, req)
	if err != nil {
		tracing.EndSpan(span, err)
		return entities.TransferExecution{}, err
	}

	now := time.Now().UTC()
	exec := entities.TransferExecution{
		ID:        uuid.New(),
		Request:   req,
		BaseUnits: ToBaseUnits(req.Amount),
		Phase:     entities.PhaseIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.Hook != nil && !req.UsesHook() {
		exec.Warnings = append(exec.Warnings, "hook ignored: hooks only apply to FAST transfers")
	}
	span.SetAttributes(attribute.String("execution_id", exec.ID.String()))
	tracing.EndSpan(span, nil)

	r := &run{exec: exec}
	s.mu.Lock()
	s.runs[exec.ID] = r
	s.mu.Unlock()

	s.logger.Info("Transfer started",
		zap.String("execution_id", exec.ID.String()),
		zap.String("source", req.Source.Name),
		zap.String("destination", req.Destination.Name),
		zap.String("amount", req.Amount.String()),
		zap.String("base_units", exec.BaseUnits.String()),
		zap.String("mode", string(req.Mode)),
		zap.Bool("hook", req.UsesHook()))

	s.metrics.TransferStarted()
	s.publish(exec, entities.TransferEvent{})

	r.mu.Lock()
	s.launchLocked(r)
	r.mu.Unlock()

	return r.snapshot(), nil
}

// Get returns a copy of an execution
func (s *Service) Get(id uuid.UUID) (entities.TransferExecution, error) {
	r, err := s.lookup(id)
	if err != nil {
		return entities.TransferExecution{}, err
	}
	return r.snapshot(), nil
}

// List returns copies of every known execution, oldest first
func (s *Service) List() []entities.TransferExecution {
	s.mu.RLock()
	out := make([]entities.TransferExecution, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, r.snapshot())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Wait blocks until the execution stops advancing or ctx is done
func (s *Service) Wait(ctx context.Context, id uuid.UUID) (entities.TransferExecution, error) {
	r, err := s.lookup(id)
	if err != nil {
		return entities.TransferExecution{}, err
	}

	r.mu.RLock()
	done := r.done
	r.mu.RUnlock()

	select {
	case <-done:
		return r.snapshot(), nil
	case <-ctx.Done():
		return r.snapshot(), ctx.Err()
	}
}

// Cancel stops polling for an execution and marks it FAILED. Submitted transactions are not reversed
// and every recorded transaction reference is kept.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (entities.TransferExecution, error) {
	r, err := s.lookup(id)
	if err != nil {
		return entities.TransferExecution{}, err
	}

	r.mu.RLock()
	phase, cancel, done := r.exec.Phase, r.cancel, r.done
	r.mu.RUnlock()

	if phase.IsTerminal() {
		return r.snapshot(), domainerrors.ConflictError("transfer", fmt.Sprintf("already %s", phase))
	}

	s.logger.Info("Cancelling transfer",
		zap.String("execution_id", id.String()),
		zap.String("phase", string(phase)))
	cancel()

	select {
	case <-done:
		return r.snapshot(), nil
	case <-ctx.Done():
		return r.snapshot(), ctx.Err()
	}
}

// Resume restarts a timed-out or cancelled execution from its recorded transactions without resubmitting them
func (s *Service) Resume(ctx context.Context, id uuid.UUID) (entities.TransferExecution, error) {
	if s.baseCtx.Err() != nil {
		return entities.TransferExecution{}, domainerrors.ServiceUnavailableError("transfer", nil)
	}
	r, err := s.lookup(id)
	if err != nil {
		return entities.TransferExecution{}, err
	}

	r.mu.RLock()
	done := r.done
	r.mu.RUnlock()
	select {
	case <-done:
	case <-ctx.Done():
		return r.snapshot(), ctx.Err()
	}

	r.mu.Lock()
	if r.exec.Phase != entities.PhaseFailed || !domainerrors.IsResumable(r.err) {
		phase, code := r.exec.Phase, r.exec.LastErrorCode
		r.mu.Unlock()
		return r.snapshot(), domainerrors.ConflictError("transfer",
			fmt.Sprintf("cannot resume from %s (%s)", phase, code))
	}

	from := resumePhase(r.exec)
	r.exec.Phase = from
	r.exec.LastError = ""
	r.exec.LastErrorCode = ""
	r.exec.FailedPhase = ""
	r.exec.UpdatedAt = time.Now().UTC()
	r.err = nil
	exec := r.exec.Clone()

	s.logger.Info("Transfer resumed",
		zap.String("execution_id", id.String()),
		zap.String("phase", string(from)))

	s.metrics.TransferStarted()
	s.metrics.RecordTransition(string(from))
	// published before launch so the run's own transitions follow it
	s.publish(exec, entities.TransferEvent{TxHash: exec.LastTx(), Message: "resumed"})
	s.launchLocked(r)
	r.mu.Unlock()

	return exec, nil
}

// Subscribe returns a channel of lifecycle events for every execution and a function to stop receiving them
func (s *Service) Subscribe() (<-chan entities.TransferEvent, func()) {
	return s.events.subscribe()
}

// Prune forgets finished executions last updated before cutoff and returns how many were removed
func (s *Service) Prune(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, r := range s.runs {
		exec := r.snapshot()
		if exec.Phase.IsTerminal() && exec.UpdatedAt.Before(cutoff) {
			delete(s.runs, id)
			removed++
		}
	}
	return removed
}

// Shutdown cancels every running execution and waits for them to stop
func (s *Service) Shutdown(ctx context.Context) error {
	s.stop()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.events.close()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) janitor(retention time.Duration) {
	defer s.wg.Done()

	interval := retention / 2
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.baseCtx.Done():
			return
		case now := <-ticker.C:
			if n := s.Prune(now.Add(-retention)); n > 0 {
				s.logger.Debug("Pruned finished transfers", zap.Int("count", n))
			}
		}
	}
}

func (s *Service) lookup(id uuid.UUID) (*run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[id]
	if !ok {
		return nil, domainerrors.NotFoundError("TRANSFER").WithDetail("id", id.String())
	}
	return r, nil
}

// launchLocked starts the goroutine advancing r; r.mu must be held
func (s *Service) launchLocked(r *run) {
	ctx, cancel := context.WithCancel(s.baseCtx)
	done := make(chan struct{})
	r.cancel = cancel
	r.done = done

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(done)
		defer cancel()
		s.execute(ctx, r)
	}()
}

// resumePhase picks the first phase whose transaction is not yet settled
func resumePhase(exec entities.TransferExecution) entities.TransferPhase {
	switch {
	case exec.BurnTx != "" && exec.Nonce != "":
		return entities.PhaseAwaitingAttestation
	case exec.BurnTx != "":
		return entities.PhaseBurning
	case exec.ApprovalTx != "":
		return entities.PhaseApproving
	default:
		return entities.PhaseIdle
	}
}

// transition moves r to phase, applying mutate under the record lock, and publishes ev
func (s *Service) transition(r *run, phase entities.TransferPhase, ev entities.TransferEvent, mutate func(e *entities.TransferExecution)) entities.TransferExecution {
	r.mu.Lock()
	if mutate != nil {
		mutate(&r.exec)
	}
	changed := r.exec.Phase != phase
	r.exec.Phase = phase
	r.exec.UpdatedAt = time.Now().UTC()
	exec := r.exec.Clone()
	r.mu.Unlock()

	if changed {
		s.metrics.RecordTransition(string(phase))
		s.logger.Info("Transfer phase changed",
			zap.String("execution_id", exec.ID.String()),
			zap.String("phase", string(phase)),
			zap.String("tx_hash", ev.TxHash))
	}
	s.publish(exec, ev)
	return exec
}

func (s *Service) publish(exec entities.TransferExecution, ev entities.TransferEvent) {
	ev.ExecutionID = exec.ID
	ev.Phase = exec.Phase
	ev.At = exec.UpdatedAt
	if ev.TxHash != "" {
		ev.TxURL = exec.Request.Source.TxURL(ev.TxHash)
	}
	s.events.publish(ev)
}
