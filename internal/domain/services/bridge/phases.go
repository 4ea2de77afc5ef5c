package bridge

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/rail-service/cctp_bridge/internal/domain/entities"
	domainerrors "github.com/rail-service/cctp_bridge/internal/domain/errors"
	"github.com/rail-service/cctp_bridge/internal/infrastructure/adapters/calldata"
	"github.com/rail-service/cctp_bridge/internal/infrastructure/adapters/cctp"
	"github.com/rail-service/cctp_bridge/internal/infrastructure/adapters/wallet"
	"github.com/rail-service/cctp_bridge/pkg/tracing"
)

func (s *Service) execute(ctx context.Context, r *run) {
	exec := r.snapshot()
	ctx, span := tracing.StartSpan(ctx, tracerName, "transfer.execute",
		attribute.String("execution_id", exec.ID.String()),
		attribute.String("from_phase", string(exec.Phase)))

	err := s.advance(ctx, r)
	if err != nil {
		s.fail(r, err)
	}
	tracing.EndSpan(span, err)
}

// advance runs the remaining phases in order, skipping those whose transaction is already recorded
func (s *Service) advance(ctx context.Context, r *run) error {
	exec := r.snapshot()

	if exec.BurnTx == "" {
		if exec.ApprovalTx == "" {
			if err := s.step(ctx, "approve", r, s.submitApproval); err != nil {
				return err
			}
		}
		if err := s.step(ctx, "approval_receipt", r, s.awaitApproval); err != nil {
			return err
		}
		if err := s.step(ctx, "burn", r, s.submitBurn); err != nil {
			return err
		}
	}

	if r.snapshot().Nonce == "" {
		if err := s.step(ctx, "burn_receipt", r, s.awaitBurn); err != nil {
			return err
		}
	}

	var att *cctp.Attestation
	err := s.step(ctx, "attestation", r, func(ctx context.Context, r *run) error {
		var err error
		att, err = s.awaitAttestation(ctx, r)
		return err
	})
	if err != nil {
		return err
	}

	return s.complete(ctx, r, att)
}

// step wraps one phase in a span and records its duration
func (s *Service) step(ctx context.Context, name string, r *run, fn func(context.Context, *run) error) error {
	ctx, span := tracing.StartSpan(ctx, tracerName, "transfer."+name)
	start := time.Now()

	err := fn(ctx, r)

	s.metrics.ObservePhase(name, time.Since(start))
	tracing.EndSpan(span, err)
	return err
}

func (s *Service) submitApproval(ctx context.Context, r *run) error {
	exec := s.transition(r, entities.PhaseApproving, entities.TransferEvent{}, nil)
	src := exec.Request.Source

	data, err := calldata.Encode(calldata.Approve{Spender: src.TokenMessenger, Amount: exec.BaseUnits})
	if err != nil {
		return err
	}

	hash, err := s.submit(ctx, src.ChainID, src.USDC, data)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return domainerrors.TransferError(domainerrors.ErrApprovalSubmission, string(entities.PhaseApproving), "", err)
	}

	tx := hash.Hex()
	s.transition(r, entities.PhaseApproving, entities.TransferEvent{TxHash: tx, Message: "approval submitted"},
		func(e *entities.TransferExecution) { e.ApprovalTx = tx })
	return nil
}

func (s *Service) awaitApproval(ctx context.Context, r *run) error {
	exec := r.snapshot()
	src := exec.Request.Source

	receipt, err := s.awaitReceipt(ctx, src.ChainID, exec.ApprovalTx)
	if err != nil {
		return s.receiptError(ctx, err, domainerrors.ErrApprovalTimeout, entities.PhaseApproving, exec.ApprovalTx)
	}
	if !receipt.Succeeded() {
		return domainerrors.TransferError(domainerrors.ErrApprovalReverted, string(entities.PhaseApproving), exec.ApprovalTx, nil)
	}

	s.transition(r, entities.PhaseApproved, entities.TransferEvent{TxHash: exec.ApprovalTx}, nil)
	return nil
}

func (s *Service) submitBurn(ctx context.Context, r *run) error {
	exec := s.transition(r, entities.PhaseBurning, entities.TransferEvent{}, nil)
	req := exec.Request

	var call calldata.Call
	if req.UsesHook() {
		call = calldata.DepositForBurnWithHook{
			Amount:            exec.BaseUnits,
			DestinationDomain: req.Destination.Domain,
			MintRecipient:     calldata.AddressToBytes32(req.Recipient),
			BurnToken:         req.Source.USDC,
			HookData:          req.Hook.EncodedData(),
		}
	} else {
		call = calldata.DepositForBurnWithCaller{
			Amount:            exec.BaseUnits,
			DestinationDomain: req.Destination.Domain,
			MintRecipient:     calldata.AddressToBytes32(req.Recipient),
			BurnToken:         req.Source.USDC,
		}
	}

	data, err := calldata.Encode(call)
	if err != nil {
		return err
	}

	hash, err := s.submit(ctx, req.Source.ChainID, req.Source.TokenMessenger, data)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return domainerrors.TransferError(domainerrors.ErrBurnSubmission, string(entities.PhaseBurning), exec.ApprovalTx, err)
	}

	tx := hash.Hex()
	s.transition(r, entities.PhaseBurning, entities.TransferEvent{TxHash: tx, Message: "burn submitted"},
		func(e *entities.TransferExecution) { e.BurnTx = tx })
	return nil
}

func (s *Service) awaitBurn(ctx context.Context, r *run) error {
	exec := r.snapshot()
	src := exec.Request.Source

	receipt, err := s.awaitReceipt(ctx, src.ChainID, exec.BurnTx)
	if err != nil {
		return s.receiptError(ctx, err, domainerrors.ErrBurnTimeout, entities.PhaseBurning, exec.BurnTx)
	}
	if !receipt.Succeeded() {
		return domainerrors.TransferError(domainerrors.ErrBurnReverted, string(entities.PhaseBurning), exec.BurnTx, nil)
	}

	msg, ok := extractMessage(receipt, src.MessageTransmitter)
	if !ok {
		return domainerrors.TransferError(domainerrors.ErrNonceNotFound, string(entities.PhaseBurning), exec.BurnTx, nil)
	}

	s.transition(r, entities.PhaseBurned, entities.TransferEvent{TxHash: exec.BurnTx},
		func(e *entities.TransferExecution) {
			e.Nonce = msg.Nonce.Hex()
			e.Message = hexutil.Encode(msg.Message)
		})
	return nil
}

func (s *Service) awaitAttestation(ctx context.Context, r *run) (*cctp.Attestation, error) {
	exec := s.transition(r, entities.PhaseAwaitingAttestation, entities.TransferEvent{TxHash: r.snapshot().BurnTx}, nil)
	src := exec.Request.Source
	interval := s.cfg.Timings.AttestationInterval(exec.Request.Mode)

	att, err := poll(ctx, interval, s.cfg.Timings.AttestationTimeout, func(ctx context.Context) (*cctp.Attestation, bool, error) {
		att, err := s.attestations.FetchAttestation(ctx, src.Domain, exec.BurnTx)
		switch {
		case err == nil:
			s.metrics.RecordAttestationPoll("complete")
			return att, true, nil
		case errors.Is(err, cctp.ErrAttestationPending):
			s.metrics.RecordAttestationPoll("pending")
			return nil, false, nil
		case ctx.Err() != nil:
			return nil, false, ctx.Err()
		default:
			s.metrics.RecordAttestationPoll("error")
			s.logger.Warn("Attestation lookup failed",
				zap.String("execution_id", exec.ID.String()),
				zap.String("tx_hash", exec.BurnTx),
				zap.Error(err))
			return nil, false, nil
		}
	})
	if err != nil {
		if errors.Is(err, errPollTimeout) {
			return nil, domainerrors.TransferError(domainerrors.ErrAttestationTimeout,
				string(entities.PhaseAwaitingAttestation), exec.BurnTx, nil)
		}
		return nil, err
	}

	s.transition(r, entities.PhaseAttested, entities.TransferEvent{TxHash: exec.BurnTx},
		func(e *entities.TransferExecution) {
			e.Attestation = att.Attestation
			if att.Message != "" {
				e.Message = att.Message
			}
			if nonce, ok := attestedNonce(att.EventNonce); ok {
				e.Nonce = nonce.Hex()
			}
		})
	return att, nil
}

func (s *Service) complete(ctx context.Context, r *run, att *cctp.Attestation) error {
	exec := r.snapshot()

	var warning string
	if s.hooks != nil && exec.Request.UsesHook() {
		if err := s.hooks.ReportHook(ctx, exec, att); err != nil {
			if errors.Is(err, domainerrors.ErrHookExecutionFailed) {
				warning = domainerrors.CodeHookExecutionFailed + ": " + err.Error()
			}
			s.logger.Warn("Hook did not report success",
				zap.String("execution_id", exec.ID.String()),
				zap.Error(err))
		}
	}

	final := s.transition(r, entities.PhaseComplete, entities.TransferEvent{TxHash: exec.BurnTx, Message: warning},
		func(e *entities.TransferExecution) {
			if warning != "" {
				e.Warnings = append(e.Warnings, warning)
			}
		})

	s.metrics.TransferFinished("complete", "")
	s.logger.Info("Transfer completed",
		zap.String("execution_id", final.ID.String()),
		zap.String("burn_tx", final.BurnTx),
		zap.String("nonce", final.Nonce),
		zap.Int("warnings", len(final.Warnings)))
	return nil
}

// fail records err on the execution and moves it to FAILED, keeping every tx reference
func (s *Service) fail(r *run, err error) {
	exec := r.snapshot()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = domainerrors.TransferError(domainerrors.ErrCancelled, string(exec.Phase), exec.LastTx(), nil)
	}
	code := domainerrors.CodeFor(err)

	final := s.transition(r, entities.PhaseFailed,
		entities.TransferEvent{TxHash: exec.LastTx(), ErrorCode: code, Message: err.Error()},
		func(e *entities.TransferExecution) {
			e.FailedPhase = e.Phase
			e.LastError = err.Error()
			e.LastErrorCode = code
		})

	r.mu.Lock()
	r.err = err
	r.mu.Unlock()

	s.metrics.TransferFinished("failed", code)
	s.logger.Error("Transfer failed",
		zap.String("execution_id", final.ID.String()),
		zap.String("failed_phase", string(final.FailedPhase)),
		zap.String("error_code", code),
		zap.String("last_tx", final.LastTx()),
		zap.Error(err))
}

// submit re-verifies the active chain and sends a transaction from the wallet's first account
func (s *Service) submit(ctx context.Context, chainID uint64, to common.Address, data []byte) (common.Hash, error) {
	s.chainMu.Lock()
	defer s.chainMu.Unlock()

	if err := s.chain.EnsureChain(ctx, chainID); err != nil {
		return common.Hash{}, err
	}
	accounts, err := s.chain.RequestAccounts(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	return s.chain.SendTransaction(ctx, accounts[0], to, data)
}

// awaitReceipt polls for a receipt on chainID within the receipt ceiling
func (s *Service) awaitReceipt(ctx context.Context, chainID uint64, tx string) (*wallet.Receipt, error) {
	hash := common.HexToHash(tx)
	timings := s.cfg.Timings

	return poll(ctx, timings.ReceiptPollInterval, timings.ReceiptTimeout, func(ctx context.Context) (*wallet.Receipt, bool, error) {
		receipt, err := s.receipt(ctx, chainID, hash)
		if err != nil {
			if domainerrors.IsRetryable(err) {
				s.logger.Debug("Receipt lookup failed, polling again",
					zap.String("tx_hash", tx),
					zap.Error(err))
				return nil, false, nil
			}
			return nil, false, err
		}
		return receipt, receipt != nil, nil
	})
}

func (s *Service) receipt(ctx context.Context, chainID uint64, hash common.Hash) (*wallet.Receipt, error) {
	receipt, err := s.chain.GetReceiptOn(ctx, chainID, hash)
	if !errors.Is(err, wallet.ErrChainScopedUnsupported) {
		return receipt, err
	}

	s.chainMu.Lock()
	defer s.chainMu.Unlock()
	if err := s.chain.EnsureChain(ctx, chainID); err != nil {
		return nil, err
	}
	return s.chain.GetReceipt(ctx, hash)
}

func (s *Service) receiptError(ctx context.Context, err error, timeout error, phase entities.TransferPhase, tx string) error {
	switch {
	case errors.Is(err, errPollTimeout):
		return domainerrors.TransferError(timeout, string(phase), tx, nil)
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return domainerrors.TransferError(domainerrors.ErrNetwork, string(phase), tx, err)
	}
}
