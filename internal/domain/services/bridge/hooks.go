package bridge

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/rail-service/cctp_bridge/internal/domain/entities"
	domainerrors "github.com/rail-service/cctp_bridge/internal/domain/errors"
	"github.com/rail-service/cctp_bridge/internal/infrastructure/adapters/cctp"
)

// HookReporter reports whether the destination-side hook of a completed transfer ran.
// A returned error wrapping ErrHookExecutionFailed becomes a warning on the execution;
// any other error means the outcome is unknown.
type HookReporter interface {
	ReportHook(ctx context.Context, exec entities.TransferExecution, att *cctp.Attestation) error
}

// AttestedHookReporter checks that the attested message carries the hook data that was burned with.
// Mismatched hook data cannot execute the requested action on the destination chain.
type AttestedHookReporter struct{}

// ReportHook implements HookReporter
func (AttestedHookReporter) ReportHook(_ context.Context, exec entities.TransferExecution, att *cctp.Attestation) error {
	if !exec.Request.UsesHook() || att == nil || att.HookData == "" {
		return nil
	}
	want := exec.Request.Hook.EncodedData()
	if hookDataMatches(att.HookData, want) {
		return nil
	}
	return domainerrors.TransferError(domainerrors.ErrHookExecutionFailed, string(entities.PhaseAttested), exec.BurnTx,
		fmt.Errorf("attested hook data %s does not match %s", att.HookData, hexutil.Encode(want)))
}
