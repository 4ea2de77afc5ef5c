package bridge

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rail-service/cctp_bridge/internal/domain/entities"
	domainerrors "github.com/rail-service/cctp_bridge/internal/domain/errors"
	"github.com/rail-service/cctp_bridge/internal/domain/registry"
	"github.com/rail-service/cctp_bridge/internal/infrastructure/adapters/calldata"
	"github.com/rail-service/cctp_bridge/internal/infrastructure/adapters/cctp"
	"github.com/rail-service/cctp_bridge/internal/infrastructure/adapters/wallet"
	"github.com/rail-service/cctp_bridge/pkg/metrics"
)

var (
	sender    = common.HexToAddress("0x9999999999999999999999999999999999999999")
	recipient = common.HexToAddress("0x1111111111111111111111111111111111111111")
	logNonce  = common.HexToHash("0x07")
)

type sentTx struct {
	from common.Address
	to   common.Address
	data []byte
	hash common.Hash
}

type fakeChain struct {
	mu       sync.Mutex
	active   uint64
	sent     []sentTx
	receipts map[common.Hash]*wallet.Receipt
	pending  map[common.Hash]*wallet.Receipt
	held     map[int]bool
	reverted map[int]bool
	noLog    bool
	sendErr  error
	switches int
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		active:   1,
		receipts: make(map[common.Hash]*wallet.Receipt),
		pending:  make(map[common.Hash]*wallet.Receipt),
		held:     make(map[int]bool),
		reverted: make(map[int]bool),
	}
}

func messageSentLog(nonce common.Hash) wallet.Log {
	msg := make([]byte, 12+32+20)
	msg[3] = 1 // version
	copy(msg[12:44], nonce.Bytes())

	data := append(common.LeftPadBytes(big.NewInt(32).Bytes(), 32), common.LeftPadBytes(big.NewInt(int64(len(msg))).Bytes(), 32)...)
	padded := make([]byte, 96)
	copy(padded, msg)
	data = append(data, padded...)

	return wallet.Log{
		Address: registry.MessageTransmitterV2,
		Topics:  []common.Hash{MessageSentTopic},
		Data:    data,
	}
}

func (f *fakeChain) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	return []common.Address{sender}, nil
}

func (f *fakeChain) ChainID(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active, nil
}

func (f *fakeChain) SwitchChain(ctx context.Context, chainID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = chainID
	f.switches++
	return nil
}

func (f *fakeChain) EnsureChain(ctx context.Context, chainID uint64) error {
	f.mu.Lock()
	active := f.active
	f.mu.Unlock()
	if active == chainID {
		return nil
	}
	return f.SwitchChain(ctx, chainID)
}

func (f *fakeChain) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	return nil, nil
}

func (f *fakeChain) CallOn(ctx context.Context, chainID uint64, to common.Address, data []byte) ([]byte, error) {
	return nil, nil
}

func (f *fakeChain) SendTransaction(ctx context.Context, from, to common.Address, data []byte) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return common.Hash{}, f.sendErr
	}

	idx := len(f.sent)
	hash := common.BigToHash(big.NewInt(int64(idx + 1)))
	f.sent = append(f.sent, sentTx{from: from, to: to, data: data, hash: hash})

	receipt := &wallet.Receipt{TransactionHash: hash, Status: hexutil.Uint64(wallet.ReceiptStatusSuccessful)}
	if f.reverted[idx] {
		receipt.Status = hexutil.Uint64(wallet.ReceiptStatusFailed)
	}
	approve, _ := calldata.FunctionApprove.Selector()
	if !f.noLog && string(data[:4]) != string(approve[:]) {
		receipt.Logs = []wallet.Log{messageSentLog(logNonce)}
	}

	f.pending[hash] = receipt
	if !f.held[idx] {
		f.receipts[hash] = receipt
	}
	return hash, nil
}

func (f *fakeChain) release(idx int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	hash := f.sent[idx].hash
	f.receipts[hash] = f.pending[hash]
}

func (f *fakeChain) GetReceipt(ctx context.Context, txHash common.Hash) (*wallet.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.receipts[txHash], nil
}

func (f *fakeChain) GetReceiptOn(ctx context.Context, chainID uint64, txHash common.Hash) (*wallet.Receipt, error) {
	return f.GetReceipt(ctx, txHash)
}

func (f *fakeChain) transactions() []sentTx {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentTx(nil), f.sent...)
}

type fakeAttestations struct {
	mu      sync.Mutex
	pending int // -1 keeps every lookup pending
	calls   int
	att     cctp.Attestation
}

func (f *fakeAttestations) FetchAttestation(ctx context.Context, sourceDomain uint32, txHash string) (*cctp.Attestation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.pending < 0 || f.calls <= f.pending {
		return nil, cctp.ErrAttestationPending
	}
	att := f.att
	return &att, nil
}

func (f *fakeAttestations) GetFees(ctx context.Context, sourceDomain, destDomain uint32) (cctp.FeesResponse, error) {
	return nil, nil
}

func (f *fakeAttestations) setPending(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = n
	f.calls = 0
}

func testTimings() Timings {
	return Timings{
		ReceiptPollInterval:         5 * time.Millisecond,
		ReceiptTimeout:              150 * time.Millisecond,
		FastAttestationInterval:     5 * time.Millisecond,
		StandardAttestationInterval: 10 * time.Millisecond,
		AttestationTimeout:          300 * time.Millisecond,
	}
}

func newTestService(t *testing.T, chain wallet.ChainClient, atts cctp.CCTPClient, timings Timings, m *metrics.Metrics) *Service {
	t.Helper()
	svc, err := NewService(Config{Timings: timings, EventBuffer: 256}, registry.Mainnet(), chain, atts, m, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		svc.Shutdown(ctx)
	})
	return svc
}

func transferRequest(t *testing.T, mode entities.TransferMode, hook *entities.HookSpec) entities.TransferRequest {
	t.Helper()
	reg := registry.Mainnet()
	src, err := reg.ByChainID(1)
	require.NoError(t, err)
	dst, err := reg.ByChainID(42161)
	require.NoError(t, err)
	return entities.TransferRequest{
		Source:      src,
		Destination: dst,
		Amount:      decimal.NewFromInt(10),
		Recipient:   recipient,
		Mode:        mode,
		Hook:        hook,
	}
}

func waitDone(t *testing.T, svc *Service, id uuid.UUID) entities.TransferExecution {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	exec, err := svc.Wait(ctx, id)
	require.NoError(t, err)
	return exec
}

func waitForPhase(t *testing.T, events <-chan entities.TransferEvent, id uuid.UUID, phase entities.TransferPhase) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.ExecutionID == id && ev.Phase == phase {
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for phase %s", phase)
		}
	}
}

func TestFastTransferWithHook(t *testing.T) {
	chain := newFakeChain()
	chain.active = 42161
	atts := &fakeAttestations{att: cctp.Attestation{
		Message:     "0xattested",
		Attestation: "0xsignature",
		EventNonce:  "0x0000000000000000000000000000000000000000000000000000000000000042",
	}}
	m := metrics.New(prometheus.NewRegistry())
	svc := newTestService(t, chain, atts, testTimings(), m)

	hook := &entities.HookSpec{Kind: entities.HookTreasuryRebalance}
	started, err := svc.Start(context.Background(), transferRequest(t, entities.TransferModeFast, hook))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(10_000_000), started.BaseUnits)

	exec := waitDone(t, svc, started.ID)
	require.Equal(t, entities.PhaseComplete, exec.Phase, exec.LastError)

	sent := chain.transactions()
	require.Len(t, sent, 2)

	wantApprove, err := calldata.Encode(calldata.Approve{Spender: registry.TokenMessengerV2, Amount: big.NewInt(10_000_000)})
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), sent[0].to)
	assert.Equal(t, wantApprove, sent[0].data)
	assert.Equal(t, sender, sent[0].from)

	wantBurn, err := calldata.Encode(calldata.DepositForBurnWithHook{
		Amount:            big.NewInt(10_000_000),
		DestinationDomain: registry.DomainArbitrum,
		MintRecipient:     calldata.AddressToBytes32(recipient),
		BurnToken:         common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
		HookData:          []byte{0x04},
	})
	require.NoError(t, err)
	assert.Equal(t, registry.TokenMessengerV2, sent[1].to)
	assert.Equal(t, wantBurn, sent[1].data)

	assert.Equal(t, sent[0].hash.Hex(), exec.ApprovalTx)
	assert.Equal(t, sent[1].hash.Hex(), exec.BurnTx)
	assert.Equal(t, common.BigToHash(big.NewInt(0x42)).Hex(), exec.Nonce)
	assert.Equal(t, "0xsignature", exec.Attestation)
	assert.Equal(t, "0xattested", exec.Message)
	assert.Empty(t, exec.Warnings)
	assert.Equal(t, 1, chain.switches)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.TransferOutcomes.WithLabelValues("complete", "")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.ActiveTransfers))
}

func TestStandardTransferUsesCaller(t *testing.T) {
	chain := newFakeChain()
	atts := &fakeAttestations{pending: 2, att: cctp.Attestation{Attestation: "0xsig"}}
	svc := newTestService(t, chain, atts, testTimings(), nil)

	hook := &entities.HookSpec{Kind: entities.HookStake}
	started, err := svc.Start(context.Background(), transferRequest(t, entities.TransferModeStandard, hook))
	require.NoError(t, err)

	exec := waitDone(t, svc, started.ID)
	require.Equal(t, entities.PhaseComplete, exec.Phase, exec.LastError)

	sent := chain.transactions()
	require.Len(t, sent, 2)

	withCaller, _ := calldata.FunctionDepositForBurnWithCaller.Selector()
	withHook, _ := calldata.FunctionDepositForBurnWithHook.Selector()
	assert.Equal(t, withCaller[:], sent[1].data[:4])
	assert.NotEqual(t, withHook[:], sent[1].data[:4])
	assert.Len(t, sent[1].data, 4+5*32)
	assert.Equal(t, make([]byte, 32), sent[1].data[4+4*32:])

	// log nonce is kept when the attestation carries none
	assert.Equal(t, logNonce.Hex(), exec.Nonce)
	require.Len(t, exec.Warnings, 1)
	assert.Contains(t, exec.Warnings[0], "hook ignored")
}

func TestTransferEventsInOrder(t *testing.T) {
	svc := newTestService(t, newFakeChain(), &fakeAttestations{}, testTimings(), nil)
	events, unsubscribe := svc.Subscribe()
	defer unsubscribe()

	started, err := svc.Start(context.Background(), transferRequest(t, entities.TransferModeFast, nil))
	require.NoError(t, err)
	waitDone(t, svc, started.ID)

	var phases []entities.TransferPhase
	var submitted []string
	for len(phases) == 0 || phases[len(phases)-1] != entities.PhaseComplete {
		select {
		case ev := <-events:
			require.Equal(t, started.ID, ev.ExecutionID)
			if ev.Message == "approval submitted" || ev.Message == "burn submitted" {
				submitted = append(submitted, ev.TxURL)
			}
			if len(phases) == 0 || phases[len(phases)-1] != ev.Phase {
				phases = append(phases, ev.Phase)
			}
		case <-time.After(time.Second):
			t.Fatal("missing events")
		}
	}

	assert.Equal(t, []entities.TransferPhase{
		entities.PhaseIdle,
		entities.PhaseApproving,
		entities.PhaseApproved,
		entities.PhaseBurning,
		entities.PhaseBurned,
		entities.PhaseAwaitingAttestation,
		entities.PhaseAttested,
		entities.PhaseComplete,
	}, phases)
	require.Len(t, submitted, 2)
	assert.Contains(t, submitted[0], "https://etherscan.io/tx/0x")
}

func TestApprovalTimeoutThenResume(t *testing.T) {
	chain := newFakeChain()
	chain.held[0] = true
	svc := newTestService(t, chain, &fakeAttestations{}, testTimings(), nil)

	started, err := svc.Start(context.Background(), transferRequest(t, entities.TransferModeFast, nil))
	require.NoError(t, err)

	exec := waitDone(t, svc, started.ID)
	require.Equal(t, entities.PhaseFailed, exec.Phase)
	assert.Equal(t, domainerrors.CodeApprovalTimeout, exec.LastErrorCode)
	assert.Equal(t, entities.PhaseApproving, exec.FailedPhase)
	assert.NotEmpty(t, exec.ApprovalTx)
	assert.Empty(t, exec.BurnTx)

	chain.release(0)
	resumed, err := svc.Resume(context.Background(), started.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.PhaseApproving, resumed.Phase)

	exec = waitDone(t, svc, started.ID)
	require.Equal(t, entities.PhaseComplete, exec.Phase, exec.LastError)
	assert.Len(t, chain.transactions(), 2)
}

func TestResumeEventPrecedesTransitions(t *testing.T) {
	chain := newFakeChain()
	chain.held[0] = true
	svc := newTestService(t, chain, &fakeAttestations{}, testTimings(), nil)

	started, err := svc.Start(context.Background(), transferRequest(t, entities.TransferModeFast, nil))
	require.NoError(t, err)
	require.Equal(t, entities.PhaseFailed, waitDone(t, svc, started.ID).Phase)

	events, unsubscribe := svc.Subscribe()
	defer unsubscribe()

	chain.release(0)
	_, err = svc.Resume(context.Background(), started.ID)
	require.NoError(t, err)

	var got []entities.TransferEvent
	for len(got) == 0 || got[len(got)-1].Phase != entities.PhaseComplete {
		select {
		case ev := <-events:
			got = append(got, ev)
		case <-time.After(5 * time.Second):
			t.Fatal("missing events")
		}
	}

	assert.Equal(t, "resumed", got[0].Message)
	assert.Equal(t, entities.PhaseApproving, got[0].Phase)
	for _, ev := range got[1:] {
		assert.NotEqual(t, "resumed", ev.Message)
	}
}

func TestBurnTimeout(t *testing.T) {
	chain := newFakeChain()
	chain.held[1] = true
	svc := newTestService(t, chain, &fakeAttestations{}, testTimings(), nil)

	started, err := svc.Start(context.Background(), transferRequest(t, entities.TransferModeFast, nil))
	require.NoError(t, err)

	exec := waitDone(t, svc, started.ID)
	require.Equal(t, entities.PhaseFailed, exec.Phase)
	assert.Equal(t, domainerrors.CodeBurnTimeout, exec.LastErrorCode)
	assert.Equal(t, entities.PhaseBurning, exec.FailedPhase)
	assert.Equal(t, exec.BurnTx, exec.LastTx())
}

func TestCancelDuringAttestation(t *testing.T) {
	chain := newFakeChain()
	atts := &fakeAttestations{pending: -1, att: cctp.Attestation{Attestation: "0xsig"}}
	timings := testTimings()
	timings.AttestationTimeout = time.Minute
	svc := newTestService(t, chain, atts, timings, nil)

	events, unsubscribe := svc.Subscribe()
	defer unsubscribe()

	started, err := svc.Start(context.Background(), transferRequest(t, entities.TransferModeFast, nil))
	require.NoError(t, err)
	waitForPhase(t, events, started.ID, entities.PhaseAwaitingAttestation)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	exec, err := svc.Cancel(ctx, started.ID)
	require.NoError(t, err)

	assert.Equal(t, entities.PhaseFailed, exec.Phase)
	assert.Equal(t, domainerrors.CodeCancelled, exec.LastErrorCode)
	assert.Equal(t, entities.PhaseAwaitingAttestation, exec.FailedPhase)
	assert.NotEmpty(t, exec.BurnTx)
	assert.Equal(t, logNonce.Hex(), exec.Nonce)

	got, err := svc.Get(started.ID)
	require.NoError(t, err)
	assert.Equal(t, exec.BurnTx, got.BurnTx)

	_, err = svc.Cancel(ctx, started.ID)
	assert.ErrorIs(t, err, domainerrors.ErrConflict)

	atts.setPending(0)
	_, err = svc.Resume(ctx, started.ID)
	require.NoError(t, err)

	exec = waitDone(t, svc, started.ID)
	assert.Equal(t, entities.PhaseComplete, exec.Phase)
	assert.Len(t, chain.transactions(), 2)
}

func TestAttestationTimeout(t *testing.T) {
	svc := newTestService(t, newFakeChain(), &fakeAttestations{pending: -1}, testTimings(), nil)

	started, err := svc.Start(context.Background(), transferRequest(t, entities.TransferModeFast, nil))
	require.NoError(t, err)

	exec := waitDone(t, svc, started.ID)
	require.Equal(t, entities.PhaseFailed, exec.Phase)
	assert.Equal(t, domainerrors.CodeAttestationTimeout, exec.LastErrorCode)
	assert.NotEmpty(t, exec.BurnTx)
	assert.NotEmpty(t, exec.Nonce)
}

func TestSubmissionFailures(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(c *fakeChain)
		code    string
		phase   entities.TransferPhase
		sentLen int
	}{
		{
			name:  "user rejected approval",
			setup: func(c *fakeChain) { c.sendErr = domainerrors.ProviderError(domainerrors.ErrUserRejected, errors.New("denied")) },
			code:  domainerrors.CodeUserRejected,
			phase: entities.PhaseApproving,
		},
		{
			name:  "provider down",
			setup: func(c *fakeChain) { c.sendErr = domainerrors.ProviderError(domainerrors.ErrProviderUnavailable, nil) },
			code:  domainerrors.CodeApprovalSubmissionError,
			phase: entities.PhaseApproving,
		},
		{
			name:    "approval reverted",
			setup:   func(c *fakeChain) { c.reverted[0] = true },
			code:    domainerrors.CodeApprovalReverted,
			phase:   entities.PhaseApproving,
			sentLen: 1,
		},
		{
			name:    "burn reverted",
			setup:   func(c *fakeChain) { c.reverted[1] = true },
			code:    domainerrors.CodeBurnReverted,
			phase:   entities.PhaseBurning,
			sentLen: 2,
		},
		{
			name:    "missing message log",
			setup:   func(c *fakeChain) { c.noLog = true },
			code:    domainerrors.CodeNonceNotFound,
			phase:   entities.PhaseBurning,
			sentLen: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := newFakeChain()
			tt.setup(chain)
			svc := newTestService(t, chain, &fakeAttestations{}, testTimings(), nil)

			started, err := svc.Start(context.Background(), transferRequest(t, entities.TransferModeFast, nil))
			require.NoError(t, err)

			exec := waitDone(t, svc, started.ID)
			assert.Equal(t, entities.PhaseFailed, exec.Phase)
			assert.Equal(t, tt.code, exec.LastErrorCode)
			assert.Equal(t, tt.phase, exec.FailedPhase)
			assert.Len(t, chain.transactions(), tt.sentLen)

			_, err = svc.Resume(context.Background(), started.ID)
			assert.ErrorIs(t, err, domainerrors.ErrConflict)
		})
	}
}

func TestStartValidation(t *testing.T) {
	chain := newFakeChain()
	svc := newTestService(t, chain, &fakeAttestations{}, testTimings(), nil)

	base := transferRequest(t, entities.TransferModeFast, nil)
	tests := map[string]func(r *entities.TransferRequest){
		"same chain":        func(r *entities.TransferRequest) { r.Destination = r.Source },
		"zero amount":       func(r *entities.TransferRequest) { r.Amount = decimal.Zero },
		"negative amount":   func(r *entities.TransferRequest) { r.Amount = decimal.NewFromInt(-1) },
		"below one unit":    func(r *entities.TransferRequest) { r.Amount = decimal.RequireFromString("0.0000001") },
		"zero recipient":    func(r *entities.TransferRequest) { r.Recipient = common.Address{} },
		"unknown hook":      func(r *entities.TransferRequest) { r.Hook = &entities.HookSpec{Kind: 0x09} },
		"unknown mode":      func(r *entities.TransferRequest) { r.Mode = "INSTANT" },
		"unregistered dest": func(r *entities.TransferRequest) { r.Destination.ChainID = 56 },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			req := base
			mutate(&req)
			_, err := svc.Start(context.Background(), req)
			assert.ErrorIs(t, err, domainerrors.ErrInvalidRequest)
		})
	}

	assert.Empty(t, chain.transactions())
	assert.Empty(t, svc.List())
}

func TestHookReporterWarning(t *testing.T) {
	atts := &fakeAttestations{att: cctp.Attestation{Attestation: "0xsig", HookData: "0x05"}}
	svc := newTestService(t, newFakeChain(), atts, testTimings(), nil)
	svc.WithHookReporter(AttestedHookReporter{})

	hook := &entities.HookSpec{Kind: entities.HookTreasuryRebalance}
	started, err := svc.Start(context.Background(), transferRequest(t, entities.TransferModeFast, hook))
	require.NoError(t, err)

	exec := waitDone(t, svc, started.ID)
	assert.Equal(t, entities.PhaseComplete, exec.Phase)
	require.Len(t, exec.Warnings, 1)
	assert.Contains(t, exec.Warnings[0], domainerrors.CodeHookExecutionFailed)
}

func TestHookReporterMatch(t *testing.T) {
	atts := &fakeAttestations{att: cctp.Attestation{Attestation: "0xsig", HookData: "0x04"}}
	svc := newTestService(t, newFakeChain(), atts, testTimings(), nil)
	svc.WithHookReporter(AttestedHookReporter{})

	hook := &entities.HookSpec{Kind: entities.HookTreasuryRebalance}
	started, err := svc.Start(context.Background(), transferRequest(t, entities.TransferModeFast, hook))
	require.NoError(t, err)

	exec := waitDone(t, svc, started.ID)
	assert.Equal(t, entities.PhaseComplete, exec.Phase)
	assert.Empty(t, exec.Warnings)
}

func TestGetUnknown(t *testing.T) {
	svc := newTestService(t, newFakeChain(), &fakeAttestations{}, testTimings(), nil)

	_, err := svc.Get(uuid.New())
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
	assert.Equal(t, "TRANSFER_NOT_FOUND", domainerrors.GetErrorCode(err))
}

func TestPruneAndList(t *testing.T) {
	svc := newTestService(t, newFakeChain(), &fakeAttestations{}, testTimings(), nil)

	first, err := svc.Start(context.Background(), transferRequest(t, entities.TransferModeFast, nil))
	require.NoError(t, err)
	waitDone(t, svc, first.ID)
	second, err := svc.Start(context.Background(), transferRequest(t, entities.TransferModeStandard, nil))
	require.NoError(t, err)
	waitDone(t, svc, second.ID)

	list := svc.List()
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)

	assert.Zero(t, svc.Prune(time.Now().Add(-time.Hour)))
	assert.Equal(t, 2, svc.Prune(time.Now().Add(time.Second)))
	assert.Empty(t, svc.List())
}

func TestShutdownRejectsNewTransfers(t *testing.T) {
	svc, err := NewService(Config{Timings: testTimings()}, registry.Mainnet(), newFakeChain(), &fakeAttestations{}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, svc.Shutdown(context.Background()))

	_, err = svc.Start(context.Background(), transferRequest(t, entities.TransferModeFast, nil))
	assert.ErrorIs(t, err, domainerrors.ErrServiceUnavailable)
}

func TestNewServiceRejectsBadTimings(t *testing.T) {
	timings := testTimings()
	timings.ReceiptTimeout = 0
	_, err := NewService(Config{Timings: timings}, registry.Mainnet(), newFakeChain(), &fakeAttestations{}, nil, nil)
	assert.Error(t, err)
}
