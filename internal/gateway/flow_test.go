package gateway

import (
	"context"
	"crypto/ed25519"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ammclient/internal/auth"
	"ammclient/internal/ledger"
	"ammclient/internal/model"
	"ammclient/internal/scval"
	"ammclient/internal/strkey"
)

type fakeLedger struct {
	mu       sync.Mutex
	sequence int64
	sims     []ledger.SimulationResult
	sends    []ledger.SendResult
	results  []ledger.TxResult
	entries  []ledger.LedgerEntry
	sent     []ledger.SignedTransaction
	sendErr  error
	polls    int
}

func (f *fakeLedger) GetAccount(_ context.Context, id strkey.Address) (ledger.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return ledger.Account{ID: id, Sequence: f.sequence}, nil
}

func (f *fakeLedger) GetLedgerEntries(_ context.Context, keys ...string) ([]ledger.LedgerEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries, nil
}

func (f *fakeLedger) SimulateTransaction(_ context.Context, _ ledger.Transaction) (ledger.SimulationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sims) == 0 {
		return ledger.SimulationResult{}, errors.New("no simulation queued")
	}
	sim := f.sims[0]
	f.sims = f.sims[1:]
	return sim, nil
}

func (f *fakeLedger) SendTransaction(_ context.Context, tx ledger.SignedTransaction) (ledger.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	if tx.Tx.Sequence > f.sequence {
		f.sequence = tx.Tx.Sequence
	}
	if f.sendErr != nil {
		return ledger.SendResult{}, f.sendErr
	}
	if len(f.sends) == 0 {
		return ledger.SendResult{Status: ledger.StatusPending, Hash: tx.Hash}, nil
	}
	res := f.sends[0]
	f.sends = f.sends[1:]
	return res, nil
}

// GetTransaction replays results in order, repeating the last one.
func (f *fakeLedger) GetTransaction(_ context.Context, hash common.Hash) (ledger.TxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if len(f.results) == 0 {
		return ledger.TxResult{Status: ledger.TxNotFound}, nil
	}
	res := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return res, nil
}

type memJournal struct {
	mu   sync.Mutex
	subs map[string]model.Submission
}

func newMemJournal() *memJournal {
	return &memJournal{subs: make(map[string]model.Submission)}
}

func (j *memJournal) PutSubmission(_ context.Context, sub model.Submission) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.subs[sub.Hash] = sub
	return nil
}

func (j *memJournal) PendingSubmissions(context.Context) ([]model.Submission, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []model.Submission
	for _, sub := range j.subs {
		if !sub.Terminal() {
			out = append(out, sub)
		}
	}
	return out, nil
}

func testSigner(t *testing.T) *KeySigner {
	t.Helper()
	signer, err := NewKeySigner(ed25519.NewKeyFromSeed(make([]byte, ed25519.SeedSize)))
	require.NoError(t, err)
	return signer
}

func testTx(t *testing.T, source strkey.Address, seq int64) ledger.Transaction {
	t.Helper()
	var id [32]byte
	id[0] = 1
	call, err := auth.NewCall(strkey.ContractFromID(id), "deposit_position", scval.NewAddress(source))
	require.NoError(t, err)
	tx, err := ledger.NewInvoke(source, seq, 100, call)
	require.NoError(t, err)
	return tx
}

func testGateway(fake *fakeLedger, opts ...Option) *Gateway {
	cfg := Config{
		NetworkPassphrase: "Test Network",
		BaseFee:           100,
		CallTimeout:       time.Second,
		PollAttempts:      3,
		PollInterval:      time.Millisecond,
	}
	return New(fake, cfg, opts...)
}

func restoreSim() ledger.SimulationResult {
	return ledger.SimulationResult{
		Success: true,
		RestorePreamble: &ledger.RestorePreamble{
			Resources:      ledger.Resources{Footprint: ledger.Footprint{ReadWrite: []string{"pool:state"}}},
			MinResourceFee: 500,
		},
	}
}

func okSim() ledger.SimulationResult {
	return ledger.SimulationResult{
		Success:        true,
		MinResourceFee: 1000,
		Resources:      &ledger.Resources{ResourceFee: 1000},
		Return:         scval.U32(1),
	}
}

func TestRestoreMustPrecedeSubmit(t *testing.T) {
	signer := testSigner(t)
	fake := &fakeLedger{
		sequence: 41,
		sims:     []ledger.SimulationResult{restoreSim(), okSim()},
		results:  []ledger.TxResult{{Status: ledger.TxSuccess, Ledger: 90}},
	}
	gw := testGateway(fake, WithMetrics(NewMetrics("test", prometheus.NewRegistry())))
	flow := gw.NewFlow(testTx(t, signer.Address(), 42))

	_, err := flow.Simulate(context.Background())
	require.True(t, IsRestoreRequired(err))
	assert.Equal(t, StateRestoreNeeded, flow.State())

	_, err = flow.Submit(context.Background(), signer)
	require.True(t, errors.Is(err, ErrInvalidTransition))
	assert.True(t, IsRestoreRequired(err))
	assert.Empty(t, fake.sent)

	require.NoError(t, flow.Restore(context.Background(), signer))
	assert.Equal(t, StateRestored, flow.State())
	require.Len(t, fake.sent, 1)
	assert.Equal(t, ledger.OpRestoreFootprint, fake.sent[0].Tx.Kind)
	assert.Equal(t, int64(42), fake.sent[0].Tx.Sequence)
	assert.Equal(t, int64(43), flow.Transaction().Sequence)

	_, err = flow.Simulate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1100), flow.Transaction().Fee)

	hash, err := flow.Submit(context.Background(), signer)
	require.NoError(t, err)
	assert.Equal(t, fake.sent[1].Hash, hash)

	res, err := flow.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(90), res.Ledger)

	assert.Equal(t, []State{
		StateBuilt, StateRestoreNeeded, StateRestored, StateSimulated,
		StateSubmitted, StatePolling, StateConfirmed,
	}, flow.History())
}

func TestRestoreRejectedWhenEntriesStillArchived(t *testing.T) {
	signer := testSigner(t)
	stale := uint32(10)
	fake := &fakeLedger{
		sims:    []ledger.SimulationResult{restoreSim()},
		results: []ledger.TxResult{{Status: ledger.TxSuccess, Ledger: 90}},
		entries: []ledger.LedgerEntry{{Key: "pool:state", LiveUntilLedger: &stale}},
	}
	flow := testGateway(fake).NewFlow(testTx(t, signer.Address(), 1))

	_, err := flow.Simulate(context.Background())
	require.Error(t, err)
	require.Error(t, flow.Restore(context.Background(), signer))
	assert.Equal(t, StateRestoreNeeded, flow.State())
}

func TestSubmitStatuses(t *testing.T) {
	nodeHash := common.HexToHash("0xfeed")
	tests := []struct {
		name     string
		send     ledger.SendResult
		wantErr  func(error) bool
		state    State
		wantHash common.Hash
	}{
		{
			name:     "duplicate uses node hash",
			send:     ledger.SendResult{Status: ledger.StatusDuplicate, Hash: nodeHash},
			state:    StateSubmitted,
			wantHash: nodeHash,
		},
		{
			name:    "try again later",
			send:    ledger.SendResult{Status: ledger.StatusTryAgainLater},
			wantErr: func(err error) bool { return errors.Is(err, ErrTryAgainLater) },
			state:   StateSimulated,
		},
		{
			name: "error decoded",
			send: ledger.SendResult{Status: ledger.StatusError, Hash: nodeHash, ErrorCode: "txBAD_SEQ"},
			wantErr: func(err error) bool {
				var rejected SubmissionRejectedError
				return errors.As(err, &rejected) && rejected.Kind == KindBadSequence
			},
			state:    StateFailed,
			wantHash: nodeHash,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signer := testSigner(t)
			fake := &fakeLedger{
				sims:  []ledger.SimulationResult{okSim()},
				sends: []ledger.SendResult{tt.send},
			}
			flow := testGateway(fake).NewFlow(testTx(t, signer.Address(), 5))
			_, err := flow.Simulate(context.Background())
			require.NoError(t, err)

			hash, err := flow.Submit(context.Background(), signer)
			if tt.wantErr == nil {
				require.NoError(t, err)
			} else {
				require.True(t, tt.wantErr(err), "unexpected error: %v", err)
			}
			assert.Equal(t, tt.state, flow.State())
			assert.Equal(t, tt.wantHash, hash)
			assert.Len(t, fake.sent, 1)
		})
	}
}

func TestPollTimeoutIsDistinct(t *testing.T) {
	signer := testSigner(t)
	journal := newMemJournal()
	fake := &fakeLedger{sims: []ledger.SimulationResult{okSim()}}
	flow := testGateway(fake, WithJournal(journal)).NewFlow(testTx(t, signer.Address(), 5))

	_, err := flow.Simulate(context.Background())
	require.NoError(t, err)
	_, err = flow.Submit(context.Background(), signer)
	require.NoError(t, err)

	_, err = flow.Poll(context.Background())
	var timeout PollTimeoutError
	require.True(t, errors.As(err, &timeout))
	assert.Equal(t, 3, timeout.Attempts)
	assert.Equal(t, 3, fake.polls)
	assert.Equal(t, StatePolling, flow.State())

	pending, err := journal.PendingSubmissions(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "deposit_position", pending[0].Method)
}

func TestPollDecodesFailure(t *testing.T) {
	signer := testSigner(t)
	fake := &fakeLedger{
		sims:    []ledger.SimulationResult{okSim()},
		results: []ledger.TxResult{{Status: ledger.TxFailed, Ledger: 7, ResultCode: "txFAILED,INVOKE_HOST_FUNCTION_TRAPPED"}},
	}
	flow := testGateway(fake).NewFlow(testTx(t, signer.Address(), 5))

	_, err := flow.Simulate(context.Background())
	require.NoError(t, err)
	_, err = flow.Submit(context.Background(), signer)
	require.NoError(t, err)

	_, err = flow.Poll(context.Background())
	var rejected SubmissionRejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, KindContractFailure, rejected.Kind)
	assert.Equal(t, StateFailed, flow.State())
}

func TestPollIgnoresCallerCancellation(t *testing.T) {
	signer := testSigner(t)
	fake := &fakeLedger{
		sims: []ledger.SimulationResult{okSim()},
		results: []ledger.TxResult{
			{Status: ledger.TxNotFound},
			{Status: ledger.TxSuccess, Ledger: 12},
		},
	}
	flow := testGateway(fake).NewFlow(testTx(t, signer.Address(), 5))
	_, err := flow.Simulate(context.Background())
	require.NoError(t, err)
	_, err = flow.Submit(context.Background(), signer)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := flow.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(12), res.Ledger)
	assert.Equal(t, StateConfirmed, flow.State())
}

func TestSimulationFailure(t *testing.T) {
	signer := testSigner(t)
	fake := &fakeLedger{sims: []ledger.SimulationResult{{Error: "HostError: Error(Contract, #3)"}}}
	flow := testGateway(fake).NewFlow(testTx(t, signer.Address(), 5))

	_, err := flow.Simulate(context.Background())
	var failed SimulationFailedError
	require.True(t, errors.As(err, &failed))
	assert.Contains(t, failed.Reason, "#3")
	assert.Equal(t, StateFailed, flow.State())

	_, err = flow.Submit(context.Background(), signer)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
}

func TestExecuteAutoRestore(t *testing.T) {
	signer := testSigner(t)
	fake := &fakeLedger{
		sequence: 9,
		sims:     []ledger.SimulationResult{restoreSim(), okSim()},
		results:  []ledger.TxResult{{Status: ledger.TxSuccess, Ledger: 30}},
	}
	gw := New(fake, Config{
		NetworkPassphrase: "Test Network",
		PollAttempts:      2,
		PollInterval:      time.Millisecond,
		AutoRestore:       true,
	})

	res, err := gw.Execute(context.Background(), testTx(t, signer.Address(), 10), signer)
	require.NoError(t, err)
	assert.Equal(t, ledger.TxSuccess, res.Status)
	require.Len(t, fake.sent, 2)
	assert.Equal(t, ledger.OpRestoreFootprint, fake.sent[0].Tx.Kind)
	assert.Equal(t, ledger.OpInvokeContract, fake.sent[1].Tx.Kind)
}

func TestResume(t *testing.T) {
	journal := newMemJournal()
	confirmed := common.HexToHash("0x01")
	require.NoError(t, journal.PutSubmission(context.Background(), model.Submission{
		Hash:   confirmed.Hex(),
		Method: "withdraw",
		Status: model.SubmissionPending,
	}))

	fake := &fakeLedger{results: []ledger.TxResult{{Status: ledger.TxSuccess, Ledger: 55}}}
	gw := testGateway(fake, WithJournal(journal))

	out, err := gw.Resume(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, model.SubmissionConfirmed, out[0].Status)
	assert.Equal(t, uint32(55), out[0].Ledger)

	pending, err := journal.PendingSubmissions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDecodeErrorKind(t *testing.T) {
	assert.Equal(t, KindInsufficientAuthorization, DecodeErrorKind("txBAD_AUTH"))
	assert.Equal(t, KindUnderfunded, DecodeErrorKind("txFAILED_X, opUNDERFUNDED"))
	assert.Equal(t, KindUnknown, DecodeErrorKind("txSOMETHING_NEW"))
	assert.Equal(t, KindUnknown, DecodeErrorKind(""))
}

func TestExecutePollsAfterSendTransportError(t *testing.T) {
	signer := testSigner(t)
	journal := newMemJournal()
	fake := &fakeLedger{
		sims:    []ledger.SimulationResult{okSim()},
		sendErr: errors.New("connection reset after write"),
		results: []ledger.TxResult{{Status: ledger.TxNotFound}, {Status: ledger.TxSuccess, Ledger: 77}},
	}
	metrics := NewMetrics("test", prometheus.NewRegistry())
	gw := testGateway(fake, WithJournal(journal), WithMetrics(metrics))

	res, err := gw.Execute(context.Background(), testTx(t, signer.Address(), 5), signer)
	require.NoError(t, err)
	assert.Equal(t, ledger.TxSuccess, res.Status)
	assert.Equal(t, uint32(77), res.Ledger)
	assert.Len(t, fake.sent, 1, "a transaction whose send failed must not be resent")
	assert.Equal(t, 2, fake.polls)

	pending, err := journal.PendingSubmissions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.simulations.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.submissions.WithLabelValues("transport_error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.polls))
}

func TestExecuteSendTransportErrorTimesOut(t *testing.T) {
	signer := testSigner(t)
	fake := &fakeLedger{
		sims:    []ledger.SimulationResult{okSim()},
		sendErr: errors.New("connection reset after write"),
	}
	gw := testGateway(fake)

	_, err := gw.Execute(context.Background(), testTx(t, signer.Address(), 5), signer)
	var timeout PollTimeoutError
	require.True(t, errors.As(err, &timeout), "got %v", err)
	assert.Len(t, fake.sent, 1)
	assert.Equal(t, 3, fake.polls)
}

func TestMetricsCountOutcomes(t *testing.T) {
	signer := testSigner(t)
	reg := prometheus.NewRegistry()
	metrics := NewMetrics("test", reg)
	fake := &fakeLedger{
		sequence: 9,
		sims:     []ledger.SimulationResult{restoreSim(), okSim()},
		results:  []ledger.TxResult{{Status: ledger.TxSuccess, Ledger: 30}},
	}
	gw := New(fake, Config{
		NetworkPassphrase: "Test Network",
		PollAttempts:      2,
		PollInterval:      time.Millisecond,
		AutoRestore:       true,
	}, WithMetrics(metrics))

	_, err := gw.Execute(context.Background(), testTx(t, signer.Address(), 10), signer)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.simulations.WithLabelValues("restore")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.simulations.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.submissions.WithLabelValues(string(ledger.StatusPending))))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.restores))

	n, err := testutil.GatherAndCount(reg, "test_gateway_restores_total", "test_gateway_submissions_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
