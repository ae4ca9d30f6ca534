package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"ammclient/internal/ledger"
	"ammclient/internal/model"
)

// State is a transaction's position in the submission lifecycle.
type State int

const (
	StateBuilt State = iota
	StateSimulated
	StateRestoreNeeded
	StateRestored
	StateSubmitted
	StatePolling
	StateConfirmed
	StateFailed
)

var stateNames = [...]string{
	StateBuilt:         "built",
	StateSimulated:     "simulated",
	StateRestoreNeeded: "restore_needed",
	StateRestored:      "restored",
	StateSubmitted:     "submitted",
	StatePolling:       "polling",
	StateConfirmed:     "confirmed",
	StateFailed:        "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Flow tracks one transaction from Built to Confirmed or Failed. A Flow is
// driven from a single goroutine.
type Flow struct {
	gw       *Gateway
	tx       ledger.Transaction
	state    State
	history  []State
	preamble *ledger.RestorePreamble
	hash     common.Hash
	sentAt   time.Time
}

// NewFlow starts a flow for tx in StateBuilt.
func (g *Gateway) NewFlow(tx ledger.Transaction) *Flow {
	return &Flow{
		gw:      g,
		tx:      tx,
		state:   StateBuilt,
		history: []State{StateBuilt},
	}
}

// State returns the current state.
func (f *Flow) State() State { return f.state }

// History returns every state the flow has entered, in order.
func (f *Flow) History() []State { return append([]State(nil), f.history...) }

// Transaction returns the transaction as it currently stands, including
// simulated resources and fee once simulated.
func (f *Flow) Transaction() ledger.Transaction { return f.tx }

// Hash returns the submitted hash, zero before submission.
func (f *Flow) Hash() common.Hash { return f.hash }

func (f *Flow) transition(to State) {
	f.gw.logger.Debug("transaction state",
		zap.Stringer("from", f.state),
		zap.Stringer("to", to),
	)
	f.state = to
	f.history = append(f.history, to)
}

func (f *Flow) expect(op string, allowed ...State) error {
	for _, s := range allowed {
		if f.state == s {
			return nil
		}
	}
	return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, op, f.state)
}

// Simulate dry-runs the transaction. On success the simulated resources,
// authorization and fee are applied and the flow is Simulated. Archived
// entries move it to RestoreNeeded; a contract failure to Failed.
func (f *Flow) Simulate(ctx context.Context) (ledger.SimulationResult, error) {
	if err := f.expect("simulate", StateBuilt, StateSimulated, StateRestored); err != nil {
		return ledger.SimulationResult{}, err
	}

	sim, err := f.gw.Simulate(ctx, f.tx)
	switch err.(type) {
	case nil:
		f.tx = f.tx.WithSimulation(sim, f.gw.cfg.BaseFee)
		f.transition(StateSimulated)
		return sim, nil
	case RestoreRequiredError:
		preamble := *sim.RestorePreamble
		f.preamble = &preamble
		f.transition(StateRestoreNeeded)
		return sim, err
	case SimulationFailedError:
		f.transition(StateFailed)
		return sim, err
	default:
		return sim, fmt.Errorf("simulate transaction: %w", err)
	}
}

// Restore builds, signs and submits the restore transaction for the entries
// simulation reported as archived, then waits for it to confirm. The
// original transaction's sequence number moves past the restore's.
func (f *Flow) Restore(ctx context.Context, signer Signer) error {
	if err := f.expect("restore", StateRestoreNeeded); err != nil {
		return err
	}
	g := f.gw

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
	account, err := g.ledger.GetAccount(callCtx, f.tx.Source)
	cancel()
	if err != nil {
		return fmt.Errorf("load source account: %w", err)
	}
	restore, err := ledger.NewRestore(f.tx.Source, account.NextSequence(), g.cfg.BaseFee, *f.preamble)
	if err != nil {
		return err
	}
	hash, err := restore.Hash(g.cfg.NetworkPassphrase)
	if err != nil {
		return err
	}
	signed, err := signer.Sign(ctx, restore, hash)
	if err != nil {
		return fmt.Errorf("sign restore: %w", err)
	}

	sent, err := g.send(ctx, signed)
	if err != nil {
		return fmt.Errorf("send restore: %w", err)
	}
	switch sent.Status {
	case ledger.StatusPending, ledger.StatusDuplicate:
	case ledger.StatusTryAgainLater:
		return ErrTryAgainLater
	default:
		return SubmissionRejectedError{Hash: sent.Hash, Kind: DecodeErrorKind(sent.ErrorCode), Code: sent.ErrorCode}
	}
	g.record(ctx, f.submission(sent.Hash, string(ledger.OpRestoreFootprint), model.SubmissionPending, g.now().UTC()))

	res, err := g.Poll(ctx, sent.Hash)
	if err != nil {
		return fmt.Errorf("restore %s: %w", sent.Hash.Hex(), err)
	}
	g.record(ctx, f.outcome(sent.Hash, string(ledger.OpRestoreFootprint), model.SubmissionConfirmed, "", res.Ledger))

	if err := f.checkRestored(ctx, res.Ledger); err != nil {
		return err
	}

	f.tx.Sequence = restore.Sequence + 1
	f.preamble = nil
	g.metrics.restores.Inc()
	g.logger.Info("footprint restored", zap.String("hash", sent.Hash.Hex()), zap.Uint32("ledger", res.Ledger))
	f.transition(StateRestored)
	return nil
}

func (f *Flow) checkRestored(ctx context.Context, seq uint32) error {
	keys := f.preamble.Resources.Footprint.Keys()
	if len(keys) == 0 {
		return nil
	}
	callCtx, cancel := context.WithTimeout(ctx, f.gw.cfg.CallTimeout)
	defer cancel()

	entries, err := f.gw.ledger.GetLedgerEntries(callCtx, keys...)
	if err != nil {
		return fmt.Errorf("check restored entries: %w", err)
	}
	for _, entry := range entries {
		if !entry.Live(seq) {
			return fmt.Errorf("entry %s still archived after restore", entry.Key)
		}
	}
	return nil
}

// Submit signs and sends the simulated transaction. It is refused until
// simulation succeeded, and in particular while a restore is outstanding.
//
// PENDING and DUPLICATE both lead to Submitted; for DUPLICATE the hash the
// node reports is authoritative. TRY_AGAIN_LATER leaves the flow Simulated
// and returns ErrTryAgainLater. ERROR fails the flow with a
// SubmissionRejectedError.
func (f *Flow) Submit(ctx context.Context, signer Signer) (common.Hash, error) {
	if f.state == StateRestoreNeeded {
		return common.Hash{}, fmt.Errorf("%w: submit before restore: %w", ErrInvalidTransition, RestoreRequiredError{Preamble: *f.preamble})
	}
	if err := f.expect("submit", StateSimulated); err != nil {
		return common.Hash{}, err
	}
	g := f.gw

	hash, err := f.tx.Hash(g.cfg.NetworkPassphrase)
	if err != nil {
		return common.Hash{}, err
	}
	signed, err := signer.Sign(ctx, f.tx, hash)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign transaction: %w", err)
	}

	f.sentAt = g.now().UTC()
	sent, err := g.send(ctx, signed)
	if err != nil {
		// The request may have reached the node: poll rather than resend.
		f.hash = hash
		g.record(ctx, f.submission(hash, f.method(), model.SubmissionPending, f.sentAt))
		f.transition(StateSubmitted)
		return hash, fmt.Errorf("send transaction: %w", err)
	}

	switch sent.Status {
	case ledger.StatusPending, ledger.StatusDuplicate:
		f.hash = sent.Hash
		g.record(ctx, f.submission(f.hash, f.method(), model.SubmissionPending, f.sentAt))
		g.logger.Info("transaction submitted",
			zap.String("hash", f.hash.Hex()),
			zap.String("status", string(sent.Status)),
		)
		f.transition(StateSubmitted)
		return f.hash, nil
	case ledger.StatusTryAgainLater:
		return common.Hash{}, ErrTryAgainLater
	default:
		kind := DecodeErrorKind(sent.ErrorCode)
		f.hash = sent.Hash
		g.record(ctx, f.outcome(f.hash, f.method(), model.SubmissionFailed, kind, 0))
		f.transition(StateFailed)
		return f.hash, SubmissionRejectedError{Hash: f.hash, Kind: kind, Code: sent.ErrorCode}
	}
}

// Poll waits for the submitted transaction to reach a terminal status.
// After a PollTimeoutError the flow stays Polling and Poll may be called
// again.
func (f *Flow) Poll(ctx context.Context) (ledger.TxResult, error) {
	if err := f.expect("poll", StateSubmitted, StatePolling); err != nil {
		return ledger.TxResult{}, err
	}
	if f.state == StateSubmitted {
		f.transition(StatePolling)
	}
	g := f.gw

	res, err := g.poll(ctx, f.hash)
	if err != nil {
		return res, err
	}
	if res.Status == ledger.TxFailed {
		kind := DecodeErrorKind(res.ResultCode)
		g.record(ctx, f.outcome(f.hash, f.method(), model.SubmissionFailed, kind, res.Ledger))
		f.transition(StateFailed)
		return res, SubmissionRejectedError{Hash: f.hash, Kind: kind, Code: res.ResultCode}
	}

	g.record(ctx, f.outcome(f.hash, f.method(), model.SubmissionConfirmed, "", res.Ledger))
	g.logger.Info("transaction confirmed", zap.String("hash", f.hash.Hex()), zap.Uint32("ledger", res.Ledger))
	f.transition(StateConfirmed)
	return res, nil
}

func (f *Flow) method() string {
	if f.tx.Invoke == nil {
		return string(f.tx.Kind)
	}
	return f.tx.Invoke.Method
}

func (f *Flow) submission(hash common.Hash, method, status string, at time.Time) model.Submission {
	sub := model.Submission{
		Hash:        hash.Hex(),
		Method:      method,
		Status:      status,
		SubmittedAt: at,
		UpdatedAt:   at,
	}
	if f.tx.Invoke != nil && method == f.tx.Invoke.Method {
		sub.Contract = f.tx.Invoke.Contract.String()
	}
	return sub
}

func (f *Flow) outcome(hash common.Hash, method, status string, kind ErrorKind, seq uint32) model.Submission {
	now := f.gw.now().UTC()
	at := f.sentAt
	if at.IsZero() {
		at = now
	}
	sub := f.submission(hash, method, status, at)
	sub.ErrorKind = string(kind)
	sub.Ledger = seq
	sub.UpdatedAt = now
	return sub
}
