// Package gateway drives contract transactions through simulation,
// footprint restoration, submission and polling against a ledger node.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"ammclient/internal/auth"
	"ammclient/internal/ledger"
	"ammclient/internal/model"
	"ammclient/internal/strkey"
)

// Ledger is the node RPC surface the gateway depends on.
type Ledger interface {
	GetAccount(ctx context.Context, id strkey.Address) (ledger.Account, error)
	GetLedgerEntries(ctx context.Context, keys ...string) ([]ledger.LedgerEntry, error)
	SimulateTransaction(ctx context.Context, tx ledger.Transaction) (ledger.SimulationResult, error)
	SendTransaction(ctx context.Context, tx ledger.SignedTransaction) (ledger.SendResult, error)
	GetTransaction(ctx context.Context, hash common.Hash) (ledger.TxResult, error)
}

// Journal persists submitted hashes so polling can resume after a restart.
type Journal interface {
	PutSubmission(ctx context.Context, sub model.Submission) error
	PendingSubmissions(ctx context.Context) ([]model.Submission, error)
}

// Config controls fees, timeouts and the polling bound.
type Config struct {
	NetworkPassphrase string
	BaseFee           int64
	CallTimeout       time.Duration
	PollAttempts      int
	PollInterval      time.Duration
	// AutoRestore lets Execute restore archived entries with the same signer.
	AutoRestore bool
}

func (c Config) withDefaults() Config {
	if c.BaseFee <= 0 {
		c.BaseFee = 100
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 30 * time.Second
	}
	if c.PollAttempts <= 0 {
		c.PollAttempts = 30
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	return c
}

// Gateway owns the connection to the ledger node.
type Gateway struct {
	ledger  Ledger
	journal Journal
	cfg     Config
	metrics *Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithJournal records submissions in j.
func WithJournal(j Journal) Option {
	return func(g *Gateway) { g.journal = j }
}

// WithMetrics reports outcomes to m.
func WithMetrics(m *Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(g *Gateway) { g.logger = logger }
}

// New creates a gateway over l.
func New(l Ledger, cfg Config, opts ...Option) *Gateway {
	g := &Gateway{
		ledger: l,
		cfg:    cfg.withDefaults(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = zap.NewNop()
	}
	if g.metrics == nil {
		g.metrics = NewMetrics("", nil)
	}
	return g
}

// Config returns the effective configuration.
func (g *Gateway) Config() Config { return g.cfg }

// BuildInvoke builds an invoke transaction from source at its next sequence
// number. authEntries may be empty, in which case simulation supplies them.
func (g *Gateway) BuildInvoke(ctx context.Context, source strkey.Address, call auth.Call, authEntries ...auth.Node) (ledger.Transaction, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
	defer cancel()

	start := time.Now()
	account, err := g.ledger.GetAccount(callCtx, source)
	g.metrics.observe("getAccount", start)
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("load source account: %w", err)
	}
	tx, err := ledger.NewInvoke(source, account.NextSequence(), g.cfg.BaseFee, call)
	if err != nil {
		return ledger.Transaction{}, err
	}
	tx.Auth = append([]auth.Node(nil), authEntries...)
	return tx, nil
}

// Simulate dry-runs tx. It never changes ledger state. Archived entries
// surface as RestoreRequiredError and contract failures as
// SimulationFailedError; the result is returned in both cases.
func (g *Gateway) Simulate(ctx context.Context, tx ledger.Transaction) (ledger.SimulationResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
	defer cancel()

	start := time.Now()
	sim, err := g.ledger.SimulateTransaction(callCtx, tx)
	g.metrics.observe("simulateTransaction", start)
	if err != nil {
		g.metrics.simulations.WithLabelValues("error").Inc()
		return ledger.SimulationResult{}, err
	}
	if sim.RestorePreamble != nil {
		g.metrics.simulations.WithLabelValues("restore").Inc()
		return sim, RestoreRequiredError{Preamble: *sim.RestorePreamble}
	}
	if !sim.Success {
		g.metrics.simulations.WithLabelValues("failed").Inc()
		return sim, SimulationFailedError{Reason: sim.Error}
	}
	g.metrics.simulations.WithLabelValues("ok").Inc()
	return sim, nil
}

// Execute simulates, restores when allowed, submits and polls tx.
func (g *Gateway) Execute(ctx context.Context, tx ledger.Transaction, signer Signer) (ledger.TxResult, error) {
	flow := g.NewFlow(tx)

	_, err := flow.Simulate(ctx)
	if err != nil && IsRestoreRequired(err) && g.cfg.AutoRestore {
		if err := flow.Restore(ctx, signer); err != nil {
			return ledger.TxResult{}, err
		}
		_, err = flow.Simulate(ctx)
	}
	if err != nil {
		return ledger.TxResult{}, err
	}

	if hash, err := flow.Submit(ctx, signer); err != nil {
		if flow.State() != StateSubmitted {
			return ledger.TxResult{}, err
		}
		// The send may have landed; only polling can tell.
		g.logger.Warn("send failed, polling for the outcome", zap.String("hash", hash.Hex()), zap.Error(err))
	}
	return flow.Poll(ctx)
}

// Poll waits for hash to reach a terminal status. SUCCESS returns the
// result; FAILED returns a SubmissionRejectedError; running out of attempts
// returns a PollTimeoutError.
func (g *Gateway) Poll(ctx context.Context, hash common.Hash) (ledger.TxResult, error) {
	res, err := g.poll(ctx, hash)
	if err != nil {
		return res, err
	}
	if res.Status == ledger.TxFailed {
		return res, SubmissionRejectedError{Hash: hash, Kind: DecodeErrorKind(res.ResultCode), Code: res.ResultCode}
	}
	return res, nil
}

// Resume polls every journal entry still pending and records the outcome.
// Entries that are still pending after polling stay in the journal.
func (g *Gateway) Resume(ctx context.Context) ([]model.Submission, error) {
	if g.journal == nil {
		return nil, nil
	}
	pending, err := g.journal.PendingSubmissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pending submissions: %w", err)
	}

	out := make([]model.Submission, 0, len(pending))
	for _, sub := range pending {
		hash := common.HexToHash(sub.Hash)
		res, err := g.Poll(ctx, hash)
		var rejected SubmissionRejectedError
		switch {
		case err == nil:
			sub.Status = model.SubmissionConfirmed
			sub.Ledger = res.Ledger
		case errors.As(err, &rejected):
			sub.Status = model.SubmissionFailed
			sub.ErrorKind = string(rejected.Kind)
			sub.Ledger = res.Ledger
		case IsPollTimeout(err):
			g.logger.Info("submission still pending", zap.String("hash", sub.Hash))
			out = append(out, sub)
			continue
		default:
			return out, err
		}
		sub.UpdatedAt = g.now().UTC()
		g.record(ctx, sub)
		out = append(out, sub)
	}
	return out, nil
}

// poll runs the bounded getTransaction loop. Once a transaction has been
// sent, polling ignores caller cancellation.
func (g *Gateway) poll(ctx context.Context, hash common.Hash) (ledger.TxResult, error) {
	pollCtx := context.WithoutCancel(ctx)

	var last ledger.TxResult
	attempts, done, err := pollUntil(pollCtx, g.cfg.PollAttempts, g.cfg.PollInterval, func(ctx context.Context) bool {
		callCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
		defer cancel()

		g.metrics.polls.Inc()
		start := time.Now()
		res, err := g.ledger.GetTransaction(callCtx, hash)
		g.metrics.observe("getTransaction", start)
		if err != nil {
			g.logger.Warn("poll transaction failed", zap.String("hash", hash.Hex()), zap.Error(err))
			return false
		}
		last = res
		return res.Status == ledger.TxSuccess || res.Status == ledger.TxFailed
	})
	if err != nil {
		return last, err
	}
	if !done {
		return last, PollTimeoutError{Hash: hash, Attempts: attempts}
	}
	last.Hash = hash
	return last, nil
}

// send submits signed. Caller cancellation does not abort the request.
func (g *Gateway) send(ctx context.Context, signed ledger.SignedTransaction) (ledger.SendResult, error) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.cfg.CallTimeout)
	defer cancel()

	start := time.Now()
	res, err := g.ledger.SendTransaction(callCtx, signed)
	g.metrics.observe("sendTransaction", start)
	if err != nil {
		g.metrics.submissions.WithLabelValues("transport_error").Inc()
		return ledger.SendResult{}, err
	}
	g.metrics.submissions.WithLabelValues(string(res.Status)).Inc()
	if res.Hash == (common.Hash{}) {
		res.Hash = signed.Hash
	}
	return res, nil
}

func (g *Gateway) record(ctx context.Context, sub model.Submission) {
	if g.journal == nil {
		return
	}
	if err := g.journal.PutSubmission(context.WithoutCancel(ctx), sub); err != nil {
		g.logger.Error("journal submission failed", zap.String("hash", sub.Hash), zap.Error(err))
	}
}
