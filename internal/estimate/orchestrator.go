// Package estimate sizes a concentrated-liquidity deposit: an instant local
// preview on every edit, then a debounced remote estimate whose answer is
// applied only if no newer edit has been made since.
package estimate

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ammclient/internal/clmath"
	"ammclient/internal/model"
	"ammclient/internal/strkey"
)

var (
	// ErrEstimatePending is returned when the latest remote estimate has not
	// resolved yet.
	ErrEstimatePending = errors.New("deposit estimate still pending")

	// ErrStaleEstimate is returned when a caller builds against an estimate
	// that a newer edit has superseded.
	ErrStaleEstimate = errors.New("deposit estimate is stale")

	// ErrNoEstimate is returned before any estimate was requested.
	ErrNoEstimate = errors.New("no deposit estimate requested")
)

// Request is one edit of the deposit form.
type Request struct {
	Owner     strkey.Address
	Pool      model.Pool
	TickLower int32
	TickUpper int32
	Side      clmath.Side
	Amount    decimal.Decimal
}

func (r Request) validate() error {
	if !r.Pool.IsConcentrated() || r.Pool.Slot0 == nil || len(r.Pool.Tokens) != 2 {
		return fmt.Errorf("pool %s is not a concentrated pool with a known slot0", r.Pool.Address)
	}
	return model.ValidateRange(r.TickLower, r.TickUpper, r.Pool.TickSpacing)
}

// Preview computes the local amount pair for the request.
func (r Request) Preview() (clmath.Pair, error) {
	if err := r.validate(); err != nil {
		return clmath.Pair{}, err
	}
	return clmath.PairFromAmount(r.Side, r.Amount,
		r.TickLower, r.TickUpper, r.Pool.Slot0.Tick,
		r.Pool.Tokens[0].Decimals, r.Pool.Tokens[1].Decimals,
	)
}

type cacheKey struct {
	pool   string
	owner  strkey.Address
	lower  int32
	upper  int32
	tick   int32
	side   clmath.Side
	amount string
}

func (r Request) key() cacheKey {
	return cacheKey{
		pool:   r.Pool.Address,
		owner:  r.Owner,
		lower:  r.TickLower,
		upper:  r.TickUpper,
		tick:   r.Pool.Slot0.Tick,
		side:   r.Side,
		amount: r.Amount.String(),
	}
}

// Result is a contract-exact deposit estimate.
type Result struct {
	Seq       uint64
	Amount0   decimal.Decimal
	Amount1   decimal.Decimal
	Liquidity *big.Int
}

// Estimator runs the simulate-only remote estimate. Implementations should
// honor ctx; a superseded request's context is cancelled.
type Estimator interface {
	EstimateDepositPosition(ctx context.Context, req Request, preview clmath.Pair) (Result, error)
}

// Config controls debounce and caching.
type Config struct {
	Debounce  time.Duration
	CacheSize int
}

// Orchestrator owns the latest-request sequence number. All fields below mu
// are guarded by it; the sequence counter is the only state shared between
// Update and response dispatch.
type Orchestrator struct {
	estimator Estimator
	debounce  time.Duration
	cache     *lru.Cache[cacheKey, Result]
	logger    *zap.Logger

	mu        sync.Mutex
	seq       uint64
	resolved  uint64
	latest    Result
	latestErr error
	waiters   chan struct{}
	timer     *time.Timer
	cancel    context.CancelFunc
}

// New creates an orchestrator. estimator may be nil when the caller drives
// Issue and Complete directly.
func New(estimator Estimator, cfg Config, logger *zap.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = 256
	}
	cache, err := lru.New[cacheKey, Result](size)
	if err != nil {
		return nil, fmt.Errorf("create estimate cache: %w", err)
	}
	return &Orchestrator{
		estimator: estimator,
		debounce:  cfg.Debounce,
		cache:     cache,
		logger:    logger,
		waiters:   make(chan struct{}),
	}, nil
}

// Issue tags a new request, superseding every earlier one.
func (o *Orchestrator) Issue() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.issueLocked()
}

func (o *Orchestrator) issueLocked() uint64 {
	o.seq++
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	return o.seq
}

// Complete delivers the response for seq. It is applied only when seq is the
// most recently issued one; the return value reports whether it was.
func (o *Orchestrator) Complete(seq uint64, res Result, err error) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if seq != o.seq {
		o.logger.Debug("estimate discarded", zap.Uint64("seq", seq), zap.Uint64("latest", o.seq))
		return false
	}
	if o.resolved == seq {
		return false
	}
	res.Seq = seq
	o.latest = res
	o.latestErr = err
	o.resolved = seq
	close(o.waiters)
	o.waiters = make(chan struct{})
	return true
}

// Update recomputes the local preview and schedules a remote estimate for
// req. The preview is returned immediately; the remote answer becomes
// visible through Latest, Wait and Finalize.
func (o *Orchestrator) Update(ctx context.Context, req Request) (clmath.Pair, uint64, error) {
	preview, err := req.Preview()
	if err != nil {
		return clmath.Pair{}, 0, err
	}

	o.mu.Lock()
	seq := o.issueLocked()
	if cached, ok := o.cache.Get(req.key()); ok {
		o.mu.Unlock()
		o.Complete(seq, cached, nil)
		return preview, seq, nil
	}
	if o.estimator == nil {
		o.mu.Unlock()
		return preview, seq, nil
	}

	callCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	dispatch := func() { o.dispatch(callCtx, seq, req, preview) }
	if o.debounce <= 0 {
		go dispatch()
	} else {
		o.timer = time.AfterFunc(o.debounce, dispatch)
	}
	o.mu.Unlock()
	return preview, seq, nil
}

func (o *Orchestrator) dispatch(ctx context.Context, seq uint64, req Request, preview clmath.Pair) {
	if ctx.Err() != nil {
		return
	}
	res, err := o.estimator.EstimateDepositPosition(ctx, req, preview)
	if err == nil {
		o.cache.Add(req.key(), res)
	} else if errors.Is(err, context.Canceled) {
		o.logger.Debug("estimate cancelled", zap.Uint64("seq", seq))
	} else {
		o.logger.Warn("estimate failed", zap.Uint64("seq", seq), zap.Error(err))
	}
	o.Complete(seq, res, err)
}

// Latest returns the most recently applied estimate, if any.
func (o *Orchestrator) Latest() (Result, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.resolved == 0 || o.latestErr != nil {
		return Result{}, false
	}
	return o.latest, true
}

// Wait blocks until the latest issued request resolves.
func (o *Orchestrator) Wait(ctx context.Context) (Result, error) {
	for {
		o.mu.Lock()
		if o.seq == 0 {
			o.mu.Unlock()
			return Result{}, ErrNoEstimate
		}
		if o.resolved == o.seq {
			res, err := o.latest, o.latestErr
			o.mu.Unlock()
			return res, err
		}
		ch := o.waiters
		o.mu.Unlock()

		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-ch:
		}
	}
}

// Finalize returns the estimate a transaction may be built from. It fails
// with ErrEstimatePending while the latest request is in flight.
func (o *Orchestrator) Finalize() (Result, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch {
	case o.seq == 0:
		return Result{}, ErrNoEstimate
	case o.resolved != o.seq:
		return Result{}, ErrEstimatePending
	case o.latestErr != nil:
		return Result{}, fmt.Errorf("deposit estimate %d: %w", o.seq, o.latestErr)
	}
	return o.latest, nil
}

// Check rejects res unless it is the estimate for the latest request.
func (o *Orchestrator) Check(res Result) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if res.Seq != o.seq {
		return ErrStaleEstimate
	}
	if o.resolved != o.seq {
		return ErrEstimatePending
	}
	if o.latestErr != nil {
		return fmt.Errorf("deposit estimate %d: %w", o.seq, o.latestErr)
	}
	return nil
}
