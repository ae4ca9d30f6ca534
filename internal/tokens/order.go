// Package tokens orders a pool's tokens the way the pool's contract stores
// them. Every call that sends per-token arrays must go through an Orderer.
package tokens

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"ammclient/internal/model"
)

// OrderingError is returned when a token set does not match a pool's tokens.
type OrderingError struct {
	Pool   string
	Reason string
}

func (e OrderingError) Error() string {
	return fmt.Sprintf("token ordering for pool (%s): %s", e.Pool, e.Reason)
}

// Source supplies a pool's tokens in on-ledger canonical order.
type Source interface {
	PoolTokens(ctx context.Context, pool string) ([]model.Token, error)
}

// Orderer caches canonical orders per pool address.
type Orderer struct {
	source Source

	mu    sync.RWMutex
	cache map[string][]model.Token
}

// NewOrderer creates an Orderer backed by source.
func NewOrderer(source Source) *Orderer {
	return &Orderer{
		source: source,
		cache:  make(map[string][]model.Token),
	}
}

// Seed stores a known canonical order, e.g. from a pool record already fetched.
func (o *Orderer) Seed(pool string, tokens []model.Token) {
	o.mu.Lock()
	o.cache[pool] = append([]model.Token(nil), tokens...)
	o.mu.Unlock()
}

// Invalidate drops the cached order for a pool.
func (o *Orderer) Invalidate(pool string) {
	o.mu.Lock()
	delete(o.cache, pool)
	o.mu.Unlock()
}

// Canonical returns the pool's token order, fetching it once.
func (o *Orderer) Canonical(ctx context.Context, pool string) ([]model.Token, error) {
	o.mu.RLock()
	tokens, ok := o.cache[pool]
	o.mu.RUnlock()
	if ok {
		return append([]model.Token(nil), tokens...), nil
	}

	if o.source == nil {
		return nil, fmt.Errorf("no token source for pool %s", pool)
	}
	fetched, err := o.source.PoolTokens(ctx, pool)
	if err != nil {
		return nil, fmt.Errorf("fetch pool tokens: %w", err)
	}
	if len(fetched) == 0 {
		return nil, OrderingError{Pool: pool, Reason: "pool has no tokens"}
	}
	seen := make(map[string]struct{}, len(fetched))
	for _, token := range fetched {
		if _, dup := seen[token.ID]; dup {
			return nil, OrderingError{Pool: pool, Reason: fmt.Sprintf("pool lists token %s twice", token.ID)}
		}
		seen[token.ID] = struct{}{}
	}

	o.Seed(pool, fetched)
	return append([]model.Token(nil), fetched...), nil
}

// OrderTokens returns tokens in the pool's canonical order. The input must be
// exactly the pool's token set.
func (o *Orderer) OrderTokens(ctx context.Context, pool string, tokens []model.Token) ([]model.Token, error) {
	canonical, err := o.Canonical(ctx, pool)
	if err != nil {
		return nil, err
	}
	if len(tokens) != len(canonical) {
		return nil, OrderingError{Pool: pool, Reason: fmt.Sprintf("got %d tokens, pool has %d", len(tokens), len(canonical))}
	}

	byID := make(map[string]model.Token, len(tokens))
	for _, token := range tokens {
		if _, dup := byID[token.ID]; dup {
			return nil, OrderingError{Pool: pool, Reason: fmt.Sprintf("token %s given twice", token.ID)}
		}
		byID[token.ID] = token
	}

	ordered := make([]model.Token, 0, len(canonical))
	for _, want := range canonical {
		if _, ok := byID[want.ID]; !ok {
			return nil, OrderingError{Pool: pool, Reason: fmt.Sprintf("missing token %s", want.ID)}
		}
		// Canonical metadata wins over caller-supplied fields.
		ordered = append(ordered, want)
	}
	return ordered, nil
}

// OrderAmounts lays out per-token amounts in canonical order. The amounts map
// is keyed by token ID and must cover exactly the pool's tokens.
func (o *Orderer) OrderAmounts(ctx context.Context, pool string, amounts map[string]decimal.Decimal) ([]model.Token, []decimal.Decimal, error) {
	canonical, err := o.Canonical(ctx, pool)
	if err != nil {
		return nil, nil, err
	}
	if len(amounts) != len(canonical) {
		return nil, nil, OrderingError{Pool: pool, Reason: fmt.Sprintf("got %d amounts, pool has %d tokens", len(amounts), len(canonical))}
	}

	ordered := make([]decimal.Decimal, 0, len(canonical))
	for _, token := range canonical {
		amount, ok := amounts[token.ID]
		if !ok {
			return nil, nil, OrderingError{Pool: pool, Reason: fmt.Sprintf("missing amount for token %s", token.ID)}
		}
		ordered = append(ordered, amount)
	}
	return canonical, ordered, nil
}

// CheckOrder returns the pool's canonical tokens if tokens already lists them
// in canonical order. Any other order is an OrderingError: values positioned
// by the caller's order must not be reinterpreted.
func (o *Orderer) CheckOrder(ctx context.Context, pool string, tokens []model.Token) ([]model.Token, error) {
	ordered, err := o.OrderTokens(ctx, pool, tokens)
	if err != nil {
		return nil, err
	}
	for i := range ordered {
		if ordered[i].ID != tokens[i].ID {
			return nil, OrderingError{Pool: pool, Reason: fmt.Sprintf("token %d is %s, pool stores %s", i, tokens[i].ID, ordered[i].ID)}
		}
	}
	return ordered, nil
}
