package amm

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"ammclient/internal/codec"
	"ammclient/internal/model"
	"ammclient/internal/scval"
	"ammclient/internal/strkey"
)

// ShareDecimals is the precision of every pool share token.
const ShareDecimals = 7

// PoolCache caches static pool metadata by address.
type PoolCache struct {
	mu   sync.RWMutex
	data map[string]model.Pool
}

func NewPoolCache() *PoolCache {
	return &PoolCache{data: make(map[string]model.Pool)}
}

func (c *PoolCache) Get(address string) (model.Pool, bool) {
	c.mu.RLock()
	pool, ok := c.data[address]
	c.mu.RUnlock()
	return pool, ok
}

func (c *PoolCache) Set(address string, pool model.Pool) {
	c.mu.Lock()
	c.data[address] = pool
	c.mu.Unlock()
}

// TokenCache caches token metadata by identifier.
type TokenCache struct {
	mu   sync.RWMutex
	data map[string]model.Token
}

func NewTokenCache() *TokenCache {
	return &TokenCache{data: make(map[string]model.Token)}
}

func (c *TokenCache) Get(id string) (model.Token, bool) {
	c.mu.RLock()
	token, ok := c.data[id]
	c.mu.RUnlock()
	return token, ok
}

func (c *TokenCache) Set(id string, token model.Token) {
	c.mu.Lock()
	c.data[id] = token
	c.mu.Unlock()
}

// Preload seeds the caches with pools loaded elsewhere, e.g. a registry.
func (c *Client) Preload(pools []model.Pool) {
	for _, pool := range pools {
		pool.Slot0 = nil
		c.pools.Set(pool.Address, pool)
		c.orderer.Seed(pool.Address, pool.Tokens)
		for _, token := range pool.Tokens {
			c.tokens.Set(token.ID, token)
		}
	}
}

// PoolTokens returns the pool's tokens in the pool's own order. It
// implements tokens.Source.
func (c *Client) PoolTokens(ctx context.Context, pool string) ([]model.Token, error) {
	if cached, ok := c.pools.Get(pool); ok {
		return cached.Tokens, nil
	}
	addr, err := c.contract(pool)
	if err != nil {
		return nil, err
	}
	value, err := c.read(ctx, addr, "get_tokens")
	if err != nil {
		return nil, err
	}
	list, ok := value.(scval.Vec)
	if !ok {
		return nil, fmt.Errorf("get_tokens: expected vec, got %s", value.Kind())
	}

	out := make([]model.Token, 0, list.Len())
	for i, item := range list.Items() {
		id, err := codec.DecodeIdentity(item)
		if err != nil {
			return nil, fmt.Errorf("get_tokens[%d]: %w", i, err)
		}
		token, err := c.FetchToken(ctx, c.tokenID(id))
		if err != nil {
			return nil, err
		}
		out = append(out, token)
	}
	return out, nil
}

// FetchToken loads token metadata via the token contract, using the cache.
// A failed symbol lookup is logged and leaves Code empty.
func (c *Client) FetchToken(ctx context.Context, id string) (model.Token, error) {
	if cached, ok := c.tokens.Get(id); ok {
		return cached, nil
	}
	addr, err := c.tokenContract(id)
	if err != nil {
		return model.Token{}, err
	}

	token := model.Token{ID: id}
	value, err := c.read(ctx, addr, "decimals")
	if err != nil {
		return model.Token{}, err
	}
	decimals, ok := value.(scval.U32)
	if !ok || uint32(decimals) > codec.MaxDecimals {
		return model.Token{}, fmt.Errorf("token %s: invalid decimals %v", id, value)
	}
	token.Decimals = uint8(decimals)

	if value, err := c.read(ctx, addr, "symbol"); err == nil {
		if symbol, err := codec.DecodeString(value); err == nil {
			token.Code = symbol
		}
	} else {
		c.logger.Debug("symbol call failed", zap.String("token", id), zap.Error(err))
	}

	c.tokens.Set(id, token)
	return token, nil
}

// FetchPool loads pool metadata. Static fields are cached; slot0 is read
// fresh on every call for concentrated pools.
func (c *Client) FetchPool(ctx context.Context, pool string) (model.Pool, error) {
	meta, ok := c.pools.Get(pool)
	if !ok {
		var err error
		meta, err = c.fetchStatic(ctx, pool)
		if err != nil {
			return model.Pool{}, err
		}
		c.pools.Set(pool, meta)
		c.orderer.Seed(pool, meta.Tokens)
	}
	if !meta.IsConcentrated() {
		return meta, nil
	}

	slot0, err := c.Slot0(ctx, pool)
	if err != nil {
		return model.Pool{}, err
	}
	meta.Slot0 = &slot0
	return meta, nil
}

func (c *Client) fetchStatic(ctx context.Context, pool string) (model.Pool, error) {
	addr, err := c.contract(pool)
	if err != nil {
		return model.Pool{}, err
	}

	value, err := c.read(ctx, addr, "get_pool_type")
	if err != nil {
		return model.Pool{}, err
	}
	kind, ok := value.(scval.Symbol)
	if !ok {
		return model.Pool{}, fmt.Errorf("get_pool_type: expected symbol, got %s", value.Kind())
	}
	meta := model.Pool{
		Address:       pool,
		Kind:          model.PoolKind(kind),
		ShareDecimals: ShareDecimals,
	}
	switch meta.Kind {
	case model.PoolConstantProduct, model.PoolStable, model.PoolConcentrated:
	default:
		return model.Pool{}, fmt.Errorf("pool %s: unknown pool type %q", pool, kind)
	}

	if meta.Tokens, err = c.PoolTokens(ctx, pool); err != nil {
		return model.Pool{}, err
	}

	value, err = c.read(ctx, addr, "get_fee_fraction")
	if err != nil {
		return model.Pool{}, err
	}
	fee, ok := value.(scval.U32)
	if !ok {
		return model.Pool{}, fmt.Errorf("get_fee_fraction: expected u32, got %s", value.Kind())
	}
	meta.FeeBps = uint32(fee)

	if meta.IsConcentrated() {
		value, err = c.read(ctx, addr, "get_tick_spacing")
		if err != nil {
			return model.Pool{}, err
		}
		spacing, err := codec.DecodeTick(value)
		if err != nil {
			return model.Pool{}, fmt.Errorf("get_tick_spacing: %w", err)
		}
		if spacing <= 0 {
			return model.Pool{}, fmt.Errorf("pool %s: tick spacing %d", pool, spacing)
		}
		meta.TickSpacing = spacing
	}
	return meta, nil
}

// Slot0 reads a concentrated pool's current tick and sqrt price.
func (c *Client) Slot0(ctx context.Context, pool string) (model.Slot0, error) {
	addr, err := c.contract(pool)
	if err != nil {
		return model.Slot0{}, err
	}
	value, err := c.read(ctx, addr, "get_slot0")
	if err != nil {
		return model.Slot0{}, err
	}
	m, ok := value.(scval.Map)
	if !ok {
		return model.Slot0{}, fmt.Errorf("get_slot0: expected map, got %s", value.Kind())
	}
	tickVal, ok := m.Lookup("tick")
	if !ok {
		return model.Slot0{}, fmt.Errorf("get_slot0: missing tick")
	}
	tick, err := codec.DecodeTick(tickVal)
	if err != nil {
		return model.Slot0{}, fmt.Errorf("get_slot0 tick: %w", err)
	}
	slot0 := model.Slot0{Tick: tick}
	if sqrtVal, ok := m.Lookup("sqrt_price_x64"); ok {
		sqrt, err := codec.DecodeInteger(sqrtVal)
		if err != nil {
			return model.Slot0{}, fmt.Errorf("get_slot0 sqrt price: %w", err)
		}
		slot0.SqrtPriceX64 = sqrt.String()
	}
	return slot0, nil
}

// Position reads a concentrated position. The result is validated against
// the pool's tick spacing before it is returned.
func (c *Client) Position(ctx context.Context, pool string, owner strkey.Address, lower, upper int32) (model.Position, error) {
	meta, err := c.FetchPool(ctx, pool)
	if err != nil {
		return model.Position{}, err
	}
	if !meta.IsConcentrated() {
		return model.Position{}, fmt.Errorf("pool %s has no positions", pool)
	}
	addr, err := c.contract(pool)
	if err != nil {
		return model.Position{}, err
	}

	value, err := c.read(ctx, addr, "get_position", scval.NewAddress(owner), codec.EncodeTick(lower), codec.EncodeTick(upper))
	if err != nil {
		return model.Position{}, err
	}
	m, ok := value.(scval.Map)
	if !ok {
		return model.Position{}, fmt.Errorf("get_position: expected map, got %s", value.Kind())
	}
	liqVal, ok := m.Lookup("liquidity")
	if !ok {
		return model.Position{}, fmt.Errorf("get_position: missing liquidity")
	}
	liquidity, err := codec.DecodeInteger(liqVal)
	if err != nil {
		return model.Position{}, fmt.Errorf("get_position liquidity: %w", err)
	}

	pos := model.Position{
		Owner:     owner.String(),
		TickLower: lower,
		TickUpper: upper,
		Liquidity: liquidity.String(),
	}
	if err := pos.Validate(meta.TickSpacing); err != nil {
		return model.Position{}, err
	}
	return pos, nil
}
