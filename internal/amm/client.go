// Package amm reads pool state and builds pool contract calls on top of the
// gateway. Reads are simulate-only and never submit anything.
package amm

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ammclient/internal/auth"
	"ammclient/internal/clmath"
	"ammclient/internal/codec"
	"ammclient/internal/estimate"
	"ammclient/internal/ledger"
	"ammclient/internal/model"
	"ammclient/internal/scval"
	"ammclient/internal/strkey"
	"ammclient/internal/tokens"
)

// Simulator dry-runs a transaction. *gateway.Gateway implements it.
type Simulator interface {
	Simulate(ctx context.Context, tx ledger.Transaction) (ledger.SimulationResult, error)
}

// Config names the accounts and contracts the client works with.
type Config struct {
	// ReadSource is the account simulate-only reads are sent from.
	ReadSource strkey.Address
	// NativeToken is the contract wrapping the native asset.
	NativeToken   strkey.Address
	BatchExecutor strkey.Address
}

// Client talks to pool contracts.
type Client struct {
	sim     Simulator
	cfg     Config
	pools   *PoolCache
	tokens  *TokenCache
	orderer *tokens.Orderer
	logger  *zap.Logger
}

func NewClient(sim Simulator, cfg Config, logger *zap.Logger) (*Client, error) {
	if sim == nil {
		return nil, fmt.Errorf("amm client needs a simulator")
	}
	if !cfg.ReadSource.IsAccount() {
		return nil, fmt.Errorf("read source %q is not an account", cfg.ReadSource)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		sim:    sim,
		cfg:    cfg,
		pools:  NewPoolCache(),
		tokens: NewTokenCache(),
		logger: logger,
	}
	c.orderer = tokens.NewOrderer(c)
	return c, nil
}

// Orderer returns the canonical token orderer backed by this client.
func (c *Client) Orderer() *tokens.Orderer { return c.orderer }

func (c *Client) read(ctx context.Context, contract strkey.Address, method string, args ...scval.Value) (scval.Value, error) {
	call, err := auth.NewCall(contract, method, args...)
	if err != nil {
		return nil, err
	}
	tx, err := ledger.NewInvoke(c.cfg.ReadSource, 0, 0, call)
	if err != nil {
		return nil, err
	}
	sim, err := c.sim.Simulate(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", method, err)
	}
	if sim.Return == nil {
		return scval.Void{}, nil
	}
	return sim.Return, nil
}

func (c *Client) contract(id string) (strkey.Address, error) {
	addr, err := strkey.Decode(id)
	if err != nil {
		return strkey.Address{}, codec.EncodingError{Field: "contract", Reason: err.Error(), Err: err}
	}
	if !addr.IsContract() {
		return strkey.Address{}, codec.EncodingError{Field: "contract", Reason: fmt.Sprintf("%s is not a contract", id)}
	}
	return addr, nil
}

// tokenContract resolves a token identifier to the contract implementing it.
func (c *Client) tokenContract(id string) (strkey.Address, error) {
	if id == model.NativeTokenID {
		if c.cfg.NativeToken.IsZero() {
			return strkey.Address{}, fmt.Errorf("native token contract not configured")
		}
		return c.cfg.NativeToken, nil
	}
	return c.contract(id)
}

func (c *Client) tokenID(contract string) string {
	if !c.cfg.NativeToken.IsZero() && contract == c.cfg.NativeToken.String() {
		return model.NativeTokenID
	}
	return contract
}

// EstimateDepositPosition asks the pool, via simulation, how much of each
// token and how much liquidity a deposit of the previewed pair would take.
// It implements estimate.Estimator.
func (c *Client) EstimateDepositPosition(ctx context.Context, req estimate.Request, preview clmath.Pair) (estimate.Result, error) {
	addr, err := c.contract(req.Pool.Address)
	if err != nil {
		return estimate.Result{}, err
	}
	owner := req.Owner
	if owner.IsZero() {
		owner = c.cfg.ReadSource
	}
	// Amount0 and Amount1 follow req.Pool.Tokens, so that order must be the
	// pool's own.
	ordered, err := c.orderer.CheckOrder(ctx, req.Pool.Address, req.Pool.Tokens)
	if err != nil {
		return estimate.Result{}, err
	}
	decimals := model.DecimalsOf(ordered)
	desired, err := codec.EncodeAmountVec([]decimal.Decimal{preview.Amount0, preview.Amount1}, decimals)
	if err != nil {
		return estimate.Result{}, err
	}

	value, err := c.read(ctx, addr, "estimate_deposit_position",
		scval.NewAddress(owner),
		codec.EncodeTick(req.TickLower),
		codec.EncodeTick(req.TickUpper),
		desired,
	)
	if err != nil {
		return estimate.Result{}, err
	}
	m, ok := value.(scval.Map)
	if !ok {
		return estimate.Result{}, fmt.Errorf("estimate_deposit_position: expected map, got %s", value.Kind())
	}
	amountsVal, ok := m.Lookup("amounts")
	if !ok {
		return estimate.Result{}, fmt.Errorf("estimate_deposit_position: missing amounts")
	}
	amounts, err := codec.DecodeAmountVec(amountsVal, decimals)
	if err != nil {
		return estimate.Result{}, fmt.Errorf("estimate_deposit_position amounts: %w", err)
	}
	liqVal, ok := m.Lookup("liquidity")
	if !ok {
		return estimate.Result{}, fmt.Errorf("estimate_deposit_position: missing liquidity")
	}
	liquidity, err := codec.DecodeInteger(liqVal)
	if err != nil {
		return estimate.Result{}, fmt.Errorf("estimate_deposit_position liquidity: %w", err)
	}

	c.logger.Debug("deposit estimated",
		zap.String("pool", req.Pool.Address),
		zap.String("amount0", amounts[0].String()),
		zap.String("amount1", amounts[1].String()),
		zap.String("liquidity", liquidity.String()),
	)
	return estimate.Result{Amount0: amounts[0], Amount1: amounts[1], Liquidity: liquidity}, nil
}
