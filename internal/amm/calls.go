package amm

import (
	"context"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"ammclient/internal/auth"
	"ammclient/internal/batch"
	"ammclient/internal/clmath"
	"ammclient/internal/codec"
	"ammclient/internal/estimate"
	"ammclient/internal/gateway"
	"ammclient/internal/ledger"
	"ammclient/internal/model"
	"ammclient/internal/scval"
	"ammclient/internal/strkey"
)

// Invocation is a contract call ready for the gateway together with the
// authorization tree User signs.
type Invocation struct {
	User strkey.Address
	Call auth.Call
	Auth auth.Node
}

// Guard rejects a deposit estimate that is no longer the latest one.
// *estimate.Orchestrator implements it.
type Guard interface {
	Check(res estimate.Result) error
}

// Executor runs an invocation. *gateway.Gateway implements it.
type Executor interface {
	BuildInvoke(ctx context.Context, source strkey.Address, call auth.Call, authEntries ...auth.Node) (ledger.Transaction, error)
	Execute(ctx context.Context, tx ledger.Transaction, signer gateway.Signer) (ledger.TxResult, error)
}

// Submit sends inv from its user's account and waits for the outcome.
func Submit(ctx context.Context, exec Executor, signer gateway.Signer, inv Invocation) (ledger.TxResult, error) {
	if signer.Address() != inv.User {
		return ledger.TxResult{}, fmt.Errorf("signer %s cannot authorize for %s", signer.Address(), inv.User)
	}
	tx, err := exec.BuildInvoke(ctx, inv.User, inv.Call, inv.Auth)
	if err != nil {
		return ledger.TxResult{}, err
	}
	return exec.Execute(ctx, tx, signer)
}

// Deposit builds deposit(user, desired_amounts, min_shares) for a
// constant-product or stable pool. amounts is keyed by token ID.
func (c *Client) Deposit(ctx context.Context, user strkey.Address, pool string, amounts map[string]decimal.Decimal, minShares decimal.Decimal) (Invocation, error) {
	meta, err := c.FetchPool(ctx, pool)
	if err != nil {
		return Invocation{}, err
	}
	if meta.IsConcentrated() {
		return Invocation{}, fmt.Errorf("pool %s is concentrated, use DepositPosition", pool)
	}
	ordered, values, err := c.orderer.OrderAmounts(ctx, pool, amounts)
	if err != nil {
		return Invocation{}, err
	}
	desired, err := codec.EncodeAmountVec(values, model.DecimalsOf(ordered))
	if err != nil {
		return Invocation{}, err
	}
	min, err := codec.EncodeAmount(minShares, meta.ShareDecimals)
	if err != nil {
		return Invocation{}, fmt.Errorf("min shares: %w", err)
	}
	return c.depositInvocation(user, pool, "deposit", ordered, values, scval.NewAddress(user), desired, min)
}

// DepositPosition builds deposit_position(user, tick_lower, tick_upper,
// desired_amounts, min_liquidity) from a remote estimate. guard, when set,
// must accept est; a stale or pending estimate is never built from.
func (c *Client) DepositPosition(ctx context.Context, user strkey.Address, req estimate.Request, est estimate.Result, guard Guard, slippageBps uint32) (Invocation, error) {
	if guard != nil {
		if err := guard.Check(est); err != nil {
			return Invocation{}, err
		}
	}
	if !req.Pool.IsConcentrated() {
		return Invocation{}, fmt.Errorf("pool %s is not concentrated", req.Pool.Address)
	}
	if err := model.ValidateRange(req.TickLower, req.TickUpper, req.Pool.TickSpacing); err != nil {
		return Invocation{}, err
	}
	if est.Liquidity == nil || est.Liquidity.Sign() <= 0 {
		return Invocation{}, fmt.Errorf("estimate has no liquidity")
	}

	ordered, err := c.orderer.CheckOrder(ctx, req.Pool.Address, req.Pool.Tokens)
	if err != nil {
		return Invocation{}, err
	}
	values := []decimal.Decimal{est.Amount0, est.Amount1}
	desired, err := codec.EncodeAmountVec(values, model.DecimalsOf(ordered))
	if err != nil {
		return Invocation{}, err
	}
	minLiquidity := clmath.ApplySlippage(decimal.NewFromBigInt(est.Liquidity, 0), slippageBps).Truncate(0).BigInt()
	min, err := scval.NewU128(minLiquidity)
	if err != nil {
		return Invocation{}, fmt.Errorf("min liquidity: %w", err)
	}

	return c.depositInvocation(user, req.Pool.Address, "deposit_position", ordered, values,
		scval.NewAddress(user),
		codec.EncodeTick(req.TickLower),
		codec.EncodeTick(req.TickUpper),
		desired,
		min,
	)
}

func (c *Client) depositInvocation(user strkey.Address, pool, method string, ordered []model.Token, values []decimal.Decimal, args ...scval.Value) (Invocation, error) {
	if user.IsZero() {
		return Invocation{}, codec.EncodingError{Field: "user", Reason: "missing user"}
	}
	addr, err := c.contract(pool)
	if err != nil {
		return Invocation{}, err
	}
	call, err := auth.NewCall(addr, method, args...)
	if err != nil {
		return Invocation{}, err
	}
	transfers := make([]auth.Transfer, 0, len(ordered))
	for i, token := range ordered {
		contract, err := c.tokenContract(token.ID)
		if err != nil {
			return Invocation{}, err
		}
		transfers = append(transfers, auth.Transfer{Token: contract, Decimals: token.Decimals, Amount: values[i]})
	}
	root, err := auth.BuildDepositAuthorization(user, addr, call, auth.CredentialSourceAccount, transfers)
	if err != nil {
		return Invocation{}, err
	}
	return Invocation{User: user, Call: call, Auth: root}, nil
}

// Withdraw builds withdraw(user, share_amount, min_amounts). Minimums are the
// expected amounts less slippageBps.
func (c *Client) Withdraw(ctx context.Context, user strkey.Address, pool string, shares decimal.Decimal, expected map[string]decimal.Decimal, slippageBps uint32) (Invocation, error) {
	meta, err := c.FetchPool(ctx, pool)
	if err != nil {
		return Invocation{}, err
	}
	if meta.IsConcentrated() {
		return Invocation{}, fmt.Errorf("pool %s is concentrated, use WithdrawPosition", pool)
	}
	shareAmount, err := codec.EncodeAmount(shares, meta.ShareDecimals)
	if err != nil {
		return Invocation{}, fmt.Errorf("share amount: %w", err)
	}
	mins, err := c.minAmounts(ctx, pool, expected, slippageBps)
	if err != nil {
		return Invocation{}, err
	}
	return c.simpleInvocation(user, pool, "withdraw", scval.NewAddress(user), shareAmount, mins)
}

// WithdrawPosition builds withdraw_position(user, tick_lower, tick_upper,
// liquidity, min_amounts).
func (c *Client) WithdrawPosition(ctx context.Context, user strkey.Address, pool string, lower, upper int32, liquidity *big.Int, expected map[string]decimal.Decimal, slippageBps uint32) (Invocation, error) {
	meta, err := c.FetchPool(ctx, pool)
	if err != nil {
		return Invocation{}, err
	}
	if !meta.IsConcentrated() {
		return Invocation{}, fmt.Errorf("pool %s is not concentrated", pool)
	}
	if err := model.ValidateRange(lower, upper, meta.TickSpacing); err != nil {
		return Invocation{}, err
	}
	if liquidity == nil || liquidity.Sign() <= 0 {
		return Invocation{}, fmt.Errorf("liquidity must be positive")
	}
	liq, err := scval.NewU128(liquidity)
	if err != nil {
		return Invocation{}, fmt.Errorf("liquidity: %w", err)
	}
	mins, err := c.minAmounts(ctx, pool, expected, slippageBps)
	if err != nil {
		return Invocation{}, err
	}
	return c.simpleInvocation(user, pool, "withdraw_position",
		scval.NewAddress(user), codec.EncodeTick(lower), codec.EncodeTick(upper), liq, mins)
}

// ClaimRewards builds claim(user).
func (c *Client) ClaimRewards(user strkey.Address, pool string) (Invocation, error) {
	return c.simpleInvocation(user, pool, "claim", scval.NewAddress(user))
}

// ClaimIncentives builds claim_incentives(user).
func (c *Client) ClaimIncentives(user strkey.Address, pool string) (Invocation, error) {
	return c.simpleInvocation(user, pool, "claim_incentives", scval.NewAddress(user))
}

// WithdrawAndClaim withdraws shares and claims both reward streams in one
// atomic batch: if any call fails, none take effect.
func (c *Client) WithdrawAndClaim(ctx context.Context, user strkey.Address, pool string, shares decimal.Decimal, expected map[string]decimal.Decimal, slippageBps uint32) (Invocation, error) {
	if !c.cfg.BatchExecutor.IsContract() {
		return Invocation{}, fmt.Errorf("batch executor not configured")
	}
	withdraw, err := c.Withdraw(ctx, user, pool, shares, expected, slippageBps)
	if err != nil {
		return Invocation{}, err
	}
	claim, err := c.ClaimRewards(user, pool)
	if err != nil {
		return Invocation{}, err
	}
	incentives, err := c.ClaimIncentives(user, pool)
	if err != nil {
		return Invocation{}, err
	}

	calls := make([]batch.Call, 0, 3)
	for _, inv := range []Invocation{withdraw, claim, incentives} {
		calls = append(calls, batch.Call{
			Contract: inv.Call.Contract,
			Method:   inv.Call.Method,
			Args:     inv.Call.Args,
			SubAuth:  inv.Auth.SubInvocations(),
		})
	}
	top, root, err := batch.Compose(c.cfg.BatchExecutor, user, calls, true, auth.CredentialSourceAccount)
	if err != nil {
		return Invocation{}, err
	}
	return Invocation{User: user, Call: top, Auth: root}, nil
}

func (c *Client) simpleInvocation(user strkey.Address, pool, method string, args ...scval.Value) (Invocation, error) {
	if user.IsZero() {
		return Invocation{}, codec.EncodingError{Field: "user", Reason: "missing user"}
	}
	addr, err := c.contract(pool)
	if err != nil {
		return Invocation{}, err
	}
	call, err := auth.NewCall(addr, method, args...)
	if err != nil {
		return Invocation{}, err
	}
	return Invocation{User: user, Call: call, Auth: auth.BuildRootAuthorization(call, auth.CredentialSourceAccount)}, nil
}

func (c *Client) minAmounts(ctx context.Context, pool string, expected map[string]decimal.Decimal, slippageBps uint32) (scval.Vec, error) {
	ordered, values, err := c.orderer.OrderAmounts(ctx, pool, expected)
	if err != nil {
		return scval.Vec{}, err
	}
	mins := make([]decimal.Decimal, len(values))
	for i, v := range values {
		mins[i] = clmath.ApplySlippage(v, slippageBps)
	}
	return codec.EncodeAmountVec(mins, model.DecimalsOf(ordered))
}
