package clmath

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// InRangeRatio returns amount1/amount0 for a balanced deposit into
// [lower, upper] at current:
//
//	sqrt(P)·sqrt(Pu)·(sqrt(P) − sqrt(Pl)) / (sqrt(Pu) − sqrt(P))
//
// ok is false when current is outside the range or the denominator is not
// positive, i.e. no single ratio exists.
func InRangeRatio(lower, upper, current, decimalsDiff int32) (decimal.Decimal, bool) {
	if current < lower || current > upper {
		return decimal.Zero, false
	}
	sp := newFloat().Sqrt(humanPrice(current, decimalsDiff))
	sl := newFloat().Sqrt(humanPrice(lower, decimalsDiff))
	su := newFloat().Sqrt(humanPrice(upper, decimalsDiff))
	if sp.Sign() <= 0 || sl.Sign() <= 0 || su.Sign() <= 0 {
		return decimal.Zero, false
	}

	den := newFloat().Sub(su, sp)
	if den.Sign() <= 0 {
		return decimal.Zero, false
	}
	num := newFloat().Mul(sp, su)
	num.Mul(num, newFloat().Sub(sp, sl))
	return toDecimal(num.Quo(num, den)), true
}

// Side names the token a user typed an amount for.
type Side int

const (
	Token0 Side = iota
	Token1
)

// Pair is a deposit amount pair. A locked side is forced to zero by the
// range position and must not be edited.
type Pair struct {
	Amount0 decimal.Decimal
	Amount1 decimal.Decimal
	Locked0 bool
	Locked1 bool
}

// PairFromAmount derives the other amount of a deposit from the one the
// user entered.
//
// With the price at or above the whole range the deposit is token1 only;
// at or below it, token0 only. The side that must be zero is zero whatever
// was entered for it. In range the paired amount goes through InRangeRatio.
// Amounts are truncated to each token's precision.
func PairFromAmount(side Side, amount decimal.Decimal, lower, upper, current int32, decimals0, decimals1 uint8) (Pair, error) {
	if lower >= upper {
		return Pair{}, fmt.Errorf("tick lower %d must be below tick upper %d", lower, upper)
	}
	if amount.IsNegative() {
		return Pair{}, fmt.Errorf("amount must not be negative, got %s", amount)
	}
	d0, d1 := int32(decimals0), int32(decimals1)

	switch {
	case current >= upper:
		pair := Pair{Amount0: decimal.Zero, Amount1: decimal.Zero, Locked0: true}
		if side == Token1 {
			pair.Amount1 = amount.Truncate(d1)
		}
		return pair, nil
	case current <= lower:
		pair := Pair{Amount0: decimal.Zero, Amount1: decimal.Zero, Locked1: true}
		if side == Token0 {
			pair.Amount0 = amount.Truncate(d0)
		}
		return pair, nil
	}

	ratio, ok := InRangeRatio(lower, upper, current, d0-d1)
	if !ok || !ratio.IsPositive() {
		return Pair{}, fmt.Errorf("no deposit ratio for tick %d in [%d, %d]", current, lower, upper)
	}
	if side == Token0 {
		amount0 := amount.Truncate(d0)
		return Pair{Amount0: amount0, Amount1: amount0.Mul(ratio).Truncate(d1)}, nil
	}
	amount1 := amount.Truncate(d1)
	return Pair{Amount0: amount1.DivRound(ratio, d0+1).Truncate(d0), Amount1: amount1}, nil
}

var bpsDenominator = decimal.NewFromInt(10_000)

// ApplySlippage lowers amount by bps basis points, for minimum-out
// arguments. bps above 10000 yields zero.
func ApplySlippage(amount decimal.Decimal, bps uint32) decimal.Decimal {
	if bps >= 10_000 {
		return decimal.Zero
	}
	keep := decimal.NewFromInt(int64(10_000 - bps))
	return amount.Mul(keep).Div(bpsDenominator)
}
