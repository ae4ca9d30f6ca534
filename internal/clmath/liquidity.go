package clmath

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// Q64 is 2^64, the scale of Q64.64 sqrt prices.
var Q64 = new(uint256.Int).Lsh(uint256.NewInt(1), 64)

var errOverflow = errors.New("liquidity math overflows 256 bits")

// SqrtPriceX64AtTick returns sqrt(1.0001^tick) in Q64.64, rounded down.
func SqrtPriceX64AtTick(tick int32) *uint256.Int {
	s := newFloat().Sqrt(rawPrice(int64(tick)))
	s.Mul(s, newFloat().SetInt(Q64.ToBig()))
	n, _ := s.Int(nil)
	out, _ := uint256.FromBig(n)
	return out
}

// ParseSqrtPriceX64 reads a decimal Q64.64 sqrt price, as stored in Slot0.
func ParseSqrtPriceX64(s string) (*uint256.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() <= 0 {
		return nil, fmt.Errorf("invalid sqrt price %q", s)
	}
	out, overflow := uint256.FromBig(n)
	if overflow {
		return nil, fmt.Errorf("sqrt price %q overflows", s)
	}
	return out, nil
}

func ordered(a, b *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	if a.Gt(b) {
		a, b = b, a
	}
	if a.IsZero() || a.Eq(b) {
		return nil, nil, fmt.Errorf("degenerate sqrt price range [%s, %s]", a.Dec(), b.Dec())
	}
	return a, b, nil
}

// LiquidityForAmount0 is amount0·sqrtA·sqrtB / (sqrtB − sqrtA), rounded down.
func LiquidityForAmount0(sqrtA, sqrtB, amount0 *uint256.Int) (*uint256.Int, error) {
	a, b, err := ordered(sqrtA, sqrtB)
	if err != nil {
		return nil, err
	}
	intermediate, overflow := new(uint256.Int).MulDivOverflow(a, b, Q64)
	if overflow {
		return nil, errOverflow
	}
	l, overflow := new(uint256.Int).MulDivOverflow(amount0, intermediate, new(uint256.Int).Sub(b, a))
	if overflow {
		return nil, errOverflow
	}
	return l, nil
}

// LiquidityForAmount1 is amount1 / (sqrtB − sqrtA), rounded down.
func LiquidityForAmount1(sqrtA, sqrtB, amount1 *uint256.Int) (*uint256.Int, error) {
	a, b, err := ordered(sqrtA, sqrtB)
	if err != nil {
		return nil, err
	}
	l, overflow := new(uint256.Int).MulDivOverflow(amount1, Q64, new(uint256.Int).Sub(b, a))
	if overflow {
		return nil, errOverflow
	}
	return l, nil
}

// LiquidityForAmounts is the most liquidity amount0 and amount1 can back in
// [sqrtA, sqrtB] at sqrtP.
func LiquidityForAmounts(sqrtP, sqrtA, sqrtB, amount0, amount1 *uint256.Int) (*uint256.Int, error) {
	a, b, err := ordered(sqrtA, sqrtB)
	if err != nil {
		return nil, err
	}
	switch {
	case !sqrtP.Gt(a):
		return LiquidityForAmount0(a, b, amount0)
	case sqrtP.Lt(b):
		l0, err := LiquidityForAmount0(sqrtP, b, amount0)
		if err != nil {
			return nil, err
		}
		l1, err := LiquidityForAmount1(a, sqrtP, amount1)
		if err != nil {
			return nil, err
		}
		if l0.Lt(l1) {
			return l0, nil
		}
		return l1, nil
	default:
		return LiquidityForAmount1(a, b, amount1)
	}
}

// AmountsForLiquidity is the token amounts liquidity represents in
// [sqrtA, sqrtB] at sqrtP, rounded down.
func AmountsForLiquidity(sqrtP, sqrtA, sqrtB, liquidity *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	a, b, err := ordered(sqrtA, sqrtB)
	if err != nil {
		return nil, nil, err
	}
	amount0 := new(uint256.Int)
	amount1 := new(uint256.Int)

	switch {
	case !sqrtP.Gt(a):
		amount0, err = amount0ForLiquidity(a, b, liquidity)
	case sqrtP.Lt(b):
		if amount0, err = amount0ForLiquidity(sqrtP, b, liquidity); err == nil {
			amount1, err = amount1ForLiquidity(a, sqrtP, liquidity)
		}
	default:
		amount1, err = amount1ForLiquidity(a, b, liquidity)
	}
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

func amount0ForLiquidity(a, b, liquidity *uint256.Int) (*uint256.Int, error) {
	if liquidity.BitLen() > 192 {
		return nil, errOverflow
	}
	scaled := new(uint256.Int).Lsh(liquidity, 64)
	v, overflow := new(uint256.Int).MulDivOverflow(scaled, new(uint256.Int).Sub(b, a), b)
	if overflow {
		return nil, errOverflow
	}
	return v.Div(v, a), nil
}

func amount1ForLiquidity(a, b, liquidity *uint256.Int) (*uint256.Int, error) {
	v, overflow := new(uint256.Int).MulDivOverflow(liquidity, new(uint256.Int).Sub(b, a), Q64)
	if overflow {
		return nil, errOverflow
	}
	return v, nil
}
