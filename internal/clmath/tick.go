// Package clmath holds the concentrated-liquidity tick, price and amount
// math a client runs locally. Every function is pure.
//
// Prices are computed with 256-bit big.Float and returned as decimals with
// 40 significant digits. Binary floating point is used only to seed the
// tick search in PriceToTick; the answer itself is checked exactly.
package clmath

import (
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"

	"ammclient/internal/model"
)

const (
	prec      = 256
	sigDigits = 40
)

var (
	tickBase = mustFloat("1.0001")
	one      = new(big.Float).SetPrec(prec).SetInt64(1)
	// tickTolerance absorbs the rounding of a 40-digit decimal price so that
	// PriceToTick(TickToPrice(t)) == t.
	tickTolerance = mustFloat("1.000000000000000000000000000001")
	lnTickBase    = math.Log(1.0001)
)

func mustFloat(s string) *big.Float {
	f, ok := new(big.Float).SetPrec(prec).SetString(s)
	if !ok {
		panic("clmath: bad constant " + s)
	}
	return f
}

func newFloat() *big.Float { return new(big.Float).SetPrec(prec) }

// rawPrice is 1.0001^tick.
func rawPrice(tick int64) *big.Float {
	n := tick
	if n < 0 {
		n = -n
	}
	result := newFloat().Set(one)
	b := newFloat().Set(tickBase)
	for n > 0 {
		if n&1 == 1 {
			result.Mul(result, b)
		}
		b.Mul(b, b)
		n >>= 1
	}
	if tick < 0 {
		result.Quo(one, result)
	}
	return result
}

// pow10 is 10^exp.
func pow10(exp int32) *big.Float {
	e := int64(exp)
	if e < 0 {
		e = -e
	}
	p := newFloat().SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(e), nil))
	if exp < 0 {
		p.Quo(one, p)
	}
	return p
}

func toDecimal(f *big.Float) decimal.Decimal {
	return decimal.RequireFromString(f.Text('e', sigDigits-1))
}

func fromDecimal(d decimal.Decimal) *big.Float {
	f, _ := newFloat().SetString(d.String())
	return f
}

// humanPrice is 1.0001^tick * 10^decimalsDiff.
func humanPrice(tick int32, decimalsDiff int32) *big.Float {
	p := rawPrice(int64(tick))
	return p.Mul(p, pow10(decimalsDiff))
}

// TickToPrice returns the price of token0 in token1 at tick:
// 1.0001^tick scaled by 10^decimalsDiff, where decimalsDiff is
// decimals(token0) - decimals(token1). It is strictly increasing in tick.
func TickToPrice(tick int32, decimalsDiff int32) decimal.Decimal {
	return toDecimal(humanPrice(tick, decimalsDiff))
}

// PriceToTick returns the largest tick whose price does not exceed price,
// clamped to [MinTick, MaxTick]. So TickToPrice(PriceToTick(p)) <= p, and p
// is below the next tick's price.
func PriceToTick(price decimal.Decimal, decimalsDiff int32) (int32, error) {
	if !price.IsPositive() {
		return 0, fmt.Errorf("price must be positive, got %s", price)
	}
	raw := fromDecimal(price)
	raw.Quo(raw, pow10(decimalsDiff))
	target := newFloat().Mul(raw, tickTolerance)

	mant := newFloat()
	exp := raw.MantExp(mant)
	m, _ := mant.Float64()
	est := math.Floor((math.Log(m) + float64(exp)*math.Ln2) / lnTickBase)

	lo, hi := int64(model.MinTick), int64(model.MaxTick)
	tick := int64(math.Max(float64(lo), math.Min(float64(hi), est)))
	for tick < hi && rawPrice(tick+1).Cmp(target) <= 0 {
		tick++
	}
	for tick > lo && rawPrice(tick).Cmp(target) > 0 {
		tick--
	}
	return int32(tick), nil
}

// SnapDown rounds tick down to a multiple of spacing.
func SnapDown(tick, spacing int32) int32 {
	if spacing <= 0 {
		return tick
	}
	q := tick / spacing
	if tick%spacing != 0 && tick < 0 {
		q--
	}
	return q * spacing
}

// SnapUp rounds tick up to a multiple of spacing.
func SnapUp(tick, spacing int32) int32 {
	if spacing <= 0 {
		return tick
	}
	q := tick / spacing
	if tick%spacing != 0 && tick > 0 {
		q++
	}
	return q * spacing
}

// Clamp bounds tick to [min, max]. Callers ensure min <= max.
func Clamp(tick, min, max int32) int32 {
	if tick < min {
		return min
	}
	if tick > max {
		return max
	}
	return tick
}

// UsableBounds returns the outermost ticks on the spacing grid.
func UsableBounds(spacing int32) (int32, int32) {
	return SnapUp(model.MinTick, spacing), SnapDown(model.MaxTick, spacing)
}

// NearestUsableTick rounds tick to the closest grid tick, half away from
// zero, within the usable bounds.
func NearestUsableTick(tick, spacing int32) int32 {
	if spacing <= 0 {
		return tick
	}
	down := SnapDown(tick, spacing)
	up := SnapUp(tick, spacing)
	nearest := down
	if up-tick < tick-down || (up-tick == tick-down && tick > 0) {
		nearest = up
	}
	min, max := UsableBounds(spacing)
	return Clamp(nearest, min, max)
}

// RangeFromPrices converts a price range to grid ticks, snapping outward so
// the range covers at least [low, high]. A range narrower than one spacing
// is widened to one spacing.
func RangeFromPrices(low, high decimal.Decimal, spacing, decimalsDiff int32) (int32, int32, error) {
	if spacing <= 0 {
		return 0, 0, fmt.Errorf("tick spacing must be positive, got %d", spacing)
	}
	if !low.IsPositive() || high.LessThanOrEqual(low) {
		return 0, 0, fmt.Errorf("invalid price range [%s, %s]", low, high)
	}
	lowTick, err := PriceToTick(low, decimalsDiff)
	if err != nil {
		return 0, 0, err
	}
	highTick, err := PriceToTick(high, decimalsDiff)
	if err != nil {
		return 0, 0, err
	}
	if highTick < model.MaxTick && TickToPrice(highTick, decimalsDiff).LessThan(high) {
		highTick++
	}

	min, max := UsableBounds(spacing)
	lower := Clamp(SnapDown(lowTick, spacing), min, max)
	upper := Clamp(SnapUp(highTick, spacing), min, max)
	if lower >= upper {
		if lower+spacing <= max {
			upper = lower + spacing
		} else {
			lower = upper - spacing
		}
	}
	return lower, upper, nil
}
