package clmath

import (
	"math/rand"
	"testing"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ammclient/internal/model"
)

func TestTickToPriceMonotonic(t *testing.T) {
	ticks := []int32{model.MinTick, -500000, -1001, -1000, -1, 0, 1, 2, 60, 887271, model.MaxTick}
	for _, diff := range []int32{-12, 0, 7} {
		for i := 1; i < len(ticks); i++ {
			lo := TickToPrice(ticks[i-1], diff)
			hi := TickToPrice(ticks[i], diff)
			assert.True(t, lo.LessThan(hi), "diff %d: price(%d)=%s !< price(%d)=%s", diff, ticks[i-1], lo, ticks[i], hi)
		}
	}

	r := rand.New(rand.NewSource(3))
	for i := 0; i < 200; i++ {
		t1 := int32(r.Intn(2*int(model.MaxTick))) - model.MaxTick
		t2 := t1 + 1 + int32(r.Intn(1000))
		if t2 > model.MaxTick {
			continue
		}
		assert.True(t, TickToPrice(t1, 2).LessThan(TickToPrice(t2, 2)))
	}
}

func TestTickToPriceKnownValues(t *testing.T) {
	assert.True(t, TickToPrice(0, 0).Equal(decimal.NewFromInt(1)))
	assert.Equal(t, "1.0001", TickToPrice(1, 0).String())
	assert.Equal(t, "1000000000000", TickToPrice(0, 12).String())
}

func TestPriceToTickFloors(t *testing.T) {
	prices := []string{"0.000001", "0.5", "1", "1.00005", "1.0001", "2", "1850.25", "123456789.123"}
	for _, diff := range []int32{0, -12, 6} {
		for _, s := range prices {
			p := decimal.RequireFromString(s)
			tick, err := PriceToTick(p, diff)
			require.NoError(t, err)

			at := TickToPrice(tick, diff)
			next := TickToPrice(tick+1, diff)
			slack := p.Mul(decimal.RequireFromString("1.00000000000000000001"))
			assert.True(t, at.LessThanOrEqual(slack), "price(%d)=%s > %s", tick, at, p)
			assert.True(t, p.LessThan(next), "%s >= price(%d)=%s", p, tick+1, next)
		}
	}
}

func TestPriceToTickInvertsTickToPrice(t *testing.T) {
	for _, tick := range []int32{-887000, -23028, -1, 0, 1, 200, 46054, 887000} {
		got, err := PriceToTick(TickToPrice(tick, 0), 0)
		require.NoError(t, err)
		assert.Equal(t, tick, got)

		got, err = PriceToTick(TickToPrice(tick, -6), -6)
		require.NoError(t, err)
		assert.Equal(t, tick, got)
	}
}

func TestPriceToTickRejectsNonPositive(t *testing.T) {
	_, err := PriceToTick(decimal.Zero, 0)
	require.Error(t, err)
	_, err = PriceToTick(decimal.NewFromInt(-1), 0)
	require.Error(t, err)
}

func TestSnap(t *testing.T) {
	tests := []struct {
		tick, spacing, down, up int32
	}{
		{0, 60, 0, 0},
		{59, 60, 0, 60},
		{60, 60, 60, 60},
		{-1, 60, -60, 0},
		{-60, 60, -60, -60},
		{-61, 10, -70, -60},
		{887272, 60, 887220, 887280},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.down, SnapDown(tt.tick, tt.spacing), "down(%d, %d)", tt.tick, tt.spacing)
		assert.Equal(t, tt.up, SnapUp(tt.tick, tt.spacing), "up(%d, %d)", tt.tick, tt.spacing)
	}
}

func TestSnapIdempotent(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		tick := int32(r.Intn(2*int(model.MaxTick))) - model.MaxTick
		spacing := int32(1 + r.Intn(200))
		d := SnapDown(tick, spacing)
		u := SnapUp(tick, spacing)
		assert.Equal(t, d, SnapDown(d, spacing))
		assert.Equal(t, u, SnapUp(u, spacing))
		assert.LessOrEqual(t, d, tick)
		assert.GreaterOrEqual(t, u, tick)
		assert.Zero(t, d%spacing)
		assert.Zero(t, u%spacing)
	}
}

func TestClampAndBounds(t *testing.T) {
	assert.Equal(t, int32(5), Clamp(5, 0, 10))
	assert.Equal(t, int32(0), Clamp(-5, 0, 10))
	assert.Equal(t, int32(10), Clamp(50, 0, 10))

	min, max := UsableBounds(60)
	assert.Equal(t, int32(-887220), min)
	assert.Equal(t, int32(887220), max)

	assert.Equal(t, int32(60), NearestUsableTick(31, 60))
	assert.Equal(t, int32(0), NearestUsableTick(29, 60))
	assert.Equal(t, int32(-60), NearestUsableTick(-30, 60))
	assert.Equal(t, int32(887220), NearestUsableTick(887272, 60))
}

func TestRangeFromPrices(t *testing.T) {
	lower, upper, err := RangeFromPrices(decimal.RequireFromString("0.9"), decimal.RequireFromString("1.1"), 10, 0)
	require.NoError(t, err)
	require.NoError(t, model.ValidateRange(lower, upper, 10))
	assert.True(t, TickToPrice(lower, 0).LessThanOrEqual(decimal.RequireFromString("0.9")))
	assert.True(t, TickToPrice(upper, 0).GreaterThanOrEqual(decimal.RequireFromString("1.1")))

	lower, upper, err = RangeFromPrices(decimal.RequireFromString("1"), decimal.RequireFromString("1.00001"), 60, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(0), lower)
	assert.Equal(t, int32(60), upper)

	_, _, err = RangeFromPrices(decimal.NewFromInt(2), decimal.NewFromInt(1), 60, 0)
	require.Error(t, err)
}

func TestRangeEdgePolicy(t *testing.T) {
	inputs := []decimal.Decimal{decimal.RequireFromString("0.0000001"), decimal.NewFromInt(1), decimal.RequireFromString("98765.4321")}

	for _, amount := range inputs {
		// Price above the range: token0 is forced to zero.
		pair, err := PairFromAmount(Token0, amount, -600, 600, 1200, 7, 7)
		require.NoError(t, err)
		assert.True(t, pair.Amount0.IsZero())
		assert.True(t, pair.Locked0)

		pair, err = PairFromAmount(Token1, amount, -600, 600, 1200, 7, 7)
		require.NoError(t, err)
		assert.True(t, pair.Amount0.IsZero())
		assert.True(t, pair.Amount1.Equal(amount.Truncate(7)))

		// Price below the range: token1 is forced to zero.
		pair, err = PairFromAmount(Token1, amount, -600, 600, -1200, 7, 7)
		require.NoError(t, err)
		assert.True(t, pair.Amount1.IsZero())
		assert.True(t, pair.Locked1)

		pair, err = PairFromAmount(Token0, amount, -600, 600, -1200, 7, 7)
		require.NoError(t, err)
		assert.True(t, pair.Amount1.IsZero())
		assert.True(t, pair.Amount0.Equal(amount.Truncate(7)))
	}
}

func TestInRangeRatioUndefined(t *testing.T) {
	_, ok := InRangeRatio(-600, 600, 601, 0)
	assert.False(t, ok)
	_, ok = InRangeRatio(-600, 600, 600, 0)
	assert.False(t, ok)
	_, ok = InRangeRatio(-600, 600, -601, 0)
	assert.False(t, ok)

	ratio, ok := InRangeRatio(-600, 600, -600, 0)
	assert.True(t, ok)
	assert.True(t, ratio.IsZero())
}

func relDiff(a, b *uint256.Int) float64 {
	fa, _ := decimal.NewFromString(a.Dec())
	fb, _ := decimal.NewFromString(b.Dec())
	if fb.IsZero() {
		return 0
	}
	f, _ := fa.Sub(fb).Abs().Div(fb).Float64()
	return f
}

func toUint(t *testing.T, d decimal.Decimal) *uint256.Int {
	t.Helper()
	u, overflow := uint256.FromBig(d.Truncate(0).BigInt())
	require.False(t, overflow)
	return u
}

func TestInRangeRatioMatchesLiquidity(t *testing.T) {
	for _, tc := range []struct{ lower, current, upper int32 }{
		{-600, 0, 600},
		{-6000, 10, 6000},
		{46000, 46054, 46108},
	} {
		ratio, ok := InRangeRatio(tc.lower, tc.upper, tc.current, 0)
		require.True(t, ok)
		require.True(t, ratio.IsPositive())

		sp := SqrtPriceX64AtTick(tc.current)
		sl := SqrtPriceX64AtTick(tc.lower)
		su := SqrtPriceX64AtTick(tc.upper)

		x := decimal.NewFromInt(1_000_000_000_000)
		y := x.Mul(ratio)
		l0, err := LiquidityForAmount0(sp, su, toUint(t, x))
		require.NoError(t, err)
		l1, err := LiquidityForAmount1(sl, sp, toUint(t, y))
		require.NoError(t, err)
		assert.Less(t, relDiff(l0, l1), 1e-6, "ticks %+v", tc)

		back := y.Div(ratio)
		l0back, err := LiquidityForAmount0(sp, su, toUint(t, back))
		require.NoError(t, err)
		assert.Less(t, relDiff(l0back, l1), 1e-6)
	}
}

func TestPairFromAmountInRange(t *testing.T) {
	pair, err := PairFromAmount(Token0, decimal.NewFromInt(10), -600, 600, 0, 7, 7)
	require.NoError(t, err)
	assert.False(t, pair.Locked0 || pair.Locked1)
	// A symmetric range around price 1 needs about equal amounts.
	assert.True(t, pair.Amount1.Sub(decimal.NewFromInt(10)).Abs().LessThan(decimal.RequireFromString("0.001")), "got %s", pair.Amount1)

	back, err := PairFromAmount(Token1, pair.Amount1, -600, 600, 0, 7, 7)
	require.NoError(t, err)
	assert.True(t, back.Amount0.Sub(decimal.NewFromInt(10)).Abs().LessThan(decimal.RequireFromString("0.000001")))

	_, err = PairFromAmount(Token0, decimal.NewFromInt(1), 600, -600, 0, 7, 7)
	require.Error(t, err)
}

func TestLiquidityRoundTrip(t *testing.T) {
	sp := SqrtPriceX64AtTick(0)
	sl := SqrtPriceX64AtTick(-600)
	su := SqrtPriceX64AtTick(600)

	a0 := uint256.NewInt(5_000_000_000)
	a1 := uint256.NewInt(5_000_000_000)
	l, err := LiquidityForAmounts(sp, sl, su, a0, a1)
	require.NoError(t, err)

	got0, got1, err := AmountsForLiquidity(sp, sl, su, l)
	require.NoError(t, err)
	assert.False(t, got0.Gt(a0))
	assert.False(t, got1.Gt(a1))
	assert.Less(t, relDiff(got0, a0), 1e-6)

	below0, below1, err := AmountsForLiquidity(SqrtPriceX64AtTick(-1200), sl, su, l)
	require.NoError(t, err)
	assert.False(t, below0.IsZero())
	assert.True(t, below1.IsZero())
}

func TestSqrtPriceX64AtTick(t *testing.T) {
	assert.Equal(t, Q64.Dec(), SqrtPriceX64AtTick(0).Dec())
	parsed, err := ParseSqrtPriceX64(SqrtPriceX64AtTick(100).Dec())
	require.NoError(t, err)
	assert.True(t, parsed.Eq(SqrtPriceX64AtTick(100)))

	_, err = ParseSqrtPriceX64("-1")
	require.Error(t, err)
}

func TestApplySlippage(t *testing.T) {
	assert.Equal(t, "99.5", ApplySlippage(decimal.NewFromInt(100), 50).String())
	assert.True(t, ApplySlippage(decimal.NewFromInt(100), 10_000).IsZero())
	assert.True(t, ApplySlippage(decimal.NewFromInt(100), 0).Equal(decimal.NewFromInt(100)))
}
