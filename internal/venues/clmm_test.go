package venues

import (
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockworks-foundation/autobahn-sub002/internal/chaindata"
	"github.com/blockworks-foundation/autobahn-sub002/internal/domain"
)

func u128(v uint64) bin.Uint128 {
	return bin.Uint128{Lo: v}
}

func i128(v int64) bin.Int128 {
	if v >= 0 {
		return bin.Int128{Lo: uint64(v)}
	}
	// Two's complement for negative values.
	u := uint64(v)
	return bin.Int128{Lo: u, Hi: ^uint64(0)}
}

// sqrtPriceOne is 2^64, the Q64.64 representation of price 1.0.
func sqrtPriceOne() bin.Uint128 {
	return bin.Uint128{Hi: 1}
}

func newCLMMPool(t *testing.T, liquidity uint64, feeBps uint16, tickArrays ...clmmTickArrayState) (*CLMMAdapter, []domain.Edge) {
	t.Helper()
	adapter := NewCLMMAdapter(chaindata.NewStore())
	pool := testKey(40)

	for i, arr := range tickArrays {
		arr.Pool = pool
		data := encodeAccount(t, clmmTickArrayDiscriminator, arr)
		_, err := adapter.Decode(testKey(byte(41+i)), chaindata.Account{Owner: clmmProgramID, Slot: 1, Data: data})
		require.NoError(t, err)
	}

	state := clmmPoolState{
		TokenMintA:   testKey(5),
		TokenMintB:   testKey(6),
		TickSpacing:  64,
		FeeBps:       feeBps,
		Liquidity:    u128(liquidity),
		SqrtPriceX64: sqrtPriceOne(),
		TickCurrent:  0,
	}
	data := encodeAccount(t, clmmPoolDiscriminator, state)
	edges, err := adapter.Decode(pool, chaindata.Account{Owner: clmmProgramID, Slot: 2, Data: data})
	require.NoError(t, err)
	require.Len(t, edges, 2)
	return adapter, edges
}

func TestCLMMSingleRangeMatchesConstantProduct(t *testing.T) {
	// At price 1.0 with liquidity L and no ticks, the in-range math is a
	// constant product with virtual reserves (L, L).
	liq := uint64(1_000_000_000_000)
	_, edges := newCLMMPool(t, liq, 0)
	ab := edges[0]

	amount := uint64(1_000_000)
	q, err := ab.Simulate(amount, domain.SwapModeExactIn)
	require.NoError(t, err)

	expected := liq * amount / (liq + amount)
	assert.InDelta(t, float64(expected), float64(q.OutAmount), 3)
	assert.Zero(t, q.TicksCrossed)
}

func TestCLMMBothDirections(t *testing.T) {
	_, edges := newCLMMPool(t, 1_000_000_000_000, 30)
	ab, ba := edges[0], edges[1]

	qab, err := ab.Simulate(1000, domain.SwapModeExactIn)
	require.NoError(t, err)
	qba, err := ba.Simulate(1000, domain.SwapModeExactIn)
	require.NoError(t, err)

	// Symmetric pool at price 1: both directions quote alike.
	assert.InDelta(t, float64(qab.OutAmount), float64(qba.OutAmount), 2)
	assert.Equal(t, ab.ID(), ba.ID().Reverse())
}

func TestCLMMTickCrossing(t *testing.T) {
	// One initialized tick below the current price. Crossing it sheds
	// most of the range liquidity.
	liq := uint64(1_000_000_000)
	arr := clmmTickArrayState{StartTickIndex: -88 * 64}
	arr.Ticks[87] = clmmTickState{ // tick index -64
		Initialized:  1,
		LiquidityNet: i128(900_000_000),
	}

	_, edges := newCLMMPool(t, liq, 0, arr)
	ab := edges[0]

	// Small trade stays in range.
	small, err := ab.Simulate(1_000, domain.SwapModeExactIn)
	require.NoError(t, err)
	assert.Zero(t, small.TicksCrossed)

	// A trade big enough to push the price through tick -64 crosses it.
	// Price 1 -> 1.0001^-64 is ~0.32% down; moving there takes roughly
	// liq * 0.16% of token A.
	big, err := ab.Simulate(5_000_000, domain.SwapModeExactIn)
	require.NoError(t, err)
	assert.Equal(t, 1, big.TicksCrossed)
	assert.Greater(t, big.OutAmount, uint64(0))
	assert.Less(t, big.OutAmount, uint64(5_000_000))
}

func TestCLMMLiquidityExhaustion(t *testing.T) {
	// The single tick below carries the whole liquidity; beyond it the
	// pool is empty and large input cannot be absorbed.
	liq := uint64(1_000_000)
	arr := clmmTickArrayState{StartTickIndex: -88 * 64}
	arr.Ticks[87] = clmmTickState{
		Initialized:  1,
		LiquidityNet: i128(1_000_000),
	}

	_, edges := newCLMMPool(t, liq, 0, arr)
	ab := edges[0]

	_, err := ab.Simulate(1_000_000_000, domain.SwapModeExactIn)
	assert.ErrorIs(t, err, domain.ErrInsufficientLiquidity)
}

func TestCLMMExactOutRoundTrip(t *testing.T) {
	_, edges := newCLMMPool(t, 1_000_000_000_000, 30)
	ab := edges[0]

	target := uint64(500_000)
	out, err := ab.Simulate(target, domain.SwapModeExactOut)
	require.NoError(t, err)
	require.Equal(t, target, out.OutAmount)
	assert.Greater(t, out.InAmount, target) // fee plus curve

	back, err := ab.Simulate(out.InAmount, domain.SwapModeExactIn)
	require.NoError(t, err)
	assert.InDelta(t, float64(target), float64(back.OutAmount), 16)
}

func TestCLMMTickArrayBeforePool(t *testing.T) {
	adapter := NewCLMMAdapter(chaindata.NewStore())
	arr := clmmTickArrayState{Pool: testKey(50), StartTickIndex: 0}
	data := encodeAccount(t, clmmTickArrayDiscriminator, arr)

	// A tick array for an unknown pool is held, producing no edges yet.
	edges, err := adapter.Decode(testKey(51), chaindata.Account{Owner: clmmProgramID, Slot: 1, Data: data})
	require.NoError(t, err)
	assert.Empty(t, edges)
}

func TestCLMMZeroLiquidityNotTradable(t *testing.T) {
	_, edges := newCLMMPool(t, 0, 30)
	_, err := edges[0].Simulate(1000, domain.SwapModeExactIn)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestSqrtPriceX64FromTick(t *testing.T) {
	one := sqrtPriceX64FromTick(0)
	assert.Equal(t, 0, one.Cmp(u256Q64))

	// Positive ticks raise the price, negative ticks lower it.
	up := sqrtPriceX64FromTick(1000)
	down := sqrtPriceX64FromTick(-1000)
	assert.Equal(t, 1, up.Cmp(one))
	assert.Equal(t, -1, down.Cmp(one))

	// sqrt(1.0001^2) ~ 1.0001; check within float tolerance.
	two := sqrtPriceX64FromTick(2)
	expect := new(uint256.Int).Mul(u256Q64, uint256.NewInt(10001))
	expect.Div(expect, uint256.NewInt(10000))
	diff := new(uint256.Int).Sub(expect, two)
	assert.True(t, diff.IsUint64() && diff.Uint64() < 1<<40, "tick 2 sqrt price off by %s", diff)
}
