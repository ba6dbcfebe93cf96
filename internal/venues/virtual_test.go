package venues

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockworks-foundation/autobahn-sub002/internal/chaindata"
	"github.com/blockworks-foundation/autobahn-sub002/internal/domain"
)

func newVirtualCurve(t *testing.T, state virtualCurveState) (*virtualEdge, *virtualEdge) {
	t.Helper()
	adapter := NewVirtualAdapter(nil)
	data := encodeAccount(t, virtualCurveDiscriminator, state)
	edges, err := adapter.Decode(testKey(60), chaindata.Account{Owner: virtualProgramID, Slot: 3, Data: data})
	require.NoError(t, err)
	require.Len(t, edges, 2)
	return edges[0].(*virtualEdge), edges[1].(*virtualEdge)
}

func defaultCurve() virtualCurveState {
	return virtualCurveState{
		BaseMint:            testKey(7),
		QuoteMint:           testKey(8),
		VirtualBaseReserve:  1_073_000_000_000,
		VirtualQuoteReserve: 30_000_000_000,
		RealBaseReserve:     793_000_000_000,
		RealQuoteReserve:    0,
		FeeBps:              100,
	}
}

func TestVirtualBuyDirection(t *testing.T) {
	buy, sell := newVirtualCurve(t, defaultCurve())

	// Buy edge goes quote -> base, sell edge is its reverse.
	assert.Equal(t, testKey(8), buy.ID().InputMint)
	assert.Equal(t, testKey(7), buy.ID().OutputMint)
	assert.Equal(t, buy.ID(), sell.ID().Reverse())
	assert.Equal(t, uint8(1), buy.ID().AccountsNeeded)

	q, err := buy.Simulate(1_000_000_000, domain.SwapModeExactIn)
	require.NoError(t, err)

	// Price set by virtual reserves: roughly 1073/30 base per quote,
	// minus 1% fee and slippage.
	assert.Greater(t, q.OutAmount, uint64(33_000_000_000))
	assert.Less(t, q.OutAmount, uint64(36_000_000_000))
	assert.Equal(t, uint64(10_000_000), q.FeeAmount)
}

func TestVirtualRealReserveBound(t *testing.T) {
	state := defaultCurve()
	state.RealBaseReserve = 1_000_000 // nearly sold out
	buy, _ := newVirtualCurve(t, state)

	// The virtual curve would quote a large output, but the curve only
	// holds RealBaseReserve to pay with.
	_, err := buy.Simulate(1_000_000_000, domain.SwapModeExactIn)
	assert.ErrorIs(t, err, domain.ErrInsufficientLiquidity)

	// Exact-out above the bound fails the same way.
	_, err = buy.Simulate(2_000_000, domain.SwapModeExactOut)
	assert.ErrorIs(t, err, domain.ErrInsufficientLiquidity)
}

func TestVirtualCompletedCurveNotTradable(t *testing.T) {
	state := defaultCurve()
	state.Complete = 1
	buy, _ := newVirtualCurve(t, state)

	_, err := buy.Simulate(1_000, domain.SwapModeExactIn)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestVirtualExactOutRoundTrip(t *testing.T) {
	buy, _ := newVirtualCurve(t, defaultCurve())

	target := uint64(10_000_000_000)
	out, err := buy.Simulate(target, domain.SwapModeExactOut)
	require.NoError(t, err)
	require.Equal(t, target, out.OutAmount)

	back, err := buy.Simulate(out.InAmount, domain.SwapModeExactIn)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, back.OutAmount, target)
}
