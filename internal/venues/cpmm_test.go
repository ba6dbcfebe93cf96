package venues

import (
	"bytes"
	"encoding/binary"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockworks-foundation/autobahn-sub002/internal/chaindata"
	"github.com/blockworks-foundation/autobahn-sub002/internal/domain"
)

func encodeAccount(t *testing.T, disc []byte, state interface{}) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.Write(disc)
	require.NoError(t, bin.NewBorshEncoder(&buf).Encode(state))
	return buf.Bytes()
}

func tokenAccountData(amount uint64) []byte {
	data := make([]byte, tokenAccountLen)
	binary.LittleEndian.PutUint64(data[tokenAccountAmountOffset:], amount)
	return data
}

func testKey(b byte) solana.PublicKey {
	var k solana.PublicKey
	k[0] = b
	k[31] = 0x7f
	return k
}

// newCPMMPool decodes a constant-product pool with the given reserves and
// returns its two directed edges (A->B first).
func newCPMMPool(t *testing.T, reserveA, reserveB uint64, feeBps uint16) (*cpmmEdge, *cpmmEdge) {
	t.Helper()
	store := chaindata.NewStore()
	adapter := NewCPMMAdapter(store)

	vaultA, vaultB := testKey(10), testKey(11)
	store.Set(vaultA, chaindata.Account{
		Owner: solana.TokenProgramID, Slot: 5, Data: tokenAccountData(reserveA),
	}, chaindata.SourceStream)
	store.Set(vaultB, chaindata.Account{
		Owner: solana.TokenProgramID, Slot: 6, Data: tokenAccountData(reserveB),
	}, chaindata.SourceStream)

	state := cpmmPoolState{
		TokenMintA:  testKey(1),
		TokenMintB:  testKey(2),
		TokenVaultA: vaultA,
		TokenVaultB: vaultB,
		FeeBps:      feeBps,
	}
	data := encodeAccount(t, cpmmPoolDiscriminator, state)

	edges, err := adapter.Decode(testKey(20), chaindata.Account{Owner: cpmmProgramID, Slot: 7, Data: data})
	require.NoError(t, err)
	require.Len(t, edges, 2)
	return edges[0].(*cpmmEdge), edges[1].(*cpmmEdge)
}

func TestCPMMDecode(t *testing.T) {
	ab, ba := newCPMMPool(t, 1_000_000, 2_000_000, 30)

	assert.Equal(t, testKey(1), ab.ID().InputMint)
	assert.Equal(t, testKey(2), ab.ID().OutputMint)
	assert.Equal(t, ab.ID(), ba.ID().Reverse())
	assert.Equal(t, domain.VenueCPMM, ab.ID().Venue)
	assert.Equal(t, uint8(3), ab.ID().AccountsNeeded)

	// Slot is the max across pool and vault accounts.
	assert.Equal(t, uint64(7), ab.Slot())
	assert.Len(t, ab.RequiredAccounts(), 3)
}

func TestCPMMDecodeRejectsWrongDiscriminator(t *testing.T) {
	store := chaindata.NewStore()
	adapter := NewCPMMAdapter(store)

	data := encodeAccount(t, stablePoolDiscriminator, cpmmPoolState{})
	_, err := adapter.Decode(testKey(20), chaindata.Account{Owner: cpmmProgramID, Data: data})
	assert.ErrorIs(t, err, domain.ErrMalformedAccount)

	_, err = adapter.Decode(testKey(20), chaindata.Account{Owner: cpmmProgramID, Data: []byte{1, 2}})
	assert.ErrorIs(t, err, domain.ErrMalformedAccount)
}

func TestCPMMExactIn(t *testing.T) {
	ab, _ := newCPMMPool(t, 1_000_000_000_000, 1_000_000_000_000, 30)

	q, err := ab.Simulate(1000, domain.SwapModeExactIn)
	require.NoError(t, err)

	// 0.3% fee: 3 units of fee, 997 net, near 1:1 output on deep reserves.
	assert.Equal(t, uint64(1000), q.InAmount)
	assert.Equal(t, uint64(3), q.FeeAmount)
	assert.Equal(t, uint64(996), q.OutAmount)
	assert.Equal(t, testKey(1), q.FeeMint)
}

func TestCPMMFeeOutputCeiling(t *testing.T) {
	withFee, _ := newCPMMPool(t, 1_000_000_000, 500_000_000, 30)
	noFee, _ := newCPMMPool(t, 1_000_000_000, 500_000_000, 0)

	for _, amount := range []uint64{100, 10_000, 1_000_000, 100_000_000} {
		qf, err := withFee.Simulate(amount, domain.SwapModeExactIn)
		require.NoError(t, err)
		q0, err := noFee.Simulate(amount, domain.SwapModeExactIn)
		require.NoError(t, err)

		ceiling := q0.OutAmount - q0.OutAmount*30/10_000
		assert.LessOrEqual(t, qf.OutAmount, ceiling+1,
			"fee-adjusted output must not beat the ideal-less-fee ceiling at %d", amount)
	}
}

func TestCPMMExactOutRoundTrip(t *testing.T) {
	ab, _ := newCPMMPool(t, 1_000_000_000_000, 1_000_000_000_000, 30)

	in, err := ab.Simulate(996, domain.SwapModeExactOut)
	require.NoError(t, err)
	assert.Equal(t, uint64(996), in.OutAmount)

	// Paying the quoted input must yield at least the requested output.
	back, err := ab.Simulate(in.InAmount, domain.SwapModeExactIn)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, back.OutAmount, uint64(996))
	assert.LessOrEqual(t, in.InAmount, uint64(1002))
}

func TestCPMMExactOutInsufficient(t *testing.T) {
	ab, _ := newCPMMPool(t, 1_000_000, 1_000_000, 30)

	_, err := ab.Simulate(1_000_000, domain.SwapModeExactOut)
	assert.ErrorIs(t, err, domain.ErrInsufficientLiquidity)

	_, err = ab.Simulate(2_000_000, domain.SwapModeExactOut)
	assert.ErrorIs(t, err, domain.ErrInsufficientLiquidity)
}

func TestCPMMZeroAmount(t *testing.T) {
	ab, _ := newCPMMPool(t, 1_000_000, 1_000_000, 30)
	q, err := ab.Simulate(0, domain.SwapModeExactIn)
	require.NoError(t, err)
	assert.Zero(t, q.OutAmount)
	assert.Zero(t, q.FeeAmount)
}

func TestCPMMMissingVaultNotTradable(t *testing.T) {
	store := chaindata.NewStore()
	adapter := NewCPMMAdapter(store)

	state := cpmmPoolState{
		TokenMintA:  testKey(1),
		TokenMintB:  testKey(2),
		TokenVaultA: testKey(10),
		TokenVaultB: testKey(11),
		FeeBps:      30,
	}
	data := encodeAccount(t, cpmmPoolDiscriminator, state)
	edges, err := adapter.Decode(testKey(20), chaindata.Account{Owner: cpmmProgramID, Slot: 1, Data: data})
	require.NoError(t, err)
	require.Len(t, edges, 2)

	_, err = edges[0].Simulate(1000, domain.SwapModeExactIn)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}
