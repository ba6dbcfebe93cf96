package venues

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockworks-foundation/autobahn-sub002/internal/chaindata"
	"github.com/blockworks-foundation/autobahn-sub002/internal/domain"
)

func TestRegistryDispatchByOwner(t *testing.T) {
	store := chaindata.NewStore()
	reg := NewRegistry(store)
	reg.Register(NewCPMMAdapter(store))
	reg.Register(NewVirtualAdapter(store))

	curve := encodeAccount(t, virtualCurveDiscriminator, defaultCurve())
	key := testKey(70)
	acc := chaindata.Account{Owner: virtualProgramID, Slot: 1, Data: curve}
	store.Set(key, acc, chaindata.SourceStream)

	edges, err := reg.DecodeUpdate(key, acc)
	require.NoError(t, err)
	assert.Len(t, edges, 2)
	assert.Equal(t, domain.VenueVirtual, edges[0].ID().Venue)
}

func TestRegistryVaultReDecode(t *testing.T) {
	store := chaindata.NewStore()
	reg := NewRegistry(store)
	reg.Register(NewCPMMAdapter(store))

	vaultA, vaultB := testKey(71), testKey(72)
	pool := testKey(73)

	store.Set(vaultA, chaindata.Account{
		Owner: solana.TokenProgramID, Slot: 1, Data: tokenAccountData(1_000_000),
	}, chaindata.SourceStream)
	store.Set(vaultB, chaindata.Account{
		Owner: solana.TokenProgramID, Slot: 1, Data: tokenAccountData(2_000_000),
	}, chaindata.SourceStream)

	poolData := encodeAccount(t, cpmmPoolDiscriminator, cpmmPoolState{
		TokenMintA:  testKey(1),
		TokenMintB:  testKey(2),
		TokenVaultA: vaultA,
		TokenVaultB: vaultB,
		FeeBps:      25,
	})
	poolAcc := chaindata.Account{Owner: cpmmProgramID, Slot: 2, Data: poolData}
	store.Set(pool, poolAcc, chaindata.SourceStream)

	edges, err := reg.DecodeUpdate(pool, poolAcc)
	require.NoError(t, err)
	require.Len(t, edges, 2)
	assert.Equal(t, 2, reg.TrackedVaults())

	// A vault balance change re-decodes the pool through the index.
	newVault := chaindata.Account{
		Owner: solana.TokenProgramID, Slot: 3, Data: tokenAccountData(5_000_000),
	}
	store.Set(vaultA, newVault, chaindata.SourceStream)
	edges, err = reg.DecodeUpdate(vaultA, newVault)
	require.NoError(t, err)
	require.Len(t, edges, 2)

	ab := edges[0].(*cpmmEdge)
	assert.Equal(t, uint64(5_000_000), ab.reserveIn)
	assert.Equal(t, uint64(3), ab.Slot())
}

func TestRegistryUnknownAccountDropped(t *testing.T) {
	store := chaindata.NewStore()
	reg := NewRegistry(store)
	reg.Register(NewCPMMAdapter(store))

	acc := chaindata.Account{Owner: testKey(99), Slot: 1, Data: []byte{1, 2, 3}}
	_, err := reg.DecodeUpdate(testKey(98), acc)
	assert.ErrorIs(t, err, ErrUnhandledAccount)
}

func TestRegistryVaultBeforePool(t *testing.T) {
	store := chaindata.NewStore()
	reg := NewRegistry(store)
	adapter := NewCPMMAdapter(store)
	reg.Register(adapter)

	// Seed the vault index by decoding a pool, then drop the pool from
	// the store to simulate the vault update racing ahead.
	vaultA, vaultB, pool := testKey(74), testKey(75), testKey(76)
	store.Set(vaultA, chaindata.Account{Owner: solana.TokenProgramID, Slot: 1, Data: tokenAccountData(1)}, chaindata.SourceStream)
	store.Set(vaultB, chaindata.Account{Owner: solana.TokenProgramID, Slot: 1, Data: tokenAccountData(1)}, chaindata.SourceStream)
	poolData := encodeAccount(t, cpmmPoolDiscriminator, cpmmPoolState{
		TokenVaultA: vaultA, TokenVaultB: vaultB, FeeBps: 30,
	})
	_, err := reg.DecodeUpdate(pool, chaindata.Account{Owner: cpmmProgramID, Slot: 2, Data: poolData})
	require.NoError(t, err)

	store.Delete(pool)
	edges, err := reg.DecodeUpdate(vaultA, chaindata.Account{Owner: solana.TokenProgramID, Slot: 3, Data: tokenAccountData(2)})
	require.NoError(t, err)
	assert.Empty(t, edges)
}

func TestDiscoverScansOwnedAccounts(t *testing.T) {
	store := chaindata.NewStore()
	reg := NewRegistry(store)
	adapter := NewCPMMAdapter(store)
	reg.Register(adapter)

	vaultA, vaultB, pool := testKey(80), testKey(81), testKey(82)
	store.Set(vaultA, chaindata.Account{Owner: solana.TokenProgramID, Slot: 1, Data: tokenAccountData(1_000)}, chaindata.SourceSnapshot)
	store.Set(vaultB, chaindata.Account{Owner: solana.TokenProgramID, Slot: 1, Data: tokenAccountData(2_000)}, chaindata.SourceSnapshot)
	poolData := encodeAccount(t, cpmmPoolDiscriminator, cpmmPoolState{
		TokenMintA:  testKey(1),
		TokenMintB:  testKey(2),
		TokenVaultA: vaultA,
		TokenVaultB: vaultB,
		FeeBps:      25,
	})
	store.Set(pool, chaindata.Account{Owner: cpmmProgramID, Slot: 2, Data: poolData}, chaindata.SourceSnapshot)

	// Program-owned but not a pool; discovery must skip it.
	store.Set(testKey(83), chaindata.Account{Owner: cpmmProgramID, Slot: 2, Data: []byte{1, 2, 3}}, chaindata.SourceSnapshot)

	ids := adapter.Discover()
	require.Len(t, ids, 2)
	assert.Equal(t, pool, ids[0].Pool)
	assert.Equal(t, ids[0].Reverse(), ids[1])

	edges := reg.Discover()
	require.Len(t, edges, 2)
	assert.Equal(t, 2, reg.TrackedVaults())
}
