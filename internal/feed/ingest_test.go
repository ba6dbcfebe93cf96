package feed

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockworks-foundation/autobahn-sub002/internal/chaindata"
	"github.com/blockworks-foundation/autobahn-sub002/internal/common"
	"github.com/blockworks-foundation/autobahn-sub002/internal/domain"
	"github.com/blockworks-foundation/autobahn-sub002/internal/graph"
	"github.com/blockworks-foundation/autobahn-sub002/internal/venues"
)

// feedEdge records the reserve byte it was decoded from, so tests can tell
// which account version produced the edge currently in the graph.
type feedEdge struct {
	id      domain.EdgeID
	reserve uint64
	slot    uint64
}

func (e *feedEdge) ID() domain.EdgeID                    { return e.id }
func (e *feedEdge) Slot() uint64                         { return e.slot }
func (e *feedEdge) RequiredAccounts() []solana.PublicKey { return []solana.PublicKey{e.id.Pool} }
func (e *feedEdge) Simulate(amount uint64, mode domain.SwapMode) (domain.Quote, error) {
	return domain.Quote{InAmount: amount, OutAmount: amount}, nil
}

type fakeAdapter struct {
	program solana.PublicKey
}

func (a *fakeAdapter) Name() string                { return "fake" }
func (a *fakeAdapter) Kind() domain.VenueKind      { return domain.VenueCPMM }
func (a *fakeAdapter) ProgramID() solana.PublicKey { return a.program }
func (a *fakeAdapter) Discover() []domain.EdgeID   { return nil }

// Decode treats data as [reserve byte, mintA byte, mintB byte].
func (a *fakeAdapter) Decode(address solana.PublicKey, acc chaindata.Account) ([]domain.Edge, error) {
	if len(acc.Data) < 3 {
		return nil, fmt.Errorf("fake account %d bytes: %w", len(acc.Data), domain.ErrMalformedAccount)
	}
	var ma, mb solana.PublicKey
	ma[0], mb[0] = acc.Data[1], acc.Data[2]
	fwd := domain.EdgeID{Pool: address, InputMint: ma, OutputMint: mb, Venue: domain.VenueCPMM, AccountsNeeded: 1}
	return []domain.Edge{
		&feedEdge{id: fwd, reserve: uint64(acc.Data[0]), slot: acc.Slot},
		&feedEdge{id: fwd.Reverse(), reserve: uint64(acc.Data[0]), slot: acc.Slot},
	}, nil
}

func newTestIngester(t *testing.T) (*Ingester, *graph.TokenGraph, solana.PublicKey) {
	t.Helper()
	store := chaindata.NewStore()
	registry := venues.NewRegistry(store)
	var program solana.PublicKey
	program[0] = 0xF0
	registry.Register(&fakeAdapter{program: program})

	g := graph.NewTokenGraph()
	t.Cleanup(g.Close)
	return NewIngester(store, registry, g, domain.NewTokenCache(), 8), g, program
}

func poolUpdate(program solana.PublicKey, pool byte, slot uint64, data ...byte) Update {
	var key solana.PublicKey
	key[0] = pool
	return Update{
		Key:     key,
		Account: chaindata.Account{Owner: program, Slot: slot, Data: data},
		Source:  chaindata.SourceStream,
	}
}

func TestProcessBatchBuildsEdges(t *testing.T) {
	in, g, program := newTestIngester(t)

	n := in.ProcessBatch([]Update{
		poolUpdate(program, 1, 10, 100, 1, 2),
		poolUpdate(program, 2, 10, 100, 2, 3),
	})

	assert.Equal(t, 4, n)
	assert.Equal(t, 4, g.EdgeCount())
}

func TestProcessBatchDropsStaleWrites(t *testing.T) {
	in, g, program := newTestIngester(t)

	in.ProcessBatch([]Update{poolUpdate(program, 1, 20, 100, 1, 2)})
	// An older slot for the same account must not regress the edge state.
	in.ProcessBatch([]Update{poolUpdate(program, 1, 5, 7, 1, 2)})
	g.RefreshSnapshot()

	var ma solana.PublicKey
	ma[0] = 1
	edges := g.OutgoingEdges(ma)
	require.Len(t, edges, 1)
	assert.Equal(t, uint64(100), edges[0].(*feedEdge).reserve)
	assert.Equal(t, uint64(20), edges[0].Slot())
}

func TestProcessBatchSkipsMalformed(t *testing.T) {
	in, g, program := newTestIngester(t)

	n := in.ProcessBatch([]Update{
		poolUpdate(program, 1, 10), // too short to decode
		poolUpdate(program, 2, 10, 50, 3, 4),
	})

	assert.Equal(t, 2, n)
	assert.Equal(t, 2, g.EdgeCount())
}

func TestProcessBatchIgnoresUnknownOwner(t *testing.T) {
	in, g, _ := newTestIngester(t)

	var stranger solana.PublicKey
	stranger[0] = 0xEE
	n := in.ProcessBatch([]Update{poolUpdate(stranger, 1, 10, 1, 2, 3)})

	assert.Zero(t, n)
	assert.Zero(t, g.EdgeCount())
}

func TestRunConsumesSubmittedBatches(t *testing.T) {
	in, g, program := newTestIngester(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- in.Run(ctx) }()

	require.NoError(t, in.Submit(ctx, []Update{poolUpdate(program, 1, 10, 9, 1, 2)}))

	assert.Eventually(t, func() bool { return g.EdgeCount() == 2 },
		time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func mintAccountData(decimals byte) []byte {
	data := make([]byte, 82)
	data[44] = decimals
	data[45] = 1
	return data
}

func TestProcessBatchPopulatesTokenCache(t *testing.T) {
	store := chaindata.NewStore()
	registry := venues.NewRegistry(store)
	g := graph.NewTokenGraph()
	t.Cleanup(g.Close)
	tokens := domain.NewTokenCache()
	in := NewIngester(store, registry, g, tokens, 8)

	var usdc solana.PublicKey
	usdc[0] = 0x42
	in.ProcessBatch([]Update{
		{
			Key:     usdc,
			Account: chaindata.Account{Owner: common.TokenProgramID, Slot: 3, Data: mintAccountData(6)},
			Source:  chaindata.SourceStream,
		},
		// Token-program owned but the wrong size for a mint.
		{
			Key:     solana.PublicKey{0x43},
			Account: chaindata.Account{Owner: common.TokenProgramID, Slot: 3, Data: make([]byte, 165)},
			Source:  chaindata.SourceStream,
		},
	})

	tok, err := tokens.Token(usdc)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), tok.Decimals)
	assert.Equal(t, 1, tokens.Len())

	// An uninitialized mint never lands in the cache.
	var half solana.PublicKey
	half[0] = 0x44
	data := mintAccountData(9)
	data[45] = 0
	in.ProcessBatch([]Update{{
		Key:     half,
		Account: chaindata.Account{Owner: common.TokenProgramID, Slot: 4, Data: data},
		Source:  chaindata.SourceStream,
	}})
	_, err = tokens.Token(half)
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)
}
