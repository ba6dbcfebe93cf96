package graph

import (
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockworks-foundation/autobahn-sub002/internal/domain"
)

type fakeEdge struct {
	id         domain.EdgeID
	reserveIn  uint64
	reserveOut uint64
	slot       uint64
}

func (e *fakeEdge) ID() domain.EdgeID { return e.id }
func (e *fakeEdge) Slot() uint64      { return e.slot }
func (e *fakeEdge) RequiredAccounts() []solana.PublicKey {
	return []solana.PublicKey{e.id.Pool}
}

func (e *fakeEdge) Simulate(amount uint64, mode domain.SwapMode) (domain.Quote, error) {
	if e.reserveIn == 0 || e.reserveOut == 0 {
		return domain.Quote{}, domain.ErrInvalidState
	}
	switch mode {
	case domain.SwapModeExactIn:
		out := e.reserveOut * amount / (e.reserveIn + amount)
		return domain.Quote{InAmount: amount, OutAmount: out, FeeMint: e.id.InputMint}, nil
	case domain.SwapModeExactOut:
		if amount >= e.reserveOut {
			return domain.Quote{}, domain.ErrInsufficientLiquidity
		}
		in := e.reserveIn*amount/(e.reserveOut-amount) + 1
		return domain.Quote{InAmount: in, OutAmount: amount, FeeMint: e.id.InputMint}, nil
	}
	return domain.Quote{}, domain.ErrUnsupportedSwapMode
}

func mint(b byte) solana.PublicKey {
	var k solana.PublicKey
	k[0] = b
	return k
}

func edgeBetween(pool byte, from, to solana.PublicKey, reserves uint64) *fakeEdge {
	var p solana.PublicKey
	p[0] = pool
	p[1] = 0xee
	return &fakeEdge{
		id: domain.EdgeID{
			Pool: p, InputMint: from, OutputMint: to,
			Venue: domain.VenueCPMM, AccountsNeeded: 3,
		},
		reserveIn:  reserves,
		reserveOut: reserves,
		slot:       1,
	}
}

func TestGraphUpsertAndLookup(t *testing.T) {
	g := NewTokenGraph()
	defer g.Close()

	a, b := mint(1), mint(2)
	e := edgeBetween(10, a, b, 1_000_000)
	g.UpsertEdge(e)

	got, ok := g.EdgeState(e.id)
	require.True(t, ok)
	assert.Equal(t, e.id, got.ID())
	assert.Equal(t, 1, g.EdgeCount())

	g.RefreshSnapshot()
	snap := g.Snapshot()
	aID, ok := g.Registry().Lookup(a)
	require.True(t, ok)
	require.Len(t, snap.Out[aID], 1)
	assert.Equal(t, e.id, snap.Out[aID][0].Slot.ID())
}

func TestGraphWholesaleReplacement(t *testing.T) {
	g := NewTokenGraph()
	defer g.Close()

	a, b := mint(1), mint(2)
	e1 := edgeBetween(10, a, b, 1_000_000)
	g.UpsertEdge(e1)

	slot, ok := g.SlotFor(e1.id)
	require.True(t, ok)
	gen1 := slot.Generation()

	e2 := edgeBetween(10, a, b, 5_000_000)
	g.UpsertEdge(e2)

	// Same identifier, same slot, new state, bumped generation.
	assert.Equal(t, 1, g.EdgeCount())
	assert.Greater(t, slot.Generation(), gen1)

	got, _, ok := slot.Edge()
	require.True(t, ok)
	assert.Equal(t, uint64(5_000_000), got.(*fakeEdge).reserveIn)
}

func TestGraphRemoveEdgeVacatesSlot(t *testing.T) {
	g := NewTokenGraph()
	defer g.Close()

	a, b := mint(1), mint(2)
	e := edgeBetween(10, a, b, 1_000_000)
	g.UpsertEdge(e)

	slot, _ := g.SlotFor(e.id)
	require.True(t, g.RemoveEdge(e.id))
	assert.False(t, g.RemoveEdge(e.id))

	_, ok := g.EdgeState(e.id)
	assert.False(t, ok)
	_, _, live := slot.Edge()
	assert.False(t, live)

	g.RefreshSnapshot()
	aID, _ := g.Registry().Lookup(a)
	assert.Empty(t, g.Snapshot().Out[aID])

	// The slot index is recycled by the next insert.
	e2 := edgeBetween(11, a, b, 2_000_000)
	g.UpsertEdge(e2)
	assert.Equal(t, 1, g.EdgeCount())
}

func TestGraphBatchReapplyIdempotent(t *testing.T) {
	g := NewTokenGraph()
	defer g.Close()

	a, b, c := mint(1), mint(2), mint(3)
	batch := []domain.Edge{
		edgeBetween(10, a, b, 1_000_000),
		edgeBetween(10, b, a, 1_000_000),
		edgeBetween(11, b, c, 1_000_000),
	}

	g.UpsertBatch(batch)
	count := g.EdgeCount()
	tokens := g.Registry().Size()

	g.UpsertBatch(batch)
	assert.Equal(t, count, g.EdgeCount())
	assert.Equal(t, tokens, g.Registry().Size())

	g.RefreshSnapshot()
	snap := g.Snapshot()
	assert.Equal(t, 3, snap.Edges)
}

func TestGraphInactiveFlag(t *testing.T) {
	g := NewTokenGraph()
	defer g.Close()

	e := edgeBetween(10, mint(1), mint(2), 1_000_000)
	g.UpsertEdge(e)
	slot, _ := g.SlotFor(e.id)

	assert.False(t, slot.Inactive())
	g.SetActive(e.id, false)
	assert.True(t, slot.Inactive())
	g.SetActive(e.id, true)
	assert.False(t, slot.Inactive())
}

func TestGraphUpdateCountMonotonic(t *testing.T) {
	g := NewTokenGraph()
	defer g.Close()

	before := g.UpdateCount()
	g.UpsertEdge(edgeBetween(10, mint(1), mint(2), 1))
	mid := g.UpdateCount()
	g.RemoveEdge(edgeBetween(10, mint(1), mint(2), 1).id)
	after := g.UpdateCount()

	assert.Greater(t, mid, before)
	assert.Greater(t, after, mid)
}

func TestGraphConcurrentReadsDuringWrites(t *testing.T) {
	g := NewTokenGraph()
	defer g.Close()

	a, b := mint(1), mint(2)
	g.UpsertEdge(edgeBetween(10, a, b, 1))

	stop := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for i := uint64(2); ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			g.UpsertEdge(edgeBetween(10, a, b, i))
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				snap := g.Snapshot()
				aID, ok := g.Registry().Lookup(a)
				if !ok {
					continue
				}
				for _, n := range snap.Out[aID] {
					if e, _, ok := n.Slot.Edge(); ok {
						// State must always be complete.
						if e.(*fakeEdge).reserveIn == 0 {
							t.Error("observed torn edge state")
							return
						}
					}
				}
			}
		}()
	}

	wg.Wait()
	close(stop)
	<-writerDone
}

func TestStaleSnapshotRejectsRecycledSlot(t *testing.T) {
	g := NewTokenGraph()
	defer g.Close()

	a, b, c, d := mint(1), mint(2), mint(3), mint(4)
	g.UpsertEdge(edgeBetween(10, a, b, 1_000_000))
	g.RefreshSnapshot()
	stale := g.Snapshot()

	aID, ok := g.Registry().Lookup(a)
	require.True(t, ok)
	require.Len(t, stale.Out[aID], 1)

	// Vacate the slot and recycle it for an unrelated pair while the old
	// snapshot is still held.
	require.True(t, g.RemoveEdge(edgeBetween(10, a, b, 1_000_000).id))
	g.UpsertEdge(edgeBetween(11, c, d, 2_000_000))

	n := stale.Out[aID][0]
	_, ok = n.Edge()
	assert.False(t, ok, "recycled slot must not resolve through a stale neighbor")

	// Re-upserting the pair brings it back under the next snapshot.
	g.UpsertEdge(edgeBetween(10, a, b, 3_000_000))
	g.RefreshSnapshot()
	fresh := g.Snapshot()
	found := false
	for _, fn := range fresh.Out[aID] {
		if e, ok := fn.Edge(); ok {
			assert.Equal(t, b, e.ID().OutputMint)
			found = true
		}
	}
	assert.True(t, found)
}
