package graph

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/blockworks-foundation/autobahn-sub002/internal/domain"
	"github.com/blockworks-foundation/autobahn-sub002/internal/metrics"
)

// EdgeSlot is one arena cell. The slot index is stable for the life of the
// process while the edge state inside is swapped atomically on every update.
// Readers holding a slot pointer across a snapshot always see some complete
// state, never a torn one; the generation counter tells them whether it
// changed under them.
type EdgeSlot struct {
	state    atomic.Pointer[edgeState]
	gen      atomic.Uint64
	inactive atomic.Bool
}

type edgeState struct {
	edge domain.Edge // nil when the slot is vacated
	id   domain.EdgeID
}

// Edge returns the current state and its generation. ok is false when the
// slot has been vacated by RemoveEdge.
func (s *EdgeSlot) Edge() (domain.Edge, uint64, bool) {
	st := s.state.Load()
	if st == nil || st.edge == nil {
		return nil, s.gen.Load(), false
	}
	return st.edge, s.gen.Load(), true
}

func (s *EdgeSlot) ID() domain.EdgeID {
	st := s.state.Load()
	if st == nil {
		return domain.EdgeID{}
	}
	return st.id
}

// Generation increments on every state swap, including vacation.
func (s *EdgeSlot) Generation() uint64 { return s.gen.Load() }

// Inactive is advisory: set by liquidity probing, read by the search.
func (s *EdgeSlot) Inactive() bool { return s.inactive.Load() }

// Neighbor is one directed adjacency entry in a snapshot. ID pins the edge
// the entry was built from, so a reader can tell a state refresh of the same
// edge apart from the slot being recycled for an unrelated pair.
type Neighbor struct {
	To   TokenID
	ID   domain.EdgeID
	Slot *EdgeSlot
}

// Edge returns the slot's live state, rejecting it when the slot no longer
// holds the edge this neighbor was built from. Without the identity check a
// stale snapshot could route through a recycled slot and attribute the
// output to the wrong token.
func (n *Neighbor) Edge() (domain.Edge, bool) {
	e, _, ok := n.Slot.Edge()
	if !ok || e.ID() != n.ID {
		return nil, false
	}
	return e, true
}

// Snapshot is an immutable view of the graph topology. Edge state is read
// through the slots, so a snapshot taken seconds ago still quotes with
// current numbers; only topology (which edges exist) is frozen.
type Snapshot struct {
	Out map[TokenID][]Neighbor
	In  map[TokenID][]Neighbor

	Tokens int
	Edges  int
}

const defaultRefreshInterval = 100 * time.Millisecond

// TokenGraph is the concurrent routing multigraph. Writes are serialized by
// a mutex and funnel through the feed worker; reads go through the atomic
// snapshot and the lock-free slot loads.
type TokenGraph struct {
	mu       sync.RWMutex
	registry *TokenRegistry

	slots []*EdgeSlot
	byID  map[domain.EdgeID]int
	free  []int

	out map[TokenID][]int
	in  map[TokenID][]int

	snapshot      atomic.Value // *Snapshot
	snapshotDirty atomic.Bool
	updateCount   atomic.Uint64

	stopRefresher chan struct{}
	stopOnce      sync.Once
}

func NewTokenGraph() *TokenGraph {
	g := &TokenGraph{
		registry:      NewTokenRegistry(),
		byID:          make(map[domain.EdgeID]int, 4096),
		out:           make(map[TokenID][]int, 1024),
		in:            make(map[TokenID][]int, 1024),
		stopRefresher: make(chan struct{}),
	}
	g.rebuildSnapshotLocked()
	go g.snapshotRefresher(defaultRefreshInterval)
	return g
}

func (g *TokenGraph) Close() {
	g.stopOnce.Do(func() { close(g.stopRefresher) })
}

func (g *TokenGraph) Registry() *TokenRegistry { return g.registry }

func (g *TokenGraph) snapshotRefresher(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-g.stopRefresher:
			return
		case <-ticker.C:
			if g.snapshotDirty.CompareAndSwap(true, false) {
				g.RefreshSnapshot()
			}
		}
	}
}

// UpsertEdge installs or replaces the state behind an edge identifier.
// Replacement is wholesale; the new decoded edge swaps in atomically and the
// slot generation bumps. New identifiers extend the adjacency and mark the
// snapshot dirty.
func (g *TokenGraph) UpsertEdge(e domain.Edge) {
	g.mu.Lock()
	g.upsertLocked(e)
	g.mu.Unlock()
}

// UpsertBatch applies a batch under one lock acquisition. Re-applying the
// same batch is idempotent apart from generation counters.
func (g *TokenGraph) UpsertBatch(edges []domain.Edge) {
	if len(edges) == 0 {
		return
	}
	g.mu.Lock()
	for _, e := range edges {
		g.upsertLocked(e)
	}
	g.mu.Unlock()
}

func (g *TokenGraph) upsertLocked(e domain.Edge) {
	id := e.ID()
	st := &edgeState{edge: e, id: id}

	if idx, ok := g.byID[id]; ok {
		slot := g.slots[idx]
		slot.state.Store(st)
		slot.gen.Add(1)
		g.updateCount.Add(1)
		metrics.EdgeUpdates.Inc()
		return
	}

	var idx int
	if n := len(g.free); n > 0 {
		idx = g.free[n-1]
		g.free = g.free[:n-1]
	} else {
		idx = len(g.slots)
		g.slots = append(g.slots, &EdgeSlot{})
	}
	slot := g.slots[idx]
	slot.state.Store(st)
	slot.gen.Add(1)
	slot.inactive.Store(false)
	g.byID[id] = idx

	from := g.registry.IDFor(id.InputMint)
	to := g.registry.IDFor(id.OutputMint)
	g.out[from] = append(g.out[from], idx)
	g.in[to] = append(g.in[to], idx)

	g.updateCount.Add(1)
	g.snapshotDirty.Store(true)
	metrics.EdgeUpdates.Inc()
}

// RemoveEdge vacates the edge's slot. The index is recycled for future
// edges; concurrent readers holding the slot see the vacated state through
// the nil edge and the bumped generation.
func (g *TokenGraph) RemoveEdge(id domain.EdgeID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	idx, ok := g.byID[id]
	if !ok {
		return false
	}
	slot := g.slots[idx]
	slot.state.Store(&edgeState{id: id})
	slot.gen.Add(1)
	delete(g.byID, id)
	g.free = append(g.free, idx)

	from, _ := g.registry.Lookup(id.InputMint)
	to, _ := g.registry.Lookup(id.OutputMint)
	g.out[from] = removeIndex(g.out[from], idx)
	g.in[to] = removeIndex(g.in[to], idx)

	g.updateCount.Add(1)
	g.snapshotDirty.Store(true)
	return true
}

func removeIndex(s []int, idx int) []int {
	for i, v := range s {
		if v == idx {
			s[i] = s[len(s)-1]
			return s[:len(s)-1]
		}
	}
	return s
}

// EdgeState resolves an identifier to its current edge.
func (g *TokenGraph) EdgeState(id domain.EdgeID) (domain.Edge, bool) {
	g.mu.RLock()
	idx, ok := g.byID[id]
	g.mu.RUnlock()
	if !ok {
		return nil, false
	}
	e, _, ok := g.slots[idx].Edge()
	return e, ok
}

// SlotFor returns the arena slot backing an identifier, for callers that
// re-read state across time (liquidity probing).
func (g *TokenGraph) SlotFor(id domain.EdgeID) (*EdgeSlot, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	idx, ok := g.byID[id]
	if !ok {
		return nil, false
	}
	return g.slots[idx], true
}

// SetActive flips the advisory liquidity flag on an edge.
func (g *TokenGraph) SetActive(id domain.EdgeID, active bool) {
	g.mu.RLock()
	idx, ok := g.byID[id]
	g.mu.RUnlock()
	if !ok {
		return
	}
	g.slots[idx].inactive.Store(!active)
}

// Snapshot returns the current immutable topology view.
func (g *TokenGraph) Snapshot() *Snapshot {
	return g.snapshot.Load().(*Snapshot)
}

// RefreshSnapshot rebuilds the snapshot immediately instead of waiting for
// the refresher tick.
func (g *TokenGraph) RefreshSnapshot() {
	g.mu.Lock()
	g.rebuildSnapshotLocked()
	g.mu.Unlock()
}

func (g *TokenGraph) rebuildSnapshotLocked() {
	metrics.GraphSnapshotRebuilds.Inc()

	out := make(map[TokenID][]Neighbor, len(g.out))
	for from, idxs := range g.out {
		if len(idxs) == 0 {
			continue
		}
		neighbors := make([]Neighbor, 0, len(idxs))
		for _, idx := range idxs {
			slot := g.slots[idx]
			id := slot.ID()
			to := g.registry.IDFor(id.OutputMint)
			neighbors = append(neighbors, Neighbor{To: to, ID: id, Slot: slot})
		}
		out[from] = neighbors
	}

	in := make(map[TokenID][]Neighbor, len(g.in))
	for to, idxs := range g.in {
		if len(idxs) == 0 {
			continue
		}
		neighbors := make([]Neighbor, 0, len(idxs))
		for _, idx := range idxs {
			slot := g.slots[idx]
			id := slot.ID()
			from := g.registry.IDFor(id.InputMint)
			neighbors = append(neighbors, Neighbor{To: from, ID: id, Slot: slot})
		}
		in[to] = neighbors
	}

	g.snapshot.Store(&Snapshot{
		Out:    out,
		In:     in,
		Tokens: g.registry.Size(),
		Edges:  len(g.byID),
	})
	metrics.EdgeCount.Set(float64(len(g.byID)))
	metrics.TokenCount.Set(float64(g.registry.Size()))
}

// EdgeCount is the number of live edges.
func (g *TokenGraph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.byID)
}

// UpdateCount is a monotonic counter of applied mutations, for observability
// and staleness checks.
func (g *TokenGraph) UpdateCount() uint64 {
	return g.updateCount.Load()
}

// EdgeIDs returns every live edge identifier, for persistence and the
// liquidity refresh sweep.
func (g *TokenGraph) EdgeIDs() []domain.EdgeID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]domain.EdgeID, 0, len(g.byID))
	for id := range g.byID {
		out = append(out, id)
	}
	return out
}

// OutgoingEdges resolves a mint's live outgoing edges from the snapshot.
func (g *TokenGraph) OutgoingEdges(mint solana.PublicKey) []domain.Edge {
	id, ok := g.registry.Lookup(mint)
	if !ok {
		return nil
	}
	snap := g.Snapshot()
	neighbors := snap.Out[id]
	edges := make([]domain.Edge, 0, len(neighbors))
	for _, n := range neighbors {
		if e, ok := n.Edge(); ok {
			edges = append(edges, e)
		}
	}
	return edges
}
