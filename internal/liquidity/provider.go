package liquidity

import (
	"sync"

	"github.com/blockworks-foundation/autobahn-sub002/internal/domain"
)

const numShards = 16

// Provider stores probed depth per edge identifier. Sharded on the pool key
// byte; the refresh sweep writes while quote requests read.
type Provider struct {
	shards [numShards]depthShard
}

type depthShard struct {
	mu     sync.RWMutex
	depths map[domain.EdgeID]Depth
}

func NewProvider() *Provider {
	p := &Provider{}
	for i := 0; i < numShards; i++ {
		p.shards[i].depths = make(map[domain.EdgeID]Depth, 512)
	}
	return p
}

func (p *Provider) shard(id domain.EdgeID) *depthShard {
	return &p.shards[id.Pool[0]%numShards]
}

func (p *Provider) Put(id domain.EdgeID, d Depth) {
	s := p.shard(id)
	s.mu.Lock()
	s.depths[id] = d
	s.mu.Unlock()
}

func (p *Provider) Get(id domain.EdgeID) (Depth, bool) {
	s := p.shard(id)
	s.mu.RLock()
	d, ok := s.depths[id]
	s.mu.RUnlock()
	return d, ok
}

func (p *Provider) Delete(id domain.EdgeID) {
	s := p.shard(id)
	s.mu.Lock()
	delete(s.depths, id)
	s.mu.Unlock()
}

func (p *Provider) Len() int {
	total := 0
	for i := 0; i < numShards; i++ {
		p.shards[i].mu.RLock()
		total += len(p.shards[i].depths)
		p.shards[i].mu.RUnlock()
	}
	return total
}

// CanAbsorb is the advisory pre-filter for path search: false only when a
// probe has shown the edge cannot take the amount. Unknown edges pass, the
// exact simulation stays the arbiter.
func (p *Provider) CanAbsorb(id domain.EdgeID, amount uint64) bool {
	d, ok := p.Get(id)
	if !ok {
		return true
	}
	if d.MaxIn == 0 {
		return false
	}
	return amount <= d.MaxIn
}
