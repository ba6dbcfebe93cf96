package router

import (
	"encoding/binary"
	"hash/fnv"
	"sync"
	"time"

	"github.com/blockworks-foundation/autobahn-sub002/internal/domain"
	"github.com/blockworks-foundation/autobahn-sub002/internal/metrics"
)

const quoteCacheShards = 16

type cacheEntry struct {
	routes    []*domain.Route
	expiresAt time.Time
}

type cacheShard struct {
	mu      sync.RWMutex
	entries map[uint64]cacheEntry
}

// QuoteCache memoizes route results for identical requests inside a short
// TTL window. Quotes go stale as the chain moves, so the window has to stay
// well under the feed's typical update cadence.
type QuoteCache struct {
	shards  [quoteCacheShards]*cacheShard
	ttl     time.Duration
	stop    chan struct{}
	stopped sync.Once
}

func NewQuoteCache(ttl time.Duration) *QuoteCache {
	c := &QuoteCache{ttl: ttl, stop: make(chan struct{})}
	for i := range c.shards {
		c.shards[i] = &cacheShard{entries: make(map[uint64]cacheEntry)}
	}
	go c.cleanupLoop()
	return c
}

func (c *QuoteCache) Stop() {
	c.stopped.Do(func() { close(c.stop) })
}

func cacheKey(req Request) uint64 {
	h := fnv.New64a()
	h.Write(req.InputMint[:])
	h.Write(req.OutputMint[:])
	var buf [26]byte
	binary.LittleEndian.PutUint64(buf[:8], req.Amount)
	buf[8] = byte(req.Mode)
	if req.ZeroHops {
		buf[9] = 1
	}
	binary.LittleEndian.PutUint64(buf[10:18], uint64(req.MaxHops))
	binary.LittleEndian.PutUint64(buf[18:26], uint64(req.MaxResults))
	h.Write(buf[:])
	// Venue filters change the result set, so they are part of the key.
	// A separator byte keeps include and exclude lists from colliding.
	for _, k := range req.IncludeVenues {
		h.Write([]byte{byte(k)})
	}
	h.Write([]byte{0xFF})
	for _, k := range req.ExcludeVenues {
		h.Write([]byte{byte(k)})
	}
	return h.Sum64()
}

func (c *QuoteCache) Get(req Request) ([]*domain.Route, bool) {
	key := cacheKey(req)
	s := c.shards[key%quoteCacheShards]
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok || time.Now().After(e.expiresAt) {
		metrics.QuoteCacheMisses.Inc()
		return nil, false
	}
	metrics.QuoteCacheHits.Inc()
	return e.routes, true
}

func (c *QuoteCache) Put(req Request, routes []*domain.Route) {
	if c.ttl <= 0 {
		return
	}
	key := cacheKey(req)
	s := c.shards[key%quoteCacheShards]
	s.mu.Lock()
	s.entries[key] = cacheEntry{routes: routes, expiresAt: time.Now().Add(c.ttl)}
	s.mu.Unlock()
}

func (c *QuoteCache) Len() int {
	n := 0
	for _, s := range c.shards {
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}

func (c *QuoteCache) cleanupLoop() {
	interval := c.ttl
	if interval < 100*time.Millisecond {
		interval = 100 * time.Millisecond
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-c.stop:
			return
		case now := <-t.C:
			for _, s := range c.shards {
				s.mu.Lock()
				for k, e := range s.entries {
					if now.After(e.expiresAt) {
						delete(s.entries, k)
					}
				}
				s.mu.Unlock()
			}
		}
	}
}
