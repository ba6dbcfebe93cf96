package chaindata

import (
	"sync"
	"sync/atomic"

	"github.com/gagliardetto/solana-go"
)

// AccountSource tells where an account write came from. Stream updates obey
// slot monotonicity; snapshots are authoritative and may rewind a shard after
// a feed reconnect.
type AccountSource uint8

const (
	SourceStream AccountSource = iota
	SourceSnapshot
)

// Account is a raw on-chain account observation.
type Account struct {
	Owner solana.PublicKey
	Slot  uint64
	Data  []byte
}

const numShards = 16

// Store holds the latest observed bytes of every tracked account. Sharded by
// the first key byte to keep write contention low under feed bursts.
type Store struct {
	shards     [numShards]accountShard
	newestSlot atomic.Uint64
}

type accountShard struct {
	mu       sync.RWMutex
	accounts map[solana.PublicKey]Account
}

func NewStore() *Store {
	s := &Store{}
	for i := 0; i < numShards; i++ {
		s.shards[i].accounts = make(map[solana.PublicKey]Account, 256)
	}
	return s
}

func (s *Store) getShard(key solana.PublicKey) *accountShard {
	return &s.shards[key[0]%numShards]
}

// Set stores an account observation. Stream writes older than the stored
// slot are discarded; snapshot writes always land, even when they rewind,
// because a snapshot reflects confirmed state after a reconnect. Returns
// whether the write was applied.
func (s *Store) Set(key solana.PublicKey, acc Account, src AccountSource) bool {
	shard := s.getShard(key)
	shard.mu.Lock()
	if src == SourceStream {
		if prev, ok := shard.accounts[key]; ok && acc.Slot < prev.Slot {
			shard.mu.Unlock()
			return false
		}
	}
	shard.accounts[key] = acc
	shard.mu.Unlock()

	for {
		cur := s.newestSlot.Load()
		if acc.Slot <= cur || s.newestSlot.CompareAndSwap(cur, acc.Slot) {
			return true
		}
	}
}

func (s *Store) Get(key solana.PublicKey) (Account, bool) {
	shard := s.getShard(key)
	shard.mu.RLock()
	acc, ok := shard.accounts[key]
	shard.mu.RUnlock()
	return acc, ok
}

func (s *Store) Delete(key solana.PublicKey) {
	shard := s.getShard(key)
	shard.mu.Lock()
	delete(shard.accounts, key)
	shard.mu.Unlock()
}

func (s *Store) Len() int {
	total := 0
	for i := 0; i < numShards; i++ {
		s.shards[i].mu.RLock()
		total += len(s.shards[i].accounts)
		s.shards[i].mu.RUnlock()
	}
	return total
}

// NewestSlot is the highest slot applied by any write.
func (s *Store) NewestSlot() uint64 {
	return s.newestSlot.Load()
}

// Range iterates all accounts, shard by shard. Returning false stops early.
func (s *Store) Range(f func(key solana.PublicKey, acc Account) bool) {
	for i := 0; i < numShards; i++ {
		s.shards[i].mu.RLock()
		for k, v := range s.shards[i].accounts {
			if !f(k, v) {
				s.shards[i].mu.RUnlock()
				return
			}
		}
		s.shards[i].mu.RUnlock()
	}
}
