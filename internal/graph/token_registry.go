package graph

import (
	"sync"

	"github.com/gagliardetto/solana-go"
)

// TokenID is a compact integer handle for a mint, used for O(1) adjacency
// lookups and cheap visited-sets during search.
type TokenID uint32

const InvalidTokenID TokenID = 0xFFFFFFFF

// TokenRegistry assigns stable integer IDs to mints. IDs are never reused;
// a mint keeps its ID for the process lifetime even if all its edges vanish.
type TokenRegistry struct {
	mu     sync.RWMutex
	toID   map[solana.PublicKey]TokenID
	toMint []solana.PublicKey
}

func NewTokenRegistry() *TokenRegistry {
	return &TokenRegistry{
		toID:   make(map[solana.PublicKey]TokenID, 1024),
		toMint: make([]solana.PublicKey, 0, 1024),
	}
}

// IDFor returns the mint's ID, assigning the next one on first sight.
func (r *TokenRegistry) IDFor(mint solana.PublicKey) TokenID {
	r.mu.RLock()
	if id, ok := r.toID[mint]; ok {
		r.mu.RUnlock()
		return id
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.toID[mint]; ok {
		return id
	}
	id := TokenID(len(r.toMint))
	r.toID[mint] = id
	r.toMint = append(r.toMint, mint)
	return id
}

// Lookup resolves a mint without assigning.
func (r *TokenRegistry) Lookup(mint solana.PublicKey) (TokenID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.toID[mint]
	return id, ok
}

func (r *TokenRegistry) MintOf(id TokenID) solana.PublicKey {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.toMint) {
		return solana.PublicKey{}
	}
	return r.toMint[id]
}

func (r *TokenRegistry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.toMint)
}

func (r *TokenRegistry) Mints() []solana.PublicKey {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]solana.PublicKey, len(r.toMint))
	copy(out, r.toMint)
	return out
}
