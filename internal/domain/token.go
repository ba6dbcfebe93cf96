package domain

import (
	"sync"

	"github.com/gagliardetto/solana-go"
)

// Token is a fungible asset identity plus decimal precision. Immutable once
// cached.
type Token struct {
	Mint     solana.PublicKey `json:"mint"`
	Decimals uint8            `json:"decimals"`
}

// TokenCache is the process-wide token registry, populated at startup and
// occasionally refreshed from mint account updates.
type TokenCache struct {
	mu     sync.RWMutex
	tokens map[solana.PublicKey]Token
}

func NewTokenCache() *TokenCache {
	return &TokenCache{tokens: make(map[solana.PublicKey]Token, 1024)}
}

// Token resolves a mint. A missing mint is a caller-visible error, never
// silently defaulted.
func (c *TokenCache) Token(mint solana.PublicKey) (Token, error) {
	c.mu.RLock()
	t, ok := c.tokens[mint]
	c.mu.RUnlock()
	if !ok {
		return Token{}, ErrTokenNotFound
	}
	return t, nil
}

func (c *TokenCache) Put(t Token) {
	c.mu.Lock()
	c.tokens[t.Mint] = t
	c.mu.Unlock()
}

func (c *TokenCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tokens)
}

// All returns a copy of every known token.
func (c *TokenCache) All() []Token {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Token, 0, len(c.tokens))
	for _, t := range c.tokens {
		out = append(out, t)
	}
	return out
}
