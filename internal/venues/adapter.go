package venues

import (
	"errors"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog/log"

	"github.com/blockworks-foundation/autobahn-sub002/internal/chaindata"
	"github.com/blockworks-foundation/autobahn-sub002/internal/domain"
	"github.com/blockworks-foundation/autobahn-sub002/internal/metrics"
)

// ErrUnhandledAccount means no registered adapter claims the account. The
// update is dropped; this is routine noise on a shared feed, not a failure.
var ErrUnhandledAccount = errors.New("no adapter for account")

// Adapter decodes one venue design's accounts into edges. Decode is a pure
// transform of account bytes (plus backing accounts read from the chain-data
// store); it must not mutate shared state, so the registry can call it from
// the feed worker without locking.
type Adapter interface {
	Name() string
	Kind() domain.VenueKind
	ProgramID() solana.PublicKey

	// Decode turns a program-owned account into the full set of edges it
	// defines, both directions per pool. Wrong discriminator or short
	// buffer returns ErrMalformedAccount. Pools that decode but are not
	// tradable still yield edges; their Simulate reports ErrInvalidState
	// so the search skips them without forgetting the pool.
	Decode(address solana.PublicKey, acc chaindata.Account) ([]domain.Edge, error)

	// Discover enumerates the edges of every decodable pool this venue
	// owns in the chain-data store. Used for snapshot replay and
	// diagnostics; the live path goes through Decode per update.
	Discover() []domain.EdgeID
}

// discoverOwned scans the store for accounts owned by the adapter's program
// and collects the edge identifiers of everything that decodes. Accounts
// that fail to decode are skipped; the program owns more account types than
// just pools.
func discoverOwned(store *chaindata.Store, a Adapter) []domain.EdgeID {
	var ids []domain.EdgeID
	store.Range(func(key solana.PublicKey, acc chaindata.Account) bool {
		if acc.Owner != a.ProgramID() {
			return true
		}
		edges, err := a.Decode(key, acc)
		if err != nil {
			return true
		}
		for _, e := range edges {
			ids = append(ids, e.ID())
		}
		return true
	})
	return ids
}

// Registry dispatches account updates to adapters by owner program. Pools
// whose reserves live in token-program vaults register those vaults here, so
// a vault balance change re-decodes its pool.
type Registry struct {
	mu       sync.RWMutex
	adapters map[solana.PublicKey]Adapter

	// vault address -> pool address whose adapter must re-run
	vaultIndex map[solana.PublicKey]vaultRef

	store *chaindata.Store
}

type vaultRef struct {
	adapter Adapter
	pool    solana.PublicKey
}

func NewRegistry(store *chaindata.Store) *Registry {
	return &Registry{
		adapters:   make(map[solana.PublicKey]Adapter, 4),
		vaultIndex: make(map[solana.PublicKey]vaultRef, 1024),
		store:      store,
	}
}

func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	r.adapters[a.ProgramID()] = a
	r.mu.Unlock()
	log.Info().
		Str("venue", a.Name()).
		Str("program", a.ProgramID().String()).
		Msg("venue adapter registered")
}

func (r *Registry) Adapters() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, a)
	}
	return out
}

// DecodeUpdate resolves a freshly stored account to the edges it affects.
// Venue-program accounts go straight to their adapter. Token accounts are
// looked up in the vault index and resolve to a re-decode of their pool.
// Unclaimed accounts return ErrUnhandledAccount.
func (r *Registry) DecodeUpdate(key solana.PublicKey, acc chaindata.Account) ([]domain.Edge, error) {
	r.mu.RLock()
	adapter, direct := r.adapters[acc.Owner]
	ref, vaulted := r.vaultIndex[key]
	r.mu.RUnlock()

	if direct {
		edges, err := adapter.Decode(key, acc)
		if err != nil {
			return nil, err
		}
		r.indexVaults(adapter, edges)
		return edges, nil
	}

	if vaulted {
		poolAcc, ok := r.store.Get(ref.pool)
		if !ok {
			// Vault arrived before its pool; the pool update will
			// pick the balance up from the store.
			return nil, nil
		}
		return ref.adapter.Decode(ref.pool, poolAcc)
	}

	metrics.AccountsDropped.Inc()
	return nil, ErrUnhandledAccount
}

// indexVaults records every non-pool backing account of the decoded edges so
// future balance updates find their way back to the pool.
func (r *Registry) indexVaults(a Adapter, edges []domain.Edge) {
	if len(edges) == 0 {
		return
	}
	r.mu.Lock()
	for _, e := range edges {
		pool := e.ID().Pool
		for _, acc := range e.RequiredAccounts() {
			if acc == pool {
				continue
			}
			r.vaultIndex[acc] = vaultRef{adapter: a, pool: pool}
		}
	}
	r.mu.Unlock()
}

// Discover runs a full program-account scan over the store and returns every
// edge any registered adapter can decode, vault index included. This is the
// warm-start path; once the feed is live, edges arrive through DecodeUpdate.
func (r *Registry) Discover() []domain.Edge {
	r.mu.RLock()
	adapters := make(map[solana.PublicKey]Adapter, len(r.adapters))
	for k, a := range r.adapters {
		adapters[k] = a
	}
	r.mu.RUnlock()

	var edges []domain.Edge
	r.store.Range(func(key solana.PublicKey, acc chaindata.Account) bool {
		a, ok := adapters[acc.Owner]
		if !ok {
			return true
		}
		decoded, err := a.Decode(key, acc)
		if err != nil {
			return true
		}
		r.indexVaults(a, decoded)
		edges = append(edges, decoded...)
		return true
	})
	return edges
}

// TrackedVaults returns how many backing accounts are indexed.
func (r *Registry) TrackedVaults() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.vaultIndex)
}
