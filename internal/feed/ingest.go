package feed

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog/log"

	"github.com/blockworks-foundation/autobahn-sub002/internal/chaindata"
	"github.com/blockworks-foundation/autobahn-sub002/internal/common"
	"github.com/blockworks-foundation/autobahn-sub002/internal/domain"
	"github.com/blockworks-foundation/autobahn-sub002/internal/graph"
	"github.com/blockworks-foundation/autobahn-sub002/internal/metrics"
	"github.com/blockworks-foundation/autobahn-sub002/internal/venues"
)

// Update is one account write from the chain feed.
type Update struct {
	Key     solana.PublicKey
	Account chaindata.Account
	Source  chaindata.AccountSource
}

// Ingester is the single writer between the account feed and the graph.
// Batches come in on a channel; each account is stored with monotonicity
// enforcement, decoded through the venue registry, and the resulting edges
// land in the graph as one batch. Keeping a single goroutine on the write
// path means the store, registry and graph never see concurrent writers
// from the feed side.
type Ingester struct {
	store    *chaindata.Store
	registry *venues.Registry
	graph    *graph.TokenGraph
	tokens   *domain.TokenCache

	updates chan []Update
}

func NewIngester(store *chaindata.Store, registry *venues.Registry, g *graph.TokenGraph, tokens *domain.TokenCache, queueDepth int) *Ingester {
	if queueDepth <= 0 {
		queueDepth = 64
	}
	return &Ingester{
		store:    store,
		registry: registry,
		graph:    g,
		tokens:   tokens,
		updates:  make(chan []Update, queueDepth),
	}
}

// Submit queues a batch for processing. It blocks when the queue is full,
// applying backpressure to the feed instead of dropping updates.
func (in *Ingester) Submit(ctx context.Context, batch []Update) error {
	select {
	case in.updates <- batch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run consumes batches until the context is cancelled.
func (in *Ingester) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch := <-in.updates:
			in.ProcessBatch(batch)
		}
	}
}

// ProcessBatch applies one batch synchronously and reports how many edges
// were upserted. SPL mint accounts feed the token cache instead of the venue
// registry. Stale writes are dropped by the store and skipped here;
// malformed accounts are counted and skipped, never fatal.
func (in *Ingester) ProcessBatch(batch []Update) int {
	edges := make([]domain.Edge, 0, len(batch)*2)
	for _, u := range batch {
		if !in.store.Set(u.Key, u.Account, u.Source) {
			continue
		}
		if tok, ok := decodeMint(u.Key, u.Account); ok {
			in.tokens.Put(tok)
			continue
		}
		decoded, err := in.registry.DecodeUpdate(u.Key, u.Account)
		if err != nil {
			if errors.Is(err, domain.ErrMalformedAccount) {
				metrics.AccountsMalformed.Inc()
				log.Warn().
					Str("account", u.Key.String()).
					Str("owner", u.Account.Owner.String()).
					Err(err).
					Msg("malformed account update")
			}
			continue
		}
		edges = append(edges, decoded...)
	}

	if len(edges) > 0 {
		in.graph.UpsertBatch(edges)
	}
	metrics.FeedBatches.Inc()
	return len(edges)
}

// splMintAccountSize is the serialized size of a classic SPL mint. Token
// accounts under the same owner are 165 bytes, so the length alone tells the
// two apart.
const splMintAccountSize = 82

// decodeMint extracts token metadata from an SPL mint account update. The
// decimals byte sits at offset 44, behind the authority option and supply;
// offset 45 is the initialized flag.
func decodeMint(key solana.PublicKey, acc chaindata.Account) (domain.Token, bool) {
	if acc.Owner != common.TokenProgramID && acc.Owner != common.Token2022ID {
		return domain.Token{}, false
	}
	if len(acc.Data) != splMintAccountSize || acc.Data[45] != 1 {
		return domain.Token{}, false
	}
	return domain.Token{Mint: key, Decimals: acc.Data[44]}, true
}
