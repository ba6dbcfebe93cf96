package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/blockworks-foundation/autobahn-sub002/internal/chaindata"
	"github.com/blockworks-foundation/autobahn-sub002/internal/common"
	"github.com/blockworks-foundation/autobahn-sub002/internal/config"
	"github.com/blockworks-foundation/autobahn-sub002/internal/domain"
	"github.com/blockworks-foundation/autobahn-sub002/internal/feed"
	"github.com/blockworks-foundation/autobahn-sub002/internal/graph"
	httpserver "github.com/blockworks-foundation/autobahn-sub002/internal/http"
	"github.com/blockworks-foundation/autobahn-sub002/internal/liquidity"
	"github.com/blockworks-foundation/autobahn-sub002/internal/persistence"
	"github.com/blockworks-foundation/autobahn-sub002/internal/router"
	"github.com/blockworks-foundation/autobahn-sub002/internal/venues"
)

func main() {
	common.InitRuntime()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	common.InitLogger(cfg.LogLevel, cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := chaindata.NewStore()
	registry := venues.NewRegistry(store)
	registry.Register(venues.NewCPMMAdapter(store))
	registry.Register(venues.NewStableAdapter(store))
	registry.Register(venues.NewCLMMAdapter(store))
	registry.Register(venues.NewVirtualAdapter(store))

	g := graph.NewTokenGraph()
	defer g.Close()

	tokens := domain.NewTokenCache()
	ingester := feed.NewIngester(store, registry, g, tokens, cfg.FeedQueueDepth)

	storage, err := persistence.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open persistence")
	}
	defer storage.Close()
	warmStart(storage, store, registry, g, tokens)

	provider := liquidity.NewProvider()
	updater := liquidity.NewUpdater(g, provider, liquidity.Config{
		Interval:     cfg.LiquidityRefreshInterval,
		BaseAmount:   cfg.DepthProbeBase,
		MaxImpactBps: uint16(cfg.MaxImpactBps),
	})

	rtr := router.New(g, provider, router.Config{
		MaxHops:            cfg.MaxHops,
		MaxResults:         cfg.MaxResults,
		MaxPathsToEvaluate: cfg.MaxPathsToEvaluate,
		AccountCeiling:     cfg.AccountCeiling,
	})
	quoteCache := router.NewQuoteCache(cfg.QuoteCacheTTL)
	defer quoteCache.Stop()

	server := httpserver.NewServer(cfg,
		httpserver.NewQuoteHandler(rtr, quoteCache, cfg.DefaultSlippageBps, cfg.AccountCeiling),
		httpserver.NewPoolHandler(g, registry),
		httpserver.NewTokenHandler(tokens),
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error { return ingester.Run(egCtx) })
	eg.Go(func() error { return updater.Run(egCtx) })
	eg.Go(server.Start)
	eg.Go(func() error {
		<-egCtx.Done()
		return server.Stop()
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("service exited with error")
	}

	if _, err := storage.SaveAccounts(store); err != nil {
		log.Error().Err(err).Msg("failed to save account snapshot")
	}
	if _, err := storage.SaveTokens(tokens); err != nil {
		log.Error().Err(err).Msg("failed to save token snapshot")
	}
	log.Info().Msg("shutdown complete")
}

// warmStart loads the persisted account snapshot into the store and runs a
// full discovery scan over it, so the graph serves quotes before the live
// feed catches up.
func warmStart(
	storage *persistence.Storage,
	store *chaindata.Store,
	registry *venues.Registry,
	g *graph.TokenGraph,
	tokens *domain.TokenCache,
) {
	loaded, err := storage.LoadAccounts(func(key solana.PublicKey, acc chaindata.Account) {
		store.Set(key, acc, chaindata.SourceSnapshot)
	})
	if err != nil {
		log.Warn().Err(err).Msg("warm start failed, continuing cold")
		return
	}
	edges := registry.Discover()
	g.UpsertBatch(edges)
	g.RefreshSnapshot()

	if n, err := storage.LoadTokens(tokens); err == nil {
		log.Info().Int("tokens", n).Msg("token cache restored")
	}
	log.Info().Int("accounts", loaded).Int("edges", len(edges)).Msg("warm start complete")
}
