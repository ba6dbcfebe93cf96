package liquidity

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/blockworks-foundation/autobahn-sub002/internal/graph"
	"github.com/blockworks-foundation/autobahn-sub002/internal/metrics"
)

// Config tunes the refresh sweep.
type Config struct {
	Interval     time.Duration
	BaseAmount   uint64
	MaxImpactBps uint16
}

func DefaultConfig() Config {
	return Config{
		Interval:     30 * time.Second,
		BaseAmount:   1_000_000,
		MaxImpactBps: 3_000,
	}
}

// Updater periodically re-probes every edge and maintains the advisory
// active flag on the graph. One sweep at a time; cancellation is checked
// between edges so shutdown never waits on a full pass.
type Updater struct {
	graph    *graph.TokenGraph
	provider *Provider
	cfg      Config
}

func NewUpdater(g *graph.TokenGraph, p *Provider, cfg Config) *Updater {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.BaseAmount == 0 {
		cfg.BaseAmount = DefaultConfig().BaseAmount
	}
	if cfg.MaxImpactBps == 0 {
		cfg.MaxImpactBps = DefaultConfig().MaxImpactBps
	}
	return &Updater{graph: g, provider: p, cfg: cfg}
}

// Run blocks until ctx is cancelled, sweeping at the configured interval.
// The first sweep runs immediately so a fresh process does not serve quotes
// for a full interval without depth data.
func (u *Updater) Run(ctx context.Context) error {
	u.RefreshOnce(ctx)

	ticker := time.NewTicker(u.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			u.RefreshOnce(ctx)
		}
	}
}

// RefreshOnce probes every live edge once. Returns how many edges were
// probed before completion or cancellation.
func (u *Updater) RefreshOnce(ctx context.Context) int {
	start := time.Now()
	ids := u.graph.EdgeIDs()

	probed := 0
	inactive := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			log.Debug().Int("probed", probed).Msg("liquidity sweep cancelled")
			return probed
		}

		slot, ok := u.graph.SlotFor(id)
		if !ok {
			u.provider.Delete(id)
			continue
		}
		edge, _, ok := slot.Edge()
		if !ok {
			u.provider.Delete(id)
			continue
		}

		depth := ComputeDepth(edge, u.cfg.BaseAmount, u.cfg.MaxImpactBps)
		u.provider.Put(id, depth)
		probed++

		active := depth.MaxIn > 0
		if !active {
			inactive++
		}
		u.graph.SetActive(id, active)
	}

	metrics.EdgesInactive.Set(float64(inactive))
	metrics.LiquidityRefreshDuration.Set(time.Since(start).Seconds())
	log.Debug().
		Int("edges", probed).
		Int("inactive", inactive).
		Dur("took", time.Since(start)).
		Msg("liquidity sweep complete")
	return probed
}
