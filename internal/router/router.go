package router

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog/log"

	"github.com/blockworks-foundation/autobahn-sub002/internal/domain"
	"github.com/blockworks-foundation/autobahn-sub002/internal/graph"
	"github.com/blockworks-foundation/autobahn-sub002/internal/liquidity"
	"github.com/blockworks-foundation/autobahn-sub002/internal/metrics"
)

// Config carries the search tunables.
type Config struct {
	MaxHops            int
	MaxResults         int
	MaxPathsToEvaluate int

	// AccountCeiling bounds the distinct accounts a plan may reference.
	AccountCeiling int
}

func DefaultConfig() Config {
	return Config{
		MaxHops:            3,
		MaxResults:         5,
		MaxPathsToEvaluate: 10,
		AccountCeiling:     64,
	}
}

// Request is one quote query. MaxHops and MaxResults of zero fall back to
// the router's configured defaults, except that a caller explicitly asking
// for zero hops gets the strict zero-hop semantics via ZeroHops.
type Request struct {
	InputMint  solana.PublicKey
	OutputMint solana.PublicKey
	Amount     uint64
	Mode       domain.SwapMode
	MaxHops    int
	ZeroHops   bool
	MaxResults int

	// IncludeVenues, when non-empty, restricts the search to those venue
	// kinds. ExcludeVenues removes kinds on top of that.
	IncludeVenues []domain.VenueKind
	ExcludeVenues []domain.VenueKind
}

func (req *Request) venueAllowed(v domain.VenueKind) bool {
	for _, k := range req.ExcludeVenues {
		if k == v {
			return false
		}
	}
	if len(req.IncludeVenues) == 0 {
		return true
	}
	for _, k := range req.IncludeVenues {
		if k == v {
			return true
		}
	}
	return false
}

// Router runs bounded multi-hop search over the live graph: enumerate
// candidate token paths on the snapshot, then score each path with exact
// per-edge simulation at the requested amount.
type Router struct {
	graph     *graph.TokenGraph
	liquidity *liquidity.Provider
	cfg       Config
}

func New(g *graph.TokenGraph, p *liquidity.Provider, cfg Config) *Router {
	def := DefaultConfig()
	if cfg.MaxHops <= 0 {
		cfg.MaxHops = def.MaxHops
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = def.MaxResults
	}
	if cfg.MaxPathsToEvaluate <= 0 {
		cfg.MaxPathsToEvaluate = def.MaxPathsToEvaluate
	}
	if cfg.AccountCeiling <= 0 {
		cfg.AccountCeiling = def.AccountCeiling
	}
	return &Router{graph: g, liquidity: p, cfg: cfg}
}

func (r *Router) Graph() *graph.TokenGraph { return r.graph }

// FindRoutes returns up to MaxResults viable routes, best first. Results
// are distinct by edge sequence. ErrNoRouteFound when nothing connects the
// pair within the hop bound at the requested amount.
func (r *Router) FindRoutes(ctx context.Context, req Request) ([]*domain.Route, error) {
	start := time.Now()
	routes, err := r.findRoutes(ctx, req)

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.QuoteRequests.WithLabelValues(req.Mode.String(), status).Inc()
	metrics.QuoteDuration.WithLabelValues(req.Mode.String()).Observe(time.Since(start).Seconds())
	if err == nil && len(routes) > 0 {
		metrics.PathLength.Observe(float64(routes[0].HopCount()))
	}
	return routes, err
}

func (r *Router) findRoutes(ctx context.Context, req Request) ([]*domain.Route, error) {
	if req.Mode != domain.SwapModeExactIn && req.Mode != domain.SwapModeExactOut {
		return nil, domain.ErrUnsupportedSwapMode
	}

	// Source equal to destination is the identity route: no steps, amount
	// passes through untouched. No accounts back it, so its slot is zero.
	if req.InputMint == req.OutputMint {
		return []*domain.Route{{
			InputMint:  req.InputMint,
			OutputMint: req.OutputMint,
			InAmount:   req.Amount,
			OutAmount:  req.Amount,
		}}, nil
	}

	maxHops := req.MaxHops
	if req.ZeroHops {
		// Zero hops cannot connect two distinct tokens.
		metrics.NoRouteFound.Inc()
		return nil, domain.ErrNoRouteFound
	}
	if maxHops <= 0 {
		maxHops = r.cfg.MaxHops
	}
	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = r.cfg.MaxResults
	}

	reg := r.graph.Registry()
	src, okSrc := reg.Lookup(req.InputMint)
	dst, okDst := reg.Lookup(req.OutputMint)
	if !okSrc || !okDst {
		return nil, domain.ErrTokenNotFound
	}

	snap := r.graph.Snapshot()
	paths := findTokenPaths(snap, src, dst, maxHops, r.cfg.MaxPathsToEvaluate)
	metrics.PathsEvaluated.Observe(float64(len(paths)))
	if len(paths) == 0 {
		metrics.NoRouteFound.Inc()
		return nil, domain.ErrNoRouteFound
	}

	routes := r.evaluatePaths(ctx, snap, paths, req)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(routes) == 0 {
		metrics.NoRouteFound.Inc()
		return nil, domain.ErrNoRouteFound
	}

	sortRoutes(routes, req.Mode)
	if len(routes) > maxResults {
		routes = routes[:maxResults]
	}
	return routes, nil
}

// evaluatePaths scores candidate paths. Small sets run inline; larger ones
// fan out, one goroutine per path, since each evaluation touches disjoint
// scratch state.
func (r *Router) evaluatePaths(ctx context.Context, snap *graph.Snapshot, paths [][]graph.TokenID, req Request) []*domain.Route {
	if len(paths) <= 2 {
		routes := make([]*domain.Route, 0, len(paths))
		for _, p := range paths {
			if ctx.Err() != nil {
				return routes
			}
			if rt := r.evaluatePath(snap, p, req); rt != nil {
				routes = append(routes, rt)
			}
		}
		return routes
	}

	results := make([]*domain.Route, len(paths))
	var wg sync.WaitGroup
	for i, p := range paths {
		wg.Add(1)
		go func(i int, p []graph.TokenID) {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			results[i] = r.evaluatePath(snap, p, req)
		}(i, p)
	}
	wg.Wait()

	routes := make([]*domain.Route, 0, len(paths))
	for _, rt := range results {
		if rt != nil {
			routes = append(routes, rt)
		}
	}
	return routes
}

// evaluatePath turns a token sequence into a route by picking, per hop, the
// edge that executes best at the composed amount. Any hop with no viable
// edge kills the whole path.
func (r *Router) evaluatePath(snap *graph.Snapshot, path []graph.TokenID, req Request) *domain.Route {
	hops := len(path) - 1
	steps := make([]domain.RouteStep, hops)

	var slot uint64
	switch req.Mode {
	case domain.SwapModeExactIn:
		amt := req.Amount
		for i := 0; i < hops; i++ {
			step, stepSlot, ok := r.bestHopExactIn(snap, path[i], path[i+1], amt, &req)
			if !ok {
				return nil
			}
			steps[i] = step
			amt = step.OutAmount
			if stepSlot > slot {
				slot = stepSlot
			}
		}
		return r.routeFromSteps(path, steps, req.Amount, amt, slot)

	case domain.SwapModeExactOut:
		need := req.Amount
		for i := hops - 1; i >= 0; i-- {
			step, stepSlot, ok := r.bestHopExactOut(snap, path[i], path[i+1], need, &req)
			if !ok {
				return nil
			}
			steps[i] = step
			need = step.InAmount
			if stepSlot > slot {
				slot = stepSlot
			}
		}
		return r.routeFromSteps(path, steps, need, req.Amount, slot)
	}
	return nil
}

func (r *Router) routeFromSteps(path []graph.TokenID, steps []domain.RouteStep, in, out, slot uint64) *domain.Route {
	reg := r.graph.Registry()
	return &domain.Route{
		InputMint:  reg.MintOf(path[0]),
		OutputMint: reg.MintOf(path[len(path)-1]),
		InAmount:   in,
		OutAmount:  out,
		Steps:      steps,
		Slot:       slot,
	}
}

func (r *Router) bestHopExactIn(snap *graph.Snapshot, from, to graph.TokenID, amount uint64, req *Request) (domain.RouteStep, uint64, bool) {
	var best domain.RouteStep
	var slot uint64
	found := false
	for _, n := range snap.Out[from] {
		if n.To != to || n.Slot.Inactive() {
			continue
		}
		e, ok := n.Edge()
		if !ok {
			continue
		}
		id := e.ID()
		if !req.venueAllowed(id.Venue) {
			continue
		}
		if !r.liquidity.CanAbsorb(id, amount) {
			continue
		}
		q, err := e.Simulate(amount, domain.SwapModeExactIn)
		if err != nil || q.OutAmount == 0 {
			continue
		}
		if !found || q.OutAmount > best.OutAmount {
			best = domain.RouteStep{
				Edge:      id,
				InAmount:  amount,
				OutAmount: q.OutAmount,
				FeeAmount: q.FeeAmount,
				FeeMint:   q.FeeMint,
			}
			slot = e.Slot()
			found = true
		}
	}
	return best, slot, found
}

func (r *Router) bestHopExactOut(snap *graph.Snapshot, from, to graph.TokenID, amount uint64, req *Request) (domain.RouteStep, uint64, bool) {
	var best domain.RouteStep
	var slot uint64
	found := false
	for _, n := range snap.Out[from] {
		if n.To != to || n.Slot.Inactive() {
			continue
		}
		e, ok := n.Edge()
		if !ok {
			continue
		}
		if !req.venueAllowed(e.ID().Venue) {
			continue
		}
		q, err := e.Simulate(amount, domain.SwapModeExactOut)
		if err != nil || q.InAmount == 0 {
			continue
		}
		id := e.ID()
		if !r.liquidity.CanAbsorb(id, q.InAmount) {
			continue
		}
		if !found || q.InAmount < best.InAmount {
			best = domain.RouteStep{
				Edge:      id,
				InAmount:  q.InAmount,
				OutAmount: amount,
				FeeAmount: q.FeeAmount,
				FeeMint:   q.FeeMint,
			}
			slot = e.Slot()
			found = true
		}
	}
	return best, slot, found
}

// sortRoutes ranks by realized amount, then fewer hops, then the estimated
// execution cost, with a deterministic final tiebreak on the first edge.
func sortRoutes(routes []*domain.Route, mode domain.SwapMode) {
	sort.SliceStable(routes, func(i, j int) bool {
		a, b := routes[i], routes[j]
		if mode == domain.SwapModeExactIn {
			if a.OutAmount != b.OutAmount {
				return a.OutAmount > b.OutAmount
			}
		} else {
			if a.InAmount != b.InAmount {
				return a.InAmount < b.InAmount
			}
		}
		if a.HopCount() != b.HopCount() {
			return a.HopCount() < b.HopCount()
		}
		ca, cb := routeCUEstimate(a), routeCUEstimate(b)
		if ca != cb {
			return ca < cb
		}
		if len(a.Steps) > 0 && len(b.Steps) > 0 {
			return a.Steps[0].Edge.Pool.String() < b.Steps[0].Edge.Pool.String()
		}
		return false
	})
}

// BestRoute is FindRoutes narrowed to the single top result.
func (r *Router) BestRoute(ctx context.Context, req Request) (*domain.Route, error) {
	req.MaxResults = 1
	routes, err := r.FindRoutes(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(routes) == 0 {
		log.Debug().
			Str("in", req.InputMint.String()).
			Str("out", req.OutputMint.String()).
			Msg("route search returned empty set")
		return nil, domain.ErrNoRouteFound
	}
	return routes[0], nil
}
