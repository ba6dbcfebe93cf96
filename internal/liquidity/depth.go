package liquidity

import (
	"github.com/blockworks-foundation/autobahn-sub002/internal/domain"
)

// Depth is the probed absorption capacity of one edge: the largest exact-in
// amount whose price impact stayed within the configured bound, and the
// output it produced. Estimates, refreshed periodically, never authoritative.
type Depth struct {
	MaxIn  uint64
	Out    uint64
	Probes int
	Slot   uint64
}

const maxProbeIterations = 50

// ComputeDepth estimates an edge's depth by doubling probe trades from
// baseAmount until the simulated price impact exceeds maxImpactBps, the edge
// errors, or the iteration cap is hit. A zero Depth means the edge could not
// absorb even the base probe.
func ComputeDepth(e domain.Edge, baseAmount uint64, maxImpactBps uint16) Depth {
	if baseAmount == 0 {
		return Depth{}
	}

	base, err := e.Simulate(baseAmount, domain.SwapModeExactIn)
	if err != nil || base.OutAmount == 0 {
		return Depth{}
	}

	depth := Depth{
		MaxIn:  baseAmount,
		Out:    base.OutAmount,
		Probes: 1,
		Slot:   e.Slot(),
	}

	amount := baseAmount
	for i := 1; i < maxProbeIterations; i++ {
		next := amount << 1
		if next <= amount {
			break // overflow
		}
		amount = next

		q, err := e.Simulate(amount, domain.SwapModeExactIn)
		depth.Probes++
		if err != nil || q.OutAmount == 0 {
			break
		}
		if impactBps(baseAmount, base.OutAmount, amount, q.OutAmount) > uint64(maxImpactBps) {
			break
		}
		depth.MaxIn = amount
		depth.Out = q.OutAmount
	}
	return depth
}

// impactBps measures how far the realized price at (amount, out) degraded
// from the marginal price observed at the base probe.
func impactBps(baseIn, baseOut, amount, out uint64) uint64 {
	// expected = amount * baseOut / baseIn, computed in the order that
	// avoids overflow for doubled amounts.
	expected := (amount / baseIn) * baseOut
	expected += (amount % baseIn) * baseOut / baseIn
	if expected == 0 || out >= expected {
		return 0
	}
	loss := expected - out
	return loss * 10_000 / expected
}
