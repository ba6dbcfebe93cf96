package router

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gagliardetto/solana-go"

	"github.com/blockworks-foundation/autobahn-sub002/internal/domain"
	"github.com/blockworks-foundation/autobahn-sub002/internal/metrics"
)

// Per-venue compute estimates, padded above observed on-chain costs so the
// plan's budget request does not starve a worst-case execution.
const (
	cuBase        = 20_000
	cuWrapStep    = 10_000
	cuCPMMSwap    = 40_000
	cuStableSwap  = 60_000
	cuCLMMSwap    = 80_000
	cuVirtualSwap = 35_000
)

func venueCU(v domain.VenueKind) uint32 {
	switch v {
	case domain.VenueCPMM:
		return cuCPMMSwap
	case domain.VenueStable:
		return cuStableSwap
	case domain.VenueCLMM:
		return cuCLMMSwap
	case domain.VenueVirtual:
		return cuVirtualSwap
	default:
		return cuCLMMSwap
	}
}

func routeCUEstimate(r *domain.Route) uint32 {
	cu := uint32(cuBase)
	for _, s := range r.Steps {
		cu += venueCU(s.Edge.Venue)
	}
	return cu
}

// EdgeResolver maps an edge identifier back to its live edge, normally the
// graph's EdgeState. Assembly needs the live edge for its account list.
type EdgeResolver func(domain.EdgeID) (domain.Edge, bool)

// AssemblePlan turns a simulated route into an executable plan: wrap and
// unwrap steps when native SOL sits at either end, one swap step per hop
// with a slippage-adjusted output floor on the final hop, a compute
// estimate, and the union of every account touched. Plans whose account
// set exceeds accountCeiling are rejected rather than truncated.
func AssemblePlan(route *domain.Route, resolve EdgeResolver, slippageBps uint64, accountCeiling int) (*domain.SwapPlan, error) {
	if accountCeiling <= 0 {
		accountCeiling = DefaultConfig().AccountCeiling
	}

	plan := &domain.SwapPlan{
		CUEstimate: routeCUEstimate(route),
		Accounts:   mapset.NewThreadUnsafeSet[solana.PublicKey](),
	}

	if route.InputMint == solana.SolMint && route.HopCount() > 0 {
		plan.Setup = append(plan.Setup, domain.SwapStep{
			Kind:     domain.StepSetup,
			InAmount: route.InAmount,
			Accounts: []solana.PublicKey{solana.SolMint, solana.TokenProgramID},
		})
		plan.CUEstimate += cuWrapStep
	}

	for i, step := range route.Steps {
		e, ok := resolve(step.Edge)
		if !ok {
			return nil, fmt.Errorf("assemble hop %d %s: %w", i, step.Edge.Desc(), domain.ErrEdgeNotFound)
		}
		accounts := e.RequiredAccounts()
		for _, a := range accounts {
			plan.Accounts.Add(a)
		}

		minOut := step.OutAmount
		if i == len(route.Steps)-1 && slippageBps > 0 {
			minOut = step.OutAmount - mulBps(step.OutAmount, slippageBps)
		}
		plan.Swaps = append(plan.Swaps, domain.SwapStep{
			Kind:         domain.StepSwap,
			Edge:         step.Edge,
			InAmount:     step.InAmount,
			MinOutAmount: minOut,
			Accounts:     accounts,
		})
	}

	if route.OutputMint == solana.SolMint && route.HopCount() > 0 {
		plan.Cleanup = append(plan.Cleanup, domain.SwapStep{
			Kind:     domain.StepCleanup,
			Accounts: []solana.PublicKey{solana.SolMint, solana.TokenProgramID},
		})
		plan.CUEstimate += cuWrapStep
	}

	for _, s := range plan.Setup {
		for _, a := range s.Accounts {
			plan.Accounts.Add(a)
		}
	}
	for _, s := range plan.Cleanup {
		for _, a := range s.Accounts {
			plan.Accounts.Add(a)
		}
	}

	if plan.Accounts.Cardinality() > accountCeiling {
		metrics.PlansTooLarge.Inc()
		return nil, fmt.Errorf("%d accounts over ceiling %d: %w",
			plan.Accounts.Cardinality(), accountCeiling, domain.ErrPlanTooLarge)
	}
	return plan, nil
}

func mulBps(amount, bps uint64) uint64 {
	return (amount/10_000)*bps + (amount%10_000)*bps/10_000
}
