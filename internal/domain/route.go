package domain

import (
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gagliardetto/solana-go"
)

// RouteStep is one hop of a realized route.
type RouteStep struct {
	Edge      EdgeID
	InAmount  uint64
	OutAmount uint64
	FeeAmount uint64
	FeeMint   solana.PublicKey
}

// Route is a simulated multi-hop path: output token of step i equals input
// token of step i+1, first input is the requested source, last output the
// requested destination. A zero-hop route (source == destination) has no
// steps and InAmount == OutAmount. Routes are ephemeral, created per request.
type Route struct {
	InputMint  solana.PublicKey
	OutputMint solana.PublicKey
	InAmount   uint64
	OutAmount  uint64
	Steps      []RouteStep

	// Slot is the highest backing-account slot among the edges used, so
	// callers can reason about staleness. Zero for zero-hop routes.
	Slot uint64
}

func (r *Route) HopCount() int {
	return len(r.Steps)
}

// EdgeSequence returns the ordered edge identifiers of the route. Two routes
// are distinct iff their edge sequences differ.
func (r *Route) EdgeSequence() []EdgeID {
	seq := make([]EdgeID, len(r.Steps))
	for i, s := range r.Steps {
		seq[i] = s.Edge
	}
	return seq
}

// StepKind classifies a SwapPlan operation.
type StepKind uint8

const (
	StepSetup StepKind = iota
	StepSwap
	StepCleanup
)

func (k StepKind) String() string {
	switch k {
	case StepSetup:
		return "setup"
	case StepSwap:
		return "swap"
	case StepCleanup:
		return "cleanup"
	default:
		return "UNKNOWN"
	}
}

// SwapStep is one abstract operation of a SwapPlan. Swap steps carry the
// edge identifier and amounts; an external venue encoder turns them into
// chain instructions. Setup and cleanup steps (token wrapping, account
// creation) carry only their account set.
type SwapStep struct {
	Kind         StepKind
	Edge         EdgeID
	InAmount     uint64
	MinOutAmount uint64
	Accounts     []solana.PublicKey
}

// SwapPlan is the execution artifact for a chosen route: ordered setup
// operations, the core swap steps, ordered cleanup operations, a
// conservative compute-cost estimate, and the de-duplicated set of every
// account any step touches.
type SwapPlan struct {
	Setup   []SwapStep
	Swaps   []SwapStep
	Cleanup []SwapStep

	CUEstimate uint32
	Accounts   mapset.Set[solana.PublicKey]
}

// Steps returns all operations in execution order.
func (p *SwapPlan) Steps() []SwapStep {
	out := make([]SwapStep, 0, len(p.Setup)+len(p.Swaps)+len(p.Cleanup))
	out = append(out, p.Setup...)
	out = append(out, p.Swaps...)
	out = append(out, p.Cleanup...)
	return out
}

// EdgeSequence returns the ordered edge identifiers of the swap steps,
// reproducing the route the plan was assembled from.
func (p *SwapPlan) EdgeSequence() []EdgeID {
	seq := make([]EdgeID, 0, len(p.Swaps))
	for _, s := range p.Swaps {
		seq = append(seq, s.Edge)
	}
	return seq
}
