package domain

import (
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// SwapMode determines how the requested amount is interpreted.
type SwapMode uint8

const (
	SwapModeExactIn SwapMode = iota
	SwapModeExactOut
)

func (m SwapMode) String() string {
	switch m {
	case SwapModeExactIn:
		return "ExactIn"
	case SwapModeExactOut:
		return "ExactOut"
	default:
		return "UNKNOWN"
	}
}

func ParseSwapMode(s string) (SwapMode, error) {
	switch s {
	case "ExactIn":
		return SwapModeExactIn, nil
	case "ExactOut":
		return SwapModeExactOut, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedSwapMode, s)
	}
}

// VenueKind identifies a pool design family.
type VenueKind uint8

const (
	VenueCPMM VenueKind = iota
	VenueStable
	VenueCLMM
	VenueVirtual
)

func (v VenueKind) String() string {
	switch v {
	case VenueCPMM:
		return "Cpmm"
	case VenueStable:
		return "Stable"
	case VenueCLMM:
		return "Clmm"
	case VenueVirtual:
		return "Virtual"
	default:
		return "UNKNOWN"
	}
}

// ParseVenueKind resolves a venue name, case-insensitively.
func ParseVenueKind(s string) (VenueKind, bool) {
	switch strings.ToLower(s) {
	case "cpmm":
		return VenueCPMM, true
	case "stable":
		return VenueStable, true
	case "clmm":
		return VenueCLMM, true
	case "virtual":
		return VenueVirtual, true
	}
	return 0, false
}

// EdgeID uniquely names a directed tradable pair on one venue instance. The
// same pool with input/output swapped is a distinct edge, because fee and
// curve asymmetries exist. EdgeIDs are immutable, comparable, and serve as
// the graph's edge keys.
type EdgeID struct {
	Pool       solana.PublicKey `json:"pool"`
	InputMint  solana.PublicKey `json:"inputMint"`
	OutputMint solana.PublicKey `json:"outputMint"`
	Venue      VenueKind        `json:"venue"`

	// AccountsNeeded is the number of on-chain accounts required to
	// simulate and execute this edge, not counting the user's token
	// accounts, signer and program accounts. Used for fetch planning and
	// the transaction account ceiling.
	AccountsNeeded uint8 `json:"accountsNeeded"`
}

func (id EdgeID) IsZero() bool {
	return id.Pool.IsZero()
}

// Reverse returns the identifier of the opposite direction over the same
// pool.
func (id EdgeID) Reverse() EdgeID {
	id.InputMint, id.OutputMint = id.OutputMint, id.InputMint
	return id
}

func (id EdgeID) Desc() string {
	return fmt.Sprintf("%s_%s %s->%s",
		id.Venue, shortKey(id.Pool), shortKey(id.InputMint), shortKey(id.OutputMint))
}

func shortKey(pk solana.PublicKey) string {
	s := pk.String()
	if len(s) <= 8 {
		return s
	}
	return s[:4] + ".." + s[len(s)-4:]
}

// Quote is the result of simulating a swap on one edge.
type Quote struct {
	InAmount  uint64
	OutAmount uint64
	FeeAmount uint64
	FeeMint   solana.PublicKey

	// TicksCrossed is per-simulation side data reported by tick-based
	// venues; zero elsewhere.
	TicksCrossed int
}

// Edge is the mutable numeric state backing an EdgeID. Implementations are
// produced wholesale by a venue adapter on every relevant account change;
// they are never field-patched in place.
//
// Simulate must be a pure function of the edge's own state plus the swap
// parameters: deterministic, side-effect free, and safe to call from many
// goroutines without locking. Venues with path-dependent fee accrual (tick
// crossing) model it within a single call. It never clamps silently: it
// returns ErrInsufficientLiquidity or ErrInvalidState instead.
type Edge interface {
	ID() EdgeID
	Simulate(amount uint64, mode SwapMode) (Quote, error)

	// RequiredAccounts is the minimal account set needed to simulate and
	// execute this edge.
	RequiredAccounts() []solana.PublicKey

	// Slot is the highest slot among the backing accounts at decode time.
	Slot() uint64
}
