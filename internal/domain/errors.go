package domain

import "errors"

// Error taxonomy for the routing core. Decode and per-edge simulation errors
// are local and non-fatal: they degrade search quality, they never crash the
// engine.
var (
	// ErrInsufficientLiquidity means an edge cannot satisfy the requested
	// amount at its current state. The offending path is pruned.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")

	// ErrInvalidState means an edge's decoded state is not tradable
	// (paused pool, zero reserves, missing tick data).
	ErrInvalidState = errors.New("invalid edge state")

	// ErrMalformedAccount means raw account bytes failed validation
	// (wrong owner, wrong discriminator, short buffer). The update is
	// dropped and the edge keeps its prior state.
	ErrMalformedAccount = errors.New("malformed account")

	// ErrNoRouteFound means the search exhausted the hop limit without
	// reaching the destination token.
	ErrNoRouteFound = errors.New("no route found")

	// ErrAmountOverflow means checked arithmetic overflowed while
	// composing amounts across hops. Aborts the offending path only.
	ErrAmountOverflow = errors.New("amount overflow")

	// ErrPlanTooLarge means the assembled route references more distinct
	// accounts than a transaction can carry. Callers should fall back to
	// the next-ranked route.
	ErrPlanTooLarge = errors.New("plan exceeds account limit")

	ErrTokenNotFound = errors.New("token not found")
	ErrEdgeNotFound  = errors.New("edge not found")

	ErrUnsupportedSwapMode = errors.New("unsupported swap mode")
)
