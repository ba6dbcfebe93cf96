package venues

import (
	"bytes"
	"math"
	"math/big"
	"sort"
	"sync"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"

	"github.com/blockworks-foundation/autobahn-sub002/internal/chaindata"
	"github.com/blockworks-foundation/autobahn-sub002/internal/domain"
)

var (
	clmmProgramID = solana.MustPublicKeyFromBase58("whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc")

	clmmPoolDiscriminator      = []byte{63, 149, 209, 12, 225, 128, 99, 9}
	clmmTickArrayDiscriminator = []byte{69, 97, 189, 190, 110, 7, 66, 187}
)

const clmmTicksPerArray = 88

type clmmPoolState struct {
	TokenMintA   solana.PublicKey
	TokenMintB   solana.PublicKey
	TickSpacing  uint16
	FeeBps       uint16
	Liquidity    bin.Uint128
	SqrtPriceX64 bin.Uint128
	TickCurrent  int32
	Status       uint8
}

type clmmTickArrayState struct {
	Pool           solana.PublicKey
	StartTickIndex int32
	Ticks          [clmmTicksPerArray]clmmTickState
}

type clmmTickState struct {
	Initialized  uint8
	LiquidityNet bin.Int128
}

// CLMMAdapter decodes concentrated-liquidity pools. Tick arrays are separate
// accounts owned by the same program; the adapter accumulates them per pool
// and rebuilds the pool's edges whenever either side changes.
type CLMMAdapter struct {
	store *chaindata.Store

	mu         sync.Mutex
	pools      map[solana.PublicKey]clmmPoolState
	poolSlots  map[solana.PublicKey]uint64
	tickArrays map[solana.PublicKey]map[solana.PublicKey]clmmTickArrayState
}

func NewCLMMAdapter(store *chaindata.Store) *CLMMAdapter {
	return &CLMMAdapter{
		store:      store,
		pools:      make(map[solana.PublicKey]clmmPoolState, 256),
		poolSlots:  make(map[solana.PublicKey]uint64, 256),
		tickArrays: make(map[solana.PublicKey]map[solana.PublicKey]clmmTickArrayState, 256),
	}
}

func (a *CLMMAdapter) Name() string                { return "clmm" }
func (a *CLMMAdapter) Kind() domain.VenueKind      { return domain.VenueCLMM }
func (a *CLMMAdapter) ProgramID() solana.PublicKey { return clmmProgramID }
func (a *CLMMAdapter) Discover() []domain.EdgeID   { return discoverOwned(a.store, a) }

func (a *CLMMAdapter) Decode(address solana.PublicKey, acc chaindata.Account) ([]domain.Edge, error) {
	if len(acc.Data) < 8 {
		return nil, domain.ErrMalformedAccount
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	switch {
	case bytes.Equal(acc.Data[:8], clmmPoolDiscriminator):
		var state clmmPoolState
		if err := decodeAnchor(acc.Data, clmmPoolDiscriminator, &state); err != nil {
			return nil, err
		}
		if state.FeeBps >= bpsDenom || state.TickSpacing == 0 {
			return nil, domain.ErrMalformedAccount
		}
		a.pools[address] = state
		a.poolSlots[address] = acc.Slot
		return a.buildEdges(address), nil

	case bytes.Equal(acc.Data[:8], clmmTickArrayDiscriminator):
		var state clmmTickArrayState
		if err := decodeAnchor(acc.Data, clmmTickArrayDiscriminator, &state); err != nil {
			return nil, err
		}
		arrays, ok := a.tickArrays[state.Pool]
		if !ok {
			arrays = make(map[solana.PublicKey]clmmTickArrayState, 4)
			a.tickArrays[state.Pool] = arrays
		}
		arrays[address] = state
		if slot, ok := a.poolSlots[state.Pool]; !ok || acc.Slot > slot {
			a.poolSlots[state.Pool] = acc.Slot
		}
		if _, ok := a.pools[state.Pool]; !ok {
			// Tick array arrived before its pool; the pool update
			// rebuilds with it.
			return nil, nil
		}
		return a.buildEdges(state.Pool), nil

	default:
		return nil, domain.ErrMalformedAccount
	}
}

// buildEdges assembles both directed edges from the cached pool state and
// every tick array seen so far. Caller holds the mutex.
func (a *CLMMAdapter) buildEdges(pool solana.PublicKey) []domain.Edge {
	state := a.pools[pool]
	slot := a.poolSlots[pool]

	var ticks []clmmTick
	var arrayKeys []solana.PublicKey
	for key, arr := range a.tickArrays[pool] {
		arrayKeys = append(arrayKeys, key)
		for i, t := range arr.Ticks {
			if t.Initialized == 0 {
				continue
			}
			idx := arr.StartTickIndex + int32(i)*int32(state.TickSpacing)
			ticks = append(ticks, clmmTick{
				index:        idx,
				sqrtPriceX64: sqrtPriceX64FromTick(idx),
				liquidityNet: int128ToSigned(t.LiquidityNet),
			})
		}
	}
	sort.Slice(ticks, func(i, j int) bool { return ticks[i].index < ticks[j].index })
	sort.Slice(arrayKeys, func(i, j int) bool {
		return arrayKeys[i].String() < arrayKeys[j].String()
	})

	liquidity, _ := uint256.FromBig(state.Liquidity.BigInt())
	sqrtPrice, _ := uint256.FromBig(state.SqrtPriceX64.BigInt())
	tradable := state.Status == 0 && !liquidity.IsZero() && !sqrtPrice.IsZero()

	accounts := make([]solana.PublicKey, 0, 1+len(arrayKeys))
	accounts = append(accounts, pool)
	accounts = append(accounts, arrayKeys...)

	ab := &clmmEdge{
		id: domain.EdgeID{
			Pool:           pool,
			InputMint:      state.TokenMintA,
			OutputMint:     state.TokenMintB,
			Venue:          domain.VenueCLMM,
			AccountsNeeded: uint8(minInt(len(accounts), 255)),
		},
		aToB:         true,
		sqrtPriceX64: sqrtPrice,
		liquidity:    liquidity,
		tickCurrent:  state.TickCurrent,
		feeBps:       state.FeeBps,
		ticks:        ticks,
		accounts:     accounts,
		tradable:     tradable,
		slot:         slot,
	}
	ba := &clmmEdge{
		id:           ab.id.Reverse(),
		aToB:         false,
		sqrtPriceX64: sqrtPrice,
		liquidity:    liquidity,
		tickCurrent:  state.TickCurrent,
		feeBps:       state.FeeBps,
		ticks:        ticks,
		accounts:     accounts,
		tradable:     tradable,
		slot:         slot,
	}
	return []domain.Edge{ab, ba}
}

type clmmTick struct {
	index        int32
	sqrtPriceX64 *uint256.Int
	liquidityNet signedU256
}

type signedU256 struct {
	neg bool
	mag uint256.Int
}

func int128ToSigned(v bin.Int128) signedU256 {
	b := v.BigInt()
	var s signedU256
	if b.Sign() < 0 {
		s.neg = true
		b = new(big.Int).Neg(b)
	}
	u, _ := uint256.FromBig(b)
	if u != nil {
		s.mag.Set(u)
	}
	return s
}

// sqrtPriceX64FromTick computes sqrt(1.0001^tick) in Q64.64. Done once at
// decode time, so float precision is acceptable; the swap loop itself stays
// in integer math.
func sqrtPriceX64FromTick(tick int32) *uint256.Int {
	p := math.Sqrt(math.Pow(1.0001, float64(tick)))
	f := new(big.Float).SetFloat64(p)
	f.Mul(f, new(big.Float).SetInt(new(big.Int).Lsh(big.NewInt(1), 64)))
	i, _ := f.Int(nil)
	u, overflow := uint256.FromBig(i)
	if overflow || u == nil {
		return new(uint256.Int).Set(u256Q64)
	}
	return u
}

// clmmEdge is one direction over a concentrated-liquidity pool. The swap
// walks initialized ticks within a single Simulate call and reports how many
// it crossed.
type clmmEdge struct {
	id           domain.EdgeID
	aToB         bool
	sqrtPriceX64 *uint256.Int
	liquidity    *uint256.Int
	tickCurrent  int32
	feeBps       uint16
	ticks        []clmmTick
	accounts     []solana.PublicKey
	tradable     bool
	slot         uint64
}

func (e *clmmEdge) ID() domain.EdgeID                      { return e.id }
func (e *clmmEdge) Slot() uint64                           { return e.slot }
func (e *clmmEdge) RequiredAccounts() []solana.PublicKey   { return e.accounts }

const clmmMaxTickCrossings = 32

func (e *clmmEdge) Simulate(amount uint64, mode domain.SwapMode) (domain.Quote, error) {
	if !e.tradable {
		return domain.Quote{}, domain.ErrInvalidState
	}
	if amount == 0 {
		return domain.Quote{FeeMint: e.id.InputMint}, nil
	}

	switch mode {
	case domain.SwapModeExactIn:
		fee, net := feeFromInput(amount, e.feeBps)
		out, crossed, err := e.swap(net, true)
		if err != nil {
			return domain.Quote{}, err
		}
		return domain.Quote{
			InAmount:     amount,
			OutAmount:    out,
			FeeAmount:    fee,
			FeeMint:      e.id.InputMint,
			TicksCrossed: crossed,
		}, nil

	case domain.SwapModeExactOut:
		net, crossed, err := e.swap(amount, false)
		if err != nil {
			return domain.Quote{}, err
		}
		gross, err := grossFromNet(net, e.feeBps)
		if err != nil {
			return domain.Quote{}, err
		}
		return domain.Quote{
			InAmount:     gross,
			OutAmount:    amount,
			FeeAmount:    gross - net,
			FeeMint:      e.id.InputMint,
			TicksCrossed: crossed,
		}, nil

	default:
		return domain.Quote{}, domain.ErrUnsupportedSwapMode
	}
}

// swap walks the tick list. exactIn fixes the input side and accumulates
// output; otherwise the output side is fixed and required input accumulates.
func (e *clmmEdge) swap(amount uint64, exactIn bool) (uint64, int, error) {
	var (
		sqrtP     = new(uint256.Int).Set(e.sqrtPriceX64)
		liquidity = new(uint256.Int).Set(e.liquidity)
		remaining = uint256.NewInt(amount)
		acquired  = new(uint256.Int)
		crossed   = 0
	)

	tickPos := e.startTickPos()

	for !remaining.IsZero() {
		if crossed > clmmMaxTickCrossings {
			return 0, crossed, domain.ErrInsufficientLiquidity
		}
		if liquidity.IsZero() {
			return 0, crossed, domain.ErrInsufficientLiquidity
		}

		target, targetPos, hasTarget := e.nextTick(tickPos)
		if !hasTarget {
			// Last liquidity range; the step either finishes in
			// range or the pool is exhausted.
			done, err := e.stepWithinRange(sqrtP, liquidity, remaining, acquired, exactIn)
			if err != nil {
				return 0, crossed, err
			}
			if !done {
				return 0, crossed, domain.ErrInsufficientLiquidity
			}
			break
		}

		// Full-range amounts to the tick boundary.
		stepConsume, stepAcquire := e.rangeAmounts(sqrtP, target.sqrtPriceX64, liquidity, exactIn)

		if remaining.Cmp(stepConsume) >= 0 {
			// Cross the boundary.
			remaining.Sub(remaining, stepConsume)
			acquired.Add(acquired, stepAcquire)
			sqrtP.Set(target.sqrtPriceX64)
			applyLiquidityNet(liquidity, target.liquidityNet, e.aToB)
			tickPos = targetPos
			crossed++
			continue
		}

		done, err := e.stepWithinRange(sqrtP, liquidity, remaining, acquired, exactIn)
		if err != nil {
			return 0, crossed, err
		}
		if !done {
			return 0, crossed, domain.ErrInsufficientLiquidity
		}
		break
	}

	if !acquired.IsUint64() {
		return 0, crossed, domain.ErrAmountOverflow
	}
	return acquired.Uint64(), crossed, nil
}

// startTickPos finds the tick list position adjacent to the current price in
// the swap direction.
func (e *clmmEdge) startTickPos() int {
	// First tick with index > tickCurrent.
	pos := sort.Search(len(e.ticks), func(i int) bool {
		return e.ticks[i].index > e.tickCurrent
	})
	if e.aToB {
		// Walking down: position of the nearest tick at or below.
		return pos - 1
	}
	return pos
}

func (e *clmmEdge) nextTick(pos int) (clmmTick, int, bool) {
	if e.aToB {
		if pos < 0 {
			return clmmTick{}, 0, false
		}
		return e.ticks[pos], pos - 1, true
	}
	if pos >= len(e.ticks) {
		return clmmTick{}, 0, false
	}
	return e.ticks[pos], pos + 1, true
}

// rangeAmounts returns how much of the consumed side the full range takes and
// how much of the acquired side it yields, between the current price and the
// tick boundary.
func (e *clmmEdge) rangeAmounts(sqrtP, sqrtTarget, liquidity *uint256.Int, exactIn bool) (consume, acquire *uint256.Int) {
	var lower, upper *uint256.Int
	if e.aToB {
		lower, upper = sqrtTarget, sqrtP
	} else {
		lower, upper = sqrtP, sqrtTarget
	}
	amountA := clmmAmountA(lower, upper, liquidity)
	amountB := clmmAmountB(lower, upper, liquidity)

	// aToB consumes A and acquires B; bToA the opposite. Exact-out swaps
	// budget the acquired side instead.
	inSide, outSide := amountA, amountB
	if !e.aToB {
		inSide, outSide = amountB, amountA
	}
	if exactIn {
		return inSide, outSide
	}
	return outSide, inSide
}

// stepWithinRange finishes the swap inside the current liquidity range.
// Returns false when the range cannot absorb the remaining amount.
func (e *clmmEdge) stepWithinRange(sqrtP, liquidity, remaining, acquired *uint256.Int, exactIn bool) (bool, error) {
	var sqrtNew *uint256.Int
	switch {
	case exactIn && e.aToB:
		sqrtNew = clmmNextSqrtPriceFromAmountA(sqrtP, liquidity, remaining, true)
	case exactIn && !e.aToB:
		sqrtNew = clmmNextSqrtPriceFromAmountB(sqrtP, liquidity, remaining, true)
	case !exactIn && e.aToB:
		// Fixed output is token B, price moves down.
		sqrtNew = clmmNextSqrtPriceFromAmountB(sqrtP, liquidity, remaining, false)
	default:
		// Fixed output is token A, price moves up.
		sqrtNew = clmmNextSqrtPriceFromAmountA(sqrtP, liquidity, remaining, false)
	}
	if sqrtNew == nil || sqrtNew.IsZero() {
		return false, nil
	}

	var lower, upper *uint256.Int
	priceDown := e.aToB
	if priceDown {
		lower, upper = sqrtNew, sqrtP
	} else {
		lower, upper = sqrtP, sqrtNew
	}

	var gained *uint256.Int
	if exactIn {
		if e.aToB {
			gained = clmmAmountB(lower, upper, liquidity)
		} else {
			gained = clmmAmountA(lower, upper, liquidity)
		}
	} else {
		if e.aToB {
			gained = clmmAmountA(lower, upper, liquidity)
		} else {
			gained = clmmAmountB(lower, upper, liquidity)
		}
	}

	acquired.Add(acquired, gained)
	remaining.Clear()
	sqrtP.Set(sqrtNew)
	return true, nil
}

// applyLiquidityNet adjusts range liquidity when crossing an initialized
// tick. Walking down undoes the tick's contribution; walking up applies it.
func applyLiquidityNet(liquidity *uint256.Int, net signedU256, down bool) {
	add := net.neg
	if !down {
		add = !net.neg
	}
	if add {
		liquidity.Add(liquidity, &net.mag)
	} else {
		if liquidity.Cmp(&net.mag) < 0 {
			liquidity.Clear()
			return
		}
		liquidity.Sub(liquidity, &net.mag)
	}
}

// clmmAmountA = L * (upper - lower) * 2^64 / (upper * lower), the token A
// amount between two sqrt prices.
func clmmAmountA(lower, upper, liquidity *uint256.Int) *uint256.Int {
	if lower.IsZero() || upper.IsZero() || upper.Cmp(lower) <= 0 {
		return new(uint256.Int)
	}
	diff := new(uint256.Int).Sub(upper, lower)
	t := new(uint256.Int).Mul(liquidity, diff)
	t.Div(t, upper)
	t.Lsh(t, 64)
	t.Div(t, lower)
	return t
}

// clmmAmountB = L * (upper - lower) / 2^64, the token B amount between two
// sqrt prices.
func clmmAmountB(lower, upper, liquidity *uint256.Int) *uint256.Int {
	if upper.Cmp(lower) <= 0 {
		return new(uint256.Int)
	}
	diff := new(uint256.Int).Sub(upper, lower)
	t := new(uint256.Int).Mul(liquidity, diff)
	t.Rsh(t, 64)
	return t
}

// clmmNextSqrtPriceFromAmountA solves the new sqrt price after amount of
// token A enters (add=true, price down) or leaves (add=false, price up).
func clmmNextSqrtPriceFromAmountA(sqrtP, liquidity, amount *uint256.Int, add bool) *uint256.Int {
	num := new(uint256.Int).Mul(liquidity, sqrtP)
	shifted := new(uint256.Int).Mul(amount, sqrtP)
	shifted.Rsh(shifted, 64)

	den := new(uint256.Int)
	if add {
		den.Add(liquidity, shifted)
	} else {
		if liquidity.Cmp(shifted) <= 0 {
			return nil
		}
		den.Sub(liquidity, shifted)
	}
	if den.IsZero() {
		return nil
	}
	return num.Div(num, den)
}

// clmmNextSqrtPriceFromAmountB solves the new sqrt price after amount of
// token B enters (add=true, price up) or leaves (add=false, price down).
func clmmNextSqrtPriceFromAmountB(sqrtP, liquidity, amount *uint256.Int, add bool) *uint256.Int {
	delta := new(uint256.Int).Lsh(amount, 64)
	delta.Div(delta, liquidity)
	out := new(uint256.Int)
	if add {
		return out.Add(sqrtP, delta)
	}
	if sqrtP.Cmp(delta) <= 0 {
		return nil
	}
	return out.Sub(sqrtP, delta)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
