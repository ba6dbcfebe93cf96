package venues

import (
	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"

	"github.com/blockworks-foundation/autobahn-sub002/internal/chaindata"
	"github.com/blockworks-foundation/autobahn-sub002/internal/domain"
)

var (
	stableProgramID = solana.MustPublicKeyFromBase58("SSwpkEEcbUqx4vtoEByFjSkhKdCT862DNVb52nZg1UZ")

	stablePoolDiscriminator = []byte{26, 108, 12, 101, 99, 214, 28, 79}
)

type stablePoolState struct {
	TokenMintA  solana.PublicKey
	TokenMintB  solana.PublicKey
	TokenVaultA solana.PublicKey
	TokenVaultB solana.PublicKey
	Amp         uint64
	FeeBps      uint16
	Paused      uint8
}

// StableAdapter decodes two-coin stable-swap pools. Same vault layout as
// CPMM, different invariant.
type StableAdapter struct {
	store *chaindata.Store
}

func NewStableAdapter(store *chaindata.Store) *StableAdapter {
	return &StableAdapter{store: store}
}

func (a *StableAdapter) Name() string                { return "stable" }
func (a *StableAdapter) Kind() domain.VenueKind      { return domain.VenueStable }
func (a *StableAdapter) ProgramID() solana.PublicKey { return stableProgramID }
func (a *StableAdapter) Discover() []domain.EdgeID   { return discoverOwned(a.store, a) }

func (a *StableAdapter) Decode(address solana.PublicKey, acc chaindata.Account) ([]domain.Edge, error) {
	var state stablePoolState
	if err := decodeAnchor(acc.Data, stablePoolDiscriminator, &state); err != nil {
		return nil, err
	}
	if state.Amp == 0 || state.FeeBps >= bpsDenom {
		return nil, domain.ErrMalformedAccount
	}

	reserveA, slotA, okA := vaultBalance(a.store, state.TokenVaultA)
	reserveB, slotB, okB := vaultBalance(a.store, state.TokenVaultB)
	tradable := state.Paused == 0 && okA && okB && reserveA > 0 && reserveB > 0
	slot := maxSlot(acc.Slot, slotA, slotB)

	ab := &stableEdge{
		id: domain.EdgeID{
			Pool:           address,
			InputMint:      state.TokenMintA,
			OutputMint:     state.TokenMintB,
			Venue:          domain.VenueStable,
			AccountsNeeded: 3,
		},
		vaultIn:    state.TokenVaultA,
		vaultOut:   state.TokenVaultB,
		reserveIn:  reserveA,
		reserveOut: reserveB,
		amp:        state.Amp,
		feeBps:     state.FeeBps,
		tradable:   tradable,
		slot:       slot,
	}
	ba := &stableEdge{
		id:         ab.id.Reverse(),
		vaultIn:    state.TokenVaultB,
		vaultOut:   state.TokenVaultA,
		reserveIn:  reserveB,
		reserveOut: reserveA,
		amp:        state.Amp,
		feeBps:     state.FeeBps,
		tradable:   tradable,
		slot:       slot,
	}
	return []domain.Edge{ab, ba}, nil
}

type stableEdge struct {
	id                    domain.EdgeID
	vaultIn, vaultOut     solana.PublicKey
	reserveIn, reserveOut uint64
	amp                   uint64
	feeBps                uint16
	tradable              bool
	slot                  uint64
}

func (e *stableEdge) ID() domain.EdgeID { return e.id }
func (e *stableEdge) Slot() uint64      { return e.slot }

func (e *stableEdge) RequiredAccounts() []solana.PublicKey {
	return []solana.PublicKey{e.id.Pool, e.vaultIn, e.vaultOut}
}

func (e *stableEdge) Simulate(amount uint64, mode domain.SwapMode) (domain.Quote, error) {
	if !e.tradable || e.reserveIn == 0 || e.reserveOut == 0 {
		return domain.Quote{}, domain.ErrInvalidState
	}
	if amount == 0 {
		return domain.Quote{FeeMint: e.id.InputMint}, nil
	}

	d := stableD(e.reserveIn, e.reserveOut, e.amp)
	if d.IsZero() {
		return domain.Quote{}, domain.ErrInvalidState
	}

	switch mode {
	case domain.SwapModeExactIn:
		fee, net := feeFromInput(amount, e.feeBps)
		newIn := new(uint256.Int).AddUint64(uint256.NewInt(e.reserveIn), net)
		newOut := stableY(newIn, d, e.amp)
		if !newOut.IsUint64() || newOut.Uint64() >= e.reserveOut {
			return domain.Quote{}, domain.ErrInsufficientLiquidity
		}
		// One unit of rounding slack so the pool never pays out more
		// than the invariant allows.
		out := e.reserveOut - newOut.Uint64()
		if out > 0 {
			out--
		}
		if out == 0 {
			// Dust input rounds to nothing; an explicit failure beats
			// a zero-output quote the caller might treat as a price.
			return domain.Quote{}, domain.ErrInsufficientLiquidity
		}
		return domain.Quote{
			InAmount:  amount,
			OutAmount: out,
			FeeAmount: fee,
			FeeMint:   e.id.InputMint,
		}, nil

	case domain.SwapModeExactOut:
		if amount >= e.reserveOut {
			return domain.Quote{}, domain.ErrInsufficientLiquidity
		}
		newOut := uint256.NewInt(e.reserveOut - amount)
		newIn := stableY(newOut, d, e.amp)
		if !newIn.IsUint64() {
			return domain.Quote{}, domain.ErrAmountOverflow
		}
		if newIn.Uint64() < e.reserveIn {
			return domain.Quote{}, domain.ErrInvalidState
		}
		net := newIn.Uint64() - e.reserveIn + 1
		gross, err := grossFromNet(net, e.feeBps)
		if err != nil {
			return domain.Quote{}, err
		}
		return domain.Quote{
			InAmount:  gross,
			OutAmount: amount,
			FeeAmount: gross - net,
			FeeMint:   e.id.InputMint,
		}, nil

	default:
		return domain.Quote{}, domain.ErrUnsupportedSwapMode
	}
}

const stableIterations = 64

// stableD solves the two-coin invariant for D by Newton iteration.
func stableD(x, y, amp uint64) *uint256.Int {
	if x == 0 || y == 0 {
		return uint256.NewInt(0)
	}
	var (
		xU  = uint256.NewInt(x)
		yU  = uint256.NewInt(y)
		s   = new(uint256.Int).Add(xU, yU)
		ann = uint256.NewInt(amp * 4)
		d   = new(uint256.Int).Set(s)
		tmp = new(uint256.Int)
	)
	for i := 0; i < stableIterations; i++ {
		// dP = D^3 / (4*x*y)
		dP := new(uint256.Int).Mul(d, d)
		dP.Div(dP, tmp.Lsh(xU, 1))
		dP.Mul(dP, d)
		dP.Div(dP, tmp.Lsh(yU, 1))

		prev := new(uint256.Int).Set(d)

		// D = (Ann*S + 2*dP) * D / ((Ann-1)*D + 3*dP)
		num := new(uint256.Int).Mul(ann, s)
		num.Add(num, tmp.Lsh(dP, 1))
		num.Mul(num, d)

		den := new(uint256.Int).Sub(ann, uint256.NewInt(1))
		den.Mul(den, d)
		den.Add(den, tmp.Mul(dP, uint256.NewInt(3)))

		d.Div(num, den)

		if within1(d, prev) {
			break
		}
	}
	return d
}

// stableY solves for the other balance given one balance and D.
func stableY(x, d *uint256.Int, amp uint64) *uint256.Int {
	var (
		ann = uint256.NewInt(amp * 4)
		tmp = new(uint256.Int)
	)
	// c = D^3 / (4*x*Ann)
	c := new(uint256.Int).Mul(d, d)
	c.Div(c, tmp.Lsh(x, 1))
	c.Mul(c, d)
	c.Div(c, tmp.Lsh(ann, 1))

	// b = x + D/Ann
	b := new(uint256.Int).Div(d, ann)
	b.Add(b, x)

	y := new(uint256.Int).Set(d)
	for i := 0; i < stableIterations; i++ {
		prev := new(uint256.Int).Set(y)

		// y = (y^2 + c) / (2y + b - D)
		num := new(uint256.Int).Mul(y, y)
		num.Add(num, c)

		den := new(uint256.Int).Lsh(y, 1)
		den.Add(den, b)
		den.Sub(den, d)

		if den.IsZero() {
			return uint256.NewInt(0)
		}
		y.Div(num, den)

		if within1(y, prev) {
			break
		}
	}
	return y
}

func within1(a, b *uint256.Int) bool {
	diff := new(uint256.Int)
	if a.Cmp(b) >= 0 {
		diff.Sub(a, b)
	} else {
		diff.Sub(b, a)
	}
	return diff.CmpUint64(1) <= 0
}
