package venues

import (
	"github.com/gagliardetto/solana-go"

	"github.com/blockworks-foundation/autobahn-sub002/internal/chaindata"
	"github.com/blockworks-foundation/autobahn-sub002/internal/domain"
)

var (
	virtualProgramID = solana.MustPublicKeyFromBase58("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")

	virtualCurveDiscriminator = []byte{23, 183, 248, 55, 96, 216, 172, 96}
)

type virtualCurveState struct {
	BaseMint            solana.PublicKey
	QuoteMint           solana.PublicKey
	VirtualBaseReserve  uint64
	VirtualQuoteReserve uint64
	RealBaseReserve     uint64
	RealQuoteReserve    uint64
	FeeBps              uint16
	Complete            uint8
}

// VirtualAdapter decodes bonding-curve launch pools. The curve account is
// self-contained: virtual reserves set the price, real reserves bound what
// can actually be paid out. A completed curve has migrated to a regular pool
// and stops trading here.
type VirtualAdapter struct {
	store *chaindata.Store
}

func NewVirtualAdapter(store *chaindata.Store) *VirtualAdapter {
	return &VirtualAdapter{store: store}
}

func (a *VirtualAdapter) Name() string                { return "virtual" }
func (a *VirtualAdapter) Kind() domain.VenueKind      { return domain.VenueVirtual }
func (a *VirtualAdapter) ProgramID() solana.PublicKey { return virtualProgramID }
func (a *VirtualAdapter) Discover() []domain.EdgeID   { return discoverOwned(a.store, a) }

func (a *VirtualAdapter) Decode(address solana.PublicKey, acc chaindata.Account) ([]domain.Edge, error) {
	var state virtualCurveState
	if err := decodeAnchor(acc.Data, virtualCurveDiscriminator, &state); err != nil {
		return nil, err
	}
	if state.FeeBps >= bpsDenom {
		return nil, domain.ErrMalformedAccount
	}

	tradable := state.Complete == 0 &&
		state.VirtualBaseReserve > 0 && state.VirtualQuoteReserve > 0

	buy := &virtualEdge{
		id: domain.EdgeID{
			Pool:           address,
			InputMint:      state.QuoteMint,
			OutputMint:     state.BaseMint,
			Venue:          domain.VenueVirtual,
			AccountsNeeded: 1,
		},
		virtualIn:  state.VirtualQuoteReserve,
		virtualOut: state.VirtualBaseReserve,
		realOut:    state.RealBaseReserve,
		feeBps:     state.FeeBps,
		tradable:   tradable,
		slot:       acc.Slot,
	}
	sell := &virtualEdge{
		id:         buy.id.Reverse(),
		virtualIn:  state.VirtualBaseReserve,
		virtualOut: state.VirtualQuoteReserve,
		realOut:    state.RealQuoteReserve,
		feeBps:     state.FeeBps,
		tradable:   tradable,
		slot:       acc.Slot,
	}
	return []domain.Edge{buy, sell}, nil
}

type virtualEdge struct {
	id                    domain.EdgeID
	virtualIn, virtualOut uint64
	realOut               uint64
	feeBps                uint16
	tradable              bool
	slot                  uint64
}

func (e *virtualEdge) ID() domain.EdgeID { return e.id }
func (e *virtualEdge) Slot() uint64      { return e.slot }

func (e *virtualEdge) RequiredAccounts() []solana.PublicKey {
	return []solana.PublicKey{e.id.Pool}
}

func (e *virtualEdge) Simulate(amount uint64, mode domain.SwapMode) (domain.Quote, error) {
	if !e.tradable {
		return domain.Quote{}, domain.ErrInvalidState
	}
	if amount == 0 {
		return domain.Quote{FeeMint: e.id.InputMint}, nil
	}

	switch mode {
	case domain.SwapModeExactIn:
		fee, net := feeFromInput(amount, e.feeBps)
		out, err := mulDivU64(e.virtualOut, net, e.virtualIn+net)
		if err != nil {
			return domain.Quote{}, err
		}
		if out > e.realOut {
			return domain.Quote{}, domain.ErrInsufficientLiquidity
		}
		return domain.Quote{
			InAmount:  amount,
			OutAmount: out,
			FeeAmount: fee,
			FeeMint:   e.id.InputMint,
		}, nil

	case domain.SwapModeExactOut:
		if amount > e.realOut || amount >= e.virtualOut {
			return domain.Quote{}, domain.ErrInsufficientLiquidity
		}
		net, err := mulDivCeilU64(e.virtualIn, amount, e.virtualOut-amount)
		if err != nil {
			return domain.Quote{}, err
		}
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
