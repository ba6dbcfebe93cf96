package venues

import (
	"github.com/gagliardetto/solana-go"

	"github.com/blockworks-foundation/autobahn-sub002/internal/chaindata"
	"github.com/blockworks-foundation/autobahn-sub002/internal/domain"
)

var (
	cpmmProgramID = solana.MustPublicKeyFromBase58("CPMMoo8L3F4NbTegBCKVNunggL7H1ZpdTHKxQB5qKP1C")

	cpmmPoolDiscriminator = []byte{247, 237, 227, 245, 215, 195, 222, 70}
)

type cpmmPoolState struct {
	TokenMintA  solana.PublicKey
	TokenMintB  solana.PublicKey
	TokenVaultA solana.PublicKey
	TokenVaultB solana.PublicKey
	FeeBps      uint16
	Status      uint8
}

// CPMMAdapter decodes constant-product pools. Reserves live in two SPL token
// vaults, so a pool update and a vault balance update both re-derive the
// pool's edge pair.
type CPMMAdapter struct {
	store *chaindata.Store
}

func NewCPMMAdapter(store *chaindata.Store) *CPMMAdapter {
	return &CPMMAdapter{store: store}
}

func (a *CPMMAdapter) Name() string               { return "cpmm" }
func (a *CPMMAdapter) Kind() domain.VenueKind     { return domain.VenueCPMM }
func (a *CPMMAdapter) ProgramID() solana.PublicKey { return cpmmProgramID }
func (a *CPMMAdapter) Discover() []domain.EdgeID   { return discoverOwned(a.store, a) }

func (a *CPMMAdapter) Decode(address solana.PublicKey, acc chaindata.Account) ([]domain.Edge, error) {
	var state cpmmPoolState
	if err := decodeAnchor(acc.Data, cpmmPoolDiscriminator, &state); err != nil {
		return nil, err
	}
	if state.FeeBps >= bpsDenom {
		return nil, domain.ErrMalformedAccount
	}

	reserveA, slotA, okA := a.vaultOK(state.TokenVaultA)
	reserveB, slotB, okB := a.vaultOK(state.TokenVaultB)
	tradable := state.Status == 0 && okA && okB && reserveA > 0 && reserveB > 0
	slot := maxSlot(acc.Slot, slotA, slotB)

	ab := &cpmmEdge{
		id: domain.EdgeID{
			Pool:           address,
			InputMint:      state.TokenMintA,
			OutputMint:     state.TokenMintB,
			Venue:          domain.VenueCPMM,
			AccountsNeeded: 3,
		},
		vaultIn:    state.TokenVaultA,
		vaultOut:   state.TokenVaultB,
		reserveIn:  reserveA,
		reserveOut: reserveB,
		feeBps:     state.FeeBps,
		tradable:   tradable,
		slot:       slot,
	}
	ba := &cpmmEdge{
		id:         ab.id.Reverse(),
		vaultIn:    state.TokenVaultB,
		vaultOut:   state.TokenVaultA,
		reserveIn:  reserveB,
		reserveOut: reserveA,
		feeBps:     state.FeeBps,
		tradable:   tradable,
		slot:       slot,
	}
	return []domain.Edge{ab, ba}, nil
}

func (a *CPMMAdapter) vaultOK(key solana.PublicKey) (uint64, uint64, bool) {
	return vaultBalance(a.store, key)
}

// cpmmEdge is one direction over a constant-product pool. Fee in bps is
// taken from the input side before the curve is applied.
type cpmmEdge struct {
	id                   domain.EdgeID
	vaultIn, vaultOut    solana.PublicKey
	reserveIn, reserveOut uint64
	feeBps               uint16
	tradable             bool
	slot                 uint64
}

func (e *cpmmEdge) ID() domain.EdgeID { return e.id }
func (e *cpmmEdge) Slot() uint64      { return e.slot }

func (e *cpmmEdge) RequiredAccounts() []solana.PublicKey {
	return []solana.PublicKey{e.id.Pool, e.vaultIn, e.vaultOut}
}

func (e *cpmmEdge) Simulate(amount uint64, mode domain.SwapMode) (domain.Quote, error) {
	if !e.tradable || e.reserveIn == 0 || e.reserveOut == 0 {
		return domain.Quote{}, domain.ErrInvalidState
	}
	if amount == 0 {
		return domain.Quote{FeeMint: e.id.InputMint}, nil
	}

	switch mode {
	case domain.SwapModeExactIn:
		fee, net := feeFromInput(amount, e.feeBps)
		out, err := mulDivU64(e.reserveOut, net, e.reserveIn+net)
		if err != nil {
			return domain.Quote{}, err
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
		net, err := mulDivCeilU64(e.reserveIn, amount, e.reserveOut-amount)
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
