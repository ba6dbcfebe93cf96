package venues

import (
	"encoding/binary"

	"github.com/holiman/uint256"

	"github.com/blockworks-foundation/autobahn-sub002/internal/domain"
)

const bpsDenom = 10_000

var (
	u256Q64      = new(uint256.Int).Lsh(uint256.NewInt(1), 64)
	u256BpsDenom = uint256.NewInt(bpsDenom)
)

// mulDivU64 computes a*b/c with a 256-bit intermediate. Returns
// ErrAmountOverflow when the result does not fit uint64.
func mulDivU64(a, b, c uint64) (uint64, error) {
	if c == 0 {
		return 0, domain.ErrInvalidState
	}
	var x, y uint256.Int
	x.SetUint64(a)
	y.SetUint64(b)
	x.Mul(&x, &y)
	y.SetUint64(c)
	x.Div(&x, &y)
	if !x.IsUint64() {
		return 0, domain.ErrAmountOverflow
	}
	return x.Uint64(), nil
}

// mulDivCeilU64 is mulDivU64 rounding up, used on the input side of
// exact-out quoting so the user never underpays.
func mulDivCeilU64(a, b, c uint64) (uint64, error) {
	if c == 0 {
		return 0, domain.ErrInvalidState
	}
	var x, y, rem uint256.Int
	x.SetUint64(a)
	y.SetUint64(b)
	x.Mul(&x, &y)
	y.SetUint64(c)
	x.DivMod(&x, &y, &rem)
	if !rem.IsZero() {
		x.AddUint64(&x, 1)
	}
	if !x.IsUint64() {
		return 0, domain.ErrAmountOverflow
	}
	return x.Uint64(), nil
}

// feeFromInput returns the fee charged on amountIn and the net input.
// Split form of amountIn*feeBps/bpsDenom that cannot overflow uint64.
func feeFromInput(amountIn uint64, feeBps uint16) (fee, net uint64) {
	f := uint64(feeBps)
	fee = (amountIn/bpsDenom)*f + (amountIn%bpsDenom)*f/bpsDenom
	return fee, amountIn - fee
}

// grossFromNet inverts feeFromInput, rounding up.
func grossFromNet(net uint64, feeBps uint16) (uint64, error) {
	return mulDivCeilU64(net, bpsDenom, bpsDenom-uint64(feeBps))
}

// Token account layout offsets (SPL token program).
const (
	tokenAccountLen          = 165
	tokenAccountAmountOffset = 64
)

// tokenAccountAmount extracts the balance from a raw SPL token account.
func tokenAccountAmount(data []byte) (uint64, error) {
	if len(data) < tokenAccountLen {
		return 0, domain.ErrMalformedAccount
	}
	return binary.LittleEndian.Uint64(data[tokenAccountAmountOffset : tokenAccountAmountOffset+8]), nil
}
