package venues

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/blockworks-foundation/autobahn-sub002/internal/chaindata"
	"github.com/blockworks-foundation/autobahn-sub002/internal/domain"
)

// decodeAnchor validates the 8-byte discriminator and borsh-decodes the rest
// of the buffer into dst.
func decodeAnchor(data []byte, discriminator []byte, dst interface{}) error {
	if len(data) < 8 {
		return fmt.Errorf("%w: buffer too short (%d bytes)", domain.ErrMalformedAccount, len(data))
	}
	if !bytes.Equal(data[:8], discriminator) {
		return fmt.Errorf("%w: discriminator mismatch", domain.ErrMalformedAccount)
	}
	if err := bin.NewBorshDecoder(data[8:]).Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedAccount, err)
	}
	return nil
}

// vaultBalance reads an SPL token vault's balance from the chain-data store.
// A missing or malformed vault yields ok=false; the pool still decodes, its
// edges just report ErrInvalidState until the vault arrives.
func vaultBalance(store *chaindata.Store, key solana.PublicKey) (amount uint64, slot uint64, ok bool) {
	acc, found := store.Get(key)
	if !found {
		return 0, 0, false
	}
	amount, err := tokenAccountAmount(acc.Data)
	if err != nil {
		return 0, 0, false
	}
	return amount, acc.Slot, true
}

func maxSlot(slots ...uint64) uint64 {
	var m uint64
	for _, s := range slots {
		if s > m {
			m = s
		}
	}
	return m
}
