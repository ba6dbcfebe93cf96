// Package persistence snapshots the chain-data store and token cache to a
// local BoltDB file, so a restart warms up from disk instead of waiting for
// a full account snapshot off the wire.
package persistence

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
	"github.com/bytedance/sonic"
	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog/log"

	"github.com/blockworks-foundation/autobahn-sub002/internal/chaindata"
	"github.com/blockworks-foundation/autobahn-sub002/internal/domain"
)

const (
	accountsBucket = "accounts"
	tokensBucket   = "tokens"
)

type storedAccount struct {
	Owner string `json:"owner"`
	Slot  uint64 `json:"slot"`
	Data  []byte `json:"data"`
}

type storedToken struct {
	Decimals uint8 `json:"decimals"`
}

type Storage struct {
	db   *bolt.DB
	path string
}

func Open(path string) (*Storage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open db %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{accountsBucket, tokensBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	log.Info().Str("path", path).Msg("[persistence] opened database")
	return &Storage{db: db, path: path}, nil
}

func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveAccounts writes every tracked account in one transaction and returns
// how many landed.
func (s *Storage) SaveAccounts(store *chaindata.Store) (int, error) {
	saved := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(accountsBucket))
		var innerErr error
		store.Range(func(key solana.PublicKey, acc chaindata.Account) bool {
			data, err := sonic.Marshal(storedAccount{
				Owner: acc.Owner.String(),
				Slot:  acc.Slot,
				Data:  acc.Data,
			})
			if err != nil {
				innerErr = fmt.Errorf("marshal account %s: %w", key, err)
				return false
			}
			if err := b.Put([]byte(key.String()), data); err != nil {
				innerErr = err
				return false
			}
			saved++
			return true
		})
		return innerErr
	})
	if err != nil {
		return 0, err
	}
	log.Info().Int("count", saved).Msg("[persistence] saved account snapshot")
	return saved, nil
}

// LoadAccounts replays every stored account through apply. Undecodable rows
// are skipped with a warning; one corrupt entry must not block a warm start.
func (s *Storage) LoadAccounts(apply func(key solana.PublicKey, acc chaindata.Account)) (int, error) {
	loaded, skipped := 0, 0
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(accountsBucket)).ForEach(func(k, v []byte) error {
			key, err := solana.PublicKeyFromBase58(string(k))
			if err != nil {
				skipped++
				return nil
			}
			var stored storedAccount
			if err := sonic.Unmarshal(v, &stored); err != nil {
				log.Warn().Str("account", string(k)).Err(err).Msg("[persistence] skipping corrupt account row")
				skipped++
				return nil
			}
			owner, err := solana.PublicKeyFromBase58(stored.Owner)
			if err != nil {
				skipped++
				return nil
			}
			apply(key, chaindata.Account{Owner: owner, Slot: stored.Slot, Data: stored.Data})
			loaded++
			return nil
		})
	})
	if err != nil {
		return loaded, err
	}
	if skipped > 0 {
		log.Warn().Int("loaded", loaded).Int("skipped", skipped).Msg("[persistence] account load completed with skips")
	} else {
		log.Info().Int("loaded", loaded).Msg("[persistence] account load completed")
	}
	return loaded, nil
}

func (s *Storage) SaveTokens(cache *domain.TokenCache) (int, error) {
	tokens := cache.All()
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(tokensBucket))
		for _, tok := range tokens {
			data, err := sonic.Marshal(storedToken{Decimals: tok.Decimals})
			if err != nil {
				return fmt.Errorf("marshal token %s: %w", tok.Mint, err)
			}
			if err := b.Put([]byte(tok.Mint.String()), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(tokens), nil
}

func (s *Storage) LoadTokens(cache *domain.TokenCache) (int, error) {
	loaded := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(tokensBucket)).ForEach(func(k, v []byte) error {
			mint, err := solana.PublicKeyFromBase58(string(k))
			if err != nil {
				return nil
			}
			var stored storedToken
			if err := sonic.Unmarshal(v, &stored); err != nil {
				log.Warn().Str("mint", string(k)).Err(err).Msg("[persistence] skipping corrupt token row")
				return nil
			}
			cache.Put(domain.Token{Mint: mint, Decimals: stored.Decimals})
			loaded++
			return nil
		})
	})
	return loaded, err
}

func (s *Storage) AccountCount() (int, error) {
	count := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket([]byte(accountsBucket)).Stats().KeyN
		return nil
	})
	return count, err
}
