package storage

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/ruteri/quorum-wallet/interfaces"
)

// BadgerStore is the local device key-value store backed by BadgerDB.
type BadgerStore struct {
	DB *badger.DB
}

// BadgerConfig configures a BadgerStore.
type BadgerConfig struct {
	// DBPath is the database directory. Ignored when InMemory is set.
	DBPath   string
	InMemory bool
	// EncryptionKey optionally enables at-rest encryption (16, 24 or 32 bytes).
	EncryptionKey []byte
	Log           *slog.Logger
}

// NewBadgerStore opens the database.
func NewBadgerStore(cfg BadgerConfig) (*BadgerStore, error) {
	opts := badger.DefaultOptions(cfg.DBPath).
		WithCompression(options.ZSTD).
		WithSyncWrites(true).
		WithVerifyValueChecksum(true).
		WithLogger(nil)
	if cfg.InMemory {
		opts = opts.WithInMemory(true).WithDir("").WithValueDir("")
	}
	if len(cfg.EncryptionKey) > 0 {
		opts = opts.WithEncryptionKey(cfg.EncryptionKey).WithIndexCacheSize(16 << 20)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %q: %w", cfg.DBPath, err)
	}

	if cfg.Log != nil {
		cfg.Log.Debug("Opened local store", "path", cfg.DBPath, "inMemory", cfg.InMemory)
	}
	return &BadgerStore{DB: db}, nil
}

// Put stores a key-value pair.
func (b *BadgerStore) Put(key string, value []byte) error {
	return b.DB.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

// Get returns the value for key or interfaces.ErrContentNotFound.
func (b *BadgerStore) Get(key string) ([]byte, error) {
	var result []byte
	err := b.DB.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		result, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, interfaces.ErrContentNotFound
	}
	return result, err
}

// Delete removes a key. Deleting a missing key is not an error.
func (b *BadgerStore) Delete(key string) error {
	return b.DB.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Close closes the database.
func (b *BadgerStore) Close() error {
	return b.DB.Close()
}
