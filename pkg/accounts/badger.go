package accounts

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/fortiblox/x1-pixelbattle/pkg/types"
)

const (
	// accountKeyPrefix is the prefix for account keys in BadgerDB.
	accountKeyPrefix = "account:"
)

// BadgerOptions configures a BadgerDB.
type BadgerOptions struct {
	// Path is the on-disk directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps all data in memory; used by tests.
	InMemory bool

	// Log receives badger's own warnings and errors. Nil silences them.
	Log *logrus.Entry
}

// BadgerDB is a persistent implementation of AccountsDB using BadgerDB.
// Records are stored zstd-compressed.
type BadgerDB struct {
	db    *badger.DB
	count atomic.Uint64
}

// NewBadgerDB creates a new BadgerDB account database at the specified path.
func NewBadgerDB(path string, log *logrus.Entry) (*BadgerDB, error) {
	return OpenBadgerDB(BadgerOptions{Path: path, Log: log})
}

// OpenBadgerDB opens a BadgerDB with explicit options.
func OpenBadgerDB(o BadgerOptions) (*BadgerDB, error) {
	opts := badger.DefaultOptions(o.Path)
	if o.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	if o.Log != nil {
		opts = opts.WithLogger(o.Log).WithLoggingLevel(badger.WARNING)
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	bdb := &BadgerDB{
		db: db,
	}

	count, err := bdb.countAccounts()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to count accounts: %w", err)
	}
	bdb.count.Store(count)

	return bdb, nil
}

// makeAccountKey creates the key for an account.
func makeAccountKey(pubkey types.Pubkey) []byte {
	key := make([]byte, len(accountKeyPrefix)+32)
	copy(key, accountKeyPrefix)
	copy(key[len(accountKeyPrefix):], pubkey[:])
	return key
}

// GetAccount retrieves an account by pubkey.
// Returns nil, nil if account does not exist.
func (db *BadgerDB) GetAccount(pubkey types.Pubkey) (*types.Account, error) {
	key := makeAccountKey(pubkey)
	var account *types.Account

	err := db.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			var deserErr error
			account, deserErr = decodeRecord(val)
			return deserErr
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return account, nil
}

// SetAccount stores an account.
func (db *BadgerDB) SetAccount(pubkey types.Pubkey, account *types.Account) error {
	return db.Commit([]types.AccountRef{{Pubkey: pubkey, Account: account}})
}

// DeleteAccount removes an account.
func (db *BadgerDB) DeleteAccount(pubkey types.Pubkey) error {
	return db.Commit([]types.AccountRef{{Pubkey: pubkey}})
}

// Commit writes refs in a single badger transaction.
func (db *BadgerDB) Commit(refs []types.AccountRef) error {
	records := make([][]byte, len(refs))
	for i, ref := range refs {
		if isDead(ref.Account) {
			continue
		}
		rec, err := encodeRecord(ref.Account)
		if err != nil {
			return fmt.Errorf("failed to serialize account %s: %w", ref.Pubkey, err)
		}
		records[i] = rec
	}

	var added, removed uint64
	err := db.db.Update(func(txn *badger.Txn) error {
		added, removed = 0, 0
		for i, ref := range refs {
			key := makeAccountKey(ref.Pubkey)
			_, err := txn.Get(key)
			exists := err == nil
			if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}

			if records[i] == nil {
				if !exists {
					continue
				}
				if err := txn.Delete(key); err != nil {
					return err
				}
				removed++
				continue
			}

			if err := txn.Set(key, records[i]); err != nil {
				return err
			}
			if !exists {
				added++
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to commit accounts: %w", err)
	}

	db.count.Add(added)
	if removed > 0 {
		db.count.Add(^(removed - 1))
	}
	return nil
}

// HasAccount returns true if the account exists.
func (db *BadgerDB) HasAccount(pubkey types.Pubkey) bool {
	key := makeAccountKey(pubkey)
	var exists bool

	_ = db.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		exists = err == nil
		return nil
	})

	return exists
}

// GetAccountsCount returns the total number of accounts.
func (db *BadgerDB) GetAccountsCount() uint64 {
	return db.count.Load()
}

// Close closes the database.
func (db *BadgerDB) Close() error {
	return db.db.Close()
}

// countAccounts counts all accounts in the database.
func (db *BadgerDB) countAccounts() (uint64, error) {
	var count uint64
	prefix := []byte(accountKeyPrefix)

	err := db.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})

	return count, err
}

var _ AccountsDB = (*BadgerDB)(nil)
