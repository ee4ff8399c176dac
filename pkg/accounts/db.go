// Package accounts stores the runtime's accounts: an in-memory map for tests
// and a badger-backed store with zstd-compressed records for the server.
package accounts

import (
	"github.com/fortiblox/x1-pixelbattle/pkg/types"
)

// AccountsDB defines the interface for account storage.
type AccountsDB interface {
	// GetAccount retrieves an account by pubkey.
	// Returns nil, nil if account does not exist.
	GetAccount(pubkey types.Pubkey) (*types.Account, error)

	// SetAccount stores an account.
	SetAccount(pubkey types.Pubkey, account *types.Account) error

	// DeleteAccount removes an account.
	DeleteAccount(pubkey types.Pubkey) error

	// HasAccount returns true if the account exists.
	HasAccount(pubkey types.Pubkey) bool

	// Commit writes every account in refs in one atomic batch. A ref with a
	// nil account, or an account holding zero lamports, deletes the key.
	Commit(refs []types.AccountRef) error

	// GetAccountsCount returns the total number of accounts.
	GetAccountsCount() uint64

	// Close closes the database.
	Close() error
}

// isDead reports whether a committed account should be purged.
func isDead(account *types.Account) bool {
	return account == nil || (account.Lamports == 0 && len(account.Data) == 0)
}
