// Package runtime hosts native programs the way a validator bank does: it
// loads the accounts a transaction names, verifies its signatures, runs each
// instruction against the registered programs and commits the result
// atomically to the accounts database.
package runtime

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fortiblox/x1-pixelbattle/pkg/accounts"
	"github.com/fortiblox/x1-pixelbattle/pkg/types"
)

// Bank errors
var (
	ErrBlockhashNotFound     = errors.New("blockhash not found")
	ErrAlreadyProcessed      = errors.New("transaction already processed")
	ErrSignatureFailure      = errors.New("transaction signature verification failure")
	ErrSanitizeFailure       = errors.New("transaction failed to sanitize")
	ErrProgramAccountMissing = errors.New("program account not executable")
	ErrAirdropDisabled       = errors.New("airdrops are disabled")
	ErrAirdropLimit          = errors.New("airdrop exceeds limit")
)

// Config holds the bank's tunables.
type Config struct {
	// ComputeUnits is the compute budget of one transaction.
	ComputeUnits types.ComputeUnits

	// AirdropLimit caps a single airdrop. Zero disables airdrops.
	AirdropLimit types.Lamports

	// Rent is published in the rent sysvar and used for exemption checks.
	Rent types.Rent

	// MaxRecentBlockhashes is how many slots a blockhash stays valid.
	MaxRecentBlockhashes int

	// Genesis seeds the blockhash chain. Zero derives one from the clock.
	Genesis types.Hash
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		ComputeUnits:         types.DefaultComputeUnitsPerTransaction,
		AirdropLimit:         10_000_000_000,
		Rent:                 types.DefaultRent(),
		MaxRecentBlockhashes: 150,
	}
}

// Observer receives execution events, typically to record metrics.
type Observer interface {
	ObserveTransaction(result *types.TransactionResult, duration time.Duration)
	ObserveInstruction(program string, err error)
	ObserveAirdrop(lamports types.Lamports)
}

type nopObserver struct{}

func (nopObserver) ObserveTransaction(*types.TransactionResult, time.Duration) {}
func (nopObserver) ObserveInstruction(string, error)                           {}
func (nopObserver) ObserveAirdrop(types.Lamports)                              {}

// Bank executes transactions against an accounts database. Transactions
// run one at a time and each successful one advances the bank by a slot.
type Bank struct {
	mu sync.RWMutex

	db       accounts.AccountsDB
	registry *ProgramRegistry
	config   Config
	log      *logrus.Entry
	observer Observer

	slot        types.Slot
	bankHash    types.Hash
	blockhashes *blockhashQueue
	processed   map[types.Signature]types.Slot
}

// NewBank creates a bank over db and writes the builtin program accounts and
// the rent sysvar into it.
func NewBank(db accounts.AccountsDB, registry *ProgramRegistry, config Config, log *logrus.Entry) (*Bank, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if config.MaxRecentBlockhashes <= 0 {
		config.MaxRecentBlockhashes = DefaultConfig().MaxRecentBlockhashes
	}
	if config.ComputeUnits == 0 {
		config.ComputeUnits = types.DefaultComputeUnitsPerTransaction
	}
	if config.Genesis.IsZero() {
		var nanos [8]byte
		binary.LittleEndian.PutUint64(nanos[:], uint64(time.Now().UnixNano()))
		config.Genesis = types.SHA256Multi([]byte("x1-pixelbattle genesis"), nanos[:])
	}

	b := &Bank{
		db:          db,
		registry:    registry,
		config:      config,
		log:         log.WithField("component", "bank"),
		observer:    nopObserver{},
		blockhashes: newBlockhashQueue(config.MaxRecentBlockhashes),
		processed:   make(map[types.Signature]types.Slot),
	}
	b.blockhashes.push(config.Genesis, 0)

	if err := b.writeGenesisAccounts(); err != nil {
		return nil, err
	}

	b.log.WithFields(logrus.Fields{
		"programs":  len(registry.ListPrograms()),
		"blockhash": config.Genesis.String(),
	}).Info("bank ready")
	return b, nil
}

// writeGenesisAccounts stores an executable account for every registered
// program and the rent sysvar, replacing whatever is stored under those keys.
func (b *Bank) writeGenesisAccounts() error {
	var refs []types.AccountRef
	for _, id := range b.registry.ListPrograms() {
		name, _ := b.registry.GetProgramName(id)
		refs = append(refs, types.AccountRef{
			Pubkey: id,
			Account: &types.Account{
				Lamports:   1,
				Data:       []byte(name),
				Owner:      types.NativeLoaderID,
				Executable: true,
			},
		})
	}

	rentData := b.config.Rent.Serialize()
	refs = append(refs, types.AccountRef{
		Pubkey: types.SysvarRentID,
		Account: &types.Account{
			Lamports: b.config.Rent.MinimumBalance(uint64(len(rentData))),
			Data:     rentData,
			Owner:    types.SysvarOwnerID,
		},
	})

	if err := b.db.Commit(refs); err != nil {
		return fmt.Errorf("failed to write genesis accounts: %w", err)
	}
	return nil
}

// SetObserver installs o to receive execution events.
func (b *Bank) SetObserver(o Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if o == nil {
		o = nopObserver{}
	}
	b.observer = o
}

// GetAccount returns the stored account, or nil if it does not exist.
func (b *Bank) GetAccount(pubkey types.Pubkey) (*types.Account, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.db.GetAccount(pubkey)
}

// GetBalance returns the lamports held by pubkey.
func (b *Bank) GetBalance(pubkey types.Pubkey) (types.Lamports, error) {
	acc, err := b.GetAccount(pubkey)
	if err != nil || acc == nil {
		return 0, err
	}
	return acc.Lamports, nil
}

// LatestBlockhash returns the blockhash new transactions should reference
// and the current slot.
func (b *Bank) LatestBlockhash() (types.Hash, types.Slot) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.blockhashes.latest(), b.slot
}

// Slot returns the current slot.
func (b *Bank) Slot() types.Slot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.slot
}

// BankHash returns the hash of the last committed slot.
func (b *Bank) BankHash() types.Hash {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bankHash
}

// Rent returns the rent parameters in effect.
func (b *Bank) Rent() types.Rent {
	return b.config.Rent
}

// MinimumBalanceForRentExemption returns the lamports an account holding
// dataLen bytes needs.
func (b *Bank) MinimumBalanceForRentExemption(dataLen uint64) types.Lamports {
	return b.config.Rent.MinimumBalance(dataLen)
}

// Airdrop credits lamports to pubkey out of thin air. It is a local funding
// facility and advances the bank by one slot.
func (b *Bank) Airdrop(pubkey types.Pubkey, lamports types.Lamports) (types.Signature, error) {
	if b.config.AirdropLimit == 0 {
		return types.Signature{}, ErrAirdropDisabled
	}
	if lamports == 0 || lamports > b.config.AirdropLimit {
		return types.Signature{}, fmt.Errorf("%w: requested %d, limit %d", ErrAirdropLimit, lamports, b.config.AirdropLimit)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	acc, err := b.db.GetAccount(pubkey)
	if err != nil {
		return types.Signature{}, err
	}
	if acc == nil {
		acc = types.NewAccount(0, types.SystemProgramID)
	}
	acc.Lamports += lamports

	refs := []types.AccountRef{{Pubkey: pubkey, Account: acc}}
	if err := b.db.Commit(refs); err != nil {
		return types.Signature{}, err
	}

	blockhash := b.blockhashes.latest()
	var amount [8]byte
	binary.LittleEndian.PutUint64(amount[:], uint64(lamports))
	first := types.SHA256Multi([]byte("airdrop"), pubkey[:], amount[:], blockhash[:])
	second := types.SHA256(first[:])
	var sig types.Signature
	copy(sig[:32], first[:])
	copy(sig[32:], second[:])

	b.advance(accounts.ComputeAccountsDeltaHash(refs), 0)
	b.observer.ObserveAirdrop(lamports)

	b.log.WithFields(logrus.Fields{
		"to":       pubkey.String(),
		"lamports": uint64(lamports),
		"slot":     uint64(b.slot),
	}).Debug("airdrop")
	return sig, nil
}

// advance closes the current slot. Callers hold b.mu.
func (b *Bank) advance(deltaHash types.Hash, signatureCount uint64) {
	blockhash := b.blockhashes.latest()
	b.bankHash = ComputeBankHash(b.bankHash, deltaHash, signatureCount, blockhash)
	b.slot++
	b.blockhashes.push(nextBlockhash(blockhash, b.bankHash), b.slot)

	oldest := b.blockhashes.oldest()
	for sig, slot := range b.processed {
		if slot < oldest {
			delete(b.processed, sig)
		}
	}
}

// AccountsCount returns the number of accounts in the database.
func (b *Bank) AccountsCount() uint64 {
	return b.db.GetAccountsCount()
}
