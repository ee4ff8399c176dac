package types

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
)

// Account represents an on-chain account.
type Account struct {
	Lamports   Lamports // Balance in lamports
	Data       []byte   // Account data
	Owner      Pubkey   // Program that owns this account
	Executable bool     // Is this a program account?
	RentEpoch  Epoch    // Last epoch rent was collected (deprecated)
}

// NewAccount creates a new account.
func NewAccount(lamports Lamports, owner Pubkey) *Account {
	return &Account{
		Lamports: lamports,
		Data:     nil,
		Owner:    owner,
	}
}

// NewAccountWithData creates a new account with data.
func NewAccountWithData(lamports Lamports, data []byte, owner Pubkey) *Account {
	return &Account{
		Lamports: lamports,
		Data:     data,
		Owner:    owner,
	}
}

// Clone creates a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := &Account{
		Lamports:   a.Lamports,
		Owner:      a.Owner,
		Executable: a.Executable,
		RentEpoch:  a.RentEpoch,
	}
	if a.Data != nil {
		clone.Data = make([]byte, len(a.Data))
		copy(clone.Data, a.Data)
	}
	return clone
}

// DataLen returns the length of account data.
func (a *Account) DataLen() uint64 {
	return uint64(len(a.Data))
}

// IsEmpty returns true if the account has zero lamports and no data.
func (a *Account) IsEmpty() bool {
	return a.Lamports == 0 && len(a.Data) == 0
}

// Hash computes the account hash for Merkle tree inclusion.
// Format: SHA256(lamports || rent_epoch || data || executable || owner || pubkey)
func (a *Account) Hash(pubkey Pubkey) Hash {
	h := sha256.New()

	var lamportsBuf [8]byte
	binary.LittleEndian.PutUint64(lamportsBuf[:], uint64(a.Lamports))
	h.Write(lamportsBuf[:])

	var rentEpochBuf [8]byte
	binary.LittleEndian.PutUint64(rentEpochBuf[:], uint64(a.RentEpoch))
	h.Write(rentEpochBuf[:])

	h.Write(a.Data)

	if a.Executable {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}

	h.Write(a.Owner[:])
	h.Write(pubkey[:])

	var result Hash
	copy(result[:], h.Sum(nil))
	return result
}

// Rent parameters (mainnet values)
const (
	DefaultLamportsPerByteYear = 3480
	DefaultExemptionThreshold  = 2.0
	DefaultBurnPercent         = 50

	// AccountStorageOverhead is charged on top of the data length of every account.
	AccountStorageOverhead = 128

	// RentSysvarSize is the serialized size of the Rent sysvar.
	RentSysvarSize = 8 + 8 + 1
)

// Rent mirrors the Rent sysvar.
type Rent struct {
	LamportsPerByteYear uint64
	ExemptionThreshold  float64
	BurnPercent         uint8
}

// DefaultRent returns the rent parameters used when none are configured.
func DefaultRent() Rent {
	return Rent{
		LamportsPerByteYear: DefaultLamportsPerByteYear,
		ExemptionThreshold:  DefaultExemptionThreshold,
		BurnPercent:         DefaultBurnPercent,
	}
}

// MinimumBalance returns the lamports an account holding dataLen bytes needs
// to be rent exempt.
func (r Rent) MinimumBalance(dataLen uint64) Lamports {
	bytes := (AccountStorageOverhead + dataLen) * r.LamportsPerByteYear
	return Lamports(float64(bytes) * r.ExemptionThreshold)
}

// IsExempt reports whether balance covers rent exemption for dataLen bytes.
func (r Rent) IsExempt(balance Lamports, dataLen uint64) bool {
	return balance >= r.MinimumBalance(dataLen)
}

// Serialize encodes the sysvar layout:
// lamports_per_byte_year (u64) || exemption_threshold (f64) || burn_percent (u8)
func (r Rent) Serialize() []byte {
	buf := make([]byte, RentSysvarSize)
	binary.LittleEndian.PutUint64(buf[0:8], r.LamportsPerByteYear)
	binary.LittleEndian.PutUint64(buf[8:16], math.Float64bits(r.ExemptionThreshold))
	buf[16] = r.BurnPercent
	return buf
}

// DeserializeRent decodes the Rent sysvar from account data.
func DeserializeRent(data []byte) (Rent, error) {
	if len(data) < RentSysvarSize {
		return Rent{}, fmt.Errorf("rent sysvar requires %d bytes, got %d", RentSysvarSize, len(data))
	}
	return Rent{
		LamportsPerByteYear: binary.LittleEndian.Uint64(data[0:8]),
		ExemptionThreshold:  math.Float64frombits(binary.LittleEndian.Uint64(data[8:16])),
		BurnPercent:         data[16],
	}, nil
}

// RentExemptMinimum calculates the minimum lamports for rent exemption using
// the default rent parameters.
func RentExemptMinimum(dataSize uint64) Lamports {
	return DefaultRent().MinimumBalance(dataSize)
}

// AccountMeta describes an account in an instruction.
type AccountMeta struct {
	Pubkey     Pubkey
	IsSigner   bool
	IsWritable bool
}

// NewAccountMeta creates an AccountMeta.
func NewAccountMeta(pubkey Pubkey, isSigner, isWritable bool) AccountMeta {
	return AccountMeta{Pubkey: pubkey, IsSigner: isSigner, IsWritable: isWritable}
}

// AccountRef is a reference to an account with its pubkey.
type AccountRef struct {
	Pubkey  Pubkey
	Account *Account
}

// AccountDelta represents a change to an account.
type AccountDelta struct {
	Pubkey     Pubkey
	OldAccount *Account // nil if new account
	NewAccount *Account // nil if deleted
}

// IsCreation returns true if this is a new account.
func (d *AccountDelta) IsCreation() bool {
	return d.OldAccount == nil && d.NewAccount != nil
}

// IsModification returns true if this account was modified.
func (d *AccountDelta) IsModification() bool {
	return d.OldAccount != nil && d.NewAccount != nil
}
