package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mr-tron/base58"

	"github.com/fortiblox/x1-pixelbattle/pkg/types"
)

// Keypair is an Ed25519 signing key.
type Keypair struct {
	private ed25519.PrivateKey
}

// NewKeypair generates a random keypair.
func NewKeypair() (*Keypair, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &Keypair{private: priv}, nil
}

// KeypairFromSeed derives a keypair from a 32-byte seed.
func KeypairFromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("%w: seed must be %d bytes, got %d", ErrInvalidPrivateKey, SeedSize, len(seed))
	}
	return &Keypair{private: ed25519.NewKeyFromSeed(seed)}, nil
}

// KeypairFromPrivateKey wraps a 64-byte private key.
func KeypairFromPrivateKey(b []byte) (*Keypair, error) {
	if len(b) != PrivateKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPrivateKey, PrivateKeySize, len(b))
	}
	priv := make(ed25519.PrivateKey, PrivateKeySize)
	copy(priv, b)
	return &Keypair{private: priv}, nil
}

// PublicKey returns the keypair's public key.
func (k *Keypair) PublicKey() types.Pubkey {
	var pk types.Pubkey
	copy(pk[:], k.private.Public().(ed25519.PublicKey))
	return pk
}

// Sign signs message.
func (k *Keypair) Sign(message []byte) types.Signature {
	var sig types.Signature
	copy(sig[:], ed25519.Sign(k.private, message))
	return sig
}

// Base58 encodes the 64-byte private key.
func (k *Keypair) Base58() string {
	return base58.Encode(k.private)
}

// SignTransaction fills tx.Signatures for every required
// signer using the matching keypair from signers.
func SignTransaction(tx *types.Transaction, signers ...*Keypair) error {
	msg, err := tx.Message.Serialize()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMessageSerializationFailed, err)
	}

	numRequired := int(tx.Message.Header.NumRequiredSignatures)
	if len(tx.Message.AccountKeys) < numRequired {
		return ErrInvalidSignerIndex
	}

	byKey := make(map[types.Pubkey]*Keypair, len(signers))
	for _, s := range signers {
		byKey[s.PublicKey()] = s
	}

	tx.Signatures = make([]types.Signature, numRequired)
	for i := 0; i < numRequired; i++ {
		key := tx.Message.AccountKeys[i]
		signer, ok := byKey[key]
		if !ok {
			return fmt.Errorf("%w: no keypair for signer %s", ErrInvalidSignerIndex, key)
		}
		tx.Signatures[i] = signer.Sign(msg)
	}
	return nil
}

// LoadKeypair reads a keypair file holding a base58 private key.
func LoadKeypair(path string) (*Keypair, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	b, err := base58.Decode(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	return KeypairFromPrivateKey(b)
}

// SaveKeypair writes the keypair as base58 with owner-only permissions.
func SaveKeypair(path string, k *Keypair) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(k.Base58()+"\n"), 0600)
}
