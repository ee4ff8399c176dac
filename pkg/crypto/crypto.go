// Package crypto provides the Ed25519 primitives used by the pixel battle
// runtime and its clients.
//
// Key features:
//   - Keypair generation, signing and base58 keypair files
//   - Single signature and whole-transaction verification
//   - The curve membership test used to reject program derived addresses
//
// Example usage:
//
//	kp, _ := crypto.NewKeypair()
//	sig := kp.Sign(message)
//	valid := crypto.VerifySignature(kp.PublicKey().Bytes(), message, sig[:])
//
//	err := crypto.VerifyTransaction(tx)
package crypto

import (
	"errors"
	"strconv"
)

// Signature and key sizes for Ed25519.
const (
	// PublicKeySize is the size of an Ed25519 public key in bytes.
	PublicKeySize = 32

	// SignatureSize is the size of an Ed25519 signature in bytes.
	SignatureSize = 64

	// PrivateKeySize is the size of an Ed25519 private key in bytes.
	PrivateKeySize = 64

	// SeedSize is the size of an Ed25519 seed in bytes.
	SeedSize = 32
)

// Common errors returned by the crypto package.
var (
	// ErrInvalidPublicKey is returned when a public key has an invalid format.
	ErrInvalidPublicKey = errors.New("crypto: invalid public key")

	// ErrInvalidSignature is returned when a signature has an invalid format.
	ErrInvalidSignature = errors.New("crypto: invalid signature")

	// ErrInvalidPrivateKey is returned when a keypair file does not hold a
	// 64-byte Ed25519 private key.
	ErrInvalidPrivateKey = errors.New("crypto: invalid private key")

	// ErrVerificationFailed is returned when signature verification fails.
	ErrVerificationFailed = errors.New("crypto: signature verification failed")

	// ErrNoSignatures is returned when a transaction has no signatures.
	ErrNoSignatures = errors.New("crypto: transaction has no signatures")

	// ErrSignatureCountMismatch is returned when the number of signatures
	// does not match the expected number of signers.
	ErrSignatureCountMismatch = errors.New("crypto: signature count mismatch")

	// ErrMissingMessage is returned when a transaction is nil.
	ErrMissingMessage = errors.New("crypto: missing transaction message")

	// ErrInvalidSignerIndex is returned when a signer index is out of bounds.
	ErrInvalidSignerIndex = errors.New("crypto: invalid signer index")

	// ErrMessageSerializationFailed is returned when message serialization fails.
	ErrMessageSerializationFailed = errors.New("crypto: message serialization failed")
)

// TransactionVerificationError contains details about a transaction verification failure.
type TransactionVerificationError struct {
	// SignatureIndex is the index of the signature that failed verification.
	SignatureIndex int

	// SignerPubkey is the base58 representation of the signer's public key.
	SignerPubkey string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *TransactionVerificationError) Error() string {
	return "crypto: transaction verification failed for signer " + e.SignerPubkey +
		" (signature index " + strconv.Itoa(e.SignatureIndex) + "): " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *TransactionVerificationError) Unwrap() error {
	return e.Err
}
