package crypto

import (
	"crypto/ed25519"
	"fmt"

	"github.com/jdgcs/ed25519/edwards25519"

	"github.com/fortiblox/x1-pixelbattle/pkg/types"
)

// VerifySignature verifies a single Ed25519 signature.
// Returns false if the public key or signature have invalid lengths.
func VerifySignature(pubkey, message, signature []byte) bool {
	if len(pubkey) != PublicKeySize {
		return false
	}
	if len(signature) != SignatureSize {
		return false
	}
	return ed25519.Verify(pubkey, message, signature)
}

// VerifySignatureStrict is like VerifySignature but returns an error
// with details about why verification failed.
func VerifySignatureStrict(pubkey, message, signature []byte) error {
	if len(pubkey) != PublicKeySize {
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPublicKey, PublicKeySize, len(pubkey))
	}
	if len(signature) != SignatureSize {
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSignature, SignatureSize, len(signature))
	}
	if !ed25519.Verify(pubkey, message, signature) {
		return ErrVerificationFailed
	}
	return nil
}

// VerifyTransaction verifies all signatures on a transaction.
// It serializes the message and verifies each signature against the
// corresponding signer's public key.
func VerifyTransaction(tx *types.Transaction) error {
	if tx == nil {
		return ErrMissingMessage
	}

	numSignatures := len(tx.Signatures)
	if numSignatures == 0 {
		return ErrNoSignatures
	}

	numRequired := int(tx.Message.Header.NumRequiredSignatures)
	if numSignatures != numRequired {
		return fmt.Errorf("%w: expected %d signatures, got %d",
			ErrSignatureCountMismatch, numRequired, numSignatures)
	}

	messageBytes, err := tx.Message.Serialize()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMessageSerializationFailed, err)
	}

	accountKeys := tx.Message.AccountKeys
	if len(accountKeys) < numSignatures {
		return fmt.Errorf("%w: not enough account keys for signatures",
			ErrInvalidSignerIndex)
	}

	for i := 0; i < numSignatures; i++ {
		pubkey := accountKeys[i]
		signature := tx.Signatures[i]

		if !ed25519.Verify(pubkey[:], messageBytes, signature[:]) {
			return &TransactionVerificationError{
				SignatureIndex: i,
				SignerPubkey:   pubkey.String(),
				Err:            ErrVerificationFailed,
			}
		}
	}

	return nil
}

// IsOnCurve reports whether the 32 bytes decode to a point on the ed25519
// curve. Program derived addresses must not be on the curve so that no
// private key exists for them.
//
// The standard library keeps its point type internal, so the decode is done
// with the extended group element from github.com/jdgcs/ed25519.
func IsOnCurve(b [32]byte) bool {
	var A edwards25519.ExtendedGroupElement
	return A.FromBytes(&b)
}
