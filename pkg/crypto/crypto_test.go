package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"path/filepath"
	"testing"

	"github.com/fortiblox/x1-pixelbattle/pkg/types"
)

// Helper function to generate keypairs
func generateKeypair() (ed25519.PublicKey, ed25519.PrivateKey) {
	pub, priv, _ := ed25519.GenerateKey(rand.Reader)
	return pub, priv
}

// Helper function to create pubkey from ed25519.PublicKey
func pubkeyFromEd25519(pub ed25519.PublicKey) types.Pubkey {
	var pk types.Pubkey
	copy(pk[:], pub)
	return pk
}

// Helper function to create signature from ed25519 signature bytes
func signatureFromBytes(sigBytes []byte) types.Signature {
	var sig types.Signature
	copy(sig[:], sigBytes)
	return sig
}

// Tests for VerifySignature
func TestVerifySignature_Valid(t *testing.T) {
	pub, priv := generateKeypair()
	message := []byte("test message")
	signature := ed25519.Sign(priv, message)

	valid := VerifySignature(pub, message, signature)
	if !valid {
		t.Error("valid signature should verify")
	}
}

func TestVerifySignature_InvalidSignature(t *testing.T) {
	pub, priv := generateKeypair()
	message := []byte("test message")
	signature := ed25519.Sign(priv, message)

	// Corrupt the signature
	signature[0] ^= 0xff

	valid := VerifySignature(pub, message, signature)
	if valid {
		t.Error("corrupted signature should not verify")
	}
}

func TestVerifySignature_WrongMessage(t *testing.T) {
	pub, priv := generateKeypair()
	message := []byte("test message")
	signature := ed25519.Sign(priv, message)

	wrongMessage := []byte("wrong message")
	valid := VerifySignature(pub, wrongMessage, signature)
	if valid {
		t.Error("signature for wrong message should not verify")
	}
}

func TestVerifySignature_WrongKey(t *testing.T) {
	_, priv := generateKeypair()
	otherPub, _ := generateKeypair()
	message := []byte("test message")
	signature := ed25519.Sign(priv, message)

	valid := VerifySignature(otherPub, message, signature)
	if valid {
		t.Error("signature with wrong key should not verify")
	}
}

func TestVerifySignature_InvalidKeyLength(t *testing.T) {
	message := []byte("test message")
	signature := make([]byte, 64)

	// Too short key
	valid := VerifySignature([]byte{1, 2, 3}, message, signature)
	if valid {
		t.Error("too short key should fail")
	}

	// Too long key
	valid = VerifySignature(make([]byte, 64), message, signature)
	if valid {
		t.Error("too long key should fail")
	}
}

func TestVerifySignature_InvalidSignatureLength(t *testing.T) {
	pub, _ := generateKeypair()
	message := []byte("test message")

	// Too short signature
	valid := VerifySignature(pub, message, []byte{1, 2, 3})
	if valid {
		t.Error("too short signature should fail")
	}

	// Too long signature
	valid = VerifySignature(pub, message, make([]byte, 128))
	if valid {
		t.Error("too long signature should fail")
	}
}

// Tests for VerifySignatureStrict
func TestVerifySignatureStrict_Valid(t *testing.T) {
	pub, priv := generateKeypair()
	message := []byte("test message")
	signature := ed25519.Sign(priv, message)

	err := VerifySignatureStrict(pub, message, signature)
	if err != nil {
		t.Errorf("valid signature should verify: %v", err)
	}
}

func TestVerifySignatureStrict_InvalidKeyLength(t *testing.T) {
	message := []byte("test message")
	signature := make([]byte, 64)

	err := VerifySignatureStrict([]byte{1, 2, 3}, message, signature)
	if err == nil {
		t.Error("should error for invalid key length")
	}
}

func TestVerifySignatureStrict_InvalidSignatureLength(t *testing.T) {
	pub, _ := generateKeypair()
	message := []byte("test message")

	err := VerifySignatureStrict(pub, message, []byte{1, 2, 3})
	if err == nil {
		t.Error("should error for invalid signature length")
	}
}

func TestVerifySignatureStrict_VerificationFailed(t *testing.T) {
	pub, priv := generateKeypair()
	message := []byte("test message")
	signature := ed25519.Sign(priv, message)
	signature[0] ^= 0xff // Corrupt

	err := VerifySignatureStrict(pub, message, signature)
	if err == nil {
		t.Error("should error for failed verification")
	}
	if !errors.Is(err, ErrVerificationFailed) {
		t.Errorf("expected ErrVerificationFailed, got: %v", err)
	}
}

// Tests for BatchVerifier

func transferInstruction(from, to types.Pubkey) types.Instruction {
	return types.Instruction{
		ProgramID: types.SystemProgramID,
		Accounts: []types.AccountMeta{
			types.NewAccountMeta(from, true, true),
			types.NewAccountMeta(to, false, true),
		},
		Data: []byte{2, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	}
}

// Tests for VerifyTransaction
func TestVerifyTransaction_Valid(t *testing.T) {
	pub, priv := generateKeypair()
	toPub, _ := generateKeypair()

	fromPubkey := pubkeyFromEd25519(pub)
	toPubkey := pubkeyFromEd25519(toPub)

	msg := types.Message{
		Header: types.MessageHeader{
			NumRequiredSignatures:       1,
			NumReadonlySignedAccounts:   0,
			NumReadonlyUnsignedAccounts: 1,
		},
		AccountKeys: []types.Pubkey{
			fromPubkey,
			toPubkey,
			types.SystemProgramID,
		},
		RecentBlockhash: sha256.Sum256([]byte("blockhash")),
		Instructions: []types.CompiledInstruction{
			{
				ProgramIDIndex: 2,
				AccountIndices: []uint8{0, 1},
				Data:           []byte{2, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	msgBytes, _ := msg.Serialize()
	sig := signatureFromBytes(ed25519.Sign(priv, msgBytes))

	tx := &types.Transaction{
		Signatures: []types.Signature{sig},
		Message:    msg,
	}

	if err := VerifyTransaction(tx); err != nil {
		t.Errorf("valid transaction should verify: %v", err)
	}
}

func TestVerifyTransaction_Nil(t *testing.T) {
	if err := VerifyTransaction(nil); !errors.Is(err, ErrMissingMessage) {
		t.Errorf("expected ErrMissingMessage, got: %v", err)
	}
}

func TestVerifyTransaction_NoSignatures(t *testing.T) {
	tx := &types.Transaction{Message: types.Message{Header: types.MessageHeader{NumRequiredSignatures: 1}}}
	if err := VerifyTransaction(tx); !errors.Is(err, ErrNoSignatures) {
		t.Errorf("expected ErrNoSignatures, got: %v", err)
	}
}

func TestVerifyTransaction_SignatureCountMismatch(t *testing.T) {
	tx := &types.Transaction{
		Signatures: []types.Signature{{}, {}},
		Message: types.Message{
			Header:      types.MessageHeader{NumRequiredSignatures: 1},
			AccountKeys: []types.Pubkey{{1}},
		},
	}
	if err := VerifyTransaction(tx); !errors.Is(err, ErrSignatureCountMismatch) {
		t.Errorf("expected ErrSignatureCountMismatch, got: %v", err)
	}
}

func TestVerifyTransaction_InvalidSignature(t *testing.T) {
	kp, err := NewKeypair()
	if err != nil {
		t.Fatal(err)
	}
	other, _ := NewKeypair()

	msg, err := types.CompileMessage(kp.PublicKey(), types.SHA256([]byte("bh")), transferInstruction(kp.PublicKey(), other.PublicKey()))
	if err != nil {
		t.Fatal(err)
	}
	tx := &types.Transaction{Message: msg}
	if err := SignTransaction(tx, kp); err != nil {
		t.Fatal(err)
	}
	tx.Signatures[0][10] ^= 0xff

	err = VerifyTransaction(tx)
	var verr *TransactionVerificationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected TransactionVerificationError, got: %v", err)
	}
	if verr.SignatureIndex != 0 {
		t.Errorf("expected signature index 0, got %d", verr.SignatureIndex)
	}
	if !errors.Is(err, ErrVerificationFailed) {
		t.Error("error should wrap ErrVerificationFailed")
	}
}

func TestVerifyTransaction_MultipleSigners(t *testing.T) {
	payer, _ := NewKeypair()
	from, _ := NewKeypair()
	to, _ := NewKeypair()

	msg, err := types.CompileMessage(payer.PublicKey(), types.SHA256([]byte("bh")), transferInstruction(from.PublicKey(), to.PublicKey()))
	if err != nil {
		t.Fatal(err)
	}
	if msg.Header.NumRequiredSignatures != 2 {
		t.Fatalf("expected 2 required signatures, got %d", msg.Header.NumRequiredSignatures)
	}

	tx := &types.Transaction{Message: msg}
	if err := SignTransaction(tx, from, payer); err != nil {
		t.Fatal(err)
	}
	if err := VerifyTransaction(tx); err != nil {
		t.Errorf("valid multi-signer transaction should verify: %v", err)
	}

	// A missing signer keypair is reported instead of producing a bad signature.
	tx2 := &types.Transaction{Message: msg}
	if err := SignTransaction(tx2, payer); !errors.Is(err, ErrInvalidSignerIndex) {
		t.Errorf("expected ErrInvalidSignerIndex, got: %v", err)
	}
}

// Tests for Keypair
func TestKeypair_SignVerify(t *testing.T) {
	kp, err := NewKeypair()
	if err != nil {
		t.Fatal(err)
	}
	message := []byte("draw")
	sig := kp.Sign(message)
	pk := kp.PublicKey()
	if !VerifySignature(pk[:], message, sig[:]) {
		t.Error("keypair signature should verify")
	}
}

func TestKeypair_FromSeed(t *testing.T) {
	seed := make([]byte, SeedSize)
	seed[0] = 7
	a, err := KeypairFromSeed(seed)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := KeypairFromSeed(seed)
	if a.PublicKey() != b.PublicKey() {
		t.Error("same seed should produce same public key")
	}

	if _, err := KeypairFromSeed([]byte{1}); !errors.Is(err, ErrInvalidPrivateKey) {
		t.Errorf("expected ErrInvalidPrivateKey, got: %v", err)
	}
}

func TestKeypair_SaveLoad(t *testing.T) {
	kp, _ := NewKeypair()
	path := filepath.Join(t.TempDir(), "keys", "admin.json")

	if err := SaveKeypair(path, kp); err != nil {
		t.Fatalf("SaveKeypair failed: %v", err)
	}
	loaded, err := LoadKeypair(path)
	if err != nil {
		t.Fatalf("LoadKeypair failed: %v", err)
	}
	if loaded.PublicKey() != kp.PublicKey() {
		t.Error("loaded keypair should match saved keypair")
	}
}

// Tests for IsOnCurve
func TestIsOnCurve(t *testing.T) {
	kp, _ := NewKeypair()
	if !IsOnCurve(kp.PublicKey()) {
		t.Error("a real public key should be on the curve")
	}

	// Roughly half of all 32-byte strings decode to a curve point.
	var on, off int
	for i := 0; i < 64; i++ {
		if IsOnCurve(sha256.Sum256([]byte{byte(i)})) {
			on++
		} else {
			off++
		}
	}
	if on == 0 || off == 0 {
		t.Errorf("expected a mix of on-curve and off-curve hashes, got on=%d off=%d", on, off)
	}
}

func TestTransactionVerificationError(t *testing.T) {
	err := &TransactionVerificationError{
		SignatureIndex: 2,
		SignerPubkey:   "TestPubkey456",
		Err:            ErrVerificationFailed,
	}

	if err.Error() == "" {
		t.Error("error string should not be empty")
	}
	if err.Unwrap() != ErrVerificationFailed {
		t.Error("Unwrap should return underlying error")
	}
}

// Benchmark tests
func BenchmarkVerifySignature(b *testing.B) {
	pub, priv := generateKeypair()
	message := make([]byte, 256)
	signature := ed25519.Sign(priv, message)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		VerifySignature(pub, message, signature)
	}
}
