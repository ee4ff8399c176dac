package runtime

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/fortiblox/x1-pixelbattle/pkg/types"
)

// ComputeBankHash chains one committed slot onto its parent.
//
// Formula: SHA256(parent_bankhash || accounts_delta_hash || signature_count_le || blockhash)
func ComputeBankHash(parentBankHash, accountsDeltaHash types.Hash, signatureCount uint64, blockhash types.Hash) types.Hash {
	h := sha256.New()
	h.Write(parentBankHash[:])
	h.Write(accountsDeltaHash[:])

	var sigCountBuf [8]byte
	binary.LittleEndian.PutUint64(sigCountBuf[:], signatureCount)
	h.Write(sigCountBuf[:])

	h.Write(blockhash[:])

	var result types.Hash
	copy(result[:], h.Sum(nil))
	return result
}

// nextBlockhash derives the blockhash of the slot after one that produced
// bankHash.
func nextBlockhash(blockhash, bankHash types.Hash) types.Hash {
	return types.SHA256Multi(blockhash[:], bankHash[:])
}

// blockhashQueue holds the most recent blockhashes transactions may
// reference, oldest first.
type blockhashQueue struct {
	max    int
	hashes []types.Hash
	slots  map[types.Hash]types.Slot
}

func newBlockhashQueue(max int) *blockhashQueue {
	return &blockhashQueue{
		max:   max,
		slots: make(map[types.Hash]types.Slot, max),
	}
}

func (q *blockhashQueue) push(hash types.Hash, slot types.Slot) {
	q.hashes = append(q.hashes, hash)
	q.slots[hash] = slot
	for len(q.hashes) > q.max {
		delete(q.slots, q.hashes[0])
		q.hashes = q.hashes[1:]
	}
}

func (q *blockhashQueue) latest() types.Hash {
	if len(q.hashes) == 0 {
		return types.ZeroHash
	}
	return q.hashes[len(q.hashes)-1]
}

func (q *blockhashQueue) contains(hash types.Hash) bool {
	_, ok := q.slots[hash]
	return ok
}

// oldest returns the slot of the oldest blockhash still accepted.
func (q *blockhashQueue) oldest() types.Slot {
	if len(q.hashes) == 0 {
		return 0
	}
	return q.slots[q.hashes[0]]
}
