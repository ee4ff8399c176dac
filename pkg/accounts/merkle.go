package accounts

import (
	"bytes"
	"sort"

	"github.com/fortiblox/x1-pixelbattle/pkg/types"
)

// fanout is the number of children per node in the delta tree.
const fanout = 16

// ComputeAccountsDeltaHash hashes the accounts written by one transaction
// into a 16-ary Merkle root. Refs are sorted by pubkey first so the result
// does not depend on write order. A ref whose account was purged hashes as a
// zero-lamport empty account.
func ComputeAccountsDeltaHash(refs []types.AccountRef) types.Hash {
	if len(refs) == 0 {
		return types.ZeroHash
	}

	sorted := make([]types.AccountRef, len(refs))
	copy(sorted, refs)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].Pubkey[:], sorted[j].Pubkey[:]) < 0
	})

	level := make([]types.Hash, len(sorted))
	for i, ref := range sorted {
		account := ref.Account
		if account == nil {
			account = &types.Account{}
		}
		level[i] = account.Hash(ref.Pubkey)
	}

	for len(level) > 1 {
		next := make([]types.Hash, 0, (len(level)+fanout-1)/fanout)
		for start := 0; start < len(level); start += fanout {
			end := start + fanout
			if end > len(level) {
				end = len(level)
			}
			next = append(next, hashGroup(level[start:end]))
		}
		level = next
	}
	return level[0]
}

// hashGroup hashes the concatenation of up to fanout child hashes. A lone
// child is promoted unchanged.
func hashGroup(children []types.Hash) types.Hash {
	if len(children) == 1 {
		return children[0]
	}
	parts := make([][]byte, len(children))
	for i := range children {
		parts[i] = children[i][:]
	}
	return types.SHA256Multi(parts...)
}
