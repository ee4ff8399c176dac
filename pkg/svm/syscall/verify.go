package syscall

import (
	"bytes"
	"fmt"

	"github.com/fortiblox/x1-pixelbattle/pkg/types"
)

// snapshotAccounts deep-copies accounts, keeping one copy per key.
func snapshotAccounts(accounts []*AccountInfo) []*AccountInfo {
	seen := make(map[*AccountInfo]bool, len(accounts))
	pre := make([]*AccountInfo, 0, len(accounts))
	for _, acc := range accounts {
		if seen[acc] {
			continue
		}
		seen[acc] = true
		pre = append(pre, acc.Clone())
	}
	return pre
}

// SnapshotAccounts records the state of accounts before an instruction runs.
func SnapshotAccounts(accounts []*AccountInfo) []*AccountInfo {
	return snapshotAccounts(accounts)
}

// VerifyAccountChanges enforces the ownership rules after programID ran:
//   - only the owner may debit lamports, change data or reassign the owner
//   - read-only accounts may not change at all
//   - the owner may only be reassigned while the data is zeroed
//   - the executable flag never changes
//   - the total lamports across the instruction's accounts is preserved
//
// pre must come from SnapshotAccounts over the same accounts.
func VerifyAccountChanges(programID types.Pubkey, pre, post []*AccountInfo) error {
	postByKey := make(map[types.Pubkey]*AccountInfo, len(post))
	for _, acc := range post {
		postByKey[acc.Pubkey] = acc
	}

	var preTotal, postTotal uint64
	for _, before := range pre {
		after, ok := postByKey[before.Pubkey]
		if !ok {
			continue
		}
		preTotal += *before.Lamports
		postTotal += *after.Lamports

		ownedByProgram := before.Owner == programID
		lamportsChanged := *after.Lamports != *before.Lamports
		dataChanged := !bytes.Equal(after.Data, before.Data)

		if after.Executable != before.Executable {
			return fmt.Errorf("%w: %s", types.ErrExecutableModified, after.Pubkey)
		}

		if after.Owner != before.Owner {
			if !after.IsWritable || !ownedByProgram || !isZeroed(after.Data) {
				return fmt.Errorf("%w: %s", types.ErrModifiedProgramID, after.Pubkey)
			}
		}

		if lamportsChanged && !after.IsWritable {
			return fmt.Errorf("%w: %s", types.ErrReadonlyLamportChange, after.Pubkey)
		}
		if *after.Lamports < *before.Lamports && !ownedByProgram {
			return fmt.Errorf("%w: %s", types.ErrExternalLamportSpend, after.Pubkey)
		}

		if dataChanged {
			if !after.IsWritable {
				return fmt.Errorf("%w: %s", types.ErrReadonlyDataModified, after.Pubkey)
			}
			if !ownedByProgram {
				return fmt.Errorf("%w: %s", types.ErrExternalDataModified, after.Pubkey)
			}
		}
	}

	if preTotal != postTotal {
		return fmt.Errorf("%w: before %d, after %d", types.ErrUnbalancedInstruction, preTotal, postTotal)
	}
	return nil
}

func isZeroed(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}
