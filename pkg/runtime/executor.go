package runtime

import (
	"bytes"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fortiblox/x1-pixelbattle/pkg/accounts"
	"github.com/fortiblox/x1-pixelbattle/pkg/crypto"
	"github.com/fortiblox/x1-pixelbattle/pkg/svm/programs/compute_budget"
	"github.com/fortiblox/x1-pixelbattle/pkg/svm/syscall"
	"github.com/fortiblox/x1-pixelbattle/pkg/types"
)

// ProcessTransaction verifies and executes tx. A transaction that fails
// verification or execution is reported through the result's Error and
// leaves every account untouched. The returned error is reserved for
// storage failures.
func (b *Bank) ProcessTransaction(tx *types.Transaction) (*types.TransactionResult, error) {
	start := time.Now()

	b.mu.Lock()
	defer b.mu.Unlock()

	result := &types.TransactionResult{
		Slot: b.slot,
		Logs: make([]string, 0),
	}
	if tx != nil {
		result.Signature = tx.ID()
	}
	defer func() {
		b.observer.ObserveTransaction(result, time.Since(start))
	}()

	log := b.log.WithField("signature", result.Signature.String())

	if err := b.verify(tx); err != nil {
		result.Error = err
		log.WithError(err).Debug("transaction rejected")
		return result, nil
	}

	budget, err := compute_budget.FromMessage(&tx.Message, b.config.ComputeUnits)
	if err != nil {
		result.Error = err
		log.WithError(err).Debug("invalid compute budget")
		return result, nil
	}

	working, existed, err := b.loadAccounts(&tx.Message)
	if err != nil {
		log.WithError(err).Warn("failure loading transaction accounts")
		return result, err
	}

	var loaded uint64
	for _, info := range working {
		loaded += uint64(len(info.Data))
	}
	if err := budget.CheckLoadedData(loaded); err != nil {
		result.Error = err
		log.WithError(err).Debug("transaction rejected")
		return result, nil
	}

	pre := make(map[types.Pubkey]*types.Account, len(working))
	for key, info := range working {
		pre[key] = info.ToAccount()
	}

	remaining := uint64(budget.ComputeUnitLimit)
	for i := range tx.Message.Instructions {
		ix, err := tx.Message.Decompile(&tx.Message.Instructions[i])
		if err != nil {
			result.Error = fmt.Errorf("%w: %v", ErrSanitizeFailure, err)
			return result, nil
		}

		consumed, logs, err := b.executeInstruction(ix, working, remaining)
		result.Logs = append(result.Logs, logs...)
		result.ComputeUnits += types.ComputeUnits(consumed)
		remaining -= consumed
		if err != nil {
			result.Error = types.InstructionError{Index: i, Err: err}
			log.WithFields(logrus.Fields{
				"instruction": i,
				"program":     ix.ProgramID.String(),
			}).WithError(err).Debug("transaction failed")
			return result, nil
		}
	}

	var refs []types.AccountRef
	for i, key := range tx.Message.AccountKeys {
		if !tx.Message.IsWritable(i) {
			continue
		}
		post := working[key].ToAccount()
		if accountsEqual(pre[key], post) {
			continue
		}
		old := pre[key]
		if !existed[key] {
			old = nil
		}
		refs = append(refs, types.AccountRef{Pubkey: key, Account: post})
		result.AccountDeltas = append(result.AccountDeltas, types.AccountDelta{
			Pubkey:     key,
			OldAccount: old,
			NewAccount: post,
		})
	}

	if err := b.db.Commit(refs); err != nil {
		log.WithError(err).Warn("failure committing transaction")
		return result, err
	}

	result.DeltaHash = accounts.ComputeAccountsDeltaHash(refs)
	result.Success = true
	b.advance(result.DeltaHash, uint64(len(tx.Signatures)))
	b.processed[tx.ID()] = b.slot
	result.Slot = b.slot

	log.WithFields(logrus.Fields{
		"slot":          uint64(b.slot),
		"compute_units": uint64(result.ComputeUnits),
		"accounts":      len(refs),
	}).Debug("transaction committed")
	return result, nil
}

// verify runs the checks that precede execution.
func (b *Bank) verify(tx *types.Transaction) error {
	if err := sanitize(tx); err != nil {
		return err
	}
	if err := crypto.VerifyTransaction(tx); err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureFailure, err)
	}
	if !b.blockhashes.contains(tx.Message.RecentBlockhash) {
		return fmt.Errorf("%w: %s", ErrBlockhashNotFound, tx.Message.RecentBlockhash)
	}
	if _, ok := b.processed[tx.ID()]; ok {
		return ErrAlreadyProcessed
	}
	return nil
}

// sanitize checks the message is well formed.
func sanitize(tx *types.Transaction) error {
	if tx == nil {
		return fmt.Errorf("%w: nil transaction", ErrSanitizeFailure)
	}
	msg := &tx.Message
	numKeys := len(msg.AccountKeys)
	numSigners := int(msg.Header.NumRequiredSignatures)

	switch {
	case len(msg.Instructions) == 0:
		return fmt.Errorf("%w: no instructions", ErrSanitizeFailure)
	case numSigners == 0:
		return fmt.Errorf("%w: no fee payer", ErrSanitizeFailure)
	case numSigners > numKeys:
		return fmt.Errorf("%w: %d signers but %d keys", ErrSanitizeFailure, numSigners, numKeys)
	case int(msg.Header.NumReadonlySignedAccounts) >= numSigners:
		return fmt.Errorf("%w: fee payer must be writable", ErrSanitizeFailure)
	case numSigners+int(msg.Header.NumReadonlyUnsignedAccounts) > numKeys:
		return fmt.Errorf("%w: readonly count exceeds keys", ErrSanitizeFailure)
	case len(tx.Signatures) != numSigners:
		return fmt.Errorf("%w: %d signatures for %d signers", ErrSanitizeFailure, len(tx.Signatures), numSigners)
	}

	seen := make(map[types.Pubkey]struct{}, numKeys)
	for _, key := range msg.AccountKeys {
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: duplicate key %s", ErrSanitizeFailure, key)
		}
		seen[key] = struct{}{}
	}

	for i, ix := range msg.Instructions {
		if ix.ProgramIDIndex == 0 || int(ix.ProgramIDIndex) >= numKeys {
			return fmt.Errorf("%w: instruction %d program index %d", ErrSanitizeFailure, i, ix.ProgramIDIndex)
		}
		for _, idx := range ix.AccountIndices {
			if int(idx) >= numKeys {
				return fmt.Errorf("%w: instruction %d account index %d", ErrSanitizeFailure, i, idx)
			}
		}
	}
	return nil
}

// loadAccounts loads every key of msg into one AccountInfo per key carrying
// the message's signer and writable flags. Missing accounts load as empty
// system accounts.
func (b *Bank) loadAccounts(msg *types.Message) (map[types.Pubkey]*syscall.AccountInfo, map[types.Pubkey]bool, error) {
	working := make(map[types.Pubkey]*syscall.AccountInfo, len(msg.AccountKeys))
	existed := make(map[types.Pubkey]bool, len(msg.AccountKeys))

	for i, key := range msg.AccountKeys {
		account, err := b.db.GetAccount(key)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load account %s: %w", key, err)
		}
		if account != nil {
			existed[key] = true
		} else {
			account = types.NewAccount(0, types.SystemProgramID)
		}
		working[key] = syscall.NewAccountInfo(key, account, msg.IsSigner(i), msg.IsWritable(i))
	}
	return working, existed, nil
}

// executeInstruction runs one top-level instruction within budget compute
// units and checks the program's account changes.
func (b *Bank) executeInstruction(ix *types.Instruction, working map[types.Pubkey]*syscall.AccountInfo, budget uint64) (uint64, []string, error) {
	program := working[ix.ProgramID]
	if !program.Executable {
		return 0, nil, fmt.Errorf("%w: %v: %s", types.ErrAccountNotExecutable, ErrProgramAccountMissing, ix.ProgramID)
	}

	infos := make([]*syscall.AccountInfo, len(ix.Accounts))
	for i, meta := range ix.Accounts {
		infos[i] = working[meta.Pubkey]
	}

	ctx := syscall.NewExecutionContext(ix.ProgramID, infos, ix.Data, budget)
	ctx.Rent = b.config.Rent
	executor := observedExecutor{registry: b.registry, observer: b.observer}
	ctx.SetProgramExecutor(executor)
	ctx.SnapshotPreState()

	_ = ctx.AddLog(fmt.Sprintf("Program %s invoke [1]", ix.ProgramID))
	err := executor.ExecuteProgram(ctx)
	if err == nil {
		err = ctx.VerifyChanges()
	}

	consumed := ctx.GetComputeUnitsConsumed()
	logs := ctx.GetLogs()
	logs = append(logs, fmt.Sprintf("Program %s consumed %d of %d compute units", ix.ProgramID, consumed, budget))
	if err != nil {
		logs = append(logs, fmt.Sprintf("Program %s failed: %v", ix.ProgramID, err))
	} else {
		logs = append(logs, fmt.Sprintf("Program %s success", ix.ProgramID))
	}
	return consumed, logs, err
}

// observedExecutor reports every program invocation, top level or CPI, to
// the bank's observer.
type observedExecutor struct {
	registry *ProgramRegistry
	observer Observer
}

func (e observedExecutor) ExecuteProgram(ctx *syscall.ExecutionContext) error {
	err := e.registry.ExecuteProgram(ctx)
	name, ok := e.registry.GetProgramName(ctx.ProgramID)
	if !ok {
		name = "unknown"
	}
	e.observer.ObserveInstruction(name, err)
	return err
}

// accountsEqual checks if two accounts are equal.
func accountsEqual(a, b *types.Account) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Lamports == b.Lamports &&
		a.Owner == b.Owner &&
		a.Executable == b.Executable &&
		bytes.Equal(a.Data, b.Data)
}
