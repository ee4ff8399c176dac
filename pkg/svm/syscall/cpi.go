package syscall

import (
	"errors"
	"fmt"

	"github.com/fortiblox/x1-pixelbattle/pkg/types"
)

// MaxCPIDepth is the maximum nesting of cross-program invocations below the
// top-level instruction.
const MaxCPIDepth = 4

// CPI errors
var (
	ErrCPINoExecutor         = errors.New("no program executor registered for CPI")
	ErrCPIAccountNotFound    = errors.New("account not found in caller context")
	ErrCPIProgramNotProvided = errors.New("program account not provided")
	ErrCPIInvalidSignerSeeds = errors.New("invalid signer seeds")
	ErrCPIPDASignerMismatch  = errors.New("PDA signer does not match derived address")
)

// Invoke performs a cross-program invocation without PDA signers.
func (ctx *ExecutionContext) Invoke(ix types.Instruction) error {
	return ctx.InvokeSigned(ix)
}

// InvokeSigned performs a cross-program invocation. Each entry of
// signerSeeds is one seed list (bump included) that must derive, under the
// calling program's id, an address that the instruction marks as signer.
//
// The callee sees private copies of the accounts it names. Writes are copied
// back to the caller only when the callee succeeds and passes the account
// change checks.
func (ctx *ExecutionContext) InvokeSigned(ix types.Instruction, signerSeeds ...[][]byte) error {
	if ctx.Depth >= MaxCPIDepth {
		return types.ErrCallDepth
	}
	if ctx.executor == nil {
		return ErrCPINoExecutor
	}
	if ix.ProgramID == ctx.ProgramID {
		return fmt.Errorf("%w: %s", types.ErrReentrancyNotAllowed, ix.ProgramID)
	}
	if err := ctx.ConsumeComputeUnits(CUInvoke); err != nil {
		return err
	}

	programAcc, err := ctx.GetAccount(ix.ProgramID)
	if err != nil {
		return fmt.Errorf("%w: %v: %s", types.ErrNotEnoughAccountKeys, ErrCPIProgramNotProvided, ix.ProgramID)
	}
	if !programAcc.Executable {
		return fmt.Errorf("%w: %s", types.ErrAccountNotExecutable, ix.ProgramID)
	}

	// The caller's own writes must be legitimate before the callee sees them.
	if err := ctx.VerifyChanges(); err != nil {
		return err
	}

	pdaSigners, err := ctx.verifyPDASigners(ix, signerSeeds)
	if err != nil {
		return err
	}

	calleeAccounts, err := ctx.resolveAndValidateAccounts(ix, pdaSigners)
	if err != nil {
		return err
	}
	ctx.PushCaller(ctx.ProgramID)
	defer ctx.PopCaller()

	oldProgramID := ctx.ProgramID
	oldAccounts := ctx.Accounts
	oldAccountIndex := ctx.accountIndex
	oldInstructionData := ctx.InstructionData
	oldPre := ctx.pre

	ctx.ProgramID = ix.ProgramID
	ctx.Accounts = calleeAccounts
	ctx.InstructionData = ix.Data
	ctx.pre = snapshotAccounts(calleeAccounts)
	ctx.rebuildIndex()

	_ = ctx.AddLog(fmt.Sprintf("Program %s invoke [%d]", ix.ProgramID, ctx.Depth+1))
	err = ctx.executor.ExecuteProgram(ctx)
	if err == nil {
		err = VerifyAccountChanges(ix.ProgramID, ctx.pre, calleeAccounts)
	}
	if err != nil {
		_ = ctx.AddLog(fmt.Sprintf("Program %s failed: %v", ix.ProgramID, err))
	} else {
		_ = ctx.AddLog(fmt.Sprintf("Program %s success", ix.ProgramID))
	}

	ctx.ProgramID = oldProgramID
	ctx.Accounts = oldAccounts
	ctx.accountIndex = oldAccountIndex
	ctx.InstructionData = oldInstructionData
	ctx.pre = oldPre

	if err != nil {
		return err
	}
	ctx.propagateAccountChanges(calleeAccounts)
	if ctx.pre != nil {
		// The callee's writes are verified; they become part of the
		// caller's baseline.
		ctx.pre = snapshotAccounts(ctx.Accounts)
	}
	return nil
}

// verifyPDASigners derives each signer seed list under the calling program
// and checks the result is a signer of the instruction.
func (ctx *ExecutionContext) verifyPDASigners(ix types.Instruction, signerSeeds [][][]byte) (map[types.Pubkey]bool, error) {
	pdaSigners := make(map[types.Pubkey]bool, len(signerSeeds))

	for _, seeds := range signerSeeds {
		if err := ctx.ConsumeComputeUnits(CUCreatePDA); err != nil {
			return nil, err
		}
		pda, valid := CreateProgramAddress(seeds, ctx.ProgramID)
		if !valid {
			return nil, fmt.Errorf("%w: %v", types.ErrInvalidArgument, ErrCPIInvalidSignerSeeds)
		}

		found := false
		for _, meta := range ix.Accounts {
			if meta.Pubkey == pda && meta.IsSigner {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: %v: %s", types.ErrInvalidArgument, ErrCPIPDASignerMismatch, pda)
		}

		pdaSigners[pda] = true
	}

	return pdaSigners, nil
}

// resolveAndValidateAccounts builds the callee's account list. The callee
// may hold the same or fewer privileges than the caller, plus signer status
// for the caller's PDAs. Repeated keys share one AccountInfo.
func (ctx *ExecutionContext) resolveAndValidateAccounts(ix types.Instruction, pdaSigners map[types.Pubkey]bool) ([]*AccountInfo, error) {
	calleeAccounts := make([]*AccountInfo, len(ix.Accounts))
	seen := make(map[types.Pubkey]*AccountInfo, len(ix.Accounts))

	for i, meta := range ix.Accounts {
		callerAcc, err := ctx.GetAccount(meta.Pubkey)
		if err != nil {
			return nil, fmt.Errorf("%w: %v: %s", types.ErrNotEnoughAccountKeys, ErrCPIAccountNotFound, meta.Pubkey)
		}

		if meta.IsWritable && !callerAcc.IsWritable {
			return nil, fmt.Errorf("%w: writable %s", types.ErrPrivilegeEscalation, meta.Pubkey)
		}
		if meta.IsSigner && !callerAcc.IsSigner && !pdaSigners[meta.Pubkey] {
			return nil, fmt.Errorf("%w: signer %s", types.ErrPrivilegeEscalation, meta.Pubkey)
		}

		if acc, ok := seen[meta.Pubkey]; ok {
			acc.IsSigner = acc.IsSigner || meta.IsSigner
			acc.IsWritable = acc.IsWritable || meta.IsWritable
			calleeAccounts[i] = acc
			continue
		}

		acc := callerAcc.Clone()
		acc.IsSigner = meta.IsSigner
		acc.IsWritable = meta.IsWritable
		seen[meta.Pubkey] = acc
		calleeAccounts[i] = acc
	}

	return calleeAccounts, nil
}

// propagateAccountChanges copies the callee's writable accounts back into
// the caller's view.
func (ctx *ExecutionContext) propagateAccountChanges(calleeAccounts []*AccountInfo) {
	for _, calleeAcc := range calleeAccounts {
		if !calleeAcc.IsWritable {
			continue
		}
		for _, callerAcc := range ctx.Accounts {
			if callerAcc.Pubkey != calleeAcc.Pubkey {
				continue
			}
			*callerAcc.Lamports = *calleeAcc.Lamports
			callerAcc.Owner = calleeAcc.Owner
			if len(calleeAcc.Data) != len(callerAcc.Data) {
				callerAcc.Data = make([]byte, len(calleeAcc.Data))
			}
			copy(callerAcc.Data, calleeAcc.Data)
		}
	}
}
