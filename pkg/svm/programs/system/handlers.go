package system

import (
	"fmt"

	"github.com/fortiblox/x1-pixelbattle/pkg/svm/syscall"
	"github.com/fortiblox/x1-pixelbattle/pkg/types"
)

// Maximum account data size allowed
const MaxAccountDataSize = 10 * 1024 * 1024 // 10 MB

// handleCreateAccount handles the CreateAccount instruction.
// Account layout:
//
//	[0] funding account (signer, writable)
//	[1] new account (signer, writable)
func handleCreateAccount(ctx *syscall.ExecutionContext, inst *CreateAccountInstruction) error {
	fundingAcc, err := writableSigner(ctx, 0, "funding account")
	if err != nil {
		return err
	}
	newAcc, err := writableSigner(ctx, 1, "new account")
	if err != nil {
		return err
	}

	if *newAcc.Lamports > 0 || len(newAcc.Data) > 0 || newAcc.Owner != types.SystemProgramID {
		return fmt.Errorf("%w: %s", ErrAccountAlreadyExists, newAcc.Pubkey)
	}

	if inst.Space > MaxAccountDataSize {
		return fmt.Errorf("%w: space %d exceeds %d", ErrAccountDataTooLarge, inst.Space, MaxAccountDataSize)
	}

	rentExemptMinimum := ctx.Rent.MinimumBalance(inst.Space)
	if types.Lamports(inst.Lamports) < rentExemptMinimum {
		return fmt.Errorf("%w: need %d lamports for rent exemption", ErrAccountNotRentExempt, rentExemptMinimum)
	}

	if *fundingAcc.Lamports < inst.Lamports {
		return fmt.Errorf("%w: need %d lamports, have %d", ErrInsufficientFunds, inst.Lamports, *fundingAcc.Lamports)
	}

	*fundingAcc.Lamports -= inst.Lamports
	*newAcc.Lamports += inst.Lamports
	newAcc.Data = make([]byte, inst.Space)
	newAcc.Owner = inst.Owner

	return nil
}

// handleAssign handles the Assign instruction.
// Account layout:
//
//	[0] account to assign (signer, writable)
func handleAssign(ctx *syscall.ExecutionContext, inst *AssignInstruction) error {
	acc, err := writableSigner(ctx, 0, "account to assign")
	if err != nil {
		return err
	}

	if acc.Owner == inst.Owner {
		return nil
	}
	if acc.Owner != types.SystemProgramID {
		return fmt.Errorf("%w: account must be owned by System Program", ErrInvalidAccountOwner)
	}

	acc.Owner = inst.Owner
	return nil
}

// handleTransfer handles the Transfer instruction.
// Account layout:
//
//	[0] source account (signer, writable)
//	[1] destination account (writable)
func handleTransfer(ctx *syscall.ExecutionContext, inst *TransferInstruction) error {
	sourceAcc, err := writableSigner(ctx, 0, "source account")
	if err != nil {
		return err
	}

	destAcc, err := ctx.GetAccountByIndex(1)
	if err != nil {
		return err
	}
	if !destAcc.IsWritable {
		return fmt.Errorf("%w: destination account is not writable", ErrAccountNotWritable)
	}

	if len(sourceAcc.Data) > 0 {
		return fmt.Errorf("%w: transfer source must not carry data", ErrTransferFromDataAccount)
	}

	if *sourceAcc.Lamports < inst.Lamports {
		return fmt.Errorf("%w: need %d lamports, have %d", ErrInsufficientFunds, inst.Lamports, *sourceAcc.Lamports)
	}

	*sourceAcc.Lamports -= inst.Lamports
	*destAcc.Lamports += inst.Lamports

	return nil
}

// handleAllocate handles the Allocate instruction.
// Account layout:
//
//	[0] account to allocate (signer, writable)
func handleAllocate(ctx *syscall.ExecutionContext, inst *AllocateInstruction) error {
	acc, err := writableSigner(ctx, 0, "account to allocate")
	if err != nil {
		return err
	}

	if acc.Owner != types.SystemProgramID {
		return fmt.Errorf("%w: account must be owned by System Program", ErrInvalidAccountOwner)
	}
	if len(acc.Data) > 0 {
		return fmt.Errorf("%w: account already has data", ErrAccountAlreadyExists)
	}
	if inst.Space > MaxAccountDataSize {
		return fmt.Errorf("%w: space %d exceeds %d", ErrAccountDataTooLarge, inst.Space, MaxAccountDataSize)
	}

	acc.Data = make([]byte, inst.Space)
	return nil
}

// writableSigner fetches the account at index and checks it signed and is
// writable.
func writableSigner(ctx *syscall.ExecutionContext, index int, what string) (*syscall.AccountInfo, error) {
	acc, err := ctx.GetAccountByIndex(index)
	if err != nil {
		return nil, err
	}
	if !acc.IsSigner {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequiredSignature, what)
	}
	if !acc.IsWritable {
		return nil, fmt.Errorf("%w: %s is not writable", ErrAccountNotWritable, what)
	}
	return acc, nil
}
