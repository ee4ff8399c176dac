// Package compute_budget implements the Compute Budget Program.
//
// The bank reads budget instructions before any instruction runs, so the
// limits they set hold for the whole transaction wherever they appear in
// it. Executed in place they only check their own encoding.
package compute_budget

import (
	"fmt"

	"github.com/fortiblox/x1-pixelbattle/pkg/svm/syscall"
	"github.com/fortiblox/x1-pixelbattle/pkg/types"
)

// ProgramID is the program ID for the Compute Budget Program.
var ProgramID = types.MustPubkeyFromBase58("ComputeBudget111111111111111111111111111111")

// ComputeBudgetProgram implements the Compute Budget Program.
type ComputeBudgetProgram struct {
	ProgramID types.Pubkey
}

// New creates a new ComputeBudgetProgram instance.
func New() *ComputeBudgetProgram {
	return &ComputeBudgetProgram{ProgramID: ProgramID}
}

// GetProgramID returns the Compute Budget Program's public key.
func (p *ComputeBudgetProgram) GetProgramID() types.Pubkey {
	return p.ProgramID
}

// Execute validates a budget instruction. Its effect was applied when the
// transaction was loaded.
func (p *ComputeBudgetProgram) Execute(ctx *syscall.ExecutionContext, data []byte) error {
	_, err := DecodeInstruction(data)
	return err
}

// Budget holds the limits a transaction runs under.
type Budget struct {
	ComputeUnitLimit            types.ComputeUnits
	LoadedAccountsDataSizeLimit uint64
}

// DefaultBudget returns the budget of a transaction with no budget
// instructions, given the bank's configured compute units.
func DefaultBudget(computeUnits types.ComputeUnits) Budget {
	return Budget{
		ComputeUnitLimit:            computeUnits,
		LoadedAccountsDataSizeLimit: uint64(DefaultLoadedAccountsDataSizeLimit),
	}
}

// FromMessage applies every budget instruction in msg on top of
// DefaultBudget(computeUnits). Each kind may appear once. Errors are
// types.InstructionError carrying the offending instruction's index.
func FromMessage(msg *types.Message, computeUnits types.ComputeUnits) (Budget, error) {
	budget := DefaultBudget(computeUnits)
	seen := make(map[uint8]bool)

	for i, compiled := range msg.Instructions {
		if int(compiled.ProgramIDIndex) >= len(msg.AccountKeys) || msg.AccountKeys[compiled.ProgramIDIndex] != ProgramID {
			continue
		}

		inst, err := DecodeInstruction(compiled.Data)
		if err != nil {
			return Budget{}, types.InstructionError{Index: i, Err: err}
		}
		if seen[inst.Tag()] {
			return Budget{}, types.InstructionError{Index: i, Err: ErrDuplicateInstruction}
		}
		seen[inst.Tag()] = true

		switch inst := inst.(type) {
		case *SetComputeUnitLimitInstruction:
			if inst.Units > MaxComputeUnitLimit {
				return Budget{}, types.InstructionError{
					Index: i,
					Err:   fmt.Errorf("%w: got %d (max %d)", ErrComputeUnitLimitTooHigh, inst.Units, MaxComputeUnitLimit),
				}
			}
			budget.ComputeUnitLimit = types.ComputeUnits(inst.Units)
		case *SetLoadedAccountsDataSizeLimitInstruction:
			budget.LoadedAccountsDataSizeLimit = uint64(inst.Bytes)
		}
	}
	return budget, nil
}

// CheckLoadedData returns ErrLoadedAccountsDataSizeExceeded if total bytes
// of account data exceed the budget.
func (b Budget) CheckLoadedData(total uint64) error {
	if total > b.LoadedAccountsDataSizeLimit {
		return fmt.Errorf("%w: %d bytes loaded, limit %d", ErrLoadedAccountsDataSizeExceeded, total, b.LoadedAccountsDataSizeLimit)
	}
	return nil
}
