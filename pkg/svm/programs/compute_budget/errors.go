package compute_budget

import "github.com/fortiblox/x1-pixelbattle/pkg/types"

// Compute Budget Program errors
var (
	// ErrInvalidInstructionData indicates the instruction data is malformed.
	ErrInvalidInstructionData = types.ErrInvalidInstructionData

	// ErrComputeUnitLimitTooHigh indicates the requested limit exceeds MaxComputeUnitLimit.
	ErrComputeUnitLimitTooHigh = types.NewHostError(types.InstructionErrorInvalidInstructionData, "compute unit limit too high")

	// ErrDuplicateInstruction indicates a budget instruction kind appeared twice in one transaction.
	ErrDuplicateInstruction = types.NewHostError(types.InstructionErrorInvalidInstructionData, "duplicate compute budget instruction")

	// ErrLoadedAccountsDataSizeExceeded indicates the transaction's accounts hold more data than its limit.
	ErrLoadedAccountsDataSizeExceeded = types.NewHostError(types.InstructionErrorInvalidArgument, "loaded accounts data size exceeded")
)
