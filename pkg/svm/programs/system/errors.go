package system

import "github.com/fortiblox/x1-pixelbattle/pkg/types"

// System Program errors. Each maps onto a stable host error key so callers
// can match them with errors.Is and the runtime can report them.
var (
	// ErrInsufficientFunds indicates the source account has insufficient lamports.
	ErrInsufficientFunds = types.ErrInsufficientFunds

	// ErrAccountAlreadyExists indicates an account already exists at the address.
	ErrAccountAlreadyExists = types.ErrAccountAlreadyInUse

	// ErrAccountNotRentExempt indicates the account would not be rent exempt.
	ErrAccountNotRentExempt = types.ErrInsufficientForRent

	// ErrInvalidAccountOwner indicates the account owner is invalid for this operation.
	ErrInvalidAccountOwner = types.ErrIncorrectProgramID

	// ErrInvalidInstructionData indicates the instruction data is malformed.
	ErrInvalidInstructionData = types.ErrInvalidInstructionData

	// ErrMissingRequiredSignature indicates a required signature is missing.
	ErrMissingRequiredSignature = types.ErrMissingRequiredSignature

	// ErrAccountNotWritable indicates a required writable account is not writable.
	ErrAccountNotWritable = types.ErrInvalidArgument

	// ErrAccountDataTooLarge indicates the allocated space exceeds maximum.
	ErrAccountDataTooLarge = types.ErrInvalidArgument

	// ErrTransferFromDataAccount indicates a transfer source carries data.
	ErrTransferFromDataAccount = types.ErrInvalidArgument
)
