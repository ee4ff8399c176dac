package pixelbattle

import (
	"fmt"

	"github.com/fortiblox/x1-pixelbattle/pkg/types"
)

// Error is a pixel battle failure kind. It reaches the host as Custom(code),
// where code is the kind's ordinal.
type Error uint32

// Error kinds, in code order.
const (
	InvalidSettingsAccount Error = iota
	InvalidDataAccount
	AlreadyInit
	NotOwner
	NotEnough
)

func (e Error) Error() string {
	switch e {
	case InvalidSettingsAccount:
		return "invalid settings account"
	case InvalidDataAccount:
		return "invalid data account"
	case AlreadyInit:
		return "game already initialized"
	case NotOwner:
		return "signer is not the game admin"
	case NotEnough:
		return "not enough lamports"
	default:
		return fmt.Sprintf("unknown pixel battle error %d", uint32(e))
	}
}

// Code returns the custom error code reported to the host.
func (e Error) Code() uint32 {
	return uint32(e)
}

// CustomCode implements types.CustomCoder.
func (e Error) CustomCode() uint32 {
	return uint32(e)
}

// ErrorKey implements types.Keyed.
func (e Error) ErrorKey() types.InstructionErrorKey {
	return types.InstructionErrorCustom
}

// Host errors the program raises. They pass through to the host unchanged.
var (
	ErrMissingRequiredSignature = types.ErrMissingRequiredSignature
	ErrInvalidInstructionData   = types.ErrInvalidInstructionData
	ErrInvalidAccountData       = types.ErrInvalidAccountData
	ErrAccountDataTooSmall      = types.ErrAccountDataTooSmall
	ErrInvalidArgument          = types.ErrInvalidArgument
	ErrIncorrectProgramID       = types.ErrIncorrectProgramID
)
