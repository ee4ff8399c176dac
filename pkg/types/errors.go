package types

import (
	"errors"
	"fmt"
)

// InstructionErrorKey is the stable name of a host-level instruction error.
type InstructionErrorKey string

const (
	InstructionErrorGenericError             InstructionErrorKey = "GenericError"
	InstructionErrorInvalidArgument          InstructionErrorKey = "InvalidArgument"
	InstructionErrorInvalidInstructionData   InstructionErrorKey = "InvalidInstructionData"
	InstructionErrorInvalidAccountData       InstructionErrorKey = "InvalidAccountData"
	InstructionErrorAccountDataTooSmall      InstructionErrorKey = "AccountDataTooSmall"
	InstructionErrorInsufficientFunds        InstructionErrorKey = "InsufficientFunds"
	InstructionErrorIncorrectProgramID       InstructionErrorKey = "IncorrectProgramId"
	InstructionErrorMissingRequiredSignature InstructionErrorKey = "MissingRequiredSignature"
	InstructionErrorNotEnoughAccountKeys     InstructionErrorKey = "NotEnoughAccountKeys"
	InstructionErrorUnsupportedProgramID     InstructionErrorKey = "UnsupportedProgramId"
	InstructionErrorComputationalBudget      InstructionErrorKey = "ComputationalBudgetExceeded"
	InstructionErrorPrivilegeEscalation      InstructionErrorKey = "PrivilegeEscalation"
	InstructionErrorCallDepth                InstructionErrorKey = "CallDepth"
	InstructionErrorReentrancyNotAllowed     InstructionErrorKey = "ReentrancyNotAllowed"
	InstructionErrorAccountNotExecutable     InstructionErrorKey = "AccountNotExecutable"
	InstructionErrorModifiedProgramID        InstructionErrorKey = "ModifiedProgramId"
	InstructionErrorExternalLamportSpend     InstructionErrorKey = "ExternalAccountLamportSpend"
	InstructionErrorExternalDataModified     InstructionErrorKey = "ExternalAccountDataModified"
	InstructionErrorReadonlyLamportChange    InstructionErrorKey = "ReadonlyLamportChange"
	InstructionErrorReadonlyDataModified     InstructionErrorKey = "ReadonlyDataModified"
	InstructionErrorExecutableModified       InstructionErrorKey = "ExecutableModified"
	InstructionErrorUnbalancedInstruction    InstructionErrorKey = "UnbalancedInstruction"
	InstructionErrorAccountAlreadyInUse      InstructionErrorKey = "AccountAlreadyInUse"
	InstructionErrorInsufficientForRent      InstructionErrorKey = "InsufficientFundsForRent"
	InstructionErrorCustom                   InstructionErrorKey = "Custom"
)

// Keyed is implemented by errors that map onto a host InstructionErrorKey.
type Keyed interface {
	ErrorKey() InstructionErrorKey
}

// CustomCoder is implemented by program error kinds that surface to the host
// as Custom(code).
type CustomCoder interface {
	CustomCode() uint32
}

// CustomError is the numerical error returned by a non-builtin program.
type CustomError uint32

func (c CustomError) Error() string {
	return fmt.Sprintf("custom program error: 0x%x", uint32(c))
}

// ErrorKey implements Keyed.
func (c CustomError) ErrorKey() InstructionErrorKey {
	return InstructionErrorCustom
}

// CustomCode implements CustomCoder.
func (c CustomError) CustomCode() uint32 {
	return uint32(c)
}

// InstructionError records which instruction of a transaction failed.
type InstructionError struct {
	Index int
	Err   error
}

func (i InstructionError) Error() string {
	return fmt.Sprintf("Error processing Instruction %d: %v", i.Index, i.Err)
}

// Unwrap returns the underlying error.
func (i InstructionError) Unwrap() error {
	return i.Err
}

// ErrorKey returns the host key of the wrapped error, or GenericError.
func (i InstructionError) ErrorKey() InstructionErrorKey {
	var keyed Keyed
	if errors.As(i.Err, &keyed) {
		return keyed.ErrorKey()
	}
	return InstructionErrorGenericError
}

// CustomError returns the program's custom code, if any.
func (i InstructionError) CustomError() *CustomError {
	var coder CustomCoder
	if errors.As(i.Err, &coder) {
		ce := CustomError(coder.CustomCode())
		return &ce
	}
	return nil
}

// HostError is a builtin error kind with a stable host key.
type HostError struct {
	key InstructionErrorKey
	msg string
}

// NewHostError creates a HostError.
func NewHostError(key InstructionErrorKey, msg string) *HostError {
	return &HostError{key: key, msg: msg}
}

func (e *HostError) Error() string {
	return e.msg
}

// ErrorKey implements Keyed.
func (e *HostError) ErrorKey() InstructionErrorKey {
	return e.key
}

// Host errors shared by every builtin program.
var (
	ErrInvalidArgument          = NewHostError(InstructionErrorInvalidArgument, "invalid argument")
	ErrInvalidInstructionData   = NewHostError(InstructionErrorInvalidInstructionData, "invalid instruction data")
	ErrInvalidAccountData       = NewHostError(InstructionErrorInvalidAccountData, "invalid account data")
	ErrAccountDataTooSmall      = NewHostError(InstructionErrorAccountDataTooSmall, "account data too small")
	ErrInsufficientFunds        = NewHostError(InstructionErrorInsufficientFunds, "insufficient funds")
	ErrIncorrectProgramID       = NewHostError(InstructionErrorIncorrectProgramID, "incorrect program id")
	ErrMissingRequiredSignature = NewHostError(InstructionErrorMissingRequiredSignature, "missing required signature")
	ErrNotEnoughAccountKeys     = NewHostError(InstructionErrorNotEnoughAccountKeys, "not enough account keys")
	ErrUnsupportedProgramID     = NewHostError(InstructionErrorUnsupportedProgramID, "unsupported program id")
	ErrComputeBudgetExceeded    = NewHostError(InstructionErrorComputationalBudget, "computational budget exceeded")
	ErrPrivilegeEscalation      = NewHostError(InstructionErrorPrivilegeEscalation, "cross-program invocation with unauthorized signer or writable account")
	ErrCallDepth                = NewHostError(InstructionErrorCallDepth, "cross-program invocation call depth too deep")
	ErrReentrancyNotAllowed     = NewHostError(InstructionErrorReentrancyNotAllowed, "cross-program invocation reentrancy not allowed")
	ErrAccountNotExecutable     = NewHostError(InstructionErrorAccountNotExecutable, "account is not executable")
	ErrModifiedProgramID        = NewHostError(InstructionErrorModifiedProgramID, "instruction illegally modified the program id of an account")
	ErrExternalLamportSpend     = NewHostError(InstructionErrorExternalLamportSpend, "instruction spent from the balance of an account it does not own")
	ErrExternalDataModified     = NewHostError(InstructionErrorExternalDataModified, "instruction modified data of an account it does not own")
	ErrReadonlyLamportChange    = NewHostError(InstructionErrorReadonlyLamportChange, "instruction changed the balance of a read-only account")
	ErrReadonlyDataModified     = NewHostError(InstructionErrorReadonlyDataModified, "instruction modified data of a read-only account")
	ErrExecutableModified       = NewHostError(InstructionErrorExecutableModified, "instruction changed executable bit of an account")
	ErrUnbalancedInstruction    = NewHostError(InstructionErrorUnbalancedInstruction, "sum of account balances before and after instruction do not match")
	ErrAccountAlreadyInUse      = NewHostError(InstructionErrorAccountAlreadyInUse, "account already in use")
	ErrInsufficientForRent      = NewHostError(InstructionErrorInsufficientForRent, "insufficient funds for rent")
)
