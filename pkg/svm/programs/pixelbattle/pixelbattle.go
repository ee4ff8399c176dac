// Package pixelbattle implements the pixel battle program: a shared grid of
// colored cells that players paint for a fee, administered by the account
// that initialized it.
//
// State lives in two program derived accounts. The settings account (seed
// "settings") records the admin, the per-pixel cost and the board size. The
// board account (seed "data") holds the cells. Fees accumulate in a vault
// account chosen by the players and drained by the admin with Withdraw.
package pixelbattle

import (
	"encoding/binary"
	"fmt"

	"github.com/fortiblox/x1-pixelbattle/pkg/svm/programs/system"
	"github.com/fortiblox/x1-pixelbattle/pkg/svm/syscall"
	"github.com/fortiblox/x1-pixelbattle/pkg/types"
)

// ProgramID is the address the pixel battle program is deployed at.
var ProgramID = types.MustPubkeyFromBase58("9onZvMzqAFzSHJrLNVWfqLRFFQ5ZCGzNXB4PBxmp6z5Y")

// Compute costs on top of the runtime's CPI and logging charges.
const (
	CUBase    uint64 = 500
	CUPerCell uint64 = 1
)

// FeeSize is the length of the Draw fee body.
const FeeSize = 8

// Program implements the pixel battle program.
type Program struct {
	ProgramID types.Pubkey
}

// New creates a Program at ProgramID.
func New() *Program {
	return &Program{ProgramID: ProgramID}
}

// GetProgramID returns the program's public key.
func (p *Program) GetProgramID() types.Pubkey {
	return p.ProgramID
}

// Execute decodes one instruction and runs its handler. PDAs are derived
// under ctx.ProgramID.
func (p *Program) Execute(ctx *syscall.ExecutionContext, data []byte) error {
	if err := ctx.ConsumeComputeUnits(CUBase); err != nil {
		return err
	}

	inst, body, err := DecodeInstruction(data)
	if err != nil {
		return err
	}

	switch inst := inst.(type) {
	case *DrawInstruction:
		if len(body) != FeeSize {
			return fmt.Errorf("%w: draw fee must be %d bytes, got %d", ErrInvalidInstructionData, FeeSize, len(body))
		}
		return handleDraw(ctx, inst, binary.LittleEndian.Uint64(body))
	}

	if len(body) != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrInvalidInstructionData, len(body))
	}

	switch inst := inst.(type) {
	case *InitInstruction:
		return handleInit(ctx, inst)
	case *ClearInstruction:
		return handleClear(ctx)
	case *WithdrawInstruction:
		return handleWithdraw(ctx, inst)
	default:
		return fmt.Errorf("%w: unhandled instruction %T", ErrInvalidInstructionData, inst)
	}
}

// Process runs one instruction against accounts as a top-level call with
// the default compute budget and rent. Cross-program invocations reach the
// System Program only.
func Process(programID types.Pubkey, accounts []*syscall.AccountInfo, data []byte) error {
	ctx := syscall.NewExecutionContext(programID, accounts, data, uint64(types.DefaultComputeUnitsPerTransaction))
	ctx.SetProgramExecutor(systemExecutor{system.New()})
	return (&Program{ProgramID: programID}).Execute(ctx, data)
}

type systemExecutor struct {
	program *system.SystemProgram
}

func (e systemExecutor) ExecuteProgram(ctx *syscall.ExecutionContext) error {
	if ctx.ProgramID != e.program.GetProgramID() {
		return fmt.Errorf("%w: %s", types.ErrUnsupportedProgramID, ctx.ProgramID)
	}
	return e.program.Execute(ctx, ctx.InstructionData)
}
