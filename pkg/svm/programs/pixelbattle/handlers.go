package pixelbattle

import (
	"fmt"

	"github.com/fortiblox/x1-pixelbattle/pkg/svm/programs/system"
	"github.com/fortiblox/x1-pixelbattle/pkg/svm/syscall"
	"github.com/fortiblox/x1-pixelbattle/pkg/types"
)

func handleInit(ctx *syscall.ExecutionContext, inst *InitInstruction) error {
	accs, err := accounts(ctx, 5)
	if err != nil {
		return err
	}
	admin, settingsAcc, boardAcc, rentAcc, systemAcc := accs[0], accs[1], accs[2], accs[3], accs[4]

	settingsBump, err := checkAddress(ctx, SettingsAddress, settingsAcc.Pubkey, InvalidSettingsAccount)
	if err != nil {
		return err
	}
	boardBump, err := checkAddress(ctx, BoardAddress, boardAcc.Pubkey, InvalidDataAccount)
	if err != nil {
		return err
	}
	if !admin.IsSigner {
		return fmt.Errorf("%w: admin %s", ErrMissingRequiredSignature, admin.Pubkey)
	}
	if len(settingsAcc.Data) != 0 || len(boardAcc.Data) != 0 {
		return AlreadyInit
	}
	if rentAcc.Pubkey != types.SysvarRentID {
		return fmt.Errorf("%w: %s is not the rent sysvar", ErrInvalidArgument, rentAcc.Pubkey)
	}
	rent, err := types.DeserializeRent(rentAcc.Data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if systemAcc.Pubkey != types.SystemProgramID {
		return fmt.Errorf("%w: %s is not the system program", ErrIncorrectProgramID, systemAcc.Pubkey)
	}
	if !boardFits(inst.Width, inst.Height) {
		return fmt.Errorf("%w: %dx%d board exceeds %d bytes", ErrInvalidArgument, inst.Width, inst.Height, system.MaxAccountDataSize)
	}
	if err := ctx.ConsumeComputeUnits(boardCost(inst.Width, inst.Height)); err != nil {
		return err
	}

	settings := &Settings{
		Cost:   inst.Cost,
		Admin:  admin.Pubkey,
		Width:  inst.Width,
		Height: inst.Height,
	}
	settingsData, err := settings.Marshal()
	if err != nil {
		return err
	}
	boardData, err := NewBoard(inst.Width, inst.Height).Marshal()
	if err != nil {
		return err
	}

	if err := createStateAccount(ctx, admin, settingsAcc, rent, len(settingsData), SettingsSeed, settingsBump); err != nil {
		return err
	}
	if err := createStateAccount(ctx, admin, boardAcc, rent, len(boardData), BoardSeed, boardBump); err != nil {
		return err
	}

	if err := writeState(settingsAcc, settingsData); err != nil {
		return err
	}
	if err := writeState(boardAcc, boardData); err != nil {
		return err
	}

	return ctx.Log("Game init success")
}

// createStateAccount funds and allocates a program owned PDA through the
// System Program, signing with the PDA's seed and bump.
func createStateAccount(ctx *syscall.ExecutionContext, payer, acc *syscall.AccountInfo, rent types.Rent, space int, seed string, bump uint8) error {
	lamports := uint64(rent.MinimumBalance(uint64(space)))
	ix := system.CreateAccount(payer.Pubkey, acc.Pubkey, lamports, uint64(space), ctx.ProgramID)
	return ctx.InvokeSigned(ix, [][]byte{[]byte(seed), {bump}})
}

func handleClear(ctx *syscall.ExecutionContext) error {
	accs, err := accounts(ctx, 3)
	if err != nil {
		return err
	}
	admin, settingsAcc, boardAcc := accs[0], accs[1], accs[2]

	if !admin.IsSigner {
		return fmt.Errorf("%w: admin %s", ErrMissingRequiredSignature, admin.Pubkey)
	}
	if _, err := checkAddress(ctx, SettingsAddress, settingsAcc.Pubkey, InvalidSettingsAccount); err != nil {
		return err
	}
	if _, err := checkAddress(ctx, BoardAddress, boardAcc.Pubkey, InvalidDataAccount); err != nil {
		return err
	}

	settings, err := UnmarshalSettings(settingsAcc.Data)
	if err != nil {
		return err
	}
	if settings.Admin != admin.Pubkey {
		return NotOwner
	}
	if err := ctx.ConsumeComputeUnits(boardCost(settings.Width, settings.Height)); err != nil {
		return err
	}

	boardData, err := NewBoard(settings.Width, settings.Height).Marshal()
	if err != nil {
		return err
	}
	if err := writeState(boardAcc, boardData); err != nil {
		return err
	}

	return ctx.Log("Board cleared")
}

func handleWithdraw(ctx *syscall.ExecutionContext, inst *WithdrawInstruction) error {
	accs, err := accounts(ctx, 5)
	if err != nil {
		return err
	}
	admin, settingsAcc, vault, systemAcc, dest := accs[0], accs[1], accs[2], accs[3], accs[4]

	if !admin.IsSigner {
		return fmt.Errorf("%w: admin %s", ErrMissingRequiredSignature, admin.Pubkey)
	}
	if _, err := checkAddress(ctx, SettingsAddress, settingsAcc.Pubkey, InvalidSettingsAccount); err != nil {
		return err
	}
	settings, err := UnmarshalSettings(settingsAcc.Data)
	if err != nil {
		return err
	}
	if settings.Admin != admin.Pubkey {
		return NotOwner
	}
	if *vault.Lamports < inst.Cost {
		return NotEnough
	}
	if dest.Pubkey != inst.To {
		return fmt.Errorf("%w: destination %s, instruction names %s", ErrInvalidArgument, dest.Pubkey, inst.To)
	}

	if vault.Owner == ctx.ProgramID {
		if !vault.IsWritable || !dest.IsWritable {
			return fmt.Errorf("%w: vault and destination must be writable", ErrInvalidArgument)
		}
		if vault.Pubkey == dest.Pubkey {
			return ctx.Log("Withdraw success")
		}
		minimum := uint64(ctx.Rent.MinimumBalance(uint64(len(vault.Data))))
		if *vault.Lamports-inst.Cost < minimum {
			return NotEnough
		}
		*vault.Lamports -= inst.Cost
		*dest.Lamports += inst.Cost
		return ctx.Log("Withdraw success")
	}

	if systemAcc.Pubkey != types.SystemProgramID {
		return fmt.Errorf("%w: %s is not the system program", ErrIncorrectProgramID, systemAcc.Pubkey)
	}
	if !vault.IsSigner {
		return fmt.Errorf("%w: vault %s", ErrMissingRequiredSignature, vault.Pubkey)
	}
	if err := ctx.Invoke(system.Transfer(vault.Pubkey, dest.Pubkey, inst.Cost)); err != nil {
		return err
	}
	return ctx.Log("Withdraw success")
}

func handleDraw(ctx *syscall.ExecutionContext, inst *DrawInstruction, amount uint64) error {
	accs, err := accounts(ctx, 5)
	if err != nil {
		return err
	}
	player, settingsAcc, boardAcc, vault, systemAcc := accs[0], accs[1], accs[2], accs[3], accs[4]

	if !player.IsSigner {
		return fmt.Errorf("%w: player %s", ErrMissingRequiredSignature, player.Pubkey)
	}
	if _, err := checkAddress(ctx, SettingsAddress, settingsAcc.Pubkey, InvalidSettingsAccount); err != nil {
		return err
	}
	if _, err := checkAddress(ctx, BoardAddress, boardAcc.Pubkey, InvalidDataAccount); err != nil {
		return err
	}

	settings, err := UnmarshalSettings(settingsAcc.Data)
	if err != nil {
		return err
	}
	if amount < settings.Cost {
		return NotEnough
	}

	if systemAcc.Pubkey != types.SystemProgramID {
		return fmt.Errorf("%w: %s is not the system program", ErrIncorrectProgramID, systemAcc.Pubkey)
	}
	if err := ctx.Invoke(system.Transfer(player.Pubkey, vault.Pubkey, amount)); err != nil {
		return err
	}

	board, err := UnmarshalBoard(boardAcc.Data)
	if err != nil {
		return err
	}
	if inst.Y >= uint64(len(board.Field)) || inst.X >= uint64(len(board.Field[inst.Y])) {
		return fmt.Errorf("%w: cell (%d, %d) outside %dx%d board", ErrInvalidInstructionData, inst.X, inst.Y, settings.Width, settings.Height)
	}
	board.Field[inst.Y][inst.X] = Cell{Writer: player.Pubkey, Color: inst.Color}

	boardData, err := board.Marshal()
	if err != nil {
		return err
	}
	if err := writeState(boardAcc, boardData); err != nil {
		return err
	}

	return ctx.Log("Pixel (%d, %d) set to %s", inst.X, inst.Y, inst.Color)
}

// accounts returns the first n instruction accounts.
func accounts(ctx *syscall.ExecutionContext, n int) ([]*syscall.AccountInfo, error) {
	accs := make([]*syscall.AccountInfo, n)
	for i := range accs {
		acc, err := ctx.GetAccountByIndex(i)
		if err != nil {
			return nil, err
		}
		accs[i] = acc
	}
	return accs, nil
}
