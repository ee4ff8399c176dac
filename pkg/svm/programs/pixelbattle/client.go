package pixelbattle

import (
	"encoding/binary"

	"github.com/fortiblox/x1-pixelbattle/pkg/types"
)

// NewInitInstruction builds an Init instruction for the game at programID.
func NewInitInstruction(programID, admin types.Pubkey, width, height uint32, cost uint64) (types.Instruction, error) {
	data, err := EncodeInstruction(&InitInstruction{Width: width, Height: height, Cost: cost})
	if err != nil {
		return types.Instruction{}, err
	}
	settings, _ := SettingsAddress(programID)
	board, _ := BoardAddress(programID)
	return types.Instruction{
		ProgramID: programID,
		Accounts: []types.AccountMeta{
			types.NewAccountMeta(admin, true, true),
			types.NewAccountMeta(settings, false, true),
			types.NewAccountMeta(board, false, true),
			types.NewAccountMeta(types.SysvarRentID, false, false),
			types.NewAccountMeta(types.SystemProgramID, false, false),
		},
		Data: data,
	}, nil
}

// NewClearInstruction builds a Clear instruction.
func NewClearInstruction(programID, admin types.Pubkey) (types.Instruction, error) {
	data, err := EncodeInstruction(&ClearInstruction{})
	if err != nil {
		return types.Instruction{}, err
	}
	settings, _ := SettingsAddress(programID)
	board, _ := BoardAddress(programID)
	return types.Instruction{
		ProgramID: programID,
		Accounts: []types.AccountMeta{
			types.NewAccountMeta(admin, true, true),
			types.NewAccountMeta(settings, false, false),
			types.NewAccountMeta(board, false, true),
		},
		Data: data,
	}, nil
}

// NewWithdrawInstruction builds a Withdraw instruction moving cost lamports
// from vault to to. vaultSigns must be set when the vault is a system
// account.
func NewWithdrawInstruction(programID, admin, vault, to types.Pubkey, cost uint64, vaultSigns bool) (types.Instruction, error) {
	data, err := EncodeInstruction(&WithdrawInstruction{Cost: cost, To: to})
	if err != nil {
		return types.Instruction{}, err
	}
	settings, _ := SettingsAddress(programID)
	return types.Instruction{
		ProgramID: programID,
		Accounts: []types.AccountMeta{
			types.NewAccountMeta(admin, true, true),
			types.NewAccountMeta(settings, false, false),
			types.NewAccountMeta(vault, vaultSigns, true),
			types.NewAccountMeta(types.SystemProgramID, false, false),
			types.NewAccountMeta(to, false, true),
		},
		Data: data,
	}, nil
}

// NewDrawInstruction builds a Draw instruction paying amount lamports into
// vault.
func NewDrawInstruction(programID, player, vault types.Pubkey, x, y uint64, color string, amount uint64) (types.Instruction, error) {
	data, err := EncodeInstruction(&DrawInstruction{X: x, Y: y, Color: color})
	if err != nil {
		return types.Instruction{}, err
	}
	data = binary.LittleEndian.AppendUint64(data, amount)

	settings, _ := SettingsAddress(programID)
	board, _ := BoardAddress(programID)
	return types.Instruction{
		ProgramID: programID,
		Accounts: []types.AccountMeta{
			types.NewAccountMeta(player, true, true),
			types.NewAccountMeta(settings, false, false),
			types.NewAccountMeta(board, false, true),
			types.NewAccountMeta(vault, false, true),
			types.NewAccountMeta(types.SystemProgramID, false, false),
		},
		Data: data,
	}, nil
}
