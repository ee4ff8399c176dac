package pixelbattle

import (
	"bytes"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"

	"github.com/fortiblox/x1-pixelbattle/pkg/types"
)

// Instruction tags.
const (
	InstructionInit uint8 = iota
	InstructionClear
	InstructionWithdraw
	InstructionDraw
)

// Instruction is one of InitInstruction, ClearInstruction,
// WithdrawInstruction or DrawInstruction.
type Instruction interface {
	bin.BinaryMarshaler
	bin.BinaryUnmarshaler
	Tag() uint8
}

// InitInstruction creates the settings and board accounts.
//
// Accounts:
//
//	0. [signer, writable] admin
//	1. [writable] settings PDA
//	2. [writable] board PDA
//	3. [] rent sysvar
//	4. [] system program
type InitInstruction struct {
	Width  uint32
	Height uint32
	Cost   uint64
}

// ClearInstruction resets every cell of the board.
//
// Accounts:
//
//	0. [signer] admin
//	1. [] settings PDA
//	2. [writable] board PDA
type ClearInstruction struct{}

// WithdrawInstruction moves Cost lamports from the vault to To.
//
// Accounts:
//
//	0. [signer] admin
//	1. [] settings PDA
//	2. [writable] vault, signer when system owned
//	3. [] system program
//	4. [writable] destination, equal to To
type WithdrawInstruction struct {
	Cost uint64
	To   types.Pubkey
}

// DrawInstruction paints one cell. The fee paid to the vault follows the
// encoded instruction as a little-endian u64.
//
// Accounts:
//
//	0. [signer, writable] player
//	1. [] settings PDA
//	2. [writable] board PDA
//	3. [writable] vault
//	4. [] system program
type DrawInstruction struct {
	X     uint64
	Y     uint64
	Color string
}

func (*InitInstruction) Tag() uint8     { return InstructionInit }
func (*ClearInstruction) Tag() uint8    { return InstructionClear }
func (*WithdrawInstruction) Tag() uint8 { return InstructionWithdraw }
func (*DrawInstruction) Tag() uint8     { return InstructionDraw }

func (inst *InitInstruction) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteUint32(inst.Width, binary.LittleEndian); err != nil {
		return err
	}
	if err := enc.WriteUint32(inst.Height, binary.LittleEndian); err != nil {
		return err
	}
	return enc.WriteUint64(inst.Cost, binary.LittleEndian)
}

func (inst *InitInstruction) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if inst.Width, err = dec.ReadUint32(binary.LittleEndian); err != nil {
		return err
	}
	if inst.Height, err = dec.ReadUint32(binary.LittleEndian); err != nil {
		return err
	}
	inst.Cost, err = dec.ReadUint64(binary.LittleEndian)
	return err
}

func (*ClearInstruction) MarshalWithEncoder(*bin.Encoder) error   { return nil }
func (*ClearInstruction) UnmarshalWithDecoder(*bin.Decoder) error { return nil }

func (inst *WithdrawInstruction) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteUint64(inst.Cost, binary.LittleEndian); err != nil {
		return err
	}
	return enc.WriteBytes(inst.To[:], false)
}

func (inst *WithdrawInstruction) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if inst.Cost, err = dec.ReadUint64(binary.LittleEndian); err != nil {
		return err
	}
	to, err := dec.ReadNBytes(32)
	if err != nil {
		return err
	}
	copy(inst.To[:], to)
	return nil
}

func (inst *DrawInstruction) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteUint64(inst.X, binary.LittleEndian); err != nil {
		return err
	}
	if err := enc.WriteUint64(inst.Y, binary.LittleEndian); err != nil {
		return err
	}
	return writeString(enc, inst.Color)
}

func (inst *DrawInstruction) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if inst.X, err = dec.ReadUint64(binary.LittleEndian); err != nil {
		return err
	}
	if inst.Y, err = dec.ReadUint64(binary.LittleEndian); err != nil {
		return err
	}
	inst.Color, err = readString(dec)
	return err
}

// EncodeInstruction encodes the tag followed by the instruction's fields.
func EncodeInstruction(inst Instruction) ([]byte, error) {
	var buf bytes.Buffer
	enc := bin.NewBorshEncoder(&buf)
	if err := enc.WriteUint8(inst.Tag()); err != nil {
		return nil, err
	}
	if err := inst.MarshalWithEncoder(enc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeInstruction decodes one instruction from the front of data and
// returns it with the bytes that follow it.
func DecodeInstruction(data []byte) (Instruction, []byte, error) {
	dec := bin.NewBorshDecoder(data)
	tag, err := dec.ReadUint8()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: empty instruction", ErrInvalidInstructionData)
	}

	var inst Instruction
	switch tag {
	case InstructionInit:
		inst = &InitInstruction{}
	case InstructionClear:
		inst = &ClearInstruction{}
	case InstructionWithdraw:
		inst = &WithdrawInstruction{}
	case InstructionDraw:
		inst = &DrawInstruction{}
	default:
		return nil, nil, fmt.Errorf("%w: unknown instruction %d", ErrInvalidInstructionData, tag)
	}

	if err := inst.UnmarshalWithDecoder(dec); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidInstructionData, err)
	}
	return inst, data[len(data)-dec.Remaining():], nil
}
