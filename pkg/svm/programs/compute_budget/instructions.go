package compute_budget

import (
	"bytes"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"

	"github.com/fortiblox/x1-pixelbattle/pkg/types"
)

// Instruction tags. Tags 1 (heap frame) and 3 (unit price) belong to
// features this runtime does not have and are rejected.
const (
	InstructionSetComputeUnitLimit            uint8 = 2
	InstructionSetLoadedAccountsDataSizeLimit uint8 = 4
)

const (
	// MaxComputeUnitLimit is the largest limit a transaction may request.
	MaxComputeUnitLimit = uint32(types.MaxComputeUnitsPerTransaction)

	// DefaultLoadedAccountsDataSizeLimit applies when a transaction sets none (64MB).
	DefaultLoadedAccountsDataSizeLimit uint32 = 64 * 1024 * 1024
)

// Instruction is SetComputeUnitLimitInstruction or
// SetLoadedAccountsDataSizeLimitInstruction.
type Instruction interface {
	bin.BinaryMarshaler
	bin.BinaryUnmarshaler
	Tag() uint8
}

// SetComputeUnitLimitInstruction replaces the transaction's compute budget.
type SetComputeUnitLimitInstruction struct {
	Units uint32
}

// SetLoadedAccountsDataSizeLimitInstruction caps the data the transaction's
// accounts may hold in total.
type SetLoadedAccountsDataSizeLimitInstruction struct {
	Bytes uint32
}

func (*SetComputeUnitLimitInstruction) Tag() uint8 { return InstructionSetComputeUnitLimit }
func (*SetLoadedAccountsDataSizeLimitInstruction) Tag() uint8 {
	return InstructionSetLoadedAccountsDataSizeLimit
}

func (inst *SetComputeUnitLimitInstruction) MarshalWithEncoder(enc *bin.Encoder) error {
	return enc.WriteUint32(inst.Units, binary.LittleEndian)
}

func (inst *SetComputeUnitLimitInstruction) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	inst.Units, err = dec.ReadUint32(binary.LittleEndian)
	return err
}

func (inst *SetLoadedAccountsDataSizeLimitInstruction) MarshalWithEncoder(enc *bin.Encoder) error {
	return enc.WriteUint32(inst.Bytes, binary.LittleEndian)
}

func (inst *SetLoadedAccountsDataSizeLimitInstruction) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	inst.Bytes, err = dec.ReadUint32(binary.LittleEndian)
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

// DecodeInstruction decodes data, which must hold exactly one instruction.
func DecodeInstruction(data []byte) (Instruction, error) {
	dec := bin.NewBorshDecoder(data)
	tag, err := dec.ReadUint8()
	if err != nil {
		return nil, fmt.Errorf("%w: empty instruction", ErrInvalidInstructionData)
	}

	var inst Instruction
	switch tag {
	case InstructionSetComputeUnitLimit:
		inst = &SetComputeUnitLimitInstruction{}
	case InstructionSetLoadedAccountsDataSizeLimit:
		inst = &SetLoadedAccountsDataSizeLimitInstruction{}
	default:
		return nil, fmt.Errorf("%w: unsupported compute budget instruction %d", ErrInvalidInstructionData, tag)
	}

	if err := inst.UnmarshalWithDecoder(dec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInstructionData, err)
	}
	if dec.Remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrInvalidInstructionData, dec.Remaining())
	}
	return inst, nil
}

// NewSetComputeUnitLimitInstruction builds a SetComputeUnitLimit instruction.
// Budget instructions take no accounts.
func NewSetComputeUnitLimitInstruction(units uint32) (types.Instruction, error) {
	data, err := EncodeInstruction(&SetComputeUnitLimitInstruction{Units: units})
	if err != nil {
		return types.Instruction{}, err
	}
	return types.Instruction{ProgramID: ProgramID, Data: data}, nil
}

// NewSetLoadedAccountsDataSizeLimitInstruction builds a
// SetLoadedAccountsDataSizeLimit instruction.
func NewSetLoadedAccountsDataSizeLimitInstruction(limit uint32) (types.Instruction, error) {
	data, err := EncodeInstruction(&SetLoadedAccountsDataSizeLimitInstruction{Bytes: limit})
	if err != nil {
		return types.Instruction{}, err
	}
	return types.Instruction{ProgramID: ProgramID, Data: data}, nil
}
