package pixelbattle

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortiblox/x1-pixelbattle/pkg/svm/programs/system"
	"github.com/fortiblox/x1-pixelbattle/pkg/types"
)

func TestSettings_WireLayout(t *testing.T) {
	admin := types.Pubkey{1, 2, 3}
	s := &Settings{Cost: 1000, Admin: admin, Width: 2, Height: 3}

	data, err := s.Marshal()
	require.NoError(t, err)
	require.Len(t, data, SettingsSize)

	assert.Equal(t, uint64(1000), binary.LittleEndian.Uint64(data[0:8]))
	assert.Equal(t, admin[:], data[8:40])
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(data[40:44]))
	assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(data[44:48]))

	decoded, err := UnmarshalSettings(append(data, make([]byte, 16)...))
	require.NoError(t, err)
	assert.Equal(t, s, decoded)

	_, err = UnmarshalSettings(data[:SettingsSize-1])
	assert.ErrorIs(t, err, ErrInvalidAccountData)
}

func TestBoard_RoundTrip(t *testing.T) {
	board := NewBoard(3, 2)
	board.Field[1][2] = Cell{Writer: types.Pubkey{9}, Color: "red"}
	board.Field[0][0] = Cell{Writer: types.Pubkey{8}, Color: "ünïcode"}

	data, err := board.Marshal()
	require.NoError(t, err)

	decoded, err := UnmarshalBoard(data)
	require.NoError(t, err)
	assert.Equal(t, board, decoded)

	// A zero tail after the state is ignored.
	decoded, err = UnmarshalBoard(append(data, 0, 0, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, board, decoded)
}

func TestBoard_Layout(t *testing.T) {
	board := NewBoard(2, 1)
	data, err := board.Marshal()
	require.NoError(t, err)
	require.Equal(t, BoardSize(2, 1), uint64(len(data)))

	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(data[0:4]))
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(data[4:8]))
	assert.Equal(t, make([]byte, 32), data[8:40])
	assert.Equal(t, uint32(len(DefaultColor)), binary.LittleEndian.Uint32(data[40:44]))
	assert.Equal(t, DefaultColor, string(data[44:51]))
}

func TestBoardFits(t *testing.T) {
	dims := [][2]uint32{{0, 0}, {1, 1}, {100, 100}, {500, 400}, {243, 1000}, {244, 1000}, {300, 1000}, {250_000, 1}, {0, 40_000_000}}
	for _, d := range dims {
		want := BoardSize(d[0], d[1]) <= system.MaxAccountDataSize
		assert.Equal(t, want, boardFits(d[0], d[1]), "%dx%d", d[0], d[1])
	}

	assert.True(t, boardFits(^uint32(0), 0))
	assert.False(t, boardFits(^uint32(0), ^uint32(0)))
	assert.False(t, boardFits(0, ^uint32(0)))
}

func TestNewBoard(t *testing.T) {
	board := NewBoard(4, 3)
	require.Len(t, board.Field, 3)
	for _, row := range board.Field {
		require.Len(t, row, 4)
		for _, cell := range row {
			assert.Equal(t, DefaultCell(), cell)
			assert.True(t, cell.Writer.IsZero())
		}
	}
	assert.Empty(t, NewBoard(0, 0).Field)
}

func TestUnmarshalBoard_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"huge row count", []byte{0xff, 0xff, 0xff, 0xff}},
		{"huge column count", append([]byte{1, 0, 0, 0}, 0xff, 0xff, 0xff, 0x7f)},
		{"truncated cell", append([]byte{1, 0, 0, 0, 1, 0, 0, 0}, make([]byte, 20)...)},
		{"invalid utf-8", func() []byte {
			var buf bytes.Buffer
			buf.Write([]byte{1, 0, 0, 0, 1, 0, 0, 0})
			buf.Write(make([]byte, 32))
			buf.Write([]byte{2, 0, 0, 0, 0xc3, 0x28})
			return buf.Bytes()
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalBoard(tt.data)
			assert.ErrorIs(t, err, ErrInvalidAccountData)
		})
	}
}

func TestBoard_Render(t *testing.T) {
	board := NewBoard(2, 1)
	board.Field[0][1] = Cell{Writer: types.Pubkey{1}, Color: "#FF0000"}

	var buf bytes.Buffer
	require.NoError(t, board.Render(&buf))
	assert.Equal(t, "#FFFFFF  #FF0000*\n", buf.String())
}

func TestAddresses(t *testing.T) {
	settings, settingsBump := SettingsAddress(ProgramID)
	board, _ := BoardAddress(ProgramID)

	assert.NotEqual(t, settings, board)
	assert.True(t, IsSettingsAddress(ProgramID, settings))
	assert.False(t, IsSettingsAddress(ProgramID, board))
	assert.True(t, IsBoardAddress(ProgramID, board))
	assert.False(t, IsBoardAddress(ProgramID, settings))

	again, bump := SettingsAddress(ProgramID)
	assert.Equal(t, settings, again)
	assert.Equal(t, settingsBump, bump)

	otherProgram := types.Pubkey{0x42}
	moved, _ := BoardAddress(otherProgram)
	assert.NotEqual(t, board, moved)
	assert.False(t, IsBoardAddress(otherProgram, board))
}

func TestInstruction_RoundTrip(t *testing.T) {
	tests := []Instruction{
		&InitInstruction{Width: 2, Height: 2, Cost: 1000},
		&InitInstruction{Width: 0xffffffff, Height: 1, Cost: 0xffffffffffffffff},
		&ClearInstruction{},
		&WithdrawInstruction{Cost: 77, To: types.Pubkey{1, 2, 3, 4}},
		&DrawInstruction{X: 1, Y: 0, Color: "#FF0000"},
		&DrawInstruction{X: 1 << 40, Y: 3, Color: ""},
		&DrawInstruction{Color: "紅"},
	}

	for _, inst := range tests {
		data, err := EncodeInstruction(inst)
		require.NoError(t, err)
		assert.Equal(t, inst.Tag(), data[0])

		decoded, body, err := DecodeInstruction(data)
		require.NoError(t, err)
		assert.Equal(t, inst, decoded)
		assert.Empty(t, body)
	}
}

func TestInstruction_Layout(t *testing.T) {
	data, err := EncodeInstruction(&InitInstruction{Width: 2, Height: 3, Cost: 1000})
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 2, 0, 0, 0, 3, 0, 0, 0, 0xe8, 0x03, 0, 0, 0, 0, 0, 0}, data)

	data, err = EncodeInstruction(&ClearInstruction{})
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, data)

	data, err = EncodeInstruction(&DrawInstruction{X: 1, Y: 2, Color: "ab"})
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 1, 0, 0, 0, 0, 0, 0, 0, 2, 0, 0, 0, 0, 0, 0, 0, 2, 0, 0, 0, 'a', 'b'}, data)
}

func TestDecodeInstruction_Body(t *testing.T) {
	ix, err := NewDrawInstruction(ProgramID, types.Pubkey{1}, types.Pubkey{2}, 1, 0, "#FF0000", 1000)
	require.NoError(t, err)

	decoded, body, err := DecodeInstruction(ix.Data)
	require.NoError(t, err)
	assert.Equal(t, &DrawInstruction{X: 1, Y: 0, Color: "#FF0000"}, decoded)
	require.Len(t, body, FeeSize)
	assert.Equal(t, uint64(1000), binary.LittleEndian.Uint64(body))
}

func TestDecodeInstruction_Errors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"unknown tag", []byte{4}},
		{"truncated init", []byte{0, 2, 0, 0, 0}},
		{"truncated withdraw", append([]byte{2}, make([]byte, 39)...)},
		{"huge color length", append(append([]byte{3}, make([]byte, 16)...), 0xff, 0xff, 0xff, 0xff)},
		{"invalid utf-8", append(append([]byte{3}, make([]byte, 16)...), 1, 0, 0, 0, 0xff)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeInstruction(tt.data)
			assert.ErrorIs(t, err, ErrInvalidInstructionData)
		})
	}
}

func TestError_Codes(t *testing.T) {
	tests := []struct {
		err  Error
		code uint32
	}{
		{InvalidSettingsAccount, 0},
		{InvalidDataAccount, 1},
		{AlreadyInit, 2},
		{NotOwner, 3},
		{NotEnough, 4},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.code, tt.err.Code())
		assert.NotEmpty(t, tt.err.Error())

		ixErr := types.InstructionError{Index: 0, Err: tt.err}
		assert.Equal(t, types.InstructionErrorCustom, ixErr.ErrorKey())
		require.NotNil(t, ixErr.CustomError())
		assert.Equal(t, types.CustomError(tt.code), *ixErr.CustomError())

		var kind Error
		require.True(t, errors.As(ixErr, &kind))
		assert.Equal(t, tt.err, kind)
	}
}
