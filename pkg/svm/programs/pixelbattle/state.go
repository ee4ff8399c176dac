package pixelbattle

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf8"

	bin "github.com/gagliardetto/binary"

	"github.com/fortiblox/x1-pixelbattle/pkg/svm/programs/system"
	"github.com/fortiblox/x1-pixelbattle/pkg/svm/syscall"
	"github.com/fortiblox/x1-pixelbattle/pkg/types"
)

// PDA seeds.
const (
	SettingsSeed = "settings"
	BoardSeed    = "data"
)

// DefaultColor is the color of an untouched cell.
const DefaultColor = "#FFFFFF"

// SettingsSize is the encoded size of Settings:
// cost u64 | admin [32]byte | width u32 | height u32.
const SettingsSize = 8 + 32 + 4 + 4

// Settings holds the game configuration.
type Settings struct {
	Cost   uint64
	Admin  types.Pubkey
	Width  uint32
	Height uint32
}

// MarshalWithEncoder implements bin.BinaryMarshaler.
func (s *Settings) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteUint64(s.Cost, binary.LittleEndian); err != nil {
		return err
	}
	if err := enc.WriteBytes(s.Admin[:], false); err != nil {
		return err
	}
	if err := enc.WriteUint32(s.Width, binary.LittleEndian); err != nil {
		return err
	}
	return enc.WriteUint32(s.Height, binary.LittleEndian)
}

// UnmarshalWithDecoder implements bin.BinaryUnmarshaler.
func (s *Settings) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if s.Cost, err = dec.ReadUint64(binary.LittleEndian); err != nil {
		return err
	}
	admin, err := dec.ReadNBytes(32)
	if err != nil {
		return err
	}
	copy(s.Admin[:], admin)
	if s.Width, err = dec.ReadUint32(binary.LittleEndian); err != nil {
		return err
	}
	s.Height, err = dec.ReadUint32(binary.LittleEndian)
	return err
}

// Marshal encodes the settings.
func (s *Settings) Marshal() ([]byte, error) {
	return marshal(s)
}

// UnmarshalSettings decodes settings from the start of data. Trailing bytes
// are ignored.
func UnmarshalSettings(data []byte) (*Settings, error) {
	var s Settings
	if err := s.UnmarshalWithDecoder(bin.NewBorshDecoder(data)); err != nil {
		return nil, fmt.Errorf("%w: settings: %v", ErrInvalidAccountData, err)
	}
	return &s, nil
}

// Cell is one pixel of the board.
type Cell struct {
	Writer types.Pubkey
	Color  string
}

// DefaultCell returns an unwritten cell.
func DefaultCell() Cell {
	return Cell{Color: DefaultColor}
}

// MarshalWithEncoder implements bin.BinaryMarshaler.
func (c *Cell) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteBytes(c.Writer[:], false); err != nil {
		return err
	}
	return writeString(enc, c.Color)
}

// UnmarshalWithDecoder implements bin.BinaryUnmarshaler.
func (c *Cell) UnmarshalWithDecoder(dec *bin.Decoder) error {
	writer, err := dec.ReadNBytes(32)
	if err != nil {
		return err
	}
	copy(c.Writer[:], writer)
	c.Color, err = readString(dec)
	return err
}

// cellMinSize is the encoded size of a cell with an empty color.
const cellMinSize = 32 + 4

// Board is the pixel grid, indexed Field[y][x].
type Board struct {
	Field [][]Cell
}

// NewBoard builds a board of height rows, each holding width default cells.
func NewBoard(width, height uint32) *Board {
	field := make([][]Cell, 0, height)
	for y := uint32(0); y < height; y++ {
		row := make([]Cell, 0, width)
		for x := uint32(0); x < width; x++ {
			row = append(row, DefaultCell())
		}
		field = append(field, row)
	}
	return &Board{Field: field}
}

// boardFits reports whether a fresh width x height board fits in one
// account, without computing a size that could overflow.
func boardFits(width, height uint32) bool {
	row := 4 + uint64(width)*uint64(cellMinSize+len(DefaultColor))
	return height == 0 || row <= (system.MaxAccountDataSize-4)/uint64(height)
}

// boardCost is the compute charged for building a board: one unit per cell
// and one per row.
func boardCost(width, height uint32) uint64 {
	return (uint64(width) + 1) * uint64(height) * CUPerCell
}

// BoardSize is the encoded size of a fresh width x height board.
func BoardSize(width, height uint32) uint64 {
	cell := uint64(cellMinSize + len(DefaultColor))
	return 4 + uint64(height)*(4+uint64(width)*cell)
}

// MarshalWithEncoder implements bin.BinaryMarshaler.
func (b *Board) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteUint32(uint32(len(b.Field)), binary.LittleEndian); err != nil {
		return err
	}
	for _, row := range b.Field {
		if err := enc.WriteUint32(uint32(len(row)), binary.LittleEndian); err != nil {
			return err
		}
		for i := range row {
			if err := row[i].MarshalWithEncoder(enc); err != nil {
				return err
			}
		}
	}
	return nil
}

// UnmarshalWithDecoder implements bin.BinaryUnmarshaler.
func (b *Board) UnmarshalWithDecoder(dec *bin.Decoder) error {
	rows, err := readLength(dec, 4)
	if err != nil {
		return err
	}
	b.Field = make([][]Cell, 0, rows)
	for y := 0; y < rows; y++ {
		cols, err := readLength(dec, cellMinSize)
		if err != nil {
			return err
		}
		row := make([]Cell, cols)
		for x := range row {
			if err := row[x].UnmarshalWithDecoder(dec); err != nil {
				return err
			}
		}
		b.Field = append(b.Field, row)
	}
	return nil
}

// Marshal encodes the board.
func (b *Board) Marshal() ([]byte, error) {
	return marshal(b)
}

// UnmarshalBoard decodes a board from the start of data. Trailing bytes are
// ignored.
func UnmarshalBoard(data []byte) (*Board, error) {
	var b Board
	if err := b.UnmarshalWithDecoder(bin.NewBorshDecoder(data)); err != nil {
		return nil, fmt.Errorf("%w: board: %v", ErrInvalidAccountData, err)
	}
	return &b, nil
}

// Render writes the board as rows of colors, marking written cells with *.
func (b *Board) Render(w io.Writer) error {
	for _, row := range b.Field {
		for x, cell := range row {
			if x > 0 {
				if _, err := io.WriteString(w, " "); err != nil {
					return err
				}
			}
			mark := " "
			if !cell.Writer.IsZero() {
				mark = "*"
			}
			if _, err := fmt.Fprintf(w, "%-7s%s", cell.Color, mark); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}
	return nil
}

// SettingsAddress derives the canonical settings address and bump.
func SettingsAddress(programID types.Pubkey) (types.Pubkey, uint8) {
	return mustDerive(programID, SettingsSeed)
}

// IsSettingsAddress reports whether addr is the canonical settings address.
func IsSettingsAddress(programID, addr types.Pubkey) bool {
	pda, _ := SettingsAddress(programID)
	return pda == addr
}

// BoardAddress derives the canonical board address and bump.
func BoardAddress(programID types.Pubkey) (types.Pubkey, uint8) {
	return mustDerive(programID, BoardSeed)
}

// IsBoardAddress reports whether addr is the canonical board address.
func IsBoardAddress(programID, addr types.Pubkey) bool {
	pda, _ := BoardAddress(programID)
	return pda == addr
}

// checkAddress charges ctx what FindProgramAddress spends deriving the
// canonical address and returns kind if addr is not that address.
func checkAddress(ctx *syscall.ExecutionContext, derive func(types.Pubkey) (types.Pubkey, uint8), addr types.Pubkey, kind Error) (uint8, error) {
	pda, bump := derive(ctx.ProgramID)
	if err := ctx.ConsumeComputeUnits(uint64(256-int(bump)) * syscall.CUFindPDAPerIter); err != nil {
		return 0, err
	}
	if addr != pda {
		return 0, kind
	}
	return bump, nil
}

func mustDerive(programID types.Pubkey, seed string) (types.Pubkey, uint8) {
	pda, bump, found := syscall.DerivePDA(programID, seed)
	if !found {
		// Finding no off-curve bump among 256 tries has negligible probability.
		panic(fmt.Sprintf("no program address for seed %q", seed))
	}
	return pda, bump
}

// writeState stores encoded state at the start of an account's fixed-size
// data and zero-fills the rest.
func writeState(acc *syscall.AccountInfo, encoded []byte) error {
	if len(encoded) > len(acc.Data) {
		return fmt.Errorf("%w: need %d bytes, account holds %d", ErrAccountDataTooSmall, len(encoded), len(acc.Data))
	}
	n := copy(acc.Data, encoded)
	clear(acc.Data[n:])
	return nil
}

func marshal(v bin.BinaryMarshaler) ([]byte, error) {
	var buf bytes.Buffer
	if err := v.MarshalWithEncoder(bin.NewBorshEncoder(&buf)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeString(enc *bin.Encoder, s string) error {
	if err := enc.WriteUint32(uint32(len(s)), binary.LittleEndian); err != nil {
		return err
	}
	return enc.WriteBytes([]byte(s), false)
}

func readString(dec *bin.Decoder) (string, error) {
	n, err := readLength(dec, 1)
	if err != nil {
		return "", err
	}
	b, err := dec.ReadNBytes(n)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("string is not valid UTF-8")
	}
	return string(b), nil
}

// readLength reads a u32 length prefix and rejects lengths whose elements
// could not fit in the remaining input.
func readLength(dec *bin.Decoder, minElemSize int) (int, error) {
	n, err := dec.ReadUint32(binary.LittleEndian)
	if err != nil {
		return 0, err
	}
	if uint64(n)*uint64(minElemSize) > uint64(dec.Remaining()) {
		return 0, fmt.Errorf("length %d exceeds remaining %d bytes", n, dec.Remaining())
	}
	return int(n), nil
}
