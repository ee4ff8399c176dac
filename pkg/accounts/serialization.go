package accounts

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/fortiblox/x1-pixelbattle/pkg/types"
)

// Serialization format:
// - lamports:   8 bytes (little-endian uint64)
// - data_len:   4 bytes (little-endian uint32)
// - data:       data_len bytes
// - owner:      32 bytes
// - executable: 1 byte (0 or 1)
// - rent_epoch: 8 bytes (little-endian uint64)
//
// BadgerDB stores this encoding zstd-compressed. Board accounts are mostly
// repeated default cells and compress well.

const (
	serializationHeaderSize = 8 + 4      // lamports + data_len
	serializationFooterSize = 32 + 1 + 8 // owner + executable + rent_epoch
	serializationMinSize    = serializationHeaderSize + serializationFooterSize
)

var (
	// ErrInvalidAccountData is returned when account data is malformed.
	ErrInvalidAccountData = errors.New("invalid account data")
)

var (
	recordEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	recordDecoder, _ = zstd.NewReader(nil)
)

// SerializeAccount serializes an account to binary format.
func SerializeAccount(account *types.Account) ([]byte, error) {
	if account == nil {
		return nil, errors.New("cannot serialize nil account")
	}

	dataLen := len(account.Data)
	buf := make([]byte, serializationMinSize+dataLen)

	binary.LittleEndian.PutUint64(buf[0:], uint64(account.Lamports))
	binary.LittleEndian.PutUint32(buf[8:], uint32(dataLen))
	offset := serializationHeaderSize
	offset += copy(buf[offset:], account.Data)
	offset += copy(buf[offset:], account.Owner[:])
	if account.Executable {
		buf[offset] = 1
	}
	offset++
	binary.LittleEndian.PutUint64(buf[offset:], uint64(account.RentEpoch))

	return buf, nil
}

// DeserializeAccount deserializes an account from binary format.
func DeserializeAccount(data []byte) (*types.Account, error) {
	if len(data) < serializationMinSize {
		return nil, fmt.Errorf("%w: data too short, need at least %d bytes, got %d",
			ErrInvalidAccountData, serializationMinSize, len(data))
	}

	lamports := types.Lamports(binary.LittleEndian.Uint64(data[0:]))
	dataLen := int(binary.LittleEndian.Uint32(data[8:]))

	expectedSize := serializationMinSize + dataLen
	if len(data) != expectedSize {
		return nil, fmt.Errorf("%w: data length mismatch, expected %d bytes, got %d",
			ErrInvalidAccountData, expectedSize, len(data))
	}

	offset := serializationHeaderSize
	var accountData []byte
	if dataLen > 0 {
		accountData = make([]byte, dataLen)
		copy(accountData, data[offset:offset+dataLen])
		offset += dataLen
	}

	var owner types.Pubkey
	copy(owner[:], data[offset:offset+32])
	offset += 32

	executable := data[offset] != 0
	offset++

	return &types.Account{
		Lamports:   lamports,
		Data:       accountData,
		Owner:      owner,
		Executable: executable,
		RentEpoch:  types.Epoch(binary.LittleEndian.Uint64(data[offset:])),
	}, nil
}

// encodeRecord serializes and compresses an account for storage.
func encodeRecord(account *types.Account) ([]byte, error) {
	raw, err := SerializeAccount(account)
	if err != nil {
		return nil, err
	}
	return recordEncoder.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
}

// decodeRecord reverses encodeRecord.
func decodeRecord(val []byte) (*types.Account, error) {
	raw, err := recordDecoder.DecodeAll(val, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAccountData, err)
	}
	return DeserializeAccount(raw)
}
