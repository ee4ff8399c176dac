package rpc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fortiblox/x1-pixelbattle/pkg/svm/programs/pixelbattle"
	"github.com/fortiblox/x1-pixelbattle/pkg/types"
)

// Version is reported by getVersion.
const Version = "x1-pixelbattle/0.1.0"

// Bank is the state the handlers serve. *runtime.Bank implements it.
type Bank interface {
	GetAccount(pubkey types.Pubkey) (*types.Account, error)
	GetBalance(pubkey types.Pubkey) (types.Lamports, error)
	LatestBlockhash() (types.Hash, types.Slot)
	Slot() types.Slot
	MinimumBalanceForRentExemption(dataLen uint64) types.Lamports
	ProcessTransaction(tx *types.Transaction) (*types.TransactionResult, error)
	Airdrop(pubkey types.Pubkey, lamports types.Lamports) (types.Signature, error)
}

// Handler is the function signature for RPC method handlers.
type Handler func(params json.RawMessage) (interface{}, *RPCError)

// Handlers maps RPC methods onto the bank.
type Handlers struct {
	bank               Bank
	maxRecentBlockhash uint64
	handlers           map[string]Handler
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(bank Bank) *Handlers {
	h := &Handlers{
		bank:               bank,
		maxRecentBlockhash: 150,
		handlers:           make(map[string]Handler),
	}

	h.registerHandlers()

	return h
}

// GetHandler returns the handler for a method, or nil if not found.
func (h *Handlers) GetHandler(method string) Handler {
	return h.handlers[method]
}

// registerHandlers registers all RPC method handlers.
func (h *Handlers) registerHandlers() {
	h.handlers["getAccountInfo"] = h.handleGetAccountInfo
	h.handlers["getBalance"] = h.handleGetBalance
	h.handlers["getSlot"] = h.handleGetSlot
	h.handlers["getHealth"] = h.handleGetHealth
	h.handlers["getVersion"] = h.handleGetVersion
	h.handlers["getLatestBlockhash"] = h.handleGetLatestBlockhash
	h.handlers["getMinimumBalanceForRentExemption"] = h.handleGetMinimumBalanceForRentExemption
	h.handlers["sendTransaction"] = h.handleSendTransaction
	h.handlers["requestAirdrop"] = h.handleRequestAirdrop
	h.handlers["getSettings"] = h.handleGetSettings
	h.handlers["getBoard"] = h.handleGetBoard
}

// parseParams splits a positional params array, requiring at least min
// entries.
func parseParams(params json.RawMessage, min int) ([]json.RawMessage, *RPCError) {
	var rawParams []json.RawMessage
	if len(params) > 0 {
		if err := json.Unmarshal(params, &rawParams); err != nil {
			return nil, NewRPCError(InvalidParams, "invalid params: expected array")
		}
	}
	if len(rawParams) < min {
		return nil, NewRPCError(InvalidParams, fmt.Sprintf("expected at least %d params, got %d", min, len(rawParams)))
	}
	return rawParams, nil
}

func parsePubkey(raw json.RawMessage) (types.Pubkey, *RPCError) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return types.Pubkey{}, NewRPCError(InvalidParams, "invalid pubkey parameter")
	}
	pubkey, err := DecodePubkey(s)
	if err != nil {
		return types.Pubkey{}, NewRPCError(InvalidParams, fmt.Sprintf("invalid pubkey: %v", err))
	}
	return pubkey, nil
}

// parseProgramID reads the optional {programId} options object at index i.
func parseProgramID(rawParams []json.RawMessage, i int) (types.Pubkey, *RPCError) {
	if len(rawParams) <= i {
		return pixelbattle.ProgramID, nil
	}
	var opts ProgramOptions
	if err := json.Unmarshal(rawParams[i], &opts); err != nil {
		return types.Pubkey{}, NewRPCError(InvalidParams, "invalid options")
	}
	if opts.ProgramID == "" {
		return pixelbattle.ProgramID, nil
	}
	programID, err := DecodePubkey(opts.ProgramID)
	if err != nil {
		return types.Pubkey{}, NewRPCError(InvalidParams, fmt.Sprintf("invalid programId: %v", err))
	}
	return programID, nil
}

func (h *Handlers) context() Context {
	return Context{Slot: uint64(h.bank.Slot())}
}

// handleGetAccountInfo handles the getAccountInfo RPC method.
// Params: [pubkey, {encoding, dataSlice}]
func (h *Handlers) handleGetAccountInfo(params json.RawMessage) (interface{}, *RPCError) {
	rawParams, rpcErr := parseParams(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}
	pubkey, rpcErr := parsePubkey(rawParams[0])
	if rpcErr != nil {
		return nil, rpcErr
	}

	encoding := EncodingBase64
	var dataSlice *DataSlice
	if len(rawParams) > 1 {
		var options AccountInfoOptions
		if err := json.Unmarshal(rawParams[1], &options); err != nil {
			return nil, NewRPCError(InvalidParams, "invalid options")
		}
		if options.Encoding != "" {
			if err := ValidateEncoding(options.Encoding); err != nil {
				return nil, NewRPCError(UnsupportedEncoding, err.Error())
			}
			encoding = options.Encoding
		}
		dataSlice = options.DataSlice
	}

	account, err := h.bank.GetAccount(pubkey)
	if err != nil {
		return nil, NewRPCError(InternalError, fmt.Sprintf("failed to get account: %v", err))
	}

	// If account doesn't exist, return null value
	if account == nil {
		return ContextualResult{Context: h.context(), Value: nil}, nil
	}

	encodedData, err := EncodeAccountData(SliceData(account.Data, dataSlice), encoding)
	if err != nil {
		return nil, NewRPCError(UnsupportedEncoding, err.Error())
	}

	return ContextualResult{
		Context: h.context(),
		Value: AccountInfoResult{
			Lamports:   uint64(account.Lamports),
			Data:       encodedData,
			Owner:      account.Owner.String(),
			Executable: account.Executable,
			RentEpoch:  uint64(account.RentEpoch),
			Space:      uint64(len(account.Data)),
		},
	}, nil
}

// handleGetBalance handles the getBalance RPC method.
// Params: [pubkey]
func (h *Handlers) handleGetBalance(params json.RawMessage) (interface{}, *RPCError) {
	rawParams, rpcErr := parseParams(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}
	pubkey, rpcErr := parsePubkey(rawParams[0])
	if rpcErr != nil {
		return nil, rpcErr
	}

	balance, err := h.bank.GetBalance(pubkey)
	if err != nil {
		return nil, NewRPCError(InternalError, fmt.Sprintf("failed to get account: %v", err))
	}

	return ContextualResult{Context: h.context(), Value: uint64(balance)}, nil
}

// handleGetSlot handles the getSlot RPC method.
func (h *Handlers) handleGetSlot(params json.RawMessage) (interface{}, *RPCError) {
	return uint64(h.bank.Slot()), nil
}

// handleGetHealth handles the getHealth RPC method.
func (h *Handlers) handleGetHealth(params json.RawMessage) (interface{}, *RPCError) {
	return "ok", nil
}

// handleGetVersion handles the getVersion RPC method.
func (h *Handlers) handleGetVersion(params json.RawMessage) (interface{}, *RPCError) {
	return VersionResult{Version: Version}, nil
}

// handleGetLatestBlockhash handles the getLatestBlockhash RPC method.
func (h *Handlers) handleGetLatestBlockhash(params json.RawMessage) (interface{}, *RPCError) {
	blockhash, slot := h.bank.LatestBlockhash()

	return ContextualResult{
		Context: Context{Slot: uint64(slot)},
		Value: BlockhashResult{
			Blockhash:            blockhash.String(),
			LastValidBlockHeight: uint64(slot) + h.maxRecentBlockhash,
		},
	}, nil
}

// handleGetMinimumBalanceForRentExemption handles the
// getMinimumBalanceForRentExemption RPC method.
// Params: [dataLen]
func (h *Handlers) handleGetMinimumBalanceForRentExemption(params json.RawMessage) (interface{}, *RPCError) {
	rawParams, rpcErr := parseParams(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}
	var dataLen uint64
	if err := json.Unmarshal(rawParams[0], &dataLen); err != nil {
		return nil, NewRPCError(InvalidParams, "invalid data length")
	}
	return uint64(h.bank.MinimumBalanceForRentExemption(dataLen)), nil
}

// handleSendTransaction handles the sendTransaction RPC method. The
// transaction executes synchronously; a failed transaction is reported as a
// SendTransactionError carrying its logs.
// Params: [encodedTransaction, {encoding}]
func (h *Handlers) handleSendTransaction(params json.RawMessage) (interface{}, *RPCError) {
	rawParams, rpcErr := parseParams(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}
	var encoded string
	if err := json.Unmarshal(rawParams[0], &encoded); err != nil {
		return nil, NewRPCError(InvalidParams, "invalid transaction parameter")
	}

	encoding := EncodingBase64
	if len(rawParams) > 1 {
		var options SendTransactionOptions
		if err := json.Unmarshal(rawParams[1], &options); err != nil {
			return nil, NewRPCError(InvalidParams, "invalid options")
		}
		if options.Encoding != "" {
			encoding = options.Encoding
		}
	}

	tx, err := DecodeTransaction(encoded, encoding)
	if err != nil {
		return nil, NewRPCError(InvalidParams, fmt.Sprintf("invalid transaction: %v", err))
	}

	result, err := h.bank.ProcessTransaction(tx)
	if err != nil {
		return nil, NewRPCError(InternalError, fmt.Sprintf("failed to process transaction: %v", err))
	}
	if !result.Success {
		return nil, NewRPCErrorWithData(
			SendTransactionError,
			fmt.Sprintf("Transaction simulation failed: %v", result.Error),
			transactionErrorData(result),
		)
	}

	return result.Signature.String(), nil
}

func transactionErrorData(result *types.TransactionResult) TransactionErrorData {
	data := TransactionErrorData{
		Err:           result.Error.Error(),
		Logs:          result.Logs,
		UnitsConsumed: uint64(result.ComputeUnits),
	}
	var ixErr types.InstructionError
	if errors.As(result.Error, &ixErr) {
		index := ixErr.Index
		data.InstructionIndex = &index
		data.ErrorKey = string(ixErr.ErrorKey())
		if custom := ixErr.CustomError(); custom != nil {
			code := uint32(*custom)
			data.CustomError = &code
		}
	}
	return data
}

// handleRequestAirdrop handles the requestAirdrop RPC method.
// Params: [pubkey, lamports]
func (h *Handlers) handleRequestAirdrop(params json.RawMessage) (interface{}, *RPCError) {
	rawParams, rpcErr := parseParams(params, 2)
	if rpcErr != nil {
		return nil, rpcErr
	}
	pubkey, rpcErr := parsePubkey(rawParams[0])
	if rpcErr != nil {
		return nil, rpcErr
	}
	var lamports uint64
	if err := json.Unmarshal(rawParams[1], &lamports); err != nil {
		return nil, NewRPCError(InvalidParams, "invalid lamports")
	}

	sig, err := h.bank.Airdrop(pubkey, types.Lamports(lamports))
	if err != nil {
		return nil, NewRPCError(AirdropError, err.Error())
	}
	return sig.String(), nil
}

// handleGetSettings handles the getSettings RPC method.
// Params: [{programId}]
func (h *Handlers) handleGetSettings(params json.RawMessage) (interface{}, *RPCError) {
	rawParams, rpcErr := parseParams(params, 0)
	if rpcErr != nil {
		return nil, rpcErr
	}
	programID, rpcErr := parseProgramID(rawParams, 0)
	if rpcErr != nil {
		return nil, rpcErr
	}

	address, _ := pixelbattle.SettingsAddress(programID)
	data, rpcErr := h.programAccountData(programID, address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	settings, err := pixelbattle.UnmarshalSettings(data)
	if err != nil {
		return nil, NewRPCError(InternalError, fmt.Sprintf("failed to decode settings: %v", err))
	}

	return ContextualResult{
		Context: h.context(),
		Value: SettingsResult{
			Address: address.String(),
			Admin:   settings.Admin.String(),
			Cost:    settings.Cost,
			Width:   settings.Width,
			Height:  settings.Height,
		},
	}, nil
}

// handleGetBoard handles the getBoard RPC method.
// Params: [{programId}]
func (h *Handlers) handleGetBoard(params json.RawMessage) (interface{}, *RPCError) {
	rawParams, rpcErr := parseParams(params, 0)
	if rpcErr != nil {
		return nil, rpcErr
	}
	programID, rpcErr := parseProgramID(rawParams, 0)
	if rpcErr != nil {
		return nil, rpcErr
	}

	address, _ := pixelbattle.BoardAddress(programID)
	data, rpcErr := h.programAccountData(programID, address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	board, err := pixelbattle.UnmarshalBoard(data)
	if err != nil {
		return nil, NewRPCError(InternalError, fmt.Sprintf("failed to decode board: %v", err))
	}

	result := BoardResult{
		Address: address.String(),
		Height:  len(board.Field),
		Cells:   make([][]CellResult, len(board.Field)),
	}
	for y, row := range board.Field {
		if len(row) > result.Width {
			result.Width = len(row)
		}
		result.Cells[y] = make([]CellResult, len(row))
		for x, cell := range row {
			result.Cells[y][x] = CellResult{Writer: cell.Writer.String(), Color: cell.Color}
		}
	}

	return ContextualResult{Context: h.context(), Value: result}, nil
}

// programAccountData loads an initialized account owned by programID.
func (h *Handlers) programAccountData(programID, address types.Pubkey) ([]byte, *RPCError) {
	account, err := h.bank.GetAccount(address)
	if err != nil {
		return nil, NewRPCError(InternalError, fmt.Sprintf("failed to get account: %v", err))
	}
	if account == nil || len(account.Data) == 0 {
		return nil, NewRPCError(AccountNotFound, fmt.Sprintf("account %s not found; is the game initialized?", address))
	}
	if account.Owner != programID {
		return nil, NewRPCError(InternalError, fmt.Sprintf("account %s is not owned by %s", address, programID))
	}
	return account.Data, nil
}
