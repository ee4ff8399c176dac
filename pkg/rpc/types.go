// Package rpc provides a JSON-RPC 2.0 server and client for the pixel
// battle bank.
package rpc

import (
	"encoding/json"
)

// JSON-RPC 2.0 constants
const (
	JSONRPCVersion = "2.0"
)

// Standard JSON-RPC 2.0 error codes
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603

	// Solana-specific error codes
	SendTransactionError = -32002
	AccountNotFound      = -32010
	UnsupportedEncoding  = -32011
	AirdropError         = -32012
)

// RPCRequest represents a JSON-RPC 2.0 request.
type RPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      interface{}     `json:"id"`
}

// RPCResponse represents a JSON-RPC 2.0 response.
type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// rawResponse is the client's view of an RPCResponse.
type rawResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
	ID      interface{}     `json:"id"`
}

// RPCError represents a JSON-RPC 2.0 error.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	return e.Message
}

// NewRPCError creates a new RPC error.
func NewRPCError(code int, message string) *RPCError {
	return &RPCError{
		Code:    code,
		Message: message,
	}
}

// NewRPCErrorWithData creates a new RPC error with additional data.
func NewRPCErrorWithData(code int, message string, data interface{}) *RPCError {
	raw, err := json.Marshal(data)
	if err != nil {
		return NewRPCError(code, message)
	}
	return &RPCError{
		Code:    code,
		Message: message,
		Data:    raw,
	}
}

// Context represents the response context containing slot info.
type Context struct {
	Slot uint64 `json:"slot"`
}

// ContextualResult wraps a result with context.
type ContextualResult struct {
	Context Context     `json:"context"`
	Value   interface{} `json:"value"`
}

// AccountInfoResult represents the result of getAccountInfo.
type AccountInfoResult struct {
	Lamports   uint64   `json:"lamports"`
	Data       []string `json:"data"` // [data, encoding]
	Owner      string   `json:"owner"`
	Executable bool     `json:"executable"`
	RentEpoch  uint64   `json:"rentEpoch"`
	Space      uint64   `json:"space"`
}

// AccountInfoOptions represents optional parameters for getAccountInfo.
type AccountInfoOptions struct {
	Encoding  string     `json:"encoding,omitempty"` // base58, base64, base64+zstd
	DataSlice *DataSlice `json:"dataSlice,omitempty"`
}

// DataSlice represents a slice of account data.
type DataSlice struct {
	Offset uint64 `json:"offset"`
	Length uint64 `json:"length"`
}

// VersionResult represents the result of getVersion.
type VersionResult struct {
	Version string `json:"version"`
}

// BlockhashResult represents a blockhash with context.
type BlockhashResult struct {
	Blockhash            string `json:"blockhash"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

// SendTransactionOptions represents optional parameters for sendTransaction.
type SendTransactionOptions struct {
	Encoding string `json:"encoding,omitempty"` // base58 or base64
}

// TransactionErrorData is attached to a SendTransactionError.
type TransactionErrorData struct {
	Err              string   `json:"err"`
	InstructionIndex *int     `json:"instructionIndex,omitempty"`
	ErrorKey         string   `json:"errorKey,omitempty"`
	CustomError      *uint32  `json:"customError,omitempty"`
	Logs             []string `json:"logs"`
	UnitsConsumed    uint64   `json:"unitsConsumed"`
}

// SettingsResult is the decoded settings account.
type SettingsResult struct {
	Address string `json:"address"`
	Admin   string `json:"admin"`
	Cost    uint64 `json:"cost"`
	Width   uint32 `json:"width"`
	Height  uint32 `json:"height"`
}

// CellResult is one decoded board cell.
type CellResult struct {
	Writer string `json:"writer"`
	Color  string `json:"color"`
}

// BoardResult is the decoded board account. Cells are indexed [y][x].
type BoardResult struct {
	Address string         `json:"address"`
	Width   int            `json:"width"`
	Height  int            `json:"height"`
	Cells   [][]CellResult `json:"cells"`
}

// ProgramOptions selects the program a board query targets.
type ProgramOptions struct {
	ProgramID string `json:"programId,omitempty"`
}
