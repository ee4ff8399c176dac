package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/fortiblox/x1-pixelbattle/pkg/svm/programs/pixelbattle"
	"github.com/fortiblox/x1-pixelbattle/pkg/types"
)

// ErrAccountNotFound is returned when a queried account does not exist.
var ErrAccountNotFound = errors.New("account not found")

// Client talks to a Server over HTTP.
type Client struct {
	url    string
	http   *http.Client
	nextID atomic.Uint64
}

// NewClient creates a client for the server at url.
func NewClient(url string) *Client {
	return &Client{
		url:  url,
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

// call invokes method and decodes the result into out. A JSON-RPC error is
// returned as *RPCError.
func (c *Client) call(ctx context.Context, method string, out interface{}, params ...interface{}) error {
	if params == nil {
		params = []interface{}{}
	}
	rawParams, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to encode params: %w", err)
	}
	body, err := json.Marshal(RPCRequest{
		JSONRPC: JSONRPCVersion,
		Method:  method,
		Params:  rawParams,
		ID:      c.nextID.Add(1),
	})
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: failed to read response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: http %d: %s", method, resp.StatusCode, bytes.TrimSpace(payload))
	}

	var response rawResponse
	if err := json.Unmarshal(payload, &response); err != nil {
		return fmt.Errorf("%s: invalid response: %w", method, err)
	}
	if response.Error != nil {
		return response.Error
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(response.Result, out); err != nil {
		return fmt.Errorf("%s: invalid result: %w", method, err)
	}
	return nil
}

type contextual[T any] struct {
	Context Context `json:"context"`
	Value   T       `json:"value"`
}

// GetAccountInfo returns the account at pubkey, or ErrAccountNotFound.
func (c *Client) GetAccountInfo(ctx context.Context, pubkey types.Pubkey) (*types.Account, error) {
	var result contextual[*AccountInfoResult]
	err := c.call(ctx, "getAccountInfo", &result, pubkey.String(), AccountInfoOptions{Encoding: EncodingBase64Zstd})
	if err != nil {
		return nil, err
	}
	if result.Value == nil {
		return nil, ErrAccountNotFound
	}
	info := result.Value
	if len(info.Data) != 2 {
		return nil, fmt.Errorf("getAccountInfo: malformed data field")
	}
	data, err := DecodeAccountData(info.Data[0], info.Data[1])
	if err != nil {
		return nil, err
	}
	owner, err := DecodePubkey(info.Owner)
	if err != nil {
		return nil, err
	}
	return &types.Account{
		Lamports:   types.Lamports(info.Lamports),
		Data:       data,
		Owner:      owner,
		Executable: info.Executable,
		RentEpoch:  types.Epoch(info.RentEpoch),
	}, nil
}

// GetBalance returns the lamports held by pubkey.
func (c *Client) GetBalance(ctx context.Context, pubkey types.Pubkey) (types.Lamports, error) {
	var result contextual[uint64]
	if err := c.call(ctx, "getBalance", &result, pubkey.String()); err != nil {
		return 0, err
	}
	return types.Lamports(result.Value), nil
}

// GetSlot returns the server's current slot.
func (c *Client) GetSlot(ctx context.Context) (types.Slot, error) {
	var slot uint64
	if err := c.call(ctx, "getSlot", &slot); err != nil {
		return 0, err
	}
	return types.Slot(slot), nil
}

// GetLatestBlockhash returns the blockhash to build transactions against.
func (c *Client) GetLatestBlockhash(ctx context.Context) (types.Hash, error) {
	var result contextual[BlockhashResult]
	if err := c.call(ctx, "getLatestBlockhash", &result); err != nil {
		return types.Hash{}, err
	}
	return types.HashFromBase58(result.Value.Blockhash)
}

// GetMinimumBalanceForRentExemption returns the rent-exempt minimum for
// dataLen bytes.
func (c *Client) GetMinimumBalanceForRentExemption(ctx context.Context, dataLen uint64) (types.Lamports, error) {
	var lamports uint64
	if err := c.call(ctx, "getMinimumBalanceForRentExemption", &lamports, dataLen); err != nil {
		return 0, err
	}
	return types.Lamports(lamports), nil
}

// SendTransaction submits a signed transaction and returns its signature.
// A failed transaction returns *TransactionError.
func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) (types.Signature, error) {
	encoded, err := EncodeTransaction(tx, EncodingBase64)
	if err != nil {
		return types.Signature{}, err
	}

	var sig string
	err = c.call(ctx, "sendTransaction", &sig, encoded, SendTransactionOptions{Encoding: EncodingBase64})
	if err != nil {
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) && rpcErr.Code == SendTransactionError {
			txErr := &TransactionError{Message: rpcErr.Message}
			if len(rpcErr.Data) > 0 {
				_ = json.Unmarshal(rpcErr.Data, &txErr.Data)
			}
			return types.Signature{}, txErr
		}
		return types.Signature{}, err
	}
	return types.SignatureFromBase58(sig)
}

// RequestAirdrop asks the server to credit lamports to pubkey.
func (c *Client) RequestAirdrop(ctx context.Context, pubkey types.Pubkey, lamports types.Lamports) (types.Signature, error) {
	var sig string
	if err := c.call(ctx, "requestAirdrop", &sig, pubkey.String(), uint64(lamports)); err != nil {
		return types.Signature{}, err
	}
	return types.SignatureFromBase58(sig)
}

// GetSettings returns the game settings of programID.
func (c *Client) GetSettings(ctx context.Context, programID types.Pubkey) (*pixelbattle.Settings, error) {
	var result contextual[SettingsResult]
	if err := c.call(ctx, "getSettings", &result, ProgramOptions{ProgramID: programID.String()}); err != nil {
		return nil, wrapNotFound(err)
	}
	admin, err := DecodePubkey(result.Value.Admin)
	if err != nil {
		return nil, err
	}
	return &pixelbattle.Settings{
		Cost:   result.Value.Cost,
		Admin:  admin,
		Width:  result.Value.Width,
		Height: result.Value.Height,
	}, nil
}

// GetBoard returns the board of programID.
func (c *Client) GetBoard(ctx context.Context, programID types.Pubkey) (*pixelbattle.Board, error) {
	var result contextual[BoardResult]
	if err := c.call(ctx, "getBoard", &result, ProgramOptions{ProgramID: programID.String()}); err != nil {
		return nil, wrapNotFound(err)
	}

	board := &pixelbattle.Board{Field: make([][]pixelbattle.Cell, len(result.Value.Cells))}
	for y, row := range result.Value.Cells {
		board.Field[y] = make([]pixelbattle.Cell, len(row))
		for x, cell := range row {
			writer, err := DecodePubkey(cell.Writer)
			if err != nil {
				return nil, fmt.Errorf("cell (%d, %d): %w", x, y, err)
			}
			board.Field[y][x] = pixelbattle.Cell{Writer: writer, Color: cell.Color}
		}
	}
	return board, nil
}

func wrapNotFound(err error) error {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) && rpcErr.Code == AccountNotFound {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, rpcErr.Message)
	}
	return err
}

// TransactionError is a transaction the server executed and rejected.
type TransactionError struct {
	Message string
	Data    TransactionErrorData
}

func (e *TransactionError) Error() string {
	return e.Message
}

// CustomError returns the program's custom error code, if any.
func (e *TransactionError) CustomError() (uint32, bool) {
	if e.Data.CustomError == nil {
		return 0, false
	}
	return *e.Data.CustomError, true
}
