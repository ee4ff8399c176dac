// Package syscall provides the execution context native programs run in:
// the accounts of the current instruction, the compute meter, program logs,
// the rent parameters and signed cross-program invocation.
package syscall

import (
	"errors"
	"fmt"
	"sync"

	"github.com/fortiblox/x1-pixelbattle/pkg/types"
)

// Context errors
var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrMaxLogsExceeded     = errors.New("maximum log entries exceeded")
	ErrLogTooLong          = errors.New("log message too long")
	ErrInvalidAccountIndex = errors.New("invalid account index")
)

// Limits for execution
const (
	MaxLogMessages      = 64
	MaxLogMessageLength = 10000
	MaxAccountDataSize  = 10 * 1024 * 1024 // 10MB
)

// Compute unit costs
const (
	CULogBase        uint64 = 100
	CUCreatePDA      uint64 = 1500
	CUFindPDAPerIter uint64 = 50
	CUInvoke         uint64 = 1000
)

// AccountInfo represents account information available to a program.
type AccountInfo struct {
	Pubkey     types.Pubkey
	Lamports   *uint64 // Pointer allows modification detection
	Data       []byte
	Owner      types.Pubkey
	Executable bool
	RentEpoch  uint64
	IsSigner   bool
	IsWritable bool
}

// NewAccountInfo builds an AccountInfo from a stored account.
func NewAccountInfo(pubkey types.Pubkey, account *types.Account, isSigner, isWritable bool) *AccountInfo {
	lamports := uint64(account.Lamports)
	var data []byte
	if account.Data != nil {
		data = make([]byte, len(account.Data))
		copy(data, account.Data)
	}
	return &AccountInfo{
		Pubkey:     pubkey,
		Lamports:   &lamports,
		Data:       data,
		Owner:      account.Owner,
		Executable: account.Executable,
		RentEpoch:  uint64(account.RentEpoch),
		IsSigner:   isSigner,
		IsWritable: isWritable,
	}
}

// Clone creates a deep copy of AccountInfo.
func (a *AccountInfo) Clone() *AccountInfo {
	if a == nil {
		return nil
	}
	lamports := *a.Lamports
	clone := &AccountInfo{
		Pubkey:     a.Pubkey,
		Lamports:   &lamports,
		Owner:      a.Owner,
		Executable: a.Executable,
		RentEpoch:  a.RentEpoch,
		IsSigner:   a.IsSigner,
		IsWritable: a.IsWritable,
	}
	if a.Data != nil {
		clone.Data = make([]byte, len(a.Data))
		copy(clone.Data, a.Data)
	}
	return clone
}

// ToAccount converts the info back to a stored account.
func (a *AccountInfo) ToAccount() *types.Account {
	var data []byte
	if a.Data != nil {
		data = make([]byte, len(a.Data))
		copy(data, a.Data)
	}
	return &types.Account{
		Lamports:   types.Lamports(*a.Lamports),
		Data:       data,
		Owner:      a.Owner,
		Executable: a.Executable,
		RentEpoch:  types.Epoch(a.RentEpoch),
	}
}

// ProgramExecutor runs the program named by ctx.ProgramID against the
// context's current accounts and instruction data. The runtime's program
// registry implements it; CPI uses it to reach the callee.
type ProgramExecutor interface {
	ExecuteProgram(ctx *ExecutionContext) error
}

// ExecutionContext holds the execution state of one instruction.
type ExecutionContext struct {
	mu sync.RWMutex

	// Program being executed
	ProgramID types.Pubkey

	// Accounts available to the instruction, in instruction order
	Accounts []*AccountInfo

	// Account index by pubkey for fast lookup
	accountIndex map[types.Pubkey]int

	// Instruction data
	InstructionData []byte

	// Compute meter
	computeUnits    uint64
	maxComputeUnits uint64

	// Execution logs
	logs    []string
	maxLogs int

	// Depth of CPI calls
	Depth int

	// Stack of callers for CPI
	CallerStack []types.Pubkey

	// Rent parameters in effect for this transaction
	Rent types.Rent

	// Baseline the running program's account changes are checked against
	pre []*AccountInfo

	executor ProgramExecutor
}

// NewExecutionContext creates a new execution context.
func NewExecutionContext(programID types.Pubkey, accounts []*AccountInfo, instructionData []byte, computeUnits uint64) *ExecutionContext {
	ctx := &ExecutionContext{
		ProgramID:       programID,
		Accounts:        accounts,
		InstructionData: instructionData,
		computeUnits:    computeUnits,
		maxComputeUnits: computeUnits,
		logs:            make([]string, 0, MaxLogMessages),
		maxLogs:         MaxLogMessages,
		CallerStack:     make([]types.Pubkey, 0, 4),
		Rent:            types.DefaultRent(),
	}
	ctx.rebuildIndex()
	return ctx
}

func (ctx *ExecutionContext) rebuildIndex() {
	ctx.accountIndex = make(map[types.Pubkey]int, len(ctx.Accounts))
	for i, acc := range ctx.Accounts {
		if _, dup := ctx.accountIndex[acc.Pubkey]; !dup {
			ctx.accountIndex[acc.Pubkey] = i
		}
	}
}

// SetProgramExecutor sets the executor used for cross-program invocations.
func (ctx *ExecutionContext) SetProgramExecutor(executor ProgramExecutor) {
	ctx.executor = executor
}

// ConsumeComputeUnits deducts compute units.
func (ctx *ExecutionContext) ConsumeComputeUnits(units uint64) error {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	if units > ctx.computeUnits {
		ctx.computeUnits = 0
		return types.ErrComputeBudgetExceeded
	}
	ctx.computeUnits -= units
	return nil
}

// GetComputeUnitsRemaining returns remaining compute units.
func (ctx *ExecutionContext) GetComputeUnitsRemaining() uint64 {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	return ctx.computeUnits
}

// GetComputeUnitsConsumed returns consumed compute units.
func (ctx *ExecutionContext) GetComputeUnitsConsumed() uint64 {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	return ctx.maxComputeUnits - ctx.computeUnits
}

// AddLog adds a log message.
func (ctx *ExecutionContext) AddLog(message string) error {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	if len(ctx.logs) >= ctx.maxLogs {
		return ErrMaxLogsExceeded
	}
	if len(message) > MaxLogMessageLength {
		return ErrLogTooLong
	}

	ctx.logs = append(ctx.logs, message)
	return nil
}

// Log records a "Program log:" line the way on-chain programs print.
func (ctx *ExecutionContext) Log(format string, args ...interface{}) error {
	if err := ctx.ConsumeComputeUnits(CULogBase); err != nil {
		return err
	}
	return ctx.AddLog("Program log: " + fmt.Sprintf(format, args...))
}

// SnapshotPreState records the current accounts as the baseline for
// VerifyChanges. The runtime calls it before each top-level instruction.
func (ctx *ExecutionContext) SnapshotPreState() {
	ctx.pre = snapshotAccounts(ctx.Accounts)
}

// VerifyChanges checks the running program's writes since the last
// baseline. Without a baseline there is nothing to check.
func (ctx *ExecutionContext) VerifyChanges() error {
	if ctx.pre == nil {
		return nil
	}
	return VerifyAccountChanges(ctx.ProgramID, ctx.pre, ctx.Accounts)
}

// GetLogs returns all log messages.
func (ctx *ExecutionContext) GetLogs() []string {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	logs := make([]string, len(ctx.logs))
	copy(logs, ctx.logs)
	return logs
}

// GetAccount returns an account by pubkey.
func (ctx *ExecutionContext) GetAccount(pubkey types.Pubkey) (*AccountInfo, error) {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()

	idx, ok := ctx.accountIndex[pubkey]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, pubkey.String())
	}
	return ctx.Accounts[idx], nil
}

// GetAccountByIndex returns an account by index. A missing index reports
// NotEnoughAccountKeys.
func (ctx *ExecutionContext) GetAccountByIndex(index int) (*AccountInfo, error) {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()

	if index < 0 || index >= len(ctx.Accounts) {
		return nil, fmt.Errorf("%w: %v %d", types.ErrNotEnoughAccountKeys, ErrInvalidAccountIndex, index)
	}
	return ctx.Accounts[index], nil
}

// PushCaller pushes a caller onto the CPI stack.
func (ctx *ExecutionContext) PushCaller(programID types.Pubkey) {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	ctx.CallerStack = append(ctx.CallerStack, programID)
	ctx.Depth++
}

// PopCaller pops a caller from the CPI stack.
func (ctx *ExecutionContext) PopCaller() (types.Pubkey, bool) {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	if len(ctx.CallerStack) == 0 {
		return types.ZeroPubkey, false
	}
	caller := ctx.CallerStack[len(ctx.CallerStack)-1]
	ctx.CallerStack = ctx.CallerStack[:len(ctx.CallerStack)-1]
	ctx.Depth--
	return caller, true
}

// IsCalledBy checks if the current program was called by the specified program.
func (ctx *ExecutionContext) IsCalledBy(programID types.Pubkey) bool {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	for _, caller := range ctx.CallerStack {
		if caller == programID {
			return true
		}
	}
	return false
}
