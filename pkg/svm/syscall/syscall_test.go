package syscall

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortiblox/x1-pixelbattle/pkg/crypto"
	"github.com/fortiblox/x1-pixelbattle/pkg/types"
)

var (
	callerProgram = types.Pubkey{0xca, 0x11}
	calleeProgram = types.Pubkey{0xce, 0xe0}
)

type executorFunc func(ctx *ExecutionContext) error

func (f executorFunc) ExecuteProgram(ctx *ExecutionContext) error { return f(ctx) }

func info(pubkey types.Pubkey, lamports uint64, owner types.Pubkey, signer, writable bool) *AccountInfo {
	return &AccountInfo{
		Pubkey:     pubkey,
		Lamports:   &lamports,
		Owner:      owner,
		IsSigner:   signer,
		IsWritable: writable,
	}
}

func programInfo(id types.Pubkey) *AccountInfo {
	acc := info(id, 1, types.NativeLoaderID, false, false)
	acc.Executable = true
	return acc
}

func TestCreateProgramAddress_OffCurve(t *testing.T) {
	for i := 0; i < 32; i++ {
		pda, valid := CreateProgramAddress([][]byte{[]byte("settings"), {byte(i)}}, callerProgram)
		if valid {
			assert.False(t, crypto.IsOnCurve(pda))
		} else {
			assert.Equal(t, types.ZeroPubkey, pda)
		}
	}
}

func TestCreateProgramAddress_SeedLimits(t *testing.T) {
	_, valid := CreateProgramAddress([][]byte{make([]byte, MaxSeedLen+1)}, callerProgram)
	assert.False(t, valid)

	tooMany := make([][]byte, MaxSeeds+1)
	_, valid = CreateProgramAddress(tooMany, callerProgram)
	assert.False(t, valid)
}

func TestFindProgramAddress(t *testing.T) {
	pda, bump, found := DerivePDA(callerProgram, "settings")
	require.True(t, found)

	again, bump2, _ := DerivePDA(callerProgram, "settings")
	assert.Equal(t, pda, again)
	assert.Equal(t, bump, bump2)

	recreated, valid := CreateProgramAddress([][]byte{[]byte("settings"), {bump}}, callerProgram)
	require.True(t, valid)
	assert.Equal(t, pda, recreated)

	// Every bump above the canonical one lands on the curve.
	for b := 255; b > int(bump); b-- {
		_, valid := CreateProgramAddress([][]byte{[]byte("settings"), {byte(b)}}, callerProgram)
		assert.False(t, valid, "bump %d", b)
	}

	other, _, _ := DerivePDA(callerProgram, "data")
	assert.NotEqual(t, pda, other)
}

func TestFindProgramAddress_ChargesCompute(t *testing.T) {
	ctx := NewExecutionContext(callerProgram, nil, nil, 10_000)
	_, bump, found := FindProgramAddress([][]byte{[]byte("settings")}, callerProgram, ctx)
	require.True(t, found)
	assert.Equal(t, uint64(256-int(bump))*CUFindPDAPerIter, ctx.GetComputeUnitsConsumed())
}

func TestExecutionContext_ComputeMeter(t *testing.T) {
	ctx := NewExecutionContext(callerProgram, nil, nil, 100)
	require.NoError(t, ctx.ConsumeComputeUnits(60))
	assert.Equal(t, uint64(40), ctx.GetComputeUnitsRemaining())

	err := ctx.ConsumeComputeUnits(41)
	assert.ErrorIs(t, err, types.ErrComputeBudgetExceeded)
	assert.Equal(t, uint64(100), ctx.GetComputeUnitsConsumed())
}

func TestExecutionContext_GetAccountByIndex(t *testing.T) {
	ctx := NewExecutionContext(callerProgram, []*AccountInfo{info(types.Pubkey{1}, 0, types.SystemProgramID, false, false)}, nil, 100)

	_, err := ctx.GetAccountByIndex(0)
	require.NoError(t, err)

	_, err = ctx.GetAccountByIndex(1)
	assert.ErrorIs(t, err, types.ErrNotEnoughAccountKeys)
}

func TestVerifyAccountChanges(t *testing.T) {
	key := types.Pubkey{9}

	tests := []struct {
		name     string
		owner    types.Pubkey
		mutate   func(acc *AccountInfo, other *AccountInfo)
		readonly bool
		wantErr  error
	}{
		{
			name:  "owner debits",
			owner: callerProgram,
			mutate: func(acc, other *AccountInfo) {
				*acc.Lamports -= 10
				*other.Lamports += 10
			},
		},
		{
			name:  "external debit",
			owner: types.SystemProgramID,
			mutate: func(acc, other *AccountInfo) {
				*acc.Lamports -= 10
				*other.Lamports += 10
			},
			wantErr: types.ErrExternalLamportSpend,
		},
		{
			name:     "readonly credit",
			owner:    types.SystemProgramID,
			readonly: true,
			mutate: func(acc, other *AccountInfo) {
				*acc.Lamports += 10
				*other.Lamports -= 10
			},
			wantErr: types.ErrReadonlyLamportChange,
		},
		{
			name:    "external data",
			owner:   types.SystemProgramID,
			mutate:  func(acc, _ *AccountInfo) { acc.Data = []byte{1} },
			wantErr: types.ErrExternalDataModified,
		},
		{
			name:     "readonly data",
			owner:    callerProgram,
			readonly: true,
			mutate:   func(acc, _ *AccountInfo) { acc.Data = []byte{1} },
			wantErr:  types.ErrReadonlyDataModified,
		},
		{
			name:    "reassign foreign",
			owner:   types.SystemProgramID,
			mutate:  func(acc, _ *AccountInfo) { acc.Owner = callerProgram },
			wantErr: types.ErrModifiedProgramID,
		},
		{
			name:   "reassign owned zeroed",
			owner:  callerProgram,
			mutate: func(acc, _ *AccountInfo) { acc.Owner = calleeProgram; acc.Data = make([]byte, 4) },
		},
		{
			name:    "unbalanced",
			owner:   callerProgram,
			mutate:  func(acc, _ *AccountInfo) { *acc.Lamports -= 1 },
			wantErr: types.ErrUnbalancedInstruction,
		},
		{
			name:    "executable",
			owner:   callerProgram,
			mutate:  func(acc, _ *AccountInfo) { acc.Executable = true },
			wantErr: types.ErrExecutableModified,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := info(key, 100, tt.owner, false, !tt.readonly)
			other := info(types.Pubkey{10}, 100, callerProgram, false, true)
			post := []*AccountInfo{acc, other}
			pre := SnapshotAccounts(post)

			tt.mutate(acc, other)

			err := VerifyAccountChanges(callerProgram, pre, post)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestInvokeSigned_PropagatesChanges(t *testing.T) {
	pda, bump, _ := DerivePDA(callerProgram, "vault")
	payer := info(types.Pubkey{1}, 1000, types.SystemProgramID, true, true)
	vault := info(pda, 0, calleeProgram, false, true)

	ctx := NewExecutionContext(callerProgram, []*AccountInfo{payer, vault, programInfo(calleeProgram)}, nil, 10_000)
	ctx.SetProgramExecutor(executorFunc(func(c *ExecutionContext) error {
		assert.Equal(t, calleeProgram, c.ProgramID)
		assert.Equal(t, 1, c.Depth)
		assert.True(t, c.IsCalledBy(callerProgram))

		to, _ := c.GetAccountByIndex(1)
		assert.True(t, to.IsSigner, "PDA should sign for its program")

		to.Data = make([]byte, 8)
		to.Owner = callerProgram
		return nil
	}))

	err := ctx.InvokeSigned(types.Instruction{
		ProgramID: calleeProgram,
		Accounts: []types.AccountMeta{
			types.NewAccountMeta(payer.Pubkey, true, true),
			types.NewAccountMeta(pda, true, true),
		},
	}, [][]byte{[]byte("vault"), {bump}})
	require.NoError(t, err)

	assert.Equal(t, callerProgram, ctx.ProgramID)
	assert.Equal(t, 0, ctx.Depth)
	assert.Equal(t, callerProgram, vault.Owner)
	assert.Len(t, vault.Data, 8)
	assert.Contains(t, ctx.GetLogs(), "Program "+calleeProgram.String()+" success")
}

func TestInvokeSigned_FailureLeavesCallerUntouched(t *testing.T) {
	acc := info(types.Pubkey{1}, 1000, calleeProgram, true, true)
	ctx := NewExecutionContext(callerProgram, []*AccountInfo{acc, programInfo(calleeProgram)}, nil, 10_000)

	boom := errors.New("boom")
	ctx.SetProgramExecutor(executorFunc(func(c *ExecutionContext) error {
		a, _ := c.GetAccountByIndex(0)
		a.Data = []byte{1, 2, 3}
		return boom
	}))

	err := ctx.Invoke(types.Instruction{
		ProgramID: calleeProgram,
		Accounts:  []types.AccountMeta{types.NewAccountMeta(acc.Pubkey, true, true)},
	})
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, acc.Data)
}

func TestInvokeSigned_Privileges(t *testing.T) {
	readonly := info(types.Pubkey{1}, 10, types.SystemProgramID, false, false)
	unsigned := info(types.Pubkey{2}, 10, types.SystemProgramID, false, true)

	newCtx := func() *ExecutionContext {
		ctx := NewExecutionContext(callerProgram, []*AccountInfo{readonly, unsigned, programInfo(calleeProgram)}, nil, 10_000)
		ctx.SetProgramExecutor(executorFunc(func(*ExecutionContext) error { return nil }))
		return ctx
	}

	err := newCtx().Invoke(types.Instruction{
		ProgramID: calleeProgram,
		Accounts:  []types.AccountMeta{types.NewAccountMeta(readonly.Pubkey, false, true)},
	})
	assert.ErrorIs(t, err, types.ErrPrivilegeEscalation)

	err = newCtx().Invoke(types.Instruction{
		ProgramID: calleeProgram,
		Accounts:  []types.AccountMeta{types.NewAccountMeta(unsigned.Pubkey, true, true)},
	})
	assert.ErrorIs(t, err, types.ErrPrivilegeEscalation)

	// Seeds that derive an address the instruction does not sign with.
	err = newCtx().InvokeSigned(types.Instruction{
		ProgramID: calleeProgram,
		Accounts:  []types.AccountMeta{types.NewAccountMeta(unsigned.Pubkey, false, true)},
	}, [][]byte{[]byte("vault")})
	assert.Error(t, err)

	err = newCtx().Invoke(types.Instruction{ProgramID: types.Pubkey{0x77}})
	assert.ErrorIs(t, err, types.ErrNotEnoughAccountKeys)

	err = newCtx().Invoke(types.Instruction{ProgramID: callerProgram})
	assert.ErrorIs(t, err, types.ErrReentrancyNotAllowed)
}

func TestInvokeSigned_DepthLimit(t *testing.T) {
	ctx := NewExecutionContext(callerProgram, []*AccountInfo{programInfo(calleeProgram)}, nil, 10_000)
	ctx.SetProgramExecutor(executorFunc(func(*ExecutionContext) error { return nil }))
	ctx.Depth = MaxCPIDepth

	err := ctx.Invoke(types.Instruction{ProgramID: calleeProgram})
	assert.ErrorIs(t, err, types.ErrCallDepth)
}

func TestInvokeSigned_RebaselinesCaller(t *testing.T) {
	payer := info(types.Pubkey{1}, 1000, types.SystemProgramID, true, true)
	dest := info(types.Pubkey{2}, 0, types.SystemProgramID, false, true)

	ctx := NewExecutionContext(callerProgram, []*AccountInfo{payer, dest, programInfo(calleeProgram)}, nil, 10_000)
	ctx.SnapshotPreState()
	ctx.SetProgramExecutor(executorFunc(func(c *ExecutionContext) error {
		from, _ := c.GetAccountByIndex(0)
		to, _ := c.GetAccountByIndex(1)
		*from.Lamports -= 400
		*to.Lamports += 400
		return nil
	}))

	// The callee does not own payer either, so the debit is rejected there.
	err := ctx.Invoke(types.Instruction{
		ProgramID: calleeProgram,
		Accounts: []types.AccountMeta{
			types.NewAccountMeta(payer.Pubkey, true, true),
			types.NewAccountMeta(dest.Pubkey, false, true),
		},
	})
	assert.ErrorIs(t, err, types.ErrExternalLamportSpend)
	assert.Equal(t, uint64(1000), *payer.Lamports)
	require.NoError(t, ctx.VerifyChanges())

	// A caller-side write to an account it does not own is caught before
	// the callee runs.
	*payer.Lamports -= 1
	*dest.Lamports += 1
	err = ctx.Invoke(types.Instruction{ProgramID: calleeProgram})
	assert.ErrorIs(t, err, types.ErrExternalLamportSpend)
}

func TestInvokeSigned_CalleeChangesJoinBaseline(t *testing.T) {
	payer := info(types.Pubkey{1}, 1000, calleeProgram, true, true)
	dest := info(types.Pubkey{2}, 0, types.SystemProgramID, false, true)

	ctx := NewExecutionContext(callerProgram, []*AccountInfo{payer, dest, programInfo(calleeProgram)}, nil, 10_000)
	ctx.SnapshotPreState()
	ctx.SetProgramExecutor(executorFunc(func(c *ExecutionContext) error {
		from, _ := c.GetAccountByIndex(0)
		to, _ := c.GetAccountByIndex(1)
		*from.Lamports -= 400
		*to.Lamports += 400
		return nil
	}))

	require.NoError(t, ctx.Invoke(types.Instruction{
		ProgramID: calleeProgram,
		Accounts: []types.AccountMeta{
			types.NewAccountMeta(payer.Pubkey, true, true),
			types.NewAccountMeta(dest.Pubkey, false, true),
		},
	}))
	assert.Equal(t, uint64(600), *payer.Lamports)
	assert.Equal(t, uint64(400), *dest.Lamports)
	assert.NoError(t, ctx.VerifyChanges())
}
