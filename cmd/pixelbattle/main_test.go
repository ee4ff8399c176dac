package main

import (
	"bytes"
	"context"
	"flag"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortiblox/x1-pixelbattle/pkg/accounts"
	"github.com/fortiblox/x1-pixelbattle/pkg/crypto"
	"github.com/fortiblox/x1-pixelbattle/pkg/rpc"
	"github.com/fortiblox/x1-pixelbattle/pkg/runtime"
	"github.com/fortiblox/x1-pixelbattle/pkg/svm/programs/pixelbattle"
	"github.com/fortiblox/x1-pixelbattle/pkg/types"
)

func quietLog() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func TestRun_Usage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.ErrorIs(t, run(nil, &stdout, &stderr), errUsage)
	assert.Contains(t, stderr.String(), "usage: pixelbattle")

	stderr.Reset()
	assert.ErrorIs(t, run([]string{"paint"}, &stdout, &stderr), errUsage)
	assert.Contains(t, stderr.String(), `unknown command "paint"`)

	require.NoError(t, run([]string{"help"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "withdraw")
}

func TestRun_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer
	missing := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, run([]string{"version", "-config", missing}, &stdout, &stderr))
	assert.Equal(t, "X1 Pixel Battle "+Version+" ("+GitCommit+")\n", stdout.String())
}

func TestRun_BadLogLevel(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run([]string{"version", "-log-level", "loud"}, &stdout, &stderr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	cfg, err := loadConfig(filepath.Join(dir, "missing.json"), quietLog())
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)

	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"rpc": {"addr": "0.0.0.0:9000"}, "runtime": {"airdrop_limit": 0}}`), 0644))
	cfg, err = loadConfig(path, quietLog())
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.RPC.Addr)
	assert.Equal(t, uint64(0), cfg.Runtime.AirdropLimit)
	// Keys absent from the file keep their defaults.
	assert.Equal(t, defaultConfig().RPC.Burst, cfg.RPC.Burst)
	assert.Equal(t, defaultConfig().Runtime.ComputeUnits, cfg.Runtime.ComputeUnits)

	require.NoError(t, os.WriteFile(path, []byte(`{"rpc":`), 0644))
	_, err = loadConfig(path, quietLog())
	assert.Error(t, err)
}

func TestApplyConfigWithCLIOverrides(t *testing.T) {
	o := &options{}
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	registerFlags(fs, o)
	registerServeFlags(fs, o)
	require.NoError(t, fs.Parse([]string{"-rpc-addr", "127.0.0.1:1234", "-airdrop-limit", "0", "-enable-metrics=false"}))

	cfg := defaultConfig()
	applyConfigWithCLIOverrides(fs, cfg, o)

	assert.Equal(t, "127.0.0.1:1234", o.rpcAddr)
	assert.Equal(t, uint64(0), o.airdropLimit)
	assert.False(t, o.metrics)

	assert.Equal(t, cfg.General.DataDir, o.dataDir)
	assert.Equal(t, cfg.RPC.RequestsPerSecond, o.rps)
	assert.Equal(t, cfg.Runtime.ComputeUnits, o.computeUnits)
	assert.Equal(t, cfg.Client.RPCURL, o.rpcURL)
	assert.Equal(t, cfg.Client.Keypair, o.keypair)
	assert.False(t, o.trustProxy)

	cfg.RPC.TrustForwardedFor = true
	applyConfigWithCLIOverrides(fs, cfg, o)
	assert.True(t, o.trustProxy)
}

// testEnv runs client commands against an in-process bank.
type testEnv struct {
	t            *testing.T
	dir          string
	url          string
	computeLimit uint
	out          bytes.Buffer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	registry := runtime.NewProgramRegistry()
	runtime.RegisterNativePrograms(registry)
	bank, err := runtime.NewBank(accounts.NewMemoryDB(), registry, runtime.DefaultConfig(), quietLog())
	require.NoError(t, err)

	serverConfig := rpc.DefaultServerConfig()
	serverConfig.Logger = quietLog()
	serverConfig.EnableRateLimit = false
	ts := httptest.NewServer(rpc.NewServer(serverConfig, bank).Handler())
	t.Cleanup(ts.Close)

	return &testEnv{t: t, dir: t.TempDir(), url: ts.URL}
}

// exec runs one command as the holder of the named keypair file.
func (te *testEnv) exec(keypair string, fn func(context.Context, *env, []string) error, args ...string) error {
	te.out.Reset()
	e := &env{
		opts: &options{rpcURL: te.url, keypair: filepath.Join(te.dir, keypair), computeLimit: te.computeLimit},
		log:  quietLog(),
		out:  &te.out,
	}
	return fn(context.Background(), e, args)
}

func (te *testEnv) mustExec(keypair string, fn func(context.Context, *env, []string) error, args ...string) string {
	te.t.Helper()
	require.NoError(te.t, te.exec(keypair, fn, args...))
	return te.out.String()
}

func (te *testEnv) pubkey(keypair string) string {
	te.t.Helper()
	kp, err := crypto.LoadKeypair(filepath.Join(te.dir, keypair))
	require.NoError(te.t, err)
	return kp.PublicKey().String()
}

func TestClientCommands(t *testing.T) {
	te := newTestEnv(t)

	for _, name := range []string{"admin.json", "player.json", "vault.json"} {
		out := te.mustExec(name, runKeygen)
		assert.Equal(t, te.pubkey(name)+"\n", out)
	}
	assert.Error(t, te.exec("admin.json", runKeygen), "keygen must not overwrite")
	assert.Equal(t, te.pubkey("admin.json")+"\n", te.mustExec("admin.json", runAddress))

	te.mustExec("admin.json", runAirdrop, "2000000000")
	te.mustExec("player.json", runAirdrop, "1000000000")
	assert.Contains(t, te.mustExec("admin.json", runBalance), "2000000000 lamports")

	err := te.exec("admin.json", runSettings)
	assert.ErrorIs(t, err, rpc.ErrAccountNotFound)

	out := te.mustExec("admin.json", runInit, "3", "2", "1000")
	assert.Contains(t, out, "signature: ")
	assert.Contains(t, te.mustExec("admin.json", runSettings), "size:    3x2")

	// Drawing without an amount pays the current cost.
	vault := te.pubkey("vault.json")
	te.mustExec("player.json", runDraw, "1", "0", "#FF0000", vault)
	assert.Contains(t, te.mustExec("admin.json", runBalance, vault), "1000 lamports")
	te.mustExec("player.json", runDraw, "2", "1", "#00FF00", vault, "4000")

	board := te.mustExec("admin.json", runBoard)
	lines := strings.Split(strings.TrimRight(board, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "#FF0000*")
	assert.Contains(t, lines[1], "#00FF00*")

	// Paying less than the cost is rejected with the program's error.
	err = te.exec("player.json", runDraw, "0", "0", "#000000", vault, "10")
	assert.ErrorIs(t, err, pixelbattle.NotEnough)

	// Only the admin may withdraw or clear.
	to := te.pubkey("player.json")
	err = te.exec("player.json", runWithdraw, filepath.Join(te.dir, "vault.json"), to, "1000")
	assert.ErrorIs(t, err, pixelbattle.NotOwner)
	assert.ErrorIs(t, te.exec("player.json", runClear), pixelbattle.NotOwner)

	te.mustExec("admin.json", runWithdraw, filepath.Join(te.dir, "vault.json"), te.pubkey("admin.json"), "3000")
	assert.Contains(t, te.mustExec("admin.json", runBalance, vault), "2000 lamports")

	te.mustExec("admin.json", runClear)
	board = te.mustExec("admin.json", runBoard)
	assert.NotContains(t, board, "*")
	assert.Equal(t, 6, strings.Count(board, pixelbattle.DefaultColor))
}

func TestClientCommands_ComputeLimit(t *testing.T) {
	te := newTestEnv(t)
	te.mustExec("admin.json", runKeygen)
	te.mustExec("admin.json", runAirdrop, "2000000000")

	te.computeLimit = 600
	err := te.exec("admin.json", runInit, "4", "4", "10")
	var txErr *rpc.TransactionError
	require.ErrorAs(t, err, &txErr)
	assert.Equal(t, string(types.InstructionErrorComputationalBudget), txErr.Data.ErrorKey)
	assert.NotEmpty(t, te.out.String(), "failure logs are printed")

	te.computeLimit = 5_000_000
	assert.Error(t, te.exec("admin.json", runInit, "4", "4", "10"))

	te.computeLimit = 100_000
	te.mustExec("admin.json", runInit, "4", "4", "10")
	assert.Contains(t, te.mustExec("admin.json", runSettings), "size:    4x4")
}

func TestClientCommands_BadArguments(t *testing.T) {
	te := newTestEnv(t)
	te.mustExec("admin.json", runKeygen)

	assert.Error(t, te.exec("admin.json", runInit, "3", "2"))
	assert.Error(t, te.exec("admin.json", runInit, "wide", "2", "1"))
	assert.Error(t, te.exec("admin.json", runDraw, "0", "0", "#000000"))
	assert.Error(t, te.exec("admin.json", runDraw, "0", "0", "#000000", "not-a-key"))
	assert.Error(t, te.exec("admin.json", runAirdrop))
	assert.Error(t, te.exec("missing.json", runAddress))

	e := &env{opts: &options{programID: "bogus"}}
	_, err := e.programID()
	assert.Error(t, err)
	e.opts.programID = ""
	id, err := e.programID()
	require.NoError(t, err)
	assert.Equal(t, pixelbattle.ProgramID, id)

	custom := types.SHA256([]byte("another deployment"))
	e.opts.programID = types.Pubkey(custom).String()
	id, err = e.programID()
	require.NoError(t, err)
	assert.Equal(t, types.Pubkey(custom), id)
}

func TestOpenAccountsDB(t *testing.T) {
	db, err := openAccountsDB(":memory:", quietLog())
	require.NoError(t, err)
	require.NoError(t, db.Close())

	dir := t.TempDir()
	db, err = openAccountsDB(dir, quietLog())
	require.NoError(t, err)
	require.NoError(t, db.SetAccount(types.SystemProgramID, types.NewAccount(1, types.NativeLoaderID)))
	require.NoError(t, db.Close())
	assert.DirExists(t, filepath.Join(dir, "accounts"))
}
