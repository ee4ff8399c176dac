package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/fortiblox/x1-pixelbattle/pkg/crypto"
	"github.com/fortiblox/x1-pixelbattle/pkg/rpc"
	"github.com/fortiblox/x1-pixelbattle/pkg/svm/programs/compute_budget"
	"github.com/fortiblox/x1-pixelbattle/pkg/svm/programs/pixelbattle"
	"github.com/fortiblox/x1-pixelbattle/pkg/types"
)

func (e *env) programID() (types.Pubkey, error) {
	if e.opts.programID == "" {
		return pixelbattle.ProgramID, nil
	}
	id, err := types.PubkeyFromBase58(e.opts.programID)
	if err != nil {
		return types.Pubkey{}, fmt.Errorf("invalid program id: %w", err)
	}
	return id, nil
}

func (e *env) signer() (*crypto.Keypair, error) {
	kp, err := crypto.LoadKeypair(e.opts.keypair)
	if err != nil {
		return nil, fmt.Errorf("failed to load keypair %s: %w", e.opts.keypair, err)
	}
	return kp, nil
}

func (e *env) client() *rpc.Client {
	return rpc.NewClient(e.opts.rpcURL)
}

// pubkeyOrSelf parses args[i] as a pubkey, falling back to the keypair.
func (e *env) pubkeyOrSelf(args []string, i int) (types.Pubkey, error) {
	if len(args) > i {
		return types.PubkeyFromBase58(args[i])
	}
	kp, err := e.signer()
	if err != nil {
		return types.Pubkey{}, err
	}
	return kp.PublicKey(), nil
}

// sendInstruction signs ix with the keypair (plus extra signers) and submits
// it against the latest blockhash. A -compute-limit adds a budget
// instruction in front of ix.
func (e *env) sendInstruction(ctx context.Context, payer *crypto.Keypair, ix types.Instruction, extra ...*crypto.Keypair) error {
	ixs := []types.Instruction{ix}
	if e.opts.computeLimit > uint(compute_budget.MaxComputeUnitLimit) {
		return fmt.Errorf("compute limit %d above %d", e.opts.computeLimit, compute_budget.MaxComputeUnitLimit)
	}
	if e.opts.computeLimit > 0 {
		budget, err := compute_budget.NewSetComputeUnitLimitInstruction(uint32(e.opts.computeLimit))
		if err != nil {
			return err
		}
		ixs = append([]types.Instruction{budget}, ixs...)
	}

	client := e.client()
	blockhash, err := client.GetLatestBlockhash(ctx)
	if err != nil {
		return err
	}
	msg, err := types.CompileMessage(payer.PublicKey(), blockhash, ixs...)
	if err != nil {
		return err
	}
	tx := &types.Transaction{Message: msg}
	if err := crypto.SignTransaction(tx, append([]*crypto.Keypair{payer}, extra...)...); err != nil {
		return err
	}

	sig, err := client.SendTransaction(ctx, tx)
	if err != nil {
		var txErr *rpc.TransactionError
		if errors.As(err, &txErr) {
			for _, line := range txErr.Data.Logs {
				fmt.Fprintf(e.out, "  %s\n", line)
			}
			if code, ok := txErr.CustomError(); ok {
				return fmt.Errorf("%s: %w", txErr.Message, pixelbattle.Error(code))
			}
		}
		return err
	}
	fmt.Fprintf(e.out, "signature: %s\n", sig)
	return nil
}

func parseUint(name, s string, bits int) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, bits)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	return v, nil
}

func runKeygen(_ context.Context, e *env, args []string) error {
	path := e.opts.keypair
	if len(args) > 0 {
		path = args[0]
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("refusing to overwrite %s", path)
	}
	kp, err := crypto.NewKeypair()
	if err != nil {
		return err
	}
	if err := crypto.SaveKeypair(path, kp); err != nil {
		return fmt.Errorf("failed to write keypair: %w", err)
	}
	e.log.WithField("path", path).Info("wrote keypair")
	fmt.Fprintln(e.out, kp.PublicKey())
	return nil
}

func runAddress(_ context.Context, e *env, _ []string) error {
	kp, err := e.signer()
	if err != nil {
		return err
	}
	fmt.Fprintln(e.out, kp.PublicKey())
	return nil
}

func runAirdrop(ctx context.Context, e *env, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("airdrop needs <lamports> [pubkey]")
	}
	lamports, err := parseUint("lamports", args[0], 64)
	if err != nil {
		return err
	}
	to, err := e.pubkeyOrSelf(args, 1)
	if err != nil {
		return err
	}
	sig, err := e.client().RequestAirdrop(ctx, to, types.Lamports(lamports))
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "signature: %s\n", sig)
	return nil
}

func runBalance(ctx context.Context, e *env, args []string) error {
	pubkey, err := e.pubkeyOrSelf(args, 0)
	if err != nil {
		return err
	}
	balance, err := e.client().GetBalance(ctx, pubkey)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "%d lamports (%.9f SOL)\n", balance, balance.SOL())
	return nil
}

func runInit(ctx context.Context, e *env, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("init needs <width> <height> <cost>")
	}
	width, err := parseUint("width", args[0], 32)
	if err != nil {
		return err
	}
	height, err := parseUint("height", args[1], 32)
	if err != nil {
		return err
	}
	cost, err := parseUint("cost", args[2], 64)
	if err != nil {
		return err
	}
	programID, err := e.programID()
	if err != nil {
		return err
	}
	admin, err := e.signer()
	if err != nil {
		return err
	}

	ix, err := pixelbattle.NewInitInstruction(programID, admin.PublicKey(), uint32(width), uint32(height), cost)
	if err != nil {
		return err
	}
	return e.sendInstruction(ctx, admin, ix)
}

func runDraw(ctx context.Context, e *env, args []string) error {
	if len(args) < 4 || len(args) > 5 {
		return fmt.Errorf("draw needs <x> <y> <color> <vault> [amount]")
	}
	x, err := parseUint("x", args[0], 64)
	if err != nil {
		return err
	}
	y, err := parseUint("y", args[1], 64)
	if err != nil {
		return err
	}
	vault, err := types.PubkeyFromBase58(args[3])
	if err != nil {
		return fmt.Errorf("invalid vault: %w", err)
	}
	programID, err := e.programID()
	if err != nil {
		return err
	}

	var amount uint64
	if len(args) == 5 {
		if amount, err = parseUint("amount", args[4], 64); err != nil {
			return err
		}
	} else {
		settings, err := e.client().GetSettings(ctx, programID)
		if err != nil {
			return err
		}
		amount = settings.Cost
	}

	player, err := e.signer()
	if err != nil {
		return err
	}
	ix, err := pixelbattle.NewDrawInstruction(programID, player.PublicKey(), vault, x, y, args[2], amount)
	if err != nil {
		return err
	}
	return e.sendInstruction(ctx, player, ix)
}

func runClear(ctx context.Context, e *env, _ []string) error {
	programID, err := e.programID()
	if err != nil {
		return err
	}
	admin, err := e.signer()
	if err != nil {
		return err
	}
	ix, err := pixelbattle.NewClearInstruction(programID, admin.PublicKey())
	if err != nil {
		return err
	}
	return e.sendInstruction(ctx, admin, ix)
}

func runWithdraw(ctx context.Context, e *env, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("withdraw needs <vault> <to> <lamports>")
	}

	// A vault given as a keypair file co-signs the transfer.
	var vault types.Pubkey
	var vaultSigner *crypto.Keypair
	if kp, err := crypto.LoadKeypair(args[0]); err == nil {
		vault, vaultSigner = kp.PublicKey(), kp
	} else if vault, err = types.PubkeyFromBase58(args[0]); err != nil {
		return fmt.Errorf("invalid vault: %w", err)
	}
	to, err := types.PubkeyFromBase58(args[1])
	if err != nil {
		return fmt.Errorf("invalid recipient: %w", err)
	}
	lamports, err := parseUint("lamports", args[2], 64)
	if err != nil {
		return err
	}
	programID, err := e.programID()
	if err != nil {
		return err
	}
	admin, err := e.signer()
	if err != nil {
		return err
	}

	ix, err := pixelbattle.NewWithdrawInstruction(programID, admin.PublicKey(), vault, to, lamports, vaultSigner != nil)
	if err != nil {
		return err
	}
	if vaultSigner != nil {
		return e.sendInstruction(ctx, admin, ix, vaultSigner)
	}
	return e.sendInstruction(ctx, admin, ix)
}

func runSettings(ctx context.Context, e *env, _ []string) error {
	programID, err := e.programID()
	if err != nil {
		return err
	}
	settings, err := e.client().GetSettings(ctx, programID)
	if err != nil {
		return err
	}
	address, _ := pixelbattle.SettingsAddress(programID)
	fmt.Fprintf(e.out, "address: %s\nadmin:   %s\nsize:    %dx%d\ncost:    %d lamports\n",
		address, settings.Admin, settings.Width, settings.Height, settings.Cost)
	return nil
}

func runBoard(ctx context.Context, e *env, _ []string) error {
	programID, err := e.programID()
	if err != nil {
		return err
	}
	board, err := e.client().GetBoard(ctx, programID)
	if err != nil {
		return err
	}
	return board.Render(e.out)
}
