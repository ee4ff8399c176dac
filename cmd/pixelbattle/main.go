// X1 Pixel Battle: a shared pixel board run by a native on-chain program.
//
// The serve command hosts the program in a local bank behind a JSON-RPC
// endpoint; the remaining commands are clients of that endpoint.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "dev"
)

// errUsage reports a malformed command line; the flag set already printed
// the details.
var errUsage = errors.New("usage")

type command struct {
	name    string
	args    string
	summary string
	flags   func(fs *flag.FlagSet, o *options)
	run     func(ctx context.Context, env *env, args []string) error
}

// env is what every command runs with.
type env struct {
	opts *options
	log  *logrus.Entry
	out  io.Writer
}

var commands = []command{
	{name: "serve", summary: "run the bank with the JSON-RPC and metrics servers", flags: registerServeFlags, run: runServe},
	{name: "keygen", args: "[path]", summary: "create a keypair file (default: the configured keypair)", run: runKeygen},
	{name: "address", summary: "print the configured keypair's public key", run: runAddress},
	{name: "airdrop", args: "<lamports> [pubkey]", summary: "request lamports from the local bank", run: runAirdrop},
	{name: "balance", args: "[pubkey]", summary: "print an account balance", run: runBalance},
	{name: "init", args: "<width> <height> <cost>", summary: "create the board with the keypair as admin", run: runInit},
	{name: "draw", args: "<x> <y> <color> <vault> [amount]", summary: "paint a cell, paying amount (default: the cost) to vault", run: runDraw},
	{name: "clear", summary: "reset every cell (admin only)", run: runClear},
	{name: "withdraw", args: "<vault> <to> <lamports>", summary: "move lamports out of vault (admin only; a keypair path as vault signs for it)", run: runWithdraw},
	{name: "settings", summary: "print the game settings", run: runSettings},
	{name: "board", summary: "print the board", run: runBoard},
	{name: "version", summary: "print the version", run: runVersion},
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "usage: pixelbattle <command> [flags] [args]\n\ncommands:\n")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-9s %-32s %s\n", c.name, c.args, c.summary)
	}
	fmt.Fprintf(w, "\nrun 'pixelbattle <command> -h' for the command's flags\n")
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		usage(stderr)
		return errUsage
	}

	var cmd *command
	for i := range commands {
		if commands[i].name == args[0] {
			cmd = &commands[i]
			break
		}
	}
	if cmd == nil {
		if args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
			usage(stdout)
			return nil
		}
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		usage(stderr)
		return errUsage
	}

	opts := &options{}
	fs := flag.NewFlagSet(cmd.name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	registerFlags(fs, opts)
	if cmd.flags != nil {
		cmd.flags(fs, opts)
	}
	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return errUsage
	}

	log, err := newLogger(opts.logLevel)
	if err != nil {
		return err
	}
	log.Logger.SetOutput(stderr)

	cfg, err := loadConfig(opts.configFile, log)
	if err != nil {
		return err
	}
	applyConfigWithCLIOverrides(fs, cfg, opts)

	// The config file may lower or raise the level.
	if level, err := logrus.ParseLevel(opts.logLevel); err == nil {
		log.Logger.SetLevel(level)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return cmd.run(ctx, &env{opts: opts, log: log, out: stdout}, fs.Args())
}

func runVersion(_ context.Context, e *env, _ []string) error {
	fmt.Fprintf(e.out, "X1 Pixel Battle %s (%s)\n", Version, GitCommit)
	return nil
}
