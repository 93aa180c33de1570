// Package commands provides the CLI commands for the simc tool.
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/btcsuite/btclog"
	"github.com/spf13/cobra"

	"martianoff/simc/internal/compiler"
	"martianoff/simc/internal/config"
	"martianoff/simc/internal/logging"
)

// app is the state shared by all subcommands once flags are parsed.
type app struct {
	cfg      *config.Config
	compiler *compiler.Compiler
	log      btclog.Logger
}

func (a *app) setup(logLevel string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := logging.SetLevels(cfg.LogLevel); err != nil {
		return err
	}

	a.cfg = cfg
	a.log = logging.Logger(logging.CLI)
	a.compiler = compiler.New(
		compiler.WithCache(compiler.NewMemoryCache(cfg.CacheSize)),
		compiler.WithWorkers(cfg.Workers),
	)
	a.log.Debugf("home %s, cache size %d, workers %d", cfg.Home, cfg.CacheSize, cfg.Workers)
	return nil
}

// NewRootCmd builds the simc command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	var logLevel string

	cmd := &cobra.Command{
		Use:   "simc",
		Short: "Contract compiler producing commitment Merkle roots",
		Long: `simc compiles contracts into combinator programs and prints their
commitment Merkle root (CMR). Witness values can be bound from JSON or YAML.

Usage:
  simc compile main.simc                 Print the CMR of a contract
  simc compile main.simc -w wit.json     Bind witness values
  simc compile a.simc b.simc --emit json Compile several files
  simc watch main.simc                   Recompile on every change
  simc repl                              Compile interactively
  simc version                           Print version`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(logLevel)
		},
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: trace, debug, info, warn, error, critical or off")

	cmd.AddCommand(newCompileCmd(a))
	cmd.AddCommand(newWatchCmd(a))
	cmd.AddCommand(newReplCmd(a))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// signalContext is canceled on Ctrl-C or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signalContext(context.Background())
	err := NewRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
