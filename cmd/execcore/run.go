package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/meshchain/execcore/backend"
	"github.com/meshchain/execcore/core/vm"
	"github.com/meshchain/execcore/executor"
	"github.com/meshchain/execcore/log"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "execute a batch of calls against one block and commit it",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "input", Required: true, Usage: "path to a JSON batch file"},
			&cli.Uint64Flag{Name: "block", Value: 1, Usage: "block number the batch executes against"},
			&cli.Uint64Flag{Name: "gaslimit", Value: 30_000_000, Usage: "block gas limit"},
		},
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	cfg := configFromContext(c)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.InitDataDir(); err != nil {
		return err
	}
	logger := log.Default().Module("execcore")

	b, err := loadBatch(c.String("input"))
	if err != nil {
		return err
	}

	store, err := backend.Open(cfg.ResolvePath("tables"))
	if err != nil {
		return fmt.Errorf("open backend: %w", err)
	}
	defer store.Close()

	ex, err := executor.New(executor.Config{
		Backend:     store,
		Writer:      store,
		Schedule:    vm.DefaultSchedule(),
		Workers:     cfg.Workers,
		WaveTimeout: cfg.WaveTimeout,
		VMFactory:   gethVMFactory(cfg.NetworkID),
	})
	if err != nil {
		return fmt.Errorf("build executor: %w", err)
	}

	header := vm.BlockHeader{Number: c.Uint64("block"), GasLimit: c.Uint64("gaslimit")}
	ex.NextBlockHeader(header)
	logger.Info("block opened", "number", header.Number, "transactions", len(b.Transactions))

	reqs := make([]executor.Request, len(b.Transactions))
	for i, tx := range b.Transactions {
		input, err := tx.toInput()
		if err != nil {
			return fmt.Errorf("transaction %d: %w", i, err)
		}
		reqs[i] = executor.Request{ContextID: uint64(i + 1), Input: input}
	}

	results, err := ex.DagExecuteTransactions(context.Background(), reqs)
	if err != nil {
		return fmt.Errorf("dag execute: %w", err)
	}
	for i, result := range results {
		logger.Info("transaction finished", "index", i, "status", result.Status, "finished", result.IsFinished())
	}

	if err := ex.Prepare(header.Number); err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	root, err := ex.Commit(header.Number)
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	logger.Info("block committed", "number", header.Number, "root", root.Hex())

	hashes, err := ex.GetTableHashes(header.Number)
	if err != nil {
		return fmt.Errorf("get table hashes: %w", err)
	}
	for _, h := range hashes {
		fmt.Printf("%s %s\n", h.Name, h.Hash.Hex())
	}
	return nil
}
