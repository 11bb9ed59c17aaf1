package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/meshchain/execcore/backend"
	"github.com/meshchain/execcore/core/types"
	"github.com/meshchain/execcore/core/vm"
	"github.com/meshchain/execcore/executor"
	"github.com/meshchain/execcore/log"
)

var benchSender = types.BytesToAddress([]byte("execcore-bench-sender"))

func benchCommand() *cli.Command {
	return &cli.Command{
		Name:  "bench",
		Usage: "run a synthetic DAG-execution throughput benchmark",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "txs", Value: 1000, Usage: "number of synthetic transactions to execute"},
		},
		Action: benchAction,
	}
}

// benchAction deploys one trivial (STOP-only) contract and fires `txs`
// independent calls into it through DagExecuteTransactions. None of the
// calls registers a ParallelConfig entry, so resolveCriticals treats
// every one of them as critical-to-all and the planner serialises them,
// one transaction per wave (see DESIGN.md's precompiled-criticals note) —
// this measures the worst-case, fully-serialised throughput floor of
// one worker pool rather than best-case parallel speedup.
func benchAction(c *cli.Context) error {
	cfg := configFromContext(c)
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := log.Default().Module("execcore")

	store := backend.NewMemoryStore()
	ex, err := executor.New(executor.Config{
		Backend:   store,
		Writer:    store,
		Schedule:  vm.DefaultSchedule(),
		Workers:   cfg.Workers,
		VMFactory: gethVMFactory(cfg.NetworkID),
	})
	if err != nil {
		return fmt.Errorf("build executor: %w", err)
	}

	header := vm.BlockHeader{Number: 1, GasLimit: 30_000_000}
	ex.NextBlockHeader(header)

	deployed, err := ex.ExecuteTransaction(executor.Request{
		ContextID: 1,
		Input: &types.TransactionInput{
			Kind: types.InputInline, From: benchSender,
			Input: []byte{0x00}, Gas: 1_000_000,
		},
	})
	if err != nil {
		return fmt.Errorf("deploy bench contract: %w", err)
	}
	if !deployed.IsFinished() || deployed.NewEVMContractAddress == nil {
		return errors.New("execcore: bench contract deployment did not finish")
	}
	addr := *deployed.NewEVMContractAddress

	txCount := c.Int("txs")
	if txCount < 1 {
		return fmt.Errorf("txs must be >= 1, got %d", txCount)
	}
	reqs := make([]executor.Request, txCount)
	for i := 0; i < txCount; i++ {
		reqs[i] = executor.Request{
			ContextID: uint64(i + 2),
			Input: &types.TransactionInput{
				Kind: types.InputInline, From: benchSender, To: addr,
				Input: []byte{0x00}, Gas: 100_000,
			},
		}
	}

	start := time.Now()
	results, err := ex.DagExecuteTransactions(context.Background(), reqs)
	elapsed := time.Since(start)
	if err != nil {
		return fmt.Errorf("dag execute: %w", err)
	}

	ok := 0
	for _, r := range results {
		if r.IsFinished() {
			ok++
		}
	}
	tps := float64(txCount) / elapsed.Seconds()
	logger.Info("bench complete", "transactions", txCount, "ok", ok, "elapsed", elapsed, "tps", tps)
	fmt.Printf("executed %d transactions (%d ok) in %s (%.1f tx/s)\n", txCount, ok, elapsed, tps)
	return nil
}
