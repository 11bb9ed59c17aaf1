package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/urfave/cli/v2"
)

func writeBatchFile(t *testing.T, txs []batchTransaction) string {
	t.Helper()
	data, err := json.Marshal(batch{Transactions: txs})
	if err != nil {
		t.Fatalf("marshal batch: %v", err)
	}
	path := filepath.Join(t.TempDir(), "batch.json")
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("write batch file: %v", err)
	}
	return path
}

func TestRunCommandRequiresInputFlag(t *testing.T) {
	app := newApp()
	err := app.Run([]string{"execcore", "run"})
	if err == nil {
		t.Fatal("expected an error when --input is missing")
	}
}

func TestRunCommandExecutesCreationBatch(t *testing.T) {
	path := writeBatchFile(t, []batchTransaction{
		{From: "0x1000000000000000000000000000000000000001", Input: "0x00", Gas: 1_000_000},
	})
	datadir := t.TempDir()

	app := newApp()
	err := app.Run([]string{
		"execcore", "--datadir", datadir, "--workers", "1",
		"run", "--input", path, "--block", "1",
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestLoadBatchRejectsEmptyFile(t *testing.T) {
	path := writeBatchFile(t, nil)
	if _, err := loadBatch(path); err == nil {
		t.Fatal("expected an error for a batch file with no transactions")
	}
}

func TestBatchTransactionToInputDecodesCreation(t *testing.T) {
	tx := batchTransaction{From: "0x01", Input: "0x6000", Gas: 21000}
	input, err := tx.toInput()
	if err != nil {
		t.Fatalf("to input: %v", err)
	}
	if !input.IsCreate() {
		t.Fatal("expected a blank To to mean contract creation")
	}
	if len(input.Input) != 2 {
		t.Fatalf("input = %x, want 2 bytes", input.Input)
	}
}

func TestConfigFromContextAppliesGlobalFlags(t *testing.T) {
	app := newApp()
	var got Config
	app.Commands = append(app.Commands, &cli.Command{
		Name: "inspect",
		Action: func(c *cli.Context) error {
			got = configFromContext(c)
			return nil
		},
	})
	err := app.Run([]string{
		"execcore", "--datadir", "/tmp/execcore-test", "--networkid", "5",
		"--verbosity", "5", "--workers", "7", "inspect",
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got.DataDir != "/tmp/execcore-test" || got.NetworkID != 5 || got.Verbosity != 5 || got.Workers != 7 {
		t.Fatalf("config = %+v", got)
	}
	if got.LogLevel != "debug" {
		t.Fatalf("loglevel = %q, want debug", got.LogLevel)
	}
}
