package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/meshchain/execcore/core/types"
)

// batchTransaction is one call's wire-shaped JSON description — the
// hex/string encoding an operator's batch file uses to describe the
// core/types.TransactionInput fields executeTransaction needs.
type batchTransaction struct {
	From       string `json:"from"`
	To         string `json:"to,omitempty"`
	Input      string `json:"input"`
	Gas        uint64 `json:"gas"`
	CreateSalt string `json:"createSalt,omitempty"`
	StaticCall bool   `json:"staticCall,omitempty"`
}

// batch is the top-level shape of a `execcore run --input` file: every
// call belonging to one block, executed in one DagExecuteTransactions
// pass.
type batch struct {
	Transactions []batchTransaction `json:"transactions"`
}

func loadBatch(path string) (*batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch file: %w", err)
	}
	var b batch
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse batch file: %w", err)
	}
	if len(b.Transactions) == 0 {
		return nil, fmt.Errorf("batch file %s contains no transactions", path)
	}
	return &b, nil
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return nil, nil
	}
	return hex.DecodeString(s)
}

// toInput builds the TransactionInput executeTransaction dispatches. A
// blank To means contract creation, per core/types.TransactionInput's
// own IsCreate contract.
func (t batchTransaction) toInput() (*types.TransactionInput, error) {
	input, err := decodeHex(t.Input)
	if err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}
	ti := &types.TransactionInput{
		Kind:       types.InputInline,
		From:       types.HexToAddress(t.From),
		Input:      input,
		Gas:        t.Gas,
		StaticCall: t.StaticCall,
	}
	if t.To != "" {
		ti.To = types.HexToAddress(t.To)
	}
	if t.CreateSalt != "" {
		salt := types.HexToHash(t.CreateSalt)
		ti.CreateSalt = &salt
	}
	return ti, nil
}
