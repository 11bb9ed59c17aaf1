package vm

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/meshchain/execcore/core/state"
	"github.com/meshchain/execcore/core/types"
	"github.com/meshchain/execcore/crypto"
)

// System tables backing the account-shaped view the HostContext presents
// to a running VM, even though the underlying store is table/row-shaped
// (spec.md §4.1). Balances, nonces and code hashes live one row per
// address in accountsTable; code bytes live in codeTable; each contract's
// storage lives in its own per-address table so get_primary_keys over a
// contract's slots stays a single table scan.
const (
	accountsTable   = "SYS_ACCOUNTS"
	accountsKey     = "address"
	codeTable       = "SYS_CODE"
	storageKeyField = "slot"
	storageValField = "value"
)

func storageTableName(addr types.Address) string {
	return "SYS_STORAGE_" + addr.Hex()[2:]
}

func ensureTable(layer *state.StorageLayer, name, keyField string, valueFields []string) (*state.Table, error) {
	if tbl, ok := layer.OpenTable(name); ok {
		return tbl, nil
	}
	tbl, err := layer.CreateTable(name, keyField, valueFields)
	if err != nil {
		return nil, fmt.Errorf("host: create table %q: %w", name, err)
	}
	return tbl, nil
}

// HostContext is the single side-effecting surface a running VM and the
// Precompiled catalogue both see (spec.md §4.4): storage reads/writes,
// account metadata, logs, block hash lookups, and nested call/create
// dispatch back through the owning Executive.
type HostContext struct {
	bc    *BlockContext
	layer *state.StorageLayer
	exec  *Executive
}

// NewHostContext binds a HostContext to one Executive's layer.
func NewHostContext(bc *BlockContext, layer *state.StorageLayer, exec *Executive) *HostContext {
	return &HostContext{bc: bc, layer: layer, exec: exec}
}

var _ HostAPI = (*HostContext)(nil)

func (h *HostContext) Store(addr types.Address, key types.Hash) (types.Hash, error) {
	tbl, ok := h.layer.OpenTable(storageTableName(addr))
	if !ok {
		return types.Hash{}, nil
	}
	entry, exists, err := tbl.GetRow(key.Hex())
	if err != nil || !exists {
		return types.Hash{}, err
	}
	v, _ := entry.Get(storageValField)
	return types.HexToHash(v), nil
}

func (h *HostContext) SetStore(addr types.Address, key, value types.Hash) error {
	tbl, err := ensureTable(h.layer, storageTableName(addr), storageKeyField, []string{storageValField})
	if err != nil {
		return err
	}
	if value.IsZero() {
		return tbl.RemoveRow(key.Hex())
	}
	entry := types.NewEntry()
	entry.Set(storageValField, value.Hex())
	return tbl.SetRow(key.Hex(), entry)
}

func (h *HostContext) accountRow(addr types.Address) (*types.Entry, bool, error) {
	tbl, ok := h.layer.OpenTable(accountsTable)
	if !ok {
		return nil, false, nil
	}
	return tbl.GetRow(addr.Hex())
}

func (h *HostContext) setAccountField(addr types.Address, field, value string) error {
	tbl, err := ensureTable(h.layer, accountsTable, accountsKey, []string{"balance", "nonce", "codeHash", "frozen"})
	if err != nil {
		return err
	}
	entry, exists, err := tbl.GetRow(addr.Hex())
	if err != nil {
		return err
	}
	if !exists {
		entry = types.NewEntry()
		entry.Set("balance", "0")
		entry.Set("nonce", "0")
		entry.Set("codeHash", types.EmptyCodeHash.Hex())
		entry.Set("frozen", "0")
	}
	entry.Set(field, value)
	return tbl.SetRow(addr.Hex(), entry)
}

func (h *HostContext) CodeAt(addr types.Address) ([]byte, error) {
	tbl, ok := h.layer.OpenTable(codeTable)
	if !ok {
		return nil, nil
	}
	entry, exists, err := tbl.GetRow(addr.Hex())
	if err != nil || !exists {
		return nil, err
	}
	code, _ := entry.Get("code")
	return fromHexString(code), nil
}

func fromHexString(s string) []byte {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	b, _ := hex.DecodeString(s)
	return b
}

func (h *HostContext) CodeHashAt(addr types.Address) (types.Hash, error) {
	entry, exists, err := h.accountRow(addr)
	if err != nil || !exists {
		return types.EmptyCodeHash, err
	}
	v, _ := entry.Get("codeHash")
	return types.HexToHash(v), nil
}

func (h *HostContext) CodeSizeAt(addr types.Address) (int, error) {
	if h.bc.IsPrecompiled(addr) || h.bc.IsEthereumPrecompiled(addr) {
		return 1, nil
	}
	code, err := h.CodeAt(addr)
	return len(code), err
}

func (h *HostContext) SetCode(addr types.Address, code []byte) error {
	tbl, err := ensureTable(h.layer, codeTable, accountsKey, []string{"code"})
	if err != nil {
		return err
	}
	entry := types.NewEntry()
	entry.Set("code", "0x"+hex.EncodeToString(code))
	if err := tbl.SetRow(addr.Hex(), entry); err != nil {
		return err
	}
	codeHash := crypto.Keccak256Hash(code)
	return h.setAccountField(addr, "codeHash", codeHash.Hex())
}

func (h *HostContext) Exists(addr types.Address) (bool, error) {
	_, exists, err := h.accountRow(addr)
	if exists {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	code, err := h.CodeAt(addr)
	return len(code) > 0, err
}

func (h *HostContext) Balance(addr types.Address) (*big.Int, error) {
	entry, exists, err := h.accountRow(addr)
	if err != nil || !exists {
		return new(big.Int), err
	}
	v, _ := entry.Get("balance")
	b, ok := new(big.Int).SetString(v, 10)
	if !ok {
		return new(big.Int), nil
	}
	return b, nil
}

func (h *HostContext) SetBalance(addr types.Address, balance *big.Int) error {
	return h.setAccountField(addr, "balance", balance.String())
}

func (h *HostContext) Nonce(addr types.Address) (uint64, error) {
	entry, exists, err := h.accountRow(addr)
	if err != nil || !exists {
		return 0, err
	}
	v, _ := entry.Get("nonce")
	var n uint64
	fmt.Sscanf(v, "%d", &n)
	return n, nil
}

func (h *HostContext) SetNonce(addr types.Address, nonce uint64) error {
	return h.setAccountField(addr, "nonce", fmt.Sprintf("%d", nonce))
}

// Suicide marks the account frozen (its "frozen" field set to "1"); the
// account's rows are not removed, at commit time or otherwise. Balance
// transfer on self-destruct is intentionally left disabled (DESIGN.md
// Open Question 3): the source this module is modeled on calls this out
// explicitly, and spec.md's Non-goals leave re-enabling it out of scope.
func (h *HostContext) Suicide(addr types.Address) error {
	return h.setAccountField(addr, "frozen", "1")
}

func (h *HostContext) Log(log *types.Log) {
	if h.exec == nil {
		return
	}
	h.exec.appendLog(log)
}

func (h *HostContext) BlockHash(number uint64) (types.Hash, error) {
	if number >= h.bc.Header.Number {
		return types.Hash{}, nil
	}
	if number == h.bc.Header.Number-1 {
		return h.bc.Header.ParentHash, nil
	}
	return types.Hash{}, nil
}

// Call dispatches an external message call to another Executive bound to
// the same block context and storage layer, then blocks on its result.
// The calling Executive does not suspend or return KindExternalCall while
// it waits: the child runs synchronously and its result is returned here.
func (h *HostContext) Call(params *types.CallParameters) *types.CallParameters {
	child := NewExecutive(h.bc, h.exec.contextID, h.bc.NextSeq(), h.layer)
	h.bc.InsertExecutive(child.contextID, child.seq, child)
	defer h.bc.RemoveExecutive(child.contextID, child.seq)

	input := &types.TransactionInput{
		Kind:       types.InputInline,
		From:       params.SenderAddress,
		To:         params.ReceiveAddress,
		Input:      params.Data,
		Gas:        uint64(params.Gas),
		Origin:     params.Origin,
		StaticCall: params.StaticCall,
	}
	child.Go(input)
	return child.Wait()
}

// Create dispatches a CREATE/CREATE2 request through a fresh Executive in
// create mode.
func (h *HostContext) Create(params *types.CallParameters) *types.CallParameters {
	child := NewExecutive(h.bc, h.exec.contextID, h.bc.NextSeq(), h.layer)
	h.bc.InsertExecutive(child.contextID, child.seq, child)
	defer h.bc.RemoveExecutive(child.contextID, child.seq)

	input := &types.TransactionInput{
		Kind:       types.InputInline,
		From:       params.SenderAddress,
		Input:      params.Data,
		Gas:        uint64(params.Gas),
		Origin:     params.Origin,
		CreateSalt: params.CreateSalt,
	}
	child.Go(input)
	return child.Wait()
}
