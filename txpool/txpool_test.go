package txpool

import (
	"math/big"
	"testing"

	"github.com/meshchain/execcore/core/types"
)

type mockState struct {
	nonces map[types.Address]uint64
}

func newMockState() *mockState { return &mockState{nonces: make(map[types.Address]uint64)} }

func (s *mockState) Nonce(addr types.Address) (uint64, error) { return s.nonces[addr], nil }

var testSender = types.BytesToAddress([]byte{0x01, 0x02, 0x03})

func makeTx(hashByte byte, nonce uint64, gas uint64) *Transaction {
	return &Transaction{
		Hash:     types.BytesToHash([]byte{hashByte}),
		From:     testSender,
		To:       types.BytesToAddress([]byte{0xde, 0xad}),
		Input:    nil,
		Gas:      gas,
		GasPrice: big.NewInt(1),
		Nonce:    nonce,
	}
}

func TestAddPendingWhenNonceMatchesState(t *testing.T) {
	pool := New(DefaultConfig(), newMockState())
	tx := makeTx(1, 0, 21000)
	if err := pool.Add(tx); err != nil {
		t.Fatalf("add: %v", err)
	}
	pending := pool.Pending()
	if len(pending[testSender]) != 1 {
		t.Fatalf("pending = %v, want 1 tx", pending)
	}
}

func TestAddQueuesFutureNonce(t *testing.T) {
	pool := New(DefaultConfig(), newMockState())
	tx := makeTx(1, 5, 21000)
	if err := pool.Add(tx); err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(pool.Pending()[testSender]) != 0 {
		t.Fatal("future-nonce tx should not be pending yet")
	}
	if pool.Count() != 1 {
		t.Fatalf("count = %d, want 1", pool.Count())
	}
}

func TestPromoteOnSequentialArrival(t *testing.T) {
	pool := New(DefaultConfig(), newMockState())
	future := makeTx(1, 1, 21000)
	if err := pool.Add(future); err != nil {
		t.Fatalf("add future: %v", err)
	}
	current := makeTx(2, 0, 21000)
	if err := pool.Add(current); err != nil {
		t.Fatalf("add current: %v", err)
	}
	pending := pool.Pending()[testSender]
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2 (promoted)", len(pending))
	}
	if pending[0].Nonce != 0 || pending[1].Nonce != 1 {
		t.Fatalf("pending out of order: %+v", pending)
	}
}

func TestAddDuplicateHashRejected(t *testing.T) {
	pool := New(DefaultConfig(), newMockState())
	tx := makeTx(1, 0, 21000)
	if err := pool.Add(tx); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := pool.Add(tx); err != ErrAlreadyKnown {
		t.Fatalf("err = %v, want ErrAlreadyKnown", err)
	}
}

func TestAddNonceTooLowRejected(t *testing.T) {
	state := newMockState()
	state.nonces[testSender] = 5
	pool := New(DefaultConfig(), state)
	tx := makeTx(1, 2, 21000)
	if err := pool.Add(tx); err != ErrNonceTooLow {
		t.Fatalf("err = %v, want ErrNonceTooLow", err)
	}
}

func TestAddIntrinsicGasTooLowRejected(t *testing.T) {
	pool := New(DefaultConfig(), newMockState())
	tx := makeTx(1, 0, 100)
	if err := pool.Add(tx); err != ErrIntrinsicGas {
		t.Fatalf("err = %v, want ErrIntrinsicGas", err)
	}
}

func TestResolveReturnsInlineInput(t *testing.T) {
	pool := New(DefaultConfig(), newMockState())
	tx := makeTx(1, 0, 21000)
	tx.Input = []byte{0xaa, 0xbb}
	if err := pool.Add(tx); err != nil {
		t.Fatalf("add: %v", err)
	}
	input, ok := pool.Resolve(tx.Hash)
	if !ok {
		t.Fatal("resolve: expected hit")
	}
	if input.Kind != types.InputInline || input.From != testSender || string(input.Input) != "\xaa\xbb" {
		t.Fatalf("resolved input = %+v", input)
	}
}

func TestResolveMissUnknownHash(t *testing.T) {
	pool := New(DefaultConfig(), newMockState())
	if _, ok := pool.Resolve(types.BytesToHash([]byte{0xff})); ok {
		t.Fatal("resolve: expected miss for unknown hash")
	}
}

func TestRemoveDropsFromPendingAndLookup(t *testing.T) {
	pool := New(DefaultConfig(), newMockState())
	tx := makeTx(1, 0, 21000)
	if err := pool.Add(tx); err != nil {
		t.Fatalf("add: %v", err)
	}
	pool.Remove(tx.Hash)
	if pool.Count() != 0 {
		t.Fatalf("count = %d, want 0", pool.Count())
	}
	if _, ok := pool.Resolve(tx.Hash); ok {
		t.Fatal("resolve: expected miss after remove")
	}
}

func TestResetDropsStaleNoncesAndPromotesQueue(t *testing.T) {
	pool := New(DefaultConfig(), newMockState())
	if err := pool.Add(makeTx(1, 0, 21000)); err != nil {
		t.Fatalf("add 0: %v", err)
	}
	if err := pool.Add(makeTx(2, 1, 21000)); err != nil {
		t.Fatalf("add 1: %v", err)
	}

	advanced := newMockState()
	advanced.nonces[testSender] = 1
	pool.Reset(advanced)

	pending := pool.Pending()[testSender]
	if len(pending) != 1 || pending[0].Nonce != 1 {
		t.Fatalf("pending after reset = %+v, want only nonce 1", pending)
	}
}

func TestIntrinsicGasChargesCreateAndDataCosts(t *testing.T) {
	base := IntrinsicGas(nil, false)
	if base != 21000 {
		t.Fatalf("base gas = %d, want 21000", base)
	}
	createBase := IntrinsicGas(nil, true)
	if createBase != 53000 {
		t.Fatalf("create base gas = %d, want 53000", createBase)
	}
	withData := IntrinsicGas([]byte{0x00, 0x01}, false)
	if withData != 21000+4+16 {
		t.Fatalf("data gas = %d, want %d", withData, 21000+4+16)
	}
}
