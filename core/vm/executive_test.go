package vm

import (
	"math/big"
	"testing"

	"github.com/meshchain/execcore/core/state"
	"github.com/meshchain/execcore/core/types"
)

type fakeVm struct {
	result VmResult
	err    error
	before func(host HostAPI)
}

func (f *fakeVm) Execute(host HostAPI, msg VmMessage) (VmResult, error) {
	if f.before != nil {
		f.before(host)
	}
	return f.result, f.err
}

func TestExecutiveFinishedCallReturnsOutput(t *testing.T) {
	bc := newTestBlockContext()
	bc.Vm = &fakeVm{result: VmResult{Status: types.StatusNone, GasLeft: 100, ReturnData: []byte("ok")}}
	layer := state.NewRootLayer(1, nil)

	exec := NewExecutive(bc, 1, bc.NextSeq(), layer)
	host := NewHostContext(bc, layer, exec)
	if err := host.SetCode(types.HexToAddress("0xaa"), []byte{0x60}); err != nil {
		t.Fatalf("set code: %v", err)
	}

	input := &types.TransactionInput{
		Kind: types.InputInline,
		From: types.HexToAddress("0x02"),
		To:   types.HexToAddress("0xaa"),
		Gas:  30000,
	}
	exec.Go(input)
	result := exec.Wait()
	if !result.IsFinished() {
		t.Fatalf("expected finished result, got kind=%d status=%d", result.Kind, result.Status)
	}
	if string(result.Data) != "ok" {
		t.Fatalf("unexpected output: %q", result.Data)
	}
}

func TestExecutivePlainTransferNoCodeLeavesGasAfterIntrinsic(t *testing.T) {
	bc := newTestBlockContext()
	layer := state.NewRootLayer(1, nil)
	exec := NewExecutive(bc, 1, bc.NextSeq(), layer)

	input := &types.TransactionInput{
		Kind: types.InputInline,
		From: types.HexToAddress("0x02"),
		To:   types.HexToAddress("0xab"),
		Gas:  25000,
	}
	exec.Go(input)
	result := exec.Wait()
	if !result.IsFinished() || result.Gas != 4000 {
		t.Fatalf("expected finished with 4000 gas left after the 21000 intrinsic charge, got %+v", result)
	}
}

func TestExecutiveIntrinsicGasExceedingLimitReverts(t *testing.T) {
	bc := newTestBlockContext()
	layer := state.NewRootLayer(1, nil)
	exec := NewExecutive(bc, 1, bc.NextSeq(), layer)

	input := &types.TransactionInput{
		Kind: types.InputInline,
		From: types.HexToAddress("0x02"),
		To:   types.HexToAddress("0x03"),
		Gas:  100,
	}
	exec.Go(input)
	result := exec.Wait()
	if !result.IsRevert() || result.Status != types.StatusOutOfGas {
		t.Fatalf("expected out-of-gas revert when gas is below intrinsic cost, got %+v", result)
	}
}

func TestExecutiveVmRevertRollsBackStorage(t *testing.T) {
	bc := newTestBlockContext()
	layer := state.NewRootLayer(1, nil)
	exec := NewExecutive(bc, 1, bc.NextSeq(), layer)
	host := NewHostContext(bc, layer, exec)

	addr := types.HexToAddress("0xaa")
	if err := host.SetCode(addr, []byte{0x60}); err != nil {
		t.Fatalf("set code: %v", err)
	}
	if err := host.SetBalance(addr, big.NewInt(10)); err != nil {
		t.Fatalf("set balance: %v", err)
	}

	bc.Vm = &fakeVm{
		result: VmResult{Status: types.StatusRevertInstruction},
		before: func(host HostAPI) {
			_ = host.SetBalance(addr, big.NewInt(999))
		},
	}
	exec2 := NewExecutive(bc, 1, bc.NextSeq(), layer)

	input := &types.TransactionInput{Kind: types.InputInline, From: types.HexToAddress("0x02"), To: addr, Gas: 30000}
	exec2.Go(input)
	result := exec2.Wait()
	if !result.IsRevert() {
		t.Fatalf("expected revert, got %+v", result)
	}

	bal, err := host.Balance(addr)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal.Int64() != 10 {
		t.Fatalf("expected balance restored to 10 after rollback, got %s", bal)
	}
}

func TestCreateAddressIsDeterministic(t *testing.T) {
	sender := types.HexToAddress("0x00000000000000000000000000000000000042")
	a1 := createAddress(sender, 0)
	a2 := createAddress(sender, 0)
	a3 := createAddress(sender, 1)
	if a1 != a2 {
		t.Fatal("same sender/nonce should derive the same address")
	}
	if a1 == a3 {
		t.Fatal("different nonces should derive different addresses")
	}
}

func TestCreate2AddressIsDeterministic(t *testing.T) {
	sender := types.HexToAddress("0x00000000000000000000000000000000000042")
	salt := types.HexToHash("0x01")
	code := []byte{0x60, 0x00}
	a1 := create2Address(sender, salt, code)
	a2 := create2Address(sender, salt, code)
	if a1 != a2 {
		t.Fatal("create2 address must be deterministic for identical inputs")
	}
}
