package precompiled

import (
	"github.com/meshchain/execcore/core/abi"
	"github.com/meshchain/execcore/core/state"
	"github.com/meshchain/execcore/core/types"
	"github.com/meshchain/execcore/core/vm"
)

var deployWasmSelector = abi.Selector("deployWasm(bytes,bytes,string,string)")

// DeployWasm implements the WASM-mode deployment precompile: it validates
// the target BFS path, recursively creates parent directories, hands
// control to a CREATE flow at that path, and on success records a leaf
// contract row in the parent directory, per spec.md §4.5.
type DeployWasm struct{}

var _ vm.Precompiled = (*DeployWasm)(nil)

func (p *DeployWasm) Name() string { return "DeployWasm" }

func (p *DeployWasm) Call(bc *vm.BlockContext, layer *state.StorageLayer, data []byte, origin, sender types.Address) (uint64, []byte, error) {
	sel, rest, err := abi.DecodeSelector(data)
	if err != nil {
		return 0, nil, err
	}
	gas := &pricer{}
	if sel != deployWasmSelector {
		return gas.total, encodeInt256(CodeUnknownFunction), nil
	}

	dec := abi.NewDecoder(rest)
	code, err := dec.DynamicBytes()
	if err != nil {
		return 0, nil, err
	}
	params, err := dec.DynamicBytes()
	if err != nil {
		return 0, nil, err
	}
	path, err := dec.String()
	if err != nil {
		return 0, nil, err
	}
	contractABI, err := dec.String()
	if err != nil {
		return 0, nil, err
	}

	if _, exists, _ := layer.GetRow(SysFileSystemTable, path); exists {
		return gas.total, encodeInt256(CodePathExists), nil
	}
	if _, ok := splitPath(path); !ok {
		return gas.total, encodeInt256(CodePathInvalid), nil
	}

	if bc.Vm == nil {
		return gas.total, encodeInt256(CodePathInvalid), nil
	}
	msg := vm.VmMessage{
		Sender: sender,
		Code:   code,
		Input:  params,
		Gas:    int64(^uint64(0) >> 1),
		Create: true,
	}
	host := vm.NewHostContext(bc, layer, nil)
	result, err := bc.Vm.Execute(host, msg)
	if err != nil || result.Status != types.StatusNone {
		return gas.total, encodeInt256(CodePathInvalid), nil
	}

	if fsCode := insertContractRecord(layer, gas, path); fsCode != CodeSuccess {
		return gas.total, encodeInt256(fsCode), nil
	}
	gas.bytes(len(contractABI))
	return gas.total, encodeInt256(CodeSuccess), nil
}
