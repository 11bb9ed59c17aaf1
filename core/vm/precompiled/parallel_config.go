package precompiled

import (
	"encoding/hex"
	"fmt"

	"github.com/meshchain/execcore/core/abi"
	"github.com/meshchain/execcore/core/state"
	"github.com/meshchain/execcore/core/types"
	"github.com/meshchain/execcore/core/vm"
)

var (
	registerParallelFnSelector   = abi.Selector("registerParallelFunctionInternal(address,string,uint256)")
	unregisterParallelFnSelector = abi.Selector("unregisterParallelFunctionInternal(address,string)")
	getParallelConfigSelector    = abi.Selector("getParallelConfig(address,bytes4)")
)

func parallelConfigTable(addr types.Address) string { return "cp_" + addr.Hex()[2:] }

// ParallelConfig implements the 0x1006 precompile: the criticals registry
// the DAG planner consults for ordinary (non-precompiled) calls, per
// spec.md §4.5 and §4.6 step 1. Each contract's registrations live in
// their own cp_{address} table keyed by 4-byte function selector.
type ParallelConfig struct{}

var _ vm.Precompiled = (*ParallelConfig)(nil)

func (p *ParallelConfig) Name() string { return "ParallelConfig" }

func (p *ParallelConfig) Call(bc *vm.BlockContext, layer *state.StorageLayer, data []byte, origin, sender types.Address) (uint64, []byte, error) {
	sel, rest, err := abi.DecodeSelector(data)
	if err != nil {
		return 0, nil, err
	}
	gas := &pricer{}
	dec := abi.NewDecoder(rest)

	switch sel {
	case registerParallelFnSelector:
		contractAddr, err := dec.Address()
		if err != nil {
			return 0, nil, err
		}
		functionSig, err := dec.String()
		if err != nil {
			return 0, nil, err
		}
		criticalSize, err := dec.Uint256()
		if err != nil {
			return 0, nil, err
		}
		code := p.register(layer, gas, contractAddr, functionSig, criticalSize.Uint64())
		return gas.total, encodeInt256(code), nil

	case unregisterParallelFnSelector:
		contractAddr, err := dec.Address()
		if err != nil {
			return 0, nil, err
		}
		functionSig, err := dec.String()
		if err != nil {
			return 0, nil, err
		}
		code := p.unregister(layer, gas, contractAddr, functionSig)
		return gas.total, encodeInt256(code), nil

	case getParallelConfigSelector:
		contractAddr, err := dec.Address()
		if err != nil {
			return 0, nil, err
		}
		selectorWord, err := dec.Bytes32()
		if err != nil {
			return 0, nil, err
		}
		functionName, criticalSize, found := p.lookup(layer, gas, contractAddr, selectorWord.Bytes()[:4])
		var enc abi.Encoder
		enc.AddStatic(abi.EncodeBool(found))
		enc.AddDynamic(abi.EncodeString(functionName))
		enc.AddStatic(abi.EncodeUint64(criticalSize))
		return gas.total, enc.Bytes(), nil

	default:
		return gas.total, encodeInt256(CodeUnknownFunction), nil
	}
}

func (p *ParallelConfig) register(layer *state.StorageLayer, gas *pricer, contractAddr types.Address, functionSig string, criticalSize uint64) int64 {
	tableName := parallelConfigTable(contractAddr)
	tbl, err := openOrCreate(layer, tableName, "selector", []string{"function_name", "critical_size"})
	if err != nil {
		return CodeAddressInvalid
	}
	gas.openTable()

	sel := abi.Selector(functionSig)
	entry := types.NewEntry()
	entry.Set("function_name", functionSig)
	entry.Set("critical_size", fmt.Sprintf("%d", criticalSize))
	if err := tbl.SetRow(hex.EncodeToString(sel[:]), entry); err != nil {
		return CodeAddressInvalid
	}
	gas.set()
	return CodeSuccess
}

func (p *ParallelConfig) unregister(layer *state.StorageLayer, gas *pricer, contractAddr types.Address, functionSig string) int64 {
	tableName := parallelConfigTable(contractAddr)
	tbl, ok := layer.OpenTable(tableName)
	if !ok {
		return CodeTableNotExist
	}
	gas.openTable()

	sel := abi.Selector(functionSig)
	if err := tbl.RemoveRow(hex.EncodeToString(sel[:])); err != nil {
		return CodeAddressInvalid
	}
	gas.remove()
	return CodeSuccess
}

// lookup is also used directly by the DAG planner (spec.md §4.6 step 1)
// to resolve a transaction's criticalSize for an ordinary call.
func (p *ParallelConfig) lookup(layer *state.StorageLayer, gas *pricer, contractAddr types.Address, selector []byte) (string, uint64, bool) {
	tableName := parallelConfigTable(contractAddr)
	tbl, ok := layer.OpenTable(tableName)
	if !ok {
		return "", 0, false
	}
	if gas != nil {
		gas.openTable()
	}
	entry, exists, err := tbl.GetRow(hex.EncodeToString(selector))
	if err != nil || !exists {
		return "", 0, false
	}
	if gas != nil {
		gas.selectOp(1)
	}
	name, _ := entry.Get("function_name")
	sizeStr, _ := entry.Get("critical_size")
	var size uint64
	fmt.Sscanf(sizeStr, "%d", &size)
	return name, size, true
}

// LookupCriticalSize is the DAG planner's entry point into the
// ParallelConfig registry, independent of any particular *ParallelConfig
// receiver instance (the registry lives in the table, not the struct).
func LookupCriticalSize(layer *state.StorageLayer, contractAddr types.Address, selector []byte) (string, uint64, bool) {
	var pc ParallelConfig
	return pc.lookup(layer, nil, contractAddr, selector)
}
