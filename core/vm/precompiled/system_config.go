package precompiled

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/meshchain/execcore/core/abi"
	"github.com/meshchain/execcore/core/state"
	"github.com/meshchain/execcore/core/types"
	"github.com/meshchain/execcore/core/vm"
)

// SysConfigTable is SYS_CONFIG(key -> value, enable_block_number), per
// spec.md §6's system tables list.
const SysConfigTable = "SYS_CONFIG"

var setValueByKeySelector = abi.Selector("setValueByKey(string,string)")
var getValueByKeySelector = abi.Selector("getValueByKey(string)")

// configValidators enforces the per-key predicates spec.md §4.5 lists for
// SystemConfig.setValueByKey.
var configValidators = map[string]func(string) bool{
	"tx_gas_limit": func(v string) bool {
		n, err := strconv.ParseUint(v, 10, 64)
		return err == nil && n >= 100000
	},
	"tx_count_limit": func(v string) bool {
		n, err := strconv.ParseUint(v, 10, 64)
		return err == nil && n >= 1
	},
	"consensus_timeout": func(v string) bool {
		n, err := strconv.ParseUint(v, 10, 64)
		return err == nil && n >= 3 && n < (^uint64(0))/1000
	},
	"consensus_leader_period": func(v string) bool {
		n, err := strconv.ParseUint(v, 10, 64)
		return err == nil && n >= 1
	},
}

// SystemConfig implements the 0x1000 precompile.
type SystemConfig struct{}

var _ vm.Precompiled = (*SystemConfig)(nil)

func (p *SystemConfig) Name() string { return "SystemConfig" }

func (p *SystemConfig) Call(bc *vm.BlockContext, layer *state.StorageLayer, data []byte, origin, sender types.Address) (uint64, []byte, error) {
	sel, rest, err := abi.DecodeSelector(data)
	if err != nil {
		return 0, nil, err
	}
	gas := &pricer{}

	switch sel {
	case setValueByKeySelector:
		dec := abi.NewDecoder(rest)
		key, err := dec.String()
		if err != nil {
			return 0, nil, err
		}
		value, err := dec.String()
		if err != nil {
			return 0, nil, err
		}
		code := p.setValueByKey(bc, layer, gas, key, value)
		return gas.total, encodeInt256(code), nil

	case getValueByKeySelector:
		dec := abi.NewDecoder(rest)
		key, err := dec.String()
		if err != nil {
			return 0, nil, err
		}
		value, enableNumber := p.getValueByKey(layer, gas, key)
		var enc abi.Encoder
		enc.AddDynamic(abi.EncodeString(value))
		enc.AddStatic(abi.EncodeUint64(enableNumber))
		return gas.total, enc.Bytes(), nil

	default:
		return gas.total, encodeInt256(CodeUnknownFunction), nil
	}
}

func (p *SystemConfig) setValueByKey(bc *vm.BlockContext, layer *state.StorageLayer, gas *pricer, key, value string) int64 {
	validate, known := configValidators[key]
	if known && !validate(value) {
		return CodeInvalidConfigValue
	}

	tbl, err := openOrCreate(layer, SysConfigTable, "key", []string{"value", "enable_block_number"})
	if err != nil {
		return CodeInvalidConfigValue
	}
	gas.openTable()

	entry := types.NewEntry()
	entry.Set("value", value)
	entry.Set("enable_block_number", fmt.Sprintf("%d", bc.Header.Number+1))
	if err := tbl.SetRow(key, entry); err != nil {
		return CodeInvalidConfigValue
	}
	gas.set()
	return CodeSuccess
}

func (p *SystemConfig) getValueByKey(layer *state.StorageLayer, gas *pricer, key string) (string, uint64) {
	tbl, ok := layer.OpenTable(SysConfigTable)
	if !ok {
		return "", 0
	}
	gas.openTable()
	entry, exists, err := tbl.GetRow(key)
	if err != nil || !exists {
		return "", 0
	}
	gas.selectOp(1)
	value, _ := entry.Get("value")
	enableStr, _ := entry.Get("enable_block_number")
	enableNumber, _ := new(big.Int).SetString(enableStr, 10)
	if enableNumber == nil {
		enableNumber = new(big.Int)
	}
	return value, enableNumber.Uint64()
}

// int256Word renders v as the 32-byte two's-complement word an int256
// return value occupies, per spec.md §6's signed error-code convention.
func int256Word(v int64) []byte {
	if v < 0 {
		big256 := new(big.Int).Lsh(big.NewInt(1), 256)
		n := new(big.Int).Add(big256, big.NewInt(v))
		word := make([]byte, 32)
		n.FillBytes(word)
		return word
	}
	return abi.EncodeUint64(uint64(v))
}

func encodeInt256(v int64) []byte {
	var enc abi.Encoder
	enc.AddStatic(int256Word(v))
	return enc.Bytes()
}

func openOrCreate(layer *state.StorageLayer, name, keyField string, valueFields []string) (*state.Table, error) {
	if tbl, ok := layer.OpenTable(name); ok {
		return tbl, nil
	}
	return layer.CreateTable(name, keyField, valueFields)
}
