package precompiled

import (
	"github.com/meshchain/execcore/core/abi"
	"github.com/meshchain/execcore/core/state"
	"github.com/meshchain/execcore/core/types"
	"github.com/meshchain/execcore/core/vm"
)

var (
	createTableSelector = abi.Selector("createTable(string,string,string)")
	openTableSelector   = abi.Selector("openTable(string)")
	descTableSelector   = abi.Selector("desc(string)")
)

// TableFactory implements the 0x1001 precompile: table lifecycle
// (createTable/openTable/desc), per spec.md §4.5.
type TableFactory struct{}

var _ vm.Precompiled = (*TableFactory)(nil)

func (p *TableFactory) Name() string { return "TableFactory" }

func (p *TableFactory) Call(bc *vm.BlockContext, layer *state.StorageLayer, data []byte, origin, sender types.Address) (uint64, []byte, error) {
	sel, rest, err := abi.DecodeSelector(data)
	if err != nil {
		return 0, nil, err
	}
	gas := &pricer{}
	dec := abi.NewDecoder(rest)

	switch sel {
	case createTableSelector:
		tableName, err := dec.String()
		if err != nil {
			return 0, nil, err
		}
		keyField, err := dec.String()
		if err != nil {
			return 0, nil, err
		}
		valueFieldCSV, err := dec.String()
		if err != nil {
			return 0, nil, err
		}
		code := createUserTable(layer, gas, tableName, keyField, valueFieldCSV)
		return gas.total, encodeInt256(code), nil

	case openTableSelector:
		tableName, err := dec.String()
		if err != nil {
			return 0, nil, err
		}
		if _, exists := layer.OpenTable(tableName); !exists {
			return gas.total, encodeInt256(CodeTableNotExist), nil
		}
		gas.openTable()
		addr := bc.RegisterPrecompiled(&liveTable{tableName: tableName})
		var enc abi.Encoder
		enc.AddStatic(abi.EncodeAddress(addr))
		return gas.total, enc.Bytes(), nil

	case descTableSelector:
		tableName, err := dec.String()
		if err != nil {
			return 0, nil, err
		}
		keyField, valueFieldCSV := describeTable(layer, gas, tableName)
		var enc abi.Encoder
		enc.AddDynamic(abi.EncodeString(keyField))
		enc.AddDynamic(abi.EncodeString(valueFieldCSV))
		return gas.total, enc.Bytes(), nil

	default:
		return gas.total, encodeInt256(CodeUnknownFunction), nil
	}
}

func createUserTable(layer *state.StorageLayer, gas *pricer, tableName, keyField, valueFieldCSV string) int64 {
	if !types.IsTableNameValid(tableName) {
		return CodeAddressInvalid
	}
	if _, exists := layer.OpenTable(tableName); exists {
		return CodeContractAddressAlreadyUsed
	}
	valueFields := types.SplitValueFieldString(valueFieldCSV)
	if _, err := layer.CreateTable(tableName, keyField, valueFields); err != nil {
		return CodeAddressInvalid
	}
	gas.createTable()
	return CodeSuccess
}

func describeTable(layer *state.StorageLayer, gas *pricer, tableName string) (string, string) {
	if _, ok := layer.OpenTable(tableName); !ok {
		return "", ""
	}
	gas.openTable()
	meta, exists, err := layer.GetRow(types.SysTablesName, tableName)
	if err != nil || !exists {
		return "", ""
	}
	keyField, _ := meta.Get("key_field")
	valueField, _ := meta.Get("value_field")
	return keyField, valueField
}

// kvValueField is the single value column a KVTable row stores under, per
// spec.md §4.5's get(key)/set(key, value) shape.
const kvValueField = "value"

var (
	kvCreateTableSelector = abi.Selector("createTable(string,string)")
	kvOpenTableSelector   = abi.Selector("openTable(string)")
)

// KVTableFactory implements the 0x1009 precompile: the key/value-shaped
// sibling of TableFactory, whose openTable hands back a KVTable live
// object rather than a general row-shaped Table.
type KVTableFactory struct{}

var _ vm.Precompiled = (*KVTableFactory)(nil)

func (p *KVTableFactory) Name() string { return "KVTableFactory" }

func (p *KVTableFactory) Call(bc *vm.BlockContext, layer *state.StorageLayer, data []byte, origin, sender types.Address) (uint64, []byte, error) {
	sel, rest, err := abi.DecodeSelector(data)
	if err != nil {
		return 0, nil, err
	}
	gas := &pricer{}
	dec := abi.NewDecoder(rest)

	switch sel {
	case kvCreateTableSelector:
		tableName, err := dec.String()
		if err != nil {
			return 0, nil, err
		}
		keyField, err := dec.String()
		if err != nil {
			return 0, nil, err
		}
		code := createUserTable(layer, gas, tableName, keyField, kvValueField)
		return gas.total, encodeInt256(code), nil

	case kvOpenTableSelector:
		tableName, err := dec.String()
		if err != nil {
			return 0, nil, err
		}
		if _, exists := layer.OpenTable(tableName); !exists {
			return gas.total, encodeInt256(CodeTableNotExist), nil
		}
		gas.openTable()
		addr := bc.RegisterPrecompiled(&KVTable{tableName: tableName, valueField: kvValueField})
		var enc abi.Encoder
		enc.AddStatic(abi.EncodeAddress(addr))
		return gas.total, enc.Bytes(), nil

	default:
		return gas.total, encodeInt256(CodeUnknownFunction), nil
	}
}
