package precompiled

import (
	"github.com/meshchain/execcore/core/abi"
	"github.com/meshchain/execcore/core/state"
	"github.com/meshchain/execcore/core/types"
	"github.com/meshchain/execcore/core/vm"
)

var (
	liveInsertSelector = abi.Selector("insert(string,string)")
	liveUpdateSelector = abi.Selector("update(string,string)")
	liveRemoveSelector = abi.Selector("remove(string)")
	liveSelectSelector = abi.Selector("select(string,uint256,uint256)")
	liveDescSelector   = abi.Selector("desc()")
)

// liveTable is the dynamic precompile TableFactory.openTable hands back: a
// capability bound to one already-created table, so callers no longer
// repeat the table name on every CRUD call. Per spec.md §4.5's "openTable
// returns a dynamic precompiled address wrapping a live Table object".
type liveTable struct {
	tableName string
}

var _ vm.Precompiled = (*liveTable)(nil)

func (t *liveTable) Name() string { return "Table:" + t.tableName }

func (t *liveTable) Call(bc *vm.BlockContext, layer *state.StorageLayer, data []byte, origin, sender types.Address) (uint64, []byte, error) {
	sel, rest, err := abi.DecodeSelector(data)
	if err != nil {
		return 0, nil, err
	}
	gas := &pricer{}
	dec := abi.NewDecoder(rest)

	switch sel {
	case liveInsertSelector:
		key, err := dec.String()
		if err != nil {
			return 0, nil, err
		}
		entryJSON, err := dec.String()
		if err != nil {
			return 0, nil, err
		}
		code := crudInsert(layer, gas, t.tableName, key, entryJSON)
		return gas.total, encodeInt256(code), nil

	case liveUpdateSelector:
		conditionJSON, err := dec.String()
		if err != nil {
			return 0, nil, err
		}
		entryJSON, err := dec.String()
		if err != nil {
			return 0, nil, err
		}
		code := crudUpdate(layer, gas, t.tableName, conditionJSON, entryJSON)
		return gas.total, encodeInt256(code), nil

	case liveRemoveSelector:
		conditionJSON, err := dec.String()
		if err != nil {
			return 0, nil, err
		}
		code := crudRemove(layer, gas, t.tableName, conditionJSON)
		return gas.total, encodeInt256(code), nil

	case liveSelectSelector:
		conditionJSON, err := dec.String()
		if err != nil {
			return 0, nil, err
		}
		limit, err := dec.Uint64()
		if err != nil {
			return 0, nil, err
		}
		offset, err := dec.Uint64()
		if err != nil {
			return 0, nil, err
		}
		rowsJSON, code := crudSelect(layer, gas, t.tableName, conditionJSON, limit, offset)
		var enc abi.Encoder
		enc.AddDynamic(abi.EncodeString(rowsJSON))
		enc.AddStatic(int256Word(code))
		return gas.total, enc.Bytes(), nil

	case liveDescSelector:
		keyField, valueFieldCSV := describeTable(layer, gas, t.tableName)
		var enc abi.Encoder
		enc.AddDynamic(abi.EncodeString(keyField))
		enc.AddDynamic(abi.EncodeString(valueFieldCSV))
		return gas.total, enc.Bytes(), nil

	default:
		return gas.total, encodeInt256(CodeUnknownFunction), nil
	}
}

// KVTable is the live object KVTableFactory.openTable returns: a
// single-value get/set/newEntry interface over one row per key, per
// spec.md §4.5.
type KVTable struct {
	tableName string
	valueField string
}

var _ vm.Precompiled = (*KVTable)(nil)

var (
	kvGetSelector      = abi.Selector("get(string)")
	kvSetSelector      = abi.Selector("set(string,string)")
	kvNewEntrySelector = abi.Selector("newEntry()")
)

func (t *KVTable) Name() string { return "KVTable:" + t.tableName }

func (t *KVTable) Call(bc *vm.BlockContext, layer *state.StorageLayer, data []byte, origin, sender types.Address) (uint64, []byte, error) {
	sel, rest, err := abi.DecodeSelector(data)
	if err != nil {
		return 0, nil, err
	}
	gas := &pricer{}
	dec := abi.NewDecoder(rest)

	switch sel {
	case kvGetSelector:
		key, err := dec.String()
		if err != nil {
			return 0, nil, err
		}
		tbl, ok := layer.OpenTable(t.tableName)
		if !ok {
			return gas.total, nil, ErrBadCondition
		}
		gas.openTable()
		entry, exists, err := tbl.GetRow(key)
		if err != nil {
			return gas.total, nil, err
		}
		gas.selectOp(1)
		value := ""
		if exists {
			value, _ = entry.Get(t.valueField)
		}
		var enc abi.Encoder
		enc.AddStatic(abi.EncodeBool(exists))
		enc.AddDynamic(abi.EncodeString(value))
		return gas.total, enc.Bytes(), nil

	case kvSetSelector:
		key, err := dec.String()
		if err != nil {
			return 0, nil, err
		}
		value, err := dec.String()
		if err != nil {
			return 0, nil, err
		}
		tbl, ok := layer.OpenTable(t.tableName)
		if !ok {
			return gas.total, encodeInt256(CodeTableNotExist), nil
		}
		gas.openTable()
		entry := types.NewEntry()
		entry.Set(t.valueField, value)
		if err := tbl.SetRow(key, entry); err != nil {
			return gas.total, encodeInt256(CodeAddressInvalid), nil
		}
		gas.set()
		return gas.total, encodeInt256(CodeSuccess), nil

	case kvNewEntrySelector:
		var enc abi.Encoder
		enc.AddDynamic(abi.EncodeString("{}"))
		return gas.total, enc.Bytes(), nil

	default:
		return gas.total, encodeInt256(CodeUnknownFunction), nil
	}
}
