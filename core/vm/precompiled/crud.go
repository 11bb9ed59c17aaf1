package precompiled

import (
	"encoding/json"
	"sort"

	"github.com/meshchain/execcore/core/abi"
	"github.com/meshchain/execcore/core/state"
	"github.com/meshchain/execcore/core/types"
	"github.com/meshchain/execcore/core/vm"
)

var (
	insertSelector = abi.Selector("insert(string,string,string)")
	updateSelector = abi.Selector("update(string,string,string)")
	removeSelector = abi.Selector("remove(string,string)")
	selectSelector = abi.Selector("select(string,string,uint256,uint256)")
)

// CRUD implements the 0x1002 precompile: insert/update/remove/select
// against a previously created user table, per spec.md §4.5. Row and
// condition payloads are JSON objects of field name to string value,
// condition documents following the {field: {op: value}} grammar from
// spec.md §6.
type CRUD struct{}

var _ vm.Precompiled = (*CRUD)(nil)

func (p *CRUD) Name() string { return "CRUD" }

func (p *CRUD) Call(bc *vm.BlockContext, layer *state.StorageLayer, data []byte, origin, sender types.Address) (uint64, []byte, error) {
	sel, rest, err := abi.DecodeSelector(data)
	if err != nil {
		return 0, nil, err
	}
	gas := &pricer{}
	dec := abi.NewDecoder(rest)

	switch sel {
	case insertSelector:
		tableName, err := dec.String()
		if err != nil {
			return 0, nil, err
		}
		key, err := dec.String()
		if err != nil {
			return 0, nil, err
		}
		entryJSON, err := dec.String()
		if err != nil {
			return 0, nil, err
		}
		code := crudInsert(layer, gas, tableName, key, entryJSON)
		return gas.total, encodeInt256(code), nil

	case updateSelector:
		tableName, err := dec.String()
		if err != nil {
			return 0, nil, err
		}
		conditionJSON, err := dec.String()
		if err != nil {
			return 0, nil, err
		}
		entryJSON, err := dec.String()
		if err != nil {
			return 0, nil, err
		}
		code := crudUpdate(layer, gas, tableName, conditionJSON, entryJSON)
		return gas.total, encodeInt256(code), nil

	case removeSelector:
		tableName, err := dec.String()
		if err != nil {
			return 0, nil, err
		}
		conditionJSON, err := dec.String()
		if err != nil {
			return 0, nil, err
		}
		code := crudRemove(layer, gas, tableName, conditionJSON)
		return gas.total, encodeInt256(code), nil

	case selectSelector:
		tableName, err := dec.String()
		if err != nil {
			return 0, nil, err
		}
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
		rowsJSON, code := crudSelect(layer, gas, tableName, conditionJSON, limit, offset)
		var enc abi.Encoder
		enc.AddDynamic(abi.EncodeString(rowsJSON))
		enc.AddStatic(int256Word(code))
		return gas.total, enc.Bytes(), nil

	default:
		return gas.total, encodeInt256(CodeUnknownFunction), nil
	}
}

func crudInsert(layer *state.StorageLayer, gas *pricer, tableName, key, entryJSON string) int64 {
	tbl, meta, ok := openTableWithMeta(layer, tableName)
	if !ok {
		return CodeTableNotExist
	}
	gas.openTable()

	fields, err := decodeRowFields(entryJSON)
	if err != nil {
		return CodeCRUDInvalidCondition
	}
	if v, ok := fields[meta.KeyField]; ok && v != key {
		return CodeCRUDKeyFieldReadonly
	}

	entry := types.NewEntry()
	entry.Set(meta.KeyField, key)
	for _, f := range meta.ValueFields {
		if v, ok := fields[f]; ok {
			entry.Set(f, v)
		}
	}
	if err := tbl.SetRow(key, entry); err != nil {
		return CodeAddressInvalid
	}
	gas.insert()
	gas.bytes(len(entryJSON))
	return CodeSuccess
}

func crudUpdate(layer *state.StorageLayer, gas *pricer, tableName, conditionJSON, entryJSON string) int64 {
	tbl, meta, ok := openTableWithMeta(layer, tableName)
	if !ok {
		return CodeTableNotExist
	}
	gas.openTable()

	cond, err := parseCondition([]byte(conditionJSON))
	if err != nil {
		return CodeCRUDInvalidCondition
	}
	gas.condition(len(cond.terms))

	fields, err := decodeRowFields(entryJSON)
	if err != nil {
		return CodeCRUDInvalidCondition
	}
	if _, ok := fields[meta.KeyField]; ok {
		return CodeCRUDKeyFieldReadonly
	}

	keys, err := tbl.GetPrimaryKeys(cond.matches)
	if err != nil {
		return CodeAddressInvalid
	}
	var updated int64
	for _, k := range keys {
		row, exists, err := tbl.GetRow(k)
		if err != nil || !exists {
			continue
		}
		for f, v := range fields {
			row.Set(f, v)
		}
		if err := tbl.SetRow(k, row); err != nil {
			continue
		}
		gas.update()
		updated++
	}
	return updated
}

func crudRemove(layer *state.StorageLayer, gas *pricer, tableName, conditionJSON string) int64 {
	tbl, _, ok := openTableWithMeta(layer, tableName)
	if !ok {
		return CodeTableNotExist
	}
	gas.openTable()

	cond, err := parseCondition([]byte(conditionJSON))
	if err != nil {
		return CodeCRUDInvalidCondition
	}
	gas.condition(len(cond.terms))

	keys, err := tbl.GetPrimaryKeys(cond.matches)
	if err != nil {
		return CodeAddressInvalid
	}
	var removed int64
	for _, k := range keys {
		if err := tbl.RemoveRow(k); err != nil {
			continue
		}
		gas.remove()
		removed++
	}
	return removed
}

func crudSelect(layer *state.StorageLayer, gas *pricer, tableName, conditionJSON string, limit, offset uint64) (string, int64) {
	tbl, meta, ok := openTableWithMeta(layer, tableName)
	if !ok {
		return "[]", CodeTableNotExist
	}
	gas.openTable()

	cond, err := parseCondition([]byte(conditionJSON))
	if err != nil {
		return "[]", CodeCRUDInvalidCondition
	}
	gas.condition(len(cond.terms))
	if limit > 0 || offset > 0 {
		cond.setLimit(limit, offset)
		gas.limit()
	}

	keys, err := tbl.GetPrimaryKeys(cond.matches)
	if err != nil {
		return "[]", CodeAddressInvalid
	}
	sort.Strings(keys)
	keys = cond.applyPage(keys)

	rows := make([]map[string]string, 0, len(keys))
	for _, k := range keys {
		entry, exists, err := tbl.GetRow(k)
		if err != nil || !exists {
			continue
		}
		row := map[string]string{meta.KeyField: k}
		for _, f := range meta.ValueFields {
			if v, ok := entry.Get(f); ok {
				row[f] = v
			}
		}
		rows = append(rows, row)
	}
	gas.selectOp(len(rows))

	out, err := json.Marshal(rows)
	if err != nil {
		return "[]", CodeAddressInvalid
	}
	gas.bytes(len(out))
	return string(out), int64(len(rows))
}

func openTableWithMeta(layer *state.StorageLayer, tableName string) (*state.Table, types.TableMeta, bool) {
	tbl, ok := layer.OpenTable(tableName)
	if !ok {
		return nil, types.TableMeta{}, false
	}
	metaRow, exists, err := layer.GetRow(types.SysTablesName, tableName)
	if err != nil || !exists {
		return nil, types.TableMeta{}, false
	}
	keyField, _ := metaRow.Get("key_field")
	valueFieldCSV, _ := metaRow.Get("value_field")
	meta := types.TableMeta{
		TableName:   tableName,
		KeyField:    keyField,
		ValueFields: types.SplitValueFieldString(valueFieldCSV),
	}
	return tbl, meta, true
}

func decodeRowFields(rowJSON string) (map[string]string, error) {
	if rowJSON == "" {
		return map[string]string{}, nil
	}
	var fields map[string]string
	if err := json.Unmarshal([]byte(rowJSON), &fields); err != nil {
		return nil, err
	}
	return fields, nil
}
