package precompiled

import (
	"strings"

	"github.com/meshchain/execcore/core/abi"
	"github.com/meshchain/execcore/core/state"
	"github.com/meshchain/execcore/core/types"
	"github.com/meshchain/execcore/core/vm"
)

// SysCNSTable is SYS_CNS(name:version -> address, abi), the contract name
// service table spec.md §4.5 describes.
const SysCNSTable = "SYS_CNS"

const cnsMaxVersionLength = 128

var (
	cnsInsertSelector                = abi.Selector("insert(string,string,string,string)")
	cnsSelectByNameSelector          = abi.Selector("selectByName(string)")
	cnsSelectByNameAndVersionSelector = abi.Selector("selectByNameAndVersion(string,string)")
)

func cnsKey(name, version string) string { return name + ":" + version }

// CNS implements the 0x1004 precompile: the contract name service mapping
// human-readable (name, version) pairs to deployed addresses, per spec.md
// §4.5.
type CNS struct{}

var _ vm.Precompiled = (*CNS)(nil)

func (p *CNS) Name() string { return "CNS" }

func (p *CNS) Call(bc *vm.BlockContext, layer *state.StorageLayer, data []byte, origin, sender types.Address) (uint64, []byte, error) {
	sel, rest, err := abi.DecodeSelector(data)
	if err != nil {
		return 0, nil, err
	}
	gas := &pricer{}
	dec := abi.NewDecoder(rest)

	switch sel {
	case cnsInsertSelector:
		name, err := dec.String()
		if err != nil {
			return 0, nil, err
		}
		version, err := dec.String()
		if err != nil {
			return 0, nil, err
		}
		addrStr, err := dec.String()
		if err != nil {
			return 0, nil, err
		}
		abiStr, err := dec.String()
		if err != nil {
			return 0, nil, err
		}
		code := p.insert(layer, gas, name, version, addrStr, abiStr)
		return gas.total, encodeInt256(code), nil

	case cnsSelectByNameSelector:
		name, err := dec.String()
		if err != nil {
			return 0, nil, err
		}
		rowsJSON := p.selectByName(layer, gas, name)
		var enc abi.Encoder
		enc.AddDynamic(abi.EncodeString(rowsJSON))
		return gas.total, enc.Bytes(), nil

	case cnsSelectByNameAndVersionSelector:
		name, err := dec.String()
		if err != nil {
			return 0, nil, err
		}
		version, err := dec.String()
		if err != nil {
			return 0, nil, err
		}
		addrStr := p.selectByNameAndVersion(layer, gas, name, version)
		var enc abi.Encoder
		enc.AddDynamic(abi.EncodeString(addrStr))
		return gas.total, enc.Bytes(), nil

	default:
		return gas.total, encodeInt256(CodeUnknownFunction), nil
	}
}

func isValidCNSName(s string) bool {
	if s == "" {
		return false
	}
	return !strings.ContainsAny(s, "/,|")
}

func (p *CNS) insert(layer *state.StorageLayer, gas *pricer, name, version, addrStr, abiStr string) int64 {
	if !isValidCNSName(name) || len(version) > cnsMaxVersionLength || !isValidCNSName(version) {
		return CodeInvalidCNSName
	}

	tbl, err := openOrCreate(layer, SysCNSTable, "composite_name", []string{"address", "abi"})
	if err != nil {
		return CodeInvalidCNSName
	}
	gas.openTable()

	key := cnsKey(name, version)
	if existing, exists, _ := tbl.GetRow(key); exists {
		if existingAddr, _ := existing.Get("address"); existingAddr == addrStr {
			return CodeAddressAndVersionExist
		}
	}

	entry := types.NewEntry()
	entry.Set("address", addrStr)
	entry.Set("abi", abiStr)
	if err := tbl.SetRow(key, entry); err != nil {
		return CodeInvalidCNSName
	}
	gas.insert()
	gas.bytes(len(abiStr))
	return CodeSuccess
}

func (p *CNS) selectByName(layer *state.StorageLayer, gas *pricer, name string) string {
	tbl, ok := layer.OpenTable(SysCNSTable)
	if !ok {
		return "[]"
	}
	gas.openTable()

	prefix := name + ":"
	keys, err := tbl.GetPrimaryKeys(nil)
	if err != nil {
		return "[]"
	}
	var b strings.Builder
	b.WriteByte('[')
	first := true
	for _, k := range keys {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		entry, exists, err := tbl.GetRow(k)
		if err != nil || !exists {
			continue
		}
		version := strings.TrimPrefix(k, prefix)
		address, _ := entry.Get("address")
		if !first {
			b.WriteByte(',')
		}
		first = false
		b.WriteString(`{"version":"` + version + `","address":"` + address + `"}`)
		gas.selectOp(1)
	}
	b.WriteByte(']')
	return b.String()
}

func (p *CNS) selectByNameAndVersion(layer *state.StorageLayer, gas *pricer, name, version string) string {
	tbl, ok := layer.OpenTable(SysCNSTable)
	if !ok {
		return ""
	}
	gas.openTable()
	entry, exists, err := tbl.GetRow(cnsKey(name, version))
	if err != nil || !exists {
		return ""
	}
	gas.selectOp(1)
	address, _ := entry.Get("address")
	return address
}
