package precompiled

import (
	"github.com/meshchain/execcore/core/abi"
	"github.com/meshchain/execcore/core/state"
	"github.com/meshchain/execcore/core/types"
	"github.com/meshchain/execcore/core/vm"
)

// SysContractAuthTable is SYS_CONTRACT_AUTH(path -> agent), and
// SysContractAccessTable is SYS_CONTRACT_ACCESS(path|funcSel|user ->
// access), per spec.md §4.5.
const (
	SysContractAuthTable   = "SYS_CONTRACT_AUTH"
	SysContractAccessTable = "SYS_CONTRACT_ACCESS"
)

// systemAdminConfigKey names the SYS_CONFIG entry holding the one account
// permitted to mutate contract-auth/permission tables — the Go-native
// rendering of spec.md §4.5's "restricted to the /sys/ sender" rule,
// since an address has no filesystem path of its own outside WASM mode.
const systemAdminConfigKey = "system_admin"

var (
	authAgentSelector    = abi.Selector("agent(string)")
	authSetAgentSelector = abi.Selector("setAgent(string,address)")
	authSetAuthSelector  = abi.Selector("setAuth(string,bytes4,address,bool)")
	authCheckSelector    = abi.Selector("checkAuth(string,bytes4,address)")
)

func accessKey(path string, funcSel [4]byte, user types.Address) string {
	return path + "|" + string(funcSel[:]) + "|" + user.Hex()
}

// ContractAuth implements the contract-level authority precompile: which
// account may act as a deployed contract's administrative agent, and
// per-function access control for that contract's callers. Per spec.md
// §4.5, every mutation is restricted to the configured system admin
// sender (see isSysSender).
type ContractAuth struct{}

var _ vm.Precompiled = (*ContractAuth)(nil)

func (p *ContractAuth) Name() string { return "ContractAuth" }

func (p *ContractAuth) Call(bc *vm.BlockContext, layer *state.StorageLayer, data []byte, origin, sender types.Address) (uint64, []byte, error) {
	sel, rest, err := abi.DecodeSelector(data)
	if err != nil {
		return 0, nil, err
	}
	gas := &pricer{}
	dec := abi.NewDecoder(rest)

	switch sel {
	case authAgentSelector:
		path, err := dec.String()
		if err != nil {
			return 0, nil, err
		}
		agent := getAgent(layer, gas, path)
		var enc abi.Encoder
		enc.AddDynamic(abi.EncodeString(agent))
		return gas.total, enc.Bytes(), nil

	case authSetAgentSelector:
		path, err := dec.String()
		if err != nil {
			return 0, nil, err
		}
		agent, err := dec.Address()
		if err != nil {
			return 0, nil, err
		}
		code := p.setAgent(layer, gas, sender, path, agent)
		return gas.total, encodeInt256(code), nil

	case authSetAuthSelector:
		path, err := dec.String()
		if err != nil {
			return 0, nil, err
		}
		funcSelWord, err := dec.Bytes32()
		if err != nil {
			return 0, nil, err
		}
		user, err := dec.Address()
		if err != nil {
			return 0, nil, err
		}
		access, err := dec.Bool()
		if err != nil {
			return 0, nil, err
		}
		var funcSel [4]byte
		copy(funcSel[:], funcSelWord.Bytes()[:4])
		code := p.setAuth(layer, gas, sender, path, funcSel, user, access)
		return gas.total, encodeInt256(code), nil

	case authCheckSelector:
		path, err := dec.String()
		if err != nil {
			return 0, nil, err
		}
		funcSelWord, err := dec.Bytes32()
		if err != nil {
			return 0, nil, err
		}
		user, err := dec.Address()
		if err != nil {
			return 0, nil, err
		}
		var funcSel [4]byte
		copy(funcSel[:], funcSelWord.Bytes()[:4])
		allowed := checkAuth(layer, gas, path, funcSel, user)
		var enc abi.Encoder
		enc.AddStatic(abi.EncodeBool(allowed))
		return gas.total, enc.Bytes(), nil

	default:
		return gas.total, encodeInt256(CodeUnknownFunction), nil
	}
}

// isSysSender reports whether sender is the configured system admin
// account. Before any admin has been configured (SYS_CONFIG has no
// "system_admin" row), every sender is treated as trusted so a fresh
// chain can bootstrap its own permission tables.
func isSysSender(layer *state.StorageLayer, sender types.Address) bool {
	tbl, ok := layer.OpenTable(SysConfigTable)
	if !ok {
		return true
	}
	entry, exists, err := tbl.GetRow(systemAdminConfigKey)
	if err != nil || !exists {
		return true
	}
	admin, _ := entry.Get("value")
	return admin == sender.Hex()
}

func getAgent(layer *state.StorageLayer, gas *pricer, path string) string {
	tbl, ok := layer.OpenTable(SysContractAuthTable)
	if !ok {
		return ""
	}
	gas.openTable()
	entry, exists, err := tbl.GetRow(path)
	if err != nil || !exists {
		return ""
	}
	gas.selectOp(1)
	agent, _ := entry.Get("agent")
	return agent
}

func (p *ContractAuth) setAgent(layer *state.StorageLayer, gas *pricer, sender types.Address, path string, agent types.Address) int64 {
	if !isSysSender(layer, sender) {
		return NoAuthorized
	}
	tbl, err := openOrCreate(layer, SysContractAuthTable, "path", []string{"agent"})
	if err != nil {
		return CodeAddressInvalid
	}
	gas.openTable()
	entry := types.NewEntry()
	entry.Set("agent", agent.Hex())
	if err := tbl.SetRow(path, entry); err != nil {
		return CodeAddressInvalid
	}
	gas.set()
	return CodeSuccess
}

func (p *ContractAuth) setAuth(layer *state.StorageLayer, gas *pricer, sender types.Address, path string, funcSel [4]byte, user types.Address, access bool) int64 {
	if !isSysSender(layer, sender) {
		return NoAuthorized
	}
	tbl, err := openOrCreate(layer, SysContractAccessTable, "key", []string{"access"})
	if err != nil {
		return CodeAddressInvalid
	}
	gas.openTable()
	entry := types.NewEntry()
	if access {
		entry.Set("access", "1")
	} else {
		entry.Set("access", "0")
	}
	if err := tbl.SetRow(accessKey(path, funcSel, user), entry); err != nil {
		return CodeAddressInvalid
	}
	gas.set()
	return CodeSuccess
}

func checkAuth(layer *state.StorageLayer, gas *pricer, path string, funcSel [4]byte, user types.Address) bool {
	tbl, ok := layer.OpenTable(SysContractAccessTable)
	if !ok {
		return true // no access-control rows registered: default allow
	}
	gas.openTable()
	entry, exists, err := tbl.GetRow(accessKey(path, funcSel, user))
	if err != nil || !exists {
		return true
	}
	gas.selectOp(1)
	access, _ := entry.Get("access")
	return access == "1"
}
