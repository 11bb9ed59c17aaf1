package precompiled

import (
	"github.com/meshchain/execcore/core/abi"
	"github.com/meshchain/execcore/core/state"
	"github.com/meshchain/execcore/core/types"
	"github.com/meshchain/execcore/core/vm"
)

// SysPermissionTable is SYS_PERMISSION(operation|user -> allowed), backing
// the Permission precompile's policy hooks, per spec.md §4.5.
const SysPermissionTable = "SYS_PERMISSION"

var (
	permLoginSelector           = abi.Selector("login(address,string)")
	permLogoutSelector          = abi.Selector("logout(address)")
	permCreateSelector          = abi.Selector("create(address,string)")
	permCallSelector            = abi.Selector("call(address,address)")
	permSendTransactionSelector = abi.Selector("sendTransaction(address,address)")
	permGrantSelector           = abi.Selector("grant(string,address,bool)")
)

// Permission implements the session/operation policy precompile: login,
// logout, create, call, and sendTransaction each consult a per-operation
// allow list and return (code, message[, path]), per spec.md §4.5.
type Permission struct{}

var _ vm.Precompiled = (*Permission)(nil)

func (p *Permission) Name() string { return "Permission" }

func (p *Permission) Call(bc *vm.BlockContext, layer *state.StorageLayer, data []byte, origin, sender types.Address) (uint64, []byte, error) {
	sel, rest, err := abi.DecodeSelector(data)
	if err != nil {
		return 0, nil, err
	}
	gas := &pricer{}
	dec := abi.NewDecoder(rest)

	switch sel {
	case permLoginSelector:
		user, err := dec.Address()
		if err != nil {
			return 0, nil, err
		}
		path, err := dec.String()
		if err != nil {
			return 0, nil, err
		}
		return p.policyReply(layer, gas, "login", user, path)

	case permLogoutSelector:
		user, err := dec.Address()
		if err != nil {
			return 0, nil, err
		}
		return p.policyReply(layer, gas, "logout", user, "")

	case permCreateSelector:
		user, err := dec.Address()
		if err != nil {
			return 0, nil, err
		}
		path, err := dec.String()
		if err != nil {
			return 0, nil, err
		}
		return p.policyReply(layer, gas, "create", user, path)

	case permCallSelector:
		user, err := dec.Address()
		if err != nil {
			return 0, nil, err
		}
		target, err := dec.Address()
		if err != nil {
			return 0, nil, err
		}
		return p.policyReply(layer, gas, "call", user, target.Hex())

	case permSendTransactionSelector:
		user, err := dec.Address()
		if err != nil {
			return 0, nil, err
		}
		target, err := dec.Address()
		if err != nil {
			return 0, nil, err
		}
		return p.policyReply(layer, gas, "sendTransaction", user, target.Hex())

	case permGrantSelector:
		operation, err := dec.String()
		if err != nil {
			return 0, nil, err
		}
		user, err := dec.Address()
		if err != nil {
			return 0, nil, err
		}
		allowed, err := dec.Bool()
		if err != nil {
			return 0, nil, err
		}
		code := p.grant(layer, gas, sender, operation, user, allowed)
		return gas.total, encodeInt256(code), nil

	default:
		return gas.total, encodeInt256(CodeUnknownFunction), nil
	}
}

func permissionKey(operation string, user types.Address) string {
	return operation + "|" + user.Hex()
}

func (p *Permission) evaluate(layer *state.StorageLayer, gas *pricer, operation string, user types.Address) (int64, string) {
	tbl, ok := layer.OpenTable(SysPermissionTable)
	if !ok {
		return CodeSuccess, "ok"
	}
	gas.openTable()
	entry, exists, err := tbl.GetRow(permissionKey(operation, user))
	if err != nil || !exists {
		return CodeSuccess, "ok"
	}
	gas.selectOp(1)
	if allowed, _ := entry.Get("allowed"); allowed == "0" {
		return CodePermissionDenied, "denied"
	}
	return CodeSuccess, "ok"
}

func (p *Permission) policyReply(layer *state.StorageLayer, gas *pricer, operation string, user types.Address, path string) (uint64, []byte, error) {
	code, message := p.evaluate(layer, gas, operation, user)
	var enc abi.Encoder
	enc.AddStatic(int256Word(code))
	enc.AddDynamic(abi.EncodeString(message))
	if path != "" {
		enc.AddDynamic(abi.EncodeString(path))
	}
	return gas.total, enc.Bytes(), nil
}

func (p *Permission) grant(layer *state.StorageLayer, gas *pricer, sender types.Address, operation string, user types.Address, allowed bool) int64 {
	if !isSysSender(layer, sender) {
		return NoAuthorized
	}
	tbl, err := openOrCreate(layer, SysPermissionTable, "key", []string{"allowed"})
	if err != nil {
		return CodeAddressInvalid
	}
	gas.openTable()
	entry := types.NewEntry()
	if allowed {
		entry.Set("allowed", "1")
	} else {
		entry.Set("allowed", "0")
	}
	if err := tbl.SetRow(permissionKey(operation, user), entry); err != nil {
		return CodeAddressInvalid
	}
	gas.set()
	return CodeSuccess
}
