package vmbackend

import (
	"fmt"
	"math/big"

	gethcommon "github.com/ethereum/go-ethereum/common"
	gethvm "github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"

	"github.com/meshchain/execcore/core/types"
	"github.com/meshchain/execcore/core/vm"
	"github.com/meshchain/execcore/geth"
)

// GethExecutor implements vm.VmExecutor over a real go-ethereum EVM,
// grounded on the teacher's geth.GethBlockProcessor (geth/processor.go):
// the same gethvm.NewEVM/BlockContext construction, generalized from
// "execute a whole block against a trie-backed StateDB" down to "execute
// one call against a table-backed HostAPI", per spec.md's VM boundary
// (§4.3/§4.4).
type GethExecutor struct {
	config *params.ChainConfig
	header vm.BlockHeader
	rules  params.Rules
}

// NewGethExecutor builds an executor for the given chain config and the
// block currently being executed.
func NewGethExecutor(config *params.ChainConfig, header vm.BlockHeader) *GethExecutor {
	rules := config.Rules(new(big.Int).SetUint64(header.Number), true, header.Timestamp)
	return &GethExecutor{config: config, header: header, rules: rules}
}

// Execute runs one call or create message through go-ethereum's EVM,
// redirecting every StateDB operation it issues to host.
func (g *GethExecutor) Execute(host vm.HostAPI, msg vm.VmMessage) (vm.VmResult, error) {
	adapter := newStateDBAdapter(host)

	// No value moves between accounts: CanTransfer always allows and
	// Transfer does nothing.
	blockCtx := gethvm.BlockContext{
		CanTransfer: func(gethvm.StateDB, gethcommon.Address, *uint256.Int) bool { return true },
		Transfer:    func(gethvm.StateDB, gethcommon.Address, gethcommon.Address, *uint256.Int) {},
		GetHash: func(n uint64) gethcommon.Hash {
			h, _ := host.BlockHash(n)
			return geth.ToGethHash(h)
		},
		Coinbase:    gethcommon.Address{},
		GasLimit:    g.header.GasLimit,
		BlockNumber: new(big.Int).SetUint64(g.header.Number),
		Time:        g.header.Timestamp,
		Difficulty:  new(big.Int),
	}

	evm := gethvm.NewEVM(blockCtx, adapter, g.config, gethvm.Config{})

	sender := geth.ToGethAddress(msg.Sender)
	receiver := geth.ToGethAddress(msg.Receiver)
	value := new(uint256.Int)
	if len(msg.Value) > 0 {
		value.SetBytes(msg.Value)
	}
	evm.SetTxContext(gethvm.TxContext{Origin: sender, GasPrice: new(uint256.Int)})

	var (
		ret      []byte
		gasLeft  uint64
		execErr  error
	)

	switch {
	case msg.Create:
		// Executive already derived the deployed address and bumped the
		// creator's nonce (CREATE/CREATE2 address derivation stays
		// in-house, in core/vm's createAddress/create2Address); evm.Create would redo both and pick
		// a different address, so the init code is installed directly at
		// the already-chosen receiver and run as an ordinary call. Its
		// RETURN becomes the runtime code Executive deploys afterward.
		if err := host.SetCode(msg.Receiver, msg.Code); err != nil {
			return vm.VmResult{}, fmt.Errorf("vmbackend: install init code: %w", err)
		}
		ret, gasLeft, execErr = evm.Call(gethvm.AccountRef(sender), receiver, msg.Input, uint64(msg.Gas), value)
	case msg.Static:
		ret, gasLeft, execErr = evm.StaticCall(gethvm.AccountRef(sender), receiver, msg.Input, uint64(msg.Gas))
	default:
		ret, gasLeft, execErr = evm.Call(gethvm.AccountRef(sender), receiver, msg.Input, uint64(msg.Gas), value)
	}

	result := vm.VmResult{
		GasLeft:    int64(gasLeft),
		ReturnData: ret,
	}
	if execErr != nil {
		result.Status = statusFor(execErr)
		return result, nil
	}
	return result, nil
}

// statusFor maps go-ethereum's sentinel execution errors onto this
// core's status codes (spec.md §3's CallParameters.Status vocabulary).
func statusFor(err error) types.Status {
	switch err {
	case gethvm.ErrOutOfGas:
		return types.StatusOutOfGas
	case gethvm.ErrExecutionReverted:
		return types.StatusRevertInstruction
	case gethvm.ErrDepth:
		return types.StatusUnknown
	default:
		return types.StatusUnknown
	}
}

// EthereumPrecompiles returns a vm.BlockContext.EthereumExecute-shaped
// closure that dispatches the static 0x01-0x0a addresses (ecRecover
// through pointEval) to go-ethereum's real, audited implementations,
// leaving this core's own PrecompileRegistry (core/vm/precompile_registry.go)
// responsible only for gas pricing, per spec.md §4.2's
// execute_origin_precompiled/cost_of_precompiled split.
func EthereumPrecompiles(rules params.Rules) func(types.Address, []byte) ([]byte, bool) {
	contracts := gethvm.ActivePrecompiledContracts(rules)
	return func(addr types.Address, input []byte) ([]byte, bool) {
		gaddr := geth.ToGethAddress(addr)
		p, ok := contracts[gaddr]
		if !ok {
			return nil, false
		}
		out, err := p.Run(input)
		if err != nil {
			return nil, false
		}
		return out, true
	}
}
