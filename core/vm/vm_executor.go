package vm

import (
	"math/big"

	"github.com/meshchain/execcore/core/types"
)

// VmMessage is everything the external VM capability needs to run one
// call or create: spec.md's own design note delegates bytecode execution
// to an external VM ("evmone"/"hera" in the source system); this module
// renders that boundary as the VmExecutor interface, with vmbackend
// supplying the concrete implementation over a real go-ethereum EVM.
type VmMessage struct {
	Sender   types.Address
	Receiver types.Address
	Code     []byte
	Input    []byte
	Gas      int64
	Value    []byte // big-endian wei amount, nil/empty treated as zero
	Create   bool
	Salt     *types.Hash
	Static   bool
	Depth    int
}

// VmResult is the VM's answer to one VmMessage, already carrying the
// status code shape used across CallParameters.
type VmResult struct {
	Status     types.Status
	GasLeft    int64
	ReturnData []byte
	Logs       []*types.Log
	NewAddress *types.Address
}

// VmExecutor is the capability an Executive dispatches bytecode-bearing
// calls to. HostAPI gives the VM back-channel access to storage, balance,
// code and nested calls without either side depending on the other's
// concrete type.
type VmExecutor interface {
	Execute(host HostAPI, msg VmMessage) (VmResult, error)
}

// HostAPI is the full set of side-effecting operations spec.md's
// HostContext exposes to the running VM (§4.4): storage, account state,
// logging, block metadata, and nested dispatch back into the executive
// machine for CALL/CREATE.
type HostAPI interface {
	Store(addr types.Address, key types.Hash) (types.Hash, error)
	SetStore(addr types.Address, key, value types.Hash) error

	CodeAt(addr types.Address) ([]byte, error)
	CodeHashAt(addr types.Address) (types.Hash, error)
	CodeSizeAt(addr types.Address) (int, error)
	SetCode(addr types.Address, code []byte) error

	Exists(addr types.Address) (bool, error)
	Balance(addr types.Address) (*big.Int, error)
	SetBalance(addr types.Address, balance *big.Int) error
	Nonce(addr types.Address) (uint64, error)
	SetNonce(addr types.Address, nonce uint64) error

	Suicide(addr types.Address) error
	Log(log *types.Log)
	BlockHash(number uint64) (types.Hash, error)

	Call(params *types.CallParameters) *types.CallParameters
	Create(params *types.CallParameters) *types.CallParameters
}
