package vm

import (
	"sort"
	"sync"

	"github.com/meshchain/execcore/core/types"
)

// BlockHeader is the subset of block metadata the execution core needs:
// number, timestamp and gas ceiling for the block currently being built,
// plus its parent hash for BlockHash lookups one level up.
type BlockHeader struct {
	Number     uint64
	Timestamp  uint64
	ParentHash types.Hash
	GasLimit   uint64
}

// ScheduleConstants are the fixed per-block gas costs spec.md's Executive
// and precompiled catalogue price against (§4.3, §4.5's opening
// paragraph).
type ScheduleConstants struct {
	TxGas            uint64
	TxCreateGas      uint64
	TxDataZeroGas    uint64
	TxDataNonZeroGas uint64
	CreateDataGas    uint64 // per-byte cost of the code-deposit on a successful create (§4.3)
	MaxCodeSize      int
	PrecompiledBase  uint64 // flat precompile base cost; carried in the schedule, not charged by dispatch
}

// DefaultSchedule mirrors the Ethereum mainnet constants the teacher's gas
// tables used before the fork-roadmap files were trimmed away; this
// execution core only needs one fixed schedule, not per-fork variants.
func DefaultSchedule() ScheduleConstants {
	return ScheduleConstants{
		TxGas:            21000,
		TxCreateGas:      53000,
		TxDataZeroGas:    4,
		TxDataNonZeroGas: 16,
		CreateDataGas:    200,
		MaxCodeSize:      24576,
		PrecompiledBase:  60,
	}
}

// execKey identifies one in-flight Executive within a BlockContext's
// directory, per spec.md §4.2's insert_executive/get_executive contract.
type execKey struct {
	contextID uint64
	seq       uint64
}

// BlockContext is the per-block object owning the precompile registries
// (constant, dynamic, and the Ethereum-static set) and the directory of
// in-flight Executives, per spec.md §3/§4.2.
type BlockContext struct {
	Header   BlockHeader
	Schedule ScheduleConstants
	WASM     bool

	// Ethereum mirrors the teacher's static address→pricer registry
	// (0x01-0x0a); actual execution of those addresses is delegated to
	// go-ethereum through EthereumExecute, set by vmbackend at wiring
	// time so core/vm never imports it directly.
	Ethereum        *PrecompileRegistry
	EthereumExecute func(addr types.Address, input []byte) (output []byte, ok bool)

	// Vm is the external bytecode-execution capability (spec.md's design
	// note on delegating to an external VM); set by vmbackend.
	Vm VmExecutor

	mu          sync.Mutex
	constant    map[types.Address]Precompiled
	dynamic     map[types.Address]Precompiled
	dynamicNext uint64

	execMu     sync.Mutex
	executives map[execKey]*Executive
	seqNext    uint64
}

// dynamicPrecompileBase is the first address handed out by
// RegisterPrecompiled, chosen well clear of both the Ethereum static
// range (0x01-0x0a) and the FISCO system-contract range (0x1000-0x100b)
// so dynamically deployed precompiles (WASM/live contracts bridging to
// host capability) never collide with either constant map.
var dynamicPrecompileBase = types.HexToAddress("0x0000000000000000000000000000000000010000")

// NewBlockContext constructs an empty BlockContext for the given header
// and schedule. Constant system-contract precompiles are registered
// separately by the precompiled package's catalogue constructor.
func NewBlockContext(header BlockHeader, schedule ScheduleConstants, wasm bool) *BlockContext {
	return &BlockContext{
		Header:     header,
		Schedule:   schedule,
		WASM:       wasm,
		Ethereum:   NewPrecompileRegistry(),
		constant:   make(map[types.Address]Precompiled),
		dynamic:    make(map[types.Address]Precompiled),
		executives: make(map[execKey]*Executive),
	}
}

// RegisterConstantPrecompiled installs a fixed-address system contract
// (e.g. SystemConfig at 0x1000), populated once at BlockContext
// construction per spec.md §3's "constant ... populated at
// BlockContext construction" wording.
func (bc *BlockContext) RegisterConstantPrecompiled(addr types.Address, p Precompiled) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	bc.constant[addr] = p
}

// RegisterPrecompiled installs p at the next dynamic address and returns
// it, per spec.md §4.2 register_precompiled.
func (bc *BlockContext) RegisterPrecompiled(p Precompiled) types.Address {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	addr := addAddressOffset(dynamicPrecompileBase, bc.dynamicNext)
	bc.dynamicNext++
	bc.dynamic[addr] = p
	return addr
}

// IsPrecompiled reports whether addr resolves to a constant or
// dynamically registered system-contract Precompiled.
func (bc *BlockContext) IsPrecompiled(addr types.Address) bool {
	_, ok := bc.GetPrecompiled(addr)
	return ok
}

// GetPrecompiled resolves addr against the constant map first, then the
// dynamic map, matching spec.md §4.2 get_precompiled.
func (bc *BlockContext) GetPrecompiled(addr types.Address) (Precompiled, bool) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	if p, ok := bc.constant[addr]; ok {
		return p, true
	}
	p, ok := bc.dynamic[addr]
	return p, ok
}

// IsEthereumPrecompiled reports whether addr is one of the static
// Ethereum-compatible precompiles (0x01-0x0a), whose execution is
// delegated to go-ethereum rather than the FISCO-style Precompiled
// interface.
func (bc *BlockContext) IsEthereumPrecompiled(addr types.Address) bool {
	return bc.Ethereum.IsPrecompile(addr)
}

// CostOfPrecompiled returns the Ethereum static precompile's gas cost for
// input, per spec.md §4.2 cost_of_precompiled.
func (bc *BlockContext) CostOfPrecompiled(addr types.Address, input []byte) (uint64, error) {
	return bc.Ethereum.GasCost(addr, input)
}

// ExecuteOriginPrecompiled runs an Ethereum static precompile via the
// injected EthereumExecute callback, per spec.md §4.2
// execute_origin_precompiled.
func (bc *BlockContext) ExecuteOriginPrecompiled(addr types.Address, input []byte) (bool, []byte) {
	if bc.EthereumExecute == nil {
		return false, nil
	}
	output, ok := bc.EthereumExecute(addr, input)
	return ok, output
}

// NextSeq allocates the next executive sequence number for this block
// context, used to key the executive directory.
func (bc *BlockContext) NextSeq() uint64 {
	bc.execMu.Lock()
	defer bc.execMu.Unlock()
	bc.seqNext++
	return bc.seqNext
}

// InsertExecutive registers exec under (contextID, seq) so GetExecutive
// can look it up, per spec.md §4.2 insert_executive.
func (bc *BlockContext) InsertExecutive(contextID, seq uint64, exec *Executive) {
	bc.execMu.Lock()
	defer bc.execMu.Unlock()
	bc.executives[execKey{contextID, seq}] = exec
}

// GetExecutive looks up a previously inserted Executive, per spec.md
// §4.2 get_executive.
func (bc *BlockContext) GetExecutive(contextID, seq uint64) (*Executive, bool) {
	bc.execMu.Lock()
	defer bc.execMu.Unlock()
	e, ok := bc.executives[execKey{contextID, seq}]
	return e, ok
}

// RemoveExecutive drops a finished Executive from the directory.
func (bc *BlockContext) RemoveExecutive(contextID, seq uint64) {
	bc.execMu.Lock()
	defer bc.execMu.Unlock()
	delete(bc.executives, execKey{contextID, seq})
}

// ActiveConstantPrecompiles returns the constant-map addresses in sorted
// order, for diagnostics/tests.
func (bc *BlockContext) ActiveConstantPrecompiles() []types.Address {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	addrs := make([]types.Address, 0, len(bc.constant))
	for a := range bc.constant {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool {
		return addressLess(addrs[i], addrs[j])
	})
	return addrs
}

func addAddressOffset(base types.Address, n uint64) types.Address {
	var b [8]byte
	for i := 0; i < 8; i++ {
		b[7-i] = byte(n >> (8 * i))
	}
	out := base
	carry := uint16(0)
	for i := 0; i < 8; i++ {
		sum := uint16(out[types.AddressLength-1-i]) + uint16(b[7-i]) + carry
		out[types.AddressLength-1-i] = byte(sum)
		carry = sum >> 8
	}
	return out
}
