// Package vmbackend supplies the concrete vm.VmExecutor spec.md's design
// note on delegating bytecode execution to an external VM calls for
// ("evmone"/"hera" in the source system): a real go-ethereum EVM, wrapped
// so every storage/account operation it issues is redirected through the
// table-backed vm.HostAPI instead of go-ethereum's own trie-based StateDB.
//
// statedb.go is the bridge itself. go-ethereum's EVM is built against a
// concrete StateDB type. The call-scoped parts of that interface
// (snapshots, the EIP-2929 access list, EIP-1153 transient storage,
// refunds) have no analogue in the table model and are kept in the
// adapter's own maps and undo journal; every account- and storage-shaped
// method is redirected to HostAPI, which is this execution core's actual
// source of truth (spec.md §4.1). An ephemeral, never-committed
// *gethstate.StateDB is embedded only to supply the remaining methods
// (e.g. witness collection).
package vmbackend

import (
	"math/big"

	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	gethstate "github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/tracing"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/triedb"
	"github.com/holiman/uint256"

	"github.com/meshchain/execcore/core/vm"
	"github.com/meshchain/execcore/geth"
)

// accessListKey identifies one warmed storage slot for EIP-2929.
type accessListKey struct {
	addr gethcommon.Address
	slot gethcommon.Hash
}

// stateDBAdapter implements go-ethereum's vm.StateDB over a table-backed
// vm.HostAPI. The embedded ephemeral StateDB exists only to answer the
// handful of interface methods (witness/access-event collection) this
// core has no use for and never calls; every method with a real
// table-model equivalent is overridden below.
type stateDBAdapter struct {
	*gethstate.StateDB

	host vm.HostAPI

	journal     []undoFunc
	refund      uint64
	warmAddrs   map[gethcommon.Address]bool
	warmSlots   map[accessListKey]bool
	transient   map[gethcommon.Address]map[gethcommon.Hash]gethcommon.Hash
	destructed  map[gethcommon.Address]bool
	newlyCreate map[gethcommon.Address]bool
}

type undoFunc func()

// newStateDBAdapter constructs an adapter over host. The embedded
// ephemeral StateDB starts empty and uncommitted — it backs no real
// account, so nothing must ever be read from it directly.
func newStateDBAdapter(host vm.HostAPI) *stateDBAdapter {
	db := rawdb.NewMemoryDatabase()
	tdb := triedb.NewDatabase(db, nil)
	sdb := gethstate.NewDatabase(tdb, nil)
	inner, err := gethstate.New(gethcommon.Hash{}, sdb)
	if err != nil {
		// The in-memory trie database never fails to open at the empty
		// root; a non-nil error here means go-ethereum's internals
		// changed in a way this adapter cannot recover from.
		panic("vmbackend: failed to open ephemeral state: " + err.Error())
	}
	return &stateDBAdapter{
		StateDB:     inner,
		host:        host,
		warmAddrs:   make(map[gethcommon.Address]bool),
		warmSlots:   make(map[accessListKey]bool),
		transient:   make(map[gethcommon.Address]map[gethcommon.Hash]gethcommon.Hash),
		destructed:  make(map[gethcommon.Address]bool),
		newlyCreate: make(map[gethcommon.Address]bool),
	}
}

func (s *stateDBAdapter) record(undo undoFunc) {
	s.journal = append(s.journal, undo)
}

// --- Account lifecycle ---

func (s *stateDBAdapter) CreateAccount(addr gethcommon.Address) {
	s.newlyCreate[addr] = true
}

func (s *stateDBAdapter) CreateContract(addr gethcommon.Address) {
	s.newlyCreate[addr] = true
}

// --- Balance ---

func (s *stateDBAdapter) GetBalance(addr gethcommon.Address) *uint256.Int {
	b, err := s.host.Balance(geth.FromGethAddress(addr))
	if err != nil || b == nil {
		return new(uint256.Int)
	}
	u, _ := uint256.FromBig(b)
	return u
}

func (s *stateDBAdapter) AddBalance(addr gethcommon.Address, amount *uint256.Int, _ tracing.BalanceChangeReason) uint256.Int {
	prev := s.GetBalance(addr)
	next := new(big.Int).Add(prev.ToBig(), amount.ToBig())
	s.setBalance(addr, next, prev.ToBig())
	return *prev
}

func (s *stateDBAdapter) SubBalance(addr gethcommon.Address, amount *uint256.Int, _ tracing.BalanceChangeReason) uint256.Int {
	prev := s.GetBalance(addr)
	next := new(big.Int).Sub(prev.ToBig(), amount.ToBig())
	s.setBalance(addr, next, prev.ToBig())
	return *prev
}

func (s *stateDBAdapter) setBalance(addr gethcommon.Address, next, prev *big.Int) {
	_ = s.host.SetBalance(geth.FromGethAddress(addr), next)
	s.record(func() { _ = s.host.SetBalance(geth.FromGethAddress(addr), prev) })
}

// --- Nonce ---

func (s *stateDBAdapter) GetNonce(addr gethcommon.Address) uint64 {
	n, _ := s.host.Nonce(geth.FromGethAddress(addr))
	return n
}

func (s *stateDBAdapter) SetNonce(addr gethcommon.Address, nonce uint64, _ tracing.NonceChangeReason) {
	prev := s.GetNonce(addr)
	_ = s.host.SetNonce(geth.FromGethAddress(addr), nonce)
	s.record(func() { _ = s.host.SetNonce(geth.FromGethAddress(addr), prev) })
}

// --- Code ---

func (s *stateDBAdapter) GetCode(addr gethcommon.Address) []byte {
	code, _ := s.host.CodeAt(geth.FromGethAddress(addr))
	return code
}

func (s *stateDBAdapter) SetCode(addr gethcommon.Address, code []byte) {
	prev := s.GetCode(addr)
	_ = s.host.SetCode(geth.FromGethAddress(addr), code)
	s.record(func() { _ = s.host.SetCode(geth.FromGethAddress(addr), prev) })
}

func (s *stateDBAdapter) GetCodeHash(addr gethcommon.Address) gethcommon.Hash {
	h, _ := s.host.CodeHashAt(geth.FromGethAddress(addr))
	return geth.ToGethHash(h)
}

func (s *stateDBAdapter) GetCodeSize(addr gethcommon.Address) int {
	n, _ := s.host.CodeSizeAt(geth.FromGethAddress(addr))
	return n
}

// --- Storage ---

func (s *stateDBAdapter) GetState(addr gethcommon.Address, key gethcommon.Hash) gethcommon.Hash {
	v, _ := s.host.Store(geth.FromGethAddress(addr), geth.FromGethHash(key))
	return geth.ToGethHash(v)
}

// GetCommittedState has no pre-call/post-call distinction in the table
// model: every HostAPI write lands in the current savepoint immediately,
// so the "committed" value as seen from inside one VM execution is
// whatever GetState already returns.
func (s *stateDBAdapter) GetCommittedState(addr gethcommon.Address, key gethcommon.Hash) gethcommon.Hash {
	return s.GetState(addr, key)
}

func (s *stateDBAdapter) SetState(addr gethcommon.Address, key, value gethcommon.Hash) gethcommon.Hash {
	prev := s.GetState(addr, key)
	ha, hk, hv := geth.FromGethAddress(addr), geth.FromGethHash(key), geth.FromGethHash(value)
	_ = s.host.SetStore(ha, hk, hv)
	s.record(func() { _ = s.host.SetStore(ha, hk, geth.FromGethHash(prev)) })
	return prev
}

func (s *stateDBAdapter) GetStorageRoot(gethcommon.Address) gethcommon.Hash {
	// Per-account storage roots are a trie-model concept; this core hashes
	// whole tables (core/state.TableHash), not per-account subtries, so
	// there is nothing meaningful to return here. Only verkle-witness
	// collection (which this core does not use) consults this value.
	return gethcommon.Hash{}
}

// --- Transient storage (EIP-1153) ---

func (s *stateDBAdapter) GetTransientState(addr gethcommon.Address, key gethcommon.Hash) gethcommon.Hash {
	slots, ok := s.transient[addr]
	if !ok {
		return gethcommon.Hash{}
	}
	return slots[key]
}

func (s *stateDBAdapter) SetTransientState(addr gethcommon.Address, key, value gethcommon.Hash) {
	if s.transient[addr] == nil {
		s.transient[addr] = make(map[gethcommon.Hash]gethcommon.Hash)
	}
	prev := s.transient[addr][key]
	s.transient[addr][key] = value
	s.record(func() { s.transient[addr][key] = prev })
}

// --- Self-destruct ---

func (s *stateDBAdapter) SelfDestruct(addr gethcommon.Address) uint256.Int {
	bal := s.GetBalance(addr)
	s.destructed[addr] = true
	_ = s.host.Suicide(geth.FromGethAddress(addr))
	s.record(func() { delete(s.destructed, addr) })
	return *bal
}

func (s *stateDBAdapter) HasSelfDestructed(addr gethcommon.Address) bool {
	return s.destructed[addr]
}

// SelfDestruct6780 implements EIP-6780: self-destruct only takes effect
// for contracts created in the same transaction. Since a single
// stateDBAdapter's lifetime is exactly one top-level VmExecutor.Execute
// call, newlyCreate already tracks exactly that scope.
func (s *stateDBAdapter) SelfDestruct6780(addr gethcommon.Address) (uint256.Int, bool) {
	if !s.newlyCreate[addr] {
		return uint256.Int{}, false
	}
	return s.SelfDestruct(addr), true
}

// --- Existence ---

func (s *stateDBAdapter) Exist(addr gethcommon.Address) bool {
	ok, _ := s.host.Exists(geth.FromGethAddress(addr))
	return ok || s.newlyCreate[addr]
}

func (s *stateDBAdapter) Empty(addr gethcommon.Address) bool {
	if !s.Exist(addr) {
		return true
	}
	return s.GetBalance(addr).IsZero() && s.GetNonce(addr) == 0 && s.GetCodeSize(addr) == 0
}

// --- Access list (EIP-2929) ---

func (s *stateDBAdapter) AddressInAccessList(addr gethcommon.Address) bool {
	return s.warmAddrs[addr]
}

func (s *stateDBAdapter) SlotInAccessList(addr gethcommon.Address, slot gethcommon.Hash) (bool, bool) {
	return s.warmAddrs[addr], s.warmSlots[accessListKey{addr, slot}]
}

func (s *stateDBAdapter) AddAddressToAccessList(addr gethcommon.Address) {
	s.warmAddrs[addr] = true
}

func (s *stateDBAdapter) AddSlotToAccessList(addr gethcommon.Address, slot gethcommon.Hash) {
	s.warmAddrs[addr] = true
	s.warmSlots[accessListKey{addr, slot}] = true
}

// Prepare pre-warms the sender, destination and precompile addresses per
// EIP-2929/3651, plus any addresses/slots named in the transaction's own
// access list (EIP-2930).
func (s *stateDBAdapter) Prepare(rules params.Rules, sender, coinbase gethcommon.Address, dst *gethcommon.Address, precompiles []gethcommon.Address, txAccesses gethtypes.AccessList) {
	s.warmAddrs[sender] = true
	if rules.IsShanghai {
		s.warmAddrs[coinbase] = true
	}
	if dst != nil {
		s.warmAddrs[*dst] = true
	}
	for _, addr := range precompiles {
		s.warmAddrs[addr] = true
	}
	for _, tuple := range txAccesses {
		s.warmAddrs[tuple.Address] = true
		for _, slot := range tuple.StorageKeys {
			s.warmSlots[accessListKey{tuple.Address, slot}] = true
		}
	}
}

// --- Refund ---

func (s *stateDBAdapter) AddRefund(gas uint64) {
	prev := s.refund
	s.refund += gas
	s.record(func() { s.refund = prev })
}

func (s *stateDBAdapter) SubRefund(gas uint64) {
	prev := s.refund
	if gas > s.refund {
		s.refund = 0
	} else {
		s.refund -= gas
	}
	s.record(func() { s.refund = prev })
}

func (s *stateDBAdapter) GetRefund() uint64 {
	return s.refund
}

// --- Logs ---

func (s *stateDBAdapter) AddLog(l *gethtypes.Log) {
	s.host.Log(geth.FromGethLog(l))
}

// --- Snapshot / revert ---
//
// A table Savepoint/Rollback pair (core/state.StorageLayer) already gives
// the Executive transaction-level atomicity; what go-ethereum's EVM needs
// here is finer-grained, call-frame-level snapshotting for nested
// CALL/CREATE frames within a single top-level VmExecutor.Execute — so a
// local undo-closure journal is kept instead, mirroring the journal
// pattern the teacher's own hand-rolled interpreter state database uses.

func (s *stateDBAdapter) Snapshot() int {
	return len(s.journal)
}

func (s *stateDBAdapter) RevertToSnapshot(id int) {
	for i := len(s.journal) - 1; i >= id; i-- {
		s.journal[i]()
	}
	s.journal = s.journal[:id]
}
