// Package bal implements the Parallel DAG Planner of spec.md §4.6: given a
// block's transaction sequence, it resolves each transaction's critical
// keys, builds a dependency graph from them, and schedules the resulting
// waves onto a worker pool that executes transactions against a shared
// executive.
//
// This supersedes the teacher's original EIP-7928 BlockAccessList model
// (a block-wide log of every storage slot read/written during execution)
// with spec.md's coarser, pre-declared "critical key" model: a contract
// (or, for ordinary calls, the ParallelConfig precompile) names the
// handful of keys its call touches before execution starts, rather than
// the planner inferring a full read/write set after the fact. See
// DESIGN.md for why the rest of the original BAL subsystem — merkleized
// access-list hashing, RLP encoding, conflict clustering on per-slot
// RW-sets — was dropped rather than adapted.
package bal

import "github.com/meshchain/execcore/core/types"

// Transaction is the planner's view of one block transaction — enough to
// resolve its criticals and to hand off to an executive for execution.
type Transaction struct {
	Index           int
	ContractAddress types.Address
	Selector        [4]byte
	Input           []byte
	// IsCreate transactions have no criticals and are always serialized,
	// per spec.md §4.6 step 1.
	IsCreate bool
	// IsPrecompiled routes criticals resolution to the precompiled
	// itself rather than to ParallelConfig.
	IsPrecompiled bool
}

// CriticalsResolver resolves a transaction's critical keys per spec.md
// §4.6 step 1. ok=false means "critical to all": no criticals were
// declared (or the transaction is a contract creation), so the
// transaction conflicts with every other transaction touching any
// critical key.
type CriticalsResolver func(tx Transaction) (criticals [][]byte, ok bool)
