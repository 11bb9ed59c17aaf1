// Package executor implements the Executor Façade of spec.md §4.8: the
// single external surface a driving client (consensus engine, RPC
// handler, or test harness) uses to advance a block through this core.
// It owns the LayerStack, the per-block BlockContext and its executive
// directory, and the DAG planner, serialising every operation against
// one block the way the teacher's GethBlockProcessor serialises a
// block's transaction loop (geth/processor.go) — here behind a single
// mutex rather than a single goroutine, since dagExecuteTransactions
// itself fans out across a worker pool.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/meshchain/execcore/bal"
	"github.com/meshchain/execcore/core/abi"
	"github.com/meshchain/execcore/core/state"
	"github.com/meshchain/execcore/core/types"
	"github.com/meshchain/execcore/core/vm"
	"github.com/meshchain/execcore/core/vm/precompiled"
)

// Façade errors.
var (
	ErrNoBlock           = errors.New("executor: no block in progress; call NextBlockHeader first")
	ErrNilInput          = errors.New("executor: request input is nil")
	ErrNoScheduler       = errors.New("executor: no scheduler configured to resolve a transaction hash")
	ErrUnknownTxHash     = errors.New("executor: unknown transaction hash")
	ErrNoExecutive       = errors.New("executor: no suspended executive for that context/seq")
)

// Scheduler resolves a bare transaction hash to its decoded call
// fields before dispatch, per core/types.TransactionInput's InputTxHash
// doc comment. txpool.Pool is the production implementation.
type Scheduler interface {
	Resolve(hash types.Hash) (*types.TransactionInput, bool)
}

// VMFactory builds the bytecode-execution capability and the Ethereum
// static-precompile dispatcher for one block's header; vmbackend wires
// this against a real go-ethereum EVM (vmbackend.NewGethExecutor,
// vmbackend.EthereumPrecompiles), kept out of this package so executor
// never imports go-ethereum directly, matching core/vm.BlockContext's
// own Vm/EthereumExecute indirection.
type VMFactory func(header vm.BlockHeader) (vm.VmExecutor, func(types.Address, []byte) ([]byte, bool))

// Request addresses one executeTransaction/call invocation to a
// particular Executive. ContextID groups every frame belonging to the
// same top-level transaction (core/vm.Executive's doc comment); Seq
// distinguishes frames within it. A zero Seq with Kind InputTxHash or
// InputInline starts a fresh top-level Executive and the façade
// allocates its seq; InputExternalReturn must instead name the
// (ContextID, Seq) of the Executive it resumes.
type Request struct {
	ContextID uint64
	Seq       uint64
	Input     *types.TransactionInput
}

// Config wires an Executor's collaborators.
type Config struct {
	Backend     state.Backend
	Writer      state.Writer // nil disables flush-on-commit (e.g. read-only replay)
	Scheduler   Scheduler
	Schedule    vm.ScheduleConstants
	WASM        bool
	VMFactory   VMFactory
	Workers     int           // DAG planner worker pool size, default 1
	WaveTimeout time.Duration // DAG planner per-wave wall-clock warning budget
}

// Executor is the façade spec.md §4.8 describes.
type Executor struct {
	backend   state.Backend
	writer    state.Writer
	scheduler Scheduler
	schedule  vm.ScheduleConstants
	wasm      bool
	vmFactory VMFactory
	planner   *bal.DAGPlanner

	mu    sync.Mutex
	stack *state.LayerStack
	bc    *vm.BlockContext
}

// New constructs an Executor. Its DAG planner's CriticalsResolver reads
// through to whichever layer is current at call time, so it is built
// once here rather than per block.
func New(cfg Config) (*Executor, error) {
	if cfg.Backend == nil {
		return nil, errors.New("executor: backend is required")
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	ex := &Executor{
		backend:   cfg.Backend,
		writer:    cfg.Writer,
		scheduler: cfg.Scheduler,
		schedule:  cfg.Schedule,
		wasm:      cfg.WASM,
		vmFactory: cfg.VMFactory,
		stack:     state.NewLayerStack(cfg.Backend),
	}

	planner, err := bal.NewDAGPlanner(workers, ex.resolveCriticals, cfg.WaveTimeout)
	if err != nil {
		return nil, err
	}
	ex.planner = planner
	return ex, nil
}

// NextBlockHeader pushes a new StorageLayer over the current head for
// header.Number and builds the BlockContext transactions against it
// will dispatch through, per spec.md §4.8's nextBlockHeader.
func (ex *Executor) NextBlockHeader(header vm.BlockHeader) {
	ex.mu.Lock()
	defer ex.mu.Unlock()

	ex.stack.NextBlockHeader(header.Number)
	ex.bc = vm.NewBlockContext(header, ex.schedule, ex.wasm)
	precompiled.RegisterAll(ex.bc)
	if ex.vmFactory != nil {
		ex.bc.Vm, ex.bc.EthereumExecute = ex.vmFactory(header)
	}
}

// ExecuteTransaction routes req to an Executive: it creates one for
// InputTxHash (after resolving through the Scheduler) and InputInline,
// or hands InputExternalReturn to resume, per spec.md
// §4.8's executeTransaction.
func (ex *Executor) ExecuteTransaction(req Request) (*types.CallParameters, error) {
	ex.mu.Lock()
	defer ex.mu.Unlock()

	if req.Input == nil {
		return nil, ErrNilInput
	}
	layer := ex.stack.Head()
	if layer == nil || ex.bc == nil {
		return nil, ErrNoBlock
	}

	if req.Input.Kind == types.InputExternalReturn {
		return ex.resume(req)
	}

	input, err := ex.resolveInput(req.Input)
	if err != nil {
		return nil, err
	}

	seq := req.Seq
	if seq == 0 {
		seq = ex.bc.NextSeq()
	}
	exec := vm.NewExecutive(ex.bc, req.ContextID, seq, layer)
	ex.bc.InsertExecutive(req.ContextID, seq, exec)
	exec.Go(input)
	result := exec.Wait()
	if result.Kind != types.KindExternalCall {
		ex.bc.RemoveExecutive(req.ContextID, seq)
	}
	recordTransaction(result)
	return result, nil
}

// resume pushes req's resolution into the Executive registered under
// (ContextID, Seq) and waits for its result. Executives are removed from
// the directory once they return anything but KindExternalCall, and none
// returns KindExternalCall, so the lookup fails with ErrNoExecutive.
func (ex *Executor) resume(req Request) (*types.CallParameters, error) {
	exec, ok := ex.bc.GetExecutive(req.ContextID, req.Seq)
	if !ok {
		return nil, ErrNoExecutive
	}
	exec.PushMessage(req.Input.Return)
	result := exec.Wait()
	if result.Kind != types.KindExternalCall {
		ex.bc.RemoveExecutive(req.ContextID, req.Seq)
	}
	recordTransaction(result)
	return result, nil
}

// Call runs req as a static call over a throwaway layer so no mutation
// it performs is ever visible outside this one invocation, per
// spec.md §4.8's call.
func (ex *Executor) Call(req Request) (*types.CallParameters, error) {
	ex.mu.Lock()
	defer ex.mu.Unlock()

	if req.Input == nil {
		return nil, ErrNilInput
	}
	head := ex.stack.Head()
	if head == nil || ex.bc == nil {
		return nil, ErrNoBlock
	}

	input, err := ex.resolveInput(req.Input)
	if err != nil {
		return nil, err
	}
	staticInput := *input
	staticInput.StaticCall = true

	throwaway := state.NewChildLayer(head.BlockNumber(), head)
	seq := ex.bc.NextSeq()
	exec := vm.NewExecutive(ex.bc, req.ContextID, seq, throwaway)
	exec.Go(&staticInput)
	return exec.Wait(), nil
}

// DagExecuteTransactions runs spec.md §4.6's DAG planner over reqs and
// returns one CallParameters per request, in the same order, per
// spec.md §4.8's dagExecuteTransactions.
func (ex *Executor) DagExecuteTransactions(ctx context.Context, reqs []Request) ([]*types.CallParameters, error) {
	ex.mu.Lock()
	defer ex.mu.Unlock()

	layer := ex.stack.Head()
	if layer == nil || ex.bc == nil {
		return nil, ErrNoBlock
	}
	if len(reqs) == 0 {
		return nil, bal.ErrNoTransactions
	}

	resolved := make([]*types.TransactionInput, len(reqs))
	txs := make([]bal.Transaction, len(reqs))
	for i, req := range reqs {
		if req.Input == nil {
			return nil, ErrNilInput
		}
		input, err := ex.resolveInput(req.Input)
		if err != nil {
			return nil, err
		}
		resolved[i] = input
		txs[i] = ex.toBalTransaction(i, input)
	}

	waves, err := ex.planner.Plan(txs)
	if err != nil {
		return nil, err
	}

	results := make([]*types.CallParameters, len(reqs))
	execute := func(tx bal.Transaction) error {
		req := reqs[tx.Index]
		contextID := req.ContextID
		seq := ex.bc.NextSeq()
		exec := vm.NewExecutive(ex.bc, contextID, seq, layer)
		ex.bc.InsertExecutive(contextID, seq, exec)
		exec.Go(resolved[tx.Index])
		result := exec.Wait()
		ex.bc.RemoveExecutive(contextID, seq)
		recordTransaction(result)
		results[tx.Index] = result
		return nil
	}

	if err := ex.planner.Run(ctx, waves, execute); err != nil {
		return nil, err
	}
	dagWavesRun.Add(float64(len(waves)))
	return results, nil
}

// toBalTransaction builds the planner's view of one resolved call:
// its contract address, 4-byte selector, and whether it routes to the
// Precompiled catalogue (so resolveCriticals knows not to consult
// ParallelConfig for it).
func (ex *Executor) toBalTransaction(index int, input *types.TransactionInput) bal.Transaction {
	var sel [4]byte
	if len(input.Input) >= 4 {
		copy(sel[:], input.Input[:4])
	}
	return bal.Transaction{
		Index:           index,
		ContractAddress: input.To,
		Selector:        sel,
		Input:           input.Input,
		IsCreate:        input.IsCreate(),
		IsPrecompiled:   ex.bc.IsPrecompiled(input.To),
	}
}

// resolveCriticals is the DAG planner's CriticalsResolver (spec.md
// §4.6 step 1): contract-creation transactions and calls into the
// Precompiled catalogue are conservatively "critical to all" — none of
// this core's system contracts declare an explicit critical-key list
// (vm.Precompiled has no such method), so treating every precompiled
// call as serialised is the safe reading of "the precompiled declares
// them" in the absence of any precompiled that actually does (see
// DESIGN.md). Ordinary calls consult the ParallelConfig registry.
func (ex *Executor) resolveCriticals(tx bal.Transaction) ([][]byte, bool) {
	layer := ex.stack.Head()
	if layer == nil || tx.IsCreate || tx.IsPrecompiled {
		return nil, false
	}

	_, size, ok := precompiled.LookupCriticalSize(layer, tx.ContractAddress, tx.Selector[:])
	if !ok || size == 0 {
		return nil, false
	}

	args := tx.Input
	if len(args) >= 4 {
		args = args[4:]
	}
	dec := abi.NewDecoder(args)
	criticals := make([][]byte, 0, size)
	for i := uint64(0); i < size; i++ {
		word, err := dec.Bytes32()
		if err != nil {
			return nil, false
		}
		c := append(append([]byte{}, tx.ContractAddress.Bytes()...), word.Bytes()...)
		criticals = append(criticals, c)
	}
	return criticals, true
}

// resolveInput returns input unchanged unless it is an InputTxHash,
// in which case it is resolved through the Scheduler collaborator.
func (ex *Executor) resolveInput(input *types.TransactionInput) (*types.TransactionInput, error) {
	if input.Kind != types.InputTxHash {
		return input, nil
	}
	if ex.scheduler == nil {
		return nil, ErrNoScheduler
	}
	resolved, ok := ex.scheduler.Resolve(input.TxHash)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTxHash, input.TxHash.Hex())
	}
	return resolved, nil
}

// GetTableHashes returns the (name, hash) pairs for the layer at the
// given block number, per spec.md §4.8's getTableHashes.
func (ex *Executor) GetTableHashes(number uint64) ([]state.TableHashEntry, error) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.stack.GetTableHashes(number)
}

// Prepare validates that number's layer is the 2PC cursor, per spec.md
// §4.8's prepare.
func (ex *Executor) Prepare(number uint64) error {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.stack.Prepare(number)
}

// Commit flushes number's layer to the durable Writer (if configured)
// and only then advances the LayerStack cursor, so a flush failure
// never lets the cursor move past state the backend never acknowledged
// — the 2PC contract spec.md §4.8's commit and LayerStack.Commit's own
// doc comment both describe.
func (ex *Executor) Commit(number uint64) (types.Hash, error) {
	ex.mu.Lock()
	defer ex.mu.Unlock()

	if err := ex.stack.Prepare(number); err != nil {
		return types.Hash{}, err
	}
	layer, _ := ex.stack.ByNumber(number)

	if ex.writer != nil {
		if err := layer.Flush(ex.writer); err != nil {
			return types.Hash{}, fmt.Errorf("executor: commit(%d): flush: %w", number, err)
		}
	}
	return ex.stack.Commit(number)
}

// Rollback drops number's layer (and everything after it), per
// spec.md §4.8's rollback.
func (ex *Executor) Rollback(number uint64) error {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.stack.Rollback(number)
}

// Reset discards every uncommitted layer and the in-flight executive
// directory, per spec.md §4.8's reset / §5's cancellation note.
func (ex *Executor) Reset() {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	ex.stack.Reset()
	ex.bc = nil
}
