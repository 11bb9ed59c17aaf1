package vm

import (
	"sync"

	"github.com/meshchain/execcore/core/state"
	"github.com/meshchain/execcore/core/types"
	"github.com/meshchain/execcore/crypto"
	"github.com/meshchain/execcore/rlp"
)

// ExecutiveState tracks where one Executive sits in the state machine
// spec.md §4.3 describes: Idle until Go is called, Executing while its
// goroutine runs dispatch, Finished once dispatch has produced its
// result. StateAwaitingExternalReturn is declared but never entered: a
// nested Call/Create runs to completion inside the parent's dispatch,
// which stays Executing meanwhile.
type ExecutiveState uint8

const (
	StateIdle ExecutiveState = iota
	StateExecuting
	StateAwaitingExternalReturn
	StateFinished
)

// Executive is one reentrant call frame's run-to-completion machine. Its
// push/pull channel pair is the Go-native lowering of spec.md §5's
// stackful-coroutine suspension: a caller that needs this Executive's
// answer blocks on Wait() (a receive from push). The pull channel is only
// written by PushMessage and never read, so an Executive does not suspend
// mid-dispatch; sub-calls issued via HostContext.Call/Create run a child
// Executive synchronously and block on its Wait().
type Executive struct {
	bc        *BlockContext
	contextID uint64
	seq       uint64
	layer     *state.StorageLayer

	mu    sync.Mutex
	state ExecutiveState
	logs  []*types.Log

	push chan *types.CallParameters
	pull chan *types.CallParameters
	done chan struct{}
}

// NewExecutive creates an Idle Executive bound to one block context and
// storage layer. contextID groups every Executive belonging to the same
// top-level transaction; seq distinguishes frames within it.
func NewExecutive(bc *BlockContext, contextID, seq uint64, layer *state.StorageLayer) *Executive {
	return &Executive{
		bc:        bc,
		contextID: contextID,
		seq:       seq,
		layer:     layer,
		push:      make(chan *types.CallParameters, 1),
		pull:      make(chan *types.CallParameters, 1),
		done:      make(chan struct{}),
	}
}

// Go starts the Executive's goroutine against input and returns
// immediately; the result arrives on Output()/Wait().
func (e *Executive) Go(input *types.TransactionInput) {
	e.mu.Lock()
	e.state = StateExecuting
	e.mu.Unlock()

	go func() {
		result := e.dispatch(input)
		e.mu.Lock()
		e.state = StateFinished
		e.mu.Unlock()
		e.push <- result
		close(e.done)
	}()
}

// Output returns the channel the Executive's final CallParameters arrives
// on.
func (e *Executive) Output() <-chan *types.CallParameters { return e.push }

// Wait blocks until the Executive finishes and returns its result.
func (e *Executive) Wait() *types.CallParameters { return <-e.push }

// PushMessage places msg on the Executive's pull channel (buffer of one).
// Nothing reads that channel, so the message does not reach a running
// dispatch, and a second call blocks once the buffer is full.
func (e *Executive) PushMessage(msg *types.CallParameters) {
	e.pull <- msg
}

// State returns the Executive's current lifecycle state.
func (e *Executive) State() ExecutiveState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Executive) appendLog(log *types.Log) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.logs = append(e.logs, log)
}

// dispatch runs the Idle->Executing->Finished transition body: it charges
// intrinsic gas up front, then classifies the call target (create, FISCO
// precompile, Ethereum static precompile, or ordinary bytecode) and routes
// accordingly, per the VM dispatch table in spec.md §4.3.
func (e *Executive) dispatch(input *types.TransactionInput) *types.CallParameters {
	sp := e.layer.Savepoint()

	params := &types.CallParameters{
		Kind:           types.KindMessage,
		SenderAddress:  input.From,
		ReceiveAddress: input.To,
		CodeAddress:    input.To,
		Origin:         input.Origin,
		Data:           input.Input,
		Gas:            int64(input.Gas),
		StaticCall:     input.StaticCall,
		Create:         input.IsCreate(),
		CreateSalt:     input.CreateSalt,
	}

	base := intrinsicGas(e.bc.Schedule, params.Create, params.Data)
	if base > params.Gas {
		return types.Revert(types.StatusOutOfGas, "intrinsic gas exceeds tx gas limit")
	}
	params.Gas -= base

	host := NewHostContext(e.bc, e.layer, e)

	var result *types.CallParameters
	switch {
	case params.Create:
		result = e.dispatchCreate(host, params)
	case e.bc.IsPrecompiled(params.CodeAddress):
		result = e.dispatchPrecompiled(host, params)
	case !e.bc.WASM && e.bc.IsEthereumPrecompiled(params.CodeAddress):
		result = e.dispatchEthereumPrecompiled(host, params)
	default:
		result = e.dispatchVM(host, params)
	}

	result.LogEntries = append(result.LogEntries, e.logs...)

	if result.IsRevert() {
		e.layer.Rollback(sp)
	}
	return result
}

// intrinsicGas computes the base gas a transaction owes before any
// bytecode or precompile runs, per spec.md §4.3's "Gas accounting" step:
// a flat create/message cost plus a per-byte charge over the call data
// that distinguishes zero bytes from non-zero ones.
func intrinsicGas(schedule ScheduleConstants, create bool, data []byte) int64 {
	base := schedule.TxGas
	if create {
		base = schedule.TxCreateGas
	}
	for _, b := range data {
		if b == 0 {
			base += schedule.TxDataZeroGas
		} else {
			base += schedule.TxDataNonZeroGas
		}
	}
	return int64(base)
}

func (e *Executive) dispatchCreate(host *HostContext, params *types.CallParameters) *types.CallParameters {
	if e.bc.Vm == nil {
		return types.Revert(types.StatusUnknown, "no vm executor configured")
	}

	var newAddr types.Address
	if params.CreateSalt != nil {
		newAddr = create2Address(params.SenderAddress, *params.CreateSalt, params.Data)
	} else {
		nonce, err := host.Nonce(params.SenderAddress)
		if err != nil {
			return types.Revert(types.StatusUnknown, err.Error())
		}
		newAddr = createAddress(params.SenderAddress, nonce)
		if err := host.SetNonce(params.SenderAddress, nonce+1); err != nil {
			return types.Revert(types.StatusUnknown, err.Error())
		}
	}

	exists, err := host.Exists(newAddr)
	if err != nil {
		return types.Revert(types.StatusUnknown, err.Error())
	}
	if exists {
		return types.Revert(types.StatusCallAddressError, "contract address collision")
	}

	msg := VmMessage{
		Sender:   params.SenderAddress,
		Receiver: newAddr,
		Code:     params.Data,
		Gas:      params.Gas,
		Create:   true,
		Salt:     params.CreateSalt,
		Static:   params.StaticCall,
	}
	vmResult, err := e.bc.Vm.Execute(host, msg)
	if err != nil {
		return types.Revert(types.StatusUnknown, err.Error())
	}
	if vmResult.Status != types.StatusNone {
		return types.Revert(vmResult.Status, "")
	}
	if len(vmResult.ReturnData) > e.bc.Schedule.MaxCodeSize {
		return types.Revert(types.StatusOutOfGas, "contract code exceeds max code size")
	}
	depositCost := int64(len(vmResult.ReturnData)) * int64(e.bc.Schedule.CreateDataGas)
	gasLeft := vmResult.GasLeft - depositCost
	if gasLeft < 0 {
		return types.Revert(types.StatusOutOfGas, "insufficient gas for code deposit")
	}
	if err := host.SetCode(newAddr, vmResult.ReturnData); err != nil {
		return types.Revert(types.StatusUnknown, err.Error())
	}

	result := types.Finished(vmResult.ReturnData, gasLeft, vmResult.Logs)
	result.NewEVMContractAddress = &newAddr
	return result
}

func (e *Executive) dispatchPrecompiled(host *HostContext, params *types.CallParameters) *types.CallParameters {
	p, ok := e.bc.GetPrecompiled(params.CodeAddress)
	if !ok {
		return types.Revert(types.StatusCallAddressError, "precompile not found")
	}
	gasUsed, output, err := p.Call(e.bc, e.layer, params.Data, params.Origin, params.SenderAddress)
	if err != nil {
		return types.Revert(types.StatusPrecompiledError, err.Error())
	}
	gasLeft := params.Gas - int64(gasUsed)
	if gasLeft < 0 {
		return types.Revert(types.StatusOutOfGas, "")
	}
	return types.Finished(output, gasLeft, nil)
}

func (e *Executive) dispatchEthereumPrecompiled(host *HostContext, params *types.CallParameters) *types.CallParameters {
	gasCost, err := e.bc.CostOfPrecompiled(params.CodeAddress, params.Data)
	if err != nil {
		return types.Revert(types.StatusPrecompiledError, err.Error())
	}
	gasLeft := params.Gas - int64(gasCost)
	if gasLeft < 0 {
		return types.Revert(types.StatusOutOfGas, "")
	}
	ok, output := e.bc.ExecuteOriginPrecompiled(params.CodeAddress, params.Data)
	if !ok {
		return types.Revert(types.StatusPrecompiledError, "ethereum precompile execution failed")
	}
	return types.Finished(output, gasLeft, nil)
}

func (e *Executive) dispatchVM(host *HostContext, params *types.CallParameters) *types.CallParameters {
	code, err := host.CodeAt(params.CodeAddress)
	if err != nil {
		return types.Revert(types.StatusUnknown, err.Error())
	}
	if len(code) == 0 {
		// Plain value transfer to a non-contract account: no bytecode to
		// run, finishes immediately with all gas returned.
		return types.Finished(nil, params.Gas, nil)
	}
	if e.bc.Vm == nil {
		return types.Revert(types.StatusUnknown, "no vm executor configured")
	}

	msg := VmMessage{
		Sender:   params.SenderAddress,
		Receiver: params.ReceiveAddress,
		Code:     code,
		Input:    params.Data,
		Gas:      params.Gas,
		Static:   params.StaticCall,
	}
	vmResult, err := e.bc.Vm.Execute(host, msg)
	if err != nil {
		return types.Revert(types.StatusUnknown, err.Error())
	}
	if vmResult.Status != types.StatusNone {
		return types.Revert(vmResult.Status, "")
	}
	return types.Finished(vmResult.ReturnData, vmResult.GasLeft, vmResult.Logs)
}

// createAddressRLP mirrors the RLP(sender, nonce) shape CREATE derives
// its target address from.
type createAddressRLP struct {
	Sender types.Address
	Nonce  uint64
}

func createAddress(sender types.Address, nonce uint64) types.Address {
	enc, err := rlp.EncodeToBytes(createAddressRLP{Sender: sender, Nonce: nonce})
	if err != nil {
		return types.Address{}
	}
	return types.BytesToAddress(crypto.Keccak256(enc)[12:])
}

func create2Address(sender types.Address, salt types.Hash, initCode []byte) types.Address {
	codeHash := crypto.Keccak256(initCode)
	data := append([]byte{0xff}, sender.Bytes()...)
	data = append(data, salt.Bytes()...)
	data = append(data, codeHash...)
	return types.BytesToAddress(crypto.Keccak256(data)[12:])
}
