package types

// CallParameterKind is the message kind that flows across an executive's
// coroutine endpoints, and is also the shape of the executor's final
// ExecutionMessage result.
type CallParameterKind uint8

const (
	// KindMessage is a call awaiting dispatch or in flight.
	KindMessage CallParameterKind = iota
	// KindExternalCall marks an executive that suspended on a sub-call,
	// to be answered with an external return of kind KindFinished or
	// KindRevert. core/vm's Executive never emits it: its sub-calls run
	// synchronously.
	KindExternalCall
	// KindFinished is a successfully completed frame.
	KindFinished
	// KindRevert is a frame that unwound via revert or error.
	KindRevert
)

// Status mirrors the VM result mapping of the executive's dispatch step.
// Zero is success; the VM statuses below are -1..-13. Precompiled/table
// error codes use their own, far lower negative ranges (see the
// core/vm/precompiled error-code ranges).
type Status int32

const (
	StatusNone                      Status = 0
	StatusRevertInstruction         Status = -1
	StatusOutOfGas                  Status = -2
	StatusBadInstruction             Status = -3
	StatusBadJumpDestination         Status = -4
	StatusOutOfStack                 Status = -5
	StatusStackUnderflow              Status = -6
	StatusUnknown                     Status = -7
	StatusWASMValidationFailure       Status = -8
	StatusWASMArgumentOutOfRange      Status = -9
	StatusWASMUnreachableInstruction  Status = -10
	StatusPrecompiledError            Status = -11
	StatusContractFrozen              Status = -12
	StatusCallAddressError            Status = -13
)

// CallParameters is the internal message of the call machine. Instances
// flow in both directions between an Executive and the scheduler across
// suspension points.
type CallParameters struct {
	Kind CallParameterKind

	SenderAddress  Address
	CodeAddress    Address
	ReceiveAddress Address
	Origin         Address

	Data       []byte
	Gas        int64
	StaticCall bool
	Create     bool
	CreateSalt *Hash

	LogEntries []*Log
	Message    string
	Status     Status

	NewEVMContractAddress *Address
}

// Finished builds a success CallParameters carrying output in Data.
func Finished(output []byte, gasLeft int64, logs []*Log) *CallParameters {
	return &CallParameters{
		Kind:       KindFinished,
		Data:       output,
		Gas:        gasLeft,
		Status:     StatusNone,
		LogEntries: logs,
	}
}

// Revert builds a reverting CallParameters with the given status and message.
func Revert(status Status, message string) *CallParameters {
	return &CallParameters{
		Kind:    KindRevert,
		Status:  status,
		Message: message,
	}
}

// IsRevert reports whether these parameters represent a reverted frame.
func (c *CallParameters) IsRevert() bool {
	return c != nil && c.Kind == KindRevert
}

// IsFinished reports whether these parameters represent a completed frame.
func (c *CallParameters) IsFinished() bool {
	return c != nil && c.Kind == KindFinished
}
