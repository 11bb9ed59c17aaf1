package types

// TransactionInputKind selects how a TransactionInput resolves to concrete
// call parameters: either a hash that the txpool resolves lazily, or an
// inline set of fields the caller has already decoded (used for "call"
// and for external-return resumption).
type TransactionInputKind uint8

const (
	// InputTxHash carries only a hash; the executor resolves it through
	// its Scheduler collaborator before dispatch.
	InputTxHash TransactionInputKind = iota
	// InputInline carries fully decoded fields and needs no resolution.
	InputInline
	// InputExternalReturn addresses a suspended executive with the result
	// of the sub-call it issued. core/vm's Executive never suspends, so
	// the executor finds no such executive and reports ErrNoExecutive.
	InputExternalReturn
)

// TransactionInput is the executor façade's entry parameter for
// executeTransaction and call. It is immutable within an execution.
type TransactionInput struct {
	Kind TransactionInputKind

	// TxHash is set when Kind == InputTxHash; the scheduler resolves it to
	// the remaining fields below.
	TxHash Hash

	From       Address
	To         Address // zero value means contract creation
	Input      []byte
	Gas        uint64
	Origin     Address
	CreateSalt *Hash // set only for CREATE2-style deployments
	StaticCall bool

	// Return, set when Kind == InputExternalReturn, carries the sub-call's
	// outcome back into the suspended executive.
	Return *CallParameters
}

// IsCreate reports whether this input targets contract creation.
func (t *TransactionInput) IsCreate() bool {
	return t.To.IsZero()
}
