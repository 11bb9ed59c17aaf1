package vm

import (
	"github.com/meshchain/execcore/core/state"
	"github.com/meshchain/execcore/core/types"
)

// Precompiled is the single capability interface every precompiled
// contract implements — spec.md §9's resolution of the "deep inheritance
// tree of Precompiled" smell into one sum-type-shaped interface rather
// than a class hierarchy. Per spec.md §5, precompileds never call back
// into another contract; they operate purely on the active StorageLayer,
// so Call is handed the layer directly rather than a HostContext.
type Precompiled interface {
	// Name identifies the precompile for logging and metrics.
	Name() string
	// Call decodes a 4-byte big-endian selector from data, dispatches to
	// a method, and returns ABI-encoded output. gasUsed reflects the
	// pricer's accounting for the operations performed (§4.5).
	Call(bc *BlockContext, layer *state.StorageLayer, data []byte, origin, sender types.Address) (gasUsed uint64, output []byte, err error)
}

// PrecompiledError is the only surfaced failure type from a Precompiled's
// Call, per spec.md §4.5.
type PrecompiledError struct {
	Message string
}

func (e *PrecompiledError) Error() string { return "precompiled: " + e.Message }

// NewPrecompiledError builds a PrecompiledError.
func NewPrecompiledError(message string) *PrecompiledError {
	return &PrecompiledError{Message: message}
}
