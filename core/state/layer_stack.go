package state

import (
	"fmt"

	"github.com/meshchain/execcore/core/types"
)

// LayerStack is an ordered list of StorageLayer, front = oldest
// uncommitted. New layers push to the back on NextBlockHeader; Commit
// advances uncommittedCursor; Rollback drops from the back.
//
// Invariant: the layer at uncommittedCursor is the next one that may be
// durably committed; the backend has durably received every layer
// strictly before it.
type LayerStack struct {
	layers           []*StorageLayer
	uncommittedCursor int
	backend          Backend
	manager          *StateManager
}

// NewLayerStack creates a LayerStack rooted at the given backend, with no
// uncommitted layers yet.
func NewLayerStack(backend Backend) *LayerStack {
	return &LayerStack{
		backend: backend,
		manager: NewStateManager(StateManagerConfig{}),
	}
}

// Head returns the most recently pushed layer, or nil if empty.
func (s *LayerStack) Head() *StorageLayer {
	if len(s.layers) == 0 {
		return nil
	}
	return s.layers[len(s.layers)-1]
}

// NextBlockHeader pushes a new StorageLayer over the current head for
// the given block number.
func (s *LayerStack) NextBlockHeader(blockNumber uint64) *StorageLayer {
	parent := s.Head()
	var layer *StorageLayer
	if parent == nil {
		layer = NewRootLayer(blockNumber, s.backend)
	} else {
		layer = NewChildLayer(blockNumber, parent)
	}
	s.layers = append(s.layers, layer)
	return layer
}

// ByNumber returns the layer for the given block number, if it is still
// in the uncommitted window.
func (s *LayerStack) ByNumber(blockNumber uint64) (*StorageLayer, bool) {
	for _, l := range s.layers {
		if l.BlockNumber() == blockNumber {
			return l, true
		}
	}
	return nil, false
}

// Prepare validates that the layer for blockNumber is exactly the layer
// at uncommittedCursor, as the 2PC contract requires.
func (s *LayerStack) Prepare(blockNumber uint64) error {
	if s.uncommittedCursor >= len(s.layers) {
		return fmt.Errorf("state: prepare(%d): no uncommitted layer", blockNumber)
	}
	cursor := s.layers[s.uncommittedCursor]
	if cursor.BlockNumber() != blockNumber {
		return fmt.Errorf("state: prepare(%d): cursor is at block %d", blockNumber, cursor.BlockNumber())
	}
	return nil
}

// Commit advances the cursor past the layer for blockNumber, which the
// caller (executor façade) calls after the backend has acknowledged it.
// Returns the committed layer's root. The committed layer is not dropped:
// it stays in the stack, reachable through ByNumber, until Rollback or
// Reset removes it.
func (s *LayerStack) Commit(blockNumber uint64) (types.Hash, error) {
	if err := s.Prepare(blockNumber); err != nil {
		return types.Hash{}, err
	}
	layer := s.layers[s.uncommittedCursor]
	root, err := layer.Hash()
	if err != nil {
		return types.Hash{}, err
	}
	s.manager.AddJournalEntry(blockNumber, root)
	s.uncommittedCursor++
	return root, nil
}

// Rollback drops the layer for blockNumber (and everything after it)
// from the back of the stack.
func (s *LayerStack) Rollback(blockNumber uint64) error {
	idx := -1
	for i, l := range s.layers {
		if l.BlockNumber() == blockNumber {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("state: rollback(%d): no such layer", blockNumber)
	}
	s.layers = s.layers[:idx]
	if s.uncommittedCursor > len(s.layers) {
		s.uncommittedCursor = len(s.layers)
	}
	return nil
}

// Reset discards all layers, returning the stack to its empty state.
func (s *LayerStack) Reset() {
	s.layers = nil
	s.uncommittedCursor = 0
}

// GetTableHashes returns the (name, hash) pairs for the layer at the
// given block number.
func (s *LayerStack) GetTableHashes(blockNumber uint64) ([]TableHashEntry, error) {
	layer, ok := s.ByNumber(blockNumber)
	if !ok {
		return nil, fmt.Errorf("%w: block %d", ErrBlockNotFound, blockNumber)
	}
	return layer.TableHashes()
}
