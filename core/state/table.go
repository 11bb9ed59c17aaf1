package state

import "github.com/meshchain/execcore/core/types"

// Table is a handle to a named row store bound to the StorageLayer it was
// opened or created against. All CRUD operations are delegated to that
// layer so they participate in its recorder and overlay chain.
type Table struct {
	name  string
	layer *StorageLayer
}

// Name returns the table's name.
func (t *Table) Name() string { return t.name }

// GetRow looks up a row by primary key.
func (t *Table) GetRow(key string) (*types.Entry, bool, error) {
	return t.layer.GetRow(t.name, key)
}

// SetRow writes a row, recording the previous value for rollback.
func (t *Table) SetRow(key string, entry *types.Entry) error {
	return t.layer.SetRow(t.name, key, entry)
}

// RemoveRow tombstones a row, recording the previous value for rollback.
func (t *Table) RemoveRow(key string) error {
	return t.layer.RemoveRow(t.name, key)
}

// GetPrimaryKeys enumerates matching primary keys in natural key order.
func (t *Table) GetPrimaryKeys(cond func(*types.Entry) bool) ([]string, error) {
	return t.layer.GetPrimaryKeys(t.name, cond)
}
