// Package state implements the layered, rollback-capable key/value table
// store described by the execution core: StorageLayer provides a
// copy-on-write overlay over a parent layer (another StorageLayer or the
// durable Backend), and LayerStack orders the uncommitted layers for a
// run of blocks.
package state

import (
	"errors"
	"fmt"
	"sort"

	"github.com/meshchain/execcore/core/types"
)

var (
	ErrTableExists   = errors.New("state: table already exists")
	ErrTableNotFound = errors.New("state: table not found")
	ErrNoParent      = errors.New("state: layer has neither parent layer nor backend")
)

// Backend is the durable storage collaborator a LayerStack eventually
// commits into. It is satisfied by the backend package's pebble-backed
// store and by its in-memory test double.
type Backend interface {
	GetRow(table, key string) (*types.Entry, bool, error)
	GetTableMeta(table string) (types.TableMeta, bool, error)
	PrimaryKeys(table string) ([]string, error)
}

// Writer is the durable write side of Backend. LayerStack.Commit only
// advances the uncommitted cursor; it is the executor façade's job to
// first call the layer's Flush against a Writer, and to call
// LayerStack.Commit only once that flush has succeeded, completing the
// 2PC boundary spec.md §4.8 describes.
type Writer interface {
	PutRow(table, key string, entry *types.Entry) error
	DeleteRow(table, key string) error
	PutTableMeta(table string, meta types.TableMeta) error
}

// Flush writes every row and table-metadata change recorded directly in
// this layer's own overlay (not its ancestors') to w. Callers flush
// layers bottom-up as each one is committed, so by the time a given
// layer is flushed its parent's rows are already durable and visible
// through Backend.
func (l *StorageLayer) Flush(w Writer) error {
	for table, meta := range l.tableMeta {
		if err := w.PutTableMeta(table, meta); err != nil {
			return fmt.Errorf("state: flush table meta %q: %w", table, err)
		}
	}
	for table, rows := range l.overlay {
		for key, rs := range rows {
			if rs.exists {
				if err := w.PutRow(table, key, rs.entry); err != nil {
					return fmt.Errorf("state: flush row %s/%s: %w", table, key, err)
				}
				continue
			}
			if err := w.DeleteRow(table, key); err != nil {
				return fmt.Errorf("state: flush tombstone %s/%s: %w", table, key, err)
			}
		}
	}
	return nil
}

// rowState is the overlay's view of one row: either a live entry, or an
// explicit tombstone that hides the same key in a lower layer.
type rowState struct {
	exists bool
	entry  *types.Entry
}

// StorageLayer is a copy-on-write overlay over a parent layer or the
// backend. All mutations at this layer are captured by its recorder so
// they can be undone without touching the parent chain.
type StorageLayer struct {
	blockNumber uint64
	parent      *StorageLayer // nil at the bottom of an in-memory chain
	backend     Backend       // non-nil only at the bottom of the chain

	overlay   map[string]map[string]rowState
	tableMeta map[string]types.TableMeta

	rec *recorder
}

// NewRootLayer creates the bottom StorageLayer of a chain, backed by a
// durable Backend.
func NewRootLayer(blockNumber uint64, backend Backend) *StorageLayer {
	return &StorageLayer{
		blockNumber: blockNumber,
		backend:     backend,
		overlay:     make(map[string]map[string]rowState),
		tableMeta:   make(map[string]types.TableMeta),
		rec:         newRecorder(),
	}
}

// NewChildLayer creates a new StorageLayer stacked on top of parent, for
// the given block number.
func NewChildLayer(blockNumber uint64, parent *StorageLayer) *StorageLayer {
	return &StorageLayer{
		blockNumber: blockNumber,
		parent:      parent,
		overlay:     make(map[string]map[string]rowState),
		tableMeta:   make(map[string]types.TableMeta),
		rec:         newRecorder(),
	}
}

// BlockNumber returns the block number this layer is preparing.
func (l *StorageLayer) BlockNumber() uint64 { return l.blockNumber }

// Parent returns the immutable parent layer, or nil at the chain root.
func (l *StorageLayer) Parent() *StorageLayer { return l.parent }

// Savepoint returns an opaque handle capturing the recorder's current
// append position, for later Rollback.
func (l *StorageLayer) Savepoint() int {
	return l.rec.savepoint()
}

// Rollback pops recorder entries back to the savepoint, restoring each
// captured (table, key, previous-entry) in LIFO order. Reverted writes
// never reach the parent layer.
func (l *StorageLayer) Rollback(savepoint int) {
	l.rec.rollback(savepoint, l)
}

// OpenTable walks the overlay chain and returns a Table handle if any
// layer or the backend holds it; absent only if nothing in the chain does.
func (l *StorageLayer) OpenTable(name string) (*Table, bool) {
	if _, ok := l.lookupMeta(name); !ok {
		return nil, false
	}
	return &Table{name: name, layer: l}, true
}

// CreateTable inserts a SYS_TABLES entry at this layer and seeds an empty
// overlay for the new table. Fails with ErrTableExists if the name
// already resolves anywhere in the chain.
func (l *StorageLayer) CreateTable(name, keyField string, valueFields []string) (*Table, error) {
	if !types.IsTableNameValid(name) {
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidTableName, name)
	}
	if err := types.ValidateValueFields(keyField, valueFields); err != nil {
		return nil, err
	}
	if _, ok := l.lookupMeta(name); ok {
		return nil, fmt.Errorf("%w: %q", ErrTableExists, name)
	}

	meta := types.TableMeta{TableName: name, KeyField: keyField, ValueFields: valueFields}
	l.tableMeta[name] = meta
	l.overlay[name] = make(map[string]rowState)

	sysRow := types.NewEntry()
	sysRow.Set("key_field", keyField)
	sysRow.Set("value_field", meta.ValueFieldString())
	l.setRowNoRecord(types.SysTablesName, name, sysRow)

	l.rec.record(createTableChange{table: name})
	return &Table{name: name, layer: l}, nil
}

// GetRow performs a top-down lookup: the first layer that holds the key
// wins; a tombstone in an upper layer hides lower layers' values.
func (l *StorageLayer) GetRow(table, key string) (*types.Entry, bool, error) {
	for layer := l; layer != nil; layer = layer.parent {
		if rows, ok := layer.overlay[table]; ok {
			if rs, ok := rows[key]; ok {
				return rs.entry, rs.exists, nil
			}
		}
	}
	if l.rootBackend() != nil {
		return l.rootBackend().GetRow(table, key)
	}
	return nil, false, nil
}

// SetRow writes to the top layer; before overwriting, the previous entry
// (or an explicit absent marker) is captured into the active recorder.
func (l *StorageLayer) SetRow(table, key string, entry *types.Entry) error {
	if _, ok := l.lookupMeta(table); !ok {
		return fmt.Errorf("%w: %q", ErrTableNotFound, table)
	}
	prevEntry, prevExists, err := l.GetRow(table, key)
	if err != nil {
		return err
	}
	l.rec.record(rowChange{table: table, key: key, prevExists: prevExists, prevEntry: prevEntry})
	l.setRowNoRecord(table, key, entry)
	return nil
}

func (l *StorageLayer) setRowNoRecord(table, key string, entry *types.Entry) {
	rows := l.overlay[table]
	if rows == nil {
		rows = make(map[string]rowState)
		l.overlay[table] = rows
	}
	rows[key] = rowState{exists: true, entry: entry}
}

// RemoveRow writes a tombstone to the top layer via the recorder.
func (l *StorageLayer) RemoveRow(table, key string) error {
	if _, ok := l.lookupMeta(table); !ok {
		return fmt.Errorf("%w: %q", ErrTableNotFound, table)
	}
	prevEntry, prevExists, err := l.GetRow(table, key)
	if err != nil {
		return err
	}
	l.rec.record(rowChange{table: table, key: key, prevExists: prevExists, prevEntry: prevEntry})
	rows := l.overlay[table]
	if rows == nil {
		rows = make(map[string]rowState)
		l.overlay[table] = rows
	}
	rows[key] = rowState{exists: false}
	return nil
}

// GetPrimaryKeys enumerates the merged key set across layers, applying
// the predicate if given. Returned order is natural (lexicographic) key
// order.
func (l *StorageLayer) GetPrimaryKeys(table string, cond func(*types.Entry) bool) ([]string, error) {
	if _, ok := l.lookupMeta(table); !ok {
		return nil, fmt.Errorf("%w: %q", ErrTableNotFound, table)
	}

	seen := make(map[string]rowState)
	if l.rootBackend() != nil {
		backendKeys, err := l.rootBackend().PrimaryKeys(table)
		if err != nil {
			return nil, err
		}
		for _, k := range backendKeys {
			entry, _, err := l.rootBackend().GetRow(table, k)
			if err != nil {
				return nil, err
			}
			seen[k] = rowState{exists: true, entry: entry}
		}
	}

	var chain []*StorageLayer
	for layer := l; layer != nil; layer = layer.parent {
		chain = append(chain, layer)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		rows := chain[i].overlay[table]
		for k, rs := range rows {
			seen[k] = rs
		}
	}

	var keys []string
	for k, rs := range seen {
		if !rs.exists {
			continue
		}
		if cond != nil && !cond(rs.entry) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (l *StorageLayer) lookupMeta(table string) (types.TableMeta, bool) {
	for layer := l; layer != nil; layer = layer.parent {
		if m, ok := layer.tableMeta[table]; ok {
			return m, ok
		}
	}
	if l.rootBackend() != nil {
		return l.rootBackend().GetTableMeta(table)
	}
	return types.TableMeta{}, false
}

func (l *StorageLayer) rootBackend() Backend {
	layer := l
	for layer.parent != nil {
		layer = layer.parent
	}
	return layer.backend
}

// touchedTables returns the set of table names written anywhere in this
// layer's own overlay (not ancestors), used by TableHashes.
func (l *StorageLayer) touchedTables() []string {
	names := make([]string, 0, len(l.overlay))
	for name := range l.overlay {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
