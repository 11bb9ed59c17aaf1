package state

import "github.com/meshchain/execcore/core/types"

// journalEntry is a revertible row mutation recorded by a StorageLayer's
// recorder. It captures enough state to undo exactly one set_row/remove_row
// call against the layer that recorded it.
type journalEntry interface {
	revert(l *StorageLayer)
}

// recorder is an append-only log of (table, key, previous-entry) triples,
// scoped to a single StorageLayer. savepoint/rollback give O(1) snapshot
// and LIFO-ordered undo, per spec §4.1's rollback protocol.
type recorder struct {
	entries []journalEntry
}

func newRecorder() *recorder {
	return &recorder{}
}

// savepoint returns an opaque handle capturing the recorder's current
// append position.
func (r *recorder) savepoint() int {
	return len(r.entries)
}

// rollback pops recorder entries back to the savepoint, restoring each
// captured (table, key, previous-entry) in LIFO order.
func (r *recorder) rollback(to int, layer *StorageLayer) {
	if to < 0 || to > len(r.entries) {
		return
	}
	for i := len(r.entries) - 1; i >= to; i-- {
		r.entries[i].revert(layer)
	}
	r.entries = r.entries[:to]
}

func (r *recorder) record(entry journalEntry) {
	r.entries = append(r.entries, entry)
}

func (r *recorder) length() int {
	return len(r.entries)
}

// rowChange undoes a single set_row or remove_row call: it restores the
// row to whatever it was (including "absent") before the write.
type rowChange struct {
	table      string
	key        string
	prevExists bool
	prevEntry  *types.Entry
}

func (ch rowChange) revert(l *StorageLayer) {
	rows := l.overlay[ch.table]
	if rows == nil {
		return
	}
	if ch.prevExists {
		rows[ch.key] = rowState{exists: true, entry: ch.prevEntry}
	} else {
		rows[ch.key] = rowState{exists: false}
	}
}

// createTableChange undoes a create_table call by removing the table's
// SYS_TABLES entry and its freshly-seeded overlay from this layer.
type createTableChange struct {
	table string
}

func (ch createTableChange) revert(l *StorageLayer) {
	delete(l.overlay, ch.table)
	delete(l.tableMeta, ch.table)
	rows := l.overlay[types.SysTablesName]
	if rows != nil {
		delete(rows, ch.table)
	}
}
