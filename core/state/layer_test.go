package state

import (
	"testing"

	"github.com/meshchain/execcore/core/types"
)

func newTestEntry(fields map[string]string) *types.Entry {
	e := types.NewEntry()
	for k, v := range fields {
		e.Set(k, v)
	}
	return e
}

func TestCreateTableAndRowRoundtrip(t *testing.T) {
	layer := NewRootLayer(1, nil)

	tbl, err := layer.CreateTable("t_accounts", "id", []string{"balance"})
	if err != nil {
		t.Fatalf("create table: %v", err)
	}

	row := newTestEntry(map[string]string{"id": "alice", "balance": "100"})
	if err := tbl.SetRow("alice", row); err != nil {
		t.Fatalf("set row: %v", err)
	}

	got, exists, err := tbl.GetRow("alice")
	if err != nil || !exists {
		t.Fatalf("get row: exists=%v err=%v", exists, err)
	}
	if v, _ := got.Get("balance"); v != "100" {
		t.Fatalf("balance = %q, want 100", v)
	}
}

func TestCreateTableDuplicateFails(t *testing.T) {
	layer := NewRootLayer(1, nil)
	if _, err := layer.CreateTable("dup", "id", nil); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := layer.CreateTable("dup", "id", nil); err == nil {
		t.Fatal("expected ErrTableExists on duplicate create_table")
	}
}

func TestRollbackRestoresPriorValue(t *testing.T) {
	layer := NewRootLayer(1, nil)
	tbl, _ := layer.CreateTable("t", "id", []string{"v"})

	_ = tbl.SetRow("k1", newTestEntry(map[string]string{"v": "1"}))
	sp := layer.Savepoint()

	_ = tbl.SetRow("k1", newTestEntry(map[string]string{"v": "2"}))
	_ = tbl.SetRow("k2", newTestEntry(map[string]string{"v": "3"}))

	layer.Rollback(sp)

	got, exists, _ := tbl.GetRow("k1")
	if !exists {
		t.Fatal("k1 should still exist after rollback")
	}
	if v, _ := got.Get("v"); v != "1" {
		t.Fatalf("k1 = %q, want 1 after rollback", v)
	}

	if _, exists, _ := tbl.GetRow("k2"); exists {
		t.Fatal("k2 should not exist: its set_row happened after the savepoint")
	}
}

func TestRollbackUndoesRemove(t *testing.T) {
	layer := NewRootLayer(1, nil)
	tbl, _ := layer.CreateTable("t", "id", []string{"v"})
	_ = tbl.SetRow("k", newTestEntry(map[string]string{"v": "1"}))

	sp := layer.Savepoint()
	_ = tbl.RemoveRow("k")
	if _, exists, _ := tbl.GetRow("k"); exists {
		t.Fatal("row should be tombstoned before rollback")
	}

	layer.Rollback(sp)
	_, exists, _ := tbl.GetRow("k")
	if !exists {
		t.Fatal("remove_row should be undone by rollback")
	}
}

func TestChildLayerSeesParentRows(t *testing.T) {
	parent := NewRootLayer(1, nil)
	ptbl, _ := parent.CreateTable("t", "id", []string{"v"})
	_ = ptbl.SetRow("k", newTestEntry(map[string]string{"v": "parent"}))

	child := NewChildLayer(2, parent)
	ctbl, ok := child.OpenTable("t")
	if !ok {
		t.Fatal("child layer should see parent's table")
	}
	got, exists, _ := ctbl.GetRow("k")
	if !exists {
		t.Fatal("child should see parent's row")
	}
	if v, _ := got.Get("v"); v != "parent" {
		t.Fatalf("v = %q, want parent", v)
	}
}

func TestChildTombstoneHidesParentRow(t *testing.T) {
	parent := NewRootLayer(1, nil)
	ptbl, _ := parent.CreateTable("t", "id", []string{"v"})
	_ = ptbl.SetRow("k", newTestEntry(map[string]string{"v": "parent"}))

	child := NewChildLayer(2, parent)
	ctbl, _ := child.OpenTable("t")
	_ = ctbl.RemoveRow("k")

	if _, exists, _ := ctbl.GetRow("k"); exists {
		t.Fatal("tombstone in child should hide parent's row")
	}
	if _, exists, _ := ptbl.GetRow("k"); !exists {
		t.Fatal("parent layer row must remain visible through the parent handle")
	}
}

type fakeWriter struct {
	rows  map[string]map[string]*types.Entry
	metas map[string]types.TableMeta
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{rows: make(map[string]map[string]*types.Entry), metas: make(map[string]types.TableMeta)}
}

func (w *fakeWriter) PutRow(table, key string, entry *types.Entry) error {
	if w.rows[table] == nil {
		w.rows[table] = make(map[string]*types.Entry)
	}
	w.rows[table][key] = entry
	return nil
}

func (w *fakeWriter) DeleteRow(table, key string) error {
	delete(w.rows[table], key)
	return nil
}

func (w *fakeWriter) PutTableMeta(table string, meta types.TableMeta) error {
	w.metas[table] = meta
	return nil
}

func TestFlushWritesOwnOverlayOnly(t *testing.T) {
	parent := NewRootLayer(1, nil)
	ptbl, _ := parent.CreateTable("t", "id", []string{"v"})
	_ = ptbl.SetRow("parent-row", newTestEntry(map[string]string{"v": "p"}))

	child := NewChildLayer(2, parent)
	ctbl, _ := child.OpenTable("t")
	_ = ctbl.SetRow("child-row", newTestEntry(map[string]string{"v": "c"}))
	_ = ctbl.RemoveRow("parent-row") // tombstone recorded only in child's own overlay

	w := newFakeWriter()
	if err := child.Flush(w); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if _, ok := w.rows["t"]["child-row"]; !ok {
		t.Fatal("expected child-row to be flushed")
	}
	if _, ok := w.rows["t"]["parent-row"]; ok {
		t.Fatal("expected the tombstoned parent-row to have been deleted, not written")
	}
	if len(w.rows["t"]) != 1 {
		t.Fatalf("expected only the child's own overlay to be flushed, got %v", w.rows["t"])
	}
}

func TestGetPrimaryKeysAppliesCondition(t *testing.T) {
	layer := NewRootLayer(1, nil)
	tbl, _ := layer.CreateTable("t", "id", []string{"v"})
	_ = tbl.SetRow("a", newTestEntry(map[string]string{"v": "1"}))
	_ = tbl.SetRow("b", newTestEntry(map[string]string{"v": "2"}))
	_ = tbl.SetRow("c", newTestEntry(map[string]string{"v": "3"}))

	keys, err := tbl.GetPrimaryKeys(func(e *types.Entry) bool {
		v, _ := e.Get("v")
		return v != "2"
	})
	if err != nil {
		t.Fatalf("get primary keys: %v", err)
	}
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "c" {
		t.Fatalf("keys = %v, want [a c]", keys)
	}
}
