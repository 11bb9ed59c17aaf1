package backend

import (
	"path/filepath"
	"testing"

	"github.com/meshchain/execcore/core/state"
	"github.com/meshchain/execcore/core/types"
)

var (
	_ state.Backend = (*Store)(nil)
	_ state.Writer  = (*Store)(nil)
	_ state.Backend = (*MemoryStore)(nil)
	_ state.Writer  = (*MemoryStore)(nil)
)

func newTestEntry(fields map[string]string) *types.Entry {
	e := types.NewEntry()
	for k, v := range fields {
		e.Set(k, v)
	}
	return e
}

func TestStoreRowRoundtrip(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	meta := types.TableMeta{TableName: "t_accounts", KeyField: "id", ValueFields: []string{"balance", "nonce"}}
	if err := s.PutTableMeta("t_accounts", meta); err != nil {
		t.Fatalf("put table meta: %v", err)
	}
	got, ok, err := s.GetTableMeta("t_accounts")
	if err != nil || !ok {
		t.Fatalf("get table meta: ok=%v err=%v", ok, err)
	}
	if got.KeyField != "id" || len(got.ValueFields) != 2 {
		t.Fatalf("table meta = %+v, want KeyField=id, 2 value fields", got)
	}

	row := newTestEntry(map[string]string{"id": "alice", "balance": "100", "nonce": "3"})
	if err := s.PutRow("t_accounts", "alice", row); err != nil {
		t.Fatalf("put row: %v", err)
	}

	readBack, exists, err := s.GetRow("t_accounts", "alice")
	if err != nil || !exists {
		t.Fatalf("get row: exists=%v err=%v", exists, err)
	}
	if v, _ := readBack.Get("balance"); v != "100" {
		t.Fatalf("balance = %q, want 100", v)
	}
	if v, _ := readBack.Get("nonce"); v != "3" {
		t.Fatalf("nonce = %q, want 3", v)
	}
}

func TestStoreGetRowMissingReturnsNotFoundNotError(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	_, exists, err := s.GetRow("nope", "nope")
	if err != nil {
		t.Fatalf("unexpected error on missing row: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for a missing row")
	}
}

func TestStorePrimaryKeysSortedAndScopedToTable(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	for _, k := range []string{"charlie", "alice", "bob"} {
		if err := s.PutRow("t", k, newTestEntry(map[string]string{"id": k})); err != nil {
			t.Fatalf("put row %s: %v", k, err)
		}
	}
	// A row in a different table must not leak into t's key listing.
	if err := s.PutRow("other", "zeta", newTestEntry(map[string]string{"id": "zeta"})); err != nil {
		t.Fatalf("put row zeta: %v", err)
	}

	keys, err := s.PrimaryKeys("t")
	if err != nil {
		t.Fatalf("primary keys: %v", err)
	}
	want := []string{"alice", "bob", "charlie"}
	if len(keys) != len(want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("keys = %v, want %v", keys, want)
		}
	}
}

func TestStoreDeleteRow(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	if err := s.PutRow("t", "k", newTestEntry(map[string]string{"v": "1"})); err != nil {
		t.Fatalf("put row: %v", err)
	}
	if err := s.DeleteRow("t", "k"); err != nil {
		t.Fatalf("delete row: %v", err)
	}
	_, exists, err := s.GetRow("t", "k")
	if err != nil {
		t.Fatalf("get row after delete: %v", err)
	}
	if exists {
		t.Fatal("expected row to be gone after delete")
	}
}

func TestLayerFlushIntoStore(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	layer := state.NewRootLayer(1, s)
	tbl, err := layer.CreateTable("t_accounts", "id", []string{"balance"})
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	if err := tbl.SetRow("alice", newTestEntry(map[string]string{"id": "alice", "balance": "100"})); err != nil {
		t.Fatalf("set row: %v", err)
	}

	if err := layer.Flush(s); err != nil {
		t.Fatalf("flush: %v", err)
	}

	// A fresh layer with no overlay of its own must see the flushed row
	// purely through the backend.
	next := state.NewRootLayer(2, s)
	got, exists, err := next.GetRow("t_accounts", "alice")
	if err != nil || !exists {
		t.Fatalf("get row via backend: exists=%v err=%v", exists, err)
	}
	if v, _ := got.Get("balance"); v != "100" {
		t.Fatalf("balance = %q, want 100", v)
	}
}

func TestMemoryStoreSatisfiesSameRoundtrip(t *testing.T) {
	m := NewMemoryStore()
	if err := m.PutTableMeta("t", types.TableMeta{TableName: "t", KeyField: "id"}); err != nil {
		t.Fatalf("put table meta: %v", err)
	}
	if err := m.PutRow("t", "k", newTestEntry(map[string]string{"v": "1"})); err != nil {
		t.Fatalf("put row: %v", err)
	}
	got, exists, err := m.GetRow("t", "k")
	if err != nil || !exists {
		t.Fatalf("get row: exists=%v err=%v", exists, err)
	}
	if v, _ := got.Get("v"); v != "1" {
		t.Fatalf("v = %q, want 1", v)
	}
}
