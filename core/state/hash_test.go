package state

import "testing"

func TestHashDeterministicForSameContent(t *testing.T) {
	build := func() *StorageLayer {
		l := NewRootLayer(1, nil)
		tbl, _ := l.CreateTable("t", "id", []string{"v"})
		_ = tbl.SetRow("a", newTestEntry(map[string]string{"v": "1"}))
		_ = tbl.SetRow("b", newTestEntry(map[string]string{"v": "2"}))
		return l
	}

	h1, err := build().Hash()
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	h2, err := build().Hash()
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if h1 != h2 {
		t.Fatal("hash should be deterministic for identical content")
	}
}

func TestHashChangesWithContent(t *testing.T) {
	l1 := NewRootLayer(1, nil)
	tbl1, _ := l1.CreateTable("t", "id", []string{"v"})
	_ = tbl1.SetRow("a", newTestEntry(map[string]string{"v": "1"}))

	l2 := NewRootLayer(1, nil)
	tbl2, _ := l2.CreateTable("t", "id", []string{"v"})
	_ = tbl2.SetRow("a", newTestEntry(map[string]string{"v": "2"}))

	h1, _ := l1.Hash()
	h2, _ := l2.Hash()
	if h1 == h2 {
		t.Fatal("hash should differ for different row content")
	}
}

func TestCommitRootMatchesPreCommitHash(t *testing.T) {
	stack := NewLayerStack(nil)
	layer := stack.NextBlockHeader(1)
	tbl, _ := layer.CreateTable("t", "id", []string{"v"})
	_ = tbl.SetRow("a", newTestEntry(map[string]string{"v": "1"}))

	preCommit, err := layer.Hash()
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	if err := stack.Prepare(1); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	root, err := stack.Commit(1)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if root != preCommit {
		t.Fatalf("commit root %x != pre-commit hash %x", root, preCommit)
	}
}
