package bal

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestDAGPlannerPlanOrdersWavesByDependency(t *testing.T) {
	shared := []byte("shared")
	resolve := func(tx Transaction) ([][]byte, bool) {
		if tx.Index%2 == 0 {
			return [][]byte{shared}, true
		}
		return [][]byte{{byte(tx.Index)}}, true
	}
	p, err := NewDAGPlanner(4, resolve, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waves, err := p.Plan([]Transaction{txAt(0, 1), txAt(1, 2), txAt(2, 3), txAt(3, 4)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(waves) < 2 {
		t.Fatalf("expected the shared critical to force at least 2 waves, got %d", len(waves))
	}

	seen := make(map[int]bool)
	for _, w := range waves {
		for _, tx := range w.Transactions {
			seen[tx.Index] = true
		}
	}
	for i := 0; i < 4; i++ {
		if !seen[i] {
			t.Fatalf("expected tx %d to appear in some wave", i)
		}
	}
}

func TestDAGPlannerPlanRejectsEmptyInput(t *testing.T) {
	p, err := NewDAGPlanner(2, func(Transaction) ([][]byte, bool) { return nil, false }, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := p.Plan(nil); err != ErrNoTransactions {
		t.Fatalf("expected ErrNoTransactions, got %v", err)
	}
}

func TestDAGPlannerRejectsInvalidWorkerCount(t *testing.T) {
	if _, err := NewDAGPlanner(0, nil, 0); err != ErrWorkerCountInvalid {
		t.Fatalf("expected ErrWorkerCountInvalid, got %v", err)
	}
}

func TestDAGPlannerRunExecutesEveryTransactionInOrder(t *testing.T) {
	resolve := func(tx Transaction) ([][]byte, bool) {
		return [][]byte{{byte(tx.Index)}}, true // fully independent
	}
	p, err := NewDAGPlanner(2, resolve, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	txs := []Transaction{txAt(0, 1), txAt(1, 2), txAt(2, 3)}
	waves, err := p.Plan(txs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var mu sync.Mutex
	executed := make(map[int]bool)
	err = p.Run(context.Background(), waves, func(tx Transaction) error {
		mu.Lock()
		executed[tx.Index] = true
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 3; i++ {
		if !executed[i] {
			t.Fatalf("expected tx %d to have executed", i)
		}
	}
}

func TestDAGPlannerRunLogsTimeoutWithoutAborting(t *testing.T) {
	resolve := func(tx Transaction) ([][]byte, bool) { return [][]byte{{byte(tx.Index)}}, true }
	p, err := NewDAGPlanner(1, resolve, time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waves, err := p.Plan([]Transaction{txAt(0, 1)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err = p.Run(context.Background(), waves, func(tx Transaction) error {
		time.Sleep(5 * time.Millisecond)
		return nil
	})
	if err != nil {
		t.Fatalf("expected the slow wave to still complete successfully, got %v", err)
	}
	if p.Metrics().Snapshot().Timeouts == 0 {
		t.Fatal("expected the timeout warning to have fired")
	}
}
