// scheduler.go reduces a dependency graph to execution waves via
// topological sort, then drives a worker pool that executes each wave's
// transactions in parallel against a shared executive. The topoSort and
// buildWaves functions are kept close to the teacher's BALScheduler —
// per an Open Question decision recorded in DESIGN.md, wave-barriered
// scheduling (every transaction in a wave provably independent, waves
// run strictly in sequence) is used in place of spec.md §4.6 step 3's
// literal indegree-popping worker-pool loop, which admits finer-grained
// interleaving the teacher's code has no analogue for.
//
// Speculative execution with rollback/re-execution (the teacher's
// ExecuteSpeculative/ReExecute) is dropped: spec.md's planner depends on
// a dependency graph computed from declared criticals, not on
// optimistic execution later validated against recorded accesses, so
// there is nothing to roll back.
package bal

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// Planner errors.
var (
	ErrNoTransactions     = errors.New("bal: no transactions to schedule")
	ErrCyclicDependency   = errors.New("bal: dependency graph contains a cycle")
	ErrWorkerCountInvalid = errors.New("bal: worker count must be positive")
)

// Wave is a group of transactions whose dependencies all lie in earlier
// waves — transactions within one wave are mutually independent and may
// run concurrently.
type Wave struct {
	Transactions []Transaction
}

// PlannerMetrics collects runtime statistics about planning and execution.
type PlannerMetrics struct {
	WavesFormed  atomic.Uint64
	TxsScheduled atomic.Uint64
	MaxWaveSize  atomic.Uint64
	Timeouts     atomic.Uint64
}

// Snapshot returns a copy of the current metric values.
func (m *PlannerMetrics) Snapshot() PlannerMetricsSnapshot {
	return PlannerMetricsSnapshot{
		WavesFormed:  m.WavesFormed.Load(),
		TxsScheduled: m.TxsScheduled.Load(),
		MaxWaveSize:  m.MaxWaveSize.Load(),
		Timeouts:     m.Timeouts.Load(),
	}
}

// PlannerMetricsSnapshot is an immutable snapshot of PlannerMetrics.
type PlannerMetricsSnapshot struct {
	WavesFormed  uint64
	TxsScheduled uint64
	MaxWaveSize  uint64
	Timeouts     uint64
}

// ExecuteFunc executes one transaction against the shared executive and
// state layer a DAGPlanner's caller holds. Errors returned here abort
// the wave currently in flight — transaction-level failures (reverts)
// belong in the transaction's own ExecutionMessage result, not here.
type ExecuteFunc func(tx Transaction) error

// DAGPlanner implements spec.md §4.6: it builds the dependency graph
// from a block's transactions and their declared criticals, reduces it
// to execution waves, and runs a worker pool per wave.
type DAGPlanner struct {
	workers int
	builder *CriticalsGraphBuilder
	timeout time.Duration
	metrics PlannerMetrics
}

// NewDAGPlanner creates a planner with the given worker count, criticals
// resolver, and optional per-wave wall-clock budget (0 disables the
// timeout warning).
func NewDAGPlanner(workers int, resolve CriticalsResolver, timeout time.Duration) (*DAGPlanner, error) {
	if workers < 1 {
		return nil, ErrWorkerCountInvalid
	}
	return &DAGPlanner{
		workers: workers,
		builder: NewCriticalsGraphBuilder(resolve),
		timeout: timeout,
	}, nil
}

// Workers returns the configured worker count.
func (p *DAGPlanner) Workers() int { return p.workers }

// Metrics returns a reference to the planner's metrics collector.
func (p *DAGPlanner) Metrics() *PlannerMetrics { return &p.metrics }

// Plan builds the dependency graph for txs and reduces it to an ordered
// sequence of execution waves.
func (p *DAGPlanner) Plan(txs []Transaction) ([]Wave, error) {
	if len(txs) == 0 {
		return nil, ErrNoTransactions
	}

	graph := p.builder.BuildDependencyGraph(txs)
	order, err := topoSort(graph)
	if err != nil {
		return nil, err
	}
	waves := buildWaves(order, graph, txs)

	p.metrics.WavesFormed.Add(uint64(len(waves)))
	for _, w := range waves {
		sz := uint64(len(w.Transactions))
		p.metrics.TxsScheduled.Add(sz)
		for {
			cur := p.metrics.MaxWaveSize.Load()
			if sz <= cur {
				break
			}
			if p.metrics.MaxWaveSize.CompareAndSwap(cur, sz) {
				break
			}
		}
	}
	return waves, nil
}

// Run executes every wave in order. Within a wave, transactions run
// concurrently across the planner's worker pool; waves themselves run
// strictly in sequence, since a later wave's transactions may depend on
// an earlier wave's results.
func (p *DAGPlanner) Run(ctx context.Context, waves []Wave, execute ExecuteFunc) error {
	for i, wave := range waves {
		if err := p.runWave(ctx, i, wave, execute); err != nil {
			return err
		}
	}
	return nil
}

// runWave executes one wave's transactions across the worker pool. Per
// spec.md §4.6's closing note, exceeding the configured wall-clock
// budget logs a warning but does not abort execution — the timer is
// purely observational.
func (p *DAGPlanner) runWave(_ context.Context, waveIdx int, wave Wave, execute ExecuteFunc) error {
	if len(wave.Transactions) == 0 {
		return nil
	}

	if p.timeout > 0 {
		timer := time.AfterFunc(p.timeout, func() {
			p.metrics.Timeouts.Add(1)
			log.Warn("bal: wave exceeded wall-clock budget",
				"wave", waveIdx, "size", len(wave.Transactions), "budget", p.timeout)
		})
		defer timer.Stop()
	}

	sem := make(chan struct{}, p.workers)
	var wg sync.WaitGroup
	errs := make([]error, len(wave.Transactions))
	for i, tx := range wave.Transactions {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, t Transaction) {
			defer wg.Done()
			defer func() { <-sem }()
			errs[idx] = execute(t)
		}(i, tx)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// topoSort performs Kahn's algorithm on the dependency graph and returns
// a topologically sorted order. Returns ErrCyclicDependency if the graph
// has a cycle.
func topoSort(graph map[int][]int) ([]int, error) {
	inDegree := make(map[int]int)
	forward := make(map[int][]int)

	for node := range graph {
		if _, ok := inDegree[node]; !ok {
			inDegree[node] = 0
		}
	}
	for node, deps := range graph {
		for _, dep := range deps {
			forward[dep] = append(forward[dep], node)
			inDegree[node]++
			if _, ok := inDegree[dep]; !ok {
				inDegree[dep] = 0
			}
		}
	}

	var queue []int
	for node, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, node)
		}
	}
	sort.Ints(queue)

	var order []int
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		neighbors := forward[node]
		sort.Ints(neighbors)
		for _, next := range neighbors {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
		sort.Ints(queue)
	}

	if len(order) != len(inDegree) {
		return nil, ErrCyclicDependency
	}
	return order, nil
}

// buildWaves partitions a topological order into execution waves: a
// transaction's wave is one past the highest wave of any of its
// dependencies.
func buildWaves(order []int, graph map[int][]int, txs []Transaction) []Wave {
	if len(order) == 0 {
		return nil
	}

	byIndex := make(map[int]Transaction, len(txs))
	for _, tx := range txs {
		byIndex[tx.Index] = tx
	}

	level := make(map[int]int)
	for _, node := range order {
		maxDepLevel := -1
		for _, dep := range graph[node] {
			if l, ok := level[dep]; ok && l > maxDepLevel {
				maxDepLevel = l
			}
		}
		level[node] = maxDepLevel + 1
	}

	maxLevel := 0
	for _, l := range level {
		if l > maxLevel {
			maxLevel = l
		}
	}

	waves := make([]Wave, maxLevel+1)
	for _, node := range order {
		l := level[node]
		waves[l].Transactions = append(waves[l].Transactions, byIndex[node])
	}
	return waves
}
