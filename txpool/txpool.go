// Package txpool is the executor façade's Scheduler collaborator
// (core/types.TransactionInput's InputTxHash doc comment): it holds
// submitted transactions by sender/nonce and resolves a bare hash into
// the decoded call fields executeTransaction needs before dispatch.
//
// Adapted from the teacher's pkg/txpool: the same lookup-by-hash plus
// per-sender nonce-ordered pending/queue split, generalized from
// go-ethereum-shaped *types.Transaction (With RLP signing, gas price
// auctions, account balance checks) down to this core's CallParameters
// fields — there is no native value transfer or gas market here (see
// vmbackend's no-value-transfer design note), so balance/price
// validation is dropped; intrinsic gas and nonce sequencing survive.
package txpool

import (
	"errors"
	"math/big"
	"sort"
	"sync"

	"github.com/meshchain/execcore/core/types"
)

// Pool errors.
var (
	ErrAlreadyKnown      = errors.New("txpool: already known")
	ErrNonceTooLow       = errors.New("txpool: nonce too low")
	ErrGasLimit          = errors.New("txpool: exceeds block gas limit")
	ErrIntrinsicGas      = errors.New("txpool: intrinsic gas too low")
	ErrTxPoolFull        = errors.New("txpool: transaction pool is full")
	ErrOversizedData     = errors.New("txpool: oversized data")
	ErrUnderpriced       = errors.New("txpool: transaction underpriced")
	ErrUnknownTransaction = errors.New("txpool: unknown transaction hash")
)

const maxTxDataSize = 128 * 1024

// Config holds Pool configuration.
type Config struct {
	MaxSize       int      // maximum number of transactions in the pool
	MinGasPrice   *big.Int // minimum gas price to accept, nil disables the check
	BlockGasLimit uint64   // current block's gas ceiling
}

// DefaultConfig returns sensible defaults for the pool.
func DefaultConfig() Config {
	return Config{
		MaxSize:       4096,
		MinGasPrice:   big.NewInt(1),
		BlockGasLimit: 30_000_000,
	}
}

// StateReader supplies the sender's current nonce, so the pool can
// decide whether an incoming transaction is immediately processable or
// must queue behind an earlier one. A core/vm.HostContext satisfies
// this directly — its Nonce method has the identical signature.
type StateReader interface {
	Nonce(addr types.Address) (uint64, error)
}

// Transaction is the pool's record of one submitted call: the fields
// core/types.TransactionInput needs to drive execution, plus the
// sequencing fields (nonce, gas price) the pool itself orders by.
type Transaction struct {
	Hash       types.Hash
	From       types.Address
	To         types.Address // zero value means contract creation
	Input      []byte
	Gas        uint64
	GasPrice   *big.Int
	Nonce      uint64
	Origin     types.Address
	CreateSalt *types.Hash
	StaticCall bool
}

// toInput builds the TransactionInput executeTransaction dispatches,
// per the InputInline contract (already-decoded fields, no further
// resolution needed).
func (tx *Transaction) toInput() *types.TransactionInput {
	return &types.TransactionInput{
		Kind:       types.InputInline,
		From:       tx.From,
		To:         tx.To,
		Input:      tx.Input,
		Gas:        tx.Gas,
		Origin:     tx.Origin,
		CreateSalt: tx.CreateSalt,
		StaticCall: tx.StaticCall,
	}
}

// sortedList maintains one sender's transactions ordered by nonce.
type sortedList struct {
	items []*Transaction
}

func (l *sortedList) add(tx *Transaction) {
	idx := sort.Search(len(l.items), func(i int) bool {
		return l.items[i].Nonce >= tx.Nonce
	})
	if idx < len(l.items) && l.items[idx].Nonce == tx.Nonce {
		l.items[idx] = tx
		return
	}
	l.items = append(l.items, nil)
	copy(l.items[idx+1:], l.items[idx:])
	l.items[idx] = tx
}

func (l *sortedList) remove(nonce uint64) bool {
	for i, tx := range l.items {
		if tx.Nonce == nonce {
			l.items = append(l.items[:i], l.items[i+1:]...)
			return true
		}
	}
	return false
}

func (l *sortedList) len() int { return len(l.items) }

// ready returns the prefix of items whose nonces run sequentially from
// baseNonce.
func (l *sortedList) ready(baseNonce uint64) []*Transaction {
	var out []*Transaction
	expected := baseNonce
	for _, tx := range l.items {
		if tx.Nonce != expected {
			break
		}
		out = append(out, tx)
		expected++
	}
	return out
}

// Pool is a minimal transaction pool: a hash-keyed lookup table plus a
// per-sender pending/queue split, used purely to resolve InputTxHash
// requests — it has no block-building or gossip responsibilities here.
type Pool struct {
	config Config
	state  StateReader

	mu      sync.RWMutex
	pending map[types.Address]*sortedList
	queue   map[types.Address]*sortedList
	lookup  map[types.Hash]*Transaction
}

// New creates an empty Pool backed by the given StateReader.
func New(config Config, state StateReader) *Pool {
	return &Pool{
		config:  config,
		state:   state,
		pending: make(map[types.Address]*sortedList),
		queue:   make(map[types.Address]*sortedList),
		lookup:  make(map[types.Hash]*Transaction),
	}
}

// Add validates and inserts tx, promoting it straight to pending if its
// nonce matches the sender's current state nonce, or queueing it
// otherwise.
func (p *Pool) Add(tx *Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, known := p.lookup[tx.Hash]; known {
		return ErrAlreadyKnown
	}
	if len(p.lookup) >= p.config.MaxSize {
		return ErrTxPoolFull
	}
	if err := p.validate(tx); err != nil {
		return err
	}

	stateNonce, err := p.state.Nonce(tx.From)
	if err != nil {
		return err
	}
	if tx.Nonce < stateNonce {
		return ErrNonceTooLow
	}

	p.lookup[tx.Hash] = tx
	if tx.Nonce == stateNonce {
		p.addPending(tx)
	} else {
		p.addQueue(tx)
	}
	p.promote(tx.From)
	return nil
}

func (p *Pool) validate(tx *Transaction) error {
	if tx.Gas > p.config.BlockGasLimit {
		return ErrGasLimit
	}
	if tx.Gas < IntrinsicGas(tx.Input, tx.To.IsZero()) {
		return ErrIntrinsicGas
	}
	if p.config.MinGasPrice != nil && tx.GasPrice != nil && tx.GasPrice.Cmp(p.config.MinGasPrice) < 0 {
		return ErrUnderpriced
	}
	if len(tx.Input) > maxTxDataSize {
		return ErrOversizedData
	}
	return nil
}

func (p *Pool) addPending(tx *Transaction) {
	list, ok := p.pending[tx.From]
	if !ok {
		list = &sortedList{}
		p.pending[tx.From] = list
	}
	list.add(tx)
}

func (p *Pool) addQueue(tx *Transaction) {
	list, ok := p.queue[tx.From]
	if !ok {
		list = &sortedList{}
		p.queue[tx.From] = list
	}
	list.add(tx)
}

// promote moves queued transactions that have become sequential with
// the sender's pending list (or current state nonce) into pending.
func (p *Pool) promote(from types.Address) {
	queued, ok := p.queue[from]
	if !ok || queued.len() == 0 {
		return
	}

	var next uint64
	if pending, ok := p.pending[from]; ok && pending.len() > 0 {
		next = pending.items[pending.len()-1].Nonce + 1
	} else {
		n, err := p.state.Nonce(from)
		if err != nil {
			return
		}
		next = n
	}

	for _, tx := range queued.ready(next) {
		p.addPending(tx)
		queued.remove(tx.Nonce)
	}
	if queued.len() == 0 {
		delete(p.queue, from)
	}
}

// Resolve implements executor.Scheduler: it looks a hash up in the pool
// and, if found, returns the TransactionInput executeTransaction needs.
func (p *Pool) Resolve(hash types.Hash) (*types.TransactionInput, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	tx, ok := p.lookup[hash]
	if !ok {
		return nil, false
	}
	return tx.toInput(), true
}

// Remove drops tx from the pool, e.g. once its block has committed.
func (p *Pool) Remove(hash types.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tx, ok := p.lookup[hash]
	if !ok {
		return
	}
	delete(p.lookup, hash)

	if list, ok := p.pending[tx.From]; ok {
		list.remove(tx.Nonce)
		if list.len() == 0 {
			delete(p.pending, tx.From)
		}
	}
	if list, ok := p.queue[tx.From]; ok {
		list.remove(tx.Nonce)
		if list.len() == 0 {
			delete(p.queue, tx.From)
		}
	}
}

// Pending returns every processable transaction, grouped by sender and
// ordered by nonce.
func (p *Pool) Pending() map[types.Address][]*Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(map[types.Address][]*Transaction, len(p.pending))
	for addr, list := range p.pending {
		txs := make([]*Transaction, list.len())
		copy(txs, list.items)
		out[addr] = txs
	}
	return out
}

// Count returns the total number of transactions held by the pool.
func (p *Pool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.lookup)
}

// Reset drops every pending transaction whose nonce now trails the
// state, then re-promotes whatever became sequential as a result.
// The executor façade does not call it on commit.
func (p *Pool) Reset(state StateReader) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state = state
	for addr, list := range p.pending {
		stateNonce, err := state.Nonce(addr)
		if err != nil {
			continue
		}
		var stale []uint64
		for _, tx := range list.items {
			if tx.Nonce < stateNonce {
				stale = append(stale, tx.Nonce)
				delete(p.lookup, tx.Hash)
			}
		}
		for _, n := range stale {
			list.remove(n)
		}
		if list.len() == 0 {
			delete(p.pending, addr)
		}
	}
	for addr := range p.queue {
		p.promote(addr)
	}
}

// IntrinsicGas computes the minimum gas a transaction must supply before
// its call data is even run, mirroring the Ethereum-style base cost
// spec.md's ScheduleConstants also prices (core/vm.DefaultSchedule).
func IntrinsicGas(data []byte, isCreate bool) uint64 {
	gas := uint64(21000)
	if isCreate {
		gas = 53000
	}
	var nonZero uint64
	for _, b := range data {
		if b != 0 {
			nonZero++
		}
	}
	zero := uint64(len(data)) - nonZero
	gas += nonZero*16 + zero*4
	return gas
}
