package backend

import (
	"sort"
	"sync"

	"github.com/meshchain/execcore/core/types"
)

// MemoryStore is an in-memory double for Store, implementing the same
// core/state.Backend/core/state.Writer pair so tests exercising
// LayerStack/StorageLayer.Flush don't need a real pebble database on
// disk.
type MemoryStore struct {
	mu    sync.RWMutex
	rows  map[string]map[string]*types.Entry
	metas map[string]types.TableMeta
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows:  make(map[string]map[string]*types.Entry),
		metas: make(map[string]types.TableMeta),
	}
}

func (m *MemoryStore) GetRow(table, key string) (*types.Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.rows[table][key]
	if !ok {
		return nil, false, nil
	}
	return e.Clone(), true, nil
}

func (m *MemoryStore) GetTableMeta(table string) (types.TableMeta, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	meta, ok := m.metas[table]
	return meta, ok, nil
}

func (m *MemoryStore) PrimaryKeys(table string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.rows[table]))
	for k := range m.rows[table] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryStore) PutRow(table, key string, entry *types.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows[table] == nil {
		m.rows[table] = make(map[string]*types.Entry)
	}
	m.rows[table][key] = entry.Clone()
	return nil
}

func (m *MemoryStore) DeleteRow(table, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows[table], key)
	return nil
}

func (m *MemoryStore) PutTableMeta(table string, meta types.TableMeta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metas[table] = meta
	return nil
}
