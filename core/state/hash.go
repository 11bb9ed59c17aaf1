package state

import (
	"github.com/meshchain/execcore/core/types"
	"github.com/meshchain/execcore/crypto"
	"github.com/meshchain/execcore/rlp"
)

// rowRLP is the canonical encoding of one row: [key, [field1, field2, ...], [value1, value2, ...]]
// with fields in declaration order, matching Entry's iteration order.
type rowRLP struct {
	Key    string
	Fields []string
	Values []string
}

func encodeRow(key string, entry *types.Entry) ([]byte, error) {
	fields := entry.Fields()
	values := make([]string, len(fields))
	for i, f := range fields {
		v, _ := entry.Get(f)
		values[i] = v
	}
	return rlp.EncodeToBytes(rowRLP{Key: key, Fields: fields, Values: values})
}

// TableHash computes a deterministic digest of a table's current merged
// contents (across the full layer chain), used to assemble a state root.
func (l *StorageLayer) TableHash(table string) (types.Hash, error) {
	keys, err := l.GetPrimaryKeys(table, nil)
	if err != nil {
		return types.Hash{}, err
	}
	var payload []byte
	for _, k := range keys {
		entry, exists, err := l.GetRow(table, k)
		if err != nil {
			return types.Hash{}, err
		}
		if !exists {
			continue
		}
		enc, err := encodeRow(k, entry)
		if err != nil {
			return types.Hash{}, err
		}
		payload = append(payload, enc...)
	}
	return crypto.Keccak256Hash(payload), nil
}

// TableHashEntry pairs a table name with its current digest.
type TableHashEntry struct {
	Name string
	Hash types.Hash
}

// TableHashes returns, for each table touched at or below this layer, a
// digest of its current merged contents.
func (l *StorageLayer) TableHashes() ([]TableHashEntry, error) {
	names := make(map[string]struct{})
	for layer := l; layer != nil; layer = layer.parent {
		for _, n := range layer.touchedTables() {
			names[n] = struct{}{}
		}
	}

	unsorted := make([]string, 0, len(names))
	for n := range names {
		unsorted = append(unsorted, n)
	}
	sortedNames := types.SortedKeys(unsorted)

	out := make([]TableHashEntry, 0, len(sortedNames))
	for _, n := range sortedNames {
		h, err := l.TableHash(n)
		if err != nil {
			return nil, err
		}
		out = append(out, TableHashEntry{Name: n, Hash: h})
	}
	return out, nil
}

// Hash is a deterministic digest over the top layer's table hashes,
// serving as this layer's state root.
func (l *StorageLayer) Hash() (types.Hash, error) {
	entries, err := l.TableHashes()
	if err != nil {
		return types.Hash{}, err
	}
	var payload []byte
	for _, e := range entries {
		payload = append(payload, []byte(e.Name)...)
		payload = append(payload, e.Hash.Bytes()...)
	}
	return crypto.Keccak256Hash(payload), nil
}
