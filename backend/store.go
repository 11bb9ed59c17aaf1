// Package backend supplies the durable collaborator core/state.LayerStack
// eventually commits into: a pebble-backed Store satisfying both
// core/state.Backend (read) and core/state.Writer (the flush-time write
// side), plus an in-memory test double with the same shape. pebble is
// promoted here from an indirect go-ethereum dependency (its own default
// key/value engine) to a direct one, per SPEC_FULL.md §9.
package backend

import (
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/meshchain/execcore/core/types"
)

const (
	rowPrefix   = "r:"
	metaPrefix  = "m:"
	keySep      = ":"
)

// Store is a pebble-backed implementation of core/state.Backend and
// core/state.Writer: every row lives under "r:<table>:<key>" and every
// table's declared schema lives under "m:<table>", so PrimaryKeys can
// answer with a single prefix scan in natural (lexicographic) key order
// instead of a secondary index.
type Store struct {
	db *pebble.DB
}

// Open creates or reopens a pebble database rooted at dir.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("backend: open %q: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying pebble database.
func (s *Store) Close() error {
	return s.db.Close()
}

func rowKey(table, key string) []byte {
	return []byte(rowPrefix + table + keySep + key)
}

func metaKey(table string) []byte {
	return []byte(metaPrefix + table)
}

// GetRow implements core/state.Backend.
func (s *Store) GetRow(table, key string) (*types.Entry, bool, error) {
	v, closer, err := s.db.Get(rowKey(table, key))
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("backend: get row %s/%s: %w", table, key, err)
	}
	defer closer.Close()

	entry, err := decodeEntry(v)
	if err != nil {
		return nil, false, err
	}
	return entry, true, nil
}

// GetTableMeta implements core/state.Backend.
func (s *Store) GetTableMeta(table string) (types.TableMeta, bool, error) {
	v, closer, err := s.db.Get(metaKey(table))
	if err == pebble.ErrNotFound {
		return types.TableMeta{}, false, nil
	}
	if err != nil {
		return types.TableMeta{}, false, fmt.Errorf("backend: get table meta %s: %w", table, err)
	}
	defer closer.Close()

	meta, err := decodeTableMeta(table, v)
	if err != nil {
		return types.TableMeta{}, false, err
	}
	return meta, true, nil
}

// PrimaryKeys implements core/state.Backend via a bounded prefix scan
// over this table's row keys; pebble already returns keys in ascending
// byte order, matching the natural key order spec.md's get_primary_keys
// contract requires.
func (s *Store) PrimaryKeys(table string) ([]string, error) {
	prefix := []byte(rowPrefix + table + keySep)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("backend: primary keys %s: %w", table, err)
	}
	defer iter.Close()

	var keys []string
	for iter.First(); iter.Valid(); iter.Next() {
		keys = append(keys, string(iter.Key()[len(prefix):]))
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("backend: primary keys %s: %w", table, err)
	}
	return keys, nil
}

// PutRow implements core/state.Writer.
func (s *Store) PutRow(table, key string, entry *types.Entry) error {
	if err := s.db.Set(rowKey(table, key), encodeEntry(entry), pebble.Sync); err != nil {
		return fmt.Errorf("backend: put row %s/%s: %w", table, key, err)
	}
	return nil
}

// DeleteRow implements core/state.Writer.
func (s *Store) DeleteRow(table, key string) error {
	if err := s.db.Delete(rowKey(table, key), pebble.Sync); err != nil {
		return fmt.Errorf("backend: delete row %s/%s: %w", table, key, err)
	}
	return nil
}

// PutTableMeta implements core/state.Writer.
func (s *Store) PutTableMeta(table string, meta types.TableMeta) error {
	if err := s.db.Set(metaKey(table), encodeTableMeta(meta), pebble.Sync); err != nil {
		return fmt.Errorf("backend: put table meta %s: %w", table, err)
	}
	return nil
}

// keyUpperBound computes the smallest key that is strictly greater than
// every key with prefix b, the standard pebble idiom for bounding a
// prefix scan (increment the last byte that isn't already 0xff).
func keyUpperBound(b []byte) []byte {
	end := make([]byte, len(b))
	copy(end, b)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil // b is all 0xff bytes: no finite upper bound
}
