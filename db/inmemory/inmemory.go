// Package inmemory implements an ephemeral db.Database, used by tests and by
// nodes that do not need to persist anything.
package inmemory

import (
	"bytes"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/aragonzkresearch/rovote/db"
)

// InMemoryDB keeps every key in a map guarded by a mutex.
type InMemoryDB struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var _ db.Database = (*InMemoryDB)(nil)

// New returns a new in-memory database. Options are ignored.
func New(_ db.Options) (*InMemoryDB, error) {
	return &InMemoryDB{data: make(map[string][]byte)}, nil
}

func (d *InMemoryDB) Close() error   { return nil }
func (d *InMemoryDB) Compact() error { return nil }

func (d *InMemoryDB) Get(key []byte) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.data[string(key)]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return bytes.Clone(v), nil
}

func (d *InMemoryDB) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	d.mu.RLock()
	snapshot := make(map[string][]byte)
	for k, v := range d.data {
		if strings.HasPrefix(k, string(prefix)) {
			snapshot[k] = bytes.Clone(v)
		}
	}
	d.mu.RUnlock()
	iterateSorted(snapshot, prefix, callback)
	return nil
}

func (d *InMemoryDB) WriteTx() db.WriteTx {
	return &writeTx{db: d, pending: make(map[string][]byte)}
}

// writeTx stores pending writes, a nil value marks a deletion.
type writeTx struct {
	db      *InMemoryDB
	pending map[string][]byte
	closed  bool
}

func (tx *writeTx) Get(key []byte) ([]byte, error) {
	if v, ok := tx.pending[string(key)]; ok {
		if v == nil {
			return nil, db.ErrKeyNotFound
		}
		return bytes.Clone(v), nil
	}
	return tx.db.Get(key)
}

func (tx *writeTx) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	tx.db.mu.RLock()
	merged := make(map[string][]byte)
	for k, v := range tx.db.data {
		if strings.HasPrefix(k, string(prefix)) {
			merged[k] = bytes.Clone(v)
		}
	}
	tx.db.mu.RUnlock()
	for k, v := range tx.pending {
		if !strings.HasPrefix(k, string(prefix)) {
			continue
		}
		if v == nil {
			delete(merged, k)
			continue
		}
		merged[k] = bytes.Clone(v)
	}
	iterateSorted(merged, prefix, callback)
	return nil
}

func (tx *writeTx) Set(key, value []byte) error {
	if tx.closed {
		return db.ErrTxClosed
	}
	if value == nil {
		value = []byte{}
	}
	tx.pending[string(key)] = bytes.Clone(value)
	return nil
}

func (tx *writeTx) Delete(key []byte) error {
	if tx.closed {
		return db.ErrTxClosed
	}
	tx.pending[string(key)] = nil
	return nil
}

func (tx *writeTx) Apply(other db.WriteTx) error {
	o, ok := db.UnwrapWriteTx(other).(*writeTx)
	if !ok {
		// foreign transactions only expose their merged view
		var err error
		iterErr := other.Iterate(nil, func(k, v []byte) bool {
			err = tx.Set(k, v)
			return err == nil
		})
		if iterErr != nil {
			return iterErr
		}
		return err
	}
	for k, v := range o.pending {
		if v == nil {
			if err := tx.Delete([]byte(k)); err != nil {
				return err
			}
			continue
		}
		if err := tx.Set([]byte(k), v); err != nil {
			return err
		}
	}
	return nil
}

func (tx *writeTx) Commit() error {
	if tx.closed {
		return db.ErrTxClosed
	}
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()
	for k, v := range tx.pending {
		if v == nil {
			delete(tx.db.data, k)
			continue
		}
		tx.db.data[k] = v
	}
	tx.closed = true
	return nil
}

func (tx *writeTx) Discard() {
	tx.pending = map[string][]byte{}
	tx.closed = true
}

func iterateSorted(entries map[string][]byte, prefix []byte, callback func(key, value []byte) bool) {
	for _, k := range slices.Sorted(maps.Keys(entries)) {
		if !callback([]byte(k)[len(prefix):], entries[k]) {
			return
		}
	}
}
