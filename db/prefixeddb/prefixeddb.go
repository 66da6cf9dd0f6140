// Package prefixeddb namespaces a db.Database by prepending a fixed prefix
// to every key.
package prefixeddb

import (
	"slices"

	"github.com/aragonzkresearch/rovote/db"
)

func prefixed(prefix, key []byte) []byte {
	return slices.Concat(prefix, key)
}

// PrefixedDatabase wraps a db.Database adding a prefix to every key.
type PrefixedDatabase struct {
	db     db.Database
	prefix []byte
}

var _ db.Database = (*PrefixedDatabase)(nil)

// NewPrefixedDatabase returns a view of database restricted to prefix.
func NewPrefixedDatabase(database db.Database, prefix []byte) *PrefixedDatabase {
	return &PrefixedDatabase{db: database, prefix: slices.Clone(prefix)}
}

func (d *PrefixedDatabase) Get(key []byte) ([]byte, error) {
	return d.db.Get(prefixed(d.prefix, key))
}

func (d *PrefixedDatabase) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	return d.db.Iterate(prefixed(d.prefix, prefix), callback)
}

func (d *PrefixedDatabase) WriteTx() db.WriteTx {
	return NewPrefixedWriteTx(d.db.WriteTx(), d.prefix)
}

// Compact and Close act on the whole underlying database.
func (d *PrefixedDatabase) Compact() error { return d.db.Compact() }
func (d *PrefixedDatabase) Close() error   { return d.db.Close() }

// PrefixedWriteTx wraps a db.WriteTx adding a prefix to every key.
type PrefixedWriteTx struct {
	tx     db.WriteTx
	prefix []byte
}

var (
	_ db.WriteTx   = (*PrefixedWriteTx)(nil)
	_ db.Unwrapper = (*PrefixedWriteTx)(nil)
)

// NewPrefixedWriteTx returns a view of tx restricted to prefix.
func NewPrefixedWriteTx(tx db.WriteTx, prefix []byte) *PrefixedWriteTx {
	return &PrefixedWriteTx{tx: tx, prefix: slices.Clone(prefix)}
}

func (t *PrefixedWriteTx) Get(key []byte) ([]byte, error) {
	return t.tx.Get(prefixed(t.prefix, key))
}

func (t *PrefixedWriteTx) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	return t.tx.Iterate(prefixed(t.prefix, prefix), callback)
}

func (t *PrefixedWriteTx) Set(key, value []byte) error {
	return t.tx.Set(prefixed(t.prefix, key), value)
}

func (t *PrefixedWriteTx) Delete(key []byte) error {
	return t.tx.Delete(prefixed(t.prefix, key))
}

// Apply copies the pending writes of other, whose keys already carry their
// own prefix.
func (t *PrefixedWriteTx) Apply(other db.WriteTx) error {
	return t.tx.Apply(other)
}

func (t *PrefixedWriteTx) Commit() error { return t.tx.Commit() }
func (t *PrefixedWriteTx) Discard()      { t.tx.Discard() }

// Unwrap returns the underlying transaction.
func (t *PrefixedWriteTx) Unwrap() db.WriteTx { return t.tx }
