// Package db defines the key-value database abstraction used by the census
// and proof storage. Backends live in the subpackages.
package db

import "errors"

const (
	// TypePebble selects the pebble backend.
	TypePebble = "pebble"
	// TypeInMem selects the ephemeral in-memory backend.
	TypeInMem = "inmem"
)

// ErrKeyNotFound is returned by Get when the key does not exist.
var ErrKeyNotFound = errors.New("key not found")

// ErrTxClosed is returned when using a transaction that was already
// committed or discarded.
var ErrTxClosed = errors.New("transaction already committed or discarded")

// Options configure a database backend.
type Options struct {
	Path string
}

// Reader is the read side of both databases and transactions.
type Reader interface {
	// Get returns the value stored under key or ErrKeyNotFound.
	Get(key []byte) ([]byte, error)
	// Iterate calls callback for every key with the given prefix, in
	// lexicographic order, until callback returns false. The prefix is
	// stripped from the keys passed to the callback.
	Iterate(prefix []byte, callback func(key, value []byte) bool) error
}

// WriteTx buffers writes that become visible atomically on Commit. Reads
// through a WriteTx observe its own pending writes.
type WriteTx interface {
	Reader
	Set(key, value []byte) error
	Delete(key []byte) error
	// Apply copies every pending write of other into this transaction.
	Apply(other WriteTx) error
	Commit() error
	// Discard drops the pending writes. Calling it after Commit is a no-op.
	Discard()
}

// Database is a key-value store.
type Database interface {
	Reader
	WriteTx() WriteTx
	Compact() error
	Close() error
}

// Unwrapper is implemented by transactions that decorate another one, such
// as the prefixed transactions.
type Unwrapper interface {
	Unwrap() WriteTx
}

// UnwrapWriteTx returns the innermost transaction of a decorated one.
func UnwrapWriteTx(tx WriteTx) WriteTx {
	for {
		u, ok := tx.(Unwrapper)
		if !ok {
			return tx
		}
		tx = u.Unwrap()
	}
}
