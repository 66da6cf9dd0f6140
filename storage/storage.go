/*
Package storage provides the persistent storage layer of the rovote node.

# Storage Organization

The storage uses a key-value database with prefixed namespaces:

  - p/  : chainID + processID + nullifier → membership proof package
  - ag/ : aggregation ID → aggregation proof with its nullifiers and context

Census trees are stored apart, see the censusdb package.
*/
package storage

import (
	"encoding/binary"
	"errors"
	"sync"

	"github.com/aragonzkresearch/rovote/db"
	"github.com/aragonzkresearch/rovote/db/prefixeddb"
	"github.com/aragonzkresearch/rovote/log"
	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	ErrKeyAlreadyExists = errors.New("key already exists")
	ErrNotFound         = errors.New("not found")

	// Prefixes
	proofPrefix     = []byte("p/")
	aggregatePrefix = []byte("ag/")
)

// defaultCacheSize is the number of decoded artifacts kept in memory.
const defaultCacheSize = 1000

// Storage manages the proofs and aggregations of the node.
type Storage struct {
	db         db.Database
	globalLock sync.Mutex
	cache      *lru.Cache[string, any]
}

// New creates a new Storage instance.
func New(database db.Database) *Storage {
	cache, err := lru.New[string, any](defaultCacheSize)
	if err != nil {
		log.Fatalf("failed to create LRU cache: %v", err)
	}
	return &Storage{db: database, cache: cache}
}

// DB returns the underlying database, so other components can store their
// data under their own prefix.
func (s *Storage) DB() db.Database {
	return s.db
}

// Close closes the storage.
func (s *Storage) Close() {
	if err := s.db.Close(); err != nil {
		log.Warnw("failed to close storage", "error", err.Error())
	}
}

// processKey encodes the election identifiers as a fixed size key.
func processKey(chainID, processID uint64) []byte {
	key := make([]byte, 16)
	binary.BigEndian.PutUint64(key[:8], chainID)
	binary.BigEndian.PutUint64(key[8:], processID)
	return key
}

// setArtifact stores the encoded artifact under key in the prefixed
// namespace, failing with ErrKeyAlreadyExists if the key is taken. The
// artifact must be a pointer, which is also what getArtifact caches.
func (s *Storage) setArtifact(prefix, key []byte, artifact any) error {
	data, err := EncodeArtifact(artifact)
	if err != nil {
		return err
	}
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	pdb := prefixeddb.NewPrefixedDatabase(s.db, prefix)
	if _, err := pdb.Get(key); err == nil {
		return ErrKeyAlreadyExists
	} else if !errors.Is(err, db.ErrKeyNotFound) {
		return err
	}
	wTx := pdb.WriteTx()
	defer wTx.Discard()
	if err := wTx.Set(key, data); err != nil {
		return err
	}
	if err := wTx.Commit(); err != nil {
		return err
	}
	s.cache.Add(string(prefix)+string(key), artifact)
	return nil
}

// getArtifact decodes the artifact stored under key into out, which must be
// a pointer. Cached artifacts are copied into out.
func getArtifact[T any](s *Storage, prefix, key []byte, out *T) error {
	if cached, ok := s.cache.Get(string(prefix) + string(key)); ok {
		if v, ok := cached.(*T); ok {
			*out = *v
			return nil
		}
	}
	data, err := prefixeddb.NewPrefixedDatabase(s.db, prefix).Get(key)
	if errors.Is(err, db.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if err := DecodeArtifact(data, out); err != nil {
		return err
	}
	s.cache.Add(string(prefix)+string(key), out)
	return nil
}

// deleteArtifact removes the artifact stored under key.
func (s *Storage) deleteArtifact(prefix, key []byte) error {
	wTx := prefixeddb.NewPrefixedDatabase(s.db, prefix).WriteTx()
	defer wTx.Discard()
	if err := wTx.Delete(key); err != nil {
		return err
	}
	if err := wTx.Commit(); err != nil {
		return err
	}
	s.cache.Remove(string(prefix) + string(key))
	return nil
}
