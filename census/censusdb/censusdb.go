// Package censusdb persists census trees by root. Only the ordered list of
// public keys is stored; trees are rebuilt when loaded and the most recently
// used ones are kept in memory.
package censusdb

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aragonzkresearch/rovote/census"
	"github.com/aragonzkresearch/rovote/db"
	"github.com/aragonzkresearch/rovote/db/prefixeddb"
	"github.com/aragonzkresearch/rovote/log"
	"github.com/aragonzkresearch/rovote/types"
	"github.com/fxamacker/cbor/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of census trees kept in memory.
const DefaultCacheSize = 32

var (
	// ErrCensusNotFound is returned when a census is not found in the database.
	ErrCensusNotFound = fmt.Errorf("census not found in the local database")
	// ErrCensusAlreadyExists is returned by Import if a census with the same
	// root is already stored.
	ErrCensusAlreadyExists = fmt.Errorf("census already exists in the local database")
)

// censusDBRootPrefix prefixes the records of the censuses, keyed by root.
var censusDBRootPrefix = []byte("cr_")

// censusRecord is the stored representation of a census.
type censusRecord struct {
	PublicKeys [][]byte  `cbor:"publicKeys"`
	CreatedAt  time.Time `cbor:"createdAt"`
}

// CensusDB is a safe and persistent database of census trees.
type CensusDB struct {
	mu     sync.Mutex
	db     db.Database
	loaded *lru.Cache[string, *census.Tree]
}

// NewCensusDB creates a new CensusDB over the database.
func NewCensusDB(database db.Database) (*CensusDB, error) {
	loaded, err := lru.New[string, *census.Tree](DefaultCacheSize)
	if err != nil {
		return nil, err
	}
	return &CensusDB{
		db:     prefixeddb.NewPrefixedDatabase(database, censusDBRootPrefix),
		loaded: loaded,
	}, nil
}

// Import builds the census of the public keys and stores it under its root.
// It returns ErrCensusAlreadyExists, along with the tree, if the same census
// was already imported.
func (c *CensusDB) Import(publicKeys []types.Digest) (*census.Tree, error) {
	tree, err := census.Build(publicKeys)
	if err != nil {
		return nil, err
	}
	key := tree.Root().Bytes()

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.db.Get(key); err == nil {
		return tree, ErrCensusAlreadyExists
	} else if !errors.Is(err, db.ErrKeyNotFound) {
		return nil, err
	}

	record := censusRecord{CreatedAt: time.Now()}
	for _, pk := range publicKeys {
		record.PublicKeys = append(record.PublicKeys, pk.Bytes())
	}
	encoded, err := cbor.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encode census: %w", err)
	}
	wTx := c.db.WriteTx()
	defer wTx.Discard()
	if err := wTx.Set(key, encoded); err != nil {
		return nil, err
	}
	if err := wTx.Commit(); err != nil {
		return nil, err
	}
	c.loaded.Add(string(key), tree)
	log.Debugw("census imported", "root", tree.Root().Hex(), "size", tree.Size())
	return tree, nil
}

// Load returns the census tree with the given root.
func (c *CensusDB) Load(root types.Digest) (*census.Tree, error) {
	key := root.Bytes()
	if tree, ok := c.loaded.Get(string(key)); ok {
		return tree, nil
	}
	encoded, err := c.db.Get(key)
	if errors.Is(err, db.ErrKeyNotFound) {
		return nil, ErrCensusNotFound
	}
	if err != nil {
		return nil, err
	}
	var record censusRecord
	if err := cbor.Unmarshal(encoded, &record); err != nil {
		return nil, fmt.Errorf("decode census: %w", err)
	}
	publicKeys := make([]types.Digest, len(record.PublicKeys))
	for i, b := range record.PublicKeys {
		if publicKeys[i], err = types.DigestFromBytes(b); err != nil {
			return nil, fmt.Errorf("decode census key %d: %w", i, err)
		}
	}
	tree, err := census.Build(publicKeys)
	if err != nil {
		return nil, err
	}
	if !tree.Root().Equal(root) {
		return nil, fmt.Errorf("stored census root mismatch: %s", tree.Root().Hex())
	}
	c.loaded.Add(string(key), tree)
	return tree, nil
}

// Exists reports whether a census with the given root is stored.
func (c *CensusDB) Exists(root types.Digest) bool {
	if c.loaded.Contains(string(root.Bytes())) {
		return true
	}
	_, err := c.db.Get(root.Bytes())
	return err == nil
}

// List returns the roots of every stored census.
func (c *CensusDB) List() ([]types.Digest, error) {
	roots := []types.Digest{}
	var derr error
	if err := c.db.Iterate(nil, func(key, _ []byte) bool {
		root, err := types.DigestFromBytes(key)
		if err != nil {
			derr = err
			return false
		}
		roots = append(roots, root)
		return true
	}); err != nil {
		return nil, err
	}
	return roots, derr
}

// Delete removes the census with the given root.
func (c *CensusDB) Delete(root types.Digest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := root.Bytes()
	if _, err := c.db.Get(key); errors.Is(err, db.ErrKeyNotFound) {
		return ErrCensusNotFound
	}
	wTx := c.db.WriteTx()
	defer wTx.Discard()
	if err := wTx.Delete(key); err != nil {
		return err
	}
	if err := wTx.Commit(); err != nil {
		return err
	}
	c.loaded.Remove(string(key))
	return nil
}
