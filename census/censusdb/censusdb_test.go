package censusdb

import (
	"testing"

	"github.com/aragonzkresearch/rovote/db/metadb"
	"github.com/aragonzkresearch/rovote/types"
	qt "github.com/frankban/quicktest"
)

func publicKeys(n int) []types.Digest {
	keys := make([]types.Digest, n)
	for i := range keys {
		keys[i] = types.DigestFromUint64s(uint64(i), uint64(i+1), uint64(i+2), uint64(i+3))
	}
	return keys
}

func TestImportAndLoad(t *testing.T) {
	c := qt.New(t)
	database := metadb.NewTest(t)
	cdb, err := NewCensusDB(database)
	c.Assert(err, qt.IsNil)

	tree, err := cdb.Import(publicKeys(8))
	c.Assert(err, qt.IsNil)
	c.Assert(cdb.Exists(tree.Root()), qt.IsTrue)

	again, err := cdb.Import(publicKeys(8))
	c.Assert(err, qt.ErrorIs, ErrCensusAlreadyExists)
	c.Assert(again.Root().Equal(tree.Root()), qt.IsTrue)

	// a fresh instance has an empty cache, so the tree is rebuilt
	reopened, err := NewCensusDB(database)
	c.Assert(err, qt.IsNil)
	loaded, err := reopened.Load(tree.Root())
	c.Assert(err, qt.IsNil)
	c.Assert(loaded.Root().Equal(tree.Root()), qt.IsTrue)
	c.Assert(loaded.Size(), qt.Equals, 8)
	leaf, err := loaded.Leaf(5)
	c.Assert(err, qt.IsNil)
	c.Assert(leaf.Equal(publicKeys(8)[5]), qt.IsTrue)

	_, err = reopened.Load(types.DigestFromUint64s(9))
	c.Assert(err, qt.ErrorIs, ErrCensusNotFound)
	c.Assert(reopened.Exists(types.DigestFromUint64s(9)), qt.IsFalse)
}

func TestListAndDelete(t *testing.T) {
	c := qt.New(t)
	cdb, err := NewCensusDB(metadb.NewTest(t))
	c.Assert(err, qt.IsNil)

	small, err := cdb.Import(publicKeys(2))
	c.Assert(err, qt.IsNil)
	big, err := cdb.Import(publicKeys(16))
	c.Assert(err, qt.IsNil)

	roots, err := cdb.List()
	c.Assert(err, qt.IsNil)
	c.Assert(roots, qt.HasLen, 2)

	c.Assert(cdb.Delete(small.Root()), qt.IsNil)
	c.Assert(cdb.Delete(small.Root()), qt.ErrorIs, ErrCensusNotFound)
	_, err = cdb.Load(small.Root())
	c.Assert(err, qt.ErrorIs, ErrCensusNotFound)

	roots, err = cdb.List()
	c.Assert(err, qt.IsNil)
	c.Assert(roots, qt.HasLen, 1)
	c.Assert(roots[0].Equal(big.Root()), qt.IsTrue)
}

func TestImportInvalidSize(t *testing.T) {
	c := qt.New(t)
	cdb, err := NewCensusDB(metadb.NewTest(t))
	c.Assert(err, qt.IsNil)
	_, err = cdb.Import(publicKeys(3))
	c.Assert(err, qt.IsNotNil)
}
