package census

import (
	"errors"
	"math/big"
	"testing"

	"github.com/aragonzkresearch/rovote/crypto"
	"github.com/aragonzkresearch/rovote/crypto/hash/poseidon"
	"github.com/aragonzkresearch/rovote/types"
	"github.com/aragonzkresearch/rovote/util"
	qt "github.com/frankban/quicktest"
)

func randomKeys(n int) []types.Digest {
	keys := make([]types.Digest, n)
	for i := range keys {
		keys[i] = util.RandomDigest()
	}
	return keys
}

func TestBuildSizes(t *testing.T) {
	c := qt.New(t)
	for _, n := range []int{0, 3, 5, 100, 255} {
		_, err := Build(randomKeys(n))
		c.Assert(errors.Is(err, ErrInvalidCensusSize), qt.IsTrue, qt.Commentf("size %d", n))
	}
	for n, height := range map[int]int{1: 0, 2: 1, 8: 3, 256: 8} {
		tree, err := Build(randomKeys(n))
		c.Assert(err, qt.IsNil)
		c.Assert(tree.Height(), qt.Equals, height)
		c.Assert(tree.Size(), qt.Equals, n)
	}
}

func TestBuildRejectsOutOfField(t *testing.T) {
	c := qt.New(t)
	keys := randomKeys(2)
	keys[1] = types.NewDigest(crypto.Field())
	_, err := Build(keys)
	c.Assert(errors.Is(err, ErrInvalidLeaf), qt.IsTrue)
}

func TestRoot(t *testing.T) {
	c := qt.New(t)
	keys := randomKeys(4)
	tree, err := Build(keys)
	c.Assert(err, qt.IsNil)

	n01, err := poseidon.Compress(keys[0], keys[1])
	c.Assert(err, qt.IsNil)
	n23, err := poseidon.Compress(keys[2], keys[3])
	c.Assert(err, qt.IsNil)
	root, err := poseidon.Compress(n01, n23)
	c.Assert(err, qt.IsNil)
	c.Assert(tree.Root().Equal(root), qt.IsTrue)

	single, err := Build(keys[:1])
	c.Assert(err, qt.IsNil)
	c.Assert(single.Root().Equal(keys[0]), qt.IsTrue)
	path, err := single.PathFor(0)
	c.Assert(err, qt.IsNil)
	c.Assert(path, qt.HasLen, 0)

	// same size, different keys, different root
	other, err := Build(randomKeys(4))
	c.Assert(err, qt.IsNil)
	c.Assert(other.Root().Equal(tree.Root()), qt.IsFalse)
}

func TestPathFor(t *testing.T) {
	c := qt.New(t)
	keys := randomKeys(256)
	tree, err := Build(keys)
	c.Assert(err, qt.IsNil)

	for _, index := range []int{0, 84, 101, 255} {
		path, err := tree.PathFor(index)
		c.Assert(err, qt.IsNil)
		c.Assert(path, qt.HasLen, 8)
		ok, err := VerifyPath(tree.Root(), keys[index], index, path)
		c.Assert(err, qt.IsNil)
		c.Assert(ok, qt.IsTrue, qt.Commentf("index %d", index))

		// a wrong index breaks the recomputation
		ok, err = VerifyPath(tree.Root(), keys[index], index^1, path)
		c.Assert(err, qt.IsNil)
		c.Assert(ok, qt.IsFalse)
	}

	for _, index := range []int{-1, 256, 1000} {
		_, err := tree.PathFor(index)
		c.Assert(errors.Is(err, ErrIndexOutOfRange), qt.IsTrue)
		_, err = tree.Leaf(index)
		c.Assert(errors.Is(err, ErrIndexOutOfRange), qt.IsTrue)
	}
	_, err = VerifyPath(tree.Root(), keys[0], 256, make([]types.Digest, 8))
	c.Assert(errors.Is(err, ErrIndexOutOfRange), qt.IsTrue)
}

func TestIndexOf(t *testing.T) {
	c := qt.New(t)
	keys := randomKeys(8)
	keys[5] = keys[2]
	tree, err := Build(keys)
	c.Assert(err, qt.IsNil)

	i, ok := tree.IndexOf(keys[7])
	c.Assert(ok, qt.IsTrue)
	c.Assert(i, qt.Equals, 7)
	i, ok = tree.IndexOf(keys[5])
	c.Assert(ok, qt.IsTrue)
	c.Assert(i, qt.Equals, 2)
	_, ok = tree.IndexOf(types.NewDigest(big.NewInt(1)))
	c.Assert(ok, qt.IsFalse)

	leaves := tree.Leaves()
	c.Assert(leaves, qt.HasLen, 8)
	leaves[0] = types.Digest{}
	leaf, err := tree.Leaf(0)
	c.Assert(err, qt.IsNil)
	c.Assert(leaf.Equal(keys[0]), qt.IsTrue)
}

func TestIndexBits(t *testing.T) {
	c := qt.New(t)
	c.Assert(IndexBits(84, 8), qt.DeepEquals, []uint{0, 0, 1, 0, 1, 0, 1, 0})
	c.Assert(IndexBits(101, 8), qt.DeepEquals, []uint{1, 0, 1, 0, 0, 1, 1, 0})
	c.Assert(IndexBits(0, 0), qt.HasLen, 0)
}
