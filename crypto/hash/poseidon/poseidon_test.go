package poseidon

import (
	"math/big"
	"testing"

	"github.com/aragonzkresearch/rovote/types"
	qt "github.com/frankban/quicktest"
)

func bigs(vals ...int64) []*big.Int {
	out := make([]*big.Int, len(vals))
	for i, v := range vals {
		out[i] = big.NewInt(v)
	}
	return out
}

func TestDigestHash(t *testing.T) {
	c := qt.New(t)
	d, err := DigestHash(bigs(1, 2)...)
	c.Assert(err, qt.IsNil)
	// first lane is the plain Poseidon hash
	c.Assert(d[0].String(), qt.Equals, "7853200120776062878684798364095072458815029376092732009249414926327459813530")
	for i := range d {
		for j := i + 1; j < len(d); j++ {
			c.Assert(d[i].Equal(d[j]), qt.IsFalse, qt.Commentf("lanes %d and %d", i, j))
		}
	}

	again, err := DigestHash(bigs(1, 2)...)
	c.Assert(err, qt.IsNil)
	c.Assert(again.Equal(d), qt.IsTrue)

	other, err := DigestHash(bigs(2, 1)...)
	c.Assert(err, qt.IsNil)
	c.Assert(other.Equal(d), qt.IsFalse)

	_, err = DigestHash()
	c.Assert(err, qt.ErrorMatches, ".*no inputs provided")
}

func TestMultiPoseidonChunks(t *testing.T) {
	c := qt.New(t)
	inputs := make([]*big.Int, 40)
	for i := range inputs {
		inputs[i] = big.NewInt(int64(i + 1))
	}
	h, err := MultiPoseidon(inputs...)
	c.Assert(err, qt.IsNil)

	h1, err := MultiPoseidon(inputs[:16]...)
	c.Assert(err, qt.IsNil)
	h2, err := MultiPoseidon(inputs[16:32]...)
	c.Assert(err, qt.IsNil)
	h3, err := MultiPoseidon(inputs[32:]...)
	c.Assert(err, qt.IsNil)
	expected, err := MultiPoseidon(h1, h2, h3)
	c.Assert(err, qt.IsNil)
	c.Assert(h.Cmp(expected), qt.Equals, 0)
}

func TestCompress(t *testing.T) {
	c := qt.New(t)
	left := types.DigestFromUint64s(1, 2, 3, 4)
	right := types.DigestFromUint64s(5, 6, 7, 8)
	node, err := Compress(left, right)
	c.Assert(err, qt.IsNil)
	expected, err := DigestHash(bigs(1, 2, 3, 4, 5, 6, 7, 8)...)
	c.Assert(err, qt.IsNil)
	c.Assert(node.Equal(expected), qt.IsTrue)

	swapped, err := Compress(right, left)
	c.Assert(err, qt.IsNil)
	c.Assert(swapped.Equal(node), qt.IsFalse)
}
