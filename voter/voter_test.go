package voter

import (
	"testing"

	"github.com/aragonzkresearch/rovote/types"
	qt "github.com/frankban/quicktest"
)

func TestVoterKeys(t *testing.T) {
	c := qt.New(t)
	v, err := New()
	c.Assert(err, qt.IsNil)
	c.Assert(v.PublicKey.IsZero(), qt.IsFalse)
	c.Assert(v.PublicKey.Equal(v.SecretKey), qt.IsFalse)

	again, err := FromSecretKey(v.SecretKey)
	c.Assert(err, qt.IsNil)
	c.Assert(again.PublicKey.Equal(v.PublicKey), qt.IsTrue)

	other, err := New()
	c.Assert(err, qt.IsNil)
	c.Assert(other.PublicKey.Equal(v.PublicKey), qt.IsFalse)
}

func TestNullifier(t *testing.T) {
	c := qt.New(t)
	v, err := FromSecretKey(types.DigestFromUint64s(11, 22, 33, 44))
	c.Assert(err, qt.IsNil)

	nf, err := v.Nullifier(42, 3)
	c.Assert(err, qt.IsNil)
	again, err := Nullifier(v.SecretKey, 42, 3)
	c.Assert(err, qt.IsNil)
	c.Assert(again.Equal(nf), qt.IsTrue)

	otherProcess, err := v.Nullifier(42, 4)
	c.Assert(err, qt.IsNil)
	c.Assert(otherProcess.Equal(nf), qt.IsFalse)

	otherChain, err := v.Nullifier(1, 3)
	c.Assert(err, qt.IsNil)
	c.Assert(otherChain.Equal(nf), qt.IsFalse)

	// with zero election identifiers the nullifier is the public key
	zeroNf, err := v.Nullifier(0, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(zeroNf.Equal(v.PublicKey), qt.IsTrue)
}
