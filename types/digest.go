package types

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/aragonzkresearch/rovote/crypto"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/vocdoni/arbo"
)

const (
	// DigestSize is the number of field elements of a Digest.
	DigestSize = 4
	// FieldElementBytes is the length of the fixed size encoding of every
	// Digest element.
	FieldElementBytes = 32
	// DigestBytes is the length of the fixed size Digest encoding.
	DigestBytes = DigestSize * FieldElementBytes
)

// ErrDigestNotInField is returned when a digest element is not a canonical
// scalar. Circuits reduce their inputs, so a non canonical element would be a
// second encoding of the same digest.
var ErrDigestNotInField = errors.New("digest element is not a field element")

// Digest is the output of the commitment hash: public keys, secret keys,
// tree nodes, census roots and nullifiers are all digests. Its elements are
// scalars of the BN254 curve. Nil elements are treated as zero.
type Digest [DigestSize]*BigInt

// NewDigest builds a Digest from up to DigestSize big integers, missing
// elements are set to zero.
func NewDigest(elems ...*big.Int) Digest {
	var d Digest
	for i := range d {
		d[i] = new(BigInt)
		if i < len(elems) && elems[i] != nil {
			d[i].SetBigInt(elems[i])
		}
	}
	return d
}

// DigestFromUint64s builds a Digest from small integers, mostly useful for
// tests and fixtures.
func DigestFromUint64s(elems ...uint64) Digest {
	bis := make([]*big.Int, len(elems))
	for i, e := range elems {
		bis[i] = new(big.Int).SetUint64(e)
	}
	return NewDigest(bis...)
}

// BigInts returns a copy of the digest elements as math/big integers.
func (d Digest) BigInts() []*big.Int {
	out := make([]*big.Int, DigestSize)
	for i, e := range d {
		out[i] = new(big.Int).Set(e.orZero())
	}
	return out
}

// Equal reports whether both digests hold the same elements.
func (d Digest) Equal(other Digest) bool {
	for i := range d {
		if !d[i].Equal(other[i]) {
			return false
		}
	}
	return true
}

// InField reports whether every element of the digest is a canonical BN254
// scalar.
func (d Digest) InField() bool {
	for _, e := range d {
		if !crypto.InField(e.orZero()) {
			return false
		}
	}
	return true
}

// IsZero reports whether every element of the digest is zero.
func (d Digest) IsZero() bool {
	return d.Equal(Digest{})
}

// Bytes returns the fixed size encoding of the digest, every element encoded
// with arbo.BigIntToBytes into FieldElementBytes.
func (d Digest) Bytes() []byte {
	buf := bytes.NewBuffer(make([]byte, 0, DigestBytes))
	for _, e := range d {
		buf.Write(arbo.BigIntToBytes(FieldElementBytes, e.orZero()))
	}
	return buf.Bytes()
}

// DigestFromBytes decodes the output of Digest.Bytes. Elements outside of
// the field are rejected.
func DigestFromBytes(b []byte) (Digest, error) {
	if len(b) != DigestBytes {
		return Digest{}, fmt.Errorf("invalid digest length %d, expected %d", len(b), DigestBytes)
	}
	elems := make([]*big.Int, DigestSize)
	for i := range elems {
		elems[i] = arbo.BytesToBigInt(b[i*FieldElementBytes : (i+1)*FieldElementBytes])
		if !crypto.InField(elems[i]) {
			return Digest{}, fmt.Errorf("%w: element %d", ErrDigestNotInField, i)
		}
	}
	return NewDigest(elems...), nil
}

// Hex returns the 0x prefixed hexadecimal encoding of Digest.Bytes, used as
// a compact identifier in URLs and database keys.
func (d Digest) Hex() string {
	return hexutil.Encode(d.Bytes())
}

// DigestFromHex decodes the output of Digest.Hex.
func DigestFromHex(s string) (Digest, error) {
	b, err := HexStringToHexBytes(s)
	if err != nil {
		return Digest{}, err
	}
	return DigestFromBytes(b)
}

// String returns the digest elements in decimal.
func (d Digest) String() string {
	elems := make([]string, DigestSize)
	for i, e := range d {
		elems[i] = e.String()
	}
	return "[" + strings.Join(elems, ",") + "]"
}
