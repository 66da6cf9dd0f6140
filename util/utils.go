// Package util contains small helpers shared by tests and services.
package util

import (
	"crypto/rand"
	"math/big"

	"github.com/aragonzkresearch/rovote/crypto"
	"github.com/aragonzkresearch/rovote/types"
)

// RandomBigInt generates a random big integer in [min, max).
func RandomBigInt(min, max *big.Int) *big.Int {
	num, err := rand.Int(rand.Reader, new(big.Int).Sub(max, min))
	if err != nil {
		panic(err)
	}
	return new(big.Int).Add(num, min)
}

// RandomFieldElement returns a uniformly random BN254 scalar.
func RandomFieldElement() *big.Int {
	return RandomBigInt(big.NewInt(0), crypto.Field())
}

// RandomDigest returns a digest of random field elements.
func RandomDigest() types.Digest {
	elems := make([]*big.Int, types.DigestSize)
	for i := range elems {
		elems[i] = RandomFieldElement()
	}
	return types.NewDigest(elems...)
}
