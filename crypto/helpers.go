// Package crypto holds field helpers shared by the commitment hash, the
// census and the circuits. Every value rovote commits to lives in the
// scalar field of BN254.
package crypto

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
)

// Field returns the BN254 scalar field modulus. The returned value must not
// be modified.
func Field() *big.Int {
	return ecc.BN254.ScalarField()
}

// BigToFF returns the representation of iv inside the field provided.
func BigToFF(field, iv *big.Int) *big.Int {
	z := big.NewInt(0)
	if c := iv.Cmp(field); c == 0 {
		return z
	} else if c != 1 && iv.Sign() != -1 {
		return iv
	}
	return z.Mod(iv, field)
}

// InField reports whether v is a canonical element of the BN254 scalar
// field.
func InField(v *big.Int) bool {
	return v != nil && v.Sign() >= 0 && v.Cmp(Field()) < 0
}
