// Package voter holds the credentials of a voter: a random secret key and
// the public key derived from it, which is the only value ever placed in a
// census. It also derives the per-election nullifiers.
package voter

import (
	"fmt"
	"math/big"

	"github.com/aragonzkresearch/rovote/crypto"
	"github.com/aragonzkresearch/rovote/crypto/hash/poseidon"
	"github.com/aragonzkresearch/rovote/types"
	"github.com/aragonzkresearch/rovote/util"
)

// Voter is a census credential. The secret key never leaves its owner.
type Voter struct {
	SecretKey types.Digest
	PublicKey types.Digest
}

// New samples a random secret key and derives its public key.
func New() (*Voter, error) {
	return FromSecretKey(util.RandomDigest())
}

// FromSecretKey rebuilds a voter from a known secret key.
func FromSecretKey(sk types.Digest) (*Voter, error) {
	pk, err := PublicKey(sk)
	if err != nil {
		return nil, err
	}
	return &Voter{SecretKey: sk, PublicKey: pk}, nil
}

// Nullifier returns the nullifier of the voter for an election.
func (v *Voter) Nullifier(chainID, processID uint64) (types.Digest, error) {
	return Nullifier(v.SecretKey, chainID, processID)
}

// PublicKey derives H(sk ‖ 0,0,0,0).
func PublicKey(sk types.Digest) (types.Digest, error) {
	if err := checkSecretKey(sk); err != nil {
		return types.Digest{}, err
	}
	zero := big.NewInt(0)
	pk, err := poseidon.HashDigests([]types.Digest{sk}, zero, zero, zero, zero)
	if err != nil {
		return types.Digest{}, fmt.Errorf("deriving public key: %w", err)
	}
	return pk, nil
}

// Nullifier derives H(sk ‖ chainID ‖ processID ‖ 0,0). The same secret key
// always yields the same nullifier inside an election, and unrelated ones
// across elections.
func Nullifier(sk types.Digest, chainID, processID uint64) (types.Digest, error) {
	if err := checkSecretKey(sk); err != nil {
		return types.Digest{}, err
	}
	zero := big.NewInt(0)
	nf, err := poseidon.HashDigests([]types.Digest{sk},
		new(big.Int).SetUint64(chainID), new(big.Int).SetUint64(processID), zero, zero)
	if err != nil {
		return types.Digest{}, fmt.Errorf("deriving nullifier: %w", err)
	}
	return nf, nil
}

func checkSecretKey(sk types.Digest) error {
	for i, e := range sk.BigInts() {
		if !crypto.InField(e) {
			return fmt.Errorf("secret key element %d is not a field element", i)
		}
	}
	return nil
}
