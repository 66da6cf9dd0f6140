// Package poseidon implements the commitment hash of rovote on top of the
// iden3 Poseidon implementation over the BN254 scalar field. A commitment is
// a types.Digest: the sponge output and three squeezes derived from it.
package poseidon

import (
	"fmt"
	"math/big"
	"slices"

	"github.com/aragonzkresearch/rovote/types"
	"github.com/iden3/go-iden3-crypto/poseidon"
)

// ChunkSize is the widest input accepted by a single Poseidon permutation.
const ChunkSize = 16

// MultiPoseidon hashes any number of inputs. Up to ChunkSize inputs are
// hashed directly, longer inputs are hashed in chunks of ChunkSize and the
// chunk hashes are hashed again until a single value remains. It matches
// the in-circuit MultiHash of gnark-crypto-primitives.
func MultiPoseidon(inputs ...*big.Int) (*big.Int, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no inputs provided")
	}
	if len(inputs) <= ChunkSize {
		return poseidon.Hash(inputs)
	}
	hashes := make([]*big.Int, 0, (len(inputs)+ChunkSize-1)/ChunkSize)
	for chunk := range slices.Chunk(inputs, ChunkSize) {
		h, err := poseidon.Hash(chunk)
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, h)
	}
	if len(hashes) == 1 {
		return hashes[0], nil
	}
	return MultiPoseidon(hashes...)
}

// DigestHash computes the commitment of the inputs: d[0] is the Poseidon
// hash of the inputs and d[j] = Poseidon(d[0], j) for the rest of lanes.
// Every input must already be reduced into the BN254 scalar field.
func DigestHash(inputs ...*big.Int) (types.Digest, error) {
	h, err := MultiPoseidon(inputs...)
	if err != nil {
		return types.Digest{}, fmt.Errorf("commitment hash: %w", err)
	}
	lanes := []*big.Int{h}
	for j := 1; j < types.DigestSize; j++ {
		lane, err := poseidon.Hash([]*big.Int{h, big.NewInt(int64(j))})
		if err != nil {
			return types.Digest{}, fmt.Errorf("commitment hash lane %d: %w", j, err)
		}
		lanes = append(lanes, lane)
	}
	return types.NewDigest(lanes...), nil
}

// HashDigests hashes the concatenation of the elements of the digests,
// followed by the extra field elements if any.
func HashDigests(digests []types.Digest, extra ...*big.Int) (types.Digest, error) {
	inputs := make([]*big.Int, 0, len(digests)*types.DigestSize+len(extra))
	for _, d := range digests {
		inputs = append(inputs, d.BigInts()...)
	}
	return DigestHash(append(inputs, extra...)...)
}

// Compress is the two-to-one Merkle compression function, H(left ‖ right).
func Compress(left, right types.Digest) (types.Digest, error) {
	return HashDigests([]types.Digest{left, right})
}
