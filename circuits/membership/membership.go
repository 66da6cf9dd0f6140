// membership package contains the Gnark circuit that a single voter proves
// to show that they are part of a census without revealing their position
// in it. The proof is valid if:
//   - The public key derived from the secret key, H(sk ‖ 0,0,0,0), is a leaf
//     of the census tree at the (hidden) leaf index.
//   - The nullifier is H(sk ‖ chainID ‖ processID ‖ 0,0).
//
// Public inputs:
//   - ChainID: The chain of the election.
//   - ProcessID: The process of the election.
//   - CensusRoot: The root of the census tree.
//   - Nullifier: The nullifier of the voter for the election.
//
// Private inputs:
//   - SecretKey: The secret key of the voter.
//   - LeafIndex: The position of the voter public key in the census.
//   - Siblings: The siblings of the voter public key in the census tree, from
//     the leaves to the root. Its length is the census height and it fixes
//     the shape of the circuit.
package membership

import (
	"github.com/aragonzkresearch/rovote/circuits"
	"github.com/consensys/gnark/frontend"
)

type Circuit struct {
	ChainID    frontend.Variable  `gnark:",public"`
	ProcessID  frontend.Variable  `gnark:",public"`
	CensusRoot circuits.DigestVar `gnark:",public"`
	Nullifier  circuits.DigestVar `gnark:",public"`

	SecretKey circuits.DigestVar
	LeafIndex frontend.Variable
	Siblings  []circuits.DigestVar
}

// Placeholder returns an empty circuit for a census of the given height,
// ready to be compiled.
func Placeholder(height int) *Circuit {
	return &Circuit{Siblings: make([]circuits.DigestVar, height)}
}

func (c *Circuit) Define(api frontend.API) error {
	// derive the public key from the secret key
	pk, err := circuits.HashDigestVars(api, []circuits.DigestVar{c.SecretKey}, 0, 0, 0, 0)
	if err != nil {
		circuits.FrontendError(api, "failed to derive public key", err)
	}
	c.verifyInclusion(api, pk)
	// recompute the nullifier from the secret key and the election
	nullifier, err := circuits.HashDigestVars(api, []circuits.DigestVar{c.SecretKey},
		c.ChainID, c.ProcessID, 0, 0)
	if err != nil {
		circuits.FrontendError(api, "failed to derive nullifier", err)
	}
	circuits.AssertDigestEqual(api, nullifier, c.Nullifier)
	return nil
}

// verifyInclusion climbs from the leaf to the root following the bits of the
// leaf index, least significant first, and asserts the census root is
// reached. A bit set to 1 means the current node is a right child.
func (c *Circuit) verifyInclusion(api frontend.API, leaf circuits.DigestVar) {
	height := len(c.Siblings)
	if height == 0 {
		api.AssertIsEqual(c.LeafIndex, 0)
		circuits.AssertDigestEqual(api, leaf, c.CensusRoot)
		return
	}
	// ToBinary also constrains the index to be lower than 2^height
	bits := api.ToBinary(c.LeafIndex, height)
	node := leaf
	for level, sibling := range c.Siblings {
		left := circuits.SelectDigest(api, bits[level], sibling, node)
		right := circuits.SelectDigest(api, bits[level], node, sibling)
		var err error
		if node, err = circuits.HashDigestVars(api, []circuits.DigestVar{left, right}); err != nil {
			circuits.FrontendError(api, "failed to hash census node", err)
		}
	}
	circuits.AssertDigestEqual(api, node, c.CensusRoot)
}
