// aggregator package contains the Gnark circuit that recursively verifies
// two proofs generated with the same verifying key, producing a single proof
// that exposes the nullifiers of both. The inner proofs are either
// membership proofs (level 1) or aggregation proofs of the previous level,
// so a level n proof covers 2^n voters of the same election and census.
// Every proof is a BN254 Groth16 proof, so the circuit can verify its own
// outputs and the aggregation composes at any depth.
//
// Public inputs:
//   - KeyHash: The fingerprint of the membership verifying key every leaf of
//     the aggregation was verified with.
//   - ChainID: The chain of the election.
//   - ProcessID: The process of the election.
//   - CensusRoot: The root of the census tree.
//   - Nullifiers: The nullifiers of the voters, in order. The left proof
//     covers the first half and the right proof the second half.
//
// Private inputs:
//   - Proofs: The inner proofs.
//   - VerificationKey: The verifying key of the inner proofs (fixed).
//   - MembershipKeyHash: The expected KeyHash (fixed, level 1 only).
package aggregator

import (
	"math/big"

	"github.com/aragonzkresearch/rovote/circuits"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/algebra/emulated/sw_bn254"
	"github.com/consensys/gnark/std/recursion/groth16"
	"github.com/vocdoni/gnark-crypto-primitives/utils"
)

type Circuit struct {
	KeyHash    frontend.Variable    `gnark:",public"`
	ChainID    frontend.Variable    `gnark:",public"`
	ProcessID  frontend.Variable    `gnark:",public"`
	CensusRoot circuits.DigestVar   `gnark:",public"`
	Nullifiers []circuits.DigestVar `gnark:",public"`

	Proofs            [2]groth16.Proof[sw_bn254.G1Affine, sw_bn254.G2Affine]
	VerificationKey   groth16.VerifyingKey[sw_bn254.G1Affine, sw_bn254.G2Affine, sw_bn254.GTEl] `gnark:"-"`
	MembershipKeyHash *big.Int                                                                  `gnark:"-"`
}

// leafLevel reports whether the inner proofs are membership proofs, which
// is the case when the circuit covers exactly two nullifiers.
func (c *Circuit) leafLevel() bool {
	return len(c.Nullifiers) == 2
}

// innerWitnesses rebuilds the public witnesses of both inner proofs from the
// public inputs of the circuit. Membership proofs expose ChainID, ProcessID,
// CensusRoot and a single nullifier; aggregation proofs also start with the
// KeyHash and expose half of the nullifiers each.
func (c *Circuit) innerWitnesses(api frontend.API) [2]groth16.Witness[sw_bn254.ScalarField] {
	half := len(c.Nullifiers) / 2
	var witnesses [2]groth16.Witness[sw_bn254.ScalarField]
	for i := range witnesses {
		inputs := []frontend.Variable{}
		if !c.leafLevel() {
			inputs = append(inputs, c.KeyHash)
		}
		inputs = append(inputs, c.ChainID, c.ProcessID)
		inputs = append(inputs, c.CensusRoot[:]...)
		for _, nullifier := range c.Nullifiers[i*half : (i+1)*half] {
			inputs = append(inputs, nullifier[:]...)
		}
		for _, input := range inputs {
			elem, err := utils.UnpackVarToScalar[sw_bn254.ScalarField](api, input)
			if err != nil {
				circuits.FrontendError(api, "failed to convert inner public input", err)
				return witnesses
			}
			witnesses[i].Public = append(witnesses[i].Public, *elem)
		}
	}
	return witnesses
}

// checkKeyHash binds the public KeyHash to the membership verifying key at
// the first level. Upper levels forward it to the inner proofs, whose own
// circuits perform the check.
func (c *Circuit) checkKeyHash(api frontend.API) {
	if c.leafLevel() {
		api.AssertIsEqual(c.KeyHash, c.MembershipKeyHash)
	}
}

// checkProofs verifies both inner proofs with the fixed verifying key.
func (c *Circuit) checkProofs(api frontend.API) {
	verifier, err := groth16.NewVerifier[sw_bn254.ScalarField, sw_bn254.G1Affine, sw_bn254.G2Affine, sw_bn254.GTEl](api)
	if err != nil {
		circuits.FrontendError(api, "failed to create BN254 verifier", err)
		return
	}
	witnesses := c.innerWitnesses(api)
	for i := range c.Proofs {
		if err := verifier.AssertProof(c.VerificationKey, c.Proofs[i], witnesses[i], groth16.WithCompleteArithmetic()); err != nil {
			circuits.FrontendError(api, "failed to verify inner proof", err)
		}
	}
}

func (c *Circuit) Define(api frontend.API) error {
	c.checkKeyHash(api)
	c.checkProofs(api)
	return nil
}
