package aggregator

import (
	"fmt"
	"math/big"

	"github.com/aragonzkresearch/rovote/circuits"
	"github.com/aragonzkresearch/rovote/types"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/std/algebra/emulated/sw_bn254"
	stdgroth16 "github.com/consensys/gnark/std/recursion/groth16"
)

// Context is the election and census every proof of an aggregation shares.
type Context struct {
	ChainID    uint64
	ProcessID  uint64
	CensusRoot types.Digest
}

// Placeholder returns the circuit of the given level, ready to be compiled.
// The inner constraint system and verifying key are the ones of the proofs
// the circuit verifies, and membershipKeyHash is the fingerprint of the
// membership verifying key.
func Placeholder(level int, innerCCS constraint.ConstraintSystem, innerVK groth16.VerifyingKey,
	membershipKeyHash *big.Int,
) (*Circuit, error) {
	if level < 1 {
		return nil, fmt.Errorf("%w: invalid level %d", ErrRecursiveVerificationSetup, level)
	}
	fixedVk, err := stdgroth16.ValueOfVerifyingKeyFixed[sw_bn254.G1Affine, sw_bn254.G2Affine, sw_bn254.GTEl](innerVK)
	if err != nil {
		return nil, fmt.Errorf("fix inner verifying key: %w", err)
	}
	placeholder := &Circuit{
		Nullifiers:        make([]circuits.DigestVar, 1<<level),
		VerificationKey:   fixedVk,
		MembershipKeyHash: membershipKeyHash,
	}
	for i := range placeholder.Proofs {
		placeholder.Proofs[i] = stdgroth16.PlaceholderProof[sw_bn254.G1Affine, sw_bn254.G2Affine](innerCCS)
	}
	return placeholder, nil
}

// PublicAssignment returns the assignment of the public inputs of the
// circuit only, as the verifier sees them.
func PublicAssignment(ctx Context, keyHash *big.Int, nullifiers []types.Digest) *Circuit {
	return &Circuit{
		KeyHash:    keyHash,
		ChainID:    new(big.Int).SetUint64(ctx.ChainID),
		ProcessID:  new(big.Int).SetUint64(ctx.ProcessID),
		CensusRoot: circuits.DigestAssignment(ctx.CensusRoot),
		Nullifiers: circuits.DigestsAssignment(nullifiers),
	}
}

// Assignment returns the full assignment that aggregates the proofs of both
// nodes. The nullifiers of the left node come first.
func Assignment(ctx Context, left, right *Node) (*Circuit, error) {
	nullifiers := append(append([]types.Digest{}, left.Nullifiers...), right.Nullifiers...)
	assignment := PublicAssignment(ctx, left.KeyHash, nullifiers)
	for i, node := range []*Node{left, right} {
		proof, err := stdgroth16.ValueOfProof[sw_bn254.G1Affine, sw_bn254.G2Affine](node.Proof)
		if err != nil {
			return nil, fmt.Errorf("recursive proof value: %w", err)
		}
		assignment.Proofs[i] = proof
	}
	return assignment, nil
}
