package aggregator

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"

	"github.com/aragonzkresearch/rovote/circuits/membership"
	"github.com/aragonzkresearch/rovote/log"
	"github.com/aragonzkresearch/rovote/prover"
	"github.com/aragonzkresearch/rovote/types"
	"github.com/consensys/gnark/backend/groth16"
)

var (
	// ErrRecursiveVerificationSetup is returned when the proofs to aggregate
	// do not share the same circuit shape: level, number of nullifiers,
	// census height or verifying key.
	ErrRecursiveVerificationSetup = errors.New("proofs cannot be aggregated together")
	// ErrProofInvalid is returned when an aggregation proof is rejected.
	ErrProofInvalid = errors.New("invalid aggregation proof")
)

// Node is a proof taking part in the aggregation tree. Level 0 nodes wrap a
// single membership proof, a level n node covers 2^n nullifiers.
type Node struct {
	Level        int
	Proof        groth16.Proof
	VerifyingKey groth16.VerifyingKey
	Nullifiers   []types.Digest
	CensusHeight int
	// KeyHash is the fingerprint of the membership verifying key of the
	// leaves of the node.
	KeyHash *big.Int
}

// FromMembership lifts a membership proof package into a level 0 node.
func FromMembership(pkg *membership.ProofPackage, vk groth16.VerifyingKey) (*Node, error) {
	if pkg == nil || pkg.Proof == nil || vk == nil {
		return nil, fmt.Errorf("%w: empty membership proof", ErrRecursiveVerificationSetup)
	}
	keyHash, err := prover.VerifyingKeyHashField(vk)
	if err != nil {
		return nil, err
	}
	return &Node{
		Proof:        pkg.Proof,
		VerifyingKey: vk,
		Nullifiers:   []types.Digest{pkg.Nullifier},
		CensusHeight: pkg.CensusHeight,
		KeyHash:      keyHash,
	}, nil
}

// Key returns the proof engine key of the aggregation circuit of a level,
// which depends on the verifying key of the proofs it verifies.
func Key(height, level int, innerVK groth16.VerifyingKey) (string, error) {
	hash, err := prover.VerifyingKeyHash(innerVK)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("aggregator/h%d/l%d/%x", height, level, hash[:8]), nil
}

// Artifacts returns the artifacts of the circuit of the given level for a
// census height, compiling every level below when needed. Level 0 returns
// the membership circuit artifacts. It also returns the KeyHash of the
// membership verifying key.
func Artifacts(engine *prover.Engine, height, level int) (*prover.Artifacts, *big.Int, error) {
	inner, err := engine.Artifacts(membership.Key(height), membership.Placeholder(height))
	if err != nil {
		return nil, nil, err
	}
	keyHash, err := prover.VerifyingKeyHashField(inner.VerifyingKey)
	if err != nil {
		return nil, nil, err
	}
	for l := 1; l <= level; l++ {
		key, err := Key(height, l, inner.VerifyingKey)
		if err != nil {
			return nil, nil, err
		}
		placeholder, err := Placeholder(l, inner.CCS, inner.VerifyingKey, keyHash)
		if err != nil {
			return nil, nil, err
		}
		if inner, err = engine.Artifacts(key, placeholder); err != nil {
			return nil, nil, err
		}
	}
	return inner, keyHash, nil
}

// Aggregate combines two membership proofs of the same election and census
// into a level 1 proof, returning the nullifiers of both in order. The
// combined proof is verified before being returned.
func Aggregate(engine *prover.Engine, chainID, processID uint64, censusRoot types.Digest,
	pkg0, pkg1 *membership.ProofPackage, vk groth16.VerifyingKey,
) (types.Digest, types.Digest, *Node, error) {
	ctx := Context{ChainID: chainID, ProcessID: processID, CensusRoot: censusRoot}
	pkgs := []*membership.ProofPackage{pkg0, pkg1}
	nodes := make([]*Node, len(pkgs))
	for i, pkg := range pkgs {
		node, err := FromMembership(pkg, vk)
		if err != nil {
			return types.Digest{}, types.Digest{}, nil, err
		}
		nodes[i] = node
	}
	// proofs of trees of different heights also have different roots, the
	// shape is checked first so they are reported as a setup mismatch
	if err := checkShapes(nodes[0], nodes[1]); err != nil {
		return types.Digest{}, types.Digest{}, nil, err
	}
	for i, pkg := range pkgs {
		if pkg.ChainID != chainID || pkg.ProcessID != processID || !pkg.CensusRoot.Equal(censusRoot) {
			return types.Digest{}, types.Digest{}, nil, fmt.Errorf("%w: proof %d issued for chain %d process %d root %s",
				membership.ErrPublicInputMismatch, i, pkg.ChainID, pkg.ProcessID, pkg.CensusRoot)
		}
	}
	node, err := AggregateNodes(engine, ctx, nodes[0], nodes[1])
	if err != nil {
		return types.Digest{}, types.Digest{}, nil, err
	}
	return pkg0.Nullifier, pkg1.Nullifier, node, nil
}

// AggregateNodes proves the validity of both nodes in a single node of the
// next level. The nullifiers of the left node come first, so aggregating
// ((a, b), (c, d)) yields the nullifiers of a, b, c and d in order.
func AggregateNodes(engine *prover.Engine, ctx Context, left, right *Node) (*Node, error) {
	if err := checkShapes(left, right); err != nil {
		return nil, err
	}
	inner, _, err := Artifacts(engine, left.CensusHeight, left.Level)
	if err != nil {
		return nil, err
	}
	if err := sameVerifyingKey(inner.VerifyingKey, left.VerifyingKey); err != nil {
		return nil, fmt.Errorf("inner circuit of level %d: %w", left.Level, err)
	}
	outer, keyHash, err := Artifacts(engine, left.CensusHeight, left.Level+1)
	if err != nil {
		return nil, err
	}
	if keyHash.Cmp(left.KeyHash) != 0 {
		return nil, fmt.Errorf("%w: membership key hash %s, expected %s",
			ErrRecursiveVerificationSetup, left.KeyHash, keyHash)
	}
	assignment, err := Assignment(ctx, left, right)
	if err != nil {
		return nil, err
	}
	proof, err := engine.Prove(outer, assignment)
	if err != nil {
		return nil, err
	}
	node := &Node{
		Level:        left.Level + 1,
		Proof:        proof,
		VerifyingKey: outer.VerifyingKey,
		Nullifiers:   append(append([]types.Digest{}, left.Nullifiers...), right.Nullifiers...),
		CensusHeight: left.CensusHeight,
		KeyHash:      keyHash,
	}
	if err := VerifyNode(ctx, node); err != nil {
		return nil, err
	}
	log.Debugw("aggregation proof generated",
		"level", node.Level,
		"nullifiers", len(node.Nullifiers),
		"processID", ctx.ProcessID)
	return node, nil
}

// VerifyNode checks the proof of the node with its own verifying key against
// the given context.
func VerifyNode(ctx Context, node *Node) error {
	if node == nil || node.Proof == nil || node.VerifyingKey == nil {
		return fmt.Errorf("%w: empty node", ErrProofInvalid)
	}
	if len(node.Nullifiers) != 1<<node.Level {
		return fmt.Errorf("%w: %d nullifiers for level %d", ErrProofInvalid, len(node.Nullifiers), node.Level)
	}
	if !ctx.CensusRoot.InField() {
		return fmt.Errorf("%w: census root: %w", ErrProofInvalid, types.ErrDigestNotInField)
	}
	for i, nf := range node.Nullifiers {
		if !nf.InField() {
			return fmt.Errorf("%w: nullifier %d: %w", ErrProofInvalid, i, types.ErrDigestNotInField)
		}
	}
	var err error
	if node.Level == 0 {
		err = prover.Verify(node.VerifyingKey, node.Proof,
			membership.PublicAssignment(ctx.ChainID, ctx.ProcessID, ctx.CensusRoot, node.Nullifiers[0]))
	} else {
		err = prover.Verify(node.VerifyingKey, node.Proof, PublicAssignment(ctx, node.KeyHash, node.Nullifiers))
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProofInvalid, err)
	}
	return nil
}

func checkShapes(left, right *Node) error {
	switch {
	case left == nil || right == nil || left.Proof == nil || right.Proof == nil:
		return fmt.Errorf("%w: missing proof", ErrRecursiveVerificationSetup)
	case left.Level != right.Level:
		return fmt.Errorf("%w: levels %d and %d", ErrRecursiveVerificationSetup, left.Level, right.Level)
	case len(left.Nullifiers) != len(right.Nullifiers) || len(left.Nullifiers) != 1<<left.Level:
		return fmt.Errorf("%w: %d and %d nullifiers at level %d", ErrRecursiveVerificationSetup,
			len(left.Nullifiers), len(right.Nullifiers), left.Level)
	case left.CensusHeight != right.CensusHeight:
		return fmt.Errorf("%w: census heights %d and %d", ErrRecursiveVerificationSetup,
			left.CensusHeight, right.CensusHeight)
	case left.KeyHash == nil || right.KeyHash == nil || left.KeyHash.Cmp(right.KeyHash) != 0:
		return fmt.Errorf("%w: membership key hashes differ", ErrRecursiveVerificationSetup)
	}
	return sameVerifyingKey(left.VerifyingKey, right.VerifyingKey)
}

func sameVerifyingKey(a, b groth16.VerifyingKey) error {
	if a == nil || b == nil {
		return fmt.Errorf("%w: missing verifying key", ErrRecursiveVerificationSetup)
	}
	ha, err := prover.VerifyingKeyHash(a)
	if err != nil {
		return err
	}
	hb, err := prover.VerifyingKeyHash(b)
	if err != nil {
		return err
	}
	if !bytes.Equal(ha, hb) {
		return fmt.Errorf("%w: verifying keys differ", ErrRecursiveVerificationSetup)
	}
	return nil
}
