package membership

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/aragonzkresearch/rovote/census"
	"github.com/aragonzkresearch/rovote/circuits"
	"github.com/aragonzkresearch/rovote/log"
	"github.com/aragonzkresearch/rovote/prover"
	"github.com/aragonzkresearch/rovote/types"
	"github.com/aragonzkresearch/rovote/voter"
	"github.com/consensys/gnark/backend/groth16"
)

var (
	// ErrWitnessAssignment is returned when the private inputs do not match
	// the claimed public inputs. It is detected before proving.
	ErrWitnessAssignment = errors.New("witness does not satisfy the membership relation")
	// ErrProofInvalid is returned when the proof engine rejects a proof.
	ErrProofInvalid = errors.New("invalid membership proof")
	// ErrPublicInputMismatch is returned when the public inputs supplied to
	// the verifier differ from the ones the proof package was issued for.
	ErrPublicInputMismatch = errors.New("public inputs do not match the proof package")
	// ErrInvalidElection is returned when both election identifiers are
	// zero. The nullifier of such an election equals the public key of the
	// voter and would reveal their census position.
	ErrInvalidElection = errors.New("election identifiers cannot both be zero")
)

// Key returns the proof engine key of the membership circuit for a census
// of the given height.
func Key(height int) string {
	return fmt.Sprintf("membership/h%d", height)
}

// Request contains the inputs of a membership proof.
type Request struct {
	ChainID    uint64
	ProcessID  uint64
	CensusRoot types.Digest
	SecretKey  types.Digest
	LeafIndex  int
}

// ProofPackage is a membership proof and its nullifier. The election and
// census fields record the context the proof was issued for.
type ProofPackage struct {
	Proof        groth16.Proof
	Nullifier    types.Digest
	ChainID      uint64
	ProcessID    uint64
	CensusRoot   types.Digest
	CensusHeight int
}

// Nullifier returns the nullifier of the secret key for an election.
func Nullifier(sk types.Digest, chainID, processID uint64) (types.Digest, error) {
	return voter.Nullifier(sk, chainID, processID)
}

// Assignment builds the full circuit assignment of a request over the tree.
// It returns ErrWitnessAssignment if the request is not consistent with the
// census, so no proving work is spent on a witness that cannot satisfy the
// circuit.
func Assignment(tree *census.Tree, req Request) (*Circuit, types.Digest, error) {
	if req.ChainID == 0 && req.ProcessID == 0 {
		return nil, types.Digest{}, ErrInvalidElection
	}
	siblings, err := tree.PathFor(req.LeafIndex)
	if err != nil {
		return nil, types.Digest{}, fmt.Errorf("%w: %w", ErrWitnessAssignment, err)
	}
	if !req.CensusRoot.Equal(tree.Root()) {
		return nil, types.Digest{}, fmt.Errorf("%w: census root %s is not the tree root %s",
			ErrWitnessAssignment, req.CensusRoot, tree.Root())
	}
	pk, err := voter.PublicKey(req.SecretKey)
	if err != nil {
		return nil, types.Digest{}, fmt.Errorf("%w: %w", ErrWitnessAssignment, err)
	}
	leaf, err := tree.Leaf(req.LeafIndex)
	if err != nil {
		return nil, types.Digest{}, fmt.Errorf("%w: %w", ErrWitnessAssignment, err)
	}
	if !leaf.Equal(pk) {
		return nil, types.Digest{}, fmt.Errorf("%w: secret key does not match the public key at index %d",
			ErrWitnessAssignment, req.LeafIndex)
	}
	nullifier, err := voter.Nullifier(req.SecretKey, req.ChainID, req.ProcessID)
	if err != nil {
		return nil, types.Digest{}, fmt.Errorf("%w: %w", ErrWitnessAssignment, err)
	}
	return &Circuit{
		ChainID:    new(big.Int).SetUint64(req.ChainID),
		ProcessID:  new(big.Int).SetUint64(req.ProcessID),
		CensusRoot: circuits.DigestAssignment(req.CensusRoot),
		Nullifier:  circuits.DigestAssignment(nullifier),
		SecretKey:  circuits.DigestAssignment(req.SecretKey),
		LeafIndex:  req.LeafIndex,
		Siblings:   circuits.DigestsAssignment(siblings),
	}, nullifier, nil
}

// PublicAssignment returns the assignment of the public inputs only, as the
// verifier sees them.
func PublicAssignment(chainID, processID uint64, censusRoot, nullifier types.Digest) *Circuit {
	return &Circuit{
		ChainID:    new(big.Int).SetUint64(chainID),
		ProcessID:  new(big.Int).SetUint64(processID),
		CensusRoot: circuits.DigestAssignment(censusRoot),
		Nullifier:  circuits.DigestAssignment(nullifier),
	}
}

// GenerateProof proves that the owner of the secret key is part of the
// census tree, and returns the proof package together with the verifying
// key of the circuit for the tree height.
func GenerateProof(engine *prover.Engine, tree *census.Tree, req Request) (*ProofPackage, groth16.VerifyingKey, error) {
	assignment, nullifier, err := Assignment(tree, req)
	if err != nil {
		return nil, nil, err
	}
	artifacts, err := engine.Artifacts(Key(tree.Height()), Placeholder(tree.Height()))
	if err != nil {
		return nil, nil, err
	}
	proof, err := engine.Prove(artifacts, assignment)
	if err != nil {
		return nil, nil, err
	}
	log.Debugw("membership proof generated",
		"chainID", req.ChainID,
		"processID", req.ProcessID,
		"nullifier", nullifier.String())
	return &ProofPackage{
		Proof:        proof,
		Nullifier:    nullifier,
		ChainID:      req.ChainID,
		ProcessID:    req.ProcessID,
		CensusRoot:   req.CensusRoot,
		CensusHeight: tree.Height(),
	}, artifacts.VerifyingKey, nil
}

// ProveVoter looks up the public key of the voter in the tree and proves
// their membership at the first index it appears.
func ProveVoter(engine *prover.Engine, tree *census.Tree, v *voter.Voter, chainID, processID uint64) (*ProofPackage, groth16.VerifyingKey, error) {
	index, ok := tree.IndexOf(v.PublicKey)
	if !ok {
		return nil, nil, fmt.Errorf("%w: voter public key not in census", ErrWitnessAssignment)
	}
	return GenerateProof(engine, tree, Request{
		ChainID:    chainID,
		ProcessID:  processID,
		CensusRoot: tree.Root(),
		SecretKey:  v.SecretKey,
		LeafIndex:  index,
	})
}

// VerifyProof checks the proof package against the given election and
// census root. The public inputs are always the ones supplied here; the
// package is only trusted for its proof and nullifier.
func VerifyProof(chainID, processID uint64, censusRoot types.Digest, pkg *ProofPackage, vk groth16.VerifyingKey) error {
	if pkg == nil || pkg.Proof == nil {
		return fmt.Errorf("%w: empty proof package", ErrProofInvalid)
	}
	if vk == nil {
		return fmt.Errorf("%w: missing verifying key", ErrProofInvalid)
	}
	// the verifier reduces public inputs, so p+x would verify as x
	if !pkg.Nullifier.InField() || !censusRoot.InField() {
		return fmt.Errorf("%w: %w", ErrProofInvalid, types.ErrDigestNotInField)
	}
	if pkg.ChainID != chainID || pkg.ProcessID != processID || !pkg.CensusRoot.Equal(censusRoot) {
		return fmt.Errorf("%w: proof issued for chain %d process %d root %s",
			ErrPublicInputMismatch, pkg.ChainID, pkg.ProcessID, pkg.CensusRoot)
	}
	if err := prover.Verify(vk, pkg.Proof, PublicAssignment(chainID, processID, censusRoot, pkg.Nullifier)); err != nil {
		return fmt.Errorf("%w: %w", ErrProofInvalid, err)
	}
	return nil
}
