package storage

import (
	"fmt"
	"time"

	"github.com/aragonzkresearch/rovote/circuits/membership"
	"github.com/aragonzkresearch/rovote/db/prefixeddb"
	"github.com/aragonzkresearch/rovote/prover"
	"github.com/aragonzkresearch/rovote/types"
)

// ProofRecord is the stored form of a membership proof package.
type ProofRecord struct {
	Nullifier    []byte    `cbor:"nullifier"`
	ChainID      uint64    `cbor:"chainId"`
	ProcessID    uint64    `cbor:"processId"`
	CensusRoot   []byte    `cbor:"censusRoot"`
	CensusHeight int       `cbor:"censusHeight"`
	Proof        []byte    `cbor:"proof"`
	CreatedAt    time.Time `cbor:"createdAt"`
}

func newProofRecord(pkg *membership.ProofPackage) (*ProofRecord, error) {
	if !pkg.Nullifier.InField() {
		return nil, fmt.Errorf("nullifier %s: %w", pkg.Nullifier, types.ErrDigestNotInField)
	}
	proof, err := prover.EncodeProof(pkg.Proof)
	if err != nil {
		return nil, err
	}
	return &ProofRecord{
		Nullifier:    pkg.Nullifier.Bytes(),
		ChainID:      pkg.ChainID,
		ProcessID:    pkg.ProcessID,
		CensusRoot:   pkg.CensusRoot.Bytes(),
		CensusHeight: pkg.CensusHeight,
		Proof:        proof,
		CreatedAt:    time.Now(),
	}, nil
}

// Package decodes the record back into a proof package.
func (r *ProofRecord) Package() (*membership.ProofPackage, error) {
	nullifier, err := types.DigestFromBytes(r.Nullifier)
	if err != nil {
		return nil, fmt.Errorf("decode nullifier: %w", err)
	}
	root, err := types.DigestFromBytes(r.CensusRoot)
	if err != nil {
		return nil, fmt.Errorf("decode census root: %w", err)
	}
	proof, err := prover.DecodeProof(r.Proof)
	if err != nil {
		return nil, err
	}
	return &membership.ProofPackage{
		Proof:        proof,
		Nullifier:    nullifier,
		ChainID:      r.ChainID,
		ProcessID:    r.ProcessID,
		CensusRoot:   root,
		CensusHeight: r.CensusHeight,
	}, nil
}

func proofKey(chainID, processID uint64, nullifier types.Digest) []byte {
	return append(processKey(chainID, processID), nullifier.Bytes()...)
}

// SetProof stores a proof package under its election and nullifier. It
// returns ErrKeyAlreadyExists if the nullifier was already used in the
// election, which is how double voting is detected.
func (s *Storage) SetProof(pkg *membership.ProofPackage) error {
	record, err := newProofRecord(pkg)
	if err != nil {
		return err
	}
	return s.setArtifact(proofPrefix, proofKey(pkg.ChainID, pkg.ProcessID, pkg.Nullifier), record)
}

// Proof returns the proof package of a nullifier in an election.
func (s *Storage) Proof(chainID, processID uint64, nullifier types.Digest) (*membership.ProofPackage, error) {
	var record ProofRecord
	if err := getArtifact(s, proofPrefix, proofKey(chainID, processID, nullifier), &record); err != nil {
		return nil, err
	}
	return record.Package()
}

// HasNullifier reports whether the nullifier was already used in the
// election.
func (s *Storage) HasNullifier(chainID, processID uint64, nullifier types.Digest) bool {
	_, err := prefixeddb.NewPrefixedDatabase(s.db, proofPrefix).Get(proofKey(chainID, processID, nullifier))
	return err == nil
}

// ListNullifiers returns the nullifiers stored for an election, in key
// order.
func (s *Storage) ListNullifiers(chainID, processID uint64) ([]types.Digest, error) {
	nullifiers := []types.Digest{}
	var derr error
	pdb := prefixeddb.NewPrefixedDatabase(s.db, append(append([]byte{}, proofPrefix...), processKey(chainID, processID)...))
	if err := pdb.Iterate(nil, func(key, _ []byte) bool {
		nullifier, err := types.DigestFromBytes(key)
		if err != nil {
			derr = err
			return false
		}
		nullifiers = append(nullifiers, nullifier)
		return true
	}); err != nil {
		return nil, err
	}
	return nullifiers, derr
}

// ListProofs returns every proof package stored for an election, ordered
// like ListNullifiers.
func (s *Storage) ListProofs(chainID, processID uint64) ([]*membership.ProofPackage, error) {
	pkgs := []*membership.ProofPackage{}
	var derr error
	pdb := prefixeddb.NewPrefixedDatabase(s.db, append(append([]byte{}, proofPrefix...), processKey(chainID, processID)...))
	if err := pdb.Iterate(nil, func(_, value []byte) bool {
		var record ProofRecord
		if derr = DecodeArtifact(value, &record); derr != nil {
			return false
		}
		pkg, err := record.Package()
		if err != nil {
			derr = err
			return false
		}
		pkgs = append(pkgs, pkg)
		return true
	}); err != nil {
		return nil, err
	}
	return pkgs, derr
}

// DeleteProof removes the proof package of a nullifier in an election.
func (s *Storage) DeleteProof(chainID, processID uint64, nullifier types.Digest) error {
	return s.deleteArtifact(proofPrefix, proofKey(chainID, processID, nullifier))
}
