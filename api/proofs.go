package api

import (
	"errors"
	"net/http"

	"github.com/aragonzkresearch/rovote/census/censusdb"
	"github.com/aragonzkresearch/rovote/circuits/membership"
	"github.com/aragonzkresearch/rovote/log"
	"github.com/aragonzkresearch/rovote/prover"
	stg "github.com/aragonzkresearch/rovote/storage"
	"github.com/aragonzkresearch/rovote/types"
)

// newProof verifies a membership proof against the census it claims and
// stores it. A second proof with the same nullifier in the same process is
// rejected with ErrNullifierAlreadyUsed.
// POST /proofs
func (a *API) newProof(w http.ResponseWriter, r *http.Request) {
	req := &MembershipProof{}
	if !decodeBody(w, r, req) {
		return
	}
	if req.ChainID != a.chainID {
		ErrInvalidChainID.Withf("got %d, expected %d", req.ChainID, a.chainID).Write(w)
		return
	}
	if req.ChainID == 0 && req.ProcessID == 0 {
		ErrMalformedProcessID.WithErr(membership.ErrInvalidElection).Write(w)
		return
	}
	// nullifiers are stored by their encoding, which must be canonical
	if !req.Nullifier.InField() {
		ErrMalformedNullifier.WithErr(types.ErrDigestNotInField).Write(w)
		return
	}
	if len(req.Proof) == 0 {
		ErrMalformedProof.Withf("empty proof").Write(w)
		return
	}
	proof, err := prover.DecodeProof(req.Proof)
	if err != nil {
		ErrMalformedProof.WithErr(err).Write(w)
		return
	}
	tree, err := a.censusDB.Load(req.CensusRoot)
	if err != nil {
		if errors.Is(err, censusdb.ErrCensusNotFound) {
			ErrCensusNotFound.Withf("root %s", req.CensusRoot.Hex()).Write(w)
			return
		}
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	if a.storage.HasNullifier(req.ChainID, req.ProcessID, req.Nullifier) {
		ErrNullifierAlreadyUsed.Withf("nullifier %s", req.Nullifier.Hex()).Write(w)
		return
	}
	artifacts, err := a.engine().Artifacts(membership.Key(tree.Height()), membership.Placeholder(tree.Height()))
	if err != nil {
		ErrProverUnavailable.WithErr(err).Write(w)
		return
	}
	pkg := &membership.ProofPackage{
		Proof:        proof,
		Nullifier:    req.Nullifier,
		ChainID:      req.ChainID,
		ProcessID:    req.ProcessID,
		CensusRoot:   req.CensusRoot,
		CensusHeight: tree.Height(),
	}
	if err := membership.VerifyProof(req.ChainID, req.ProcessID, tree.Root(), pkg, artifacts.VerifyingKey); err != nil {
		ErrInvalidMembershipProof.WithErr(err).Write(w)
		return
	}
	// the nullifier check above is not atomic, SetProof is
	if err := a.storage.SetProof(pkg); err != nil {
		if errors.Is(err, stg.ErrKeyAlreadyExists) {
			ErrNullifierAlreadyUsed.Withf("nullifier %s", req.Nullifier.Hex()).Write(w)
			return
		}
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	log.Infow("membership proof accepted",
		"processID", req.ProcessID,
		"censusRoot", req.CensusRoot.Hex(),
		"nullifier", req.Nullifier.Hex())
	httpWriteJSON(w, &MembershipProofResponse{Nullifier: req.Nullifier})
}

// processProofs lists the nullifiers of the proofs accepted for a process of
// the chain of the node.
// GET /processes/{processId}/proofs
func (a *API) processProofs(w http.ResponseWriter, r *http.Request) {
	processID, err := processIDParam(r)
	if err != nil {
		ErrMalformedProcessID.WithErr(err).Write(w)
		return
	}
	nullifiers, err := a.storage.ListNullifiers(a.chainID, processID)
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, &ProcessProofsResponse{
		ChainID:    a.chainID,
		ProcessID:  processID,
		Nullifiers: nullifiers,
	})
}
