package api

import (
	"time"

	"github.com/aragonzkresearch/rovote/types"
)

// NewCensusRequest is the body of POST /censuses. The number of public keys
// must be a power of two.
type NewCensusRequest struct {
	PublicKeys []types.Digest `json:"publicKeys"`
}

// CensusResponse describes a census. ID is the hex encoded root used in the
// census URLs.
type CensusResponse struct {
	ID     string       `json:"id"`
	Root   types.Digest `json:"root"`
	Size   int          `json:"size"`
	Height int          `json:"height"`
}

// CensusProofResponse is the inclusion path of a public key in a census.
// Siblings go from the leaf to the root.
type CensusProofResponse struct {
	Root      types.Digest   `json:"root"`
	PublicKey types.Digest   `json:"publicKey"`
	Index     int            `json:"index"`
	Siblings  []types.Digest `json:"siblings"`
}

// MembershipProof is the body of POST /proofs: a membership proof package
// with the proof in its binary encoding.
type MembershipProof struct {
	ChainID    uint64         `json:"chainId"`
	ProcessID  uint64         `json:"processId"`
	CensusRoot types.Digest   `json:"censusRoot"`
	Nullifier  types.Digest   `json:"nullifier"`
	Proof      types.HexBytes `json:"proof"`
}

// MembershipProofResponse is returned once a membership proof is accepted.
type MembershipProofResponse struct {
	Nullifier types.Digest `json:"nullifier"`
}

// ProcessProofsResponse lists the nullifiers accepted for a process.
type ProcessProofsResponse struct {
	ChainID    uint64         `json:"chainId"`
	ProcessID  uint64         `json:"processId"`
	Nullifiers []types.Digest `json:"nullifiers"`
}

// AggregationRequest is the body of POST /aggregations. Every proof stored
// for the process and census is aggregated.
type AggregationRequest struct {
	ProcessID  uint64       `json:"processId"`
	CensusRoot types.Digest `json:"censusRoot"`
}

// Aggregation job statuses.
const (
	JobStatusRunning = "running"
	JobStatusDone    = "done"
	JobStatusFailed  = "failed"
)

// AggregationJobResponse reports the state of an aggregation job. The proof
// fields are only set once the job is done.
type AggregationJobResponse struct {
	JobID        string         `json:"jobId"`
	Status       string         `json:"status"`
	Error        string         `json:"error,omitempty"`
	ChainID      uint64         `json:"chainId"`
	ProcessID    uint64         `json:"processId"`
	CensusRoot   types.Digest   `json:"censusRoot"`
	Proofs       int            `json:"proofs"`
	Level        int            `json:"level,omitempty"`
	Nullifiers   []types.Digest `json:"nullifiers,omitempty"`
	KeyHash      *types.BigInt  `json:"keyHash,omitempty"`
	Proof        types.HexBytes `json:"proof,omitempty"`
	VerifyingKey types.HexBytes `json:"verifyingKey,omitempty"`
	StartedAt    time.Time      `json:"startedAt,omitzero"`
	FinishedAt   time.Time      `json:"finishedAt,omitzero"`
}

// CircuitInfo describes a compiled circuit held by the proof engine.
type CircuitInfo struct {
	Key                 string         `json:"key"`
	Constraints         int            `json:"constraints"`
	VerificationKeyHash types.HexBytes `json:"verificationKeyHash"`
}

// NodeInfo is returned by the info endpoint.
type NodeInfo struct {
	ChainID  uint64        `json:"chainId"`
	Workers  int           `json:"workers"`
	Circuits []CircuitInfo `json:"circuits"`
}
