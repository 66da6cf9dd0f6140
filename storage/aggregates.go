package storage

import (
	"fmt"
	"math/big"
	"time"

	"github.com/aragonzkresearch/rovote/circuits/aggregator"
	"github.com/aragonzkresearch/rovote/prover"
	"github.com/aragonzkresearch/rovote/types"
)

// AggregateRecord is the stored form of an aggregation node and the election
// it was produced for.
type AggregateRecord struct {
	ChainID      uint64    `cbor:"chainId"`
	ProcessID    uint64    `cbor:"processId"`
	CensusRoot   []byte    `cbor:"censusRoot"`
	CensusHeight int       `cbor:"censusHeight"`
	Level        int       `cbor:"level"`
	Nullifiers   [][]byte  `cbor:"nullifiers"`
	KeyHash      []byte    `cbor:"keyHash"`
	Proof        []byte    `cbor:"proof"`
	VerifyingKey []byte    `cbor:"verifyingKey"`
	CreatedAt    time.Time `cbor:"createdAt"`
}

// Node decodes the aggregation node and its context.
func (r *AggregateRecord) Node() (*aggregator.Node, aggregator.Context, error) {
	root, err := types.DigestFromBytes(r.CensusRoot)
	if err != nil {
		return nil, aggregator.Context{}, fmt.Errorf("decode census root: %w", err)
	}
	ctx := aggregator.Context{ChainID: r.ChainID, ProcessID: r.ProcessID, CensusRoot: root}
	node := &aggregator.Node{
		Level:        r.Level,
		CensusHeight: r.CensusHeight,
		KeyHash:      new(big.Int).SetBytes(r.KeyHash),
	}
	for i, b := range r.Nullifiers {
		nullifier, err := types.DigestFromBytes(b)
		if err != nil {
			return nil, ctx, fmt.Errorf("decode nullifier %d: %w", i, err)
		}
		node.Nullifiers = append(node.Nullifiers, nullifier)
	}
	if node.Proof, err = prover.DecodeProof(r.Proof); err != nil {
		return nil, ctx, err
	}
	if node.VerifyingKey, err = prover.DecodeVerifyingKey(r.VerifyingKey); err != nil {
		return nil, ctx, err
	}
	return node, ctx, nil
}

// SetAggregate stores an aggregation node under the given identifier.
func (s *Storage) SetAggregate(id string, ctx aggregator.Context, node *aggregator.Node) error {
	proof, err := prover.EncodeProof(node.Proof)
	if err != nil {
		return err
	}
	vk, err := prover.EncodeVerifyingKey(node.VerifyingKey)
	if err != nil {
		return err
	}
	record := &AggregateRecord{
		ChainID:      ctx.ChainID,
		ProcessID:    ctx.ProcessID,
		CensusRoot:   ctx.CensusRoot.Bytes(),
		CensusHeight: node.CensusHeight,
		Level:        node.Level,
		KeyHash:      node.KeyHash.Bytes(),
		Proof:        proof,
		VerifyingKey: vk,
		CreatedAt:    time.Now(),
	}
	for _, nullifier := range node.Nullifiers {
		record.Nullifiers = append(record.Nullifiers, nullifier.Bytes())
	}
	return s.setArtifact(aggregatePrefix, []byte(id), record)
}

// Aggregate returns the aggregation node stored under the identifier and the
// election it covers.
func (s *Storage) Aggregate(id string) (*aggregator.Node, aggregator.Context, error) {
	var record AggregateRecord
	if err := getArtifact(s, aggregatePrefix, []byte(id), &record); err != nil {
		return nil, aggregator.Context{}, err
	}
	return record.Node()
}

// DeleteAggregate removes the aggregation node stored under the identifier.
func (s *Storage) DeleteAggregate(id string) error {
	return s.deleteArtifact(aggregatePrefix, []byte(id))
}
