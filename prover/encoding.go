package prover

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/ethereum/go-ethereum/crypto"
)

// EncodeProof serializes a proof in compressed form.
func EncodeProof(proof groth16.Proof) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode proof: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeProof deserializes the output of EncodeProof.
func DecodeProof(data []byte) (groth16.Proof, error) {
	proof := groth16.NewProof(Curve)
	if _, err := proof.ReadFrom(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to decode proof: %w", err)
	}
	return proof, nil
}

// EncodeVerifyingKey serializes a verifying key in compressed form.
func EncodeVerifyingKey(vk groth16.VerifyingKey) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := vk.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode verifying key: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeVerifyingKey deserializes the output of EncodeVerifyingKey.
func DecodeVerifyingKey(data []byte) (groth16.VerifyingKey, error) {
	vk := groth16.NewVerifyingKey(Curve)
	if _, err := vk.ReadFrom(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to decode verifying key: %w", err)
	}
	return vk, nil
}

// VerifyingKeyHash returns the Keccak-256 fingerprint of the encoded
// verifying key. Two proofs can be aggregated together only if their keys
// share the fingerprint.
func VerifyingKeyHash(vk groth16.VerifyingKey) ([]byte, error) {
	encoded, err := EncodeVerifyingKey(vk)
	if err != nil {
		return nil, err
	}
	return crypto.Keccak256(encoded), nil
}

// VerifyingKeyHashField returns the fingerprint of the verifying key reduced
// into the scalar field, so it can be used as a public input.
func VerifyingKeyHashField(vk groth16.VerifyingKey) (*big.Int, error) {
	h, err := VerifyingKeyHash(vk)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Mod(new(big.Int).SetBytes(h), field()), nil
}
