package testutil

import (
	"encoding/binary"
	"math/big"
	"os"
	"testing"

	"github.com/aragonzkresearch/rovote/census"
	"github.com/aragonzkresearch/rovote/crypto"
	"github.com/aragonzkresearch/rovote/types"
	"github.com/aragonzkresearch/rovote/voter"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

const (
	ChainID    = 42
	ProcessID  = 3
	CensusSize = 256

	falseStr = "false"
)

// SkipIfNoCircuitTests skips tests that compile and prove full circuits
// unless RUN_CIRCUIT_TESTS is set.
func SkipIfNoCircuitTests(t testing.TB) {
	t.Helper()
	if os.Getenv("RUN_CIRCUIT_TESTS") == "" || os.Getenv("RUN_CIRCUIT_TESTS") == falseStr {
		t.Skip("skipping circuit tests...")
	}
}

// DeterministicSecretKey derives a valid secret key from n, so tests can
// rebuild the same census across runs.
func DeterministicSecretKey(n uint64) types.Digest {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], n)
	prefix := []byte("deterministic-secret-key:")
	elems := make([]*big.Int, types.DigestSize)
	for i := range elems {
		h := ethcrypto.Keccak256(append(prefix, append(b[:], byte(i))...))
		elems[i] = crypto.BigToFF(crypto.Field(), new(big.Int).SetBytes(h))
	}
	return types.NewDigest(elems...)
}

// DeterministicVoters returns n voters with deterministic keys.
func DeterministicVoters(t testing.TB, n int) []*voter.Voter {
	t.Helper()
	voters := make([]*voter.Voter, n)
	for i := range voters {
		v, err := voter.FromSecretKey(DeterministicSecretKey(uint64(i)))
		if err != nil {
			t.Fatalf("creating voter %d: %v", i, err)
		}
		voters[i] = v
	}
	return voters
}

// NewCensus builds a census of n deterministic voters, in order.
func NewCensus(t testing.TB, n int) ([]*voter.Voter, *census.Tree) {
	t.Helper()
	voters := DeterministicVoters(t, n)
	tree, err := census.Build(PublicKeys(voters))
	if err != nil {
		t.Fatalf("building census: %v", err)
	}
	return voters, tree
}

// PublicKeys returns the public keys of the voters, in order.
func PublicKeys(voters []*voter.Voter) []types.Digest {
	keys := make([]types.Digest, len(voters))
	for i, v := range voters {
		keys[i] = v.PublicKey
	}
	return keys
}
