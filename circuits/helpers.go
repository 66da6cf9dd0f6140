// Package circuits contains the gadgets shared by the rovote circuits: the
// in-circuit commitment hash over digests and the error helper used inside
// Define methods.
package circuits

import (
	"fmt"

	"github.com/aragonzkresearch/rovote/types"
	"github.com/consensys/gnark/frontend"
	"github.com/vocdoni/gnark-crypto-primitives/hash/native/bn254/poseidon"
)

// FrontendError prints an error message and an error trace from inside a
// circuit, making the circuit unsatisfiable.
func FrontendError(api frontend.API, msg string, trace error) {
	api.Println("in-circuit error: " + msg)
	api.Println(fmt.Sprintf("%s: %s", msg, trace.Error()))
	api.AssertIsEqual(1, 0)
}

// DigestVar is the in-circuit version of types.Digest.
type DigestVar [types.DigestSize]frontend.Variable

// DigestAssignment converts a digest into circuit values.
func DigestAssignment(d types.Digest) DigestVar {
	var out DigestVar
	for i, e := range d.BigInts() {
		out[i] = e
	}
	return out
}

// DigestsAssignment converts a list of digests into circuit values.
func DigestsAssignment(ds []types.Digest) []DigestVar {
	out := make([]DigestVar, len(ds))
	for i, d := range ds {
		out[i] = DigestAssignment(d)
	}
	return out
}

// HashVars computes the commitment hash of the inputs inside the circuit.
// It matches poseidon.DigestHash of crypto/hash/poseidon: lane 0 is the
// Poseidon hash of the inputs and lane j is Poseidon(lane0, j).
func HashVars(api frontend.API, inputs ...frontend.Variable) (DigestVar, error) {
	var out DigestVar
	h, err := poseidon.MultiHash(api, inputs...)
	if err != nil {
		return out, err
	}
	out[0] = h
	for j := 1; j < types.DigestSize; j++ {
		if out[j], err = poseidon.MultiHash(api, h, j); err != nil {
			return out, err
		}
	}
	return out, nil
}

// HashDigestVars hashes the concatenation of the digests followed by the
// extra variables.
func HashDigestVars(api frontend.API, digests []DigestVar, extra ...frontend.Variable) (DigestVar, error) {
	inputs := make([]frontend.Variable, 0, len(digests)*types.DigestSize+len(extra))
	for _, d := range digests {
		inputs = append(inputs, d[:]...)
	}
	return HashVars(api, append(inputs, extra...)...)
}

// SelectDigest returns a if sel is 1 and b if sel is 0. sel must be boolean.
func SelectDigest(api frontend.API, sel frontend.Variable, a, b DigestVar) DigestVar {
	var out DigestVar
	for i := range out {
		out[i] = api.Select(sel, a[i], b[i])
	}
	return out
}

// AssertDigestEqual constrains both digests to be equal element-wise.
func AssertDigestEqual(api frontend.API, a, b DigestVar) {
	for i := range a {
		api.AssertIsEqual(a[i], b[i])
	}
}
