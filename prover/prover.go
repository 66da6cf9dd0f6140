// Package prover is the proof engine of rovote: it compiles circuits,
// runs the Groth16 setup, proves and verifies over BN254. Every proof it
// produces can be verified again inside another circuit, which is what the
// aggregation levels rely on.
package prover

import (
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	stdgroth16 "github.com/consensys/gnark/std/recursion/groth16"
	"github.com/consensys/gnark/test"
)

// Curve is the curve of every circuit, inner or outer.
const Curve = ecc.BN254

// ProverFunc matches the signature needed to produce a Groth16 proof from an
// assignment. It allows tests to swap the prover used by an Engine.
type ProverFunc func(
	curve ecc.ID,
	ccs constraint.ConstraintSystem,
	pk groth16.ProvingKey,
	assignment frontend.Circuit,
	opts ...backend.ProverOption,
) (groth16.Proof, error)

// CPUProver builds the full witness of the assignment and calls
// groth16.Prove.
func CPUProver(
	curve ecc.ID,
	ccs constraint.ConstraintSystem,
	pk groth16.ProvingKey,
	assignment frontend.Circuit,
	opts ...backend.ProverOption,
) (groth16.Proof, error) {
	w, err := frontend.NewWitness(assignment, curve.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("failed to create witness: %w", err)
	}
	return groth16.Prove(ccs, pk, w, opts...)
}

// NewDebugProver returns a ProverFunc that first runs the gnark test engine
// over the assignment, so unsatisfied constraints are reported with their
// stack trace, and then proves as CPUProver does. The placeholder must be
// the circuit definition the artifacts were compiled from.
func NewDebugProver(t *testing.T, placeholder frontend.Circuit) ProverFunc {
	return func(
		curve ecc.ID,
		ccs constraint.ConstraintSystem,
		pk groth16.ProvingKey,
		assignment frontend.Circuit,
		opts ...backend.ProverOption,
	) (groth16.Proof, error) {
		startTime := time.Now()
		if err := test.IsSolved(placeholder, assignment, curve.ScalarField()); err != nil {
			return nil, fmt.Errorf("debug prover: %T not solved: %w", assignment, err)
		}
		t.Logf("debug prover solved %T, took %s", assignment, time.Since(startTime))
		return CPUProver(curve, ccs, pk, assignment, opts...)
	}
}

// field returns the scalar field of Curve.
func field() *big.Int {
	return Curve.ScalarField()
}

// ProverOptions returns the options every proof must be generated with so
// that it can be verified recursively inside another BN254 circuit.
func ProverOptions() []backend.ProverOption {
	return []backend.ProverOption{stdgroth16.GetNativeProverOptions(field(), field())}
}

// VerifierOptions returns the options matching ProverOptions.
func VerifierOptions() []backend.VerifierOption {
	return []backend.VerifierOption{stdgroth16.GetNativeVerifierOptions(field(), field())}
}
