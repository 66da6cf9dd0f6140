package prover

import (
	"errors"
	"fmt"
	"time"

	"github.com/aragonzkresearch/rovote/log"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheSize is the number of compiled circuits kept in memory.
const DefaultCacheSize = 16

// ErrVerification wraps every rejection of groth16.Verify.
var ErrVerification = errors.New("proof verification failed")

// Artifacts are the compiled constraint system of a circuit shape and its
// Groth16 keys.
type Artifacts struct {
	Key          string
	CCS          constraint.ConstraintSystem
	ProvingKey   groth16.ProvingKey
	VerifyingKey groth16.VerifyingKey
}

// Engine compiles circuits on demand and caches the artifacts of every
// circuit shape under a caller provided key. It is safe for concurrent use:
// concurrent requests for the same key compile the circuit only once.
type Engine struct {
	cache *lru.Cache[string, *Artifacts]
	group singleflight.Group
	dir   string
	prove ProverFunc
}

// Option configures an Engine.
type Option func(*Engine)

// WithArtifactsDir persists the compiled artifacts under dir, and reloads
// them from there instead of compiling again.
func WithArtifactsDir(dir string) Option {
	return func(e *Engine) { e.dir = dir }
}

// WithProver replaces the function used to produce proofs.
func WithProver(fn ProverFunc) Option {
	return func(e *Engine) { e.prove = fn }
}

// NewEngine creates an Engine keeping up to cacheSize circuit shapes in
// memory (DefaultCacheSize if cacheSize <= 0).
func NewEngine(cacheSize int, opts ...Option) (*Engine, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, *Artifacts](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create artifacts cache: %w", err)
	}
	e := &Engine{cache: cache, prove: CPUProver}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Artifacts returns the artifacts cached under key. On a miss, they are
// loaded from the artifacts directory or compiled from the placeholder and
// set up. The placeholder fixes the shape (slice lengths, constants) of the
// circuit, so the key must identify that shape unambiguously.
func (e *Engine) Artifacts(key string, placeholder frontend.Circuit) (*Artifacts, error) {
	if a, ok := e.cache.Get(key); ok {
		return a, nil
	}
	v, err, _ := e.group.Do(key, func() (any, error) {
		if a, ok := e.cache.Get(key); ok {
			return a, nil
		}
		a, err := e.loadOrCompile(key, placeholder)
		if err != nil {
			return nil, err
		}
		e.cache.Add(key, a)
		return a, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Artifacts), nil
}

// Cached returns the artifacts currently held in memory, from the least to
// the most recently used.
func (e *Engine) Cached() []*Artifacts {
	return e.cache.Values()
}

func (e *Engine) loadOrCompile(key string, placeholder frontend.Circuit) (*Artifacts, error) {
	if e.dir != "" {
		a, err := readArtifacts(e.dir, key)
		if err == nil {
			log.Debugw("circuit artifacts loaded from disk", "key", key, "dir", e.dir)
			return a, nil
		}
		if !errors.Is(err, errArtifactsNotFound) {
			log.Warnw("ignoring unreadable circuit artifacts", "key", key, "error", err.Error())
		}
	}
	a, err := Compile(key, placeholder)
	if err != nil {
		return nil, err
	}
	if e.dir != "" {
		if err := writeArtifacts(e.dir, a); err != nil {
			log.Warnw("could not persist circuit artifacts", "key", key, "error", err.Error())
		}
	}
	return a, nil
}

// Compile compiles the placeholder into a constraint system and runs the
// Groth16 setup. It does not touch any cache.
func Compile(key string, placeholder frontend.Circuit) (*Artifacts, error) {
	startTime := time.Now()
	ccs, err := frontend.Compile(field(), r1cs.NewBuilder, placeholder)
	if err != nil {
		return nil, fmt.Errorf("failed to compile circuit %s: %w", key, err)
	}
	log.Took("circuit compiled", startTime, "key", key, "constraints", ccs.GetNbConstraints())

	startTime = time.Now()
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, fmt.Errorf("failed to setup circuit %s: %w", key, err)
	}
	log.Took("circuit setup done", startTime, "key", key)
	return &Artifacts{Key: key, CCS: ccs, ProvingKey: pk, VerifyingKey: vk}, nil
}

// Prove generates a proof of the assignment with the recursion friendly
// prover options.
func (e *Engine) Prove(a *Artifacts, assignment frontend.Circuit) (groth16.Proof, error) {
	startTime := time.Now()
	proof, err := e.prove(Curve, a.CCS, a.ProvingKey, assignment, ProverOptions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to prove %s: %w", a.Key, err)
	}
	log.Took("proof generated", startTime, "key", a.Key)
	return proof, nil
}

// Verify checks a proof against the public part of the assignment. Errors
// returned by the verifier are wrapped with ErrVerification.
func Verify(vk groth16.VerifyingKey, proof groth16.Proof, publicAssignment frontend.Circuit) error {
	w, err := frontend.NewWitness(publicAssignment, field(), frontend.PublicOnly())
	if err != nil {
		return fmt.Errorf("failed to create public witness: %w", err)
	}
	if err := groth16.Verify(proof, vk, w, VerifierOptions()...); err != nil {
		return fmt.Errorf("%w: %w", ErrVerification, err)
	}
	return nil
}
