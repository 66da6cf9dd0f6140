// Package sequencer schedules the proving work of an election: it proves the
// membership of many voters in parallel and folds their proofs pairwise into
// a single aggregation proof.
package sequencer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/aragonzkresearch/rovote/census"
	"github.com/aragonzkresearch/rovote/circuits/aggregator"
	"github.com/aragonzkresearch/rovote/circuits/membership"
	"github.com/aragonzkresearch/rovote/log"
	"github.com/aragonzkresearch/rovote/prover"
	"github.com/aragonzkresearch/rovote/voter"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidBatchSize is returned when the number of proofs to reduce is not
// a non-zero power of two.
var ErrInvalidBatchSize = errors.New("number of proofs must be a non-zero power of two")

// AggregateFunc combines two nodes of the same level into one of the next.
type AggregateFunc func(ctx aggregator.Context, left, right *aggregator.Node) (*aggregator.Node, error)

// Sequencer runs proving tasks over a shared proof engine, with at most
// Workers proofs being generated at the same time.
type Sequencer struct {
	Engine  *prover.Engine
	Workers int

	aggregate AggregateFunc
}

// New creates a Sequencer. If workers is not positive, the number of CPUs
// is used.
func New(engine *prover.Engine, workers int) *Sequencer {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	s := &Sequencer{Engine: engine, Workers: workers}
	s.aggregate = func(ctx aggregator.Context, left, right *aggregator.Node) (*aggregator.Node, error) {
		return aggregator.AggregateNodes(s.Engine, ctx, left, right)
	}
	return s
}

// SetAggregateFunc replaces the function used to combine two nodes.
func (s *Sequencer) SetAggregateFunc(fn AggregateFunc) {
	s.aggregate = fn
}

func (s *Sequencer) workers() int {
	if s.Workers <= 0 {
		return 1
	}
	return s.Workers
}

// ProveVoters generates the membership proof of every voter in parallel and
// returns them as level 0 nodes, in the order of the voters. It stops at the
// first error.
func (s *Sequencer) ProveVoters(ctx context.Context, tree *census.Tree, chainID, processID uint64,
	voters []*voter.Voter,
) ([]*aggregator.Node, error) {
	startTime := time.Now()
	nodes := make([]*aggregator.Node, len(voters))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers())
	for i, v := range voters {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			pkg, vk, err := membership.ProveVoter(s.Engine, tree, v, chainID, processID)
			if err != nil {
				return fmt.Errorf("voter %d: %w", i, err)
			}
			node, err := aggregator.FromMembership(pkg, vk)
			if err != nil {
				return fmt.Errorf("voter %d: %w", i, err)
			}
			nodes[i] = node
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	log.Infow("membership proofs generated",
		"voters", len(voters),
		"processID", processID,
		"took", time.Since(startTime).String())
	return nodes, nil
}

// AggregateVoters proves every voter and reduces their proofs into a single
// aggregation node.
func (s *Sequencer) AggregateVoters(ctx context.Context, tree *census.Tree, chainID, processID uint64,
	voters []*voter.Voter,
) (*aggregator.Node, error) {
	if _, err := census.HeightFor(len(voters)); err != nil {
		return nil, fmt.Errorf("%w: got %d voters", ErrInvalidBatchSize, len(voters))
	}
	nodes, err := s.ProveVoters(ctx, tree, chainID, processID, voters)
	if err != nil {
		return nil, err
	}
	return s.Reduce(ctx, aggregator.Context{
		ChainID:    chainID,
		ProcessID:  processID,
		CensusRoot: tree.Root(),
	}, nodes)
}
