package sequencer

import (
	"context"
	"fmt"
	"time"

	"github.com/aragonzkresearch/rovote/census"
	"github.com/aragonzkresearch/rovote/circuits/aggregator"
	"github.com/aragonzkresearch/rovote/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Reduce folds the nodes pairwise into a single node covering all of them,
// keeping their order. Every pair of sibling subtrees is reduced
// concurrently and a parent task starts as soon as both of its children are
// done. The number of aggregation proofs generated at the same time is
// bounded by Workers.
//
// When ctx is cancelled no new aggregation starts, but the ones already
// being proven run to completion.
func (s *Sequencer) Reduce(ctx context.Context, actx aggregator.Context, nodes []*aggregator.Node) (*aggregator.Node, error) {
	if _, err := census.HeightFor(len(nodes)); err != nil {
		return nil, fmt.Errorf("%w: got %d proofs", ErrInvalidBatchSize, len(nodes))
	}
	startTime := time.Now()
	slots := semaphore.NewWeighted(int64(s.workers()))
	root, err := s.reduce(ctx, slots, actx, nodes)
	if err != nil {
		return nil, err
	}
	log.Infow("proofs reduced",
		"proofs", len(nodes),
		"level", root.Level,
		"processID", actx.ProcessID,
		"took", time.Since(startTime).String())
	return root, nil
}

func (s *Sequencer) reduce(ctx context.Context, slots *semaphore.Weighted, actx aggregator.Context,
	nodes []*aggregator.Node,
) (*aggregator.Node, error) {
	if len(nodes) == 1 {
		return nodes[0], nil
	}
	half := len(nodes) / 2
	var left, right *aggregator.Node
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		left, err = s.reduce(gctx, slots, actx, nodes[:half])
		return err
	})
	g.Go(func() (err error) {
		right, err = s.reduce(gctx, slots, actx, nodes[half:])
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	// the slot is only held while proving, never while waiting on children
	if err := slots.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer slots.Release(1)
	node, err := s.aggregate(actx, left, right)
	if err != nil {
		return nil, fmt.Errorf("aggregating level %d: %w", left.Level+1, err)
	}
	return node, nil
}
