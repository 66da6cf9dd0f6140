// e2e-test runs a full election: it builds a census, proves the membership
// of some of its voters and aggregates their proofs. By default everything
// runs in process; with --api the census and the proofs are sent to a
// running node, which aggregates them.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aragonzkresearch/rovote/api"
	"github.com/aragonzkresearch/rovote/api/client"
	"github.com/aragonzkresearch/rovote/census"
	"github.com/aragonzkresearch/rovote/circuits/aggregator"
	"github.com/aragonzkresearch/rovote/circuits/membership"
	"github.com/aragonzkresearch/rovote/log"
	"github.com/aragonzkresearch/rovote/prover"
	"github.com/aragonzkresearch/rovote/sequencer"
	"github.com/aragonzkresearch/rovote/types"
	"github.com/aragonzkresearch/rovote/voter"
	flag "github.com/spf13/pflag"
)

// scenario describes the election to run.
type scenario struct {
	CensusSize int
	ChainID    uint64
	ProcessID  uint64
	Voters     []int
}

func (s scenario) validate() error {
	if _, err := census.HeightFor(s.CensusSize); err != nil {
		return fmt.Errorf("census size %d: %w", s.CensusSize, err)
	}
	if _, err := census.HeightFor(len(s.Voters)); err != nil {
		return fmt.Errorf("number of voters %d: %w", len(s.Voters), sequencer.ErrInvalidBatchSize)
	}
	seen := map[int]bool{}
	for _, i := range s.Voters {
		if i < 0 || i >= s.CensusSize {
			return fmt.Errorf("voter index %d out of the census", i)
		}
		if seen[i] {
			return fmt.Errorf("voter index %d repeated", i)
		}
		seen[i] = true
	}
	if s.ChainID == 0 && s.ProcessID == 0 {
		return membership.ErrInvalidElection
	}
	return nil
}

func main() {
	var (
		censusSize = flag.Int("censusSize", 256, "number of public keys in the census, a power of two")
		chainID    = flag.Uint64("chainId", 42, "chain ID of the election")
		processID  = flag.Uint64("processId", 3, "process ID of the election")
		voterIdx   = flag.IntSlice("voters", []int{84, 101}, "census indexes of the voters casting a proof")
		workers    = flag.Int("workers", 0, "maximum number of proofs generated at the same time (0 uses every CPU)")
		apiURL     = flag.String("api", "", "URL of a running node; if empty the election runs in process")
		timeout    = flag.Duration("timeout", time.Hour, "timeout for the test")
		logLevel   = flag.String("log.level", "info", "log level (debug, info, warn, error)")
	)
	flag.Parse()
	log.Init(*logLevel, "stdout", nil)

	s := scenario{CensusSize: *censusSize, ChainID: *chainID, ProcessID: *processID, Voters: *voterIdx}
	if err := s.validate(); err != nil {
		log.Fatalf("invalid scenario: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	log.Infow("generating census", "size", s.CensusSize)
	all, tree, err := newCensus(s.CensusSize)
	if err != nil {
		log.Fatalf("failed to build census: %v", err)
	}
	voters := make([]*voter.Voter, len(s.Voters))
	for i, idx := range s.Voters {
		voters[i] = all[idx]
	}
	engine, err := prover.NewEngine(0)
	if err != nil {
		log.Fatalf("failed to create proof engine: %v", err)
	}
	seq := sequencer.New(engine, *workers)

	if *apiURL != "" {
		if err := runRemote(ctx, *apiURL, s, seq, tree, voters, *timeout); err != nil {
			log.Fatalf("election failed: %v", err)
		}
		return
	}
	if err := runLocal(ctx, s, seq, tree, voters); err != nil {
		log.Fatalf("election failed: %v", err)
	}
}

// newCensus creates n random voters and the census of their public keys.
func newCensus(n int) ([]*voter.Voter, *census.Tree, error) {
	voters := make([]*voter.Voter, n)
	pks := make([]types.Digest, n)
	for i := range voters {
		v, err := voter.New()
		if err != nil {
			return nil, nil, err
		}
		voters[i], pks[i] = v, v.PublicKey
	}
	tree, err := census.Build(pks)
	if err != nil {
		return nil, nil, err
	}
	return voters, tree, nil
}

// runLocal proves and aggregates everything in process and checks the
// nullifiers of the aggregation match the ones of the voters.
func runLocal(ctx context.Context, s scenario, seq *sequencer.Sequencer, tree *census.Tree, voters []*voter.Voter) error {
	startTime := time.Now()
	root, err := seq.AggregateVoters(ctx, tree, s.ChainID, s.ProcessID, voters)
	if err != nil {
		return err
	}
	actx := aggregator.Context{ChainID: s.ChainID, ProcessID: s.ProcessID, CensusRoot: tree.Root()}
	if err := aggregator.VerifyNode(actx, root); err != nil {
		return err
	}
	if err := checkNullifiers(s, voters, root.Nullifiers); err != nil {
		return err
	}
	for i, nf := range root.Nullifiers {
		log.Infow("nullifier", "voter", s.Voters[i], "value", nf.String())
	}
	log.Infow("election aggregated",
		"voters", len(voters),
		"level", root.Level,
		"censusRoot", tree.Root().Hex(),
		"took", time.Since(startTime).String())
	return nil
}

// runRemote sends the census and the proofs to the node and waits for it to
// aggregate them.
func runRemote(ctx context.Context, url string, s scenario, seq *sequencer.Sequencer, tree *census.Tree,
	voters []*voter.Voter, timeout time.Duration,
) error {
	cli, err := client.New(url)
	if err != nil {
		return err
	}
	info, err := cli.Info()
	if err != nil {
		return err
	}
	if info.ChainID != s.ChainID {
		return fmt.Errorf("node serves chain %d, not %d", info.ChainID, s.ChainID)
	}
	if _, err := cli.NewCensus(tree.Leaves()); err != nil {
		return fmt.Errorf("create census: %w", err)
	}
	nodes, err := seq.ProveVoters(ctx, tree, s.ChainID, s.ProcessID, voters)
	if err != nil {
		return err
	}
	for i, node := range nodes {
		if _, err := cli.SubmitProof(&membership.ProofPackage{
			Proof:        node.Proof,
			Nullifier:    node.Nullifiers[0],
			ChainID:      s.ChainID,
			ProcessID:    s.ProcessID,
			CensusRoot:   tree.Root(),
			CensusHeight: node.CensusHeight,
		}); err != nil {
			return fmt.Errorf("submit proof of voter %d: %w", s.Voters[i], err)
		}
		log.Infow("proof submitted", "voter", s.Voters[i], "nullifier", node.Nullifiers[0].Hex())
	}
	job, err := cli.Aggregate(s.ProcessID, tree.Root())
	if err != nil {
		return err
	}
	log.Infow("aggregation started", "jobID", job.JobID, "proofs", job.Proofs)
	job, err = cli.WaitAggregation(job.JobID, 5*time.Second, timeout)
	if err != nil {
		return err
	}
	if job.Status != api.JobStatusDone {
		return fmt.Errorf("aggregation job %s: %s", job.JobID, job.Error)
	}
	log.Infow("election aggregated by the node", "jobID", job.JobID, "level", job.Level, "proofs", len(job.Nullifiers))
	return nil
}

// checkNullifiers compares the aggregated nullifiers with the ones derived
// from the secret keys of the voters, in order.
func checkNullifiers(s scenario, voters []*voter.Voter, got []types.Digest) error {
	if len(got) != len(voters) {
		return fmt.Errorf("got %d nullifiers for %d voters", len(got), len(voters))
	}
	for i, v := range voters {
		expected, err := v.Nullifier(s.ChainID, s.ProcessID)
		if err != nil {
			return err
		}
		if !expected.Equal(got[i]) {
			return fmt.Errorf("nullifier %d does not match voter %d", i, s.Voters[i])
		}
	}
	return nil
}

func init() {
	flag.CommandLine.SortFlags = false
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: e2e-test [flags]\n\n")
		flag.PrintDefaults()
	}
}
