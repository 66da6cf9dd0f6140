package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aragonzkresearch/rovote/census"
	"github.com/aragonzkresearch/rovote/census/censusdb"
	"github.com/aragonzkresearch/rovote/circuits/aggregator"
	"github.com/aragonzkresearch/rovote/circuits/membership"
	"github.com/aragonzkresearch/rovote/prover"
	stg "github.com/aragonzkresearch/rovote/storage"
	"github.com/aragonzkresearch/rovote/types"
	"github.com/go-chi/chi/v5"
)

// newAggregation starts a background job folding every proof stored for the
// process and census into one aggregation proof. The number of proofs must
// be a power of two. The job ID is returned right away.
// POST /aggregations
func (a *API) newAggregation(w http.ResponseWriter, r *http.Request) {
	req := &AggregationRequest{}
	if !decodeBody(w, r, req) {
		return
	}
	tree, err := a.censusDB.Load(req.CensusRoot)
	if err != nil {
		if errors.Is(err, censusdb.ErrCensusNotFound) {
			ErrCensusNotFound.Withf("root %s", req.CensusRoot.Hex()).Write(w)
			return
		}
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	pkgs, err := a.storage.ListProofs(a.chainID, req.ProcessID)
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	// a process could have proofs against several censuses
	selected := []*membership.ProofPackage{}
	for _, pkg := range pkgs {
		if pkg.CensusRoot.Equal(tree.Root()) {
			selected = append(selected, pkg)
		}
	}
	if _, err := census.HeightFor(len(selected)); err != nil {
		ErrInvalidBatchSize.Withf("process %d has %d proofs", req.ProcessID, len(selected)).Write(w)
		return
	}
	actx := aggregator.Context{ChainID: a.chainID, ProcessID: req.ProcessID, CensusRoot: tree.Root()}
	job := a.jobs.run(actx, len(selected), func(ctx context.Context, id string) (*aggregator.Node, error) {
		return a.aggregate(ctx, id, actx, tree.Height(), selected)
	})
	httpWriteJSON(w, jobResponse(&job))
}

// aggregate reduces the proof packages and stores the resulting node under
// the job ID.
func (a *API) aggregate(ctx context.Context, id string, actx aggregator.Context, height int,
	pkgs []*membership.ProofPackage,
) (*aggregator.Node, error) {
	artifacts, err := a.engine().Artifacts(membership.Key(height), membership.Placeholder(height))
	if err != nil {
		return nil, err
	}
	nodes := make([]*aggregator.Node, len(pkgs))
	for i, pkg := range pkgs {
		if nodes[i], err = aggregator.FromMembership(pkg, artifacts.VerifyingKey); err != nil {
			return nil, fmt.Errorf("proof %d: %w", i, err)
		}
	}
	root, err := a.sequencer.Reduce(ctx, actx, nodes)
	if err != nil {
		return nil, err
	}
	if err := a.storage.SetAggregate(id, actx, root); err != nil {
		return nil, err
	}
	return root, nil
}

// aggregation reports the state of an aggregation job. Jobs no longer held
// in memory are served from the storage once done.
// GET /aggregations/{jobId}
func (a *API) aggregation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, JobURLParam)
	if job, ok := a.jobs.get(id); ok {
		resp, err := jobResultResponse(jobResponse(&job), job.Result)
		if err != nil {
			ErrGenericInternalServerError.WithErr(err).Write(w)
			return
		}
		httpWriteJSON(w, resp)
		return
	}
	node, actx, err := a.storage.Aggregate(id)
	if err != nil {
		if errors.Is(err, stg.ErrNotFound) {
			ErrJobNotFound.Withf("job %s", id).Write(w)
			return
		}
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	resp, err := jobResultResponse(&AggregationJobResponse{
		JobID:      id,
		Status:     JobStatusDone,
		ChainID:    actx.ChainID,
		ProcessID:  actx.ProcessID,
		CensusRoot: actx.CensusRoot,
		Proofs:     len(node.Nullifiers),
	}, node)
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, resp)
}

func jobResponse(job *aggregationJob) *AggregationJobResponse {
	resp := &AggregationJobResponse{
		JobID:      job.ID,
		Status:     job.Status,
		ChainID:    job.Context.ChainID,
		ProcessID:  job.Context.ProcessID,
		CensusRoot: job.Context.CensusRoot,
		Proofs:     job.Proofs,
		StartedAt:  job.StartedAt,
		FinishedAt: job.FinishedAt,
	}
	if job.Err != nil {
		resp.Error = job.Err.Error()
	}
	return resp
}

// jobResultResponse fills the proof fields of the response with node, if
// any.
func jobResultResponse(resp *AggregationJobResponse, node *aggregator.Node) (*AggregationJobResponse, error) {
	if node == nil {
		return resp, nil
	}
	resp.Level = node.Level
	resp.Nullifiers = node.Nullifiers
	if node.KeyHash != nil {
		resp.KeyHash = new(types.BigInt).SetBigInt(node.KeyHash)
	}
	if node.Proof != nil {
		proof, err := prover.EncodeProof(node.Proof)
		if err != nil {
			return nil, err
		}
		resp.Proof = proof
	}
	if node.VerifyingKey != nil {
		vk, err := prover.EncodeVerifyingKey(node.VerifyingKey)
		if err != nil {
			return nil, err
		}
		resp.VerifyingKey = vk
	}
	return resp, nil
}
