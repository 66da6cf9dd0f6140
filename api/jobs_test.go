package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aragonzkresearch/rovote/circuits/aggregator"
	"github.com/aragonzkresearch/rovote/types"
	qt "github.com/frankban/quicktest"
)

// waitFinished polls the job until it leaves the running status.
func waitFinished(c *qt.C, jm *jobsManager, id string) aggregationJob {
	c.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, ok := jm.get(id)
		c.Assert(ok, qt.IsTrue)
		if job.Status != JobStatusRunning {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	c.Fatalf("job %s did not finish", id)
	return aggregationJob{}
}

func TestNewJobsManager(t *testing.T) {
	c := qt.New(t)
	jm := newJobsManager(time.Minute)
	c.Assert(jm.jobTimeout, qt.Equals, time.Minute)
	c.Assert(jm.tickerInterval, qt.Equals, time.Minute)
	c.Assert(jm.retention, qt.Equals, jobRetention)
	c.Assert(jm.ctx, qt.IsNil)

	jm = newJobsManager(time.Minute, 50*time.Millisecond)
	c.Assert(jm.tickerInterval, qt.Equals, 50*time.Millisecond)
}

func TestJobsManagerRun(t *testing.T) {
	c := qt.New(t)
	jm := newJobsManager(time.Minute)
	jm.start(context.Background())
	defer jm.stop()
	actx := aggregator.Context{ChainID: 42, ProcessID: 3}

	c.Run("done", func(c *qt.C) {
		release := make(chan struct{})
		job := jm.run(actx, 2, func(context.Context, string) (*aggregator.Node, error) {
			<-release
			return &aggregator.Node{Level: 1, Nullifiers: []types.Digest{types.DigestFromUint64s(1)}}, nil
		})
		c.Assert(job.Status, qt.Equals, JobStatusRunning)
		c.Assert(job.ID, qt.Not(qt.Equals), "")
		close(release)

		done := waitFinished(c, jm, job.ID)
		c.Assert(done.Status, qt.Equals, JobStatusDone)
		c.Assert(done.Result.Level, qt.Equals, 1)
		c.Assert(done.FinishedAt.IsZero(), qt.IsFalse)
		c.Assert(done.Context, qt.Equals, actx)
	})

	c.Run("failed", func(c *qt.C) {
		job := jm.run(actx, 2, func(context.Context, string) (*aggregator.Node, error) {
			return nil, errors.New("prover failure")
		})
		failed := waitFinished(c, jm, job.ID)
		c.Assert(failed.Status, qt.Equals, JobStatusFailed)
		c.Assert(failed.Err, qt.ErrorMatches, "prover failure")
		c.Assert(jobResponse(&failed).Error, qt.Equals, "prover failure")
	})

	c.Run("unique ids", func(c *qt.C) {
		noop := func(context.Context, string) (*aggregator.Node, error) { return nil, nil }
		a := jm.run(actx, 1, noop)
		b := jm.run(actx, 1, noop)
		c.Assert(a.ID, qt.Not(qt.Equals), b.ID)
	})
}

func TestJobsManagerTimeout(t *testing.T) {
	c := qt.New(t)
	jm := newJobsManager(20 * time.Millisecond)
	jm.start(context.Background())
	defer jm.stop()

	job := jm.run(aggregator.Context{}, 2, func(ctx context.Context, _ string) (*aggregator.Node, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	failed := waitFinished(c, jm, job.ID)
	c.Assert(failed.Status, qt.Equals, JobStatusFailed)
	c.Assert(failed.Err, qt.ErrorIs, context.DeadlineExceeded)
}

func TestJobsManagerStopCancelsJobs(t *testing.T) {
	c := qt.New(t)
	jm := newJobsManager(time.Hour)
	jm.start(context.Background())

	started := make(chan struct{})
	job := jm.run(aggregator.Context{}, 2, func(ctx context.Context, _ string) (*aggregator.Node, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	<-started
	jm.stop()
	// stop waits for the running jobs
	stopped, ok := jm.get(job.ID)
	c.Assert(ok, qt.IsTrue)
	c.Assert(stopped.Status, qt.Equals, JobStatusFailed)
	c.Assert(stopped.Err, qt.ErrorIs, context.Canceled)

	// stopping twice is harmless
	jm.stop()
}

func TestJobsManagerPurge(t *testing.T) {
	c := qt.New(t)
	jm := newJobsManager(time.Minute, 10*time.Millisecond)
	jm.retention = 0
	jm.start(context.Background())
	defer jm.stop()

	release := make(chan struct{})
	running := jm.run(aggregator.Context{}, 1, func(context.Context, string) (*aggregator.Node, error) {
		<-release
		return nil, nil
	})
	finished := jm.run(aggregator.Context{}, 1, func(context.Context, string) (*aggregator.Node, error) {
		return nil, nil
	})

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, ok := jm.get(finished.ID); !ok {
			break
		}
		if time.Now().After(deadline) {
			c.Fatal("finished job was not purged")
		}
		time.Sleep(10 * time.Millisecond)
	}
	_, ok := jm.get(running.ID)
	c.Assert(ok, qt.IsTrue)
	close(release)
}
