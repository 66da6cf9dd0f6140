package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aragonzkresearch/rovote/circuits/aggregator"
	"github.com/aragonzkresearch/rovote/log"
	"github.com/google/uuid"
)

// jobRetention is how long a finished job is kept in memory. Finished
// aggregations remain available from the storage afterwards.
const jobRetention = 10 * time.Minute

// aggregationJob tracks an aggregation running in the background.
type aggregationJob struct {
	ID         string
	Context    aggregator.Context
	Proofs     int
	Status     string
	Err        error
	Result     *aggregator.Node
	StartedAt  time.Time
	FinishedAt time.Time

	cancel context.CancelFunc
}

// jobsManager runs the aggregation jobs, each one bounded by jobTimeout, and
// periodically forgets the finished ones.
type jobsManager struct {
	mtx            sync.RWMutex
	jobs           map[string]*aggregationJob
	wg             sync.WaitGroup
	jobTimeout     time.Duration
	retention      time.Duration
	tickerInterval time.Duration
	closeOnce      sync.Once

	ctx    context.Context
	cancel context.CancelFunc
}

// newJobsManager creates a jobs manager. If no ticker interval is provided,
// it defaults to one minute.
func newJobsManager(jobTimeout time.Duration, tickerInterval ...time.Duration) *jobsManager {
	interval := time.Minute
	if len(tickerInterval) > 0 {
		interval = tickerInterval[0]
	}
	return &jobsManager{
		jobs:           make(map[string]*aggregationJob),
		jobTimeout:     jobTimeout,
		retention:      jobRetention,
		tickerInterval: interval,
	}
}

// start launches the goroutine purging finished jobs. Every job runs under
// ctx, so cancelling it aborts them.
func (jm *jobsManager) start(ctx context.Context) {
	jm.ctx, jm.cancel = context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(jm.tickerInterval)
		defer ticker.Stop()
		for {
			select {
			case <-jm.ctx.Done():
				return
			case <-ticker.C:
				jm.purge()
			}
		}
	}()
	log.Infow("aggregation jobs manager started", "timeout", jm.jobTimeout.String())
}

// stop cancels the running jobs and waits for them to return.
func (jm *jobsManager) stop() {
	jm.closeOnce.Do(func() {
		if jm.cancel != nil {
			jm.cancel()
		}
		jm.wg.Wait()
	})
}

// purge removes the jobs that finished more than retention ago.
func (jm *jobsManager) purge() {
	jm.mtx.Lock()
	defer jm.mtx.Unlock()
	now := time.Now()
	for id, job := range jm.jobs {
		if !job.FinishedAt.IsZero() && now.Sub(job.FinishedAt) > jm.retention {
			log.Debugw("aggregation job purged", "jobID", id)
			delete(jm.jobs, id)
		}
	}
}

// run registers a new job and executes fn in the background, returning a
// copy of the job as registered. The job context is cancelled on timeout or
// when the manager stops.
func (jm *jobsManager) run(actx aggregator.Context, proofs int,
	fn func(ctx context.Context, id string) (*aggregator.Node, error),
) aggregationJob {
	ctx, cancel := context.WithTimeout(jm.ctx, jm.jobTimeout)
	job := &aggregationJob{
		ID:        uuid.New().String(),
		Context:   actx,
		Proofs:    proofs,
		Status:    JobStatusRunning,
		StartedAt: time.Now(),
		cancel:    cancel,
	}
	jm.mtx.Lock()
	jm.jobs[job.ID] = job
	registered := *job
	jm.mtx.Unlock()

	jm.wg.Add(1)
	go func() {
		defer jm.wg.Done()
		defer cancel()
		node, err := fn(ctx, job.ID)
		jm.finish(job.ID, node, err)
	}()
	return registered
}

func (jm *jobsManager) finish(id string, node *aggregator.Node, err error) {
	jm.mtx.Lock()
	defer jm.mtx.Unlock()
	job, ok := jm.jobs[id]
	if !ok {
		return
	}
	job.FinishedAt = time.Now()
	if err != nil {
		job.Status = JobStatusFailed
		job.Err = err
		log.Errorw(err, fmt.Sprintf("aggregation job %s failed", id))
		return
	}
	job.Status = JobStatusDone
	job.Result = node
	log.Infow("aggregation job done",
		"jobID", id,
		"proofs", job.Proofs,
		"took", job.FinishedAt.Sub(job.StartedAt).String())
}

// get returns a copy of the job, so it can be read while the job runs.
func (jm *jobsManager) get(id string) (aggregationJob, bool) {
	jm.mtx.RLock()
	defer jm.mtx.RUnlock()
	job, ok := jm.jobs[id]
	if !ok {
		return aggregationJob{}, false
	}
	return *job, true
}
