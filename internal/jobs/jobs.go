// Package jobs runs pipeline executions asynchronously. A single background
// worker drains a queue of submitted jobs, so runs never overlap and the
// SQLite store sees one writer at a time.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"paperguild/internal/core"
	"paperguild/internal/logger"
	"paperguild/internal/pipeline"
)

// Store is the subset of the storage layer the runner needs.
type Store interface {
	CreateJob(job core.Job) error
	MarkJobRunning(id string) error
	MarkJobDone(id string) error
	MarkJobFailed(id, errText string) error
	AppendJobLog(jobID, msg string) error
	SaveResult(result core.Result) error
	SummarizedPapers() ([]core.Paper, error)
	LatestIdeas() ([]core.Idea, error)
	LatestTrends() ([]core.Trend, error)
	LatestPlan() (*core.Plan, error)
}

// Runner queues jobs and executes them one at a time.
type Runner struct {
	store    Store
	pipeline *pipeline.Pipeline
	queue    chan core.Job
	timeout  time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewRunner creates a runner with the given queue capacity. timeout bounds a
// single pipeline run; zero means no bound.
func NewRunner(store Store, p *pipeline.Pipeline, queueSize int, timeout time.Duration) *Runner {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Runner{
		store:    store,
		pipeline: p,
		queue:    make(chan core.Job, queueSize),
		timeout:  timeout,
	}
}

// Start launches the worker goroutine.
func (r *Runner) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.wg.Add(1)
	go r.work(ctx)
}

// Stop drains nothing: the current job finishes, queued jobs stay queued in
// the database and will show as queued after restart.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	close(r.queue)
	r.wg.Wait()
	if r.cancel != nil {
		r.cancel()
	}
}

// Submit records a new job and enqueues it. It returns the job id
// immediately; execution happens on the worker.
func (r *Runner) Submit(topic string, days, maxResults int) (string, error) {
	job := core.Job{
		ID:         uuid.NewString(),
		Topic:      topic,
		Days:       days,
		MaxResults: maxResults,
	}
	if err := r.store.CreateJob(job); err != nil {
		return "", fmt.Errorf("recording job: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return "", fmt.Errorf("runner is shut down")
	}
	select {
	case r.queue <- job:
		return job.ID, nil
	default:
		return "", fmt.Errorf("job queue is full")
	}
}

func (r *Runner) work(ctx context.Context) {
	defer r.wg.Done()
	for job := range r.queue {
		if ctx.Err() != nil {
			return
		}
		r.execute(ctx, job)
	}
}

func (r *Runner) execute(ctx context.Context, job core.Job) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	if err := r.store.MarkJobRunning(job.ID); err != nil {
		logger.Error("failed to mark job running", err, "job", job.ID)
		return
	}

	logf := func(line string) {
		if err := r.store.AppendJobLog(job.ID, line); err != nil {
			logger.Error("failed to append job log", err, "job", job.ID)
		}
	}

	outcome, err := r.pipeline.Run(ctx, pipeline.Params{
		Topic:      job.Topic,
		Days:       job.Days,
		MaxResults: job.MaxResults,
	}, logf)
	if err != nil {
		logger.Error("job failed", err, "job", job.ID)
		if merr := r.store.MarkJobFailed(job.ID, err.Error()); merr != nil {
			logger.Error("failed to mark job failed", merr, "job", job.ID)
		}
		return
	}

	if err := r.snapshotResult(job.ID, outcome); err != nil {
		logger.Error("failed to store job result", err, "job", job.ID)
		if merr := r.store.MarkJobFailed(job.ID, err.Error()); merr != nil {
			logger.Error("failed to mark job failed", merr, "job", job.ID)
		}
		return
	}

	if err := r.store.MarkJobDone(job.ID); err != nil {
		logger.Error("failed to mark job done", err, "job", job.ID)
	}
	logger.Info("job finished", "job", job.ID,
		"fetched", outcome.Fetched, "summarized", outcome.Summarized, "reviewed", outcome.Reviewed)
}

// snapshotResult freezes what the run produced so the result endpoint serves
// the state at completion time, not whatever a later run overwrote. When a
// run left the trend or plan snapshot untouched (small corpus, empty
// candidate pool) the stored snapshot fills the gap.
func (r *Runner) snapshotResult(jobID string, outcome pipeline.Outcome) error {
	papers, err := r.store.SummarizedPapers()
	if err != nil {
		return fmt.Errorf("loading papers for snapshot: %w", err)
	}
	ideas, err := r.store.LatestIdeas()
	if err != nil {
		return fmt.Errorf("loading ideas for snapshot: %w", err)
	}

	trends := outcome.Trends
	if len(trends) == 0 {
		stored, err := r.store.LatestTrends()
		if err != nil {
			return fmt.Errorf("loading trends for snapshot: %w", err)
		}
		trends = stored
	}

	plan := outcome.ReadingPlan
	if plan == "" {
		stored, err := r.store.LatestPlan()
		if err != nil {
			return fmt.Errorf("loading plan for snapshot: %w", err)
		}
		if stored != nil {
			plan = stored.Text
		}
	}

	return r.store.SaveResult(core.Result{
		JobID:       jobID,
		ReadingPlan: plan,
		Trends:      trends,
		Papers:      papers,
		Ideas:       ideas,
	})
}
