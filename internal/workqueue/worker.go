package workqueue

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/validation-engine/internal/model"
	"github.com/ternarybob/validation-engine/internal/node"
)

// WorkflowResolver maps a job's WorkflowID to the static step graph the
// node.Runner should execute for it. Workflow composition is declared at
// startup (§4.5), never built dynamically from a job's payload.
type WorkflowResolver interface {
	Resolve(workflowID string) (node.Workflow, bool)
}

// WorkerLoop is the long-lived goroutine that serves one platform's
// queue: dequeue, rate-limit, run the workflow, record the outcome,
// repeat. One loop per platform, all sharing the same Store so a job
// enqueued for "amazon" is only ever picked up by the "amazon" loop.
type WorkerLoop struct {
	Store       *Store
	Platform    model.Platform
	Workflows   WorkflowResolver
	Runner      *node.Runner
	WaitTime    time.Duration // minimum spacing between dequeues for this platform
	PollEvery   time.Duration // how often to check an empty queue
	Logger      arbor.ILogger
	PlatformCfg *model.PlatformConfig

	running atomic.Bool
}

// Start begins serving jobs in a background goroutine. Stop requests a
// graceful halt: the loop finishes whatever job it is running, then exits
// without picking up a new one.
func (w *WorkerLoop) Start(ctx context.Context) {
	w.running.Store(true)
	go w.run(ctx)
}

func (w *WorkerLoop) Stop() {
	w.running.Store(false)
}

func (w *WorkerLoop) run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.Logger.Error().Interface("panic", r).Str("platform", string(w.Platform)).Msg("worker loop recovered from panic")
		}
	}()

	pollEvery := w.PollEvery
	if pollEvery <= 0 {
		pollEvery = 2 * time.Second
	}

	for w.running.Load() {
		if ctx.Err() != nil {
			return
		}

		job, ok, err := w.Store.DequeueJobByPlatform(w.Platform)
		if err != nil {
			w.Logger.Warn().Err(err).Str("platform", string(w.Platform)).Msg("dequeue failed")
			sleepCtx(ctx, pollEvery)
			continue
		}
		if !ok {
			sleepCtx(ctx, pollEvery)
			continue
		}

		w.waitForRateLimit(ctx)
		_ = w.Store.SetRateLimitTracker(w.Platform, time.Now())
		w.runJob(ctx, *job)
	}
}

func (w *WorkerLoop) waitForRateLimit(ctx context.Context) {
	if w.WaitTime <= 0 {
		return
	}
	last, ok := w.Store.GetRateLimitTracker(w.Platform)
	if !ok {
		return
	}
	if remaining := w.WaitTime - time.Since(last); remaining > 0 {
		sleepCtx(ctx, remaining)
	}
}

func (w *WorkerLoop) runJob(ctx context.Context, job model.Job) {
	logger := w.Logger.WithCorrelationId(job.JobID.String())

	wf, ok := w.Workflows.Resolve(job.WorkflowID)
	if !ok {
		logger.Warn().Str("workflow_id", job.WorkflowID).Msg("unknown workflow, failing job")
		job.Status = model.JobStatusFailed
		if err := w.Store.UpdateJob(job); err != nil {
			logger.Warn().Err(err).Msg("failed to record unknown-workflow job as failed")
		}
		return
	}

	nc := &node.Context{
		JobID:          job.JobID.String(),
		WorkflowID:     job.WorkflowID,
		Platform:       job.Platform,
		PlatformConfig: w.PlatformCfg,
		Params:         job.Params,
		Logger:         logger,
		Shared:         node.NewSharedState(),
	}

	_, runErr := w.Runner.Run(ctx, wf, nc)
	if runErr != nil {
		logger.Warn().Err(runErr).Str("workflow_id", job.WorkflowID).Msg("workflow run failed")
		job.Status = model.JobStatusFailed
	} else {
		job.Status = model.JobStatusCompleted
	}

	if err := w.Store.UpdateJob(job); err != nil {
		logger.Warn().Err(err).Msg("failed to persist job outcome")
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// NewJobID is a small convenience for callers enqueuing ad-hoc jobs
// outside of an HTTP handler's own ID generation.
func NewJobID() uuid.UUID { return uuid.New() }
