package worker

import (
	"context"
	"log"
	"time"

	"shorts-pipeline/internal/models"
	"shorts-pipeline/internal/telemetry"
)

// JobStore is the slice of the job table the worker loop needs. Claiming
// is a single atomic pending->processing transition.
type JobStore interface {
	ClaimPending(ctx context.Context) (models.Job, bool, error)
	MarkCompleted(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, reason string) error
	CountByStatus(ctx context.Context, status string) (int64, error)
}

// JobRunner processes one claimed job to completion or failure.
type JobRunner interface {
	Process(ctx context.Context, job models.Job) error
}

// Processor owns the polling cadence: claim one job, run it, persist the
// terminal state, repeat until the context is cancelled. It never crashes
// on a failed job; store errors only slow it down.
type Processor struct {
	store        JobStore
	runner       JobRunner
	pollInterval time.Duration
	errorBackoff time.Duration
}

func NewProcessor(store JobStore, runner JobRunner, pollInterval, errorBackoff time.Duration) *Processor {
	if pollInterval <= 0 {
		pollInterval = 10 * time.Second
	}
	if errorBackoff <= 0 {
		errorBackoff = 30 * time.Second
	}
	return &Processor{
		store:        store,
		runner:       runner,
		pollInterval: pollInterval,
		errorBackoff: errorBackoff,
	}
}

// Run executes the worker loop until ctx is done.
func (p *Processor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		job, ok, err := p.store.ClaimPending(ctx)
		if err != nil {
			// Store unreachable: no job was claimed, so nothing to
			// fail. Back off harder to avoid a tight crash loop.
			log.Printf("worker: claim job: %v", err)
			telemetry.WorkerErrors.Inc()
			if !sleepCtx(ctx, p.errorBackoff) {
				return ctx.Err()
			}
			continue
		}
		if !ok {
			if !sleepCtx(ctx, p.pollInterval) {
				return ctx.Err()
			}
			continue
		}

		if pending, err := p.store.CountByStatus(ctx, models.StatusPending); err == nil {
			telemetry.JobsPending.Set(float64(pending))
		}

		telemetry.JobsInFlight.Inc()
		runErr := p.runner.Process(ctx, job)
		telemetry.JobsInFlight.Dec()

		if runErr != nil {
			log.Printf("worker: job %s failed: %v", job.ID, runErr)
			if err := p.store.MarkFailed(ctx, job.ID, runErr.Error()); err != nil {
				log.Printf("worker: mark job %s failed: %v", job.ID, err)
				telemetry.WorkerErrors.Inc()
				if !sleepCtx(ctx, p.errorBackoff) {
					return ctx.Err()
				}
			}
			telemetry.JobsFailed.Inc()
			continue
		}

		log.Printf("worker: job %s completed", job.ID)
		if err := p.store.MarkCompleted(ctx, job.ID); err != nil {
			log.Printf("worker: mark job %s completed: %v", job.ID, err)
			telemetry.WorkerErrors.Inc()
			if !sleepCtx(ctx, p.errorBackoff) {
				return ctx.Err()
			}
			continue
		}
		telemetry.JobsCompleted.Inc()
	}
}

// sleepCtx waits for d or context cancellation, reporting false when the
// context ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
