package jobs

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"

	gojob "github.com/singularitybridge/sb-api-services-v2-sub008/adapters/gojob"
	"github.com/singularitybridge/sb-api-services-v2-sub008/core"
)

const defaultPurgeInterval = time.Hour

// CachePurgeJob owns the expired-entry sweep over the event cache. Schedule
// enqueues one purge message per interval bucket; Handle executes the sweep
// when a worker picks the message up.
type CachePurgeJob struct {
	Purger   core.EventCachePurger
	Enqueuer core.JobEnqueuer
	Interval time.Duration
	Logger   core.Logger
	Metrics  core.MetricsRecorder
	Now      func() time.Time
}

func NewCachePurgeJob(purger core.EventCachePurger, enqueuer core.JobEnqueuer) (*CachePurgeJob, error) {
	if purger == nil {
		return nil, jobsInternal("jobs: event cache purger is required")
	}
	return &CachePurgeJob{
		Purger:   purger,
		Enqueuer: enqueuer,
		Interval: defaultPurgeInterval,
		Metrics:  core.NopMetricsRecorder(),
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

// EnqueuePurge publishes one purge message. The idempotency key is bucketed
// by interval so duplicate schedulers collapse to a single message.
func (j *CachePurgeJob) EnqueuePurge(ctx context.Context) error {
	if j == nil || j.Enqueuer == nil {
		return jobsInternal("jobs: job enqueuer is required")
	}
	now := j.now()
	bucket := now.Truncate(j.interval())
	return j.Enqueuer.Enqueue(ctx, &core.JobExecutionMessage{
		JobID:          gojob.JobIDCachePurge,
		IdempotencyKey: fmt.Sprintf("%s:%d", gojob.JobIDCachePurge, bucket.Unix()),
		DedupPolicy:    "drop",
	})
}

// Handle runs the sweep for one dequeued purge message.
func (j *CachePurgeJob) Handle(ctx context.Context, msg *core.JobExecutionMessage) error {
	if j == nil || j.Purger == nil {
		return jobsInternal("jobs: event cache purger is required")
	}
	if msg == nil {
		return jobsBadInput("jobs: execution message is required")
	}
	if jobID := strings.TrimSpace(msg.JobID); jobID != gojob.JobIDCachePurge {
		return jobsBadInput(fmt.Sprintf("jobs: unexpected job id %q", jobID))
	}

	now := j.now()
	purged, err := j.Purger.PurgeExpired(ctx, now)
	if err != nil {
		j.logError(ctx, "cache purge failed", "error", err)
		return goerrors.Wrap(err, goerrors.CategoryInternal, "jobs: purge expired cache entries").
			WithTextCode(core.ServiceErrorOperationFailed)
	}

	j.metrics().IncrementCounter(ctx, "jobs.cache_purge.removed", int64(purged), nil)
	j.logDebug(ctx, "cache purge completed", "purged", purged)
	return nil
}

// ProcessOne dequeues a single delivery and settles it. Handler failures
// nack with the supplied retry policy attempt bookkeeping.
func (j *CachePurgeJob) ProcessOne(ctx context.Context, dequeuer core.JobDequeuer, attempt int) error {
	if j == nil {
		return jobsInternal("jobs: cache purge job is nil")
	}
	if dequeuer == nil {
		return jobsInternal("jobs: job dequeuer is required")
	}

	delivery, err := dequeuer.Dequeue(ctx)
	if err != nil {
		return err
	}
	if delivery == nil {
		return nil
	}

	if err := j.Handle(ctx, delivery.Message()); err != nil {
		nackErr := delivery.Nack(ctx, core.JobNackOptions{
			Delay:   backoffDelay(attempt),
			Requeue: true,
			Reason:  err.Error(),
		})
		if nackErr != nil {
			return nackErr
		}
		return err
	}
	return delivery.Ack(ctx)
}

// Run schedules purge messages until the context is cancelled.
func (j *CachePurgeJob) Run(ctx context.Context) error {
	if j == nil || j.Enqueuer == nil {
		return jobsInternal("jobs: job enqueuer is required")
	}

	ticker := time.NewTicker(j.interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := j.EnqueuePurge(ctx); err != nil {
				j.logError(ctx, "schedule cache purge failed", "error", err)
			}
		}
	}
}

func backoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * time.Second
}

func (j *CachePurgeJob) interval() time.Duration {
	if j != nil && j.Interval > 0 {
		return j.Interval
	}
	return defaultPurgeInterval
}

func (j *CachePurgeJob) now() time.Time {
	if j != nil && j.Now != nil {
		return j.Now().UTC()
	}
	return time.Now().UTC()
}

func (j *CachePurgeJob) metrics() core.MetricsRecorder {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return core.NopMetricsRecorder()
}

func (j *CachePurgeJob) logDebug(ctx context.Context, message string, args ...any) {
	if j == nil || j.Logger == nil {
		return
	}
	j.logger(ctx).Debug(message, args...)
}

func (j *CachePurgeJob) logError(ctx context.Context, message string, args ...any) {
	if j == nil || j.Logger == nil {
		return
	}
	j.logger(ctx).Error(message, args...)
}

func (j *CachePurgeJob) logger(ctx context.Context) core.Logger {
	logger := j.Logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	return logger
}

func jobsBadInput(message string) error {
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithTextCode(core.ServiceErrorBadInput)
}

func jobsInternal(message string) error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithTextCode(core.ServiceErrorInternal)
}
