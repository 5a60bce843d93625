package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spasuite/booking-api/internal/model"
	"github.com/spasuite/booking-api/internal/repository"

	"github.com/spasuite/booking-api/pkg/logger"
	"github.com/spasuite/booking-api/pkg/metrics"
)

// JobProcessor delivers one claimed notification job
type JobProcessor interface {
	ProcessJob(ctx context.Context, job *model.NotificationJob) error
}

type DispatcherConfig struct {
	Workers       int
	BatchSize     int
	PollInterval  time.Duration
	MaxAttempts   int
	RetryBaseWait time.Duration
}

// Dispatcher drains the notification queues. Each queue gets its own pool of
// polling workers; jobs are claimed with row locks so concurrent workers
// never pick up the same job twice.
type Dispatcher struct {
	repo      repository.NotificationRepository
	processor JobProcessor
	config    DispatcherConfig
	logger    *logger.Logger
	metrics   *metrics.Metrics
}

func NewDispatcher(
	repo repository.NotificationRepository,
	processor JobProcessor,
	config DispatcherConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Dispatcher {
	if config.Workers <= 0 {
		panic("Workers must be greater than 0")
	}
	if config.BatchSize <= 0 {
		panic("BatchSize must be greater than 0")
	}
	if config.PollInterval <= 0 {
		panic("PollInterval must be greater than 0")
	}
	if config.MaxAttempts <= 0 {
		panic("MaxAttempts must be greater than 0")
	}

	return &Dispatcher{
		repo:      repo,
		processor: processor,
		config:    config,
		logger:    logger,
		metrics:   metrics,
	}
}

// Start runs the worker pools until ctx is cancelled and blocks until every
// worker has drained its in-flight batch.
func (d *Dispatcher) Start(ctx context.Context) {
	queues := []model.QueueName{model.QueueSMS, model.QueueEmail, model.QueueReport}

	var wg sync.WaitGroup
	for _, queue := range queues {
		for i := 0; i < d.config.Workers; i++ {
			wg.Add(1)
			go func(queue model.QueueName, worker int) {
				defer wg.Done()
				d.runWorker(ctx, queue, worker)
			}(queue, i)
		}
	}

	d.logger.Info("notification dispatcher started",
		"queues", len(queues), "workers_per_queue", d.config.Workers)
	wg.Wait()
	d.logger.Info("notification dispatcher stopped")
}

func (d *Dispatcher) runWorker(ctx context.Context, queue model.QueueName, worker int) {
	ticker := time.NewTicker(d.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.drainBatch(ctx, queue); err != nil {
				d.logger.Error(err, "failed to drain queue batch",
					"queue", string(queue), "worker", worker)
			}
		}
	}
}

func (d *Dispatcher) drainBatch(ctx context.Context, queue model.QueueName) error {
	start := time.Now()
	jobs, err := d.repo.ClaimPending(ctx, queue, d.config.BatchSize)
	d.metrics.DatabaseLatency.WithLabelValues("claim_pending").Observe(time.Since(start).Seconds())
	if err != nil {
		d.metrics.DatabaseOperations.WithLabelValues("claim_pending", "error").Inc()
		return fmt.Errorf("failed to claim pending jobs: %w", err)
	}
	d.metrics.DatabaseOperations.WithLabelValues("claim_pending", "success").Inc()

	if depth, err := d.repo.PendingCount(ctx, queue); err == nil {
		d.metrics.QueueDepth.WithLabelValues(string(queue)).Set(float64(depth))
	}

	for _, job := range jobs {
		d.dispatch(ctx, job)
	}
	return nil
}

func (d *Dispatcher) dispatch(ctx context.Context, job *model.NotificationJob) {
	err := d.processor.ProcessJob(ctx, job)
	if err == nil {
		if markErr := d.repo.MarkSent(ctx, job.ID); markErr != nil {
			d.logger.Error(markErr, "failed to mark job sent", "job_id", job.ID.String())
			return
		}
		d.metrics.JobsProcessed.WithLabelValues(string(job.Queue)).Inc()
		return
	}

	attempts := job.Attempts + 1
	if attempts >= d.config.MaxAttempts {
		// Retained in failed state for inspection and manual requeue
		if markErr := d.repo.MarkFailed(ctx, job.ID, attempts, err.Error()); markErr != nil {
			d.logger.Error(markErr, "failed to mark job failed", "job_id", job.ID.String())
			return
		}
		d.metrics.JobsFailed.WithLabelValues(string(job.Queue)).Inc()
		d.logger.Error(err, "job failed permanently",
			"job_id", job.ID.String(), "queue", string(job.Queue), "attempts", attempts)
		return
	}

	runAt := time.Now().Add(d.backoff(attempts))
	if markErr := d.repo.MarkRetry(ctx, job.ID, attempts, err.Error(), runAt); markErr != nil {
		d.logger.Error(markErr, "failed to schedule job retry", "job_id", job.ID.String())
		return
	}
	d.metrics.JobRetries.WithLabelValues(string(job.Queue)).Inc()
	d.logger.Warn("job delivery failed, retry scheduled",
		"job_id", job.ID.String(), "queue", string(job.Queue),
		"attempts", attempts, "run_at", runAt.Format(time.RFC3339))
}

// backoff doubles the base wait per prior attempt
func (d *Dispatcher) backoff(attempts int) time.Duration {
	wait := d.config.RetryBaseWait
	for i := 1; i < attempts; i++ {
		wait *= 2
	}
	return wait
}
