// Package worker delivers drafts and receipts by email in the background.
// It is decoupled from the HTTP layer: the api package holds a
// worker.Enqueuer interface and calls Enqueue. It never imports the concrete
// Runner or Job types.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ─── ENQUEUER INTERFACE ───────────────────────────────────────────────────────

// Enqueuer is the narrow interface the api package uses to hand off email
// delivery after a generation or payment.
//
// The concrete implementation is *Runner. In tests, any struct with an Enqueue
// method satisfies the interface.
type Enqueuer interface {
	Enqueue(ctx context.Context, d Delivery) error
}

// ErrQueueFull is returned by Enqueue when the buffer has no room.
var ErrQueueFull = errors.New("worker: queue is full")

// ─── RUNNER ───────────────────────────────────────────────────────────────────

// RunnerConfig holds tuning parameters for the Runner. Zero fields are
// replaced with the values from DefaultRunnerConfig().
type RunnerConfig struct {
	// Workers is the number of concurrent job goroutines. Default: 2.
	Workers int

	// QueueSize is the channel buffer. Default: Workers*16.
	QueueSize int

	// JobTimeout is the per-attempt context deadline. Default: 30s.
	JobTimeout time.Duration

	// MaxRetries is the number of attempts before a delivery is dropped.
	// Default: 3.
	MaxRetries int

	// Backoff is the first retry delay; it doubles per attempt. Default: 1s.
	Backoff time.Duration
}

// DefaultRunnerConfig returns safe production defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Workers:    2,
		QueueSize:  32,
		JobTimeout: 30 * time.Second,
		MaxRetries: 3,
		Backoff:    time.Second,
	}
}

// Runner manages a pool of worker goroutines fed by an in-process channel.
// Deliveries are not persisted; anything still queued at shutdown is logged
// and dropped.
type Runner struct {
	job    *Job
	cfg    RunnerConfig
	logger *slog.Logger

	queue chan Delivery
	wg    sync.WaitGroup
}

// NewRunner constructs a Runner. Call Start() to begin processing.
func NewRunner(job *Job, cfg RunnerConfig, logger *slog.Logger) *Runner {
	def := DefaultRunnerConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.Workers * 16
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = def.JobTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = def.Backoff
	}

	return &Runner{
		job:    job,
		cfg:    cfg,
		logger: logger,
		queue:  make(chan Delivery, cfg.QueueSize),
	}
}

// Enqueue pushes a delivery onto the in-process channel. It never blocks the
// HTTP response: a full queue is an error.
func (r *Runner) Enqueue(_ context.Context, d Delivery) error {
	select {
	case r.queue <- d:
		r.logger.Info("worker: enqueued delivery", "delivery_id", d.ID, "kind", d.Kind)
		return nil
	default:
		return ErrQueueFull
	}
}

// Start launches the worker pool. It blocks until ctx is cancelled and every
// worker has returned. Call it in a goroutine from main:
//
//	go runner.Start(ctx)
func (r *Runner) Start(ctx context.Context) {
	r.logger.Info("worker: starting", "workers", r.cfg.Workers, "queue", r.cfg.QueueSize)

	for i := range r.cfg.Workers {
		r.wg.Add(1)
		go r.work(ctx, i)
	}

	r.wg.Wait()
	if n := len(r.queue); n > 0 {
		r.logger.Warn("worker: dropping queued deliveries on shutdown", "count", n)
	}
	r.logger.Info("worker: stopped")
}

// work is the inner loop for each worker goroutine.
func (r *Runner) work(ctx context.Context, id int) {
	defer r.wg.Done()
	log := r.logger.With("worker_id", id)
	log.Debug("worker: goroutine started")

	for {
		select {
		case <-ctx.Done():
			log.Debug("worker: goroutine stopping")
			return
		case d := <-r.queue:
			r.runWithRetry(ctx, d, log)
		}
	}
}

// runWithRetry executes the job up to MaxRetries times with exponential
// back-off. Invalid deliveries fail immediately.
func (r *Runner) runWithRetry(ctx context.Context, d Delivery, log *slog.Logger) {
	var lastErr error

	for attempt := 1; attempt <= r.cfg.MaxRetries; attempt++ {
		jobCtx, cancel := context.WithTimeout(ctx, r.cfg.JobTimeout)
		lastErr = r.job.Run(jobCtx, d)
		cancel()

		if lastErr == nil {
			log.Info("worker: job completed", "delivery_id", d.ID, "attempt", attempt)
			return
		}
		if errors.Is(lastErr, ErrInvalidDelivery) {
			break
		}

		log.Warn("worker: job attempt failed",
			"delivery_id", d.ID,
			"attempt", attempt,
			"max", r.cfg.MaxRetries,
			"error", lastErr,
		)

		if attempt < r.cfg.MaxRetries {
			backoff := r.cfg.Backoff << (attempt - 1)
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}

	log.Error("worker: job permanently failed", "delivery_id", d.ID, "kind", d.Kind, "error", lastErr)
}
