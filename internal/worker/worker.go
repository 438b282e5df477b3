package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/gamersmart/internal/domain"
	"github.com/dukerupert/gamersmart/internal/telemetry"
)

const jobTypeExpirePayments = "expire_stale_payments"

// Config holds worker configuration
type Config struct {
	// WorkerID uniquely identifies this worker instance in logs
	WorkerID string

	// PollInterval is how often to sweep for stale payments
	PollInterval time.Duration

	// ExpireAfter is how long a payment may stay pending
	ExpireAfter time.Duration

	// RunTimeout bounds a single sweep. Default: 30s
	RunTimeout time.Duration
}

// PaymentExpirer is the slice of the payment service the worker drives.
type PaymentExpirer interface {
	ExpireStalePayments(ctx context.Context, olderThan time.Duration) (int, error)
}

var _ PaymentExpirer = (domain.PaymentService)(nil)

// Worker periodically cancels payments that stayed pending too long, so the
// order can be paid again with a fresh reference.
type Worker struct {
	config   Config
	payments PaymentExpirer
	logger   *slog.Logger
}

// NewWorker creates a new stale-payment sweeper
func NewWorker(payments PaymentExpirer, config Config, logger *slog.Logger) *Worker {
	// Set defaults
	if config.WorkerID == "" {
		config.WorkerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}
	if config.PollInterval == 0 {
		config.PollInterval = 5 * time.Minute
	}
	if config.ExpireAfter == 0 {
		config.ExpireAfter = 24 * time.Hour
	}
	if config.RunTimeout == 0 {
		config.RunTimeout = 30 * time.Second
	}

	return &Worker{
		config:   config,
		payments: payments,
		logger:   logger.With("worker_id", config.WorkerID),
	}
}

// Start sweeps on every tick until the context is cancelled
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("worker starting",
		"poll_interval", w.config.PollInterval,
		"expire_after", w.config.ExpireAfter,
	)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker shutting down")
			return ctx.Err()

		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep and returns how many payments expired.
func (w *Worker) RunOnce(ctx context.Context) int {
	start := time.Now()

	runCtx, cancel := context.WithTimeout(ctx, w.config.RunTimeout)
	defer cancel()

	expired, err := w.payments.ExpireStalePayments(runCtx, w.config.ExpireAfter)

	if telemetry.Business != nil {
		telemetry.Business.JobDuration.WithLabelValues(jobTypeExpirePayments).Observe(time.Since(start).Seconds())
	}

	if err != nil {
		w.logger.Error("job failed",
			"job_type", jobTypeExpirePayments,
			"error", err,
		)
		if telemetry.Business != nil {
			telemetry.Business.JobsFailed.WithLabelValues(jobTypeExpirePayments).Inc()
		}
		return 0
	}

	if telemetry.Business != nil {
		telemetry.Business.JobsProcessed.WithLabelValues(jobTypeExpirePayments).Inc()
	}
	if expired > 0 {
		w.logger.Info("expired stale payments", "count", expired)
	} else {
		w.logger.Debug("no stale payments")
	}
	return expired
}
