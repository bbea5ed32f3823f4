package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
)

// Resender delivers a recorded notification again
type Resender interface {
	Resend(ctx context.Context, notification *entity.Notification) error
}

// NotificationRetryConfig holds configuration for the retry worker
type NotificationRetryConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
}

// DefaultNotificationRetryConfig returns default configuration
func DefaultNotificationRetryConfig() NotificationRetryConfig {
	return NotificationRetryConfig{
		PollInterval: time.Minute,
		BatchSize:    20,
		MaxAttempts:  5,
	}
}

// NotificationRetryWorker periodically resends FAILED notifications whose
// attempts are below the limit. Decided invoices are skipped by the Resender.
type NotificationRetryWorker struct {
	config           NotificationRetryConfig
	notificationRepo port.NotificationRepository
	resender         Resender
	logger           *zap.Logger

	// Runtime state
	mu          sync.RWMutex
	cancel      context.CancelFunc
	done        chan struct{}
	isRunning   bool
	resentCount int
	failedCount int
	lastError   error
}

// NewNotificationRetryWorker creates a new retry worker
func NewNotificationRetryWorker(
	config NotificationRetryConfig,
	notificationRepo port.NotificationRepository,
	resender Resender,
	logger *zap.Logger,
) *NotificationRetryWorker {
	defaults := DefaultNotificationRetryConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	return &NotificationRetryWorker{
		config:           config,
		notificationRepo: notificationRepo,
		resender:         resender,
		logger:           logger,
	}
}

// Start begins the polling loop
func (w *NotificationRetryWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isRunning {
		return fmt.Errorf("notification retry worker already running")
	}

	var loopCtx context.Context
	loopCtx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.isRunning = true

	w.logger.Info("NotificationRetryWorker started",
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Int("batch_size", w.config.BatchSize),
		zap.Int("max_attempts", w.config.MaxAttempts))

	go w.pollLoop(loopCtx, w.done)
	return nil
}

// Stop cancels the loop and waits for the in-flight batch to finish
func (w *NotificationRetryWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	w.mu.RLock()
	defer w.mu.RUnlock()
	w.logger.Info("NotificationRetryWorker stopped",
		zap.Int("resent_count", w.resentCount),
		zap.Int("failed_count", w.failedCount))
	return nil
}

// Name returns the worker name for identification
func (w *NotificationRetryWorker) Name() string {
	return "NotificationRetryWorker"
}

func (w *NotificationRetryWorker) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.logger.Error("Failed to retry notifications", zap.Error(err))
			}
		}
	}
}

// RunOnce processes one batch and returns how many notifications it handled
func (w *NotificationRetryWorker) RunOnce(ctx context.Context) (int, error) {
	pending, err := w.notificationRepo.GetRetryable(ctx, w.config.MaxAttempts, w.config.BatchSize)
	if err != nil {
		w.setLastError(err)
		return 0, fmt.Errorf("failed to load retryable notifications: %w", err)
	}

	handled := 0
	for _, n := range pending {
		if ctx.Err() != nil {
			break
		}
		handled++
		if err := w.resender.Resend(ctx, n); err != nil {
			w.logger.Warn("Notification retry failed",
				zap.Int64("notification_id", n.ID),
				zap.Int64("invoice_id", n.InvoiceID),
				zap.Int("attempts", n.Attempts),
				zap.Error(err))
			w.mu.Lock()
			w.failedCount++
			w.lastError = err
			w.mu.Unlock()
			continue
		}
		w.mu.Lock()
		w.resentCount++
		w.mu.Unlock()
	}
	return handled, nil
}

func (w *NotificationRetryWorker) setLastError(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastError = err
}

// Stats returns counters since construction
func (w *NotificationRetryWorker) Stats() (resent, failed int, lastError error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.resentCount, w.failedCount, w.lastError
}
