package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Detached task names.
const (
	TaskCachePopulate   = "cache_populate"
	TaskCacheInvalidate = "cache_invalidate"
	TaskClickIncrement  = "click_increment"
)

// Background runs fire-and-forget side effects. Tasks get their own context,
// bounded by timeout, so they outlive the request that started them. Failures
// are logged and counted, never returned.
type Background struct {
	logger  *zap.Logger
	metrics *Metrics
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewBackground returns a runner whose tasks are cut off after timeout.
func NewBackground(logger *zap.Logger, metrics *Metrics, timeout time.Duration) *Background {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Background{logger: logger, metrics: metrics, timeout: timeout}
}

// Go dispatches fn without waiting for it.
func (b *Background) Go(task, code string, fn func(ctx context.Context) error) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			b.metrics.BackgroundFailures.WithLabelValues(task).Inc()
			b.logger.Error("background task failed",
				zap.String("task", task),
				zap.String("code", code),
				zap.Error(err),
			)
		}
	}()
}

// Wait blocks until every dispatched task finished or ctx is done.
func (b *Background) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
