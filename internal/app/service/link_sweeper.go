package service

import (
	"context"
	"time"

	"github.com/sifan077/SafeURL/internal/app/repository"
	"go.uber.org/zap"
)

const defaultSweepInterval = 10 * time.Minute

// LinkSweeper periodically deletes expired links from the store.
type LinkSweeper struct {
	logger   *zap.Logger
	repo     repository.LinkRepository
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
	stopChan chan struct{}
	done     chan struct{}
}

// NewLinkSweeper creates a sweeper running every interval.
func NewLinkSweeper(logger *zap.Logger, repo repository.LinkRepository, interval, timeout time.Duration) *LinkSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	return &LinkSweeper{
		logger:   logger,
		repo:     repo,
		interval: interval,
		timeout:  timeout,
		now:      time.Now,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins the periodic sweep.
func (s *LinkSweeper) Start() {
	go s.run()
}

// Stop ends the sweep and waits for an in-flight pass to finish.
func (s *LinkSweeper) Stop() {
	close(s.stopChan)
	<-s.done
}

func (s *LinkSweeper) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-s.stopChan:
			s.logger.Info("link sweeper stopped")
			return
		}
	}
}

// Sweep runs a single pass and returns how many links were removed.
func (s *LinkSweeper) Sweep() int64 {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	before := s.now().UTC()
	affected, err := s.repo.DeleteExpired(ctx, before)
	if err != nil {
		s.logger.Error("failed to delete expired links", zap.Error(err))
		return 0
	}

	if affected > 0 {
		s.logger.Info("deleted expired links",
			zap.Int64("count", affected),
			zap.Time("expired_before", before),
		)
	}
	return affected
}
