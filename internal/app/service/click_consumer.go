package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sifan077/SafeURL/internal/app/model"
	"github.com/sifan077/SafeURL/internal/app/repository"
	"go.uber.org/zap"
)

const (
	clickFetchBatch   = 10
	clickFetchMaxWait = 5 * time.Second
	clickFetchBackoff = time.Second

	// A click that still fails after this many deliveries is dropped by the server.
	clickMaxDeliver     = 5
	clickRedeliverDelay = 2 * time.Second
)

// EnsureClickStream creates the click stream and its durable consumer if they
// do not exist yet.
func EnsureClickStream(js nats.JetStreamContext) error {
	if _, err := js.StreamInfo(model.ClickStreamName); err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:     model.ClickStreamName,
			Subjects: []string{model.ClickStreamSubject},
			MaxBytes: model.ClickStreamMaxBytes,
		})
		if err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
	}

	if _, err := js.ConsumerInfo(model.ClickStreamName, model.ClickConsumerName); err != nil {
		if _, err = js.AddConsumer(model.ClickStreamName, clickConsumerConfig()); err != nil {
			return fmt.Errorf("failed to create consumer: %w", err)
		}
	}
	return nil
}

func clickConsumerConfig() *nats.ConsumerConfig {
	return &nats.ConsumerConfig{
		Durable:    model.ClickConsumerName,
		AckPolicy:  nats.AckExplicitPolicy,
		MaxDeliver: clickMaxDeliver,
	}
}

// ClickConsumer drains click events from JetStream into the click counter.
type ClickConsumer struct {
	js      nats.JetStreamContext
	logger  *zap.Logger
	counter ClickCounter
	timeout time.Duration
	done    chan struct{}
}

// NewClickConsumer creates a new click event consumer. Each increment is
// bounded by timeout.
func NewClickConsumer(js nats.JetStreamContext, logger *zap.Logger, counter ClickCounter, timeout time.Duration) *ClickConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	return &ClickConsumer{
		js:      js,
		logger:  logger,
		counter: counter,
		timeout: timeout,
		done:    make(chan struct{}),
	}
}

// Start subscribes and consumes until ctx is cancelled.
func (c *ClickConsumer) Start(ctx context.Context) error {
	if err := EnsureClickStream(c.js); err != nil {
		return err
	}

	sub, err := c.js.PullSubscribe(model.ClickStreamSubject, model.ClickConsumerName)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	go c.consume(ctx, sub)
	return nil
}

// Done is closed once the consume loop has exited.
func (c *ClickConsumer) Done() <-chan struct{} {
	return c.done
}

func (c *ClickConsumer) consume(ctx context.Context, sub *nats.Subscription) {
	defer close(c.done)
	defer func() {
		if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			c.logger.Warn("failed to unsubscribe click consumer", zap.Error(err))
		}
	}()

	for {
		if ctx.Err() != nil {
			c.logger.Info("click consumer stopped")
			return
		}

		msgs, err := sub.Fetch(clickFetchBatch, nats.MaxWait(clickFetchMaxWait))
		if err != nil && !errors.Is(err, nats.ErrTimeout) {
			if errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrBadSubscription) {
				c.logger.Info("click consumer stopped", zap.Error(err))
				return
			}
			c.logger.Error("failed to fetch messages", zap.Error(err))
			if !pause(ctx, clickFetchBackoff) {
				c.logger.Info("click consumer stopped")
				return
			}
			continue
		}

		for _, msg := range msgs {
			if c.handle(ctx, msg.Data) {
				_ = msg.Ack()
			} else {
				_ = msg.NakWithDelay(clickRedeliverDelay)
			}
		}
	}
}

// pause sleeps for d and reports false if ctx ended first.
func pause(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// handle applies one event and reports whether it should be acknowledged.
// Clicks for links that no longer exist are dropped.
func (c *ClickConsumer) handle(ctx context.Context, data []byte) bool {
	var event model.ClickEvent
	if err := json.Unmarshal(data, &event); err != nil {
		c.logger.Error("failed to unmarshal click event", zap.Error(err))
		return true
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.counter.Increment(ctx, event.LinkCode)
	switch {
	case err == nil:
		c.logger.Debug("click counted",
			zap.String("id", event.ID),
			zap.String("link_code", event.LinkCode),
			zap.Time("timestamp", event.Timestamp),
		)
		return true
	case errors.Is(err, repository.ErrLinkNotFound):
		c.logger.Debug("dropping click for missing link", zap.String("link_code", event.LinkCode))
		return true
	default:
		c.logger.Error("failed to count click",
			zap.String("id", event.ID),
			zap.String("link_code", event.LinkCode),
			zap.Error(err))
		return false
	}
}
