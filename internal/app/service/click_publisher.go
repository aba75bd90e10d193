package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sifan077/SafeURL/internal/app/model"
)

// JetStreamPublisher is the subset of nats.JetStreamContext used to publish clicks.
type JetStreamPublisher interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// ClickPublisher is a ClickCounter that queues clicks on NATS JetStream
// instead of touching the store on the redirect path.
type ClickPublisher struct {
	js  JetStreamPublisher
	now func() time.Time
}

// NewClickPublisher creates a new click event publisher
func NewClickPublisher(js JetStreamPublisher) *ClickPublisher {
	return &ClickPublisher{js: js, now: time.Now}
}

// Increment publishes a click event for code.
func (p *ClickPublisher) Increment(ctx context.Context, code string) error {
	event := model.ClickEvent{
		ID:        uuid.New().String(),
		LinkCode:  code,
		Timestamp: p.now().UTC(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	// The event ID doubles as the JetStream dedup key.
	if _, err := p.js.Publish(model.ClickStreamSubject, data, nats.Context(ctx), nats.MsgId(event.ID)); err != nil {
		return fmt.Errorf("publish click event: %w", err)
	}
	return nil
}
