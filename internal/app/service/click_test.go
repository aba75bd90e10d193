package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sifan077/SafeURL/internal/app/model"
	"github.com/sifan077/SafeURL/internal/app/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJetStream struct {
	subject string
	data    []byte
	opts    int
	err     error
}

func (f *fakeJetStream) Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error) {
	f.subject = subj
	f.data = data
	f.opts = len(opts)
	if f.err != nil {
		return nil, f.err
	}
	return &nats.PubAck{Stream: model.ClickStreamName, Sequence: 1}, nil
}

type clickCounterFunc func(ctx context.Context, code string) error

func (f clickCounterFunc) Increment(ctx context.Context, code string) error { return f(ctx, code) }

func TestClickPublisher_Increment(t *testing.T) {
	js := &fakeJetStream{}
	p := NewClickPublisher(js)

	require.NoError(t, p.Increment(context.Background(), "abc1234"))
	assert.Equal(t, model.ClickStreamSubject, js.subject)
	assert.Equal(t, 2, js.opts)

	var event model.ClickEvent
	require.NoError(t, json.Unmarshal(js.data, &event))
	assert.Equal(t, "abc1234", event.LinkCode)
	assert.NotEmpty(t, event.ID)
	assert.WithinDuration(t, time.Now(), event.Timestamp, time.Minute)
}

func TestClickPublisher_PublishError(t *testing.T) {
	boom := errors.New("nats: no responders available for request")
	p := NewClickPublisher(&fakeJetStream{err: boom})

	assert.ErrorIs(t, p.Increment(context.Background(), "abc1234"), boom)
}

func TestClickConsumer_Handle(t *testing.T) {
	event, err := json.Marshal(model.ClickEvent{ID: "1", LinkCode: "abc1234", Timestamp: time.Now()})
	require.NoError(t, err)

	tests := []struct {
		name    string
		data    []byte
		err     error
		wantAck bool
		wantHit bool
	}{
		{name: "counted", data: event, wantAck: true, wantHit: true},
		{name: "missing link is dropped", data: event, err: repository.ErrLinkNotFound, wantAck: true, wantHit: true},
		{name: "store failure is redelivered", data: event, err: errors.New("db down"), wantAck: false, wantHit: true},
		{name: "malformed payload is dropped", data: []byte("{not json"), wantAck: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			counter := clickCounterFunc(func(ctx context.Context, code string) error {
				_, hasDeadline := ctx.Deadline()
				assert.True(t, hasDeadline)
				got = code
				return tt.err
			})
			c := NewClickConsumer(nil, nil, counter, time.Second)

			assert.Equal(t, tt.wantAck, c.handle(context.Background(), tt.data))
			if tt.wantHit {
				assert.Equal(t, "abc1234", got)
			} else {
				assert.Empty(t, got)
			}
		})
	}
}

func TestDirectClickCounter(t *testing.T) {
	var calls int
	counter := NewDirectClickCounter(clickRepoFunc(func(_ context.Context, code string) error {
		calls++
		assert.Equal(t, "abc1234", code)
		return nil
	}))

	require.NoError(t, counter.Increment(context.Background(), "abc1234"))
	assert.Equal(t, 1, calls)
}

type clickRepoFunc func(ctx context.Context, code string) error

func (f clickRepoFunc) Increment(ctx context.Context, code string) error { return f(ctx, code) }

func TestClickConsumerConfig(t *testing.T) {
	cfg := clickConsumerConfig()

	assert.Equal(t, model.ClickConsumerName, cfg.Durable)
	assert.Equal(t, nats.AckExplicitPolicy, cfg.AckPolicy)
	assert.Equal(t, clickMaxDeliver, cfg.MaxDeliver)
}

func TestPause(t *testing.T) {
	assert.True(t, pause(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	assert.False(t, pause(ctx, time.Minute))
	assert.Less(t, time.Since(start), time.Second)
}
