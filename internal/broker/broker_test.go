package broker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"auto-order/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	messages []kafka.Message
	err      error
}

func (w *recordingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func paidEvent() *models.OrderEvent {
	return &models.OrderEvent{
		BaseEvent: models.BaseEvent{EventID: "evt-1", EventType: models.EventTypeOrderPaid, Timestamp: time.Now()},
		OrderID:   12,
		UserID:    42,
		Amount:    36200,
		Status:    models.StatusPaid,
	}
}

func TestPublishOrderEvent_KeysByOrder(t *testing.T) {
	w := &recordingWriter{}
	pub := NewEventPublisher(NewProducerWithWriter(w))

	require.NoError(t, pub.PublishOrderEvent(context.Background(), paidEvent()))
	require.Len(t, w.messages, 1)
	assert.Equal(t, "order-12", string(w.messages[0].Key))

	var decoded models.OrderEvent
	require.NoError(t, json.Unmarshal(w.messages[0].Value, &decoded))
	assert.Equal(t, models.EventTypeOrderPaid, decoded.EventType)
	assert.Equal(t, int64(36200), decoded.Amount)
}

func TestPublishOrderEvent_WriterError(t *testing.T) {
	w := &recordingWriter{err: errors.New("broker down")}
	pub := NewEventPublisher(NewProducerWithWriter(w))

	err := pub.PublishOrderEvent(context.Background(), paidEvent())
	assert.ErrorContains(t, err, "broker down")
}

func TestHandleMessage_RoutesOrderEvents(t *testing.T) {
	h := NewEventHandler()
	var got *models.OrderEvent
	h.OnOrderEvent(func(ctx context.Context, e *models.OrderEvent) error {
		got = e
		return nil
	})

	value, err := json.Marshal(paidEvent())
	require.NoError(t, err)
	require.NoError(t, h.HandleMessage(context.Background(), kafka.Message{Value: value}))

	require.NotNil(t, got)
	assert.Equal(t, int64(12), got.OrderID)
	assert.Equal(t, models.StatusPaid, got.Status)
}

func TestHandleMessage_IgnoresUnknownAndRejectsGarbage(t *testing.T) {
	h := NewEventHandler()
	called := false
	h.OnOrderEvent(func(ctx context.Context, e *models.OrderEvent) error {
		called = true
		return nil
	})

	assert.NoError(t, h.HandleMessage(context.Background(), kafka.Message{Value: []byte(`{"event_type":"SOMETHING_ELSE"}`)}))
	assert.False(t, called)

	err := h.HandleMessage(context.Background(), kafka.Message{Value: []byte(`not json`)})
	assert.True(t, Malformed.Has(err))
}

// queueReader hands out queued messages and blocks once they run out
type queueReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
}

func (r *queueReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *queueReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *queueReader) Close() error { return nil }

func (r *queueReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func testConsumer(r *queueReader) *Consumer {
	c := NewConsumerWithReader(r, "order-events")
	c.retryBase = time.Millisecond
	c.retryMax = 5 * time.Millisecond
	return c
}

func TestStartConsuming_RetriesBeforeMovingOn(t *testing.T) {
	r := &queueReader{queue: []kafka.Message{{Offset: 1}, {Offset: 2}}}
	c := testConsumer(r)

	var mu sync.Mutex
	var handled []int64
	failures := 0
	handler := func(ctx context.Context, msg kafka.Message) error {
		mu.Lock()
		defer mu.Unlock()
		if msg.Offset == 1 && failures < 3 {
			failures++
			return errors.New("chat unreachable")
		}
		handled = append(handled, msg.Offset)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.StartConsuming(ctx, handler) }()

	require.Eventually(t, func() bool { return len(r.commits()) == 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	assert.Equal(t, []int64{1, 2}, r.commits())
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, failures)
	assert.Equal(t, []int64{1, 2}, handled)
}

func TestStartConsuming_StopsWithoutCommittingFailedMessage(t *testing.T) {
	r := &queueReader{queue: []kafka.Message{{Offset: 1}, {Offset: 2}}}
	c := testConsumer(r)

	attempts := make(chan struct{}, 1)
	handler := func(ctx context.Context, msg kafka.Message) error {
		select {
		case attempts <- struct{}{}:
		default:
		}
		return errors.New("chat unreachable")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.StartConsuming(ctx, handler) }()

	<-attempts
	<-attempts
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Empty(t, r.commits())
}

func TestStartConsuming_SkipsMalformedMessage(t *testing.T) {
	r := &queueReader{queue: []kafka.Message{{Offset: 1, Value: []byte("not json")}}}
	c := testConsumer(r)
	h := NewEventHandler()
	h.OnOrderEvent(func(ctx context.Context, e *models.OrderEvent) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.StartConsuming(ctx, h.HandleMessage) }()

	require.Eventually(t, func() bool { return len(r.commits()) == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
