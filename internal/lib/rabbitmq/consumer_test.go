package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscription-bot/internal/lib/sl"
)

type outcome struct {
	tag     uint64
	action  string
	requeue bool
}

type recordingAcker struct {
	mu       sync.Mutex
	outcomes []outcome
}

func (a *recordingAcker) Ack(tag uint64, _ bool) error {
	a.record(outcome{tag: tag, action: "ack"})
	return nil
}

func (a *recordingAcker) Nack(tag uint64, _ bool, requeue bool) error {
	a.record(outcome{tag: tag, action: "nack", requeue: requeue})
	return nil
}

func (a *recordingAcker) Reject(tag uint64, requeue bool) error {
	a.record(outcome{tag: tag, action: "reject", requeue: requeue})
	return nil
}

func (a *recordingAcker) record(o outcome) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.outcomes = append(a.outcomes, o)
}

func (a *recordingAcker) byTag() map[uint64]outcome {
	a.mu.Lock()
	defer a.mu.Unlock()
	res := make(map[uint64]outcome, len(a.outcomes))
	for _, o := range a.outcomes {
		res[o.tag] = o
	}
	return res
}

type fakeConsumer struct {
	deliveries chan amqp.Delivery
	err        error
}

func (f *fakeConsumer) Consume(string, string, bool, bool, bool, bool, amqp.Table) (<-chan amqp.Delivery, error) {
	return f.deliveries, f.err
}

func TestConsumerMessage_SettlesByHandlerResult(t *testing.T) {
	acker := &recordingAcker{}
	consumer := &fakeConsumer{deliveries: make(chan amqp.Delivery, 3)}
	consumer.deliveries <- amqp.Delivery{Acknowledger: acker, DeliveryTag: 1, Body: []byte("ok")}
	consumer.deliveries <- amqp.Delivery{Acknowledger: acker, DeliveryTag: 2, Body: []byte("retry")}
	consumer.deliveries <- amqp.Delivery{Acknowledger: acker, DeliveryTag: 3, Body: []byte("garbage")}
	close(consumer.deliveries)

	handler := func(_ context.Context, body []byte) error {
		switch string(body) {
		case "retry":
			return errors.New("telegram unavailable")
		case "garbage":
			return fmt.Errorf("decode: %w", ErrDrop)
		}
		return nil
	}

	err := ConsumerMessage(context.Background(), consumer, DeliverQueue, 2, sl.Discard(), handler)
	require.ErrorIs(t, err, ErrDeliveriesClosed)

	got := acker.byTag()
	require.Len(t, got, 3)
	assert.Equal(t, "ack", got[1].action)
	assert.Equal(t, outcome{tag: 2, action: "nack", requeue: true}, got[2])
	assert.Equal(t, outcome{tag: 3, action: "reject", requeue: false}, got[3])
}

func TestConsumerMessage_BoundsConcurrency(t *testing.T) {
	const limit = 2
	acker := &recordingAcker{}
	consumer := &fakeConsumer{deliveries: make(chan amqp.Delivery, 6)}
	for i := range 6 {
		consumer.deliveries <- amqp.Delivery{Acknowledger: acker, DeliveryTag: uint64(i + 1)}
	}
	close(consumer.deliveries)

	var mu sync.Mutex
	inFlight, peak := 0, 0
	handler := func(context.Context, []byte) error {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
		return nil
	}

	_ = ConsumerMessage(context.Background(), consumer, DeliverQueue, limit, sl.Discard(), handler)

	assert.LessOrEqual(t, peak, limit)
	assert.Len(t, acker.byTag(), 6)
}

func TestConsumerMessage_StopsOnContextCancel(t *testing.T) {
	consumer := &fakeConsumer{deliveries: make(chan amqp.Delivery)}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- ConsumerMessage(ctx, consumer, DeliverQueue, 1, sl.Discard(), func(context.Context, []byte) error { return nil })
	}()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestConsumerMessage_ConsumeError(t *testing.T) {
	consumer := &fakeConsumer{err: errors.New("channel closed")}

	err := ConsumerMessage(context.Background(), consumer, DeliverQueue, 1, sl.Discard(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rabbitmq.ConsumerMessage")
}
