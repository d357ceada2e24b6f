package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

// ackRecorder запоминает, как было завершено каждое сообщение.
type ackRecorder struct {
	mu      sync.Mutex
	acked   []uint64
	dropped []uint64
	requeue []uint64
}

func (a *ackRecorder) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = append(a.acked, tag)
	return nil
}

func (a *ackRecorder) Nack(tag uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if requeue {
		a.requeue = append(a.requeue, tag)
	} else {
		a.dropped = append(a.dropped, tag)
	}
	return nil
}

func (a *ackRecorder) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

type fakeConsumer struct {
	deliveries chan amqp.Delivery
	err        error
}

func (f *fakeConsumer) Consume(string, string, bool, bool, bool, bool, amqp.Table) (<-chan amqp.Delivery, error) {
	return f.deliveries, f.err
}

func TestConsume_SettlesByHandlerResult(t *testing.T) {
	acks := &ackRecorder{}
	src := &fakeConsumer{deliveries: make(chan amqp.Delivery, 3)}
	for tag, body := range map[uint64]string{1: "ok", 2: "broken", 3: "retry"} {
		src.deliveries <- amqp.Delivery{Acknowledger: acks, DeliveryTag: tag, Body: []byte(body)}
	}
	close(src.deliveries)

	handler := func(_ context.Context, body []byte) error {
		switch string(body) {
		case "broken":
			return fmt.Errorf("decode: %w", ErrDiscard)
		case "retry":
			return errors.New("smtp unavailable")
		}
		return nil
	}

	err := Consume(context.Background(), newNoopLogger(), src, "test", 2, handler)
	require.ErrorContains(t, err, "delivery channel closed")

	// Consume дожидается начатых обработчиков
	acks.mu.Lock()
	defer acks.mu.Unlock()
	assert.Equal(t, []uint64{1}, acks.acked)
	assert.Equal(t, []uint64{2}, acks.dropped)
	assert.Equal(t, []uint64{3}, acks.requeue)
}

func TestConsume_LimitsParallelHandlers(t *testing.T) {
	acks := &ackRecorder{}
	src := &fakeConsumer{deliveries: make(chan amqp.Delivery, 6)}
	for tag := range uint64(6) {
		src.deliveries <- amqp.Delivery{Acknowledger: acks, DeliveryTag: tag}
	}
	close(src.deliveries)

	var mu sync.Mutex
	running, peak := 0, 0
	handler := func(context.Context, []byte) error {
		mu.Lock()
		running++
		peak = max(peak, running)
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		running--
		mu.Unlock()
		return nil
	}

	_ = Consume(context.Background(), newNoopLogger(), src, "test", 2, handler)
	assert.LessOrEqual(t, peak, 2)
	assert.Len(t, acks.acked, 6)
}

func TestConsume_StopsOnCanceledContext(t *testing.T) {
	src := &fakeConsumer{deliveries: make(chan amqp.Delivery)}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- Consume(ctx, newNoopLogger(), src, "test", 1, func(context.Context, []byte) error { return nil })
	}()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Consume did not return after cancel")
	}
}

func TestConsume_ConsumeError(t *testing.T) {
	src := &fakeConsumer{err: errors.New("channel closed")}
	err := Consume(context.Background(), newNoopLogger(), src, "test", 1, nil)
	assert.ErrorContains(t, err, "rabbitmq.Consume")
}

func TestConsume_Broker(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	amqpURI, cleanup := rabbitMQURI(ctx, t)
	defer cleanup()

	conn, err := Connect(ctx, testConfig(amqpURI), newNoopLogger())
	require.NoError(t, err)
	defer func() {
		if err := conn.Close(); err != nil {
			t.Errorf("failed to close connection: %v", err)
		}
	}()

	ch, err := conn.Channel()
	require.NoError(t, err)

	queueName := "consumer-test"
	_, err = ch.QueueDeclare(queueName, false, false, false, false, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)

	received := make([]string, 0)
	var mu sync.Mutex
	handler := func(_ context.Context, body []byte) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, string(body))
		wg.Done()
		return nil
	}

	consumeCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		_ = Consume(consumeCtx, newNoopLogger(), ch, queueName, 2, handler)
	}()

	for _, msg := range []string{"hello", "world"} {
		err := ch.Publish("", queueName, false, false, amqp.Publishing{
			ContentType: "text/plain",
			Body:        []byte(msg),
		})
		require.NoError(t, err)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Timeout waiting for messages to be processed")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"hello", "world"}, received)
}
