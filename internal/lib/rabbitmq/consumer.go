package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/questgen/internal/lib/sl"
)

// ErrDiscard помечает сообщение, которое не имеет смысла доставлять повторно.
var ErrDiscard = errors.New("discard message")

// Handler обрабатывает тело сообщения.
type Handler func(ctx context.Context, body []byte) error

// Consumer - часть *amqp.Channel, нужная для чтения очереди.
type Consumer interface {
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// Consume обрабатывает сообщения очереди queueName не более чем workers обработчиками сразу.
// Успешно обработанное сообщение подтверждается. Ошибка с ErrDiscard отбрасывает
// сообщение, любая другая возвращает его в очередь.
// Возвращает после отмены ctx или закрытия канала, дождавшись начатых обработчиков.
func Consume(ctx context.Context, log *slog.Logger, ch Consumer, queueName string, workers int, handler Handler) error {
	const op = "rabbitmq.Consume"

	deliveries, err := ch.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log = log.With(slog.String("op", op), slog.String("queue", queueName))
	if workers <= 0 {
		workers = defaultPrefetch
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("%s: delivery channel closed", op)
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				// неподтверждённое сообщение брокер вернёт в очередь сам
				return nil
			}
			wg.Add(1)
			go func(d amqp.Delivery) {
				defer func() {
					<-sem
					wg.Done()
				}()
				settle(ctx, log, d, handler)
			}(d)
		}
	}
}

func settle(ctx context.Context, log *slog.Logger, d amqp.Delivery, handler Handler) {
	err := handler(ctx, d.Body)
	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			log.Error("failed to ack message", sl.Err(ackErr))
		}
	case errors.Is(err, ErrDiscard):
		log.Warn("message discarded", sl.Err(err))
		if nackErr := d.Nack(false, false); nackErr != nil {
			log.Error("failed to nack message", sl.Err(nackErr))
		}
	default:
		log.Error("failed to handle message, requeue", sl.Err(err))
		if nackErr := d.Nack(false, true); nackErr != nil {
			log.Error("failed to nack message", sl.Err(nackErr))
		}
	}
}
