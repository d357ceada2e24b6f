// Package rabbitmq содержит подключение к RabbitMQ, объявление обменника уведомлений
// с очередями, публикацию и потребление JSON-сообщений.
package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/questgen/internal/config"
	"github.com/magabrotheeeer/questgen/internal/lib/sl"
)

// NotificationsExchange - direct-обменник, в который публикуются уведомления.
const NotificationsExchange = "notifications"

const defaultPrefetch = 10

// Connect подключается к брокеру. Между попытками ждёт RabbitMQRetryDelay,
// удваивая паузу, пока не исчерпает RabbitMQMaxRetries или не отменится ctx.
func Connect(ctx context.Context, cfg config.RabbitMQ, log *slog.Logger) (*amqp.Connection, error) {
	const op = "rabbitmq.Connect"
	log = log.With(slog.String("op", op))

	attempts := max(cfg.RabbitMQMaxRetries, 1)
	delay := cfg.RabbitMQRetryDelay
	var err error
	for attempt := 1; ; attempt++ {
		var conn *amqp.Connection
		conn, err = amqp.Dial(cfg.RabbitMQURL)
		if err == nil {
			if attempt > 1 {
				log.Info("connected to RabbitMQ", slog.Int("attempt", attempt))
			}
			return conn, nil
		}
		if attempt == attempts {
			break
		}
		log.Warn("RabbitMQ is not available, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			sl.Err(err),
		)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}

	return nil, fmt.Errorf("%s: %d attempts: %w", op, attempts, err)
}

// Declarer - часть *amqp.Channel, нужная для объявления топологии.
type Declarer interface {
	Qos(prefetchCount, prefetchSize int, global bool) error
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
}

// DeclareNotifications задаёт prefetch канала, объявляет durable-обменник уведомлений
// и привязывает к нему очереди по их ключам маршрутизации.
func DeclareNotifications(ch Declarer, prefetch int, queues []QueueConfig) error {
	const op = "rabbitmq.DeclareNotifications"

	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("%s: failed to set QoS: %w", op, err)
	}
	if err := ch.ExchangeDeclare(NotificationsExchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("%s: exchange %s: %w", op, NotificationsExchange, err)
	}

	for _, q := range queues {
		if _, err := ch.QueueDeclare(q.QueueName, true, false, false, false, nil); err != nil {
			return fmt.Errorf("%s: failed to declare queue %s: %w", op, q.QueueName, err)
		}
		if err := ch.QueueBind(q.QueueName, q.RoutingKey, NotificationsExchange, false, nil); err != nil {
			return fmt.Errorf("%s: failed to bind queue %s with routing key %s: %w", op, q.QueueName, q.RoutingKey, err)
		}
	}
	return nil
}

// OpenChannel открывает канал и объявляет на нём топологию уведомлений.
func OpenChannel(conn *amqp.Connection, prefetch int, queues []QueueConfig) (*amqp.Channel, error) {
	const op = "rabbitmq.OpenChannel"

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := DeclareNotifications(ch, prefetch, queues); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ch, nil
}
