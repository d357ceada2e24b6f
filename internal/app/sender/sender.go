// Package sender собирает приложение, которое рассылает письма по уведомлениям из RabbitMQ.
package sender

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"
	"golang.org/x/sync/errgroup"

	"github.com/magabrotheeeer/questgen/internal/config"
	"github.com/magabrotheeeer/questgen/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/questgen/internal/lib/sl"
	"github.com/magabrotheeeer/questgen/internal/lib/smtp"
	senderservice "github.com/magabrotheeeer/questgen/internal/services/sender"
)

// App представляет приложение отправителя уведомлений.
type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	queues        []rabbitmq.QueueConfig
	workers       int
	senderService *senderservice.SenderService
	logger        *slog.Logger
}

// New подключается к брокеру и готовит очереди уведомлений.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg.RabbitMQURL == "" {
		return nil, fmt.Errorf("rabbitmq url is not configured")
	}
	conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQ, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	queues := rabbitmq.GetNotificationQueues()
	ch, err := rabbitmq.OpenChannel(conn, cfg.RabbitMQPrefetch, queues)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	transport := smtp.NewTransport(cfg.SMTP, logger)

	return &App{
		conn:          conn,
		ch:            ch,
		queues:        queues,
		workers:       cfg.RabbitMQPrefetch,
		senderService: senderservice.NewSenderService(logger, transport),
		logger:        logger,
	}, nil
}

// Run слушает все очереди уведомлений до отмены ctx или ошибки одной из них.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	g, gctx := errgroup.WithContext(ctx)
	for _, q := range a.queues {
		g.Go(func() error {
			a.logger.Info("consuming notifications", slog.String("queue", q.QueueName))
			if err := rabbitmq.Consume(gctx, a.logger, a.ch, q.QueueName, a.workers, a.senderService.SendNotification); err != nil {
				a.logger.Error("consumer stopped", slog.String("queue", q.QueueName), sl.Err(err))
				return err
			}
			return nil
		})
	}

	err := g.Wait()
	a.logger.Info("sender service shutting down gracefully")
	return err
}

func (a *App) close() {
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
}
