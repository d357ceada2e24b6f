// Package notification рассылает уведомления пользователям о сроках и смене тарифа.
// Отправка не блокирует вызывающую операцию: ошибки только логируются.
package notification

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/questgen/internal/lib/metrics"
	"github.com/magabrotheeeer/questgen/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/questgen/internal/lib/sl"
	"github.com/magabrotheeeer/questgen/internal/models"
)

// Extra - данные уведомления помимо получателя.
type Extra struct {
	Plan     models.Plan
	Expiry   *time.Time
	DaysLeft int
}

// Build собирает сообщение уведомления для пользователя.
func Build(kind models.NotificationKind, user models.User, extra Extra, now time.Time) models.Notification {
	plan := extra.Plan
	if plan == "" {
		plan = user.SubscriptionPlan
	}
	expiry := extra.Expiry
	if expiry == nil {
		expiry = user.SubscriptionExpiry
	}
	return models.Notification{
		Kind:     kind,
		UserID:   user.ID,
		Name:     user.Name,
		Email:    user.Email,
		Plan:     plan,
		Expiry:   expiry,
		DaysLeft: extra.DaysLeft,
		SentAt:   now,
	}
}

// Publisher публикует уведомления в обменник RabbitMQ.
type Publisher struct {
	ch      rabbitmq.Channel
	log     *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewPublisher создаёт Publisher поверх открытого канала.
func NewPublisher(ch rabbitmq.Channel, log *slog.Logger, m *metrics.Metrics) *Publisher {
	return &Publisher{ch: ch, log: log, metrics: m, now: time.Now}
}

// Notify публикует уведомление kind для пользователя.
func (p *Publisher) Notify(_ context.Context, kind models.NotificationKind, user models.User, extra Extra) {
	const op = "notification.Publisher.Notify"
	log := p.log.With(slog.String("op", op), slog.String("kind", string(kind)), slog.String("email", user.Email))

	key, ok := rabbitmq.RoutingKey(kind)
	if !ok {
		log.Warn("unknown notification kind")
		p.metrics.Notifications.WithLabelValues(string(kind), "dropped").Inc()
		return
	}

	msg := Build(kind, user, extra, p.now())
	if err := rabbitmq.Publish(p.ch, key, msg); err != nil {
		log.Error("failed to publish notification", sl.Err(err))
		p.metrics.Notifications.WithLabelValues(string(kind), "failed").Inc()
		return
	}
	log.Info("notification published")
	p.metrics.Notifications.WithLabelValues(string(kind), "published").Inc()
}

// LogNotifier пишет уведомления в лог, когда брокер не настроен.
type LogNotifier struct {
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewLogNotifier создаёт LogNotifier.
func NewLogNotifier(log *slog.Logger, m *metrics.Metrics) *LogNotifier {
	return &LogNotifier{log: log, metrics: m}
}

// Notify записывает уведомление в лог.
func (l *LogNotifier) Notify(_ context.Context, kind models.NotificationKind, user models.User, extra Extra) {
	msg := Build(kind, user, extra, time.Now())
	l.log.Info("notification",
		slog.String("kind", string(msg.Kind)),
		slog.String("email", msg.Email),
		slog.String("plan", string(msg.Plan)),
		slog.Int("days_left", msg.DaysLeft),
	)
	l.metrics.Notifications.WithLabelValues(string(kind), "logged").Inc()
}
