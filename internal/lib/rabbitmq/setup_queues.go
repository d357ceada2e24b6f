package rabbitmq

import "github.com/magabrotheeeer/questgen/internal/models"

// QueueConfig связывает очередь с ключом маршрутизации обменника уведомлений.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// Ключи маршрутизации уведомлений.
const (
	RoutingExpiryWarning = "expiry_warning"
	RoutingExpired       = "expired"
	RoutingUpgrade       = "upgrade"
)

// RoutingKey возвращает ключ маршрутизации для типа уведомления.
func RoutingKey(kind models.NotificationKind) (string, bool) {
	switch kind {
	case models.NotificationExpiryWarning:
		return RoutingExpiryWarning, true
	case models.NotificationExpired:
		return RoutingExpired, true
	case models.NotificationUpgrade:
		return RoutingUpgrade, true
	default:
		return "", false
	}
}

// GetNotificationQueues возвращает очереди, которые обслуживает отправитель уведомлений.
func GetNotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "notifications.expiry_warning", RoutingKey: RoutingExpiryWarning},
		{QueueName: "notifications.expired", RoutingKey: RoutingExpired},
		{QueueName: "notifications.upgrade", RoutingKey: RoutingUpgrade},
	}
}
