package subscription

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/questgen/internal/lib/period"
	"github.com/magabrotheeeer/questgen/internal/models"
	"github.com/magabrotheeeer/questgen/internal/services/notification"
)

// ExpiryStatus описывает срок действия тарифа на момент проверки.
type ExpiryStatus struct {
	DaysLeft *int `json:"days_left,omitempty"`
	Expired  bool `json:"expired"`
	Warning  bool `json:"warning"`
}

// CheckExpiryAt вычисляет статус срока действия тарифа пользователя в момент now.
func CheckExpiryAt(user models.User, now time.Time) ExpiryStatus {
	if user.SubscriptionExpiry == nil {
		return ExpiryStatus{}
	}
	days := period.DaysLeft(*user.SubscriptionExpiry, now)
	_, soon := period.ExpiringSoon(user.SubscriptionExpiry, now)
	return ExpiryStatus{
		DaysLeft: &days,
		Expired:  period.Expired(user.SubscriptionExpiry, now),
		Warning:  soon,
	}
}

// ExpiryStatus возвращает статус срока действия на текущий момент.
func (s *Service) ExpiryStatus(user models.User) ExpiryStatus {
	return CheckExpiryAt(user, s.now())
}

// CheckExpiry вызывается при смене пользователя сессии. Отправляет EXPIRED для истёкшего тарифа
// и EXPIRY_WARNING, если до окончания осталось не больше period.WarningDays дней.
func (s *Service) CheckExpiry(ctx context.Context, user models.User) ExpiryStatus {
	const op = "subscription.CheckExpiry"

	status := s.ExpiryStatus(user)
	switch {
	case status.Expired:
		s.notifier.Notify(ctx, models.NotificationExpired, user, notification.Extra{})
	case status.Warning:
		s.notifier.Notify(ctx, models.NotificationExpiryWarning, user, notification.Extra{DaysLeft: *status.DaysLeft})
	default:
		return status
	}
	s.log.Info("expiry notification sent",
		slog.String("op", op),
		slog.String("email", user.Email),
		slog.Bool("expired", status.Expired),
	)
	return status
}
