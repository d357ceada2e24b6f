// Package services отправляет письма пользователям по сообщениям очереди уведомлений.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/questgen/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/questgen/internal/lib/sl"
	"github.com/magabrotheeeer/questgen/internal/lib/smtp"
	"github.com/magabrotheeeer/questgen/internal/models"
)

// SenderService формирует и отправляет письма через SMTP.
type SenderService struct {
	mailer smtp.Mailer
	log    *slog.Logger
}

// NewSenderService создает новый экземпляр SenderService.
func NewSenderService(log *slog.Logger, mailer smtp.Mailer) *SenderService {
	return &SenderService{
		mailer: mailer,
		log:    log,
	}
}

// SendNotification разбирает сообщение очереди и отправляет письмо нужного вида.
// Сообщения, которые не удастся обработать и при повторе, помечаются rabbitmq.ErrDiscard.
func (s *SenderService) SendNotification(ctx context.Context, body []byte) error {
	const op = "services.sender.SendNotification"
	log := s.log.With(slog.String("op", op))

	var message models.Notification
	if err := json.Unmarshal(body, &message); err != nil {
		log.Error("failed to unmarshal message body", sl.Err(err))
		return fmt.Errorf("%s: error unmarshalling message: %w: %w", op, rabbitmq.ErrDiscard, err)
	}
	if message.Email == "" {
		// письмо некуда отправлять, повторная доставка не поможет
		log.Warn("notification without email dropped", slog.String("kind", string(message.Kind)))
		return nil
	}

	subject, text, err := compose(message)
	if err != nil {
		log.Warn("unsupported notification dropped", sl.Err(err))
		return nil
	}

	err = s.mailer.Send(ctx, smtp.Message{To: []string{message.Email}, Subject: subject, Body: text})
	if err != nil {
		log.Error("failed to send email", slog.String("kind", string(message.Kind)), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	log.Info("notification email sent", slog.String("kind", string(message.Kind)), slog.String("email", message.Email))
	return nil
}

func compose(n models.Notification) (string, string, error) {
	expiry := ""
	if n.Expiry != nil {
		expiry = n.Expiry.Format("02.01.2006")
	}
	switch n.Kind {
	case models.NotificationExpiryWarning:
		return "Your QuestGen subscription expires soon",
			fmt.Sprintf("Hello, %s!\n\nYour %s subscription expires in %d day(s), on %s.\n\nRenew it in advance to keep generating papers.",
				n.Name, n.Plan, n.DaysLeft, expiry), nil
	case models.NotificationExpired:
		return "Your QuestGen subscription has expired",
			fmt.Sprintf("Hello, %s!\n\nYour %s subscription expired on %s.\n\nChoose a new plan to continue generating papers.",
				n.Name, n.Plan, expiry), nil
	case models.NotificationUpgrade:
		text := fmt.Sprintf("Hello, %s!\n\nYour payment has been approved and the %s plan is now active.", n.Name, n.Plan)
		if expiry != "" {
			text += fmt.Sprintf("\nIt is valid until %s.", expiry)
		}
		return "Your QuestGen plan has been upgraded", text, nil
	default:
		return "", "", fmt.Errorf("unknown notification kind %q", n.Kind)
	}
}
