// Package subscription реализует жизненный цикл тарифа пользователя:
// заявка на смену тарифа, одобрение или отклонение администратором
// и ленивую проверку срока действия при входе.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/questgen/internal/lib/metrics"
	"github.com/magabrotheeeer/questgen/internal/lib/period"
	"github.com/magabrotheeeer/questgen/internal/models"
	"github.com/magabrotheeeer/questgen/internal/services/notification"
	"github.com/magabrotheeeer/questgen/internal/services/usage"
)

var (
	// ErrTransactionNotFound - заявка не найдена или уже не ожидает решения.
	ErrTransactionNotFound = errors.New("pending transaction not found")
	// ErrInvalidPlan - запрошен тариф, на который нельзя перейти по заявке.
	ErrInvalidPlan = errors.New("invalid plan")
	// ErrInvalidAmount - сумма оплаты должна быть положительной.
	ErrInvalidAmount = errors.New("invalid amount")
)

// AccountsRepository хранит пользователей и заявки.
type AccountsRepository interface {
	ResolveUser(ctx context.Context, ref models.UserRef) (models.User, error)
	Transactions(ctx context.Context) ([]models.Transaction, error)
	UpdateAccounts(ctx context.Context, fn func(acc *models.Accounts) error) error
}

// Notifier отправляет уведомления пользователю без ожидания результата.
type Notifier interface {
	Notify(ctx context.Context, kind models.NotificationKind, user models.User, extra notification.Extra)
}

// SessionRefresher обновляет закэшированную запись пользователя в открытых сессиях.
type SessionRefresher interface {
	Refresh(user models.User)
}

// Service управляет тарифами пользователей.
type Service struct {
	repo     AccountsRepository
	notifier Notifier
	sessions SessionRefresher
	metrics  *metrics.Metrics
	log      *slog.Logger
	now      func() time.Time
}

// New создаёт Service.
func New(repo AccountsRepository, notifier Notifier, sessions SessionRefresher, m *metrics.Metrics, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		sessions: sessions,
		metrics:  m,
		log:      log,
		now:      time.Now,
	}
}

// RequestUpgrade создаёт заявку на тариф plan и отмечает его как ожидающий у пользователя.
// Предыдущая ожидающая заявка того же пользователя переводится в failed.
// Текущий тариф, срок и счётчик не меняются.
func (s *Service) RequestUpgrade(ctx context.Context, ref models.UserRef, plan models.Plan, amount int) (models.Transaction, error) {
	const op = "subscription.RequestUpgrade"
	log := s.log.With(slog.String("op", op))

	if !plan.Valid() || plan == models.PlanFree {
		return models.Transaction{}, fmt.Errorf("%s: %w: %q", op, ErrInvalidPlan, plan)
	}
	if amount <= 0 {
		return models.Transaction{}, fmt.Errorf("%s: %w", op, ErrInvalidAmount)
	}

	user, err := s.repo.ResolveUser(ctx, ref)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("%s: %w", op, err)
	}

	tx := models.Transaction{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		UserName:  user.Name,
		UserEmail: user.Email,
		Plan:      plan,
		Amount:    amount,
		CreatedAt: s.now(),
		Status:    models.TransactionPending,
	}

	var updated []models.User
	superseded := 0
	err = s.repo.UpdateAccounts(ctx, func(acc *models.Accounts) error {
		for i := range acc.Transactions {
			t := &acc.Transactions[i]
			if t.Status == models.TransactionPending && t.UserRef().Matches(user) {
				t.Status = models.TransactionFailed
				superseded++
			}
		}
		acc.Transactions = append([]models.Transaction{tx}, acc.Transactions...)
		updated = acc.UpdateUsers(ref, func(u models.User) models.User {
			u.PendingSubscriptionPlan = plan
			return u
		})
		return nil
	})
	if err != nil {
		return models.Transaction{}, fmt.Errorf("%s: %w", op, err)
	}

	s.refresh(updated)
	s.metrics.Transactions.WithLabelValues(string(models.TransactionPending)).Inc()
	if superseded > 0 {
		s.metrics.Transactions.WithLabelValues(string(models.TransactionFailed)).Add(float64(superseded))
	}
	log.Info("upgrade requested",
		slog.String("tx_id", tx.ID),
		slog.String("email", user.Email),
		slog.String("plan", string(plan)),
		slog.Int("superseded", superseded),
	)
	return tx, nil
}

// Approve одобряет ожидающую заявку txID: применяет тариф, задаёт срок действия,
// снимает ожидающий тариф и обнуляет счётчик у всех записей пользователя.
// Для отсутствующей или уже обработанной заявки возвращает ErrTransactionNotFound и ничего не меняет.
func (s *Service) Approve(ctx context.Context, txID string) (models.Transaction, error) {
	const op = "subscription.Approve"
	log := s.log.With(slog.String("op", op), slog.String("tx_id", txID))

	now := s.now()
	var (
		tx      models.Transaction
		updated []models.User
	)
	err := s.repo.UpdateAccounts(ctx, func(acc *models.Accounts) error {
		idx := acc.FindTransaction(txID)
		if idx < 0 || acc.Transactions[idx].Status.IsTerminal() {
			return ErrTransactionNotFound
		}
		acc.Transactions[idx].Status = models.TransactionSuccess
		tx = acc.Transactions[idx]

		terms, _ := tx.Plan.Terms()
		expiry := period.ExpiryAfter(now, terms.DurationDays)
		updated = acc.UpdateUsers(tx.UserRef(), func(u models.User) models.User {
			u.SubscriptionPlan = tx.Plan
			u.PendingSubscriptionPlan = ""
			u.SubscriptionExpiry = expiry
			return usage.ResetOnPlanChange(u)
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrTransactionNotFound) {
			log.Info("transaction is not pending, nothing to approve")
		}
		return models.Transaction{}, fmt.Errorf("%s: %w", op, err)
	}

	s.refresh(updated)
	s.metrics.Transactions.WithLabelValues(string(models.TransactionSuccess)).Inc()
	if len(updated) == 0 {
		log.Warn("approved transaction has no matching user", slog.String("email", tx.UserEmail))
		return tx, nil
	}

	user := updated[0]
	s.notifier.Notify(ctx, models.NotificationUpgrade, user, notification.Extra{
		Plan:   user.SubscriptionPlan,
		Expiry: user.SubscriptionExpiry,
	})
	log.Info("transaction approved",
		slog.String("email", user.Email),
		slog.String("plan", string(user.SubscriptionPlan)),
		slog.Int("records", len(updated)),
	)
	return tx, nil
}

// Reject отклоняет ожидающую заявку txID и снимает ожидающий тариф.
// Тариф, срок действия и счётчик пользователя не меняются.
func (s *Service) Reject(ctx context.Context, txID string) (models.Transaction, error) {
	const op = "subscription.Reject"
	log := s.log.With(slog.String("op", op), slog.String("tx_id", txID))

	var (
		tx      models.Transaction
		updated []models.User
	)
	err := s.repo.UpdateAccounts(ctx, func(acc *models.Accounts) error {
		idx := acc.FindTransaction(txID)
		if idx < 0 || acc.Transactions[idx].Status.IsTerminal() {
			return ErrTransactionNotFound
		}
		acc.Transactions[idx].Status = models.TransactionRejected
		tx = acc.Transactions[idx]

		updated = acc.UpdateUsers(tx.UserRef(), func(u models.User) models.User {
			u.PendingSubscriptionPlan = ""
			return u
		})
		return nil
	})
	if err != nil {
		return models.Transaction{}, fmt.Errorf("%s: %w", op, err)
	}

	s.refresh(updated)
	s.metrics.Transactions.WithLabelValues(string(models.TransactionRejected)).Inc()
	log.Info("transaction rejected", slog.String("email", tx.UserEmail), slog.Int("records", len(updated)))
	return tx, nil
}

func (s *Service) refresh(users []models.User) {
	for _, u := range users {
		s.sessions.Refresh(u)
	}
}

// Transactions возвращает все заявки.
func (s *Service) Transactions(ctx context.Context) ([]models.Transaction, error) {
	const op = "subscription.Transactions"
	txs, err := s.repo.Transactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return txs, nil
}

// UserTransactions возвращает заявки пользователя.
func (s *Service) UserTransactions(ctx context.Context, user models.User) ([]models.Transaction, error) {
	const op = "subscription.UserTransactions"
	txs, err := s.repo.Transactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	own := make([]models.Transaction, 0)
	for _, t := range txs {
		if t.UserRef().Matches(user) {
			own = append(own, t)
		}
	}
	return own, nil
}
