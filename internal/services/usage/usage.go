// Package usage ведёт счётчик сгенерированных пользователем работ.
package usage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/questgen/internal/models"
	"github.com/magabrotheeeer/questgen/internal/services/entitlement"
)

// Increment увеличивает счётчик генераций на единицу.
func Increment(user models.User) models.User {
	user.PapersGenerated++
	return user
}

// ResetOnPlanChange обнуляет счётчик при смене тарифа.
func ResetOnPlanChange(user models.User) models.User {
	user.PapersGenerated = 0
	return user
}

// UserUpdater изменяет все записи пользователя после проверки свежей записи под блокировкой хранилища.
type UserUpdater interface {
	UpdateUserIf(ctx context.Context, ref models.UserRef, check func(models.User) error, fn func(models.User) models.User) (models.User, error)
}

// Counter сохраняет изменения счётчика в хранилище.
type Counter struct {
	repo UserUpdater
	log  *slog.Logger
}

// NewCounter создаёт Counter.
func NewCounter(repo UserUpdater, log *slog.Logger) *Counter {
	return &Counter{repo: repo, log: log}
}

// Record фиксирует одну успешную генерацию и возвращает обновлённую запись.
// Лимит тарифа проверяется повторно по записи из хранилища в той же блокировке,
// что и увеличение счётчика. При отказе возвращается решение и ошибка entitlement.ErrDenied.
func (c *Counter) Record(ctx context.Context, user models.User, now time.Time) (models.User, entitlement.Decision, error) {
	const op = "usage.Record"

	var decision entitlement.Decision
	updated, err := c.repo.UpdateUserIf(ctx, user.Ref(), func(current models.User) error {
		decision = entitlement.CanGenerate(current, now)
		return decision.Err()
	}, Increment)
	if err != nil {
		return models.User{}, decision, fmt.Errorf("%s: %w", op, err)
	}
	c.log.Debug("usage recorded",
		slog.String("op", op),
		slog.String("email", updated.Email),
		slog.Int("papers_generated", updated.PapersGenerated),
	)
	return updated, decision, nil
}
