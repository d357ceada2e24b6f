// Package entitlement решает, может ли пользователь выполнить действие прямо сейчас.
// Решение вычисляется из записи пользователя и текущего времени и нигде не хранится.
package entitlement

import (
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/questgen/internal/lib/period"
	"github.com/magabrotheeeer/questgen/internal/models"
)

// ErrDenied - действие запрещено тарифом пользователя.
var ErrDenied = errors.New("action denied by subscription")

// Причины отказа.
const (
	ReasonPendingApproval = "upgrade pending approval"
	ReasonExpired         = "subscription expired"
	ReasonUpgradeRequired = "upgrade required"
	ReasonUnknownPlan     = "unknown plan"
)

// Decision - результат проверки доступа.
// Limit равен -1 для тарифов без ограничения по количеству.
type Decision struct {
	Allowed         bool   `json:"allowed"`
	Reason          string `json:"reason,omitempty"`
	UpgradeRequired bool   `json:"upgrade_required"`
	Used            int    `json:"used"`
	Limit           int    `json:"limit"`
	Remaining       int    `json:"remaining"`
}

// Err возвращает ErrDenied с причиной или nil, если действие разрешено.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrDenied, d.Reason)
}

func allow(d Decision) Decision {
	d.Allowed = true
	d.Reason = ""
	d.UpgradeRequired = false
	return d
}

func deny(d Decision, reason string) Decision {
	d.Allowed = false
	d.Reason = reason
	d.UpgradeRequired = true
	return d
}

// limitReason формирует причину исчерпания лимита тарифа.
func limitReason(plan models.Plan, limit int) string {
	if plan == models.PlanFree {
		return fmt.Sprintf("free trial limit reached (%d)", limit)
	}
	return fmt.Sprintf("%s limit reached (%d)", plan, limit)
}

// Usage возвращает счётчики использования для отображения без принятия решения.
func Usage(user models.User) Decision {
	d := Decision{Used: user.PapersGenerated, Limit: -1, Remaining: -1}
	if user.IsAdmin() {
		return d
	}
	terms, ok := user.SubscriptionPlan.Terms()
	if !ok || terms.Unlimited {
		return d
	}
	d.Limit = terms.PaperLimit
	d.Remaining = max(terms.PaperLimit-user.PapersGenerated, 0)
	return d
}

// CanGenerate проверяет, может ли пользователь сгенерировать новую работу в момент now.
// Правила проверяются по порядку, первое сработавшее определяет результат.
func CanGenerate(user models.User, now time.Time) Decision {
	d := Usage(user)

	if user.IsAdmin() {
		return allow(d)
	}
	if user.HasPending() {
		return deny(d, ReasonPendingApproval)
	}
	if period.Expired(user.SubscriptionExpiry, now) {
		return deny(d, ReasonExpired)
	}

	terms, ok := user.SubscriptionPlan.Terms()
	if !ok {
		return deny(d, ReasonUnknownPlan)
	}
	if terms.Unlimited || user.PapersGenerated < terms.PaperLimit {
		return allow(d)
	}
	return deny(d, limitReason(user.SubscriptionPlan, terms.PaperLimit))
}

// CanDownloadOrEdit проверяет доступ к выгрузке и редактированию открытой работы.
// Работы, открытые из архива, доступны только на годовом тарифе и администратору.
func CanDownloadOrEdit(user models.User, loadedFromArchive bool) Decision {
	d := Usage(user)
	if loadedFromArchive && user.SubscriptionPlan != models.PlanYearly && !user.IsAdmin() {
		return deny(d, ReasonUpgradeRequired)
	}
	return allow(d)
}
