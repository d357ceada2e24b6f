// Package me отдаёт текущего пользователя вместе с состоянием его тарифа.
package me

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/questgen/internal/http/middlewarectx"
	"github.com/magabrotheeeer/questgen/internal/http/response"
	"github.com/magabrotheeeer/questgen/internal/models"
	"github.com/magabrotheeeer/questgen/internal/services/auth"
	"github.com/magabrotheeeer/questgen/internal/services/entitlement"
	"github.com/magabrotheeeer/questgen/internal/services/subscription"
)

// Service вычисляет срок действия тарифа.
type Service interface {
	ExpiryStatus(user models.User) subscription.ExpiryStatus
}

// Account - ответ обработчика.
type Account struct {
	User             models.User               `json:"user"`
	Usage            entitlement.Decision      `json:"usage"`
	Expiry           subscription.ExpiryStatus `json:"expiry"`
	PendingPlan      models.Plan               `json:"pending_plan,omitempty"`
	UpgradeSuggested bool                      `json:"upgrade_suggested"`
	Warnings         []string                  `json:"warnings,omitempty"`
}

// Handler обрабатывает GET /me.
type Handler struct {
	log     *slog.Logger
	service Service
	now     func() time.Time
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
		now:     time.Now,
	}
}

// ServeHTTP godoc
// @Summary Текущий пользователь
// @Tags Account
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse
// @Router /me [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.account.me"

	user, ok := middlewarectx.UserFromContext(r.Context())
	if !ok {
		h.log.Error("user identification missing",
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("user identification missing"))
		return
	}

	account := Account{
		User:             user.Public(),
		Usage:            entitlement.CanGenerate(user, h.now()),
		Expiry:           h.service.ExpiryStatus(user),
		PendingPlan:      user.PendingSubscriptionPlan,
		UpgradeSuggested: auth.UpgradeSuggested(user),
	}
	if user.HasPending() {
		account.Warnings = append(account.Warnings,
			fmt.Sprintf("your request to upgrade to the %s plan is awaiting admin approval", user.PendingSubscriptionPlan))
	}
	switch {
	case account.Expiry.Expired:
		account.Warnings = append(account.Warnings, "your subscription has expired")
	case account.Expiry.Warning:
		account.Warnings = append(account.Warnings,
			fmt.Sprintf("your subscription expires in %d day(s)", *account.Expiry.DaysLeft))
	}

	render.JSON(w, r, response.StatusOKWithData(account))
}
