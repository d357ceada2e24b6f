// Package transactions отдаёт заявки текущего пользователя.
package transactions

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/questgen/internal/http/middlewarectx"
	"github.com/magabrotheeeer/questgen/internal/http/response"
	"github.com/magabrotheeeer/questgen/internal/lib/sl"
	"github.com/magabrotheeeer/questgen/internal/models"
)

// Service читает журнал заявок.
type Service interface {
	UserTransactions(ctx context.Context, user models.User) ([]models.Transaction, error)
}

// Handler обрабатывает GET /subscription/transactions.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Мои заявки на тариф
// @Tags Subscription
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /subscription/transactions [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.transactions"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	user, ok := middlewarectx.UserFromContext(r.Context())
	if !ok {
		log.Error("user identification missing")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("user identification missing"))
		return
	}

	txs, err := h.service.UserTransactions(r.Context(), user)
	if err != nil {
		log.Error("failed to list transactions", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to list transactions"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"transactions": txs,
		"count":        len(txs),
	}))
}
