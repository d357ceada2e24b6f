// Package reject отклоняет заявку. Тариф, срок и счётчик пользователя не меняются.
package reject

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/questgen/internal/http/response"
	"github.com/magabrotheeeer/questgen/internal/lib/sl"
	"github.com/magabrotheeeer/questgen/internal/models"
)

// Service меняет статус заявки.
type Service interface {
	Reject(ctx context.Context, txID string) (models.Transaction, error)
}

// Handler обрабатывает POST /admin/transactions/{id}/reject.
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
// @Summary Отклонить заявку
// @Tags Admin
// @Produce  json
// @Security BearerAuth
// @Param id path string true "ID заявки"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse "Заявка не найдена или уже обработана"
// @Router /admin/transactions/{id}/reject [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.reject"

	id := chi.URLParam(r, "id")
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("tx_id", id),
	)

	tx, err := h.service.Reject(r.Context(), id)
	if err != nil {
		log.Warn("failed to reject transaction", sl.Err(err))
		code, msg := response.StatusFor(err)
		render.Status(r, code)
		render.JSON(w, r, response.Error(msg))
		return
	}

	log.Info("transaction rejected", slog.String("email", tx.UserEmail), slog.String("plan", string(tx.Plan)))
	render.JSON(w, r, response.StatusOKWithData(tx))
}
