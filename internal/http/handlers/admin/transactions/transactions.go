// Package transactions отдаёт администратору весь журнал заявок.
package transactions

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/questgen/internal/http/response"
	"github.com/magabrotheeeer/questgen/internal/lib/sl"
	"github.com/magabrotheeeer/questgen/internal/models"
)

// Service читает журнал заявок.
type Service interface {
	Transactions(ctx context.Context) ([]models.Transaction, error)
}

// Handler обрабатывает GET /admin/transactions.
// Параметр status=pending оставляет только ожидающие решения заявки.
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
// @Summary Журнал заявок
// @Tags Admin
// @Produce  json
// @Security BearerAuth
// @Param status query string false "Фильтр по статусу"
// @Success 200 {object} response.Response
// @Router /admin/transactions [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.transactions"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	txs, err := h.service.Transactions(r.Context())
	if err != nil {
		log.Error("failed to list transactions", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to list transactions"))
		return
	}

	if status := models.TransactionStatus(r.URL.Query().Get("status")); status != "" {
		filtered := make([]models.Transaction, 0, len(txs))
		for _, tx := range txs {
			if tx.Status == status {
				filtered = append(filtered, tx)
			}
		}
		txs = filtered
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"transactions": txs,
		"count":        len(txs),
	}))
}
