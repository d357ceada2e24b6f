// Package list отдаёт архив работ пользователя. Администратор видит все работы.
package list

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
	"github.com/magabrotheeeer/questgen/internal/services/entitlement"
)

// Service читает архив.
type Service interface {
	List(ctx context.Context, user models.User) ([]models.SavedPaper, error)
}

// Item - работа в списке архива.
type Item struct {
	models.SavedPaper
	ViewOnly bool `json:"view_only"`
}

// Handler обрабатывает GET /papers.
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
// @Summary Архив работ
// @Tags Papers
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /papers [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.papers.list"

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

	saved, err := h.service.List(r.Context(), user)
	if err != nil {
		log.Error("failed to list papers", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to list papers"))
		return
	}

	// из архива работа открывается только для просмотра, если тариф не позволяет правку
	viewOnly := !entitlement.CanDownloadOrEdit(user, true).Allowed
	items := make([]Item, 0, len(saved))
	for _, p := range saved {
		items = append(items, Item{SavedPaper: p, ViewOnly: viewOnly})
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"papers": items,
		"count":  len(items),
	}))
}
