// Package users отдаёт администратору список пользователей с их тарифами и использованием.
package users

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/questgen/internal/http/response"
	"github.com/magabrotheeeer/questgen/internal/lib/sl"
	"github.com/magabrotheeeer/questgen/internal/models"
	"github.com/magabrotheeeer/questgen/internal/services/entitlement"
)

// Repository читает пользователей.
type Repository interface {
	Users(ctx context.Context) ([]models.User, error)
}

// Item - пользователь в списке.
type Item struct {
	models.User
	Usage entitlement.Decision `json:"usage"`
}

// Handler обрабатывает GET /admin/users.
type Handler struct {
	log  *slog.Logger
	repo Repository
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, repo Repository) *Handler {
	return &Handler{
		log:  log,
		repo: repo,
	}
}

// ServeHTTP godoc
// @Summary Пользователи
// @Tags Admin
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /admin/users [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.users"

	all, err := h.repo.Users(r.Context())
	if err != nil {
		h.log.Error("failed to list users",
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			sl.Err(err),
		)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to list users"))
		return
	}

	items := make([]Item, 0, len(all))
	for _, u := range all {
		items = append(items, Item{User: u.Public(), Usage: entitlement.Usage(u)})
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"users": items,
		"count": len(items),
	}))
}
