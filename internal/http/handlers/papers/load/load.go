// Package load открывает работу из архива в рабочей области пользователя.
package load

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/questgen/internal/http/middlewarectx"
	"github.com/magabrotheeeer/questgen/internal/http/response"
	"github.com/magabrotheeeer/questgen/internal/lib/sl"
	"github.com/magabrotheeeer/questgen/internal/models"
	"github.com/magabrotheeeer/questgen/internal/services/papers"
)

// Service открывает работу.
type Service interface {
	Load(ctx context.Context, user models.User, id string) (papers.OpenPaper, error)
}

// Handler обрабатывает POST /papers/{id}/load.
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
// @Summary Открыть работу из архива
// @Tags Papers
// @Produce  json
// @Security BearerAuth
// @Param id path string true "ID работы"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse "Загрузка уже идёт"
// @Failure 422 {object} response.ErrorResponse "Работа повреждена"
// @Router /papers/{id}/load [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.papers.load"

	id := chi.URLParam(r, "id")
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("paper_id", id),
	)

	user, ok := middlewarectx.UserFromContext(r.Context())
	if !ok {
		log.Error("user identification missing")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("user identification missing"))
		return
	}
	if id == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid id"))
		return
	}

	opened, err := h.service.Load(r.Context(), user, id)
	if err != nil {
		log.Warn("failed to load paper", sl.Err(err))
		code, msg := response.StatusFor(err)
		render.Status(r, code)
		render.JSON(w, r, response.Error(msg))
		return
	}

	log.Info("paper loaded", slog.Bool("view_only", opened.ViewOnly))
	render.JSON(w, r, response.StatusOKWithData(opened))
}
