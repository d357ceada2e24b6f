// Package update сохраняет правку открытой работы.
package update

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/questgen/internal/http/middlewarectx"
	"github.com/magabrotheeeer/questgen/internal/http/response"
	"github.com/magabrotheeeer/questgen/internal/lib/sl"
	"github.com/magabrotheeeer/questgen/internal/models"
	"github.com/magabrotheeeer/questgen/internal/services/entitlement"
	"github.com/magabrotheeeer/questgen/internal/services/papers"
)

// Service применяет правку.
type Service interface {
	Update(ctx context.Context, user models.User, edit papers.Edit) (papers.OpenPaper, error)
}

// Handler обрабатывает PUT /papers/current.
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
// @Summary Изменить открытую работу
// @Tags Papers
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body papers.Edit true "Шапка и вопросы"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.DeniedResponse "Нужен годовой тариф"
// @Failure 409 {object} response.ErrorResponse "Работа не открыта"
// @Failure 422 {object} response.ErrorResponse "Работа без вопросов"
// @Router /papers/current [put]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.papers.update"

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

	var edit papers.Edit
	if err := json.NewDecoder(r.Body).Decode(&edit); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if edit.Header == nil && edit.Questions == nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("nothing to update"))
		return
	}

	opened, err := h.service.Update(r.Context(), user, edit)
	if err != nil {
		if errors.Is(err, entitlement.ErrDenied) {
			log.Info("edit denied", slog.String("reason", opened.Access.Reason))
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, response.Denied(opened.Access))
			return
		}
		log.Warn("failed to update paper", sl.Err(err))
		code, msg := response.StatusFor(err)
		render.Status(r, code)
		render.JSON(w, r, response.Error(msg))
		return
	}

	log.Info("paper updated", slog.String("paper_id", opened.Paper.ID))
	render.JSON(w, r, response.StatusOKWithData(opened))
}
