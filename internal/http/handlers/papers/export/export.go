// Package export выгружает открытую работу для печати или скачивания.
package export

import (
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

// Service выгружает открытую работу.
type Service interface {
	Export(user models.User) (papers.OpenPaper, error)
}

// Handler обрабатывает GET /papers/current/export.
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
// @Summary Выгрузить открытую работу
// @Tags Papers
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 403 {object} response.DeniedResponse "Нужен годовой тариф"
// @Failure 409 {object} response.ErrorResponse "Работа не открыта"
// @Router /papers/current/export [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.papers.export"

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

	opened, err := h.service.Export(user)
	if err != nil {
		if errors.Is(err, entitlement.ErrDenied) {
			log.Info("export denied", slog.String("reason", opened.Access.Reason))
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, response.Denied(opened.Access))
			return
		}
		log.Warn("failed to export paper", sl.Err(err))
		code, msg := response.StatusFor(err)
		render.Status(r, code)
		render.JSON(w, r, response.Error(msg))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(opened.Paper))
}
