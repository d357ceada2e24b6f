// Package generate реализует HTTP-обработчик генерации экзаменационной работы.
//
// Перед обращением к генератору проверяется тариф пользователя. При отказе
// возвращается 403 с причиной и признаком upgrade_required, при сбое генератора 502.
package generate

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/questgen/internal/http/middlewarectx"
	"github.com/magabrotheeeer/questgen/internal/http/response"
	"github.com/magabrotheeeer/questgen/internal/lib/sl"
	"github.com/magabrotheeeer/questgen/internal/models"
	"github.com/magabrotheeeer/questgen/internal/services/entitlement"
	"github.com/magabrotheeeer/questgen/internal/services/papers"
)

// Service генерирует работу.
type Service interface {
	Generate(ctx context.Context, user models.User, req models.GenerationRequest) (papers.GenerateResult, error)
}

// Handler обрабатывает POST /papers/generate.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Сгенерировать работу
// @Tags Papers
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body models.GenerationRequest true "План работы"
// @Success 201 {object} response.Response
// @Failure 403 {object} response.DeniedResponse "Отказ по тарифу"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 502 {object} response.ErrorResponse "Сбой генератора"
// @Router /papers/generate [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.papers.generate"

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

	var req models.GenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		log.Warn("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	res, err := h.service.Generate(r.Context(), user, req)
	if err != nil {
		if errors.Is(err, entitlement.ErrDenied) {
			log.Info("generation denied", slog.String("reason", res.Usage.Reason))
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, response.Denied(res.Usage))
			return
		}
		log.Error("failed to generate paper", sl.Err(err))
		code, msg := response.StatusFor(err)
		render.Status(r, code)
		render.JSON(w, r, response.Error(msg))
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(res))
}
