// Package upgrade принимает заявку учителя на смену тарифа.
//
// Заявка создаётся в статусе pending, тариф меняется только после одобрения администратором.
package upgrade

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/questgen/internal/http/middlewarectx"
	"github.com/magabrotheeeer/questgen/internal/http/response"
	"github.com/magabrotheeeer/questgen/internal/lib/sl"
	"github.com/magabrotheeeer/questgen/internal/models"
)

// Request - заявка на тариф.
type Request struct {
	Plan   models.Plan `json:"plan" validate:"required,oneof=monthly yearly"`
	Amount int         `json:"amount" validate:"required,gt=0"`
}

// Service создаёт заявку.
type Service interface {
	RequestUpgrade(ctx context.Context, ref models.UserRef, plan models.Plan, amount int) (models.Transaction, error)
}

// Handler обрабатывает POST /subscription/upgrade.
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
// @Summary Заявка на смену тарифа
// @Tags Subscription
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body Request true "Тариф и сумма оплаты"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Router /subscription/upgrade [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.upgrade"

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

	var req Request
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

	tx, err := h.service.RequestUpgrade(r.Context(), user.Ref(), req.Plan, req.Amount)
	if err != nil {
		log.Error("failed to request upgrade", sl.Err(err))
		code, msg := response.StatusFor(err)
		render.Status(r, code)
		render.JSON(w, r, response.Error(msg))
		return
	}

	log.Info("upgrade requested", slog.String("tx_id", tx.ID), slog.String("plan", string(tx.Plan)))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(tx))
}
