// Package selection меняет класс и предмет в рабочей области.
//
// Шапка сбрасывается к выбранным значениям, только если работа ещё пуста
// и загрузка из архива не идёт.
package selection

import (
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

// Request - выбранные класс и предмет.
type Request struct {
	ClassLevel string `json:"class_level" validate:"required"`
	Subject    string `json:"subject" validate:"required"`
}

// Result - шапка после выбора.
type Result struct {
	Header models.PaperHeader `json:"header"`
	Reset  bool               `json:"reset"`
}

// Service меняет выбор в рабочей области.
type Service interface {
	SelectClassSubject(user models.User, classLevel, subject string) (models.PaperHeader, bool)
}

// Handler обрабатывает PUT /papers/current/selection.
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
// @Summary Выбрать класс и предмет
// @Tags Papers
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body Request true "Класс и предмет"
// @Success 200 {object} response.Response
// @Router /papers/current/selection [put]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.papers.selection"

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
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	header, reset := h.service.SelectClassSubject(user, req.ClassLevel, req.Subject)
	render.JSON(w, r, response.StatusOKWithData(Result{Header: header, Reset: reset}))
}
