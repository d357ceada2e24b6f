// Package response содержит вспомогательные типы и функции для формирования
// унифицированных JSON‑ответов HTTP‑обработчиков: успешных ответов, ошибок,
// отказов по тарифу и сообщений валидации.
package response

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/questgen/internal/services/auth"
	"github.com/magabrotheeeer/questgen/internal/services/entitlement"
	"github.com/magabrotheeeer/questgen/internal/services/papers"
	"github.com/magabrotheeeer/questgen/internal/services/subscription"
	"github.com/magabrotheeeer/questgen/internal/session"
	"github.com/magabrotheeeer/questgen/internal/storage/repository"
)

// Response описывает стандартную структуру JSON‑ответа сервера.
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// ErrorResponse - структура ошибки для Swagger-документации.
type ErrorResponse struct {
	Status string `json:"status" example:"Error"`
	Error  string `json:"error" example:"invalid request body"`
}

// DeniedResponse - отказ по тарифу. Клиент должен предложить смену тарифа.
type DeniedResponse struct {
	Status          string               `json:"status" example:"Error"`
	Error           string               `json:"error" example:"free trial limit reached (1)"`
	UpgradeRequired bool                 `json:"upgrade_required" example:"true"`
	Usage           entitlement.Decision `json:"usage"`
}

const (
	// StatusOK - значение статуса для успешного ответа.
	StatusOK = "OK"
	// StatusError - значение статуса для ответа с ошибкой.
	StatusError = "Error"
)

// StatusOKWithData возвращает успешный Response с переданными данными.
func StatusOKWithData(data any) Response {
	return Response{
		Status: StatusOK,
		Data:   data,
	}
}

// Error возвращает Response с ошибкой и переданным сообщением.
func Error(msg string) ErrorResponse {
	return ErrorResponse{
		Status: StatusError,
		Error:  msg,
	}
}

// Denied формирует ответ на отказ по тарифу.
func Denied(d entitlement.Decision) DeniedResponse {
	return DeniedResponse{
		Status:          StatusError,
		Error:           d.Reason,
		UpgradeRequired: true,
		Usage:           d,
	}
}

// StatusFor сопоставляет ошибку сервиса с HTTP-статусом и сообщением для клиента.
// Неизвестные ошибки скрываются за 500.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, entitlement.ErrDenied):
		return http.StatusForbidden, "upgrade required"
	case errors.Is(err, papers.ErrGenerationFailed):
		return http.StatusBadGateway, papers.ErrGenerationFailed.Error()
	case errors.Is(err, papers.ErrCorruptedPaper):
		return http.StatusUnprocessableEntity, papers.ErrCorruptedPaper.Error()
	case errors.Is(err, papers.ErrInvalidEdit):
		return http.StatusUnprocessableEntity, papers.ErrInvalidEdit.Error()
	case errors.Is(err, papers.ErrPaperNotFound):
		return http.StatusNotFound, papers.ErrPaperNotFound.Error()
	case errors.Is(err, subscription.ErrTransactionNotFound):
		return http.StatusNotFound, subscription.ErrTransactionNotFound.Error()
	case errors.Is(err, subscription.ErrInvalidPlan):
		return http.StatusBadRequest, subscription.ErrInvalidPlan.Error()
	case errors.Is(err, subscription.ErrInvalidAmount):
		return http.StatusBadRequest, subscription.ErrInvalidAmount.Error()
	case errors.Is(err, session.ErrLoadInProgress):
		return http.StatusConflict, session.ErrLoadInProgress.Error()
	case errors.Is(err, session.ErrNoPaper):
		return http.StatusConflict, session.ErrNoPaper.Error()
	case errors.Is(err, auth.ErrEmailTaken):
		return http.StatusConflict, auth.ErrEmailTaken.Error()
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, auth.ErrInvalidCredentials.Error()
	case errors.Is(err, auth.ErrUnauthorized), errors.Is(err, repository.ErrUserNotFound):
		return http.StatusUnauthorized, auth.ErrUnauthorized.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// ValidationError формирует Response со статусом Error на основе ошибок валидации.
// Каждое нарушение формируется в человеко‑читаемый текст, объединённый через запятую.
func ValidationError(errs validator.ValidationErrors) Response {
	var errsMsgs []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "email":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be a valid email", err.Field()))
		case "oneof":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be one of: %s", err.Field(), err.Param()))
		case "gt":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be greater than %s", err.Field(), err.Param()))
		case "min":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be at least %s", err.Field(), err.Param()))
		default:
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is not a valid", err.Field()))
		}
	}
	return Response{
		Status: StatusError,
		Error:  strings.Join(errsMsgs, ", "),
	}
}
