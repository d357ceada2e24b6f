// Package middlewarectx содержит HTTP middleware: проверку JWT токена,
// доступ только для администратора и ограничение частоты запросов.
//
// JWTMiddleware проверяет токен из заголовка Authorization, загружает актуальную
// запись пользователя и кладёт её в контекст запроса. Обработчики получают
// пользователя через UserFromContext.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/questgen/internal/http/response"
	"github.com/magabrotheeeer/questgen/internal/lib/sl"
	"github.com/magabrotheeeer/questgen/internal/models"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

// UserKey - ключ записи пользователя в контексте.
const UserKey Key = "user"

// Authenticator проверяет токен и возвращает пользователя.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (models.User, error)
}

// WithUser возвращает контекст с пользователем.
func WithUser(ctx context.Context, user models.User) context.Context {
	return context.WithValue(ctx, UserKey, user)
}

// UserFromContext достаёт пользователя, положенного JWTMiddleware.
func UserFromContext(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(UserKey).(models.User)
	return user, ok
}

// JWTMiddleware возвращает HTTP middleware, который проверяет JWT в заголовке Authorization.
// При ошибке отвечает 401 Unauthorized.
func JWTMiddleware(auth Authenticator, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.JWTMiddleware"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				log.Warn("missing or invalid authorization header")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("missing or invalid authorization header"))
				return
			}

			user, err := auth.Authenticate(r.Context(), strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				code, msg := response.StatusFor(err)
				if code == http.StatusInternalServerError {
					log.Error("failed to authenticate", sl.Err(err))
				} else {
					log.Warn("invalid or expired token", sl.Err(err))
					code, msg = http.StatusUnauthorized, "invalid or expired token"
				}
				render.Status(r, code)
				render.JSON(w, r, response.Error(msg))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// AdminOnly пропускает только администраторов, остальным отвечает 403.
func AdminOnly(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("user identification missing"))
				return
			}
			if !user.IsAdmin() {
				log.Warn("admin route denied",
					slog.String("email", user.Email),
					slog.String("path", r.URL.Path),
				)
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, response.Error("admin access required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
