// Package questgen собирает HTTP-приложение генератора экзаменационных работ.
package questgen

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/questgen/internal/config"
	"github.com/magabrotheeeer/questgen/internal/http/handlers/account/me"
	"github.com/magabrotheeeer/questgen/internal/http/handlers/admin/approve"
	"github.com/magabrotheeeer/questgen/internal/http/handlers/admin/reject"
	admintransactions "github.com/magabrotheeeer/questgen/internal/http/handlers/admin/transactions"
	"github.com/magabrotheeeer/questgen/internal/http/handlers/admin/users"
	"github.com/magabrotheeeer/questgen/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/questgen/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/questgen/internal/http/handlers/health"
	"github.com/magabrotheeeer/questgen/internal/http/handlers/papers/export"
	"github.com/magabrotheeeer/questgen/internal/http/handlers/papers/generate"
	"github.com/magabrotheeeer/questgen/internal/http/handlers/papers/list"
	"github.com/magabrotheeeer/questgen/internal/http/handlers/papers/load"
	"github.com/magabrotheeeer/questgen/internal/http/handlers/papers/remove"
	"github.com/magabrotheeeer/questgen/internal/http/handlers/papers/selection"
	"github.com/magabrotheeeer/questgen/internal/http/handlers/papers/update"
	"github.com/magabrotheeeer/questgen/internal/http/handlers/subscription/transactions"
	"github.com/magabrotheeeer/questgen/internal/http/handlers/subscription/upgrade"
	"github.com/magabrotheeeer/questgen/internal/http/middlewarectx"
	"github.com/magabrotheeeer/questgen/internal/services/auth"
	"github.com/magabrotheeeer/questgen/internal/services/papers"
	"github.com/magabrotheeeer/questgen/internal/services/subscription"
	"github.com/magabrotheeeer/questgen/internal/storage/repository"
)

// Services - зависимости обработчиков.
type Services struct {
	Auth         *auth.Service
	Subscription *subscription.Service
	Papers       *papers.Service
	Repository   *repository.Storage
	RateLimit    config.RateLimit
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, s Services) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	limiter := middlewarectx.NewRateLimiter(s.RateLimit)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Post("/register", register.New(logger, s.Auth).ServeHTTP)
		r.Post("/login", login.New(logger, s.Auth).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(s.Auth, logger))
			r.Use(limiter.Middleware(logger))

			r.Get("/me", me.New(logger, s.Subscription).ServeHTTP)

			r.Post("/subscription/upgrade", upgrade.New(logger, s.Subscription).ServeHTTP)
			r.Get("/subscription/transactions", transactions.New(logger, s.Subscription).ServeHTTP)

			r.Post("/papers/generate", generate.New(logger, s.Papers).ServeHTTP)
			r.Get("/papers", list.New(logger, s.Papers).ServeHTTP)
			r.Get("/papers/current/export", export.New(logger, s.Papers).ServeHTTP)
			r.Put("/papers/current", update.New(logger, s.Papers).ServeHTTP)
			r.Put("/papers/current/selection", selection.New(logger, s.Papers).ServeHTTP)
			r.Post("/papers/{id}/load", load.New(logger, s.Papers).ServeHTTP)
			r.Delete("/papers/{id}", remove.New(logger, s.Papers).ServeHTTP)

			// Только для администраторов
			r.Route("/admin", func(r chi.Router) {
				r.Use(middlewarectx.AdminOnly(logger))
				r.Get("/transactions", admintransactions.New(logger, s.Subscription).ServeHTTP)
				r.Post("/transactions/{id}/approve", approve.New(logger, s.Subscription).ServeHTTP)
				r.Post("/transactions/{id}/reject", reject.New(logger, s.Subscription).ServeHTTP)
				r.Get("/users", users.New(logger, s.Repository).ServeHTTP)
			})
		})
	})

	r.Get("/health", health.New(logger, s.Repository).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
