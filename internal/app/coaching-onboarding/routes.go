// Package coachingonboarding собирает HTTP-приложение сервиса зачислений.
package coachingonboarding

import (
	"errors"
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/coaching-onboarding/internal/config"
	"github.com/magabrotheeeer/coaching-onboarding/internal/http/handlers/auth/claim"
	"github.com/magabrotheeeer/coaching-onboarding/internal/http/handlers/auth/expire"
	"github.com/magabrotheeeer/coaching-onboarding/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/coaching-onboarding/internal/http/handlers/auth/logout"
	"github.com/magabrotheeeer/coaching-onboarding/internal/http/handlers/auth/terms"
	"github.com/magabrotheeeer/coaching-onboarding/internal/http/handlers/coaching/enroll"
	"github.com/magabrotheeeer/coaching-onboarding/internal/http/handlers/coaching/formresponse"
	"github.com/magabrotheeeer/coaching-onboarding/internal/http/handlers/coaching/status"
	"github.com/magabrotheeeer/coaching-onboarding/internal/http/handlers/health"
	"github.com/magabrotheeeer/coaching-onboarding/internal/http/handlers/plan/myplan"
	"github.com/magabrotheeeer/coaching-onboarding/internal/http/middlewarectx"
	enrollmentservice "github.com/magabrotheeeer/coaching-onboarding/internal/services/enrollment"
	gatewayservice "github.com/magabrotheeeer/coaching-onboarding/internal/services/gateway"
)

// Services — зависимости обработчиков.
type Services struct {
	Gateway    *gatewayservice.Service
	Enrollment *enrollmentservice.Service
	Checks     map[string]health.Pinger
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, svc Services, limit config.RateLimit) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api", func(r chi.Router) {
		r.Use(middlewarectx.SessionMiddleware(svc.Gateway, isAuthErr, logger))

		r.With(middlewarectx.RateLimitMiddleware(logger, limit.RPS, limit.Burst)).
			Post("/login", login.New(logger, svc.Gateway).ServeHTTP)
		r.Post("/logout", logout.New(logger, svc.Gateway).ServeHTTP)
		r.Post("/session/expire", expire.New(logger, svc.Gateway).ServeHTTP)
		r.Post("/claim", claim.New(logger, svc.Enrollment).ServeHTTP)
		r.Post("/terms", terms.New(logger, svc.Gateway).ServeHTTP)
		r.Get("/healthz", health.New(logger, svc.Checks).ServeHTTP)

		// Отказ 401/404 формирует сам шлюз: клиенту нужен сырой контракт ответа.
		r.Get("/my-plan", myplan.New(logger, svc.Gateway).ServeHTTP)
		r.Post("/coaching-clients/form-responses", formresponse.New(logger, svc.Gateway).ServeHTTP)

		r.Route("/admin", func(r chi.Router) {
			r.Use(middlewarectx.AdminOnly(logger))
			r.Post("/coaching-clients", enroll.New(logger, svc.Enrollment).ServeHTTP)
			r.Patch("/coaching-clients/{id}/status", status.New(logger, svc.Enrollment).ServeHTTP)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}

func isAuthErr(err error) bool {
	return errors.Is(err, gatewayservice.ErrNotAuthenticated)
}
