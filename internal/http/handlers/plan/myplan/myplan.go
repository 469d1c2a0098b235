// Package myplan реализует GET /api/my-plan.
//
// Обработчик отдаёт код и тело ответа шлюза как есть, без конверта
// response.Response: клиент выбирает экран по коду 401/404/200 и полю client.
package myplan

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/coaching-onboarding/internal/http/middlewarectx"
	"github.com/magabrotheeeer/coaching-onboarding/internal/lib/sl"
	"github.com/magabrotheeeer/coaching-onboarding/internal/models"
)

// Service возвращает план сессии.
type Service interface {
	GetMyPlan(ctx context.Context, session *models.Session) (models.PlanResponse, error)
}

// Handler обрабатывает GET /api/my-plan.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary План текущего клиента
// @Description 401 без сессии, 404 без зачисления, 200 с данными клиента.
// @Tags Plan
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.PlanBody
// @Failure 401 {object} models.PlanBody
// @Failure 404 {object} models.PlanBody
// @Router /my-plan [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.plan.myplan"

	plan, err := h.service.GetMyPlan(r.Context(), middlewarectx.SessionFromContext(r.Context()))
	if err != nil {
		h.log.Error("failed to build plan",
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			sl.Err(err),
		)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, models.PlanBody{Message: "Internal error"})
		return
	}

	render.Status(r, plan.Status)
	render.JSON(w, r, plan.Body)
}
