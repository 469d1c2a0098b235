// Package status реализует PATCH /api/admin/coaching-clients/{id}/status.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/coaching-onboarding/internal/coaching"
	"github.com/magabrotheeeer/coaching-onboarding/internal/http/response"
	"github.com/magabrotheeeer/coaching-onboarding/internal/lib/sl"
	"github.com/magabrotheeeer/coaching-onboarding/internal/models"
)

// Request — новый статус клиента.
type Request struct {
	Status string `json:"status" validate:"required"`
}

// Result — тело успешного ответа.
type Result struct {
	Updated bool          `json:"updated"`
	Status  models.Status `json:"status"`
}

// Service меняет статус клиента.
type Service interface {
	UpdateClientStatus(ctx context.Context, id string, status models.Status) (bool, error)
}

// Handler обрабатывает смену статуса.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service, validate: validator.New()}
}

// ServeHTTP godoc
// @Summary Смена статуса клиента
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID клиента"
// @Param request body Request true "Новый статус"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse "Недопустимый переход"
// @Failure 422 {object} response.ErrorResponse "Неизвестный статус"
// @Router /admin/coaching-clients/{id}/status [patch]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.coaching.status"
	id := chi.URLParam(r, "id")
	log := h.log.With(
		slog.String("op", op),
		slog.String("client_id", id),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Validation(err))
		return
	}
	next, err := models.ParseStatus(req.Status)
	if err != nil {
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error(err.Error()))
		return
	}

	updated, err := h.service.UpdateClientStatus(r.Context(), id, next)
	switch {
	case errors.Is(err, coaching.ErrInvalidTransition),
		errors.Is(err, models.ErrStatusChanged),
		errors.Is(err, models.ErrAlreadyEnrolled):
		log.Info("status change rejected", sl.Err(err))
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, response.Error(err.Error()))
		return
	case err != nil:
		log.Error("failed to update status", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	case !updated:
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("coaching client not found"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(Result{Updated: true, Status: next}))
}
