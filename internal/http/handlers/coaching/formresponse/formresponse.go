// Package formresponse реализует POST /api/coaching-clients/form-responses: сохранение ответов
// клиента на форму. Анкета intake переводит клиента в intake_complete.
package formresponse

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/coaching-onboarding/internal/http/middlewarectx"
	"github.com/magabrotheeeer/coaching-onboarding/internal/http/response"
	"github.com/magabrotheeeer/coaching-onboarding/internal/lib/sl"
	"github.com/magabrotheeeer/coaching-onboarding/internal/models"
	gatewayservice "github.com/magabrotheeeer/coaching-onboarding/internal/services/gateway"
)

// Request — ответы на форму.
type Request struct {
	FormType  string         `json:"formType" validate:"required,max=64"`
	Responses map[string]any `json:"responses" validate:"required"`
}

// Service сохраняет ответы.
type Service interface {
	SubmitFormResponse(ctx context.Context, session *models.Session, formType string, responses map[string]any) (gatewayservice.FormResult, error)
}

// Handler обрабатывает отправку формы.
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
// @Summary Ответы на форму
// @Tags Forms
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body Request true "Ответы"
// @Success 201 {object} response.Response
// @Failure 401 {object} response.ErrorResponse "Not authenticated"
// @Failure 404 {object} response.ErrorResponse "No coaching enrollment"
// @Router /coaching-clients/form-responses [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.coaching.formresponse"
	log := h.log.With(
		slog.String("op", op),
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

	res, err := h.service.SubmitFormResponse(r.Context(), middlewarectx.SessionFromContext(r.Context()), req.FormType, req.Responses)
	if err != nil {
		log.Error("failed to save form response", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	switch res.Error {
	case "":
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.StatusOKWithData(res.Response))
	case gatewayservice.MsgNotAuthenticated:
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error(res.Error))
	case gatewayservice.MsgNoEnrollment:
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error(res.Error))
	default:
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error(res.Error))
	}
}
