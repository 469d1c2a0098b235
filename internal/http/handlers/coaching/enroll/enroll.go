// Package enroll реализует POST /api/admin/coaching-clients: зачисление
// пользователя в программу администратором.
package enroll

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/coaching-onboarding/internal/http/response"
	"github.com/magabrotheeeer/coaching-onboarding/internal/lib/sl"
	enrollmentservice "github.com/magabrotheeeer/coaching-onboarding/internal/services/enrollment"
)

// Request — данные зачисления. Пустой coachingType означает pregnancy_coaching.
type Request struct {
	Email        string `json:"email" validate:"required,email"`
	FirstName    string `json:"firstName" validate:"max=100"`
	LastName     string `json:"lastName" validate:"max=100"`
	CoachingType string `json:"coachingType" validate:"omitempty,oneof=pregnancy_coaching private_coaching"`
}

// Service зачисляет клиента.
type Service interface {
	AdminEnrollClient(ctx context.Context, req enrollmentservice.EnrollRequest) (enrollmentservice.EnrollResult, error)
}

// Handler обрабатывает запрос зачисления.
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
// @Summary Зачисление клиента
// @Description Находит или создаёт пользователя и создаёт запись enrolled со стартом в ближайший понедельник.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body Request true "Данные зачисления"
// @Success 201 {object} response.Response
// @Failure 409 {object} response.ErrorResponse "Уже есть активное зачисление"
// @Failure 422 {object} response.ErrorResponse
// @Router /admin/coaching-clients [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.coaching.enroll"
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

	res, err := h.service.AdminEnrollClient(r.Context(), enrollmentservice.EnrollRequest{
		Email:        req.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		CoachingType: req.CoachingType,
	})
	if err != nil {
		log.Error("enrollment failed", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	switch {
	case res.Success:
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.StatusOKWithData(res))
	case res.Error == enrollmentservice.ErrMsgAlreadyEnrolled:
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, response.ErrorWithData(res.Error, res))
	default:
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ErrorWithData(res.Error, res))
	}
}
