// Package claim реализует HTTP-обработчик активации приглашённой учётной записи:
// пользователь предъявляет токен из письма и задаёт свой пароль.
package claim

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/coaching-onboarding/internal/http/response"
	"github.com/magabrotheeeer/coaching-onboarding/internal/lib/sl"
	"github.com/magabrotheeeer/coaching-onboarding/internal/models"
)

// Request — токен активации и новый пароль.
type Request struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// Service активирует учётную запись.
type Service interface {
	ClaimAccount(ctx context.Context, token, newPassword string) (*models.User, error)
}

// Handler обрабатывает POST /api/claim.
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
// @Summary Активация учётной записи
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body Request true "Токен из письма и новый пароль"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse "Токен не найден или истёк"
// @Failure 422 {object} response.ErrorResponse
// @Router /claim [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.claim"
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

	user, err := h.service.ClaimAccount(r.Context(), req.Token, req.Password)
	if errors.Is(err, models.ErrClaimTokenNotFound) {
		log.Info("claim token rejected")
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("invalid or expired claim token"))
		return
	}
	if err != nil {
		log.Error("claim failed", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(user))
}
