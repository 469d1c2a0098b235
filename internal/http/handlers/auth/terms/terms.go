// Package terms реализует HTTP-обработчик принятия условий и дисклеймера.
//
// С открытой сессией флаги выставляются текущему пользователю. Без сессии
// нужны email и пароль: так пользователь, которому вход ответил
// "Please accept terms", принимает условия и сразу получает токен.
package terms

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/coaching-onboarding/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/coaching-onboarding/internal/http/middlewarectx"
	"github.com/magabrotheeeer/coaching-onboarding/internal/http/response"
	"github.com/magabrotheeeer/coaching-onboarding/internal/lib/sl"
	"github.com/magabrotheeeer/coaching-onboarding/internal/models"
	gatewayservice "github.com/magabrotheeeer/coaching-onboarding/internal/services/gateway"
)

// Request — флаги принятия и, без сессии, учётные данные.
type Request struct {
	Email              string `json:"email" validate:"omitempty,email"`
	Password           string `json:"password"`
	TermsAccepted      bool   `json:"termsAccepted"`
	DisclaimerAccepted bool   `json:"disclaimerAccepted"`
}

// Service принимает условия.
type Service interface {
	AcceptTerms(ctx context.Context, email, password string, terms, disclaimer bool) (gatewayservice.LoginResult, error)
	AcceptTermsForSession(ctx context.Context, session *models.Session, terms, disclaimer bool) (*models.User, error)
}

// Handler обрабатывает POST /api/terms.
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
// @Summary Принятие условий и дисклеймера
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body Request true "Флаги принятия"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse
// @Failure 403 {object} response.ErrorResponse
// @Router /terms [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.terms"
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

	if session := middlewarectx.SessionFromContext(r.Context()); session.IsAuthenticated() {
		user, err := h.service.AcceptTermsForSession(r.Context(), session, req.TermsAccepted, req.DisclaimerAccepted)
		if err != nil {
			log.Error("accept terms failed", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal error"))
			return
		}
		render.JSON(w, r, response.StatusOKWithData(user))
		return
	}

	if req.Email == "" || req.Password == "" {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error(gatewayservice.MsgNotAuthenticated))
		return
	}

	res, err := h.service.AcceptTerms(r.Context(), req.Email, req.Password, req.TermsAccepted, req.DisclaimerAccepted)
	if err != nil {
		log.Error("accept terms failed", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}
	if !res.Success {
		render.Status(r, login.StatusFor(res.Error))
		render.JSON(w, r, response.Error(res.Error))
		return
	}
	render.JSON(w, r, response.StatusOKWithData(res))
}
