// Package login реализует HTTP-обработчик входа по email и паролю.
//
// Успешный вход открывает сессию и возвращает JWT, который клиент передаёт
// в заголовке Authorization. Неверные учётные данные дают 401,
// непринятые условия — 403 с текстом "Please accept terms".
package login

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
	gatewayservice "github.com/magabrotheeeer/coaching-onboarding/internal/services/gateway"
)

// Request — структура входных данных для авторизации.
type Request struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Handler обрабатывает HTTP-запросы для авторизации.
type Handler struct {
	log      *slog.Logger        // Логгер для записи операций и ошибок
	service  Service             // Шлюз сессий
	validate *validator.Validate // Валидатор для проверки входных данных
}

// Service описывает интерфейс входа.
type Service interface {
	Login(ctx context.Context, email, password string) (gatewayservice.LoginResult, error)
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Вход пользователя
// @Description Проверяет email и пароль, открывает сессию и возвращает JWT.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Учетные данные пользователя"
// @Success 200 {object} response.Response "Успешный вход"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Invalid credentials"
// @Failure 403 {object} response.ErrorResponse "Please accept terms"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /login [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.login"

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
		log.Info("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Validation(err))
		return
	}

	res, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		log.Error("login failed", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	if !res.Success {
		log.Info("login rejected", slog.String("reason", res.Error))
		render.Status(r, StatusFor(res.Error))
		render.JSON(w, r, response.Error(res.Error))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(res))
}

// StatusFor возвращает HTTP-код для отказа во входе.
func StatusFor(msg string) int {
	if msg == gatewayservice.MsgAcceptTerms {
		return http.StatusForbidden
	}
	return http.StatusUnauthorized
}
