// Package expire реализует HTTP-обработчик принудительного истечения сессии.
// После него запросы с тем же токеном получают 401, как после истечения TTL.
package expire

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/coaching-onboarding/internal/http/middlewarectx"
	"github.com/magabrotheeeer/coaching-onboarding/internal/http/response"
	"github.com/magabrotheeeer/coaching-onboarding/internal/lib/sl"
	"github.com/magabrotheeeer/coaching-onboarding/internal/models"
)

// Service закрывает сессию как истёкшую.
type Service interface {
	ExpireSession(ctx context.Context, session *models.Session) error
}

// Handler обрабатывает POST /api/session/expire.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Истечение сессии
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse
// @Router /session/expire [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.expire"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	if err := h.service.ExpireSession(r.Context(), middlewarectx.SessionFromContext(r.Context())); err != nil {
		log.Error("expire session failed", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}
	render.JSON(w, r, response.OK())
}
