// Package middlewarectx содержит HTTP middleware сессий, прав доступа и
// ограничения частоты запросов.
//
// SessionMiddleware разбирает заголовок Authorization и кладёт открытую
// сессию в контекст запроса. Запрос без сессии пропускается дальше: решать,
// нужна ли сессия, будут RequireSession или сам обработчик.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/coaching-onboarding/internal/http/response"
	"github.com/magabrotheeeer/coaching-onboarding/internal/lib/sl"
	"github.com/magabrotheeeer/coaching-onboarding/internal/models"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

// SessionKey — ключ сессии в контексте.
const SessionKey Key = "session"

// Authenticator проверяет токен и возвращает сессию.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.Session, error)
}

// WithSession возвращает контекст с сессией.
func WithSession(ctx context.Context, session *models.Session) context.Context {
	return context.WithValue(ctx, SessionKey, session)
}

// SessionFromContext возвращает сессию запроса или nil.
func SessionFromContext(ctx context.Context) *models.Session {
	session, _ := ctx.Value(SessionKey).(*models.Session)
	return session
}

// SessionMiddleware возвращает middleware, который открывает сессию по Bearer-токену.
// isAuthErr отличает отказ в аутентификации от сбоя хранилища сессий:
// первый оставляет запрос без сессии, второй завершает его с 500.
func SessionMiddleware(auth Authenticator, isAuthErr func(error) bool, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.SessionMiddleware"

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			session, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				if isAuthErr(err) {
					next.ServeHTTP(w, r)
					return
				}
				log.Error("failed to load session",
					slog.String("op", op),
					slog.String("request_id", middleware.GetReqID(r.Context())),
					sl.Err(err),
				)
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.Error("internal error"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
		})
	}
}

func bearerToken(header string) (string, bool) {
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return token, token != ""
}

// RequireSession отвечает 401, если в контексте нет открытой сессии.
func RequireSession(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !SessionFromContext(r.Context()).IsAuthenticated() {
				log.Debug("request without session", slog.String("request_id", middleware.GetReqID(r.Context())))
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("Not authenticated"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AdminOnly отвечает 401 без сессии и 403 для сессии без роли администратора.
func AdminOnly(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := SessionFromContext(r.Context())
			if !session.IsAuthenticated() {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("Not authenticated"))
				return
			}
			if session.Role != models.RoleAdmin {
				log.Warn("admin route denied",
					slog.String("user_uid", session.UserUID),
					slog.String("request_id", middleware.GetReqID(r.Context())),
				)
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, response.Error("admin access required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
