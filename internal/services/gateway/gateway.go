// Package services реализует шлюз сессий и плана: вход и выход, закрытие
// сессии, чтение плана текущего клиента и приём ответов на формы.
//
// Сессия привязана к запросу: токен несёт идентификатор сессии, а сама
// сессия хранится в SessionStore. Процессного «текущего пользователя» нет.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/coaching-onboarding/internal/cache"
	"github.com/magabrotheeeer/coaching-onboarding/internal/lib/jwt"
	"github.com/magabrotheeeer/coaching-onboarding/internal/lib/password"
	"github.com/magabrotheeeer/coaching-onboarding/internal/lib/sl"
	"github.com/magabrotheeeer/coaching-onboarding/internal/metrics"
	"github.com/magabrotheeeer/coaching-onboarding/internal/models"
)

// Тексты ошибок, которые видит клиент.
const (
	MsgInvalidCredentials = "Invalid credentials"
	MsgAcceptTerms        = "Please accept terms"
	MsgNotAuthenticated   = "Not authenticated"
	MsgNoEnrollmentFound  = "No coaching enrollment found"
	MsgNoEnrollment       = "No coaching enrollment"
)

// Причины закрытия сессии для метрик.
const (
	reasonLogout = "logout"
	reasonExpire = "expire"
)

// ErrNotAuthenticated возвращается, если токен невалиден или сессия закрыта.
var ErrNotAuthenticated = errors.New("not authenticated")

// Repository — методы хранилища, которые использует шлюз.
type Repository interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	UpdateAcceptance(ctx context.Context, userUID string, terms, disclaimer bool) error
	GetCurrentClient(ctx context.Context, userUID string) (*models.CoachingClient, error)
	AddFormResponse(ctx context.Context, resp models.FormResponse) (*models.FormResponse, error)
	ListFormResponses(ctx context.Context, clientID string) ([]models.FormResponse, error)
}

// SessionStore хранит сессии по идентификатору.
type SessionStore interface {
	CreateSession(ctx context.Context, session models.Session, ttl time.Duration) error
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
	DeleteSession(ctx context.Context, sessionID string) (bool, error)
}

// PlanCache кэширует тело успешного ответа плана.
type PlanCache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

// StatusUpdater меняет статус клиента по правилам хранилища зачислений.
type StatusUpdater interface {
	UpdateClientStatus(ctx context.Context, id string, status models.Status) (bool, error)
}

// LoginResult — результат входа.
type LoginResult struct {
	Success bool         `json:"success"`
	User    *models.User `json:"user,omitempty"`
	Token   string       `json:"token,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// FormResult — результат отправки формы.
type FormResult struct {
	Success  bool                 `json:"success"`
	Response *models.FormResponse `json:"response,omitempty"`
	Error    string               `json:"error,omitempty"`
}

// Service — шлюз сессий и плана.
type Service struct {
	repo     Repository
	sessions SessionStore
	plans    PlanCache
	statuses StatusUpdater
	tokens   jwt.Maker
	metrics  *metrics.Metrics
	log      *slog.Logger
	planTTL  time.Duration
}

// NewGatewayService создает новый экземпляр Service.
func NewGatewayService(repo Repository, sessions SessionStore, plans PlanCache, statuses StatusUpdater,
	tokens jwt.Maker, m *metrics.Metrics, log *slog.Logger, planTTL time.Duration) *Service {
	return &Service{
		repo:     repo,
		sessions: sessions,
		plans:    plans,
		statuses: statuses,
		tokens:   tokens,
		metrics:  m,
		log:      log,
		planTTL:  planTTL,
	}
}

// Login проверяет учётные данные и открывает новую сессию.
// Вход запрещён, пока пользователь не принял условия; дисклеймер не проверяется.
func (s *Service) Login(ctx context.Context, email, rawPassword string) (LoginResult, error) {
	const op = "services.gateway.Login"

	user, ok, err := s.checkCredentials(ctx, email, rawPassword)
	if err != nil {
		s.metrics.Login(metrics.ResultError)
		return LoginResult{}, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		s.metrics.Login(metrics.ResultRejected)
		return LoginResult{Error: MsgInvalidCredentials}, nil
	}
	if !user.TermsAccepted {
		s.metrics.Login(metrics.ResultRejected)
		return LoginResult{Error: MsgAcceptTerms}, nil
	}

	token, err := s.openSession(ctx, user)
	if err != nil {
		s.metrics.Login(metrics.ResultError)
		return LoginResult{}, fmt.Errorf("%s: %w", op, err)
	}
	s.metrics.Login(metrics.ResultSuccess)
	s.log.Info("user logged in", slog.String("op", op), slog.String("user_uid", user.UID))
	return LoginResult{Success: true, User: user, Token: token}, nil
}

func (s *Service) checkCredentials(ctx context.Context, email, rawPassword string) (*models.User, bool, error) {
	user, err := s.repo.GetUserByEmail(ctx, models.NormalizeEmail(email))
	if errors.Is(err, models.ErrUserNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if err := password.CompareHash(user.PasswordHash, rawPassword); err != nil {
		return nil, false, nil
	}
	return user, true, nil
}

func (s *Service) openSession(ctx context.Context, user *models.User) (string, error) {
	session := models.Session{ID: uuid.NewString(), UserUID: user.UID, Role: user.Role}
	if err := s.sessions.CreateSession(ctx, session, s.tokens.TTL()); err != nil {
		return "", err
	}
	return s.tokens.GenerateToken(user.UID, user.Role, session.ID)
}

// Authenticate проверяет токен и возвращает открытую сессию.
// Невалидный токен и закрытая сессия дают ErrNotAuthenticated.
func (s *Service) Authenticate(ctx context.Context, token string) (*models.Session, error) {
	const op = "services.gateway.Authenticate"
	if token == "" {
		return nil, ErrNotAuthenticated
	}
	claims, err := s.tokens.ParseToken(token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrNotAuthenticated, err)
	}
	session, err := s.sessions.GetSession(ctx, claims.SessionID())
	if errors.Is(err, cache.ErrSessionNotFound) {
		return nil, ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if session.UserUID != claims.UserUID() {
		return nil, ErrNotAuthenticated
	}
	return session, nil
}

// Logout закрывает сессию. Повторный вызов безопасен.
func (s *Service) Logout(ctx context.Context, session *models.Session) error {
	return s.closeSession(ctx, "services.gateway.Logout", session, reasonLogout)
}

// ExpireSession закрывает сессию так же, как её истечение на сервере:
// следующие запросы с тем же токеном получат 401.
func (s *Service) ExpireSession(ctx context.Context, session *models.Session) error {
	return s.closeSession(ctx, "services.gateway.ExpireSession", session, reasonExpire)
}

func (s *Service) closeSession(ctx context.Context, op string, session *models.Session, reason string) error {
	if !session.IsAuthenticated() {
		return nil
	}
	deleted, err := s.sessions.DeleteSession(ctx, session.ID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if deleted {
		s.metrics.SessionClosed(reason)
		s.log.Info("session closed", slog.String("op", op), slog.String("user_uid", session.UserUID), slog.String("reason", reason))
	}
	return nil
}

// IsAuthenticated сообщает, открыта ли сессия.
func (s *Service) IsAuthenticated(session *models.Session) bool {
	return session.IsAuthenticated()
}

// AcceptTerms принимает условия по учётным данным и сразу выполняет вход.
// Так пользователь, которому Login ответил MsgAcceptTerms, может продолжить.
func (s *Service) AcceptTerms(ctx context.Context, email, rawPassword string, terms, disclaimer bool) (LoginResult, error) {
	const op = "services.gateway.AcceptTerms"

	user, ok, err := s.checkCredentials(ctx, email, rawPassword)
	if err != nil {
		return LoginResult{}, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return LoginResult{Error: MsgInvalidCredentials}, nil
	}
	if err := s.updateAcceptance(ctx, user, terms, disclaimer); err != nil {
		return LoginResult{}, fmt.Errorf("%s: %w", op, err)
	}
	if !user.TermsAccepted {
		return LoginResult{Error: MsgAcceptTerms}, nil
	}

	token, err := s.openSession(ctx, user)
	if err != nil {
		return LoginResult{}, fmt.Errorf("%s: %w", op, err)
	}
	s.metrics.Login(metrics.ResultSuccess)
	return LoginResult{Success: true, User: user, Token: token}, nil
}

// AcceptTermsForSession принимает условия для уже вошедшего пользователя,
// например, когда остался непринятым только дисклеймер.
func (s *Service) AcceptTermsForSession(ctx context.Context, session *models.Session, terms, disclaimer bool) (*models.User, error) {
	const op = "services.gateway.AcceptTermsForSession"
	if !session.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}
	user, err := s.repo.GetUser(ctx, session.UserUID)
	if errors.Is(err, models.ErrUserNotFound) {
		return nil, ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.updateAcceptance(ctx, user, terms, disclaimer); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

// updateAcceptance только выставляет флаги: отозвать принятие нельзя.
func (s *Service) updateAcceptance(ctx context.Context, user *models.User, terms, disclaimer bool) error {
	newTerms := user.TermsAccepted || terms
	newDisclaimer := user.DisclaimerAccepted || disclaimer
	if newTerms == user.TermsAccepted && newDisclaimer == user.DisclaimerAccepted {
		return nil
	}
	if err := s.repo.UpdateAcceptance(ctx, user.UID, newTerms, newDisclaimer); err != nil {
		return err
	}
	user.TermsAccepted = newTerms
	user.DisclaimerAccepted = newDisclaimer
	s.invalidatePlan(ctx, user.UID)
	return nil
}

// GetMyPlan возвращает ответ плана для сессии. Статус ответа входит в результат:
// 401 без сессии, 404 без зачисления, 200 с данными клиента.
// Ошибка возвращается только при сбое хранилища.
func (s *Service) GetMyPlan(ctx context.Context, session *models.Session) (models.PlanResponse, error) {
	const op = "services.gateway.GetMyPlan"

	resp, err := s.buildPlan(ctx, session)
	if err != nil {
		s.metrics.PlanResponse(http.StatusInternalServerError)
		return models.PlanResponse{}, fmt.Errorf("%s: %w", op, err)
	}
	s.metrics.PlanResponse(resp.Status)
	return resp, nil
}

func (s *Service) buildPlan(ctx context.Context, session *models.Session) (models.PlanResponse, error) {
	if !session.IsAuthenticated() {
		return planMessage(http.StatusUnauthorized, MsgNotAuthenticated), nil
	}

	// Пользователь проверяется до кэша: удалённый пользователь получает 401 сразу.
	user, err := s.repo.GetUser(ctx, session.UserUID)
	if errors.Is(err, models.ErrUserNotFound) {
		return planMessage(http.StatusUnauthorized, MsgNotAuthenticated), nil
	}
	if err != nil {
		return models.PlanResponse{}, err
	}

	key := cache.PlanKey(user.UID)
	var cached models.PlanBody
	found, err := s.plans.Get(ctx, key, &cached)
	if err != nil {
		s.log.Warn("plan cache read failed", slog.String("user_uid", user.UID), sl.Err(err))
	}
	if found {
		return models.PlanResponse{Status: http.StatusOK, Body: cached}, nil
	}

	client, err := s.repo.GetCurrentClient(ctx, user.UID)
	if errors.Is(err, models.ErrClientNotFound) {
		return planMessage(http.StatusNotFound, MsgNoEnrollmentFound), nil
	}
	if err != nil {
		return models.PlanResponse{}, err
	}

	forms, err := s.repo.ListFormResponses(ctx, client.ID)
	if err != nil {
		return models.PlanResponse{}, err
	}

	body := models.PlanBody{
		Client:        models.NewPlanClient(client),
		Tips:          TipsFor(client.Status),
		FormResponses: forms,
		UserProfile:   models.NewUserProfile(user),
	}
	if err := s.plans.Set(ctx, key, body, s.planTTL); err != nil {
		s.log.Warn("plan cache write failed", slog.String("user_uid", user.UID), sl.Err(err))
	}
	return models.PlanResponse{Status: http.StatusOK, Body: body}, nil
}

func planMessage(status int, msg string) models.PlanResponse {
	return models.PlanResponse{Status: status, Body: models.PlanBody{Message: msg}}
}

// SubmitFormResponse сохраняет ответы на форму для текущего клиента сессии.
// Анкета intake переводит клиента из enrolled в intake_complete.
func (s *Service) SubmitFormResponse(ctx context.Context, session *models.Session, formType string, responses map[string]any) (FormResult, error) {
	const op = "services.gateway.SubmitFormResponse"
	log := s.log.With(slog.String("op", op))

	if !session.IsAuthenticated() {
		return FormResult{Error: MsgNotAuthenticated}, nil
	}
	client, err := s.repo.GetCurrentClient(ctx, session.UserUID)
	if errors.Is(err, models.ErrClientNotFound) {
		return FormResult{Error: MsgNoEnrollment}, nil
	}
	if err != nil {
		return FormResult{}, fmt.Errorf("%s: %w", op, err)
	}

	saved, err := s.repo.AddFormResponse(ctx, models.FormResponse{
		ClientID:  client.ID,
		FormType:  formType,
		Responses: responses,
	})
	if err != nil {
		return FormResult{}, fmt.Errorf("%s: %w", op, err)
	}
	s.invalidatePlan(ctx, session.UserUID)

	if formType == models.FormTypeIntake && client.Status == models.StatusEnrolled {
		if _, err := s.statuses.UpdateClientStatus(ctx, client.ID, models.StatusIntakeComplete); err != nil {
			log.Error("failed to complete intake", slog.String("client_id", client.ID), sl.Err(err))
		}
	}

	log.Info("form response saved", slog.String("client_id", client.ID), slog.String("form_type", formType))
	return FormResult{Success: true, Response: saved}, nil
}

func (s *Service) invalidatePlan(ctx context.Context, userUID string) {
	if err := s.plans.Invalidate(ctx, cache.PlanKey(userUID)); err != nil {
		s.log.Warn("failed to invalidate plan cache", slog.String("user_uid", userUID), sl.Err(err))
	}
}
