// Package services содержит бизнес-логику зачисления клиентов коучинга:
// создание пользователей, зачисление администратором с защитой от дублей,
// смену статусов по таблице переходов и активацию приглашённых учётных записей.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/magabrotheeeer/coaching-onboarding/internal/cache"
	"github.com/magabrotheeeer/coaching-onboarding/internal/coaching"
	"github.com/magabrotheeeer/coaching-onboarding/internal/lib/password"
	"github.com/magabrotheeeer/coaching-onboarding/internal/lib/sl"
	"github.com/magabrotheeeer/coaching-onboarding/internal/metrics"
	"github.com/magabrotheeeer/coaching-onboarding/internal/models"
)

// ErrMsgAlreadyEnrolled — текст ошибки при попытке повторного зачисления.
const ErrMsgAlreadyEnrolled = "This user already has an active coaching enrollment."

// ErrMsgUnknownCoachingType — текст ошибки для неизвестного типа программы.
const ErrMsgUnknownCoachingType = "Unknown coaching type"

// Repository определяет методы хранилища, нужные сервису зачисления.
type Repository interface {
	CreateUser(ctx context.Context, user models.User) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	UpdatePassword(ctx context.Context, userUID, passwordHash string) error
	GetCurrentClient(ctx context.Context, userUID string) (*models.CoachingClient, error)
	GetClient(ctx context.Context, id string) (*models.CoachingClient, error)
	// CreateClientIfNoneActive атомарно вставляет запись или возвращает models.ErrAlreadyEnrolled.
	CreateClientIfNoneActive(ctx context.Context, client models.CoachingClient) (*models.CoachingClient, error)
	// SetClientStatus меняет статус, только если текущий равен from.
	SetClientStatus(ctx context.Context, id string, from, to models.Status) error
	CreateClaimToken(ctx context.Context, token, userUID string, expiresAt time.Time) error
	ConsumeClaimToken(ctx context.Context, token string, now time.Time) (string, error)
}

// Cache описывает инвалидацию закэшированных планов.
type Cache interface {
	Invalidate(ctx context.Context, keys ...string) error
}

// Publisher публикует доменные события.
type Publisher interface {
	PublishInvite(ctx context.Context, event models.InviteEvent) error
	PublishStatusChanged(ctx context.Context, event models.StatusChangedEvent) error
}

// Options — правила зачисления.
type Options struct {
	AllowAnyTransition bool
	PlanDurationWeeks  int
	Location           *time.Location
	ClaimBaseURL       string
	ClaimTTL           time.Duration
	Now                func() time.Time
}

// NewUser — данные для создания учётной записи.
type NewUser struct {
	Email     string
	FirstName string
	LastName  string
	Password  string
	Role      string
}

// EnrollRequest — запрос администратора на зачисление.
type EnrollRequest struct {
	Email        string
	FirstName    string
	LastName     string
	CoachingType string
}

// EnrollResult — результат зачисления. Бизнес-отказ описывается в Error,
// инфраструктурные сбои возвращаются отдельной ошибкой.
type EnrollResult struct {
	Success bool                   `json:"success"`
	Client  *models.CoachingClient `json:"client,omitempty"`
	Error   string                 `json:"error,omitempty"`
	// UserCreated сообщает, что пользователь был создан автоматически и получил приглашение.
	UserCreated bool `json:"userCreated,omitempty"`
}

// Service реализует операции хранилища зачислений поверх Repository.
type Service struct {
	repo    Repository
	cache   Cache
	pub     Publisher
	metrics *metrics.Metrics
	log     *slog.Logger
	opts    Options
}

// NewEnrollmentService создает новый экземпляр Service.
func NewEnrollmentService(repo Repository, cache Cache, pub Publisher, m *metrics.Metrics, log *slog.Logger, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.PlanDurationWeeks <= 0 {
		opts.PlanDurationWeeks = coaching.DefaultPlanDurationWeeks
	}
	if opts.ClaimTTL <= 0 {
		opts.ClaimTTL = 7 * 24 * time.Hour
	}
	return &Service{
		repo:    repo,
		cache:   cache,
		pub:     pub,
		metrics: m,
		log:     log,
		opts:    opts,
	}
}

// CreateUser нормализует email, хэширует пароль и сохраняет пользователя.
// Уникальность email не проверяется: вызывающий обязан сначала вызвать GetUserByEmail.
func (s *Service) CreateUser(ctx context.Context, nu NewUser) (*models.User, error) {
	const op = "services.enrollment.CreateUser"
	hash, err := password.GetHash(nu.Password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	role := nu.Role
	if role == "" {
		role = models.RoleUser
	}
	user, err := s.repo.CreateUser(ctx, models.User{
		Email:        models.NormalizeEmail(nu.Email),
		FirstName:    nu.FirstName,
		LastName:     nu.LastName,
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

// GetUserByEmail ищет пользователя по нормализованному email.
// Если пользователя нет, возвращает models.ErrUserNotFound.
func (s *Service) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "services.enrollment.GetUserByEmail"
	user, err := s.repo.GetUserByEmail(ctx, models.NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

// GetCoachingClientByUserID возвращает текущую запись пользователя: самую новую
// незавершённую, иначе самую новую вообще. Без записей возвращает models.ErrClientNotFound.
func (s *Service) GetCoachingClientByUserID(ctx context.Context, userUID string) (*models.CoachingClient, error) {
	const op = "services.enrollment.GetCoachingClientByUserID"
	client, err := s.repo.GetCurrentClient(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return client, nil
}

// AdminEnrollClient зачисляет пользователя с email в программу. Неизвестный
// пользователь создаётся автоматически со случайным паролем и получает ссылку активации.
func (s *Service) AdminEnrollClient(ctx context.Context, req EnrollRequest) (EnrollResult, error) {
	const op = "services.enrollment.AdminEnrollClient"
	log := s.log.With(slog.String("op", op))

	coachingType, err := models.ParseCoachingType(req.CoachingType)
	if err != nil {
		s.metrics.Enrollment(metrics.ResultRejected)
		return EnrollResult{Error: ErrMsgUnknownCoachingType}, nil
	}

	user, created, err := s.lookupOrProvision(ctx, req)
	if err != nil {
		s.metrics.Enrollment(metrics.ResultError)
		return EnrollResult{}, fmt.Errorf("%s: %w", op, err)
	}

	current, err := s.repo.GetCurrentClient(ctx, user.UID)
	switch {
	case err == nil && !current.Status.IsTerminal():
		s.metrics.Enrollment(metrics.ResultConflict)
		log.Info("user already enrolled", slog.String("user_uid", user.UID), slog.String("client_id", current.ID))
		return EnrollResult{Error: ErrMsgAlreadyEnrolled}, nil
	case err != nil && !errors.Is(err, models.ErrClientNotFound):
		s.metrics.Enrollment(metrics.ResultError)
		return EnrollResult{}, fmt.Errorf("%s: %w", op, err)
	}

	start, end := coaching.EnrollmentWindow(s.opts.Now().In(s.opts.Location), s.opts.PlanDurationWeeks)
	client, err := s.repo.CreateClientIfNoneActive(ctx, models.CoachingClient{
		UserUID:           user.UID,
		Status:            models.StatusEnrolled,
		CoachingType:      coachingType,
		PaymentStatus:     models.PaymentStatusCompleted,
		StartDate:         start,
		EndDate:           end,
		PlanDurationWeeks: s.opts.PlanDurationWeeks,
	})
	if errors.Is(err, models.ErrAlreadyEnrolled) {
		s.metrics.Enrollment(metrics.ResultConflict)
		return EnrollResult{Error: ErrMsgAlreadyEnrolled}, nil
	}
	if err != nil {
		s.metrics.Enrollment(metrics.ResultError)
		return EnrollResult{}, fmt.Errorf("%s: %w", op, err)
	}

	s.invalidatePlan(ctx, user.UID)
	if created {
		s.sendInvite(ctx, user)
	}

	s.metrics.Enrollment(metrics.ResultSuccess)
	log.Info("client enrolled",
		slog.String("user_uid", user.UID),
		slog.String("client_id", client.ID),
		slog.Time("start_date", client.StartDate),
	)
	return EnrollResult{Success: true, Client: client, UserCreated: created}, nil
}

func (s *Service) lookupOrProvision(ctx context.Context, req EnrollRequest) (*models.User, bool, error) {
	user, err := s.repo.GetUserByEmail(ctx, models.NormalizeEmail(req.Email))
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, models.ErrUserNotFound) {
		return nil, false, err
	}

	// Пароль никому не сообщается: пользователь задаёт свой по ссылке активации.
	secret, err := password.GenerateSecret()
	if err != nil {
		return nil, false, err
	}
	user, err = s.CreateUser(ctx, NewUser{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  secret,
	})
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}

// sendInvite выпускает токен активации и публикует приглашение.
// Сбой не отменяет зачисление: администратор может повторить приглашение.
func (s *Service) sendInvite(ctx context.Context, user *models.User) {
	const op = "services.enrollment.sendInvite"
	log := s.log.With(slog.String("op", op), slog.String("user_uid", user.UID))

	token, err := password.GenerateSecret()
	if err != nil {
		log.Error("failed to generate claim token", sl.Err(err))
		return
	}
	if err := s.repo.CreateClaimToken(ctx, token, user.UID, s.opts.Now().Add(s.opts.ClaimTTL)); err != nil {
		log.Error("failed to store claim token", sl.Err(err))
		return
	}
	event := models.InviteEvent{
		Email:     user.Email,
		FirstName: user.FirstName,
		ClaimURL:  claimURL(s.opts.ClaimBaseURL, token),
	}
	if err := s.pub.PublishInvite(ctx, event); err != nil {
		log.Error("failed to publish invite", sl.Err(err))
	}
}

func claimURL(base, token string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// UpdateClientStatus переводит клиента id в статус status. Для неизвестного id
// возвращает false без ошибки.
//
// По умолчанию переход проверяется таблицей coaching.CanTransition, и обратные
// переходы (например, active -> enrolled) отклоняются с coaching.ErrInvalidTransition.
// Это строже безусловной перезаписи статуса: Options.AllowAnyTransition
// (enrollment.allow_any_transition) возвращает перезапись любого статуса любым.
// Даже в этом режиме у пользователя остаётся не больше одной незавершённой записи:
// оживление завершённой записи при другой активной даёт models.ErrAlreadyEnrolled.
func (s *Service) UpdateClientStatus(ctx context.Context, id string, status models.Status) (bool, error) {
	const op = "services.enrollment.UpdateClientStatus"
	log := s.log.With(slog.String("op", op), slog.String("client_id", id))

	if !status.Valid() {
		return false, fmt.Errorf("%s: %w: %q", op, models.ErrUnknownStatus, status)
	}

	client, err := s.repo.GetClient(ctx, id)
	if errors.Is(err, models.ErrClientNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	from := client.Status
	if !s.opts.AllowAnyTransition {
		if err := coaching.ValidateTransition(from, status); err != nil {
			s.metrics.Transition(string(from), string(status), metrics.ResultRejected)
			return false, fmt.Errorf("%s: %w", op, err)
		}
	}
	if from == status {
		return true, nil
	}

	err = s.repo.SetClientStatus(ctx, id, from, status)
	if errors.Is(err, models.ErrClientNotFound) {
		return false, nil
	}
	if err != nil {
		s.metrics.Transition(string(from), string(status), metrics.ResultConflict)
		return false, fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.Transition(string(from), string(status), metrics.ResultSuccess)
	log.Info("client status changed", slog.String("from", string(from)), slog.String("to", string(status)))

	s.invalidatePlan(ctx, client.UserUID)
	s.publishStatusChanged(ctx, client, from, status)
	return true, nil
}

func (s *Service) publishStatusChanged(ctx context.Context, client *models.CoachingClient, from, to models.Status) {
	const op = "services.enrollment.publishStatusChanged"
	log := s.log.With(slog.String("op", op), slog.String("client_id", client.ID))

	event := models.StatusChangedEvent{
		ClientID: client.ID,
		UserUID:  client.UserUID,
		From:     from,
		To:       to,
	}
	if user, err := s.repo.GetUser(ctx, client.UserUID); err == nil {
		event.Email = user.Email
		event.FirstName = user.FirstName
	} else {
		log.Warn("failed to load user for status event", sl.Err(err))
	}
	if err := s.pub.PublishStatusChanged(ctx, event); err != nil {
		log.Error("failed to publish status change", sl.Err(err))
	}
}

func (s *Service) invalidatePlan(ctx context.Context, userUID string) {
	if err := s.cache.Invalidate(ctx, cache.PlanKey(userUID)); err != nil {
		s.log.Warn("failed to invalidate plan cache", slog.String("user_uid", userUID), sl.Err(err))
	}
}

// ClaimAccount активирует приглашённую учётную запись: погашает токен и задаёт пароль.
func (s *Service) ClaimAccount(ctx context.Context, token, newPassword string) (*models.User, error) {
	const op = "services.enrollment.ClaimAccount"
	userUID, err := s.repo.ConsumeClaimToken(ctx, token, s.opts.Now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	hash, err := password.GetHash(newPassword)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.repo.UpdatePassword(ctx, userUID, hash); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	user, err := s.repo.GetUser(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("account claimed", slog.String("op", op), slog.String("user_uid", userUID))
	return user, nil
}

// EnsureAdmin создаёт учётную запись администратора, если пользователя с таким email нет.
func (s *Service) EnsureAdmin(ctx context.Context, email, rawPassword string) error {
	const op = "services.enrollment.EnsureAdmin"
	if email == "" || rawPassword == "" {
		return nil
	}
	_, err := s.repo.GetUserByEmail(ctx, models.NormalizeEmail(email))
	if err == nil {
		return nil
	}
	if !errors.Is(err, models.ErrUserNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err := s.CreateUser(ctx, NewUser{Email: email, FirstName: "Admin", Password: rawPassword, Role: models.RoleAdmin}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("admin account created", slog.String("op", op))
	return nil
}
