// Package memory реализует хранилище зачислений в памяти процесса.
// Используется в локальном окружении без PostgreSQL и в сценарных тестах.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/coaching-onboarding/internal/coaching"
	"github.com/magabrotheeeer/coaching-onboarding/internal/models"
)

type claimToken struct {
	userUID   string
	expiresAt time.Time
}

// Storage хранит пользователей, клиентов, анкеты и токены активации.
// Все операции выполняются под одним RWMutex, поэтому проверка
// «нет незавершённой записи» и вставка клиента атомарны.
type Storage struct {
	mu      sync.RWMutex
	now     func() time.Time
	last    time.Time
	users   []models.User
	clients []models.CoachingClient
	forms   []models.FormResponse
	claims  map[string]claimToken
}

// Option настраивает Storage.
type Option func(*Storage)

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(s *Storage) { s.now = now }
}

// New создаёт пустое хранилище.
func New(opts ...Option) *Storage {
	s := &Storage{
		now:    time.Now,
		claims: make(map[string]claimToken),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping всегда успешен.
func (s *Storage) Ping(context.Context) error { return nil }

// tick возвращает строго возрастающую метку времени. Вызывается под write-локом.
func (s *Storage) tick() time.Time {
	t := s.now().UTC()
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

func checkCtx(ctx context.Context, op string) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
		return nil
	}
}

// CreateUser сохраняет пользователя. Уникальность email не проверяется.
func (s *Storage) CreateUser(ctx context.Context, user models.User) (*models.User, error) {
	const op = "storage.memory.CreateUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if user.UID == "" {
		user.UID = uuid.NewString()
	}
	user.Email = models.NormalizeEmail(user.Email)
	user.CreatedAt = s.tick()
	s.users = append(s.users, user)
	return &user, nil
}

// GetUserByEmail возвращает первого сохранённого пользователя с таким email.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.memory.GetUserByEmail"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	email = models.NormalizeEmail(email)
	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
}

// GetUser возвращает пользователя по UID.
func (s *Storage) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	const op = "storage.memory.GetUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.userIndex(userUID); i >= 0 {
		u := s.users[i]
		return &u, nil
	}
	return nil, fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
}

// UpdateAcceptance проставляет флаги принятия условий и дисклеймера.
func (s *Storage) UpdateAcceptance(ctx context.Context, userUID string, terms, disclaimer bool) error {
	const op = "storage.memory.UpdateAcceptance"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.userIndex(userUID)
	if i < 0 {
		return fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
	}
	s.users[i].TermsAccepted = terms
	s.users[i].DisclaimerAccepted = disclaimer
	return nil
}

// UpdatePassword заменяет хэш пароля пользователя.
func (s *Storage) UpdatePassword(ctx context.Context, userUID, passwordHash string) error {
	const op = "storage.memory.UpdatePassword"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.userIndex(userUID)
	if i < 0 {
		return fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
	}
	s.users[i].PasswordHash = passwordHash
	return nil
}

// DeleteUser удаляет учётную запись вместе с её записями о зачислении.
func (s *Storage) DeleteUser(ctx context.Context, userUID string) error {
	const op = "storage.memory.DeleteUser"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.userIndex(userUID)
	if i < 0 {
		return fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
	}
	s.users = slices.Delete(s.users, i, i+1)
	s.clients = slices.DeleteFunc(s.clients, func(c models.CoachingClient) bool { return c.UserUID == userUID })
	return nil
}

func (s *Storage) userIndex(userUID string) int {
	return slices.IndexFunc(s.users, func(u models.User) bool { return u.UID == userUID })
}

func (s *Storage) clientIndex(id string) int {
	return slices.IndexFunc(s.clients, func(c models.CoachingClient) bool { return c.ID == id })
}

func (s *Storage) clientsOf(userUID string) []models.CoachingClient {
	var out []models.CoachingClient
	for _, c := range s.clients {
		if c.UserUID == userUID {
			out = append(out, c)
		}
	}
	return out
}

// hasOtherActive сообщает, есть ли у владельца c другая незавершённая запись.
func (s *Storage) hasOtherActive(c models.CoachingClient) bool {
	for _, other := range s.clients {
		if other.UserUID == c.UserUID && other.ID != c.ID && !other.Status.IsTerminal() {
			return true
		}
	}
	return false
}

// ListClientsByUser возвращает все записи пользователя в порядке создания.
func (s *Storage) ListClientsByUser(ctx context.Context, userUID string) ([]models.CoachingClient, error) {
	const op = "storage.memory.ListClientsByUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clientsOf(userUID), nil
}

// GetCurrentClient возвращает текущую запись пользователя по правилу coaching.ResolveCurrent.
func (s *Storage) GetCurrentClient(ctx context.Context, userUID string) (*models.CoachingClient, error) {
	const op = "storage.memory.GetCurrentClient"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := coaching.ResolveCurrent(s.clientsOf(userUID))
	if current == nil {
		return nil, fmt.Errorf("%s: %w", op, models.ErrClientNotFound)
	}
	return current, nil
}

// GetClient возвращает запись по идентификатору.
func (s *Storage) GetClient(ctx context.Context, id string) (*models.CoachingClient, error) {
	const op = "storage.memory.GetClient"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.clientIndex(id); i >= 0 {
		c := s.clients[i]
		return &c, nil
	}
	return nil, fmt.Errorf("%s: %w", op, models.ErrClientNotFound)
}

// CreateClientIfNoneActive вставляет запись, если у пользователя нет незавершённой.
// Иначе возвращает models.ErrAlreadyEnrolled.
func (s *Storage) CreateClientIfNoneActive(ctx context.Context, client models.CoachingClient) (*models.CoachingClient, error) {
	const op = "storage.memory.CreateClientIfNoneActive"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if coaching.HasActive(s.clientsOf(client.UserUID)) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrAlreadyEnrolled)
	}
	if client.ID == "" {
		client.ID = uuid.NewString()
	}
	client.CreatedAt = s.tick()
	client.UpdatedAt = client.CreatedAt
	s.clients = append(s.clients, client)
	return &client, nil
}

// SetClientStatus меняет статус с from на to. Если текущий статус уже не from,
// возвращает models.ErrStatusChanged. Перевод в незавершённый статус при другой
// незавершённой записи пользователя возвращает models.ErrAlreadyEnrolled.
func (s *Storage) SetClientStatus(ctx context.Context, id string, from, to models.Status) error {
	const op = "storage.memory.SetClientStatus"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.clientIndex(id)
	if i < 0 {
		return fmt.Errorf("%s: %w", op, models.ErrClientNotFound)
	}
	if s.clients[i].Status != from {
		return fmt.Errorf("%s: %w", op, models.ErrStatusChanged)
	}
	if !to.IsTerminal() && s.hasOtherActive(s.clients[i]) {
		return fmt.Errorf("%s: %w", op, models.ErrAlreadyEnrolled)
	}
	s.clients[i].Status = to
	s.clients[i].UpdatedAt = s.tick()
	return nil
}

// ListReadyToStart возвращает клиентов plan_ready, чья программа началась к now.
func (s *Storage) ListReadyToStart(ctx context.Context, now time.Time) ([]models.CoachingClient, error) {
	return s.listDue(ctx, "storage.memory.ListReadyToStart", func(c models.CoachingClient) bool {
		return c.Status == models.StatusPlanReady && !c.StartDate.After(now)
	})
}

// ListReadyToComplete возвращает активных клиентов, чья программа закончилась к now.
func (s *Storage) ListReadyToComplete(ctx context.Context, now time.Time) ([]models.CoachingClient, error) {
	return s.listDue(ctx, "storage.memory.ListReadyToComplete", func(c models.CoachingClient) bool {
		return c.Status == models.StatusActive && !c.EndDate.After(now)
	})
}

func (s *Storage) listDue(ctx context.Context, op string, due func(models.CoachingClient) bool) ([]models.CoachingClient, error) {
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.CoachingClient
	for _, c := range s.clients {
		if due(c) {
			out = append(out, c)
		}
	}
	return out, nil
}

// AddFormResponse добавляет ответы на анкету. Прежние ответы не перезаписываются.
func (s *Storage) AddFormResponse(ctx context.Context, form models.FormResponse) (*models.FormResponse, error) {
	const op = "storage.memory.AddFormResponse"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if form.ID == "" {
		form.ID = uuid.NewString()
	}
	form.Responses = maps.Clone(form.Responses)
	form.CreatedAt = s.tick()
	s.forms = append(s.forms, form)
	return &form, nil
}

// ListFormResponses возвращает анкеты клиента в порядке отправки.
func (s *Storage) ListFormResponses(ctx context.Context, clientID string) ([]models.FormResponse, error) {
	const op = "storage.memory.ListFormResponses"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.FormResponse
	for _, f := range s.forms {
		if f.ClientID == clientID {
			f.Responses = maps.Clone(f.Responses)
			out = append(out, f)
		}
	}
	return out, nil
}

// CreateClaimToken сохраняет токен активации учётной записи.
func (s *Storage) CreateClaimToken(ctx context.Context, token, userUID string, expiresAt time.Time) error {
	const op = "storage.memory.CreateClaimToken"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.claims[token] = claimToken{userUID: userUID, expiresAt: expiresAt}
	return nil
}

// ConsumeClaimToken удаляет токен и возвращает UID его владельца.
// Истёкший или неизвестный токен даёт models.ErrClaimTokenNotFound.
func (s *Storage) ConsumeClaimToken(ctx context.Context, token string, now time.Time) (string, error) {
	const op = "storage.memory.ConsumeClaimToken"
	if err := checkCtx(ctx, op); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ct, ok := s.claims[token]
	if !ok {
		return "", fmt.Errorf("%s: %w", op, models.ErrClaimTokenNotFound)
	}
	delete(s.claims, token)
	if !now.Before(ct.expiresAt) {
		return "", fmt.Errorf("%s: %w", op, models.ErrClaimTokenNotFound)
	}
	return ct.userUID, nil
}
