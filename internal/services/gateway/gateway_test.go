package services_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/coaching-onboarding/internal/cache"
	"github.com/magabrotheeeer/coaching-onboarding/internal/config"
	"github.com/magabrotheeeer/coaching-onboarding/internal/lib/jwt"
	"github.com/magabrotheeeer/coaching-onboarding/internal/lib/password"
	"github.com/magabrotheeeer/coaching-onboarding/internal/metrics"
	"github.com/magabrotheeeer/coaching-onboarding/internal/models"
	services "github.com/magabrotheeeer/coaching-onboarding/internal/services/gateway"
)

// Мок для Repository
type RepoMock struct {
	mock.Mock
}

func (m *RepoMock) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *RepoMock) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *RepoMock) UpdateAcceptance(ctx context.Context, userUID string, terms, disclaimer bool) error {
	return m.Called(ctx, userUID, terms, disclaimer).Error(0)
}

func (m *RepoMock) GetCurrentClient(ctx context.Context, userUID string) (*models.CoachingClient, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CoachingClient), args.Error(1)
}

func (m *RepoMock) AddFormResponse(ctx context.Context, resp models.FormResponse) (*models.FormResponse, error) {
	args := m.Called(ctx, resp)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FormResponse), args.Error(1)
}

func (m *RepoMock) ListFormResponses(ctx context.Context, clientID string) ([]models.FormResponse, error) {
	args := m.Called(ctx, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.FormResponse), args.Error(1)
}

// Мок для StatusUpdater
type StatusUpdaterMock struct {
	mock.Mock
}

func (m *StatusUpdaterMock) UpdateClientStatus(ctx context.Context, id string, status models.Status) (bool, error) {
	args := m.Called(ctx, id, status)
	return args.Bool(0), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	repo     *RepoMock
	statuses *StatusUpdaterMock
	cache    *cache.Cache
	redis    *miniredis.Miniredis
	svc      *services.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	c, err := cache.InitServer(context.Background(), config.RedisConnection{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	f := &fixture{repo: new(RepoMock), statuses: new(StatusUpdaterMock), cache: c, redis: mr}
	f.svc = services.NewGatewayService(f.repo, cache.NewSessionStore(c), c, f.statuses,
		jwt.NewJWTMaker("test-secret", time.Hour), metrics.New(prometheus.NewRegistry()), newNoopLogger(), time.Minute)
	return f
}

func mustHash(t *testing.T, raw string) string {
	t.Helper()
	hash, err := password.GetHash(raw)
	require.NoError(t, err)
	return hash
}

func TestService_Login(t *testing.T) {
	tests := []struct {
		name       string
		email      string
		password   string
		setupMocks func(t *testing.T, r *RepoMock)
		wantOK     bool
		wantMsg    string
		wantErr    bool
	}{
		{
			name:     "valid credentials with accepted terms",
			email:    " Enrolled@Test.com",
			password: "Password123",
			setupMocks: func(t *testing.T, r *RepoMock) {
				r.On("GetUserByEmail", mock.Anything, "enrolled@test.com").Return(&models.User{
					UID: "u1", Email: "enrolled@test.com", PasswordHash: mustHash(t, "Password123"), TermsAccepted: true,
				}, nil).Once()
			},
			wantOK: true,
		},
		{
			name:     "disclaimer is not required for login",
			email:    "enrolled@test.com",
			password: "Password123",
			setupMocks: func(t *testing.T, r *RepoMock) {
				r.On("GetUserByEmail", mock.Anything, "enrolled@test.com").Return(&models.User{
					UID: "u1", PasswordHash: mustHash(t, "Password123"), TermsAccepted: true, DisclaimerAccepted: false,
				}, nil).Once()
			},
			wantOK: true,
		},
		{
			name:     "wrong password",
			email:    "enrolled@test.com",
			password: "nope",
			setupMocks: func(t *testing.T, r *RepoMock) {
				r.On("GetUserByEmail", mock.Anything, "enrolled@test.com").Return(&models.User{
					UID: "u1", PasswordHash: mustHash(t, "Password123"), TermsAccepted: true,
				}, nil).Once()
			},
			wantMsg: services.MsgInvalidCredentials,
		},
		{
			name:     "unknown email",
			email:    "ghost@test.com",
			password: "whatever",
			setupMocks: func(_ *testing.T, r *RepoMock) {
				r.On("GetUserByEmail", mock.Anything, "ghost@test.com").Return(nil, models.ErrUserNotFound).Once()
			},
			wantMsg: services.MsgInvalidCredentials,
		},
		{
			name:     "terms not accepted",
			email:    "new@test.com",
			password: "Password123",
			setupMocks: func(t *testing.T, r *RepoMock) {
				r.On("GetUserByEmail", mock.Anything, "new@test.com").Return(&models.User{
					UID: "u2", PasswordHash: mustHash(t, "Password123"),
				}, nil).Once()
			},
			wantMsg: services.MsgAcceptTerms,
		},
		{
			name:     "repository failure",
			email:    "enrolled@test.com",
			password: "Password123",
			setupMocks: func(_ *testing.T, r *RepoMock) {
				r.On("GetUserByEmail", mock.Anything, "enrolled@test.com").Return(nil, errors.New("db down")).Once()
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setupMocks(t, f.repo)

			got, err := f.svc.Login(context.Background(), tt.email, tt.password)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, got.Success)
			assert.Equal(t, tt.wantMsg, got.Error)
			if tt.wantOK {
				assert.NotEmpty(t, got.Token)
				require.NotNil(t, got.User)
				session, err := f.svc.Authenticate(context.Background(), got.Token)
				require.NoError(t, err)
				assert.Equal(t, got.User.UID, session.UserUID)
			} else {
				assert.Empty(t, got.Token)
				assert.Nil(t, got.User)
			}
			f.repo.AssertExpectations(t)
		})
	}
}

func loginAs(t *testing.T, f *fixture, user *models.User) *models.Session {
	t.Helper()
	user.PasswordHash = mustHash(t, "Password123")
	user.TermsAccepted = true
	f.repo.On("GetUserByEmail", mock.Anything, user.Email).Return(user, nil).Once()

	res, err := f.svc.Login(context.Background(), user.Email, "Password123")
	require.NoError(t, err)
	require.True(t, res.Success)

	session, err := f.svc.Authenticate(context.Background(), res.Token)
	require.NoError(t, err)
	return session
}

func TestService_SessionsAreIndependent(t *testing.T) {
	f := newFixture(t)
	a := loginAs(t, f, &models.User{UID: "ua", Email: "a@test.com"})
	b := loginAs(t, f, &models.User{UID: "ub", Email: "b@test.com"})

	require.NoError(t, f.svc.Logout(context.Background(), a))
	assert.False(t, f.redis.Exists(cache.SessionKey(a.ID)))
	assert.True(t, f.redis.Exists(cache.SessionKey(b.ID)))

	// Повторный выход безопасен.
	require.NoError(t, f.svc.Logout(context.Background(), a))
	require.NoError(t, f.svc.Logout(context.Background(), nil))
}

func TestService_Authenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Authenticate(ctx, "")
	assert.True(t, errors.Is(err, services.ErrNotAuthenticated))

	_, err = f.svc.Authenticate(ctx, "not-a-jwt")
	assert.True(t, errors.Is(err, services.ErrNotAuthenticated))

	// Подписанный токен без сессии в хранилище.
	token, err := jwt.NewJWTMaker("test-secret", time.Hour).GenerateToken("u1", models.RoleUser, "missing-session")
	require.NoError(t, err)
	_, err = f.svc.Authenticate(ctx, token)
	assert.True(t, errors.Is(err, services.ErrNotAuthenticated))
}

func TestService_ExpireSession_PlanBecomesUnauthorized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := &models.User{UID: "u1", Email: "enrolled@test.com"}

	f.repo.On("GetUserByEmail", mock.Anything, "enrolled@test.com").Return(user, nil).Once()
	user.PasswordHash = mustHash(t, "Password123")
	user.TermsAccepted = true
	res, err := f.svc.Login(ctx, "enrolled@test.com", "Password123")
	require.NoError(t, err)

	session, err := f.svc.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	require.NoError(t, f.svc.ExpireSession(ctx, session))

	_, err = f.svc.Authenticate(ctx, res.Token)
	require.True(t, errors.Is(err, services.ErrNotAuthenticated))

	plan, err := f.svc.GetMyPlan(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, plan.Status)
	assert.Equal(t, services.MsgNotAuthenticated, plan.Body.Message)
}

func TestService_GetMyPlan(t *testing.T) {
	session := &models.Session{ID: "s1", UserUID: "u1"}
	user := &models.User{UID: "u1", Email: "enrolled@test.com", FirstName: "Jane", TermsAccepted: true}
	client := &models.CoachingClient{ID: "c1", UserUID: "u1", Status: models.StatusActive, PlanDurationWeeks: 4}

	tests := []struct {
		name       string
		session    *models.Session
		setupMocks func(r *RepoMock)
		wantStatus int
		wantMsg    string
		wantErr    bool
	}{
		{
			name:       "no session",
			session:    nil,
			setupMocks: func(_ *RepoMock) {},
			wantStatus: http.StatusUnauthorized,
			wantMsg:    services.MsgNotAuthenticated,
		},
		{
			name:    "user deleted",
			session: session,
			setupMocks: func(r *RepoMock) {
				r.On("GetUser", mock.Anything, "u1").Return(nil, models.ErrUserNotFound).Once()
			},
			wantStatus: http.StatusUnauthorized,
			wantMsg:    services.MsgNotAuthenticated,
		},
		{
			name:    "no enrollment",
			session: session,
			setupMocks: func(r *RepoMock) {
				r.On("GetUser", mock.Anything, "u1").Return(user, nil).Once()
				r.On("GetCurrentClient", mock.Anything, "u1").Return(nil, models.ErrClientNotFound).Once()
			},
			wantStatus: http.StatusNotFound,
			wantMsg:    services.MsgNoEnrollmentFound,
		},
		{
			name:    "active client",
			session: session,
			setupMocks: func(r *RepoMock) {
				r.On("GetUser", mock.Anything, "u1").Return(user, nil).Once()
				r.On("GetCurrentClient", mock.Anything, "u1").Return(client, nil).Once()
				r.On("ListFormResponses", mock.Anything, "c1").Return([]models.FormResponse{}, nil).Once()
			},
			wantStatus: http.StatusOK,
		},
		{
			name:    "storage failure",
			session: session,
			setupMocks: func(r *RepoMock) {
				r.On("GetUser", mock.Anything, "u1").Return(nil, errors.New("db down")).Once()
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setupMocks(f.repo)

			got, err := f.svc.GetMyPlan(context.Background(), tt.session)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, tt.wantMsg, got.Body.Message)
			if tt.wantStatus == http.StatusOK {
				require.NotNil(t, got.Body.Client)
				assert.Equal(t, models.StatusActive, got.Body.Client.Status)
				assert.Equal(t, "Jane", got.Body.UserProfile.FirstName)
				assert.NotEmpty(t, got.Body.Tips)
				assert.Equal(t, 0, got.Body.UnreadMessages)
			}
			f.repo.AssertExpectations(t)
		})
	}
}

func TestService_GetMyPlan_UsesCacheUntilInvalidated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := &models.Session{ID: "s1", UserUID: "u1"}
	user := &models.User{UID: "u1", TermsAccepted: true}

	f.repo.On("GetUser", mock.Anything, "u1").Return(user, nil).Times(3)
	f.repo.On("GetCurrentClient", mock.Anything, "u1").
		Return(&models.CoachingClient{ID: "c1", UserUID: "u1", Status: models.StatusEnrolled}, nil).Once()
	f.repo.On("GetCurrentClient", mock.Anything, "u1").
		Return(&models.CoachingClient{ID: "c1", UserUID: "u1", Status: models.StatusIntakeComplete}, nil).Once()
	f.repo.On("ListFormResponses", mock.Anything, "c1").Return([]models.FormResponse{}, nil).Twice()

	first, err := f.svc.GetMyPlan(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, models.StatusEnrolled, first.Body.Client.Status)
	assert.True(t, f.redis.Exists(cache.PlanKey("u1")))

	// Второй запрос берёт план из кэша, клиент и анкеты не перечитываются.
	second, err := f.svc.GetMyPlan(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, models.StatusEnrolled, second.Body.Client.Status)

	require.NoError(t, f.cache.Invalidate(ctx, cache.PlanKey("u1")))
	third, err := f.svc.GetMyPlan(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, models.StatusIntakeComplete, third.Body.Client.Status)

	f.repo.AssertExpectations(t)
}

func TestService_GetMyPlan_DeletedUserIgnoresCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := &models.Session{ID: "s1", UserUID: "u1"}

	f.repo.On("GetUser", mock.Anything, "u1").Return(&models.User{UID: "u1", TermsAccepted: true}, nil).Once()
	f.repo.On("GetUser", mock.Anything, "u1").Return(nil, models.ErrUserNotFound).Once()
	f.repo.On("GetCurrentClient", mock.Anything, "u1").
		Return(&models.CoachingClient{ID: "c1", UserUID: "u1", Status: models.StatusActive}, nil).Once()
	f.repo.On("ListFormResponses", mock.Anything, "c1").Return([]models.FormResponse{}, nil).Once()

	first, err := f.svc.GetMyPlan(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, first.Status)
	require.True(t, f.redis.Exists(cache.PlanKey("u1")))

	second, err := f.svc.GetMyPlan(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, second.Status)
	assert.Equal(t, services.MsgNotAuthenticated, second.Body.Message)
	assert.Nil(t, second.Body.Client)

	f.repo.AssertExpectations(t)
}

func TestService_SubmitFormResponse(t *testing.T) {
	session := &models.Session{ID: "s1", UserUID: "u1"}
	answers := map[string]any{"goal": "strength"}

	t.Run("not authenticated", func(t *testing.T) {
		f := newFixture(t)
		got, err := f.svc.SubmitFormResponse(context.Background(), nil, models.FormTypeIntake, answers)
		require.NoError(t, err)
		assert.Equal(t, services.FormResult{Error: services.MsgNotAuthenticated}, got)
	})

	t.Run("no enrollment", func(t *testing.T) {
		f := newFixture(t)
		f.repo.On("GetCurrentClient", mock.Anything, "u1").Return(nil, models.ErrClientNotFound).Once()

		got, err := f.svc.SubmitFormResponse(context.Background(), session, models.FormTypeIntake, answers)
		require.NoError(t, err)
		assert.Equal(t, services.FormResult{Error: services.MsgNoEnrollment}, got)
		f.repo.AssertExpectations(t)
	})

	t.Run("intake completes enrolled client", func(t *testing.T) {
		f := newFixture(t)
		f.redis.Set(cache.PlanKey("u1"), `{"unreadMessages":0}`)
		f.repo.On("GetCurrentClient", mock.Anything, "u1").
			Return(&models.CoachingClient{ID: "c1", Status: models.StatusEnrolled}, nil).Once()
		f.repo.On("AddFormResponse", mock.Anything, models.FormResponse{ClientID: "c1", FormType: models.FormTypeIntake, Responses: answers}).
			Return(&models.FormResponse{ID: "f1", ClientID: "c1", FormType: models.FormTypeIntake}, nil).Once()
		f.statuses.On("UpdateClientStatus", mock.Anything, "c1", models.StatusIntakeComplete).Return(true, nil).Once()

		got, err := f.svc.SubmitFormResponse(context.Background(), session, models.FormTypeIntake, answers)
		require.NoError(t, err)
		assert.True(t, got.Success)
		assert.Equal(t, "f1", got.Response.ID)
		assert.False(t, f.redis.Exists(cache.PlanKey("u1")))
		f.repo.AssertExpectations(t)
		f.statuses.AssertExpectations(t)
	})

	t.Run("other forms keep status", func(t *testing.T) {
		f := newFixture(t)
		f.repo.On("GetCurrentClient", mock.Anything, "u1").
			Return(&models.CoachingClient{ID: "c1", Status: models.StatusActive}, nil).Once()
		f.repo.On("AddFormResponse", mock.Anything, mock.Anything).Return(&models.FormResponse{ID: "f2"}, nil).Once()

		got, err := f.svc.SubmitFormResponse(context.Background(), session, "weekly_checkin", answers)
		require.NoError(t, err)
		assert.True(t, got.Success)
		f.statuses.AssertNotCalled(t, "UpdateClientStatus", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("failed status change still saves form", func(t *testing.T) {
		f := newFixture(t)
		f.repo.On("GetCurrentClient", mock.Anything, "u1").
			Return(&models.CoachingClient{ID: "c1", Status: models.StatusEnrolled}, nil).Once()
		f.repo.On("AddFormResponse", mock.Anything, mock.Anything).Return(&models.FormResponse{ID: "f3"}, nil).Once()
		f.statuses.On("UpdateClientStatus", mock.Anything, "c1", models.StatusIntakeComplete).
			Return(false, models.ErrStatusChanged).Once()

		got, err := f.svc.SubmitFormResponse(context.Background(), session, models.FormTypeIntake, answers)
		require.NoError(t, err)
		assert.True(t, got.Success)
	})
}

func TestService_AcceptTerms(t *testing.T) {
	t.Run("accepting terms opens a session", func(t *testing.T) {
		f := newFixture(t)
		user := &models.User{UID: "u2", Email: "new@test.com", PasswordHash: mustHash(t, "Password123")}
		f.repo.On("GetUserByEmail", mock.Anything, "new@test.com").Return(user, nil).Once()
		f.repo.On("UpdateAcceptance", mock.Anything, "u2", true, true).Return(nil).Once()

		got, err := f.svc.AcceptTerms(context.Background(), "new@test.com", "Password123", true, true)
		require.NoError(t, err)
		assert.True(t, got.Success)
		assert.NotEmpty(t, got.Token)
		assert.True(t, got.User.TermsAccepted)
		f.repo.AssertExpectations(t)
	})

	t.Run("disclaimer alone does not unlock login", func(t *testing.T) {
		f := newFixture(t)
		user := &models.User{UID: "u2", Email: "new@test.com", PasswordHash: mustHash(t, "Password123")}
		f.repo.On("GetUserByEmail", mock.Anything, "new@test.com").Return(user, nil).Once()
		f.repo.On("UpdateAcceptance", mock.Anything, "u2", false, true).Return(nil).Once()

		got, err := f.svc.AcceptTerms(context.Background(), "new@test.com", "Password123", false, true)
		require.NoError(t, err)
		assert.Equal(t, services.MsgAcceptTerms, got.Error)
	})

	t.Run("wrong password", func(t *testing.T) {
		f := newFixture(t)
		user := &models.User{UID: "u2", Email: "new@test.com", PasswordHash: mustHash(t, "Password123")}
		f.repo.On("GetUserByEmail", mock.Anything, "new@test.com").Return(user, nil).Once()

		got, err := f.svc.AcceptTerms(context.Background(), "new@test.com", "bad", true, true)
		require.NoError(t, err)
		assert.Equal(t, services.MsgInvalidCredentials, got.Error)
		f.repo.AssertNotCalled(t, "UpdateAcceptance", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestService_AcceptTermsForSession(t *testing.T) {
	f := newFixture(t)
	session := &models.Session{ID: "s1", UserUID: "u1"}
	f.repo.On("GetUser", mock.Anything, "u1").Return(&models.User{UID: "u1", TermsAccepted: true}, nil).Once()
	f.repo.On("UpdateAcceptance", mock.Anything, "u1", true, true).Return(nil).Once()

	user, err := f.svc.AcceptTermsForSession(context.Background(), session, false, true)
	require.NoError(t, err)
	assert.True(t, user.TermsAccepted)
	assert.True(t, user.DisclaimerAccepted)

	_, err = f.svc.AcceptTermsForSession(context.Background(), nil, true, true)
	assert.True(t, errors.Is(err, services.ErrNotAuthenticated))
	f.repo.AssertExpectations(t)
}

func TestTipsFor_ReturnsCopy(t *testing.T) {
	tips := services.TipsFor(models.StatusActive)
	require.NotEmpty(t, tips)
	tips[0] = "changed"
	assert.NotEqual(t, "changed", services.TipsFor(models.StatusActive)[0])
	assert.Nil(t, services.TipsFor(models.StatusCancelled))
}
