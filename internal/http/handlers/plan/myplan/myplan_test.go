package myplan

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/coaching-onboarding/internal/http/middlewarectx"
	"github.com/magabrotheeeer/coaching-onboarding/internal/models"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) GetMyPlan(ctx context.Context, session *models.Session) (models.PlanResponse, error) {
	args := m.Called(ctx, session)
	return args.Get(0).(models.PlanResponse), args.Error(1)
}

func TestMyPlanHandler(t *testing.T) {
	session := &models.Session{ID: "s1", UserUID: "u1"}

	tests := []struct {
		name     string
		session  *models.Session
		plan     models.PlanResponse
		mockErr  error
		wantCode int
		wantMsg  string
	}{
		{
			name:     "anonymous",
			plan:     models.PlanResponse{Status: http.StatusUnauthorized, Body: models.PlanBody{Message: "Not authenticated"}},
			wantCode: http.StatusUnauthorized,
			wantMsg:  "Not authenticated",
		},
		{
			name:     "not enrolled",
			session:  session,
			plan:     models.PlanResponse{Status: http.StatusNotFound, Body: models.PlanBody{Message: "No coaching enrollment found"}},
			wantCode: http.StatusNotFound,
			wantMsg:  "No coaching enrollment found",
		},
		{
			name:    "active client",
			session: session,
			plan: models.PlanResponse{Status: http.StatusOK, Body: models.PlanBody{
				Client: &models.PlanClient{ID: "c1", Status: models.StatusActive},
			}},
			wantCode: http.StatusOK,
		},
		{
			name:     "storage failure",
			session:  session,
			plan:     models.PlanResponse{},
			mockErr:  errors.New("db down"),
			wantCode: http.StatusInternalServerError,
			wantMsg:  "Internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			svc.On("GetMyPlan", mock.Anything, tt.session).Return(tt.plan, tt.mockErr).Once()

			req := httptest.NewRequest(http.MethodGet, "/api/my-plan", nil)
			if tt.session != nil {
				req = req.WithContext(middlewarectx.WithSession(req.Context(), tt.session))
			}
			rec := httptest.NewRecorder()
			New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			var body models.PlanBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantMsg, body.Message)
			if tt.wantCode == http.StatusOK {
				require.NotNil(t, body.Client)
				assert.Equal(t, models.StatusActive, body.Client.Status)
			}
			svc.AssertExpectations(t)
		})
	}
}
