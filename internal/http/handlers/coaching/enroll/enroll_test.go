package enroll

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/coaching-onboarding/internal/models"
	enrollmentservice "github.com/magabrotheeeer/coaching-onboarding/internal/services/enrollment"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) AdminEnrollClient(ctx context.Context, req enrollmentservice.EnrollRequest) (enrollmentservice.EnrollResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(enrollmentservice.EnrollResult), args.Error(1)
}

func TestEnrollHandler(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		setupMock func(m *ServiceMock)
		wantCode  int
		wantBody  []string
	}{
		{
			name: "enrolls client",
			body: `{"email":"enrolled@test.com","firstName":"Jane","coachingType":"private_coaching"}`,
			setupMock: func(m *ServiceMock) {
				m.On("AdminEnrollClient", mock.Anything, enrollmentservice.EnrollRequest{
					Email: "enrolled@test.com", FirstName: "Jane", CoachingType: "private_coaching",
				}).Return(enrollmentservice.EnrollResult{
					Success: true,
					Client:  &models.CoachingClient{ID: "c1", Status: models.StatusEnrolled, PaymentStatus: "completed"},
				}, nil).Once()
			},
			wantCode: http.StatusCreated,
			wantBody: []string{`"status":"OK"`, `"success":true`, `"paymentStatus":"completed"`},
		},
		{
			name: "already enrolled",
			body: `{"email":"enrolled@test.com"}`,
			setupMock: func(m *ServiceMock) {
				m.On("AdminEnrollClient", mock.Anything, mock.Anything).
					Return(enrollmentservice.EnrollResult{Error: enrollmentservice.ErrMsgAlreadyEnrolled}, nil).Once()
			},
			wantCode: http.StatusConflict,
			wantBody: []string{"This user already has an active coaching enrollment.", `"success":false`},
		},
		{
			name:      "invalid coaching type",
			body:      `{"email":"enrolled@test.com","coachingType":"group"}`,
			setupMock: func(_ *ServiceMock) {},
			wantCode:  http.StatusUnprocessableEntity,
			wantBody:  []string{"field CoachingType must be one of"},
		},
		{
			name:      "invalid email",
			body:      `{"email":"nope"}`,
			setupMock: func(_ *ServiceMock) {},
			wantCode:  http.StatusUnprocessableEntity,
			wantBody:  []string{"field Email must be a valid email"},
		},
		{
			name: "service failure",
			body: `{"email":"enrolled@test.com"}`,
			setupMock: func(m *ServiceMock) {
				m.On("AdminEnrollClient", mock.Anything, mock.Anything).
					Return(enrollmentservice.EnrollResult{}, errors.New("db down")).Once()
			},
			wantCode: http.StatusInternalServerError,
			wantBody: []string{"internal error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			tt.setupMock(svc)

			req := httptest.NewRequest(http.MethodPost, "/api/admin/coaching-clients", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			for _, part := range tt.wantBody {
				assert.Contains(t, rec.Body.String(), part)
			}
			svc.AssertExpectations(t)
		})
	}
}
