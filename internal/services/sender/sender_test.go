package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/coaching-onboarding/internal/lib/smtp"
	"github.com/magabrotheeeer/coaching-onboarding/internal/models"
)

type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Connect() (smtp.Client, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(smtp.Client), args.Error(1)
}

func (m *MockTransport) GetSMTPUser() string {
	return m.Called().String(0)
}

type MockSMTPClient struct {
	mock.Mock
}

func (m *MockSMTPClient) Mail(from string) error { return m.Called(from).Error(0) }
func (m *MockSMTPClient) Rcpt(to string) error   { return m.Called(to).Error(0) }
func (m *MockSMTPClient) Quit() error            { return m.Called().Error(0) }
func (m *MockSMTPClient) Close() error           { return m.Called().Error(0) }

func (m *MockSMTPClient) Data() (io.WriteCloser, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.WriteCloser), args.Error(1)
}

type MockSMTPWriter struct {
	bytes.Buffer
	closeErr error
}

func (w *MockSMTPWriter) Close() error { return w.closeErr }

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func expectDelivery(transport *MockTransport, client *MockSMTPClient, writer *MockSMTPWriter, to string) {
	transport.On("GetSMTPUser").Return("noreply@coaching.test")
	transport.On("Connect").Return(client, nil).Once()
	client.On("Mail", "noreply@coaching.test").Return(nil).Once()
	client.On("Rcpt", to).Return(nil).Once()
	client.On("Data").Return(writer, nil).Once()
	client.On("Quit").Return(nil).Once()
	client.On("Close").Return(nil).Once()
}

func TestSendInvite(t *testing.T) {
	transport := new(MockTransport)
	client := new(MockSMTPClient)
	writer := &MockSMTPWriter{}
	expectDelivery(transport, client, writer, "fresh@test.com")

	svc := NewSenderService(newNoopLogger(), transport)
	err := svc.SendInvite(mustJSON(t, models.InviteEvent{
		Email: "fresh@test.com", FirstName: "Anna", ClaimURL: "https://app.example.com/claim?token=abc",
	}))
	require.NoError(t, err)

	body := writer.String()
	assert.Contains(t, body, "To: fresh@test.com")
	assert.Contains(t, body, "Anna")
	assert.Contains(t, body, "https://app.example.com/claim?token=abc")
	assert.NotContains(t, body, "Welcome")
	transport.AssertExpectations(t)
	client.AssertExpectations(t)
}

func TestSendStatusChanged(t *testing.T) {
	t.Run("notifies about activation", func(t *testing.T) {
		transport := new(MockTransport)
		client := new(MockSMTPClient)
		writer := &MockSMTPWriter{}
		expectDelivery(transport, client, writer, "a@test.com")

		svc := NewSenderService(newNoopLogger(), transport)
		err := svc.SendStatusChanged(mustJSON(t, models.StatusChangedEvent{
			ClientID: "c1", Email: "a@test.com", From: models.StatusPlanReady, To: models.StatusActive,
		}))
		require.NoError(t, err)
		assert.Contains(t, writer.String(), "программа началась")
		client.AssertExpectations(t)
	})

	t.Run("silent for intermediate status", func(t *testing.T) {
		transport := new(MockTransport)
		svc := NewSenderService(newNoopLogger(), transport)
		err := svc.SendStatusChanged(mustJSON(t, models.StatusChangedEvent{
			ClientID: "c1", Email: "a@test.com", To: models.StatusIntakeComplete,
		}))
		require.NoError(t, err)
		transport.AssertNotCalled(t, "Connect")
	})

	t.Run("no recipient", func(t *testing.T) {
		transport := new(MockTransport)
		svc := NewSenderService(newNoopLogger(), transport)
		require.NoError(t, svc.SendStatusChanged(mustJSON(t, models.StatusChangedEvent{ClientID: "c1", To: models.StatusActive})))
		transport.AssertNotCalled(t, "Connect")
	})
}

func TestSend_MalformedMessageIsDropped(t *testing.T) {
	transport := new(MockTransport)
	svc := NewSenderService(newNoopLogger(), transport)

	assert.NoError(t, svc.SendInvite([]byte("{broken")))
	assert.NoError(t, svc.SendStatusChanged([]byte("{broken")))
	transport.AssertNotCalled(t, "Connect")
}

func TestSendEmail_Errors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(tr *MockTransport, c *MockSMTPClient)
	}{
		{
			name: "connect fails",
			setup: func(tr *MockTransport, _ *MockSMTPClient) {
				tr.On("Connect").Return(nil, errors.New("refused")).Once()
			},
		},
		{
			name: "mail from rejected",
			setup: func(tr *MockTransport, c *MockSMTPClient) {
				tr.On("Connect").Return(c, nil).Once()
				c.On("Mail", "noreply@coaching.test").Return(errors.New("550")).Once()
				c.On("Close").Return(nil).Once()
			},
		},
		{
			name: "recipient rejected",
			setup: func(tr *MockTransport, c *MockSMTPClient) {
				tr.On("Connect").Return(c, nil).Once()
				c.On("Mail", "noreply@coaching.test").Return(nil).Once()
				c.On("Rcpt", "fresh@test.com").Return(errors.New("550")).Once()
				c.On("Close").Return(nil).Once()
			},
		},
		{
			name: "data writer unavailable",
			setup: func(tr *MockTransport, c *MockSMTPClient) {
				tr.On("Connect").Return(c, nil).Once()
				c.On("Mail", "noreply@coaching.test").Return(nil).Once()
				c.On("Rcpt", "fresh@test.com").Return(nil).Once()
				c.On("Data").Return(nil, errors.New("451")).Once()
				c.On("Close").Return(nil).Once()
			},
		},
		{
			name: "close data writer fails",
			setup: func(tr *MockTransport, c *MockSMTPClient) {
				tr.On("Connect").Return(c, nil).Once()
				c.On("Mail", "noreply@coaching.test").Return(nil).Once()
				c.On("Rcpt", "fresh@test.com").Return(nil).Once()
				c.On("Data").Return(&MockSMTPWriter{closeErr: errors.New("554")}, nil).Once()
				c.On("Close").Return(nil).Once()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := new(MockTransport)
			client := new(MockSMTPClient)
			transport.On("GetSMTPUser").Return("noreply@coaching.test")
			tt.setup(transport, client)

			svc := NewSenderService(newNoopLogger(), transport)
			err := svc.SendInvite(mustJSON(t, models.InviteEvent{Email: "fresh@test.com", ClaimURL: "u"}))
			assert.Error(t, err)
			client.AssertExpectations(t)
		})
	}
}
