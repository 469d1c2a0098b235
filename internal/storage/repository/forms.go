package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/coaching-onboarding/internal/models"
)

// AddFormResponse добавляет ответы на анкету. Прежние ответы не перезаписываются.
func (s *Storage) AddFormResponse(ctx context.Context, form models.FormResponse) (*models.FormResponse, error) {
	const op = "storage.AddFormResponse"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	responses := form.Responses
	if responses == nil {
		responses = map[string]any{}
	}
	payload, err := json.Marshal(responses)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `INSERT INTO form_responses (client_id, form_type, responses)
			  VALUES ($1, $2, $3)
			  RETURNING id, created_at`
	created := form
	created.Responses = responses
	if err := s.DB.QueryRowContext(ctx, query, form.ClientID, form.FormType, payload).
		Scan(&created.ID, &created.CreatedAt); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &created, nil
}

// ListFormResponses возвращает анкеты клиента в порядке отправки.
func (s *Storage) ListFormResponses(ctx context.Context, clientID string) ([]models.FormResponse, error) {
	const op = "storage.ListFormResponses"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	if !validID(clientID) {
		return nil, nil
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT id, client_id, form_type, responses, created_at
			  FROM form_responses
			  WHERE client_id = $1
			  ORDER BY created_at, id`, clientID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.FormResponse
	for rows.Next() {
		var (
			f       models.FormResponse
			payload []byte
		)
		if err := rows.Scan(&f.ID, &f.ClientID, &f.FormType, &payload, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err := json.Unmarshal(payload, &f.Responses); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, f)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// CreateClaimToken сохраняет токен активации учётной записи.
func (s *Storage) CreateClaimToken(ctx context.Context, token, userUID string, expiresAt time.Time) error {
	const op = "storage.CreateClaimToken"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	_, err := s.DB.ExecContext(ctx, `INSERT INTO claim_tokens (token, user_uid, expires_at)
			  VALUES ($1, $2, $3)`, token, userUID, expiresAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ConsumeClaimToken удаляет токен и возвращает UID его владельца.
// Истёкший или неизвестный токен даёт models.ErrClaimTokenNotFound.
func (s *Storage) ConsumeClaimToken(ctx context.Context, token string, now time.Time) (string, error) {
	const op = "storage.ConsumeClaimToken"
	if err := checkCtx(ctx, op); err != nil {
		return "", err
	}

	var (
		userUID   string
		expiresAt time.Time
	)
	err := s.DB.QueryRowContext(ctx, `DELETE FROM claim_tokens WHERE token = $1
			  RETURNING user_uid, expires_at`, token).Scan(&userUID, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%s: %w", op, models.ErrClaimTokenNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if !now.Before(expiresAt) {
		return "", fmt.Errorf("%s: %w", op, models.ErrClaimTokenNotFound)
	}
	return userUID, nil
}
