package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/coaching-onboarding/internal/models"
)

const clientColumns = `id, user_uid, status, coaching_type, payment_status,
	start_date, end_date, plan_duration_weeks, created_at, updated_at`

// terminalStatuses — SQL-список статусов, после которых запись не считается текущей.
const terminalStatuses = `('completed', 'cancelled')`

const oneActivePerUser = "coaching_clients_one_active_per_user"

func scanClient(row interface{ Scan(...any) error }) (*models.CoachingClient, error) {
	c := &models.CoachingClient{}
	if err := row.Scan(&c.ID, &c.UserUID, &c.Status, &c.CoachingType, &c.PaymentStatus,
		&c.StartDate, &c.EndDate, &c.PlanDurationWeeks, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Storage) queryClients(ctx context.Context, op, query string, args ...any) ([]models.CoachingClient, error) {
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.CoachingClient
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, *c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListClientsByUser возвращает все записи пользователя в порядке создания.
func (s *Storage) ListClientsByUser(ctx context.Context, userUID string) ([]models.CoachingClient, error) {
	const op = "storage.ListClientsByUser"
	if !validID(userUID) {
		return nil, nil
	}
	query := `SELECT ` + clientColumns + `
			  FROM coaching_clients
			  WHERE user_uid = $1
			  ORDER BY created_at, id`
	return s.queryClients(ctx, op, query, userUID)
}

// GetCurrentClient возвращает самую новую незавершённую запись пользователя,
// а если таких нет, самую новую из завершённых.
func (s *Storage) GetCurrentClient(ctx context.Context, userUID string) (*models.CoachingClient, error) {
	const op = "storage.GetCurrentClient"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	if !validID(userUID) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrClientNotFound)
	}
	query := `SELECT ` + clientColumns + `
			  FROM coaching_clients
			  WHERE user_uid = $1
			  ORDER BY (status NOT IN ` + terminalStatuses + `) DESC, created_at DESC, id DESC
			  LIMIT 1`
	c, err := scanClient(s.DB.QueryRowContext(ctx, query, userUID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrClientNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

// GetClient возвращает запись по идентификатору.
func (s *Storage) GetClient(ctx context.Context, id string) (*models.CoachingClient, error) {
	const op = "storage.GetClient"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	if !validID(id) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrClientNotFound)
	}
	query := `SELECT ` + clientColumns + ` FROM coaching_clients WHERE id = $1`
	c, err := scanClient(s.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrClientNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

// CreateClientIfNoneActive вставляет запись, если у пользователя нет незавершённой.
// Строка пользователя блокируется на время транзакции, а частичный уникальный
// индекс отсекает гонку с другими писателями.
func (s *Storage) CreateClientIfNoneActive(ctx context.Context, client models.CoachingClient) (*models.CoachingClient, error) {
	const op = "storage.CreateClientIfNoneActive"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	if !validID(client.UserUID) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var locked string
	err = tx.QueryRowContext(ctx, `SELECT uid FROM users WHERE uid = $1 FOR UPDATE`, client.UserUID).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var active bool
	err = tx.QueryRowContext(ctx, `SELECT EXISTS (
			SELECT 1 FROM coaching_clients
			WHERE user_uid = $1 AND status NOT IN `+terminalStatuses+`
		)`, client.UserUID).Scan(&active)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if active {
		return nil, fmt.Errorf("%s: %w", op, models.ErrAlreadyEnrolled)
	}

	query := `INSERT INTO coaching_clients (user_uid, status, coaching_type, payment_status,
			      start_date, end_date, plan_duration_weeks)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  RETURNING ` + clientColumns
	created, err := scanClient(tx.QueryRowContext(ctx, query,
		client.UserUID, client.Status, client.CoachingType, client.PaymentStatus,
		client.StartDate, client.EndDate, client.PlanDurationWeeks))
	if isUniqueViolation(err, oneActivePerUser) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrAlreadyEnrolled)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return created, nil
}

// SetClientStatus меняет статус с from на to одним условным UPDATE.
// Если запись есть, но её статус уже не from, возвращает models.ErrStatusChanged.
func (s *Storage) SetClientStatus(ctx context.Context, id string, from, to models.Status) error {
	const op = "storage.SetClientStatus"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	if !validID(id) {
		return fmt.Errorf("%s: %w", op, models.ErrClientNotFound)
	}
	res, err := s.DB.ExecContext(ctx, `UPDATE coaching_clients
			  SET status = $1, updated_at = clock_timestamp()
			  WHERE id = $2 AND status = $3`, to, id, from)
	if isUniqueViolation(err, oneActivePerUser) {
		return fmt.Errorf("%s: %w", op, models.ErrAlreadyEnrolled)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n > 0 {
		return nil
	}

	if _, err := s.GetClient(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w", op, models.ErrStatusChanged)
}

// ListReadyToStart возвращает клиентов plan_ready, чья программа началась к now.
func (s *Storage) ListReadyToStart(ctx context.Context, now time.Time) ([]models.CoachingClient, error) {
	const op = "storage.ListReadyToStart"
	query := `SELECT ` + clientColumns + `
			  FROM coaching_clients
			  WHERE status = $1 AND start_date <= $2
			  ORDER BY start_date, id`
	return s.queryClients(ctx, op, query, models.StatusPlanReady, now)
}

// ListReadyToComplete возвращает активных клиентов, чья программа закончилась к now.
func (s *Storage) ListReadyToComplete(ctx context.Context, now time.Time) ([]models.CoachingClient, error) {
	const op = "storage.ListReadyToComplete"
	query := `SELECT ` + clientColumns + `
			  FROM coaching_clients
			  WHERE status = $1 AND end_date <= $2
			  ORDER BY end_date, id`
	return s.queryClients(ctx, op, query, models.StatusActive, now)
}
