package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/coaching-onboarding/internal/models"
)

const userColumns = `uid, email, first_name, last_name, password_hash, role,
	terms_accepted, disclaimer_accepted, created_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	u := &models.User{}
	if err := row.Scan(&u.UID, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash,
		&u.Role, &u.TermsAccepted, &u.DisclaimerAccepted, &u.CreatedAt); err != nil {
		return nil, err
	}
	return u, nil
}

// CreateUser сохраняет нового пользователя. Уникальность email не проверяется.
func (s *Storage) CreateUser(ctx context.Context, user models.User) (*models.User, error) {
	const op = "storage.CreateUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	role := user.Role
	if role == "" {
		role = models.RoleUser
	}
	query := `INSERT INTO users (email, first_name, last_name, password_hash, role,
			      terms_accepted, disclaimer_accepted)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  RETURNING ` + userColumns
	u, err := scanUser(s.DB.QueryRowContext(ctx, query,
		models.NormalizeEmail(user.Email), user.FirstName, user.LastName, user.PasswordHash,
		role, user.TermsAccepted, user.DisclaimerAccepted))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUserByEmail возвращает самого раннего пользователя с таким email.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT ` + userColumns + `
			  FROM users
			  WHERE email = $1
			  ORDER BY created_at, uid
			  LIMIT 1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, models.NormalizeEmail(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUser возвращает пользователя по его UID.
func (s *Storage) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	const op = "storage.GetUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	if !validID(userUID) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE uid = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, userUID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// UpdateAcceptance проставляет флаги принятия условий и дисклеймера.
func (s *Storage) UpdateAcceptance(ctx context.Context, userUID string, terms, disclaimer bool) error {
	const op = "storage.UpdateAcceptance"
	query := `UPDATE users SET terms_accepted = $1, disclaimer_accepted = $2 WHERE uid = $3`
	return s.execUser(ctx, op, userUID, query, terms, disclaimer, userUID)
}

// UpdatePassword заменяет хэш пароля пользователя.
func (s *Storage) UpdatePassword(ctx context.Context, userUID, passwordHash string) error {
	const op = "storage.UpdatePassword"
	query := `UPDATE users SET password_hash = $1 WHERE uid = $2`
	return s.execUser(ctx, op, userUID, query, passwordHash, userUID)
}

// DeleteUser удаляет пользователя; записи о зачислении удаляются каскадно.
func (s *Storage) DeleteUser(ctx context.Context, userUID string) error {
	const op = "storage.DeleteUser"
	return s.execUser(ctx, op, userUID, `DELETE FROM users WHERE uid = $1`, userUID)
}

func (s *Storage) execUser(ctx context.Context, op, userUID, query string, args ...any) error {
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	if !validID(userUID) {
		return fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
	}

	res, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
	}
	return nil
}
