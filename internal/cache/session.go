package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/coaching-onboarding/internal/models"
)

// ErrSessionNotFound возвращается, если сессия закрыта или истекла.
var ErrSessionNotFound = errors.New("session not found")

const (
	sessionPrefix = "session:"
	planPrefix    = "plan:"
)

// SessionKey возвращает ключ сессии в Redis.
func SessionKey(sessionID string) string {
	return sessionPrefix + sessionID
}

// PlanKey возвращает ключ закэшированного ответа /api/my-plan пользователя.
func PlanKey(userUID string) string {
	return planPrefix + userUID
}

// SessionStore хранит сессии в Redis. Время жизни ключа совпадает с TTL токена.
type SessionStore struct {
	cache *Cache
}

// NewSessionStore создаёт хранилище сессий поверх Cache.
func NewSessionStore(c *Cache) *SessionStore {
	return &SessionStore{cache: c}
}

// CreateSession сохраняет сессию на ttl.
func (s *SessionStore) CreateSession(ctx context.Context, session models.Session, ttl time.Duration) error {
	const op = "cache.CreateSession"
	if session.ID == "" || session.UserUID == "" {
		return fmt.Errorf("%s: session id and user are required", op)
	}
	if err := s.cache.Set(ctx, SessionKey(session.ID), session, ttl); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetSession возвращает живую сессию или ErrSessionNotFound.
func (s *SessionStore) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	const op = "cache.GetSession"
	var session models.Session
	found, err := s.cache.Get(ctx, SessionKey(sessionID), &session)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !found {
		return nil, fmt.Errorf("%s: %w", op, ErrSessionNotFound)
	}
	return &session, nil
}

// DeleteSession удаляет сессию. Возвращает false, если её уже не было.
func (s *SessionStore) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	const op = "cache.DeleteSession"
	n, err := s.cache.Db.Del(ctx, SessionKey(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}
