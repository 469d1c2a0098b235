// Package models содержит доменные структуры сервиса онбординга:
// пользователя, клиента коучинга, ответы на анкеты и контракт ответа /api/my-plan.
// Структуры используются в бизнес‑логике, хранилищах и HTTP-слое.
package models

import (
	"strings"
	"time"
)

const (
	// RoleUser — роль обычного пользователя.
	RoleUser = "user"
	// RoleAdmin — роль администратора, которому доступно зачисление клиентов.
	RoleAdmin = "admin"
)

// User представляет учётную запись пользователя.
type User struct {
	UID                string    `json:"id"`                 // Уникальный идентификатор пользователя
	Email              string    `json:"email"`              // Нормализованная электронная почта
	FirstName          string    `json:"firstName"`          // Имя
	LastName           string    `json:"lastName"`           // Фамилия
	PasswordHash       string    `json:"-"`                  // bcrypt-хэш пароля
	Role               string    `json:"role"`               // admin или user
	TermsAccepted      bool      `json:"termsAccepted"`      // Принял ли пользователь условия
	DisclaimerAccepted bool      `json:"disclaimerAccepted"` // Принял ли пользователь дисклеймер
	CreatedAt          time.Time `json:"createdAt"`
}

// NormalizeEmail приводит адрес к виду, в котором он хранится: без пробелов по краям и в нижнем регистре.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Session — эфемерная сессия запроса. Живёт в контексте запроса, а не в глобальном состоянии.
type Session struct {
	ID      string // Идентификатор сессии в хранилище сессий
	UserUID string
	Role    string
}

// IsAuthenticated сообщает, привязана ли сессия к пользователю.
func (s *Session) IsAuthenticated() bool {
	return s != nil && s.UserUID != ""
}
