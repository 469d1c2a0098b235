package models

import (
	"fmt"
	"strings"
	"time"
)

// Status — статус клиента коучинга.
type Status string

// Статусы клиента в порядке прохождения воронки.
const (
	StatusEnrolled       Status = "enrolled"
	StatusIntakeComplete Status = "intake_complete"
	StatusPlanGenerating Status = "plan_generating"
	StatusPlanReady      Status = "plan_ready"
	StatusActive         Status = "active"
	StatusPaused         Status = "paused"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
)

// AllStatuses перечисляет все известные статусы.
var AllStatuses = []Status{
	StatusEnrolled,
	StatusIntakeComplete,
	StatusPlanGenerating,
	StatusPlanReady,
	StatusActive,
	StatusPaused,
	StatusCompleted,
	StatusCancelled,
}

// ParseStatus разбирает строку в Status и возвращает ErrUnknownStatus для неизвестных значений.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.TrimSpace(s))
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
	return st, nil
}

// Valid сообщает, входит ли статус в перечисление.
func (s Status) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal сообщает, завершена ли запись (completed или cancelled).
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CoachingType — программа коучинга.
type CoachingType string

const (
	CoachingTypePregnancy CoachingType = "pregnancy_coaching"
	CoachingTypePrivate   CoachingType = "private_coaching"
)

// ParseCoachingType разбирает тип программы; пустая строка означает pregnancy_coaching.
func ParseCoachingType(s string) (CoachingType, error) {
	switch CoachingType(strings.TrimSpace(s)) {
	case "":
		return CoachingTypePregnancy, nil
	case CoachingTypePregnancy:
		return CoachingTypePregnancy, nil
	case CoachingTypePrivate:
		return CoachingTypePrivate, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCoachingType, s)
	}
}

// PaymentStatusCompleted проставляется клиентам, зачисленным администратором.
const PaymentStatusCompleted = "completed"

// CoachingClient — запись о зачислении пользователя в программу.
// У пользователя может быть много записей во времени, но не более одной незавершённой.
type CoachingClient struct {
	ID                string       `json:"id"`
	UserUID           string       `json:"userId"`
	Status            Status       `json:"status"`
	CoachingType      CoachingType `json:"coachingType"`
	PaymentStatus     string       `json:"paymentStatus"`
	StartDate         time.Time    `json:"startDate"`
	EndDate           time.Time    `json:"endDate"`
	PlanDurationWeeks int          `json:"planDurationWeeks"`
	CreatedAt         time.Time    `json:"createdAt"`
	UpdatedAt         time.Time    `json:"updatedAt"`
}

// FormTypeIntake — анкета, после которой клиент переходит в intake_complete.
const FormTypeIntake = "intake"

// FormResponse — ответы клиента на анкету.
type FormResponse struct {
	ID        string         `json:"id"`
	ClientID  string         `json:"clientId"`
	FormType  string         `json:"formType"`
	Responses map[string]any `json:"responses"`
	CreatedAt time.Time      `json:"createdAt"`
}
