package models

import "time"

// StatusTransportError — код PlanResponse, когда ответ сервера не получен вовсе
// (сетевая ошибка, таймаут).
const StatusTransportError = 0

// PlanClient — представление клиента в ответе /api/my-plan.
type PlanClient struct {
	ID                string       `json:"id"`
	Status            Status       `json:"status"`
	StartDate         time.Time    `json:"startDate"`
	EndDate           time.Time    `json:"endDate"`
	PlanDurationWeeks int          `json:"planDurationWeeks"`
	CoachingType      CoachingType `json:"coachingType"`
}

// NewPlanClient строит PlanClient из записи хранилища.
func NewPlanClient(c *CoachingClient) *PlanClient {
	return &PlanClient{
		ID:                c.ID,
		Status:            c.Status,
		StartDate:         c.StartDate,
		EndDate:           c.EndDate,
		PlanDurationWeeks: c.PlanDurationWeeks,
		CoachingType:      c.CoachingType,
	}
}

// UserProfile — профиль пользователя в составе плана.
type UserProfile struct {
	ID                 string `json:"id"`
	Email              string `json:"email"`
	FirstName          string `json:"firstName"`
	LastName           string `json:"lastName"`
	TermsAccepted      bool   `json:"termsAccepted"`
	DisclaimerAccepted bool   `json:"disclaimerAccepted"`
}

// NewUserProfile строит профиль из учётной записи.
func NewUserProfile(u *User) *UserProfile {
	return &UserProfile{
		ID:                 u.UID,
		Email:              u.Email,
		FirstName:          u.FirstName,
		LastName:           u.LastName,
		TermsAccepted:      u.TermsAccepted,
		DisclaimerAccepted: u.DisclaimerAccepted,
	}
}

// PlanBody — тело ответа /api/my-plan. Для 401 и 404 заполнено только Message.
type PlanBody struct {
	Message        string         `json:"message,omitempty"`
	Client         *PlanClient    `json:"client,omitempty"`
	WorkoutPlan    any            `json:"workoutPlan,omitempty"`
	NutritionPlan  any            `json:"nutritionPlan,omitempty"`
	Tips           []string       `json:"tips,omitempty"`
	UnreadMessages int            `json:"unreadMessages"`
	FormResponses  []FormResponse `json:"formResponses,omitempty"`
	UserProfile    *UserProfile   `json:"userProfile,omitempty"`
}

// PlanResponse — статус-код и тело ответа «получить мой план».
// Body.Client имеет смысл только при Status == 200.
type PlanResponse struct {
	Status int      `json:"status"`
	Body   PlanBody `json:"body"`
}
