package models

// InviteEvent публикуется при автосоздании пользователя администратором.
// Вместо пароля пользователь получает ссылку для активации учётной записи.
type InviteEvent struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	ClaimURL  string `json:"claim_url"`
}

// StatusChangedEvent публикуется после каждой успешной смены статуса клиента.
type StatusChangedEvent struct {
	ClientID  string `json:"client_id"`
	UserUID   string `json:"user_uid"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	From      Status `json:"from"`
	To        Status `json:"to"`
}
