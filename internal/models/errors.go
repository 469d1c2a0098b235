package models

import "errors"

// Ошибки хранилища и доменной модели.
var (
	ErrUserNotFound        = errors.New("user not found")
	ErrClientNotFound      = errors.New("coaching client not found")
	ErrAlreadyEnrolled     = errors.New("user already has an active coaching enrollment")
	ErrStatusChanged       = errors.New("coaching client status changed concurrently")
	ErrUnknownStatus       = errors.New("unknown coaching status")
	ErrUnknownCoachingType = errors.New("unknown coaching type")
	ErrClaimTokenNotFound  = errors.New("claim token not found or expired")
)
