// Package coaching описывает жизненный цикл клиента коучинга: допустимые
// переходы между статусами, правило выбора текущей записи пользователя
// и расчёт дат программы.
package coaching

import (
	"errors"
	"fmt"
	"slices"

	"github.com/magabrotheeeer/coaching-onboarding/internal/models"
)

// ErrInvalidTransition возвращается при попытке перехода, которого нет в таблице allowedNext.
var ErrInvalidTransition = errors.New("invalid status transition")

// allowedNext — рёбра автомата статусов. Обратных переходов (например active → enrolled)
// в таблице нет; из терминальных статусов выхода нет.
var allowedNext = map[models.Status][]models.Status{
	models.StatusEnrolled:       {models.StatusIntakeComplete, models.StatusCancelled},
	models.StatusIntakeComplete: {models.StatusPlanGenerating, models.StatusCancelled},
	models.StatusPlanGenerating: {models.StatusPlanReady, models.StatusCancelled},
	models.StatusPlanReady:      {models.StatusActive, models.StatusCancelled},
	models.StatusActive:         {models.StatusPaused, models.StatusCompleted, models.StatusCancelled},
	models.StatusPaused:         {models.StatusActive, models.StatusCancelled},
	models.StatusCompleted:      {},
	models.StatusCancelled:      {},
}

// AllowedNext возвращает копию списка статусов, в которые можно перейти из from.
func AllowedNext(from models.Status) []models.Status {
	return slices.Clone(allowedNext[from])
}

// CanTransition сообщает, допустим ли переход from → to. Повторная установка
// того же статуса считается допустимой и ничего не меняет.
func CanTransition(from, to models.Status) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	return slices.Contains(allowedNext[from], to)
}

// ValidateTransition возвращает ErrInvalidTransition с описанием ребра, если переход недопустим.
func ValidateTransition(from, to models.Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
