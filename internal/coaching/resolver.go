package coaching

import (
	"slices"

	"github.com/magabrotheeeer/coaching-onboarding/internal/models"
)

// ResolveCurrent выбирает «текущую» запись пользователя среди всех его записей:
// самую свежую незавершённую, а если таких нет — самую свежую вообще.
// Для пустого списка возвращает nil.
//
// Записи с одинаковым CreatedAt упорядочиваются по ID по убыванию,
// поэтому результат не зависит от порядка входного среза.
func ResolveCurrent(clients []models.CoachingClient) *models.CoachingClient {
	if len(clients) == 0 {
		return nil
	}

	sorted := slices.Clone(clients)
	slices.SortStableFunc(sorted, func(a, b models.CoachingClient) int {
		switch {
		case a.CreatedAt.After(b.CreatedAt):
			return -1
		case a.CreatedAt.Before(b.CreatedAt):
			return 1
		case a.ID > b.ID:
			return -1
		case a.ID < b.ID:
			return 1
		default:
			return 0
		}
	})

	for i := range sorted {
		if !sorted[i].Status.IsTerminal() {
			current := sorted[i]
			return &current
		}
	}
	current := sorted[0]
	return &current
}

// HasActive сообщает, есть ли среди записей незавершённая.
func HasActive(clients []models.CoachingClient) bool {
	return slices.ContainsFunc(clients, func(c models.CoachingClient) bool {
		return !c.Status.IsTerminal()
	})
}
