package services

import "github.com/magabrotheeeer/coaching-onboarding/internal/models"

var tipsByStatus = map[models.Status][]string{
	models.StatusEnrolled: {
		"Fill in the intake form so your coach can prepare your plan.",
	},
	models.StatusIntakeComplete: {
		"Your coach is reviewing your intake form.",
	},
	models.StatusPlanGenerating: {
		"Your personal plan is being prepared.",
	},
	models.StatusPlanReady: {
		"Your plan is ready and starts on your program start date.",
	},
	models.StatusActive: {
		"Log each workout the day you do it.",
		"Drink water around every workout.",
	},
	models.StatusPaused: {
		"Your program is paused. Message your coach when you are ready to resume.",
	},
	models.StatusCompleted: {
		"Congratulations on finishing the program!",
	},
}

// TipsFor возвращает подсказки для статуса клиента.
func TipsFor(status models.Status) []string {
	tips := tipsByStatus[status]
	if tips == nil {
		return nil
	}
	out := make([]string, len(tips))
	copy(out, tips)
	return out
}
