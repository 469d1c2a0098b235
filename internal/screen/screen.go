// Package screen выбирает экран клиентского приложения по закэшированному
// пользователю, последнему ответу /api/my-plan и флагу загрузки.
//
// Выбор экрана не имеет побочных эффектов и пересчитывается с нуля
// на каждое изменение входных данных. Правила проверяются по порядку,
// побеждает первое подошедшее. Порядок правил и есть контракт: ответ 401
// должен вести на экран входа раньше, чем 404 будет прочитан как «не зачислен».
package screen

import (
	"net/http"
	"slices"

	"github.com/magabrotheeeer/coaching-onboarding/internal/models"
)

// Screen — имя экрана, который должен показать клиент.
type Screen string

const (
	Login       Screen = "login"
	Loading     Screen = "loading"
	NotEnrolled Screen = "not_enrolled"
	TermsModal  Screen = "terms_modal"
	Welcome     Screen = "welcome"
	IntakeForm  Screen = "intake_form"
	Waiting     Screen = "waiting"
	Dashboard   Screen = "dashboard"
	// Error показывается, когда ответ сервера не получен или сервер вернул 5xx.
	Error Screen = "error"
)

// Input — входные данные выбора экрана.
type Input struct {
	User    *models.User         // Закэшированный на клиенте пользователь, nil если не входил
	Plan    *models.PlanResponse // Последний завершившийся запрос плана, nil если запроса ещё не было
	Loading bool
}

// Rule — одно правило таблицы решений.
type Rule struct {
	Name   string
	Match  func(Input) bool
	Screen Screen
}

// StatusScreens сопоставляет статус клиента экрану при принятых условиях.
var StatusScreens = map[models.Status]Screen{
	models.StatusEnrolled:       IntakeForm,
	models.StatusIntakeComplete: Waiting,
	models.StatusPlanGenerating: Waiting,
	models.StatusPlanReady:      Waiting,
	models.StatusActive:         Dashboard,
	models.StatusPaused:         Waiting,
	models.StatusCompleted:      Waiting,
}

var rules = buildRules()

func buildRules() []Rule {
	table := []Rule{
		{
			Name:   "no cached user",
			Match:  func(in Input) bool { return in.User == nil },
			Screen: Login,
		},
		{
			Name:   "loading",
			Match:  func(in Input) bool { return in.Loading },
			Screen: Loading,
		},
		{
			Name:   "plan not fetched",
			Match:  func(in Input) bool { return in.Plan == nil },
			Screen: Loading,
		},
		{
			Name:   "not authenticated",
			Match:  func(in Input) bool { return in.Plan.Status == http.StatusUnauthorized },
			Screen: Login,
		},
		{
			Name:   "no enrollment",
			Match:  func(in Input) bool { return in.Plan.Status == http.StatusNotFound },
			Screen: NotEnrolled,
		},
		{
			Name: "transport or server error",
			Match: func(in Input) bool {
				return in.Plan.Status == models.StatusTransportError || in.Plan.Status >= http.StatusInternalServerError
			},
			Screen: Error,
		},
		{
			Name:   "client missing",
			Match:  func(in Input) bool { return in.Plan.Body.Client == nil },
			Screen: Loading,
		},
		{
			Name:   "terms not accepted",
			Match:  func(in Input) bool { return !in.User.TermsAccepted || !in.User.DisclaimerAccepted },
			Screen: TermsModal,
		},
	}

	for _, st := range models.AllStatuses {
		target, ok := StatusScreens[st]
		if !ok {
			continue
		}
		table = append(table, Rule{
			Name:   "status " + string(st),
			Match:  func(in Input) bool { return in.Plan.Body.Client.Status == st },
			Screen: target,
		})
	}

	return append(table, Rule{
		Name:   "unknown status",
		Match:  func(Input) bool { return true },
		Screen: Loading,
	})
}

// Rules возвращает копию упорядоченной таблицы правил.
func Rules() []Rule {
	return slices.Clone(rules)
}

// Decide выбирает экран для входных данных. Функция никогда не паникует:
// для неизвестного статуса клиента возвращается Loading.
func Decide(user *models.User, plan *models.PlanResponse, loading bool) Screen {
	return Select(Input{User: user, Plan: plan, Loading: loading})
}

// Select — вариант Decide, принимающий Input целиком.
func Select(in Input) Screen {
	for _, r := range rules {
		if r.Match(in) {
			return r.Screen
		}
	}
	return Loading
}

// Explain возвращает имя сработавшего правила; удобно для логов и отладки.
func Explain(in Input) string {
	for _, r := range rules {
		if r.Match(in) {
			return r.Name
		}
	}
	return ""
}
