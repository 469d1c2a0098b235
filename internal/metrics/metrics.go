// Package metrics объявляет счётчики Prometheus сервиса онбординга.
// Методы *Metrics безопасны для nil-получателя, поэтому сервисы в тестах
// можно создавать без метрик.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Результаты операций для меток result.
const (
	ResultSuccess  = "success"
	ResultConflict = "conflict"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// Metrics объединяет счётчики сервиса.
type Metrics struct {
	enrollments *prometheus.CounterVec
	logins      *prometheus.CounterVec
	plans       *prometheus.CounterVec
	transitions *prometheus.CounterVec
	sessions    *prometheus.CounterVec
}

// New регистрирует счётчики в reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		enrollments: f.NewCounterVec(prometheus.CounterOpts{
			Name: "coaching_enrollments_total",
			Help: "Admin enrollment attempts by result.",
		}, []string{"result"}),
		logins: f.NewCounterVec(prometheus.CounterOpts{
			Name: "coaching_logins_total",
			Help: "Login attempts by result.",
		}, []string{"result"}),
		plans: f.NewCounterVec(prometheus.CounterOpts{
			Name: "coaching_plan_responses_total",
			Help: "my-plan responses by status code.",
		}, []string{"status"}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "coaching_status_transitions_total",
			Help: "Client status changes by edge and result.",
		}, []string{"from", "to", "result"}),
		sessions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "coaching_sessions_closed_total",
			Help: "Closed sessions by reason.",
		}, []string{"reason"}),
	}
}

// Enrollment учитывает попытку зачисления.
func (m *Metrics) Enrollment(result string) {
	if m == nil {
		return
	}
	m.enrollments.WithLabelValues(result).Inc()
}

// Login учитывает попытку входа.
func (m *Metrics) Login(result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result).Inc()
}

// PlanResponse учитывает ответ /api/my-plan.
func (m *Metrics) PlanResponse(status int) {
	if m == nil {
		return
	}
	m.plans.WithLabelValues(strconv.Itoa(status)).Inc()
}

// Transition учитывает попытку смены статуса.
func (m *Metrics) Transition(from, to, result string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to, result).Inc()
}

// SessionClosed учитывает закрытие сессии: logout или expire.
func (m *Metrics) SessionClosed(reason string) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(reason).Inc()
}
