// Package metrics содержит счётчики Prometheus сервиса.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics - набор счётчиков генераций, отказов, заявок и уведомлений.
type Metrics struct {
	Generations   *prometheus.CounterVec
	Denials       *prometheus.CounterVec
	Transactions  *prometheus.CounterVec
	Notifications *prometheus.CounterVec
}

// New создаёт счётчики и регистрирует их в reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "questgen",
			Name:      "paper_generations_total",
			Help:      "Paper generation attempts by result.",
		}, []string{"result"}),
		Denials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "questgen",
			Name:      "entitlement_denials_total",
			Help:      "Entitlement denials by action and reason.",
		}, []string{"action", "reason"}),
		Transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "questgen",
			Name:      "transaction_transitions_total",
			Help:      "Upgrade transaction status transitions.",
		}, []string{"status"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "questgen",
			Name:      "notifications_total",
			Help:      "Dispatched notifications by kind and result.",
		}, []string{"kind", "result"}),
	}
	reg.MustRegister(m.Generations, m.Denials, m.Transactions, m.Notifications)
	return m
}

// NewNoop создаёт счётчики без регистрации, для тестов и утилит.
func NewNoop() *Metrics {
	return New(prometheus.NewRegistry())
}
