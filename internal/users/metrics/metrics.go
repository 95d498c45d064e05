package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the user management Prometheus metrics.
type Metrics struct {
	Mutations     *prometheus.CounterVec
	LoginAttempts *prometheus.CounterVec
}

// New registers the user metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Mutations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rolegate_user_mutations_total",
			Help: "Committed user mutations, by operation",
		}, []string{"operation"}),
		LoginAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rolegate_login_attempts_total",
			Help: "Password login attempts, by outcome",
		}, []string{"outcome"}),
	}
}

// IncrementMutation records a committed create, update or delete.
func (m *Metrics) IncrementMutation(operation string) {
	m.Mutations.WithLabelValues(operation).Inc()
}

func (m *Metrics) IncrementLogin(outcome string) {
	m.LoginAttempts.WithLabelValues(outcome).Inc()
}
