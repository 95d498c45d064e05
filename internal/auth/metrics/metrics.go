package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for token verification, identity resolution and
// role checks.
type Metrics struct {
	AuthFailures     *prometheus.CounterVec
	PermissionDenied *prometheus.CounterVec
	ResolveDuration  prometheus.Histogram
	TokensIssued     prometheus.Counter
}

// New registers the auth metrics with reg. Pass prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AuthFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rolegate_auth_failures_total",
			Help: "Requests rejected while resolving the caller identity, by reason",
		}, []string{"reason"}),
		PermissionDenied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rolegate_permission_denied_total",
			Help: "Requests denied by the role gate, by resource",
		}, []string{"resource"}),
		ResolveDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "rolegate_identity_resolve_duration_seconds",
			Help:    "Duration of bearer token to user resolution",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		TokensIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "rolegate_access_tokens_issued_total",
			Help: "Access tokens issued by the login flow",
		}),
	}
}

// IncrementAuthFailure records a rejected identity resolution.
func (m *Metrics) IncrementAuthFailure(reason string) {
	m.AuthFailures.WithLabelValues(reason).Inc()
}

// IncrementPermissionDenied records a role gate denial.
func (m *Metrics) IncrementPermissionDenied(resource string) {
	m.PermissionDenied.WithLabelValues(resource).Inc()
}

// ObserveResolve records resolution latency. Call with time.Now() at the start.
func (m *Metrics) ObserveResolve(start time.Time) {
	m.ResolveDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementTokensIssued() {
	m.TokensIssued.Inc()
}
