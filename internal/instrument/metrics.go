// Package instrument holds the prometheus counters exported by the server.
package instrument

import "github.com/prometheus/client_golang/prometheus"

const namespace = "spar"

// Outcome labels for authentication decisions.
const (
	OutcomeAccepted          = "accepted"
	OutcomeNoCredential      = "no_credential"
	OutcomeMalformed         = "malformed"
	OutcomeExpired           = "expired"
	OutcomeRevoked           = "revoked"
	OutcomeLedgerUnavailable = "ledger_unavailable"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	authDecisions *prometheus.CounterVec
	logins        *prometheus.CounterVec
	revocations   *prometheus.CounterVec
	swept         prometheus.Counter
}

// New registers the server counters with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		authDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "decisions_total",
			Help:      "Authentication gate decisions by outcome.",
		}, []string{"outcome"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "logins_total",
			Help:      "Session issuance attempts by result.",
		}, []string{"result"}),
		revocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "revocations_total",
			Help:      "Ledger records removed by logout kind.",
		}, []string{"kind"}),
		swept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "swept_records_total",
			Help:      "Expired ledger records deleted by the sweeper.",
		}),
	}
	reg.MustRegister(m.authDecisions, m.logins, m.revocations, m.swept)
	return m
}

func (m *Metrics) AuthDecision(outcome string) {
	if m == nil {
		return
	}
	m.authDecisions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Login(result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result).Inc()
}

func (m *Metrics) Revoked(kind string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.revocations.WithLabelValues(kind).Add(float64(n))
}

func (m *Metrics) Swept(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.swept.Add(float64(n))
}

// AuthDecisions exposes the decision counter for assertions in tests.
func (m *Metrics) AuthDecisions() *prometheus.CounterVec {
	return m.authDecisions
}

// SweptRecords exposes the sweep counter for assertions in tests.
func (m *Metrics) SweptRecords() prometheus.Counter {
	return m.swept
}

// Revocations exposes the revocation counter for assertions in tests.
func (m *Metrics) Revocations() *prometheus.CounterVec {
	return m.revocations
}
