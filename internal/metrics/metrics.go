package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the engine's collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Turns        *prometheus.CounterVec
	Reservations *prometheus.CounterVec
	Payments     *prometheus.CounterVec
	Orders       prometheus.Counter
	Sessions     prometheus.Gauge
}

// New registers the collectors on reg under the given prefix.
func New(reg prometheus.Registerer, prefix string) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Turns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_turns_total",
				Help: "Conversation turns handled, by intent and outcome",
			},
			[]string{"intent", "outcome"},
		),
		Reservations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_reservations_total",
				Help: "Add-to-cart reservation attempts, by outcome",
			},
			[]string{"outcome"},
		),
		Payments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_payments_total",
				Help: "Simulated payment attempts, by outcome",
			},
			[]string{"outcome"},
		),
		Orders: factory.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_orders_total",
			Help: "Orders placed",
		}),
		Sessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "_sessions",
			Help: "Sessions held in memory",
		}),
	}
}

func (m *Metrics) ObserveTurn(intent, outcome string) {
	if m == nil {
		return
	}
	m.Turns.WithLabelValues(intent, outcome).Inc()
}

func (m *Metrics) ObserveReservation(outcome string) {
	if m == nil {
		return
	}
	m.Reservations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObservePayment(outcome string) {
	if m == nil {
		return
	}
	m.Payments.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveOrder() {
	if m == nil {
		return
	}
	m.Orders.Inc()
}

func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.Sessions.Set(float64(n))
}
