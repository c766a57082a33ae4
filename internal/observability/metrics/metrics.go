package metrics

import "github.com/prometheus/client_golang/prometheus"

// TurnMetrics exposes counters/histograms for the conversational flow.
// All observe methods are nil-safe so wiring stays optional in tests.
type TurnMetrics struct {
	inboundTotal      *prometheus.CounterVec
	turnLatency       *prometheus.HistogramVec
	intentTotal       *prometheus.CounterVec
	reservationsTotal *prometheus.CounterVec
	holdsTotal        *prometheus.CounterVec
}

func NewTurnMetrics(reg prometheus.Registerer) *TurnMetrics {
	m := &TurnMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookforme",
			Subsystem: "channel",
			Name:      "inbound_webhook_total",
			Help:      "Total inbound chat webhooks",
		}, []string{"status"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bookforme",
			Subsystem: "booking",
			Name:      "turn_latency_seconds",
			Help:      "Latency of one full conversational turn",
			Buckets:   prometheus.DefBuckets,
		}, []string{"state"}),
		intentTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookforme",
			Subsystem: "booking",
			Name:      "intent_total",
			Help:      "Distribution of classified intents",
		}, []string{"intent"}),
		reservationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookforme",
			Subsystem: "inventory",
			Name:      "reservations_total",
			Help:      "Slot reservation attempts by outcome",
		}, []string{"outcome"}),
		holdsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookforme",
			Subsystem: "inventory",
			Name:      "holds_total",
			Help:      "Slot hold attempts by outcome",
		}, []string{"outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.turnLatency, m.intentTotal, m.reservationsTotal, m.holdsTotal)
	return m
}

func (m *TurnMetrics) ObserveInbound(status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(status).Inc()
}

func (m *TurnMetrics) ObserveTurn(state string, seconds float64) {
	if m == nil {
		return
	}
	m.turnLatency.WithLabelValues(state).Observe(seconds)
}

func (m *TurnMetrics) ObserveIntent(intent string) {
	if m == nil {
		return
	}
	m.intentTotal.WithLabelValues(intent).Inc()
}

func (m *TurnMetrics) ObserveReservation(outcome string) {
	if m == nil {
		return
	}
	m.reservationsTotal.WithLabelValues(outcome).Inc()
}

func (m *TurnMetrics) ObserveHold(outcome string) {
	if m == nil {
		return
	}
	m.holdsTotal.WithLabelValues(outcome).Inc()
}
