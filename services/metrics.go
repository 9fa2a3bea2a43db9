package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the application's prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	EventsRecorded *prometheus.CounterVec
	EventsUndone   prometheus.Counter
	Moments        *prometheus.CounterVec
	AIRequests     *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "babycare_events_recorded_total",
			Help: "Feed and diaper events recorded.",
		}, []string{"type"}),
		EventsUndone: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "babycare_events_undone_total",
			Help: "Events removed through undo.",
		}),
		Moments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "babycare_moments_total",
			Help: "Moment journal operations.",
		}, []string{"op"}),
		AIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "babycare_ai_requests_total",
			Help: "Assistant answers by provider and outcome.",
		}, []string{"provider", "outcome"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "babycare_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(m.EventsRecorded, m.EventsUndone, m.Moments, m.AIRequests, m.HTTPDuration)
	return m
}

func (m *Metrics) eventRecorded(typ string) {
	if m != nil {
		m.EventsRecorded.WithLabelValues(typ).Inc()
	}
}

func (m *Metrics) eventUndone() {
	if m != nil {
		m.EventsUndone.Inc()
	}
}

func (m *Metrics) moment(op string) {
	if m != nil {
		m.Moments.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) aiRequest(provider, outcome string) {
	if m != nil {
		m.AIRequests.WithLabelValues(provider, outcome).Inc()
	}
}
