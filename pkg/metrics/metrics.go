// Package metrics holds the Prometheus collectors for transfers, balances and the HTTP surface.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cctp_bridge"

// Metrics provides observability for the transfer service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Phase transitions by target phase
	TransferTransitions *prometheus.CounterVec

	// Terminal outcomes by status and error code
	TransferOutcomes *prometheus.CounterVec

	// Time spent in each waiting phase
	PhaseDuration *prometheus.HistogramVec

	// Executions that have not reached a terminal phase
	ActiveTransfers prometheus.Gauge

	// Attestation lookups by result: pending, complete, error
	AttestationPolls *prometheus.CounterVec

	// Balance reads by source: live, cached, refresh
	BalanceReads *prometheus.CounterVec

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New creates a Metrics instance registered with reg.
// Passing nil registers with the default Prometheus registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		TransferTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfer_transitions_total",
			Help:      "Total transfer phase transitions by target phase",
		}, []string{"phase"}),

		TransferOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfer_outcomes_total",
			Help:      "Total transfers reaching a terminal phase by status and error code",
		}, []string{"status", "error_code"}),

		PhaseDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transfer_phase_duration_seconds",
			Help:      "Duration of transfer phases",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 900, 1800},
		}, []string{"phase"}),

		ActiveTransfers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "transfers_active",
			Help:      "Transfers that have not reached a terminal phase",
		}),

		AttestationPolls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attestation_polls_total",
			Help:      "Attestation lookups by result",
		}, []string{"result"}),

		BalanceReads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "balance_reads_total",
			Help:      "Balance reads by source",
		}, []string{"source"}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),

		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// RecordTransition counts a phase transition
func (m *Metrics) RecordTransition(phase string) {
	if m != nil {
		m.TransferTransitions.WithLabelValues(phase).Inc()
	}
}

// TransferStarted marks a new active execution
func (m *Metrics) TransferStarted() {
	if m != nil {
		m.ActiveTransfers.Inc()
	}
}

// TransferFinished records a terminal outcome and releases the active slot
func (m *Metrics) TransferFinished(status, errorCode string) {
	if m != nil {
		m.ActiveTransfers.Dec()
		m.TransferOutcomes.WithLabelValues(status, errorCode).Inc()
	}
}

// ObservePhase records how long a phase took
func (m *Metrics) ObservePhase(phase string, d time.Duration) {
	if m != nil {
		m.PhaseDuration.WithLabelValues(phase).Observe(d.Seconds())
	}
}

// RecordAttestationPoll counts one attestation lookup
func (m *Metrics) RecordAttestationPoll(result string) {
	if m != nil {
		m.AttestationPolls.WithLabelValues(result).Inc()
	}
}

// RecordBalanceRead counts one balance read
func (m *Metrics) RecordBalanceRead(source string) {
	if m != nil {
		m.BalanceReads.WithLabelValues(source).Inc()
	}
}

// ObserveHTTP records one served request
func (m *Metrics) ObserveHTTP(method, route, status string, d time.Duration) {
	if m != nil {
		m.HTTPRequests.WithLabelValues(method, route, status).Inc()
		m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
	}
}
