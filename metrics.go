// PowerSNMP - SNMP library for Go
// Автор: Волков Олег, ООО "Пауэр Си"
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
// Лицензия: MIT (доступна коммерческая версия с поддержкой)
package powersnmp

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the client. A nil *Metrics
// records nothing.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RetriesTotal    *prometheus.CounterVec
	TimeoutsTotal   *prometheus.CounterVec
	SecurityErrors  *prometheus.CounterVec
	Discoveries     prometheus.Counter
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics registers the collectors with reg. A nil reg uses the default
// registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "powersnmp",
				Name:      "requests_total",
				Help:      "Total number of SNMP requests by outcome",
			},
			[]string{"version", "pdu", "status"},
		),
		RetriesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "powersnmp",
				Name:      "retries_total",
				Help:      "Total number of retransmitted requests",
			},
			[]string{"version"},
		),
		TimeoutsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "powersnmp",
				Name:      "timeouts_total",
				Help:      "Requests that ran out of attempts without a response",
			},
			[]string{"version"},
		),
		SecurityErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "powersnmp",
				Name:      "security_errors_total",
				Help:      "USM failures by kind",
			},
			[]string{"kind"},
		),
		Discoveries: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: "powersnmp",
				Name:      "discoveries_total",
				Help:      "SNMPv3 engine discoveries",
			},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "powersnmp",
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds, retries included",
				Buckets:   []float64{.001, .005, .01, .05, .1, .3, 1, 3, 10, 30},
			},
			[]string{"version", "pdu"},
		),
	}
}

func (m *Metrics) observeRequest(version, pdu string, started time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.RequestsTotal.WithLabelValues(version, pdu, status).Inc()
	m.RequestDuration.WithLabelValues(version, pdu).Observe(time.Since(started).Seconds())
}

func (m *Metrics) retry(version string) {
	if m != nil {
		m.RetriesTotal.WithLabelValues(version).Inc()
	}
}

func (m *Metrics) timeout(version string) {
	if m != nil {
		m.TimeoutsTotal.WithLabelValues(version).Inc()
	}
}

func (m *Metrics) securityError(kind SecurityErrorKind) {
	if m != nil {
		m.SecurityErrors.WithLabelValues(kind.String()).Inc()
	}
}

func (m *Metrics) discovery() {
	if m != nil {
		m.Discoveries.Inc()
	}
}
