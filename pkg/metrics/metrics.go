// Package metrics exposes prometheus counters for the OTP flow.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "otp_auth"

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultInvalid = "invalid"
	ResultError   = "error"
)

type Metrics struct {
	registry *prometheus.Registry

	OTPIssued     *prometheus.CounterVec
	OTPVerified   *prometheus.CounterVec
	Notifications *prometheus.CounterVec
	OTPPurged     prometheus.Counter
}

// New builds a Metrics instance on its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		OTPIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_issued_total",
			Help:      "OTP issuance attempts by result.",
		}, []string{"result"}),
		OTPVerified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_verified_total",
			Help:      "OTP verification attempts by result.",
		}, []string{"result"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Outbound notification deliveries by channel and result.",
		}, []string{"channel", "result"}),
		OTPPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_purged_total",
			Help:      "Expired OTP records removed by the purge job.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.OTPIssued,
		m.OTPVerified,
		m.Notifications,
		m.OTPPurged,
	)

	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveNotification records a delivery outcome for channel.
func (m *Metrics) ObserveNotification(channel string, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	m.Notifications.WithLabelValues(channel, result).Inc()
}
