// Package metrics collects Prometheus metrics for the auth manager.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder is the instrumentation hook consumed by the manager.
type Recorder interface {
	RecordLogin(kind string, success bool)
	RecordRefresh(kind string, success bool)
	RecordLogout(kind string)
	RecordSwitch(kind string)
	RecordLoginLatency(d time.Duration)
}

// Nop is a Recorder that discards everything.
type Nop struct{}

var _ Recorder = Nop{}

func (Nop) RecordLogin(string, bool)         {}
func (Nop) RecordRefresh(string, bool)       {}
func (Nop) RecordLogout(string)              {}
func (Nop) RecordSwitch(string)              {}
func (Nop) RecordLoginLatency(time.Duration) {}

// Collector is the Prometheus-backed Recorder implementation.
type Collector struct {
	logins       *prometheus.CounterVec
	refreshes    *prometheus.CounterVec
	logouts      *prometheus.CounterVec
	switches     *prometheus.CounterVec
	loginLatency prometheus.Histogram
}

var _ Recorder = (*Collector)(nil)

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_login_total",
			Help: "Login attempts by strategy kind and outcome",
		}, []string{"kind", "outcome"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_refresh_total",
			Help: "Refresh attempts by strategy kind and outcome",
		}, []string{"kind", "outcome"}),
		logouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_logout_total",
			Help: "Logouts by strategy kind",
		}, []string{"kind"}),
		switches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_switch_total",
			Help: "Strategy switches by target kind",
		}, []string{"kind"}),
		loginLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "auth_login_latency_seconds",
			Help:    "Login round-trip latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(c.logins, c.refreshes, c.logouts, c.switches, c.loginLatency)
	return c
}

func (c *Collector) RecordLogin(kind string, success bool) {
	c.logins.WithLabelValues(kind, outcome(success)).Inc()
}

func (c *Collector) RecordRefresh(kind string, success bool) {
	c.refreshes.WithLabelValues(kind, outcome(success)).Inc()
}

func (c *Collector) RecordLogout(kind string) {
	c.logouts.WithLabelValues(kind).Inc()
}

func (c *Collector) RecordSwitch(kind string) {
	c.switches.WithLabelValues(kind).Inc()
}

func (c *Collector) RecordLoginLatency(d time.Duration) {
	c.loginLatency.Observe(d.Seconds())
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
