package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/vitos/risk_guard/internal/domain"
)

const namespace = "risk_guard"

// MonitorMetrics exports the position monitor's counters to Prometheus.
type MonitorMetrics struct {
	alertsEmitted    *prometheus.CounterVec
	alertsSuppressed *prometheus.CounterVec
	malformed        prometheus.Counter
	userFailures     prometheus.Counter
	cycleDuration    prometheus.Histogram
	usersChecked     prometheus.Gauge
}

// NewMonitorMetrics registers the collectors on reg. Pass
// prometheus.DefaultRegisterer in production.
func NewMonitorMetrics(reg prometheus.Registerer) *MonitorMetrics {
	f := promauto.With(reg)
	return &MonitorMetrics{
		alertsEmitted: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "monitor",
				Name:      "alerts_emitted_total",
				Help:      "Alerts that passed their cooldown and were delivered",
			},
			[]string{"rule", "severity"},
		),
		alertsSuppressed: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "monitor",
				Name:      "alerts_suppressed_total",
				Help:      "Rule violations swallowed by an active cooldown",
			},
			[]string{"rule"},
		),
		malformed: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "monitor",
				Name:      "malformed_snapshots_total",
				Help:      "Position snapshots rejected before evaluation",
			},
		),
		userFailures: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "monitor",
				Name:      "user_check_failures_total",
				Help:      "User checks that ended with an error",
			},
		),
		cycleDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "monitor",
				Name:      "cycle_duration_seconds",
				Help:      "Wall time of one poll over all active users",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
		),
		usersChecked: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "monitor",
				Name:      "active_users",
				Help:      "Users checked in the last cycle",
			},
		),
	}
}

func (m *MonitorMetrics) AlertEmitted(rule domain.RuleType, severity domain.Severity) {
	m.alertsEmitted.WithLabelValues(string(rule), string(severity)).Inc()
}

func (m *MonitorMetrics) AlertSuppressed(rule domain.RuleType) {
	m.alertsSuppressed.WithLabelValues(string(rule)).Inc()
}

func (m *MonitorMetrics) MalformedSnapshot() { m.malformed.Inc() }

func (m *MonitorMetrics) UserCheckFailed() { m.userFailures.Inc() }

func (m *MonitorMetrics) CycleCompleted(d time.Duration, users int) {
	m.cycleDuration.Observe(d.Seconds())
	m.usersChecked.Set(float64(users))
}
