package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/gray-logic-remote/internal/session"
)

// SessionMetrics holds Prometheus metrics for device sessions.
type SessionMetrics struct {
	ActiveConnections prometheus.Gauge
	CommandsTotal     *prometheus.CounterVec
	CommandDuration   prometheus.Histogram
	ConnectsTotal     *prometheus.CounterVec
	DisconnectsTotal  *prometheus.CounterVec
	ScansTotal        *prometheus.CounterVec
	DiscoveredDevices prometheus.Gauge
	PairingsTotal     *prometheus.CounterVec
	AppLaunchesTotal  *prometheus.CounterVec
}

// NewSessionMetrics creates and registers session metrics on the given registry.
func NewSessionMetrics(reg prometheus.Registerer) *SessionMetrics {
	m := &SessionMetrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "active_connections",
			Help:      "Number of pooled device connections.",
		}),
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "commands_total",
			Help:      "Total remote commands sent, by command and result.",
		}, []string{"command", "result"}),
		CommandDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "command_duration_seconds",
			Help:      "Time from command dispatch to device acknowledgement.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		ConnectsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "connects_total",
			Help:      "Total device connection attempts, by result.",
		}, []string{"result"}),
		DisconnectsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "disconnects_total",
			Help:      "Total device disconnects, by reason.",
		}, []string{"reason"}),
		ScansTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "scans_total",
			Help:      "Total discovery scans, by trigger and result.",
		}, []string{"trigger", "result"}),
		DiscoveredDevices: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "devices",
			Help:      "Devices found by the most recent successful scan.",
		}),
		PairingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pairing",
			Name:      "sessions_total",
			Help:      "Pairing steps, by stage and result.",
		}, []string{"stage", "result"}),
		AppLaunchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "app_launches_total",
			Help:      "Total app launches, by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.ActiveConnections, m.CommandsTotal, m.CommandDuration,
		m.ConnectsTotal, m.DisconnectsTotal,
		m.ScansTotal, m.DiscoveredDevices,
		m.PairingsTotal, m.AppLaunchesTotal,
	)
	return m
}

// Observe implements session.Observer. It only touches in-memory
// collectors and never blocks.
func (m *SessionMetrics) Observe(e session.Event) {
	result := resultLabel(e.Success)

	switch e.Type {
	case session.EventCommandSent:
		m.CommandsTotal.WithLabelValues(stringDetail(e, "command"), result).Inc()
		if e.Success {
			m.CommandDuration.Observe(e.Duration.Seconds())
		}
	case session.EventDeviceConnected:
		m.ConnectsTotal.WithLabelValues(result).Inc()
		if e.Success {
			m.ActiveConnections.Inc()
		}
	case session.EventDeviceDisconnected:
		reason := stringDetail(e, "reason")
		if reason == "" {
			reason = "unknown"
		}
		m.DisconnectsTotal.WithLabelValues(reason).Inc()
		m.ActiveConnections.Dec()
	case session.EventDevicesScanned:
		m.ScansTotal.WithLabelValues(stringDetail(e, "trigger"), result).Inc()
		if count, ok := e.Details["count"].(int); ok && e.Success {
			m.DiscoveredDevices.Set(float64(count))
		}
	case session.EventPairingStarted:
		m.PairingsTotal.WithLabelValues("start", result).Inc()
	case session.EventPairingFinished:
		m.PairingsTotal.WithLabelValues("finish", result).Inc()
	case session.EventAppLaunched:
		m.AppLaunchesTotal.WithLabelValues(result).Inc()
	}
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

func stringDetail(e session.Event, key string) string {
	s, _ := e.Details[key].(string)
	return s
}
