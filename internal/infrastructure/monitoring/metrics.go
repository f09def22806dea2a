package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the session backend's Prometheus collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Script metrics
	Scripts         prometheus.Gauge
	ScriptLifecycle *prometheus.CounterVec

	// Node type metrics
	NodeTypes prometheus.Gauge

	// Addon metrics
	Addons        prometheus.Gauge
	AddonRestores *prometheus.CounterVec
	AddonsBlocked prometheus.Counter
	ProjectLoads  *prometheus.CounterVec
	ProjectSaves  prometheus.Counter
	LoadDuration  prometheus.Histogram

	// Bridge metrics
	BridgePending   prometheus.Gauge
	EventsDelivered prometheus.Counter

	// WebSocket metrics
	WSConnections prometheus.Gauge
}

// NewMetrics registers the collectors with reg. Passing a fresh
// prometheus.NewRegistry() keeps tests isolated from the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Scripts: factory.NewGauge(prometheus.GaugeOpts{
			Name: "nodeflow_scripts",
			Help: "Number of scripts in the session",
		}),
		ScriptLifecycle: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nodeflow_script_events_total",
				Help: "Script lifecycle operations by kind",
			},
			[]string{"kind"},
		),
		NodeTypes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "nodeflow_node_types",
			Help: "Number of registered node types",
		}),
		Addons: factory.NewGauge(prometheus.GaugeOpts{
			Name: "nodeflow_addons",
			Help: "Number of registered addons",
		}),
		AddonRestores: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nodeflow_addon_restores_total",
				Help: "Addon state restores by outcome",
			},
			[]string{"outcome"},
		),
		AddonsBlocked: factory.NewCounter(prometheus.CounterOpts{
			Name: "nodeflow_addon_blocked_lookups_total",
			Help: "Addon lookups rejected during the restore window",
		}),
		ProjectLoads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nodeflow_project_loads_total",
				Help: "Project loads by outcome",
			},
			[]string{"outcome"},
		),
		ProjectSaves: factory.NewCounter(prometheus.CounterOpts{
			Name: "nodeflow_project_saves_total",
			Help: "Project snapshots produced",
		}),
		LoadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "nodeflow_project_load_duration_seconds",
			Help:    "Time spent in the load protocol",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}),
		BridgePending: factory.NewGauge(prometheus.GaugeOpts{
			Name: "nodeflow_bridge_pending_events",
			Help: "Events posted but not yet delivered",
		}),
		EventsDelivered: factory.NewCounter(prometheus.CounterOpts{
			Name: "nodeflow_bridge_events_delivered_total",
			Help: "Events delivered to listeners",
		}),
		WSConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "nodeflow_ws_connections",
			Help: "Open websocket event streams",
		}),
	}
}

// SetScripts records the current script count
func (m *Metrics) SetScripts(n int) {
	if m == nil {
		return
	}
	m.Scripts.Set(float64(n))
}

// ScriptEvent counts a lifecycle operation
func (m *Metrics) ScriptEvent(kind string) {
	if m == nil {
		return
	}
	m.ScriptLifecycle.WithLabelValues(kind).Inc()
}

// SetNodeTypes records the node type count
func (m *Metrics) SetNodeTypes(n int) {
	if m == nil {
		return
	}
	m.NodeTypes.Set(float64(n))
}

// SetAddons records the addon count
func (m *Metrics) SetAddons(n int) {
	if m == nil {
		return
	}
	m.Addons.Set(float64(n))
}

// AddonRestored counts one restore attempt
func (m *Metrics) AddonRestored(ok bool) {
	if m == nil {
		return
	}
	m.AddonRestores.WithLabelValues(outcome(ok)).Inc()
}

// AddonBlocked counts a lookup refused during restore
func (m *Metrics) AddonBlocked() {
	if m == nil {
		return
	}
	m.AddonsBlocked.Inc()
}

// ProjectLoaded records a finished load attempt
func (m *Metrics) ProjectLoaded(ok bool, took time.Duration) {
	if m == nil {
		return
	}
	m.ProjectLoads.WithLabelValues(outcome(ok)).Inc()
	m.LoadDuration.Observe(took.Seconds())
}

// ProjectSaved counts a snapshot
func (m *Metrics) ProjectSaved() {
	if m == nil {
		return
	}
	m.ProjectSaves.Inc()
}

// SetBridgePending records the bridge queue depth
func (m *Metrics) SetBridgePending(n int) {
	if m == nil {
		return
	}
	m.BridgePending.Set(float64(n))
}

// EventDelivered counts one delivered event
func (m *Metrics) EventDelivered() {
	if m == nil {
		return
	}
	m.EventsDelivered.Inc()
}

// WSConnected adjusts the open stream gauge
func (m *Metrics) WSConnected(delta int) {
	if m == nil {
		return
	}
	m.WSConnections.Add(float64(delta))
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
