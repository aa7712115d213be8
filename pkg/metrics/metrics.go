package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Trigger metrics
	TriggersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lokiop_triggers_total",
			Help: "Total number of triggers processed by kind",
		},
		[]string{"kind"},
	)

	TriggerErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lokiop_trigger_errors_total",
			Help: "Total number of trigger handler failures by kind",
		},
		[]string{"kind"},
	)

	// Cluster metrics
	ClusterEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lokiop_cluster_events_total",
			Help: "Total number of derived cluster events by type",
		},
		[]string{"type"},
	)

	ClusterConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "lokiop_cluster_connected",
			Help: "Whether a healthy cluster relation is present (1 = connected)",
		},
	)

	// Workload metrics
	ConfigPushesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lokiop_config_pushes_total",
			Help: "Total number of config files pushed to the workload",
		},
	)

	RestartsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lokiop_workload_restarts_total",
			Help: "Total number of workload restart attempts",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(TriggersTotal)
	prometheus.MustRegister(TriggerErrors)
	prometheus.MustRegister(ClusterEventsTotal)
	prometheus.MustRegister(ClusterConnected)
	prometheus.MustRegister(ConfigPushesTotal)
	prometheus.MustRegister(RestartsTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
