// Package metrics records deploy run metrics in a private Prometheus
// registry that can be dumped for the node_exporter textfile collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Registry *prometheus.Registry

	remoteCalls    *prometheus.CounterVec
	pollChecks     *prometheus.CounterVec
	deployDuration *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		remoteCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ebdeploy",
			Name:      "remote_calls_total",
			Help:      "Calls made to the object store and application host.",
		}, []string{"op", "result"}),
		pollChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ebdeploy",
			Name:      "poll_checks_total",
			Help:      "Status checks made while waiting for a terminal state.",
		}, []string{"wait"}),
		deployDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ebdeploy",
			Name:      "deploy_duration_seconds",
			Help:      "Wall time of complete deploy runs.",
			Buckets:   []float64{30, 60, 120, 300, 600, 1200, 1800, 3600},
		}, []string{"result"}),
	}
	m.Registry.MustRegister(m.remoteCalls, m.pollChecks, m.deployDuration)
	return m
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RemoteCall counts one remote operation. Safe on a nil receiver.
func (m *Metrics) RemoteCall(op string, err error) {
	if m == nil {
		return
	}
	m.remoteCalls.WithLabelValues(op, result(err)).Inc()
}

// PollCheck counts one status check of the named wait.
func (m *Metrics) PollCheck(wait string) {
	if m == nil {
		return
	}
	m.pollChecks.WithLabelValues(wait).Inc()
}

func (m *Metrics) DeployFinished(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.deployDuration.WithLabelValues(result(err)).Observe(d.Seconds())
}

// WriteTextfile writes the registry in the Prometheus text format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
